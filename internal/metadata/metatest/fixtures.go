// Package metatest builds small, linked-ready metadata tables for tests.
//
// Core models an ahead-of-time compiled base library; Game models an
// interpreted module that references Core through TypeRefs, TypeSpecs,
// MemberRefs and MethodSpecs.
package metatest

import (
	"clrmeta/internal/metadata"
	"clrmeta/internal/token"
)

const (
	CoreName = "Core"
	GameName = "Game"
)

// Core row layout (0-based raw indexes).
const (
	CoreObject = iota
	CoreList
	CoreMath
	CoreInt32
)

// Core methods.
const (
	CoreObjectCtor = iota
	CoreListCtor
	CoreListAdd
	CoreListConvertAll
	CoreMathMax
)

// Core fields.
const CoreListItems = 0

// Game rows.
const (
	GamePlayer = iota
	GameBox
)

// Game methods.
const (
	GamePlayerUpdate = iota
	GamePlayerPick
	GameBoxGet
)

// Game tokens.
var (
	GameCoreRef = token.MustMake(token.AssemblyRef, 1)

	GameListRef    = token.MustMake(token.TypeRef, 1)
	GameMathRef    = token.MustMake(token.TypeRef, 2)
	GamePlayerRef  = token.MustMake(token.TypeRef, 3)
	GameMissingRef = token.MustMake(token.TypeRef, 4)

	GameListOfString = token.MustMake(token.TypeSpec, 1)
	GameListOfVar0   = token.MustMake(token.TypeSpec, 2)
	GameBoxOfInt32   = token.MustMake(token.TypeSpec, 3)
	GameStringArray  = token.MustMake(token.TypeSpec, 4)

	GameListAddRef   = token.MustMake(token.MemberRef, 1)
	GameMathMaxRef   = token.MustMake(token.MemberRef, 2)
	GameListItemsRef = token.MustMake(token.MemberRef, 3)
	GameNopeRef      = token.MustMake(token.MemberRef, 4)
	GameBoxGetRef    = token.MustMake(token.MemberRef, 5)

	GameMaxOfDouble  = token.MustMake(token.MethodSpec, 1)
	GamePickOfString = token.MustMake(token.MethodSpec, 2)
	GamePickOfMVar0  = token.MustMake(token.MethodSpec, 3)
)

func params(names ...string) *metadata.GenericContainer {
	c := &metadata.GenericContainer{}
	for _, n := range names {
		c.Params = append(c.Params, metadata.GenericParam{Name: n})
	}
	return c
}

// CoreTables returns fresh, unlinked tables for the Core module.
func CoreTables() *metadata.Tables {
	return &metadata.Tables{
		Types: []metadata.TypeDef{
			CoreObject: {Namespace: "System", Name: "Object", FirstMethod: CoreObjectCtor, MethodCount: 1},
			CoreList: {
				Namespace: "System.Collections.Generic", Name: "List`1",
				Generic:     params("T"),
				FirstMethod: CoreListCtor, MethodCount: 3,
				FirstField: CoreListItems, FieldCount: 1,
			},
			CoreMath:  {Namespace: "System", Name: "Math", Flags: metadata.TypeSealed | metadata.TypeAbstract, FirstMethod: CoreMathMax, MethodCount: 1},
			CoreInt32: {Namespace: "System", Name: "Int32", Flags: metadata.TypeValueType, FirstMethod: 5},
		},
		Methods: []metadata.MethodDef{
			CoreObjectCtor:     {Name: ".ctor", DeclaringType: CoreObject},
			CoreListCtor:       {Name: ".ctor", DeclaringType: CoreList},
			CoreListAdd:        {Name: "Add", DeclaringType: CoreList, ParamCount: 1},
			CoreListConvertAll: {Name: "ConvertAll", DeclaringType: CoreList, ParamCount: 1, Generic: params("TOut")},
			CoreMathMax:        {Name: "Max", DeclaringType: CoreMath, ParamCount: 2, Flags: metadata.MethodStatic, Generic: params("T")},
		},
		Fields: []metadata.FieldDef{
			CoreListItems: {
				Name: "_items", DeclaringType: CoreList,
				Sig: metadata.TypeSig{Kind: metadata.ElemSZArray, Elem: &metadata.TypeSig{Kind: metadata.ElemVar}},
			},
		},
	}
}

// GameTables returns fresh, unlinked tables for the Game module.
func GameTables() *metadata.Tables {
	str := metadata.TypeSig{Kind: metadata.ElemString}
	return &metadata.Tables{
		AssemblyRefs: []metadata.AssemblyRef{{Name: CoreName}},
		TypeRefs: []metadata.TypeRef{
			{Scope: GameCoreRef, Namespace: "System.Collections.Generic", Name: "List`1"},
			{Scope: GameCoreRef, Namespace: "System", Name: "Math"},
			{Scope: token.MustMake(token.Module, 1), Namespace: "Game", Name: "Player"},
			{Scope: GameCoreRef, Namespace: "System", Name: "Missing"},
		},
		Types: []metadata.TypeDef{
			GamePlayer: {
				Namespace: "Game", Name: "Player",
				FirstMethod: GamePlayerUpdate, MethodCount: 2,
				FirstField: 0, FieldCount: 1,
			},
			GameBox: {
				Namespace: "Game", Name: "Box`1",
				Generic:     params("T"),
				FirstMethod: GameBoxGet, MethodCount: 1,
				FirstField: 1, FieldCount: 1,
			},
		},
		Methods: []metadata.MethodDef{
			GamePlayerUpdate: {Name: "Update", DeclaringType: GamePlayer},
			GamePlayerPick:   {Name: "Pick", DeclaringType: GamePlayer, ParamCount: 1, Generic: params("T")},
			GameBoxGet:       {Name: "Get", DeclaringType: GameBox},
		},
		Fields: []metadata.FieldDef{
			{Name: "score", DeclaringType: GamePlayer, Sig: metadata.TypeSig{Kind: metadata.ElemI4}},
			{Name: "value", DeclaringType: GameBox, Sig: metadata.TypeSig{Kind: metadata.ElemVar}},
		},
		TypeSpecs: []metadata.TypeSpec{
			{Sig: metadata.TypeSig{Kind: metadata.ElemGenericInst, Class: GameListRef, Args: []metadata.TypeSig{str}}},
			{Sig: metadata.TypeSig{Kind: metadata.ElemGenericInst, Class: GameListRef, Args: []metadata.TypeSig{{Kind: metadata.ElemVar}}}},
			{Sig: metadata.TypeSig{Kind: metadata.ElemGenericInst, Class: token.MustMake(token.TypeDef, GameBox+1), Args: []metadata.TypeSig{{Kind: metadata.ElemI4}}}},
			{Sig: metadata.TypeSig{Kind: metadata.ElemSZArray, Elem: &str}},
		},
		MemberRefs: []metadata.MemberRef{
			{Parent: GameListOfString, Name: "Add", ParamCount: 1},
			{Parent: GameMathRef, Name: "Max", ParamCount: 2, GenericCount: 1},
			{Parent: GameListOfString, Name: "_items", Field: true},
			{Parent: GameListRef, Name: "Nope"},
			{Parent: GameBoxOfInt32, Name: "Get"},
		},
		MethodSpecs: []metadata.MethodSpec{
			{Method: GameMathMaxRef, Args: []metadata.TypeSig{{Kind: metadata.ElemR8}}},
			{Method: token.MustMake(token.Method, GamePlayerPick+1), Args: []metadata.TypeSig{str}},
			{Method: token.MustMake(token.Method, GamePlayerPick+1), Args: []metadata.TypeSig{{Kind: metadata.ElemMVar}}},
		},
		Bodies: []*metadata.MethodBody{
			GamePlayerUpdate: {MaxStack: 2, Code: []byte{0x00, 0x2a}},
			GamePlayerPick:   {MaxStack: 1, InitLocals: true, Code: []byte{0x02, 0x2a}},
			GameBoxGet:       {MaxStack: 1, Code: []byte{0x02, 0x7b, 0x2a}},
		},
	}
}

// Linked links tables for a module with a name-derived id and returns both.
func Linked(name string, tables *metadata.Tables, origin metadata.Origin) (metadata.Module, *metadata.Tables) {
	mod := metadata.Module{ID: metadata.NewModuleID(name), Name: name, Origin: origin}
	if err := tables.Link(mod.ID); err != nil {
		panic(err)
	}
	return mod, tables
}
