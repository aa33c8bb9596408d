package token

import "fmt"

// Kind identifies a metadata table.
// Values follow the ECMA-335 table numbering.
type Kind uint8

const (
	// Module is the module table (scope of TypeRefs resolved in the same module).
	Module Kind = 0x00
	// TypeRef references a type by name, usually in another module.
	TypeRef Kind = 0x01
	// TypeDef is a type definition owned by the module.
	TypeDef Kind = 0x02
	// Field is a field definition.
	Field Kind = 0x04
	// Method is a method definition.
	Method Kind = 0x06
	// MemberRef references a method or field, possibly in another module.
	MemberRef Kind = 0x0A
	// ModuleRef references another module of the same assembly.
	ModuleRef Kind = 0x1A
	// TypeSpec is a constructed type signature (generic instance, array).
	TypeSpec Kind = 0x1B
	// AssemblyRef references another assembly by name.
	AssemblyRef Kind = 0x23
	// GenericParam is a generic parameter row.
	GenericParam Kind = 0x2A
	// MethodSpec is a generic method instantiation.
	MethodSpec Kind = 0x2B
)

var kindNames = map[Kind]string{
	Module:       "Module",
	TypeRef:      "TypeRef",
	TypeDef:      "TypeDef",
	Field:        "Field",
	Method:       "Method",
	MemberRef:    "MemberRef",
	ModuleRef:    "ModuleRef",
	TypeSpec:     "TypeSpec",
	AssemblyRef:  "AssemblyRef",
	GenericParam: "GenericParam",
	MethodSpec:   "MethodSpec",
}

// String returns the table name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(0x%02x)", uint8(k))
}

// Known reports whether k is one of the enumerated table kinds.
func (k Kind) Known() bool {
	_, ok := kindNames[k]
	return ok
}
