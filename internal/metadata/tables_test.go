package metadata_test

import (
	"bytes"
	"errors"
	"testing"

	"clrmeta/internal/metadata"
	"clrmeta/internal/metadata/metatest"
	"clrmeta/internal/metaerr"
	"clrmeta/internal/token"
)

func TestLinkAssignsIdentity(t *testing.T) {
	mod, tables := metatest.Linked(metatest.CoreName, metatest.CoreTables(), metadata.OriginCompiled)
	list := &tables.Types[metatest.CoreList]
	if list.ID.Module != mod.ID || list.ID.Token != token.MustMake(token.TypeDef, metatest.CoreList+1) {
		t.Fatalf("list id = %v", list.ID)
	}
	if list.Generic.Owner != list.ID || list.Generic.IsMethod {
		t.Fatalf("class container not owned by List`1")
	}
	add := &tables.Methods[metatest.CoreListAdd]
	if add.Owner() != list {
		t.Fatalf("Add owner = %v", add.Owner())
	}
	if add.Handle().DeclaringType != list.Type() {
		t.Fatalf("open handle must use the definition type")
	}
	if !tables.Methods[metatest.CoreMathMax].Generic.IsMethod {
		t.Fatalf("method container must be flagged")
	}
	if !list.Type().IsOpenGeneric() {
		t.Fatalf("List`1 is an open generic definition")
	}
}

func TestLinkRejectsBadRanges(t *testing.T) {
	tables := metatest.CoreTables()
	tables.Types[metatest.CoreList].MethodCount = 40
	err := tables.Link(metadata.NewModuleID("bad"))
	if !errors.Is(err, metaerr.ErrCorrupt) {
		t.Fatalf("expected corrupt error, got %v", err)
	}

	tables = metatest.CoreTables()
	tables.Methods[0].DeclaringType = 99
	if err := tables.Link(metadata.NewModuleID("bad")); !errors.Is(err, metaerr.ErrCorrupt) {
		t.Fatalf("expected corrupt error for declaring type, got %v", err)
	}
}

func TestLinkRequiresModule(t *testing.T) {
	if err := metatest.CoreTables().Link(metadata.NoModuleID); !errors.Is(err, metaerr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestTypeKeys(t *testing.T) {
	str := metadata.Primitive(metadata.ElemString)
	if metadata.Primitive(metadata.ElemString) != str {
		t.Fatalf("primitives are shared")
	}
	if metadata.Primitive(metadata.ElemClass) != nil {
		t.Fatalf("class is not a primitive")
	}
	a := metadata.NewSZArray(str)
	b := metadata.NewSZArray(str)
	if a == b || !metadata.Same(a, b) {
		t.Fatalf("arrays of the same element must compare equal by key")
	}
	if metadata.Same(metadata.NewVar(nil, 0), metadata.NewMVar(nil, 0)) {
		t.Fatalf("!0 and !!0 differ")
	}
	if a.String() != "string[]" {
		t.Fatalf("array string = %q", a.String())
	}
}

func TestInstKeyIsUnambiguous(t *testing.T) {
	i4 := metadata.Primitive(metadata.ElemI4)
	str := metadata.Primitive(metadata.ElemString)
	one := metadata.InstKey([]*metadata.Type{i4, str})
	two := metadata.InstKey([]*metadata.Type{str, i4})
	if one == two {
		t.Fatalf("order must matter")
	}
	if metadata.InstKey([]*metadata.Type{i4}) == one {
		t.Fatalf("length must matter")
	}
}

func TestCachedClassFirstWriterWins(t *testing.T) {
	_, tables := metatest.Linked(metatest.CoreName, metatest.CoreTables(), metadata.OriginCompiled)
	inst := metadata.NewInst(1, []*metadata.Type{metadata.Primitive(metadata.ElemString)}, "k")
	gc := metadata.NewGenericClass(1, &tables.Types[metatest.CoreList], inst)
	if gc.CachedClass() != nil {
		t.Fatalf("slot starts empty")
	}
	if got := gc.SetCachedClass("first"); got != "first" {
		t.Fatalf("first store returned %v", got)
	}
	if got := gc.SetCachedClass("second"); got != "first" {
		t.Fatalf("second store returned %v", got)
	}
	if gc.Type().String() != "System.Collections.Generic.List`1<string>" {
		t.Fatalf("type string = %q", gc.Type().String())
	}
}

func TestModuleFileSchema(t *testing.T) {
	var buf bytes.Buffer
	in := &metadata.ModuleFile{Name: metatest.GameName, Tables: *metatest.GameTables()}
	if err := metadata.WriteModuleFile(&buf, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := metadata.ReadModuleFile(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out.Tables.MethodSpecs) != 3 || out.Tables.Bodies[metatest.GameBoxGet].MaxStack != 1 {
		t.Fatalf("tables not preserved: %+v", out.Tables.MethodSpecs)
	}
	mod, err := out.Module()
	if err != nil || mod.ID != metadata.NewModuleID(metatest.GameName) {
		t.Fatalf("module = %+v, %v", mod, err)
	}

	buf.Reset()
	if err := metadata.WriteModuleFile(&buf, &metadata.ModuleFile{Schema: 9, Name: "x"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := metadata.ReadModuleFile(&buf); !errors.Is(err, metaerr.ErrCorrupt) {
		t.Fatalf("expected schema rejection, got %v", err)
	}
}
