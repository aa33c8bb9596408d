package aot

import (
	"bytes"
	"errors"
	"testing"

	"clrmeta/internal/metadata"
	"clrmeta/internal/metadata/metatest"
	"clrmeta/internal/metaerr"
	"clrmeta/internal/token"
)

func extraTables() *metadata.Tables {
	return &metadata.Tables{
		Types: []metadata.TypeDef{
			{Namespace: "Extra", Name: "Pair`2", FirstMethod: 0, MethodCount: 1,
				Generic: &metadata.GenericContainer{Params: []metadata.GenericParam{{Name: "A"}, {Name: "B"}}}},
		},
		Methods: []metadata.MethodDef{{Name: "Swap", DeclaringType: 0}},
	}
}

func buildBlob(t *testing.T) []byte {
	t.Helper()
	b := NewBuilder()
	if err := b.Add(metatest.CoreName, "", metatest.CoreTables()); err != nil {
		t.Fatalf("Add core: %v", err)
	}
	if err := b.Add("Extra", "6f1c2d3e-4a5b-4c6d-8e7f-901a2b3c4d5e", extraTables()); err != nil {
		t.Fatalf("Add extra: %v", err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, b.Payload()); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeWindows(t *testing.T) {
	md, err := Decode(buildBlob(t))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(md.Windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(md.Windows))
	}
	core, ok := md.Window(metatest.CoreName)
	if !ok {
		t.Fatalf("core window missing")
	}
	if core.Module.Origin != metadata.OriginCompiled || core.Module.ID != metadata.NewModuleID(metatest.CoreName) {
		t.Fatalf("unexpected core module %+v", core.Module)
	}
	if got := core.Tables.Counts(); got.Types != 4 || got.Methods != 5 || got.Fields != 1 {
		t.Fatalf("unexpected core counts %+v", got)
	}
	list := &core.Tables.Types[metatest.CoreList]
	if list.FullName() != "System.Collections.Generic.List`1" || list.Generic.Count() != 1 {
		t.Fatalf("unexpected list def %+v", list)
	}
	if list.ID.Token != token.MustMake(token.TypeDef, metatest.CoreList+1) {
		t.Fatalf("unexpected list token %s", list.ID.Token)
	}
	add := &core.Tables.Methods[metatest.CoreListAdd]
	if add.Owner() != list {
		t.Fatalf("List.Add owner not linked to List")
	}

	extra, ok := md.Window("Extra")
	if !ok {
		t.Fatalf("extra window missing")
	}
	if extra.Module.ID.String() != "6f1c2d3e-4a5b-4c6d-8e7f-901a2b3c4d5e" {
		t.Fatalf("mvid not used: %s", extra.Module.ID)
	}
	pair := &extra.Tables.Types[0]
	if pair.FirstMethod != 0 || pair.Generic.Params[1].Name != "B" {
		t.Fatalf("global indexes not rebased: %+v", pair)
	}
	swap := &extra.Tables.Methods[0]
	if swap.Owner() != pair || swap.ID.Module != extra.Module.ID {
		t.Fatalf("swap not linked into its own window")
	}
}

func TestBuilderRejectsReferenceTables(t *testing.T) {
	b := NewBuilder()
	err := b.Add(metatest.GameName, "", metatest.GameTables())
	if !errors.Is(err, metaerr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if err := b.Add(metatest.CoreName, "", metatest.CoreTables()); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := b.Add(metatest.CoreName, "", metatest.CoreTables()); err == nil {
		t.Fatalf("expected duplicate module error")
	}
}

func encode(t *testing.T, p *Payload) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := Encode(&buf, p); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeRejectsCorruptBlobs(t *testing.T) {
	valid := func() *Payload {
		b := NewBuilder()
		if err := b.Add(metatest.CoreName, "", metatest.CoreTables()); err != nil {
			t.Fatalf("Add: %v", err)
		}
		return b.Payload()
	}

	cases := []struct {
		name   string
		mutate func(p *Payload)
	}{
		{"schema", func(p *Payload) { p.Schema = 99 }},
		{"window past end", func(p *Payload) { p.Images[0].TypeCount = 10 }},
		{"overlap", func(p *Payload) {
			dup := p.Images[0]
			dup.Name = "Copy"
			p.Images = append(p.Images, dup)
		}},
		{"string index", func(p *Payload) { p.Types[0].Name = 1000 }},
		{"method range", func(p *Payload) { p.Types[0].MethodCount = 9 }},
		{"declaring type", func(p *Payload) { p.Methods[0].DeclaringType = 40 }},
		{"container", func(p *Payload) { p.Types[1].Generic = 7 }},
		{"mvid", func(p *Payload) { p.Images[0].MVID = "not-a-uuid" }},
	}
	for _, tc := range cases {
		p := valid()
		tc.mutate(p)
		_, err := Decode(encode(t, p))
		if !errors.Is(err, metaerr.ErrCorrupt) && !errors.Is(err, metaerr.ErrNotFound) {
			t.Fatalf("%s: expected corrupt or not-found error, got %v", tc.name, err)
		}
	}

	if _, err := Decode([]byte{0xc1}); !errors.Is(err, metaerr.ErrCorrupt) {
		t.Fatalf("garbage: expected corrupt, got %v", err)
	}
}
