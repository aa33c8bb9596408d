package metadata

import (
	"fmt"

	"fortio.org/safecast"

	"clrmeta/internal/metaerr"
	"clrmeta/internal/token"
)

// Tables holds every row of one module.
// Rows must not be appended to after Link: definitions hand out pointers
// into these slices.
type Tables struct {
	Types        []TypeDef
	Methods      []MethodDef
	Fields       []FieldDef
	TypeRefs     []TypeRef
	AssemblyRefs []AssemblyRef
	MemberRefs   []MemberRef
	TypeSpecs    []TypeSpec
	MethodSpecs  []MethodSpec
	// Bodies is indexed like Methods; entries may be nil.
	Bodies []*MethodBody

	linked bool
}

// Counts are the table row counts.
type Counts struct {
	Types   uint32
	Methods uint32
	Fields  uint32

	TypeRefs     uint32
	AssemblyRefs uint32
	MemberRefs   uint32
	TypeSpecs    uint32
	MethodSpecs  uint32
}

// Counts returns the row counts of every table.
func (t *Tables) Counts() Counts {
	return Counts{
		Types:        rowCount(len(t.Types)),
		Methods:      rowCount(len(t.Methods)),
		Fields:       rowCount(len(t.Fields)),
		TypeRefs:     rowCount(len(t.TypeRefs)),
		AssemblyRefs: rowCount(len(t.AssemblyRefs)),
		MemberRefs:   rowCount(len(t.MemberRefs)),
		TypeSpecs:    rowCount(len(t.TypeSpecs)),
		MethodSpecs:  rowCount(len(t.MethodSpecs)),
	}
}

func rowCount(n int) uint32 {
	c, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("row count overflow: %w", err))
	}
	return c
}

// Linked reports whether Link has completed.
func (t *Tables) Linked() bool { return t.linked }

// Link assigns definition identities for module, wires owner references and
// builds the open type and method handles. It validates every range and
// declaring-type index against the row counts.
func (t *Tables) Link(module ModuleID) error {
	const op = "link"
	if t.linked {
		return nil
	}
	if !module.IsValid() {
		return metaerr.InvalidArgument(op, "module id is required")
	}
	for _, n := range []int{
		len(t.Types), len(t.Methods), len(t.Fields),
		len(t.TypeRefs), len(t.AssemblyRefs), len(t.MemberRefs), len(t.TypeSpecs), len(t.MethodSpecs),
	} {
		if n > token.MaxRow {
			return metaerr.Corrupt(op, "table holds %d rows, more than a token can address", n)
		}
	}
	counts := t.Counts()
	if len(t.Bodies) > len(t.Methods) {
		return metaerr.Corrupt(op, "%d bodies for %d methods", len(t.Bodies), len(t.Methods))
	}

	for i := range t.Types {
		def := &t.Types[i]
		def.ID = DefID{Module: module, Token: token.MustMake(token.TypeDef, uint32(i)+1)}
		if !rangeFits(def.FirstMethod, def.MethodCount, counts.Methods) {
			return metaerr.Corrupt(op, "type %s: methods [%d,+%d) exceed %d rows", def.FullName(), def.FirstMethod, def.MethodCount, counts.Methods)
		}
		if !rangeFits(def.FirstField, def.FieldCount, counts.Fields) {
			return metaerr.Corrupt(op, "type %s: fields [%d,+%d) exceed %d rows", def.FullName(), def.FirstField, def.FieldCount, counts.Fields)
		}
		if def.Generic != nil {
			def.Generic.Owner = def.ID
			def.Generic.IsMethod = false
		}
		def.self = newDefType(def)
	}

	for i := range t.Methods {
		def := &t.Methods[i]
		def.ID = DefID{Module: module, Token: token.MustMake(token.Method, uint32(i)+1)}
		if def.DeclaringType >= counts.Types {
			return metaerr.Corrupt(op, "method %s: declaring type %d exceeds %d rows", def.Name, def.DeclaringType, counts.Types)
		}
		def.owner = &t.Types[def.DeclaringType]
		if def.Generic != nil {
			def.Generic.Owner = def.ID
			def.Generic.IsMethod = true
		}
		def.handle = &Method{Def: def, DeclaringType: def.owner.self}
	}

	for i := range t.Fields {
		def := &t.Fields[i]
		def.ID = DefID{Module: module, Token: token.MustMake(token.Field, uint32(i)+1)}
		if def.DeclaringType >= counts.Types {
			return metaerr.Corrupt(op, "field %s: declaring type %d exceeds %d rows", def.Name, def.DeclaringType, counts.Types)
		}
		def.owner = &t.Types[def.DeclaringType]
	}

	t.linked = true
	return nil
}

func rangeFits(first, count, rows uint32) bool {
	return uint64(first)+uint64(count) <= uint64(rows)
}

// Body returns the stored body of the method at raw index i.
func (t *Tables) Body(i uint32) (*MethodBody, bool) {
	if uint64(i) >= uint64(len(t.Bodies)) {
		return nil, false
	}
	body := t.Bodies[i]
	return body, body != nil
}
