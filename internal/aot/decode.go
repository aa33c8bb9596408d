package aot

import (
	"bytes"
	"io"
	"math"
	"os"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"

	"clrmeta/internal/metadata"
	"clrmeta/internal/metaerr"
)

// Window is one decoded compiled module. Its tables are sub-slices of the
// global arrays and must not be modified.
type Window struct {
	Desc   ImageDesc
	Module metadata.Module
	Tables *metadata.Tables
}

// Metadata is a decoded, linked blob.
type Metadata struct {
	Windows []*Window
	byName  map[string]*Window
}

// Window returns the window of the named module.
func (m *Metadata) Window(name string) (*Window, bool) {
	w, ok := m.byName[name]
	return w, ok
}

// Encode writes p as msgpack.
func Encode(w io.Writer, p *Payload) error {
	if p.Schema == 0 {
		p.Schema = Schema
	}
	if err := msgpack.NewEncoder(w).Encode(p); err != nil {
		return metaerr.New("aot-encode", metaerr.KindCorrupt).Cause(err).Build()
	}
	return nil
}

// Load reads and decodes the blob at path.
func Load(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode parses a blob and builds one linked window per image.
func Decode(data []byte) (*Metadata, error) {
	const op = "aot-decode"
	var p Payload
	if err := msgpack.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return nil, metaerr.New(op, metaerr.KindCorrupt).Cause(err).Detail("malformed blob").Build()
	}
	if p.Schema != Schema {
		return nil, metaerr.Corrupt(op, "schema %d, expected %d", p.Schema, Schema)
	}
	d := &decoder{
		p:       &p,
		types:   make([]metadata.TypeDef, len(p.Types)),
		methods: make([]metadata.MethodDef, len(p.Methods)),
		fields:  make([]metadata.FieldDef, len(p.Fields)),
	}
	if err := d.claimWindows(); err != nil {
		return nil, err
	}

	md := &Metadata{byName: make(map[string]*Window, len(p.Images))}
	for _, desc := range p.Images {
		w, err := d.window(desc)
		if err != nil {
			return nil, metaerr.InModule(err, desc.Name)
		}
		if _, dup := md.byName[desc.Name]; dup {
			return nil, metaerr.Corrupt(op, "image %q appears twice", desc.Name)
		}
		md.byName[desc.Name] = w
		md.Windows = append(md.Windows, w)
	}
	return md, nil
}

func rows(n int) uint32 {
	c, err := safecast.Conv[uint32](n)
	if err != nil {
		return math.MaxUint32
	}
	return c
}

type decoder struct {
	p       *Payload
	types   []metadata.TypeDef
	methods []metadata.MethodDef
	fields  []metadata.FieldDef
}

type span struct{ start, count uint32 }

func (s span) contains(first, count uint32) bool {
	return first >= s.start && uint64(first)+uint64(count) <= uint64(s.start)+uint64(s.count)
}

// claimWindows checks every window against the global arrays and rejects
// overlapping windows.
func (d *decoder) claimWindows() error {
	const op = "aot-decode"
	typeOwner := make([]int, len(d.types))
	methodOwner := make([]int, len(d.methods))
	fieldOwner := make([]int, len(d.fields))
	for i, desc := range d.p.Images {
		if desc.Name == "" {
			return metaerr.Corrupt(op, "image %d has no name", i)
		}
		for _, c := range []struct {
			table  string
			owner  []int
			window span
		}{
			{"type", typeOwner, span{desc.TypeStart, desc.TypeCount}},
			{"method", methodOwner, span{desc.MethodStart, desc.MethodCount}},
			{"field", fieldOwner, span{desc.FieldStart, desc.FieldCount}},
		} {
			if uint64(c.window.start)+uint64(c.window.count) > uint64(len(c.owner)) {
				return metaerr.Corrupt(op, "image %s: %s window [%d,+%d) exceeds %d rows",
					desc.Name, c.table, c.window.start, c.window.count, len(c.owner))
			}
			for r := c.window.start; r < c.window.start+c.window.count; r++ {
				if c.owner[r] != 0 {
					return metaerr.Corrupt(op, "image %s: %s row %d already belongs to image %d",
						desc.Name, c.table, r, c.owner[r]-1)
				}
				c.owner[r] = i + 1
			}
		}
	}
	return nil
}

func (d *decoder) str(i uint32) (string, error) {
	if uint64(i) >= uint64(len(d.p.Strings)) {
		return "", metaerr.OutOfRange("aot-decode", "string", i, rows(len(d.p.Strings)))
	}
	return d.p.Strings[i], nil
}

func (d *decoder) container(i uint32) (*metadata.GenericContainer, error) {
	if i == 0 {
		return nil, nil
	}
	if uint64(i) > uint64(len(d.p.Containers)) {
		return nil, metaerr.OutOfRange("aot-decode", "container", i-1, rows(len(d.p.Containers)))
	}
	row := d.p.Containers[i-1]
	// each definition gets its own container: Link records the owner on it
	c := &metadata.GenericContainer{Params: make([]metadata.GenericParam, len(row.Params))}
	for n, name := range row.Params {
		s, err := d.str(name)
		if err != nil {
			return nil, err
		}
		c.Params[n].Name = s
	}
	return c, nil
}

func (d *decoder) window(desc ImageDesc) (*Window, error) {
	const op = "aot-decode"
	types := span{desc.TypeStart, desc.TypeCount}
	methods := span{desc.MethodStart, desc.MethodCount}
	fields := span{desc.FieldStart, desc.FieldCount}

	for g := types.start; g < types.start+types.count; g++ {
		row := d.p.Types[g]
		def := &d.types[g]
		var err error
		if def.Namespace, err = d.str(row.Namespace); err != nil {
			return nil, err
		}
		if def.Name, err = d.str(row.Name); err != nil {
			return nil, err
		}
		if def.Generic, err = d.container(row.Generic); err != nil {
			return nil, err
		}
		def.Flags = row.Flags
		if row.MethodCount > 0 {
			if !methods.contains(row.FirstMethod, row.MethodCount) {
				return nil, metaerr.Corrupt(op, "type %s: methods [%d,+%d) outside its image", def.Name, row.FirstMethod, row.MethodCount)
			}
			def.FirstMethod, def.MethodCount = row.FirstMethod-methods.start, row.MethodCount
		}
		if row.FieldCount > 0 {
			if !fields.contains(row.FirstField, row.FieldCount) {
				return nil, metaerr.Corrupt(op, "type %s: fields [%d,+%d) outside its image", def.Name, row.FirstField, row.FieldCount)
			}
			def.FirstField, def.FieldCount = row.FirstField-fields.start, row.FieldCount
		}
	}

	for g := methods.start; g < methods.start+methods.count; g++ {
		row := d.p.Methods[g]
		def := &d.methods[g]
		var err error
		if def.Name, err = d.str(row.Name); err != nil {
			return nil, err
		}
		if def.Generic, err = d.container(row.Generic); err != nil {
			return nil, err
		}
		if !types.contains(row.DeclaringType, 1) {
			return nil, metaerr.Corrupt(op, "method %s: declaring type %d outside its image", def.Name, row.DeclaringType)
		}
		def.DeclaringType = row.DeclaringType - types.start
		def.Flags = row.Flags
		def.ParamCount = row.ParamCount
	}

	for g := fields.start; g < fields.start+fields.count; g++ {
		row := d.p.Fields[g]
		def := &d.fields[g]
		var err error
		if def.Name, err = d.str(row.Name); err != nil {
			return nil, err
		}
		if !types.contains(row.DeclaringType, 1) {
			return nil, metaerr.Corrupt(op, "field %s: declaring type %d outside its image", def.Name, row.DeclaringType)
		}
		def.DeclaringType = row.DeclaringType - types.start
		def.Flags = row.Flags
		def.Sig = row.Sig
	}

	mod := metadata.Module{ID: metadata.NewModuleID(desc.Name), Name: desc.Name, Origin: metadata.OriginCompiled}
	if desc.MVID != "" {
		id, err := metadata.ParseModuleID(desc.MVID)
		if err != nil {
			return nil, metaerr.New(op, metaerr.KindCorrupt).Cause(err).Build()
		}
		mod.ID = id
	}

	te, me, fe := types.start+types.count, methods.start+methods.count, fields.start+fields.count
	tables := &metadata.Tables{
		Types:   d.types[types.start:te:te],
		Methods: d.methods[methods.start:me:me],
		Fields:  d.fields[fields.start:fe:fe],
	}
	if err := tables.Link(mod.ID); err != nil {
		return nil, err
	}
	return &Window{Desc: desc, Module: mod, Tables: tables}, nil
}
