package aot

import (
	"fortio.org/safecast"

	"clrmeta/internal/metadata"
	"clrmeta/internal/metaerr"
)

// Builder flattens per-module definition tables into one Payload. It stands
// in for the ahead-of-time compiler in tools and tests.
type Builder struct {
	p       Payload
	strings map[string]uint32
	names   map[string]bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		p:       Payload{Schema: Schema},
		strings: make(map[string]uint32),
		names:   make(map[string]bool),
	}
}

// Add appends one module. Compiled modules carry only definition tables;
// method bodies are ignored.
func (b *Builder) Add(name, mvid string, t *metadata.Tables) error {
	const op = "aot-build"
	if name == "" || t == nil {
		return metaerr.InvalidArgument(op, "module name and tables are required")
	}
	if b.names[name] {
		return metaerr.InvalidArgument(op, "module %q added twice", name)
	}
	if len(t.TypeRefs)+len(t.AssemblyRefs)+len(t.MemberRefs)+len(t.TypeSpecs)+len(t.MethodSpecs) > 0 {
		return metaerr.InvalidArgument(op, "module %q: compiled modules cannot carry reference tables", name)
	}

	typeStart, err := b.count(op, len(b.p.Types))
	if err != nil {
		return err
	}
	methodStart, err := b.count(op, len(b.p.Methods))
	if err != nil {
		return err
	}
	fieldStart, err := b.count(op, len(b.p.Fields))
	if err != nil {
		return err
	}
	counts := t.Counts()
	desc := ImageDesc{
		Name:        name,
		MVID:        mvid,
		TypeStart:   typeStart,
		TypeCount:   counts.Types,
		MethodStart: methodStart,
		MethodCount: counts.Methods,
		FieldStart:  fieldStart,
		FieldCount:  counts.Fields,
	}

	for i := range t.Types {
		def := &t.Types[i]
		row := TypeRow{
			Namespace:   b.intern(def.Namespace),
			Name:        b.intern(def.Name),
			Flags:       def.Flags,
			Generic:     b.container(def.Generic),
			MethodCount: def.MethodCount,
			FieldCount:  def.FieldCount,
		}
		if def.MethodCount > 0 {
			row.FirstMethod = def.FirstMethod + methodStart
		}
		if def.FieldCount > 0 {
			row.FirstField = def.FirstField + fieldStart
		}
		b.p.Types = append(b.p.Types, row)
	}
	for i := range t.Methods {
		def := &t.Methods[i]
		b.p.Methods = append(b.p.Methods, MethodRow{
			Name:          b.intern(def.Name),
			DeclaringType: def.DeclaringType + typeStart,
			Flags:         def.Flags,
			ParamCount:    def.ParamCount,
			Generic:       b.container(def.Generic),
		})
	}
	for i := range t.Fields {
		def := &t.Fields[i]
		b.p.Fields = append(b.p.Fields, FieldRow{
			Name:          b.intern(def.Name),
			DeclaringType: def.DeclaringType + typeStart,
			Flags:         def.Flags,
			Sig:           def.Sig,
		})
	}
	b.p.Images = append(b.p.Images, desc)
	b.names[name] = true
	return nil
}

// Payload returns the accumulated payload. The builder must not be used
// afterwards.
func (b *Builder) Payload() *Payload {
	return &b.p
}

func (b *Builder) count(op string, n int) (uint32, error) {
	c, err := safecast.Conv[uint32](n)
	if err != nil {
		return 0, metaerr.New(op, metaerr.KindInvalidArgument).Cause(err).Build()
	}
	return c, nil
}

func (b *Builder) intern(s string) uint32 {
	if id, ok := b.strings[s]; ok {
		return id
	}
	id := rows(len(b.p.Strings))
	b.p.Strings = append(b.p.Strings, s)
	b.strings[s] = id
	return id
}

func (b *Builder) container(c *metadata.GenericContainer) uint32 {
	if c.Count() == 0 {
		return 0
	}
	row := ContainerRow{Params: make([]uint32, len(c.Params))}
	for i, p := range c.Params {
		row.Params[i] = b.intern(p.Name)
	}
	b.p.Containers = append(b.p.Containers, row)
	return rows(len(b.p.Containers))
}
