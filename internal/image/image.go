// Package image exposes one module's metadata through a capability set
// shared by interpreted modules and ahead-of-time compiled modules.
//
// Both variants answer bounds-checked definition lookups and delegate token
// resolution to an injected Resolver. The only difference visible to callers
// is that compiled modules never yield a method body.
package image

import (
	"fortio.org/safecast"

	"clrmeta/internal/metadata"
	"clrmeta/internal/metaerr"
	"clrmeta/internal/token"
)

// Image is the per-module metadata accessor.
type Image interface {
	Module() metadata.Module
	Origin() metadata.Origin
	Counts() metadata.Counts

	// GetMethodBody returns the bytecode of the Method token, if any.
	GetMethodBody(tok token.Token) (*metadata.MethodBody, bool)

	GetTypeDefinition(raw uint32) (*metadata.TypeDef, error)
	GetMethodDefinition(raw uint32) (*metadata.MethodDef, error)
	GetFieldDefinition(raw uint32) (*metadata.FieldDef, error)
	// GetGenericContainer returns the parameter list of a TypeDef or Method
	// token when the definition is generic.
	GetGenericContainer(tok token.Token) (*metadata.GenericContainer, bool)
	// FindTypeByName returns nil, nil on a miss unless strict is set, in
	// which case the miss is a NotFound error.
	FindTypeByName(namespace, name string, strict bool) (*metadata.TypeDef, error)

	TypeRef(raw uint32) (*metadata.TypeRef, error)
	AssemblyRef(raw uint32) (*metadata.AssemblyRef, error)
	MemberRef(raw uint32) (*metadata.MemberRef, error)
	TypeSpec(raw uint32) (*metadata.TypeSpec, error)
	MethodSpec(raw uint32) (*metadata.MethodSpec, error)

	ResolveTypeFromToken(tok token.Token, class *metadata.GenericContainer, ctx metadata.GenericContext) (*metadata.Type, error)
	ResolveMethodFromToken(tok token.Token, class, method *metadata.GenericContainer, ctx metadata.GenericContext) (*metadata.Method, error)
	ResolveFieldFromToken(tok token.Token, class *metadata.GenericContainer, ctx metadata.GenericContext) (*metadata.FieldRef, error)
}

// Resolver implements the token-resolution protocol on behalf of images.
type Resolver interface {
	ResolveType(img Image, tok token.Token, class *metadata.GenericContainer, ctx metadata.GenericContext) (*metadata.Type, error)
	ResolveMethod(img Image, tok token.Token, class, method *metadata.GenericContainer, ctx metadata.GenericContext) (*metadata.Method, error)
	ResolveField(img Image, tok token.Token, class *metadata.GenericContainer, ctx metadata.GenericContext) (*metadata.FieldRef, error)
}

// base holds what both variants share: linked tables and row accessors.
type base struct {
	mod      metadata.Module
	tables   *metadata.Tables
	resolver Resolver
}

func (b *base) Module() metadata.Module { return b.mod }
func (b *base) Origin() metadata.Origin { return b.mod.Origin }
func (b *base) Counts() metadata.Counts { return b.tables.Counts() }

func (b *base) GetTypeDefinition(raw uint32) (*metadata.TypeDef, error) {
	return row(b, "type-definition", "TypeDef", b.tables.Types, raw)
}

func (b *base) GetMethodDefinition(raw uint32) (*metadata.MethodDef, error) {
	return row(b, "method-definition", "Method", b.tables.Methods, raw)
}

func (b *base) GetFieldDefinition(raw uint32) (*metadata.FieldDef, error) {
	return row(b, "field-definition", "Field", b.tables.Fields, raw)
}

func (b *base) TypeRef(raw uint32) (*metadata.TypeRef, error) {
	return row(b, "type-ref", "TypeRef", b.tables.TypeRefs, raw)
}

func (b *base) AssemblyRef(raw uint32) (*metadata.AssemblyRef, error) {
	return row(b, "assembly-ref", "AssemblyRef", b.tables.AssemblyRefs, raw)
}

func (b *base) MemberRef(raw uint32) (*metadata.MemberRef, error) {
	return row(b, "member-ref", "MemberRef", b.tables.MemberRefs, raw)
}

func (b *base) TypeSpec(raw uint32) (*metadata.TypeSpec, error) {
	return row(b, "type-spec", "TypeSpec", b.tables.TypeSpecs, raw)
}

func (b *base) MethodSpec(raw uint32) (*metadata.MethodSpec, error) {
	return row(b, "method-spec", "MethodSpec", b.tables.MethodSpecs, raw)
}

// row is the single bounds check in front of every table dereference.
func row[T any](b *base, op, table string, rows []T, raw uint32) (*T, error) {
	if uint64(raw) >= uint64(len(rows)) {
		n, cerr := safecast.Conv[uint32](len(rows))
		if cerr != nil {
			n = token.MaxRow
		}
		err := metaerr.OutOfRange(op, table, raw, n)
		err.Module = b.mod.Name
		return nil, err
	}
	return &rows[raw], nil
}

func (b *base) GetGenericContainer(tok token.Token) (*metadata.GenericContainer, bool) {
	raw, ok := tok.RawIndex()
	if !ok {
		return nil, false
	}
	var c *metadata.GenericContainer
	switch tok.Kind() {
	case token.TypeDef:
		def, err := b.GetTypeDefinition(raw)
		if err != nil {
			return nil, false
		}
		c = def.Generic
	case token.Method:
		def, err := b.GetMethodDefinition(raw)
		if err != nil {
			return nil, false
		}
		c = def.Generic
	}
	if c.Count() == 0 {
		return nil, false
	}
	return c, true
}

func (b *base) notFound(namespace, name string, strict bool) (*metadata.TypeDef, error) {
	if !strict {
		return nil, nil
	}
	full := name
	if namespace != "" {
		full = namespace + "." + name
	}
	return nil, metaerr.New("find-type", metaerr.KindNotFound).
		Module(b.mod.Name).
		Detail("type %s not found", full).
		Build()
}
