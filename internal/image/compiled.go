package image

import (
	"clrmeta/internal/aot"
	"clrmeta/internal/metadata"
	"clrmeta/internal/metaerr"
	"clrmeta/internal/token"
)

// Compiled adapts one window of ahead-of-time tables to the Image interface.
// Reference tables were flattened when the tables were produced, so tokens
// into them never resolve here.
type Compiled struct {
	base
	window *aot.Window
}

var _ Image = (*Compiled)(nil)

// NewCompiled wraps a decoded window. The window's tables are shared, not
// copied.
func NewCompiled(w *aot.Window, r Resolver) (*Compiled, error) {
	if w == nil || w.Tables == nil {
		return nil, metaerr.InvalidArgument("new-image", "nil compiled window")
	}
	if !w.Tables.Linked() {
		return nil, metaerr.InvalidArgument("new-image", "compiled window %s is not linked", w.Module.Name)
	}
	return &Compiled{
		base:   base{mod: w.Module, tables: w.Tables, resolver: r},
		window: w,
	}, nil
}

// Window returns the underlying table window.
func (img *Compiled) Window() *aot.Window { return img.window }

// GetMethodBody always reports absent: compiled methods run native code.
func (img *Compiled) GetMethodBody(token.Token) (*metadata.MethodBody, bool) {
	return nil, false
}

// FindTypeByName scans the type table. Cross-module name lookups are rare
// enough that no index is kept.
func (img *Compiled) FindTypeByName(namespace, name string, strict bool) (*metadata.TypeDef, error) {
	types := img.tables.Types
	for i := range types {
		if types[i].Name == name && types[i].Namespace == namespace {
			return &types[i], nil
		}
	}
	return img.notFound(namespace, name, strict)
}

func (img *Compiled) rejectRef(op string, tok token.Token) error {
	switch tok.Kind() {
	case token.TypeRef, token.AssemblyRef, token.MemberRef, token.TypeSpec, token.MethodSpec:
		return metaerr.New(op, metaerr.KindNotFound).
			Module(img.mod.Name).
			Token(tok).
			Detail("compiled modules carry no %s table", tok.Kind()).
			Build()
	}
	return nil
}

func (img *Compiled) ResolveTypeFromToken(tok token.Token, class *metadata.GenericContainer, ctx metadata.GenericContext) (*metadata.Type, error) {
	if err := img.rejectRef("resolve-type", tok); err != nil {
		return nil, err
	}
	return img.resolver.ResolveType(img, tok, class, ctx)
}

func (img *Compiled) ResolveMethodFromToken(tok token.Token, class, method *metadata.GenericContainer, ctx metadata.GenericContext) (*metadata.Method, error) {
	if err := img.rejectRef("resolve-method", tok); err != nil {
		return nil, err
	}
	return img.resolver.ResolveMethod(img, tok, class, method, ctx)
}

func (img *Compiled) ResolveFieldFromToken(tok token.Token, class *metadata.GenericContainer, ctx metadata.GenericContext) (*metadata.FieldRef, error) {
	if err := img.rejectRef("resolve-field", tok); err != nil {
		return nil, err
	}
	return img.resolver.ResolveField(img, tok, class, ctx)
}
