package image

import (
	"clrmeta/internal/metadata"
	"clrmeta/internal/metaerr"
	"clrmeta/internal/token"
)

type typeName struct {
	namespace string
	name      string
}

// Interpreted is the image of a module whose metadata and bodies are owned
// by the runtime.
type Interpreted struct {
	base
	byName map[typeName]*metadata.TypeDef
}

var _ Image = (*Interpreted)(nil)

// NewInterpreted links tables for mod (if not yet linked) and indexes its
// types by name.
func NewInterpreted(mod metadata.Module, tables *metadata.Tables, r Resolver) (*Interpreted, error) {
	if tables == nil {
		return nil, metaerr.InvalidArgument("new-image", "module %s has no tables", mod.Name)
	}
	if mod.Origin != metadata.OriginInterpreted {
		return nil, metaerr.InvalidArgument("new-image", "module %s is %s, not interpreted", mod.Name, mod.Origin)
	}
	if err := tables.Link(mod.ID); err != nil {
		return nil, metaerr.InModule(err, mod.Name)
	}
	img := &Interpreted{
		base:   base{mod: mod, tables: tables, resolver: r},
		byName: make(map[typeName]*metadata.TypeDef, len(tables.Types)),
	}
	for i := range tables.Types {
		def := &tables.Types[i]
		key := typeName{def.Namespace, def.Name}
		if _, dup := img.byName[key]; !dup {
			img.byName[key] = def
		}
	}
	return img, nil
}

// GetMethodBody returns the stored body for a Method token.
func (img *Interpreted) GetMethodBody(tok token.Token) (*metadata.MethodBody, bool) {
	if tok.Kind() != token.Method {
		return nil, false
	}
	raw, ok := tok.RawIndex()
	if !ok {
		return nil, false
	}
	return img.tables.Body(raw)
}

// FindTypeByName looks the type up in the name index.
func (img *Interpreted) FindTypeByName(namespace, name string, strict bool) (*metadata.TypeDef, error) {
	if def, ok := img.byName[typeName{namespace, name}]; ok {
		return def, nil
	}
	return img.notFound(namespace, name, strict)
}

func (img *Interpreted) ResolveTypeFromToken(tok token.Token, class *metadata.GenericContainer, ctx metadata.GenericContext) (*metadata.Type, error) {
	return img.resolver.ResolveType(img, tok, class, ctx)
}

func (img *Interpreted) ResolveMethodFromToken(tok token.Token, class, method *metadata.GenericContainer, ctx metadata.GenericContext) (*metadata.Method, error) {
	return img.resolver.ResolveMethod(img, tok, class, method, ctx)
}

func (img *Interpreted) ResolveFieldFromToken(tok token.Token, class *metadata.GenericContainer, ctx metadata.GenericContext) (*metadata.FieldRef, error) {
	return img.resolver.ResolveField(img, tok, class, ctx)
}
