package image

import (
	"errors"
	"testing"

	"clrmeta/internal/aot/aottest"
	"clrmeta/internal/metadata"
	"clrmeta/internal/metadata/metatest"
	"clrmeta/internal/metaerr"
	"clrmeta/internal/token"
)

// countingResolver records delegated calls and resolves TypeDef tokens only.
type countingResolver struct{ calls int }

func (r *countingResolver) ResolveType(img Image, tok token.Token, _ *metadata.GenericContainer, _ metadata.GenericContext) (*metadata.Type, error) {
	r.calls++
	raw, ok := tok.RawIndex()
	if tok.Kind() != token.TypeDef || !ok {
		return nil, metaerr.NotFound("resolve-type", "unsupported %s", tok)
	}
	def, err := img.GetTypeDefinition(raw)
	if err != nil {
		return nil, err
	}
	return def.Type(), nil
}

func (r *countingResolver) ResolveMethod(Image, token.Token, *metadata.GenericContainer, *metadata.GenericContainer, metadata.GenericContext) (*metadata.Method, error) {
	r.calls++
	return nil, metaerr.NotFound("resolve-method", "unsupported")
}

func (r *countingResolver) ResolveField(Image, token.Token, *metadata.GenericContainer, metadata.GenericContext) (*metadata.FieldRef, error) {
	r.calls++
	return nil, metaerr.NotFound("resolve-field", "unsupported")
}

func newGame(t *testing.T, r Resolver) *Interpreted {
	t.Helper()
	mod := metadata.Module{ID: metadata.NewModuleID(metatest.GameName), Name: metatest.GameName, Origin: metadata.OriginInterpreted}
	img, err := NewInterpreted(mod, metatest.GameTables(), r)
	if err != nil {
		t.Fatalf("NewInterpreted: %v", err)
	}
	return img
}

func newCore(t *testing.T, r Resolver) *Compiled {
	t.Helper()
	img, err := NewCompiled(aottest.CoreWindow(), r)
	if err != nil {
		t.Fatalf("NewCompiled: %v", err)
	}
	return img
}

func TestInterpretedBodies(t *testing.T) {
	img := newGame(t, &countingResolver{})
	body, ok := img.GetMethodBody(token.MustMake(token.Method, metatest.GamePlayerUpdate+1))
	if !ok || body.MaxStack != 2 {
		t.Fatalf("expected Update body, got %+v %v", body, ok)
	}
	if _, ok := img.GetMethodBody(token.MustMake(token.Method, 99)); ok {
		t.Fatalf("out-of-range method must have no body")
	}
	if _, ok := img.GetMethodBody(token.MustMake(token.TypeDef, 1)); ok {
		t.Fatalf("non-method token must have no body")
	}
	if _, ok := img.GetMethodBody(token.MustMake(token.Method, 0)); ok {
		t.Fatalf("nil token must have no body")
	}
}

func TestCompiledHasNoBodies(t *testing.T) {
	img := newCore(t, &countingResolver{})
	if img.Origin() != metadata.OriginCompiled {
		t.Fatalf("unexpected origin %s", img.Origin())
	}
	if _, ok := img.GetMethodBody(token.MustMake(token.Method, metatest.CoreListAdd+1)); ok {
		t.Fatalf("compiled modules never yield bodies")
	}
}

func TestDefinitionBounds(t *testing.T) {
	for _, img := range []Image{newGame(t, &countingResolver{}), newCore(t, &countingResolver{})} {
		counts := img.Counts()
		if _, err := img.GetTypeDefinition(counts.Types); !metaerr.IsNotFound(err) {
			t.Fatalf("%s: type row == count must be not found, got %v", img.Module().Name, err)
		}
		if _, err := img.GetMethodDefinition(counts.Methods + 5); !metaerr.IsNotFound(err) {
			t.Fatalf("%s: method beyond count must be not found, got %v", img.Module().Name, err)
		}
		if _, err := img.GetFieldDefinition(counts.Fields); !metaerr.IsNotFound(err) {
			t.Fatalf("%s: field row == count must be not found, got %v", img.Module().Name, err)
		}
		def, err := img.GetTypeDefinition(counts.Types - 1)
		if err != nil || def == nil {
			t.Fatalf("%s: last type row: %v", img.Module().Name, err)
		}
	}
	var e *metaerr.Error
	_, err := newCore(t, nil).GetTypeDefinition(9)
	if !errors.As(err, &e) || e.Module != metatest.CoreName {
		t.Fatalf("expected module context on error, got %v", err)
	}
}

func TestFindTypeByName(t *testing.T) {
	for _, img := range []Image{newGame(t, nil), newCore(t, nil)} {
		name := img.Module().Name
		var ns, typ string
		if name == metatest.GameName {
			ns, typ = "Game", "Box`1"
		} else {
			ns, typ = "System", "Int32"
		}
		def, err := img.FindTypeByName(ns, typ, true)
		if err != nil || def.Name != typ {
			t.Fatalf("%s: FindTypeByName(%s.%s): %v %v", name, ns, typ, def, err)
		}
		def, err = img.FindTypeByName("System", "Missing", false)
		if def != nil || err != nil {
			t.Fatalf("%s: silent miss must return nil, nil; got %v %v", name, def, err)
		}
		if _, err := img.FindTypeByName("System", "Missing", true); !metaerr.IsNotFound(err) {
			t.Fatalf("%s: strict miss must be not found, got %v", name, err)
		}
		// namespace and name are matched separately
		if def, _ := img.FindTypeByName("", ns+"."+typ, false); def != nil {
			t.Fatalf("%s: joined name must not match", name)
		}
	}
}

func TestGenericContainer(t *testing.T) {
	img := newCore(t, nil)
	c, ok := img.GetGenericContainer(token.MustMake(token.TypeDef, metatest.CoreList+1))
	if !ok || c.Count() != 1 || c.IsMethod {
		t.Fatalf("List`1 container: %+v %v", c, ok)
	}
	c, ok = img.GetGenericContainer(token.MustMake(token.Method, metatest.CoreMathMax+1))
	if !ok || !c.IsMethod || c.Params[0].Name != "T" {
		t.Fatalf("Max<T> container: %+v %v", c, ok)
	}
	if _, ok := img.GetGenericContainer(token.MustMake(token.TypeDef, metatest.CoreObject+1)); ok {
		t.Fatalf("Object is not generic")
	}
	if _, ok := img.GetGenericContainer(token.MustMake(token.Field, 1)); ok {
		t.Fatalf("fields have no container")
	}
}

func TestCompiledRejectsReferenceTokens(t *testing.T) {
	r := &countingResolver{}
	img := newCore(t, r)
	for _, tok := range []token.Token{
		token.MustMake(token.TypeRef, 1),
		token.MustMake(token.TypeSpec, 1),
		token.MustMake(token.MemberRef, 1),
	} {
		if _, err := img.ResolveTypeFromToken(tok, nil, metadata.GenericContext{}); !metaerr.IsNotFound(err) {
			t.Fatalf("%s: expected not found, got %v", tok, err)
		}
	}
	if _, err := img.ResolveMethodFromToken(token.MustMake(token.MethodSpec, 1), nil, nil, metadata.GenericContext{}); !metaerr.IsNotFound(err) {
		t.Fatalf("method spec: expected not found, got %v", err)
	}
	if r.calls != 0 {
		t.Fatalf("reference tokens must not reach the resolver, got %d calls", r.calls)
	}
	typ, err := img.ResolveTypeFromToken(token.MustMake(token.TypeDef, metatest.CoreInt32+1), nil, metadata.GenericContext{})
	if err != nil || typ.Kind != metadata.ElemValueType {
		t.Fatalf("Int32: %v %v", typ, err)
	}
	if r.calls != 1 {
		t.Fatalf("definition tokens must reach the resolver")
	}
}

func TestNewInterpretedValidates(t *testing.T) {
	mod := metadata.Module{ID: metadata.NewModuleID("x"), Name: "x", Origin: metadata.OriginCompiled}
	if _, err := NewInterpreted(mod, metatest.GameTables(), nil); !errors.Is(err, metaerr.ErrInvalidArgument) {
		t.Fatalf("compiled origin: expected invalid argument, got %v", err)
	}
	mod.Origin = metadata.OriginInterpreted
	if _, err := NewInterpreted(mod, nil, nil); !errors.Is(err, metaerr.ErrInvalidArgument) {
		t.Fatalf("nil tables: expected invalid argument, got %v", err)
	}
	bad := metatest.GameTables()
	bad.Methods[0].DeclaringType = 50
	_, err := NewInterpreted(mod, bad, nil)
	var e *metaerr.Error
	if !errors.As(err, &e) || e.Kind != metaerr.KindCorrupt || e.Module != "x" {
		t.Fatalf("bad tables: expected corrupt error in module x, got %v", err)
	}
}
