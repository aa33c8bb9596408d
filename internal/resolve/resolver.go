package resolve

import (
	"clrmeta/internal/generic"
	"clrmeta/internal/image"
	"clrmeta/internal/metadata"
	"clrmeta/internal/metaerr"
	"clrmeta/internal/token"
	"clrmeta/internal/trace"
)

// Locator finds the image of another module.
type Locator interface {
	ImageForAssembly(name string) (image.Image, error)
	ImageForModule(id metadata.ModuleID) (image.Image, error)
}

// Resolver implements image.Resolver on top of an instantiation cache.
type Resolver struct {
	cache   *generic.Cache
	locator Locator
	tracer  trace.Tracer
}

var _ image.Resolver = (*Resolver)(nil)

// New builds a resolver. locator may be nil when no cross-module reference
// will be resolved.
func New(cache *generic.Cache, locator Locator, tracer trace.Tracer) *Resolver {
	if tracer == nil {
		tracer = trace.Nop
	}
	return &Resolver{cache: cache, locator: locator, tracer: tracer}
}

func (r *Resolver) begin(name string, img image.Image, tok token.Token) *trace.Span {
	if !r.tracer.Enabled() {
		return nil
	}
	return trace.Begin(r.tracer, trace.ScopeResolve, name, 0).
		WithExtra("module", img.Module().Name).
		WithExtra("token", tok.Hex())
}

func rawIndex(op string, img image.Image, tok token.Token) (uint32, error) {
	raw, ok := tok.RawIndex()
	if !ok {
		return 0, metaerr.New(op, metaerr.KindNotFound).Module(img.Module().Name).Token(tok).Detail("nil row").Build()
	}
	return raw, nil
}

// ResolveType resolves a TypeDef, TypeRef or TypeSpec token.
func (r *Resolver) ResolveType(img image.Image, tok token.Token, class *metadata.GenericContainer, ctx metadata.GenericContext) (typ *metadata.Type, err error) {
	span := r.begin("resolve-type", img, tok)
	defer func() { span.EndErr(err) }()

	typ, err = r.resolveType(img, tok, class, nil, ctx)
	if err != nil {
		return nil, metaerr.WithContext(err, img.Module().Name, tok)
	}
	return typ, nil
}

func (r *Resolver) resolveType(img image.Image, tok token.Token, class, method *metadata.GenericContainer, ctx metadata.GenericContext) (*metadata.Type, error) {
	const op = "resolve-type"
	switch tok.Kind() {
	case token.TypeDef, token.TypeRef:
		def, err := r.typeDef(img, tok)
		if err != nil {
			return nil, err
		}
		return def.Type(), nil
	case token.TypeSpec:
		raw, err := rawIndex(op, img, tok)
		if err != nil {
			return nil, err
		}
		spec, err := img.TypeSpec(raw)
		if err != nil {
			return nil, err
		}
		return r.typeFromSig(img, &spec.Sig, class, method, ctx)
	}
	return nil, metaerr.New(op, metaerr.KindNotFound).Token(tok).Detail("%s tokens do not name types", tok.Kind()).Build()
}

// typeDef resolves a TypeDef or TypeRef token to its definition.
func (r *Resolver) typeDef(img image.Image, tok token.Token) (*metadata.TypeDef, error) {
	const op = "resolve-type"
	raw, err := rawIndex(op, img, tok)
	if err != nil {
		return nil, err
	}
	switch tok.Kind() {
	case token.TypeDef:
		return img.GetTypeDefinition(raw)
	case token.TypeRef:
		ref, err := img.TypeRef(raw)
		if err != nil {
			return nil, err
		}
		target, err := r.scope(img, ref.Scope)
		if err != nil {
			return nil, err
		}
		return target.FindTypeByName(ref.Namespace, ref.Name, true)
	}
	return nil, metaerr.New(op, metaerr.KindNotFound).Token(tok).Detail("expected TypeDef or TypeRef").Build()
}

// scope returns the image named by a TypeRef resolution scope.
func (r *Resolver) scope(img image.Image, scope token.Token) (image.Image, error) {
	const op = "resolve-scope"
	switch scope.Kind() {
	case token.Module:
		return img, nil
	case token.AssemblyRef:
		raw, err := rawIndex(op, img, scope)
		if err != nil {
			return nil, err
		}
		ref, err := img.AssemblyRef(raw)
		if err != nil {
			return nil, err
		}
		if r.locator == nil {
			return nil, metaerr.NotFound(op, "no locator for assembly %q", ref.Name)
		}
		return r.locator.ImageForAssembly(ref.Name)
	}
	return nil, metaerr.New(op, metaerr.KindNotFound).Token(scope).Detail("unsupported resolution scope").Build()
}

// imageOf returns the image that defines def, preferring img.
func (r *Resolver) imageOf(img image.Image, def *metadata.TypeDef) (image.Image, error) {
	if def.ID.Module == img.Module().ID {
		return img, nil
	}
	if r.locator == nil {
		return nil, metaerr.NotFound("resolve-scope", "no locator for module %s", def.ID.Module)
	}
	return r.locator.ImageForModule(def.ID.Module)
}

// ResolveMethod resolves a Method, MethodSpec or MemberRef token.
func (r *Resolver) ResolveMethod(img image.Image, tok token.Token, class, method *metadata.GenericContainer, ctx metadata.GenericContext) (m *metadata.Method, err error) {
	span := r.begin("resolve-method", img, tok)
	defer func() { span.EndErr(err) }()

	m, err = r.resolveMethod(img, tok, class, method, ctx)
	if err != nil {
		return nil, metaerr.WithContext(err, img.Module().Name, tok)
	}
	return m, nil
}

func (r *Resolver) resolveMethod(img image.Image, tok token.Token, class, method *metadata.GenericContainer, ctx metadata.GenericContext) (*metadata.Method, error) {
	const op = "resolve-method"
	switch tok.Kind() {
	case token.Method:
		raw, err := rawIndex(op, img, tok)
		if err != nil {
			return nil, err
		}
		def, err := img.GetMethodDefinition(raw)
		if err != nil {
			return nil, err
		}
		return r.inflate(def, ctx)
	case token.MethodSpec:
		return r.methodSpec(img, tok, class, method, ctx)
	case token.MemberRef:
		return r.memberMethod(img, tok, class, ctx)
	}
	return nil, metaerr.New(op, metaerr.KindNotFound).Token(tok).Detail("%s tokens do not name methods", tok.Kind()).Build()
}

// classList returns the class-level list of ctx when its arity matches the
// generic owner, nil otherwise.
func classList(owner *metadata.TypeDef, ctx metadata.GenericContext) *metadata.Inst {
	if owner.IsGeneric() && ctx.ClassInst.Len() == owner.Generic.Count() {
		return ctx.ClassInst
	}
	return nil
}

// inflate applies the context to a method definition. Each level of the
// context is used only when its arity matches. A generic method with just
// the class-level list is partially inflated; with neither list the open
// handle is returned.
func (r *Resolver) inflate(def *metadata.MethodDef, ctx metadata.GenericContext) (*metadata.Method, error) {
	classInst := classList(def.Owner(), ctx)
	var methodInst *metadata.Inst
	if def.IsGeneric() && ctx.MethodInst.Len() == def.Generic.Count() {
		methodInst = ctx.MethodInst
	}
	if classInst == nil && methodInst == nil {
		return def.Handle(), nil
	}
	gm, err := r.cache.Method(def, methodInst, classInst)
	if err != nil {
		return nil, err
	}
	return gm.Method(), nil
}

func (r *Resolver) methodSpec(img image.Image, tok token.Token, class, method *metadata.GenericContainer, ctx metadata.GenericContext) (*metadata.Method, error) {
	const op = "resolve-method"
	raw, err := rawIndex(op, img, tok)
	if err != nil {
		return nil, err
	}
	spec, err := img.MethodSpec(raw)
	if err != nil {
		return nil, err
	}
	// the base contributes the definition and the class-level list; the
	// spec supplies the method-level list
	var (
		def       *metadata.MethodDef
		classInst *metadata.Inst
	)
	switch spec.Method.Kind() {
	case token.Method:
		braw, err := rawIndex(op, img, spec.Method)
		if err != nil {
			return nil, err
		}
		if def, err = img.GetMethodDefinition(braw); err != nil {
			return nil, err
		}
		classInst = classList(def.Owner(), ctx)
	case token.MemberRef:
		base, err := r.memberMethod(img, spec.Method, class, metadata.GenericContext{ClassInst: ctx.ClassInst})
		if err != nil {
			return nil, err
		}
		def, classInst = base.Def, base.Context().ClassInst
	default:
		return nil, metaerr.New(op, metaerr.KindNotFound).Token(spec.Method).Detail("method spec base must be Method or MemberRef").Build()
	}
	args := make([]*metadata.Type, len(spec.Args))
	for i := range spec.Args {
		if args[i], err = r.typeFromSig(img, &spec.Args[i], class, method, ctx); err != nil {
			return nil, err
		}
	}
	inst, err := r.cache.Inst(args)
	if err != nil {
		return nil, err
	}
	gm, err := r.cache.Method(def, inst, classInst)
	if err != nil {
		return nil, err
	}
	return gm.Method(), nil
}

// parent is the resolved owner of a MemberRef.
type parent struct {
	img  image.Image
	def  *metadata.TypeDef
	typ  *metadata.Type
	inst *metadata.Inst
}

func (r *Resolver) memberParent(img image.Image, ref *metadata.MemberRef, class *metadata.GenericContainer, ctx metadata.GenericContext) (parent, error) {
	switch ref.Parent.Kind() {
	case token.TypeDef, token.TypeRef:
		def, err := r.typeDef(img, ref.Parent)
		if err != nil {
			return parent{}, err
		}
		target, err := r.imageOf(img, def)
		if err != nil {
			return parent{}, err
		}
		return parent{img: target, def: def, typ: def.Type()}, nil
	case token.TypeSpec:
		typ, err := r.resolveType(img, ref.Parent, class, nil, ctx)
		if err != nil {
			return parent{}, err
		}
		def := typ.Definition()
		if def == nil {
			return parent{}, metaerr.NotFound("resolve-member", "member %s of %s: parent has no definition", ref.Name, typ)
		}
		target, err := r.imageOf(img, def)
		if err != nil {
			return parent{}, err
		}
		p := parent{img: target, def: def, typ: typ}
		if typ.Generic != nil {
			p.inst = typ.Generic.Inst
		}
		return p, nil
	}
	return parent{}, metaerr.New("resolve-member", metaerr.KindNotFound).Token(ref.Parent).Detail("unsupported member parent").Build()
}

func (r *Resolver) memberRef(img image.Image, tok token.Token) (*metadata.MemberRef, error) {
	raw, err := rawIndex("resolve-member", img, tok)
	if err != nil {
		return nil, err
	}
	return img.MemberRef(raw)
}

func (r *Resolver) memberMethod(img image.Image, tok token.Token, class *metadata.GenericContainer, ctx metadata.GenericContext) (*metadata.Method, error) {
	const op = "resolve-member"
	ref, err := r.memberRef(img, tok)
	if err != nil {
		return nil, err
	}
	if ref.Field {
		return nil, metaerr.NotFound(op, "member %s is a field", ref.Name)
	}
	p, err := r.memberParent(img, ref, class, ctx)
	if err != nil {
		return nil, err
	}
	var def *metadata.MethodDef
	for i := range p.def.MethodCount {
		md, err := p.img.GetMethodDefinition(p.def.FirstMethod + i)
		if err != nil {
			return nil, err
		}
		if md.Name == ref.Name && md.ParamCount == ref.ParamCount && md.Generic.Count() == int(ref.GenericCount) {
			def = md
			break
		}
	}
	if def == nil {
		return nil, metaerr.NotFound(op, "no method %s(%d params, %d type params) on %s",
			ref.Name, ref.ParamCount, ref.GenericCount, p.def.FullName())
	}
	m, err := p.img.ResolveMethodFromToken(def.ID.Token, nil, nil, metadata.GenericContext{})
	if err != nil {
		return nil, err
	}
	if p.inst == nil {
		return m, nil
	}
	gm, err := r.cache.Method(m.Def, nil, p.inst)
	if err != nil {
		return nil, err
	}
	return gm.Method(), nil
}

// ResolveField resolves a Field token or a field MemberRef.
func (r *Resolver) ResolveField(img image.Image, tok token.Token, class *metadata.GenericContainer, ctx metadata.GenericContext) (f *metadata.FieldRef, err error) {
	span := r.begin("resolve-field", img, tok)
	defer func() { span.EndErr(err) }()

	f, err = r.resolveField(img, tok, class, ctx)
	if err != nil {
		return nil, metaerr.WithContext(err, img.Module().Name, tok)
	}
	return f, nil
}

func (r *Resolver) resolveField(img image.Image, tok token.Token, class *metadata.GenericContainer, ctx metadata.GenericContext) (*metadata.FieldRef, error) {
	const op = "resolve-field"
	switch tok.Kind() {
	case token.Field:
		raw, err := rawIndex(op, img, tok)
		if err != nil {
			return nil, err
		}
		def, err := img.GetFieldDefinition(raw)
		if err != nil {
			return nil, err
		}
		declaring := def.Owner().Type()
		if inst := classList(def.Owner(), ctx); inst != nil {
			gc, err := r.cache.Class(def.Owner(), inst)
			if err != nil {
				return nil, err
			}
			declaring = gc.Type()
		}
		return &metadata.FieldRef{Field: def, DeclaringType: declaring}, nil
	case token.MemberRef:
		ref, err := r.memberRef(img, tok)
		if err != nil {
			return nil, err
		}
		if !ref.Field {
			return nil, metaerr.NotFound(op, "member %s is a method", ref.Name)
		}
		p, err := r.memberParent(img, ref, class, ctx)
		if err != nil {
			return nil, err
		}
		for i := range p.def.FieldCount {
			fd, err := p.img.GetFieldDefinition(p.def.FirstField + i)
			if err != nil {
				return nil, err
			}
			if fd.Name == ref.Name {
				return &metadata.FieldRef{Field: fd, DeclaringType: p.typ}, nil
			}
		}
		return nil, metaerr.NotFound(op, "no field %s on %s", ref.Name, p.def.FullName())
	}
	return nil, metaerr.New(op, metaerr.KindNotFound).Token(tok).Detail("%s tokens do not name fields", tok.Kind()).Build()
}
