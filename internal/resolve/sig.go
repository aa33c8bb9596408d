package resolve

import (
	"clrmeta/internal/image"
	"clrmeta/internal/metadata"
	"clrmeta/internal/metaerr"
)

// TypeFromSig resolves a signature read from img. Var and MVar substitute
// from ctx when it carries the matching list, otherwise they become open
// parameters of class or method.
func (r *Resolver) TypeFromSig(img image.Image, sig *metadata.TypeSig, class, method *metadata.GenericContainer, ctx metadata.GenericContext) (*metadata.Type, error) {
	t, err := r.typeFromSig(img, sig, class, method, ctx)
	if err != nil {
		return nil, metaerr.InModule(err, img.Module().Name)
	}
	return t, nil
}

func (r *Resolver) typeFromSig(img image.Image, sig *metadata.TypeSig, class, method *metadata.GenericContainer, ctx metadata.GenericContext) (*metadata.Type, error) {
	const op = "resolve-sig"
	if sig == nil {
		return nil, metaerr.Corrupt(op, "nil signature")
	}
	if p := metadata.Primitive(sig.Kind); p != nil {
		return p, nil
	}
	switch sig.Kind {
	case metadata.ElemClass, metadata.ElemValueType:
		def, err := r.typeDef(img, sig.Class)
		if err != nil {
			return nil, err
		}
		return def.Type(), nil

	case metadata.ElemGenericInst:
		def, err := r.typeDef(img, sig.Class)
		if err != nil {
			return nil, err
		}
		args := make([]*metadata.Type, len(sig.Args))
		for i := range sig.Args {
			if args[i], err = r.typeFromSig(img, &sig.Args[i], class, method, ctx); err != nil {
				return nil, err
			}
		}
		inst, err := r.cache.Inst(args)
		if err != nil {
			return nil, err
		}
		gc, err := r.cache.Class(def, inst)
		if err != nil {
			return nil, err
		}
		return gc.Type(), nil

	case metadata.ElemVar:
		return param(op, sig.Param, ctx.ClassInst, class, metadata.NewVar)

	case metadata.ElemMVar:
		return param(op, sig.Param, ctx.MethodInst, method, metadata.NewMVar)

	case metadata.ElemSZArray, metadata.ElemByRef, metadata.ElemPtr:
		if sig.Elem == nil {
			return nil, metaerr.Corrupt(op, "%s signature without element", sig.Kind)
		}
		elem, err := r.typeFromSig(img, sig.Elem, class, method, ctx)
		if err != nil {
			return nil, err
		}
		switch sig.Kind {
		case metadata.ElemSZArray:
			return metadata.NewSZArray(elem), nil
		case metadata.ElemByRef:
			return metadata.NewByRef(elem), nil
		default:
			return metadata.NewPtr(elem), nil
		}
	}
	return nil, metaerr.NotFound(op, "unsupported element type %s", sig.Kind)
}

func param(op string, index uint16, inst *metadata.Inst, owner *metadata.GenericContainer,
	open func(*metadata.GenericContainer, uint16) *metadata.Type,
) (*metadata.Type, error) {
	if inst != nil {
		if int(index) >= inst.Len() {
			return nil, metaerr.NotFound(op, "type parameter %d beyond %d arguments", index, inst.Len())
		}
		return inst.Args[index], nil
	}
	if int(index) >= owner.Count() {
		return nil, metaerr.NotFound(op, "type parameter %d beyond %d declared", index, owner.Count())
	}
	return open(owner, index), nil
}
