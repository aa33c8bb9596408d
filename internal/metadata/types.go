package metadata

import (
	"strconv"
	"strings"
)

// Type is a resolved type handle.
// Definition types and generic instance types are canonical: one *Type per
// definition and per GenericClass. Other kinds are compared through Key.
type Type struct {
	Kind    ElementType
	Def     *TypeDef
	Generic *GenericClass
	Elem    *Type
	Param   uint16
	Owner   *GenericContainer

	key string
}

var primitives = func() map[ElementType]*Type {
	out := make(map[ElementType]*Type, len(primitiveNames))
	for kind := range primitiveNames {
		out[kind] = &Type{Kind: kind, key: "p" + strconv.Itoa(int(kind))}
	}
	return out
}()

// Primitive returns the shared handle for a primitive element type, or nil.
func Primitive(kind ElementType) *Type {
	return primitives[kind]
}

func newDefType(def *TypeDef) *Type {
	kind := ElemClass
	if def.IsValueType() {
		kind = ElemValueType
	}
	return &Type{Kind: kind, Def: def, key: "c" + def.ID.String()}
}

// NewGenericInstType builds the type handle of a generic class instance.
// Only the instantiation cache calls it, once per GenericClass.
func NewGenericInstType(gc *GenericClass) *Type {
	return &Type{
		Kind:    ElemGenericInst,
		Def:     gc.Def,
		Generic: gc,
		key:     "g" + strconv.FormatUint(uint64(gc.ID), 10),
	}
}

// NewVar builds an unsubstituted class-level parameter type.
func NewVar(owner *GenericContainer, index uint16) *Type {
	return newParam(ElemVar, owner, index)
}

// NewMVar builds an unsubstituted method-level parameter type.
func NewMVar(owner *GenericContainer, index uint16) *Type {
	return newParam(ElemMVar, owner, index)
}

func newParam(kind ElementType, owner *GenericContainer, index uint16) *Type {
	prefix := "v"
	if kind == ElemMVar {
		prefix = "m"
	}
	key := prefix + strconv.Itoa(int(index))
	if owner != nil && owner.Owner.IsValid() {
		key += "@" + owner.Owner.String()
	}
	return &Type{Kind: kind, Param: index, Owner: owner, key: key}
}

// NewSZArray builds a single-dimension, zero-based array of elem.
func NewSZArray(elem *Type) *Type { return newWrapped(ElemSZArray, "[", elem) }

// NewByRef builds a managed reference to elem.
func NewByRef(elem *Type) *Type { return newWrapped(ElemByRef, "&", elem) }

// NewPtr builds an unmanaged pointer to elem.
func NewPtr(elem *Type) *Type { return newWrapped(ElemPtr, "*", elem) }

func newWrapped(kind ElementType, prefix string, elem *Type) *Type {
	return &Type{Kind: kind, Elem: elem, key: prefix + elem.Key()}
}

// Key returns the structural identity of the type. Two handles with equal
// keys denote the same type.
func (t *Type) Key() string {
	if t == nil {
		return ""
	}
	return t.key
}

// Same reports whether a and b denote the same type.
func Same(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.key == b.key
}

// IsOpenGeneric reports whether t is a generic definition with unfilled
// parameters.
func (t *Type) IsOpenGeneric() bool {
	if t == nil {
		return false
	}
	return (t.Kind == ElemClass || t.Kind == ElemValueType) && t.Def != nil && t.Def.IsGeneric()
}

// Definition returns the type definition behind t, for definition and
// generic instance types.
func (t *Type) Definition() *TypeDef {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case ElemClass, ElemValueType, ElemGenericInst:
		return t.Def
	}
	return nil
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case ElemClass, ElemValueType:
		if t.Def != nil {
			return t.Def.FullName()
		}
	case ElemGenericInst:
		var b strings.Builder
		b.WriteString(t.Def.FullName())
		b.WriteByte('<')
		for i, arg := range t.Generic.Inst.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(arg.String())
		}
		b.WriteByte('>')
		return b.String()
	case ElemVar:
		return "!" + strconv.Itoa(int(t.Param))
	case ElemMVar:
		return "!!" + strconv.Itoa(int(t.Param))
	case ElemSZArray:
		return t.Elem.String() + "[]"
	case ElemByRef:
		return t.Elem.String() + "&"
	case ElemPtr:
		return t.Elem.String() + "*"
	}
	return t.Kind.String()
}
