package metadata

import (
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
)

// InstID identifies a canonical type-argument list. 0 means none.
type InstID uint32

// ClassID identifies a canonical generic class instance.
type ClassID uint32

// MethodInstID identifies a canonical generic method instance.
type MethodInstID uint32

// Inst is an immutable, ordered type-argument list.
type Inst struct {
	ID   InstID
	Args []*Type

	key string
}

// InstKey builds the structural key of an argument list. Element keys are
// length-prefixed so no two distinct lists share a key.
func InstKey(args []*Type) string {
	var b strings.Builder
	for _, arg := range args {
		k := arg.Key()
		b.WriteString(strconv.Itoa(len(k)))
		b.WriteByte(':')
		b.WriteString(k)
	}
	return b.String()
}

// NewInst builds an argument list. Only the instantiation cache calls it.
func NewInst(id InstID, args []*Type, key string) *Inst {
	return &Inst{ID: id, Args: slices.Clone(args), key: key}
}

// Len returns the number of arguments; 0 for a nil list.
func (i *Inst) Len() int {
	if i == nil {
		return 0
	}
	return len(i.Args)
}

// Key returns the structural key.
func (i *Inst) Key() string {
	if i == nil {
		return ""
	}
	return i.key
}

// InstIDOf returns the id of i, or 0 for nil.
func InstIDOf(i *Inst) InstID {
	if i == nil {
		return 0
	}
	return i.ID
}

func (i *Inst) String() string {
	if i == nil {
		return "<>"
	}
	parts := make([]string, len(i.Args))
	for n, arg := range i.Args {
		parts[n] = arg.String()
	}
	return "<" + strings.Join(parts, ",") + ">"
}

// GenericContext carries the argument lists in effect at a resolution site.
type GenericContext struct {
	ClassInst  *Inst
	MethodInst *Inst
}

// IsEmpty reports whether no argument list is in effect.
func (c GenericContext) IsEmpty() bool { return c.ClassInst == nil && c.MethodInst == nil }

type classSlot struct{ v any }

// GenericClass is a canonical (generic type definition, argument list) pair.
type GenericClass struct {
	ID   ClassID
	Def  *TypeDef
	Inst *Inst

	typ    *Type
	cached atomic.Pointer[classSlot]
}

// NewGenericClass builds a generic class instance and its type handle.
// Only the instantiation cache calls it.
func NewGenericClass(id ClassID, def *TypeDef, inst *Inst) *GenericClass {
	gc := &GenericClass{ID: id, Def: def, Inst: inst}
	gc.typ = NewGenericInstType(gc)
	return gc
}

// Type returns the instance's canonical type handle.
func (g *GenericClass) Type() *Type { return g.typ }

// Context returns the class-level context of the instance.
func (g *GenericClass) Context() GenericContext { return GenericContext{ClassInst: g.Inst} }

// CachedClass returns the materialized runtime class, if one was stored.
func (g *GenericClass) CachedClass() any {
	if slot := g.cached.Load(); slot != nil {
		return slot.v
	}
	return nil
}

// SetCachedClass stores the materialized runtime class. The first stored
// value wins and is returned to every caller.
func (g *GenericClass) SetCachedClass(v any) any {
	if g.cached.CompareAndSwap(nil, &classSlot{v: v}) {
		return v
	}
	return g.cached.Load().v
}

// GenericMethod is a canonical method instantiation: a definition with a
// method-level list, a class-level list, or both.
type GenericMethod struct {
	ID         MethodInstID
	Def        *MethodDef
	MethodInst *Inst
	ClassInst  *Inst

	method *Method
}

// NewGenericMethod builds a method instance and its handle. declaring is the
// (possibly instantiated) declaring type. Only the instantiation cache calls it.
func NewGenericMethod(id MethodInstID, def *MethodDef, methodInst, classInst *Inst, declaring *Type) *GenericMethod {
	gm := &GenericMethod{ID: id, Def: def, MethodInst: methodInst, ClassInst: classInst}
	gm.method = &Method{Def: def, DeclaringType: declaring, Generic: gm}
	return gm
}

// Method returns the inflated method handle.
func (g *GenericMethod) Method() *Method { return g.method }

// Context returns the combined context of the instance.
func (g *GenericMethod) Context() GenericContext {
	return GenericContext{ClassInst: g.ClassInst, MethodInst: g.MethodInst}
}
