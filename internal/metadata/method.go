package metadata

// Method is a resolved method handle. Open handles are owned by their
// MethodDef; inflated handles are owned by their GenericMethod.
type Method struct {
	Def           *MethodDef
	DeclaringType *Type
	Generic       *GenericMethod
}

// Module returns the id of the module defining the method.
func (m *Method) Module() ModuleID { return m.Def.ID.Module }

// IsGeneric reports whether the method declares its own type parameters.
func (m *Method) IsGeneric() bool { return m.Def.IsGeneric() }

// IsInflated reports whether every parameter list the method needs has been
// supplied: method-level arguments for generic methods, and an instance
// for methods reached through a generic class.
func (m *Method) IsInflated() bool {
	if m.Generic == nil {
		return false
	}
	return !m.Def.IsGeneric() || m.Generic.MethodInst != nil
}

// Context returns the argument lists the handle was inflated with.
func (m *Method) Context() GenericContext {
	if m.Generic == nil {
		return GenericContext{}
	}
	return m.Generic.Context()
}

func (m *Method) String() string {
	name := m.DeclaringType.String() + "::" + m.Def.Name
	if m.Generic != nil && m.Generic.MethodInst != nil {
		name += m.Generic.MethodInst.String()
	}
	return name
}

// FieldRef is a resolved field with the type that declares it.
type FieldRef struct {
	Field         *FieldDef
	DeclaringType *Type
}
