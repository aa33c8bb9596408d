package metadata

import "clrmeta/internal/token"

// TypeFlags describe a type definition.
type TypeFlags uint32

const (
	TypeValueType TypeFlags = 1 << iota
	TypeInterface
	TypeAbstract
	TypeSealed
)

// MethodFlags describe a method definition.
type MethodFlags uint32

const (
	MethodStatic MethodFlags = 1 << iota
	MethodVirtual
	MethodAbstract
)

// FieldFlags describe a field definition.
type FieldFlags uint32

const (
	FieldStatic FieldFlags = 1 << iota
	FieldLiteral
)

// GenericParam is one formal type parameter. Constraints are opaque here.
type GenericParam struct {
	Name        string
	Constraints []token.Token
}

// GenericContainer is the formal parameter list of a generic definition.
type GenericContainer struct {
	Owner    DefID `msgpack:"-"`
	IsMethod bool  `msgpack:"-"`
	Params   []GenericParam
}

// Count returns the number of formal parameters.
func (c *GenericContainer) Count() int {
	if c == nil {
		return 0
	}
	return len(c.Params)
}

// TypeDef is a type definition row.
// Method and field ranges are 0-based indexes into the same module's tables.
type TypeDef struct {
	ID          DefID `msgpack:"-"`
	Namespace   string
	Name        string
	Flags       TypeFlags
	Generic     *GenericContainer
	FirstMethod uint32
	MethodCount uint32
	FirstField  uint32
	FieldCount  uint32

	self *Type
}

// Type returns the definition's own (open, if generic) type.
func (d *TypeDef) Type() *Type { return d.self }

// IsGeneric reports whether the definition declares type parameters.
func (d *TypeDef) IsGeneric() bool { return d.Generic.Count() > 0 }

// IsValueType reports whether instances are values.
func (d *TypeDef) IsValueType() bool { return d.Flags&TypeValueType != 0 }

// FullName returns "Namespace.Name", or Name for the global namespace.
func (d *TypeDef) FullName() string {
	if d.Namespace == "" {
		return d.Name
	}
	return d.Namespace + "." + d.Name
}

// MethodDef is a method definition row.
type MethodDef struct {
	ID            DefID `msgpack:"-"`
	Name          string
	DeclaringType uint32
	Flags         MethodFlags
	ParamCount    uint16
	Generic       *GenericContainer

	owner  *TypeDef
	handle *Method
}

// Owner returns the declaring type definition.
func (d *MethodDef) Owner() *TypeDef { return d.owner }

// Handle returns the open method handle for the definition.
func (d *MethodDef) Handle() *Method { return d.handle }

// IsGeneric reports whether the method declares its own type parameters.
func (d *MethodDef) IsGeneric() bool { return d.Generic.Count() > 0 }

// FieldDef is a field definition row.
type FieldDef struct {
	ID            DefID `msgpack:"-"`
	Name          string
	DeclaringType uint32
	Flags         FieldFlags
	Sig           TypeSig

	owner *TypeDef
}

// Owner returns the declaring type definition.
func (d *FieldDef) Owner() *TypeDef { return d.owner }

// MethodBody is the bytecode of an interpreted method.
type MethodBody struct {
	MaxStack   uint16
	InitLocals bool
	Code       []byte
}

// TypeRef names a type defined in the scope it points at.
// Scope is an AssemblyRef token or a Module token for the same module.
type TypeRef struct {
	Scope     token.Token
	Namespace string
	Name      string
}

// AssemblyRef names another module.
type AssemblyRef struct {
	Name string
}

// MemberRef references a method or field of the type named by Parent
// (a TypeDef, TypeRef or TypeSpec token).
type MemberRef struct {
	Parent       token.Token
	Name         string
	Field        bool
	ParamCount   uint16
	GenericCount uint16
}

// TypeSpec is a constructed type.
type TypeSpec struct {
	Sig TypeSig
}

// MethodSpec instantiates the generic method named by Method
// (a Method or MemberRef token).
type MethodSpec struct {
	Method token.Token
	Args   []TypeSig
}

// TypeSig is a decoded type signature.
//
//   - primitives: Kind only
//   - Class/ValueType: Class holds a TypeDef or TypeRef token
//   - GenericInst: Class is the generic definition, Args the arguments
//   - Var/MVar: Param is the parameter index
//   - SZArray/ByRef/Ptr: Elem is the element signature
type TypeSig struct {
	Kind  ElementType
	Class token.Token
	Args  []TypeSig
	Elem  *TypeSig
	Param uint16
}
