package metadata

import "fmt"

// ElementType is the kind of a type or signature node.
// Values follow the ECMA-335 element type encoding.
type ElementType uint8

const (
	ElemVoid        ElementType = 0x01
	ElemBoolean     ElementType = 0x02
	ElemChar        ElementType = 0x03
	ElemI1          ElementType = 0x04
	ElemU1          ElementType = 0x05
	ElemI2          ElementType = 0x06
	ElemU2          ElementType = 0x07
	ElemI4          ElementType = 0x08
	ElemU4          ElementType = 0x09
	ElemI8          ElementType = 0x0a
	ElemU8          ElementType = 0x0b
	ElemR4          ElementType = 0x0c
	ElemR8          ElementType = 0x0d
	ElemString      ElementType = 0x0e
	ElemPtr         ElementType = 0x0f
	ElemByRef       ElementType = 0x10
	ElemValueType   ElementType = 0x11
	ElemClass       ElementType = 0x12
	ElemVar         ElementType = 0x13
	ElemGenericInst ElementType = 0x15
	ElemI           ElementType = 0x18
	ElemU           ElementType = 0x19
	ElemObject      ElementType = 0x1c
	ElemSZArray     ElementType = 0x1d
	ElemMVar        ElementType = 0x1e
)

var primitiveNames = map[ElementType]string{
	ElemVoid:    "void",
	ElemBoolean: "bool",
	ElemChar:    "char",
	ElemI1:      "int8",
	ElemU1:      "uint8",
	ElemI2:      "int16",
	ElemU2:      "uint16",
	ElemI4:      "int32",
	ElemU4:      "uint32",
	ElemI8:      "int64",
	ElemU8:      "uint64",
	ElemR4:      "float32",
	ElemR8:      "float64",
	ElemString:  "string",
	ElemI:       "nint",
	ElemU:       "nuint",
	ElemObject:  "object",
}

// IsPrimitive reports whether e names a built-in type with no definition row.
func (e ElementType) IsPrimitive() bool {
	_, ok := primitiveNames[e]
	return ok
}

func (e ElementType) String() string {
	if name, ok := primitiveNames[e]; ok {
		return name
	}
	switch e {
	case ElemPtr:
		return "ptr"
	case ElemByRef:
		return "byref"
	case ElemValueType:
		return "valuetype"
	case ElemClass:
		return "class"
	case ElemVar:
		return "var"
	case ElemGenericInst:
		return "genericinst"
	case ElemSZArray:
		return "szarray"
	case ElemMVar:
		return "mvar"
	}
	return fmt.Sprintf("elem(0x%02x)", uint8(e))
}
