// Package metadata defines the data model shared by module images, the token
// resolver and the generic instantiation cache.
//
// # Definitions
//
// TypeDef, MethodDef and FieldDef are raw rows read from one module's tables.
// They are owned by the Tables that hold them and are immutable once
// Tables.Link has run; everything else hands out borrowed pointers.
//
// # Handles
//
//   - Type: a resolved type reference (primitive, definition, generic
//     instance, generic parameter, array, byref, pointer).
//   - Method: a resolved method reference, open or inflated.
//   - FieldRef: a field definition together with its declaring type.
//
// # Identity
//
// Every definition carries a DefID (module id + token). Type keys, argument
// list keys and instantiation keys are built from DefIDs and from the ids of
// already-canonical generic entities, never from memory addresses.
package metadata
