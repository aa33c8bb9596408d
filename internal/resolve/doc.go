// Package resolve implements the token-resolution protocol shared by every
// module image.
//
// A token is dispatched on its table kind:
//
//   - TypeDef, Method, Field: direct, bounds-checked row lookups
//   - TypeRef: the scope names a module (by assembly name, or the same
//     module); the type is then found by name there
//   - TypeSpec: a signature, substituted against the generic context; generic
//     instances go through the instantiation cache
//   - MethodSpec: a base method plus a method-level argument list
//   - MemberRef: the parent type is resolved first, the member is matched by
//     name and shape in the parent's module, and the result is inflated with
//     the parent's class-level arguments
//
// Any other kind, a nil row or a row past the end of its table is NotFound.
package resolve
