// Package token defines metadata tokens: compact (table kind, row) references
// into a module's metadata tables.
// Invariants:
//   - A Token is a 32-bit value; the high 8 bits select a Kind, the low 24 bits
//     hold a row number.
//   - Rows are 1-based for every table kind. Row 0 is the nil token of its table
//     and never refers to a definition.
//   - RawIndex converts a row to the 0-based index used by image accessors.
//   - A token is meaningless outside the module that produced it.
package token
