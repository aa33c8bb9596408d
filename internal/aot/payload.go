// Package aot reads and writes the tables of ahead-of-time compiled modules.
//
// All compiled modules share one blob: a string heap, global definition
// arrays, and one ImageDesc window per module into those arrays. Indexes in
// the blob are global; Decode converts them to window-local indexes,
// bounds-checks everything and links each window. Decoded Metadata is
// read-only.
package aot

import "clrmeta/internal/metadata"

// Schema is the blob version written by this package.
const Schema = 1

// Payload is the on-disk (msgpack) form.
type Payload struct {
	Schema     int            `msgpack:"schema"`
	Strings    []string       `msgpack:"strings"`
	Images     []ImageDesc    `msgpack:"images"`
	Types      []TypeRow      `msgpack:"types"`
	Methods    []MethodRow    `msgpack:"methods"`
	Fields     []FieldRow     `msgpack:"fields"`
	Containers []ContainerRow `msgpack:"containers"`
}

// ImageDesc is one module's window into the global arrays.
type ImageDesc struct {
	Name        string `msgpack:"name"`
	MVID        string `msgpack:"mvid,omitempty"`
	TypeStart   uint32 `msgpack:"type_start"`
	TypeCount   uint32 `msgpack:"type_count"`
	MethodStart uint32 `msgpack:"method_start"`
	MethodCount uint32 `msgpack:"method_count"`
	FieldStart  uint32 `msgpack:"field_start"`
	FieldCount  uint32 `msgpack:"field_count"`
}

// TypeRow is a type definition. Names are string-heap indexes, method and
// field ranges are global.
type TypeRow struct {
	Namespace   uint32             `msgpack:"ns"`
	Name        uint32             `msgpack:"name"`
	Flags       metadata.TypeFlags `msgpack:"flags"`
	Generic     uint32             `msgpack:"generic"` // 1-based container index, 0 = none
	FirstMethod uint32             `msgpack:"first_method"`
	MethodCount uint32             `msgpack:"method_count"`
	FirstField  uint32             `msgpack:"first_field"`
	FieldCount  uint32             `msgpack:"field_count"`
}

// MethodRow is a method definition with a global declaring-type index.
type MethodRow struct {
	Name          uint32               `msgpack:"name"`
	DeclaringType uint32               `msgpack:"type"`
	Flags         metadata.MethodFlags `msgpack:"flags"`
	ParamCount    uint16               `msgpack:"params"`
	Generic       uint32               `msgpack:"generic"`
}

// FieldRow is a field definition. Class tokens inside Sig are local to the
// owning window.
type FieldRow struct {
	Name          uint32              `msgpack:"name"`
	DeclaringType uint32              `msgpack:"type"`
	Flags         metadata.FieldFlags `msgpack:"flags"`
	Sig           metadata.TypeSig    `msgpack:"sig"`
}

// ContainerRow is a generic parameter list; Params are string-heap indexes.
type ContainerRow struct {
	Params []uint32 `msgpack:"params"`
}
