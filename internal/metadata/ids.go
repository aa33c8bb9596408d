package metadata

import (
	"fmt"

	"github.com/google/uuid"

	"clrmeta/internal/token"
)

// moduleNamespace seeds deterministic ids for modules that carry no MVID.
var moduleNamespace = uuid.MustParse("4b0f7a52-3c2e-5d1a-9f36-0c1e8d2a7b41")

// ModuleID is the stable identity of a module (its module version id).
type ModuleID uuid.UUID

// NoModuleID marks the absence of a module.
var NoModuleID ModuleID

// NewModuleID derives a deterministic id from a module name.
func NewModuleID(name string) ModuleID {
	return ModuleID(uuid.NewSHA1(moduleNamespace, []byte(name)))
}

// ParseModuleID parses a textual MVID.
func ParseModuleID(s string) (ModuleID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return NoModuleID, fmt.Errorf("module id %q: %w", s, err)
	}
	return ModuleID(id), nil
}

// IsValid reports whether the id refers to a module.
func (id ModuleID) IsValid() bool { return id != NoModuleID }

func (id ModuleID) String() string { return uuid.UUID(id).String() }

// DefID identifies a raw definition: the owning module plus its token.
type DefID struct {
	Module ModuleID
	Token  token.Token
}

// IsValid reports whether the id refers to a definition.
func (id DefID) IsValid() bool { return id.Module.IsValid() && !id.Token.IsNil() }

func (id DefID) String() string {
	return id.Module.String() + "/" + id.Token.Hex()
}

// Origin classifies how a module's code executes.
type Origin uint8

const (
	// OriginInterpreted modules own their metadata and bytecode bodies.
	OriginInterpreted Origin = iota + 1
	// OriginCompiled modules were produced ahead of time; they have no bodies.
	OriginCompiled
)

func (o Origin) String() string {
	switch o {
	case OriginInterpreted:
		return "interpreted"
	case OriginCompiled:
		return "compiled"
	default:
		return "unknown"
	}
}

// Module describes a loaded module.
type Module struct {
	ID     ModuleID
	Name   string
	Origin Origin
}
