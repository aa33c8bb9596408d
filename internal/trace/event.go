package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	// KindSpanBegin marks the start of a logical operation.
	KindSpanBegin Kind = iota + 1
	// KindSpanEnd marks the end of a logical operation.
	KindSpanEnd
	// KindPoint represents an instant event.
	KindPoint
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity level of the event.
// Lower numeric values represent coarser events.
type Scope uint8

const (
	// ScopeProvider covers provider lifecycle.
	ScopeProvider Scope = iota + 1
	// ScopeModule covers module load, unload and warm-up.
	ScopeModule
	// ScopeResolve covers individual token resolutions.
	ScopeResolve
	// ScopeCache covers instantiation cache transactions.
	ScopeCache
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeProvider:
		return "provider"
	case ScopeModule:
		return "module"
	case ScopeResolve:
		return "resolve"
	case ScopeCache:
		return "cache"
	default:
		return "unknown"
	}
}

// Event represents a single trace event.
type Event struct {
	Time     time.Time         // wall-clock timestamp
	Seq      uint64            // global sequence number (monotonic)
	Kind     Kind              // event kind
	Scope    Scope             // granularity level
	SpanID   uint64            // unique span identifier (0 for points)
	ParentID uint64            // parent span (0 if root)
	GID      uint64            // goroutine ID (for concurrent spans)
	Name     string            // e.g. "load:Game", "resolve-type"
	Detail   string            // optional detail message
	Failed   bool              // the traced operation returned an error
	Extra    map[string]string // extensible key-value pairs
}
