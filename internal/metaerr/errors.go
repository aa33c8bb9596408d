// Package metaerr defines the structured errors returned by metadata
// resolution and generic instantiation.
//
// Errors carry an operation, a Kind and optional module/token context:
//
//	err := metaerr.New("resolve-type", metaerr.KindNotFound).
//		Module(mod.Name).
//		Token(tok).
//		Detail("row %d beyond %d types", row, count).
//		Build()
//
// errors.Is matches on Kind against the sentinel values (ErrNotFound, ...).
package metaerr

import (
	"errors"
	"fmt"
	"strings"

	"clrmeta/internal/token"
)

// Kind categorizes a failure.
type Kind string

const (
	// KindNotFound covers out-of-range rows, unknown tables and name lookup misses.
	KindNotFound Kind = "not_found"
	// KindInvalidArgument rejects nil or empty instantiation input.
	KindInvalidArgument Kind = "invalid_argument"
	// KindAllocation is fatal: the instantiation tables cannot grow.
	KindAllocation Kind = "allocation"
	// KindNotInitialized reports use of a provider or cache outside its lifecycle.
	KindNotInitialized Kind = "not_initialized"
	// KindCorrupt reports malformed tables or blobs.
	KindCorrupt Kind = "corrupt"
)

// Sentinels for errors.Is.
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrAllocation      = &Error{Kind: KindAllocation}
	ErrNotInitialized  = &Error{Kind: KindNotInitialized}
	ErrCorrupt         = &Error{Kind: KindCorrupt}
)

// Error is the structured error type used across the module.
type Error struct {
	Cause    error
	Op       string
	Kind     Kind
	Module   string
	Detail   string
	Token    token.Token
	HasToken bool
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Module != "" {
		b.WriteString(" in ")
		b.WriteString(e.Module)
	}
	if e.HasToken {
		b.WriteString(" at ")
		b.WriteString(e.Token.String())
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target has the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(op string, kind Kind) *Builder {
	return &Builder{err: Error{Op: op, Kind: kind}}
}

// Module sets the module name.
func (b *Builder) Module(name string) *Builder {
	b.err.Module = name
	return b
}

// Token sets the token being resolved.
func (b *Builder) Token(tok token.Token) *Builder {
	b.err.Token = tok
	b.err.HasToken = true
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	err := b.err
	return &err
}

// NotFound creates a not-found error.
func NotFound(op, detail string, args ...any) *Error {
	return New(op, KindNotFound).Detail(detail, args...).Build()
}

// OutOfRange creates the not-found error for a row beyond its table.
func OutOfRange(op, table string, index, count uint32) *Error {
	return &Error{
		Op:     op,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s index %d out of range (rows %d)", table, index, count),
	}
}

// InvalidArgument creates an invalid-argument error.
func InvalidArgument(op, detail string, args ...any) *Error {
	return New(op, KindInvalidArgument).Detail(detail, args...).Build()
}

// Allocation creates a fatal allocation error.
func Allocation(op string, cause error) *Error {
	return &Error{Op: op, Kind: KindAllocation, Detail: "instantiation tables exhausted", Cause: cause}
}

// NotInitialized creates a lifecycle error.
func NotInitialized(op, what string) *Error {
	return &Error{Op: op, Kind: KindNotInitialized, Detail: what + " is not initialized"}
}

// Corrupt creates a malformed-data error.
func Corrupt(op, detail string, args ...any) *Error {
	return New(op, KindCorrupt).Detail(detail, args...).Build()
}

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsFatal reports whether err must stop the runtime rather than be
// surfaced as a language-level error.
func IsFatal(err error) bool { return errors.Is(err, ErrAllocation) }

// WithContext fills in module and token on err when it is an *Error that does
// not carry them yet. Other errors are returned unchanged.
func WithContext(err error, module string, tok token.Token) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	if e.Module != "" && e.HasToken {
		return err
	}
	out := *e
	if out.Module == "" {
		out.Module = module
	}
	if !out.HasToken {
		out.Token = tok
		out.HasToken = true
	}
	return &out
}

// InModule fills in the module name on err when it is an *Error without one.
func InModule(err error, module string) error {
	var e *Error
	if !errors.As(err, &e) || e.Module != "" {
		return err
	}
	out := *e
	out.Module = module
	return &out
}
