package metaerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"clrmeta/internal/token"
)

func TestIsMatchesKind(t *testing.T) {
	err := OutOfRange("get-type", "TypeDef", 10, 4)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("out of range must be NotFound")
	}
	if errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("out of range must not match InvalidArgument")
	}
	wrapped := fmt.Errorf("engine: %w", err)
	if !IsNotFound(wrapped) {
		t.Fatalf("wrapped error lost its kind")
	}
}

func TestErrorMessage(t *testing.T) {
	tok := token.MustMake(token.TypeDef, 11)
	err := New("resolve-type", KindNotFound).
		Module("Game.Logic").
		Token(tok).
		Detail("row %d beyond %d types", 11, 4).
		Build()
	msg := err.Error()
	for _, part := range []string{"resolve-type", "not_found", "Game.Logic", "TypeDef#11", "row 11 beyond 4 types"} {
		if !strings.Contains(msg, part) {
			t.Fatalf("message %q missing %q", msg, part)
		}
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(Allocation("inst", nil)) {
		t.Fatalf("allocation errors are fatal")
	}
	if IsFatal(NotFound("x", "y")) {
		t.Fatalf("not found is recoverable")
	}
}

func TestWithContextKeepsExisting(t *testing.T) {
	tok := token.MustMake(token.Method, 2)
	err := WithContext(NotFound("resolve-method", "gone"), "Core", tok)
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error")
	}
	if e.Module != "Core" || !e.HasToken || e.Token != tok {
		t.Fatalf("context not applied: %+v", e)
	}
	other := errors.New("plain")
	if WithContext(other, "Core", tok) != other {
		t.Fatalf("plain errors must pass through")
	}
}
