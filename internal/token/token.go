package token

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

const (
	rowBits = 24
	// MaxRow is the largest row number a token can carry.
	MaxRow  = 1<<rowBits - 1
	rowMask = MaxRow
)

// Token is a (table kind, row) reference into module metadata.
type Token uint32

// Make builds a token from a table kind and a 1-based row.
func Make(kind Kind, row uint32) (Token, error) {
	if row > MaxRow {
		return 0, fmt.Errorf("token: row %d exceeds %d", row, MaxRow)
	}
	return Token(uint32(kind)<<rowBits | row), nil
}

// MustMake is Make for rows known to be in range.
func MustMake(kind Kind, row uint32) Token {
	tok, err := Make(kind, row)
	if err != nil {
		panic(err)
	}
	return tok
}

// FromIndex builds a token for the 0-based table index i.
func FromIndex(kind Kind, i int) (Token, error) {
	row, err := safecast.Conv[uint32](i + 1)
	if err != nil {
		return 0, fmt.Errorf("token: index %d: %w", i, err)
	}
	return Make(kind, row)
}

// Kind returns the table kind.
func (t Token) Kind() Kind { return Kind(t >> rowBits) }

// Row returns the 1-based row number.
func (t Token) Row() uint32 { return uint32(t) & rowMask }

// IsNil reports whether the token refers to no row.
func (t Token) IsNil() bool { return t.Row() == 0 }

// RawIndex returns the 0-based table index for the row.
// It fails for nil tokens.
func (t Token) RawIndex() (uint32, bool) {
	row := t.Row()
	if row == 0 {
		return 0, false
	}
	return row - 1, true
}

// Hex renders the raw 32-bit value.
func (t Token) Hex() string {
	return fmt.Sprintf("0x%08x", uint32(t))
}

func (t Token) String() string {
	return fmt.Sprintf("%s#%d (%s)", t.Kind(), t.Row(), t.Hex())
}

// Parse reads a token written as hex ("0x02000004") or decimal text.
func Parse(s string) (Token, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("token: empty input")
	}
	base := 10
	digits := s
	if rest, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		base = 16
		digits = rest
	}
	v, err := strconv.ParseUint(digits, base, 32)
	if err != nil {
		return 0, fmt.Errorf("token: parse %q: %w", s, err)
	}
	return Token(v), nil
}
