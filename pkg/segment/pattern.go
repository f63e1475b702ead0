// Package segment provides the wire-set abstraction for seven-segment display
// signal patterns.
package segment

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

// Wires is the fixed alphabet of signal wires, one per segment.
const Wires = "abcdefg"

// NumWires is the number of wires in the alphabet.
const NumWires = len(Wires)

var (
	// ErrInvalidWire is returned when a pattern contains a character outside a-g.
	ErrInvalidWire = errors.New("invalid wire")

	// ErrDuplicateWire is returned when a pattern names the same wire twice.
	ErrDuplicateWire = errors.New("duplicate wire")
)

// Pattern is an unordered set of lit wires stored as a 7-bit mask.
// Bit i is set when wire Wires[i] is lit.
type Pattern uint8

// Parse converts a token such as "cdfbe" into a Pattern.
// Character order is irrelevant.
func Parse(s string) (Pattern, error) {
	var p Pattern
	for _, r := range s {
		if r < 'a' || r > 'g' {
			return 0, fmt.Errorf("%q: %w %q", s, ErrInvalidWire, r)
		}
		bit := Pattern(1) << (r - 'a')
		if p&bit != 0 {
			return 0, fmt.Errorf("%q: %w %q", s, ErrDuplicateWire, r)
		}
		p |= bit
	}
	return p, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) Pattern {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// ParseAll parses every token, stopping at the first error.
func ParseAll(tokens []string) ([]Pattern, error) {
	patterns := make([]Pattern, 0, len(tokens))
	for _, tok := range tokens {
		p, err := Parse(tok)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// Len returns the number of lit wires.
func (p Pattern) Len() int {
	return bits.OnesCount8(uint8(p))
}

// ContainsAll reports whether every wire of other is lit in p.
func (p Pattern) ContainsAll(other Pattern) bool {
	return p&other == other
}

// Overlap returns the number of wires lit in both patterns.
func (p Pattern) Overlap(other Pattern) int {
	return bits.OnesCount8(uint8(p & other))
}

// String renders the lit wires in alphabetical order.
func (p Pattern) String() string {
	var b strings.Builder
	b.Grow(NumWires)
	for i := 0; i < NumWires; i++ {
		if p&(1<<i) != 0 {
			b.WriteByte(Wires[i])
		}
	}
	return b.String()
}
