// Package decoder implements the deduction engine that maps scrambled
// seven-segment patterns to digits.
package decoder

import (
	"errors"
	"fmt"

	"github.com/fidde/segment_decoder/pkg/models"
	"github.com/fidde/segment_decoder/pkg/segment"
)

// Digit is a decoded display digit in [0, 9].
type Digit int

var (
	// ErrAmbiguousClassification is returned when a pattern cannot be a
	// seven-segment digit: its length is outside 2..7, or a five-segment
	// pattern overlaps the digit-4 pivot in neither 2 nor 3 wires.
	ErrAmbiguousClassification = errors.New("ambiguous classification")

	// ErrMissingPivot is returned when the examples do not hold exactly one
	// pattern for digit 1 or digit 4.
	ErrMissingPivot = errors.New("missing pivot")
)

// DecodeError describes a failed decode of a single query pattern.
type DecodeError struct {
	Query  segment.Pattern
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %s: %v", e.Query.String(), e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Canonical segment counts for the digits identifiable by length alone.
var uniqueLengths = map[int]Digit{
	2: 1,
	3: 7,
	4: 4,
	7: 8,
}

// SegmentCount returns the number of lit segments used to render d.
func SegmentCount(d Digit) int {
	switch d {
	case 1:
		return 2
	case 7:
		return 3
	case 4:
		return 4
	case 2, 3, 5:
		return 5
	case 0, 6, 9:
		return 6
	case 8:
		return 7
	}
	return 0
}

// IsUniqueLength reports whether d is one of 1, 4, 7 or 8.
func IsUniqueLength(d Digit) bool {
	_, ok := uniqueLengths[SegmentCount(d)]
	return ok
}

// Resolver decodes patterns of one entry. The digit-1 and digit-4 pivots are
// located once from the examples and reused for every query.
// A Resolver is immutable and safe for concurrent use.
type Resolver struct {
	one, four segment.Pattern
	pivotErr  error
}

// NewResolver prepares a Resolver for the given examples. Pivot problems are
// not reported here; they surface on the first query that needs a pivot, so
// unique-length queries still decode against incomplete examples.
func NewResolver(examples []segment.Pattern) *Resolver {
	r := &Resolver{}
	var ones, fours int
	for _, p := range examples {
		switch p.Len() {
		case 2:
			r.one = p
			ones++
		case 4:
			r.four = p
			fours++
		}
	}
	switch {
	case ones != 1:
		r.pivotErr = fmt.Errorf("%w: %d examples of length 2", ErrMissingPivot, ones)
	case fours != 1:
		r.pivotErr = fmt.Errorf("%w: %d examples of length 4", ErrMissingPivot, fours)
	}
	return r
}

// Decode identifies the digit rendered by query.
func (r *Resolver) Decode(query segment.Pattern) (Digit, error) {
	length := query.Len()
	if d, ok := uniqueLengths[length]; ok {
		return d, nil
	}
	if length != 5 && length != 6 {
		return 0, &DecodeError{
			Query:  query,
			Reason: fmt.Sprintf("no digit uses %d segments", length),
			Err:    ErrAmbiguousClassification,
		}
	}
	if r.pivotErr != nil {
		return 0, &DecodeError{Query: query, Reason: "resolving pivots", Err: r.pivotErr}
	}

	containsOne := query.ContainsAll(r.one)
	overlapFour := query.Overlap(r.four)

	switch {
	case length == 5 && containsOne:
		return 3, nil
	case length == 5 && overlapFour == 2:
		return 2, nil
	case length == 5 && overlapFour == 3:
		return 5, nil
	case length == 6 && !containsOne:
		return 6, nil
	case length == 6 && overlapFour == 4:
		return 9, nil
	case length == 6:
		return 0, nil
	}

	return 0, &DecodeError{
		Query:  query,
		Reason: fmt.Sprintf("five segments overlapping digit 4 in %d wires", overlapFour),
		Err:    ErrAmbiguousClassification,
	}
}

// Decode identifies query against the ten examples of its entry.
func Decode(examples []segment.Pattern, query segment.Pattern) (Digit, error) {
	return NewResolver(examples).Decode(query)
}

// DecodeAll decodes each query in order and stops at the first failure.
func (r *Resolver) DecodeAll(queries []segment.Pattern) ([]Digit, error) {
	digits := make([]Digit, 0, len(queries))
	for _, q := range queries {
		d, err := r.Decode(q)
		if err != nil {
			return digits, err
		}
		digits = append(digits, d)
	}
	return digits, nil
}

// DecodeExamples returns the digit of every example pattern. The examples must
// be models.ExampleCount patterns rendering each digit exactly once; a repeated
// pattern or two patterns resolving to the same digit fail the decode.
func DecodeExamples(examples []segment.Pattern) (map[segment.Pattern]Digit, error) {
	if len(examples) != models.ExampleCount {
		return nil, fmt.Errorf("%w: %d examples, want %d", ErrAmbiguousClassification, len(examples), models.ExampleCount)
	}

	r := NewResolver(examples)
	mapping := make(map[segment.Pattern]Digit, len(examples))
	seen := make(map[Digit]segment.Pattern, len(examples))
	for _, p := range examples {
		d, err := r.Decode(p)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[d]; dup {
			reason := fmt.Sprintf("digit %d already assigned to %q", d, prev.String())
			if prev == p {
				reason = "example repeated"
			}
			return nil, &DecodeError{
				Query:  p,
				Reason: reason,
				Err:    ErrAmbiguousClassification,
			}
		}
		seen[d] = p
		mapping[p] = d
	}
	return mapping, nil
}

// Number folds digits into a base-10 value, most significant first.
func Number(digits []Digit) int {
	n := 0
	for _, d := range digits {
		n = n*10 + int(d)
	}
	return n
}
