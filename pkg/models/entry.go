// Package models defines the core data structures for decoded display entries.
package models

import (
	"errors"
	"strings"
	"time"

	"github.com/fidde/segment_decoder/pkg/segment"
)

// Sizes of a well-formed display entry.
const (
	ExampleCount = 10
	OutputCount  = 4
)

// Entry is one line of input: the ten example patterns of a display and the
// four output patterns to decode.
type Entry struct {
	Examples []segment.Pattern
	Outputs  []segment.Pattern
}

// String renders the entry back into the input line format.
func (e Entry) String() string {
	var b strings.Builder
	for i, p := range e.Examples {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p.String())
	}
	b.WriteString(" |")
	for _, p := range e.Outputs {
		b.WriteByte(' ')
		b.WriteString(p.String())
	}
	return b.String()
}

// EntryStatus is the outcome of decoding an entry.
type EntryStatus string

const (
	StatusDecoded EntryStatus = "decoded"
	StatusFailed  EntryStatus = "failed"
)

// Entry sources.
const (
	SourceCLI      = "cli"
	SourceAPI      = "api"
	SourceOTLPHTTP = "otlp-http"
	SourceOTLPGRPC = "otlp-grpc"
)

// DecodedEntry is the stored result of decoding one entry.
type DecodedEntry struct {
	ID      string `json:"id"`
	Line    int    `json:"line"`
	Source  string `json:"source"`
	Service string `json:"service,omitempty"`
	Raw     string `json:"raw"`

	// Digits holds the decoded outputs. For a failed entry it holds the outputs
	// decoded before the first failure.
	Digits []int `json:"digits"`

	// Value is the four-digit number; zero when Status is failed.
	Value int `json:"value"`

	// UniqueCount is how many outputs decoded to 1, 4, 7 or 8.
	UniqueCount int `json:"unique_count"`

	// Mapping is the decoded digit of every example pattern, keyed by pattern.
	Mapping map[string]int `json:"mapping,omitempty"`

	Status    EntryStatus `json:"status"`
	Error     string      `json:"error,omitempty"`
	DecodedAt time.Time   `json:"decoded_at"`
}

// Decoded reports whether the entry produced a trusted value.
func (d *DecodedEntry) Decoded() bool {
	return d.Status == StatusDecoded
}

// EntryFilter narrows a listing of stored entries.
type EntryFilter struct {
	Status EntryStatus
	Source string
}

// Matches reports whether entry passes the filter.
func (f EntryFilter) Matches(entry *DecodedEntry) bool {
	if f.Status != "" && entry.Status != f.Status {
		return false
	}
	if f.Source != "" && entry.Source != f.Source {
		return false
	}
	return true
}

// ErrEntryNotFound is returned by storage backends for an unknown entry ID.
var ErrEntryNotFound = errors.New("entry not found")
