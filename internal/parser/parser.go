// Package parser reads display entries from their text form.
package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fidde/segment_decoder/pkg/models"
	"github.com/fidde/segment_decoder/pkg/segment"
)

// Delimiter separates the example patterns from the output patterns.
const Delimiter = "|"

// ErrMalformedEntry is returned for a line that is not a display entry.
var ErrMalformedEntry = errors.New("malformed entry")

// LineError ties a parse failure to its input line.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// ParseEntry parses a single "examples | outputs" line.
func ParseEntry(line string) (models.Entry, error) {
	parts := strings.Split(line, Delimiter)
	if len(parts) != 2 {
		return models.Entry{}, fmt.Errorf("%w: expected one %q delimiter, found %d", ErrMalformedEntry, Delimiter, len(parts)-1)
	}

	exampleTokens := strings.Fields(parts[0])
	outputTokens := strings.Fields(parts[1])
	if len(exampleTokens) != models.ExampleCount {
		return models.Entry{}, fmt.Errorf("%w: expected %d example patterns, got %d", ErrMalformedEntry, models.ExampleCount, len(exampleTokens))
	}
	if len(outputTokens) != models.OutputCount {
		return models.Entry{}, fmt.Errorf("%w: expected %d output patterns, got %d", ErrMalformedEntry, models.OutputCount, len(outputTokens))
	}

	examples, err := segment.ParseAll(exampleTokens)
	if err != nil {
		return models.Entry{}, fmt.Errorf("%w: examples: %w", ErrMalformedEntry, err)
	}
	outputs, err := segment.ParseAll(outputTokens)
	if err != nil {
		return models.Entry{}, fmt.Errorf("%w: outputs: %w", ErrMalformedEntry, err)
	}

	return models.Entry{Examples: examples, Outputs: outputs}, nil
}

// Line is a parsed or rejected input line.
type Line struct {
	Number int
	Text   string
	Entry  models.Entry
	Err    error
}

// ReadLines parses every non-blank line of r. Malformed lines are returned
// with Err set to a *LineError rather than stopping the scan; only read
// failures end it early.
func ReadLines(r io.Reader) ([]Line, error) {
	var lines []Line
	scanner := bufio.NewScanner(r)
	number := 0
	for scanner.Scan() {
		number++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		entry, err := ParseEntry(text)
		if err != nil {
			err = &LineError{Line: number, Text: text, Err: err}
		}
		lines = append(lines, Line{Number: number, Text: text, Entry: entry, Err: err})
	}
	if err := scanner.Err(); err != nil {
		return lines, fmt.Errorf("reading entries: %w", err)
	}
	return lines, nil
}
