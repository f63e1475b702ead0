// Package analyzer decodes display entries and aggregates the results.
package analyzer

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/fidde/segment_decoder/internal/decoder"
	"github.com/fidde/segment_decoder/internal/parser"
	"github.com/fidde/segment_decoder/pkg/models"
	"github.com/google/uuid"
)

// EntryAnalyzer decodes entries into stored results.
// It is safe for concurrent use.
type EntryAnalyzer struct {
	workers int
	now     func() time.Time
}

// NewEntryAnalyzer creates an analyzer that fans batches out over workers
// goroutines. A non-positive value uses runtime.NumCPU().
func NewEntryAnalyzer(workers int) *EntryAnalyzer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &EntryAnalyzer{
		workers: workers,
		now:     time.Now,
	}
}

// Workers returns the size of the worker pool.
func (a *EntryAnalyzer) Workers() int {
	return a.workers
}

// AnalyzeEntry decodes every output of entry.
//
// The first failing output invalidates the entry's value, as do examples that
// do not resolve to ten distinct digits. Digits decoded before the failure are
// kept so that unique-length counting still sees them.
func (a *EntryAnalyzer) AnalyzeEntry(entry models.Entry, source string) *models.DecodedEntry {
	result := &models.DecodedEntry{
		ID:        uuid.NewString(),
		Source:    source,
		Raw:       entry.String(),
		Digits:    make([]int, 0, len(entry.Outputs)),
		DecodedAt: a.now().UTC(),
	}

	r := decoder.NewResolver(entry.Examples)
	digits, err := r.DecodeAll(entry.Outputs)
	for _, d := range digits {
		result.Digits = append(result.Digits, int(d))
		if decoder.IsUniqueLength(d) {
			result.UniqueCount++
		}
	}
	recordDigits(digits)

	if err != nil {
		result.Status = models.StatusFailed
		result.Error = err.Error()
		recordEntry(source, result.Status, failureReason(err))
		return result
	}

	// Examples that do not render every digit once leave the outputs untrusted.
	mapping, err := decoder.DecodeExamples(entry.Examples)
	if err != nil {
		result.Status = models.StatusFailed
		result.Error = err.Error()
		recordEntry(source, result.Status, failureReason(err))
		return result
	}

	result.Value = decoder.Number(digits)
	result.Status = models.StatusDecoded
	result.Mapping = make(map[string]int, len(mapping))
	for p, d := range mapping {
		result.Mapping[p.String()] = int(d)
	}

	recordEntry(source, result.Status, "")
	return result
}

// AnalyzeLine decodes a parsed input line. Lines the parser rejected become
// failed entries carrying the parse error.
func (a *EntryAnalyzer) AnalyzeLine(line parser.Line, source string) *models.DecodedEntry {
	if line.Err != nil {
		recordEntry(source, models.StatusFailed, reasonMalformed)
		return &models.DecodedEntry{
			ID:        uuid.NewString(),
			Line:      line.Number,
			Source:    source,
			Raw:       line.Text,
			Digits:    []int{},
			Status:    models.StatusFailed,
			Error:     line.Err.Error(),
			DecodedAt: a.now().UTC(),
		}
	}

	result := a.AnalyzeEntry(line.Entry, source)
	result.Line = line.Number
	result.Raw = line.Text
	return result
}

// AnalyzeLines decodes lines on the worker pool and returns results in input
// order. Entries are independent, so no ordering is imposed between workers.
// When ctx is cancelled, lines not yet started are skipped and ctx.Err() is
// returned along with the partial results (nil for skipped lines).
func (a *EntryAnalyzer) AnalyzeLines(ctx context.Context, lines []parser.Line, source string) ([]*models.DecodedEntry, error) {
	results := make([]*models.DecodedEntry, len(lines))
	if len(lines) == 0 {
		return results, nil
	}

	workers := a.workers
	if workers > len(lines) {
		workers = len(lines)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = a.AnalyzeLine(lines[i], source)
			}
		}()
	}

	var err error
feed:
	for i := range lines {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return results, err
}

// CountDigits counts decoded output digits equal to any of digits.
func CountDigits(entries []*models.DecodedEntry, digits ...int) int {
	want := make(map[int]bool, len(digits))
	for _, d := range digits {
		want[d] = true
	}

	count := 0
	for _, e := range entries {
		if e == nil {
			continue
		}
		for _, d := range e.Digits {
			if want[d] {
				count++
			}
		}
	}
	return count
}
