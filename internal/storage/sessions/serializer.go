package sessions

import (
	"context"
	"fmt"
	"sort"

	"github.com/fidde/segment_decoder/pkg/models"
)

// EntryReader is the read side of an entry store.
type EntryReader interface {
	ListEntries(ctx context.Context, filter models.EntryFilter) ([]*models.DecodedEntry, error)
}

// EntryWriter is the write side of an entry store.
type EntryWriter interface {
	StoreEntries(ctx context.Context, entries []*models.DecodedEntry) error
	Clear(ctx context.Context) error
}

// Serializer handles conversion between live store data and sessions.
type Serializer struct{}

// NewSerializer creates a new serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// CreateSession snapshots the entries of src selected by opts.
func (s *Serializer) CreateSession(ctx context.Context, src EntryReader, opts models.SessionSaveOptions) (*models.Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	all, err := src.ListEntries(ctx, models.EntryFilter{Status: opts.Status})
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}

	entries := make([]*models.DecodedEntry, 0, len(all))
	seen := make(map[string]struct{})
	for _, entry := range all {
		if !opts.Includes(entry) {
			continue
		}
		entries = append(entries, entry)
		seen[entry.Source] = struct{}{}
	}

	sources := make([]string, 0, len(seen))
	for source := range seen {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	return &models.Session{
		Version:     CurrentVersion,
		ID:          opts.Name,
		Description: opts.Description,
		Sources:     sources,
		Entries:     entries,
		Summary:     models.Summarize(entries),
	}, nil
}

// LoadSession writes the session's entries into dst. Unless merge is set, dst
// is cleared first.
func (s *Serializer) LoadSession(ctx context.Context, session *models.Session, dst EntryWriter, merge bool) (*models.SessionLoadResult, error) {
	if !merge {
		if err := dst.Clear(ctx); err != nil {
			return nil, fmt.Errorf("clearing store: %w", err)
		}
	}

	entries := make([]*models.DecodedEntry, 0, len(session.Entries))
	for _, entry := range session.Entries {
		if entry != nil && entry.ID != "" {
			entries = append(entries, entry)
		}
	}

	if len(entries) > 0 {
		if err := dst.StoreEntries(ctx, entries); err != nil {
			return nil, fmt.Errorf("storing entries: %w", err)
		}
	}

	return &models.SessionLoadResult{
		Loaded:        true,
		SessionID:     session.ID,
		EntriesLoaded: len(entries),
	}, nil
}
