// Package memory provides an in-memory storage implementation for decoded entries.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fidde/segment_decoder/pkg/models"
)

// Store is an in-memory storage for decoded entries.
type Store struct {
	mu sync.RWMutex

	// entries by ID
	entries map[string]*models.DecodedEntry

	// order holds IDs in insertion order
	order []string
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		entries: make(map[string]*models.DecodedEntry),
	}
}

// StoreEntry stores or replaces a decoded entry.
func (s *Store) StoreEntry(ctx context.Context, entry *models.DecodedEntry) error {
	if err := validate(entry); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.storeLocked(entry)
	return nil
}

// StoreEntries stores a batch of entries atomically.
func (s *Store) StoreEntries(ctx context.Context, entries []*models.DecodedEntry) error {
	for _, entry := range entries {
		if err := validate(entry); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range entries {
		s.storeLocked(entry)
	}
	return nil
}

func (s *Store) storeLocked(entry *models.DecodedEntry) {
	if _, exists := s.entries[entry.ID]; !exists {
		s.order = append(s.order, entry.ID)
	}
	s.entries[entry.ID] = entry
}

// GetEntry retrieves an entry by ID.
func (s *Store) GetEntry(ctx context.Context, id string) (*models.DecodedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.entries[id]
	if !exists {
		return nil, fmt.Errorf("entry %s: %w", id, models.ErrEntryNotFound)
	}
	return entry, nil
}

// ListEntries returns entries matching filter in insertion order.
func (s *Store) ListEntries(ctx context.Context, filter models.EntryFilter) ([]*models.DecodedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*models.DecodedEntry, 0, len(s.order))
	for _, id := range s.order {
		entry := s.entries[id]
		if filter.Matches(entry) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// Summary aggregates every stored entry.
func (s *Store) Summary(ctx context.Context) (models.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var summary models.Summary
	for _, id := range s.order {
		summary.Add(s.entries[id])
	}
	return summary, nil
}

// Clear removes all stored data.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*models.DecodedEntry)
	s.order = nil
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

func validate(entry *models.DecodedEntry) error {
	if entry == nil {
		return errors.New("entry cannot be nil")
	}
	if entry.ID == "" {
		return errors.New("entry ID cannot be empty")
	}
	return nil
}
