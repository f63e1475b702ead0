// Package storage defines the storage interface for decoded display entries.
package storage

import (
	"context"

	"github.com/fidde/segment_decoder/pkg/models"
)

// Storage is the interface for storing and retrieving decoded entries.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Entry operations
	StoreEntry(ctx context.Context, entry *models.DecodedEntry) error
	StoreEntries(ctx context.Context, entries []*models.DecodedEntry) error
	GetEntry(ctx context.Context, id string) (*models.DecodedEntry, error)

	// ListEntries returns entries in the order they were stored.
	ListEntries(ctx context.Context, filter models.EntryFilter) ([]*models.DecodedEntry, error)

	// Summary aggregates every stored entry.
	Summary(ctx context.Context) (models.Summary, error)

	// Clear all data
	Clear(ctx context.Context) error

	// Close the storage (for cleanup, e.g., DB connections)
	Close() error
}
