// Package dual writes to two storage backends, reading from the primary only.
package dual

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fidde/segment_decoder/pkg/models"
)

// ErrClosed is returned for writes after Close.
var ErrClosed = errors.New("dual store closed")

// Backend is the subset of storage.Storage the dual store drives.
type Backend interface {
	StoreEntry(ctx context.Context, entry *models.DecodedEntry) error
	StoreEntries(ctx context.Context, entries []*models.DecodedEntry) error
	GetEntry(ctx context.Context, id string) (*models.DecodedEntry, error)
	ListEntries(ctx context.Context, filter models.EntryFilter) ([]*models.DecodedEntry, error)
	Summary(ctx context.Context) (models.Summary, error)
	Clear(ctx context.Context) error
	Close() error
}

// Store wraps two storage backends for dual-write migration.
// Writes go to both primary and secondary.
// Reads come from primary only.
type Store struct {
	primary   Backend
	secondary Backend
	logger    *slog.Logger

	// mu guards the in-flight secondary write count and closed. Writes may
	// start while Wait is blocked, so a WaitGroup cannot be used.
	mu       sync.Mutex
	idle     *sync.Cond
	inflight int
	closed   bool
}

// Config holds dual store configuration.
type Config struct {
	Primary   Backend
	Secondary Backend
	Logger    *slog.Logger
}

// New creates a new dual-write store.
func New(cfg Config) *Store {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Store{
		primary:   cfg.Primary,
		secondary: cfg.Secondary,
		logger:    cfg.Logger,
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// dualWrite performs a write to both backends.
// Errors from secondary are logged but don't fail the operation.
func (s *Store) dualWrite(ctx context.Context, op string, primaryWrite, secondaryWrite func(context.Context) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.inflight++
	s.mu.Unlock()

	// Write to primary (this determines success/failure)
	if err := primaryWrite(ctx); err != nil {
		s.done()
		return err
	}

	// The request context may end before the secondary write does.
	bg := context.WithoutCancel(ctx)

	go func() {
		defer s.done()
		if err := secondaryWrite(bg); err != nil {
			s.logger.Error("dual-write to secondary failed",
				"operation", op,
				"error", err,
			)
		}
	}()

	return nil
}

// StoreEntry stores an entry in both backends.
func (s *Store) StoreEntry(ctx context.Context, entry *models.DecodedEntry) error {
	return s.dualWrite(ctx, "StoreEntry",
		func(ctx context.Context) error { return s.primary.StoreEntry(ctx, entry) },
		func(ctx context.Context) error { return s.secondary.StoreEntry(ctx, entry) },
	)
}

// StoreEntries stores a batch of entries in both backends.
func (s *Store) StoreEntries(ctx context.Context, entries []*models.DecodedEntry) error {
	return s.dualWrite(ctx, "StoreEntries",
		func(ctx context.Context) error { return s.primary.StoreEntries(ctx, entries) },
		func(ctx context.Context) error { return s.secondary.StoreEntries(ctx, entries) },
	)
}

// GetEntry retrieves an entry from primary backend only.
func (s *Store) GetEntry(ctx context.Context, id string) (*models.DecodedEntry, error) {
	return s.primary.GetEntry(ctx, id)
}

// ListEntries lists entries from primary backend only.
func (s *Store) ListEntries(ctx context.Context, filter models.EntryFilter) ([]*models.DecodedEntry, error) {
	return s.primary.ListEntries(ctx, filter)
}

// Summary aggregates entries from primary backend only.
func (s *Store) Summary(ctx context.Context) (models.Summary, error) {
	return s.primary.Summary(ctx)
}

func (s *Store) done() {
	s.mu.Lock()
	s.inflight--
	if s.inflight == 0 {
		s.idle.Broadcast()
	}
	s.mu.Unlock()
}

// Wait blocks until in-flight writes finish. It may run concurrently with
// new writes.
func (s *Store) Wait() {
	s.mu.Lock()
	for s.inflight > 0 {
		s.idle.Wait()
	}
	s.mu.Unlock()
}

// Clear clears both backends.
func (s *Store) Clear(ctx context.Context) error {
	s.Wait()

	if err := s.primary.Clear(ctx); err != nil {
		return fmt.Errorf("clear primary: %w", err)
	}

	// Clear secondary (best effort)
	if err := s.secondary.Clear(ctx); err != nil {
		s.logger.Error("failed to clear secondary backend",
			"error", err,
		)
	}

	return nil
}

// Close rejects new writes, waits for pending ones and closes both backends.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.Wait()

	primaryErr := s.primary.Close()
	secondaryErr := s.secondary.Close()

	if primaryErr != nil {
		return fmt.Errorf("close primary: %w", primaryErr)
	}
	if secondaryErr != nil {
		return fmt.Errorf("close secondary: %w", secondaryErr)
	}

	return nil
}
