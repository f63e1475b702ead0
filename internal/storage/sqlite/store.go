// Package sqlite provides a SQLite-backed storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fidde/segment_decoder/pkg/models"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial_schema.up.sql
var migrationSQL string

// ErrClosed is returned for writes issued after Close.
var ErrClosed = errors.New("store is closed")

// Store is a SQLite-backed storage for decoded entries.
type Store struct {
	db *sql.DB

	// Batch writer
	writeCh   chan writeOp
	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// writeOp is a group of entries written in the same transaction as the rest
// of its batch.
type writeOp struct {
	entries []*models.DecodedEntry
	done    chan error
}

// Config holds SQLite store configuration.
type Config struct {
	DBPath        string
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultConfig returns default SQLite configuration.
func DefaultConfig(dbPath string) Config {
	return Config{
		DBPath:        dbPath,
		BatchSize:     100,
		FlushInterval: 100 * time.Millisecond,
	}
}

// New creates a new SQLite store with the given configuration.
func New(cfg Config) (*Store, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." && !strings.HasPrefix(cfg.DBPath, "file:") {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set pragmas for performance
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-16000", // 16MB cache
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(migrationSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	store := &Store{
		db:      db,
		writeCh: make(chan writeOp, 1000),
		closeCh: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.batchWriter(cfg.BatchSize, cfg.FlushInterval)

	return store, nil
}

// batchWriter runs in a goroutine and batches write operations.
func (s *Store) batchWriter(batchSize int, flushInterval time.Duration) {
	defer s.wg.Done()

	batch := make([]writeOp, 0, batchSize)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		err := s.executeBatch(batch)
		for i := range batch {
			batch[i].done <- err
			close(batch[i].done)
		}

		batch = batch[:0]
	}

	for {
		select {
		case op := <-s.writeCh:
			batch = append(batch, op)
			if batchSize > 0 && len(batch) >= batchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-s.closeCh:
			// Drain ops that were queued before Close.
			for {
				select {
				case op := <-s.writeCh:
					batch = append(batch, op)
				default:
					flush()
					return
				}
			}
		}
	}
}

// executeBatch runs a batch of write operations in a single transaction.
func (s *Store) executeBatch(batch []writeOp) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO entries (id, line, source, service, raw, digits, value, unique_count, mapping, status, error, decoded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			line = excluded.line,
			source = excluded.source,
			service = excluded.service,
			raw = excluded.raw,
			digits = excluded.digits,
			value = excluded.value,
			unique_count = excluded.unique_count,
			mapping = excluded.mapping,
			status = excluded.status,
			error = excluded.error,
			decoded_at = excluded.decoded_at
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, op := range batch {
		for _, entry := range op.entries {
			if err := insertEntry(stmt, entry); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertEntry(stmt *sql.Stmt, entry *models.DecodedEntry) error {
	digits, err := encodeJSON(entry.Digits)
	if err != nil {
		return err
	}
	mapping, err := encodeJSON(entry.Mapping)
	if err != nil {
		return err
	}

	_, err = stmt.Exec(
		entry.ID,
		entry.Line,
		entry.Source,
		entry.Service,
		entry.Raw,
		digits,
		entry.Value,
		entry.UniqueCount,
		mapping,
		string(entry.Status),
		entry.Error,
		entry.DecodedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("inserting entry %s: %w", entry.ID, err)
	}
	return nil
}

// Close flushes pending writes and closes the database.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closeCh)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// StoreEntry stores or replaces a decoded entry.
func (s *Store) StoreEntry(ctx context.Context, entry *models.DecodedEntry) error {
	return s.StoreEntries(ctx, []*models.DecodedEntry{entry})
}

// StoreEntries queues entries for the batch writer and waits for the commit.
func (s *Store) StoreEntries(ctx context.Context, entries []*models.DecodedEntry) error {
	for _, entry := range entries {
		if entry == nil {
			return errors.New("entry cannot be nil")
		}
		if entry.ID == "" {
			return errors.New("entry ID cannot be empty")
		}
	}
	if len(entries) == 0 {
		return nil
	}

	done := make(chan error, 1)

	select {
	case <-s.closeCh:
		return ErrClosed
	default:
	}

	select {
	case s.writeCh <- writeOp{entries: entries, done: done}:
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closeCh:
			// The writer drains queued ops before exiting; an op queued
			// after the drain never gets a result.
			s.wg.Wait()
			select {
			case err := <-done:
				return err
			default:
				return ErrClosed
			}
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closeCh:
		return ErrClosed
	}
}

const selectColumns = `id, line, source, service, raw, digits, value, unique_count, mapping, status, error, decoded_at`

// GetEntry retrieves an entry by ID.
func (s *Store) GetEntry(ctx context.Context, id string) (*models.DecodedEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", id, models.ErrEntryNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying entry %s: %w", id, err)
	}
	return entry, nil
}

// ListEntries returns entries matching filter in insertion order.
func (s *Store) ListEntries(ctx context.Context, filter models.EntryFilter) ([]*models.DecodedEntry, error) {
	query := `SELECT ` + selectColumns + ` FROM entries`
	var (
		conds []string
		args  []interface{}
	)
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, filter.Source)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY seq"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	entries := []*models.DecodedEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Summary aggregates every stored entry.
func (s *Store) Summary(ctx context.Context) (models.Summary, error) {
	var summary models.Summary

	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN value ELSE 0 END), 0),
			COALESCE(SUM(unique_count), 0)
		FROM entries
	`, string(models.StatusDecoded), string(models.StatusDecoded))
	if err := row.Scan(&summary.Entries, &summary.Decoded, &summary.Sum, &summary.UniqueCount); err != nil {
		return summary, fmt.Errorf("querying summary: %w", err)
	}
	summary.Failed = summary.Entries - summary.Decoded

	rows, err := s.db.QueryContext(ctx, `SELECT digits FROM entries`)
	if err != nil {
		return summary, fmt.Errorf("querying digits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return summary, fmt.Errorf("scanning digits: %w", err)
		}
		var digits []int
		if err := decodeJSON(raw, &digits); err != nil {
			return summary, err
		}
		for _, d := range digits {
			if d >= 0 && d <= 9 {
				summary.DigitHistogram[d]++
			}
		}
	}
	return summary, rows.Err()
}

// Clear removes all stored data.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM entries"); err != nil {
		return fmt.Errorf("clearing entries: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (*models.DecodedEntry, error) {
	var (
		entry     models.DecodedEntry
		digits    string
		mapping   string
		status    string
		decodedAt int64
	)

	err := row.Scan(
		&entry.ID,
		&entry.Line,
		&entry.Source,
		&entry.Service,
		&entry.Raw,
		&digits,
		&entry.Value,
		&entry.UniqueCount,
		&mapping,
		&status,
		&entry.Error,
		&decodedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeJSON(digits, &entry.Digits); err != nil {
		return nil, err
	}
	if entry.Digits == nil {
		entry.Digits = []int{}
	}
	if err := decodeJSON(mapping, &entry.Mapping); err != nil {
		return nil, err
	}
	entry.Status = models.EntryStatus(status)
	entry.DecodedAt = time.Unix(0, decodedAt).UTC()

	return &entry, nil
}

// Helper functions

// encodeJSON encodes data as JSON string.
func encodeJSON(data interface{}) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encoding JSON: %w", err)
	}
	return string(b), nil
}

// decodeJSON decodes JSON string to target.
func decodeJSON(data string, target interface{}) error {
	if err := json.Unmarshal([]byte(data), target); err != nil {
		return fmt.Errorf("decoding JSON: %w", err)
	}
	return nil
}
