package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/fidde/segment_decoder/pkg/models"
)

// Store implements the storage.Storage interface using ClickHouse
type Store struct {
	conn   driver.Conn
	buffer *BatchBuffer
	logger *slog.Logger

	// seq orders rows across restarts; seeded from the wall clock.
	seq atomic.Uint64
}

// NewStore creates a new ClickHouse storage instance
func NewStore(ctx context.Context, config *ConnectionConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config == nil {
		config = DefaultConfig()
	}

	conn, err := Connect(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connecting to ClickHouse: %w", err)
	}

	if err := InitializeSchema(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	store := &Store{
		conn:   conn,
		buffer: NewBatchBuffer(conn, config.BatchSize, config.FlushInterval, logger),
		logger: logger,
	}
	store.seq.Store(uint64(time.Now().UnixNano()))

	return store, nil
}

// Entry operations

func (s *Store) StoreEntry(ctx context.Context, entry *models.DecodedEntry) error {
	return s.StoreEntries(ctx, []*models.DecodedEntry{entry})
}

func (s *Store) StoreEntries(ctx context.Context, entries []*models.DecodedEntry) error {
	rows := make([]EntryRow, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			return errors.New("entry cannot be nil")
		}
		if entry.ID == "" {
			return errors.New("entry ID cannot be empty")
		}
		rows = append(rows, toRow(entry, s.seq.Add(1)))
	}
	if len(rows) == 0 {
		return nil
	}
	return s.buffer.AddEntries(rows...)
}

const selectColumns = `
	id, seq, line, source, service_name, raw,
	digits, value, unique_count, mapping_keys, mapping_values,
	status, error, decoded_at`

func (s *Store) GetEntry(ctx context.Context, id string) (*models.DecodedEntry, error) {
	if err := s.buffer.Flush(); err != nil {
		return nil, fmt.Errorf("flushing buffer: %w", err)
	}

	rows, err := s.conn.Query(ctx, `SELECT `+selectColumns+` FROM decoded_entries FINAL WHERE id = ? LIMIT 1`, id)
	if err != nil {
		return nil, fmt.Errorf("querying entry %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("querying entry %s: %w", id, err)
		}
		return nil, fmt.Errorf("entry %s: %w", id, models.ErrEntryNotFound)
	}

	row, err := scanRow(rows)
	if err != nil {
		return nil, fmt.Errorf("scanning entry %s: %w", id, err)
	}
	return fromRow(row), nil
}

func (s *Store) ListEntries(ctx context.Context, filter models.EntryFilter) ([]*models.DecodedEntry, error) {
	if err := s.buffer.Flush(); err != nil {
		return nil, fmt.Errorf("flushing buffer: %w", err)
	}

	query := `SELECT ` + selectColumns + ` FROM decoded_entries FINAL`
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

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	entries := []*models.DecodedEntry{}
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, fromRow(row))
	}
	return entries, rows.Err()
}

func (s *Store) Summary(ctx context.Context) (models.Summary, error) {
	var summary models.Summary

	if err := s.buffer.Flush(); err != nil {
		return summary, fmt.Errorf("flushing buffer: %w", err)
	}

	var entries, decoded, sum, unique int64
	row := s.conn.QueryRow(ctx, `
		SELECT
			toInt64(count()),
			toInt64(countIf(status = ?)),
			toInt64(sumIf(value, status = ?)),
			toInt64(sum(unique_count))
		FROM decoded_entries FINAL
	`, string(models.StatusDecoded), string(models.StatusDecoded))
	if err := row.Scan(&entries, &decoded, &sum, &unique); err != nil {
		return summary, fmt.Errorf("querying summary: %w", err)
	}
	summary.Entries = int(entries)
	summary.Decoded = int(decoded)
	summary.Failed = int(entries - decoded)
	summary.Sum = sum
	summary.UniqueCount = int(unique)

	rows, err := s.conn.Query(ctx, `
		SELECT d, toInt64(count())
		FROM decoded_entries FINAL
		ARRAY JOIN digits AS d
		GROUP BY d
	`)
	if err != nil {
		return summary, fmt.Errorf("querying digit histogram: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			digit uint8
			count int64
		)
		if err := rows.Scan(&digit, &count); err != nil {
			return summary, fmt.Errorf("scanning digit histogram: %w", err)
		}
		if digit <= 9 {
			summary.DigitHistogram[digit] = int(count)
		}
	}
	return summary, rows.Err()
}

// Utility operations

func (s *Store) Clear(ctx context.Context) error {
	s.buffer.Discard()
	if err := s.conn.Exec(ctx, "TRUNCATE TABLE decoded_entries"); err != nil {
		return fmt.Errorf("truncating table decoded_entries: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.buffer.Close(ctx); err != nil {
		s.logger.Error("error flushing buffer on close", "error", err)
	}

	return s.conn.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(rows rowScanner) (EntryRow, error) {
	var row EntryRow
	err := rows.Scan(
		&row.ID,
		&row.Seq,
		&row.Line,
		&row.Source,
		&row.ServiceName,
		&row.Raw,
		&row.Digits,
		&row.Value,
		&row.UniqueCount,
		&row.MappingKeys,
		&row.MappingValues,
		&row.Status,
		&row.Error,
		&row.DecodedAt,
	)
	return row, err
}

// toRow flattens an entry into a table row. Mapping keys are sorted.
func toRow(entry *models.DecodedEntry, seq uint64) EntryRow {
	digits := make([]uint8, len(entry.Digits))
	for i, d := range entry.Digits {
		digits[i] = uint8(d)
	}

	keys := make([]string, 0, len(entry.Mapping))
	for k := range entry.Mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]uint8, len(keys))
	for i, k := range keys {
		values[i] = uint8(entry.Mapping[k])
	}

	return EntryRow{
		ID:            entry.ID,
		Seq:           seq,
		Line:          uint32(entry.Line),
		Source:        entry.Source,
		ServiceName:   entry.Service,
		Raw:           entry.Raw,
		Digits:        digits,
		Value:         int64(entry.Value),
		UniqueCount:   uint32(entry.UniqueCount),
		MappingKeys:   keys,
		MappingValues: values,
		Status:        string(entry.Status),
		Error:         entry.Error,
		DecodedAt:     entry.DecodedAt,
	}
}

func fromRow(row EntryRow) *models.DecodedEntry {
	digits := make([]int, len(row.Digits))
	for i, d := range row.Digits {
		digits[i] = int(d)
	}

	var mapping map[string]int
	if len(row.MappingKeys) > 0 {
		mapping = make(map[string]int, len(row.MappingKeys))
		for i, k := range row.MappingKeys {
			if i < len(row.MappingValues) {
				mapping[k] = int(row.MappingValues[i])
			}
		}
	}

	return &models.DecodedEntry{
		ID:          row.ID,
		Line:        int(row.Line),
		Source:      row.Source,
		Service:     row.ServiceName,
		Raw:         row.Raw,
		Digits:      digits,
		Value:       int(row.Value),
		UniqueCount: int(row.UniqueCount),
		Mapping:     mapping,
		Status:      models.EntryStatus(row.Status),
		Error:       row.Error,
		DecodedAt:   row.DecodedAt.UTC(),
	}
}
