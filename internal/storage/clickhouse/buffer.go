package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const (
	defaultBatchSize     = 1000
	defaultFlushInterval = 5 * time.Second
	defaultShutdownWait  = 10 * time.Second
	maxRetries           = 3
)

// EntryRow represents a row in the decoded_entries table
type EntryRow struct {
	ID            string
	Seq           uint64
	Line          uint32
	Source        string
	ServiceName   string
	Raw           string
	Digits        []uint8
	Value         int64
	UniqueCount   uint32
	MappingKeys   []string
	MappingValues []uint8
	Status        string
	Error         string
	DecodedAt     time.Time
}

// BatchBuffer manages batched writes to ClickHouse with automatic flushing
type BatchBuffer struct {
	conn driver.Conn

	mu   sync.Mutex
	rows []EntryRow

	batchSize     int
	flushInterval time.Duration
	shutdownWait  time.Duration

	flushTimer *time.Timer
	stopCh     chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// NewBatchBuffer creates a new batch buffer. Zero batchSize or flushInterval
// select the defaults.
func NewBatchBuffer(conn driver.Conn, batchSize int, flushInterval time.Duration, logger *slog.Logger) *BatchBuffer {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	b := &BatchBuffer{
		conn:          conn,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		shutdownWait:  defaultShutdownWait,
		stopCh:        make(chan struct{}),
		logger:        logger,
	}

	b.flushTimer = time.NewTimer(b.flushInterval)

	b.wg.Add(1)
	go b.flushLoop()

	return b
}

// AddEntries adds entry rows to the buffer, flushing when it is full.
func (b *BatchBuffer) AddEntries(rows ...EntryRow) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rows = append(b.rows, rows...)

	if len(b.rows) >= b.batchSize {
		return b.flushLocked()
	}

	return nil
}

// Flush writes every buffered row now.
func (b *BatchBuffer) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.flushLocked()
}

// Discard drops buffered rows without writing them.
func (b *BatchBuffer) Discard() {
	b.mu.Lock()
	b.rows = nil
	b.mu.Unlock()
}

// Pending returns the number of buffered rows.
func (b *BatchBuffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.rows)
}

// flushLoop periodically flushes the buffer on timer
func (b *BatchBuffer) flushLoop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.flushTimer.C:
			b.mu.Lock()
			_ = b.flushLocked()
			b.mu.Unlock()
			b.flushTimer.Reset(b.flushInterval)

		case <-b.stopCh:
			b.flushTimer.Stop()
			return
		}
	}
}

// flushLocked flushes entry rows (must hold lock)
func (b *BatchBuffer) flushLocked() error {
	if len(b.rows) == 0 {
		return nil
	}

	start := time.Now()
	rows := b.rows
	b.rows = nil

	// Release lock during insert
	b.mu.Unlock()
	err := b.insertEntries(rows)
	b.mu.Lock()

	if err != nil {
		b.logger.Error("failed to flush entries",
			"error", err,
			"row_count", len(rows),
		)
		return err
	}

	b.logger.Debug("flushed entries",
		"row_count", len(rows),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Close gracefully shuts down the buffer, flushing remaining data
func (b *BatchBuffer) Close(ctx context.Context) error {
	var finalErr error

	b.closeOnce.Do(func() {
		close(b.stopCh)

		shutdownCtx, cancel := context.WithTimeout(ctx, b.shutdownWait)
		defer cancel()

		done := make(chan struct{})
		go func() {
			b.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-shutdownCtx.Done():
			b.logger.Warn("flush loop did not stop within timeout")
		}

		b.mu.Lock()
		defer b.mu.Unlock()

		finalErr = b.flushLocked()
	})

	return finalErr
}

func (b *BatchBuffer) insertEntries(rows []EntryRow) error {
	return b.retryInsert(func(ctx context.Context) error {
		batch, err := b.conn.PrepareBatch(ctx, "INSERT INTO decoded_entries")
		if err != nil {
			return err
		}

		for _, row := range rows {
			err = batch.Append(
				row.ID,
				row.Seq,
				row.Line,
				row.Source,
				row.ServiceName,
				row.Raw,
				row.Digits,
				row.Value,
				row.UniqueCount,
				row.MappingKeys,
				row.MappingValues,
				row.Status,
				row.Error,
				row.DecodedAt,
			)
			if err != nil {
				return err
			}
		}

		return batch.Send()
	})
}

// retryInsert retries insert operation with exponential backoff
func (b *BatchBuffer) retryInsert(fn func(context.Context) error) error {
	var err error
	retryDelay := 100 * time.Millisecond

	for attempt := 1; attempt <= maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = fn(ctx)
		cancel()

		if err == nil {
			return nil
		}

		if attempt < maxRetries {
			time.Sleep(retryDelay)
			retryDelay *= 2
		}
	}

	return fmt.Errorf("insert failed after %d attempts: %w", maxRetries, err)
}
