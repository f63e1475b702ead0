package receiver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fidde/segment_decoder/internal/analyzer"
	"github.com/fidde/segment_decoder/internal/storage"
	"github.com/fidde/segment_decoder/pkg/models"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
)

// ingester decodes and stores the entries of one export request. It is shared
// by the HTTP and gRPC receivers.
type ingester struct {
	store  storage.Storage
	logs   *analyzer.LogsAnalyzer
	logger *slog.Logger
}

func newIngester(store storage.Storage, entries *analyzer.EntryAnalyzer, logger *slog.Logger) *ingester {
	if logger == nil {
		logger = slog.Default()
	}
	if entries == nil {
		entries = analyzer.NewEntryAnalyzer(0)
	}
	return &ingester{
		store:  store,
		logs:   analyzer.NewLogsAnalyzer(entries),
		logger: logger,
	}
}

// export decodes req, stores every result and reports records that failed to
// decode as rejected.
func (i *ingester) export(ctx context.Context, req *collogspb.ExportLogsServiceRequest, source string) (*collogspb.ExportLogsServiceResponse, error) {
	results, skipped, err := i.logs.Analyze(ctx, req, source)
	if err != nil {
		return nil, fmt.Errorf("analyzing logs: %w", err)
	}

	if err := i.store.StoreEntries(ctx, results); err != nil {
		return nil, fmt.Errorf("storing entries: %w", err)
	}

	var failed int64
	for _, r := range results {
		if r.Status == models.StatusFailed {
			failed++
		}
	}

	i.logger.Debug("ingested log records",
		"source", source,
		"entries", len(results),
		"failed", failed,
		"skipped", skipped,
	)

	resp := &collogspb.ExportLogsServiceResponse{}
	if failed > 0 {
		resp.PartialSuccess = &collogspb.ExportLogsPartialSuccess{
			RejectedLogRecords: failed,
			ErrorMessage:       fmt.Sprintf("%d of %d log records could not be decoded", failed, len(results)),
		}
	}
	return resp, nil
}
