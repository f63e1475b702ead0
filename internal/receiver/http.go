// Package receiver implements OTLP HTTP and gRPC endpoints that ingest display
// entries carried as log record bodies.
package receiver

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fidde/segment_decoder/internal/analyzer"
	"github.com/fidde/segment_decoder/internal/storage"
	"github.com/fidde/segment_decoder/pkg/models"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// maxBodySize bounds a decompressed request body.
const maxBodySize = 32 << 20

// HTTPReceiver handles OTLP HTTP requests.
type HTTPReceiver struct {
	ingest *ingester
	logger *slog.Logger
	server *http.Server
}

// NewHTTPReceiver creates a new HTTP receiver.
func NewHTTPReceiver(addr string, store storage.Storage, entries *analyzer.EntryAnalyzer, logger *slog.Logger) *HTTPReceiver {
	r := &HTTPReceiver{
		ingest: newIngester(store, entries, logger),
	}
	r.logger = r.ingest.logger

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/logs", r.handleLogs)
	mux.HandleFunc("/health", r.handleHealth)

	r.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return r
}

// Handler returns the receiver's HTTP handler.
func (r *HTTPReceiver) Handler() http.Handler {
	return r.server.Handler
}

// Start starts the HTTP server.
func (r *HTTPReceiver) Start() error {
	return r.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (r *HTTPReceiver) Shutdown(ctx context.Context) error {
	return r.server.Shutdown(ctx)
}

// handleLogs handles OTLP logs export requests.
func (r *HTTPReceiver) handleLogs(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer req.Body.Close()

	// Handle compression
	var reader io.Reader = req.Body
	if req.Header.Get("Content-Encoding") == "gzip" {
		gr, err := gzip.NewReader(req.Body)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to decompress: %v", err), http.StatusBadRequest)
			return
		}
		defer gr.Close()
		reader = gr
	}

	body, err := io.ReadAll(io.LimitReader(reader, maxBodySize))
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read body: %v", err), http.StatusBadRequest)
		return
	}

	var exportReq collogspb.ExportLogsServiceRequest
	if err := unmarshalLogs(body, req.Header.Get("Content-Type"), &exportReq); err != nil {
		r.logger.Warn("failed to parse logs request",
			"error", err,
			"body_bytes", len(body),
		)
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	resp, err := r.ingest.export(req.Context(), &exportReq, models.SourceOTLPHTTP)
	if err != nil {
		r.logger.Error("logs export failed", "error", err)
		http.Error(w, fmt.Sprintf("Failed to process logs: %v", err), http.StatusInternalServerError)
		return
	}

	r.writeResponse(w, resp)
}

// unmarshalLogs decodes an export request. JSON content types are parsed as
// JSON; anything else tries protobuf (default for OTLP), then JSON.
func unmarshalLogs(body []byte, contentType string, out *collogspb.ExportLogsServiceRequest) error {
	jsonOpts := protojson.UnmarshalOptions{DiscardUnknown: true}

	if strings.HasPrefix(contentType, "application/json") {
		return jsonOpts.Unmarshal(body, out)
	}

	err := proto.Unmarshal(body, out)
	if err == nil {
		return nil
	}
	proto.Reset(out)
	if jsonErr := jsonOpts.Unmarshal(body, out); jsonErr != nil {
		return fmt.Errorf("protobuf error: %v, json error: %v", err, jsonErr)
	}
	return nil
}

// handleHealth handles health check requests.
func (r *HTTPReceiver) handleHealth(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// writeResponse writes a protobuf response.
// OTLP always uses protobuf for responses.
func (r *HTTPReceiver) writeResponse(w http.ResponseWriter, resp proto.Message) {
	respBytes, err := proto.Marshal(resp)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-protobuf")
	w.WriteHeader(http.StatusOK)
	w.Write(respBytes)
}
