package receiver

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fidde/segment_decoder/internal/analyzer"
	"github.com/fidde/segment_decoder/internal/storage/memory"
	"github.com/fidde/segment_decoder/pkg/models"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

const canonicalLine = "acedgfb cdfbe gcdfa fbcad dab cefabd cdfgeb eafb cagedb ab | cdfeb fcadb cdfeb cdbaf"

func exportRequest(bodies ...string) *collogspb.ExportLogsServiceRequest {
	records := make([]*logspb.LogRecord, len(bodies))
	for i, b := range bodies {
		records[i] = &logspb.LogRecord{
			Body: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: b}},
		}
	}
	return &collogspb.ExportLogsServiceRequest{
		ResourceLogs: []*logspb.ResourceLogs{
			{ScopeLogs: []*logspb.ScopeLogs{{LogRecords: records}}},
		},
	}
}

func postLogs(t *testing.T, handler http.Handler, body []byte, header map[string]string) (*httptest.ResponseRecorder, *collogspb.ExportLogsServiceResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/v1/logs", bytes.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		return rec, nil
	}
	var resp collogspb.ExportLogsServiceResponse
	if err := proto.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return rec, &resp
}

func TestHTTPReceiverProtobuf(t *testing.T) {
	store := memory.New()
	r := NewHTTPReceiver("", store, analyzer.NewEntryAnalyzer(2), nil)

	body, err := proto.Marshal(exportRequest(canonicalLine, "not an entry"))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	rec, resp := postLogs(t, r.Handler(), body, map[string]string{"Content-Type": "application/x-protobuf"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := resp.GetPartialSuccess().GetRejectedLogRecords(); got != 1 {
		t.Errorf("RejectedLogRecords = %d, want 1", got)
	}

	entries, _ := store.ListEntries(context.Background(), models.EntryFilter{})
	if len(entries) != 2 {
		t.Fatalf("stored %d entries, want 2", len(entries))
	}
	if entries[0].Value != 5353 || entries[0].Source != models.SourceOTLPHTTP {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
}

func TestHTTPReceiverJSONGzip(t *testing.T) {
	store := memory.New()
	r := NewHTTPReceiver("", store, nil, nil)

	jsonBody, err := protojson.Marshal(exportRequest(canonicalLine))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Write(jsonBody)
	gw.Close()

	rec, resp := postLogs(t, r.Handler(), buf.Bytes(), map[string]string{
		"Content-Type":     "application/json",
		"Content-Encoding": "gzip",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if resp.GetPartialSuccess() != nil {
		t.Errorf("expected full success, got %v", resp.GetPartialSuccess())
	}

	summary, _ := store.Summary(context.Background())
	if summary.Sum != 5353 {
		t.Errorf("Sum = %d, want 5353", summary.Sum)
	}
}

func TestHTTPReceiverErrors(t *testing.T) {
	r := NewHTTPReceiver("", memory.New(), nil, nil)

	rec, _ := postLogs(t, r.Handler(), []byte("{{{ not otlp"), nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("garbage body: status = %d, want 400", rec.Code)
	}

	rec, _ = postLogs(t, r.Handler(), []byte("plain"), map[string]string{"Content-Encoding": "gzip"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad gzip: status = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/logs", nil)
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: status = %d, want 405", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	w = httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ok") {
		t.Errorf("health: %d %s", w.Code, w.Body.String())
	}
}

func TestGRPCReceiverExport(t *testing.T) {
	store := memory.New()
	r := NewGRPCReceiver("", store, analyzer.NewEntryAnalyzer(1), nil)

	lis := bufconn.Listen(1 << 20)
	go r.Serve(lis)
	t.Cleanup(func() { r.Shutdown(context.Background()) })

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	client := collogspb.NewLogsServiceClient(conn)
	resp, err := client.Export(context.Background(), exportRequest(canonicalLine, "", "ab | ab"))
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if got := resp.GetPartialSuccess().GetRejectedLogRecords(); got != 1 {
		t.Errorf("RejectedLogRecords = %d, want 1", got)
	}

	entries, _ := store.ListEntries(context.Background(), models.EntryFilter{Source: models.SourceOTLPGRPC})
	if len(entries) != 2 {
		t.Fatalf("stored %d entries, want 2", len(entries))
	}
	if entries[1].Line != 3 || entries[1].Status != models.StatusFailed {
		t.Errorf("unexpected failed entry: %+v", entries[1])
	}
}

func TestIngesterStorageFailure(t *testing.T) {
	store := memory.New()
	i := newIngester(failingStore{store}, nil, nil)
	if _, err := i.export(context.Background(), exportRequest(canonicalLine), models.SourceOTLPHTTP); err == nil {
		t.Fatal("expected storage error")
	}
}

type failingStore struct {
	*memory.Store
}

func (failingStore) StoreEntries(ctx context.Context, entries []*models.DecodedEntry) error {
	return io.ErrClosedPipe
}
