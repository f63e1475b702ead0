package receiver

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/fidde/segment_decoder/internal/analyzer"
	"github.com/fidde/segment_decoder/internal/storage"
	"github.com/fidde/segment_decoder/pkg/models"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// GRPCReceiver handles OTLP gRPC requests.
type GRPCReceiver struct {
	collogspb.UnimplementedLogsServiceServer

	ingest *ingester
	logger *slog.Logger
	server *grpc.Server
	addr   string
}

// NewGRPCReceiver creates a new gRPC receiver.
func NewGRPCReceiver(addr string, store storage.Storage, entries *analyzer.EntryAnalyzer, logger *slog.Logger) *GRPCReceiver {
	r := &GRPCReceiver{
		ingest: newIngester(store, entries, logger),
		addr:   addr,
	}
	r.logger = r.ingest.logger

	r.server = grpc.NewServer()
	collogspb.RegisterLogsServiceServer(r.server, r)

	// Register reflection service for debugging with grpcurl
	reflection.Register(r.server)

	return r
}

// Start listens on the configured address and serves until Shutdown.
func (r *GRPCReceiver) Start() error {
	lis, err := net.Listen("tcp", r.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return r.Serve(lis)
}

// Serve serves gRPC requests on lis.
func (r *GRPCReceiver) Serve(lis net.Listener) error {
	r.logger.Info("gRPC server listening", "addr", lis.Addr().String())
	return r.server.Serve(lis)
}

// Shutdown gracefully shuts down the gRPC server, forcing a stop when ctx
// ends first.
func (r *GRPCReceiver) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.server.Stop()
		return ctx.Err()
	}
}

// Export implements the LogsService Export RPC.
func (r *GRPCReceiver) Export(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	resp, err := r.ingest.export(ctx, req, models.SourceOTLPGRPC)
	if err != nil {
		r.logger.Error("logs export failed", "error", err)
		return nil, status.Errorf(codes.Internal, "failed to process logs: %v", err)
	}
	return resp, nil
}
