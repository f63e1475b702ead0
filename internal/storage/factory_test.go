package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fidde/segment_decoder/internal/storage/memory"
	"github.com/fidde/segment_decoder/internal/storage/sqlite"
	"github.com/fidde/segment_decoder/pkg/models"
)

func TestNewStorage(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		backend string
		check   func(t *testing.T, s Storage)
		wantErr string
	}{
		{
			name:    "memory",
			backend: BackendMemory,
			check: func(t *testing.T, s Storage) {
				if _, ok := s.(*memory.Store); !ok {
					t.Errorf("got %T, want *memory.Store", s)
				}
			},
		},
		{
			name:    "sqlite",
			backend: BackendSQLite,
			check: func(t *testing.T, s Storage) {
				if _, ok := s.(*sqlite.Store); !ok {
					t.Errorf("got %T, want *sqlite.Store", s)
				}
			},
		},
		{
			name:    "unknown",
			backend: "postgres",
			wantErr: "unknown storage backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Backend = tt.backend
			cfg.SQLitePath = filepath.Join(t.TempDir(), "entries.db")

			s, err := NewStorage(ctx, cfg, nil)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("NewStorage() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewStorage() error = %v", err)
			}
			defer s.Close()

			tt.check(t, s)

			entry := &models.DecodedEntry{ID: "probe", Digits: []int{1}, Value: 1, Status: models.StatusDecoded}
			if err := s.StoreEntry(ctx, entry); err != nil {
				t.Fatalf("StoreEntry() error = %v", err)
			}
			got, err := s.GetEntry(ctx, "probe")
			if err != nil {
				t.Fatalf("GetEntry() error = %v", err)
			}
			if got.Value != 1 {
				t.Errorf("GetEntry().Value = %d, want 1", got.Value)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Backend != BackendMemory {
		t.Errorf("Backend = %q, want %q", cfg.Backend, BackendMemory)
	}
	if cfg.SQLitePath == "" || cfg.ClickHouseAddr == "" {
		t.Errorf("incomplete defaults: %+v", cfg)
	}
}
