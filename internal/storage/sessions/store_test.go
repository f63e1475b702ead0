package sessions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fidde/segment_decoder/pkg/models"
)

func newTestStore(t *testing.T, maxSessions int) (*Store, string) {
	t.Helper()

	tempDir := t.TempDir()
	store, err := NewWithConfig(Config{
		SessionDir:     tempDir,
		MaxSessionSize: 10 * 1024 * 1024,
		MaxSessions:    maxSessions,
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store, tempDir
}

func sampleEntries() []*models.DecodedEntry {
	return []*models.DecodedEntry{
		{ID: "e1", Line: 1, Source: models.SourceCLI, Digits: []int{5, 3, 5, 3}, Value: 5353, Status: models.StatusDecoded},
		{ID: "e2", Line: 2, Source: models.SourceAPI, Digits: []int{1}, UniqueCount: 1, Status: models.StatusFailed, Error: "ambiguous"},
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	store, tempDir := newTestStore(t, 10)
	ctx := context.Background()

	entries := sampleEntries()
	session := &models.Session{
		ID:          "test-session",
		Description: "Test session for unit tests",
		Sources:     []string{models.SourceAPI, models.SourceCLI},
		Entries:     entries,
		Summary:     models.Summarize(entries),
	}

	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	filePath := filepath.Join(tempDir, "test-session.json.gz")
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		t.Error("Session file was not created")
	}

	loaded, err := store.Load(ctx, "test-session")
	if err != nil {
		t.Fatalf("Failed to load session: %v", err)
	}

	if loaded.ID != session.ID {
		t.Errorf("ID mismatch: got %s, want %s", loaded.ID, session.ID)
	}
	if loaded.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", loaded.Version, CurrentVersion)
	}
	if loaded.Created.IsZero() {
		t.Error("Created should be set on save")
	}
	if len(loaded.Entries) != 2 || loaded.Entries[0].Value != 5353 {
		t.Errorf("unexpected entries: %+v", loaded.Entries)
	}
	if loaded.Summary.Sum != 5353 || loaded.Summary.Failed != 1 {
		t.Errorf("unexpected summary: %+v", loaded.Summary)
	}
}

func TestStore_Delete(t *testing.T) {
	store, _ := newTestStore(t, 10)
	ctx := context.Background()

	store.Save(ctx, &models.Session{ID: "to-delete"})

	if err := store.Delete(ctx, "to-delete"); err != nil {
		t.Fatalf("Failed to delete session: %v", err)
	}

	if _, err := store.Load(ctx, "to-delete"); err != models.ErrSessionNotFound {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}

	if err := store.Delete(ctx, "non-existent"); err != models.ErrSessionNotFound {
		t.Errorf("Expected ErrSessionNotFound for non-existent, got %v", err)
	}
}

func TestStore_List(t *testing.T) {
	store, tempDir := newTestStore(t, 10)
	ctx := context.Background()

	sessions := []*models.Session{
		{ID: "session-a", Description: "First", Created: time.Now().Add(-2 * time.Hour)},
		{ID: "session-b", Description: "Second", Created: time.Now().Add(-1 * time.Hour)},
		{ID: "session-c", Description: "Third", Created: time.Now()},
	}
	for _, s := range sessions {
		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	// Unrelated and corrupted files are skipped.
	os.WriteFile(filepath.Join(tempDir, "notes.txt"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(tempDir, "broken.json.gz"), []byte("not gzip"), 0644)

	listed, err := store.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}

	if len(listed) != 3 {
		t.Fatalf("Expected 3 sessions, got %d", len(listed))
	}
	if listed[0].ID != "session-c" {
		t.Errorf("Expected session-c first (newest), got %s", listed[0].ID)
	}
	if listed[2].ID != "session-a" {
		t.Errorf("Expected session-a last (oldest), got %s", listed[2].ID)
	}
}

func TestStore_Limits(t *testing.T) {
	store, _ := newTestStore(t, 2)
	ctx := context.Background()

	store.Save(ctx, &models.Session{ID: "a"})
	store.Save(ctx, &models.Session{ID: "b"})

	if err := store.Save(ctx, &models.Session{ID: "c"}); err != models.ErrTooManySessions {
		t.Errorf("Expected ErrTooManySessions, got %v", err)
	}

	// Updating existing session should work
	if err := store.Save(ctx, &models.Session{ID: "a", Description: "updated"}); err != nil {
		t.Errorf("Failed to update existing session: %v", err)
	}

	small, err := NewWithConfig(Config{SessionDir: t.TempDir(), MaxSessionSize: 64, MaxSessions: 10})
	if err != nil {
		t.Fatalf("NewWithConfig failed: %v", err)
	}
	big := &models.Session{ID: "big", Entries: sampleEntries()}
	if err := small.Save(ctx, big); err != models.ErrSessionTooLarge {
		t.Errorf("Expected ErrSessionTooLarge, got %v", err)
	}
}

func TestStore_InvalidSessionName(t *testing.T) {
	store, _ := newTestStore(t, 10)
	ctx := context.Background()

	tests := []string{
		"",
		"UPPERCASE",
		"with spaces",
		"special@chars",
		"-starts-with-hyphen",
		"ends-with-hyphen-",
	}

	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			if err := store.Save(ctx, &models.Session{ID: name}); err != models.ErrInvalidSessionName {
				t.Errorf("Expected ErrInvalidSessionName for %q, got %v", name, err)
			}
		})
	}
}

func TestStore_ExistsAndMetadata(t *testing.T) {
	store, _ := newTestStore(t, 10)
	ctx := context.Background()

	exists, err := store.Exists(ctx, "meta-test")
	if err != nil || exists {
		t.Fatalf("Exists = %v, %v; want false, nil", exists, err)
	}

	entries := sampleEntries()
	store.Save(ctx, &models.Session{
		ID:          "meta-test",
		Description: "Metadata test",
		Sources:     []string{models.SourceCLI},
		Entries:     entries,
		Summary:     models.Summarize(entries),
	})

	exists, _ = store.Exists(ctx, "meta-test")
	if !exists {
		t.Error("Expected existing session to exist")
	}

	meta, err := store.GetMetadata(ctx, "meta-test")
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if meta.Description != "Metadata test" || len(meta.Sources) != 1 {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if meta.Summary.Entries != 2 {
		t.Errorf("Summary.Entries = %d, want 2", meta.Summary.Entries)
	}
	if meta.SizeBytes <= 0 {
		t.Error("SizeBytes should be positive")
	}

	if _, err := store.GetMetadata(ctx, "missing"); err != models.ErrSessionNotFound {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestStore_GzipCompression(t *testing.T) {
	store, tempDir := newTestStore(t, 10)
	ctx := context.Background()

	entries := make([]*models.DecodedEntry, 500)
	for i := range entries {
		entries[i] = &models.DecodedEntry{
			ID:     fmt.Sprintf("entry-%d", i),
			Raw:    "be cfbegad cbdgef fgaecd cgeb fdcge agebfd fecdb fabcd edb | fdgacbe cefdb cefbgd gcbe",
			Digits: []int{8, 3, 9, 4},
			Value:  8394,
			Status: models.StatusDecoded,
		}
	}

	if err := store.Save(ctx, &models.Session{ID: "compression-test", Entries: entries}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(tempDir, "compression-test.json.gz"))
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Size() > 64*1024 {
		t.Errorf("compressed file unexpectedly large: %d bytes", info.Size())
	}

	loaded, err := store.Load(ctx, "compression-test")
	if err != nil {
		t.Fatalf("Failed to load compressed session: %v", err)
	}
	if len(loaded.Entries) != 500 {
		t.Errorf("Expected 500 entries, got %d", len(loaded.Entries))
	}
}
