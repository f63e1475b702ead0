package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/fidde/segment_decoder/pkg/models"
)

func decoded(id string, value int, digits ...int) *models.DecodedEntry {
	return &models.DecodedEntry{
		ID:     id,
		Source: models.SourceCLI,
		Digits: digits,
		Value:  value,
		Status: models.StatusDecoded,
	}
}

func TestStoreAndGetEntry(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.StoreEntry(ctx, decoded("a", 5353, 5, 3, 5, 3)); err != nil {
		t.Fatalf("StoreEntry failed: %v", err)
	}

	got, err := store.GetEntry(ctx, "a")
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if got.Value != 5353 {
		t.Errorf("Value = %d, want 5353", got.Value)
	}

	if _, err := store.GetEntry(ctx, "missing"); !errors.Is(err, models.ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestStoreEntryValidation(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.StoreEntry(ctx, nil); err == nil {
		t.Error("expected error for nil entry")
	}
	if err := store.StoreEntry(ctx, &models.DecodedEntry{}); err == nil {
		t.Error("expected error for empty ID")
	}
	if err := store.StoreEntries(ctx, []*models.DecodedEntry{decoded("ok", 1), nil}); err == nil {
		t.Error("expected batch with nil entry to fail")
	}
	if entries, _ := store.ListEntries(ctx, models.EntryFilter{}); len(entries) != 0 {
		t.Errorf("failed batch should store nothing, got %d entries", len(entries))
	}
}

func TestListEntriesOrderAndFilter(t *testing.T) {
	store := New()
	ctx := context.Background()

	failed := &models.DecodedEntry{ID: "f", Source: models.SourceAPI, Status: models.StatusFailed}
	err := store.StoreEntries(ctx, []*models.DecodedEntry{decoded("c", 3), failed, decoded("a", 1)})
	if err != nil {
		t.Fatalf("StoreEntries failed: %v", err)
	}

	all, _ := store.ListEntries(ctx, models.EntryFilter{})
	if len(all) != 3 || all[0].ID != "c" || all[1].ID != "f" || all[2].ID != "a" {
		t.Fatalf("unexpected order: %v", ids(all))
	}

	onlyFailed, _ := store.ListEntries(ctx, models.EntryFilter{Status: models.StatusFailed})
	if len(onlyFailed) != 1 || onlyFailed[0].ID != "f" {
		t.Errorf("unexpected failed listing: %v", ids(onlyFailed))
	}

	onlyCLI, _ := store.ListEntries(ctx, models.EntryFilter{Source: models.SourceCLI})
	if len(onlyCLI) != 2 {
		t.Errorf("unexpected cli listing: %v", ids(onlyCLI))
	}

	// Replacing keeps the original position.
	if err := store.StoreEntry(ctx, decoded("c", 33)); err != nil {
		t.Fatalf("StoreEntry failed: %v", err)
	}
	all, _ = store.ListEntries(ctx, models.EntryFilter{})
	if len(all) != 3 || all[0].Value != 33 {
		t.Errorf("replace changed order or value: %v", ids(all))
	}
}

func TestSummaryAndClear(t *testing.T) {
	store := New()
	ctx := context.Background()

	store.StoreEntry(ctx, decoded("a", 5353, 5, 3, 5, 3))
	store.StoreEntry(ctx, &models.DecodedEntry{ID: "b", Digits: []int{1}, UniqueCount: 1, Status: models.StatusFailed})

	summary, err := store.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if summary.Sum != 5353 || summary.Entries != 2 || summary.Failed != 1 || summary.UniqueCount != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	summary, _ = store.Summary(ctx)
	if summary.Entries != 0 {
		t.Errorf("expected empty summary after clear, got %+v", summary)
	}
}

func TestConcurrentStores(t *testing.T) {
	store := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				store.StoreEntry(ctx, decoded(fmt.Sprintf("%d-%d", w, i), i))
			}
		}(w)
	}
	wg.Wait()

	summary, _ := store.Summary(ctx)
	if summary.Entries != 400 {
		t.Errorf("Entries = %d, want 400", summary.Entries)
	}
}

func ids(entries []*models.DecodedEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}
