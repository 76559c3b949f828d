package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/imyme/imyme-ai/pkg/domain"
	"github.com/imyme/imyme-ai/pkg/persistence"
)

func newTestStorage(t *testing.T, now func() time.Time) persistence.TaskStorage {
	t.Helper()
	plugin, err := NewPlugin(persistence.PluginConfig{Timezone: time.UTC, Now: now})
	if err != nil {
		t.Fatalf("Failed to create plugin: %v", err)
	}
	t.Cleanup(func() { _ = plugin.Close() })
	if err := plugin.Health(context.Background()); err != nil {
		t.Fatalf("Health check failed: %v", err)
	}
	return plugin.TaskStorage()
}

func TestMemoryPluginSaveGetDelete(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t, nil)

	if _, err := storage.Get(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	if err := storage.Save(ctx, domain.TaskRecord{ID: "t1", Status: domain.StatusPending}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := storage.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != domain.StatusPending {
		t.Errorf("Expected PENDING, got %s", got.Status)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("Expected UpdatedAt to be stamped")
	}

	if err := storage.Delete(ctx, "t1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := storage.Get(ctx, "t1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := storage.Delete(ctx, "t1"); err != nil {
		t.Fatalf("Deleting an absent id should not fail: %v", err)
	}
}

func TestMemoryPluginSaveOverwritesWholeRecord(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t, nil)

	failed := domain.TaskRecord{ID: "t1", Status: domain.StatusFailed, Error: &domain.TaskError{Code: domain.CodeInternalError, Message: "x"}}
	if err := storage.Save(ctx, failed); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := storage.Save(ctx, domain.TaskRecord{ID: "t1", Status: domain.StatusProcessing}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, _ := storage.Get(ctx, "t1")
	if got.Error != nil {
		t.Errorf("Expected error field to be dropped on overwrite, got %+v", got.Error)
	}
}

func TestMemoryPluginRejectsInvalidRecord(t *testing.T) {
	storage := newTestStorage(t, nil)
	err := storage.Save(context.Background(), domain.TaskRecord{ID: "t1", Status: domain.StatusCompleted})
	if !errors.Is(err, persistence.ErrInvalidRecord) {
		t.Fatalf("Expected ErrInvalidRecord, got %v", err)
	}
	if !errors.Is(err, domain.ErrCompletedNoResult) {
		t.Fatalf("Expected wrapped domain error, got %v", err)
	}
}

func TestMemoryPluginIsolatesCallerState(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t, nil)

	res := &domain.AnalysisResult{Score: 50, Level: domain.LevelB, Feedback: domain.Feedback{Keyword: []string{"a"}}}
	if err := storage.Save(ctx, domain.TaskRecord{ID: "t1", Status: domain.StatusCompleted, Result: res}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	res.Score = 0
	res.Feedback.Keyword[0] = "changed"

	got, _ := storage.Get(ctx, "t1")
	if got.Result.Score != 50 || got.Result.Feedback.Keyword[0] != "a" {
		t.Fatalf("Expected stored record to be independent of caller, got %+v", got.Result)
	}
	got.Result.Score = 1
	again, _ := storage.Get(ctx, "t1")
	if again.Result.Score != 50 {
		t.Fatalf("Expected read copies to be independent, got %d", again.Result.Score)
	}
}

func TestMemoryPluginConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t, nil)
	const n = 200

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("task-%d", i)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = storage.Save(ctx, domain.TaskRecord{ID: id, Status: domain.StatusPending})
			_ = storage.Save(ctx, domain.TaskRecord{ID: id, Status: domain.StatusProcessing})
			_ = storage.Save(ctx, domain.TaskRecord{
				ID:     id,
				Status: domain.StatusCompleted,
				Result: &domain.AnalysisResult{Score: i % 101, Level: domain.LevelA},
			})
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rec, err := storage.Get(ctx, id); err == nil {
				if vErr := rec.Validate(); vErr != nil {
					t.Errorf("torn read for %s: %v", id, vErr)
				}
			}
		}()
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		rec, err := storage.Get(ctx, fmt.Sprintf("task-%d", i))
		if err != nil {
			t.Fatalf("Get task-%d: %v", i, err)
		}
		if rec.Status != domain.StatusCompleted || rec.Result.Score != i%101 {
			t.Errorf("task-%d inconsistent: %+v", i, rec)
		}
	}

	counts, err := storage.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[domain.StatusCompleted] != n || counts[domain.StatusPending] != 0 {
		t.Errorf("Unexpected counts: %v", counts)
	}
}

func TestMemoryPluginDeleteTerminalBefore(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	storage := newTestStorage(t, func() time.Time { return current })

	failed := func(id string) domain.TaskRecord {
		return domain.TaskRecord{ID: id, Status: domain.StatusFailed, Error: &domain.TaskError{Code: domain.CodeTextTooShort}}
	}
	_ = storage.Save(ctx, failed("old-1"))
	current = current.Add(time.Minute)
	_ = storage.Save(ctx, failed("old-2"))
	_ = storage.Save(ctx, domain.TaskRecord{ID: "old-running", Status: domain.StatusProcessing})
	current = current.Add(time.Hour)
	_ = storage.Save(ctx, failed("fresh"))

	cutoff := current.Add(-30 * time.Minute)
	removed, err := storage.DeleteTerminalBefore(ctx, cutoff, 1)
	if err != nil {
		t.Fatalf("DeleteTerminalBefore: %v", err)
	}
	if removed != 1 {
		t.Fatalf("Expected limit to bound removals, got %d", removed)
	}
	if _, err := storage.Get(ctx, "old-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("Expected oldest record to go first")
	}

	removed, _ = storage.DeleteTerminalBefore(ctx, cutoff, 0)
	if removed != 1 {
		t.Fatalf("Expected 1 more removal, got %d", removed)
	}
	for _, id := range []string{"old-running", "fresh"} {
		if _, err := storage.Get(ctx, id); err != nil {
			t.Errorf("Expected %s to survive: %v", id, err)
		}
	}
}
