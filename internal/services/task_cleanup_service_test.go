package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/imyme/imyme-ai/pkg/domain"
	"github.com/imyme/imyme-ai/pkg/persistence"
	"github.com/imyme/imyme-ai/pkg/persistence/memory"
)

func TestTaskCleanupRunOnce(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }
	store := memory.New(persistence.PluginConfig{Now: now}).TaskStorage()
	ctx := context.Background()

	result := &domain.AnalysisResult{Score: 1, Level: domain.LevelC}
	_ = store.Save(ctx, domain.TaskRecord{ID: "old-done", Status: domain.StatusCompleted, Result: result})
	_ = store.Save(ctx, domain.TaskRecord{ID: "old-failed", Status: domain.StatusFailed, Error: &domain.TaskError{Code: domain.CodeInternalError}})
	_ = store.Save(ctx, domain.TaskRecord{ID: "old-pending", Status: domain.StatusPending})

	clock = clock.Add(2 * time.Hour)
	_ = store.Save(ctx, domain.TaskRecord{ID: "fresh-done", Status: domain.StatusCompleted, Result: result})

	svc := NewTaskCleanupService(store, nil, 3600, 60).(*taskCleanupService)
	svc.now = now

	removed, err := svc.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if removed != 2 {
		t.Fatalf("Expected 2 removed, got %d", removed)
	}
	for _, id := range []string{"old-done", "old-failed"} {
		if _, err := store.Get(ctx, id); !errors.Is(err, persistence.ErrNotFound) {
			t.Errorf("Expected %s to be removed, got %v", id, err)
		}
	}
	for _, id := range []string{"old-pending", "fresh-done"} {
		if _, err := store.Get(ctx, id); err != nil {
			t.Errorf("Expected %s to be kept, got %v", id, err)
		}
	}
}

func TestTaskCleanupDisabledByDefault(t *testing.T) {
	store := newRecordingStore()
	svc := NewTaskCleanupService(store, nil, 0, 0)

	n, err := svc.RunOnce(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("Expected no-op, got %d %v", n, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start should return immediately when retention is off")
	}
}
