package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/imyme/imyme-ai/pkg/domain"
	"github.com/imyme/imyme-ai/pkg/persistence"
	"github.com/imyme/imyme-ai/pkg/persistence/memory"
)

// recordingStore wraps the memory store and keeps every write in order.
type recordingStore struct {
	persistence.TaskStorage

	mu     sync.Mutex
	saves  []domain.TaskRecord
	gets   int
	failOn domain.TaskStatus
}

func newRecordingStore() *recordingStore {
	return &recordingStore{TaskStorage: memory.New(persistence.PluginConfig{}).TaskStorage()}
}

func (s *recordingStore) Save(ctx context.Context, rec domain.TaskRecord) error {
	s.mu.Lock()
	s.saves = append(s.saves, rec.Clone())
	fail := s.failOn != "" && rec.Status == s.failOn
	s.mu.Unlock()
	if fail {
		return context.DeadlineExceeded
	}
	return s.TaskStorage.Save(ctx, rec)
}

func (s *recordingStore) Get(ctx context.Context, id string) (*domain.TaskRecord, error) {
	s.mu.Lock()
	s.gets++
	s.mu.Unlock()
	return s.TaskStorage.Get(ctx, id)
}

func (s *recordingStore) statuses(id string) []domain.TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TaskStatus
	for _, r := range s.saves {
		if r.ID == id {
			out = append(out, r.Status)
		}
	}
	return out
}

func (s *recordingStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

// waitTerminal polls the store until id reaches COMPLETED or FAILED.
func waitTerminal(t *testing.T, store persistence.TaskStorage, id string) *domain.TaskRecord {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := store.Get(context.Background(), id)
		if err == nil && rec.Status.Terminal() {
			return rec
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("task %s did not reach a terminal status", id)
	return nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	out     string
	err     error
	prompts []string
}

func (g *fakeGenerator) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return g.out, g.err
}

func (g *fakeGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}
