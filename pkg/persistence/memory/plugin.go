package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/imyme/imyme-ai/pkg/domain"
	"github.com/imyme/imyme-ai/pkg/persistence"
)

// Plugin implements PluginPersistence for in-memory storage.
// Records do not survive a restart and are not shared across processes.
type Plugin struct {
	mu    sync.RWMutex
	tasks map[string]domain.TaskRecord
	now   func() time.Time
}

// NewPlugin creates a new in-memory persistence plugin
func NewPlugin(config persistence.PluginConfig) (persistence.PluginPersistence, error) {
	return New(config), nil
}

// New returns the concrete plugin, convenient for tests and embedding
func New(config persistence.PluginConfig) *Plugin {
	return &Plugin{
		tasks: make(map[string]domain.TaskRecord),
		now:   config.Clock(),
	}
}

// TaskStorage returns the task storage implementation
func (p *Plugin) TaskStorage() persistence.TaskStorage {
	return &taskStorage{plugin: p}
}

// Health always returns nil for in-memory storage
func (p *Plugin) Health(ctx context.Context) error {
	return nil
}

// Close is a no-op for in-memory storage
func (p *Plugin) Close() error {
	return nil
}

func init() {
	persistence.RegisterProvider("memory", NewPlugin)
}

// taskStorage implements persistence.TaskStorage for in-memory storage
type taskStorage struct {
	plugin *Plugin
}

func (s *taskStorage) Save(ctx context.Context, rec domain.TaskRecord) error {
	if err := persistence.Validate(rec); err != nil {
		return err
	}
	rec = rec.Clone()
	rec.UpdatedAt = s.plugin.now()

	s.plugin.mu.Lock()
	s.plugin.tasks[rec.ID] = rec
	s.plugin.mu.Unlock()
	return nil
}

func (s *taskStorage) Get(ctx context.Context, id string) (*domain.TaskRecord, error) {
	s.plugin.mu.RLock()
	rec, ok := s.plugin.tasks[id]
	s.plugin.mu.RUnlock()

	if !ok {
		return nil, persistence.ErrNotFound
	}
	out := rec.Clone()
	return &out, nil
}

func (s *taskStorage) Delete(ctx context.Context, id string) error {
	s.plugin.mu.Lock()
	defer s.plugin.mu.Unlock()

	delete(s.plugin.tasks, id)
	return nil
}

func (s *taskStorage) CountByStatus(ctx context.Context) (map[domain.TaskStatus]int64, error) {
	s.plugin.mu.RLock()
	defer s.plugin.mu.RUnlock()

	counts := make(map[domain.TaskStatus]int64, len(domain.Statuses))
	for _, st := range domain.Statuses {
		counts[st] = 0
	}
	for _, rec := range s.plugin.tasks {
		counts[rec.Status]++
	}
	return counts, nil
}

func (s *taskStorage) DeleteTerminalBefore(ctx context.Context, before time.Time, limit int) (int, error) {
	s.plugin.mu.Lock()
	defer s.plugin.mu.Unlock()

	// oldest first so a bounded sweep always makes progress on the backlog
	var expired []domain.TaskRecord
	for _, rec := range s.plugin.tasks {
		if rec.Status.Terminal() && rec.UpdatedAt.Before(before) {
			expired = append(expired, rec)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].UpdatedAt.Before(expired[j].UpdatedAt) })
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	for _, rec := range expired {
		delete(s.plugin.tasks, rec.ID)
	}
	return len(expired), nil
}
