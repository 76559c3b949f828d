package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/imyme/imyme-ai/pkg/persistence"
)

const cleanupBatchSize = 1000

// TaskCleanupService deletes terminal task records older than the retention window.
type TaskCleanupService interface {
	Start(ctx context.Context)
	RunOnce(ctx context.Context) (int, error)
}

type taskCleanupService struct {
	store     persistence.TaskStorage
	logger    *slog.Logger
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

func NewTaskCleanupService(store persistence.TaskStorage, logger *slog.Logger, retentionSeconds, intervalSeconds int) TaskCleanupService {
	if logger == nil {
		logger = slog.Default()
	}
	if intervalSeconds <= 0 {
		intervalSeconds = 60
	}
	return &taskCleanupService{
		store:     store,
		logger:    logger,
		retention: time.Duration(retentionSeconds) * time.Second,
		interval:  time.Duration(intervalSeconds) * time.Second,
		now:       time.Now,
	}
}

func (s *taskCleanupService) Start(ctx context.Context) {
	if s.retention <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.Warn("task cleanup failed", "err", err)
				continue
			}
			if removed > 0 {
				s.logger.Info("task cleanup removed", "count", removed)
			}
		}
	}
}

// RunOnce drains every expired terminal record, one batch at a time.
func (s *taskCleanupService) RunOnce(ctx context.Context) (int, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.retention)
	total := 0
	for {
		n, err := s.store.DeleteTerminalBefore(ctx, cutoff, cleanupBatchSize)
		total += n
		if err != nil || n < cleanupBatchSize {
			return total, err
		}
	}
}
