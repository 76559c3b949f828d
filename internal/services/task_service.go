package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/imyme/imyme-ai/pkg/domain"
	"github.com/imyme/imyme-ai/pkg/persistence"
)

// TaskService issues task ids and answers status queries.
type TaskService interface {
	Create(ctx context.Context) (string, error)
	GetStatus(ctx context.Context, id string) (*domain.TaskRecord, error)
}

type taskService struct {
	store  persistence.TaskStorage
	logger *slog.Logger
	newID  func() string
}

func NewTaskService(store persistence.TaskStorage, logger *slog.Logger) TaskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &taskService{store: store, logger: logger, newID: uuid.NewString}
}

// Create writes the PENDING record before returning so an immediate poll
// never observes NotFound.
func (s *taskService) Create(ctx context.Context) (string, error) {
	id := s.newID()
	if err := s.store.Save(ctx, domain.TaskRecord{ID: id, Status: domain.StatusPending}); err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}
	s.logger.DebugContext(ctx, "task created", "task_id", id)
	return id, nil
}

func (s *taskService) GetStatus(ctx context.Context, id string) (*domain.TaskRecord, error) {
	rec, err := s.store.Get(ctx, id)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return rec, nil
}
