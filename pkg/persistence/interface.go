package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/imyme/imyme-ai/pkg/domain"
)

var (
	// ErrNotFound is returned when no record exists for an id
	ErrNotFound = errors.New("not found")

	// ErrInvalidRecord is returned when a record violates the lifecycle invariant
	ErrInvalidRecord = errors.New("invalid task record")
)

// PluginPersistence provides storage operations for persistence plugins.
// This is the main interface that all persistence backends must implement.
type PluginPersistence interface {
	// TaskStorage returns the task storage implementation
	TaskStorage() TaskStorage

	// Health checks if the persistence backend is healthy
	Health(ctx context.Context) error

	// Close releases resources held by the persistence backend
	Close() error
}

// TaskStorage holds the lifecycle state of every submitted task.
// Implementations must be safe for concurrent use and must never expose a
// partially written record to readers.
type TaskStorage interface {
	// Save upserts the record, replacing any prior record for the same id
	Save(ctx context.Context, rec domain.TaskRecord) error

	// Get retrieves a record by id, returning ErrNotFound when absent
	Get(ctx context.Context, id string) (*domain.TaskRecord, error)

	// Delete removes a record; deleting an absent id is not an error
	Delete(ctx context.Context, id string) error

	// CountByStatus returns the number of records in each status
	CountByStatus(ctx context.Context) (map[domain.TaskStatus]int64, error)

	// DeleteTerminalBefore removes up to limit terminal records last written before the cutoff
	DeleteTerminalBefore(ctx context.Context, before time.Time, limit int) (int, error)
}

// Validate rejects records that break the lifecycle invariant.
func Validate(rec domain.TaskRecord) error {
	if err := rec.Validate(); err != nil {
		return errors.Join(ErrInvalidRecord, err)
	}
	return nil
}
