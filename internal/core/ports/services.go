package ports

import (
	"context"

	"github.com/codebay/backend/internal/domain"
)

// TaskRegistry owns the lifecycle of task records. A record has exactly one
// writer (the worker goroutine running its job) and any number of concurrent
// readers; Get and Watch hand out copies.
type TaskRegistry interface {
	// Create registers a new task and returns it together with the context
	// the job must run under. Cancelling the task cancels that context.
	Create(owner string, keep bool) (*domain.Task, context.Context)
	Get(id string) (*domain.Task, error)
	// SetProgress updates the live progress of a running task. Percent is nil
	// while progress is indeterminate. No-op once the task completed.
	SetProgress(id string, percent *int, message string)
	// Complete stores the final result and marks the task not running.
	// Progress and result are immutable afterwards.
	Complete(id string, result *domain.TaskResult)
	// Cancel requests cooperative cancellation of a running task.
	Cancel(id string) error
	// Delete removes a task record. Running tasks are cancelled first.
	Delete(id string) error
	// Watch streams task snapshots until the task completes or the returned
	// stop function is called.
	Watch(id string) (<-chan domain.Task, func(), error)
}

type ProjectService interface {
	Create(ctx context.Context, project *domain.Project) error
	Get(ctx context.Context, id uint) (*domain.Project, error)
	GetByPath(ctx context.Context, path string) (*domain.Project, error)
	List(ctx context.Context) ([]domain.Project, error)
	// Delete removes the metadata record and, when removeContents is set, the
	// working tree under the workspace root.
	Delete(ctx context.Context, id uint, removeContents bool) error
	// ResolvePath maps a client-supplied repository path to an absolute path
	// under the workspace root, rejecting escapes.
	ResolvePath(rel string) (string, error)
}

// TokenProviderRegistry maps repository hosts to external token-exchange
// endpoints. Consulted only when a push or pull fails with an authorization
// error; read-only after startup.
type TokenProviderRegistry interface {
	AuthURL(host string) (string, bool)
}
