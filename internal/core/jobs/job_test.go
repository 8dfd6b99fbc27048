package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebay/backend/internal/domain"
	"github.com/codebay/backend/internal/infrastructure/logger"
)

// fakeRegistry is an in-memory task registry for driving jobs in tests.
type fakeRegistry struct {
	mu      sync.Mutex
	tasks   map[string]*domain.Task
	cancels map[string]context.CancelFunc
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		tasks:   map[string]*domain.Task{},
		cancels: map[string]context.CancelFunc{},
	}
}

func (r *fakeRegistry) Create(owner string, keep bool) (*domain.Task, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	task := &domain.Task{ID: uuid.New().String(), Owner: owner, Running: true, Keep: keep}
	r.mu.Lock()
	r.tasks[task.ID] = task
	r.cancels[task.ID] = cancel
	r.mu.Unlock()
	snapshot := *task
	return &snapshot, ctx
}

func (r *fakeRegistry) Get(id string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, errors.New("task: not found")
	}
	snapshot := *task
	return &snapshot, nil
}

func (r *fakeRegistry) SetProgress(id string, percent *int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task, ok := r.tasks[id]; ok && !task.Completed() {
		task.Percent = percent
		task.Message = message
	}
}

func (r *fakeRegistry) Complete(id string, result *domain.TaskResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task, ok := r.tasks[id]; ok && !task.Completed() {
		task.Running = false
		task.Result = result
	}
}

func (r *fakeRegistry) Cancel(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.cancels[id]; ok {
		r.tasks[id].Cancelled = true
		cancel()
		return nil
	}
	return errors.New("task: not found")
}

func (r *fakeRegistry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
	return nil
}

func (r *fakeRegistry) Watch(id string) (<-chan domain.Task, func(), error) {
	return nil, nil, errors.New("not implemented")
}

// fakeOp is a scriptable operation.
type fakeOp struct {
	name    string
	execute func(ctx context.Context, sink *ProgressSink) (*Result, error)
	calls   int
}

func (o *fakeOp) Name() string {
	if o.name == "" {
		return "Error running test operation"
	}
	return o.name
}

func (o *fakeOp) Execute(ctx context.Context, sink *ProgressSink) (*Result, error) {
	o.calls++
	return o.execute(ctx, sink)
}

func TestJobSuccessStoresResult(t *testing.T) {
	registry := newFakeRegistry()
	task, ctx := registry.Create("tester", false)
	op := &fakeOp{execute: func(ctx context.Context, sink *ProgressSink) (*Result, error) {
		return &Result{Message: "OK", Severity: SeverityOK, JsonData: domain.JSONB{"Location": "/api/v1/repos/demo"}}, nil
	}}

	New(task, ctx, op, nil, nil, registry, logger.NewNop()).Run()

	stored, err := registry.Get(task.ID)
	require.NoError(t, err)
	require.True(t, stored.Completed())
	assert.Equal(t, 200, stored.Result.HttpCode)
	assert.Equal(t, "OK", stored.Result.Message)
	assert.Equal(t, SeverityOK, stored.Result.JsonData["Severity"])
	assert.Equal(t, "/api/v1/repos/demo", stored.Result.JsonData["Location"])
}

func TestJobCancelledBeforeStartSkipsOperation(t *testing.T) {
	registry := newFakeRegistry()
	task, ctx := registry.Create("tester", false)
	require.NoError(t, registry.Cancel(task.ID))

	op := &fakeOp{execute: func(ctx context.Context, sink *ProgressSink) (*Result, error) {
		t.Fatal("operation must not run after cancellation")
		return nil, nil
	}}
	New(task, ctx, op, nil, nil, registry, logger.NewNop()).Run()

	assert.Zero(t, op.calls)
	stored, err := registry.Get(task.ID)
	require.NoError(t, err)
	require.True(t, stored.Completed())
	assert.Equal(t, domain.StatusCancelled, stored.Result.HttpCode)
	assert.Equal(t, "Cancelled", stored.Result.Message)
}

func TestJobCancelledMidOperation(t *testing.T) {
	registry := newFakeRegistry()
	task, ctx := registry.Create("tester", false)

	op := &fakeOp{execute: func(ctx context.Context, sink *ProgressSink) (*Result, error) {
		require.NoError(t, registry.Cancel(task.ID))
		return nil, ctx.Err()
	}}
	New(task, ctx, op, nil, nil, registry, logger.NewNop()).Run()

	stored, err := registry.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, stored.Result.HttpCode)
}

func TestJobFailureIsClassified(t *testing.T) {
	registry := newFakeRegistry()
	task, ctx := registry.Create("tester", false)

	op := &fakeOp{
		name: "Error fetching git remote",
		execute: func(ctx context.Context, sink *ProgressSink) (*Result, error) {
			return nil, errors.New("corrupt pack data")
		},
	}
	New(task, ctx, op, nil, nil, registry, logger.NewNop()).Run()

	stored, err := registry.Get(task.ID)
	require.NoError(t, err)
	require.True(t, stored.Completed())
	assert.Equal(t, 500, stored.Result.HttpCode)
	assert.Equal(t, "Error fetching git remote", stored.Result.Message)
	assert.Equal(t, "corrupt pack data", stored.Result.JsonData["DetailedMessage"])
}

func TestJobSuppressedCleanupErrorKeepsPrimary(t *testing.T) {
	registry := newFakeRegistry()
	task, ctx := registry.Create("tester", false)

	primary := errors.New("clone interrupted")
	op := &fakeOp{execute: func(ctx context.Context, sink *ProgressSink) (*Result, error) {
		return nil, &OpError{Err: primary, Suppressed: errors.New("rmdir failed")}
	}}
	New(task, ctx, op, nil, nil, registry, logger.NewNop()).Run()

	stored, err := registry.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, 500, stored.Result.HttpCode)
	assert.Equal(t, "clone interrupted", stored.Result.JsonData["DetailedMessage"])
}

func TestJobProgressReachesRegistry(t *testing.T) {
	registry := newFakeRegistry()
	task, ctx := registry.Create("tester", false)

	op := &fakeOp{execute: func(ctx context.Context, sink *ProgressSink) (*Result, error) {
		sink.BeginSubtask("Working", 2)
		sink.Advance(1)
		return &Result{Message: "OK", Severity: SeverityOK}, nil
	}}
	job := New(task, ctx, op, nil, nil, registry, logger.NewNop())

	// Capture the last progress write before completion overwrites nothing:
	// progress updates land on the registry record as they happen.
	job.Run()

	stored, err := registry.Get(task.ID)
	require.NoError(t, err)
	assert.True(t, stored.Completed())
	assert.Equal(t, "Working: 50% (1/2)", stored.Message)
}
