package jobs

import (
	"context"
	"errors"

	"github.com/codebay/backend/internal/core/ports"
	"github.com/codebay/backend/internal/domain"
	"github.com/codebay/backend/internal/infrastructure/logger"
)

// Severity levels of an operation result.
const (
	SeverityOK      = "Ok"
	SeverityWarning = "Warning"
	SeverityError   = "Error"
)

// Result is the success-side outcome of an operation. HttpCode defaults to
// 200; JsonData always carries at least the resulting resource's Location.
type Result struct {
	HttpCode int
	Message  string
	Severity string
	JsonData domain.JSONB
}

func (r *Result) taskResult() *domain.TaskResult {
	code := r.HttpCode
	if code == 0 {
		code = 200
	}
	data := r.JsonData
	if r.Severity != "" {
		if data == nil {
			data = domain.JSONB{}
		}
		data["Severity"] = r.Severity
	}
	return &domain.TaskResult{HttpCode: code, Message: r.Message, JsonData: data}
}

// OpError carries a primary failure and, optionally, a secondary failure
// suppressed during compensating cleanup. The primary error is always what
// the caller sees; the suppressed one is only logged.
type OpError struct {
	Err        error
	Suppressed error
}

func (e *OpError) Error() string { return e.Err.Error() }
func (e *OpError) Unwrap() error { return e.Err }

// Operation is one repository operation driven by a job.
type Operation interface {
	// Name is the operation's context message, used as the user-facing text
	// for unclassified failures (e.g. "Error cloning git repository").
	Name() string
	Execute(ctx context.Context, sink *ProgressSink) (*Result, error)
}

// errorEnricher lets an operation attach additive diagnostic data (such as a
// token-exchange URL) to an already classified error.
type errorEnricher interface {
	EnrichError(ce *ClassifiedError)
}

// Job binds one operation to one task record and drives it to exactly one of
// Succeeded, Cancelled or Failed. No exception path leaves the task without a
// result; no retry is performed by the job itself.
type Job struct {
	task   *domain.Task
	ctx    context.Context
	op     Operation
	creds  *domain.Credentials
	cookie *domain.SessionCookie
	tasks  ports.TaskRegistry
	log    *logger.Logger
}

// New creates a job for op. The task and its context come from the registry;
// cancelling the task cancels ctx.
func New(task *domain.Task, ctx context.Context, op Operation, creds *domain.Credentials, cookie *domain.SessionCookie, tasks ports.TaskRegistry, log *logger.Logger) *Job {
	return &Job{task: task, ctx: ctx, op: op, creds: creds, cookie: cookie, tasks: tasks, log: log}
}

// TaskID returns the id of the task record this job reports to.
func (j *Job) TaskID() string { return j.task.ID }

// Run executes the job on the calling goroutine. The session cookie is bound
// into the operation context explicitly; the worker carries no ambient
// per-goroutine state between jobs.
func (j *Job) Run() {
	ctx := domain.WithSessionCookie(j.ctx, j.cookie)

	// Cancelled before the operation began: no side effects to undo.
	if ctx.Err() != nil {
		j.finishCancelled()
		return
	}

	sink := NewProgressSink(ctx, func(percent *int, message string) {
		j.tasks.SetProgress(j.task.ID, percent, message)
	})

	result, err := j.op.Execute(ctx, sink)

	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		j.finishCancelled()
		return
	}

	if err != nil {
		var opErr *OpError
		if errors.As(err, &opErr) && opErr.Suppressed != nil {
			j.log.Warnw("job_cleanup_error_suppressed",
				"task_id", j.task.ID, "operation", j.op.Name(), "error", opErr.Suppressed)
		}
		ce := Classify(err, j.op.Name(), j.creds)
		if enricher, ok := j.op.(errorEnricher); ok {
			enricher.EnrichError(ce)
		}
		j.log.Errorw("job_failed",
			"task_id", j.task.ID, "operation", j.op.Name(), "status", ce.HttpCode, "error", err)
		j.tasks.Complete(j.task.ID, ce.Result())
		return
	}

	j.log.Infow("job_succeeded", "task_id", j.task.ID, "operation", j.op.Name())
	j.tasks.Complete(j.task.ID, result.taskResult())
}

func (j *Job) finishCancelled() {
	j.log.Infow("job_cancelled", "task_id", j.task.ID, "operation", j.op.Name())
	j.tasks.Complete(j.task.ID, &domain.TaskResult{
		HttpCode: domain.StatusCancelled,
		Message:  "Cancelled",
	})
}
