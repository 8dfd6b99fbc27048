package domain

import "time"

// StatusCancelled is the non-standard code reported for user-cancelled tasks.
// It is distinct from every classified error status.
const StatusCancelled = 499

// TaskResult is the final outcome of a task: an HTTP-style status code, a
// human-readable message and an operation-specific payload.
type TaskResult struct {
	HttpCode int    `json:"HttpCode"`
	Message  string `json:"Message"`
	JsonData JSONB  `json:"JsonData,omitempty"`
}

// Task is the externally visible state of one asynchronous operation.
// It is mutated only by the worker goroutine executing the job and read
// concurrently by status-polling callers; the registry hands out copies.
type Task struct {
	ID        string `json:"Id"`
	Owner     string `json:"-"`
	Running   bool   `json:"Running"`
	Cancelled bool   `json:"Cancelled,omitempty"`
	// Percent is nil while progress is indeterminate.
	Percent   *int        `json:"PercentComplete"`
	Message   string      `json:"Message"`
	Result    *TaskResult `json:"Result"`
	Keep      bool        `json:"-"`
	CreatedAt time.Time   `json:"-"`
	ExpiresAt time.Time   `json:"-"`
}

// Completed reports whether the task reached a terminal state.
func (t *Task) Completed() bool {
	return !t.Running && t.Result != nil
}
