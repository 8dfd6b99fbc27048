package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/codebay/backend/internal/infrastructure/logger"
)

// ErrQueueFull is returned when the job queue cannot accept another job.
var ErrQueueFull = errors.New("jobs: queue full")

// Runner is a bounded worker pool. Each job runs to completion on a single
// worker goroutine; jobs share no mutable state beyond the task registry.
type Runner struct {
	queue chan *Job
	log   *logger.Logger
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewRunner(workers, queueSize int, log *logger.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}
	r := &Runner{queue: make(chan *Job, queueSize), log: log}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	return r
}

func (r *Runner) worker(id int) {
	defer r.wg.Done()
	for job := range r.queue {
		r.log.Debugw("job_picked_up", "worker", id, "task_id", job.TaskID())
		job.Run()
	}
}

// Submit enqueues a job. It never blocks; a full queue is an error surfaced
// to the caller rather than backpressure on the request path.
func (r *Runner) Submit(job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("jobs: runner stopped")
	}
	select {
	case r.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits for in-flight ones until ctx
// expires. Running jobs are not force-stopped; cancellation stays
// cooperative.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
