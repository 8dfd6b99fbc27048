package jobs

import (
	"context"
	"fmt"
	"sync"
)

// UnknownTotal marks a subtask whose amount of work cannot be estimated.
const UnknownTotal = -1

// ProgressUpdateFunc receives throttled progress updates. Percent is nil when
// the subtask total is unknown.
type ProgressUpdateFunc func(percent *int, message string)

// ProgressSink translates raw "n units out of total" callbacks from a
// repository operation into throttled task updates. Updates with a known
// total are forwarded only when the whole percentage changes; network
// transfers report per-chunk and would otherwise flood the task record.
//
// Cancellation is a pass-through to the job context: operations poll
// IsCancelled at safe points and abort cleanly, nothing is preempted.
type ProgressSink struct {
	ctx    context.Context
	update ProgressUpdateFunc

	mu          sync.Mutex
	label       string
	total       int
	cumulative  int
	lastPercent int
}

func NewProgressSink(ctx context.Context, update ProgressUpdateFunc) *ProgressSink {
	if update == nil {
		update = func(*int, string) {}
	}
	return &ProgressSink{ctx: ctx, update: update, total: UnknownTotal, lastPercent: -1}
}

// Start announces the overall operation. The subtask count is informational
// only; progress is tracked per subtask.
func (s *ProgressSink) Start(totalSubtasks int) {}

// BeginSubtask closes any prior subtask, resets the counters and pushes the
// label immediately.
func (s *ProgressSink) BeginSubtask(label string, totalUnits int) {
	s.mu.Lock()
	s.label = label
	s.total = totalUnits
	s.cumulative = 0
	s.lastPercent = -1
	s.mu.Unlock()
	s.update(nil, label)
}

// Advance accumulates completed work units and forwards an update when the
// computed percentage changes (known total) or on every cumulative change
// (unknown total). Forwarded percentages are non-decreasing.
func (s *ProgressSink) Advance(units int) {
	if units <= 0 {
		return
	}
	s.mu.Lock()
	s.cumulative += units
	if s.total > 0 && s.cumulative > s.total {
		s.cumulative = s.total
	}
	label, total, cumulative := s.label, s.total, s.cumulative
	if total <= 0 {
		s.mu.Unlock()
		s.update(nil, fmt.Sprintf("%s, %d", label, cumulative))
		return
	}
	percent := cumulative * 100 / total
	if percent == s.lastPercent {
		s.mu.Unlock()
		return
	}
	s.lastPercent = percent
	s.mu.Unlock()
	p := percent
	s.update(&p, fmt.Sprintf("%s: %d%% (%d/%d)", label, percent, cumulative, total))
}

// EndSubtask closes the current subtask.
func (s *ProgressSink) EndSubtask() {
	s.mu.Lock()
	s.label = ""
	s.total = UnknownTotal
	s.cumulative = 0
	s.lastPercent = -1
	s.mu.Unlock()
}

// IsCancelled reports whether the job context was cancelled. This is the sole
// cancellation mechanism; operations are expected to poll it at safe points.
func (s *ProgressSink) IsCancelled() bool {
	return s.ctx.Err() != nil
}

// Writer returns an io.Writer counting transfer chunks against the current
// subtask, suitable as the engine's sideband progress target.
func (s *ProgressSink) Writer() *progressWriter {
	return &progressWriter{sink: s}
}

type progressWriter struct {
	sink *ProgressSink
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.sink.Advance(1)
	return len(p), nil
}
