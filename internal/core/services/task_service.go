package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/codebay/backend/internal/domain"
	"github.com/codebay/backend/internal/infrastructure/logger"
)

// taskEntry couples a task record with its cancellation handle and the set of
// watchers streaming its snapshots.
type taskEntry struct {
	task     *domain.Task
	cancel   context.CancelFunc
	watchers map[int]chan domain.Task
	nextID   int
}

// TaskService is the in-memory task registry. Completed records are reclaimed
// by TTL; records created with keep survive until explicitly deleted.
type TaskService struct {
	cache *ttlcache.Cache[string, *taskEntry]
	ttl   time.Duration
	log   *logger.Logger
	mu    sync.Mutex
}

func NewTaskService(ttl time.Duration, log *logger.Logger) *TaskService {
	cache := ttlcache.New[string, *taskEntry](
		ttlcache.WithTTL[string, *taskEntry](ttl),
		ttlcache.WithDisableTouchOnHit[string, *taskEntry](),
	)
	s := &TaskService{cache: cache, ttl: ttl, log: log}
	cache.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *taskEntry]) {
		s.onEvicted(item.Value(), reason)
	})
	go cache.Start()
	return s
}

// Stop terminates the background expiry loop.
func (s *TaskService) Stop() {
	s.cache.Stop()
}

func (s *TaskService) Create(owner string, keep bool) (*domain.Task, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	task := &domain.Task{
		ID:        uuid.New().String(),
		Owner:     owner,
		Running:   true,
		Keep:      keep,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	entry := &taskEntry{
		task:     task,
		cancel:   cancel,
		watchers: map[int]chan domain.Task{},
	}

	// Records are exempt from expiry while the job runs; the TTL is armed
	// in Complete. ExpiresAt is therefore an estimate until then.
	s.mu.Lock()
	s.cache.Set(task.ID, entry, ttlcache.NoTTL)
	s.mu.Unlock()

	s.log.Infow("task_created", "task_id", task.ID, "owner", owner, "keep", keep)
	snapshot := *task
	return &snapshot, ctx
}

func (s *TaskService) Get(id string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entry(id)
	if entry == nil {
		return nil, ErrTaskNotFound
	}
	snapshot := *entry.task
	return &snapshot, nil
}

func (s *TaskService) SetProgress(id string, percent *int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entry(id)
	if entry == nil || entry.task.Completed() {
		return
	}
	if percent != nil {
		p := *percent
		entry.task.Percent = &p
	} else {
		entry.task.Percent = nil
	}
	entry.task.Message = message
	s.notify(entry)
}

func (s *TaskService) Complete(id string, result *domain.TaskResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entry(id)
	if entry == nil || entry.task.Completed() {
		return
	}
	entry.task.Running = false
	entry.task.Result = result
	httpCode := 0
	if result != nil {
		entry.task.Message = result.Message
		entry.task.Cancelled = result.HttpCode == domain.StatusCancelled
		httpCode = result.HttpCode
	}
	entry.cancel()
	s.notify(entry)
	for key, ch := range entry.watchers {
		close(ch)
		delete(entry.watchers, key)
	}
	if !entry.task.Keep {
		entry.task.ExpiresAt = time.Now().Add(s.ttl)
		s.cache.Set(id, entry, ttlcache.DefaultTTL)
	}
	s.log.Infow("task_completed", "task_id", id, "http_code", httpCode)
}

func (s *TaskService) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entry(id)
	if entry == nil {
		return ErrTaskNotFound
	}
	if entry.task.Completed() {
		return ErrTaskCompleted
	}
	entry.task.Cancelled = true
	entry.cancel()
	s.notify(entry)
	s.log.Infow("task_cancel_requested", "task_id", id)
	return nil
}

func (s *TaskService) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entry(id)
	if entry == nil {
		return ErrTaskNotFound
	}
	entry.cancel()
	s.cache.Delete(id)
	s.log.Infow("task_deleted", "task_id", id)
	return nil
}

func (s *TaskService) Watch(id string) (<-chan domain.Task, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entry(id)
	if entry == nil {
		return nil, nil, ErrTaskNotFound
	}

	ch := make(chan domain.Task, 16)
	ch <- *entry.task
	if entry.task.Completed() {
		close(ch)
		return ch, func() {}, nil
	}

	key := entry.nextID
	entry.nextID++
	entry.watchers[key] = ch

	stop := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if e := s.entry(id); e != nil {
			if watcher, ok := e.watchers[key]; ok {
				delete(e.watchers, key)
				close(watcher)
			}
		}
	}
	return ch, stop, nil
}

// entry looks up a live record; the caller must hold the mutex.
func (s *TaskService) entry(id string) *taskEntry {
	item := s.cache.Get(id)
	if item == nil {
		return nil
	}
	return item.Value()
}

// notify fans a snapshot out to every watcher; slow consumers miss
// intermediate snapshots rather than blocking the worker.
func (s *TaskService) notify(entry *taskEntry) {
	snapshot := *entry.task
	for _, ch := range entry.watchers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func (s *TaskService) onEvicted(entry *taskEntry, reason ttlcache.EvictionReason) {
	if entry == nil {
		return
	}
	entry.cancel()
	if reason == ttlcache.EvictionReasonExpired {
		s.log.Debugw("task_expired", "task_id", entry.task.ID)
	}
}
