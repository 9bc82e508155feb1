// Package scheduler runs deferred, per-user tasks. At most one task is
// pending per user: scheduling a new one cancels and replaces the old one.
// Tasks are written to a TaskStore before they are armed so a restarted
// process can re-arm them with Restore.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"proactiveCacher/pkg/logger"
	"proactiveCacher/pkg/metrics"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task is a unit of deferred work for one user.
type Task struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FireAt    time.Time `json:"fire_at"`
	CreatedAt time.Time `json:"created_at"`

	// Payload is kept in memory only and is nil for restored tasks.
	Payload any `json:"-"`
}

// Handler runs a fired task. The task is removed from the store before the
// handler is called, so a crash mid-run loses the task instead of repeating
// it. Stores shared between processes can still hand a task to two
// schedulers, so handlers with side effects should check their own history
// for the task ID.
type Handler func(ctx context.Context, task Task)

// TaskStore persists pending tasks keyed by user.
type TaskStore interface {
	Save(ctx context.Context, task Task) error
	// Delete removes the user's task only if it still has the given ID.
	Delete(ctx context.Context, userID, taskID string) error
	List(ctx context.Context) ([]Task, error)
}

type pendingTask struct {
	task  Task
	timer *time.Timer
}

type Scheduler struct {
	store TaskStore
	grace time.Duration
	now   func() time.Time
	// serialises Schedule per user so the store and the armed timers agree
	users   userLocks
	mu      sync.Mutex
	handler Handler
	pending map[string]*pendingTask
	runCtx  context.Context
	running sync.WaitGroup
}

// NewScheduler builds a scheduler; restoreGrace is how late a persisted task
// may be at restore time and still fire.
func NewScheduler(store TaskStore, restoreGrace time.Duration) *Scheduler {
	return &Scheduler{
		store:   store,
		grace:   restoreGrace,
		now:     time.Now,
		users:   userLocks{locks: make(map[string]*userLock)},
		pending: make(map[string]*pendingTask),
		runCtx:  context.Background(),
	}
}

// SetHandler installs the function fired tasks are handed to.
func (s *Scheduler) SetHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Schedule persists and arms a task, replacing any pending task of the same
// user. It reports whether a pending task was replaced.
func (s *Scheduler) Schedule(ctx context.Context, task Task) (Task, bool, error) {
	if task.UserID == "" {
		return Task{}, false, errors.New("task has no user")
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = s.now()
	}

	unlock := s.users.lock(task.UserID)
	defer unlock()

	if err := s.store.Save(ctx, task); err != nil {
		return Task{}, false, fmt.Errorf("persist task: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	if old, ok := s.pending[task.UserID]; ok {
		old.timer.Stop()
		replaced = true
		logger.Info("Replacing pending task", "user_id", task.UserID, "old_task_id", old.task.ID, "task_id", task.ID)
	}
	s.armLocked(task)

	metrics.SchedulerTaskEvents.WithLabelValues("scheduled").Inc()
	if replaced {
		metrics.SchedulerTaskEvents.WithLabelValues("replaced").Inc()
	}
	s.observeLocked()

	return task, replaced, nil
}

// Cancel stops and forgets the user's pending task.
func (s *Scheduler) Cancel(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	p, ok := s.pending[userID]
	if ok {
		p.timer.Stop()
		delete(s.pending, userID)
		s.observeLocked()
	}
	s.mu.Unlock()

	if !ok {
		return false, nil
	}
	metrics.SchedulerTaskEvents.WithLabelValues("cancelled").Inc()
	if err := s.store.Delete(ctx, userID, p.task.ID); err != nil {
		return true, fmt.Errorf("delete task: %w", err)
	}
	return true, nil
}

// Pending returns the user's armed task, if any.
func (s *Scheduler) Pending(userID string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[userID]
	if !ok {
		return Task{}, false
	}
	return p.task, true
}

// PendingTasks lists armed tasks ordered by fire time.
func (s *Scheduler) PendingTasks() []Task {
	s.mu.Lock()
	out := make([]Task, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, p.task)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].FireAt.Before(out[j].FireAt)
	})
	return out
}

// Restore re-arms persisted tasks. Tasks overdue by more than the grace
// period are dropped; tasks overdue within it fire immediately.
func (s *Scheduler) Restore(ctx context.Context) (restored, dropped int, err error) {
	tasks, err := s.store.List(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list tasks: %w", err)
	}

	now := s.now()
	for _, t := range tasks {
		if now.Sub(t.FireAt) > s.grace {
			logger.Warn("Dropping stale pending task", "user_id", t.UserID, "task_id", t.ID, "fire_at", t.FireAt)
			if err := s.store.Delete(ctx, t.UserID, t.ID); err != nil {
				logger.Error("Failed to delete stale task", "task_id", t.ID, "error", err)
			}
			dropped++
			metrics.SchedulerTaskEvents.WithLabelValues("dropped").Inc()
			continue
		}

		s.mu.Lock()
		if _, ok := s.pending[t.UserID]; !ok {
			s.armLocked(t)
			restored++
			metrics.SchedulerTaskEvents.WithLabelValues("restored").Inc()
			s.observeLocked()
		}
		s.mu.Unlock()
	}

	return restored, dropped, nil
}

// Serve restores persisted tasks and keeps them armed until ctx is done.
// Stopping leaves persisted tasks in the store for the next start.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	restored, dropped, err := s.Restore(ctx)
	if err != nil {
		logger.Error("Failed to restore pending tasks", "error", err)
	} else {
		logger.Info("Scheduler started", "restored", restored, "dropped", dropped)
	}

	<-ctx.Done()

	s.mu.Lock()
	for userID, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, userID)
	}
	s.observeLocked()
	s.runCtx = context.Background()
	s.mu.Unlock()

	s.running.Wait()
	return ctx.Err()
}

func (s *Scheduler) armLocked(task Task) {
	delay := max(task.FireAt.Sub(s.now()), 0)
	userID, taskID := task.UserID, task.ID
	s.pending[userID] = &pendingTask{
		task:  task,
		timer: time.AfterFunc(delay, func() { s.fire(userID, taskID) }),
	}
}

func (s *Scheduler) observeLocked() {
	metrics.SchedulerPendingTasks.Set(float64(len(s.pending)))
}

func (s *Scheduler) fire(userID, taskID string) {
	s.mu.Lock()
	p, ok := s.pending[userID]
	if !ok || p.task.ID != taskID {
		s.mu.Unlock()
		return
	}
	delete(s.pending, userID)
	s.observeLocked()
	handler := s.handler
	ctx := s.runCtx
	s.running.Add(1)
	s.mu.Unlock()

	defer s.running.Done()

	// claim the task; one left in the store fires again on the next restore
	if err := s.store.Delete(context.WithoutCancel(ctx), userID, taskID); err != nil {
		metrics.SchedulerTaskEvents.WithLabelValues("claim_failed").Inc()
		logger.Error("Failed to claim fired task, leaving it for restore", "task_id", taskID, "user_id", userID, "error", err)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Task handler panicked", "task_id", taskID, "user_id", userID, "panic", r)
		}
	}()

	metrics.SchedulerTaskEvents.WithLabelValues("fired").Inc()
	if handler == nil {
		logger.Warn("No handler installed, dropping task", "task_id", taskID, "user_id", userID)
		return
	}
	handler(ctx, p.task)
}
