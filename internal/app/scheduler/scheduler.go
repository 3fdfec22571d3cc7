// Package scheduler runs deferred one-shot tasks on in-process timers.
//
// Pending tasks live in memory only: a restart drops them, and two instances
// of the service do not share them.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/PabloGalante/twogether/internal/domain"
	"github.com/PabloGalante/twogether/internal/observability"
)

var ErrStopped = errors.New("scheduler stopped")

type Scheduler struct {
	mu      sync.Mutex
	timers  map[domain.TaskID]*time.Timer
	stopped bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		timers: make(map[domain.TaskID]*time.Timer),
		ctx:    ctx,
		cancel: cancel,
		log:    observability.WithFields("component", "scheduler"),
	}
}

// Schedule arms task to run once after delay. After Stop it is a no-op and
// the returned id is never pending.
func (s *Scheduler) Schedule(delay time.Duration, task domain.Task) domain.TaskID {
	id := domain.TaskID(domain.NewID())

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		s.log.Warn("task dropped", "task_id", id, "error", ErrStopped)
		return id
	}

	s.wg.Add(1)
	s.timers[id] = time.AfterFunc(delay, func() { s.run(id, task) })
	s.log.Debug("task scheduled", "task_id", id, "delay", delay.String())
	return id
}

func (s *Scheduler) run(id domain.TaskID, task domain.Task) {
	defer s.wg.Done()

	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("task panicked", "task_id", id, "panic", r)
		}
	}()

	start := time.Now()
	task(s.ctx)
	s.log.Debug("task finished", "task_id", id, "elapsed_ms", time.Since(start).Milliseconds())
}

// Cancel disarms a pending task. It reports false when the task already
// fired, was cancelled, or is unknown.
func (s *Scheduler) Cancel(id domain.TaskID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timers[id]
	if !ok || !t.Stop() {
		return false
	}
	delete(s.timers, id)
	s.wg.Done()
	return true
}

// Pending returns the number of armed tasks that have not fired yet.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms every pending task, cancels the context handed to running
// tasks and waits for them to return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	dropped := 0
	for id, t := range s.timers {
		if t.Stop() {
			delete(s.timers, id)
			s.wg.Done()
			dropped++
		}
	}
	s.mu.Unlock()

	s.cancel()
	if dropped > 0 {
		s.log.Warn("pending tasks dropped on stop", "count", dropped)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
