// README: Cancellable delayed-task runner backing window-close and acceptance-deadline timers.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler runs at most one pending task per key. Scheduling a key again
// replaces the pending task; cancelling a key that already fired is a no-op.
// Tasks must re-check current state themselves: a timer surviving a missed
// Cancel is expected, and the state machine treats it as a stale actor.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	wg     sync.WaitGroup
	closed bool
	log    *slog.Logger
}

func New(log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{timers: map[string]*time.Timer{}, log: log}
}

// Schedule registers fn to run at the given wall-clock time. A zero or past
// time fires immediately.
func (s *Scheduler) Schedule(key string, at time.Time, fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if prev, ok := s.timers[key]; ok {
		if prev.Stop() {
			s.wg.Done()
		}
	}
	d := time.Until(at)
	if d < 0 {
		d = 0
	}
	s.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		defer s.wg.Done()
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if cur, ok := s.timers[key]; ok && cur == t {
			delete(s.timers, key)
		}
		s.mu.Unlock()

		s.log.Debug("scheduled task firing", "key", key)
		fn(context.Background())
	})
	s.timers[key] = t
}

// Cancel stops the pending task for key. Returns false when nothing was
// pending (already fired, already cancelled, or never scheduled).
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[key]
	if !ok {
		return false
	}
	delete(s.timers, key)
	if t.Stop() {
		s.wg.Done()
		return true
	}
	// Timer already fired; its callback will find the key gone.
	return false
}

// Stop cancels every pending task and waits for in-flight callbacks.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	for key, t := range s.timers {
		if t.Stop() {
			s.wg.Done()
		}
		delete(s.timers, key)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Pending reports whether a task is still scheduled for key.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}
