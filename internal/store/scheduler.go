package store

import (
	"sync"
	"time"
)

// Scheduler runs keyed, cancellable delayed tasks. Scheduling a task for a
// key replaces any task for that key that has not fired yet, so a burst of
// Schedule calls runs only the last function, once, after the last delay.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[string]*task
	closed bool
	wg     sync.WaitGroup
}

type task struct {
	timer *time.Timer
	fn    func()
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{tasks: make(map[string]*task)}
}

// Schedule runs fn after delay unless it is replaced or cancelled first.
// It reports false if the scheduler is closed.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	s.stopLocked(key)

	t := &task{fn: fn}
	s.tasks[key] = t
	s.wg.Add(1)
	t.timer = time.AfterFunc(delay, func() { s.fire(key, t) })
	return true
}

// Cancel drops the pending task for key and reports whether there was one.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(key)
}

// Pending reports whether a task is waiting to fire for key.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}

// Flush runs the pending task for key immediately, on the calling goroutine.
// It reports false if nothing was pending.
func (s *Scheduler) Flush(key string) bool {
	s.mu.Lock()
	t, ok := s.tasks[key]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if !t.timer.Stop() {
		// Already firing; fire runs it.
		s.mu.Unlock()
		return false
	}
	delete(s.tasks, key)
	s.mu.Unlock()

	t.fn()
	s.wg.Done()
	return true
}

// Close cancels every pending task. Later Schedule calls are ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for key := range s.tasks {
		s.stopLocked(key)
	}
}

// Wait blocks until no task is pending or running.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// stopLocked removes the task for key. A timer that already fired is
// released by fire instead.
func (s *Scheduler) stopLocked(key string) bool {
	t, ok := s.tasks[key]
	if !ok {
		return false
	}
	delete(s.tasks, key)
	if t.timer.Stop() {
		s.wg.Done()
	}
	return true
}

func (s *Scheduler) fire(key string, t *task) {
	s.mu.Lock()
	current := s.tasks[key] == t
	if current {
		delete(s.tasks, key)
	}
	s.mu.Unlock()

	defer s.wg.Done()
	if current {
		t.fn()
	}
}
