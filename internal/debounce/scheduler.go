// Package debounce coalesces bursts of calls sharing a key into one deferred
// action that runs after a quiet period with no further calls.
package debounce

import (
	"sort"
	"sync"
	"time"
)

type task struct {
	gen    uint64
	timer  Timer
	action func()
}

// Scheduler holds at most one pending action per key. Scheduling a key again
// supersedes the pending action and restarts its quiet period. Pending
// actions are lost if the process exits before they fire.
type Scheduler struct {
	clock Clock

	mu      sync.Mutex
	idle    *sync.Cond
	gen     uint64
	tasks   map[string]*task
	running map[string]int
	stopped bool
}

func NewScheduler(clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	s := &Scheduler{clock: clock, tasks: make(map[string]*task), running: make(map[string]int)}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Schedule arms action for key after quiet. It returns false once the
// scheduler is stopped.
func (s *Scheduler) Schedule(key string, quiet time.Duration, action func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if prev, ok := s.tasks[key]; ok {
		prev.timer.Stop()
	}
	s.gen++
	gen := s.gen
	t := &task{gen: gen, action: action}
	s.tasks[key] = t
	t.timer = s.clock.AfterFunc(quiet, func() { s.fire(key, gen) })
	return true
}

// fire runs the task for key only if it is still generation gen. A timer
// that raced with a later Schedule or Cancel finds a newer generation, or
// none, and does nothing.
func (s *Scheduler) fire(key string, gen uint64) {
	s.mu.Lock()
	t, ok := s.tasks[key]
	if !ok || t.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.tasks, key)
	s.running[key]++
	s.mu.Unlock()
	s.run(key, t.action)
}

// run executes an action already counted in s.running.
func (s *Scheduler) run(key string, action func()) {
	defer func() {
		s.mu.Lock()
		if s.running[key] <= 1 {
			delete(s.running, key)
		} else {
			s.running[key]--
		}
		s.idle.Broadcast()
		s.mu.Unlock()
	}()
	action()
}

// Cancel drops the pending action for key. It reports whether one existed.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[key]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(s.tasks, key)
	return true
}

// Flush runs the pending action for key now, on the caller's goroutine.
func (s *Scheduler) Flush(key string) bool {
	s.mu.Lock()
	t, ok := s.tasks[key]
	if ok {
		t.timer.Stop()
		delete(s.tasks, key)
		s.running[key]++
	}
	s.mu.Unlock()
	if ok {
		s.run(key, t.action)
	}
	return ok
}

// FlushAll runs every pending action in key order and returns how many ran.
func (s *Scheduler) FlushAll() int {
	s.mu.Lock()
	keys := make([]string, 0, len(s.tasks))
	for k := range s.tasks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	actions := make([]func(), 0, len(keys))
	for _, k := range keys {
		t := s.tasks[k]
		t.timer.Stop()
		actions = append(actions, t.action)
		delete(s.tasks, k)
		s.running[k]++
	}
	s.mu.Unlock()

	for i, a := range actions {
		s.run(keys[i], a)
	}
	return len(actions)
}

// Wait blocks until no action is running. Actions are counted when they are
// dequeued, so an action that fired before Wait is always waited for.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.running) > 0 {
		s.idle.Wait()
	}
}

// WaitKey blocks until no action for key is running.
func (s *Scheduler) WaitKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.running[key] > 0 {
		s.idle.Wait()
	}
}

func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}

// Stop cancels every pending action and rejects new ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, k)
	}
	s.stopped = true
}
