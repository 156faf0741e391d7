// Package cache provides an in-process LRU with expiry and a janitor that
// sweeps expired entries on an interval.
package cache

import (
	"context"
	"sync"
	"time"

	"budget/internal/log"
)

// Cache is the read-through surface used by callers.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	// DeletePrefix removes every key starting with prefix and returns the count.
	DeletePrefix(prefix string) int
	Size() int
}

// Cleaner is implemented by caches whose expired entries can be swept.
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically sweeps registered caches.
type Janitor struct {
	mu      sync.Mutex
	caches  []Cleaner
	logger  *log.Logger
	stop    chan struct{}
	done    chan struct{}
	started bool
	once    sync.Once
}

func NewJanitor(logger *log.Logger) *Janitor {
	if logger == nil {
		logger = log.Discard()
	}
	return &Janitor{
		logger: logger.WithComponent(log.ComponentApp),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (j *Janitor) Register(c Cleaner) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.caches = append(j.caches, c)
}

// Sweep cleans every registered cache once and returns the removed count.
func (j *Janitor) Sweep() int {
	j.mu.Lock()
	caches := append([]Cleaner(nil), j.caches...)
	j.mu.Unlock()

	removed := 0
	for _, c := range caches {
		removed += c.CleanExpired()
	}
	return removed
}

// Start sweeps every interval until Stop.
func (j *Janitor) Start(interval time.Duration) {
	j.mu.Lock()
	j.started = true
	j.mu.Unlock()
	go func() {
		defer close(j.done)
		j.loop(context.Background(), interval)
	}()
}

// Run sweeps every interval on the caller's goroutine until ctx is done or
// Stop is called.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) error {
	j.loop(ctx, interval)
	return nil
}

func (j *Janitor) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := j.Sweep(); n > 0 {
				j.logger.Debug("Swept expired cache entries", "removed", n)
			}
		case <-ctx.Done():
			return
		case <-j.stop:
			return
		}
	}
}

// Stop ends the sweep loop started by Start. Safe to call more than once.
func (j *Janitor) Stop() {
	j.once.Do(func() {
		close(j.stop)
		j.mu.Lock()
		started := j.started
		j.mu.Unlock()
		if started {
			<-j.done
		}
	})
}
