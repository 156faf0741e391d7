package debounce

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type run struct {
	at    time.Duration
	value int
}

func TestCoalescesBurstIntoOneRunWithLastState(t *testing.T) {
	clock := NewFakeClock(epoch)
	s := NewScheduler(clock)
	var runs []run

	trigger := func(value int) {
		s.Schedule("2025-03", 2*time.Second, func() {
			runs = append(runs, run{at: clock.Now().Sub(epoch), value: value})
		})
	}

	trigger(1)
	clock.Advance(500 * time.Millisecond)
	trigger(2)
	clock.Advance(500 * time.Millisecond)
	trigger(3)

	clock.Advance(1999 * time.Millisecond)
	assert.Empty(t, runs)

	clock.Advance(time.Millisecond)
	require.Len(t, runs, 1)
	assert.Equal(t, run{at: 3000 * time.Millisecond, value: 3}, runs[0])

	clock.Advance(10 * time.Second)
	assert.Len(t, runs, 1)
	assert.Zero(t, clock.Pending())
}

func TestKeysAreIndependent(t *testing.T) {
	clock := NewFakeClock(epoch)
	s := NewScheduler(clock)
	var got []string

	s.Schedule("a", time.Second, func() { got = append(got, "a") })
	s.Schedule("b", 2*time.Second, func() { got = append(got, "b") })
	s.Schedule("a", time.Second, func() { got = append(got, "a2") })

	clock.Advance(3 * time.Second)
	assert.Equal(t, []string{"a2", "b"}, got)
}

func TestCancelAndFlush(t *testing.T) {
	clock := NewFakeClock(epoch)
	s := NewScheduler(clock)
	ran := 0

	s.Schedule("k", time.Second, func() { ran++ })
	assert.True(t, s.Pending("k"))
	assert.True(t, s.Cancel("k"))
	assert.False(t, s.Cancel("k"))
	clock.Advance(2 * time.Second)
	assert.Zero(t, ran)

	s.Schedule("k", time.Second, func() { ran++ })
	assert.True(t, s.Flush("k"))
	assert.Equal(t, 1, ran)
	clock.Advance(2 * time.Second)
	assert.Equal(t, 1, ran, "flushed action must not run again")
	assert.False(t, s.Flush("k"))
}

func TestFlushAllRunsInKeyOrderAndStopRejects(t *testing.T) {
	clock := NewFakeClock(epoch)
	s := NewScheduler(clock)
	var got []string
	for _, k := range []string{"2025-03", "2025-01", "2025-02"} {
		s.Schedule(k, time.Minute, func() { got = append(got, k) })
	}
	assert.True(t, s.Pending("2025-01"))
	assert.Equal(t, 3, s.FlushAll())
	assert.Equal(t, []string{"2025-01", "2025-02", "2025-03"}, got)

	s.Schedule("late", time.Second, func() { got = append(got, "late") })
	s.Stop()
	assert.False(t, s.Schedule("after", time.Second, func() {}))
	clock.Advance(time.Minute)
	assert.Len(t, got, 3)
	assert.False(t, s.Pending("late"))
}

func TestStaleTimerIsNoop(t *testing.T) {
	clock := NewFakeClock(epoch)
	s := NewScheduler(clock)
	ran := 0

	s.Schedule("k", time.Second, func() { ran++ })
	s.mu.Lock()
	gen := s.tasks["k"].gen
	s.mu.Unlock()

	s.Schedule("k", time.Second, func() { ran += 10 })
	s.fire("k", gen) // superseded generation fires late
	assert.Zero(t, ran)

	clock.Advance(time.Second)
	assert.Equal(t, 10, ran)
}

func TestRealClockFires(t *testing.T) {
	s := NewScheduler(nil)
	var wg sync.WaitGroup
	wg.Add(1)
	s.Schedule("k", 10*time.Millisecond, wg.Done)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("action did not run")
	}
}

func TestWaitCoversActionAlreadyDequeued(t *testing.T) {
	clock := NewFakeClock(epoch)
	s := NewScheduler(clock)
	started := make(chan struct{})
	release := make(chan struct{})
	s.Schedule("k", time.Second, func() {
		close(started)
		<-release
	})

	go clock.Advance(time.Second)
	<-started
	if s.Pending("k") {
		t.Fatal("fired action still reported pending")
	}

	waited := make(chan struct{})
	go func() {
		s.Wait()
		close(waited)
	}()
	keyWaited := make(chan struct{})
	go func() {
		s.WaitKey("k")
		close(keyWaited)
	}()
	select {
	case <-waited:
		t.Fatal("Wait returned while the action was running")
	case <-keyWaited:
		t.Fatal("WaitKey returned while the action was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	for name, ch := range map[string]chan struct{}{"Wait": waited, "WaitKey": keyWaited} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("%s did not return after the action finished", name)
		}
	}
	s.WaitKey("other")
}
