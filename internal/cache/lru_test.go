package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute).WithClock(func() time.Time { return now })
	c.Set("k", "v")
	c.Set("j", "w")

	now = now.Add(30 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	now = now.Add(31 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Zero(t, c.Size())
}

func TestLRUDeletePrefix(t *testing.T) {
	c := NewLRUCache[int](10, 0)
	c.Set("u1/2025-03@1", 1)
	c.Set("u1/2025-03@2", 2)
	c.Set("u1/2025-04@1", 3)
	c.Set("u2/2025-03@1", 4)

	assert.Equal(t, 2, c.DeletePrefix("u1/2025-03@"))
	assert.Equal(t, 2, c.Size())
	c.Delete("u2/2025-03@1")
	assert.Equal(t, 1, c.Size())
}

func TestJanitorSweep(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Second).WithClock(func() time.Time { return now })
	c.Set("a", 1)

	j := NewJanitor(nil)
	j.Register(c)
	now = now.Add(2 * time.Second)
	assert.Equal(t, 1, j.Sweep())

	j.Start(time.Hour)
	j.Stop()
	j.Stop()
	NewJanitor(nil).Stop()
}

func TestJanitorRunReturnsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	j := NewJanitor(nil)
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx, time.Millisecond) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	j.Stop()
}
