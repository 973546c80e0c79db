package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTTLCache_SetGet(t *testing.T) {
	c := NewTTLCache(Config{DefaultTTL: time.Minute})

	if _, ok := c.Get(context.Background(), "missing"); ok {
		t.Fatalf("expected miss for unset key")
	}

	c.Set(context.Background(), "k", "v")
	got, ok := c.Get(context.Background(), "k")
	if !ok || got != "v" {
		t.Fatalf("Get() = %v, %v, want v, true", got, ok)
	}
}

func TestTTLCache_Expiration(t *testing.T) {
	c := NewTTLCache(Config{DefaultTTL: time.Minute})
	c.SetTTL(context.Background(), "k", "v", time.Millisecond)

	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get(context.Background(), "k"); ok {
		t.Fatalf("expected expired key to miss")
	}
}

func TestTTLCache_InvalidatePattern(t *testing.T) {
	c := NewTTLCache(Config{DefaultTTL: time.Minute})
	c.Set(context.Background(), "events:1", "a")
	c.Set(context.Background(), "events:2", "b")
	c.Set(context.Background(), "metrics:1", "c")

	removed := c.InvalidatePattern("events:")
	if removed != 2 {
		t.Fatalf("InvalidatePattern() removed = %d, want 2", removed)
	}
	if _, ok := c.Get(context.Background(), "metrics:1"); !ok {
		t.Fatalf("unrelated key should survive invalidation")
	}
}

func TestTTLCache_GetOrLoad_CachesResult(t *testing.T) {
	c := NewTTLCache(Config{DefaultTTL: time.Minute})
	var calls int32

	load := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return "computed", nil
	}

	v, hit, err := c.GetOrLoad(context.Background(), "k", time.Minute, load)
	if err != nil || hit || v != "computed" {
		t.Fatalf("first GetOrLoad() = %v, %v, %v", v, hit, err)
	}

	v, hit, err = c.GetOrLoad(context.Background(), "k", time.Minute, load)
	if err != nil || !hit || v != "computed" {
		t.Fatalf("second GetOrLoad() = %v, %v, %v", v, hit, err)
	}

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("load called %d times, want 1", calls)
	}
}

func TestTTLCache_GetOrLoad_CoalescesConcurrentMisses(t *testing.T) {
	c := NewTTLCache(Config{DefaultTTL: time.Minute})
	var calls int32
	start := make(chan struct{})

	load := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-start
		return "computed", nil
	}

	var wg sync.WaitGroup
	results := make([]interface{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, _, err := c.GetOrLoad(context.Background(), "shared", time.Minute, load)
			if err != nil {
				t.Errorf("GetOrLoad() error = %v", err)
				return
			}
			results[idx] = v
		}(i)
	}

	close(start)
	wg.Wait()

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("load called %d times, want exactly 1 for coalesced misses", calls)
	}
	for _, r := range results {
		if r != "computed" {
			t.Fatalf("result = %v, want computed", r)
		}
	}
}

func TestTTLCache_GetOrLoad_PropagatesError(t *testing.T) {
	c := NewTTLCache(Config{DefaultTTL: time.Minute})
	wantErr := errors.New("upstream unavailable")

	_, _, err := c.GetOrLoad(context.Background(), "k", time.Minute, func(ctx context.Context) (interface{}, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("GetOrLoad() error = %v, want %v", err, wantErr)
	}
	if _, ok := c.Get(context.Background(), "k"); ok {
		t.Fatalf("failed load should not populate the cache")
	}
}

func TestTTLCache_InvalidateAll(t *testing.T) {
	c := NewTTLCache(Config{DefaultTTL: time.Minute})
	c.Set(context.Background(), "a", 1)
	c.Set(context.Background(), "b", 2)

	c.InvalidateAll()

	if c.Size() != 0 {
		t.Fatalf("Size() after InvalidateAll() = %d, want 0", c.Size())
	}
}
