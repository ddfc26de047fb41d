package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"route-invoice-service/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(t *testing.T, store *MemoryBlobStore, clock *fakeClock) *TTLRouteCache {
	t.Helper()
	c, err := NewTTLRouteCache(context.Background(), store, "test", WithClock(clock.Now))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestRouteCacheGetAfterSetWithinTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)}
	store := NewMemoryBlobStore()
	c := newTestCache(t, store, clock)

	want := domain.RouteResult{EncodedPath: "_p~iF~ps|U_ulLnnqC", DistanceMiles: 12.5, DurationHours: 0.3}
	if err := c.Set(ctx, c.Generation(), "k", want); err != nil {
		t.Fatalf("set: %v", err)
	}

	clock.Advance(23*time.Hour + 59*time.Minute)
	got, ok := c.Get(ctx, "k")
	if !ok {
		t.Fatal("expected hit within TTL")
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	clock.Advance(time.Minute)
	saves := store.Saves()
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss once TTL elapsed")
	}
	if store.Saves() != saves+1 {
		t.Fatalf("purge not persisted: saves %d -> %d", saves, store.Saves())
	}

	payload, err := store.Load(ctx, "test")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	var persisted map[string]json.RawMessage
	if err := json.Unmarshal(payload, &persisted); err != nil {
		t.Fatalf("decode payload %q: %v", payload, err)
	}
	if _, ok := persisted["k"]; ok {
		t.Fatalf("expired entry still persisted: %s", payload)
	}

	// A miss on an absent key writes nothing.
	saves = store.Saves()
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss")
	}
	if store.Saves() != saves {
		t.Fatalf("miss rewrote the store: saves %d -> %d", saves, store.Saves())
	}
}

func TestRouteCacheClearStartsNewGeneration(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	c := newTestCache(t, NewMemoryBlobStore(), clock)

	oldGen := c.Generation()
	if err := c.Set(ctx, oldGen, "k", domain.RouteResult{DistanceMiles: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("entry survived clear")
	}

	// A fetch started before the clear must not repopulate the cache.
	err := c.Set(ctx, oldGen, "k", domain.RouteResult{DistanceMiles: 2})
	if !errors.Is(err, domain.ErrStaleGeneration) {
		t.Fatalf("expected ErrStaleGeneration, got %v", err)
	}
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("stale write was stored")
	}

	if err := c.Set(ctx, c.Generation(), "k", domain.RouteResult{DistanceMiles: 3}); err != nil {
		t.Fatalf("set current generation: %v", err)
	}
	if got, _ := c.Get(ctx, "k"); got.DistanceMiles != 3 {
		t.Fatalf("distance = %v, want 3", got.DistanceMiles)
	}
}

func TestRouteCachePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}

	first := newTestCache(t, store, clock)
	if err := first.Set(ctx, 0, "fresh", domain.RouteResult{EncodedPath: "abc", DistanceMiles: 4, DurationHours: 0.1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	clock.Advance(20 * time.Hour)
	if err := first.Set(ctx, 0, "newer", domain.RouteResult{DistanceMiles: 5}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if store.Saves() < 2 {
		t.Fatalf("expected a save per mutation, got %d", store.Saves())
	}

	// 5 hours later "fresh" is 25h old and must not be loaded.
	clock.Advance(5 * time.Hour)
	second := newTestCache(t, store, clock)

	if _, ok := second.Get(ctx, "fresh"); ok {
		t.Error("expired entry loaded from store")
	}
	got, ok := second.Get(ctx, "newer")
	if !ok || got.DistanceMiles != 5 {
		t.Errorf("newer = %+v, %v; want distance 5", got, ok)
	}
}

func TestRouteCacheDiscardsCorruptPayload(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()
	if err := store.Save(ctx, "test", []byte("{not json")); err != nil {
		t.Fatal(err)
	}

	c := newTestCache(t, store, &fakeClock{now: time.Now()})
	if s := c.Stats(); s.Entries != 0 {
		t.Fatalf("expected empty cache, got %+v", s)
	}

	payload, _ := store.Load(ctx, "test")
	if string(payload) != "{}" {
		t.Fatalf("corrupt payload not replaced, store holds %q", payload)
	}
}

func TestRouteCacheConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, NewMemoryBlobStore(), &fakeClock{now: time.Now()})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				key := fmt.Sprintf("k%d", i%10)
				// Same key always carries the same value: entries are content-addressed.
				_ = c.Set(ctx, c.Generation(), key, domain.RouteResult{DistanceMiles: float64(i % 10)})
				if r, ok := c.Get(ctx, key); ok && r.DistanceMiles != float64(i%10) {
					t.Errorf("worker %d read %v for %s", w, r.DistanceMiles, key)
				}
			}
		}(w)
	}
	wg.Wait()

	if s := c.Stats(); s.Entries != 10 {
		t.Fatalf("entries = %d, want 10", s.Entries)
	}
}
