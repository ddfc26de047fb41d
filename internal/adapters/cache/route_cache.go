package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"route-invoice-service/internal/domain"
	"route-invoice-service/internal/platform/obs"
	"route-invoice-service/internal/ports"
)

// DefaultTTL is the lifetime of a cached route.
const DefaultTTL = 24 * time.Hour

// Serialized form of one entry in the blob store.
type persistedEntry struct {
	EncodedPath   string  `json:"encodedPath"`
	DistanceMiles float64 `json:"distanceMiles"`
	DurationHours float64 `json:"durationHours"`
	Timestamp     int64   `json:"timestamp"`
}

type entry struct {
	result    domain.RouteResult
	createdAt time.Time
}

// TTLRouteCache is the route cache shared by the stitcher and the empty-mile
// calculator. It is loaded once from the blob store and written back after
// every mutation. Entries are content-addressed and never mutated in place.
//
// The cache is safe for concurrent use.
type TTLRouteCache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	generation uint64

	// persistMu orders snapshot+save pairs so an older snapshot never
	// overwrites a newer one in the store.
	persistMu sync.Mutex

	store     ports.BlobStore
	namespace string
	ttl       time.Duration
	now       func() time.Time
}

type Option func(*TTLRouteCache)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *TTLRouteCache) { c.now = now }
}

func WithTTL(ttl time.Duration) Option {
	return func(c *TTLRouteCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// NewTTLRouteCache builds the cache and loads the persisted entries of namespace.
// A corrupt payload is discarded and the cache starts empty.
func NewTTLRouteCache(
	ctx context.Context,
	store ports.BlobStore,
	namespace string,
	opts ...Option,
) (*TTLRouteCache, error) {
	if store == nil {
		return nil, errors.New("route cache: blob store is nil")
	}
	if namespace == "" {
		return nil, errors.New("route cache: namespace must not be empty")
	}

	c := &TTLRouteCache{
		entries:   make(map[string]entry),
		store:     store,
		namespace: namespace,
		ttl:       DefaultTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.load(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *TTLRouteCache) load(ctx context.Context) (err error) {
	defer obs.Time(ctx, "route.cache.load")(&err)

	payload, err := c.store.Load(ctx, c.namespace)
	if err != nil {
		return fmt.Errorf("route cache: load %q: %w", c.namespace, err)
	}
	if len(payload) == 0 {
		return nil
	}

	var persisted map[string]persistedEntry
	if err := json.Unmarshal(payload, &persisted); err != nil {
		corrupt := &domain.CacheCorruptionError{Namespace: c.namespace, Err: err}
		log.Printf("route cache discarded: %v", corrupt)
		if err := c.persist(ctx); err != nil {
			log.Printf("route cache write failed: %v", err)
		}
		return nil
	}

	now := c.now()
	for k, p := range persisted {
		created := time.UnixMilli(p.Timestamp)
		if p.DistanceMiles < 0 || now.Sub(created) >= c.ttl {
			continue
		}
		c.entries[k] = entry{
			result: domain.RouteResult{
				EncodedPath:   p.EncodedPath,
				DistanceMiles: p.DistanceMiles,
				DurationHours: p.DurationHours,
			},
			createdAt: created,
		}
	}

	return nil
}

// Get returns the cached result for key. Expired entries are purged lazily.
func (c *TTLRouteCache) Get(ctx context.Context, key string) (domain.RouteResult, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return domain.RouteResult{}, false
	}

	if !c.expired(e) {
		return e.result, true
	}

	c.mu.Lock()
	// Re-check: a writer may have replaced the entry meanwhile.
	cur, ok := c.entries[key]
	purged := ok && c.expired(cur)
	if purged {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	if purged {
		if err := c.persist(ctx); err != nil {
			log.Printf("route cache write failed: %v", err)
		}
	}

	return domain.RouteResult{}, false
}

// Set stores result under key with the current timestamp. Writes tagged with
// a generation older than the current one are dropped.
func (c *TTLRouteCache) Set(ctx context.Context, generation uint64, key string, result domain.RouteResult) error {
	if key == "" {
		return errors.New("route cache: empty key")
	}
	if result.DistanceMiles < 0 {
		return fmt.Errorf("route cache: negative distance for %q", key)
	}

	c.mu.Lock()
	if generation != c.generation {
		c.mu.Unlock()
		return domain.ErrStaleGeneration
	}
	c.entries[key] = entry{result: result, createdAt: c.now()}
	c.mu.Unlock()

	return c.persist(ctx)
}

// Clear drops every entry and starts a new generation.
func (c *TTLRouteCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.generation++
	c.mu.Unlock()

	return c.persist(ctx)
}

func (c *TTLRouteCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Stats describes the live entries, for operators.
type Stats struct {
	Entries int
	Oldest  time.Time
}

func (c *TTLRouteCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var s Stats
	for _, e := range c.entries {
		if c.expired(e) {
			continue
		}
		s.Entries++
		if s.Oldest.IsZero() || e.createdAt.Before(s.Oldest) {
			s.Oldest = e.createdAt
		}
	}
	return s
}

func (c *TTLRouteCache) expired(e entry) bool {
	return c.now().Sub(e.createdAt) >= c.ttl
}

func (c *TTLRouteCache) persist(ctx context.Context) (err error) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.RLock()
	snapshot := make(map[string]persistedEntry, len(c.entries))
	for k, e := range c.entries {
		snapshot[k] = persistedEntry{
			EncodedPath:   e.result.EncodedPath,
			DistanceMiles: e.result.DistanceMiles,
			DurationHours: e.result.DurationHours,
			Timestamp:     e.createdAt.UnixMilli(),
		}
	}
	c.mu.RUnlock()

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("route cache: encode snapshot: %w", err)
	}

	if err := c.store.Save(ctx, c.namespace, payload); err != nil {
		return fmt.Errorf("route cache: save %q: %w", c.namespace, err)
	}
	return nil
}
