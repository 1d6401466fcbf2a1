package cache

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/saviobatista/flight-insights/internal/normalizer"
	"github.com/saviobatista/flight-insights/internal/stats"
	"github.com/saviobatista/flight-insights/internal/types"
)

// Loader produces a fresh normalized snapshot
type Loader func(ctx context.Context) (*types.Snapshot, error)

// Fetcher retrieves a raw snapshot from upstream
type Fetcher interface {
	Fetch(ctx context.Context) (*types.Snapshot, error)
}

// SnapshotStore is a shared second tier consulted before the loader
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context) (*types.Snapshot, error)
	StoreSnapshot(ctx context.Context, snapshot *types.Snapshot) error
}

// SnapshotPublisher announces freshly loaded snapshots
type SnapshotPublisher interface {
	PublishSnapshotEvent(event *types.SnapshotEvent) error
}

// Option configures the Cache
type Option func(*Cache)

// WithTTL expires the slot after ttl. Zero keeps the first good snapshot forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithClock overrides time.Now for expiry checks
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithStore adds a shared snapshot tier
func WithStore(store SnapshotStore) Option {
	return func(c *Cache) { c.store = store }
}

// WithPublisher announces each fresh load
func WithPublisher(publisher SnapshotPublisher) Option {
	return func(c *Cache) { c.publisher = publisher }
}

// WithStats reports hits and misses into s
func WithStats(s *stats.Stats) Option {
	return func(c *Cache) { c.stats = s }
}

// Cache memoizes a single snapshot
type Cache struct {
	mu       sync.Mutex
	slot     *types.Snapshot
	filledAt time.Time

	ttl       time.Duration
	now       func() time.Time
	loader    Loader
	store     SnapshotStore
	publisher SnapshotPublisher
	stats     *stats.Stats
}

// New creates a cache around loader
func New(loader Loader, opts ...Option) *Cache {
	c := &Cache{
		loader: loader,
		now:    time.Now,
		stats:  stats.New(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewFetchLoader builds a Loader that fetches from upstream and normalizes the result
func NewFetchLoader(fetcher Fetcher, s *stats.Stats) Loader {
	return func(ctx context.Context) (*types.Snapshot, error) {
		snapshot, err := fetcher.Fetch(ctx)
		if err != nil {
			return nil, err
		}

		table, dropped := normalizer.NormalizeWithCount(snapshot.Table)
		if s != nil {
			s.AddNormalizedDrops(dropped)
		}

		normalized := *snapshot
		normalized.Table = table
		return &normalized, nil
	}
}

// Get returns the memoized snapshot, loading one when the slot is empty or expired.
// Degraded snapshots are returned but never memoized.
func (c *Cache) Get(ctx context.Context) (*types.Snapshot, error) {
	c.mu.Lock()
	if c.validLocked() {
		snapshot := c.slot
		c.mu.Unlock()
		c.stats.IncrementCacheHits()
		return snapshot, nil
	}
	c.mu.Unlock()
	c.stats.IncrementCacheMisses()

	if snapshot := c.fromStore(ctx); snapshot != nil {
		return c.fill(snapshot, snapshot.CapturedAt), nil
	}

	snapshot, err := c.loader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if snapshot.Degraded {
		return snapshot, nil
	}

	stored := c.fill(snapshot, c.now())
	if stored != snapshot {
		// a concurrent load finished first
		return stored, nil
	}

	if c.store != nil {
		if err := c.store.StoreSnapshot(ctx, snapshot); err != nil {
			log.Printf("Warning: Failed to share snapshot %s: %v", snapshot.ID, err)
		}
	}
	if c.publisher != nil {
		if err := c.publisher.PublishSnapshotEvent(types.NewSnapshotEvent(snapshot)); err != nil {
			log.Printf("Warning: Failed to publish snapshot event %s: %v", snapshot.ID, err)
		}
	}

	return snapshot, nil
}

// Peek returns the memoized snapshot without loading, or nil
func (c *Cache) Peek() *types.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.validLocked() {
		return nil
	}
	return c.slot
}

// Reset clears the slot
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.slot = nil
	c.filledAt = time.Time{}
}

// fill stores snapshot unless another valid one got there first, and returns the winner
func (c *Cache) fill(snapshot *types.Snapshot, at time.Time) *types.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.validLocked() {
		return c.slot
	}

	c.slot = snapshot
	c.filledAt = at
	c.stats.SetSnapshotRows(snapshot.Table.Len())
	return snapshot
}

func (c *Cache) fromStore(ctx context.Context) *types.Snapshot {
	if c.store == nil {
		return nil
	}

	snapshot, err := c.store.LoadSnapshot(ctx)
	if err != nil {
		log.Printf("Warning: Failed to read shared snapshot: %v", err)
		return nil
	}
	if snapshot == nil || snapshot.Degraded {
		return nil
	}
	if c.ttl > 0 && c.now().Sub(snapshot.CapturedAt) >= c.ttl {
		return nil
	}
	return snapshot
}

func (c *Cache) validLocked() bool {
	if c.slot == nil {
		return false
	}
	if c.ttl == 0 {
		return true
	}
	return c.now().Sub(c.filledAt) < c.ttl
}
