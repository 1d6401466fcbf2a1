package stats

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Store persists statistics snapshots
type Store interface {
	StoreServiceStats(stats map[string]interface{}) error
}

// Stats tracks service activity
type Stats struct {
	// Query counts
	TotalQueries   uint64
	OptionQueries  uint64
	InvalidQueries uint64

	// Upstream fetch counts
	Fetches         uint64
	FailedFetches   uint64
	SchemaErrors    uint64
	DecodedStates   uint64
	DroppedStates   uint64
	NormalizedDrops uint64

	// Snapshot cache
	CacheHits    uint64
	CacheMisses  uint64
	SnapshotRows uint64

	// Timing
	StartTime     time.Time
	LastFetchTime time.Time
	FetchTime     time.Duration

	store Store

	mu sync.RWMutex
}

// New creates a new Stats instance
func New() *Stats {
	return &Stats{
		StartTime: time.Now(),
	}
}

// SetStore sets the store used for persistence
func (s *Stats) SetStore(store Store) {
	s.mu.Lock()
	s.store = store
	s.mu.Unlock()
}

// Persist stores the current statistics
func (s *Stats) Persist() error {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil {
		return fmt.Errorf("stats store not set")
	}

	return store.StoreServiceStats(s.GetStats())
}

// IncrementQueries counts a served query
func (s *Stats) IncrementQueries() {
	atomic.AddUint64(&s.TotalQueries, 1)
}

// IncrementOptionQueries counts a filter-options query
func (s *Stats) IncrementOptionQueries() {
	atomic.AddUint64(&s.OptionQueries, 1)
}

// IncrementInvalidQueries counts a rejected query
func (s *Stats) IncrementInvalidQueries() {
	atomic.AddUint64(&s.InvalidQueries, 1)
}

// IncrementFailedFetches counts an upstream fetch that degraded to an empty table
func (s *Stats) IncrementFailedFetches() {
	atomic.AddUint64(&s.FailedFetches, 1)
}

// IncrementSchemaErrors counts a payload rejected by the decoder
func (s *Stats) IncrementSchemaErrors() {
	atomic.AddUint64(&s.SchemaErrors, 1)
}

// AddDecodedStates records the outcome of decoding one payload
func (s *Stats) AddDecodedStates(decoded, dropped int) {
	atomic.AddUint64(&s.DecodedStates, uint64(decoded))
	atomic.AddUint64(&s.DroppedStates, uint64(dropped))
}

// AddNormalizedDrops counts records removed by normalization
func (s *Stats) AddNormalizedDrops(n int) {
	atomic.AddUint64(&s.NormalizedDrops, uint64(n))
}

// IncrementCacheHits counts a query served from the cached snapshot
func (s *Stats) IncrementCacheHits() {
	atomic.AddUint64(&s.CacheHits, 1)
}

// IncrementCacheMisses counts a query that had to load a snapshot
func (s *Stats) IncrementCacheMisses() {
	atomic.AddUint64(&s.CacheMisses, 1)
}

// SetSnapshotRows sets the row count of the current snapshot
func (s *Stats) SetSnapshotRows(rows int) {
	atomic.StoreUint64(&s.SnapshotRows, uint64(rows))
}

// RecordFetch counts an upstream fetch and its duration
func (s *Stats) RecordFetch(duration time.Duration) {
	atomic.AddUint64(&s.Fetches, 1)
	s.mu.Lock()
	s.LastFetchTime = time.Now()
	s.FetchTime += duration
	s.mu.Unlock()
}

// GetStats returns a copy of the current statistics
func (s *Stats) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"total_queries":    atomic.LoadUint64(&s.TotalQueries),
		"option_queries":   atomic.LoadUint64(&s.OptionQueries),
		"invalid_queries":  atomic.LoadUint64(&s.InvalidQueries),
		"fetches":          atomic.LoadUint64(&s.Fetches),
		"failed_fetches":   atomic.LoadUint64(&s.FailedFetches),
		"schema_errors":    atomic.LoadUint64(&s.SchemaErrors),
		"decoded_states":   atomic.LoadUint64(&s.DecodedStates),
		"dropped_states":   atomic.LoadUint64(&s.DroppedStates),
		"normalized_drops": atomic.LoadUint64(&s.NormalizedDrops),
		"cache_hits":       atomic.LoadUint64(&s.CacheHits),
		"cache_misses":     atomic.LoadUint64(&s.CacheMisses),
		"snapshot_rows":    atomic.LoadUint64(&s.SnapshotRows),
		"start_time":       s.StartTime,
		"last_fetch_time":  s.LastFetchTime,
		"fetch_time":       s.FetchTime,
		"uptime":           time.Since(s.StartTime),
	}
}

// String returns a string representation of the statistics
func (s *Stats) String() string {
	stats := s.GetStats()
	lastFetch := "never"
	if t := stats["last_fetch_time"].(time.Time); !t.IsZero() {
		lastFetch = humanize.Time(t)
	}

	return fmt.Sprintf(
		"Queries: %s (options %s, invalid %s)\n"+
			"Fetches: %s (failed %s, schema errors %s)\n"+
			"Decoded States: %s (dropped %s, normalized away %s)\n"+
			"Cache: %s hits, %s misses\n"+
			"Snapshot Rows: %s\n"+
			"Last Fetch: %s\n"+
			"Fetch Time: %s\n"+
			"Started: %s",
		comma(stats["total_queries"]),
		comma(stats["option_queries"]),
		comma(stats["invalid_queries"]),
		comma(stats["fetches"]),
		comma(stats["failed_fetches"]),
		comma(stats["schema_errors"]),
		comma(stats["decoded_states"]),
		comma(stats["dropped_states"]),
		comma(stats["normalized_drops"]),
		comma(stats["cache_hits"]),
		comma(stats["cache_misses"]),
		comma(stats["snapshot_rows"]),
		lastFetch,
		stats["fetch_time"],
		humanize.Time(stats["start_time"].(time.Time)),
	)
}

func comma(v interface{}) string {
	return humanize.Comma(int64(v.(uint64)))
}

// StartPersistence periodically persists statistics until ctx is done
func (s *Stats) StartPersistence(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final persistence before shutdown
			if err := s.Persist(); err != nil {
				log.Printf("Failed to persist final statistics: %v", err)
			}
			return
		case <-ticker.C:
			if err := s.Persist(); err != nil {
				log.Printf("Failed to persist statistics: %v", err)
			}
		}
	}
}

// LogPeriodically logs the statistics until ctx is done
func (s *Stats) LogPeriodically(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Printf("Statistics:\n%s", s)
		}
	}
}
