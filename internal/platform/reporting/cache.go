package reporting

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ehr/careinsights/internal/domain/snapshot"
	"github.com/ehr/careinsights/internal/platform/db"
	"github.com/ehr/careinsights/internal/platform/metrics"
)

// SnapshotCache keeps the most recent snapshot per schema for ttl.
// Concurrent misses for the same schema share a single load. A zero ttl
// disables caching but still collapses concurrent loads.
//
// The shared load is detached from the cancellation of whichever request
// started it and is bounded by loadTimeout instead. Each caller still stops
// waiting when its own context ends.
type SnapshotCache struct {
	source      snapshot.Source
	label       string
	ttl         time.Duration
	loadTimeout time.Duration
	now         func() time.Time

	group   singleflight.Group
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	snap     *snapshot.Snapshot
	loadedAt time.Time
}

// NewSnapshotCache wraps source. label names the source in metrics. A zero
// loadTimeout leaves shared loads unbounded.
func NewSnapshotCache(source snapshot.Source, label string, ttl, loadTimeout time.Duration) *SnapshotCache {
	return &SnapshotCache{
		source:      source,
		label:       label,
		ttl:         ttl,
		loadTimeout: loadTimeout,
		now:         time.Now,
		entries:     make(map[string]cacheEntry),
	}
}

// Load returns the cached snapshot for the schema on ctx, loading it when
// absent or stale.
func (c *SnapshotCache) Load(ctx context.Context) (*snapshot.Snapshot, error) {
	key := db.SchemaFromContext(ctx)
	if snap, ok := c.lookup(key); ok {
		return snap, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		if snap, ok := c.lookup(key); ok {
			return snap, nil
		}
		loadCtx := context.WithoutCancel(ctx)
		if c.loadTimeout > 0 {
			var cancel context.CancelFunc
			loadCtx, cancel = context.WithTimeout(loadCtx, c.loadTimeout)
			defer cancel()
		}

		started := c.now()
		snap, err := c.source.Load(loadCtx)
		var counts map[string]int
		if snap != nil {
			counts = snap.Counts()
		}
		metrics.ObserveSnapshot(c.label, started, counts, err)
		if err != nil {
			return nil, err
		}
		if c.ttl > 0 {
			c.mu.Lock()
			c.entries[key] = cacheEntry{snap: snap, loadedAt: c.now()}
			c.mu.Unlock()
		}
		return snap, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*snapshot.Snapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Refresh drops the cached snapshot for the schema on ctx and loads it again.
func (c *SnapshotCache) Refresh(ctx context.Context) (*snapshot.Snapshot, error) {
	c.Invalidate(db.SchemaFromContext(ctx))
	return c.Load(ctx)
}

// Invalidate drops cached snapshots. No keys drops every schema.
func (c *SnapshotCache) Invalidate(schemas ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(schemas) == 0 {
		c.entries = make(map[string]cacheEntry)
		return
	}
	for _, s := range schemas {
		delete(c.entries, s)
	}
}

func (c *SnapshotCache) lookup(key string) (*snapshot.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.loadedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.snap, true
}
