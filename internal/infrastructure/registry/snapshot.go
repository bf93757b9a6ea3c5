package registry

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/StoryLink-Intelligence/pkg/types/story"
)

// SharedStore is an optional second cache tier (Redis) that lets multiple
// instances share loaded snapshots.  A nil SharedStore disables the tier.
type SharedStore interface {
	GetSnapshot(ctx context.Context, projectID string) ([]story.Entity, bool, error)
	SetSnapshot(ctx context.Context, projectID string, entities []story.Entity) error
	DeleteSnapshot(ctx context.Context, projectID string) error
}

type cacheEntry struct {
	entities []story.Entity
	loadedAt time.Time
}

// SnapshotCache serves per-project entity snapshots with a TTL.  A refresh
// replaces the whole snapshot; there is no per-entity patching, which keeps
// every analysis internally consistent.  When the registry is unreachable an
// expired snapshot is served instead, flagged Stale.
type SnapshotCache struct {
	registry EntityRegistry
	shared   SharedStore
	ttl      time.Duration
	logger   logging.Logger
	metrics  *prometheus.DetectionMetrics

	mu      sync.RWMutex
	entries map[string]*cacheEntry
	group   singleflight.Group

	now func() time.Time
}

// SnapshotCacheOption customises a SnapshotCache.
type SnapshotCacheOption func(*SnapshotCache)

// WithSharedStore attaches a cross-instance snapshot tier.
func WithSharedStore(store SharedStore) SnapshotCacheOption {
	return func(c *SnapshotCache) { c.shared = store }
}

// WithClock overrides the time source.  Tests only.
func WithClock(now func() time.Time) SnapshotCacheOption {
	return func(c *SnapshotCache) { c.now = now }
}

// NewSnapshotCache constructs a SnapshotCache over the given registry.
func NewSnapshotCache(reg EntityRegistry, ttl time.Duration, log logging.Logger, metrics *prometheus.DetectionMetrics, opts ...SnapshotCacheOption) *SnapshotCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = prometheus.NewNopDetectionMetrics()
	}
	c := &SnapshotCache{
		registry: reg,
		ttl:      ttl,
		logger:   log,
		metrics:  metrics,
		entries:  make(map[string]*cacheEntry),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the project's entity snapshot, loading or refreshing it as
// needed.  Concurrent callers for the same project share one registry load.
func (c *SnapshotCache) Snapshot(ctx context.Context, projectID string) (*Snapshot, error) {
	c.mu.RLock()
	entry, ok := c.entries[projectID]
	c.mu.RUnlock()

	if ok && c.now().Sub(entry.loadedAt) < c.ttl {
		prometheus.RecordCacheAccess(c.metrics, "snapshot", true)
		return c.toSnapshot(projectID, entry, false), nil
	}
	prometheus.RecordCacheAccess(c.metrics, "snapshot", false)

	result, err, _ := c.group.Do(projectID, func() (interface{}, error) {
		return c.load(ctx, projectID)
	})
	if err != nil {
		// Degraded mode: an expired local snapshot beats no snapshot.
		if ok {
			c.metrics.RegistryStaleServesTotal.WithLabelValues().Inc()
			c.logger.Warn("registry unreachable, serving expired snapshot",
				logging.String("project_id", projectID),
				logging.Duration("age", c.now().Sub(entry.loadedAt)),
				logging.Err(err),
			)
			return c.toSnapshot(projectID, entry, true), nil
		}
		return nil, err
	}
	return result.(*Snapshot), nil
}

func (c *SnapshotCache) load(ctx context.Context, projectID string) (*Snapshot, error) {
	// Another caller may have refreshed while this one waited on the group.
	c.mu.RLock()
	entry, ok := c.entries[projectID]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.loadedAt) < c.ttl {
		return c.toSnapshot(projectID, entry, false), nil
	}

	if c.shared != nil {
		entities, found, err := c.shared.GetSnapshot(ctx, projectID)
		if err != nil {
			c.logger.Warn("shared snapshot store read failed",
				logging.String("project_id", projectID), logging.Err(err))
		} else if found {
			prometheus.RecordCacheAccess(c.metrics, "shared", true)
			return c.store(projectID, entities, false), nil
		} else {
			prometheus.RecordCacheAccess(c.metrics, "shared", false)
		}
	}

	timer := prometheus.NewTimer(c.metrics.RegistryLoadDuration.WithLabelValues("postgres"))
	entities, err := c.registry.ListEntities(ctx, projectID, nil)
	timer.ObserveDuration()
	if err != nil {
		return nil, err
	}

	c.metrics.RegistryEntityCount.WithLabelValues(projectID).Set(float64(len(entities)))
	c.logger.Debug("registry snapshot loaded",
		logging.String("project_id", projectID),
		logging.Int("entities", len(entities)),
	)

	snap := c.store(projectID, entities, true)
	return snap, nil
}

// store replaces the project's snapshot wholesale and optionally propagates
// it to the shared tier.
func (c *SnapshotCache) store(projectID string, entities []story.Entity, propagate bool) *Snapshot {
	entry := &cacheEntry{entities: entities, loadedAt: c.now()}
	c.mu.Lock()
	c.entries[projectID] = entry
	c.mu.Unlock()

	if propagate && c.shared != nil {
		// Best effort; the local tier already holds the snapshot.
		if err := c.shared.SetSnapshot(context.Background(), projectID, entities); err != nil {
			c.logger.Warn("shared snapshot store write failed",
				logging.String("project_id", projectID), logging.Err(err))
		}
	}
	return c.toSnapshot(projectID, entry, false)
}

// Invalidate drops the project's snapshot from every tier.  The next
// Snapshot call reloads from the registry.
func (c *SnapshotCache) Invalidate(ctx context.Context, projectID string) {
	c.mu.Lock()
	delete(c.entries, projectID)
	c.mu.Unlock()

	if c.shared != nil {
		if err := c.shared.DeleteSnapshot(ctx, projectID); err != nil {
			c.logger.Warn("shared snapshot store delete failed",
				logging.String("project_id", projectID), logging.Err(err))
		}
	}
	c.logger.Info("entity snapshot invalidated", logging.String("project_id", projectID))
}

func (c *SnapshotCache) toSnapshot(projectID string, entry *cacheEntry, stale bool) *Snapshot {
	return &Snapshot{
		ProjectID: projectID,
		Entities:  entry.entities,
		LoadedAt:  entry.loadedAt,
		Stale:     stale,
	}
}
