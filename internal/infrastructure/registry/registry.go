// Package registry provides read access to the story entity registry and the
// snapshot caching layer the detection engine scans against.  The registry
// itself is owned by an external service; this package only queries it.
package registry

import (
	"context"
	"time"

	"github.com/turtacn/StoryLink-Intelligence/pkg/types/story"
)

// EntityRegistry lists the entities of a project, optionally filtered by
// type.  Implementations must return entities with at least one usable name
// form; malformed registry rows are skipped, never surfaced as errors.
type EntityRegistry interface {
	ListEntities(ctx context.Context, projectID string, types []story.EntityType) ([]story.Entity, error)
}

// Snapshot is an immutable view of a project's entities at load time.
// The engine scans one snapshot per analysis so results are internally
// consistent even while the registry changes underneath.
type Snapshot struct {
	ProjectID string
	Entities  []story.Entity
	LoadedAt  time.Time

	// Stale marks a snapshot served past its TTL because the registry was
	// unreachable at refresh time.  Analysis results derived from a stale
	// snapshot carry a degradation warning.
	Stale bool
}

// SnapshotProvider hands out entity snapshots and supports explicit
// invalidation when the registry signals an entity change.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, projectID string) (*Snapshot, error)
	Invalidate(ctx context.Context, projectID string)
}
