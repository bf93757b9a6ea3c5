package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/registry"
)

// RegistryHandler serves the entity registry maintenance endpoints.
type RegistryHandler struct {
	snapshots registry.SnapshotProvider
	events    kafka.EventPublisher
	logger    logging.Logger
}

// NewRegistryHandler constructs a RegistryHandler.
func NewRegistryHandler(snapshots registry.SnapshotProvider, events kafka.EventPublisher, logger logging.Logger) *RegistryHandler {
	if events == nil {
		events = kafka.NewNopPublisher()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RegistryHandler{snapshots: snapshots, events: events, logger: logger}
}

// InvalidateSnapshot handles POST /api/v1/projects/:projectID/snapshot/invalidate.
// It drops the project's cached entity snapshot so the next analysis reloads
// from the registry.  Called when entities are created, renamed, or deleted.
func (h *RegistryHandler) InvalidateSnapshot(c *gin.Context) {
	projectID := c.Param("projectID")
	h.snapshots.Invalidate(c.Request.Context(), projectID)

	h.events.PublishSnapshotInvalidated(c.Request.Context(), kafka.SnapshotInvalidatedPayload{
		ProjectID:     projectID,
		InvalidatedAt: time.Now().UTC(),
	})
	c.Status(http.StatusNoContent)
}
