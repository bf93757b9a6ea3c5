package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/registry"
)

type mockSnapshots struct {
	invalidated []string
}

func (m *mockSnapshots) Snapshot(_ context.Context, projectID string) (*registry.Snapshot, error) {
	return &registry.Snapshot{ProjectID: projectID}, nil
}

func (m *mockSnapshots) Invalidate(_ context.Context, projectID string) {
	m.invalidated = append(m.invalidated, projectID)
}

func TestInvalidateSnapshot(t *testing.T) {
	snapshots := &mockSnapshots{}
	publisher := &mockPublisher{}
	h := NewRegistryHandler(snapshots, publisher, nil)

	r := gin.New()
	r.POST("/api/v1/projects/:projectID/snapshot/invalidate", h.InvalidateSnapshot)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/proj-9/snapshot/invalidate", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if len(snapshots.invalidated) != 1 || snapshots.invalidated[0] != "proj-9" {
		t.Errorf("invalidated = %v", snapshots.invalidated)
	}
	if len(publisher.invalidated) != 1 || publisher.invalidated[0].ProjectID != "proj-9" {
		t.Errorf("invalidation event not published: %+v", publisher.invalidated)
	}
	if publisher.invalidated[0].InvalidatedAt.IsZero() {
		t.Error("event has no timestamp")
	}
}
