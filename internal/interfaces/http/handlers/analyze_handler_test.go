package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/StoryLink-Intelligence/internal/engine"
	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/messaging/kafka"
	apperrors "github.com/turtacn/StoryLink-Intelligence/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =========================================================================
// Mocks
// =========================================================================

type mockEngine struct {
	analyzeFn func(ctx context.Context, req engine.AnalysisRequest) (*engine.DetectionResult, error)
	historyFn func(documentID string) []engine.ProcessingRecord
}

func (m *mockEngine) Analyze(ctx context.Context, req engine.AnalysisRequest) (*engine.DetectionResult, error) {
	if m.analyzeFn != nil {
		return m.analyzeFn(ctx, req)
	}
	return &engine.DetectionResult{DocumentID: req.DocumentID, ProjectID: req.ProjectID}, nil
}

func (m *mockEngine) History(documentID string) []engine.ProcessingRecord {
	if m.historyFn != nil {
		return m.historyFn(documentID)
	}
	return nil
}

type mockPublisher struct {
	mu          sync.Mutex
	completed   []kafka.AnalysisCompletedPayload
	invalidated []kafka.SnapshotInvalidatedPayload
}

func (m *mockPublisher) PublishAnalysisCompleted(_ context.Context, p kafka.AnalysisCompletedPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = append(m.completed, p)
}

func (m *mockPublisher) PublishSnapshotInvalidated(_ context.Context, p kafka.SnapshotInvalidatedPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, p)
}

func analyzeRouter(h *AnalyzeHandler) *gin.Engine {
	r := gin.New()
	r.POST("/api/v1/analyze", h.Analyze)
	docs := r.Group("/api/v1/documents/:documentID")
	docs.POST("/scans", h.Schedule)
	docs.DELETE("/scans", h.CancelScan)
	docs.GET("/history", h.History)
	return r
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// =========================================================================
// Analyze
// =========================================================================

func TestAnalyze_Success(t *testing.T) {
	eng := &mockEngine{analyzeFn: func(_ context.Context, req engine.AnalysisRequest) (*engine.DetectionResult, error) {
		return &engine.DetectionResult{
			DocumentID: req.DocumentID,
			ProjectID:  req.ProjectID,
			EntityMentions: []engine.Mention{
				{EntityID: "aria", Text: "Aria"},
			},
			ProcessingTimeMS: 7,
			AnalyzedAt:       time.Now(),
		}, nil
	}}
	publisher := &mockPublisher{}
	r := analyzeRouter(NewAnalyzeHandler(eng, nil, publisher, nil))

	w := postJSON(t, r, "/api/v1/analyze", AnalyzeRequest{
		ProjectID:  "proj-1",
		DocumentID: "doc-1",
		Content:    "Aria waited.",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var result engine.DetectionResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.DocumentID != "doc-1" || len(result.EntityMentions) != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(publisher.completed) != 1 || publisher.completed[0].Mentions != 1 {
		t.Errorf("completion event not published: %+v", publisher.completed)
	}
	if publisher.completed[0].Trigger != engine.TriggerManual {
		t.Errorf("trigger = %q, want manual default", publisher.completed[0].Trigger)
	}
}

func TestAnalyze_InvalidBody(t *testing.T) {
	r := analyzeRouter(NewAnalyzeHandler(&mockEngine{}, nil, nil, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Code != string(apperrors.ErrCodeBadRequest) {
		t.Errorf("error code = %q", resp.Code)
	}
}

func TestAnalyze_ValidationErrorMapsTo400(t *testing.T) {
	eng := &mockEngine{analyzeFn: func(_ context.Context, _ engine.AnalysisRequest) (*engine.DetectionResult, error) {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "document id is required")
	}}
	r := analyzeRouter(NewAnalyzeHandler(eng, nil, nil, nil))

	w := postJSON(t, r, "/api/v1/analyze", AnalyzeRequest{ProjectID: "p"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAnalyze_RegistryDownMapsTo503(t *testing.T) {
	eng := &mockEngine{analyzeFn: func(_ context.Context, _ engine.AnalysisRequest) (*engine.DetectionResult, error) {
		return nil, apperrors.New(apperrors.ErrCodeRegistryUnavailable, "registry down")
	}}
	publisher := &mockPublisher{}
	r := analyzeRouter(NewAnalyzeHandler(eng, nil, publisher, nil))

	w := postJSON(t, r, "/api/v1/analyze", AnalyzeRequest{ProjectID: "p", DocumentID: "d", Content: "x"})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if len(publisher.completed) != 0 {
		t.Error("failed analysis must not publish a completion event")
	}
}

func TestAnalyze_InternalErrorIsMasked(t *testing.T) {
	eng := &mockEngine{analyzeFn: func(_ context.Context, _ engine.AnalysisRequest) (*engine.DetectionResult, error) {
		return nil, apperrors.New(apperrors.ErrCodeInternal, "pgx: connection pool exhausted on shard 3")
	}}
	r := analyzeRouter(NewAnalyzeHandler(eng, nil, nil, nil))

	w := postJSON(t, r, "/api/v1/analyze", AnalyzeRequest{ProjectID: "p", DocumentID: "d", Content: "x"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Message != "internal server error" {
		t.Errorf("internal detail leaked: %q", resp.Message)
	}
}

// =========================================================================
// Scheduling
// =========================================================================

func newTestScheduler(t *testing.T) *engine.Scheduler {
	t.Helper()
	runner := func(_ context.Context, req engine.AnalysisRequest) (*engine.DetectionResult, error) {
		return &engine.DetectionResult{DocumentID: req.DocumentID, Generation: req.Generation}, nil
	}
	s, err := engine.NewScheduler(50*time.Millisecond, runner, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Stop)
	return s
}

func TestSchedule_Accepted(t *testing.T) {
	scheduler := newTestScheduler(t)
	r := analyzeRouter(NewAnalyzeHandler(&mockEngine{}, scheduler, nil, nil))

	w := postJSON(t, r, "/api/v1/documents/doc-1/scans", ScheduleRequest{
		ProjectID: "proj-1",
		Content:   "Aria waited.",
	})

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ScheduleResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.DocumentID != "doc-1" || resp.Generation != 1 || resp.State != string(engine.ScanPending) {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestSchedule_RepeatBumpsGeneration(t *testing.T) {
	scheduler := newTestScheduler(t)
	r := analyzeRouter(NewAnalyzeHandler(&mockEngine{}, scheduler, nil, nil))

	postJSON(t, r, "/api/v1/documents/doc-1/scans", ScheduleRequest{ProjectID: "p", Content: "a"})
	w := postJSON(t, r, "/api/v1/documents/doc-1/scans", ScheduleRequest{ProjectID: "p", Content: "ab"})

	var resp ScheduleResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Generation != 2 {
		t.Errorf("generation = %d, want 2", resp.Generation)
	}
}

func TestSchedule_WithoutSchedulerReturns503(t *testing.T) {
	r := analyzeRouter(NewAnalyzeHandler(&mockEngine{}, nil, nil, nil))

	w := postJSON(t, r, "/api/v1/documents/doc-1/scans", ScheduleRequest{ProjectID: "p", Content: "a"})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestCancelScan(t *testing.T) {
	scheduler := newTestScheduler(t)
	r := analyzeRouter(NewAnalyzeHandler(&mockEngine{}, scheduler, nil, nil))

	postJSON(t, r, "/api/v1/documents/doc-1/scans", ScheduleRequest{ProjectID: "p", Content: "a"})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/documents/doc-1/scans", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if scheduler.State("doc-1") != engine.ScanCancelled {
		t.Errorf("state = %v after cancel", scheduler.State("doc-1"))
	}
}

// =========================================================================
// History
// =========================================================================

func TestHistory(t *testing.T) {
	eng := &mockEngine{historyFn: func(documentID string) []engine.ProcessingRecord {
		if documentID != "doc-1" {
			return nil
		}
		return []engine.ProcessingRecord{{Generation: 1, Trigger: engine.TriggerManual, MentionCount: 3}}
	}}
	r := analyzeRouter(NewAnalyzeHandler(eng, nil, nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/doc-1/history", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp HistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Records) != 1 || resp.Records[0].MentionCount != 3 {
		t.Errorf("unexpected records: %+v", resp.Records)
	}
}

func TestHistory_UnknownDocumentReturnsEmptyList(t *testing.T) {
	r := analyzeRouter(NewAnalyzeHandler(&mockEngine{}, nil, nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/ghost/history", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	if string(raw["records"]) != "[]" {
		t.Errorf("records = %s, want empty array", raw["records"])
	}
}
