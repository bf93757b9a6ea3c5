package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/StoryLink-Intelligence/internal/engine"
	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/monitoring/logging"
)

// AnalyzeHandler serves the document analysis endpoints: synchronous
// analysis, debounced scan scheduling, and processing history.
type AnalyzeHandler struct {
	engine    engine.Engine
	scheduler *engine.Scheduler
	events    kafka.EventPublisher
	logger    logging.Logger
}

// NewAnalyzeHandler constructs an AnalyzeHandler.  The scheduler may be nil
// when real-time scheduling is disabled; the scan endpoints then return 503.
func NewAnalyzeHandler(eng engine.Engine, scheduler *engine.Scheduler, events kafka.EventPublisher, logger logging.Logger) *AnalyzeHandler {
	if events == nil {
		events = kafka.NewNopPublisher()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AnalyzeHandler{
		engine:    eng,
		scheduler: scheduler,
		events:    events,
		logger:    logger,
	}
}

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	ProjectID      string         `json:"project_id"`
	DocumentID     string         `json:"document_id"`
	Content        string         `json:"content"`
	Trigger        string         `json:"trigger,omitempty"`
	CursorPosition *int           `json:"cursor_position,omitempty"`
	Config         *engine.Config `json:"config,omitempty"`
}

// Analyze handles POST /api/v1/analyze: one synchronous analysis of the
// supplied document content.
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.engine.Analyze(c.Request.Context(), engine.AnalysisRequest{
		DocumentID:     req.DocumentID,
		ProjectID:      req.ProjectID,
		Content:        req.Content,
		Trigger:        req.Trigger,
		CursorPosition: req.CursorPosition,
		Config:         req.Config,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	h.publishCompleted(c.Request.Context(), req.Trigger, result)
	c.JSON(http.StatusOK, result)
}

// ScheduleRequest is the body of POST /api/v1/documents/:documentID/scans.
type ScheduleRequest struct {
	ProjectID      string         `json:"project_id"`
	Content        string         `json:"content"`
	CursorPosition *int           `json:"cursor_position,omitempty"`
	Config         *engine.Config `json:"config,omitempty"`
}

// ScheduleResponse acknowledges a scheduled scan.
type ScheduleResponse struct {
	DocumentID string `json:"document_id"`
	Generation uint64 `json:"generation"`
	State      string `json:"state"`
}

// Schedule handles POST /api/v1/documents/:documentID/scans: registers a
// debounced real-time scan for the document's latest content.  A newer call
// for the same document supersedes any pending scan.
func (h *AnalyzeHandler) Schedule(c *gin.Context) {
	if h.scheduler == nil {
		writeError(c, errServiceUnavailable("real-time scheduling is disabled"))
		return
	}

	documentID := c.Param("documentID")
	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	gen, err := h.scheduler.Schedule(engine.AnalysisRequest{
		DocumentID:     documentID,
		ProjectID:      req.ProjectID,
		Content:        req.Content,
		Trigger:        engine.TriggerRealTime,
		CursorPosition: req.CursorPosition,
		Config:         req.Config,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, ScheduleResponse{
		DocumentID: documentID,
		Generation: gen,
		State:      string(h.scheduler.State(documentID)),
	})
}

// CancelScan handles DELETE /api/v1/documents/:documentID/scans: drops any
// pending scan and marks in-flight results for the document as stale.
func (h *AnalyzeHandler) CancelScan(c *gin.Context) {
	if h.scheduler == nil {
		writeError(c, errServiceUnavailable("real-time scheduling is disabled"))
		return
	}
	h.scheduler.Cancel(c.Param("documentID"))
	c.Status(http.StatusNoContent)
}

// HistoryResponse is the body of GET /api/v1/documents/:documentID/history.
type HistoryResponse struct {
	DocumentID string                    `json:"document_id"`
	Records    []engine.ProcessingRecord `json:"records"`
}

// History handles GET /api/v1/documents/:documentID/history: returns the
// recent processing records for a document, oldest first.
func (h *AnalyzeHandler) History(c *gin.Context) {
	documentID := c.Param("documentID")
	records := h.engine.History(documentID)
	if records == nil {
		records = []engine.ProcessingRecord{}
	}
	c.JSON(http.StatusOK, HistoryResponse{DocumentID: documentID, Records: records})
}

func (h *AnalyzeHandler) publishCompleted(ctx context.Context, trigger string, result *engine.DetectionResult) {
	if trigger == "" {
		trigger = engine.TriggerManual
	}
	h.events.PublishAnalysisCompleted(ctx, kafka.AnalysisCompletedPayload{
		ProjectID:   result.ProjectID,
		DocumentID:  result.DocumentID,
		Generation:  result.Generation,
		Trigger:     trigger,
		Mentions:    len(result.EntityMentions),
		Suggestions: len(result.NewEntitySuggestions),
		Warnings:    len(result.ConsistencyWarnings),
		Degraded:    result.Degraded,
		DurationMS:  result.ProcessingTimeMS,
		CompletedAt: result.AnalyzedAt,
	})
}
