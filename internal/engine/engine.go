package engine

import (
	"context"
	"time"

	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/registry"
	"github.com/turtacn/StoryLink-Intelligence/pkg/errors"
	"github.com/turtacn/StoryLink-Intelligence/pkg/types/story"
)

// ---------------------------------------------------------------------------
// Detection engine
// ---------------------------------------------------------------------------

// Engine runs the detection pipeline over narrative text.
type Engine interface {
	// Analyze scans one document and returns the aggregated result.
	Analyze(ctx context.Context, req AnalysisRequest) (*DetectionResult, error)

	// History returns recent processing records for a document, oldest
	// first.
	History(documentID string) []ProcessingRecord
}

type detectionEngine struct {
	cfg       Config
	snapshots registry.SnapshotProvider
	adapter   AIAdapter
	logger    logging.Logger
	metrics   *prometheus.DetectionMetrics
	history   *History
	now       func() time.Time
}

// Option customises engine construction.
type Option func(*detectionEngine)

// WithAIAdapter attaches an AI adapter used when AI enhancement is enabled.
func WithAIAdapter(a AIAdapter) Option {
	return func(e *detectionEngine) { e.adapter = a }
}

// WithLogger sets the engine logger.
func WithLogger(l logging.Logger) Option {
	return func(e *detectionEngine) {
		if l != nil {
			e.logger = l.Named("engine")
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *prometheus.DetectionMetrics) Option {
	return func(e *detectionEngine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithHistoryDepth sets how many processing records are kept per document.
func WithHistoryDepth(depth int) Option {
	return func(e *detectionEngine) { e.history = NewHistory(depth) }
}

func withClock(now func() time.Time) Option {
	return func(e *detectionEngine) { e.now = now }
}

// New builds a detection engine over a registry snapshot provider.
func New(cfg Config, snapshots registry.SnapshotProvider, opts ...Option) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if snapshots == nil {
		return nil, errors.New(errors.ErrCodeValidation, "engine requires a snapshot provider")
	}
	e := &detectionEngine{
		cfg:       cfg,
		snapshots: snapshots,
		logger:    logging.NewNopLogger().Named("engine"),
		metrics:   prometheus.NewNopDetectionMetrics(),
		history:   NewHistory(0),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Analyze runs the full pipeline:
//
//  1. Validate the request and resolve the effective configuration.
//  2. Load the entity snapshot; a stale fallback degrades the run.
//  3. Bound real-time scans to the cursor window.
//  4. Preprocess the text.
//  5. Match candidate mentions (exact, then fuzzy).
//  6. Deduplicate overlapping candidates.
//  7. Infer relationships from mention proximity.
//  8. Check consistency against the registry and the text itself.
//  9. Propose new entities, folding in AI candidates when enabled.
// 10. Aggregate, record metrics, and append the history record.
func (e *detectionEngine) Analyze(ctx context.Context, req AnalysisRequest) (*DetectionResult, error) {
	started := e.now()
	trigger := req.Trigger
	if trigger == "" {
		trigger = TriggerManual
	}

	cfg, err := e.validateRequest(&req)
	if err != nil {
		prometheus.RecordAnalysis(e.metrics, trigger, len(req.Content), e.now().Sub(started), err)
		return nil, err
	}

	result := &DetectionResult{
		DocumentID: req.DocumentID,
		ProjectID:  req.ProjectID,
		Generation: req.Generation,
	}

	if req.Content != "" {
		if err := e.runPipeline(ctx, &req, cfg, trigger, result); err != nil {
			prometheus.RecordAnalysis(e.metrics, trigger, len(req.Content), e.now().Sub(started), err)
			return nil, err
		}
	}

	if cfg.EnableContextualAnalysis {
		result.ContextualInsights = buildInsights(result.EntityMentions)
	}
	result.ProcessingTimeMS = e.now().Sub(started).Milliseconds()
	result.AnalyzedAt = e.now()

	e.recordOutcome(trigger, &req, result, e.now().Sub(started))
	return result, nil
}

func (e *detectionEngine) runPipeline(ctx context.Context, req *AnalysisRequest, cfg Config, trigger string, result *DetectionResult) error {
	snap, err := e.snapshots.Snapshot(ctx, req.ProjectID)
	if err != nil {
		return err
	}
	if snap.Stale {
		result.Degraded = true
		result.DegradationReasons = append(result.DegradationReasons,
			"entity registry unavailable; analysis used an expired snapshot")
	}

	content, window := e.boundToWindow(req, cfg, trigger)
	result.AnalyzedWindow = window

	text := Preprocess(content)
	runes := []rune(text)

	candidates := matchEntities(text, snap.Entities, cfg)
	mentions := deduplicate(candidates)
	result.EntityMentions = mentions

	result.RelationshipSuggestions = inferRelationships(runes, mentions, cfg)
	result.ConsistencyWarnings = checkConsistency(mentions, snap.Entities)

	aiCandidates := e.proposeWithAI(ctx, text, snap.Entities, cfg, result)
	result.NewEntitySuggestions = suggestEntities(runes, mentions, snap.Entities, aiCandidates, cfg)
	return nil
}

// validateRequest checks the request and returns the configuration governing
// this run: the request override when present, the engine default otherwise.
func (e *detectionEngine) validateRequest(req *AnalysisRequest) (Config, error) {
	if req.DocumentID == "" {
		return Config{}, errors.New(errors.ErrCodeValidation, "document id is required")
	}
	if req.ProjectID == "" {
		return Config{}, errors.New(errors.ErrCodeValidation, "project id is required")
	}
	cfg := e.cfg
	if req.Config != nil {
		if err := req.Config.Validate(); err != nil {
			return Config{}, err
		}
		cfg = *req.Config
	}
	if len(req.Content) > cfg.MaxTextSize {
		return Config{}, errors.Newf(errors.ErrCodeTextTooLarge,
			"document is %d bytes, limit is %d", len(req.Content), cfg.MaxTextSize)
	}
	return cfg, nil
}

// boundToWindow slices real-time requests to the configured radius around
// the cursor.  The returned span locates the window in raw document offsets;
// nil means the whole document was analysed.
func (e *detectionEngine) boundToWindow(req *AnalysisRequest, cfg Config, trigger string) (string, *story.Span) {
	if trigger != TriggerRealTime || req.CursorPosition == nil || cfg.CursorWindowRadius <= 0 {
		return req.Content, nil
	}

	runes := []rune(req.Content)
	cursor := *req.CursorPosition
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(runes) {
		cursor = len(runes)
	}
	start := maxInt(0, cursor-cfg.CursorWindowRadius)
	end := minInt(len(runes), cursor+cfg.CursorWindowRadius)
	if start == 0 && end == len(runes) {
		return req.Content, nil
	}
	return string(runes[start:end]), &story.Span{Start: start, End: end}
}

// proposeWithAI asks the adapter for entity candidates.  Every failure mode
// degrades the run instead of failing it: heuristic suggestions still stand.
func (e *detectionEngine) proposeWithAI(ctx context.Context, text string, entities []story.Entity, cfg Config, result *DetectionResult) []NewEntitySuggestion {
	if !cfg.EnableAIEnhancement || e.adapter == nil {
		return nil
	}

	known := make([]string, 0, len(entities))
	for i := range entities {
		known = append(known, entities[i].Name)
	}

	started := e.now()
	raw, err := e.adapter.ProposeEntities(ctx, ProposeRequest{
		Text:         text,
		KnownNames:   known,
		AllowedTypes: cfg.EnabledEntityTypes,
	})
	prometheus.RecordAdapterCall(e.metrics, "propose_entities", e.now().Sub(started), err)
	if err != nil {
		e.logger.Warn("ai proposal failed, continuing with heuristics", logging.Err(err))
		result.Degraded = true
		result.DegradationReasons = append(result.DegradationReasons,
			"ai adapter unavailable; suggestions are heuristic only")
		return nil
	}

	validated := validateAdapterResponse(raw)
	if !validated.Valid {
		e.logger.Warn("ai proposal response rejected", logging.String("reason", validated.Reason))
		prometheus.RecordError(e.metrics, "ai_adapter", string(errors.ErrCodeAdapterMalformed))
		result.Degraded = true
		result.DegradationReasons = append(result.DegradationReasons,
			"ai adapter returned a malformed response; suggestions are heuristic only")
		return nil
	}
	return validated.Suggestions
}

// buildInsights summarises the mention set.
func buildInsights(mentions []Mention) *ContextualInsights {
	insights := &ContextualInsights{
		TotalMentions:  len(mentions),
		MentionsByType: make(map[story.EntityType]int),
	}
	counts := make(map[string]int)
	names := make(map[string]string)
	for _, m := range mentions {
		insights.MentionsByType[m.EntityType]++
		counts[m.EntityID]++
		names[m.EntityID] = m.EntityName
	}
	insights.UniqueEntities = len(counts)
	for id, n := range counts {
		if n > insights.MostMentionedHits ||
			(n == insights.MostMentionedHits && id < insights.MostMentionedID) {
			insights.MostMentionedHits = n
			insights.MostMentionedID = id
			insights.MostMentionedName = names[id]
		}
	}
	if len(mentions) == 0 {
		insights.MentionsByType = nil
	}
	return insights
}

func (e *detectionEngine) recordOutcome(trigger string, req *AnalysisRequest, result *DetectionResult, elapsed time.Duration) {
	prometheus.RecordAnalysis(e.metrics, trigger, len(req.Content), elapsed, nil)
	for _, m := range result.EntityMentions {
		e.metrics.MentionsDetectedTotal.WithLabelValues(string(m.Kind), string(m.EntityType)).Inc()
	}
	for _, s := range result.NewEntitySuggestions {
		e.metrics.SuggestionsTotal.WithLabelValues(s.Source).Inc()
	}
	for _, w := range result.ConsistencyWarnings {
		e.metrics.ConsistencyWarningsTotal.WithLabelValues(string(w.Category), string(w.Severity)).Inc()
	}

	e.history.Record(req.DocumentID, ProcessingRecord{
		Generation:      result.Generation,
		Trigger:         trigger,
		TextSize:        len(req.Content),
		MentionCount:    len(result.EntityMentions),
		SuggestionCount: len(result.NewEntitySuggestions),
		WarningCount:    len(result.ConsistencyWarnings),
		Degraded:        result.Degraded,
		Duration:        elapsed,
		CompletedAt:     result.AnalyzedAt,
	})

	e.logger.Debug("analysis complete",
		logging.String("document_id", req.DocumentID),
		logging.String("project_id", req.ProjectID),
		logging.String("trigger", trigger),
		logging.Uint64("generation", result.Generation),
		logging.Int("mentions", len(result.EntityMentions)),
		logging.Int("suggestions", len(result.NewEntitySuggestions)),
		logging.Int("warnings", len(result.ConsistencyWarnings)),
		logging.Bool("degraded", result.Degraded),
		logging.Duration("elapsed", elapsed),
	)
}

// History implements Engine.
func (e *detectionEngine) History(documentID string) []ProcessingRecord {
	return e.history.Records(documentID)
}
