// Package engine implements the entity detection pipeline: mention matching,
// deduplication, relationship inference, consistency checking, and new-entity
// suggestion over narrative text.
package engine

import (
	"time"

	"github.com/turtacn/StoryLink-Intelligence/pkg/types/story"
)

// ---------------------------------------------------------------------------
// Match kinds
// ---------------------------------------------------------------------------

// MatchKind distinguishes how a mention was found.
type MatchKind string

const (
	// MatchExact is a case-normalised word-boundary match against a known
	// name or alias.  Exact matches always carry confidence 0.95.
	MatchExact MatchKind = "exact"

	// MatchFuzzy is an edit-distance match.  Fuzzy confidence is the
	// similarity ratio scaled by 0.8, so it is always below exact.
	MatchFuzzy MatchKind = "fuzzy"
)

// ---------------------------------------------------------------------------
// Mentions
// ---------------------------------------------------------------------------

// Mention is a single detected reference to a registry entity in the
// analyzed text.  Span offsets are character positions into the normalised
// text that was scanned (the cursor window on real-time triggers).
type Mention struct {
	EntityID   string           `json:"entity_id"`
	EntityName string           `json:"entity_name"`
	EntityType story.EntityType `json:"entity_type"`
	Text       string           `json:"text"`
	Span       story.Span       `json:"span"`
	Confidence float64          `json:"confidence"`
	Kind       MatchKind        `json:"kind"`
	Context    string           `json:"context,omitempty"`

	// scanOrder is the position in the matcher's deterministic scan
	// sequence.  It is the final deduplication tie-breaker and never
	// leaves the package.
	scanOrder int
}

// ---------------------------------------------------------------------------
// Suggestions
// ---------------------------------------------------------------------------

// NewEntitySuggestion proposes registering a name that appears in the text
// but matches no known entity.
type NewEntitySuggestion struct {
	Text          string           `json:"text"`
	NormalizedKey string           `json:"normalized_key"`
	Type          story.EntityType `json:"type"`
	Confidence    float64          `json:"confidence"`
	Spans         []story.Span     `json:"spans"`
	Frequency     int              `json:"frequency"`
	Source        string           `json:"source"`
	Reason        string           `json:"reason,omitempty"`

	// AutoCreatable is true when confidence reaches the auto-create
	// threshold and confirmation is not required; the caller may register
	// the entity without user review.
	AutoCreatable bool `json:"auto_creatable"`
}

// Suggestion sources.
const (
	SuggestionSourceHeuristic = "heuristic"
	SuggestionSourceAI        = "ai"
)

// RelationshipSuggestion proposes a link between two entities mentioned near
// each other.  The pair is ordered by first appearance in the text.
type RelationshipSuggestion struct {
	SourceEntityID string  `json:"source_entity_id"`
	TargetEntityID string  `json:"target_entity_id"`
	Label          string  `json:"label"`
	Confidence     float64 `json:"confidence"`
	Evidence       string  `json:"evidence,omitempty"`
}

// ---------------------------------------------------------------------------
// Consistency warnings
// ---------------------------------------------------------------------------

// WarningCategory classifies a consistency finding.
type WarningCategory string

const (
	WarningNameVariation     WarningCategory = "name-variation"
	WarningAttributeConflict WarningCategory = "attribute-conflict"
	WarningContextMismatch   WarningCategory = "context-mismatch"
	WarningTimelineIssue     WarningCategory = "timeline-issue"
)

// Severity ranks how strongly a warning should be surfaced to the writer.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ConsistencyWarning flags text that contradicts the registry or itself.
type ConsistencyWarning struct {
	Category            WarningCategory `json:"category"`
	Severity            Severity        `json:"severity"`
	EntityIDs           []string        `json:"entity_ids,omitempty"`
	Spans               []story.Span    `json:"spans,omitempty"`
	Description         string          `json:"description"`
	SuggestedResolution string          `json:"suggested_resolution,omitempty"`
}

// ---------------------------------------------------------------------------
// Insights and results
// ---------------------------------------------------------------------------

// ContextualInsights summarises the analysed text at a glance.
type ContextualInsights struct {
	TotalMentions     int                      `json:"total_mentions"`
	UniqueEntities    int                      `json:"unique_entities"`
	MentionsByType    map[story.EntityType]int `json:"mentions_by_type,omitempty"`
	MostMentionedID   string                   `json:"most_mentioned_id,omitempty"`
	MostMentionedName string                   `json:"most_mentioned_name,omitempty"`
	MostMentionedHits int                      `json:"most_mentioned_hits,omitempty"`
}

// DetectionResult is the aggregated output of a single analysis run.
type DetectionResult struct {
	DocumentID string `json:"document_id"`
	ProjectID  string `json:"project_id"`

	// Generation identifies which scheduled scan produced this result;
	// consumers discard results older than the latest generation.
	Generation uint64 `json:"generation"`

	EntityMentions          []Mention                `json:"entity_mentions"`
	NewEntitySuggestions    []NewEntitySuggestion    `json:"new_entity_suggestions"`
	RelationshipSuggestions []RelationshipSuggestion `json:"relationship_suggestions"`
	ConsistencyWarnings     []ConsistencyWarning     `json:"consistency_warnings"`
	ContextualInsights      *ContextualInsights      `json:"contextual_insights,omitempty"`

	// AnalyzedWindow is the slice of the document that was scanned, in
	// raw document offsets.  Nil means the whole document.
	AnalyzedWindow *story.Span `json:"analyzed_window,omitempty"`

	// Degraded is true when a non-fatal dependency failure reduced the
	// result (stale registry snapshot, AI adapter failure).
	Degraded           bool     `json:"degraded,omitempty"`
	DegradationReasons []string `json:"degradation_reasons,omitempty"`

	ProcessingTimeMS int64     `json:"processing_time_ms"`
	AnalyzedAt       time.Time `json:"analyzed_at"`
}

// ---------------------------------------------------------------------------
// Requests
// ---------------------------------------------------------------------------

// Triggers for an analysis run.
const (
	TriggerManual   = "manual"
	TriggerRealTime = "realtime"
)

// AnalysisRequest describes one document scan.
type AnalysisRequest struct {
	DocumentID string `json:"document_id"`
	ProjectID  string `json:"project_id"`
	Content    string `json:"content"`

	// Trigger records what initiated the scan; empty means TriggerManual.
	Trigger string `json:"trigger,omitempty"`

	// CursorPosition, when set on a real-time trigger, bounds the scan to
	// a window around the cursor instead of the whole document.
	CursorPosition *int `json:"cursor_position,omitempty"`

	// Config overrides the engine defaults for this request only.
	Config *Config `json:"config,omitempty"`

	// Generation is assigned by the scheduler on debounced runs; manual
	// calls leave it zero.
	Generation uint64 `json:"-"`
}

// ProcessingRecord is one entry in a document's analysis history.
type ProcessingRecord struct {
	Generation      uint64        `json:"generation"`
	Trigger         string        `json:"trigger"`
	TextSize        int           `json:"text_size"`
	MentionCount    int           `json:"mention_count"`
	SuggestionCount int           `json:"suggestion_count"`
	WarningCount    int           `json:"warning_count"`
	Degraded        bool          `json:"degraded"`
	Duration        time.Duration `json:"duration"`
	CompletedAt     time.Time     `json:"completed_at"`
}
