package engine

import (
	"time"

	appconfig "github.com/turtacn/StoryLink-Intelligence/internal/config"
	"github.com/turtacn/StoryLink-Intelligence/pkg/errors"
	"github.com/turtacn/StoryLink-Intelligence/pkg/types/story"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Confidence constants shared across the pipeline.
const (
	// exactMatchConfidence is assigned to every exact match.
	exactMatchConfidence = 0.95

	// fuzzyConfidenceScale converts a similarity ratio into a confidence.
	// The scale keeps every fuzzy confidence strictly below exact.
	fuzzyConfidenceScale = 0.8

	// minMatchLength is the shortest matched text, in characters, kept as
	// a mention.  Shorter matches are noise.
	minMatchLength = 2
)

// Config holds the tuneable parameters of a single analysis run.
type Config struct {
	EnableRealTimeDetection  bool `json:"enable_real_time_detection"`
	EnableContextualAnalysis bool `json:"enable_contextual_analysis"`
	EnableAIEnhancement      bool `json:"enable_ai_enhancement"`

	// MinimumConfidence drops mentions and relationship suggestions
	// scoring below it.
	MinimumConfidence float64 `json:"minimum_confidence"`

	// EnabledEntityTypes restricts matching to the listed types; empty
	// means all types.
	EnabledEntityTypes []story.EntityType `json:"enabled_entity_types,omitempty"`

	CaseSensitive bool `json:"case_sensitive"`

	// FuzzyMatchThreshold is the minimum similarity ratio for a fuzzy
	// match, in [0, 1].  Zero disables fuzzy matching entirely.
	FuzzyMatchThreshold float64 `json:"fuzzy_match_threshold"`

	// ContextWindowSize is the excerpt width captured on each side of a
	// mention, in characters.
	ContextWindowSize int `json:"context_window_size"`

	AutoCreateThreshold float64 `json:"auto_create_threshold"`
	EnableAutoCreation  bool    `json:"enable_auto_creation"`
	RequireConfirmation bool    `json:"require_confirmation"`

	MaxSuggestionsPerDocument int `json:"max_suggestions_per_document"`

	// MaxDistance is the maximum character distance from a proximity
	// group's seed mention for another mention to join the group.
	MaxDistance int `json:"max_distance"`

	// DebounceDelay is the quiet period before a scheduled real-time scan
	// runs.
	DebounceDelay time.Duration `json:"debounce_delay"`

	// CursorWindowRadius bounds real-time scans to this many characters
	// on each side of the cursor.
	CursorWindowRadius int `json:"cursor_window_radius"`

	// MaxTextSize caps a single analysed document, in bytes.
	MaxTextSize int `json:"max_text_size"`
}

// DefaultConfig returns the engine defaults.  Fuzzy matching is off until a
// threshold is configured.
func DefaultConfig() Config {
	return Config{
		EnableRealTimeDetection:   true,
		EnableContextualAnalysis:  true,
		EnableAIEnhancement:       false,
		MinimumConfidence:         0.5,
		CaseSensitive:             false,
		FuzzyMatchThreshold:       0,
		ContextWindowSize:         100,
		AutoCreateThreshold:       0.85,
		EnableAutoCreation:        false,
		RequireConfirmation:       true,
		MaxSuggestionsPerDocument: 20,
		MaxDistance:               150,
		DebounceDelay:             2 * time.Second,
		CursorWindowRadius:        500,
		MaxTextSize:               1 << 20,
	}
}

// Validate checks the configuration for out-of-range values.
func (c Config) Validate() error {
	if c.MinimumConfidence < 0 || c.MinimumConfidence > 1 {
		return errors.Newf(errors.ErrCodeValidation, "minimum_confidence %g is out of range [0, 1]", c.MinimumConfidence)
	}
	if c.FuzzyMatchThreshold < 0 || c.FuzzyMatchThreshold > 1 {
		return errors.Newf(errors.ErrCodeValidation, "fuzzy_match_threshold %g is out of range [0, 1]", c.FuzzyMatchThreshold)
	}
	if c.AutoCreateThreshold < 0 || c.AutoCreateThreshold > 1 {
		return errors.Newf(errors.ErrCodeValidation, "auto_create_threshold %g is out of range [0, 1]", c.AutoCreateThreshold)
	}
	if c.ContextWindowSize < 0 {
		return errors.Newf(errors.ErrCodeValidation, "context_window_size must be >= 0, got %d", c.ContextWindowSize)
	}
	if c.MaxSuggestionsPerDocument < 0 {
		return errors.Newf(errors.ErrCodeValidation, "max_suggestions_per_document must be >= 0, got %d", c.MaxSuggestionsPerDocument)
	}
	if c.MaxDistance < 0 {
		return errors.Newf(errors.ErrCodeValidation, "max_distance must be >= 0, got %d", c.MaxDistance)
	}
	if c.DebounceDelay <= 0 {
		return errors.Newf(errors.ErrCodeValidation, "debounce_delay must be positive, got %s", c.DebounceDelay)
	}
	if c.CursorWindowRadius < 0 {
		return errors.Newf(errors.ErrCodeValidation, "cursor_window_radius must be >= 0, got %d", c.CursorWindowRadius)
	}
	if c.MaxTextSize < 1 {
		return errors.Newf(errors.ErrCodeValidation, "max_text_size must be >= 1, got %d", c.MaxTextSize)
	}
	for _, et := range c.EnabledEntityTypes {
		if !et.IsValid() {
			return errors.Newf(errors.ErrCodeValidation, "unknown entity type %q", et)
		}
	}
	return nil
}

// typeEnabled reports whether t participates in matching under c.
func (c Config) typeEnabled(t story.EntityType) bool {
	if len(c.EnabledEntityTypes) == 0 {
		return true
	}
	for _, et := range c.EnabledEntityTypes {
		if et == t {
			return true
		}
	}
	return false
}

// FromAppConfig maps the platform detection section onto an engine Config.
func FromAppConfig(dc appconfig.DetectionConfig) Config {
	cfg := DefaultConfig()

	cfg.EnableRealTimeDetection = dc.EnableRealTimeDetection
	cfg.EnableContextualAnalysis = dc.EnableContextualAnalysis
	cfg.EnableAIEnhancement = dc.EnableAIEnhancement
	cfg.CaseSensitive = dc.CaseSensitive
	cfg.EnableAutoCreation = dc.EnableAutoCreation
	cfg.RequireConfirmation = dc.RequireConfirmation
	cfg.FuzzyMatchThreshold = dc.FuzzyMatchThreshold

	if dc.MinimumConfidence > 0 {
		cfg.MinimumConfidence = dc.MinimumConfidence
	}
	if dc.ContextWindowSize > 0 {
		cfg.ContextWindowSize = dc.ContextWindowSize
	}
	if dc.AutoCreateThreshold > 0 {
		cfg.AutoCreateThreshold = dc.AutoCreateThreshold
	}
	if dc.MaxSuggestionsPerDocument > 0 {
		cfg.MaxSuggestionsPerDocument = dc.MaxSuggestionsPerDocument
	}
	if dc.ProximityThreshold > 0 {
		cfg.MaxDistance = dc.ProximityThreshold
	}
	if dc.DebounceInterval > 0 {
		cfg.DebounceDelay = dc.DebounceInterval
	}
	if dc.CursorWindowRadius > 0 {
		cfg.CursorWindowRadius = dc.CursorWindowRadius
	}
	if dc.MaxTextSize > 0 {
		cfg.MaxTextSize = dc.MaxTextSize
	}

	for _, raw := range dc.EnabledEntityTypes {
		if et, ok := story.ParseEntityType(raw); ok {
			cfg.EnabledEntityTypes = append(cfg.EnabledEntityTypes, et)
		}
	}
	return cfg
}
