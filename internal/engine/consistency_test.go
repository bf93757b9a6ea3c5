package engine

import (
	"strings"
	"testing"

	"github.com/turtacn/StoryLink-Intelligence/pkg/types/story"
)

func contextMention(entityID string, kind MatchKind, start, end int, context string) Mention {
	return Mention{
		EntityID:   entityID,
		Kind:       kind,
		Span:       story.Span{Start: start, End: end},
		Confidence: exactMatchConfidence,
		Context:    context,
	}
}

func TestCheckConsistency_ConflictingEyeColors(t *testing.T) {
	john := characterEntity("john", "John")
	mentions := []Mention{
		contextMention("john", MatchExact, 0, 4, "John looked up, his blue eyes narrowing"),
		contextMention("john", MatchExact, 200, 204, "John smiled and his green eyes sparkled"),
	}

	warnings := checkConsistency(mentions, []story.Entity{john})
	if len(warnings) == 0 {
		t.Fatal("conflicting eye colors produced no warning")
	}
	found := false
	for _, w := range warnings {
		if w.Category == WarningAttributeConflict && strings.Contains(w.Description, "John") {
			found = true
			if w.Severity != SeverityWarning {
				t.Errorf("severity = %q, want warning", w.Severity)
			}
			if len(w.Spans) != 2 {
				t.Errorf("warning spans = %+v, want both mention spans", w.Spans)
			}
			if w.SuggestedResolution == "" {
				t.Error("warning has no suggested resolution")
			}
		}
	}
	if !found {
		t.Fatalf("no attribute-conflict warning naming John: %+v", warnings)
	}
}

func TestCheckConsistency_RegistryContradiction(t *testing.T) {
	john := characterEntity("john", "John")
	john.Attributes = map[string]string{"eye_color": "blue"}
	mentions := []Mention{
		contextMention("john", MatchExact, 0, 4, "John frowned, green eyes cold"),
	}

	warnings := checkConsistency(mentions, []story.Entity{john})
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1: %+v", len(warnings), warnings)
	}
	w := warnings[0]
	if w.Category != WarningAttributeConflict || w.Severity != SeverityWarning {
		t.Errorf("unexpected category/severity: %+v", w)
	}
	if !strings.Contains(w.Description, `"blue"`) || !strings.Contains(w.Description, `"green"`) {
		t.Errorf("description should name both values: %q", w.Description)
	}
}

func TestCheckConsistency_MatchingAttributeNoWarning(t *testing.T) {
	john := characterEntity("john", "John")
	john.Attributes = map[string]string{"eye_color": "blue"}
	mentions := []Mention{
		contextMention("john", MatchExact, 0, 4, "John stared with calm blue eyes"),
	}

	if warnings := checkConsistency(mentions, []story.Entity{john}); len(warnings) != 0 {
		t.Fatalf("consistent text produced warnings: %+v", warnings)
	}
}

func TestCheckConsistency_NameVariation(t *testing.T) {
	aria := characterEntity("aria", "Aria Moonwhisper", "Aria")
	mentions := []Mention{
		contextMention("aria", MatchExact, 0, 16, "Aria Moonwhisper bowed"),
		{
			EntityID:   "aria",
			Kind:       MatchFuzzy,
			Text:       "Arya Moonwhisper",
			Span:       story.Span{Start: 40, End: 56},
			Confidence: 0.7,
			Context:    "Arya Moonwhisper laughed",
		},
	}

	warnings := checkConsistency(mentions, []story.Entity{aria})
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1: %+v", len(warnings), warnings)
	}
	w := warnings[0]
	if w.Category != WarningNameVariation || w.Severity != SeverityInfo {
		t.Errorf("unexpected category/severity: %+v", w)
	}
	if !strings.Contains(w.Description, "arya moonwhisper") {
		t.Errorf("description should name the variant spelling: %q", w.Description)
	}
}

func TestCheckConsistency_LocationMismatch(t *testing.T) {
	aria := characterEntity("aria", "Aria")
	aria.Attributes = map[string]string{"location": "Thornged Keep"}
	harbor := story.Entity{ID: "harbor", ProjectID: "proj-1", Type: story.EntityLocation, Name: "Gull Harbor"}

	mentions := []Mention{
		contextMention("aria", MatchExact, 0, 4, "Aria strolled along Gull Harbor at sunset"),
	}

	warnings := checkConsistency(mentions, []story.Entity{aria, harbor})
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1: %+v", len(warnings), warnings)
	}
	w := warnings[0]
	if w.Category != WarningContextMismatch || w.Severity != SeverityWarning {
		t.Errorf("unexpected category/severity: %+v", w)
	}
	if len(w.EntityIDs) != 2 || w.EntityIDs[0] != "aria" || w.EntityIDs[1] != "harbor" {
		t.Errorf("warning should reference both entities: %+v", w.EntityIDs)
	}
}

func TestCheckConsistency_TimelineMarkers(t *testing.T) {
	aria := characterEntity("aria", "Aria")
	mentions := []Mention{
		contextMention("aria", MatchExact, 0, 4, "Aria rose early that morning"),
		contextMention("aria", MatchExact, 300, 304, "Aria slipped out into the night"),
	}

	warnings := checkConsistency(mentions, []story.Entity{aria})
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1: %+v", len(warnings), warnings)
	}
	w := warnings[0]
	if w.Category != WarningTimelineIssue || w.Severity != SeverityInfo {
		t.Errorf("unexpected category/severity: %+v", w)
	}
}

func TestCheckConsistency_NoLinkedMentions(t *testing.T) {
	if warnings := checkConsistency(nil, nil); warnings != nil {
		t.Fatalf("empty input produced warnings: %+v", warnings)
	}
	unlinked := []Mention{{Span: story.Span{Start: 0, End: 4}}}
	if warnings := checkConsistency(unlinked, nil); warnings != nil {
		t.Fatalf("unlinked mention produced warnings: %+v", warnings)
	}
}
