package engine

import (
	"regexp"
	"strings"

	"github.com/turtacn/StoryLink-Intelligence/pkg/types/story"
)

// ---------------------------------------------------------------------------
// Relationship inference
// ---------------------------------------------------------------------------

// relationshipRule maps connective vocabulary between two mentions onto a
// relationship label.  Rules are checked in order; the first match wins.
type relationshipRule struct {
	label      string
	confidence float64
	pattern    *regexp.Regexp

	// sourceType / targetType, when non-empty, restrict the rule to pairs
	// of those entity types (in either order).
	sourceType story.EntityType
	targetType story.EntityType
}

var relationshipRules = []relationshipRule{
	{
		label:      "family",
		confidence: 0.8,
		pattern:    regexp.MustCompile(`(?i)\b(mother|father|sister|brother|daughter|son|parent|sibling|aunt|uncle|cousin|wife|husband|married)\b`),
		sourceType: story.EntityCharacter,
		targetType: story.EntityCharacter,
	},
	{
		label:      "adversary",
		confidence: 0.75,
		pattern:    regexp.MustCompile(`(?i)\b(fought|attacked|battled|killed|betrayed|cursed|hunted|enemy|rival|against)\b`),
		sourceType: story.EntityCharacter,
		targetType: story.EntityCharacter,
	},
	{
		label:      "ally",
		confidence: 0.75,
		pattern:    regexp.MustCompile(`(?i)\b(befriended|friend|ally|allies|helped|saved|rescued|trusted|protected)\b`),
		sourceType: story.EntityCharacter,
		targetType: story.EntityCharacter,
	},
	{
		label:      "located-in",
		confidence: 0.7,
		pattern:    regexp.MustCompile(`(?i)\b(arrived|entered|travell?ed|journeyed|lived|stood|walked|reached|returned|within|inside)\b`),
		sourceType: story.EntityCharacter,
		targetType: story.EntityLocation,
	},
	{
		label:      "possesses",
		confidence: 0.7,
		pattern:    regexp.MustCompile(`(?i)\b(held|carried|wielded|owned|wore|clutched|drew|grasped|kept)\b`),
		sourceType: story.EntityCharacter,
		targetType: story.EntityObject,
	},
	{
		label:      "member-of",
		confidence: 0.7,
		pattern:    regexp.MustCompile(`(?i)\b(joined|served|sworn|belonged|belongs|member|leads|founded)\b`),
		sourceType: story.EntityCharacter,
		targetType: story.EntityOrganization,
	},
}

// coOccurrenceConfidence scores pairs that share a proximity group without
// any connective vocabulary.  It sits below the default minimum confidence,
// so plain co-occurrence only surfaces when an operator lowers the floor.
const coOccurrenceConfidence = 0.45

// inferRelationships proposes entity relationships from mention proximity.
// Mentions are grouped around seed anchors: the earliest unprocessed mention
// seeds a group and collects every other mention within maxDistance of it.
// Grouping is non-transitive; a mention close to a member but far from the
// seed starts its own group later.  Each distinct entity pair within a group
// is then scored against the connective vocabulary between its mentions.
func inferRelationships(runes []rune, mentions []Mention, cfg Config) []RelationshipSuggestion {
	linked := make([]Mention, 0, len(mentions))
	for _, m := range mentions {
		if m.EntityID != "" {
			linked = append(linked, m)
		}
	}
	if len(linked) < 2 {
		return nil
	}

	var suggestions []RelationshipSuggestion
	seen := make(map[[2]string]bool)
	for _, group := range groupByProximity(linked, cfg.MaxDistance) {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if a.EntityID == b.EntityID {
					continue
				}
				key := pairKey(a.EntityID, b.EntityID)
				if seen[key] {
					continue
				}

				s, ok := scorePair(runes, a, b, cfg)
				if !ok {
					continue
				}
				seen[key] = true
				suggestions = append(suggestions, s)
			}
		}
	}
	return suggestions
}

// groupByProximity partitions mentions (already in span order) into
// seed-anchored groups.  Every mention belongs to exactly one group.
func groupByProximity(mentions []Mention, maxDistance int) [][]Mention {
	var groups [][]Mention
	processed := make([]bool, len(mentions))
	for i := range mentions {
		if processed[i] {
			continue
		}
		processed[i] = true
		group := []Mention{mentions[i]}
		for j := i + 1; j < len(mentions); j++ {
			if processed[j] {
				continue
			}
			if spanDistance(mentions[i].Span, mentions[j].Span) <= maxDistance {
				processed[j] = true
				group = append(group, mentions[j])
			}
		}
		groups = append(groups, group)
	}
	return groups
}

// spanDistance is the character gap between two spans; overlapping spans
// have distance zero.
func spanDistance(a, b story.Span) int {
	if a.Overlaps(b) {
		return 0
	}
	if a.End <= b.Start {
		return b.Start - a.End
	}
	return a.Start - b.End
}

// scorePair evaluates the text between two mentions against the rule table.
// The source of the suggestion is the mention appearing first in the text.
func scorePair(runes []rune, a, b Mention, cfg Config) (RelationshipSuggestion, bool) {
	first, second := a, b
	if second.Span.Start < first.Span.Start {
		first, second = second, first
	}

	between := betweenText(runes, first.Span, second.Span)
	evidence := strings.TrimSpace(string(runes[first.Span.Start:second.Span.End]))

	label := ""
	confidence := coOccurrenceConfidence
	for _, rule := range relationshipRules {
		if !rule.matchesTypes(first.EntityType, second.EntityType) {
			continue
		}
		if rule.pattern.MatchString(between) {
			label = rule.label
			confidence = rule.confidence
			break
		}
	}
	if label == "" {
		label = "associated-with"
	}
	if confidence < cfg.MinimumConfidence {
		return RelationshipSuggestion{}, false
	}

	return RelationshipSuggestion{
		SourceEntityID: first.EntityID,
		TargetEntityID: second.EntityID,
		Label:          label,
		Confidence:     confidence,
		Evidence:       evidence,
	}, true
}

func (r relationshipRule) matchesTypes(a, b story.EntityType) bool {
	if r.sourceType == "" && r.targetType == "" {
		return true
	}
	return (a == r.sourceType && b == r.targetType) || (a == r.targetType && b == r.sourceType)
}

// betweenText returns the text separating two mentions, whichever order they
// appear in.
func betweenText(runes []rune, a, b story.Span) string {
	start, end := a.End, b.Start
	if b.End <= a.Start {
		start, end = b.End, a.Start
	}
	if start >= end {
		return ""
	}
	return string(runes[start:end])
}

// pairKey builds an order-independent map key for an entity pair.
func pairKey(a, b string) [2]string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return [2]string{a, b}
}
