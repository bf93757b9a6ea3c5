package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/turtacn/StoryLink-Intelligence/pkg/types/story"
)

// ---------------------------------------------------------------------------
// Consistency checking
// ---------------------------------------------------------------------------

// attributePattern extracts a descriptive attribute value from the text
// around a mention.
type attributePattern struct {
	attribute string
	pattern   *regexp.Regexp
}

var attributePatterns = []attributePattern{
	{"eye_color", regexp.MustCompile(`(?i)\b(blue|green|brown|gray|grey|hazel|amber|violet|golden|silver|dark)\s+eyes\b`)},
	{"eye_color", regexp.MustCompile(`(?i)\beyes\s+(?:were|are)\s+(blue|green|brown|gray|grey|hazel|amber|violet|golden|silver|dark)\b`)},
	{"hair_color", regexp.MustCompile(`(?i)\b(black|silver|golden|red|brown|blonde?|white|auburn|gray|grey)\s+hair\b`)},
	{"hair_color", regexp.MustCompile(`(?i)\bhair\s+(?:was|is)\s+(black|silver|golden|red|brown|blonde?|white|auburn|gray|grey)\b`)},
}

// attributeSeverity ranks how disruptive a registry contradiction is for a
// given attribute.  Unlisted attributes default to info.
var attributeSeverity = map[string]Severity{
	"eye_color":  SeverityWarning,
	"hair_color": SeverityWarning,
	"location":   SeverityError,
}

var timeOfDayPattern = regexp.MustCompile(`(?i)\b(morning|afternoon|evening|night|midnight|dawn|dusk)\b`)
var seasonPattern = regexp.MustCompile(`(?i)\b(winter|summer|spring|autumn)\b`)

// checkConsistency compares what the text says about each mentioned entity
// against the registry and against the text itself.  It produces warnings,
// never errors: a contradictory manuscript is a finding, not a failure.
func checkConsistency(mentions []Mention, entities []story.Entity) []ConsistencyWarning {
	byEntity := make(map[string][]Mention)
	var order []string
	for _, m := range mentions {
		if m.EntityID == "" {
			continue
		}
		if _, ok := byEntity[m.EntityID]; !ok {
			order = append(order, m.EntityID)
		}
		byEntity[m.EntityID] = append(byEntity[m.EntityID], m)
	}
	if len(byEntity) == 0 {
		return nil
	}

	registry := make(map[string]*story.Entity, len(entities))
	for i := range entities {
		registry[entities[i].ID] = &entities[i]
	}

	var warnings []ConsistencyWarning
	for _, id := range order {
		entity := registry[id]
		if entity == nil {
			continue
		}
		ms := byEntity[id]
		warnings = append(warnings, checkNameVariations(entity, ms)...)
		warnings = append(warnings, checkAttributes(entity, ms)...)
		warnings = append(warnings, checkLocationContext(entity, ms, entities)...)
		warnings = append(warnings, checkTimeline(entity, ms)...)
	}
	return warnings
}

// checkNameVariations flags fuzzy-matched surface forms that differ from
// every registered name and alias, suggesting they be added as aliases.
func checkNameVariations(entity *story.Entity, mentions []Mention) []ConsistencyWarning {
	known := make(map[string]bool)
	for _, form := range entity.NameForms() {
		known[strings.ToLower(form)] = true
	}

	variants := make(map[string]story.Span)
	for _, m := range mentions {
		if m.Kind != MatchFuzzy {
			continue
		}
		key := strings.ToLower(m.Text)
		if known[key] {
			continue
		}
		if _, ok := variants[key]; !ok {
			variants[key] = m.Span
		}
	}
	if len(variants) == 0 {
		return nil
	}

	names := make([]string, 0, len(variants))
	for v := range variants {
		names = append(names, v)
	}
	sort.Strings(names)
	spans := make([]story.Span, 0, len(names))
	for _, n := range names {
		spans = append(spans, variants[n])
	}

	return []ConsistencyWarning{{
		Category:  WarningNameVariation,
		Severity:  SeverityInfo,
		EntityIDs: []string{entity.ID},
		Spans:     spans,
		Description: fmt.Sprintf("%s appears under unregistered spelling(s): %s",
			entity.Name, strings.Join(quoteAll(names), ", ")),
		SuggestedResolution: fmt.Sprintf("Add the spelling(s) as aliases of %s or correct the text.", entity.Name),
	}}
}

// checkAttributes extracts descriptive attribute values from mention
// contexts and flags two kinds of conflict: values that disagree with each
// other inside the text, and values that contradict the registry.
func checkAttributes(entity *story.Entity, mentions []Mention) []ConsistencyWarning {
	type evidence struct {
		values map[string]story.Span
		order  []string
	}
	found := make(map[string]*evidence)

	for _, m := range mentions {
		if m.Context == "" {
			continue
		}
		for _, ap := range attributePatterns {
			match := ap.pattern.FindStringSubmatch(m.Context)
			if match == nil {
				continue
			}
			value := strings.ToLower(match[1])
			ev := found[ap.attribute]
			if ev == nil {
				ev = &evidence{values: make(map[string]story.Span)}
				found[ap.attribute] = ev
			}
			if _, ok := ev.values[value]; !ok {
				ev.values[value] = m.Span
				ev.order = append(ev.order, value)
			}
		}
	}

	attrs := make([]string, 0, len(found))
	for a := range found {
		attrs = append(attrs, a)
	}
	sort.Strings(attrs)

	var warnings []ConsistencyWarning
	for _, attr := range attrs {
		ev := found[attr]

		// Disagreement within the text itself.
		if len(ev.order) > 1 {
			spans := make([]story.Span, 0, len(ev.order))
			for _, v := range ev.order {
				spans = append(spans, ev.values[v])
			}
			warnings = append(warnings, ConsistencyWarning{
				Category:  WarningAttributeConflict,
				Severity:  SeverityWarning,
				EntityIDs: []string{entity.ID},
				Spans:     spans,
				Description: fmt.Sprintf("%s is described with conflicting %s values: %s",
					entity.Name, attr, strings.Join(quoteAll(ev.order), " vs ")),
				SuggestedResolution: fmt.Sprintf("Settle on one %s for %s and update the other passage(s).", attr, entity.Name),
			})
		}

		// Contradiction of the registered attribute.
		registered := strings.ToLower(strings.TrimSpace(entity.Attributes[attr]))
		if registered == "" {
			continue
		}
		for _, v := range ev.order {
			if v == registered {
				continue
			}
			severity, ok := attributeSeverity[attr]
			if !ok {
				severity = SeverityInfo
			}
			warnings = append(warnings, ConsistencyWarning{
				Category:  WarningAttributeConflict,
				Severity:  severity,
				EntityIDs: []string{entity.ID},
				Spans:     []story.Span{ev.values[v]},
				Description: fmt.Sprintf("%s has registered %s %q but the text says %q",
					entity.Name, attr, registered, v),
				SuggestedResolution: fmt.Sprintf("Update the registry %s of %s or correct the text.", attr, entity.Name),
			})
		}
	}
	return warnings
}

// checkLocationContext flags a character whose registered location disagrees
// with a known location named around one of its mentions.
func checkLocationContext(entity *story.Entity, mentions []Mention, entities []story.Entity) []ConsistencyWarning {
	registered := strings.ToLower(strings.TrimSpace(entity.Attributes["location"]))
	if registered == "" || entity.Type != story.EntityCharacter {
		return nil
	}

	var warnings []ConsistencyWarning
	reported := make(map[string]bool)
	for _, m := range mentions {
		if m.Context == "" {
			continue
		}
		ctx := strings.ToLower(m.Context)
		for i := range entities {
			loc := &entities[i]
			if loc.Type != story.EntityLocation {
				continue
			}
			name := strings.ToLower(loc.Name)
			if name == "" || name == registered || reported[name] {
				continue
			}
			if !strings.Contains(ctx, name) {
				continue
			}
			reported[name] = true
			warnings = append(warnings, ConsistencyWarning{
				Category:  WarningContextMismatch,
				Severity:  SeverityWarning,
				EntityIDs: []string{entity.ID, loc.ID},
				Spans:     []story.Span{m.Span},
				Description: fmt.Sprintf("%s is registered at %q but appears near %s in the text",
					entity.Name, entity.Attributes["location"], loc.Name),
				SuggestedResolution: fmt.Sprintf("Confirm where %s currently is and update the registry location if the scene has moved.", entity.Name),
			})
		}
	}
	return warnings
}

// checkTimeline flags an entity whose mention contexts carry conflicting
// story-time markers within a single analysis.  Markers only conflict inside
// their own class: two times of day, or two seasons.
func checkTimeline(entity *story.Entity, mentions []Mention) []ConsistencyWarning {
	var warnings []ConsistencyWarning
	for _, class := range []struct {
		name    string
		pattern *regexp.Regexp
	}{
		{"time of day", timeOfDayPattern},
		{"season", seasonPattern},
	} {
		markers := make(map[string]story.Span)
		var order []string
		for _, m := range mentions {
			for _, match := range class.pattern.FindAllString(m.Context, -1) {
				key := strings.ToLower(match)
				if _, ok := markers[key]; !ok {
					markers[key] = m.Span
					order = append(order, key)
				}
			}
		}
		if len(order) < 2 {
			continue
		}
		spans := make([]story.Span, 0, len(order))
		for _, k := range order {
			spans = append(spans, markers[k])
		}
		warnings = append(warnings, ConsistencyWarning{
			Category:  WarningTimelineIssue,
			Severity:  SeverityInfo,
			EntityIDs: []string{entity.ID},
			Spans:     spans,
			Description: fmt.Sprintf("Mentions of %s reference more than one %s: %s",
				entity.Name, class.name, strings.Join(quoteAll(order), ", ")),
			SuggestedResolution: "Check whether the scene spans the intended stretch of story time.",
		})
	}
	return warnings
}

func quoteAll(ss []string) []string {
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return quoted
}
