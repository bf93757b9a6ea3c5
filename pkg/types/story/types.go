// Package story defines the shared domain types exchanged between the entity
// registry, the detection engine, and the interface layers.
package story

import "strings"

// ─────────────────────────────────────────────────────────────────────────────
// EntityType enumeration
// ─────────────────────────────────────────────────────────────────────────────

// EntityType classifies the kind of story element an entity represents.
type EntityType string

const (
	EntityCharacter    EntityType = "character"
	EntityLocation     EntityType = "location"
	EntityObject       EntityType = "object"
	EntityOrganization EntityType = "organization"
	EntityLore         EntityType = "lore"
	EntityTheme        EntityType = "theme"
	EntitySubplot      EntityType = "subplot"
)

// AllEntityTypes lists every supported entity type in stable order.
var AllEntityTypes = []EntityType{
	EntityCharacter,
	EntityLocation,
	EntityObject,
	EntityOrganization,
	EntityLore,
	EntityTheme,
	EntitySubplot,
}

// ParseEntityType converts a string to an EntityType, case-insensitively.
// Unknown strings return ("", false).
func ParseEntityType(s string) (EntityType, bool) {
	t := EntityType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllEntityTypes {
		if t == known {
			return known, true
		}
	}
	return "", false
}

// IsValid reports whether t is one of the supported entity types.
func (t EntityType) IsValid() bool {
	_, ok := ParseEntityType(string(t))
	return ok
}

// ─────────────────────────────────────────────────────────────────────────────
// Importance enumeration
// ─────────────────────────────────────────────────────────────────────────────

// Importance ranks how central an entity is to the story.
type Importance string

const (
	ImportanceMajor      Importance = "major"
	ImportanceSupporting Importance = "supporting"
	ImportanceMinor      Importance = "minor"
)

// ─────────────────────────────────────────────────────────────────────────────
// Entity
// ─────────────────────────────────────────────────────────────────────────────

// Entity is a tracked story element owned by the external entity registry.
// The detection engine only ever holds a time-boxed cached snapshot of these.
type Entity struct {
	ID         string            `json:"id"`
	ProjectID  string            `json:"project_id"`
	Type       EntityType        `json:"type"`
	Name       string            `json:"name"`
	Aliases    []string          `json:"aliases,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Importance Importance        `json:"importance,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
}

// NameForms returns the canonical name followed by all aliases, skipping
// empty strings.  The order is significant: matchers scan forms in this
// order, so the canonical name wins ties.
func (e *Entity) NameForms() []string {
	forms := make([]string, 0, 1+len(e.Aliases))
	if e.Name != "" {
		forms = append(forms, e.Name)
	}
	for _, a := range e.Aliases {
		if a != "" {
			forms = append(forms, a)
		}
	}
	return forms
}

// ─────────────────────────────────────────────────────────────────────────────
// Span
// ─────────────────────────────────────────────────────────────────────────────

// Span locates a substring with half-open [Start, End) character offsets.
// Spans are immutable once computed.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the span length in characters.
func (s Span) Len() int {
	return s.End - s.Start
}

// Overlaps reports whether two half-open spans share at least one offset.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Contains reports whether s fully contains o.
func (s Span) Contains(o Span) bool {
	return s.Start <= o.Start && s.End >= o.End
}
