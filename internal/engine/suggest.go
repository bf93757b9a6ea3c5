package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/turtacn/StoryLink-Intelligence/pkg/types/story"
)

// ---------------------------------------------------------------------------
// New-entity suggestion
// ---------------------------------------------------------------------------

// sentenceStarters are capitalised words that open sentences without naming
// anything.  A candidate sequence sheds these from its front.
var sentenceStarters = map[string]bool{
	"the": true, "a": true, "an": true, "he": true, "she": true, "they": true,
	"it": true, "i": true, "we": true, "you": true, "but": true, "and": true,
	"then": true, "when": true, "while": true, "after": true, "before": true,
	"as": true, "in": true, "on": true, "at": true, "with": true, "his": true,
	"her": true, "their": true, "my": true, "our": true, "this": true,
	"that": true, "there": true, "however": true, "suddenly": true,
	"meanwhile": true, "once": true, "now": true, "so": true, "yet": true,
	"if": true, "for": true, "from": true, "to": true, "of": true, "by": true,
}

var characterVerbPattern = regexp.MustCompile(`(?i)\b(said|replied|whispered|shouted|smiled|laughed|nodded|walked|strode|stood|sat|looked|turned|asked|answered|thought|felt)\b`)

var locationPrepPattern = regexp.MustCompile(`(?i)\b(in|at|to|from|toward|towards|near|inside|within)\s+(?:the\s+)?$`)

// heuristic confidence model.
const (
	suggestionBaseConfidence = 0.5
	suggestionFrequencyBonus = 0.1 // per extra occurrence, capped at 3
	suggestionMultiWordBonus = 0.1
	suggestionContextBonus   = 0.1
	suggestionHeuristicCeil  = 0.9
	minSuggestionTextLength  = 3
)

// candidateOccurrence is a single sighting of a suggestion candidate.
type candidateOccurrence struct {
	span        story.Span
	midSentence bool
}

// suggestEntities proposes names in the text that match no known entity.
// Heuristic candidates are capitalised word sequences; AI candidates, when
// provided, are merged in by normalised key keeping the higher confidence.
func suggestEntities(runes []rune, mentions []Mention, entities []story.Entity, aiCandidates []NewEntitySuggestion, cfg Config) []NewEntitySuggestion {
	suggestions := heuristicSuggestions(runes, mentions, entities, cfg)
	suggestions = mergeSuggestions(suggestions, aiCandidates)

	for i := range suggestions {
		suggestions[i].AutoCreatable = cfg.EnableAutoCreation &&
			!cfg.RequireConfirmation &&
			suggestions[i].Confidence >= cfg.AutoCreateThreshold
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Confidence != suggestions[j].Confidence {
			return suggestions[i].Confidence > suggestions[j].Confidence
		}
		return suggestions[i].NormalizedKey < suggestions[j].NormalizedKey
	})
	if cfg.MaxSuggestionsPerDocument > 0 && len(suggestions) > cfg.MaxSuggestionsPerDocument {
		suggestions = suggestions[:cfg.MaxSuggestionsPerDocument]
	}
	return suggestions
}

// heuristicSuggestions scans for maximal runs of capitalised words that do
// not collide with known entities or accepted mention spans.
func heuristicSuggestions(runes []rune, mentions []Mention, entities []story.Entity, cfg Config) []NewEntitySuggestion {
	known := make(map[string]bool)
	for i := range entities {
		for _, form := range entities[i].NameForms() {
			known[strings.ToLower(form)] = true
		}
	}
	var taken spanIndex
	for _, m := range mentions {
		taken.insert(m.Span)
	}

	tokens := tokenise(runes)
	type candidate struct {
		text        string
		occurrences []candidateOccurrence
		multiWord   bool
		contextHit  bool
		entityType  story.EntityType
	}
	candidates := make(map[string]*candidate)
	var order []string

	for i := 0; i < len(tokens); {
		if !isCapitalised(tokens[i].text) {
			i++
			continue
		}
		// Extend the run of consecutive capitalised tokens.
		j := i
		for j+1 < len(tokens) && isCapitalised(tokens[j+1].text) && adjacentTokens(runes, tokens[j], tokens[j+1]) {
			j++
		}

		// Shed sentence starters from the front of the run.
		start := i
		for start <= j && sentenceStarters[strings.ToLower(tokens[start].text)] {
			start++
		}
		i = j + 1
		if start > j {
			continue
		}

		span := story.Span{Start: tokens[start].start, End: tokens[j].end}
		text := string(runes[span.Start:span.End])
		key := strings.ToLower(text)
		if len([]rune(text)) < minSuggestionTextLength || known[key] || taken.overlaps(span) {
			continue
		}

		c := candidates[key]
		if c == nil {
			c = &candidate{text: text, multiWord: start < j, entityType: story.EntityCharacter}
			candidates[key] = c
			order = append(order, key)
		}
		mid := !atSentenceStart(runes, span.Start)
		c.occurrences = append(c.occurrences, candidateOccurrence{span: span, midSentence: mid})

		context := extractContext(runes, span, cfg.ContextWindowSize)
		if characterVerbPattern.MatchString(context) {
			c.contextHit = true
		}
		if locationPrepPattern.MatchString(string(runes[maxInt(0, span.Start-20):span.Start])) {
			c.entityType = story.EntityLocation
			c.contextHit = true
		}
	}

	var suggestions []NewEntitySuggestion
	for _, key := range order {
		c := candidates[key]

		// A single word seen only at sentence starts is most likely just
		// a capitalised common word.
		if !c.multiWord && !anyMidSentence(c.occurrences) {
			continue
		}

		freq := len(c.occurrences)
		confidence := suggestionBaseConfidence
		confidence += suggestionFrequencyBonus * float64(minInt(freq-1, 3))
		if c.multiWord {
			confidence += suggestionMultiWordBonus
		}
		if c.contextHit {
			confidence += suggestionContextBonus
		}
		if confidence > suggestionHeuristicCeil {
			confidence = suggestionHeuristicCeil
		}
		if confidence < cfg.MinimumConfidence {
			continue
		}

		spans := make([]story.Span, len(c.occurrences))
		for i, occ := range c.occurrences {
			spans[i] = occ.span
		}
		suggestions = append(suggestions, NewEntitySuggestion{
			Text:          c.text,
			NormalizedKey: key,
			Type:          c.entityType,
			Confidence:    confidence,
			Spans:         spans,
			Frequency:     freq,
			Source:        SuggestionSourceHeuristic,
			Reason:        fmt.Sprintf("capitalised name seen %d time(s) with no registry match", freq),
		})
	}
	return suggestions
}

// mergeSuggestions folds AI candidates into the heuristic set.  Duplicate
// normalised keys, within the AI set as well as across sets, keep the
// higher confidence and union their spans.
func mergeSuggestions(heuristic, ai []NewEntitySuggestion) []NewEntitySuggestion {
	if len(ai) == 0 {
		return heuristic
	}
	byKey := make(map[string]int, len(heuristic))
	for i := range heuristic {
		byKey[heuristic[i].NormalizedKey] = i
	}

	merged := heuristic
	for _, s := range ai {
		i, ok := byKey[s.NormalizedKey]
		if !ok {
			merged = append(merged, s)
			byKey[s.NormalizedKey] = len(merged) - 1
			continue
		}
		foldSuggestion(&merged[i], s)
	}
	return merged
}

// foldSuggestion merges dup into the kept suggestion: spans union, the
// higher frequency wins, and the higher confidence brings its source,
// type and reason along.
func foldSuggestion(kept *NewEntitySuggestion, dup NewEntitySuggestion) {
	kept.Spans = append(kept.Spans, dup.Spans...)
	if dup.Frequency > kept.Frequency {
		kept.Frequency = dup.Frequency
	}
	if dup.Confidence > kept.Confidence {
		kept.Confidence = dup.Confidence
		kept.Source = dup.Source
		kept.Type = dup.Type
		kept.Reason = dup.Reason
	}
}

// isCapitalised reports whether the token starts with an uppercase letter
// followed by at least one lowercase one.
func isCapitalised(token string) bool {
	runes := []rune(token)
	if len(runes) < 2 {
		return false
	}
	if !unicode.IsUpper(runes[0]) {
		return false
	}
	for _, r := range runes[1:] {
		if unicode.IsLower(r) || r == '\'' || r == '-' {
			continue
		}
		return false
	}
	return true
}

// adjacentTokens reports whether only a single space separates two tokens,
// keeping multi-word names together across token boundaries.
func adjacentTokens(runes []rune, a, b wordToken) bool {
	return b.start == a.end+1 && runes[a.end] == ' '
}

// atSentenceStart reports whether the rune offset begins a sentence: it is
// the document start or the first word after terminal punctuation.
func atSentenceStart(runes []rune, offset int) bool {
	for i := offset - 1; i >= 0; i-- {
		r := runes[i]
		if r == ' ' || r == '"' || r == '\'' {
			continue
		}
		return r == '.' || r == '!' || r == '?'
	}
	return true
}

func anyMidSentence(occ []candidateOccurrence) bool {
	for _, o := range occ {
		if o.midSentence {
			return true
		}
	}
	return false
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
