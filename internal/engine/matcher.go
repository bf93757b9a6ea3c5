package engine

import (
	"strings"
	"sync"

	"github.com/turtacn/StoryLink-Intelligence/pkg/types/story"
)

// ---------------------------------------------------------------------------
// Mention matching
// ---------------------------------------------------------------------------

// parallelMatchThreshold is the entity count above which matching fans out
// across goroutines.  Results stay deterministic because each entity writes
// to its own slot and scan order is assigned after the join.
const parallelMatchThreshold = 16

// matchEntities scans text for every name form of every enabled entity and
// returns the raw candidate mentions.  The output may contain overlapping and
// duplicate spans; deduplicate resolves those downstream.
func matchEntities(text string, entities []story.Entity, cfg Config) []Mention {
	runes := []rune(text)
	if len(runes) == 0 || len(entities) == 0 {
		return nil
	}

	haystack := runes
	if !cfg.CaseSensitive {
		haystack = foldRunes(runes)
	}
	tokens := tokenise(runes)

	eligible := make([]story.Entity, 0, len(entities))
	for _, e := range entities {
		if cfg.typeEnabled(e.Type) {
			eligible = append(eligible, e)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	perEntity := make([][]Mention, len(eligible))
	if len(eligible) > parallelMatchThreshold {
		var wg sync.WaitGroup
		for i := range eligible {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				perEntity[i] = matchOne(runes, haystack, tokens, &eligible[i], cfg)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range eligible {
			perEntity[i] = matchOne(runes, haystack, tokens, &eligible[i], cfg)
		}
	}

	// Concatenate in snapshot order and stamp the deterministic scan
	// order used as the final deduplication tie-breaker.
	var mentions []Mention
	order := 0
	for _, ms := range perEntity {
		for _, m := range ms {
			m.scanOrder = order
			order++
			mentions = append(mentions, m)
		}
	}
	return mentions
}

// matchOne finds all exact and fuzzy mentions of a single entity.  Forms are
// scanned in NameForms order so the canonical name precedes aliases in the
// scan sequence.
func matchOne(runes, haystack []rune, tokens []wordToken, e *story.Entity, cfg Config) []Mention {
	var mentions []Mention
	for _, form := range e.NameForms() {
		formRunes := []rune(form)
		if len(formRunes) < minMatchLength {
			continue
		}

		mentions = append(mentions, exactMatches(runes, haystack, formRunes, e, cfg)...)
		if cfg.FuzzyMatchThreshold > 0 {
			mentions = append(mentions, fuzzyMatches(runes, tokens, form, e, cfg)...)
		}
	}

	filtered := mentions[:0]
	for _, m := range mentions {
		if m.Confidence >= cfg.MinimumConfidence {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

// exactMatches finds word-boundary occurrences of form in the haystack.
func exactMatches(runes, haystack, form []rune, e *story.Entity, cfg Config) []Mention {
	needle := form
	if !cfg.CaseSensitive {
		needle = foldRunes(form)
	}

	var mentions []Mention
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if !runesEqual(haystack[i:i+len(needle)], needle) {
			continue
		}
		if !atWordBoundary(haystack, i, i+len(needle)) {
			continue
		}
		span := story.Span{Start: i, End: i + len(needle)}
		mentions = append(mentions, Mention{
			EntityID:   e.ID,
			EntityName: e.Name,
			EntityType: e.Type,
			Text:       string(runes[span.Start:span.End]),
			Span:       span,
			Confidence: exactMatchConfidence,
			Kind:       MatchExact,
			Context:    extractContext(runes, span, cfg.ContextWindowSize),
		})
	}
	return mentions
}

// fuzzyMatches slides a token window the width of form across the text and
// scores each candidate by normalised edit similarity.  Candidates at or
// above FuzzyMatchThreshold become fuzzy mentions with confidence
// similarity * fuzzyConfidenceScale.
func fuzzyMatches(runes []rune, tokens []wordToken, form string, e *story.Entity, cfg Config) []Mention {
	formTokens := strings.Fields(form)
	width := len(formTokens)
	if width == 0 || len(tokens) < width {
		return nil
	}

	formCmp := form
	if !cfg.CaseSensitive {
		formCmp = strings.ToLower(form)
	}
	formLen := len([]rune(formCmp))

	// A candidate whose length differs from the form by more than this
	// cannot reach the threshold; skip it without computing the distance.
	// The bound is derived from dist >= |len diff| and the threshold on
	// (maxLen - dist) / maxLen, loosened for candidates longer than form.
	maxLenDiff := int(float64(formLen) * (1 - cfg.FuzzyMatchThreshold) / cfg.FuzzyMatchThreshold)

	var mentions []Mention
	for i := 0; i+width <= len(tokens); i++ {
		span := story.Span{Start: tokens[i].start, End: tokens[i+width-1].end}
		if span.Len() < minMatchLength {
			continue
		}
		if diff := span.Len() - formLen; diff > maxLenDiff || -diff > maxLenDiff {
			continue
		}

		candidate := string(runes[span.Start:span.End])
		cmp := candidate
		if !cfg.CaseSensitive {
			cmp = strings.ToLower(candidate)
		}
		sim := similarity(cmp, formCmp)
		if sim < cfg.FuzzyMatchThreshold {
			continue
		}
		mentions = append(mentions, Mention{
			EntityID:   e.ID,
			EntityName: e.Name,
			EntityType: e.Type,
			Text:       candidate,
			Span:       span,
			Confidence: sim * fuzzyConfidenceScale,
			Kind:       MatchFuzzy,
			Context:    extractContext(runes, span, cfg.ContextWindowSize),
		})
	}
	return mentions
}

// atWordBoundary reports whether [start, end) is bounded by non-word runes
// or the document edges.  Apostrophes join tokens (see isWordChar), so a
// trailing possessive is allowed explicitly: "Aria's" and "Moonwhispers'"
// still end a match at the base name.
func atWordBoundary(runes []rune, start, end int) bool {
	if start > 0 && isWordChar(runes[start-1]) {
		return false
	}
	if end < len(runes) && isWordChar(runes[end]) {
		return trailingPossessive(runes, end)
	}
	return true
}

// trailingPossessive reports whether the text at offset is "'s" or a bare
// closing apostrophe, followed by a non-word rune or the document end.
func trailingPossessive(runes []rune, offset int) bool {
	if runes[offset] != '\'' {
		return false
	}
	next := offset + 1
	if next < len(runes) && (runes[next] == 's' || runes[next] == 'S') {
		next++
	}
	return next >= len(runes) || !isWordChar(runes[next])
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
