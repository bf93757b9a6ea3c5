package engine

import (
	"strings"
	"unicode"

	"github.com/turtacn/StoryLink-Intelligence/pkg/types/story"
)

// ---------------------------------------------------------------------------
// Text utilities
//
// All offsets in this file are rune offsets into the preprocessed text, so
// multi-byte characters count as one position.
// ---------------------------------------------------------------------------

// wordToken is a single word with its rune offsets.
type wordToken struct {
	text  string
	start int
	end   int
}

// isWordChar reports whether r is part of a word.  Apostrophes and hyphens
// join words so possessives ("Aria's") and compound names ("Moon-whisper")
// tokenise as one token.
func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-'
}

// tokenise splits runes into word tokens with their offsets.
func tokenise(runes []rune) []wordToken {
	var tokens []wordToken
	start := -1
	for i, r := range runes {
		if isWordChar(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, wordToken{text: string(runes[start:i]), start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, wordToken{text: string(runes[start:]), start: start, end: len(runes)})
	}
	return tokens
}

// foldRunes lowercases runes one-for-one so offsets are preserved.
func foldRunes(runes []rune) []rune {
	folded := make([]rune, len(runes))
	for i, r := range runes {
		folded[i] = unicode.ToLower(r)
	}
	return folded
}

// extractContext returns the text surrounding span, clamped to the document,
// with window runes on each side.
func extractContext(runes []rune, span story.Span, window int) string {
	if window <= 0 {
		return ""
	}
	start := span.Start - window
	if start < 0 {
		start = 0
	}
	end := span.End + window
	if end > len(runes) {
		end = len(runes)
	}
	return strings.TrimSpace(string(runes[start:end]))
}

// levenshtein computes the edit distance between two rune slices using the
// two-row dynamic programming formulation.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// similarity returns the normalised edit similarity of two strings in [0, 1]:
// (maxLen - distance) / maxLen.  Identical strings score 1.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1
	}
	return float64(maxLen-levenshtein(ra, rb)) / float64(maxLen)
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
