package engine

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ---------------------------------------------------------------------------
// Text preprocessing
// ---------------------------------------------------------------------------

var punctuationReplacer = strings.NewReplacer(
	"“", `"`, // left double curly quote
	"”", `"`, // right double curly quote
	"‘", "'", // left single curly quote
	"’", "'", // right single curly quote
	"—", "-", // em dash
	"–", "-", // en dash
)

// Preprocess normalises raw narrative text before matching: Unicode NFC,
// typographic quotes and dashes folded to their ASCII forms, whitespace runs
// collapsed to single spaces, and surrounding whitespace trimmed.
//
// Preprocess is idempotent: applying it to its own output returns the input
// unchanged.  All spans reported by the pipeline are offsets into the
// preprocessed text.
func Preprocess(text string) string {
	if text == "" {
		return ""
	}

	text = norm.NFC.String(text)
	text = punctuationReplacer.Replace(text)

	var b strings.Builder
	b.Grow(len(text))
	inSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
