package engine

import (
	"testing"

	"github.com/turtacn/StoryLink-Intelligence/pkg/types/story"
)

func TestTokenise(t *testing.T) {
	runes := []rune("Aria's sword struck the Moon-whisper gate")
	tokens := tokenise(runes)

	want := []wordToken{
		{"Aria's", 0, 6},
		{"sword", 7, 12},
		{"struck", 13, 19},
		{"the", 20, 23},
		{"Moon-whisper", 24, 36},
		{"gate", 37, 41},
	}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(tokens), len(want), tokens)
	}
	for i, w := range want {
		if tokens[i] != w {
			t.Errorf("token %d = %+v, want %+v", i, tokens[i], w)
		}
	}
}

func TestTokenise_TrailingWord(t *testing.T) {
	tokens := tokenise([]rune("hello world"))
	if len(tokens) != 2 || tokens[1].end != 11 {
		t.Fatalf("trailing token not captured: %+v", tokens)
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"john", "john", 0},
		{"john", "jon", 1},
		{"kitten", "sitting", 3},
		{"aria", "arya", 1},
	}
	for _, tt := range tests {
		if got := levenshtein([]rune(tt.a), []rune(tt.b)); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	if got := similarity("john", "john"); got != 1 {
		t.Errorf("identical strings: got %g, want 1", got)
	}
	if got := similarity("john", "jon"); got != 0.75 {
		t.Errorf("similarity(john, jon) = %g, want 0.75", got)
	}
	if got := similarity("", ""); got != 1 {
		t.Errorf("empty strings: got %g, want 1", got)
	}
}

func TestSimilarity_MonotonicInDistance(t *testing.T) {
	// More edits away from the same target means a lower score.
	exact := similarity("moonwhisper", "moonwhisper")
	oneOff := similarity("moonwhisper", "moonwisper")
	twoOff := similarity("moonwhisper", "moonwispr")
	if !(exact > oneOff && oneOff > twoOff) {
		t.Errorf("similarity not monotonic: %g, %g, %g", exact, oneOff, twoOff)
	}
}

func TestExtractContext(t *testing.T) {
	runes := []rune("The silver-haired elf Aria walked through the gate at dawn")
	span := story.Span{Start: 22, End: 26} // "Aria"

	got := extractContext(runes, span, 10)
	want := "aired elf Aria walked th"
	if got != want {
		t.Errorf("extractContext = %q, want %q", got, want)
	}

	if got := extractContext(runes, story.Span{Start: 0, End: 3}, 100); got != string(runes) {
		t.Errorf("clamped context = %q, want full text", got)
	}
	if got := extractContext(runes, span, 0); got != "" {
		t.Errorf("zero window should return empty, got %q", got)
	}
}
