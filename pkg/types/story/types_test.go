package story

import "testing"

func TestParseEntityType(t *testing.T) {
	cases := []struct {
		in   string
		want EntityType
		ok   bool
	}{
		{"character", EntityCharacter, true},
		{"  Location ", EntityLocation, true},
		{"ORGANIZATION", EntityOrganization, true},
		{"subplot", EntitySubplot, true},
		{"dragon", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseEntityType(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseEntityType(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNameForms_OrderAndSkipEmpty(t *testing.T) {
	e := &Entity{Name: "Aria Moonwhisper", Aliases: []string{"Aria", "", "the Whisperer"}}
	forms := e.NameForms()
	want := []string{"Aria Moonwhisper", "Aria", "the Whisperer"}
	if len(forms) != len(want) {
		t.Fatalf("expected %d forms, got %d: %v", len(want), len(forms), forms)
	}
	for i := range want {
		if forms[i] != want[i] {
			t.Errorf("forms[%d] = %q, want %q", i, forms[i], want[i])
		}
	}
}

func TestSpan_Overlaps(t *testing.T) {
	a := Span{Start: 0, End: 4}
	cases := []struct {
		b    Span
		want bool
	}{
		{Span{Start: 4, End: 8}, false}, // adjacent half-open spans do not overlap
		{Span{Start: 3, End: 5}, true},
		{Span{Start: 0, End: 4}, true},
		{Span{Start: 1, End: 2}, true},
		{Span{Start: 10, End: 12}, false},
	}
	for _, tc := range cases {
		if got := a.Overlaps(tc.b); got != tc.want {
			t.Errorf("%v.Overlaps(%v) = %v, want %v", a, tc.b, got, tc.want)
		}
		if got := tc.b.Overlaps(a); got != tc.want {
			t.Errorf("overlap is not symmetric for %v and %v", a, tc.b)
		}
	}
}

func TestSpan_Contains(t *testing.T) {
	outer := Span{Start: 2, End: 10}
	if !outer.Contains(Span{Start: 2, End: 10}) {
		t.Error("span should contain itself")
	}
	if !outer.Contains(Span{Start: 4, End: 6}) {
		t.Error("expected containment of inner span")
	}
	if outer.Contains(Span{Start: 0, End: 6}) {
		t.Error("did not expect containment of partially overlapping span")
	}
}
