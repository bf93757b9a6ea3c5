package engine

import (
	"sort"

	"github.com/turtacn/StoryLink-Intelligence/pkg/types/story"
)

// ---------------------------------------------------------------------------
// Mention deduplication
// ---------------------------------------------------------------------------

// kindRank orders exact matches ahead of fuzzy ones during tie-breaking.
func kindRank(k MatchKind) int {
	if k == MatchExact {
		return 0
	}
	return 1
}

// deduplicate resolves the raw candidate set into a conflict-free mention
// list.  Candidates are visited in a deterministic priority order:
// confidence descending, then span start ascending, then exact before fuzzy,
// then matcher scan order.  A candidate is accepted unless its exact span was
// already taken or it overlaps any accepted span; the first acceptance always
// wins, so two mentions in the output never overlap.  The result is returned
// in span order.
//
// Runs in O(n log n) over the candidate count.
func deduplicate(mentions []Mention) []Mention {
	if len(mentions) < 2 {
		return mentions
	}

	ordered := make([]Mention, len(mentions))
	copy(ordered, mentions)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		if ra, rb := kindRank(a.Kind), kindRank(b.Kind); ra != rb {
			return ra < rb
		}
		return a.scanOrder < b.scanOrder
	})

	taken := make(map[story.Span]bool, len(ordered))
	var accepted spanIndex
	result := make([]Mention, 0, len(ordered))
	for _, m := range ordered {
		if taken[m.Span] {
			continue
		}
		if accepted.overlaps(m.Span) {
			continue
		}
		taken[m.Span] = true
		accepted.insert(m.Span)
		result = append(result, m)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Span.Start != result[j].Span.Start {
			return result[i].Span.Start < result[j].Span.Start
		}
		return result[i].Span.End < result[j].Span.End
	})
	return result
}

// spanIndex holds disjoint accepted spans sorted by start, supporting
// logarithmic overlap queries.
type spanIndex []story.Span

func (x spanIndex) overlaps(s story.Span) bool {
	i := sort.Search(len(x), func(i int) bool { return x[i].Start >= s.Start })
	if i < len(x) && x[i].Start < s.End {
		return true
	}
	if i > 0 && x[i-1].End > s.Start {
		return true
	}
	return false
}

func (x *spanIndex) insert(s story.Span) {
	i := sort.Search(len(*x), func(i int) bool { return (*x)[i].Start >= s.Start })
	*x = append(*x, story.Span{})
	copy((*x)[i+1:], (*x)[i:])
	(*x)[i] = s
}
