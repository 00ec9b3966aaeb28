package storage

import (
	"cmp"
	"slices"
)

// RankSources sorts by descending similarity, then ascending ID, and keeps
// at most topK entries.
func RankSources(in []ScoredSource, topK int) []ScoredSource {
	slices.SortStableFunc(in, func(a, b ScoredSource) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return truncate(in, topK)
}

// RankFacts sorts by descending similarity, then ascending ID, and keeps at
// most topK entries.
func RankFacts(in []ScoredFact, topK int) []ScoredFact {
	slices.SortStableFunc(in, func(a, b ScoredFact) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return truncate(in, topK)
}

func truncate[T any](in []T, topK int) []T {
	if topK < 0 {
		topK = 0
	}
	if len(in) > topK {
		return in[:topK]
	}
	return in
}
