package provider

import (
	"sort"
	"strings"

	"oatty/internal/api"
)

// rank fuzzy-scores cached items against partial and returns them sorted
// highest-score-first, breaking ties lexicographically on InsertText per
// spec section 4.3's determinism requirement. An empty partial matches
// everything with a uniform score, so the result is ordered by InsertText.
func rank(items []api.SuggestionItem, partial string) []api.SuggestionItem {
	partial = strings.ToLower(strings.TrimSpace(partial))
	out := make([]api.SuggestionItem, len(items))
	copy(out, items)

	for i := range out {
		out[i].Score = matchScore(out[i], partial)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].InsertText < out[j].InsertText
	})

	if partial == "" {
		return out
	}

	filtered := out[:0:0]
	for _, item := range out {
		if item.Score > 0 {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func matchScore(item api.SuggestionItem, partial string) float64 {
	if partial == "" {
		return 1
	}
	display := strings.ToLower(item.Display)
	insert := strings.ToLower(item.InsertText)

	switch {
	case display == partial || insert == partial:
		return 100
	case strings.HasPrefix(display, partial) || strings.HasPrefix(insert, partial):
		return 60
	case strings.Contains(display, partial) || strings.Contains(insert, partial):
		return 30
	default:
		return 0
	}
}
