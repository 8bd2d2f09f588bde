package catalog

import (
	"strconv"
	"strings"

	"oatty/internal/api"
)

// scoreCommand fuzzy-scores a command against a query and its tokens. It
// reports matched=false when no token matches anywhere in the searchable
// text, so Search can drop it entirely rather than returning a zero-score
// hit.
func scoreCommand(spec api.CommandSpec, query string, tokens []string) (int, bool) {
	id := strings.ToLower(spec.ID())
	haystacks := searchableText(spec)

	score := 0
	matched := false

	if id == query {
		score += 100
	} else if strings.HasPrefix(id, query) {
		score += 60
	} else if strings.Contains(id, query) {
		score += 30
	}
	if score > 0 {
		matched = true
	}

	for _, token := range tokens {
		best := 0
		for _, text := range haystacks {
			if text == token {
				best = max(best, 20)
				matched = true
			} else if strings.HasPrefix(text, token) {
				best = max(best, 12)
				matched = true
			} else if strings.Contains(text, token) {
				best = max(best, 6)
				matched = true
			}
		}
		score += best
	}

	return score, matched
}

func searchableText(spec api.CommandSpec) []string {
	out := []string{
		strings.ToLower(spec.Group),
		strings.ToLower(spec.Name),
		strings.ToLower(spec.Summary),
		strings.ToLower(spec.CatalogID),
	}
	for _, p := range spec.Positionals {
		out = append(out, strings.ToLower(p.Name), strings.ToLower(p.Help))
	}
	for _, f := range spec.Flags {
		out = append(out, strings.ToLower(f.LongName), strings.ToLower(f.Help))
	}
	return out
}

// insertTextFor returns the text a UI should insert when a suggestion is
// accepted: strings as-is, ints and float64s formatted, anything else "".
// The provider engine does not call it; its tiebreak compares
// SuggestionItem.InsertText directly.
func insertTextFor(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return ""
	}
}
