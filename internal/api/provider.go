package api

import "time"

// SuggestionKind tags the origin/shape of a SuggestionItem for UI rendering.
type SuggestionKind string

const (
	SuggestCommand    SuggestionKind = "Command"
	SuggestFlag       SuggestionKind = "Flag"
	SuggestValue      SuggestionKind = "Value"
	SuggestPositional SuggestionKind = "Positional"
	SuggestMCPTool    SuggestionKind = "McpTool"
	SuggestHistory    SuggestionKind = "History"
)

// SuggestionItem is one ranked dynamic-value suggestion.
type SuggestionItem struct {
	Display    string                 `json:"display"`
	InsertText string                 `json:"insertText"`
	Kind       SuggestionKind         `json:"kind"`
	Score      float64                `json:"score"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// SearchResult is one ranked catalog search hit.
type SearchResult struct {
	CanonicalID   string        `json:"canonicalId"`
	Summary       string        `json:"summary"`
	ExecutionKind ExecutionKind `json:"executionKind"`
	HTTPMethod    HTTPMethod    `json:"httpMethod,omitempty"`
	Score         float64       `json:"score"`
}

// CachePolicy selects how the provider engine treats an entry that has
// passed its TTL, resolving the open question in spec section 9: the UI
// leans stale (serve-then-refresh), automation may prefer fail-closed
// (treat expired as a miss). The engine holds a default policy (set with
// WithPolicy); SuggestWithPolicy and ResolveWithPolicy override it per call.
type CachePolicy int

const (
	PolicyStaleOnError CachePolicy = iota
	PolicyFailClosed
)

// CacheEntry is one resolved-and-cached provider result set.
type CacheEntry struct {
	Key       string
	Values    []SuggestionItem
	FetchedAt time.Time
	TTL       time.Duration
}

// Stale reports whether the entry is past its TTL as of now.
func (e *CacheEntry) Stale(now time.Time) bool {
	return now.After(e.FetchedAt.Add(e.TTL))
}
