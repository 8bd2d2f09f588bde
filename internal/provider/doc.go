// Package provider implements the value provider engine: resolving,
// caching, and deduplicating asynchronous suggestion lookups for command
// arguments, honoring the binds a ValueProvider declares between a
// consumer command's own inputs and its backing provider command.
//
// Fetches are coalesced per cache key with golang.org/x/sync/singleflight.
// Suggestion values are pulled out of arbitrary JSON response bodies with
// github.com/tidwall/gjson rather than a full struct per provider, since
// the wire shape is only ever known through a command's declarative
// OutputContract.
package provider
