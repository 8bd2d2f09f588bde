package provider

import (
	"context"
	"time"

	"oatty/internal/api"
	"oatty/pkg/logging"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is the lifetime a freshly-fetched cache entry is considered
// fresh before it becomes eligible for stale-serve-and-refresh (spec
// section 3's ProviderCacheEntry, section 4.3 step 4).
const DefaultTTL = 60 * time.Second

// Engine is the provider engine of spec section 4.3: it resolves binds,
// serves cached suggestions, and coalesces concurrent fetches for the same
// cache key behind a single in-flight request, exactly the "per-cache-key
// promise map" design note of spec section 9.
type Engine struct {
	registry CommandLookup
	http     api.HTTPExecutor
	plugins  PluginInvoker
	clock    api.Clock

	ttl    time.Duration
	policy api.CachePolicy

	cache  *cacheStore
	flight singleflight.Group
}

// New constructs a provider engine. http and plugins may be nil if the
// deployment never exercises that dispatch path (e.g. a catalog with only
// MCP-backed providers never needs an HTTPExecutor).
func New(registry CommandLookup, httpExec api.HTTPExecutor, plugins PluginInvoker, clock api.Clock) *Engine {
	if clock == nil {
		clock = api.SystemClock{}
	}
	return &Engine{
		registry: registry,
		http:     httpExec,
		plugins:  plugins,
		clock:    clock,
		ttl:      DefaultTTL,
		policy:   api.PolicyStaleOnError,
		cache:    newCacheStore(),
	}
}

// WithTTL overrides the default cache TTL new entries are stored with.
func (e *Engine) WithTTL(ttl time.Duration) *Engine {
	e.ttl = ttl
	return e
}

// WithPolicy sets the engine's default stale-handling policy. Per caller
// overrides are available via SuggestWithPolicy/ResolveWithPolicy.
func (e *Engine) WithPolicy(p api.CachePolicy) *Engine {
	e.policy = p
	return e
}

// LastError returns the most recent fetch failure recorded for a provider
// reference's cache key, for diagnostic display (spec section 7: "Callers
// may query the last error for diagnostic display").
func (e *Engine) LastError(providerRef string, bound map[string]string) error {
	return e.cache.lastError(buildCacheKey(providerRef, bound))
}

// resolveBinds reads each Bind's "from" input out of resolvedInputs,
// stringifying it for use as both a cache-key component and an HTTP/MCP
// argument value. It returns ok=false the moment any bind is unresolved,
// per spec section 4.3 step 2: "If any required bind is unresolved, return
// ([], false) so the UI remains predictable."
func resolveBinds(binds []api.Bind, resolvedInputs map[string]interface{}) (map[string]string, bool) {
	out := make(map[string]string, len(binds))
	for _, bind := range binds {
		v, ok := resolvedInputs[bind.From]
		if !ok || v == nil {
			return nil, false
		}
		out[bind.ProviderKey] = stringify(v)
	}
	return out, true
}

// Suggest is the non-blocking contract of spec section 4.3:
// suggest(command_key, field, partial_prefix, resolved_inputs) ->
// (ready_items, loading). On a cache miss it schedules a background fetch
// and returns immediately with loading=true; the caller observes the
// populated cache on its next call (typically prompted by re-keying or a
// subscription notification from the UI layer).
func (e *Engine) Suggest(ctx context.Context, cmd api.CommandSpec, field string, partial string, resolvedInputs map[string]interface{}) ([]api.SuggestionItem, bool) {
	return e.suggestWithPolicy(ctx, cmd, field, partial, resolvedInputs, e.policy)
}

// SuggestWithPolicy is Suggest with an explicit per-caller stale policy,
// resolving spec section 9's "record the chosen policy per caller" open
// question: the UI calls Suggest (stale-on-error), automation calls this
// with PolicyFailClosed.
func (e *Engine) SuggestWithPolicy(ctx context.Context, cmd api.CommandSpec, field string, partial string, resolvedInputs map[string]interface{}, policy api.CachePolicy) ([]api.SuggestionItem, bool) {
	return e.suggestWithPolicy(ctx, cmd, field, partial, resolvedInputs, policy)
}

func (e *Engine) suggestWithPolicy(ctx context.Context, cmd api.CommandSpec, field string, partial string, resolvedInputs map[string]interface{}, policy api.CachePolicy) ([]api.SuggestionItem, bool) {
	vp := providerFor(cmd, field)
	if vp == nil {
		return nil, false
	}

	bound, ok := resolveBinds(vp.Binds, resolvedInputs)
	if !ok {
		return nil, false
	}

	key := buildCacheKey(vp.ProviderRef, bound)
	now := e.clock.Now()

	entry, hit := e.cache.get(key)
	switch {
	case hit && !entry.Stale(now):
		return rank(entry.Values, partial), false
	case hit && policy == api.PolicyStaleOnError:
		e.scheduleFetch(key, vp.ProviderRef, bound)
		return rank(entry.Values, partial), false
	default:
		// Miss, or a stale entry under fail-closed policy: treat as a
		// miss and kick off a fetch.
		e.scheduleFetch(key, vp.ProviderRef, bound)
		return nil, true
	}
}

// scheduleFetch starts (or joins, via singleflight) a background fetch for
// key without blocking the caller. At most one fetch is ever in flight per
// key at a time (spec section 8's quantified single-flight invariant).
func (e *Engine) scheduleFetch(key, providerRef string, bound map[string]string) {
	e.flight.DoChan(key, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return e.doFetch(ctx, key, providerRef, bound)
	})
}

// Resolve is the blocking counterpart Suggest does not offer: it waits for
// a fresh value (fetching if necessary) and returns the ranked items or the
// fetch error. Non-interactive callers that need an actual value rather
// than a loading flag — workflow input collection (spec section 4.5) and
// CLI argument resolution — use this instead of Suggest.
func (e *Engine) Resolve(ctx context.Context, cmd api.CommandSpec, field string, partial string, resolvedInputs map[string]interface{}) ([]api.SuggestionItem, error) {
	return e.ResolveWithPolicy(ctx, cmd, field, partial, resolvedInputs, e.policy)
}

// ResolveWithPolicy is Resolve with an explicit stale policy.
func (e *Engine) ResolveWithPolicy(ctx context.Context, cmd api.CommandSpec, field string, partial string, resolvedInputs map[string]interface{}, policy api.CachePolicy) ([]api.SuggestionItem, error) {
	vp := providerFor(cmd, field)
	if vp == nil {
		return nil, &api.NotFoundError{ResourceType: "provider", ResourceName: cmd.ID() + "." + field}
	}
	bound, ok := resolveBinds(vp.Binds, resolvedInputs)
	if !ok {
		return nil, &api.ValidationError{Subject: "provider binds", Reason: "unresolved required bind", Path: cmd.ID() + "." + field}
	}

	key := buildCacheKey(vp.ProviderRef, bound)
	now := e.clock.Now()

	if entry, hit := e.cache.get(key); hit {
		if !entry.Stale(now) {
			return rank(entry.Values, partial), nil
		}
		if policy == api.PolicyStaleOnError {
			// Serve stale immediately but still refresh for next time.
			go e.scheduleFetch(key, vp.ProviderRef, bound)
			return rank(entry.Values, partial), nil
		}
	}

	result, err, _ := e.flight.Do(key, func() (interface{}, error) {
		return e.doFetch(ctx, key, vp.ProviderRef, bound)
	})
	if err != nil {
		if entry, hit := e.cache.get(key); hit && policy == api.PolicyStaleOnError {
			logging.Warn("ProviderEngine", "fetch for %s failed (%v); serving stale entry", vp.ProviderRef, err)
			return rank(entry.Values, partial), nil
		}
		return nil, err
	}
	return rank(result.([]api.SuggestionItem), partial), nil
}

func (e *Engine) doFetch(ctx context.Context, key, providerRef string, bound map[string]string) ([]api.SuggestionItem, error) {
	group, name, ok := splitRef(providerRef)
	if !ok {
		err := &api.ValidationError{Subject: "provider_ref", Reason: "not a canonical two-token id", Path: providerRef}
		e.cache.recordError(key, err)
		return nil, err
	}
	spec, ok := e.registry.Lookup(group, name)
	if !ok {
		err := api.NewCommandNotFoundError(group, name)
		e.cache.recordError(key, err)
		return nil, err
	}

	items, err := e.fetch(ctx, spec, bound)
	if err != nil {
		e.cache.recordError(key, err)
		logging.Debug("ProviderEngine", "fetch for %s failed: %v", providerRef, err)
		return nil, err
	}

	e.cache.put(key, &api.CacheEntry{Key: key, Values: items, FetchedAt: e.clock.Now(), TTL: e.ttl})
	return items, nil
}

// ResolveRef is Resolve generalized to a bare provider reference and
// already-bound argument map, bypassing the CommandSpec/field indirection.
// The workflow engine's input collection (spec section 4.5) uses this: a
// workflow InputDef's provider is a ValueProvider which, once its
// provider_args are template-rendered into bound, resolves exactly like a
// command argument's provider.
func (e *Engine) ResolveRef(ctx context.Context, providerRef string, bound map[string]string, partial string) ([]api.SuggestionItem, error) {
	key := buildCacheKey(providerRef, bound)
	now := e.clock.Now()

	if entry, hit := e.cache.get(key); hit {
		if !entry.Stale(now) {
			return rank(entry.Values, partial), nil
		}
		if e.policy == api.PolicyStaleOnError {
			go e.scheduleFetch(key, providerRef, bound)
			return rank(entry.Values, partial), nil
		}
	}

	result, err, _ := e.flight.Do(key, func() (interface{}, error) {
		return e.doFetch(ctx, key, providerRef, bound)
	})
	if err != nil {
		if entry, hit := e.cache.get(key); hit && e.policy == api.PolicyStaleOnError {
			logging.Warn("ProviderEngine", "fetch for %s failed (%v); serving stale entry", providerRef, err)
			return rank(entry.Values, partial), nil
		}
		return nil, err
	}
	return rank(result.([]api.SuggestionItem), partial), nil
}

// SuggestRef is the non-blocking counterpart of ResolveRef, mirroring
// Suggest's cache-hit/miss/stale contract for a bare provider reference.
func (e *Engine) SuggestRef(ctx context.Context, providerRef string, bound map[string]string, partial string) ([]api.SuggestionItem, bool) {
	key := buildCacheKey(providerRef, bound)
	now := e.clock.Now()

	entry, hit := e.cache.get(key)
	switch {
	case hit && !entry.Stale(now):
		return rank(entry.Values, partial), false
	case hit && e.policy == api.PolicyStaleOnError:
		e.scheduleFetch(key, providerRef, bound)
		return rank(entry.Values, partial), false
	default:
		e.scheduleFetch(key, providerRef, bound)
		return nil, true
	}
}

// providerFor locates the ValueProvider attached to a positional or flag
// named field on cmd, or nil if none is attached.
func providerFor(cmd api.CommandSpec, field string) *api.ValueProvider {
	for _, p := range cmd.Positionals {
		if p.Name == field {
			return p.Provider
		}
	}
	for _, f := range cmd.Flags {
		if f.LongName == field {
			return f.Provider
		}
	}
	return nil
}
