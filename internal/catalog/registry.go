package catalog

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"oatty/internal/api"
)

// catalogSnapshot is the immutable value a Registry's readers observe. Every
// mutation builds a new snapshot and swaps it in atomically; a reader that
// has loaded a snapshot never sees a later mutation interleaved into it.
type catalogSnapshot struct {
	// byKey indexes every command, catalog-derived and synthetic alike.
	byKey map[api.Key]api.CommandSpec
	// catalogOwners maps a catalog ID to the keys it currently owns, so
	// insert_catalog can replace a catalog's commands atomically.
	catalogOwners map[string]map[api.Key]bool
	// pluginOwners maps a plugin ID to the synthetic keys it currently owns.
	pluginOwners map[string]map[api.Key]bool
}

func emptySnapshot() *catalogSnapshot {
	return &catalogSnapshot{
		byKey:         make(map[api.Key]api.CommandSpec),
		catalogOwners: make(map[string]map[api.Key]bool),
		pluginOwners:  make(map[string]map[api.Key]bool),
	}
}

func (s *catalogSnapshot) clone() *catalogSnapshot {
	out := emptySnapshot()
	for k, v := range s.byKey {
		out.byKey[k] = v
	}
	for cat, keys := range s.catalogOwners {
		cp := make(map[api.Key]bool, len(keys))
		for k := range keys {
			cp[k] = true
		}
		out.catalogOwners[cat] = cp
	}
	for plugin, keys := range s.pluginOwners {
		cp := make(map[api.Key]bool, len(keys))
		for k := range keys {
			cp[k] = true
		}
		out.pluginOwners[plugin] = cp
	}
	return out
}

// Registry is the command catalog: a single-writer, many-reader structure
// per spec section 4.2. Mutations are serialized by writerMu; readers load
// the current snapshot through an atomic.Pointer and never take a lock on
// the read path.
type Registry struct {
	writerMu sync.Mutex
	current  atomic.Pointer[catalogSnapshot]
}

// Registry satisfies api.SyntheticCatalog: the plugin engine depends only
// on this narrower interface, never on the registry package directly.
var _ api.SyntheticCatalog = (*Registry)(nil)

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.current.Store(emptySnapshot())
	return r
}

// CollisionError reports that insert_catalog would overwrite a command
// owned by a different, already-loaded catalog.
type CollisionError struct {
	Key           api.Key
	OwningCatalog string
}

func (e *CollisionError) Error() string {
	return "command " + e.Key.Group + " " + e.Key.Name + " already provided by catalog " + e.OwningCatalog
}

// InsertCatalog atomically replaces the commands associated with catalogID.
// Within the catalog, the new specs win over whatever that catalog
// previously registered (last-writer-wins). A spec whose key is already
// owned by a *different* catalog is rejected as a whole-operation error;
// insertion is all-or-nothing.
func (r *Registry) InsertCatalog(catalogID string, specs []api.CommandSpec) error {
	r.writerMu.Lock()
	defer r.writerMu.Unlock()

	snap := r.current.Load().clone()

	for _, spec := range specs {
		key := spec.Key()
		if owner := ownerOf(snap.catalogOwners, key); owner != "" && owner != catalogID {
			return &CollisionError{Key: key, OwningCatalog: owner}
		}
	}

	// Drop this catalog's previous contribution before inserting the new
	// one so a command removed from the source document disappears too.
	if prev, ok := snap.catalogOwners[catalogID]; ok {
		for key := range prev {
			delete(snap.byKey, key)
		}
	}
	owned := make(map[api.Key]bool, len(specs))
	for _, spec := range specs {
		key := spec.Key()
		spec.CatalogID = catalogID
		snap.byKey[key] = spec
		owned[key] = true
	}
	snap.catalogOwners[catalogID] = owned

	r.current.Store(snap)
	return nil
}

// RemoveCatalog removes every command owned by catalogID, returning the
// registry to its prior state for that catalog (spec section 10's
// insert_catalog/remove_catalog round-trip invariant).
func (r *Registry) RemoveCatalog(catalogID string) {
	r.writerMu.Lock()
	defer r.writerMu.Unlock()

	snap := r.current.Load().clone()
	if owned, ok := snap.catalogOwners[catalogID]; ok {
		for key := range owned {
			delete(snap.byKey, key)
		}
		delete(snap.catalogOwners, catalogID)
	}
	r.current.Store(snap)
}

// InsertSynthetic adds or replaces the commands injected by a plugin.
// Replacement is atomic per plugin: a tool list change is applied as a
// single swap, never a visible partial update.
func (r *Registry) InsertSynthetic(pluginID string, specs []api.CommandSpec) {
	r.writerMu.Lock()
	defer r.writerMu.Unlock()

	snap := r.current.Load().clone()

	if prev, ok := snap.pluginOwners[pluginID]; ok {
		for key := range prev {
			delete(snap.byKey, key)
		}
	}
	owned := make(map[api.Key]bool, len(specs))
	for _, spec := range specs {
		spec.PluginID = pluginID
		key := spec.Key()
		snap.byKey[key] = spec
		owned[key] = true
	}
	snap.pluginOwners[pluginID] = owned

	r.current.Store(snap)
}

// RemoveSynthetic removes every command injected by a plugin, used when the
// plugin stops or disconnects.
func (r *Registry) RemoveSynthetic(pluginID string) {
	r.writerMu.Lock()
	defer r.writerMu.Unlock()

	snap := r.current.Load().clone()
	if owned, ok := snap.pluginOwners[pluginID]; ok {
		for key := range owned {
			delete(snap.byKey, key)
		}
		delete(snap.pluginOwners, pluginID)
	}
	r.current.Store(snap)
}

func ownerOf(owners map[string]map[api.Key]bool, key api.Key) string {
	for catalogID, keys := range owners {
		if keys[key] {
			return catalogID
		}
	}
	return ""
}

// Lookup returns the command registered under (group, name), if any.
func (r *Registry) Lookup(group, name string) (api.CommandSpec, bool) {
	snap := r.current.Load()
	spec, ok := snap.byKey[api.Key{Group: group, Name: name}]
	return spec, ok
}

// All returns every registered command, in no particular order.
func (r *Registry) All() []api.CommandSpec {
	snap := r.current.Load()
	out := make([]api.CommandSpec, 0, len(snap.byKey))
	for _, spec := range snap.byKey {
		out = append(out, spec)
	}
	return out
}

// SearchResult is one scored match of Search.
type SearchResult struct {
	Command api.CommandSpec
	Score   int
}

// Search performs fuzzy token-level scoring over (group, name, summary,
// positional/flag names and help, catalog metadata). An empty query yields
// no results. Ordering is stable for equal scores: ties break on the
// canonical ID, ascending.
func (r *Registry) Search(query string) []SearchResult {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" {
		return nil
	}
	tokens := strings.Fields(query)

	snap := r.current.Load()
	results := make([]SearchResult, 0, len(snap.byKey))
	for _, spec := range snap.byKey {
		score, matched := scoreCommand(spec, query, tokens)
		if matched {
			results = append(results, SearchResult{Command: spec, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Command.ID() < results[j].Command.ID()
	})
	return results
}
