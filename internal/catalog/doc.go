/*
Package catalog derives a command catalog from OpenAPI documents and serves
it to the rest of Oatty as a single-writer, many-reader registry.

# Overview

A Deriver turns one parsed OpenAPI document into a list of CommandSpecs: one
per operation, keyed by a canonical (group, name) pair lifted from the
operation's path and HTTP method. For example:

	GET /apps/{app}/addons  ->  group "apps", name "addons:list"
	GET /apps/{app}         ->  group "apps", name "info"
	POST /apps              ->  group "apps", name "create"

Path placeholders become positional arguments in path order; query/header
parameters and request-body properties become flags. A response schema is
walked to a shallow depth to build the command's OutputContract, tagging
fields (app_id, addon_id, ...) against a configurable dictionary so the
provider engine can later recognize scoping identifiers without a mandated
wire shape.

# Provider inference

After deriving every command in a document, the Deriver runs a second pass
that attaches a ValueProvider to positionals and flags whose required inputs
are fully resolvable from the consumer's own earlier positionals or
required flags. A positional's provider prefers a scoped list command in an
earlier group (apps addons:list) before falling back to a top-level one
(addons list); a flag's provider is found by mapping its name to a plural
group through a synonym table. No provider is ever attached speculatively:
an unresolved required bind means no provider at all for that argument.

# Registry

Registry holds the merged catalog: commands derived from loaded documents
plus synthetic commands injected by the plugin engine for each MCP tool. It
is implemented as an immutable snapshot behind an atomic.Pointer — every
mutation (InsertCatalog, InsertSynthetic, RemoveSynthetic) clones the
current snapshot, applies the change, and swaps the pointer; Lookup and
Search load the pointer once and never take a lock, so a reader never
observes a partial update regardless of what a concurrent writer is doing.

InsertCatalog replaces a catalog's contribution atomically and rejects a
colliding key owned by a *different* catalog; within a catalog the newest
document always wins. InsertSynthetic performs the same atomic swap scoped
to a plugin ID, matching the plugin engine's "replace the whole tool list
on every reconnect" behavior.

Search performs fuzzy token scoring over group, name, summary, and
positional/flag names and help text, with bonuses for canonical-ID prefix
and substring matches; ties break on the canonical ID so results are stable
across otherwise-equal scores.
*/
package catalog
