package catalog

// DefaultTagDictionary maps response field names to the output_contract tag
// they carry, letting the provider engine recognize scoping identifiers
// (app_id, addon_id, ...) without the core mandating a wire shape. The table
// is a package-level default; a caller targeting a different API surface can
// widen it via NewDeriver's WithTagDictionary option rather than forking the
// deriver.
var DefaultTagDictionary = map[string]string{
	"app_id":      "app_id",
	"app":         "app_id",
	"addon_id":    "addon_id",
	"addon":       "addon_id",
	"pipeline_id": "pipeline_id",
	"pipeline":    "pipeline_id",
	"team_id":     "team_id",
	"team":        "team_id",
	"space_id":    "space_id",
	"space":       "space_id",
	"region":      "region",
	"stack_id":    "stack_id",
	"stack":       "stack_id",
}

// DefaultSynonyms maps a flag or path-segment name to the plural group name
// it most likely refers to, used by provider inference's flag-binding pass.
// "app" and "app_id" both resolve to the "apps" group, for example.
var DefaultSynonyms = map[string]string{
	"app":      "apps",
	"app_id":   "apps",
	"addon":    "addons",
	"addon_id": "addons",
	"pipeline": "pipelines",
	"team":     "teams",
	"space":    "spaces",
	"stack":    "stacks",
	"region":   "regions",
}

// safeRequiredInputs is the conservative set of flag names provider
// inference will treat as resolvable from the consumer's own required
// flags, per spec section 4.1's binding rule.
var safeRequiredInputs = map[string]bool{
	"app": true, "app_id": true,
	"addon": true, "addon_id": true,
	"pipeline": true, "team": true, "space": true, "region": true, "stack": true,
}
