package catalog

import (
	"strings"

	"oatty/internal/api"
)

// inferProviders runs the two-pass provider-inference algorithm of spec
// section 4.1 over a freshly derived command set, attaching a ValueProvider
// to every positional and flag whose binds are fully resolvable. It never
// attaches a provider speculatively: an argument with any unresolved
// required bind is left without one.
func (d *Deriver) inferProviders(specs []api.CommandSpec) {
	index := make(map[api.Key]*api.CommandSpec, len(specs))
	for i := range specs {
		index[specs[i].Key()] = &specs[i]
	}

	for i := range specs {
		spec := &specs[i]
		segments, _ := splitPath(pathTemplateOf(spec))

		precedingConcrete := func(placeholderIdx int) []string {
			var out []string
			count := -1
			for _, s := range segments {
				if s.placeholder {
					count++
					if count == placeholderIdx {
						break
					}
					continue
				}
				out = append(out, s.name)
			}
			return out
		}

		for pIdx := range spec.Positionals {
			concrete := precedingConcrete(pIdx)
			if len(concrete) == 0 {
				continue
			}
			innerGroup := concrete[len(concrete)-1]
			var earlierGroup string
			if len(concrete) >= 2 {
				earlierGroup = concrete[len(concrete)-2]
			}

			earlierPositionals := namesBefore(spec.Positionals, pIdx)

			if earlierGroup != "" {
				if candidate, ok := index[api.Key{Group: earlierGroup, Name: innerGroup + ":list"}]; ok {
					if binds, ok := d.resolveBinds(candidate, earlierPositionals, spec.Flags); ok {
						spec.Positionals[pIdx].Provider = &api.ValueProvider{ProviderRef: candidate.ID(), Binds: binds}
						continue
					}
				}
			}
			if candidate, ok := index[api.Key{Group: innerGroup, Name: "list"}]; ok {
				if binds, ok := d.resolveBinds(candidate, earlierPositionals, spec.Flags); ok {
					spec.Positionals[pIdx].Provider = &api.ValueProvider{ProviderRef: candidate.ID(), Binds: binds}
				}
			}
		}

		allPositionalNames := namesBefore(spec.Positionals, len(spec.Positionals))
		for fIdx := range spec.Flags {
			flag := &spec.Flags[fIdx]
			group := d.groupFor(flag.LongName)
			if group == "" {
				continue
			}
			candidate, ok := index[api.Key{Group: group, Name: "list"}]
			if !ok {
				continue
			}
			otherFlags := flagsExcept(spec.Flags, fIdx)
			if binds, ok := d.resolveBinds(candidate, allPositionalNames, otherFlags); ok {
				flag.Provider = &api.ValueProvider{ProviderRef: candidate.ID(), Binds: binds}
			}
		}
	}
}

func pathTemplateOf(spec *api.CommandSpec) string {
	if spec.Execution.HTTP != nil {
		return spec.Execution.HTTP.PathTemplate
	}
	return ""
}

func namesBefore(positionals []api.PositionalArgument, upto int) []string {
	out := make([]string, 0, upto)
	for i := 0; i < upto && i < len(positionals); i++ {
		out = append(out, positionals[i].Name)
	}
	return out
}

func flagsExcept(flags []api.CommandFlag, except int) []api.CommandFlag {
	out := make([]api.CommandFlag, 0, len(flags))
	for i, f := range flags {
		if i != except {
			out = append(out, f)
		}
	}
	return out
}

// resolveBinds checks whether every required input of candidate (its
// positionals, plus required flags in the conservative safe set) can be
// satisfied from the consumer's earlier positionals or its own required
// flags, by exact name or synonym match. It returns the resolved Binds only
// when every required input resolves.
func (d *Deriver) resolveBinds(candidate *api.CommandSpec, consumerPositionals []string, consumerFlags []api.CommandFlag) ([]api.Bind, bool) {
	var required []string
	for _, p := range candidate.Positionals {
		required = append(required, p.Name)
	}
	for _, f := range candidate.Flags {
		if f.Required && safeRequiredInputs[f.LongName] {
			required = append(required, f.LongName)
		}
	}
	if len(required) == 0 {
		return nil, true
	}

	var binds []api.Bind
	for _, name := range required {
		from, ok := d.resolveOne(name, consumerPositionals, consumerFlags)
		if !ok {
			return nil, false
		}
		binds = append(binds, api.Bind{ProviderKey: name, From: from})
	}
	return binds, true
}

func (d *Deriver) resolveOne(name string, positionals []string, flags []api.CommandFlag) (string, bool) {
	for _, p := range positionals {
		if d.sameGroup(p, name) {
			return p, true
		}
	}
	for _, f := range flags {
		if f.Required && d.sameGroup(f.LongName, name) {
			return f.LongName, true
		}
	}
	return "", false
}

func (d *Deriver) sameGroup(a, b string) bool {
	if a == b {
		return true
	}
	ga, oka := d.synonyms[a]
	gb, okb := d.synonyms[b]
	return oka && okb && ga == gb
}

// groupFor maps a flag name to the plural group name it most likely
// refers to, via the synonym table and falling back to a conservative
// pluralizer.
func (d *Deriver) groupFor(flagName string) string {
	if group, ok := d.synonyms[flagName]; ok {
		return group
	}
	return pluralize(flagName)
}

func pluralize(name string) string {
	if name == "" {
		return ""
	}
	if strings.HasSuffix(name, "s") {
		return name
	}
	if strings.HasSuffix(name, "y") && len(name) > 1 {
		prev := name[len(name)-2]
		if prev != 'a' && prev != 'e' && prev != 'i' && prev != 'o' && prev != 'u' {
			return name[:len(name)-1] + "ies"
		}
	}
	for _, suffix := range []string{"ch", "sh", "x", "z"} {
		if strings.HasSuffix(name, suffix) {
			return name + "es"
		}
	}
	return name + "s"
}
