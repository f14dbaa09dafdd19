package action

import "time"

// Dependency is an edge from one action to another. Explicit dependencies
// come from the user-declared `dependencies` field; inferred ones are
// induced by template references discovered while building the action
// graph (internal/graph). NeedsExecutedOutputs forces the dependency to be
// fully executed (not merely resolved) before this action can resolve.
type Dependency struct {
	Kind                 Kind
	Name                 string
	Explicit             bool
	NeedsExecutedOutputs bool
	NeedsStaticOutputs   bool
}

// Key returns the dependency's target action key.
func (d Dependency) Key() Key { return NewKey(d.Kind, d.Name) }

// strength ranks a dependency edge so that deduplicating two edges between
// the same (from,to) pair keeps the stronger requirement:
// needsExecutedOutputs > needsStaticOutputs > explicit-only.
func (d Dependency) strength() int {
	switch {
	case d.NeedsExecutedOutputs:
		return 2
	case d.NeedsStaticOutputs:
		return 1
	default:
		return 0
	}
}

// Merge combines two dependency edges for the same target, keeping the
// stronger requirement flags and OR-ing Explicit (a dependency declared
// both explicitly and via template reference is still explicit).
func (d Dependency) Merge(other Dependency) Dependency {
	stronger := d
	if other.strength() > d.strength() {
		stronger = other
	}
	stronger.Explicit = d.Explicit || other.Explicit
	return stronger
}

// Internal carries load-time metadata that never participates in template
// resolution or hashing.
type Internal struct {
	BasePath       string
	ConfigFilePath string
	GroupName      string
}

// Action is an immutable, validated declaration of a unit of work. Actions
// are created at config-load time (internal/config, internal/registry) and
// never mutated afterward; resolving and executing an action produces new
// ResolvedAction / ExecutedAction values layered on top of it.
type Action struct {
	Kind Kind
	Name string
	// Type is the plugin-specific action type (e.g. "docker-build"), opaque
	// to the core beyond schema lookups performed through the provider
	// router.
	Type string
	// Extends lists base action types this action's type specializes. The
	// resolve pipeline validates the resolved spec against each base type's
	// router in addition to Type's own, in declaration order.
	Extends []string

	Dependencies []Dependency

	BasePath      string
	Timeout       time.Duration
	Include       []string
	Exclude       []string

	// Spec holds plugin-specific fields, resolved in stages by the resolve
	// pipeline (internal/resolve). It starts out raw (straight from YAML)
	// and is progressively template-resolved.
	Spec map[string]any

	Variables map[string]any
	VarFiles  []string

	Mode     Mode
	Disabled bool

	Internal Internal
}

// Key returns this action's (kind, name) identity.
func (a *Action) Key() Key { return NewKey(a.Kind, a.Name) }

// String renders the action's key in "kind.name" form. The tree-derived
// version identity lives on ResolvedAction.VersionString.
func (a *Action) String() string { return a.Key().String() }

// TreeVersion is the (contentHash, files) pair a TreeVersionProvider
// returns for an action's source tree. Files are always stored and
// round-tripped in POSIX form regardless of host OS.
type TreeVersion struct {
	ContentHash string
	Files       []string
}

// ResolvedAction is an Action whose spec, variables, and static outputs have
// been fully evaluated by the resolve pipeline (internal/resolve).
type ResolvedAction struct {
	Action *Action

	ResolvedSpec map[string]any
	// MergedVariables is the result of mergeDeep(group, action, CLI
	// overrides) with later layers winning at every leaf. See
	// internal/resolve for the exact merge order, including the unresolved
	// case of group-variable references inside action variable definitions.
	MergedVariables map[string]any
	ResolvedInputs  map[string]any
	StaticOutputs   map[string]any

	Tree TreeVersion
}

// VersionString derives the action's version identity from its tree's
// content hash.
func (r *ResolvedAction) VersionString() string {
	if r == nil {
		return ""
	}
	return r.Action.Key().String() + "@" + r.Tree.ContentHash
}

// ExecutedAction is a ResolvedAction whose execute handler has run (or
// whose status query determined no execution was needed).
type ExecutedAction struct {
	Resolved *ResolvedAction

	State   State
	Detail  string
	Outputs map[string]any

	Attached bool
}
