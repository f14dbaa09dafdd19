// Package graph builds the typed, acyclic dependency graph over actions:
// explicit dependencies, build/copyFrom edges, and template-reference-induced
// edges, deduplicated by edge strength.
package graph

import (
	"fmt"
	"sort"

	"github.com/stackforge/actioncore/internal/action"
	"github.com/stackforge/actioncore/internal/template"
	coreerrors "github.com/stackforge/actioncore/pkg/errors"
)

// Graph tracks action dependency relationships for cycle detection and
// topological scheduling, typed over action.Key and carrying edge strength.
type Graph struct {
	nodes    map[action.Key]struct{}
	outgoing map[action.Key]map[action.Key]action.Dependency
	incoming map[action.Key]map[action.Key]struct{}
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[action.Key]struct{}),
		outgoing: make(map[action.Key]map[action.Key]action.Dependency),
		incoming: make(map[action.Key]map[action.Key]struct{}),
	}
}

// AddNode ensures key exists in the graph, even with no edges.
func (g *Graph) AddNode(key action.Key) {
	if _, ok := g.nodes[key]; ok {
		return
	}
	g.nodes[key] = struct{}{}
	g.outgoing[key] = make(map[action.Key]action.Dependency)
	g.incoming[key] = make(map[action.Key]struct{})
}

// AddEdge records that from depends on to, merging with any existing edge
// between the same pair so the stronger requirement wins.
func (g *Graph) AddEdge(from action.Key, dep action.Dependency) {
	g.AddNode(from)
	to := dep.Key()
	g.AddNode(to)

	if existing, ok := g.outgoing[from][to]; ok {
		dep = existing.Merge(dep)
	}
	g.outgoing[from][to] = dep
	g.incoming[to][from] = struct{}{}
}

// BuildFromActions constructs a graph from the registry's active actions,
// adding explicit dependency edges and template-reference-induced edges
// found anywhere in each action's spec and variables. Varfile contents are
// not scanned. staticOutputKeys reports whether an output key is part of a
// kind's static-output schema, deciding whether a template reference needs
// only static outputs or must force execution.
func BuildFromActions(actions []*action.Action, staticOutputKeys func(kind action.Kind, key string) bool) (*Graph, error) {
	g := New()

	for _, a := range actions {
		g.AddNode(a.Key())
		for _, dep := range a.Dependencies {
			dep.Explicit = true
			g.AddEdge(a.Key(), dep)
		}

		refs := template.ReferencesIn(a.Spec)
		refs = append(refs, template.ReferencesIn(a.Variables)...)
		for _, ref := range refs {
			dep, ok := dependencyFromReference(ref, staticOutputKeys)
			if !ok {
				continue
			}
			g.AddEdge(a.Key(), dep)
		}
	}

	if cycle := g.DetectCycle(); len(cycle) > 0 {
		return nil, coreerrors.NewCoreError(coreerrors.KindGraph, fmt.Sprintf("dependency cycle: %s", formatCycle(cycle)), nil).
			WithDetail("cycle", cycle)
	}

	return g, nil
}

// dependencyFromReference parses an "actions.<kind>.<name>.outputs.<key>"
// dotted path into a Dependency.
func dependencyFromReference(ref string, staticOutputKeys func(kind action.Kind, key string) bool) (action.Dependency, bool) {
	parts := splitDotted(ref)
	if len(parts) < 4 || parts[0] != "actions" || parts[3] != "outputs" {
		return action.Dependency{}, false
	}

	kind := action.Kind(parts[1])
	name := parts[2]
	var outputKey string
	if len(parts) > 4 {
		outputKey = parts[4]
	}

	dep := action.Dependency{Kind: kind, Name: name}
	if staticOutputKeys != nil && staticOutputKeys(kind, outputKey) {
		dep.NeedsStaticOutputs = true
	} else {
		dep.NeedsExecutedOutputs = true
	}
	return dep, true
}

func splitDotted(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// Dependencies returns the (target, edge) pairs for key, sorted by target
// key for deterministic iteration.
func (g *Graph) Dependencies(key action.Key) []action.Dependency {
	edges := g.outgoing[key]
	out := make([]action.Dependency, 0, len(edges))
	for _, dep := range edges {
		out = append(out, dep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().String() < out[j].Key().String() })
	return out
}

// Dependants returns the keys of actions that depend on key.
func (g *Graph) Dependants(key action.Key) []action.Key {
	set := g.incoming[key]
	out := make([]action.Key, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// DetectCycle returns the keys participating in a dependency cycle, or nil
// if the graph is acyclic. Walks the graph depth-first, tracking the current
// path on a stack so a back-edge into it can be reported as the cycle.
func (g *Graph) DetectCycle() []action.Key {
	visited := make(map[action.Key]bool, len(g.nodes))
	onStack := make(map[action.Key]bool, len(g.nodes))
	var path []action.Key

	var cycle []action.Key
	var dfs func(action.Key) bool
	dfs = func(node action.Key) bool {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		deps := make([]action.Key, 0, len(g.outgoing[node]))
		for to := range g.outgoing[node] {
			deps = append(deps, to)
		}
		sort.Slice(deps, func(i, j int) bool { return deps[i].String() < deps[j].String() })

		for _, dep := range deps {
			if !visited[dep] {
				if dfs(dep) {
					return true
				}
			} else if onStack[dep] {
				idx := len(path) - 1
				for idx >= 0 && path[idx] != dep {
					idx--
				}
				if idx >= 0 {
					cycle = append([]action.Key{}, path[idx:]...)
					cycle = append(cycle, dep)
				}
				return true
			}
		}

		onStack[node] = false
		path = path[:len(path)-1]
		return false
	}

	keys := make([]action.Key, 0, len(g.nodes))
	for k := range g.nodes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	for _, k := range keys {
		if !visited[k] {
			if dfs(k) {
				break
			}
		}
	}

	return cycle
}

func formatCycle(cycle []action.Key) string {
	parts := make([]string, len(cycle))
	for i, k := range cycle {
		parts[i] = k.String()
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += " -> " + p
	}
	return out
}
