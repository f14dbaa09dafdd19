package template

import (
	"sort"
	"strconv"
	"strings"
)

// Context is a hierarchical name resolver with dotted-path lookup, e.g.
// "actions.build.img.outputs.tag", "variables.x", "environment.name".
// Each top-level key is a "branch"; branches are looked up independently so
// the evaluator can report which branches it tried when a path can't be
// resolved.
type Context struct {
	branches map[string]any
}

// NewContext builds a Context from named branches, typically
// "variables", "inputs", "actions", "environment", "steps".
func NewContext(branches map[string]any) *Context {
	if branches == nil {
		branches = map[string]any{}
	}
	return &Context{branches: branches}
}

// WithBranch returns a derived context with an additional (or replaced)
// top-level branch, leaving the receiver untouched.
func (c *Context) WithBranch(name string, value any) *Context {
	next := make(map[string]any, len(c.branches)+1)
	for k, v := range c.branches {
		next[k] = v
	}
	next[name] = value
	return &Context{branches: next}
}

// Branches returns the sorted list of top-level branch names, used for
// "attempted context branches" error reporting.
func (c *Context) Branches() []string {
	names := make([]string, 0, len(c.branches))
	for k := range c.branches {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a dotted path such as "actions.build.img.outputs.tag"
// against the context. Segments of the form "name[2]" index into a slice.
func (c *Context) Lookup(path string) (any, bool) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil, false
	}

	root, ok := c.branches[segments[0]]
	if !ok {
		return nil, false
	}

	current := root
	for _, seg := range segments[1:] {
		name, index, hasIndex := splitIndex(seg)
		next, ok := descend(current, name)
		if !ok {
			return nil, false
		}
		current = next

		if hasIndex {
			slice, ok := current.([]any)
			if !ok || index < 0 || index >= len(slice) {
				return nil, false
			}
			current = slice[index]
		}
	}

	return current, true
}

func descend(current any, key string) (any, bool) {
	switch m := current.(type) {
	case map[string]any:
		v, ok := m[key]
		return v, ok
	default:
		return nil, false
	}
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// splitIndex splits a segment like "outputs[2]" into ("outputs", 2, true);
// a segment without brackets returns (segment, 0, false).
func splitIndex(segment string) (string, int, bool) {
	open := strings.IndexByte(segment, '[')
	if open < 0 || !strings.HasSuffix(segment, "]") {
		return segment, 0, false
	}
	name := segment[:open]
	idxStr := segment[open+1 : len(segment)-1]
	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		return segment, 0, false
	}
	return name, idx, true
}
