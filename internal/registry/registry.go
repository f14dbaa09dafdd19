// Package registry holds the set of typed action configs a project
// declares, resolving (kind,name) collisions and mode-pattern membership.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/stackforge/actioncore/internal/action"
	"github.com/stackforge/actioncore/internal/config"
	coreerrors "github.com/stackforge/actioncore/pkg/errors"
)

// entry pairs a loaded Action with the source file it came from, so a
// collision between two active configs can name both.
type entry struct {
	action *action.Action
	source string
}

// Registry is the set of active actions keyed by "kind.name", guarded by a
// read/write mutex.
type Registry struct {
	mu      sync.RWMutex
	entries map[action.Key]entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[action.Key]entry)}
}

// Add inserts a, declared in sourceFile, applying the collision rule: the
// non-disabled entry wins; two active entries for the same key is a
// configuration error naming both source files.
func (r *Registry) Add(a *action.Action, sourceFile string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := a.Key()
	existing, ok := r.entries[key]
	if !ok {
		r.entries[key] = entry{action: a, source: sourceFile}
		return nil
	}

	switch {
	case existing.action.Disabled && a.Disabled:
		// Two disabled entries: keep the first, not a conflict.
		return nil
	case existing.action.Disabled && !a.Disabled:
		r.entries[key] = entry{action: a, source: sourceFile}
		return nil
	case !existing.action.Disabled && a.Disabled:
		return nil
	default:
		return coreerrors.NewCoreError(coreerrors.KindConfiguration,
			fmt.Sprintf("action %q declared as active in both %s and %s", key, existing.source, sourceFile), nil)
	}
}

// Get returns the active action for key, if any.
func (r *Registry) Get(key action.Key) (*action.Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	return e.action, true
}

// All returns every active action, sorted by key for deterministic
// iteration order.
func (r *Registry) All() []*action.Action {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]action.Key, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	out := make([]*action.Action, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.entries[k].action)
	}
	return out
}

// ApplyMode resolves mode membership for every registered action against
// the project's mode pattern sets: local dominates sync, an exact match is
// explicit, and an explicitly-moded action whose
// type doesn't support that mode produces a warning rather than an error.
//
// supportsMode reports whether the named action type supports the given
// mode; when nil every mode is treated as supported.
func (r *Registry) ApplyMode(modes config.ModeConfig, supportsMode func(actionType string, mode action.Mode) bool) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var warnings []string
	for key, e := range r.entries {
		localHit, localExact := matchPatterns(modes.Local, key.String())
		syncHit, syncExact := matchPatterns(modes.Sync, key.String())

		mode := action.ModeDefault
		explicit := false
		switch {
		case localHit:
			mode = action.ModeLocal
			explicit = localExact
		case syncHit:
			mode = action.ModeSync
			explicit = syncExact
		}

		e.action.Mode = mode
		r.entries[key] = e

		if explicit && supportsMode != nil && !supportsMode(e.action.Type, mode) {
			warnings = append(warnings, fmt.Sprintf("action %q explicitly requests mode %q, which its type %q does not support", key, mode, e.action.Type))
		}
	}

	sort.Strings(warnings)
	return warnings
}

// matchPatterns reports whether name matches any pattern in the set, and
// whether the matching pattern was an exact match (taking priority: an
// exact hit anywhere in the set always wins over a glob hit).
func matchPatterns(patterns []config.ModePattern, name string) (hit bool, exact bool) {
	for _, p := range patterns {
		if p.Exact {
			if p.Pattern == name {
				return true, true
			}
			continue
		}
		if globMatch(p.Pattern, name) {
			hit = true
		}
	}
	return hit, false
}

// globMatch implements the small subset of shell globbing the mode
// pattern language needs: literal segments plus "*" wildcards.
func globMatch(pattern, name string) bool {
	return globMatchRunes([]rune(pattern), []rune(name))
}

func globMatchRunes(pattern, name []rune) bool {
	if len(pattern) == 0 {
		return len(name) == 0
	}
	if pattern[0] == '*' {
		for i := 0; i <= len(name); i++ {
			if globMatchRunes(pattern[1:], name[i:]) {
				return true
			}
		}
		return false
	}
	if len(name) == 0 || pattern[0] != name[0] {
		return false
	}
	return globMatchRunes(pattern[1:], name[1:])
}
