// Package action defines the execution core's data model: Action,
// ActionDependency, ResolvedAction, ExecutedAction, and the Kind/Mode/State
// enumerations.
package action

import "fmt"

// Kind is one of the four action kinds the core understands.
type Kind string

const (
	KindBuild  Kind = "build"
	KindDeploy Kind = "deploy"
	KindRun    Kind = "run"
	KindTest   Kind = "test"
)

// Kinds lists every supported Kind.
var Kinds = []Kind{KindBuild, KindDeploy, KindRun, KindTest}

// Valid reports whether k is a recognized action kind.
func (k Kind) Valid() bool {
	switch k {
	case KindBuild, KindDeploy, KindRun, KindTest:
		return true
	default:
		return false
	}
}

// Mode selects which handler variant an action runs under.
type Mode string

const (
	ModeDefault Mode = "default"
	ModeSync    Mode = "sync"
	ModeLocal   Mode = "local"
)

// State is the execution outcome status attached to an ExecutedAction.
type State string

const (
	StateReady    State = "ready"
	StateNotReady State = "not-ready"
	StateOutdated State = "outdated"
	StateMissing  State = "missing"
	StateUnknown  State = "unknown"
	StateFailed   State = "failed"
)

// Key uniquely identifies an action as "(kind, name)". It is also used,
// formatted, as the prefix of every TaskNode key derived from this action.
type Key struct {
	Kind Kind
	Name string
}

// String renders the key in "kind.name" form, matching the CLI's
// "<kind>.<name>" action reference syntax.
func (k Key) String() string {
	return fmt.Sprintf("%s.%s", k.Kind, k.Name)
}

// NewKey constructs a Key, useful at call sites that already have both parts.
func NewKey(kind Kind, name string) Key {
	return Key{Kind: kind, Name: name}
}

// ParseKey parses the "<kind>.<name>" form String produces, as accepted on
// the CLI's action-reference arguments.
func ParseKey(s string) (Key, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			kind := Kind(s[:i])
			name := s[i+1:]
			if !kind.Valid() || name == "" {
				break
			}
			return Key{Kind: kind, Name: name}, nil
		}
	}
	return Key{}, fmt.Errorf("invalid action reference %q, expected \"<kind>.<name>\"", s)
}
