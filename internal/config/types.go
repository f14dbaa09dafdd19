package config

import (
	"regexp"
)

var actionNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

// ActionFile represents a single parsed action-definition YAML document
// (one of possibly many under the project's actions/ directory).
type ActionFile struct {
	Actions []ActionConfig `yaml:"actions" validate:"required,min=1,dive"`
}

// ActionConfig is the declarative, on-disk form of an action before it is
// resolved into the richer runtime action.Action.
type ActionConfig struct {
	Kind    string `yaml:"kind" validate:"required,oneof=build deploy run test"`
	Name    string `yaml:"name" validate:"required,action_name"`
	Enabled *bool  `yaml:"enabled,omitempty"`

	DependsOn []DependencyConfig `yaml:"depends_on,omitempty" validate:"omitempty,dive"`

	Variables map[string]any `yaml:"variables,omitempty"`
	Config    map[string]any `yaml:"config,omitempty"`

	CopyFrom string `yaml:"copy_from,omitempty" validate:"omitempty,action_name"`

	// line/column of the mapping node this action was decoded from, set by
	// the parser so validator diagnostics can print a caret-marked snippet.
	Line   int `yaml:"-"`
	Column int `yaml:"-"`
}

// IsEnabled reports whether the action is active, defaulting to true when
// the field is omitted.
func (a ActionConfig) IsEnabled() bool {
	if a.Enabled == nil {
		return true
	}
	return *a.Enabled
}

// DependencyConfig is the on-disk form of a dependency edge.
type DependencyConfig struct {
	Kind     string `yaml:"kind" validate:"required,oneof=build deploy run test"`
	Name     string `yaml:"name" validate:"required,action_name"`
	Outputs  string `yaml:"outputs,omitempty" validate:"omitempty,oneof=static executed"`
	Explicit bool   `yaml:"explicit,omitempty"`
}

// GroupFile represents a parsed group-definition document: named variable
// bundles and mode-pattern membership rules.
type GroupFile struct {
	Groups []GroupConfig `yaml:"groups" validate:"required,min=1,dive"`
}

// GroupConfig bundles shared variables and the mode-pattern membership that
// decides which actions belong to it.
type GroupConfig struct {
	Name      string         `yaml:"name" validate:"required,action_name"`
	Patterns  []ModePattern  `yaml:"patterns,omitempty" validate:"omitempty,dive"`
	Variables map[string]any `yaml:"variables,omitempty"`

	Line   int `yaml:"-"`
	Column int `yaml:"-"`
}

// ModePattern matches an action key ("kind.name") against a glob-like
// pattern, or compares it to Pattern exactly when Exact is true.
type ModePattern struct {
	Pattern string `yaml:"pattern" validate:"required"`
	Exact   bool   `yaml:"exact,omitempty"`
}

// ProjectConfig is the top-level project document: the project name,
// global settings, and the mode pattern sets.
type ProjectConfig struct {
	Name     string     `yaml:"name" validate:"required,min=1,max=100"`
	Settings Settings   `yaml:"settings,omitempty"`
	Modes    ModeConfig `yaml:"modes,omitempty"`
}

// ModeConfig holds the pattern sets that select which actions run in
// "sync" or "local" mode, keyed by the mode they select. local dominates
// sync when both match the same action key.
type ModeConfig struct {
	Sync  []ModePattern `yaml:"sync,omitempty" validate:"omitempty,dive"`
	Local []ModePattern `yaml:"local,omitempty" validate:"omitempty,dive"`
}

// Settings holds global execution parameters for the solver and runner.
type Settings struct {
	MaxConcurrency    int  `yaml:"max_concurrency,omitempty" validate:"omitempty,min=1,max=256"`
	BuildConcurrency  int  `yaml:"build_concurrency,omitempty" validate:"omitempty,min=1,max=64"`
	DefaultTimeoutSec int  `yaml:"default_timeout,omitempty" validate:"omitempty,min=1,max=360000"`
	ContinueOnError   bool `yaml:"continue_on_error,omitempty"`
}

// WorkflowFile represents a parsed workflow document: an ordered sequence
// of steps dispatched by the workflow runner.
type WorkflowFile struct {
	Name    string              `yaml:"name" validate:"required,min=1,max=100"`
	Steps   []WorkflowStep      `yaml:"steps" validate:"required,min=1,dive"`
	Vars    map[string]any      `yaml:"vars,omitempty"`
	EnvVars map[string]string   `yaml:"envVars,omitempty"`
	Files   []WorkflowFileWrite `yaml:"files,omitempty" validate:"omitempty,dive"`
}

// WorkflowFileWrite describes a file the runner writes to the workflow's
// scoped files directory before the first step runs, with Content template
// resolved against workflow variables and the secrets map the caller
// supplies to Run.
type WorkflowFileWrite struct {
	Path    string `yaml:"path" validate:"required"`
	Content string `yaml:"content"`
}

// WorkflowStep describes one unit of work in a workflow: either a command,
// a script file, or a reference to an action the solver should execute.
type WorkflowStep struct {
	ID          string             `yaml:"id" validate:"required,step_id"`
	Name        string             `yaml:"name,omitempty"`
	Description string             `yaml:"description,omitempty"`
	When        string             `yaml:"when,omitempty" validate:"omitempty,oneof=always never onError"`
	Skip        bool               `yaml:"skip,omitempty"`
	EnvVars     map[string]string  `yaml:"envVars,omitempty"`
	Command     string             `yaml:"command,omitempty"`
	Script      string             `yaml:"script,omitempty"`
	Action      *WorkflowActionRef `yaml:"action,omitempty"`

	Line   int `yaml:"-"`
	Column int `yaml:"-"`
}

// WorkflowActionRef points a workflow step at an action for the solver to
// run, optionally overriding variables for that run.
type WorkflowActionRef struct {
	Kind      string         `yaml:"kind" validate:"required,oneof=build deploy run test"`
	Name      string         `yaml:"name" validate:"required,action_name"`
	Variables map[string]any `yaml:"variables,omitempty"`
}

// ActionMap builds a lookup table for action configs keyed by "kind.name".
func ActionMap(actions []ActionConfig) map[string]ActionConfig {
	out := make(map[string]ActionConfig, len(actions))
	for _, a := range actions {
		out[a.Kind+"."+a.Name] = a
	}
	return out
}
