// Package provider declares the contracts the execution core consumes from
// the outside world: the per-kind Router that knows how to
// build/deploy/run/test a concrete action type, and the TreeVersionProvider
// that hashes an action's source tree.
package provider

import (
	"context"

	"github.com/stackforge/actioncore/internal/action"
)

// StatusResult is the provider's answer to getStatus(action).
type StatusResult struct {
	State   action.State
	Detail  string
	Outputs map[string]any
}

// ExecuteResult is the provider's answer to the kind-specific execute call.
type ExecuteResult struct {
	Outputs  map[string]any
	Attached bool
}

// ConfigureResult is returned by configure(config): the (possibly
// plugin-mutated) config plus the modes the action type supports.
type ConfigureResult struct {
	Config         map[string]any
	SupportedModes []action.Mode
}

// Router is the per-action-type contract the core invokes at every stage of
// the resolve pipeline and the execute tasks. One Router instance serves
// every action of a given Action.Type; the core looks it up by Type.
type Router interface {
	Configure(ctx context.Context, cfg map[string]any) (ConfigureResult, error)
	Validate(ctx context.Context, a *action.Action) error
	GetOutputs(ctx context.Context, resolved *action.ResolvedAction) (map[string]any, error)
	GetStatus(ctx context.Context, resolved *action.ResolvedAction) (StatusResult, error)
	Execute(ctx context.Context, kind action.Kind, resolved *action.ResolvedAction) (ExecuteResult, error)
}

// StaticOutputKeys reports whether key is part of the static-output schema
// for actions of the given type. No router implements it and the loader's
// graph classifier does not consult it: every template reference forces
// execution of the referenced action.
type StaticOutputKeys interface {
	IsStaticOutput(actionType, key string) bool
}

// BaseTypeProvider reports the base action types a Router's own type
// extends, letting the resolve pipeline walk the chain transitively: a type
// extending a type that itself extends another still gets every ancestor's
// schema enforced.
type BaseTypeProvider interface {
	BaseTypes() []string
}

// NoTemplateFields names the top-level spec keys a Router treats as
// identity fields: the resolve pipeline snapshots them before Configure
// runs and rejects the result if Configure rewrote any of them.
type NoTemplateFields interface {
	NoTemplateFields() []string
}

// TreeVersionRequest carries what a TreeVersionProvider needs to compute a
// deterministic content hash for an action's source tree.
type TreeVersionRequest struct {
	ConfigFilePath string
	BasePath       string
	Include        []string
	Exclude        []string
}

// TreeVersionProvider computes the TreeVersion for an action's source tree.
// Implementations must be deterministic for a given (configFilePath,
// basePath) pair; the core caches results keyed on that pair.
type TreeVersionProvider interface {
	GetTreeVersion(ctx context.Context, req TreeVersionRequest) (action.TreeVersion, error)
}

// Router is looked up by action type; Registry is the lookup table the
// resolve pipeline and execute tasks consult.
type Registry struct {
	routers map[string]Router
}

// NewRegistry returns an empty router registry.
func NewRegistry() *Registry {
	return &Registry{routers: make(map[string]Router)}
}

// Register associates actionType with a Router implementation.
func (r *Registry) Register(actionType string, router Router) {
	r.routers[actionType] = router
}

// Lookup returns the Router registered for actionType.
func (r *Registry) Lookup(actionType string) (Router, bool) {
	router, ok := r.routers[actionType]
	return router, ok
}
