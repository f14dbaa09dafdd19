package provider

import (
	"context"

	"github.com/stackforge/actioncore/internal/action"
)

// FixtureRouter is a scriptable in-memory Router used by resolve/solver
// tests so they never depend on a real provider implementation.
type FixtureRouter struct {
	StaticOutputs map[string]any
	Status        StatusResult
	ExecuteOut    ExecuteResult
	SupportedMode []action.Mode

	ConfigureFn func(map[string]any) (ConfigureResult, error)
	ValidateFn  func(context.Context, *action.Action) error
	ValidateErr error
	StatusErr   error
	ExecuteErr  error

	// NoTemplateKeys, when non-empty, makes the fixture implement
	// NoTemplateFields so tests can exercise the resolve pipeline's
	// configure-immutability check.
	NoTemplateKeys []string

	// ExtendsTypes, when non-empty, makes the fixture implement
	// BaseTypeProvider so tests can exercise base-type chain validation.
	ExtendsTypes []string

	ExecuteCalls int
}

// NoTemplateFields implements NoTemplateFields when NoTemplateKeys is set.
func (f *FixtureRouter) NoTemplateFields() []string {
	return f.NoTemplateKeys
}

// BaseTypes implements BaseTypeProvider when ExtendsTypes is set.
func (f *FixtureRouter) BaseTypes() []string {
	return f.ExtendsTypes
}

// Configure implements Router.
func (f *FixtureRouter) Configure(_ context.Context, cfg map[string]any) (ConfigureResult, error) {
	if f.ConfigureFn != nil {
		return f.ConfigureFn(cfg)
	}
	return ConfigureResult{Config: cfg, SupportedModes: f.SupportedMode}, nil
}

// Validate implements Router.
func (f *FixtureRouter) Validate(ctx context.Context, a *action.Action) error {
	if f.ValidateFn != nil {
		return f.ValidateFn(ctx, a)
	}
	return f.ValidateErr
}

// GetOutputs implements Router.
func (f *FixtureRouter) GetOutputs(context.Context, *action.ResolvedAction) (map[string]any, error) {
	return f.StaticOutputs, nil
}

// GetStatus implements Router.
func (f *FixtureRouter) GetStatus(context.Context, *action.ResolvedAction) (StatusResult, error) {
	return f.Status, f.StatusErr
}

// Execute implements Router.
func (f *FixtureRouter) Execute(context.Context, action.Kind, *action.ResolvedAction) (ExecuteResult, error) {
	f.ExecuteCalls++
	return f.ExecuteOut, f.ExecuteErr
}

var _ Router = (*FixtureRouter)(nil)
