package providers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stackforge/actioncore/internal/action"
	"github.com/stackforge/actioncore/internal/provider"
	coreerrors "github.com/stackforge/actioncore/pkg/errors"
)

// SymlinkConfig is the action-type config a SymlinkRouter action's Spec
// decodes into: target points at source, replacing whatever is already at
// target when Force is set.
type SymlinkConfig struct {
	Source string
	Target string
	Force  bool
}

// SymlinkRouter deploys a symbolic link, serving deploy actions of the
// "symlink" action type.
type SymlinkRouter struct{}

var _ provider.Router = (*SymlinkRouter)(nil)

// Configure implements provider.Router.
func (SymlinkRouter) Configure(_ context.Context, cfg map[string]any) (provider.ConfigureResult, error) {
	return provider.ConfigureResult{Config: cfg, SupportedModes: []action.Mode{action.ModeLocal, action.ModeSync}}, nil
}

// Validate implements provider.Router.
func (SymlinkRouter) Validate(_ context.Context, a *action.Action) error {
	if a.Kind != action.KindDeploy {
		return coreerrors.NewCoreError(coreerrors.KindValidation,
			fmt.Sprintf("action %s: symlink only supports the deploy kind", a.Key()), nil)
	}
	cfg := decodeSymlinkConfig(a.Spec)
	if cfg.Source == "" || cfg.Target == "" {
		return coreerrors.NewCoreError(coreerrors.KindValidation,
			fmt.Sprintf("action %s: symlink requires source and target", a.Key()), nil)
	}
	return nil
}

// GetOutputs implements provider.Router.
func (SymlinkRouter) GetOutputs(_ context.Context, resolved *action.ResolvedAction) (map[string]any, error) {
	cfg := decodeSymlinkConfig(resolved.ResolvedSpec)
	return map[string]any{"target": cfg.Target}, nil
}

// GetStatus implements provider.Router: ready when target is already a
// symlink pointing at source.
func (SymlinkRouter) GetStatus(_ context.Context, resolved *action.ResolvedAction) (provider.StatusResult, error) {
	cfg := decodeSymlinkConfig(resolved.ResolvedSpec)

	info, err := os.Lstat(cfg.Target)
	if err != nil {
		return provider.StatusResult{State: action.StateMissing}, nil
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return provider.StatusResult{State: action.StateOutdated, Detail: "target exists but is not a symlink"}, nil
	}

	dest, err := os.Readlink(cfg.Target)
	if err != nil {
		return provider.StatusResult{}, coreerrors.NewCoreError(coreerrors.KindFilesystem, "read symlink", err)
	}
	if dest == cfg.Source {
		return provider.StatusResult{State: action.StateReady}, nil
	}
	return provider.StatusResult{State: action.StateOutdated, Detail: "symlink points elsewhere"}, nil
}

// Execute implements provider.Router.
func (SymlinkRouter) Execute(_ context.Context, _ action.Kind, resolved *action.ResolvedAction) (provider.ExecuteResult, error) {
	cfg := decodeSymlinkConfig(resolved.ResolvedSpec)

	if err := os.MkdirAll(filepath.Dir(cfg.Target), 0o755); err != nil {
		return provider.ExecuteResult{}, coreerrors.NewCoreError(coreerrors.KindFilesystem, "create parent directory", err)
	}

	if _, err := os.Lstat(cfg.Target); err == nil {
		if !cfg.Force {
			return provider.ExecuteResult{}, coreerrors.NewCoreError(coreerrors.KindFilesystem,
				fmt.Sprintf("target %s already exists", cfg.Target), nil)
		}
		if err := os.Remove(cfg.Target); err != nil {
			return provider.ExecuteResult{}, coreerrors.NewCoreError(coreerrors.KindFilesystem, "remove existing target", err)
		}
	}

	if err := os.Symlink(cfg.Source, cfg.Target); err != nil {
		return provider.ExecuteResult{}, coreerrors.NewCoreError(coreerrors.KindFilesystem, "create symlink", err)
	}

	return provider.ExecuteResult{Outputs: map[string]any{"target": cfg.Target}}, nil
}

func decodeSymlinkConfig(spec map[string]any) SymlinkConfig {
	cfg := SymlinkConfig{}
	if spec == nil {
		return cfg
	}
	if v, ok := spec["source"].(string); ok {
		cfg.Source = v
	}
	if v, ok := spec["target"].(string); ok {
		cfg.Target = v
	}
	if v, ok := spec["force"].(bool); ok {
		cfg.Force = v
	}
	return cfg
}
