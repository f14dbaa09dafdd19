package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/stackforge/actioncore/internal/action"
	"github.com/stackforge/actioncore/internal/plugins/internalexec"
	"github.com/stackforge/actioncore/internal/provider"
	coreerrors "github.com/stackforge/actioncore/pkg/errors"
)

// AptConfig is the action-type config an AptRouter action's Spec decodes
// into: the apt packages it must install.
type AptConfig struct {
	Packages []string
}

// AptRouter installs Debian packages through apt-get/dpkg-query, serving
// run and deploy actions of the "apt" action type. It never runs
// build or test actions; Execute rejects those kinds.
type AptRouter struct{}

var _ provider.Router = (*AptRouter)(nil)

// Configure implements provider.Router: apt-package actions only make
// sense against a real host, not a local dry run.
func (AptRouter) Configure(_ context.Context, cfg map[string]any) (provider.ConfigureResult, error) {
	return provider.ConfigureResult{Config: cfg, SupportedModes: []action.Mode{action.ModeSync}}, nil
}

// Validate implements provider.Router.
func (AptRouter) Validate(_ context.Context, a *action.Action) error {
	if a.Kind != action.KindRun && a.Kind != action.KindDeploy {
		return coreerrors.NewCoreError(coreerrors.KindValidation,
			fmt.Sprintf("action %s: apt-package only supports run/deploy kinds", a.Key()), nil)
	}
	cfg := decodeAptConfig(a.Spec)
	if len(cfg.Packages) == 0 {
		return coreerrors.NewCoreError(coreerrors.KindValidation,
			fmt.Sprintf("action %s: apt-package requires at least one package", a.Key()), nil)
	}
	return nil
}

// GetOutputs implements provider.Router.
func (AptRouter) GetOutputs(context.Context, *action.ResolvedAction) (map[string]any, error) {
	return nil, nil
}

// GetStatus implements provider.Router: ready only when every named
// package is already installed according to dpkg-query.
func (AptRouter) GetStatus(ctx context.Context, resolved *action.ResolvedAction) (provider.StatusResult, error) {
	cfg := decodeAptConfig(resolved.ResolvedSpec)

	var missing []string
	for _, name := range cfg.Packages {
		if err := runQuiet(ctx, "dpkg-query", "-W", name); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				missing = append(missing, name)
				continue
			}
			return provider.StatusResult{}, coreerrors.NewCoreError(coreerrors.KindRuntime,
				fmt.Sprintf("query package %s", name), err)
		}
	}

	if len(missing) > 0 {
		return provider.StatusResult{
			State:  action.StateOutdated,
			Detail: fmt.Sprintf("packages not installed: %s", strings.Join(missing, ", ")),
		}, nil
	}
	return provider.StatusResult{
		State:  action.StateReady,
		Detail: fmt.Sprintf("all packages installed: %s", strings.Join(cfg.Packages, ", ")),
	}, nil
}

// Execute implements provider.Router.
func (AptRouter) Execute(ctx context.Context, kind action.Kind, resolved *action.ResolvedAction) (provider.ExecuteResult, error) {
	if kind != action.KindRun && kind != action.KindDeploy {
		return provider.ExecuteResult{}, coreerrors.NewCoreError(coreerrors.KindValidation,
			fmt.Sprintf("apt-package cannot execute as %s", kind), nil)
	}

	cfg := decodeAptConfig(resolved.ResolvedSpec)
	args := append([]string{"install", "-y"}, cfg.Packages...)
	if err := runStreamed(ctx, "apt-get", args...); err != nil {
		return provider.ExecuteResult{}, coreerrors.NewCoreError(coreerrors.KindRuntime,
			fmt.Sprintf("action %s: apt-get install failed", resolved.Action.Key()), err)
	}

	return provider.ExecuteResult{Outputs: map[string]any{"installed": cfg.Packages}}, nil
}

func decodeAptConfig(spec map[string]any) AptConfig {
	cfg := AptConfig{}
	if spec == nil {
		return cfg
	}
	switch v := spec["packages"].(type) {
	case []string:
		cfg.Packages = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				cfg.Packages = append(cfg.Packages, s)
			}
		}
	}
	return cfg
}

func runQuiet(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = os.Environ()
	return cmd.Run()
}

func runStreamed(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = os.Environ()

	streamed, err := internalexec.RunStreaming(cmd)
	if err != nil {
		out := internalexec.PrimaryOutput(streamed)
		if out != "" {
			return fmt.Errorf("%w: %s", err, out)
		}
		return err
	}
	return nil
}
