// Package providers holds the built-in Router implementations the CLI
// registers by default: shell commands, apt packages, file sync, symlinks,
// and git repository clones. The shell and apt routers drive the host
// through os/exec rather than a remote API.
package providers

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/stackforge/actioncore/internal/action"
	"github.com/stackforge/actioncore/internal/plugins/internalexec"
	"github.com/stackforge/actioncore/internal/provider"
	coreerrors "github.com/stackforge/actioncore/pkg/errors"
)

// ShellConfig is the action-type config a ShellRouter action's Spec decodes
// into: the command to run, an optional check command that reports whether
// the action is already satisfied, and execution environment overrides.
type ShellConfig struct {
	Command string
	Check   string
	Shell   string
	WorkDir string
	Env     map[string]string
}

// ShellRouter runs build/deploy/run/test actions as a single shell command,
// optionally skipping execution when a Check command already reports
// success. It serves the "shell" action type.
type ShellRouter struct{}

var _ provider.Router = (*ShellRouter)(nil)

// Configure implements provider.Router: shell-command actions run under
// every mode.
func (ShellRouter) Configure(_ context.Context, cfg map[string]any) (provider.ConfigureResult, error) {
	return provider.ConfigureResult{
		Config:         cfg,
		SupportedModes: []action.Mode{action.ModeDefault, action.ModeSync, action.ModeLocal},
	}, nil
}

// Validate implements provider.Router.
func (ShellRouter) Validate(_ context.Context, a *action.Action) error {
	cfg := decodeShellConfig(a.Spec)
	if strings.TrimSpace(cfg.Command) == "" {
		return coreerrors.NewCoreError(coreerrors.KindValidation,
			fmt.Sprintf("action %s: shell-command requires a non-empty command", a.Key()), nil)
	}
	return nil
}

// GetOutputs implements provider.Router: shell-command has no static
// outputs, only whatever Execute captures from stdout.
func (ShellRouter) GetOutputs(context.Context, *action.ResolvedAction) (map[string]any, error) {
	return nil, nil
}

// GetStatus implements provider.Router. An action with no Check command is
// always considered outdated, so it reruns every time it is requested; one
// with a Check command is ready when the check exits zero.
func (ShellRouter) GetStatus(ctx context.Context, resolved *action.ResolvedAction) (provider.StatusResult, error) {
	cfg := decodeShellConfig(resolved.ResolvedSpec)
	if strings.TrimSpace(cfg.Check) == "" {
		return provider.StatusResult{State: action.StateOutdated}, nil
	}

	shell, shellArgs, err := determineShell(cfg.Shell)
	if err != nil {
		return provider.StatusResult{}, coreerrors.NewCoreError(coreerrors.KindRuntime, "determine shell", err)
	}

	cmd := exec.CommandContext(ctx, shell, append(shellArgs, cfg.Check)...)
	cmd.Env = buildEnv(cfg.Env)
	cmd.Dir = cfg.WorkDir

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if ok := asExitError(err, &exitErr); ok {
			return provider.StatusResult{State: action.StateOutdated, Detail: "check command reported not satisfied"}, nil
		}
		return provider.StatusResult{}, coreerrors.NewCoreError(coreerrors.KindRuntime, "run check command", err)
	}
	return provider.StatusResult{State: action.StateReady, Detail: "check command succeeded"}, nil
}

// Execute implements provider.Router.
func (ShellRouter) Execute(ctx context.Context, _ action.Kind, resolved *action.ResolvedAction) (provider.ExecuteResult, error) {
	cfg := decodeShellConfig(resolved.ResolvedSpec)

	shell, shellArgs, err := determineShell(cfg.Shell)
	if err != nil {
		return provider.ExecuteResult{}, coreerrors.NewCoreError(coreerrors.KindRuntime, "determine shell", err)
	}

	cmd := exec.CommandContext(ctx, shell, append(shellArgs, cfg.Command)...)
	cmd.Env = buildEnv(cfg.Env)
	cmd.Dir = cfg.WorkDir

	streamed, runErr := internalexec.RunStreaming(cmd)
	if runErr != nil {
		out := internalexec.PrimaryOutput(streamed)
		if out != "" {
			runErr = fmt.Errorf("%w: %s", runErr, out)
		}
		return provider.ExecuteResult{}, coreerrors.NewCoreError(coreerrors.KindRuntime,
			fmt.Sprintf("action %s: shell command failed", resolved.Action.Key()), runErr)
	}

	return provider.ExecuteResult{Outputs: map[string]any{"stdout": streamed.Stdout, "stderr": streamed.Stderr}}, nil
}

func decodeShellConfig(spec map[string]any) ShellConfig {
	cfg := ShellConfig{}
	if spec == nil {
		return cfg
	}
	if v, ok := spec["command"].(string); ok {
		cfg.Command = v
	}
	if v, ok := spec["check"].(string); ok {
		cfg.Check = v
	}
	if v, ok := spec["shell"].(string); ok {
		cfg.Shell = v
	}
	if v, ok := spec["workdir"].(string); ok {
		cfg.WorkDir = v
	}
	if v, ok := spec["env"].(map[string]string); ok {
		cfg.Env = v
	} else if v, ok := spec["env"].(map[string]any); ok {
		cfg.Env = make(map[string]string, len(v))
		for k, val := range v {
			if s, ok := val.(string); ok {
				cfg.Env[k] = s
			}
		}
	}
	return cfg
}

func determineShell(explicit string) (string, []string, error) {
	if explicit != "" {
		return explicit, []string{"-c"}, nil
	}
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C"}, nil
	}
	if path, err := exec.LookPath("bash"); err == nil {
		return path, []string{"-c"}, nil
	}
	if path, err := exec.LookPath("sh"); err == nil {
		return path, []string{"-c"}, nil
	}
	return "", nil, fmt.Errorf("no suitable shell found")
}

func buildEnv(custom map[string]string) []string {
	env := os.Environ()
	for k, v := range custom {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}
