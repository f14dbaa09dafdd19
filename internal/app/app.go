// Package app wires the loader, provider registry, resolve pipeline, and
// solver together into the single object the CLI commands drive.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/stackforge/actioncore/internal/action"
	"github.com/stackforge/actioncore/internal/config"
	"github.com/stackforge/actioncore/internal/corelog"
	"github.com/stackforge/actioncore/internal/loader"
	"github.com/stackforge/actioncore/internal/provider"
	"github.com/stackforge/actioncore/internal/providers"
	"github.com/stackforge/actioncore/internal/resolve"
	"github.com/stackforge/actioncore/internal/solver"
	"github.com/stackforge/actioncore/internal/tasks"
	"github.com/stackforge/actioncore/internal/workflow"
	coreerrors "github.com/stackforge/actioncore/pkg/errors"
)

const defaultActionTimeout = 10 * time.Minute

// Options configures App construction from CLI flags.
type Options struct {
	ProjectDir string
	Vars       map[string]any
	Env        map[string]any
	Log        *corelog.Logger
}

// App bundles a loaded project with the routers, pipeline, and solver that
// drive it, and resolves solver.TaskResolver lookups against the loaded
// action graph.
type App struct {
	Project  *loader.Project
	Routers  *provider.Registry
	Pipeline *resolve.Pipeline
	Tree     provider.TreeVersionProvider
	Solver   *solver.Solver
	Log      *corelog.Logger

	vars map[string]any
	env  map[string]any
}

// DefaultRouters returns the provider registry of every built-in action
// type the CLI registers by default.
func DefaultRouters() *provider.Registry {
	r := provider.NewRegistry()
	r.Register("shell", &providers.ShellRouter{})
	r.Register("apt", &providers.AptRouter{})
	r.Register("filesync", &providers.FileSyncRouter{})
	r.Register("symlink", &providers.SymlinkRouter{})
	r.Register("git-repo", &providers.GitRepoRouter{})
	return r
}

// New loads the project at opts.ProjectDir and wires the solver.
func New(opts Options) (*App, error) {
	routers := DefaultRouters()

	project, err := loader.Load(opts.ProjectDir, routers)
	if err != nil {
		return nil, err
	}

	a := &App{
		Project:  project,
		Routers:  routers,
		Pipeline: resolve.New(routers),
		Tree:     provider.NewCachingTreeVersionProvider(provider.NewGitTreeVersionProvider()),
		Log:      opts.Log,
		vars:     opts.Vars,
		env:      opts.Env,
	}

	concurrency := int64(project.Config.Settings.MaxConcurrency)
	a.Solver = solver.New(a.resolveTask, concurrency)

	for _, warning := range project.Warnings {
		a.Log.Warn(context.Background(), warning)
	}

	return a, nil
}

// resolveTask implements solver.TaskResolver against the loaded project
// graph, dispatching to a ResolveActionTask or ExecuteTask depending on
// which family of node the solver is asking for.
func (a *App) resolveTask(nodeKey string) (solver.Task, error) {
	isResolve, key, err := tasks.ParseNodeReference(nodeKey)
	if err != nil {
		return nil, err
	}

	act, ok := a.Project.Registry.Get(key)
	if !ok {
		return nil, coreerrors.NewCoreError(coreerrors.KindConfiguration, fmt.Sprintf("unknown action %q", key), nil)
	}

	resolveTask, err := a.resolveActionTask(act)
	if err != nil {
		return nil, err
	}
	if isResolve {
		return resolveTask, nil
	}

	router, ok := a.Routers.Lookup(act.Type)
	if !ok {
		return nil, coreerrors.NewCoreError(coreerrors.KindConfiguration,
			fmt.Sprintf("action %q: no provider router registered for type %q", key, act.Type), nil)
	}

	return tasks.NewExecuteTask(key, act.Kind, a.actionTimeout(act), router, resolveTask), nil
}

// actionTimeout resolves an action's effective timeout: its own setting,
// falling back to the project's default_timeout, falling back to a built-in
// default when neither is configured.
func (a *App) actionTimeout(act *action.Action) time.Duration {
	if act.Timeout > 0 {
		return act.Timeout
	}
	if secs := a.Project.Config.Settings.DefaultTimeoutSec; secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultActionTimeout
}

func (a *App) resolveActionTask(act *action.Action) (*tasks.ResolveActionTask, error) {
	var tree action.TreeVersion
	if a.Tree != nil && act.Kind == action.KindBuild {
		t, err := a.Tree.GetTreeVersion(context.Background(), provider.TreeVersionRequest{
			ConfigFilePath: act.Internal.ConfigFilePath,
			BasePath:       act.BasePath,
			Include:        act.Include,
			Exclude:        act.Exclude,
		})
		if err != nil {
			return nil, err
		}
		tree = t
	}

	var staticDeps, executedDeps []action.Key
	for _, dep := range a.Project.Graph.Dependencies(act.Key()) {
		if dep.NeedsExecutedOutputs {
			executedDeps = append(executedDeps, dep.Key())
		} else {
			staticDeps = append(staticDeps, dep.Key())
		}
	}

	return &tasks.ResolveActionTask{
		Action:       act,
		Pipeline:     a.Pipeline,
		GroupVars:    a.Project.GroupVars[act.Key()],
		CLIVars:      a.vars,
		Env:          a.env,
		Tree:         tree,
		StaticDeps:   staticDeps,
		ExecutedDeps: executedDeps,
	}, nil
}

// Submit resolves (and, unless statusOnly, executes) the action named by
// key, blocking until the solver produces a result.
func (a *App) Submit(ctx context.Context, key action.Key, statusOnly, force bool) (*action.ExecutedAction, error) {
	act, ok := a.Project.Registry.Get(key)
	if !ok {
		return nil, coreerrors.NewCoreError(coreerrors.KindConfiguration, fmt.Sprintf("unknown action %q", key), nil)
	}

	router, ok := a.Routers.Lookup(act.Type)
	if !ok {
		return nil, coreerrors.NewCoreError(coreerrors.KindConfiguration,
			fmt.Sprintf("action %q: no provider router registered for type %q", key, act.Type), nil)
	}

	resolveTask, err := a.resolveActionTask(act)
	if err != nil {
		return nil, err
	}

	execTask := tasks.NewExecuteTask(key, act.Kind, a.actionTimeout(act), router, resolveTask)

	result := a.Solver.Submit(ctx, execTask, statusOnly, force)
	if result.Err != nil {
		return nil, result.Err
	}
	if result.Aborted {
		return nil, coreerrors.NewCoreError(coreerrors.KindRuntime, fmt.Sprintf("action %q aborted", key), nil)
	}

	value := result.Value
	if outcome, ok := value.(solver.StatusOutcome); ok {
		value = outcome.Value
	}
	executed, ok := value.(*action.ExecutedAction)
	if !ok {
		return nil, coreerrors.NewInternalError(fmt.Sprintf("action %q produced unexpected result type", key), nil)
	}
	return executed, nil
}

// RunAction implements workflow.ActionRunner, letting a workflow step
// dispatch into the solver the same way the CLI's run command does, with
// the step's variable overrides layered on top of the action's own.
func (a *App) RunAction(ctx context.Context, ref config.WorkflowActionRef) (map[string]any, error) {
	key, err := action.ParseKey(ref.Kind + "." + ref.Name)
	if err != nil {
		return nil, err
	}

	if len(ref.Variables) > 0 {
		sub := *a
		merged := make(map[string]any, len(a.vars)+len(ref.Variables))
		for k, v := range a.vars {
			merged[k] = v
		}
		for k, v := range ref.Variables {
			merged[k] = v
		}
		sub.vars = merged
		executed, err := sub.Submit(ctx, key, false, false)
		if err != nil {
			return nil, err
		}
		return executed.Outputs, nil
	}

	executed, err := a.Submit(ctx, key, false, false)
	if err != nil {
		return nil, err
	}
	return executed.Outputs, nil
}

// Workflow loads and returns the parsed workflow file named name.yaml (or
// name, if it already carries an extension) from the project's
// workflows/ directory.
func (a *App) Workflow(name string) (*config.WorkflowFile, error) {
	fileName := name
	if filepath.Ext(name) == "" {
		fileName = name + ".yaml"
	}
	return config.ParseWorkflowFile(filepath.Join(a.Project.WorkflowsDir, fileName))
}

// NewRunner builds a workflow.Runner bound to this App as its ActionRunner.
func (a *App) NewRunner() *workflow.Runner {
	return workflow.New(a, a.Project.BaseDir, filepath.Join(a.Project.BaseDir, ".actioncore", "files"))
}
