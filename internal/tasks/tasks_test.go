package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stackforge/actioncore/internal/action"
	"github.com/stackforge/actioncore/internal/provider"
	"github.com/stackforge/actioncore/internal/resolve"
	"github.com/stackforge/actioncore/internal/solver"
)

func TestResolveActionTaskProcessPullsStaticAndExecutedDeps(t *testing.T) {
	t.Parallel()

	routers := provider.NewRegistry()
	routers.Register("docker-build", &provider.FixtureRouter{StaticOutputs: map[string]any{"tag": "v1"}})
	pipeline := resolve.New(routers)

	a := &action.Action{
		Kind: action.KindBuild,
		Name: "img",
		Type: "docker-build",
		Spec: map[string]any{
			"base":    "${actions.build.base.outputs.tag}",
			"runtime": "${actions.run.migrate.outputs.ok}",
		},
	}

	baseKey := action.NewKey(action.KindBuild, "base")
	migrateKey := action.NewKey(action.KindRun, "migrate")

	task := &ResolveActionTask{
		Action:       a,
		Pipeline:     pipeline,
		StaticDeps:   []action.Key{baseKey},
		ExecutedDeps: []action.Key{migrateKey},
	}

	baseResolved := &action.ResolvedAction{
		Action:        &action.Action{Kind: action.KindBuild, Name: "base"},
		StaticOutputs: map[string]any{"tag": "base:1"},
	}
	migrateExecuted := &action.ExecutedAction{
		Resolved: &action.ResolvedAction{Action: &action.Action{Kind: action.KindRun, Name: "migrate"}},
		Outputs:  map[string]any{"ok": true},
	}

	deps := map[string]solver.Result{
		resolveNodeKey(baseKey): {Value: baseResolved},
		execNodeKey(migrateKey): {Value: migrateExecuted},
	}

	out, err := task.Process(context.Background(), solver.StatusOutcome{}, deps, false)
	require.NoError(t, err)

	resolved, ok := out.(*action.ResolvedAction)
	require.True(t, ok)
	require.Equal(t, "base:1", resolved.ResolvedSpec["base"])
	require.Equal(t, true, resolved.ResolvedSpec["runtime"])
}

func TestExecuteTaskGetStatusAndProcess(t *testing.T) {
	t.Parallel()

	router := &provider.FixtureRouter{
		Status:     provider.StatusResult{State: action.StateOutdated},
		ExecuteOut: provider.ExecuteResult{Outputs: map[string]any{"digest": "sha256:1"}},
	}

	key := action.NewKey(action.KindBuild, "img")
	resolveTask := &ResolveActionTask{Action: &action.Action{Kind: action.KindBuild, Name: "img"}}
	execTask := NewExecuteTask(key, action.KindBuild, time.Second, router, resolveTask)

	resolvedAction := &action.ResolvedAction{Action: resolveTask.Action}
	deps := map[string]solver.Result{
		resolveTask.ActionKey(): {Value: resolvedAction},
	}

	outcome, err := execTask.GetStatus(context.Background(), deps)
	require.NoError(t, err)
	require.False(t, outcome.Ready)

	out, err := execTask.Process(context.Background(), outcome, deps, false)
	require.NoError(t, err)

	executed, ok := out.(*action.ExecutedAction)
	require.True(t, ok)
	require.Equal(t, "sha256:1", executed.Outputs["digest"])
	require.Equal(t, action.StateReady, executed.State)
}

func TestExecuteTaskBuildConcurrencyLimit(t *testing.T) {
	t.Parallel()

	key := action.NewKey(action.KindBuild, "img")
	resolveTask := &ResolveActionTask{Action: &action.Action{Kind: action.KindBuild, Name: "img"}}
	execTask := NewExecuteTask(key, action.KindBuild, 0, &provider.FixtureRouter{}, resolveTask)
	require.EqualValues(t, buildConcurrencyLimit, execTask.ConcurrencyLimit())

	runTask := NewExecuteTask(action.NewKey(action.KindRun, "x"), action.KindRun, 0, &provider.FixtureRouter{}, resolveTask)
	require.EqualValues(t, 0, runTask.ConcurrencyLimit())
}
