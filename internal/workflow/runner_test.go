package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stackforge/actioncore/internal/config"
)

type fakeActionRunner struct {
	outputs map[string]any
	err     error
	failFor string
	calls   int
}

func (f *fakeActionRunner) RunAction(_ context.Context, ref config.WorkflowActionRef) (map[string]any, error) {
	f.calls++
	if f.failFor != "" && ref.Name == f.failFor {
		return nil, f.err
	}
	return f.outputs, nil
}

func TestRunnerDropsDefaultStepsAfterFailureAndRunsOnError(t *testing.T) {
	t.Parallel()

	failing := &fakeActionRunner{err: errors.New("deploy failed"), failFor: "a"}
	r := New(failing, t.TempDir(), t.TempDir())

	file := &config.WorkflowFile{
		Name: "release",
		Steps: []config.WorkflowStep{
			{ID: "deploy-a", Action: &config.WorkflowActionRef{Kind: "deploy", Name: "a"}},
			{ID: "deploy-b", Action: &config.WorkflowActionRef{Kind: "deploy", Name: "b"}},
			{ID: "notify", When: "onError", Action: &config.WorkflowActionRef{Kind: "run", Name: "notify"}},
		},
	}

	out, err := r.Run(context.Background(), file, nil)
	require.Error(t, err)
	require.True(t, out.Failed())

	_, ranB := out.Steps["step-2"]
	require.False(t, ranB, "default-when step after a failure should be dropped")

	_, ranNotify := out.Steps["step-3"]
	require.True(t, ranNotify, "onError step should run once an earlier step failed")

	require.Equal(t, 2, failing.calls, "deploy-a and notify both invoke RunAction; deploy-b is dropped")
}

func TestRunnerAlwaysStepRunsAndClearsUnhandledError(t *testing.T) {
	t.Parallel()

	runner := &fakeActionRunner{outputs: map[string]any{"ok": true}}
	r := New(runner, t.TempDir(), t.TempDir())

	file := &config.WorkflowFile{
		Name: "cleanup",
		Steps: []config.WorkflowStep{
			{ID: "a", Name: "a", Action: &config.WorkflowActionRef{Kind: "deploy", Name: "a"}},
			{ID: "cleanup", Name: "cleanup", When: "always", Action: &config.WorkflowActionRef{Kind: "run", Name: "cleanup"}},
			{ID: "notify", Name: "notify", When: "onError", Action: &config.WorkflowActionRef{Kind: "run", Name: "notify"}},
		},
	}

	runner.err = errors.New("boom")
	runner.failFor = "a"
	out, err := r.Run(context.Background(), file, nil)
	require.Error(t, err)

	_, ranCleanup := out.Steps["cleanup"]
	require.True(t, ranCleanup)

	_, ranNotify := out.Steps["notify"]
	require.False(t, ranNotify, "the always step in between should have handled the earlier error")
}

func TestRunnerRunsDefaultStepAfterOnErrorHandlesFailure(t *testing.T) {
	t.Parallel()

	runner := &fakeActionRunner{outputs: map[string]any{}, err: errors.New("boom"), failFor: "a"}
	r := New(runner, t.TempDir(), t.TempDir())

	file := &config.WorkflowFile{
		Name: "recover",
		Steps: []config.WorkflowStep{
			{ID: "a", Action: &config.WorkflowActionRef{Kind: "deploy", Name: "a"}},
			{ID: "notify", When: "onError", Action: &config.WorkflowActionRef{Kind: "run", Name: "notify"}},
			{ID: "cleanup", Action: &config.WorkflowActionRef{Kind: "run", Name: "cleanup"}},
		},
	}

	out, err := r.Run(context.Background(), file, nil)
	require.Error(t, err)

	_, ranNotify := out.Steps["step-2"]
	require.True(t, ranNotify, "onError step should run after the earlier failure")

	_, ranCleanup := out.Steps["step-3"]
	require.True(t, ranCleanup, "default step after the handling onError step should run, not be dropped")
}

func TestRunnerSkipsStepsMarkedSkip(t *testing.T) {
	t.Parallel()

	runner := &fakeActionRunner{outputs: map[string]any{}}
	r := New(runner, t.TempDir(), t.TempDir())

	file := &config.WorkflowFile{
		Name: "skip-test",
		Steps: []config.WorkflowStep{
			{ID: "a", Skip: true, Action: &config.WorkflowActionRef{Kind: "run", Name: "a"}},
		},
	}

	out, err := r.Run(context.Background(), file, nil)
	require.NoError(t, err)
	require.Empty(t, out.Steps)
	require.Equal(t, 0, runner.calls)
}

func TestRunnerWritesFilesBeforeSteps(t *testing.T) {
	t.Parallel()

	filesRoot := t.TempDir()
	runner := &fakeActionRunner{outputs: map[string]any{}}
	r := New(runner, t.TempDir(), filesRoot)

	file := &config.WorkflowFile{
		Name: "with-files",
		Vars: map[string]any{"env": "staging"},
		Files: []config.WorkflowFileWrite{
			{Path: "config.txt", Content: "env=${variables.env}"},
		},
		Steps: []config.WorkflowStep{
			{ID: "a", Action: &config.WorkflowActionRef{Kind: "run", Name: "a"}},
		},
	}

	_, err := r.Run(context.Background(), file, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(filesRoot, "config.txt"))
	require.NoError(t, err)
	require.Equal(t, "env=staging", string(data))
}

func TestRunnerRejectsPersistentCommand(t *testing.T) {
	t.Parallel()

	r := New(nil, t.TempDir(), t.TempDir())
	file := &config.WorkflowFile{
		Name: "dev",
		Steps: []config.WorkflowStep{
			{ID: "watch", Command: "npm run build --watch"},
		},
	}

	out, err := r.Run(context.Background(), file, nil)
	require.Error(t, err)
	require.Len(t, out.Errors, 1)
}
