package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stackforge/actioncore/internal/action"
)

func TestShellRouterValidateRejectsEmptyCommand(t *testing.T) {
	t.Parallel()

	r := ShellRouter{}
	err := r.Validate(context.Background(), &action.Action{Kind: action.KindRun, Name: "x", Spec: map[string]any{}})
	require.Error(t, err)
}

func TestShellRouterGetStatusWithoutCheckIsAlwaysOutdated(t *testing.T) {
	t.Parallel()

	r := ShellRouter{}
	resolved := &action.ResolvedAction{
		Action:       &action.Action{Kind: action.KindRun, Name: "x"},
		ResolvedSpec: map[string]any{"command": "echo hi"},
	}
	status, err := r.GetStatus(context.Background(), resolved)
	require.NoError(t, err)
	require.Equal(t, action.StateOutdated, status.State)
}

func TestShellRouterGetStatusHonorsCheckCommand(t *testing.T) {
	t.Parallel()

	r := ShellRouter{}
	resolved := &action.ResolvedAction{
		Action:       &action.Action{Kind: action.KindRun, Name: "x"},
		ResolvedSpec: map[string]any{"command": "true", "check": "true"},
	}
	status, err := r.GetStatus(context.Background(), resolved)
	require.NoError(t, err)
	require.Equal(t, action.StateReady, status.State)
}

func TestShellRouterExecuteCapturesOutput(t *testing.T) {
	t.Parallel()

	r := ShellRouter{}
	resolved := &action.ResolvedAction{
		Action:       &action.Action{Kind: action.KindRun, Name: "x"},
		ResolvedSpec: map[string]any{"command": "echo hello"},
	}
	out, err := r.Execute(context.Background(), action.KindRun, resolved)
	require.NoError(t, err)
	require.Contains(t, out.Outputs["stdout"], "hello")
}

func TestShellRouterExecuteReturnsErrorOnNonZeroExit(t *testing.T) {
	t.Parallel()

	r := ShellRouter{}
	resolved := &action.ResolvedAction{
		Action:       &action.Action{Kind: action.KindRun, Name: "x"},
		ResolvedSpec: map[string]any{"command": "exit 1"},
	}
	_, err := r.Execute(context.Background(), action.KindRun, resolved)
	require.Error(t, err)
}
