package providers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stackforge/actioncore/internal/action"
)

func TestSymlinkRouterGetStatusMissingTarget(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r := SymlinkRouter{}
	resolved := &action.ResolvedAction{
		Action:       &action.Action{Kind: action.KindDeploy, Name: "x"},
		ResolvedSpec: map[string]any{"source": filepath.Join(dir, "src"), "target": filepath.Join(dir, "link")},
	}
	status, err := r.GetStatus(context.Background(), resolved)
	require.NoError(t, err)
	require.Equal(t, action.StateMissing, status.State)
}

func TestSymlinkRouterExecuteThenStatusIsReady(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.WriteFile(src, []byte("hi"), 0o644))
	target := filepath.Join(dir, "link")

	r := SymlinkRouter{}
	resolved := &action.ResolvedAction{
		Action:       &action.Action{Kind: action.KindDeploy, Name: "x"},
		ResolvedSpec: map[string]any{"source": src, "target": target},
	}

	_, err := r.Execute(context.Background(), action.KindDeploy, resolved)
	require.NoError(t, err)

	status, err := r.GetStatus(context.Background(), resolved)
	require.NoError(t, err)
	require.Equal(t, action.StateReady, status.State)
}

func TestSymlinkRouterExecuteRejectsExistingTargetWithoutForce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.WriteFile(src, []byte("hi"), 0o644))
	target := filepath.Join(dir, "link")
	require.NoError(t, os.WriteFile(target, []byte("existing"), 0o644))

	r := SymlinkRouter{}
	resolved := &action.ResolvedAction{
		Action:       &action.Action{Kind: action.KindDeploy, Name: "x"},
		ResolvedSpec: map[string]any{"source": src, "target": target},
	}
	_, err := r.Execute(context.Background(), action.KindDeploy, resolved)
	require.Error(t, err)
}
