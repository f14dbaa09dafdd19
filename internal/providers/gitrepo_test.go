package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stackforge/actioncore/internal/action"
)

func TestGitRepoRouterValidateRejectsNonBuildKind(t *testing.T) {
	t.Parallel()

	r := GitRepoRouter{}
	a := &action.Action{Kind: action.KindDeploy, Name: "x", Spec: map[string]any{"url": "u", "destination": "d"}}
	require.Error(t, r.Validate(context.Background(), a))
}

func TestGitRepoRouterGetStatusMissingDestination(t *testing.T) {
	t.Parallel()

	r := GitRepoRouter{}
	resolved := &action.ResolvedAction{
		Action:       &action.Action{Kind: action.KindBuild, Name: "x"},
		ResolvedSpec: map[string]any{"url": "https://example.com/repo.git", "destination": "/nonexistent/path/repo"},
	}
	status, err := r.GetStatus(context.Background(), resolved)
	require.NoError(t, err)
	require.Equal(t, action.StateMissing, status.State)
}

func TestDecodeGitRepoConfigAcceptsFloatDepth(t *testing.T) {
	t.Parallel()

	cfg := decodeGitRepoConfig(map[string]any{"url": "u", "destination": "d", "depth": float64(3)})
	require.Equal(t, 3, cfg.Depth)
}
