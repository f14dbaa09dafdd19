package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stackforge/actioncore/internal/action"
)

func TestRegistryLookup(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	fixture := &FixtureRouter{StaticOutputs: map[string]any{"tag": "v1"}}
	r.Register("docker-build", fixture)

	got, ok := r.Lookup("docker-build")
	require.True(t, ok)
	require.Same(t, fixture, got)

	_, ok = r.Lookup("missing")
	require.False(t, ok)
}

func TestFixtureRouterGetOutputs(t *testing.T) {
	t.Parallel()

	fixture := &FixtureRouter{StaticOutputs: map[string]any{"tag": "v1"}}
	out, err := fixture.GetOutputs(context.Background(), &action.ResolvedAction{})
	require.NoError(t, err)
	require.Equal(t, "v1", out["tag"])
}

func TestFixtureRouterExecuteCountsCalls(t *testing.T) {
	t.Parallel()

	fixture := &FixtureRouter{ExecuteOut: ExecuteResult{Attached: true}}
	_, err := fixture.Execute(context.Background(), action.KindDeploy, &action.ResolvedAction{})
	require.NoError(t, err)
	_, err = fixture.Execute(context.Background(), action.KindDeploy, &action.ResolvedAction{})
	require.NoError(t, err)
	require.Equal(t, 2, fixture.ExecuteCalls)
}
