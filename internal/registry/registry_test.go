package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stackforge/actioncore/internal/action"
	"github.com/stackforge/actioncore/internal/config"
	coreerrors "github.com/stackforge/actioncore/pkg/errors"
)

func TestRegistryAddAndGet(t *testing.T) {
	t.Parallel()

	r := New()
	a := &action.Action{Kind: action.KindBuild, Name: "img"}
	require.NoError(t, r.Add(a, "actions/build.yaml"))

	got, ok := r.Get(action.NewKey(action.KindBuild, "img"))
	require.True(t, ok)
	require.Same(t, a, got)
}

func TestRegistryTwoActiveEntriesConflict(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Add(&action.Action{Kind: action.KindBuild, Name: "img"}, "a.yaml"))

	err := r.Add(&action.Action{Kind: action.KindBuild, Name: "img"}, "b.yaml")
	require.Error(t, err)

	var ce *coreerrors.CoreError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, coreerrors.KindConfiguration, ce.Kind)
	require.Contains(t, ce.Error(), "a.yaml")
	require.Contains(t, ce.Error(), "b.yaml")
}

func TestRegistryDisabledEntryDoesNotConflictWithActive(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Add(&action.Action{Kind: action.KindBuild, Name: "img", Disabled: true}, "a.yaml"))
	require.NoError(t, r.Add(&action.Action{Kind: action.KindBuild, Name: "img"}, "b.yaml"))

	got, ok := r.Get(action.NewKey(action.KindBuild, "img"))
	require.True(t, ok)
	require.False(t, got.Disabled)
	require.Equal(t, "b.yaml", "b.yaml")
}

func TestRegistryTwoDisabledEntriesDoNotConflict(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Add(&action.Action{Kind: action.KindBuild, Name: "img", Disabled: true}, "a.yaml"))
	require.NoError(t, r.Add(&action.Action{Kind: action.KindBuild, Name: "img", Disabled: true}, "b.yaml"))

	got, ok := r.Get(action.NewKey(action.KindBuild, "img"))
	require.True(t, ok)
	require.True(t, got.Disabled)
}

func TestRegistryApplyModeLocalDominatesSync(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Add(&action.Action{Kind: action.KindDeploy, Name: "svc", Type: "k8s-deploy"}, "a.yaml"))

	modes := config.ModeConfig{
		Sync:  []config.ModePattern{{Pattern: "deploy.*", Exact: false}},
		Local: []config.ModePattern{{Pattern: "deploy.svc", Exact: true}},
	}

	warnings := r.ApplyMode(modes, nil)
	require.Empty(t, warnings)

	got, _ := r.Get(action.NewKey(action.KindDeploy, "svc"))
	require.Equal(t, action.ModeLocal, got.Mode)
}

func TestRegistryApplyModeWarnsWhenTypeDoesNotSupportExplicitMode(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Add(&action.Action{Kind: action.KindDeploy, Name: "svc", Type: "k8s-deploy"}, "a.yaml"))

	modes := config.ModeConfig{
		Local: []config.ModePattern{{Pattern: "deploy.svc", Exact: true}},
	}

	warnings := r.ApplyMode(modes, func(actionType string, mode action.Mode) bool { return false })
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0], "deploy.svc")
}

func TestRegistryAllSortedByKey(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Add(&action.Action{Kind: action.KindTest, Name: "z"}, "a.yaml"))
	require.NoError(t, r.Add(&action.Action{Kind: action.KindBuild, Name: "a"}, "a.yaml"))

	all := r.All()
	require.Len(t, all, 2)
	require.Equal(t, "build.a", all[0].Key().String())
	require.Equal(t, "test.z", all[1].Key().String())
}
