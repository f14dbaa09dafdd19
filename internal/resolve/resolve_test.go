package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stackforge/actioncore/internal/action"
	"github.com/stackforge/actioncore/internal/provider"
	coreerrors "github.com/stackforge/actioncore/pkg/errors"
)

func TestPipelineResolveMergesVariablesAndResolvesSpec(t *testing.T) {
	t.Parallel()

	routers := provider.NewRegistry()
	fixture := &provider.FixtureRouter{StaticOutputs: map[string]any{"tag": "v1"}}
	routers.Register("docker-build", fixture)

	p := New(routers)

	a := &action.Action{
		Kind: action.KindBuild,
		Name: "img",
		Type: "docker-build",
		Spec: map[string]any{
			"tag": "${variables.env}",
		},
		Variables: map[string]any{"env": "prod"},
	}

	resolved, err := p.Resolve(context.Background(), Input{
		Action:    a,
		GroupVars: map[string]any{"env": "staging", "region": "us-east"},
	})
	require.NoError(t, err)
	require.Equal(t, "prod", resolved.MergedVariables["env"])
	require.Equal(t, "us-east", resolved.MergedVariables["region"])
	require.Equal(t, "prod", resolved.ResolvedSpec["tag"])
	require.Equal(t, "v1", resolved.StaticOutputs["tag"])
}

func TestPipelineResolveCLIOverridesWinOverActionVariables(t *testing.T) {
	t.Parallel()

	routers := provider.NewRegistry()
	routers.Register("docker-build", &provider.FixtureRouter{})
	p := New(routers)

	a := &action.Action{
		Kind:      action.KindBuild,
		Name:      "img",
		Type:      "docker-build",
		Variables: map[string]any{"env": "prod"},
	}

	resolved, err := p.Resolve(context.Background(), Input{
		Action:       a,
		CLIOverrides: map[string]any{"env": "canary"},
	})
	require.NoError(t, err)
	require.Equal(t, "canary", resolved.MergedVariables["env"])
}

func TestPipelineResolveExposesDependencyOutputs(t *testing.T) {
	t.Parallel()

	routers := provider.NewRegistry()
	routers.Register("k8s-deploy", &provider.FixtureRouter{})
	p := New(routers)

	deploy := &action.Action{
		Kind: action.KindDeploy,
		Name: "svc",
		Type: "k8s-deploy",
		Spec: map[string]any{
			"image": "${actions.build.img.outputs.tag}",
		},
	}

	deps := DependencyResults{
		Resolved: map[action.Key]*action.ResolvedAction{
			action.NewKey(action.KindBuild, "img"): {
				Action:        &action.Action{Kind: action.KindBuild, Name: "img"},
				StaticOutputs: map[string]any{"tag": "sha256:abc"},
			},
		},
	}

	resolved, err := p.Resolve(context.Background(), Input{Action: deploy, Dependencies: deps})
	require.NoError(t, err)
	require.Equal(t, "sha256:abc", resolved.ResolvedSpec["image"])
}

func TestPipelineResolveRejectsConfigureMutatingNoTemplateField(t *testing.T) {
	t.Parallel()

	routers := provider.NewRegistry()
	fixture := &provider.FixtureRouter{
		NoTemplateKeys: []string{"destination"},
		ConfigureFn: func(cfg map[string]any) (provider.ConfigureResult, error) {
			cfg["destination"] = "/mutated"
			return provider.ConfigureResult{Config: cfg}, nil
		},
	}
	routers.Register("filesync", fixture)
	p := New(routers)

	a := &action.Action{
		Kind: action.KindDeploy,
		Name: "app",
		Type: "filesync",
		Spec: map[string]any{"destination": "/srv/app"},
	}

	_, err := p.Resolve(context.Background(), Input{Action: a})
	require.Error(t, err)

	ce, ok := err.(*coreerrors.CoreError)
	require.True(t, ok)
	require.Equal(t, coreerrors.KindPlugin, ce.Kind)
}

func TestPipelineResolveAllowsConfigureWhenNoTemplateFieldUnchanged(t *testing.T) {
	t.Parallel()

	routers := provider.NewRegistry()
	fixture := &provider.FixtureRouter{NoTemplateKeys: []string{"destination"}}
	routers.Register("filesync", fixture)
	p := New(routers)

	a := &action.Action{
		Kind: action.KindDeploy,
		Name: "app",
		Type: "filesync",
		Spec: map[string]any{"destination": "/srv/app"},
	}

	resolved, err := p.Resolve(context.Background(), Input{Action: a})
	require.NoError(t, err)
	require.Equal(t, "/srv/app", resolved.ResolvedSpec["destination"])
}

func TestPipelineResolveValidatesBaseTypeChain(t *testing.T) {
	t.Parallel()

	routers := provider.NewRegistry()
	baseValidateCalls := 0
	routers.Register("service", &provider.FixtureRouter{
		ValidateFn: func(_ context.Context, a *action.Action) error {
			baseValidateCalls++
			require.Equal(t, "service", a.Type)
			return nil
		},
	})
	routers.Register("web-service", &provider.FixtureRouter{})
	p := New(routers)

	a := &action.Action{
		Kind:    action.KindDeploy,
		Name:    "app",
		Type:    "web-service",
		Extends: []string{"service"},
	}

	_, err := p.Resolve(context.Background(), Input{Action: a})
	require.NoError(t, err)
	require.Equal(t, 1, baseValidateCalls)
}

func TestPipelineResolveFailsWhenExtendedTypeUnregistered(t *testing.T) {
	t.Parallel()

	routers := provider.NewRegistry()
	routers.Register("web-service", &provider.FixtureRouter{})
	p := New(routers)

	a := &action.Action{
		Kind:    action.KindDeploy,
		Name:    "app",
		Type:    "web-service",
		Extends: []string{"service"},
	}

	_, err := p.Resolve(context.Background(), Input{Action: a})
	require.Error(t, err)
}

func TestPipelineResolveFailsWhenBaseTypeValidationFails(t *testing.T) {
	t.Parallel()

	routers := provider.NewRegistry()
	routers.Register("service", &provider.FixtureRouter{ValidateErr: coreerrors.NewCoreError(coreerrors.KindValidation, "missing port", nil)})
	routers.Register("web-service", &provider.FixtureRouter{})
	p := New(routers)

	a := &action.Action{
		Kind:    action.KindDeploy,
		Name:    "app",
		Type:    "web-service",
		Extends: []string{"service"},
	}

	_, err := p.Resolve(context.Background(), Input{Action: a})
	require.Error(t, err)
}

func TestPipelineResolveWalksTransitiveBaseTypeChain(t *testing.T) {
	t.Parallel()

	routers := provider.NewRegistry()
	var validated []string
	routers.Register("workload", &provider.FixtureRouter{
		ValidateFn: func(_ context.Context, a *action.Action) error {
			validated = append(validated, a.Type)
			return nil
		},
	})
	routers.Register("service", &provider.FixtureRouter{
		ExtendsTypes: []string{"workload"},
		ValidateFn: func(_ context.Context, a *action.Action) error {
			validated = append(validated, a.Type)
			return nil
		},
	})
	routers.Register("web-service", &provider.FixtureRouter{})
	p := New(routers)

	a := &action.Action{
		Kind:    action.KindDeploy,
		Name:    "app",
		Type:    "web-service",
		Extends: []string{"service"},
	}

	_, err := p.Resolve(context.Background(), Input{Action: a})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"service", "workload"}, validated)
}

func TestPipelineResolveFailsWithoutRegisteredRouter(t *testing.T) {
	t.Parallel()

	p := New(provider.NewRegistry())
	_, err := p.Resolve(context.Background(), Input{Action: &action.Action{Kind: action.KindBuild, Name: "img", Type: "unknown"}})
	require.Error(t, err)
}
