package providers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/stackforge/actioncore/internal/action"
	"github.com/stackforge/actioncore/internal/provider"
	coreerrors "github.com/stackforge/actioncore/pkg/errors"
)

// GitRepoConfig is the action-type config a GitRepoRouter action's Spec
// decodes into: the repository to clone, where, and optionally which
// branch and clone depth.
type GitRepoConfig struct {
	URL         string
	Destination string
	Branch      string
	Depth       int
}

// GitRepoRouter fetches a git repository onto the local filesystem as a
// build action's source step, serving the "git-repo" action type. It uses
// go-git rather than shelling out to the system git binary.
type GitRepoRouter struct{}

var _ provider.Router = (*GitRepoRouter)(nil)

// Configure implements provider.Router.
func (GitRepoRouter) Configure(_ context.Context, cfg map[string]any) (provider.ConfigureResult, error) {
	return provider.ConfigureResult{Config: cfg, SupportedModes: []action.Mode{action.ModeDefault, action.ModeSync}}, nil
}

// Validate implements provider.Router.
func (GitRepoRouter) Validate(_ context.Context, a *action.Action) error {
	if a.Kind != action.KindBuild {
		return coreerrors.NewCoreError(coreerrors.KindValidation,
			fmt.Sprintf("action %s: git-repo only supports the build kind", a.Key()), nil)
	}
	cfg := decodeGitRepoConfig(a.Spec)
	if cfg.URL == "" || cfg.Destination == "" {
		return coreerrors.NewCoreError(coreerrors.KindValidation,
			fmt.Sprintf("action %s: git-repo requires url and destination", a.Key()), nil)
	}
	return nil
}

// GetOutputs implements provider.Router.
func (GitRepoRouter) GetOutputs(_ context.Context, resolved *action.ResolvedAction) (map[string]any, error) {
	cfg := decodeGitRepoConfig(resolved.ResolvedSpec)
	return map[string]any{"destination": cfg.Destination}, nil
}

// GetStatus implements provider.Router. Ready when destination is already
// a git checkout of the same remote URL on the requested branch.
func (GitRepoRouter) GetStatus(_ context.Context, resolved *action.ResolvedAction) (provider.StatusResult, error) {
	cfg := decodeGitRepoConfig(resolved.ResolvedSpec)

	if _, err := os.Stat(cfg.Destination); err != nil {
		return provider.StatusResult{State: action.StateMissing}, nil
	}

	repo, err := git.PlainOpen(cfg.Destination)
	if err != nil {
		return provider.StatusResult{State: action.StateOutdated, Detail: "destination exists but is not a git repository"}, nil
	}

	remote, err := repo.Remote("origin")
	if err != nil || len(remote.Config().URLs) == 0 || remote.Config().URLs[0] != cfg.URL {
		return provider.StatusResult{State: action.StateOutdated, Detail: "remote URL does not match"}, nil
	}

	if cfg.Branch != "" {
		head, err := repo.Head()
		if err != nil || head.Name().Short() != cfg.Branch {
			return provider.StatusResult{State: action.StateOutdated, Detail: "checked out branch does not match"}, nil
		}
	}

	return provider.StatusResult{State: action.StateReady, Detail: "checkout matches remote and branch"}, nil
}

// Execute implements provider.Router.
func (GitRepoRouter) Execute(ctx context.Context, _ action.Kind, resolved *action.ResolvedAction) (provider.ExecuteResult, error) {
	cfg := decodeGitRepoConfig(resolved.ResolvedSpec)

	if info, err := os.Stat(cfg.Destination); err == nil {
		if _, openErr := git.PlainOpen(cfg.Destination); openErr != nil {
			// Not a git checkout: clear it so PlainClone can take the path.
			if err := os.RemoveAll(cfg.Destination); err != nil {
				return provider.ExecuteResult{}, coreerrors.NewCoreError(coreerrors.KindFilesystem, "remove non-git destination", err)
			}
		} else if info.IsDir() {
			if err := os.RemoveAll(cfg.Destination); err != nil {
				return provider.ExecuteResult{}, coreerrors.NewCoreError(coreerrors.KindFilesystem, "remove stale checkout", err)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Destination), 0o755); err != nil {
		return provider.ExecuteResult{}, coreerrors.NewCoreError(coreerrors.KindFilesystem, "create parent directory", err)
	}

	opts := &git.CloneOptions{URL: cfg.URL}
	if cfg.Depth > 0 {
		opts.Depth = cfg.Depth
	}
	if cfg.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(cfg.Branch)
		opts.SingleBranch = true
	}

	if _, err := git.PlainCloneContext(ctx, cfg.Destination, false, opts); err != nil {
		return provider.ExecuteResult{}, coreerrors.NewCoreError(coreerrors.KindBuild,
			fmt.Sprintf("action %s: clone %s failed", resolved.Action.Key(), cfg.URL), err)
	}

	return provider.ExecuteResult{Outputs: map[string]any{"destination": cfg.Destination}}, nil
}

func decodeGitRepoConfig(spec map[string]any) GitRepoConfig {
	cfg := GitRepoConfig{}
	if spec == nil {
		return cfg
	}
	if v, ok := spec["url"].(string); ok {
		cfg.URL = v
	}
	if v, ok := spec["destination"].(string); ok {
		cfg.Destination = v
	}
	if v, ok := spec["branch"].(string); ok {
		cfg.Branch = v
	}
	if v, ok := spec["depth"].(int); ok {
		cfg.Depth = v
	} else if v, ok := spec["depth"].(float64); ok {
		cfg.Depth = int(v)
	}
	return cfg
}
