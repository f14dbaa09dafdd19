package providers

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/stackforge/actioncore/internal/action"
	"github.com/stackforge/actioncore/internal/provider"
	coreerrors "github.com/stackforge/actioncore/pkg/errors"
)

// FileSyncConfig is the action-type config a FileSyncRouter action's Spec
// decodes into: a source path copied onto a destination path, recursively
// when the source is a directory.
type FileSyncConfig struct {
	Source      string
	Destination string
	Recursive   bool
	Overwrite   bool
}

// FileSyncRouter deploys a file or directory tree onto the local
// filesystem by copying it byte for byte, serving deploy actions of the
// "filesync" action type. Status is content-hash based for a single-file
// source: a destination file that already hash-matches it is reported
// ready. A directory source is always reported outdated.
type FileSyncRouter struct{}

var _ provider.Router = (*FileSyncRouter)(nil)

// Configure implements provider.Router: file-sync only makes sense against
// the machine actioncore itself runs on.
func (FileSyncRouter) Configure(_ context.Context, cfg map[string]any) (provider.ConfigureResult, error) {
	return provider.ConfigureResult{Config: cfg, SupportedModes: []action.Mode{action.ModeLocal, action.ModeSync}}, nil
}

// Validate implements provider.Router.
func (FileSyncRouter) Validate(_ context.Context, a *action.Action) error {
	if a.Kind != action.KindDeploy {
		return coreerrors.NewCoreError(coreerrors.KindValidation,
			fmt.Sprintf("action %s: file-sync only supports the deploy kind", a.Key()), nil)
	}
	cfg := decodeFileSyncConfig(a.Spec)
	if cfg.Source == "" || cfg.Destination == "" {
		return coreerrors.NewCoreError(coreerrors.KindValidation,
			fmt.Sprintf("action %s: file-sync requires source and destination", a.Key()), nil)
	}
	return nil
}

// GetOutputs implements provider.Router.
func (FileSyncRouter) GetOutputs(_ context.Context, resolved *action.ResolvedAction) (map[string]any, error) {
	cfg := decodeFileSyncConfig(resolved.ResolvedSpec)
	return map[string]any{"destination": cfg.Destination}, nil
}

// GetStatus implements provider.Router.
func (FileSyncRouter) GetStatus(_ context.Context, resolved *action.ResolvedAction) (provider.StatusResult, error) {
	cfg := decodeFileSyncConfig(resolved.ResolvedSpec)

	srcInfo, err := os.Stat(cfg.Source)
	if err != nil {
		return provider.StatusResult{}, coreerrors.NewCoreError(coreerrors.KindFilesystem, "stat source", err)
	}

	if srcInfo.IsDir() {
		// Directory trees are re-synced unconditionally; hashing every file
		// on every status check isn't worth the savings for local copies.
		return provider.StatusResult{State: action.StateOutdated}, nil
	}

	dstInfo, err := os.Stat(cfg.Destination)
	if err != nil || dstInfo.IsDir() {
		return provider.StatusResult{State: action.StateMissing}, nil
	}

	srcHash, err := hashFile(cfg.Source)
	if err != nil {
		return provider.StatusResult{}, coreerrors.NewCoreError(coreerrors.KindFilesystem, "hash source", err)
	}
	dstHash, err := hashFile(cfg.Destination)
	if err != nil {
		return provider.StatusResult{}, coreerrors.NewCoreError(coreerrors.KindFilesystem, "hash destination", err)
	}

	if srcHash == dstHash {
		return provider.StatusResult{State: action.StateReady, Detail: "destination matches source"}, nil
	}
	return provider.StatusResult{State: action.StateOutdated, Detail: "destination content differs from source"}, nil
}

// Execute implements provider.Router.
func (FileSyncRouter) Execute(_ context.Context, _ action.Kind, resolved *action.ResolvedAction) (provider.ExecuteResult, error) {
	cfg := decodeFileSyncConfig(resolved.ResolvedSpec)

	srcInfo, err := os.Stat(cfg.Source)
	if err != nil {
		return provider.ExecuteResult{}, coreerrors.NewCoreError(coreerrors.KindFilesystem, "stat source", err)
	}

	if srcInfo.IsDir() {
		if !cfg.Recursive {
			return provider.ExecuteResult{}, coreerrors.NewCoreError(coreerrors.KindValidation,
				fmt.Sprintf("source %s is a directory; set recursive to sync it", cfg.Source), nil)
		}
		if err := copyDirectory(cfg.Source, cfg.Destination); err != nil {
			return provider.ExecuteResult{}, coreerrors.NewCoreError(coreerrors.KindFilesystem, "copy directory", err)
		}
	} else if err := copyFile(cfg.Source, cfg.Destination, cfg.Overwrite); err != nil {
		return provider.ExecuteResult{}, coreerrors.NewCoreError(coreerrors.KindFilesystem, "copy file", err)
	}

	return provider.ExecuteResult{Outputs: map[string]any{"destination": cfg.Destination}}, nil
}

func decodeFileSyncConfig(spec map[string]any) FileSyncConfig {
	cfg := FileSyncConfig{}
	if spec == nil {
		return cfg
	}
	if v, ok := spec["source"].(string); ok {
		cfg.Source = v
	}
	if v, ok := spec["destination"].(string); ok {
		cfg.Destination = v
	}
	if v, ok := spec["recursive"].(bool); ok {
		cfg.Recursive = v
	}
	if v, ok := spec["overwrite"].(bool); ok {
		cfg.Overwrite = v
	}
	return cfg
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

func copyFile(src, dst string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(dst); err == nil {
			return fmt.Errorf("destination %s exists", dst)
		}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}

func copyDirectory(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target, true)
	})
}
