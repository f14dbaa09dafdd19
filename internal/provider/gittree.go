package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	git "github.com/go-git/go-git/v5"

	"github.com/stackforge/actioncore/internal/action"
	coreerrors "github.com/stackforge/actioncore/pkg/errors"
)

// GitTreeVersionProvider computes a TreeVersion from a git working tree: the
// content hash is derived from the current HEAD commit plus the sorted list
// of files under basePath that match the include/exclude globs. File
// contents are not hashed: an uncommitted edit to an existing file leaves
// the version unchanged, while adding or removing a matched file changes it.
type GitTreeVersionProvider struct{}

// NewGitTreeVersionProvider returns a GitTreeVersionProvider.
func NewGitTreeVersionProvider() *GitTreeVersionProvider {
	return &GitTreeVersionProvider{}
}

// GetTreeVersion implements TreeVersionProvider.
func (p *GitTreeVersionProvider) GetTreeVersion(_ context.Context, req TreeVersionRequest) (action.TreeVersion, error) {
	repo, err := git.PlainOpenWithOptions(req.BasePath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return action.TreeVersion{}, coreerrors.NewCoreError(coreerrors.KindFilesystem,
			fmt.Sprintf("open git repository at %s", req.BasePath), err)
	}

	head, err := repo.Head()
	if err != nil {
		return action.TreeVersion{}, coreerrors.NewCoreError(coreerrors.KindFilesystem,
			fmt.Sprintf("resolve HEAD at %s", req.BasePath), err)
	}

	files, err := matchedFiles(req.BasePath, req.Include, req.Exclude)
	if err != nil {
		return action.TreeVersion{}, coreerrors.NewCoreError(coreerrors.KindFilesystem,
			fmt.Sprintf("scan tree at %s", req.BasePath), err)
	}

	h := sha256.New()
	h.Write([]byte(head.Hash().String()))
	for _, f := range files {
		h.Write([]byte(f))
	}

	return action.TreeVersion{
		ContentHash: hex.EncodeToString(h.Sum(nil)),
		Files:       files,
	}, nil
}

// matchedFiles walks basePath and returns the POSIX-form relative paths of
// every file matching include (all files when empty) and none of exclude,
// sorted for deterministic hashing.
func matchedFiles(basePath string, include, exclude []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(basePath, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if len(include) > 0 && !matchesAny(include, rel) {
			return nil
		}
		if matchesAny(exclude, rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}
