package provider

import (
	"context"
	"sync"

	"github.com/stackforge/actioncore/internal/action"
)

// CachingTreeVersionProvider memoizes an underlying TreeVersionProvider by
// (configFilePath, basePath), the keying TreeVersionProvider's doc comment
// promises callers. A tree is hashed once per process per action; repeated
// resolves of the same action (e.g. a build depended on by several deploys)
// reuse the first result instead of re-walking the source tree.
type CachingTreeVersionProvider struct {
	underlying TreeVersionProvider

	mu    sync.Mutex
	cache map[treeCacheKey]action.TreeVersion
}

type treeCacheKey struct {
	configFilePath string
	basePath       string
}

// NewCachingTreeVersionProvider wraps underlying with a (configFilePath,
// basePath)-keyed cache.
func NewCachingTreeVersionProvider(underlying TreeVersionProvider) *CachingTreeVersionProvider {
	return &CachingTreeVersionProvider{
		underlying: underlying,
		cache:      make(map[treeCacheKey]action.TreeVersion),
	}
}

// GetTreeVersion implements TreeVersionProvider.
func (p *CachingTreeVersionProvider) GetTreeVersion(ctx context.Context, req TreeVersionRequest) (action.TreeVersion, error) {
	key := treeCacheKey{configFilePath: req.ConfigFilePath, basePath: req.BasePath}

	p.mu.Lock()
	if v, ok := p.cache[key]; ok {
		p.mu.Unlock()
		return v, nil
	}
	p.mu.Unlock()

	v, err := p.underlying.GetTreeVersion(ctx, req)
	if err != nil {
		return action.TreeVersion{}, err
	}

	p.mu.Lock()
	p.cache[key] = v
	p.mu.Unlock()
	return v, nil
}
