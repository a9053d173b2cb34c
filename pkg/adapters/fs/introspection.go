package fs

import (
	"github.com/aretw0/introspection"

	"github.com/aretw0/patchwork/pkg/core"
)

// RepositoryState exposes internal state for observability.
type RepositoryState struct {
	Path          string   `json:"path"`
	SystemDir     string   `json:"system_dir"`
	Format        string   `json:"format"`
	CacheSize     int      `json:"cache_size"`
	Gitless       bool     `json:"gitless"`
	ReadOnly      bool     `json:"read_only"`
	Strict        bool     `json:"strict"`
	Serializers   []string `json:"serializers"`
	WatcherActive bool     `json:"watcher_active"`
	ChangeSets    int      `json:"change_sets"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RepositoryState{
		Path:          r.Path,
		SystemDir:     r.config.SystemDir,
		Format:        r.config.Format,
		CacheSize:     r.cache.Len(),
		Gitless:       r.config.Gitless,
		ReadOnly:      r.config.ReadOnly,
		Strict:        r.config.Strict,
		Serializers:   append([]string(nil), r.exts...),
		WatcherActive: r.watcherActive,
		ChangeSets:    r.commits,
	}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "fs-repository"
}

var (
	_ core.Transactional           = (*Repository)(nil)
	_ core.Watchable               = (*Repository)(nil)
	_ introspection.Introspectable = (*Repository)(nil)
	_ introspection.Component      = (*Repository)(nil)
)

func (r *Repository) setWatcherActive(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watcherActive = active
}
