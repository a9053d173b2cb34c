package platform

import (
	"log/slog"

	"github.com/aretw0/patchwork/pkg/core"
	"github.com/aretw0/patchwork/pkg/patch"
)

// options holds the internal configuration for a patchwork workspace.
type options struct {
	store     core.Store
	logger    *slog.Logger
	adapter   string
	config    map[string]any
	schemas   []*core.Schema
	rules     []patch.RuleSpec
	blacklist []string
}

// Option defines a functional option for configuring patchwork.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		adapter: "fs",
		config:  make(map[string]any),
	}
}

func (o *options) apply(opts []Option) *options {
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithAutoInit enables automatic initialization of the store (creates directory and git init).
func WithAutoInit(auto bool) Option {
	return func(o *options) {
		o.config["auto_init"] = auto
	}
}

// WithVersioning enables or disables version control (e.g. Git) for the fs adapter.
// When not set, it is detected from the directory.
func WithVersioning(enabled bool) Option {
	return func(o *options) {
		o.config["gitless"] = !enabled
	}
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.config["temp_dir"] = force
	}
}

// WithMustExist ensures the store directory must already exist.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.config["must_exist"] = must
	}
}

// WithLogger sets the logger for the store and the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStore injects a custom storage adapter. The adapter option is then ignored.
func WithStore(store core.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithAdapter selects the storage adapter by name: "fs" (default), "memory" or "redis".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithSystemDir sets the hidden directory of the fs adapter. Defaults to ".patchwork".
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.config["system_dir"] = name
	}
}

// WithFormat sets the file format of new documents in the fs adapter ("json" or "yaml").
func WithFormat(format string) Option {
	return func(o *options) {
		o.config["format"] = format
	}
}

// WithAuthor sets the git identity of commits made by the fs adapter.
// By default git's own configuration applies.
func WithAuthor(name, email string) Option {
	return func(o *options) {
		o.config["author_name"] = name
		o.config["author_email"] = email
	}
}

// WithPrefix sets the key prefix of the redis adapter.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.config["prefix"] = prefix
	}
}

// WithEventBuffer sets the buffer size of channels returned by Service.Watch.
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.config["event_buffer"] = size
	}
}

// WithStrict decodes JSON numbers as json.Number to preserve precision.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.config["strict"] = strict
	}
}

// WithWatcherErrorHandler registers a callback for errors of the fs watch loop.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.config["watcher_error_handler"] = fn
	}
}

// WithReadOnly enables read-only mode: writes fail with core.ErrReadOnly and
// the dev sandbox is bypassed.
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.config["read_only"] = enabled
	}
}

// WithDevSafety controls the sandbox used when running via `go run` or `go test`.
// By default (true), the fs adapter is redirected to a temporary directory.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.config["dev_safety"] = enabled
	}
}

// WithSchemas registers document schemas (reference fields and blacklists).
func WithSchemas(schemas ...*core.Schema) Option {
	return func(o *options) {
		o.schemas = append(o.schemas, schemas...)
	}
}

// WithRules registers declarative middleware applied to every patch.
func WithRules(rules ...patch.RuleSpec) Option {
	return func(o *options) {
		o.rules = append(o.rules, rules...)
	}
}

// WithBlacklist registers paths no patch may touch, for every type.
func WithBlacklist(patterns ...string) Option {
	return func(o *options) {
		o.blacklist = append(o.blacklist, patterns...)
	}
}

// WithConfig applies a project configuration. Options given after it win.
func WithConfig(cfg *Config) Option {
	return func(o *options) {
		if cfg == nil {
			return
		}
		if cfg.Adapter != "" {
			o.adapter = cfg.Adapter
		}
		if cfg.Format != "" {
			o.config["format"] = cfg.Format
		}
		if cfg.Prefix != "" {
			o.config["prefix"] = cfg.Prefix
		}
		if cfg.SystemDir != "" {
			o.config["system_dir"] = cfg.SystemDir
		}
		if cfg.Versioning != nil {
			o.config["gitless"] = !*cfg.Versioning
		}
		o.schemas = append(o.schemas, cfg.Schemas...)
		o.rules = append(o.rules, cfg.Rules...)
		o.blacklist = append(o.blacklist, cfg.Blacklist...)
	}
}
