package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/patchwork/pkg/adapters/fs"
	"github.com/aretw0/patchwork/pkg/adapters/memory"
	"github.com/aretw0/patchwork/pkg/adapters/redis"
	"github.com/aretw0/patchwork/pkg/core"
)

// OpenStore creates and initializes the storage adapter selected by the
// options. The uri is adapter-specific: a directory for "fs", a redis://
// url for "redis", ignored for "memory".
func OpenStore(ctx context.Context, uri string, opts ...Option) (core.Store, error) {
	return openStore(ctx, uri, defaultOptions().apply(opts))
}

func openStore(ctx context.Context, uri string, o *options) (core.Store, error) {
	if o.store != nil {
		return o.store, nil
	}

	readOnly, _ := o.config["read_only"].(bool)

	switch o.adapter {
	case "memory":
		return memory.New(memory.WithLogger(o.logger), memory.WithReadOnly(readOnly)), nil
	case "redis":
		ropts := []redis.Option{redis.WithReadOnly(readOnly)}
		if o.logger != nil {
			ropts = append(ropts, redis.WithLogger(o.logger))
		}
		if prefix, ok := o.config["prefix"].(string); ok && prefix != "" {
			ropts = append(ropts, redis.WithPrefix(prefix))
		}
		return redis.Open(ctx, uri, ropts...)
	case "fs", "":
		repo, err := initFS(uri, o)
		if err != nil {
			return nil, err
		}
		if err := repo.Initialize(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}
}

// initFS builds the filesystem repository: dev sandboxing, then gitless
// detection, then the repository config.
func initFS(path string, o *options) (*fs.Repository, error) {
	autoInit, _ := o.config["auto_init"].(bool)
	gitless, _ := o.config["gitless"].(bool)
	tempDir, _ := o.config["temp_dir"].(bool)
	mustExist, _ := o.config["must_exist"].(bool)
	strict, _ := o.config["strict"].(bool)
	format, _ := o.config["format"].(string)
	systemDir, _ := o.config["system_dir"].(string)
	errorHandler, _ := o.config["watcher_error_handler"].(func(error))
	readOnly, _ := o.config["read_only"].(bool)
	authorName, _ := o.config["author_name"].(string)
	authorEmail, _ := o.config["author_email"].(string)

	devSafety := true
	if v, ok := o.config["dev_safety"].(bool); ok {
		devSafety = v
	}
	bypassSafety := readOnly || !devSafety

	useTemp := tempDir || (IsDevRun() && !bypassSafety)
	resolved := ResolvePath(path, useTemp)

	if o.logger != nil && IsDevRun() {
		switch {
		case readOnly:
			o.logger.Debug("running in READ-ONLY mode (bypassing dev sandbox)", "path", resolved)
		case bypassSafety:
			o.logger.Warn("running in UNSAFE mode (bypassing dev sandbox)", "path", resolved)
		default:
			o.logger.Debug("running in SAFE mode (dev sandbox enabled)", "original_path", path, "path", resolved)
		}
	}

	if systemDir == "" {
		systemDir = fs.DefaultSystemDir
	}

	// Without an explicit choice: an existing .git means versioned; a fresh
	// directory with auto init gets git unless it already holds a gitless store.
	if _, ok := o.config["gitless"]; !ok {
		switch {
		case hasFile(resolved, ".git"):
			gitless = false
		case autoInit:
			gitless = hasFile(resolved, systemDir)
		default:
			gitless = true
		}
		if !gitless && !fs.IsGitInstalled() {
			if o.logger != nil {
				o.logger.Warn("git not installed, falling back to gitless mode", "path", resolved)
			}
			gitless = true
		}
	}

	if format != "" {
		if _, ok := fs.DefaultSerializers(strict)[normalizeExt(format)]; !ok {
			return nil, fmt.Errorf("unsupported format: %s", format)
		}
	}

	if useTemp && autoInit {
		if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
			return nil, fmt.Errorf("failed to create sandbox: %w", err)
		}
	}

	return fs.NewRepository(fs.Config{
		Path:         resolved,
		Format:       format,
		AutoInit:     autoInit,
		Gitless:      gitless,
		MustExist:    mustExist || (!autoInit && !useTemp),
		ReadOnly:     readOnly,
		Strict:       strict,
		Logger:       o.logger,
		SystemDir:    systemDir,
		AuthorName:   authorName,
		AuthorEmail:  authorEmail,
		ErrorHandler: errorHandler,
	}), nil
}

func normalizeExt(format string) string {
	if format != "" && format[0] != '.' {
		return "." + format
	}
	return format
}
