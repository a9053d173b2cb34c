package platform

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/patchwork/pkg/core"
	"github.com/aretw0/patchwork/pkg/patch"
)

// Workspace bundles a store with the service and the patch engine wired
// over it.
type Workspace struct {
	Store   core.Store
	Service *core.Service
	Engine  *patch.Engine
	Schemas core.Schemas
}

// New opens the store at uri and wires the engine with the configured
// schemas, rules and blacklist.
//
//	ws, err := platform.New("./data", platform.WithAutoInit(true))
func New(ctx context.Context, uri string, opts ...Option) (*Workspace, error) {
	o := defaultOptions().apply(opts)

	rules, err := patch.CompileRules(o.rules...)
	if err != nil {
		return nil, err
	}
	if _, err := patch.NewGuard(o.blacklist...); err != nil {
		return nil, err
	}

	store, err := openStore(ctx, uri, o)
	if err != nil {
		return nil, err
	}

	schemas := core.NewSchemas(o.schemas...)
	engineOpts := []patch.EngineOption{
		patch.WithSchemas(schemas),
		patch.WithRules(rules...),
		patch.WithBlacklist(o.blacklist...),
	}
	if o.logger != nil {
		engineOpts = append(engineOpts, patch.WithLogger(o.logger))
	}

	service := core.NewService(store)
	if size, ok := o.config["event_buffer"].(int); ok {
		service.SetEventBuffer(size)
	}

	return &Workspace{
		Store:   store,
		Service: service,
		Engine:  patch.NewEngine(store, engineOpts...),
		Schemas: schemas,
	}, nil
}

// Open loads the project configuration found from dir upwards and opens its
// workspace. Options given here override the file.
func Open(ctx context.Context, dir string, opts ...Option) (*Workspace, error) {
	cfg, err := FindConfig(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", ConfigFileName, err)
	}
	return New(ctx, cfg.URI(), append([]Option{WithConfig(cfg)}, opts...)...)
}

// Close releases the store when it holds resources (e.g. a redis client).
func (w *Workspace) Close() error {
	if c, ok := w.Store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
