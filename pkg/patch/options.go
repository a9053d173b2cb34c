package patch

import (
	"log/slog"

	"github.com/aretw0/patchwork/pkg/core"
)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger for the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSchemas sets the source of reference maps and per-type blacklists.
func WithSchemas(schemas core.SchemaSource) EngineOption {
	return func(e *Engine) {
		e.schemas = schemas
	}
}

// WithRules registers middleware applied to every patch, ahead of the
// per-call middleware.
func WithRules(rules ...Rule) EngineOption {
	return func(e *Engine) {
		e.rules = append(e.rules, rules...)
	}
}

// WithBlacklist registers patterns denied for every document type.
func WithBlacklist(patterns ...string) EngineOption {
	return func(e *Engine) {
		e.blacklist = append(e.blacklist, patterns...)
	}
}

// WithIDGenerator replaces the uuid generator used for create-and-link.
func WithIDGenerator(fn func() string) EngineOption {
	return func(e *Engine) {
		e.newID = fn
	}
}

// ApplyOptions controls a single Apply call.
type ApplyOptions struct {
	// Autosave commits mutated and created documents after a successful
	// apply. When false they are returned uncommitted in the Result.
	Autosave bool
	// Middleware runs after the engine-wide rules.
	Middleware []Rule
	// Blacklist adds patterns denied for the root document of this call.
	Blacklist []string
	// Populate loads unresolved references along operation paths.
	Populate bool
	// ChangeReason is handed to the store through core.ChangeReasonKey.
	ChangeReason string
}

// ApplyOption configures a single Apply call.
type ApplyOption func(*ApplyOptions)

// DefaultApplyOptions autosaves and populates.
func DefaultApplyOptions() ApplyOptions {
	return ApplyOptions{Autosave: true, Populate: true}
}

// Autosave toggles committing after a successful apply.
func Autosave(enabled bool) ApplyOption {
	return func(o *ApplyOptions) {
		o.Autosave = enabled
	}
}

// Middleware appends per-call rules.
func Middleware(rules ...Rule) ApplyOption {
	return func(o *ApplyOptions) {
		o.Middleware = append(o.Middleware, rules...)
	}
}

// Blacklist appends per-call denied patterns.
func Blacklist(patterns ...string) ApplyOption {
	return func(o *ApplyOptions) {
		o.Blacklist = append(o.Blacklist, patterns...)
	}
}

// Populate toggles loading references along operation paths.
func Populate(enabled bool) ApplyOption {
	return func(o *ApplyOptions) {
		o.Populate = enabled
	}
}

// Reason sets the change reason recorded by versioned stores.
func Reason(msg string) ApplyOption {
	return func(o *ApplyOptions) {
		o.ChangeReason = msg
	}
}
