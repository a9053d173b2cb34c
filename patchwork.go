package patchwork

import (
	"context"
	"log/slog"

	"github.com/aretw0/patchwork/internal/platform"
	"github.com/aretw0/patchwork/pkg/core"
	"github.com/aretw0/patchwork/pkg/patch"
	"github.com/aretw0/patchwork/pkg/typed"
)

// Version of the library and the CLI.
const Version = "0.4.0"

// --- Types ---

// Workspace bundles a store with its service and patch engine.
type Workspace = platform.Workspace

// Config is the project configuration read from patchwork.yaml.
type Config = platform.Config

// DocumentModel is a typed view of a document.
type DocumentModel[T any] = typed.DocumentModel[T]

// TypedRepository gives type-safe access to the documents of one type.
type TypedRepository[T any] = typed.Repository[T]

// --- Configuration ---

// Option defines a functional option for configuring patchwork.
type Option = platform.Option

// WithAutoInit enables automatic initialization of the store (creates directory and git init).
func WithAutoInit(auto bool) Option {
	return platform.WithAutoInit(auto)
}

// WithVersioning enables or disables version control (e.g. Git).
func WithVersioning(enabled bool) Option {
	return platform.WithVersioning(enabled)
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithMustExist ensures the store directory must already exist.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithLogger sets the logger for the store and the engine.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithStore injects a custom storage adapter.
func WithStore(store core.Store) Option {
	return platform.WithStore(store)
}

// WithAdapter selects the storage adapter by name ("fs", "memory", "redis").
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithSystemDir sets the hidden directory name (e.g. ".patchwork").
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithFormat sets the file format of new documents ("json" or "yaml").
func WithFormat(format string) Option {
	return platform.WithFormat(format)
}

// WithAuthor sets the git identity of commits made by the fs adapter.
func WithAuthor(name, email string) Option {
	return platform.WithAuthor(name, email)
}

// WithPrefix sets the redis key prefix.
func WithPrefix(prefix string) Option {
	return platform.WithPrefix(prefix)
}

// WithEventBuffer sets the size of the event channels returned by Watch.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// WithReadOnly rejects every write.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithDevSafety toggles the temporary sandbox used under `go run` and `go test`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithSchemas registers reference and blacklist declarations per document type.
func WithSchemas(schemas ...*core.Schema) Option {
	return platform.WithSchemas(schemas...)
}

// WithRules registers declarative middleware.
func WithRules(rules ...patch.RuleSpec) Option {
	return platform.WithRules(rules...)
}

// WithBlacklist denies paths for every document type.
func WithBlacklist(patterns ...string) Option {
	return platform.WithBlacklist(patterns...)
}

// WithConfig applies a loaded project configuration.
func WithConfig(cfg *Config) Option {
	return platform.WithConfig(cfg)
}

// --- Factory ---

// New opens the store at uri and wires the patch engine over it.
func New(uri string, opts ...Option) (*Workspace, error) {
	return platform.New(context.Background(), uri, opts...)
}

// Open finds patchwork.yaml from dir upwards and opens the workspace it describes.
func Open(dir string, opts ...Option) (*Workspace, error) {
	return platform.Open(context.Background(), dir, opts...)
}

// LoadConfig reads a project configuration file.
func LoadConfig(path string) (*Config, error) {
	return platform.LoadConfig(path)
}

// NewTypedRepository creates a typed repository for docType, patching
// through the workspace engine.
func NewTypedRepository[T any](ws *Workspace, docType string) *TypedRepository[T] {
	return typed.NewRepository[T](ws.Store, docType).WithEngine(ws.Engine)
}

// --- Safety & Utils ---

// ResolvePath determines the actual store path based on dev safety rules.
func ResolvePath(userPath string, forceTemp bool) string {
	return platform.ResolvePath(userPath, forceTemp)
}

// IsDevRun reports whether the process runs via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindRoot looks upwards for a project root indicator.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}

// --- Change Reasons ---

const (
	CommitTypeFeat     = platform.CommitTypeFeat
	CommitTypeFix      = platform.CommitTypeFix
	CommitTypeDocs     = platform.CommitTypeDocs
	CommitTypeRefactor = platform.CommitTypeRefactor
	CommitTypeChore    = platform.CommitTypeChore
)

// FormatReason builds a Conventional Commit style change reason.
func FormatReason(ctype, scope, subject, body string) string {
	return platform.FormatReason(ctype, scope, subject, body)
}

// AppendFooter appends the patchwork footer to a free-form reason.
func AppendFooter(msg string) string {
	return platform.AppendFooter(msg)
}
