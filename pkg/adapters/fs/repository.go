// Package fs stores documents as files, one per document, under
// {root}/{type}/{id}.{ext}. Every change set is optionally committed to git
// with the change reason carried in the context.
package fs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/patchwork/pkg/core"
	"github.com/aretw0/patchwork/pkg/git"
)

// DefaultSystemDir holds the repository's private state (the revision index).
const DefaultSystemDir = ".patchwork"

// Repository implements core.Store using the filesystem and Git.
type Repository struct {
	Path        string
	git         *git.Client
	cache       *cache
	config      Config
	serializers map[string]Serializer
	exts        []string
	logger      *slog.Logger

	// writeMu serializes change sets within the process; the git lock
	// file serializes them across processes.
	writeMu sync.Mutex

	mu            sync.RWMutex
	watcherActive bool
	commits       int
}

// Config holds the configuration for the filesystem repository.
type Config struct {
	Path      string
	Format    string // extension for new documents: ".json" (default), ".yaml" or ".yml"
	AutoInit  bool
	Gitless   bool
	MustExist bool
	ReadOnly  bool
	Strict    bool // decode JSON numbers as json.Number
	Logger    *slog.Logger
	SystemDir string // e.g. ".patchwork"

	// AuthorName and AuthorEmail override the git identity of commits.
	AuthorName  string
	AuthorEmail string

	// ErrorHandler receives watcher errors. Defaults to logging them.
	ErrorHandler func(error)
}

// NewRepository creates a new filesystem-backed repository.
// Call Initialize before use.
func NewRepository(config Config) *Repository {
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	if config.Format == "" {
		config.Format = ".json"
	}
	if !strings.HasPrefix(config.Format, ".") {
		config.Format = "." + config.Format
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	client := git.NewClient(config.Path, git.DefaultLockName, config.Logger)
	client.Name, client.Email = config.AuthorName, config.AuthorEmail

	serializers := DefaultSerializers(config.Strict)
	return &Repository{
		Path:        config.Path,
		git:         client,
		cache:       newCache(config.Path, config.SystemDir),
		config:      config,
		serializers: serializers,
		exts:        extensions(serializers, config.Format),
		logger:      config.Logger,
	}
}

// Begin starts a new transaction.
func (r *Repository) Begin(ctx context.Context) (core.Transaction, error) {
	if r.config.ReadOnly {
		return nil, core.ErrReadOnly
	}
	return newTransaction(r), nil
}

// Initialize performs the necessary setup for the repository (mkdir, git init).
func (r *Repository) Initialize(ctx context.Context) error {
	if _, ok := r.serializers[r.config.Format]; !ok {
		return fmt.Errorf("unsupported document format %q", r.config.Format)
	}

	// 1. Directory Initialization
	if r.config.MustExist {
		info, err := os.Stat(r.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("repository path does not exist: %s", r.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("repository path is not a directory: %s", r.Path)
		}
	} else if err := os.MkdirAll(r.Path, 0755); err != nil {
		return fmt.Errorf("failed to create repository directory: %w", err)
	}

	if err := r.cache.Load(); err != nil {
		r.logger.Warn("ignoring unreadable revision index", "error", err)
	}

	// 2. Git Initialization
	if r.config.Gitless {
		return nil
	}
	if !git.IsInstalled() {
		return fmt.Errorf("git is not installed")
	}

	wasNewRepo := false
	if !r.git.IsRepo() {
		if !r.config.AutoInit {
			return fmt.Errorf("path is not a git repository: %s", r.Path)
		}
		if err := r.git.Init(); err != nil {
			return fmt.Errorf("failed to git init: %w", err)
		}
		wasNewRepo = true
	}

	mod, err := r.ensureIgnore()
	if err != nil {
		return fmt.Errorf("failed to ensure .gitignore: %w", err)
	}

	if mod && wasNewRepo {
		// Start the history clean with the ignore rules.
		if err := r.git.Add(".gitignore"); err != nil {
			return fmt.Errorf("failed to add .gitignore: %w", err)
		}
		if err := r.git.Commit(fmt.Sprintf("chore: configure %s ignore", r.config.SystemDir)); err != nil {
			return fmt.Errorf("failed to commit .gitignore: %w", err)
		}
	}
	return nil
}

// ensureIgnore appends the system directory and the lock file to .gitignore.
func (r *Repository) ensureIgnore() (bool, error) {
	ignorePath := filepath.Join(r.Path, ".gitignore")
	wanted := []string{r.config.SystemDir + "/", git.DefaultLockName}

	content, err := os.ReadFile(ignorePath)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}

	present := make(map[string]bool)
	for _, line := range strings.Split(string(content), "\n") {
		present[strings.TrimSpace(line)] = true
	}

	var missing []string
	for _, entry := range wanted {
		if !present[entry] {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return false, nil
	}

	f, err := os.OpenFile(ignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return false, err
	}
	defer f.Close()

	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		if _, err := f.WriteString("\n"); err != nil {
			return false, err
		}
	}
	if _, err := f.WriteString(strings.Join(missing, "\n") + "\n"); err != nil {
		return false, err
	}
	return true, nil
}

// Load reads a document from its file.
func (r *Repository) Load(ctx context.Context, docType, id string) (*core.Document, error) {
	rel, ser, err := r.locate(docType, id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(r.Path, rel))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", core.Key(docType, id), core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rel, err)
	}

	doc, err := ser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", rel, err)
	}
	if doc.Type == "" {
		doc.Type = docType
	}
	if doc.ID == "" {
		doc.ID = id
	}
	if doc.Type != docType || doc.ID != id {
		return nil, fmt.Errorf("%s: file declares document %s", rel, doc.Key())
	}
	return doc, nil
}

// Populate implements core.Store.
func (r *Repository) Populate(ctx context.Context, doc *core.Document, paths ...string) error {
	return core.Populate(ctx, r, doc, paths...)
}

// Save writes a document and commits it to git.
//
// Workflow:
//  1. Check the stored revision against doc.Revision.
//  2. Serialize with the next revision and write atomically to disk.
//  3. (If Git enabled) 'git add' and 'git commit' with the change reason.
func (r *Repository) Save(ctx context.Context, doc *core.Document) error {
	return r.apply(ctx, []change{{doc: doc}})
}

// Delete removes a document file and commits the removal.
func (r *Repository) Delete(ctx context.Context, doc *core.Document) error {
	return r.apply(ctx, []change{{doc: doc, delete: true}})
}

// Keys lists the stored document keys, sorted. Stale revision index
// entries are pruned on the way.
func (r *Repository) Keys() ([]string, error) {
	types, err := os.ReadDir(r.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to list repository: %w", err)
	}

	seen := make(map[string]bool)
	keep := make(map[string]bool)
	var keys []string
	for _, t := range types {
		if !t.IsDir() || hidden(t.Name()) {
			continue
		}
		files, err := os.ReadDir(filepath.Join(r.Path, t.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", t.Name(), err)
		}
		for _, f := range files {
			rel, key, ok := r.documentFile(filepath.Join(t.Name(), f.Name()))
			if f.IsDir() || !ok {
				continue
			}
			keep[rel] = true
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}

	r.cache.Prune(keep)
	sort.Strings(keys)
	return keys, nil
}

// History returns the one-line commit log of a document, newest first.
func (r *Repository) History(ctx context.Context, docType, id string, limit int) ([]string, error) {
	if r.config.Gitless {
		return nil, fmt.Errorf("history is unavailable in gitless mode")
	}
	rel, _, err := r.locate(docType, id)
	if err != nil {
		return nil, err
	}
	return r.git.Log(rel, limit)
}

type change struct {
	doc    *core.Document
	delete bool
}

type plannedWrite struct {
	change
	rel  string
	data []byte
}

// apply checks every revision, then writes all files and records a single
// git commit. A failure after the first write leaves the written files in
// place and is reported as is.
func (r *Repository) apply(ctx context.Context, changes []change) error {
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}
	if len(changes) == 0 {
		return nil
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	unlock, err := r.git.Lock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer unlock()

	plan := make([]plannedWrite, 0, len(changes))
	for _, c := range changes {
		p, err := r.plan(c)
		if err != nil {
			return err
		}
		plan = append(plan, p)
	}

	var added, removed []string
	for _, p := range plan {
		full := filepath.Join(r.Path, p.rel)
		if p.delete {
			if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove %s: %w", p.rel, err)
			}
			r.cache.Delete(p.rel)
			removed = append(removed, p.rel)
			continue
		}

		if err := writeFileAtomic(full, p.data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", p.rel, err)
		}
		p.doc.Revision++
		if info, err := os.Stat(full); err == nil {
			r.cache.Set(p.rel, &indexEntry{Key: p.doc.Key(), Revision: p.doc.Revision, LastModified: info.ModTime()})
		}
		added = append(added, p.rel)
	}

	if err := r.cache.Save(); err != nil {
		r.logger.Warn("failed to save revision index", "error", err)
	}

	if !r.config.Gitless {
		if err := r.commit(ctx, changes, added, removed); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.commits++
	r.mu.Unlock()
	r.logger.Debug("change set written", "saved", len(added), "deleted", len(removed))
	return nil
}

// plan checks one change against the stored revision and encodes it.
func (r *Repository) plan(c change) (plannedWrite, error) {
	doc := c.doc
	if err := validName("type", doc.Type); err != nil {
		return plannedWrite{}, err
	}
	if err := validName("id", doc.ID); err != nil {
		return plannedWrite{}, err
	}

	rel, ser, err := r.locate(doc.Type, doc.ID)
	exists := err == nil
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return plannedWrite{}, err
	}

	if !exists {
		if c.delete {
			return plannedWrite{}, fmt.Errorf("%s: %w", doc.Key(), core.ErrNotFound)
		}
		if doc.Revision != 0 {
			return plannedWrite{}, fmt.Errorf("%s: stored document is gone (have revision %d): %w", doc.Key(), doc.Revision, core.ErrRevisionConflict)
		}
		rel = filepath.Join(doc.Type, doc.ID+r.config.Format)
		ser = r.serializers[r.config.Format]
	} else {
		stored, err := r.storedRevision(rel, ser)
		if err != nil {
			return plannedWrite{}, err
		}
		if stored != doc.Revision {
			return plannedWrite{}, fmt.Errorf("%s: stored revision %d, have %d: %w", doc.Key(), stored, doc.Revision, core.ErrRevisionConflict)
		}
	}

	p := plannedWrite{change: c, rel: rel}
	if c.delete {
		return p, nil
	}

	next := *doc
	next.Revision++
	if next.Fields == nil {
		next.Fields = core.Fields{}
	}
	p.data, err = ser.Serialize(&next)
	if err != nil {
		return plannedWrite{}, fmt.Errorf("failed to serialize %s: %w", doc.Key(), err)
	}
	return p, nil
}

func (r *Repository) commit(ctx context.Context, changes []change, added, removed []string) error {
	if err := r.git.Add(added...); err != nil {
		return fmt.Errorf("failed to git add: %w", err)
	}
	if err := r.git.Rm(removed...); err != nil {
		return fmt.Errorf("failed to git rm: %w", err)
	}

	staged, err := r.git.HasStaged()
	if err != nil {
		return fmt.Errorf("failed to inspect git index: %w", err)
	}
	if !staged {
		return nil
	}

	if err := r.git.Commit(commitMessage(ctx, changes)); err != nil {
		return fmt.Errorf("failed to git commit: %w", err)
	}
	return nil
}

func commitMessage(ctx context.Context, changes []change) string {
	if val, ok := ctx.Value(core.ChangeReasonKey).(string); ok && val != "" {
		return val
	}
	if len(changes) == 1 {
		verb := "update"
		if changes[0].delete {
			verb = "delete"
		}
		return verb + " " + changes[0].doc.Key()
	}
	return fmt.Sprintf("update %d documents", len(changes))
}

// locate finds the file of an existing document.
func (r *Repository) locate(docType, id string) (string, Serializer, error) {
	if err := validName("type", docType); err != nil {
		return "", nil, err
	}
	if err := validName("id", id); err != nil {
		return "", nil, err
	}
	for _, ext := range r.exts {
		rel := filepath.Join(docType, id+ext)
		if _, err := os.Stat(filepath.Join(r.Path, rel)); err == nil {
			return rel, r.serializers[ext], nil
		}
	}
	return "", nil, fmt.Errorf("%s: %w", core.Key(docType, id), core.ErrNotFound)
}

// storedRevision reads the revision of a file, served from the index while
// the file is unchanged.
func (r *Repository) storedRevision(rel string, ser Serializer) (core.Revision, error) {
	full := filepath.Join(r.Path, rel)
	info, err := os.Stat(full)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", rel, err)
	}
	if entry, ok := r.cache.Get(rel, info.ModTime()); ok {
		return entry.Revision, nil
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", rel, err)
	}
	rev, err := ser.Revision(data)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", rel, err)
	}
	r.cache.Set(rel, &indexEntry{Key: keyOf(rel), Revision: rev, LastModified: info.ModTime()})
	return rev, nil
}

// documentFile maps a path relative to the root to its document key.
func (r *Repository) documentFile(rel string) (string, string, bool) {
	rel = filepath.Clean(rel)
	dir, name := filepath.Split(rel)
	dir = filepath.Clean(dir)
	if dir == "." || strings.ContainsRune(dir, filepath.Separator) || hidden(dir) || hidden(name) {
		return "", "", false
	}
	if _, ok := r.serializers[filepath.Ext(name)]; !ok {
		return "", "", false
	}
	return rel, keyOf(rel), true
}

func keyOf(rel string) string {
	dir, name := filepath.Split(filepath.Clean(rel))
	return core.Key(filepath.Clean(dir), strings.TrimSuffix(name, filepath.Ext(name)))
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func validName(kind, s string) error {
	if s == "" || hidden(s) || strings.ContainsAny(s, `/\`) {
		return fmt.Errorf("invalid document %s %q", kind, s)
	}
	return nil
}

// IsGitInstalled checks if git is available in the system path.
func IsGitInstalled() bool {
	return git.IsInstalled()
}
