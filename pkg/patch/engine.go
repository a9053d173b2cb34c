package patch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/aretw0/patchwork/pkg/core"
)

// Engine applies patches to documents of a Store.
// It is safe for concurrent use; applies against the same *core.Document
// are serialized, applies against different instances are not (the store's
// revision check arbitrates those).
type Engine struct {
	store     core.Store
	schemas   core.SchemaSource
	logger    *slog.Logger
	rules     []Rule
	blacklist []string
	newID     func() string

	locks docLocks

	mu    sync.Mutex
	stats engineStats
}

type engineStats struct {
	applied   int
	failed    int
	committed int
	skipped   int
}

// Result describes a finished Apply.
type Result struct {
	Document *core.Document
	// Base is the revision the patch was applied against.
	Base core.Revision
	// Snapshot is the pre-image of the document graph.
	Snapshot *core.Snapshot
	// Applied holds the executed operations as rewritten by middleware.
	Applied Patch
	// Skipped holds the indices of operations middleware declined to forward.
	Skipped []int
	// Mutated lists pre-existing documents that changed, in first-touch order.
	Mutated []*core.Document
	// Created lists documents instantiated by create-and-link.
	Created   []*core.Document
	Committed bool
	State     State
}

// NewEngine creates an engine over store.
func NewEngine(store core.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store: store,
		newID: uuid.NewString,
		locks: docLocks{m: make(map[*core.Document]*docLock)},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e
}

// Store returns the engine's store.
func (e *Engine) Store() core.Store {
	return e.store
}

// ApplyByID loads a document and applies p to it.
func (e *Engine) ApplyByID(ctx context.Context, docType, id string, p Patch, opts ...ApplyOption) (*Result, error) {
	doc, err := e.store.Load(ctx, docType, id)
	if err != nil {
		return nil, err
	}
	return e.Apply(ctx, doc, p, opts...)
}

// Apply runs every operation of p against doc, in order, through the
// blacklist guard, the middleware chain and the executor. Any failure rolls
// back all in-memory changes and nothing is committed.
func (e *Engine) Apply(ctx context.Context, doc *core.Document, p Patch, opts ...ApplyOption) (*Result, error) {
	o := DefaultApplyOptions()
	for _, opt := range opts {
		opt(&o)
	}

	unlock := e.locks.lock(doc)
	defer unlock()

	r := &run{
		engine: e,
		doc:    doc,
		opts:   o,
		logger: e.logger.With("document", doc.Key()),
		res:    &Result{Document: doc, Base: doc.Revision, State: Pending},
	}
	err := r.execute(ctx, p)

	e.mu.Lock()
	if err != nil {
		e.stats.failed++
	} else {
		e.stats.applied++
		e.stats.skipped += len(r.res.Skipped)
		if r.res.Committed {
			e.stats.committed++
		}
	}
	e.mu.Unlock()

	return r.res, err
}

// Revert applies the inverse of a previous result to its document.
func (e *Engine) Revert(ctx context.Context, res *Result, opts ...ApplyOption) (*Result, error) {
	if res == nil || res.Snapshot == nil {
		return nil, errors.New("result carries no snapshot")
	}
	inverse, err := Invert(res.Snapshot, res.Applied)
	if err != nil {
		return nil, fmt.Errorf("failed to invert patch: %w", err)
	}
	return e.Apply(ctx, res.Document, inverse, opts...)
}

// Commit persists the created and mutated documents of res. Created
// documents are saved first so links never dangle. With a transactional
// store the commit is all-or-nothing; otherwise documents saved before a
// failure stay saved and are listed in the *CommitError.
func (e *Engine) Commit(ctx context.Context, res *Result, reason string) error {
	docs := make([]*core.Document, 0, len(res.Created)+len(res.Mutated))
	docs = append(docs, res.Created...)
	docs = append(docs, res.Mutated...)
	if len(docs) == 0 {
		res.Committed = true
		return nil
	}
	if reason != "" {
		ctx = context.WithValue(ctx, core.ChangeReasonKey, reason)
	}

	if tr, ok := e.store.(core.Transactional); ok {
		if err := e.commitTx(ctx, tr, docs); err != nil {
			return err
		}
	} else {
		var saved []string
		for _, d := range docs {
			if err := e.store.Save(ctx, d); err != nil {
				e.logger.Error("commit failed", "document", d.Key(), "saved", saved, "error", err)
				return &CommitError{Saved: saved, Failed: d.Key(), Err: err}
			}
			saved = append(saved, d.Key())
		}
	}

	res.Committed = true
	e.logger.Info("patch committed", "document", res.Document.Key(), "documents", len(docs), "revision", res.Document.Revision)
	return nil
}

func (e *Engine) commitTx(ctx context.Context, tr core.Transactional, docs []*core.Document) error {
	tx, err := tr.Begin(ctx)
	if err != nil {
		return &CommitError{Failed: docs[0].Key(), Err: err}
	}
	for _, d := range docs {
		if err := tx.Save(ctx, d); err != nil {
			_ = tx.Rollback(ctx)
			return &CommitError{Failed: d.Key(), Err: err}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		e.logger.Error("commit failed", "documents", len(docs), "error", err)
		return &CommitError{Failed: docs[0].Key(), Err: err}
	}
	return nil
}

func (e *Engine) schema(docType string) *core.Schema {
	if e.schemas == nil {
		return nil
	}
	return e.schemas.Schema(docType)
}

// guardFor builds the denylist of docType. Root documents also get the
// engine-wide and per-call patterns.
func (e *Engine) guardFor(docType string, root bool, extra []string) (*Guard, error) {
	var patterns []string
	if s := e.schema(docType); s != nil {
		patterns = append(patterns, s.Blacklist...)
	}
	if root {
		patterns = append(patterns, e.blacklist...)
		patterns = append(patterns, extra...)
	}
	return NewGuard(patterns...)
}

// run is the state of one Apply call.
type run struct {
	engine *Engine
	doc    *core.Document
	opts   ApplyOptions
	logger *slog.Logger
	res    *Result

	guard    *Guard
	pipeline *Pipeline
	exec     *Executor
}

func (r *run) transition(s State) {
	if r.res.State == s {
		return
	}
	r.logger.Debug("apply state", "from", r.res.State, "to", s)
	r.res.State = s
}

func (r *run) fail(err error) error {
	if r.exec != nil {
		r.exec.Rollback()
	}
	r.res.Mutated, r.res.Created = nil, nil
	r.transition(Failed)
	r.logger.Debug("patch aborted", "error", err)
	return err
}

func (r *run) execute(ctx context.Context, p Patch) error {
	e := r.engine

	for i, op := range p {
		if err := op.Validate(); err != nil {
			return r.fail(opError(i, op, err))
		}
	}

	guard, err := e.guardFor(r.doc.Type, true, r.opts.Blacklist)
	if err != nil {
		return r.fail(err)
	}
	r.guard = guard
	rules := make([]Rule, 0, len(e.rules)+len(r.opts.Middleware))
	rules = append(rules, e.rules...)
	rules = append(rules, r.opts.Middleware...)
	r.pipeline = NewPipeline(rules...)
	r.exec = NewExecutor(e.schemas)
	r.exec.newID = e.newID

	r.transition(Resolving)
	if r.opts.Populate {
		for i, op := range p {
			if err := r.populate(ctx, op.Path); err != nil {
				return r.fail(opError(i, op, err))
			}
			if op.From != "" {
				if err := r.populate(ctx, op.From); err != nil {
					return r.fail(opError(i, op, err))
				}
			}
		}
	}
	r.res.Snapshot = core.TakeSnapshot(r.doc)

	for i, op := range p {
		if err := ctx.Err(); err != nil {
			return r.fail(opError(i, op, err))
		}
		if err := r.step(ctx, i, op); err != nil {
			return r.fail(opError(i, op, err))
		}
	}

	r.res.Mutated = r.exec.Mutated()
	r.res.Created = r.exec.Created()

	if !r.opts.Autosave {
		r.transition(Done)
		return nil
	}

	r.transition(Committing)
	if err := e.Commit(ctx, r.res, r.opts.ChangeReason); err != nil {
		r.transition(Failed)
		return err
	}
	r.transition(Done)
	return nil
}

// step runs a single operation through guard, middleware and executor.
func (r *run) step(ctx context.Context, i int, op Operation) error {
	r.transition(Guarding)
	if err := r.check(op); err != nil {
		return err
	}

	r.transition(Piping)
	submitted := op
	cur := op
	executed, err := r.pipeline.Run(ctx, r.doc, &cur, func(ctx context.Context, final *Operation) error {
		if err := final.Validate(); err != nil {
			return err
		}
		if final.Path != submitted.Path || final.From != submitted.From {
			if err := r.check(*final); err != nil {
				return err
			}
		}
		r.transition(Executing)
		if err := r.exec.Execute(r.doc, *final); err != nil {
			return err
		}
		r.res.Applied = append(r.res.Applied, *final)
		return nil
	})
	if err != nil {
		return err
	}
	if !executed {
		r.logger.Debug("operation skipped by middleware", "index", i, "op", op.Op, "path", op.Path)
		r.res.Skipped = append(r.res.Skipped, i)
	}
	return nil
}

// check guards the path (and from) of op: first against the root document's
// denylist, then, when the path crosses a reference, against the denylist of
// the document that owns the target.
func (r *run) check(op Operation) error {
	if err := r.checkPath(op.Path, op.Op == Add || op.Op == Copy || op.Op == Move); err != nil {
		return err
	}
	if op.From != "" {
		return r.checkPath(op.From, false)
	}
	return nil
}

func (r *run) checkPath(path string, adding bool) error {
	ptr, err := ParsePointer(path)
	if err != nil {
		return err
	}
	if err := r.guard.Check(r.doc.Type, ptr); err != nil {
		return err
	}

	mode := ModeRead
	if adding {
		mode = ModeAdd
	}
	t, err := Resolve(r.doc, ptr, mode)
	if err != nil || t.Owner == r.doc {
		// resolution failures surface from the executor
		return nil
	}
	guard, err := r.engine.guardFor(t.Owner.Type, false, nil)
	if err != nil {
		return err
	}
	return guard.Check(t.Owner.Type, t.Rel)
}

// populate loads every unresolved reference crossed by path. Missing
// segments end the walk; the executor reports them if they still are
// missing when the operation runs.
func (r *run) populate(ctx context.Context, path string) error {
	ptr, err := ParsePointer(path)
	if err != nil || len(ptr) < 2 {
		return err
	}

	owner := r.doc
	var cur any = owner.Fields
	var field Pointer
	for _, tok := range ptr[:len(ptr)-1] {
		var child any
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[tok]
			if !ok {
				return nil
			}
			field = append(field, tok)
			child = v
		case []any:
			idx, ok := parseIndex(tok)
			if !ok || idx >= len(c) {
				return nil
			}
			child = c[idx]
		default:
			return nil
		}

		ref, ok := child.(*core.Reference)
		if !ok {
			cur = child
			continue
		}
		if !ref.Resolved() {
			r.logger.Debug("populating reference", "owner", owner.Key(), "field", field.String(), "ref", ref.String())
			if err := r.engine.store.Populate(ctx, owner, field.String()); err != nil {
				return fmt.Errorf("%w: %w", ErrUnresolvedReference, err)
			}
			if !ref.Resolved() {
				return fmt.Errorf("%w: %s", ErrUnresolvedReference, ref)
			}
		}
		owner = ref.Target
		cur = owner.Fields
		field = nil
	}
	return nil
}

func opError(i int, op Operation, err error) error {
	var oe *OpError
	if errors.As(err, &oe) {
		return err
	}
	return &OpError{Index: i, Op: op.Op, Path: op.Path, Err: err}
}

// docLocks serializes applies sharing a *core.Document.
type docLocks struct {
	mu sync.Mutex
	m  map[*core.Document]*docLock
}

type docLock struct {
	mu   sync.Mutex
	refs int
}

func (l *docLocks) lock(doc *core.Document) func() {
	l.mu.Lock()
	dl, ok := l.m[doc]
	if !ok {
		dl = &docLock{}
		l.m[doc] = dl
	}
	dl.refs++
	l.mu.Unlock()

	dl.mu.Lock()
	return func() {
		dl.mu.Unlock()
		l.mu.Lock()
		dl.refs--
		if dl.refs == 0 {
			delete(l.m, doc)
		}
		l.mu.Unlock()
	}
}
