// Package typed maps document fields onto Go structs.
//
// Fields travel through encoding/json, so T uses json tags. A reference
// field is declared as *typed.Ref (or []*typed.Ref) and keeps its
// {"$ref", "$id"} identity across loads, saves and patches.
package typed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/patchwork/pkg/core"
	"github.com/aretw0/patchwork/pkg/patch"
)

// Ref is the typed form of a stored reference.
type Ref struct {
	Type string `json:"$ref"`
	ID   string `json:"$id"`
}

// Core returns the reference as a core.Reference.
func (r *Ref) Core() *core.Reference {
	return core.Ref(r.Type, r.ID)
}

// DocumentModel is a typed view of a document.
type DocumentModel[T any] struct {
	ID       string
	Revision core.Revision
	Data     T
	Saver    Saver[T]
}

// Saver persists a model; Repository implements it.
type Saver[T any] interface {
	Save(ctx context.Context, doc *DocumentModel[T]) error
}

// Save persists the document using the attached saver.
func (d *DocumentModel[T]) Save(ctx context.Context) error {
	if d.Saver == nil {
		return fmt.Errorf("document is detached (missing Saver)")
	}
	return d.Saver.Save(ctx, d)
}

// Repository gives type-safe access to the documents of one type.
type Repository[T any] struct {
	store   core.Store
	docType string
	engine  *patch.Engine
}

// NewRepository creates a typed repository for docType over store.
func NewRepository[T any](store core.Store, docType string) *Repository[T] {
	return &Repository[T]{store: store, docType: docType}
}

// WithEngine returns a repository whose Patch runs through engine, with its
// schemas, rules and blacklist. The engine must share the repository's store.
func (r *Repository[T]) WithEngine(engine *patch.Engine) *Repository[T] {
	return &Repository[T]{store: r.store, docType: r.docType, engine: engine}
}

// Type returns the document type served by the repository.
func (r *Repository[T]) Type() string {
	return r.docType
}

// Get loads and decodes a document.
func (r *Repository[T]) Get(ctx context.Context, id string) (*DocumentModel[T], error) {
	doc, err := r.store.Load(ctx, r.docType, id)
	if err != nil {
		return nil, err
	}
	return fromCore[T](doc, r)
}

// Save encodes and persists a model. A zero Revision creates the document;
// otherwise it must match the stored revision. Revision is updated on success.
func (r *Repository[T]) Save(ctx context.Context, model *DocumentModel[T]) error {
	doc, err := r.toCore(model)
	if err != nil {
		return err
	}
	if err := r.store.Save(ctx, doc); err != nil {
		return err
	}
	model.Revision = doc.Revision
	if model.Saver == nil {
		model.Saver = r
	}
	return nil
}

// Delete removes the document after checking the model's revision.
func (r *Repository[T]) Delete(ctx context.Context, model *DocumentModel[T]) error {
	doc := core.NewDocument(r.docType, model.ID, nil)
	doc.Revision = model.Revision
	return r.store.Delete(ctx, doc)
}

// Patch applies p to the stored document and returns the updated model with
// the engine's result. The document is saved unless patch.Autosave(false) is
// given, in which case the model reflects the uncommitted state.
func (r *Repository[T]) Patch(ctx context.Context, id string, p patch.Patch, opts ...patch.ApplyOption) (*DocumentModel[T], *patch.Result, error) {
	engine := r.engine
	if engine == nil {
		engine = patch.NewEngine(r.store)
	}
	res, err := engine.ApplyByID(ctx, r.docType, id, p, opts...)
	if err != nil {
		return nil, res, err
	}
	model, err := fromCore[T](res.Document, r)
	if err != nil {
		return nil, res, err
	}
	return model, res, nil
}

func (r *Repository[T]) toCore(model *DocumentModel[T]) (*core.Document, error) {
	data, err := json.Marshal(model.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal typed data: %w", err)
	}
	var fields core.Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("typed data of %s must encode as a JSON object: %w", core.Key(r.docType, model.ID), err)
	}
	doc := core.NewDocument(r.docType, model.ID, core.RestoreRefs(fields))
	doc.Revision = model.Revision
	return doc, nil
}

func fromCore[T any](doc *core.Document, saver Saver[T]) (*DocumentModel[T], error) {
	data, err := json.Marshal(doc.Fields)
	if err != nil {
		return nil, fmt.Errorf("fields marshal failed: %w", err)
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal %s to target type failed: %w", doc.Key(), err)
	}

	return &DocumentModel[T]{
		ID:       doc.ID,
		Revision: doc.Revision,
		Data:     out,
		Saver:    saver,
	}, nil
}
