// Package core holds the domain model shared by the patch engine and the
// storage adapters: documents, references, schemas and the Store contract.
package core

import "fmt"

// Fields is the field tree of a document.
//
// Values are one of:
//   - scalars: nil, bool, string, float64, int, int64, json.Number
//   - embedded documents: map[string]any
//   - arrays: []any
//   - references: *Reference
type Fields = map[string]any

// Revision identifies the stored state a document was loaded at.
// Zero means the document was never persisted.
type Revision int64

// Document is the central entity of the domain.
// It is a typed, identified tree of fields owned by a Store.
type Document struct {
	ID       string
	Type     string
	Revision Revision
	Fields   Fields
}

// NewDocument returns a document with an initialized field tree.
func NewDocument(docType, id string, fields Fields) *Document {
	if fields == nil {
		fields = Fields{}
	}
	return &Document{ID: id, Type: docType, Fields: fields}
}

// Key identifies a document across types.
func (d *Document) Key() string {
	return Key(d.Type, d.ID)
}

func (d *Document) String() string {
	return fmt.Sprintf("%s@%d", d.Key(), d.Revision)
}

// Key builds the store key for a document type and id.
func Key(docType, id string) string {
	return docType + "/" + id
}

// Reference is a field that logically embeds another stored document.
// Target is borrowed from the store and is nil until the reference is populated.
type Reference struct {
	Type   string
	ID     string
	Target *Document
}

// Ref returns an unresolved reference to the given document.
func Ref(docType, id string) *Reference {
	return &Reference{Type: docType, ID: id}
}

// Link returns a resolved reference to doc.
func Link(doc *Document) *Reference {
	return &Reference{Type: doc.Type, ID: doc.ID, Target: doc}
}

// Resolved reports whether the reference target is loaded.
func (r *Reference) Resolved() bool {
	return r.Target != nil
}

func (r *Reference) String() string {
	return Key(r.Type, r.ID)
}

// EventType represents the type of change in a store.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
)

// Event represents a change in a store.
type Event struct {
	Type      EventType
	Key       string
	Timestamp int64 // Unix timestamp
}

func (e Event) String() string {
	return string(e.Type) + " " + e.Key
}

type contextKey string

// ChangeReasonKey is the context key for passing the change reason (commit message)
// to Save/Delete/Commit calls of versioned stores.
const ChangeReasonKey contextKey = "change_reason"
