package core

import "context"

// Loader loads a single document.
type Loader interface {
	// Load retrieves a document by type and id.
	// Returns an error wrapping ErrNotFound when it does not exist.
	Load(ctx context.Context, docType, id string) (*Document, error)
}

// Store defines the contract for persisting documents.
// Adhering to this interface keeps the patch engine independent of the
// underlying storage mechanism (memory, filesystem, redis, ...).
type Store interface {
	Loader

	// Populate resolves the reference fields named by paths (RFC6901
	// pointers into doc.Fields, e.g. "/author" or "/books"), loading their
	// targets. Arrays of references are resolved element by element.
	Populate(ctx context.Context, doc *Document, paths ...string) error

	// Save persists a document. The stored revision must equal doc.Revision
	// (zero for new documents), otherwise it fails with ErrRevisionConflict.
	// On success doc.Revision is advanced.
	Save(ctx context.Context, doc *Document) error

	// Delete removes a document, subject to the same revision check as Save.
	Delete(ctx context.Context, doc *Document) error
}

// Transaction defines the contract for a unit of work.
// Changes made within a transaction are atomic.
type Transaction interface {
	// Save stages a document for persistence.
	Save(ctx context.Context, doc *Document) error

	// Delete stages a document for removal.
	Delete(ctx context.Context, doc *Document) error

	// Commit applies all staged changes atomically, checking every revision.
	Commit(ctx context.Context) error

	// Rollback discards all staged changes.
	Rollback(ctx context.Context) error
}

// Transactional is implemented by stores that support multi-document transactions.
type Transactional interface {
	Store

	// Begin starts a new transaction.
	Begin(ctx context.Context) (Transaction, error)
}

// Watchable is implemented by stores that can report changes.
type Watchable interface {
	// Watch emits events for documents whose key matches pattern (a glob
	// over "type/id") until ctx is cancelled.
	Watch(ctx context.Context, pattern string) (<-chan Event, error)
}
