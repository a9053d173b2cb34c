package fs

import (
	"context"
	"sync"

	"github.com/aretw0/patchwork/pkg/core"
)

// Transaction implements core.Transaction for the filesystem.
// Staged changes are written on Commit as one change set and one git commit.
type Transaction struct {
	repo   *Repository
	order  []string
	staged map[string]change
	mu     sync.Mutex
	closed bool
}

func newTransaction(repo *Repository) *Transaction {
	return &Transaction{
		repo:   repo,
		staged: make(map[string]change),
	}
}

// Save stages a document for saving.
func (t *Transaction) Save(ctx context.Context, doc *core.Document) error {
	return t.stage(change{doc: doc})
}

// Delete stages a document for deletion.
func (t *Transaction) Delete(ctx context.Context, doc *core.Document) error {
	return t.stage(change{doc: doc, delete: true})
}

func (t *Transaction) stage(c change) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return core.ErrTransactionClosed
	}
	key := c.doc.Key()
	if _, ok := t.staged[key]; !ok {
		t.order = append(t.order, key)
	}
	t.staged[key] = c
	return nil
}

// Commit checks every staged revision, then writes all changes.
// The change reason is read from core.ChangeReasonKey.
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return core.ErrTransactionClosed
	}
	t.closed = true

	changes := make([]change, 0, len(t.order))
	for _, key := range t.order {
		changes = append(changes, t.staged[key])
	}
	return t.repo.apply(ctx, changes)
}

// Rollback discards all staged changes.
func (t *Transaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.staged = nil
	t.order = nil
	t.closed = true
	return nil
}
