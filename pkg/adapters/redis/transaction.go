package redis

import (
	"context"
	"sync"

	"github.com/aretw0/patchwork/pkg/core"
)

// Transaction stages changes and writes them in a single MULTI/EXEC.
type Transaction struct {
	store  *Store
	order  []string
	staged map[string]change
	mu     sync.Mutex
	closed bool
}

func newTransaction(s *Store) *Transaction {
	return &Transaction{store: s, staged: make(map[string]change)}
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

// Commit checks every staged revision and writes all changes atomically.
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
	return t.store.apply(ctx, changes)
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
