package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/patchwork/pkg/core"
)

// Transaction implements core.Transaction for the memory store.
type Transaction struct {
	store   *Store
	order   []string
	staged  map[string]*core.Document
	deleted map[string]*core.Document
	mu      sync.Mutex
	closed  bool
}

func newTransaction(s *Store) *Transaction {
	return &Transaction{
		store:   s,
		staged:  make(map[string]*core.Document),
		deleted: make(map[string]*core.Document),
	}
}

// Save stages a document for saving.
func (t *Transaction) Save(ctx context.Context, doc *core.Document) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return core.ErrTransactionClosed
	}
	t.stage(doc.Key())
	t.staged[doc.Key()] = doc
	delete(t.deleted, doc.Key())
	return nil
}

// Delete stages a document for deletion.
func (t *Transaction) Delete(ctx context.Context, doc *core.Document) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return core.ErrTransactionClosed
	}
	t.stage(doc.Key())
	t.deleted[doc.Key()] = doc
	delete(t.staged, doc.Key())
	return nil
}

func (t *Transaction) stage(key string) {
	for _, k := range t.order {
		if k == key {
			return
		}
	}
	t.order = append(t.order, key)
}

// Commit checks every staged revision and only then applies all changes.
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return core.ErrTransactionClosed
	}
	t.closed = true

	s := t.store
	var events []core.Event

	s.mu.Lock()
	created := make(map[string]bool, len(t.staged))
	encoded := make(map[string][]byte, len(t.staged))
	for key, doc := range t.staged {
		c, err := s.checkLocked(doc)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		data, err := encodeNext(doc)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		created[key] = c
		encoded[key] = data
	}
	for key, doc := range t.deleted {
		if stored, ok := s.revs[key]; ok && stored != doc.Revision {
			s.mu.Unlock()
			return fmt.Errorf("%s: stored revision %d, have %d: %w", key, stored, doc.Revision, core.ErrRevisionConflict)
		}
	}

	for _, key := range t.order {
		if doc, ok := t.staged[key]; ok {
			s.putLocked(doc, encoded[key])
			events = append(events, eventFor(key, created[key]))
			continue
		}
		if _, ok := t.deleted[key]; ok {
			delete(s.docs, key)
			delete(s.revs, key)
			events = append(events, core.Event{Type: core.EventDelete, Key: key, Timestamp: time.Now().Unix()})
		}
	}
	s.mu.Unlock()

	for _, e := range events {
		s.emit(e)
	}
	return nil
}

// Rollback discards all staged changes.
func (t *Transaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.staged = nil
	t.deleted = nil
	t.closed = true
	return nil
}
