package core

import (
	"context"
	"errors"
	"sync"
)

const defaultEventBuffer = 100

// Service handles document access on top of a Store with business validation.
type Service struct {
	store           Store
	mu              sync.RWMutex
	eventBufferSize int
}

// NewService creates a new Service.
func NewService(store Store) *Service {
	return &Service{store: store, eventBufferSize: defaultEventBuffer}
}

// SetEventBuffer sets the buffer size of channels returned by Watch.
func (s *Service) SetEventBuffer(size int) {
	if size <= 0 {
		size = defaultEventBuffer
	}
	s.mu.Lock()
	s.eventBufferSize = size
	s.mu.Unlock()
}

// Store returns the underlying store.
func (s *Service) Store() Store {
	return s.store
}

// GetDocument retrieves a document.
func (s *Service) GetDocument(ctx context.Context, docType, id string) (*Document, error) {
	if docType == "" || id == "" {
		return nil, errors.New("document type and ID cannot be empty")
	}
	return s.store.Load(ctx, docType, id)
}

// SaveDocument saves a document.
func (s *Service) SaveDocument(ctx context.Context, doc *Document) error {
	if doc == nil || doc.ID == "" || doc.Type == "" {
		return errors.New("document type and ID cannot be empty")
	}
	if doc.Fields == nil {
		doc.Fields = Fields{}
	}
	return s.store.Save(ctx, doc)
}

// DeleteDocument removes a document.
func (s *Service) DeleteDocument(ctx context.Context, doc *Document) error {
	if doc == nil || doc.ID == "" {
		return errors.New("document ID cannot be empty")
	}
	return s.store.Delete(ctx, doc)
}

// WithTransaction executes a function within a transaction.
func (s *Service) WithTransaction(ctx context.Context, fn func(tx Transaction) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// Begin initiates a transaction manually.
func (s *Service) Begin(ctx context.Context) (Transaction, error) {
	tr, ok := s.store.(Transactional)
	if !ok {
		return nil, errors.New("store does not support transactions")
	}
	return tr.Begin(ctx)
}

// Watch observes changes in the store if supported.
// Events are buffered so a slow consumer does not block the store.
func (s *Service) Watch(ctx context.Context, pattern string) (<-chan Event, error) {
	w, ok := s.store.(Watchable)
	if !ok {
		return nil, errors.New("store does not support watching")
	}
	upstream, err := w.Watch(ctx, pattern)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	size := s.eventBufferSize
	s.mu.RUnlock()

	out := make(chan Event, size)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-upstream:
				if !ok {
					return
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
