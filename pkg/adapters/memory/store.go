// Package memory provides an in-process core.Store with optimistic revisions,
// transactions and change notifications. It is the reference adapter used
// by tests and by the CLI's dry runs.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/introspection"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/patchwork/pkg/core"
)

// Store keeps serialized documents in memory.
// Documents handed out by Load are private copies.
type Store struct {
	mu       sync.RWMutex
	docs     map[string][]byte
	revs     map[string]core.Revision
	watchers []*watcher
	readOnly bool
	logger   *slog.Logger
	saves    int
}

type watcher struct {
	pattern string
	ch      chan core.Event
	ctx     context.Context
}

// Option configures a Store.
type Option func(*Store)

// WithReadOnly rejects every write with core.ErrReadOnly.
func WithReadOnly(enabled bool) Option {
	return func(s *Store) {
		s.readOnly = enabled
	}
}

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		docs: make(map[string][]byte),
		revs: make(map[string]core.Revision),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Load retrieves a private copy of a document.
func (s *Store) Load(ctx context.Context, docType, id string) (*core.Document, error) {
	s.mu.RLock()
	data, ok := s.docs[core.Key(docType, id)]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", core.Key(docType, id), core.ErrNotFound)
	}

	doc := &core.Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", core.Key(docType, id), err)
	}
	return doc, nil
}

// Populate implements core.Store.
func (s *Store) Populate(ctx context.Context, doc *core.Document, paths ...string) error {
	return core.Populate(ctx, s, doc, paths...)
}

// Save persists a document after checking its revision.
func (s *Store) Save(ctx context.Context, doc *core.Document) error {
	if s.readOnly {
		return core.ErrReadOnly
	}

	s.mu.Lock()
	created, err := s.checkLocked(doc)
	if err == nil {
		err = s.writeLocked(doc)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.emit(eventFor(doc.Key(), created))
	return nil
}

// Delete removes a document after checking its revision.
func (s *Store) Delete(ctx context.Context, doc *core.Document) error {
	if s.readOnly {
		return core.ErrReadOnly
	}
	s.mu.Lock()
	err := s.deleteLocked(doc)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.emit(core.Event{Type: core.EventDelete, Key: doc.Key(), Timestamp: time.Now().Unix()})
	return nil
}

// Begin starts a new transaction.
func (s *Store) Begin(ctx context.Context) (core.Transaction, error) {
	if s.readOnly {
		return nil, core.ErrReadOnly
	}
	return newTransaction(s), nil
}

// Watch emits an event for every committed change whose key matches pattern.
// Events are dropped when the returned channel is full.
func (s *Store) Watch(ctx context.Context, pattern string) (<-chan core.Event, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid watch pattern %q", pattern)
	}
	w := &watcher{pattern: pattern, ch: make(chan core.Event, 64), ctx: ctx}

	s.mu.Lock()
	s.watchers = append(s.watchers, w)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, other := range s.watchers {
			if other == w {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				break
			}
		}
		close(w.ch)
	}()
	return w.ch, nil
}

// Keys lists the stored document keys, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.docs))
	for k := range s.docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) checkLocked(doc *core.Document) (created bool, err error) {
	stored, exists := s.revs[doc.Key()]
	if !exists {
		if doc.Revision != 0 {
			return false, fmt.Errorf("%s: stored document is gone (have revision %d): %w", doc.Key(), doc.Revision, core.ErrRevisionConflict)
		}
		return true, nil
	}
	if stored != doc.Revision {
		return false, fmt.Errorf("%s: stored revision %d, have %d: %w", doc.Key(), stored, doc.Revision, core.ErrRevisionConflict)
	}
	return false, nil
}

// writeLocked stores doc under its next revision.
func (s *Store) writeLocked(doc *core.Document) error {
	data, err := encodeNext(doc)
	if err != nil {
		return err
	}
	s.putLocked(doc, data)
	return nil
}

// encodeNext encodes doc as it will be stored under its next revision.
// doc itself is left unchanged.
func encodeNext(doc *core.Document) ([]byte, error) {
	doc.Revision++
	data, err := json.Marshal(doc)
	doc.Revision--
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", doc.Key(), err)
	}
	return data, nil
}

func (s *Store) putLocked(doc *core.Document, data []byte) {
	doc.Revision++
	s.docs[doc.Key()] = data
	s.revs[doc.Key()] = doc.Revision
	s.saves++
	s.logger.Debug("document saved", "key", doc.Key(), "revision", doc.Revision)
}

func (s *Store) deleteLocked(doc *core.Document) error {
	stored, exists := s.revs[doc.Key()]
	if !exists {
		return fmt.Errorf("%s: %w", doc.Key(), core.ErrNotFound)
	}
	if stored != doc.Revision {
		return fmt.Errorf("%s: stored revision %d, have %d: %w", doc.Key(), stored, doc.Revision, core.ErrRevisionConflict)
	}
	delete(s.docs, doc.Key())
	delete(s.revs, doc.Key())
	return nil
}

func (s *Store) emit(e core.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.watchers {
		if w.ctx.Err() != nil {
			continue
		}
		if ok, _ := doublestar.Match(w.pattern, e.Key); !ok {
			continue
		}
		select {
		case w.ch <- e:
		default:
			s.logger.Warn("watch buffer full, dropping event", "key", e.Key)
		}
	}
}

func eventFor(key string, created bool) core.Event {
	t := core.EventModify
	if created {
		t = core.EventCreate
	}
	return core.Event{Type: t, Key: key, Timestamp: time.Now().Unix()}
}

// StoreState exposes internal state for observability.
type StoreState struct {
	Documents int  `json:"documents"`
	Saves     int  `json:"saves"`
	Watchers  int  `json:"watchers"`
	ReadOnly  bool `json:"read_only"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StoreState{
		Documents: len(s.docs),
		Saves:     s.saves,
		Watchers:  len(s.watchers),
		ReadOnly:  s.readOnly,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "memory-store"
}

var (
	_ core.Transactional           = (*Store)(nil)
	_ core.Watchable               = (*Store)(nil)
	_ introspection.Introspectable = (*Store)(nil)
	_ introspection.Component      = (*Store)(nil)
)
