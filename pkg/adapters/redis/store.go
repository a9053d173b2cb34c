// Package redis stores documents as JSON strings in Redis. Revisions are
// checked with WATCH/MULTI so concurrent writers never overwrite each other,
// and committed changes are published on a channel for watchers.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/introspection"
	"github.com/aretw0/lifecycle"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/aretw0/patchwork/pkg/core"
)

const (
	// DefaultPrefix namespaces every key written by the store.
	DefaultPrefix = "patchwork:"

	historyLimit = 100
)

// Store implements core.Store on a Redis client.
type Store struct {
	rdb      *redis.Client
	prefix   string
	logger   *slog.Logger
	readOnly bool

	mu       sync.RWMutex
	saves    int
	watchers int
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces keys and the event channel.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithReadOnly rejects every write with core.ErrReadOnly.
func WithReadOnly(enabled bool) Option {
	return func(s *Store) {
		s.readOnly = enabled
	}
}

// New creates a store on an existing client.
func New(rdb *redis.Client, opts ...Option) *Store {
	s := &Store{rdb: rdb, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Open connects to the Redis server at url (redis://host:port/db) and checks
// the connection.
func Open(ctx context.Context, url string, opts ...Option) (*Store, error) {
	redisOpt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return New(rdb, opts...), nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) docKey(key string) string {
	return s.prefix + "doc:" + key
}

func (s *Store) historyKey(key string) string {
	return s.prefix + "history:" + key
}

func (s *Store) channel() string {
	return s.prefix + "events"
}

// Load retrieves a document.
func (s *Store) Load(ctx context.Context, docType, id string) (*core.Document, error) {
	key := core.Key(docType, id)
	data, err := s.rdb.Get(ctx, s.docKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	doc := &core.Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return doc, nil
}

// Populate implements core.Store.
func (s *Store) Populate(ctx context.Context, doc *core.Document, paths ...string) error {
	return core.Populate(ctx, s, doc, paths...)
}

// Save persists a document after checking its revision.
func (s *Store) Save(ctx context.Context, doc *core.Document) error {
	return s.apply(ctx, []change{{doc: doc}})
}

// Delete removes a document after checking its revision.
func (s *Store) Delete(ctx context.Context, doc *core.Document) error {
	return s.apply(ctx, []change{{doc: doc, delete: true}})
}

// Begin starts a new transaction.
func (s *Store) Begin(ctx context.Context) (core.Transaction, error) {
	if s.readOnly {
		return nil, core.ErrReadOnly
	}
	return newTransaction(s), nil
}

// Keys lists the stored document keys, sorted.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, s.docKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.docKey("")))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// History returns the recorded change reasons of a document, newest first.
func (s *Store) History(ctx context.Context, docType, id string, limit int) ([]string, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	return s.rdb.LRange(ctx, s.historyKey(core.Key(docType, id)), 0, stop).Result()
}

type change struct {
	doc    *core.Document
	delete bool
}

type wireEvent struct {
	Type      core.EventType `json:"type"`
	Key       string         `json:"key"`
	Timestamp int64          `json:"timestamp"`
}

// apply checks every revision under WATCH and writes all changes in one
// MULTI/EXEC. A concurrent write to any watched key aborts the whole set.
func (s *Store) apply(ctx context.Context, changes []change) error {
	if s.readOnly {
		return core.ErrReadOnly
	}
	if len(changes) == 0 {
		return nil
	}

	keys := make([]string, len(changes))
	for i, c := range changes {
		keys[i] = s.docKey(c.doc.Key())
	}

	reason, _ := ctx.Value(core.ChangeReasonKey).(string)
	now := time.Now()

	txf := func(tx *redis.Tx) error {
		payloads := make([][]byte, len(changes))
		events := make([]wireEvent, len(changes))

		for i, c := range changes {
			key := c.doc.Key()
			current, err := tx.Get(ctx, keys[i]).Bytes()
			exists := err == nil
			if err != nil && !errors.Is(err, redis.Nil) {
				return fmt.Errorf("failed to read %s: %w", key, err)
			}

			var stored core.Revision
			if exists {
				stored = core.Revision(gjson.GetBytes(current, "revision").Int())
			}

			switch {
			case c.delete && !exists:
				return fmt.Errorf("%s: %w", key, core.ErrNotFound)
			case !exists && c.doc.Revision != 0:
				return fmt.Errorf("%s: stored document is gone (have revision %d): %w", key, c.doc.Revision, core.ErrRevisionConflict)
			case exists && stored != c.doc.Revision:
				return fmt.Errorf("%s: stored revision %d, have %d: %w", key, stored, c.doc.Revision, core.ErrRevisionConflict)
			}

			ev := wireEvent{Type: core.EventModify, Key: key, Timestamp: now.Unix()}
			switch {
			case c.delete:
				ev.Type = core.EventDelete
			case !exists:
				ev.Type = core.EventCreate
			}
			events[i] = ev

			if c.delete {
				continue
			}
			data, err := json.Marshal(c.doc)
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", key, err)
			}
			if payloads[i], err = sjson.SetBytes(data, "revision", c.doc.Revision+1); err != nil {
				return fmt.Errorf("failed to stamp revision of %s: %w", key, err)
			}
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, c := range changes {
				key := c.doc.Key()
				if c.delete {
					pipe.Del(ctx, keys[i], s.historyKey(key))
				} else {
					pipe.Set(ctx, keys[i], payloads[i], 0)
					entry := fmt.Sprintf("%d %s", c.doc.Revision+1, reasonOr(reason, events[i]))
					pipe.LPush(ctx, s.historyKey(key), entry)
					pipe.LTrim(ctx, s.historyKey(key), 0, historyLimit-1)
				}
				msg, _ := json.Marshal(events[i])
				pipe.Publish(ctx, s.channel(), msg)
			}
			return nil
		})
		return err
	}

	err := s.rdb.Watch(ctx, txf, keys...)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%s: concurrent write: %w", strings.Join(keys, ", "), core.ErrRevisionConflict)
	}
	if err != nil {
		return err
	}

	for _, c := range changes {
		if !c.delete {
			c.doc.Revision++
		}
	}
	s.mu.Lock()
	s.saves += len(changes)
	s.mu.Unlock()
	s.logger.Debug("change set written", "documents", len(changes))
	return nil
}

func reasonOr(reason string, e wireEvent) string {
	if reason != "" {
		return reason
	}
	if e.Type == core.EventCreate {
		return "create " + e.Key
	}
	return "update " + e.Key
}

// Watch emits the published change events whose key matches pattern until
// ctx is cancelled.
func (s *Store) Watch(ctx context.Context, pattern string) (<-chan core.Event, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid watch pattern %q", pattern)
	}

	pubsub := s.rdb.Subscribe(ctx, s.channel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	s.mu.Lock()
	s.watchers++
	s.mu.Unlock()

	out := make(chan core.Event, 64)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(out)
		defer func() {
			s.mu.Lock()
			s.watchers--
			s.mu.Unlock()
		}()
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-messages:
				if !ok {
					return nil
				}
				var e wireEvent
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					s.logger.Warn("dropping malformed event", "payload", msg.Payload, "error", err)
					continue
				}
				if match, _ := doublestar.Match(pattern, e.Key); !match {
					continue
				}
				select {
				case out <- core.Event{Type: e.Type, Key: e.Key, Timestamp: e.Timestamp}:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		s.logger.Error("redis watcher failed", "error", err)
	}))
	return out, nil
}

// StoreState exposes internal state for observability.
type StoreState struct {
	Prefix   string `json:"prefix"`
	Addr     string `json:"addr"`
	Saves    int    `json:"saves"`
	Watchers int    `json:"watchers"`
	ReadOnly bool   `json:"read_only"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StoreState{
		Prefix:   s.prefix,
		Addr:     s.rdb.Options().Addr,
		Saves:    s.saves,
		Watchers: s.watchers,
		ReadOnly: s.readOnly,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "redis-store"
}

var (
	_ core.Transactional           = (*Store)(nil)
	_ core.Watchable               = (*Store)(nil)
	_ introspection.Introspectable = (*Store)(nil)
	_ introspection.Component      = (*Store)(nil)
)
