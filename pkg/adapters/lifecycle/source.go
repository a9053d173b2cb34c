// Package lifecycle exposes store change events as a lifecycle.Source.
package lifecycle

import (
	"context"
	"errors"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/patchwork/pkg/core"
)

type storeSource struct {
	watch  func(ctx context.Context) (<-chan core.Event, error)
	filter map[core.EventType]bool
	out    chan lifecycle.Event
}

// NewSource creates a lifecycle.Source that forwards events from a channel.
// When types are given, only events of those types are forwarded.
func NewSource(events <-chan core.Event, types ...core.EventType) lifecycle.Source {
	return newSource(func(context.Context) (<-chan core.Event, error) {
		return events, nil
	}, types)
}

// NewStoreSource creates a lifecycle.Source that watches store for keys
// matching pattern once started.
func NewStoreSource(store core.Watchable, pattern string, types ...core.EventType) lifecycle.Source {
	return newSource(func(ctx context.Context) (<-chan core.Event, error) {
		return store.Watch(ctx, pattern)
	}, types)
}

func newSource(watch func(ctx context.Context) (<-chan core.Event, error), types []core.EventType) *storeSource {
	s := &storeSource{watch: watch, out: make(chan lifecycle.Event)}
	if len(types) > 0 {
		s.filter = make(map[core.EventType]bool, len(types))
		for _, t := range types {
			s.filter[t] = true
		}
	}
	return s
}

func (s *storeSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *storeSource) Start(ctx context.Context) error {
	events, err := s.watch(ctx)
	if err != nil {
		close(s.out)
		return err
	}
	if events == nil {
		close(s.out)
		return errors.New("no event channel to bridge")
	}

	// core.Event implements lifecycle.Event through its String method.
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				if s.filter != nil && !s.filter[e.Type] {
					continue
				}
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
