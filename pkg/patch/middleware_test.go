package patch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/patchwork/pkg/core"
)

func TestPipeline(t *testing.T) {
	ctx := context.Background()

	tag := func(name string, trace *[]string) Handler {
		return func(ctx context.Context, doc *core.Document, op *Operation, next Next) error {
			*trace = append(*trace, name)
			return next(ctx, op)
		}
	}

	t.Run("Chains Matching Rules In Order", func(t *testing.T) {
		var trace []string
		p := NewPipeline(
			Rule{Handler: tag("all", &trace)},
			Rule{Op: Remove, Handler: tag("remove", &trace)},
			Rule{Op: Add, Path: "/phone_numbers/*", Handler: tag("phones", &trace)},
			Rule{Op: "*", Path: "/**", Handler: tag("deep", &trace)},
		)
		assert.Equal(t, 4, p.Len())

		op := AddOp("/phone_numbers/-", "333")
		executed, err := p.Run(ctx, newAuthor(), &op, func(ctx context.Context, op *Operation) error {
			trace = append(trace, "final")
			return nil
		})
		require.NoError(t, err)
		assert.True(t, executed)
		assert.Equal(t, []string{"all", "phones", "deep", "final"}, trace)
	})

	t.Run("Selection Uses Submitted Operation", func(t *testing.T) {
		var trace []string
		p := NewPipeline(
			Rule{Handler: func(ctx context.Context, doc *core.Document, op *Operation, next Next) error {
				op.Path = "/other"
				return next(ctx, op)
			}},
			Rule{Path: "/first_name", Handler: tag("first", &trace)},
		)
		op := ReplaceOp("/first_name", "John")
		var final Operation
		_, err := p.Run(ctx, newAuthor(), &op, func(ctx context.Context, op *Operation) error {
			final = *op
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"first"}, trace)
		assert.Equal(t, "/other", final.Path)
	})

	t.Run("Skip And Abort", func(t *testing.T) {
		p := NewPipeline(Rule{Handler: func(ctx context.Context, doc *core.Document, op *Operation, next Next) error {
			return nil
		}})
		op := RemoveOp("/a")
		executed, err := p.Run(ctx, newAuthor(), &op, func(ctx context.Context, op *Operation) error {
			t.Fatal("final must not run")
			return nil
		})
		require.NoError(t, err)
		assert.False(t, executed)

		boom := errors.New("boom")
		p = NewPipeline()
		p.Use(Rule{Handler: func(ctx context.Context, doc *core.Document, op *Operation, next Next) error {
			return boom
		}})
		_, err = p.Run(ctx, newAuthor(), &op, func(ctx context.Context, op *Operation) error { return nil })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("Empty Pipeline", func(t *testing.T) {
		op := RemoveOp("/a")
		executed, err := NewPipeline().Run(ctx, nil, &op, func(ctx context.Context, op *Operation) error { return nil })
		require.NoError(t, err)
		assert.True(t, executed)
	})
}

func TestGuard(t *testing.T) {
	g, err := NewGuard("/publisher", "/secrets/**", "/books/*/isbn", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"/publisher", "/secrets/**", "/books/*/isbn"}, g.Patterns())

	denied := []string{"/publisher", "/publisher/name", "/secrets/pin", "/books/0/isbn", "/books/0/isbn/prefix"}
	for _, p := range denied {
		assert.ErrorIs(t, g.Check("book", MustPointer(p)), ErrBlacklistedPath, p)
	}

	allowed := []string{"/publishers", "/books/0/name", "/books/-"}
	for _, p := range allowed {
		assert.NoError(t, g.Check("book", MustPointer(p)), p)
	}

	_, err = NewGuard("/bad[")
	assert.Error(t, err)

	var nilGuard *Guard
	assert.NoError(t, nilGuard.Check("book", MustPointer("/publisher")))
}
