package typed_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/patchwork/pkg/adapters/memory"
	"github.com/aretw0/patchwork/pkg/core"
	"github.com/aretw0/patchwork/pkg/patch"
	"github.com/aretw0/patchwork/pkg/typed"
)

type UserProfile struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Age   int    `json:"age"`
}

type Author struct {
	Name  string       `json:"name"`
	Books []*typed.Ref `json:"books"`
}

func TestTypedRepository(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	users := typed.NewRepository[UserProfile](store, "user")

	alice := &typed.DocumentModel[UserProfile]{
		ID:   "alice",
		Data: UserProfile{Name: "Alice", Email: "alice@example.com", Age: 30},
	}
	require.NoError(t, users.Save(ctx, alice))
	assert.Equal(t, core.Revision(1), alice.Revision)

	got, err := users.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.Data, got.Data)
	assert.Equal(t, core.Revision(1), got.Revision)

	// Active record style save through the attached repository.
	got.Data.Age = 31
	require.NoError(t, got.Save(ctx))
	assert.Equal(t, core.Revision(2), got.Revision)

	// The first model is stale now.
	assert.ErrorIs(t, users.Save(ctx, alice), core.ErrRevisionConflict)
	assert.ErrorIs(t, users.Delete(ctx, alice), core.ErrRevisionConflict)

	require.NoError(t, users.Delete(ctx, got))
	_, err = users.Get(ctx, "alice")
	assert.ErrorIs(t, err, core.ErrNotFound)

	detached := &typed.DocumentModel[UserProfile]{ID: "bob"}
	assert.Error(t, detached.Save(ctx))
}

func TestTypedRepository_References(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	authors := typed.NewRepository[Author](store, "author")

	tolkien := &typed.DocumentModel[Author]{
		ID:   "tolkien",
		Data: Author{Name: "JRR", Books: []*typed.Ref{{Type: "book", ID: "hobbit"}}},
	}
	require.NoError(t, authors.Save(ctx, tolkien))

	raw, err := store.Load(ctx, "author", "tolkien")
	require.NoError(t, err)
	assert.Equal(t, []any{core.Ref("book", "hobbit")}, raw.Fields["books"])

	got, err := authors.Get(ctx, "tolkien")
	require.NoError(t, err)
	require.Len(t, got.Data.Books, 1)
	assert.Equal(t, core.Ref("book", "hobbit"), got.Data.Books[0].Core())
}

func TestTypedRepository_Patch(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, core.NewDocument("book", "hobbit", core.Fields{"title": "The Hobbit"})))

	engine := patch.NewEngine(store, patch.WithSchemas(core.NewSchemas(&core.Schema{
		Type:       "author",
		References: map[string]string{"/books": "book"},
	})))
	authors := typed.NewRepository[Author](store, "author").WithEngine(engine)
	assert.Equal(t, "author", authors.Type())

	require.NoError(t, authors.Save(ctx, &typed.DocumentModel[Author]{ID: "tolkien", Data: Author{Name: "JRR", Books: []*typed.Ref{}}}))

	model, res, err := authors.Patch(ctx, "tolkien", patch.Patch{
		patch.ReplaceOp("/name", "John Ronald Reuel"),
		patch.AddOp("/books/-", "hobbit"),
	})
	require.NoError(t, err)
	assert.True(t, res.Committed)
	assert.Equal(t, "John Ronald Reuel", model.Data.Name)
	assert.Equal(t, core.Revision(2), model.Revision)
	require.Len(t, model.Data.Books, 1)
	assert.Equal(t, "hobbit", model.Data.Books[0].ID)

	model, res, err = authors.Patch(ctx, "tolkien", patch.Patch{patch.ReplaceOp("/name", "Tolkien")}, patch.Autosave(false))
	require.NoError(t, err)
	assert.False(t, res.Committed)
	assert.Equal(t, "Tolkien", model.Data.Name)

	stored, err := authors.Get(ctx, "tolkien")
	require.NoError(t, err)
	assert.Equal(t, "John Ronald Reuel", stored.Data.Name)

	_, _, err = authors.Patch(ctx, "tolkien", patch.Patch{patch.RemoveOp("/missing")})
	assert.ErrorIs(t, err, patch.ErrPathNotFound)
}
