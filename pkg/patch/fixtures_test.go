package patch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/patchwork/pkg/adapters/memory"
	"github.com/aretw0/patchwork/pkg/core"
)

func librarySchemas() core.Schemas {
	return core.NewSchemas(
		&core.Schema{
			Type:       "author",
			References: map[string]string{"/books": "book"},
			Blacklist:  []string{"/ssn"},
		},
		&core.Schema{
			Type:       "book",
			References: map[string]string{"/author": "author"},
			Blacklist:  []string{"/publisher"},
		},
	)
}

func newAuthor() *core.Document {
	return core.NewDocument("author", "tolkien", core.Fields{
		"first_name":    "JRR",
		"last_name":     "Tolkien",
		"phone_numbers": []any{"111-111-1111", "222-222-2222"},
		"books":         []any{core.Ref("book", "hobbit")},
		"address":       map[string]any{"city": "Oxford"},
	})
}

func newBook() *core.Document {
	return core.NewDocument("book", "hobbit", core.Fields{
		"name":      "The Hobbit",
		"author":    core.Ref("author", "tolkien"),
		"publisher": "Allen & Unwin",
	})
}

// seedLibrary returns a store holding one author and one book, and an
// engine over it.
func seedLibrary(t *testing.T, opts ...EngineOption) (*memory.Store, *Engine) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Save(ctx, newAuthor()))
	require.NoError(t, store.Save(ctx, newBook()))

	opts = append([]EngineOption{WithSchemas(librarySchemas())}, opts...)
	return store, NewEngine(store, opts...)
}

func load(t *testing.T, store core.Loader, docType, id string) *core.Document {
	t.Helper()
	doc, err := store.Load(context.Background(), docType, id)
	require.NoError(t, err)
	return doc
}

// linkedAuthor returns an author whose books are resolved in memory.
func linkedAuthor() *core.Document {
	author := newAuthor()
	book := newBook()
	book.Fields["author"] = core.Link(author)
	author.Fields["books"] = []any{core.Link(book)}
	return author
}
