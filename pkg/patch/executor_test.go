package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/patchwork/pkg/core"
)

func TestExecutor(t *testing.T) {
	t.Run("Add Overwrites And Inserts", func(t *testing.T) {
		doc := newAuthor()
		x := NewExecutor(nil)
		require.NoError(t, x.Execute(doc, AddOp("/first_name", "Jimmy")))
		require.NoError(t, x.Execute(doc, AddOp("/nickname", "Tollers")))
		require.NoError(t, x.Execute(doc, AddOp("/phone_numbers/0", "000")))

		assert.Equal(t, "Jimmy", doc.Fields["first_name"])
		assert.Equal(t, "Tollers", doc.Fields["nickname"])
		assert.Equal(t, []any{"000", "111-111-1111", "222-222-2222"}, doc.Fields["phone_numbers"])
		assert.Equal(t, []*core.Document{doc}, x.Mutated())
	})

	t.Run("Remove Nulls Fields And Splices Arrays", func(t *testing.T) {
		doc := newAuthor()
		x := NewExecutor(nil)
		require.NoError(t, x.Execute(doc, RemoveOp("/last_name")))
		require.NoError(t, x.Execute(doc, RemoveOp("/phone_numbers/0")))

		v, ok := doc.Fields["last_name"]
		assert.True(t, ok, "removed fields stay present")
		assert.Nil(t, v)
		assert.Equal(t, []any{"222-222-2222"}, doc.Fields["phone_numbers"])
	})

	t.Run("Replace Requires Existing Key", func(t *testing.T) {
		doc := newAuthor()
		x := NewExecutor(nil)
		err := x.Execute(doc, ReplaceOp("/nickname", "Tollers"))
		assert.ErrorIs(t, err, ErrPathNotFound)
		_, ok := doc.Fields["nickname"]
		assert.False(t, ok)
	})

	t.Run("Move", func(t *testing.T) {
		doc := newAuthor()
		x := NewExecutor(nil)
		require.NoError(t, x.Execute(doc, MoveOp("/phone_numbers/0", "/phone_numbers/-")))
		assert.Equal(t, []any{"222-222-2222", "111-111-1111"}, doc.Fields["phone_numbers"])

		require.NoError(t, x.Execute(doc, MoveOp("/first_name", "/address/first_name")))
		assert.Nil(t, doc.Fields["first_name"])
		assert.Equal(t, "JRR", doc.Fields["address"].(map[string]any)["first_name"])

		err := x.Execute(doc, MoveOp("/address", "/address/nested"))
		assert.ErrorIs(t, err, ErrInvalidPath)
	})

	t.Run("Copy Is Independent", func(t *testing.T) {
		doc := newAuthor()
		x := NewExecutor(nil)
		require.NoError(t, x.Execute(doc, CopyOp("/address", "/office")))
		require.NoError(t, x.Execute(doc, ReplaceOp("/office/city", "London")))

		assert.Equal(t, "Oxford", doc.Fields["address"].(map[string]any)["city"])
		assert.Equal(t, "London", doc.Fields["office"].(map[string]any)["city"])
	})

	t.Run("Test", func(t *testing.T) {
		doc := newAuthor()
		doc.Fields["age"] = 81
		x := NewExecutor(nil)
		assert.NoError(t, x.Execute(doc, TestOp("/age", 81.0)))
		assert.NoError(t, x.Execute(doc, TestOp("/address", map[string]any{"city": "Oxford"})))
		assert.NoError(t, x.Execute(doc, TestOp("/books/0", "hobbit")), "references compare by id")

		err := x.Execute(doc, TestOp("/first_name", "Jimmy"))
		assert.ErrorIs(t, err, ErrTestFailed)
		assert.Empty(t, x.Mutated(), "tests never mutate")
	})

	t.Run("Rollback", func(t *testing.T) {
		doc := newAuthor()
		x := NewExecutor(nil)
		require.NoError(t, x.Execute(doc, ReplaceOp("/first_name", "Jimmy")))
		require.NoError(t, x.Execute(doc, AddOp("/phone_numbers/-", "333")))
		x.Rollback()

		assert.Equal(t, newAuthor().Fields, doc.Fields)
		assert.Empty(t, x.Mutated())
	})
}

func TestExecutorReferences(t *testing.T) {
	schemas := librarySchemas()

	t.Run("Id Becomes Reference", func(t *testing.T) {
		doc := newAuthor()
		x := NewExecutor(schemas)
		require.NoError(t, x.Execute(doc, AddOp("/books/-", "silmarillion")))

		ref, ok := doc.Fields["books"].([]any)[1].(*core.Reference)
		require.True(t, ok)
		assert.Equal(t, "book", ref.Type)
		assert.Equal(t, "silmarillion", ref.ID)
		assert.Empty(t, x.Created())
	})

	t.Run("Create And Link", func(t *testing.T) {
		doc := newAuthor()
		x := NewExecutor(schemas)
		x.newID = func() string { return "silmarillion" }
		require.NoError(t, x.Execute(doc, AddOp("/books/-", map[string]any{"name": "The Silmarillion"})))

		created := x.Created()
		require.Len(t, created, 1)
		assert.Equal(t, "book/silmarillion", created[0].Key())
		assert.Equal(t, "The Silmarillion", created[0].Fields["name"])

		ref := doc.Fields["books"].([]any)[1].(*core.Reference)
		assert.Same(t, created[0], ref.Target)

		require.NoError(t, x.Execute(doc, ReplaceOp("/books/1/name", "Silmarillion")))
		assert.Equal(t, "Silmarillion", created[0].Fields["name"])
		assert.Equal(t, []*core.Document{doc}, x.Mutated(), "created documents are not reported as mutated")
	})

	t.Run("Stored Reference Form", func(t *testing.T) {
		doc := newBook()
		x := NewExecutor(schemas)
		require.NoError(t, x.Execute(doc, ReplaceOp("/author", map[string]any{"$ref": "author", "$id": "lewis"})))
		ref := doc.Fields["author"].(*core.Reference)
		assert.Equal(t, "lewis", ref.ID)
		assert.Empty(t, x.Created())
	})

	t.Run("Whole Reference Array", func(t *testing.T) {
		doc := newAuthor()
		x := NewExecutor(schemas)
		require.NoError(t, x.Execute(doc, ReplaceOp("/books", []any{"a", "b"})))
		books := doc.Fields["books"].([]any)
		require.Len(t, books, 2)
		assert.Equal(t, core.Ref("book", "b"), books[1])
	})

	t.Run("Rejects Scalars", func(t *testing.T) {
		doc := newBook()
		x := NewExecutor(schemas)
		err := x.Execute(doc, ReplaceOp("/author", 42))
		assert.ErrorIs(t, err, ErrInvalidOperation)
	})

	t.Run("Mutates Owner Across Reference", func(t *testing.T) {
		author := linkedAuthor()
		book := author.Fields["books"].([]any)[0].(*core.Reference).Target
		x := NewExecutor(schemas)
		require.NoError(t, x.Execute(author, ReplaceOp("/books/0/name", "There and Back Again")))
		assert.Equal(t, "There and Back Again", book.Fields["name"])
		assert.Equal(t, []*core.Document{book}, x.Mutated())
	})
}
