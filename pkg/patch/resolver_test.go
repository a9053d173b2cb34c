package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/patchwork/pkg/core"
)

func TestResolve(t *testing.T) {
	t.Run("Object Field", func(t *testing.T) {
		doc := newAuthor()
		target, err := Resolve(doc, MustPointer("/first_name"), ModeRead)
		require.NoError(t, err)
		assert.Same(t, doc, target.Owner)
		assert.Equal(t, "JRR", target.Get())
		assert.Equal(t, "/first_name", target.Field)
		assert.True(t, target.Exists)
		assert.False(t, target.IsElement())
	})

	t.Run("Embedded Object", func(t *testing.T) {
		doc := newAuthor()
		target, err := Resolve(doc, MustPointer("/address/city"), ModeRead)
		require.NoError(t, err)
		assert.Equal(t, "Oxford", target.Get())
		assert.Equal(t, "/address/city", target.Field)
	})

	t.Run("Array Element", func(t *testing.T) {
		doc := newAuthor()
		target, err := Resolve(doc, MustPointer("/phone_numbers/1"), ModeRead)
		require.NoError(t, err)
		assert.True(t, target.IsElement())
		assert.Equal(t, 1, target.Index)
		assert.Equal(t, "222-222-2222", target.Get())
		assert.Equal(t, "/phone_numbers", target.Field)
	})

	t.Run("Append Marker", func(t *testing.T) {
		doc := newAuthor()
		target, err := Resolve(doc, MustPointer("/phone_numbers/-"), ModeAdd)
		require.NoError(t, err)
		assert.True(t, target.Append)
		assert.Equal(t, 2, target.Index)

		_, err = Resolve(doc, MustPointer("/phone_numbers/-"), ModeRead)
		assert.ErrorIs(t, err, ErrInvalidPath)
	})

	t.Run("Missing Key", func(t *testing.T) {
		doc := newAuthor()
		_, err := Resolve(doc, MustPointer("/nickname"), ModeRead)
		assert.ErrorIs(t, err, ErrPathNotFound)

		target, err := Resolve(doc, MustPointer("/nickname"), ModeAdd)
		require.NoError(t, err)
		assert.False(t, target.Exists)

		_, err = Resolve(doc, MustPointer("/nothing/here"), ModeAdd)
		assert.ErrorIs(t, err, ErrPathNotFound)
	})

	t.Run("Nil Fields", func(t *testing.T) {
		doc := core.NewDocument("author", "nobody", nil)
		doc.Fields = nil

		_, err := Resolve(doc, MustPointer("/first_name"), ModeRead)
		assert.ErrorIs(t, err, ErrPathNotFound)
		assert.Nil(t, doc.Fields, "reading leaves the document untouched")

		target, err := Resolve(doc, MustPointer("/first_name"), ModeAdd)
		require.NoError(t, err)
		assert.False(t, target.Exists)
		assert.NotNil(t, doc.Fields)
	})

	t.Run("Bounds", func(t *testing.T) {
		doc := newAuthor()
		_, err := Resolve(doc, MustPointer("/phone_numbers/2"), ModeAdd)
		assert.NoError(t, err, "add may address one past the end")

		_, err = Resolve(doc, MustPointer("/phone_numbers/3"), ModeAdd)
		assert.ErrorIs(t, err, ErrIndexOutOfBounds)

		_, err = Resolve(doc, MustPointer("/phone_numbers/2"), ModeRead)
		assert.ErrorIs(t, err, ErrIndexOutOfBounds)

		_, err = Resolve(doc, MustPointer("/phone_numbers/99999999999999999999"), ModeRead)
		assert.ErrorIs(t, err, ErrIndexOutOfBounds)

		_, err = Resolve(doc, MustPointer("/phone_numbers/99999999999999999999"), ModeAdd)
		assert.ErrorIs(t, err, ErrIndexOutOfBounds)
	})

	t.Run("Malformed Paths", func(t *testing.T) {
		doc := newAuthor()
		_, err := Resolve(doc, Pointer{}, ModeAdd)
		assert.ErrorIs(t, err, ErrInvalidPath, "root is not patchable")

		_, err = Resolve(doc, MustPointer("/phone_numbers/-/x"), ModeAdd)
		assert.ErrorIs(t, err, ErrInvalidPath)

		_, err = Resolve(doc, MustPointer("/phone_numbers/01"), ModeRead)
		assert.ErrorIs(t, err, ErrInvalidPath)

		_, err = Resolve(doc, MustPointer("/first_name/-"), ModeAdd)
		assert.ErrorIs(t, err, ErrPathNotFound, "scalars have no children")

		_, err = Resolve(doc, MustPointer("/address/-"), ModeAdd)
		assert.ErrorIs(t, err, ErrInvalidPath)
	})

	t.Run("Unresolved Reference", func(t *testing.T) {
		doc := newAuthor()
		_, err := Resolve(doc, MustPointer("/books/0/name"), ModeRead)
		assert.ErrorIs(t, err, ErrUnresolvedReference)
	})

	t.Run("Crosses Resolved Reference", func(t *testing.T) {
		doc := linkedAuthor()
		target, err := Resolve(doc, MustPointer("/books/0/name"), ModeRead)
		require.NoError(t, err)
		assert.Equal(t, "book", target.Owner.Type)
		assert.Equal(t, "The Hobbit", target.Get())
		assert.Equal(t, Pointer{"name"}, target.Rel)
		assert.Equal(t, "/name", target.Field)
	})

	t.Run("Reference Field Itself", func(t *testing.T) {
		doc := linkedAuthor()
		target, err := Resolve(doc, MustPointer("/books/0"), ModeRead)
		require.NoError(t, err)
		assert.Same(t, doc, target.Owner)
		_, ok := target.Get().(*core.Reference)
		assert.True(t, ok)
	})
}

func TestPointer(t *testing.T) {
	p, err := ParsePointer("/a~1b/m~0n/0")
	require.NoError(t, err)
	assert.Equal(t, Pointer{"a/b", "m~n", "0"}, p)
	assert.Equal(t, "/a~1b/m~0n/0", p.String())

	_, err = ParsePointer("no-slash")
	assert.ErrorIs(t, err, ErrInvalidPath)

	assert.True(t, MustPointer("/a/b/c").HasPrefix(MustPointer("/a/b")))
	assert.False(t, MustPointer("/a/bc").HasPrefix(MustPointer("/a/b")))
	assert.Equal(t, []Pointer{{"a"}, {"a", "b"}}, MustPointer("/a/b/c").Ancestors())
	assert.Equal(t, "/a/7", MustPointer("/a/-").With("7").String())
}
