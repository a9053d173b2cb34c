package platform_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/patchwork/internal/platform"
	"github.com/aretw0/patchwork/pkg/adapters/fs"
	"github.com/aretw0/patchwork/pkg/core"
	"github.com/aretw0/patchwork/pkg/git"
	"github.com/aretw0/patchwork/pkg/patch"
)

const projectConfig = `path: data
schemas:
  - type: author
    references:
      /books: book
    blacklist: [/ssn]
rules:
  - op: add
    path: /first_name
    when: value == "Jimmy"
    set: '"Jimmie"'
`

func setupWorkspace(t *testing.T, opts ...platform.Option) (*platform.Workspace, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, platform.ConfigFileName), []byte(projectConfig), 0644))

	ws, err := platform.Open(context.Background(), dir, append([]platform.Option{platform.WithAutoInit(true)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws, filepath.Join(dir, "data")
}

func TestWorkspace_ApplyCommits(t *testing.T) {
	if !fs.IsGitInstalled() {
		t.Skip("git not installed")
	}
	ws, dataDir := setupWorkspace(t, platform.WithAuthor("patchwork", "patchwork@example.com"))
	ctx := context.Background()

	require.NoError(t, ws.Service.SaveDocument(ctx, core.NewDocument("author", "tolkien", core.Fields{"books": []any{}})))

	p := patch.Patch{
		patch.AddOp("/first_name", "Jimmy"),
		patch.AddOp("/books/-", map[string]any{"title": "The Hobbit"}),
	}
	res, err := ws.Engine.ApplyByID(ctx, "author", "tolkien", p, patch.Reason("feat(author): add hobbit"))
	require.NoError(t, err)
	assert.True(t, res.Committed)
	require.Len(t, res.Created, 1)

	loaded, err := ws.Service.GetDocument(ctx, "author", "tolkien")
	require.NoError(t, err)
	assert.Equal(t, "Jimmie", loaded.Fields["first_name"], "rule from config rewrites the value")
	assert.Equal(t, core.Revision(2), loaded.Revision)

	books := loaded.Fields["books"].([]any)
	require.Len(t, books, 1)
	ref := books[0].(*core.Reference)
	assert.Equal(t, "book", ref.Type)

	book, err := ws.Service.GetDocument(ctx, "book", ref.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Hobbit", book.Fields["title"])

	client := git.NewClient(dataDir, "", nil)
	status, err := client.Status()
	require.NoError(t, err)
	assert.Empty(t, status, "apply leaves a clean tree")

	log, err := client.Log("", 1)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Contains(t, log[0], "feat(author): add hobbit")
}

func TestWorkspace_SchemaBlacklist(t *testing.T) {
	ws, _ := setupWorkspace(t, platform.WithVersioning(false))
	ctx := context.Background()

	require.NoError(t, ws.Service.SaveDocument(ctx, core.NewDocument("author", "tolkien", nil)))

	_, err := ws.Engine.ApplyByID(ctx, "author", "tolkien", patch.Patch{patch.AddOp("/ssn", "123")})
	require.Error(t, err)
	assert.ErrorIs(t, err, patch.ErrBlacklistedPath)

	var opErr *patch.OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, 0, opErr.Index)

	loaded, err := ws.Service.GetDocument(ctx, "author", "tolkien")
	require.NoError(t, err)
	assert.Equal(t, core.Revision(1), loaded.Revision, "a rejected patch is not saved")
}

func TestWorkspace_OptionsOverrideConfig(t *testing.T) {
	ws, _ := setupWorkspace(t, platform.WithAdapter("memory"), platform.WithEventBuffer(4))
	state := ws.Service.State().(core.ServiceState)
	assert.Equal(t, "memory-store", state.StoreType)
	assert.Equal(t, 4, state.EventBufferSize)
}

func TestWorkspace_InvalidRules(t *testing.T) {
	_, err := platform.New(context.Background(), "", platform.WithAdapter("memory"),
		platform.WithRules(patch.RuleSpec{Op: "frobnicate"}))
	assert.ErrorIs(t, err, patch.ErrInvalidOperation)
}

func TestWorkspace_ReadOnly(t *testing.T) {
	dir := t.TempDir()
	ws, err := platform.New(context.Background(), dir, platform.WithVersioning(false), platform.WithReadOnly(true))
	require.NoError(t, err)

	err = ws.Service.SaveDocument(context.Background(), core.NewDocument("a", "1", nil))
	assert.ErrorIs(t, err, core.ErrReadOnly)
}
