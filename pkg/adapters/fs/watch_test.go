package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/patchwork/pkg/core"
)

func nextEvent(t *testing.T, events <-chan core.Event) core.Event {
	t.Helper()
	select {
	case e, ok := <-events:
		require.True(t, ok, "event channel closed")
		return e
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return core.Event{}
	}
}

func TestWatch(t *testing.T) {
	repo := setupTestRepo(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	existing := core.NewDocument("author", "tolkien", nil)
	require.NoError(t, repo.Save(ctx, existing))

	events, err := repo.Watch(ctx, "author/*")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return repo.State().(RepositoryState).WatcherActive
	}, time.Second, 10*time.Millisecond)

	// Other types are filtered by the pattern.
	require.NoError(t, repo.Save(ctx, core.NewDocument("book", "hobbit", nil)))

	require.NoError(t, repo.Save(ctx, existing))
	e := nextEvent(t, events)
	assert.Equal(t, core.Event{Type: core.EventModify, Key: "author/tolkien", Timestamp: e.Timestamp}, e)

	lewis := core.NewDocument("author", "lewis", nil)
	require.NoError(t, repo.Save(ctx, lewis))
	e = nextEvent(t, events)
	assert.Equal(t, core.EventCreate, e.Type)
	assert.Equal(t, "author/lewis", e.Key)

	require.NoError(t, repo.Delete(ctx, lewis))
	e = nextEvent(t, events)
	assert.Equal(t, core.EventDelete, e.Type)
	assert.Equal(t, "author/lewis", e.Key)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, open := <-events:
			return !open
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, repo.State().(RepositoryState).WatcherActive)
}

func TestWatch_NewTypeDirectory(t *testing.T) {
	repo := setupTestRepo(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := repo.Watch(ctx, "**")
	require.NoError(t, err)

	// Files written by hand are reported too; hidden and foreign files are not.
	dir := filepath.Join(repo.Path, "shelf")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	body := `{"id":"top","type":"shelf","revision":1,"fields":{}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "top.json"), []byte(body), 0644))

	e := nextEvent(t, events)
	assert.Equal(t, core.EventCreate, e.Type)
	assert.Equal(t, "shelf/top", e.Key)
}

func TestWatch_InvalidPattern(t *testing.T) {
	repo := setupTestRepo(t, true)
	_, err := repo.Watch(context.Background(), "[")
	assert.Error(t, err)
}

func TestDebouncer(t *testing.T) {
	d := newDebouncer(50 * time.Millisecond)
	start := time.Now()

	d.add("author/b", start)
	d.add("author/a", start)
	d.add("author/b", start.Add(40*time.Millisecond))

	assert.Empty(t, d.due(start.Add(10*time.Millisecond)))
	assert.Equal(t, []string{"author/a"}, d.due(start.Add(60*time.Millisecond)))
	assert.Equal(t, []string{"author/b"}, d.due(start.Add(100*time.Millisecond)))
	assert.Empty(t, d.due(start.Add(time.Second)))
}
