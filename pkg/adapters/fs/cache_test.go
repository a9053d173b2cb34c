package fs

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCache_Load(t *testing.T) {
	t.Run("Starts Empty if File Missing", func(t *testing.T) {
		c := newCache(t.TempDir(), ".cache")
		if err := c.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if c.Len() != 0 {
			t.Errorf("Expected empty entries, got %d", c.Len())
		}
	})

	t.Run("Loads Valid JSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		cacheDir := filepath.Join(tmpDir, ".cache")
		if err := os.MkdirAll(cacheDir, 0755); err != nil {
			t.Fatal(err)
		}

		jsonContent := `{
			"version": 1,
			"entries": {
				"author/tolkien.json": {
					"key": "author/tolkien",
					"revision": 3,
					"lastModified": "2024-01-02T03:04:05Z"
				}
			}
		}`
		if err := os.WriteFile(filepath.Join(cacheDir, "index.json"), []byte(jsonContent), 0644); err != nil {
			t.Fatal(err)
		}

		c := newCache(tmpDir, ".cache")
		if err := c.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		mtime := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		entry, ok := c.Get("author/tolkien.json", mtime)
		if !ok {
			t.Fatal("Expected entry author/tolkien.json not found")
		}
		if entry.Revision != 3 {
			t.Errorf("Expected revision 3, got %d", entry.Revision)
		}
	})

	t.Run("Resets on Corrupted JSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		cacheDir := filepath.Join(tmpDir, ".cache")
		if err := os.MkdirAll(cacheDir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(cacheDir, "index.json"), []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}

		c := newCache(tmpDir, ".cache")
		if err := c.Load(); err != nil {
			t.Fatalf("Load should self-heal, got %v", err)
		}
		if c.Len() != 0 {
			t.Errorf("Expected empty entries, got %d", c.Len())
		}
	})
}

func TestCache_Freshness(t *testing.T) {
	c := newCache(t.TempDir(), ".cache")
	mtime := time.Now()

	c.Set("book/hobbit.json", &indexEntry{Key: "book/hobbit", Revision: 2, LastModified: mtime})

	if _, ok := c.Get("book/hobbit.json", mtime); !ok {
		t.Error("expected hit for the recorded mtime")
	}
	if _, ok := c.Get("book/hobbit.json", mtime.Add(time.Second)); ok {
		t.Error("expected miss once the file changed")
	}
	if _, ok := c.Get("book/lotr.json", mtime); ok {
		t.Error("expected miss for unknown path")
	}
}

func TestCache_SavePrune(t *testing.T) {
	tmpDir := t.TempDir()
	c := newCache(tmpDir, ".patchwork")
	mtime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c.Set("author/tolkien.json", &indexEntry{Key: "author/tolkien", Revision: 1, LastModified: mtime})
	c.Set("book/hobbit.json", &indexEntry{Key: "book/hobbit", Revision: 4, LastModified: mtime})

	if err := c.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, ".patchwork", "index.json")); err != nil {
		t.Fatalf("index not written: %v", err)
	}

	c.Prune(map[string]bool{"book/hobbit.json": true})
	c.Delete("missing.json")
	if err := c.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded := newCache(tmpDir, ".patchwork")
	if err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}
	if reloaded.Len() != 1 {
		t.Fatalf("expected 1 entry after prune, got %d", reloaded.Len())
	}
	entry, ok := reloaded.Get("book/hobbit.json", mtime)
	if !ok || entry.Revision != 4 {
		t.Errorf("unexpected entry %+v", entry)
	}
}
