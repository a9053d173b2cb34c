package platform

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFindRoot(t *testing.T) {
	// base/
	//   store/ (.patchwork)
	//     subdir/nested/
	//   project/ (patchwork.yaml)
	//     data/
	//   empty/
	baseDir := t.TempDir()
	storeDir := filepath.Join(baseDir, "store")
	subDir := filepath.Join(storeDir, "subdir")
	nestedDir := filepath.Join(subDir, "nested")
	projectDir := filepath.Join(baseDir, "project")
	dataDir := filepath.Join(projectDir, "data")
	emptyDir := filepath.Join(baseDir, "empty")

	for _, dir := range []string{nestedDir, dataDir, emptyDir, filepath.Join(storeDir, ".patchwork")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(projectDir, ConfigFileName), []byte("adapter: memory\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		startPath string
		wantRoot  string
		wantErr   bool
	}{
		{name: "Start at Root", startPath: storeDir, wantRoot: storeDir},
		{name: "Start in Subdir", startPath: subDir, wantRoot: storeDir},
		{name: "Start Nested Deeply", startPath: nestedDir, wantRoot: storeDir},
		{name: "Config File", startPath: dataDir, wantRoot: projectDir},
		{name: "No Root Found", startPath: emptyDir, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindRoot(tt.startPath)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FindRoot() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrRootNotFound) {
					t.Errorf("expected ErrRootNotFound, got %v", err)
				}
				return
			}
			if filepath.Clean(got) != filepath.Clean(tt.wantRoot) {
				t.Errorf("FindRoot() = %v, want %v", got, tt.wantRoot)
			}
		})
	}
}

func TestResolvePath(t *testing.T) {
	if got := ResolvePath("", false); got != "." {
		t.Errorf("empty path = %q, want .", got)
	}
	if got := ResolvePath("data", false); got != "data" {
		t.Errorf("unforced path = %q, want data", got)
	}

	inTemp := filepath.Join(os.TempDir(), "already-safe")
	if got := ResolvePath(inTemp, true); got != inTemp {
		t.Errorf("temp path = %q, want %q", got, inTemp)
	}

	want := filepath.Join(os.TempDir(), "patchwork-dev", "data")
	if got := ResolvePath("/home/user/data", true); got != want {
		t.Errorf("forced path = %q, want %q", got, want)
	}
	if got := ResolvePath(".", true); got != filepath.Join(os.TempDir(), "patchwork-dev", "default") {
		t.Errorf("forced dot = %q", got)
	}
}

func TestFormatReason(t *testing.T) {
	got := FormatReason("fix", "author", "rename tolkien", "  first name was wrong \n")
	want := "fix(author): rename tolkien\n\nfirst name was wrong\n\n" + Footer
	if got != want {
		t.Errorf("FormatReason() = %q, want %q", got, want)
	}

	if got := FormatReason("", "", "tidy", ""); got != "chore: tidy\n\n"+Footer {
		t.Errorf("default type: %q", got)
	}

	if got := AppendFooter("bulk import"); got != "bulk import\n\n"+Footer {
		t.Errorf("AppendFooter() = %q", got)
	}
	signed := AppendFooter("bulk import")
	if AppendFooter(signed) != signed {
		t.Error("AppendFooter must be idempotent")
	}
}
