package platform

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/aretw0/patchwork/pkg/adapters/fs"
)

// ErrRootNotFound is returned by FindRoot when no indicator exists up to the
// filesystem root.
var ErrRootNotFound = errors.New("root not found")

// FindRoot looks upwards from startDir for a project root: a directory with
// patchwork.yaml, a .patchwork system directory, or a .git directory.
// It returns the absolute path of the first match.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if hasFile(dir, ConfigFileName) || hasFile(dir, fs.DefaultSystemDir) || hasFile(dir, ".git") {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrRootNotFound
		}
		dir = parent
	}
}

func hasFile(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
