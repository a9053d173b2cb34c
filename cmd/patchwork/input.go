package main

import (
	"fmt"
	"io"
	"os"

	"github.com/aretw0/patchwork/pkg/patch"
)

// readInput reads a file, or stdin for "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func readPatch(path string) (patch.Patch, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read patch: %w", err)
	}
	return patch.Decode(data)
}
