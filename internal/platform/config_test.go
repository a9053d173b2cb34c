package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `adapter: fs
path: data
format: yaml
versioning: false
schemas:
  - type: author
    references:
      /books: book
    blacklist: [/ssn]
blacklist:
  - /internal/**
rules:
  - op: add
    path: /first_name
    when: value == "Jimmy"
    set: '"Jimmie"'
`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(writeConfig(t, dir, sampleConfig))
	require.NoError(t, err)

	abs, _ := filepath.Abs(dir)
	assert.Equal(t, "fs", cfg.Adapter)
	assert.Equal(t, filepath.Join(abs, "data"), cfg.URI())
	assert.Equal(t, "yaml", cfg.Format)
	require.NotNil(t, cfg.Versioning)
	assert.False(t, *cfg.Versioning)

	require.Len(t, cfg.Schemas, 1)
	ref, ok := cfg.Schemas[0].ReferenceType("/books")
	assert.True(t, ok)
	assert.Equal(t, "book", ref)
	assert.Equal(t, []string{"/ssn"}, cfg.Schemas[0].Blacklist)
	assert.Equal(t, []string{"/internal/**"}, cfg.Blacklist)

	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, `value == "Jimmy"`, cfg.Rules[0].When)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"UnknownField", "adapter: fs\ncolour: blue\n"},
		{"UnknownAdapter", "adapter: sqlite\n"},
		{"RedisWithoutURL", "adapter: redis\n"},
		{"SchemaWithoutType", "schemas:\n  - references: {/a: b}\n"},
		{"DuplicateSchema", "schemas:\n  - type: a\n  - type: a\n"},
		{"BadRule", "rules:\n  - op: add\n    when: 'value =='\n"},
		{"BadBlacklist", "blacklist: ['/a/[']\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, t.TempDir(), tt.content))
			assert.Error(t, err)
		})
	}
}

func TestFindConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "adapter: memory\n")
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	cfg, err := FindConfig(nested)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Adapter)

	// A root marked only by .patchwork has no configuration file.
	other := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(other, ".patchwork"), 0755))
	_, err = FindConfig(other)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfig_URIRedis(t *testing.T) {
	cfg := &Config{Adapter: "redis", URL: "redis://localhost:6379/0", Dir: "/srv"}
	assert.Equal(t, "redis://localhost:6379/0", cfg.URI())

	cfg = &Config{Path: "/abs/data", Dir: "/srv"}
	assert.Equal(t, "/abs/data", cfg.URI())
}
