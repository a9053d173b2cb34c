package platform

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/patchwork/pkg/core"
	"github.com/aretw0/patchwork/pkg/patch"
)

// ConfigFileName is the project file looked up by FindRoot and LoadConfig.
const ConfigFileName = "patchwork.yaml"

// Config is the project configuration read from patchwork.yaml.
//
//	adapter: fs
//	path: data
//	schemas:
//	  - type: author
//	    references: {/books: book}
//	    blacklist: [/ssn]
//	rules:
//	  - op: add
//	    path: /first_name
//	    when: value == "Jimmy"
//	    set: '"Jimmie"'
type Config struct {
	Adapter    string           `yaml:"adapter"`
	Path       string           `yaml:"path"` // fs root, relative to the config file
	URL        string           `yaml:"url"`  // redis://host:port/db
	Format     string           `yaml:"format"`
	Prefix     string           `yaml:"prefix"`
	SystemDir  string           `yaml:"system_dir"`
	Versioning *bool            `yaml:"versioning"`
	Schemas    []*core.Schema   `yaml:"schemas"`
	Blacklist  []string         `yaml:"blacklist"`
	Rules      []patch.RuleSpec `yaml:"rules"`

	// Dir is the directory the configuration was loaded from.
	Dir string `yaml:"-"`
}

// LoadConfig reads and validates a project file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	cfg.Dir = abs

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the schemas and compiles the rules.
func (c *Config) Validate() error {
	switch c.Adapter {
	case "", "fs", "memory", "redis":
	default:
		return fmt.Errorf("unknown adapter: %s", c.Adapter)
	}
	if c.Adapter == "redis" && c.URL == "" {
		return fmt.Errorf("redis adapter requires url")
	}

	seen := make(map[string]bool, len(c.Schemas))
	for i, s := range c.Schemas {
		if s == nil || s.Type == "" {
			return fmt.Errorf("schema %d: missing type", i)
		}
		if seen[s.Type] {
			return fmt.Errorf("schema %d: duplicate type %q", i, s.Type)
		}
		seen[s.Type] = true
	}

	if _, err := patch.NewGuard(c.Blacklist...); err != nil {
		return err
	}
	if _, err := patch.CompileRules(c.Rules...); err != nil {
		return err
	}
	return nil
}

// URI returns the adapter-specific location: the fs root resolved against
// the config directory, or the redis url.
func (c *Config) URI() string {
	if c.Adapter == "redis" {
		return c.URL
	}
	if c.Path == "" {
		return c.Dir
	}
	if filepath.IsAbs(c.Path) {
		return c.Path
	}
	return filepath.Join(c.Dir, c.Path)
}

// FindConfig walks upwards from startDir and loads the first patchwork.yaml.
func FindConfig(startDir string) (*Config, error) {
	root, err := FindRoot(startDir)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(root, ConfigFileName)
	if !hasFile(root, ConfigFileName) {
		return nil, fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	return LoadConfig(path)
}
