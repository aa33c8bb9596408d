// Package config loads the clrmeta project file.
//
// The file is clrmeta.toml (or clrmeta.yaml / clrmeta.yml) in the working
// directory or any parent:
//
//	aot = "build/core.aot"
//
//	[[module]]
//	name = "Game"
//	path = "build/game.mod"
//
//	[cache]
//	strategy = "locked"      # locked | optimistic
//	max_instances = 0        # 0 = unbounded
//
//	[trace]
//	level = "phase"          # off | error | phase | detail | debug
//	mode = "stream"          # stream | ring | both | zap
//	output = "-"
//	ring_size = 4096
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"clrmeta/internal/generic"
	"clrmeta/internal/trace"
)

// FileNames are the project file names, in lookup order.
var FileNames = []string{"clrmeta.toml", "clrmeta.yaml", "clrmeta.yml"}

// Config is a parsed project file.
type Config struct {
	// Path is the file the config was read from; Root its directory.
	Path string `toml:"-" yaml:"-"`
	Root string `toml:"-" yaml:"-"`

	AOT     string         `toml:"aot" yaml:"aot"`
	Modules []ModuleConfig `toml:"module" yaml:"modules"`
	Cache   CacheConfig    `toml:"cache" yaml:"cache"`
	Trace   TraceConfig    `toml:"trace" yaml:"trace"`
}

// ModuleConfig names an interpreted module file.
type ModuleConfig struct {
	Name string `toml:"name" yaml:"name"`
	Path string `toml:"path" yaml:"path"`
}

// CacheConfig configures the instantiation cache.
type CacheConfig struct {
	Strategy     string `toml:"strategy" yaml:"strategy"`
	MaxInstances int    `toml:"max_instances" yaml:"max_instances"`
}

// TraceConfig configures tracing.
type TraceConfig struct {
	Level    string `toml:"level" yaml:"level"`
	Mode     string `toml:"mode" yaml:"mode"`
	Format   string `toml:"format" yaml:"format"`
	Output   string `toml:"output" yaml:"output"`
	RingSize int    `toml:"ring_size" yaml:"ring_size"`
}

// Find walks up from startDir looking for a project file.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		for _, name := range FileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, true, nil
			} else if !errors.Is(err, os.ErrNotExist) {
				return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover finds and loads the project file above startDir. ok is false
// when there is none.
func Discover(startDir string) (*Config, bool, error) {
	path, ok, err := Find(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, true, err
	}
	return cfg, true, nil
}

// Load parses and validates a project file. The format follows the
// extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: failed to parse YAML: %w", path, err)
		}
	default:
		meta, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg.Path = abs
	cfg.Root = filepath.Dir(abs)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Modules))
	for i, m := range c.Modules {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("module #%d: missing name", i+1)
		}
		if strings.TrimSpace(m.Path) == "" {
			return fmt.Errorf("module %q: missing path", m.Name)
		}
		if seen[m.Name] {
			return fmt.Errorf("module %q declared twice", m.Name)
		}
		seen[m.Name] = true
	}
	if _, err := c.CacheStrategy(); err != nil {
		return fmt.Errorf("[cache].strategy: %w", err)
	}
	if c.Cache.MaxInstances < 0 {
		return fmt.Errorf("[cache].max_instances must not be negative")
	}
	if _, err := c.TraceConfig(); err != nil {
		return fmt.Errorf("[trace]: %w", err)
	}
	return nil
}

// Abs resolves p against the project root.
func (c *Config) Abs(p string) string {
	if p == "" || p == "-" || filepath.IsAbs(p) || c.Root == "" {
		return p
	}
	return filepath.Join(c.Root, filepath.FromSlash(p))
}

// CacheStrategy parses [cache].strategy.
func (c *Config) CacheStrategy() (generic.Strategy, error) {
	return generic.ParseStrategy(c.Cache.Strategy)
}

// TraceConfig converts [trace] to a tracer configuration.
func (c *Config) TraceConfig() (trace.Config, error) {
	level, err := trace.ParseLevel(c.Trace.Level)
	if err != nil {
		return trace.Config{}, err
	}
	mode, err := trace.ParseMode(c.Trace.Mode)
	if err != nil {
		return trace.Config{}, err
	}
	format, err := trace.ParseFormat(c.Trace.Format)
	if err != nil {
		return trace.Config{}, err
	}
	return trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: c.Abs(c.Trace.Output),
		RingSize:   c.Trace.RingSize,
	}, nil
}
