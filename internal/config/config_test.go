package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clrmeta/internal/generic"
	"clrmeta/internal/trace"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

const sampleTOML = `
aot = "build/core.aot"

[[module]]
name = "Game"
path = "build/game.mod"

[[module]]
name = "Tools"
path = "/opt/tools.mod"

[cache]
strategy = "optimistic"
max_instances = 128

[trace]
level = "detail"
mode = "both"
output = "trace.ndjson"
ring_size = 64
`

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "clrmeta.toml", sampleTOML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Modules) != 2 || cfg.Modules[0].Name != "Game" {
		t.Fatalf("modules = %+v", cfg.Modules)
	}
	if got := cfg.Abs(cfg.AOT); got != filepath.Join(cfg.Root, "build", "core.aot") {
		t.Fatalf("aot path = %q", got)
	}
	if got := cfg.Abs(cfg.Modules[1].Path); got != "/opt/tools.mod" {
		t.Fatalf("absolute module path rewritten: %q", got)
	}
	strategy, err := cfg.CacheStrategy()
	if err != nil || strategy != generic.StrategyOptimistic {
		t.Fatalf("strategy = %v, %v", strategy, err)
	}
	if cfg.Cache.MaxInstances != 128 {
		t.Fatalf("max_instances = %d", cfg.Cache.MaxInstances)
	}
	tc, err := cfg.TraceConfig()
	if err != nil {
		t.Fatalf("TraceConfig: %v", err)
	}
	if tc.Level != trace.LevelDetail || tc.Mode != trace.ModeBoth || tc.RingSize != 64 {
		t.Fatalf("trace config = %+v", tc)
	}
	if tc.OutputPath != filepath.Join(cfg.Root, "trace.ndjson") {
		t.Fatalf("trace output = %q", tc.OutputPath)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "clrmeta.yaml", `
aot: core.aot
modules:
  - name: Game
    path: game.mod
cache:
  strategy: locked
trace:
  level: phase
  output: "-"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Modules) != 1 || cfg.Modules[0].Path != "game.mod" {
		t.Fatalf("modules = %+v", cfg.Modules)
	}
	tc, err := cfg.TraceConfig()
	if err != nil {
		t.Fatalf("TraceConfig: %v", err)
	}
	if tc.OutputPath != "-" || tc.Level != trace.LevelPhase || tc.Mode != trace.ModeStream {
		t.Fatalf("trace config = %+v", tc)
	}
}

func TestLoadEmptyUsesDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "clrmeta.toml", "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	strategy, _ := cfg.CacheStrategy()
	if strategy != generic.StrategyLocked {
		t.Fatalf("default strategy = %v", strategy)
	}
	tc, _ := cfg.TraceConfig()
	if tc.Level != trace.LevelOff {
		t.Fatalf("default level = %v", tc.Level)
	}
}

func TestLoadRejects(t *testing.T) {
	cases := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"missing name", "clrmeta.toml", "[[module]]\npath = \"a.mod\"\n", "module #1: missing name"},
		{"missing path", "clrmeta.toml", "[[module]]\nname = \"A\"\n", `module "A": missing path`},
		{"duplicate", "clrmeta.toml", "[[module]]\nname = \"A\"\npath = \"a\"\n[[module]]\nname = \"A\"\npath = \"b\"\n", "declared twice"},
		{"strategy", "clrmeta.toml", "[cache]\nstrategy = \"eager\"\n", "[cache].strategy"},
		{"negative max", "clrmeta.toml", "[cache]\nmax_instances = -1\n", "max_instances"},
		{"level", "clrmeta.toml", "[trace]\nlevel = \"loud\"\n", "invalid trace level"},
		{"unknown toml key", "clrmeta.toml", "[cache]\nsize = 3\n", "unknown key cache.size"},
		{"unknown yaml key", "clrmeta.yml", "cache:\n  size: 3\n", "failed to parse YAML"},
		{"bad toml", "clrmeta.toml", "aot = \n", "failed to parse TOML"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tc.file, tc.content)
			_, err := Load(path)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
			if !strings.Contains(err.Error(), path) {
				t.Fatalf("error %q does not name the file", err)
			}
		})
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	want := writeFile(t, root, "clrmeta.toml", "")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, ok, err := Find(nested)
	if err != nil || !ok {
		t.Fatalf("Find = %q, %v, %v", got, ok, err)
	}
	if got != want {
		t.Fatalf("Find = %q, want %q", got, want)
	}

	cfg, ok, err := Discover(nested)
	if err != nil || !ok || cfg.Root != root {
		t.Fatalf("Discover = %+v, %v, %v", cfg, ok, err)
	}
}

func TestFindPrefersTOML(t *testing.T) {
	dir := t.TempDir()
	want := writeFile(t, dir, "clrmeta.toml", "")
	writeFile(t, dir, "clrmeta.yaml", "")
	got, ok, err := Find(dir)
	if err != nil || !ok || got != want {
		t.Fatalf("Find = %q, %v, %v", got, ok, err)
	}
}
