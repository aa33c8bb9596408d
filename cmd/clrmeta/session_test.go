package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"clrmeta/internal/generic"
	"clrmeta/internal/metadata"
	"clrmeta/internal/metadata/metatest"
	"clrmeta/internal/token"
	"clrmeta/internal/trace"
)

type fixture struct {
	dir  string
	core string // Core module file
	game string // Game module file
	blob string // packed Core
}

func writeModule(t *testing.T, dir, name string, tables *metadata.Tables) string {
	t.Helper()
	path := filepath.Join(dir, strings.ToLower(name)+".mod")
	fh, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer fh.Close()
	if err := metadata.WriteModuleFile(fh, &metadata.ModuleFile{Name: name, Tables: *tables}); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:  dir,
		core: writeModule(t, dir, metatest.CoreName, metatest.CoreTables()),
		game: writeModule(t, dir, metatest.GameName, metatest.GameTables()),
		blob: filepath.Join(dir, "core.aot"),
	}
	blob, err := packModules([]string{f.core})
	if err != nil {
		t.Fatalf("packModules: %v", err)
	}
	if err := os.WriteFile(f.blob, blob, 0o600); err != nil {
		t.Fatalf("write blob: %v", err)
	}
	return f
}

// newTestCmd returns a command carrying the persistent flags, parsed from args.
func newTestCmd(t *testing.T, args ...string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cmd := &cobra.Command{Use: "clrmeta-test"}
	addPersistentFlags(cmd.PersistentFlags())
	if err := cmd.PersistentFlags().Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cmd.SetContext(context.Background())
	var errBuf bytes.Buffer
	cmd.SetErr(&errBuf)
	return cmd, &errBuf
}

func (f fixture) session(t *testing.T, opts sessionOptions) *session {
	t.Helper()
	cmd, _ := newTestCmd(t)
	if opts.AOT == "" {
		opts.AOT = f.blob
	}
	if opts.Modules == nil {
		opts.Modules = []moduleSpec{{Name: metatest.GameName, Path: f.game}}
	}
	s, err := openSession(cmd, opts)
	if err != nil {
		t.Fatalf("openSession: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(nil) })
	return s
}

func TestReadSessionOptionsFromConfig(t *testing.T) {
	f := newFixture(t)
	cfgPath := filepath.Join(f.dir, "clrmeta.toml")
	err := os.WriteFile(cfgPath, []byte(`
aot = "core.aot"

[[module]]
name = "Game"
path = "game.mod"

[cache]
strategy = "optimistic"
max_instances = 64
`), 0o600)
	if err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd, _ := newTestCmd(t, "--config", cfgPath, "--module", "extra.mod", "--strategy", "locked")
	opts, err := readSessionOptions(cmd)
	if err != nil {
		t.Fatalf("readSessionOptions: %v", err)
	}
	if opts.AOT != f.blob {
		t.Fatalf("aot = %q, want %q", opts.AOT, f.blob)
	}
	if len(opts.Modules) != 2 {
		t.Fatalf("modules = %+v", opts.Modules)
	}
	if opts.Modules[0] != (moduleSpec{Name: "Game", Path: f.game}) {
		t.Fatalf("config module = %+v", opts.Modules[0])
	}
	if opts.Modules[1] != (moduleSpec{Path: "extra.mod"}) {
		t.Fatalf("flag module = %+v", opts.Modules[1])
	}
	if opts.Strategy != generic.StrategyLocked {
		t.Fatalf("--strategy did not override the project file: %v", opts.Strategy)
	}
	if opts.MaxInstances != 64 {
		t.Fatalf("max instances = %d", opts.MaxInstances)
	}
}

func TestReadSessionOptionsDiscoversConfig(t *testing.T) {
	f := newFixture(t)
	if err := os.WriteFile(filepath.Join(f.dir, "clrmeta.yaml"), []byte("aot: core.aot\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	nested := filepath.Join(f.dir, "src")
	if err := os.Mkdir(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Chdir(nested)

	cmd, _ := newTestCmd(t)
	opts, err := readSessionOptions(cmd)
	if err != nil {
		t.Fatalf("readSessionOptions: %v", err)
	}
	if opts.AOT != f.blob {
		t.Fatalf("aot = %q, want %q", opts.AOT, f.blob)
	}
}

func TestTraceFlags(t *testing.T) {
	cmd, _ := newTestCmd(t, "--trace", "-")
	cfg, err := traceConfig(cmd, trace.Config{})
	if err != nil {
		t.Fatalf("traceConfig: %v", err)
	}
	if cfg.Level != trace.LevelPhase || cfg.OutputPath != "-" {
		t.Fatalf("--trace alone = %+v", cfg)
	}

	cmd, _ = newTestCmd(t, "--trace-level", "debug", "--trace-mode", "ring", "--trace-ring-size", "8")
	cfg, err = traceConfig(cmd, trace.Config{Level: trace.LevelError, Mode: trace.ModeStream})
	if err != nil {
		t.Fatalf("traceConfig: %v", err)
	}
	if cfg.Level != trace.LevelDebug || cfg.Mode != trace.ModeRing || cfg.RingSize != 8 {
		t.Fatalf("overrides = %+v", cfg)
	}

	cmd, _ = newTestCmd(t, "--trace-mode", "tape")
	if _, err := traceConfig(cmd, trace.Config{}); err == nil {
		t.Fatalf("expected invalid mode error")
	}
}

func TestRingDumpedOnFailure(t *testing.T) {
	cmd, errBuf := newTestCmd(t)
	tracer, done, err := setupTracing(cmd, trace.Config{Level: trace.LevelDetail, Mode: trace.ModeRing, RingSize: 16}, nil, cmd.ErrOrStderr())
	if err != nil {
		t.Fatalf("setupTracing: %v", err)
	}
	if trace.FromContext(cmd.Context()) != tracer {
		t.Fatalf("tracer not attached to the command context")
	}
	trace.Point(tracer, trace.ScopeModule, "load:Broken", "")
	done(true)
	out := errBuf.String()
	if !strings.Contains(out, "last events before failure") || !strings.Contains(out, "load:Broken") {
		t.Fatalf("ring not dumped:\n%s", out)
	}
}

func TestDescribeToken(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, sessionOptions{})
	game, err := s.module(metatest.GameName)
	if err != nil {
		t.Fatalf("module: %v", err)
	}

	cases := []struct {
		tok  token.Token
		want string
	}{
		{metatest.GameListOfString, "type System.Collections.Generic.List`1<string>  [Core, compiled]"},
		{metatest.GameMathRef, "type System.Math  [Core, compiled]"},
		{metatest.GameMaxOfDouble, "method System.Math::Max<float64>  [Core, compiled]  inflated"},
		{token.MustMake(token.Method, metatest.GamePlayerUpdate+1), "method Game.Player::Update  [Game, interpreted]  body"},
		{token.MustMake(token.Method, metatest.GamePlayerPick+1), "method Game.Player::Pick  [Game, interpreted]  open  body"},
		{metatest.GameListItemsRef, "field System.Collections.Generic.List`1<string>::_items  [Core, compiled]"},
		{token.MustMake(token.Field, 1), "field Game.Player::score  [Game, interpreted]"},
	}
	for _, tc := range cases {
		got, err := describeToken(s.prov, game.ID, tc.tok)
		if err != nil {
			t.Fatalf("%s: %v", tc.tok, err)
		}
		if got != tc.want {
			t.Fatalf("%s:\n got %q\nwant %q", tc.tok, got, tc.want)
		}
	}

	if _, err := describeToken(s.prov, game.ID, metatest.GameMissingRef); err == nil {
		t.Fatalf("expected missing TypeRef to fail")
	}
	if _, err := describeToken(s.prov, game.ID, token.MustMake(token.GenericParam, 1)); err == nil {
		t.Fatalf("expected GenericParam to be rejected")
	}
}

func TestSessionModuleLookup(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, sessionOptions{})

	core, err := s.module(metatest.CoreName)
	if err != nil || core.Origin != metadata.OriginCompiled {
		t.Fatalf("Core = %+v, %v", core, err)
	}
	byID, err := s.module(core.ID.String())
	if err != nil || byID.Name != metatest.CoreName {
		t.Fatalf("lookup by id = %+v, %v", byID, err)
	}
	_, err = s.module("Nowhere")
	if err == nil || !strings.Contains(err.Error(), "loaded: Core, Game") {
		t.Fatalf("unknown module error = %v", err)
	}
}

func TestSessionRejectsNameMismatch(t *testing.T) {
	f := newFixture(t)
	cmd, _ := newTestCmd(t)
	_, err := openSession(cmd, sessionOptions{
		AOT:     f.blob,
		Modules: []moduleSpec{{Name: "Tools", Path: f.game}},
	})
	if err == nil || !strings.Contains(err.Error(), `project file expects "Tools"`) {
		t.Fatalf("err = %v", err)
	}
}

func TestSessionTimings(t *testing.T) {
	f := newFixture(t)
	cmd, errBuf := newTestCmd(t)
	s, err := openSession(cmd, sessionOptions{
		AOT:     f.blob,
		Modules: []moduleSpec{{Path: f.game}},
		Timings: true,
	})
	if err != nil {
		t.Fatalf("openSession: %v", err)
	}
	if err := s.Close(nil); err != nil {
		t.Fatalf("Close: %v", err)
	}
	out := errBuf.String()
	for _, want := range []string{"timings:", "mount", "load:game.mod"} {
		if !strings.Contains(out, want) {
			t.Fatalf("timings missing %q:\n%s", want, out)
		}
	}
}

func TestRenderImage(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	f := newFixture(t)
	s := f.session(t, sessionOptions{})
	core, _ := s.module(metatest.CoreName)
	img, err := s.prov.GetImageForModule(core.ID)
	if err != nil {
		t.Fatalf("GetImageForModule: %v", err)
	}

	var buf bytes.Buffer
	if err := renderImage(&buf, img, inspectOptions{members: true}); err != nil {
		t.Fatalf("renderImage: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Core  compiled",
		"types 4  methods 5  fields 1\n",
		"System.Collections.Generic.List`1<T>",
		"ConvertAll<TOut>",
		"Field#1  _items",
		"static",
		"struct",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "  body") {
		t.Fatalf("compiled methods listed with bodies:\n%s", out)
	}

	buf.Reset()
	if err := renderImage(&buf, img, inspectOptions{find: " System.Math "}); err != nil {
		t.Fatalf("renderImage find: %v", err)
	}
	if !strings.Contains(buf.String(), "System.Math") || strings.Contains(buf.String(), "Int32") {
		t.Fatalf("find output:\n%s", buf.String())
	}

	buf.Reset()
	if err := renderImage(&buf, img, inspectOptions{find: "System.Nope"}); err != nil {
		t.Fatalf("renderImage miss: %v", err)
	}
	if !strings.Contains(buf.String(), "System.Nope not found") {
		t.Fatalf("miss output:\n%s", buf.String())
	}
}

func TestWarmReportAndStats(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	f := newFixture(t)
	s := f.session(t, sessionOptions{Strategy: generic.StrategyOptimistic})
	game, _ := s.module(metatest.GameName)

	report, err := s.prov.Warm(context.Background(), game.ID, 4)
	if err != nil {
		t.Fatalf("Warm: %v", err)
	}
	var buf bytes.Buffer
	renderWarmReport(&buf, report, true)
	out := buf.String()
	if !strings.Contains(out, "Game  resolved 16  3 failed") {
		t.Fatalf("report:\n%s", out)
	}
	if got := strings.Count(out, "\n    "); got != 3 {
		t.Fatalf("listed %d failures, want 3:\n%s", got, out)
	}

	stats, err := s.prov.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	buf.Reset()
	renderStats(&buf, stats)
	if !strings.Contains(buf.String(), "allocated") || stats.Live() == 0 {
		t.Fatalf("stats:\n%s", buf.String())
	}
}

func TestPackRejectsReferenceTables(t *testing.T) {
	f := newFixture(t)
	_, err := packModules([]string{f.core, f.game})
	if err == nil || !strings.Contains(err.Error(), "reference tables") {
		t.Fatalf("err = %v", err)
	}
}

func TestSplitTypeName(t *testing.T) {
	ns, name := splitTypeName("System.Collections.Generic.List`1")
	if ns != "System.Collections.Generic" || name != "List`1" {
		t.Fatalf("split = %q %q", ns, name)
	}
	ns, name = splitTypeName("Global")
	if ns != "" || name != "Global" {
		t.Fatalf("split global = %q %q", ns, name)
	}
	// decomposed input is composed before lookup
	_, name = splitTypeName("Menu.Cafe\u0301")
	if name != "Caf\u00e9" {
		t.Fatalf("name not normalized: %q", name)
	}
}

func TestVersionJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := renderVersionJSON(&buf, versionInfo{Version: "1.0.0", GoVersion: "go1.25"}, true); err != nil {
		t.Fatalf("renderVersionJSON: %v", err)
	}
	var payload versionPayload
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Tool != "clrmeta" || payload.GitCommit != "unknown" || payload.Version != "1.0.0" {
		t.Fatalf("payload = %+v", payload)
	}
}
