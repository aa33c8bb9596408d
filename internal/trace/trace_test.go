package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLevelScopes(t *testing.T) {
	cases := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeProvider, false},
		{LevelError, ScopeProvider, false},
		{LevelPhase, ScopeModule, true},
		{LevelPhase, ScopeResolve, false},
		{LevelDetail, ScopeResolve, true},
		{LevelDetail, ScopeCache, false},
		{LevelDebug, ScopeCache, true},
	}
	for _, tc := range cases {
		if got := tc.level.ShouldEmit(tc.scope); got != tc.want {
			t.Fatalf("%s.ShouldEmit(%s) = %v, want %v", tc.level, tc.scope, got, tc.want)
		}
	}
	if !LevelError.Accepts(&Event{Scope: ScopeCache, Failed: true}) {
		t.Fatalf("failed events must pass LevelError")
	}
}

func TestParseLevelAndMode(t *testing.T) {
	if lvl, err := ParseLevel("Detail"); err != nil || lvl != LevelDetail {
		t.Fatalf("ParseLevel: %v %v", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for bad level")
	}
	if m, err := ParseMode("zap"); err != nil || m != ModeZap {
		t.Fatalf("ParseMode: %v %v", m, err)
	}
	if _, err := ParseMode("disk"); err == nil {
		t.Fatalf("expected error for bad mode")
	}
}

func TestRingWrapsInOrder(t *testing.T) {
	r := NewRingTracer(3, LevelDebug)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		Point(r, ScopeCache, name, "")
	}
	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 events, got %d", len(snap))
	}
	for i, want := range []string{"c", "d", "e"} {
		if snap[i].Name != want {
			t.Fatalf("event %d = %q, want %q", i, snap[i].Name, want)
		}
	}
	if snap[0].Seq >= snap[2].Seq {
		t.Fatalf("sequence not monotonic: %d >= %d", snap[0].Seq, snap[2].Seq)
	}
	if r.Len() != 3 || r.Overwritten() != 2 {
		t.Fatalf("expected 3 retained and 2 overwritten, got %d and %d", r.Len(), r.Overwritten())
	}
}

func TestRingBeforeWrap(t *testing.T) {
	r := NewRingTracer(4, LevelDebug)
	Point(r, ScopeCache, "a", "")
	Point(r, ScopeCache, "b", "")
	if snap := r.Snapshot(); len(snap) != 2 || snap[0].Name != "a" || snap[1].Name != "b" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if r.Overwritten() != 0 {
		t.Fatalf("nothing should be overwritten yet")
	}
	var buf bytes.Buffer
	if err := r.Dump(&buf, FormatText); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if got := strings.Count(buf.String(), "\n"); got != 2 {
		t.Fatalf("expected 2 dumped lines, got %d: %q", got, buf.String())
	}
}

func TestStreamNDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDetail, FormatNDJSON)
	span := Begin(tr, ScopeResolve, "resolve-type", 0)
	span.WithExtra("token", "0x02000001").End("ok")
	Point(tr, ScopeCache, "hidden", "")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected begin+end lines, got %d: %q", len(lines), buf.String())
	}
	var end map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &end); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if end["kind"] != "end" || end["detail"] != "ok" {
		t.Fatalf("unexpected end event: %v", end)
	}
}

func TestFailedSpanSurfacesAtErrorLevel(t *testing.T) {
	r := NewRingTracer(8, LevelError)
	Begin(r, ScopeResolve, "resolve-method", 0).EndErr(errors.New("not found"))
	Begin(r, ScopeResolve, "resolve-method", 0).EndErr(nil)

	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected only the failed end event, got %d", len(snap))
	}
	if !snap[0].Failed || snap[0].Detail != "not found" {
		t.Fatalf("unexpected event: %+v", snap[0])
	}
}

func TestZapTracer(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tr := NewZapTracer(zap.New(core), LevelPhase)

	Begin(tr, ScopeModule, "load:Game", 0).End("")
	Point(tr, ScopeResolve, "filtered", "")

	if logs.Len() != 2 {
		t.Fatalf("expected 2 log entries, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.Message != "load:Game" || entry.LoggerName != "trace" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.ContextMap()["scope"] != "module" {
		t.Fatalf("scope field missing: %v", entry.ContextMap())
	}
}

func TestMultiSharesSeq(t *testing.T) {
	a := NewRingTracer(4, LevelDebug)
	b := NewRingTracer(4, LevelDebug)
	m := NewMultiTracer(LevelDebug, a, b)
	Point(m, ScopeProvider, "init", "")
	if a.Snapshot()[0].Seq != b.Snapshot()[0].Seq {
		t.Fatalf("sinks saw different sequence numbers")
	}
	if m.Ring() != a {
		t.Fatalf("Ring should return the first ring sink")
	}
}

func TestContextRoundTrip(t *testing.T) {
	if FromContext(context.Background()) != Nop {
		t.Fatalf("empty context should yield Nop")
	}
	r := NewRingTracer(4, LevelDebug)
	ctx := WithTracer(context.Background(), r)
	if FromContext(ctx) != r {
		t.Fatalf("tracer not found in context")
	}
	span := Begin(r, ScopeModule, "warm", 0)
	ctx = WithSpan(ctx, span)
	if CurrentSpan(ctx) != span.ID() {
		t.Fatalf("span id not propagated")
	}
}

func TestNewNopWhenOff(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	if err != nil || tr.Enabled() {
		t.Fatalf("expected disabled tracer, got %v %v", tr, err)
	}
	var buf bytes.Buffer
	tr, err = New(Config{Level: LevelPhase, Mode: ModeBoth, Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	Point(tr, ScopeProvider, "init", "")
	if !strings.Contains(buf.String(), "init") {
		t.Fatalf("stream output missing event: %q", buf.String())
	}
	if tr.(*MultiTracer).Ring().Snapshot()[0].Name != "init" {
		t.Fatalf("ring missing event")
	}
}
