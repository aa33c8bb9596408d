package provider

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"clrmeta/internal/image"
	"clrmeta/internal/metadata"
	"clrmeta/internal/metaerr"
	"clrmeta/internal/token"
	"clrmeta/internal/trace"
)

// WarmReport summarizes a warm-up run.
type WarmReport struct {
	Module   string
	Resolved int
	Failed   int
	// Failures joins the recoverable errors of failed tokens.
	Failures error
}

// Warm resolves every definition token of a module, and for interpreted
// modules every TypeSpec, MemberRef and MethodSpec, on up to jobs goroutines.
// Recoverable failures are collected in the report; a fatal error or a
// cancelled ctx stops the run.
func (p *Provider) Warm(ctx context.Context, id metadata.ModuleID, jobs int) (WarmReport, error) {
	img, err := p.GetImageForModule(id)
	if err != nil {
		return WarmReport{}, err
	}
	mod := img.Module()
	report := WarmReport{Module: mod.Name}
	if jobs <= 0 {
		jobs = 1
	}

	span := trace.Begin(p.tracer, trace.ScopeModule, "warm:"+mod.Name, trace.CurrentSpan(ctx))
	ctx = trace.WithSpan(ctx, span)

	var (
		resolved, failed atomic.Int64
		mu               sync.Mutex
		failures         error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for _, tok := range warmTokens(img) {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := warmOne(img, tok); err != nil {
				if metaerr.IsFatal(err) {
					return err
				}
				failed.Add(1)
				mu.Lock()
				failures = multierr.Append(failures, err)
				mu.Unlock()
				return nil
			}
			resolved.Add(1)
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		// a cancelled parent stops scheduling without failing a goroutine
		err = ctx.Err()
	}

	report.Resolved = int(resolved.Load())
	report.Failed = int(failed.Load())
	report.Failures = failures
	span.WithExtra("resolved", strconv.Itoa(report.Resolved)).
		WithExtra("failed", strconv.Itoa(report.Failed)).
		EndErr(err)
	p.log.Debug("module warmed",
		zap.String("module", mod.Name),
		zap.Int("resolved", report.Resolved),
		zap.Int("failed", report.Failed),
		zap.Error(err))
	return report, err
}

func warmTokens(img image.Image) []token.Token {
	c := img.Counts()
	tables := []struct {
		kind token.Kind
		rows uint32
	}{
		{token.TypeDef, c.Types},
		{token.Method, c.Methods},
		{token.Field, c.Fields},
	}
	if img.Origin() == metadata.OriginInterpreted {
		tables = append(tables, []struct {
			kind token.Kind
			rows uint32
		}{
			{token.TypeSpec, c.TypeSpecs},
			{token.MemberRef, c.MemberRefs},
			{token.MethodSpec, c.MethodSpecs},
		}...)
	}
	var out []token.Token
	for _, t := range tables {
		for row := uint32(1); row <= t.rows; row++ {
			out = append(out, token.MustMake(t.kind, row))
		}
	}
	return out
}

func warmOne(img image.Image, tok token.Token) error {
	none := metadata.GenericContext{}
	switch tok.Kind() {
	case token.TypeDef, token.TypeSpec:
		_, err := img.ResolveTypeFromToken(tok, nil, none)
		return err
	case token.Method, token.MethodSpec:
		_, err := img.ResolveMethodFromToken(tok, nil, nil, none)
		return err
	case token.Field:
		_, err := img.ResolveFieldFromToken(tok, nil, none)
		return err
	case token.MemberRef:
		raw, _ := tok.RawIndex()
		ref, err := img.MemberRef(raw)
		if err != nil {
			return err
		}
		if ref.Field {
			_, err = img.ResolveFieldFromToken(tok, nil, none)
		} else {
			_, err = img.ResolveMethodFromToken(tok, nil, nil, none)
		}
		return err
	}
	return metaerr.NotFound("warm", "unsupported %s", tok)
}
