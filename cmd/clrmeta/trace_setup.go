package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clrmeta/internal/trace"
)

// traceConfig overlays the trace flags that were set on the command line
// onto base, which comes from the project file.
func traceConfig(cmd *cobra.Command, base trace.Config) (trace.Config, error) {
	flags := cmd.Root().PersistentFlags()
	cfg := base

	if flags.Changed("trace") {
		output, err := flags.GetString("trace")
		if err != nil {
			return cfg, fmt.Errorf("failed to get trace flag: %w", err)
		}
		cfg.OutputPath = output
		// an explicit output without a level means "trace the phases"
		if cfg.Level == trace.LevelOff && !flags.Changed("trace-level") {
			cfg.Level = trace.LevelPhase
		}
	}
	if flags.Changed("trace-level") {
		s, err := flags.GetString("trace-level")
		if err != nil {
			return cfg, fmt.Errorf("failed to get trace-level flag: %w", err)
		}
		if cfg.Level, err = trace.ParseLevel(s); err != nil {
			return cfg, err
		}
	}
	if flags.Changed("trace-mode") {
		s, err := flags.GetString("trace-mode")
		if err != nil {
			return cfg, fmt.Errorf("failed to get trace-mode flag: %w", err)
		}
		if cfg.Mode, err = trace.ParseMode(s); err != nil {
			return cfg, err
		}
	}
	if flags.Changed("trace-format") {
		s, err := flags.GetString("trace-format")
		if err != nil {
			return cfg, fmt.Errorf("failed to get trace-format flag: %w", err)
		}
		if cfg.Format, err = trace.ParseFormat(s); err != nil {
			return cfg, err
		}
	}
	if flags.Changed("trace-ring-size") {
		n, err := flags.GetInt("trace-ring-size")
		if err != nil {
			return cfg, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
		}
		cfg.RingSize = n
	}
	return cfg, nil
}

// setupTracing builds the tracer and attaches it to the command context.
// The returned cleanup dumps the ring buffer to errOut when the command
// failed, then flushes and closes the tracer.
func setupTracing(cmd *cobra.Command, cfg trace.Config, logger *zap.Logger, errOut io.Writer) (trace.Tracer, func(failed bool), error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(ctx, trace.Nop))
		return trace.Nop, func(bool) {}, nil
	}
	if cfg.Mode == trace.ModeZap && cfg.Logger == nil {
		cfg.Logger = logger
	}
	tracer, err := trace.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	cmd.SetContext(trace.WithTracer(ctx, tracer))

	cleanup := func(failed bool) {
		if ring := ringOf(tracer); ring != nil && failed {
			fmt.Fprintln(errOut, "trace: last events before failure")
			if err := ring.Dump(errOut, trace.FormatText); err != nil {
				fmt.Fprintf(errOut, "trace: dump error: %v\n", err)
			}
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(errOut, "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(errOut, "trace: close error: %v\n", err)
		}
	}
	return tracer, cleanup, nil
}

func ringOf(t trace.Tracer) *trace.RingTracer {
	switch t := t.(type) {
	case *trace.RingTracer:
		return t
	case *trace.MultiTracer:
		return t.Ring()
	}
	return nil
}
