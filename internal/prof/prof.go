// Package prof wraps runtime profiling for CLI runs, mainly to compare the
// instantiation cache strategies under concurrent warm-up.
package prof

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"go.uber.org/multierr"
)

// Options name the output files; empty paths disable that profile.
type Options struct {
	CPU  string
	Mem  string
	Exec string // runtime execution trace
}

// Enabled reports whether any profile is requested.
func (o Options) Enabled() bool { return o.CPU != "" || o.Mem != "" || o.Exec != "" }

// Profiler is an active profiling run.
type Profiler struct {
	opts     Options
	cpuFile  *os.File
	execFile *os.File
}

// Start begins CPU profiling and execution tracing as requested. The heap
// profile is written by Stop.
func Start(opts Options) (*Profiler, error) {
	p := &Profiler{opts: opts}
	if opts.CPU != "" {
		f, err := os.Create(opts.CPU)
		if err != nil {
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
		p.cpuFile = f
	}
	if opts.Exec != "" {
		f, err := os.Create(opts.Exec)
		if err != nil {
			p.stopCPU()
			return nil, fmt.Errorf("execution trace: %w", err)
		}
		if err := trace.Start(f); err != nil {
			_ = f.Close()
			p.stopCPU()
			return nil, fmt.Errorf("execution trace: %w", err)
		}
		p.execFile = f
	}
	return p, nil
}

// Stop ends every active profile and writes the heap profile. Safe on nil.
func (p *Profiler) Stop() error {
	if p == nil {
		return nil
	}
	err := p.stopCPU()
	if p.execFile != nil {
		trace.Stop()
		err = multierr.Append(err, p.execFile.Close())
		p.execFile = nil
	}
	if p.opts.Mem != "" {
		err = multierr.Append(err, writeHeap(p.opts.Mem))
	}
	return err
}

func (p *Profiler) stopCPU() error {
	if p.cpuFile == nil {
		return nil
	}
	pprof.StopCPUProfile()
	err := p.cpuFile.Close()
	p.cpuFile = nil
	return err
}

func writeHeap(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("heap profile: %w", err)
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("heap profile: %w", err)
	}
	return nil
}
