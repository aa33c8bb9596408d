package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"clrmeta/internal/aot"
	"clrmeta/internal/config"
	"clrmeta/internal/generic"
	"clrmeta/internal/metadata"
	"clrmeta/internal/metaerr"
	"clrmeta/internal/observ"
	"clrmeta/internal/prof"
	"clrmeta/internal/provider"
	"clrmeta/internal/trace"
)

// sessionOptions is everything needed to stand up a provider, merged from
// the project file and the command line.
type sessionOptions struct {
	AOT          string
	Modules      []moduleSpec
	Strategy     generic.Strategy
	MaxInstances int
	Trace        trace.Config
	Verbose      bool
	Timings      bool
	Profile      prof.Options
}

type moduleSpec struct {
	// Name is the name the project file expects; empty for --module.
	Name string
	Path string
}

// session is a running provider with the modules of one CLI invocation.
type session struct {
	prov   *provider.Provider
	tracer trace.Tracer
	timer  *observ.Timer
	prof   *prof.Profiler
	log    *zap.Logger
	errOut io.Writer

	traceDone func(failed bool)
}

// readSessionOptions loads the project file (explicit --config, or one found
// above the working directory) and applies flag overrides.
func readSessionOptions(cmd *cobra.Command) (sessionOptions, error) {
	flags := cmd.Root().PersistentFlags()
	var opts sessionOptions

	cfgPath, err := flags.GetString("config")
	if err != nil {
		return opts, fmt.Errorf("failed to get config flag: %w", err)
	}
	var cfg *config.Config
	if cfgPath != "" {
		if cfg, err = config.Load(cfgPath); err != nil {
			return opts, err
		}
	} else if cfg, _, err = config.Discover("."); err != nil {
		return opts, err
	}

	if cfg != nil {
		opts.AOT = cfg.Abs(cfg.AOT)
		for _, m := range cfg.Modules {
			opts.Modules = append(opts.Modules, moduleSpec{Name: m.Name, Path: cfg.Abs(m.Path)})
		}
		if opts.Strategy, err = cfg.CacheStrategy(); err != nil {
			return opts, err
		}
		opts.MaxInstances = cfg.Cache.MaxInstances
		if opts.Trace, err = cfg.TraceConfig(); err != nil {
			return opts, err
		}
	}

	if flags.Changed("aot") {
		if opts.AOT, err = flags.GetString("aot"); err != nil {
			return opts, fmt.Errorf("failed to get aot flag: %w", err)
		}
	}
	extra, err := flags.GetStringArray("module")
	if err != nil {
		return opts, fmt.Errorf("failed to get module flag: %w", err)
	}
	for _, path := range extra {
		opts.Modules = append(opts.Modules, moduleSpec{Path: path})
	}
	if flags.Changed("strategy") {
		s, err := flags.GetString("strategy")
		if err != nil {
			return opts, fmt.Errorf("failed to get strategy flag: %w", err)
		}
		if opts.Strategy, err = generic.ParseStrategy(s); err != nil {
			return opts, err
		}
	}
	if opts.Verbose, err = flags.GetBool("verbose"); err != nil {
		return opts, fmt.Errorf("failed to get verbose flag: %w", err)
	}
	if opts.Timings, err = flags.GetBool("timings"); err != nil {
		return opts, fmt.Errorf("failed to get timings flag: %w", err)
	}
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"cpuprofile", &opts.Profile.CPU},
		{"memprofile", &opts.Profile.Mem},
		{"exectrace", &opts.Profile.Exec},
	} {
		if *f.dst, err = flags.GetString(f.name); err != nil {
			return opts, fmt.Errorf("failed to get %s flag: %w", f.name, err)
		}
	}
	if opts.Trace, err = traceConfig(cmd, opts.Trace); err != nil {
		return opts, err
	}
	return opts, nil
}

// startSession reads options from cmd and opens a session.
func startSession(cmd *cobra.Command) (*session, error) {
	opts, err := readSessionOptions(cmd)
	if err != nil {
		return nil, err
	}
	return openSession(cmd, opts)
}

// openSession initializes a provider, mounts the blob and loads every
// module. On failure everything already opened is released.
func openSession(cmd *cobra.Command, opts sessionOptions) (*session, error) {
	s := &session{errOut: cmd.ErrOrStderr(), log: zap.NewNop()}
	if opts.Timings {
		s.timer = observ.NewTimer()
	}
	if opts.Verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("failed to build logger: %w", err)
		}
		s.log = log
	}
	tracer, done, err := setupTracing(cmd, opts.Trace, s.log, s.errOut)
	if err != nil {
		return nil, err
	}
	s.tracer, s.traceDone = tracer, done

	s.prov = provider.New(provider.Options{
		Strategy:     opts.Strategy,
		MaxInstances: opts.MaxInstances,
		Tracer:       s.tracer,
		Logger:       s.log,
	})
	if err := s.prov.Initialize(); err != nil {
		s.traceDone(true)
		return nil, err
	}
	if opts.Profile.Enabled() {
		if s.prof, err = prof.Start(opts.Profile); err != nil {
			_ = s.Close(err)
			return nil, err
		}
	}
	if err := s.load(opts); err != nil {
		_ = s.Close(err)
		return nil, err
	}
	return s, nil
}

func (s *session) load(opts sessionOptions) error {
	if opts.AOT != "" {
		err := s.timer.Measure("mount", func() error {
			md, err := aot.Load(opts.AOT)
			if err != nil {
				return fmt.Errorf("%s: %w", opts.AOT, err)
			}
			return s.prov.MountCompiled(md)
		})
		if err != nil {
			return err
		}
	}
	for _, m := range opts.Modules {
		err := s.timer.Measure("load:"+filepath.Base(m.Path), func() error {
			img, err := s.prov.LoadModuleFile(m.Path)
			if err != nil {
				return err
			}
			if got := img.Module().Name; m.Name != "" && got != m.Name {
				return fmt.Errorf("%s: module file declares %q, project file expects %q", m.Path, got, m.Name)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Close shuts the provider down and reports timings. cmdErr is the error
// the command is about to return, if any.
func (s *session) Close(cmdErr error) error {
	err := multierr.Append(s.prof.Stop(), s.prov.Shutdown())
	if s.timer != nil {
		fmt.Fprint(s.errOut, s.timer.Summary())
	}
	s.traceDone(cmdErr != nil || err != nil)
	// Sync fails on terminals; nothing useful to report
	_ = s.log.Sync()
	return err
}

// module finds a registered module by name or id.
func (s *session) module(arg string) (metadata.Module, error) {
	if mod, ok := s.prov.ModuleByName(arg); ok {
		return mod, nil
	}
	if id, err := metadata.ParseModuleID(arg); err == nil {
		if mod, ok := s.prov.Module(id); ok {
			return mod, nil
		}
	}
	names := make([]string, 0)
	for _, m := range s.prov.Modules() {
		names = append(names, m.Name)
	}
	if len(names) == 0 {
		return metadata.Module{}, metaerr.NotFound("module", "no modules loaded; pass --aot, --module or a project file")
	}
	return metadata.Module{}, metaerr.NotFound("module", "%q is not loaded (loaded: %s)", arg, strings.Join(names, ", "))
}

// withSession runs fn inside a session and folds the shutdown error into
// the command error.
func withSession(cmd *cobra.Command, fn func(s *session) error) error {
	s, err := startSession(cmd)
	if err != nil {
		return err
	}
	err = fn(s)
	return multierr.Append(err, s.Close(err))
}
