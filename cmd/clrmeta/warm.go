package main

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"clrmeta/internal/generic"
	"clrmeta/internal/provider"
)

var (
	warmJobs     int
	warmFailures bool
)

func init() {
	warmCmd.Flags().IntVarP(&warmJobs, "jobs", "j", runtime.GOMAXPROCS(0), "number of resolving goroutines")
	warmCmd.Flags().BoolVar(&warmFailures, "failures", false, "list every token that failed to resolve")
}

var warmCmd = &cobra.Command{
	Use:   "warm [module...]",
	Short: "Resolve every token of the given modules concurrently and report cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *session) error {
			mods, err := s.selectModules(args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, mod := range mods {
				var report provider.WarmReport
				err := s.timer.Measure("warm:"+mod.Name, func() error {
					var err error
					report, err = s.prov.Warm(cmd.Context(), mod.ID, warmJobs)
					return err
				})
				if report.Module != "" {
					renderWarmReport(out, report, warmFailures)
				}
				if err != nil {
					return err
				}
			}
			stats, err := s.prov.Stats()
			if err != nil {
				return err
			}
			renderStats(out, stats)
			return nil
		})
	},
}

func renderWarmReport(out io.Writer, r provider.WarmReport, listFailures bool) {
	status := okColor.Sprint("ok")
	if r.Failed > 0 {
		status = errColor.Sprintf("%d failed", r.Failed)
	}
	fmt.Fprintf(out, "%s  resolved %d  %s\n", nameColor.Sprint(r.Module), r.Resolved, status)
	if !listFailures {
		return
	}
	for _, err := range multierr.Errors(r.Failures) {
		fmt.Fprintf(out, "    %s\n", dimColor.Sprint(err))
	}
}

func renderStats(out io.Writer, st generic.Stats) {
	fmt.Fprintln(out, headerColor.Sprint("cache"))
	fmt.Fprintf(out, "  insts %d  classes %d  methods %d  live %d\n", st.Insts, st.Classes, st.Methods, st.Live())
	fmt.Fprintf(out, "  hits %d  allocated %d  discarded %d\n", st.Hits, st.Allocated, st.Discarded)
}
