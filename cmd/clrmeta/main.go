package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"clrmeta/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "clrmeta",
	Short: "Metadata provider for hybrid interpreted and ahead-of-time modules",
	Long: `clrmeta mounts an ahead-of-time metadata blob and interpreted module files
behind one provider and answers definition and token-resolution queries against them`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return applyColorMode(cmd)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(warmCmd)
	rootCmd.AddCommand(packCmd)
	rootCmd.AddCommand(versionCmd)

	addPersistentFlags(rootCmd.PersistentFlags())
}

// main sets the version and runs the root command, exiting with status 1 on error.
func main() {
	rootCmd.Version = version.Version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addPersistentFlags(pf *pflag.FlagSet) {
	pf.String("config", "", "project file (default: clrmeta.toml or clrmeta.yaml found by walking up)")
	pf.String("aot", "", "ahead-of-time metadata blob (overrides the project file)")
	pf.StringArray("module", nil, "interpreted module file to load, repeatable")
	pf.String("strategy", "", "instantiation cache strategy (locked|optimistic)")
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.Bool("timings", false, "show timing information")
	pf.Bool("verbose", false, "log provider activity to stderr")
	pf.String("cpuprofile", "", "write a CPU profile to file")
	pf.String("memprofile", "", "write a heap profile to file on exit")
	pf.String("exectrace", "", "write a runtime execution trace to file")

	pf.String("trace", "", "trace output file (- for stderr)")
	pf.String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	pf.String("trace-mode", "", "trace storage (stream|ring|both|zap); ring is dumped on failure")
	pf.String("trace-format", "", "trace format (auto|text|ndjson)")
	pf.Int("trace-ring-size", 0, "ring buffer capacity in events")
}
