package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"clrmeta/internal/aot"
	"clrmeta/internal/metadata"
)

var packOutput string

func init() {
	packCmd.Flags().StringVarP(&packOutput, "output", "o", "", "blob to write (required)")
	_ = packCmd.MarkFlagRequired("output")
}

var packCmd = &cobra.Command{
	Use:   "pack -o <blob> <module-file>...",
	Short: "Build an ahead-of-time metadata blob from module files",
	Long: `Pack definition tables of module files into one blob with a window per module.
Method bodies are dropped; modules with reference tables are rejected`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		blob, err := packModules(args)
		if err != nil {
			return err
		}
		if err := os.WriteFile(packOutput, blob, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", packOutput, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "packed %d modules into %s (%d bytes)\n", len(args), packOutput, len(blob))
		return nil
	},
}

func packModules(paths []string) ([]byte, error) {
	b := aot.NewBuilder()
	for _, path := range paths {
		f, err := metadata.LoadModuleFile(path)
		if err != nil {
			return nil, err
		}
		if err := b.Add(f.Name, f.MVID, &f.Tables); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	var buf bytes.Buffer
	if err := aot.Encode(&buf, b.Payload()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
