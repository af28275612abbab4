package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/LiYuxian0306/ScanNet/internal/cli"
	"github.com/LiYuxian0306/ScanNet/internal/cli/config"
	"github.com/LiYuxian0306/ScanNet/pkg/segbatch"
)

var (
	// These are set during build time using -ldflags
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// newRootCmd builds the root command. Tests construct their own instance so
// flag state never leaks between invocations.
func newRootCmd() *cobra.Command {
	var cfgFile string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "seg-batch -i <scansDir> -o <outputDir>",
		Short: "Runs the segmentator over a directory of ScanNet scenes.",
		Long: `seg-batch scans a ScanNet data directory for scene subdirectories,
invokes the segmentator binary on each scene's cleaned mesh, and collects
the resulting segmentation files into a single output directory.

It features:
  - Parallel segmentation with a bounded worker pool.
  - Per-scene failure isolation with a final failure ledger.
  - Validation of every produced segs.json before collection.
  - Skipping of scenes whose output already exists.
  - An interactive Terminal UI (TUI) for monitoring progress.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			opts, logger, err := config.LoadAndValidate(cfgFile, verbose, cmd.Flags())
			if err != nil {
				return err
			}

			// Give the TUI a moment to attach before the first events arrive.
			if term.IsTerminal(int(os.Stderr.Fd())) && !verbose && opts.TuiEnabled {
				time.Sleep(100 * time.Millisecond)
			}

			return cli.Run(ctx, opts, logger, version)
		},
	}
	cmd.SetVersionTemplate(`{{.Use}} version {{.Version}}` + "\n")

	// Persistent flags
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file path (default is search standard locations like ., $HOME/.config/seg-batch/)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (debug) logging output (disables TUI)")

	// Required Input/Output flags
	cmd.PersistentFlags().StringP("input", "i", "", "Required. ScanNet scans directory containing scene subdirectories.")
	cmd.PersistentFlags().StringP("output", "o", "", "Required. Output directory for collected segs.json files.")
	_ = cmd.MarkPersistentFlagRequired("input")
	_ = cmd.MarkPersistentFlagRequired("output")

	// Flag names align with the viper keys bound in internal/cli/config.

	// Segmentation flags
	cmd.Flags().String("segmentator", "", "Path to the segmentator binary (default is next to this executable)")
	cmd.Flags().Float64("threshold", segbatch.DefaultThreshold, "Segmentation cluster threshold (kThresh)")
	cmd.Flags().Int("min-verts", segbatch.DefaultMinVertexCount, "Minimum vertex count per segment (segMinVerts)")

	// Batch behavior flags
	cmd.Flags().Int("workers", segbatch.DefaultWorkerCount, "Number of scenes to segment in parallel")
	cmd.Flags().Bool("skip-existing", segbatch.DefaultSkipExisting, "Skip scenes whose output file already exists")
	cmd.Flags().Bool("no-tui", false, "Disable interactive Terminal UI even if in a TTY")
	cmd.Flags().String("output-format", string(segbatch.DefaultOutputFormat), `Final report format ("text", "json")`)

	return cmd
}

// Execute runs the root command and reports whether it failed. The caller is
// responsible for mapping a failure to a non-zero process exit.
func Execute() error {
	return newRootCmd().Execute()
}
