package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/docext/internal/batch"
)

func (c *cli) newBatchCmd() *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch <files or directories...>",
		Short: "Extract many documents in parallel",
		Long: `Extract every supported document named on the command line or found in
the given directories, using a pool of workers.

Failed documents are reported in the output and do not stop the batch
unless --continue-on-error=false is given.

Examples:
  docext batch a.pdf b.png
  docext batch ./inbox --recursive --workers 8
  docext batch ./scans --include "*.tif" --format csv --output summary.csv
  docext batch ./inbox --output-dir ./extracted --format json --stats`,
		Args: cobra.MinimumNArgs(1),
		RunE: c.runBatch,
	}

	batchCmd.Flags().StringP("format", "f", "text", "output format (text, json, csv)")
	batchCmd.Flags().StringP("output", "o", "", "write combined output to file instead of stdout")
	batchCmd.Flags().String("output-dir", "", "write one result file per document into this directory")
	batchCmd.Flags().IntP("workers", "w", 4, "number of parallel workers")
	batchCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	batchCmd.Flags().StringSlice("include", nil, "glob patterns of files to include")
	batchCmd.Flags().StringSlice("exclude", nil, "glob patterns of files to exclude")
	batchCmd.Flags().Bool("continue-on-error", true, "keep going when a document fails")
	batchCmd.Flags().Bool("progress", false, "show a progress bar on stderr")
	batchCmd.Flags().BoolP("quiet", "q", false, "suppress progress and statistics")
	batchCmd.Flags().Bool("stats", false, "print processing statistics to stderr")
	c.bind(batchCmd, "output.format", "format")
	c.bind(batchCmd, "output.file", "output")
	c.bind(batchCmd, "batch.output_dir", "output-dir")
	c.bind(batchCmd, "batch.workers", "workers")
	c.bind(batchCmd, "batch.recursive", "recursive")
	c.addExtractionFlags(batchCmd)

	return batchCmd
}

func (c *cli) runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := c.effectiveConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := cfg.ToOptions()
	if err != nil {
		return err
	}

	bc := batch.DefaultConfig()
	bc.Options = opts
	bc.Workers = cfg.Batch.Workers
	bc.Recursive = cfg.Batch.Recursive
	bc.Format = cfg.Output.Format
	bc.OutputFile = cfg.Output.File
	bc.OutputDir = cfg.Batch.OutputDir
	bc.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	bc.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")
	bc.ContinueOnError, _ = cmd.Flags().GetBool("continue-on-error")
	bc.ShowProgress, _ = cmd.Flags().GetBool("progress")
	bc.Quiet, _ = cmd.Flags().GetBool("quiet")
	bc.ShowStats, _ = cmd.Flags().GetBool("stats")
	if bc.OutputDir != "" && bc.Format == batch.FormatCSV {
		return errors.New("csv cannot be written per document; use --output instead of --output-dir")
	}

	p, cleanup, err := buildPipeline(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := batch.ProcessBatch(cmd.Context(), p, args, bc)
	if err != nil {
		return err
	}

	if bc.OutputDir != "" {
		written, err := res.WriteOutputDir(bc.OutputDir, bc.Format)
		if err != nil {
			return err
		}
		if !bc.Quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d result files to %s\n", len(written), bc.OutputDir)
		}
	} else if err := res.SaveResults(cmd.OutOrStdout(), bc.Format, bc.OutputFile); err != nil {
		return err
	}

	if bc.ShowStats && !bc.Quiet {
		res.PrintStats(cmd.ErrOrStderr())
	}

	if !bc.ContinueOnError {
		return res.FirstError()
	}
	return nil
}
