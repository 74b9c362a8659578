package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/docext/internal/pipeline"
)

func (c *cli) newExtractCmd() *cobra.Command {
	extractCmd := &cobra.Command{
		Use:   "extract <document>",
		Short: "Extract text from one PDF or image",
		Long: `Extract text (and optionally tables) from a single document.

The file type is inferred from the extension unless --filetype is given.
Supported types: pdf, png, jpg, jpeg, tiff, tif, bmp.

Examples:
  docext extract invoice.pdf
  docext extract scan.jpg --level heavy --languages eng,deu
  docext extract report.pdf --tables --format json --output report.json
  docext extract locked.pdf --password secret`,
		Args: cobra.ExactArgs(1),
		RunE: c.runExtract,
	}

	extractCmd.Flags().StringP("format", "f", "text", "output format (text, json)")
	extractCmd.Flags().StringP("output", "o", "", "write output to file instead of stdout")
	extractCmd.Flags().String("filetype", "", "declared file type, overrides the extension")
	extractCmd.Flags().String("password", "", "user password for encrypted PDFs")
	extractCmd.Flags().String("owner-password", "", "owner password for encrypted PDFs")
	extractCmd.Flags().Bool("progress", false, "show page progress on stderr")
	c.bind(extractCmd, "output.format", "format")
	c.bind(extractCmd, "output.file", "output")
	c.addExtractionFlags(extractCmd)

	return extractCmd
}

func (c *cli) runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := c.effectiveConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Output.Format == "csv" {
		return errors.New("csv output is only available for batch")
	}
	opts, err := cfg.ToOptions()
	if err != nil {
		return err
	}
	opts.FileType, _ = cmd.Flags().GetString("filetype")
	opts.Credentials.UserPassword, _ = cmd.Flags().GetString("password")
	opts.Credentials.OwnerPassword, _ = cmd.Flags().GetString("owner-password")
	if showProgress, _ := cmd.Flags().GetBool("progress"); showProgress {
		opts.Progress = pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Pages: ")
	}

	p, cleanup, err := buildPipeline(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := p.Extract(cmd.Context(), args[0], opts)
	if err != nil {
		return err
	}
	slog.Info("Extraction finished",
		"file", args[0],
		"method", res.Method,
		"pages", res.PagesProcessed,
		"needs_review", res.NeedsReview,
		"duration_ms", res.ExtractionTimeMs)

	return writeResult(cmd.OutOrStdout(), res, cfg.Output.Format, cfg.Output.File)
}

// writeResult renders res as text or indented JSON to file, or to w when
// file is empty.
func writeResult(w io.Writer, res *pipeline.ExtractionResult, format, file string) error {
	var content []byte
	switch format {
	case "json":
		bts, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		content = append(bts, '\n')
	default:
		content = []byte(res.Text + "\n")
	}

	if file == "" {
		_, err := w.Write(content)
		return err
	}
	if err := os.WriteFile(file, content, 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
