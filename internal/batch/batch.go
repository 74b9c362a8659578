// Package batch runs extractions over many documents for the CLI.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/docext/internal/pipeline"
)

// Extractor is the part of the pipeline a batch needs.
type Extractor interface {
	ExtractBatch(ctx context.Context, paths []string, opts pipeline.Options, cfg pipeline.BatchConfig) ([]pipeline.BatchResult, error)
}

// Result holds the result of batch processing.
type Result struct {
	Results     []pipeline.BatchResult
	Duration    time.Duration
	WorkerCount int
}

// ProcessBatch discovers the documents named by args and extracts them.
func ProcessBatch(ctx context.Context, ex Extractor, args []string, config Config) (*Result, error) {
	files, err := Discover(args, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover documents: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no documents found")
	}

	var progress pipeline.ProgressCallback = pipeline.NewLogProgressCallback(slog.Default(), slog.LevelDebug, 10)
	if config.ShowProgress && !config.Quiet {
		progress = pipeline.NewMultiProgressCallback(
			pipeline.NewConsoleProgressCallback(os.Stderr, "Extracting: ").WithUpdateInterval(config.ProgressInterval),
			progress,
		)
	}

	start := time.Now()
	results, err := ex.ExtractBatch(ctx, files, config.Options, pipeline.BatchConfig{
		Workers:  config.Workers,
		Progress: progress,
	})
	if err != nil {
		return nil, fmt.Errorf("batch processing failed: %w", err)
	}

	return &Result{
		Results:     results,
		Duration:    time.Since(start),
		WorkerCount: config.Workers,
	}, nil
}

// FirstError returns the first per-document failure, or nil.
func (r *Result) FirstError() error {
	for _, br := range r.Results {
		if br.Err != nil {
			return fmt.Errorf("%s: %w", br.Path, br.Err)
		}
	}
	return nil
}

// FormatResults formats the batch processing results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r.Results, format)
}

// SaveResults writes the formatted results to outputFile, or to w when
// outputFile is empty.
func (r *Result) SaveResults(w io.Writer, format, outputFile string) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile == "" {
		_, err = io.WriteString(w, output)
		return err
	}
	if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// WriteOutputDir stores one file per successful document in dir, named
// after the document with a .txt or .json extension.
func (r *Result) WriteOutputDir(dir, format string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	ext := ".txt"
	if format == FormatJSON {
		ext = ".json"
	}

	var written []string
	used := make(map[string]bool)
	for _, br := range r.Results {
		if br.Result == nil {
			continue
		}
		base := uniqueName(used, strings.TrimSuffix(filepath.Base(br.Path), filepath.Ext(br.Path)))

		content, err := formatDocument(br, format)
		if err != nil {
			return written, err
		}
		out := filepath.Join(dir, base+ext)
		if err := os.WriteFile(out, []byte(content), 0o600); err != nil {
			return written, fmt.Errorf("write %s: %w", out, err)
		}
		written = append(written, out)
	}
	return written, nil
}

// uniqueName returns base, or base_N with the smallest N not yet used, and
// marks the result as used. Inputs may share a base name across
// directories or extensions.
func uniqueName(used map[string]bool, base string) string {
	name := base
	for n := 1; used[name]; n++ {
		name = fmt.Sprintf("%s_%d", base, n)
	}
	used[name] = true
	return name
}

// Stats summarizes the batch.
func (r *Result) Stats() pipeline.BatchStats {
	return pipeline.CalculateBatchStats(r.Results, r.Duration, r.WorkerCount)
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer) {
	stats := r.Stats()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total documents: %d\n", stats.Total)
	_, _ = fmt.Fprintf(w, "  Succeeded: %d\n", stats.Succeeded)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", stats.Failed)
	_, _ = fmt.Fprintf(w, "  Needs review: %d\n", stats.NeedsReview)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", stats.Workers)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", stats.TotalDuration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per document: %v\n", stats.AveragePerDocument.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f documents/sec\n", stats.ThroughputPerSec)
}
