package pipeline

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"
)

// BatchConfig holds configuration for batch extraction.
type BatchConfig struct {
	Workers  int              // parallel documents (0 = runtime.NumCPU())
	Progress ProgressCallback // document-level progress, optional
}

// DefaultBatchConfig uses one worker per CPU.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{Workers: runtime.NumCPU()}
}

// BatchResult is the outcome for one document of a batch.
type BatchResult struct {
	Path   string            `json:"path"`
	Result *ExtractionResult `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
	Err    error             `json:"-"`
}

type batchJob struct {
	index int
	path  string
}

type batchOutcome struct {
	index int
	BatchResult
}

// ExtractBatch extracts independent documents concurrently and returns
// their results in input order. A failing document does not stop the
// batch; the returned error is set only for an empty batch or cancellation.
func (p *Pipeline) ExtractBatch(ctx context.Context, paths []string, opts Options, cfg BatchConfig) ([]BatchResult, error) {
	if len(paths) == 0 {
		return nil, errors.New("no documents provided")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	cfg.Workers = min(cfg.Workers, len(paths))
	progress := cfg.Progress
	if progress == nil {
		progress = NoOpProgressCallback{}
	}
	// Page-level callbacks of concurrent documents would interleave.
	opts.Progress = nil

	progress.OnStart(len(paths))
	defer progress.OnComplete()

	jobs := make(chan batchJob, len(paths))
	results := make(chan batchOutcome, len(paths))

	var wg sync.WaitGroup
	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					return
				}
				res, err := p.Extract(ctx, job.path, opts)
				br := BatchResult{Path: job.path, Result: res, Err: err}
				if err != nil {
					br.Error = err.Error()
				}
				results <- batchOutcome{index: job.index, BatchResult: br}
			}
		}()
	}

	for i, path := range paths {
		jobs <- batchJob{index: i, path: path}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]BatchResult, len(paths))
	done := 0
	for out := range results {
		ordered[out.index] = out.BatchResult
		done++
		if out.Err != nil {
			progress.OnError(out.index, out.Err)
		}
		progress.OnProgress(done, len(paths))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ordered, nil
}

// BatchStats summarizes a finished batch.
type BatchStats struct {
	Total              int           `json:"total"`
	Succeeded          int           `json:"succeeded"`
	Failed             int           `json:"failed"`
	NeedsReview        int           `json:"needs_review"`
	Workers            int           `json:"workers"`
	TotalDuration      time.Duration `json:"total_duration_ns"`
	AveragePerDocument time.Duration `json:"average_per_document_ns"`
	ThroughputPerSec   float64       `json:"throughput_per_sec"`
}

// CalculateBatchStats computes statistics for a batch that took duration.
func CalculateBatchStats(results []BatchResult, duration time.Duration, workers int) BatchStats {
	s := BatchStats{Total: len(results), Workers: workers, TotalDuration: duration}
	for _, r := range results {
		if r.Err != nil || r.Result == nil {
			s.Failed++
			continue
		}
		s.Succeeded++
		if r.Result.NeedsReview {
			s.NeedsReview++
		}
	}
	if s.Succeeded > 0 && duration > 0 {
		s.AveragePerDocument = duration / time.Duration(s.Succeeded)
		s.ThroughputPerSec = float64(s.Succeeded) / duration.Seconds()
	}
	return s
}
