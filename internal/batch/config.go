package batch

import (
	"time"

	"github.com/MeKo-Tech/docext/internal/pipeline"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Config holds all configuration for batch processing.
type Config struct {
	// Per-document extraction options
	Options pipeline.Options

	// Parallel processing settings
	Workers int

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Output settings
	Format          string
	OutputFile      string
	OutputDir       string // one result file per document when set
	ContinueOnError bool

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ShowStats        bool
	ProgressInterval time.Duration
}

// DefaultConfig returns text output with four workers.
func DefaultConfig() Config {
	return Config{
		Options:          pipeline.DefaultOptions(),
		Workers:          4,
		Format:           FormatText,
		ContinueOnError:  true,
		ProgressInterval: 100 * time.Millisecond,
	}
}
