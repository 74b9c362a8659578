//nolint:lll
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/docext/internal/ocr"
	"github.com/MeKo-Tech/docext/internal/pdf"
	"github.com/MeKo-Tech/docext/internal/pipeline"
	"github.com/MeKo-Tech/docext/internal/postprocess"
	"github.com/MeKo-Tech/docext/internal/preprocess"
	"github.com/MeKo-Tech/docext/internal/quality"
	"github.com/MeKo-Tech/docext/internal/rotation"
	"github.com/MeKo-Tech/docext/internal/tables"
)

// Config represents the complete configuration of docext. It is loaded from
// a configuration file, DOCEXT_* environment variables and command-line flags.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Quality     QualityConfig     `mapstructure:"quality" yaml:"quality" json:"quality"`
	Rotation    RotationConfig    `mapstructure:"rotation" yaml:"rotation" json:"rotation"`
	Preprocess  PreprocessConfig  `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`
	OCR         OCRConfig         `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Tables      TablesConfig      `mapstructure:"tables" yaml:"tables" json:"tables"`
	PostProcess PostProcessConfig `mapstructure:"postprocess" yaml:"postprocess" json:"postprocess"`
	Output      OutputConfig      `mapstructure:"output" yaml:"output" json:"output"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server" json:"server"`
	Batch       BatchConfig       `mapstructure:"batch" yaml:"batch" json:"batch"`
	Cache       CacheConfig       `mapstructure:"cache" yaml:"cache" json:"cache"`
}

// QualityConfig holds the thresholds deciding whether embedded text is usable.
type QualityConfig struct {
	QualityThreshold    float64 `mapstructure:"quality_threshold" yaml:"quality_threshold" json:"quality_threshold"`
	CharRatioThreshold  float64 `mapstructure:"char_ratio_threshold" yaml:"char_ratio_threshold" json:"char_ratio_threshold"`
	MaxReplacementRatio float64 `mapstructure:"max_replacement_ratio" yaml:"max_replacement_ratio" json:"max_replacement_ratio"`
}

// RotationConfig controls right-angle rotation correction.
type RotationConfig struct {
	Enabled             bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold" json:"confidence_threshold"`
}

// PreprocessConfig selects and tunes the image cleanup cascade.
type PreprocessConfig struct {
	Level         string  `mapstructure:"level" yaml:"level" json:"level"`
	DenoiseSigma  float64 `mapstructure:"denoise_sigma" yaml:"denoise_sigma" json:"denoise_sigma"`
	MinSkewAngle  float64 `mapstructure:"min_skew_angle" yaml:"min_skew_angle" json:"min_skew_angle"`
	MaxSkewAngle  float64 `mapstructure:"max_skew_angle" yaml:"max_skew_angle" json:"max_skew_angle"`
	ContrastTiles int     `mapstructure:"contrast_tiles" yaml:"contrast_tiles" json:"contrast_tiles"`
	ContrastClip  float64 `mapstructure:"contrast_clip" yaml:"contrast_clip" json:"contrast_clip"`
}

// OCRConfig configures recognition and rasterization.
type OCRConfig struct {
	Enabled             bool     `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Languages           []string `mapstructure:"languages" yaml:"languages" json:"languages"`
	LineReviewThreshold float64  `mapstructure:"line_review_threshold" yaml:"line_review_threshold" json:"line_review_threshold"`
	DPI                 float64  `mapstructure:"dpi" yaml:"dpi" json:"dpi"`
}

// TablesConfig configures table extraction.
type TablesConfig struct {
	Enabled      bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	MinTableArea float64 `mapstructure:"min_table_area" yaml:"min_table_area" json:"min_table_area"`
	RowTolerance float64 `mapstructure:"row_tolerance" yaml:"row_tolerance" json:"row_tolerance"`
	RegionGap    float64 `mapstructure:"region_gap" yaml:"region_gap" json:"region_gap"`
	ColumnGap    float64 `mapstructure:"column_gap" yaml:"column_gap" json:"column_gap"`
	MinRows      int     `mapstructure:"min_rows" yaml:"min_rows" json:"min_rows"`
}

// PostProcessConfig holds the review thresholds.
type PostProcessConfig struct {
	ReviewThreshold  float64 `mapstructure:"review_threshold" yaml:"review_threshold" json:"review_threshold"`
	SpecialCharRatio float64 `mapstructure:"special_char_ratio" yaml:"special_char_ratio" json:"special_char_ratio"`
	ShortTextLength  int     `mapstructure:"short_text_length" yaml:"short_text_length" json:"short_text_length"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers   int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive bool   `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
}

// CacheConfig selects the result cache.
type CacheConfig struct {
	Backend       string        `mapstructure:"backend" yaml:"backend" json:"backend"` // none, memory or redis
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl" json:"ttl"`
	MaxEntries    int           `mapstructure:"max_entries" yaml:"max_entries" json:"max_entries"`
	RedisAddr     string        `mapstructure:"redis_addr" yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"redis_password" json:"-"`
	RedisDB       int           `mapstructure:"redis_db" yaml:"redis_db" json:"redis_db"`
	RedisPrefix   string        `mapstructure:"redis_prefix" yaml:"redis_prefix" json:"redis_prefix"`
}

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// DefaultConfig returns a configuration with the component defaults.
func DefaultConfig() Config {
	q := quality.DefaultConfig()
	r := rotation.DefaultConfig()
	pp := preprocess.DefaultConfig()
	t := tables.DefaultConfig()
	post := postprocess.DefaultConfig()

	return Config{
		LogLevel: "info",
		Quality: QualityConfig{
			QualityThreshold:    q.QualityThreshold,
			CharRatioThreshold:  q.CharRatioThreshold,
			MaxReplacementRatio: q.MaxReplacementRatio,
		},
		Rotation: RotationConfig{
			Enabled:             r.Enabled,
			ConfidenceThreshold: r.ConfidenceThreshold,
		},
		Preprocess: PreprocessConfig{
			Level:         preprocess.Medium.String(),
			DenoiseSigma:  pp.DenoiseSigma,
			MinSkewAngle:  pp.MinSkewAngle,
			MaxSkewAngle:  pp.MaxSkewAngle,
			ContrastTiles: pp.ContrastTiles,
			ContrastClip:  pp.ContrastClip,
		},
		OCR: OCRConfig{
			Enabled:             true,
			Languages:           slices.Clone(ocr.DefaultLanguages),
			LineReviewThreshold: ocr.DefaultLineReviewThreshold,
			DPI:                 pdf.DefaultDPI,
		},
		Tables: TablesConfig{
			MinTableArea: t.MinTableArea,
			RowTolerance: t.RowTolerance,
			RegionGap:    t.RegionGap,
			ColumnGap:    t.ColumnGap,
			MinRows:      t.MinRows,
		},
		PostProcess: PostProcessConfig{
			ReviewThreshold:  post.ReviewThreshold,
			SpecialCharRatio: post.SpecialCharRatio,
			ShortTextLength:  post.ShortTextLength,
		},
		Output: OutputConfig{Format: "text"},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      120,
			ShutdownTimeout: 10,
		},
		Batch: BatchConfig{Workers: 4},
		Cache: CacheConfig{
			Backend:     CacheNone,
			TTL:         pipeline.DefaultCacheTTL,
			MaxEntries:  1000,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "docext:",
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json", "csv"} // csv applies to batch only
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if _, err := preprocess.ParseLevel(c.Preprocess.Level); err != nil {
		return fmt.Errorf("invalid preprocess.level: %w", err)
	}

	for name, v := range map[string]float64{
		"quality.char_ratio_threshold":   c.Quality.CharRatioThreshold,
		"quality.max_replacement_ratio":  c.Quality.MaxReplacementRatio,
		"rotation.confidence_threshold":  c.Rotation.ConfidenceThreshold,
		"ocr.line_review_threshold":      c.OCR.LineReviewThreshold,
		"tables.min_table_area":          c.Tables.MinTableArea,
		"postprocess.review_threshold":   c.PostProcess.ReviewThreshold,
		"postprocess.special_char_ratio": c.PostProcess.SpecialCharRatio,
	} {
		if err := validateThreshold(v, name); err != nil {
			return err
		}
	}

	if c.Quality.QualityThreshold <= 0 {
		return fmt.Errorf("invalid quality.quality_threshold: %.2f (must be positive)", c.Quality.QualityThreshold)
	}
	if c.OCR.DPI <= 0 {
		return fmt.Errorf("invalid ocr.dpi: %.0f (must be positive)", c.OCR.DPI)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}

	validBackends := []string{CacheNone, CacheMemory, CacheRedis}
	if !slices.Contains(validBackends, c.Cache.Backend) {
		return fmt.Errorf("invalid cache backend: %s (must be one of: %s)", c.Cache.Backend, strings.Join(validBackends, ", "))
	}
	if c.Cache.Backend == CacheRedis && c.Cache.RedisAddr == "" {
		return fmt.Errorf("cache.redis_addr is required for the redis backend")
	}
	return nil
}

// ToPipelineConfig converts the config into the pipeline configuration.
func (c *Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()

	cfg.Quality = quality.Config{
		QualityThreshold:    c.Quality.QualityThreshold,
		CharRatioThreshold:  c.Quality.CharRatioThreshold,
		MaxReplacementRatio: c.Quality.MaxReplacementRatio,
	}
	cfg.Rotation.Enabled = c.Rotation.Enabled
	cfg.Rotation.ConfidenceThreshold = c.Rotation.ConfidenceThreshold
	cfg.Preprocess = preprocess.Config{
		DenoiseSigma:  c.Preprocess.DenoiseSigma,
		MinSkewAngle:  c.Preprocess.MinSkewAngle,
		MaxSkewAngle:  c.Preprocess.MaxSkewAngle,
		ContrastTiles: c.Preprocess.ContrastTiles,
		ContrastClip:  c.Preprocess.ContrastClip,
	}
	if len(c.OCR.Languages) > 0 {
		cfg.OCR.Languages = slices.Clone(c.OCR.Languages)
	}
	cfg.OCR.LineReviewThreshold = c.OCR.LineReviewThreshold
	cfg.DPI = c.OCR.DPI
	cfg.DisableOCR = !c.OCR.Enabled

	cfg.Tables.MinTableArea = c.Tables.MinTableArea
	cfg.Tables.RowTolerance = c.Tables.RowTolerance
	cfg.Tables.RegionGap = c.Tables.RegionGap
	cfg.Tables.ColumnGap = c.Tables.ColumnGap
	cfg.Tables.MinRows = c.Tables.MinRows

	cfg.PostProcess.ReviewThreshold = c.PostProcess.ReviewThreshold
	cfg.PostProcess.SpecialCharRatio = c.PostProcess.SpecialCharRatio
	cfg.PostProcess.ShortTextLength = c.PostProcess.ShortTextLength

	if c.Cache.TTL > 0 {
		cfg.CacheTTL = c.Cache.TTL
	}
	return cfg
}

// ToOptions returns the per-run options implied by the config.
func (c *Config) ToOptions() (pipeline.Options, error) {
	level, err := preprocess.ParseLevel(c.Preprocess.Level)
	if err != nil {
		return pipeline.Options{}, err
	}
	opts := pipeline.DefaultOptions()
	opts.Level = level
	opts.ExtractTables = c.Tables.Enabled
	if len(c.OCR.Languages) > 0 {
		opts.Languages = slices.Clone(c.OCR.Languages)
	}
	return opts, nil
}

// YAML renders the configuration as YAML.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}
