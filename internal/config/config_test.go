package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/docext/internal/preprocess"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.LogLevel)
	assert.InDelta(t, 100.0, cfg.Quality.QualityThreshold, 1e-9)
	assert.InDelta(t, 0.7, cfg.Quality.CharRatioThreshold, 1e-9)
	assert.Equal(t, "medium", cfg.Preprocess.Level)
	assert.True(t, cfg.OCR.Enabled)
	assert.Equal(t, CacheNone, cfg.Cache.Backend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }, "invalid output format"},
		{"bad level", func(c *Config) { c.Preprocess.Level = "extreme" }, "invalid preprocess.level"},
		{"char ratio above one", func(c *Config) { c.Quality.CharRatioThreshold = 1.5 }, "quality.char_ratio_threshold"},
		{"negative review threshold", func(c *Config) { c.PostProcess.ReviewThreshold = -0.1 }, "postprocess.review_threshold"},
		{"zero quality threshold", func(c *Config) { c.Quality.QualityThreshold = 0 }, "quality.quality_threshold"},
		{"zero dpi", func(c *Config) { c.OCR.DPI = 0 }, "ocr.dpi"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"no workers", func(c *Config) { c.Batch.Workers = 0 }, "invalid batch workers"},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "memcached" }, "invalid cache backend"},
		{"redis without addr", func(c *Config) {
			c.Cache.Backend = CacheRedis
			c.Cache.RedisAddr = ""
		}, "redis_addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestToPipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Quality.QualityThreshold = 250
	cfg.Rotation.Enabled = false
	cfg.OCR.Enabled = false
	cfg.OCR.Languages = []string{"deu"}
	cfg.OCR.DPI = 300
	cfg.Tables.MinTableArea = 0.02
	cfg.Tables.ColumnGap = 40
	cfg.PostProcess.ReviewThreshold = 0.9

	pc := cfg.ToPipelineConfig()
	assert.InDelta(t, 250.0, pc.Quality.QualityThreshold, 1e-9)
	assert.False(t, pc.Rotation.Enabled)
	assert.True(t, pc.DisableOCR)
	assert.Equal(t, []string{"deu"}, pc.OCR.Languages)
	assert.InDelta(t, 300.0, pc.DPI, 1e-9)
	assert.InDelta(t, 0.02, pc.Tables.MinTableArea, 1e-9)
	assert.InDelta(t, 40.0, pc.Tables.ColumnGap, 1e-9)
	assert.InDelta(t, 0.9, pc.PostProcess.ReviewThreshold, 1e-9)
	assert.Positive(t, pc.PostProcess.RepeatRun, "fields without a config key keep their defaults")

	cfg.OCR.Languages[0] = "fra"
	assert.Equal(t, []string{"deu"}, pc.OCR.Languages)
}

func TestToOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Preprocess.Level = "heavy"
	cfg.Tables.Enabled = true

	opts, err := cfg.ToOptions()
	require.NoError(t, err)
	assert.Equal(t, preprocess.Heavy, opts.Level)
	assert.True(t, opts.ExtractTables)
	assert.Equal(t, cfg.OCR.Languages, opts.Languages)

	cfg.Preprocess.Level = "bogus"
	_, err = cfg.ToOptions()
	assert.Error(t, err)
}

func TestYAML_ReadableBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.RedisPassword = "secret"

	out, err := cfg.YAML()
	require.NoError(t, err)

	var back Config
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, cfg.Server, back.Server)
	assert.Equal(t, "secret", back.Cache.RedisPassword)
	assert.Contains(t, string(out), "quality_threshold:")
}
