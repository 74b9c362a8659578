package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/docext/internal/cache"
	"github.com/MeKo-Tech/docext/internal/config"
	"github.com/MeKo-Tech/docext/internal/pipeline"
)

// addExtractionFlags registers the flags shared by extract, batch and serve.
func (c *cli) addExtractionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("level", "l", "medium", "preprocessing level for scanned pages (light, medium, heavy)")
	cmd.Flags().StringSlice("languages", nil, "tesseract languages, e.g. eng,deu")
	cmd.Flags().Bool("tables", false, "detect tables")
	cmd.Flags().Float64("dpi", 0, "rasterization resolution for scanned PDF pages")
	cmd.Flags().Bool("rotation", true, "detect and correct page rotation")
	cmd.Flags().Bool("no-ocr", false, "skip OCR; scanned pages get a placeholder")
	cmd.Flags().String("cache", "", "result cache backend (none, memory, redis)")

	c.bind(cmd, "preprocess.level", "level")
	c.bind(cmd, "ocr.languages", "languages")
	c.bind(cmd, "tables.enabled", "tables")
	c.bind(cmd, "ocr.dpi", "dpi")
	c.bind(cmd, "rotation.enabled", "rotation")
	c.bind(cmd, "cache.backend", "cache")
}

// effectiveConfig applies flags that do not map one-to-one onto a key.
func (c *cli) effectiveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := *c.cfg
	if noOCR, _ := cmd.Flags().GetBool("no-ocr"); noOCR {
		cfg.OCR.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// buildPipeline assembles the pipeline and its result cache. The returned
// cleanup closes both.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, func(), error) {
	store, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return nil, nil, err
	}

	b := pipeline.NewBuilder().WithConfig(cfg.ToPipelineConfig())
	if store != nil {
		b = b.WithCache(store, cfg.Cache.TTL)
	}

	p, err := b.Build()
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	cleanup := func() {
		if err := p.Close(); err != nil {
			slog.Warn("Pipeline close failed", "error", err)
		}
		if store != nil {
			if err := store.Close(); err != nil {
				slog.Warn("Cache close failed", "error", err)
			}
		}
	}
	return p, cleanup, nil
}

// openCache returns nil when caching is disabled.
func openCache(ctx context.Context, cc config.CacheConfig) (cache.Store, error) {
	switch cc.Backend {
	case config.CacheMemory:
		slog.Debug("Using in-memory result cache", "max_entries", cc.MaxEntries)
		return cache.NewMemoryStore(cc.MaxEntries), nil
	case config.CacheRedis:
		store, err := cache.NewRedisStore(ctx, cache.RedisConfig{
			Addr:     cc.RedisAddr,
			Password: cc.RedisPassword,
			DB:       cc.RedisDB,
			Prefix:   cc.RedisPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis cache: %w", err)
		}
		slog.Debug("Using redis result cache", "addr", cc.RedisAddr)
		return store, nil
	default:
		return nil, nil
	}
}
