package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "docext"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "DOCEXT"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so that flags
// bound by the root command take part in resolution.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWith creates a loader on a caller-owned viper instance.
func NewLoaderWith(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load loads configuration from the search paths, environment variables and
// defaults, and validates the result.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithFile loads configuration from a specific file path. An empty path
// searches the standard locations; a missing file there is not an error.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	cfg, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithFileWithoutValidation is LoadWithFile minus validation. The config
// command uses it to show configurations that would be rejected.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	l.setupEnvironmentVariables()
	l.setDefaults()

	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetResolvedConfig returns the current resolved configuration for debugging.
func (l *Loader) GetResolvedConfig() map[string]any {
	return l.v.AllSettings()
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	// quality.char_ratio_threshold -> DOCEXT_QUALITY_CHAR_RATIO_THRESHOLD
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key. Unmarshal only sees environment values
// for keys viper already knows about.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("quality.quality_threshold", d.Quality.QualityThreshold)
	l.v.SetDefault("quality.char_ratio_threshold", d.Quality.CharRatioThreshold)
	l.v.SetDefault("quality.max_replacement_ratio", d.Quality.MaxReplacementRatio)

	l.v.SetDefault("rotation.enabled", d.Rotation.Enabled)
	l.v.SetDefault("rotation.confidence_threshold", d.Rotation.ConfidenceThreshold)

	l.v.SetDefault("preprocess.level", d.Preprocess.Level)
	l.v.SetDefault("preprocess.denoise_sigma", d.Preprocess.DenoiseSigma)
	l.v.SetDefault("preprocess.min_skew_angle", d.Preprocess.MinSkewAngle)
	l.v.SetDefault("preprocess.max_skew_angle", d.Preprocess.MaxSkewAngle)
	l.v.SetDefault("preprocess.contrast_tiles", d.Preprocess.ContrastTiles)
	l.v.SetDefault("preprocess.contrast_clip", d.Preprocess.ContrastClip)

	l.v.SetDefault("ocr.enabled", d.OCR.Enabled)
	l.v.SetDefault("ocr.languages", d.OCR.Languages)
	l.v.SetDefault("ocr.line_review_threshold", d.OCR.LineReviewThreshold)
	l.v.SetDefault("ocr.dpi", d.OCR.DPI)

	l.v.SetDefault("tables.enabled", d.Tables.Enabled)
	l.v.SetDefault("tables.min_table_area", d.Tables.MinTableArea)
	l.v.SetDefault("tables.row_tolerance", d.Tables.RowTolerance)
	l.v.SetDefault("tables.region_gap", d.Tables.RegionGap)
	l.v.SetDefault("tables.column_gap", d.Tables.ColumnGap)
	l.v.SetDefault("tables.min_rows", d.Tables.MinRows)

	l.v.SetDefault("postprocess.review_threshold", d.PostProcess.ReviewThreshold)
	l.v.SetDefault("postprocess.special_char_ratio", d.PostProcess.SpecialCharRatio)
	l.v.SetDefault("postprocess.short_text_length", d.PostProcess.ShortTextLength)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.file", d.Output.File)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	l.v.SetDefault("batch.workers", d.Batch.Workers)
	l.v.SetDefault("batch.recursive", d.Batch.Recursive)
	l.v.SetDefault("batch.output_dir", d.Batch.OutputDir)

	l.v.SetDefault("cache.backend", d.Cache.Backend)
	l.v.SetDefault("cache.ttl", d.Cache.TTL)
	l.v.SetDefault("cache.max_entries", d.Cache.MaxEntries)
	l.v.SetDefault("cache.redis_addr", d.Cache.RedisAddr)
	l.v.SetDefault("cache.redis_password", d.Cache.RedisPassword)
	l.v.SetDefault("cache.redis_db", d.Cache.RedisDB)
	l.v.SetDefault("cache.redis_prefix", d.Cache.RedisPrefix)
}

// GenerateDefaultConfigFile writes the default configuration as YAML.
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	d := DefaultConfig()
	out, err := d.YAML()
	if err != nil {
		return err
	}
	return os.WriteFile(filename, out, 0o600)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if configDir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	return append(paths, filepath.Join("/etc", ConfigFileName))
}
