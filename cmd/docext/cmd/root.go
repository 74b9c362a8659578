// Package cmd implements the docext command line.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/docext/internal/config"
	"github.com/MeKo-Tech/docext/internal/version"
)

// cli is the state shared by the commands of one invocation.
type cli struct {
	v        *viper.Viper
	cfgFile  string
	cfg      *config.Config
	bindings map[*cobra.Command]map[string]string // config key -> flag name
}

// bind ties a flag of cmd to a config key. Bindings are applied only for
// the command that runs, so several commands can share a key.
func (c *cli) bind(cmd *cobra.Command, key, flag string) {
	if c.bindings[cmd] == nil {
		c.bindings[cmd] = make(map[string]string)
	}
	c.bindings[cmd][key] = flag
}

// NewRootCommand builds a fresh command tree with its own configuration state.
func NewRootCommand() *cobra.Command {
	c := &cli{v: viper.New(), bindings: make(map[*cobra.Command]map[string]string)}

	rootCmd := &cobra.Command{
		Use:   "docext",
		Short: "Extract text and tables from PDFs and scanned documents",
		Long: `docext extracts machine-readable text and tables from born-digital PDFs and
from scanned or photographed pages.

Pages with usable embedded text are read directly. Scanned pages are rotated,
cleaned up and recognised with tesseract. Every result carries a confidence,
a quality score and a needs_review flag.

Examples:
  docext extract invoice.pdf
  docext extract scan.png --format json --level heavy
  docext batch ./inbox --recursive --output-dir ./out
  docext serve --port 8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.initialize(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.cfgFile, "config", "",
		"config file (default is docext.yaml in ., $HOME/.config/docext, /etc/docext)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = c.v.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = c.v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(
		c.newExtractCmd(),
		c.newBatchCmd(),
		c.newServeCmd(),
		c.newConfigCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute loads .env and runs the command line.
func Execute() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: cannot load .env: %v\n", err)
	}

	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}

// initialize binds the flags of the running command, loads the
// configuration and installs the logger.
func (c *cli) initialize(cmd *cobra.Command) error {
	for key, name := range c.bindings[cmd] {
		if err := c.v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	cfg, err := config.NewLoaderWith(c.v).LoadWithFile(c.cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	c.cfg = cfg

	setupLogging(cmd.ErrOrStderr(), cfg)
	slog.Debug("Configuration loaded", "file", c.v.ConfigFileUsed(), "version", version.Version)
	return nil
}

// setupLogging installs a JSON slog handler. Logs go to stderr because
// stdout carries extraction output.
func setupLogging(w io.Writer, cfg *config.Config) {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}
