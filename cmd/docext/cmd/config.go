package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/docext/internal/config"
)

func (c *cli) newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration files",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration after merging defaults, the config file,
DOCEXT_* environment variables and flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := c.cfg.YAML()
			if err != nil {
				return err
			}
			if used := c.v.ConfigFileUsed(); used != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# loaded from %s\n", used)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Write a config file with the default values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := config.ConfigFileName + ".yaml"
			if len(args) == 1 {
				file = args[0]
			}
			if force, _ := cmd.Flags().GetBool("force"); !force {
				if _, err := os.Stat(file); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", file)
				}
			}
			if err := config.GenerateDefaultConfigFile(file); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", file)
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing file")

	pathsCmd := &cobra.Command{
		Use:   "paths",
		Short: "List the directories searched for docext.yaml",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, p := range config.GetConfigSearchPaths() {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
		},
	}

	configCmd.AddCommand(showCmd, initCmd, pathsCmd)
	return configCmd
}
