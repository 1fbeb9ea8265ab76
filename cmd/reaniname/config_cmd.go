package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fuunylmz/Re-aniname/internal/config"
	"github.com/fuunylmz/Re-aniname/internal/paths"
	"github.com/fuunylmz/Re-aniname/internal/ui"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage reaniname configuration",
		Long: `Commands for managing reaniname configuration.

The config file is stored at: ~/.config/reaniname/config.toml
(REANINAME_HOME overrides the directory.) Settings can also be overridden
with REANINAME_* environment variables, e.g. REANINAME_CATALOG_API_KEY.

Examples:
  reaniname config init              # Create default config file
  reaniname config show              # Display current configuration
  reaniname config path              # Show config file path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			}

			if err := config.DefaultConfig().SaveTo(path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			out := cmd.OutOrStdout()
			ui.SuccessMsg(out, "Created config file: %s", path)
			fmt.Fprintln(out, "\nNext steps:")
			fmt.Fprintln(out, "  1. Set [library] output_dir and mode")
			fmt.Fprintln(out, "  2. Add [classifier] and [catalog] API keys (optional)")
			fmt.Fprintln(out, "  3. Run 'reaniname config show' to review settings")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config file")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration (secrets masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := cfg.Redacted().ToTOML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return paths.ConfigPath()
}
