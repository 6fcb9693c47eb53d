package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/fabricctl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or create the fabricctl configuration",
	Long: `View or create the fabricctl configuration.

Without arguments, displays the effective configuration: defaults, then the
config file, then FABRICCTL_* environment variables and flags.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration as YAML",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/fabricctl/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	out := cmd.OutOrStdout()

	// Show where config is being read from
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# Config file: %s\n", used)
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	data, err := cfg.YAML()
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.ConfigFile()
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		path = cfgFile
	}

	if err := config.WriteDefault(path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("config file already exists at %s", path)
		}
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", path)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := config.ConfigFile()
	if used := viper.ConfigFileUsed(); used != "" {
		path = used
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
