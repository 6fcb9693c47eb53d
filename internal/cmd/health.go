package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/fabricctl/internal/api"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the backend is reachable",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client, err := api.NewClient(cfg.API.BaseURL, cfg.API.Prefix, api.WithRequestTimeout(cfg.API.RequestTimeout))
	if err != nil {
		return err
	}

	ctx := contextOrBackground(cmd.Context())
	hs, err := client.Health(ctx)
	if err != nil {
		return fmt.Errorf("backend at %s is unreachable: %w", cfg.API.BaseURL, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", cfg.API.BaseURL, hs.Status)
	return nil
}
