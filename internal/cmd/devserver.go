package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/fabricctl/internal/devserver"
	"github.com/Iron-Ham/fabricctl/internal/logging"
)

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run an in-memory backend for local development",
	Long: `Run an HTTP server that speaks the knowledge fabric API from memory.

Created jobs advance one stage per devserver.step_interval and finish with a
fabric id. Use --fail-step to make jobs fail at a stage, --omit-job-id to
answer without ids, or --reject to refuse every creation request.`,
	Args: cobra.NoArgs,
	RunE: runDevserver,
}

func init() {
	rootCmd.AddCommand(devserverCmd)

	devserverCmd.Flags().String("addr", "", "listen address (overrides devserver.addr)")
	devserverCmd.Flags().Duration("step-interval", 0, "time spent per stage (overrides devserver.step_interval)")
	devserverCmd.Flags().String("fail-step", "", "stage id at which every job fails")
	devserverCmd.Flags().Bool("omit-job-id", false, "answer creation requests without a job id")
	devserverCmd.Flags().String("reject", "", "reject creation requests with this detail message")
	_ = viper.BindPFlag("devserver.addr", devserverCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("devserver.step_interval", devserverCmd.Flags().Lookup("step-interval"))
	_ = viper.BindPFlag("devserver.fail_step", devserverCmd.Flags().Lookup("fail-step"))
	_ = viper.BindPFlag("devserver.omit_job_id", devserverCmd.Flags().Lookup("omit-job-id"))
	_ = viper.BindPFlag("devserver.reject_detail", devserverCmd.Flags().Lookup("reject"))
}

func runDevserver(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		logger, err = logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
		if err != nil {
			return err
		}
		defer logger.Close()
	}

	srv := devserver.New(cfg.API.Prefix,
		devserver.WithLogger(logger),
		devserver.WithDefinitions(cfg.Definitions()),
		devserver.WithStepInterval(cfg.DevServer.StepInterval),
		devserver.WithFailStep(cfg.DevServer.FailStep),
		devserver.WithOmitJobID(cfg.DevServer.OmitJobID),
		devserver.WithRejectDetail(cfg.DevServer.RejectDetail),
	)

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving the knowledge fabric API on http://%s%s (Ctrl+C to stop)\n",
		cfg.DevServer.Addr, cfg.API.Prefix)
	return srv.Run(ctx, cfg.DevServer.Addr)
}
