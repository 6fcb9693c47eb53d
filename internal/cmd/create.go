package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/term"

	"github.com/Iron-Ham/fabricctl/internal/api"
	"github.com/Iron-Ham/fabricctl/internal/config"
	"github.com/Iron-Ham/fabricctl/internal/errors"
	"github.com/Iron-Ham/fabricctl/internal/fileref"
	"github.com/Iron-Ham/fabricctl/internal/logging"
	"github.com/Iron-Ham/fabricctl/internal/orchestrator"
	"github.com/Iron-Ham/fabricctl/internal/telemetry"
	"github.com/Iron-Ham/fabricctl/internal/tui"
)

var createCmd = &cobra.Command{
	Use:   "create <file>...",
	Short: "Create a knowledge fabric from uploaded documents",
	Long: `Create a knowledge fabric from documents already uploaded to the backend.

Each argument is a file reference as returned by the upload step. References
whose names do not match files.patterns are skipped with a warning.

On a terminal the run is shown as a live progress view; elsewhere one line is
printed per stage transition. Press q or Ctrl+C to cancel.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().String("base-url", "", "backend origin (overrides api.base_url)")
	createCmd.Flags().Bool("train-model", true, "run the model training stage (overrides api.train_model)")
	createCmd.Flags().Bool("wait-for-backend", false, "finish only when the backend reports a terminal state")
	createCmd.Flags().Duration("max-duration", 0, "give up waiting for the backend after this long (0 waits forever)")
	createCmd.Flags().String("tui", "", "progress view: auto, always or never (overrides tui.mode)")
	_ = viper.BindPFlag("api.base_url", createCmd.Flags().Lookup("base-url"))
	_ = viper.BindPFlag("api.train_model", createCmd.Flags().Lookup("train-model"))
	_ = viper.BindPFlag("run.wait_for_backend", createCmd.Flags().Lookup("wait-for-backend"))
	_ = viper.BindPFlag("poll.max_duration", createCmd.Flags().Lookup("max-duration"))
	_ = viper.BindPFlag("tui.mode", createCmd.Flags().Lookup("tui"))
}

func runCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	refs, err := fileref.Filter(args, cfg.Files.Patterns)
	if err != nil {
		return err
	}
	for _, r := range refs.Rejected {
		fmt.Fprintf(stderr, "skipping %q: %s\n", r.Ref, r.Reason)
	}
	if len(refs.Accepted) == 0 {
		return errors.NewValidationError("no usable file references").WithField("files").WithValue(args)
	}

	interactive := useTUI(cfg.TUI.Mode, stdout)

	logger, err := newRunLogger(cfg, interactive, stderr)
	if err != nil {
		return err
	}
	defer logger.Close()

	client, err := api.NewClient(cfg.API.BaseURL, cfg.API.Prefix,
		api.WithRequestTimeout(cfg.API.RequestTimeout),
		api.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	var tracer trace.Tracer = telemetry.NoopTracer()
	if !interactive {
		lines := tui.NewLineOutput(stderr)
		defer lines.Close()
		tracer = lines.Tracer()
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{}, 1)
	notify := func() {
		select {
		case done <- struct{}{}:
		default:
		}
	}
	orch := orchestrator.New(client, orchestratorOptions(cfg, logger, tracer,
		orchestrator.WithOnComplete(func(string) { notify() }),
		orchestrator.WithOnError(func(string) { notify() }),
	)...)
	defer orch.Stop()

	if err := orch.Start(ctx, refs.Accepted); err != nil {
		return err
	}

	if interactive {
		in := cmd.InOrStdin()
		if _, err := tui.Run(ctx, orch, cfg.TUI.RefreshInterval, in, stdout); err != nil {
			logger.Warn("progress view exited", "error", err.Error())
		}
	} else {
		select {
		case <-done:
		case <-ctx.Done():
			orch.Stop()
		}
		fmt.Fprintln(stdout, tui.Summary(orch.State()))
	}

	return report(stdout, orch.State())
}

// report prints the outcome of st and returns the error the command exits
// with.
func report(w io.Writer, st orchestrator.RunState) error {
	switch st.Phase {
	case orchestrator.PhaseCompleted:
		fmt.Fprintf(w, "Knowledge fabric ready: %s\n", st.FabricID)
		if st.Degraded() {
			fmt.Fprintln(w, "Note: the backend returned no job id; progress was shown locally only.")
		}
		return nil
	case orchestrator.PhaseFailed:
		return fmt.Errorf("knowledge fabric creation failed: %s", st.Message)
	default:
		return errors.ErrCanceled
	}
}

// orchestratorOptions maps the configuration onto orchestrator options.
func orchestratorOptions(cfg *config.Config, logger *logging.Logger, tracer trace.Tracer, extra ...orchestrator.Option) []orchestrator.Option {
	opts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithTracer(tracer),
		orchestrator.WithDefinitions(cfg.Definitions()),
		orchestrator.WithFrameInterval(cfg.Animation.FrameInterval),
		orchestrator.WithPollInterval(cfg.Poll.Interval),
		orchestrator.WithPollMaxDuration(cfg.Poll.MaxDuration),
		orchestrator.WithCleanupOnError(cfg.Poll.CleanupOnError),
		orchestrator.WithCleanupRetries(cfg.Poll.CleanupRetries, cfg.Poll.CleanupBackoff),
		orchestrator.WithGraceDelay(cfg.Run.GraceDelay),
		orchestrator.WithWaitForBackend(cfg.Run.WaitForBackend),
		orchestrator.WithSourceType(cfg.API.SourceType),
		orchestrator.WithTrainModel(cfg.API.TrainModel),
	}
	return append(opts, extra...)
}

// newRunLogger picks the log destination. The progress view owns the
// terminal, so without a log directory an interactive run logs nothing.
func newRunLogger(cfg *config.Config, interactive bool, stderr io.Writer) (*logging.Logger, error) {
	switch {
	case !cfg.Logging.Enabled:
		return logging.NopLogger(), nil
	case cfg.Logging.Dir != "":
		return logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	case interactive:
		return logging.NopLogger(), nil
	default:
		return logging.NewWriterLogger(stderr, cfg.Logging.Level), nil
	}
}

// useTUI resolves tui.mode against the output stream.
func useTUI(mode string, out io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// contextOrBackground guards commands run without a context, as in tests
// that call RunE directly.
func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
