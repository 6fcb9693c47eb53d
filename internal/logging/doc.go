// Package logging provides structured logging for fabricctl runs.
//
// It wraps log/slog with a JSON handler. Child loggers carry persistent
// attributes so that every line written during a run can be filtered by
// run, job or stage:
//
//	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	runLog := logger.WithRun(runID)
//	runLog.WithJob(jobID).Info("job created", "files", len(files))
//
// When the terminal UI owns the screen, logs go to the log file or are
// discarded with [NopLogger]; they are never written to stdout.
//
// All types in this package are safe for concurrent use.
package logging
