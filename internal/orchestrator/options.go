package orchestrator

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Iron-Ham/fabricctl/internal/clock"
	"github.com/Iron-Ham/fabricctl/internal/event"
	"github.com/Iron-Ham/fabricctl/internal/logging"
	"github.com/Iron-Ham/fabricctl/internal/step"
)

// DefaultGraceDelay is the pause between a successful run reaching 100% and
// the completion callback.
const DefaultGraceDelay = 2 * time.Second

type options struct {
	clock           clock.Clock
	logger          *logging.Logger
	bus             *event.Bus
	tracer          trace.Tracer
	defs            []step.Definition
	frameInterval   time.Duration
	pollInterval    time.Duration
	pollMaxDuration time.Duration
	cleanupOnError  bool
	cleanupRetries  int
	cleanupInitial  time.Duration
	graceDelay      time.Duration
	waitForBackend  bool
	sourceType      string
	trainModel      bool
	onComplete      func(fabricID string)
	onError         func(message string)
}

// Option configures an Orchestrator.
type Option func(*options)

// WithClock sets the time source shared by the animator, the poller and the
// grace delay.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithBus sets the event bus lifecycle events are published on.
func WithBus(b *event.Bus) Option {
	return func(o *options) {
		o.bus = b
	}
}

// WithTracer records every run as a span tree.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithDefinitions replaces the default stages.
func WithDefinitions(defs []step.Definition) Option {
	return func(o *options) {
		if len(defs) > 0 {
			o.defs = defs
		}
	}
}

// WithFrameInterval sets the animation frame interval.
func WithFrameInterval(d time.Duration) Option {
	return func(o *options) {
		o.frameInterval = d
	}
}

// WithPollInterval sets the progress poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.pollInterval = d
	}
}

// WithPollMaxDuration bounds how long a run waits for a terminal snapshot.
// Zero waits indefinitely.
func WithPollMaxDuration(d time.Duration) Option {
	return func(o *options) {
		o.pollMaxDuration = d
	}
}

// WithCleanupOnError releases server-side progress state after a backend
// failure as well as after success.
func WithCleanupOnError(enabled bool) Option {
	return func(o *options) {
		o.cleanupOnError = enabled
	}
}

// WithCleanupRetries sets the cleanup retry budget and initial backoff.
func WithCleanupRetries(retries int, initial time.Duration) Option {
	return func(o *options) {
		o.cleanupRetries = retries
		o.cleanupInitial = initial
	}
}

// WithGraceDelay sets the pause before the completion callback.
func WithGraceDelay(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.graceDelay = d
		}
	}
}

// WithWaitForBackend makes a polled run finalize only on a terminal
// snapshot; the end of the local animation no longer counts as success.
func WithWaitForBackend(enabled bool) Option {
	return func(o *options) {
		o.waitForBackend = enabled
	}
}

// WithSourceType sets the source_type sent with the creation request.
func WithSourceType(s string) Option {
	return func(o *options) {
		o.sourceType = s
	}
}

// WithTrainModel sets the train_model flag of the creation request.
func WithTrainModel(enabled bool) Option {
	return func(o *options) {
		o.trainModel = enabled
	}
}

// WithOnComplete sets the success callback.
func WithOnComplete(fn func(fabricID string)) Option {
	return func(o *options) {
		o.onComplete = fn
	}
}

// WithOnError sets the failure callback.
func WithOnError(fn func(message string)) Option {
	return func(o *options) {
		o.onError = fn
	}
}
