// Package poller fetches backend progress snapshots on a fixed interval and
// merges them into a run's step model until the job reaches a terminal
// state.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Iron-Ham/fabricctl/internal/api"
	"github.com/Iron-Ham/fabricctl/internal/clock"
	"github.com/Iron-Ham/fabricctl/internal/errors"
	"github.com/Iron-Ham/fabricctl/internal/event"
	"github.com/Iron-Ham/fabricctl/internal/logging"
	"github.com/Iron-Ham/fabricctl/internal/step"
)

// Defaults for polling and cleanup.
const (
	DefaultInterval        = time.Second
	DefaultCleanupRetries  = 3
	DefaultCleanupInterval = 250 * time.Millisecond
)

// State is the poller's lifecycle state.
type State string

const (
	StateIdle            State = "idle"
	StatePolling         State = "polling"
	StateTerminalSuccess State = "terminal_success"
	StateTerminalError   State = "terminal_error"
	StateTimedOut        State = "timed_out"
	StateCancelled       State = "cancelled"
)

// IsTerminal reports whether no further transition can happen.
func (s State) IsTerminal() bool {
	switch s {
	case StateTerminalSuccess, StateTerminalError, StateTimedOut, StateCancelled:
		return true
	default:
		return false
	}
}

// Outcome is the result of Run.
type Outcome struct {
	State State
	// FabricID is set on terminal success.
	FabricID string
	// Err is a *errors.TerminalBackendError on terminal error, a
	// *errors.TimeoutError on timeout and the context error on cancellation.
	Err error
	// Polls counts successful fetches; Failures counts transient failures.
	Polls    int
	Failures int
	// Cleanup is set when the job's progress state should be released with
	// Poller.Cleanup. Run never releases it itself.
	Cleanup bool
}

// Poller polls one job. A Poller runs at most once.
type Poller struct {
	backend         api.Backend
	clock           clock.Clock
	interval        time.Duration
	maxDuration     time.Duration
	cleanupOnError  bool
	cleanupRetries  int
	cleanupInterval time.Duration
	logger          *logging.Logger
	bus             *event.Bus

	mu      sync.Mutex
	state   State
	outcome Outcome
}

// Option configures a Poller.
type Option func(*Poller)

// WithClock sets the time source for ticks, the ceiling and cleanup retries.
func WithClock(c clock.Clock) Option {
	return func(p *Poller) {
		p.clock = c
	}
}

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxDuration ends polling with a timeout outcome once d elapses without
// a terminal snapshot. Zero disables the ceiling.
func WithMaxDuration(d time.Duration) Option {
	return func(p *Poller) {
		p.maxDuration = d
	}
}

// WithCleanupOnError controls whether progress state is also released after
// a terminal error.
func WithCleanupOnError(enabled bool) Option {
	return func(p *Poller) {
		p.cleanupOnError = enabled
	}
}

// WithCleanupRetries sets how many times a failed cleanup is retried and
// the initial backoff between attempts.
func WithCleanupRetries(retries int, initial time.Duration) Option {
	return func(p *Poller) {
		if retries >= 0 {
			p.cleanupRetries = retries
		}
		if initial > 0 {
			p.cleanupInterval = initial
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Poller) {
		p.logger = l
	}
}

// WithBus publishes a job.polled event after every successful fetch.
func WithBus(b *event.Bus) Option {
	return func(p *Poller) {
		p.bus = b
	}
}

// New creates a Poller against backend.
func New(backend api.Backend, opts ...Option) *Poller {
	p := &Poller{
		backend:         backend,
		clock:           clock.Real(),
		interval:        DefaultInterval,
		cleanupOnError:  true,
		cleanupRetries:  DefaultCleanupRetries,
		cleanupInterval: DefaultCleanupInterval,
		logger:          logging.NopLogger(),
		state:           StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Run polls jobID every interval, merging each snapshot into m, until the
// job completes with a fabric id, reports an error, the ceiling elapses, or
// ctx ends. Fetches never overlap: ticks that fire while a fetch is in
// flight collapse into at most one pending tick and the rest are dropped.
// A fetch still in flight when the ceiling elapses or ctx ends is
// abandoned. Calling Run again returns the first run's outcome.
func (p *Poller) Run(ctx context.Context, jobID string, m *step.Model) Outcome {
	p.mu.Lock()
	if p.state != StateIdle {
		out := p.outcome
		p.mu.Unlock()
		return out
	}
	p.state = StatePolling
	p.mu.Unlock()

	log := p.logger.WithJob(jobID)
	log.Debug("polling started", "interval", p.interval.String(), "max_duration", p.maxDuration.String())

	out := p.loop(ctx, jobID, m, log)

	p.mu.Lock()
	p.state = out.State
	p.outcome = out
	p.mu.Unlock()

	log.Info("polling finished",
		"state", string(out.State),
		"polls", out.Polls,
		"failures", out.Failures)
	return out
}

func (p *Poller) loop(ctx context.Context, jobID string, m *step.Model, log *logging.Logger) Outcome {
	var out Outcome

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	var ceiling <-chan time.Time
	if p.maxDuration > 0 {
		t := p.clock.NewTimer(p.maxDuration)
		defer t.Stop()
		ceiling = t.C()
	}

	for {
		select {
		case <-ctx.Done():
			return p.cancelled(ctx, out)

		case <-ceiling:
			return p.timedOut(out, log)

		case <-ticker.C():
			fetched := p.fetch(ctx, jobID)
			var res fetchResult
			select {
			case res = <-fetched.done:
				fetched.cancel()
			case <-ceiling:
				fetched.cancel()
				return p.timedOut(out, log)
			case <-ctx.Done():
				fetched.cancel()
				return p.cancelled(ctx, out)
			}

			if res.err != nil {
				out.Failures++
				log.Warn("progress fetch failed", "error", res.err.Error(), "failures", out.Failures)
				continue
			}
			out.Polls++

			p.merge(res.snap, m, log)
			if p.bus != nil {
				p.bus.Publish(event.NewJobPolledEvent(jobID, res.snap.Status, m.Overall()))
			}

			if done, ok := p.terminal(jobID, res.snap); ok {
				out.State = done.State
				out.FabricID = done.FabricID
				out.Err = done.Err
				out.Cleanup = out.State == StateTerminalSuccess || p.cleanupOnError
				return out
			}
		}
	}
}

type fetchResult struct {
	snap api.ProgressSnapshot
	err  error
}

type inflight struct {
	done   <-chan fetchResult
	cancel context.CancelFunc
}

// fetch starts one progress request. The result channel is buffered so an
// abandoned fetch never blocks.
func (p *Poller) fetch(ctx context.Context, jobID string) inflight {
	fctx, cancel := context.WithCancel(ctx)
	done := make(chan fetchResult, 1)
	go func() {
		snap, err := p.backend.GetProgress(fctx, jobID)
		done <- fetchResult{snap: snap, err: err}
	}()
	return inflight{done: done, cancel: cancel}
}

func (p *Poller) cancelled(ctx context.Context, out Outcome) Outcome {
	out.State = StateCancelled
	out.Err = ctx.Err()
	return out
}

func (p *Poller) timedOut(out Outcome, log *logging.Logger) Outcome {
	log.Warn("polling ceiling reached", "max_duration", p.maxDuration.String())
	out.State = StateTimedOut
	out.Err = errors.NewTimeoutError("waiting for knowledge fabric", p.maxDuration).WithRetryable(false)
	return out
}

// merge applies a snapshot to the model. Remote values overwrite local ones.
func (p *Poller) merge(snap api.ProgressSnapshot, m *step.Model, log *logging.Logger) {
	updates := make([]step.Update, len(snap.Steps))
	for i, s := range snap.Steps {
		updates[i] = step.Update{
			ID:       s.ID,
			Status:   s.Status,
			Progress: s.Progress,
			Error:    s.Error,
		}
	}
	applied := m.ApplyRemote(updates)
	if applied < len(updates) {
		log.Debug("ignored unmatched remote steps", "received", len(updates), "applied", applied)
	}
	m.SetOverall(snap.OverallProgress)
}

// terminal decides whether snap ends polling. A failed stage ends the job
// even when the top-level status still reads processing.
func (p *Poller) terminal(jobID string, snap api.ProgressSnapshot) (Outcome, bool) {
	status, _ := step.ParseStatus(snap.Status)

	failed, failedMsg, stepFailed := "", "", false
	for _, s := range snap.Steps {
		if st, _ := step.ParseStatus(s.Status); st == step.StatusError {
			failed, failedMsg, stepFailed = s.ID, s.Error, true
			break
		}
	}

	if snap.Error != "" || status == step.StatusError || stepFailed {
		msg := snap.Error
		if msg == "" {
			msg = failedMsg
		}
		err := errors.NewTerminalBackendError(jobID, msg)
		if failed != "" {
			err = err.WithStep(failed)
		}
		return Outcome{State: StateTerminalError, Err: err}, true
	}

	if status == step.StatusCompleted {
		if snap.FabricID == "" {
			p.logger.WithJob(jobID).Debug("job reported completed without fabric id, polling on")
			return Outcome{}, false
		}
		return Outcome{State: StateTerminalSuccess, FabricID: snap.FabricID}, true
	}
	return Outcome{}, false
}

// Cleanup releases the server-side progress state of jobID. Retryable
// failures are retried with exponential backoff; the final failure is
// logged and returned as a *errors.CleanupError. It stops as soon as ctx
// ends.
func (p *Poller) Cleanup(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log := p.logger.WithJob(jobID)

	attempts := 0
	op := func() error {
		attempts++
		err := p.backend.DeleteProgress(ctx, jobID)
		if err == nil || errors.IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(p.cleanupInterval),
		backoff.WithMaxInterval(4*p.cleanupInterval),
		backoff.WithMaxElapsedTime(0),
		backoff.WithRandomizationFactor(0),
	)
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.cleanupRetries)), ctx)

	notify := func(err error, next time.Duration) {
		log.Debug("progress cleanup failed, retrying", "error", err.Error(), "next", next.String())
	}

	if err := backoff.RetryNotifyWithTimer(op, policy, notify, &backoffTimer{clock: p.clock}); err != nil {
		cerr := errors.NewCleanupError(jobID, attempts, err)
		log.Warn("progress cleanup failed", "error", cerr.Error(), "severity", errors.GetSeverity(cerr).String())
		return cerr
	}
	log.Debug("progress state released", "attempts", attempts)
	return nil
}

// backoffTimer adapts clock.Clock to backoff.Timer.
type backoffTimer struct {
	clock clock.Clock
	timer clock.Timer
}

func (t *backoffTimer) Start(d time.Duration) {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = t.clock.NewTimer(d)
}

func (t *backoffTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *backoffTimer) C() <-chan time.Time {
	return t.timer.C()
}
