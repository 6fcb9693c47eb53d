// Package orchestrator owns the lifecycle of a knowledge fabric run.
//
// A run submits the creation request, then animates the stages locally
// while the poller merges backend snapshots into the same step model. The
// first of the two to reach a terminal state decides the outcome, and
// exactly one of the completion or error callbacks fires per run unless
// the run is stopped first.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/fabricctl/internal/animate"
	"github.com/Iron-Ham/fabricctl/internal/api"
	"github.com/Iron-Ham/fabricctl/internal/clock"
	"github.com/Iron-Ham/fabricctl/internal/errors"
	"github.com/Iron-Ham/fabricctl/internal/event"
	"github.com/Iron-Ham/fabricctl/internal/logging"
	"github.com/Iron-Ham/fabricctl/internal/poller"
	"github.com/Iron-Ham/fabricctl/internal/step"
	"github.com/Iron-Ham/fabricctl/internal/telemetry"
)

// LocalJobPrefix marks job ids generated client-side when the backend
// returned none.
const LocalJobPrefix = "local-"

// Orchestrator runs one fabric creation at a time.
type Orchestrator struct {
	backend api.Backend
	opts    options
	bus     *event.Bus

	mu     sync.Mutex
	sess   *session
	active bool
}

// session is one run. phase and the fields after it are guarded by
// Orchestrator.mu.
type session struct {
	id        string
	ctx       context.Context
	cancel    context.CancelFunc
	model     *step.Model
	files     []string
	startedAt time.Time
	log       *logging.Logger
	wg        conc.WaitGroup
	// cbMu is held while the run's terminal callback executes.
	cbMu sync.Mutex

	phase    Phase
	job      api.JobHandle
	fabricID string
	err      error
	stopped  bool
	finished bool
}

// New creates an Orchestrator that submits to backend.
func New(backend api.Backend, opts ...Option) *Orchestrator {
	o := options{
		clock:          clock.Real(),
		logger:         logging.NopLogger(),
		defs:           step.DefaultDefinitions(),
		frameInterval:  animate.DefaultFrameInterval,
		pollInterval:   poller.DefaultInterval,
		cleanupOnError: true,
		cleanupRetries: poller.DefaultCleanupRetries,
		cleanupInitial: poller.DefaultCleanupInterval,
		graceDelay:     DefaultGraceDelay,
		sourceType:     api.DefaultSourceType,
		trainModel:     true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NopLogger()
	}
	if o.tracer == nil {
		o.tracer = telemetry.NoopTracer()
	}
	bus := o.bus
	if bus == nil {
		bus = event.NewBus(o.logger)
	}
	return &Orchestrator{backend: backend, opts: o, bus: bus}
}

// Bus returns the bus lifecycle events are published on.
func (o *Orchestrator) Bus() *event.Bus {
	return o.bus
}

// Start begins a run over fileRefs and returns immediately. It returns
// errors.ErrRunActive while another run is in flight and a validation error
// matching errors.ErrNoFiles when fileRefs is empty; neither touches the
// active run. Cancelling ctx tears the run down like Stop.
func (o *Orchestrator) Start(ctx context.Context, fileRefs []string) error {
	o.mu.Lock()
	if o.active {
		o.mu.Unlock()
		return errors.ErrRunActive
	}
	if len(fileRefs) == 0 {
		o.mu.Unlock()
		return fmt.Errorf("%w: %w", errors.ErrNoFiles,
			errors.NewValidationError("at least one file is required").WithField("files"))
	}

	runCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	s := &session{
		id:        id,
		ctx:       runCtx,
		cancel:    cancel,
		model:     step.NewModel(o.opts.defs),
		files:     append([]string(nil), fileRefs...),
		startedAt: o.opts.clock.Now(),
		log:       o.opts.logger.WithRun(id),
		phase:     PhaseSubmitting,
	}
	o.sess = s
	o.active = true
	o.mu.Unlock()

	s.log.Info("run started", "files", len(s.files))
	o.bus.Publish(event.NewRunStartedEvent(s.id, s.files))
	o.bus.Publish(event.NewPhaseChangedEvent(s.id, string(PhaseIdle), string(PhaseSubmitting)))

	s.wg.Go(func() {
		o.run(s)
	})
	return nil
}

// Stop tears down the active run: it cancels pending timers, frames and
// polls, waits for a callback already in progress and then for the run's
// goroutines. No callback fires for the run after Stop returns. Once the
// run has reached its outcome Stop only cancels a progress cleanup still in
// flight and does not wait, so it is safe to call from a callback.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	s := o.sess
	if s == nil {
		o.mu.Unlock()
		return
	}
	if !o.active {
		o.mu.Unlock()
		s.cancel()
		return
	}
	from := s.phase
	s.stopped = true
	s.phase = PhaseStopped
	o.active = false
	o.mu.Unlock()

	s.cancel()
	// Wait out a callback that is already running.
	s.cbMu.Lock()
	s.cbMu.Unlock()
	if r := s.wg.WaitAndRecover(); r != nil {
		s.log.Error("run goroutine panicked", "error", r.AsError().Error())
	}
	s.log.Info("run stopped", "phase", string(from))
	o.bus.Publish(event.NewPhaseChangedEvent(s.id, string(from), string(PhaseStopped)))
}

// Wait blocks until the goroutines of the most recent run have exited,
// including a progress cleanup still in flight after the outcome.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	s := o.sess
	o.mu.Unlock()
	if s == nil {
		return
	}
	if r := s.wg.WaitAndRecover(); r != nil {
		s.log.Error("run goroutine panicked", "error", r.AsError().Error())
	}
}

// State returns a snapshot of the current or most recent run.
func (o *Orchestrator) State() RunState {
	o.mu.Lock()
	s := o.sess
	if s == nil {
		o.mu.Unlock()
		return RunState{Phase: PhaseIdle}
	}
	st := RunState{
		RunID:     s.id,
		Phase:     s.phase,
		Active:    o.active && o.sess == s,
		Job:       s.job,
		Files:     append([]string(nil), s.files...),
		FabricID:  s.fabricID,
		Err:       s.err,
		StartedAt: s.startedAt,
	}
	o.mu.Unlock()

	st.Steps = s.model.Steps()
	st.Overall = s.model.Overall()
	st.Revision = s.model.Revision()
	if st.Err != nil {
		st.Message = errors.UserMessage(st.Err)
	}
	return st
}

func (o *Orchestrator) setPhase(s *session, to Phase) bool {
	o.mu.Lock()
	if s.stopped || s.finished {
		o.mu.Unlock()
		return false
	}
	from := s.phase
	s.phase = to
	o.mu.Unlock()

	if from != to {
		s.log.Debug("phase changed", "from", string(from), "to", string(to))
		o.bus.Publish(event.NewPhaseChangedEvent(s.id, string(from), string(to)))
	}
	return true
}

// run is the coordinator goroutine of a session.
func (o *Orchestrator) run(s *session) {
	defer o.abandon(s)

	op, err := telemetry.Start(s.ctx, o.opts.tracer, s.id, telemetry.PlanFor(o.opts.defs))
	if err != nil {
		s.log.Warn("telemetry disabled for run", "error", err.Error())
		op = nil
	}
	detach := op.Attach(o.bus)
	defer detach()

	job, log, err := o.submit(op, s)
	if err != nil {
		if s.ctx.Err() != nil {
			op.End(errors.ErrCanceled)
			return
		}
		s.model.ResetProcessing()
		op.End(err)
		o.finish(s, "", err)
		return
	}

	fabricID, err := o.drive(s, job, log)
	if s.ctx.Err() != nil {
		op.End(errors.ErrCanceled)
		return
	}
	if err != nil {
		o.failStages(s, err)
		op.End(err)
		o.finish(s, "", err)
		return
	}

	for i := 0; i < s.model.Len(); i++ {
		s.model.Complete(i)
	}
	s.model.Finish()
	op.End(nil)

	if !o.setPhase(s, PhaseFinalizing) {
		return
	}
	if err := clock.Sleep(s.ctx, o.opts.clock, o.opts.graceDelay); err != nil {
		return
	}
	o.finish(s, fabricID, nil)
}

// submit issues the creation request. A response without a job id falls
// back to a local id and degraded observability.
func (o *Orchestrator) submit(op *telemetry.Operation, s *session) (api.JobHandle, *logging.Logger, error) {
	parent := s.ctx
	if op != nil {
		parent = op.Context()
	}

	var job api.JobHandle
	_, _, err := op.Submit(parent, func(ctx context.Context) (string, bool, error) {
		h, err := o.backend.CreateJob(ctx, api.CreateJobRequest{
			Files:      s.files,
			SourceType: o.opts.sourceType,
			TrainModel: o.opts.trainModel,
		})
		if err != nil {
			return "", false, err
		}
		if h.ID == "" {
			h.ID = LocalJobPrefix + uuid.NewString()
			h.Local = true
			s.log.Warn("backend returned no job id, progress will not be polled", "job_id", h.ID)
		}
		job = h
		return h.ID, h.Local, nil
	})
	if err != nil {
		s.log.Error("fabric creation request failed", "error", err.Error())
		return api.JobHandle{}, nil, err
	}

	o.mu.Lock()
	s.job = job
	o.mu.Unlock()
	log := s.log.WithJob(job.ID)
	log.Info("job created", "local", job.Local)
	o.bus.Publish(event.NewJobCreatedEvent(s.id, job.ID, job.Local))
	return job, log, nil
}

// drive runs the local sequence and the poller side by side until one of
// them decides the outcome. It returns the fabric id on success.
func (o *Orchestrator) drive(s *session, job api.JobHandle, log *logging.Logger) (string, error) {
	if !o.setPhase(s, PhaseRunning) {
		return "", errors.ErrCanceled
	}

	work, stopWork := context.WithCancel(s.ctx)
	var wg conc.WaitGroup
	defer func() {
		stopWork()
		if r := wg.WaitAndRecover(); r != nil {
			log.Error("run worker panicked", "error", r.AsError().Error())
		}
	}()

	anim := animate.New(
		animate.WithClock(o.opts.clock),
		animate.WithFrameInterval(o.opts.frameInterval),
		animate.WithLogger(log),
		animate.WithBus(o.bus),
	)
	durations := make([]time.Duration, len(o.opts.defs))
	for i, d := range o.opts.defs {
		durations[i] = d.Duration
	}
	animDone := make(chan error, 1)
	wg.Go(func() {
		animDone <- catch(func() error {
			return anim.Sequence(work, s.model, durations)
		})
	})

	polling := !job.Local
	var (
		p        *poller.Poller
		pollDone chan poller.Outcome
	)
	if polling {
		p = poller.New(o.backend,
			poller.WithClock(o.opts.clock),
			poller.WithInterval(o.opts.pollInterval),
			poller.WithMaxDuration(o.opts.pollMaxDuration),
			poller.WithCleanupOnError(o.opts.cleanupOnError),
			poller.WithCleanupRetries(o.opts.cleanupRetries, o.opts.cleanupInitial),
			poller.WithLogger(log),
			poller.WithBus(o.bus),
		)
		pollDone = make(chan poller.Outcome, 1)
		wg.Go(func() {
			var out poller.Outcome
			if err := catch(func() error {
				out = p.Run(work, job.ID, s.model)
				return nil
			}); err != nil {
				out = poller.Outcome{State: poller.StateTerminalError, Err: err}
			}
			pollDone <- out
		})
	}
	localCounts := !polling || !o.opts.waitForBackend

	for {
		select {
		case <-s.ctx.Done():
			return "", s.ctx.Err()

		case err := <-animDone:
			animDone = nil
			switch {
			case err == nil:
				if localCounts {
					log.Info("local sequence finished")
					return job.ID, nil
				}
				log.Debug("local sequence finished, waiting for backend")
			case errors.Is(err, animate.ErrStepFailed):
				log.Debug("local sequence stopped at a failed stage")
				if !polling {
					return "", errors.NewTerminalBackendError(job.ID, "")
				}
			case s.ctx.Err() != nil:
			default:
				return "", err
			}

		case out := <-pollDone:
			pollDone = nil
			if out.Cleanup {
				o.release(s, p, job.ID)
			}
			switch out.State {
			case poller.StateTerminalSuccess:
				return out.FabricID, nil
			case poller.StateTerminalError, poller.StateTimedOut:
				return "", out.Err
			}
		}
	}
}

// release frees the backend's progress state for jobID off the run's
// critical path. It runs on the session context, so Stop cancels it.
func (o *Orchestrator) release(s *session, p *poller.Poller, jobID string) {
	s.wg.Go(func() {
		if err := catch(func() error {
			return p.Cleanup(s.ctx, jobID)
		}); err != nil {
			s.log.Debug("progress cleanup ended", "job_id", jobID, "error", err.Error())
		}
	})
}

// failStages reflects a terminal failure in the model so no stage is left
// processing.
func (o *Orchestrator) failStages(s *session, err error) {
	msg := errors.UserMessage(err)
	for _, st := range s.model.Steps() {
		if st.Status == step.StatusError {
			s.model.ResetProcessing()
			return
		}
	}
	if i := s.model.Current(); i >= 0 {
		s.model.Fail(i, msg)
	}
	s.model.ResetProcessing()
}

// finish records the outcome and fires the matching callback, unless the
// run was stopped first.
func (o *Orchestrator) finish(s *session, fabricID string, err error) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()

	o.mu.Lock()
	if s.stopped || s.finished || s.ctx.Err() != nil {
		o.mu.Unlock()
		return
	}
	s.finished = true
	from := s.phase
	if err != nil {
		s.phase = PhaseFailed
		s.err = err
	} else {
		s.phase = PhaseCompleted
		s.fabricID = fabricID
	}
	to := s.phase
	if o.sess == s {
		o.active = false
	}
	o.mu.Unlock()

	o.bus.Publish(event.NewPhaseChangedEvent(s.id, string(from), string(to)))

	if err != nil {
		msg := errors.UserMessage(err)
		s.log.Error("run failed", "error", err.Error(), "severity", errors.GetSeverity(err).String())
		o.bus.Publish(event.NewRunFailedEvent(s.id, msg))
		if o.opts.onError != nil {
			o.opts.onError(msg)
		}
		return
	}

	s.log.Info("run completed", "fabric_id", fabricID)
	o.bus.Publish(event.NewRunCompletedEvent(s.id, fabricID))
	if o.opts.onComplete != nil {
		o.opts.onComplete(fabricID)
	}
}

// abandon releases a session whose context ended without Stop or an
// outcome, so a caller cancelling the Start context frees the orchestrator.
func (o *Orchestrator) abandon(s *session) {
	o.mu.Lock()
	if s.stopped || s.finished {
		o.mu.Unlock()
		return
	}
	from := s.phase
	s.stopped = true
	s.phase = PhaseStopped
	if o.sess == s {
		o.active = false
	}
	o.mu.Unlock()

	s.cancel()
	s.log.Info("run abandoned", "phase", string(from))
	o.bus.Publish(event.NewPhaseChangedEvent(s.id, string(from), string(PhaseStopped)))
}

// catch runs fn and turns a panic into an error.
func catch(fn func() error) (err error) {
	var pc panics.Catcher
	pc.Try(func() {
		err = fn()
	})
	if r := pc.Recovered(); r != nil {
		return r.AsError()
	}
	return err
}

