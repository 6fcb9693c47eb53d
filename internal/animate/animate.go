// Package animate drives the local progress animation of a fabric run.
//
// The animator sweeps each stage from 0 to 100 over a fixed wall-clock
// duration, one frame at a time, independent of the backend. Writes go
// through the step model's local path, so a stage the backend has already
// finished is never pulled back.
package animate

import (
	"context"
	"time"

	"github.com/Iron-Ham/fabricctl/internal/clock"
	"github.com/Iron-Ham/fabricctl/internal/errors"
	"github.com/Iron-Ham/fabricctl/internal/event"
	"github.com/Iron-Ham/fabricctl/internal/logging"
	"github.com/Iron-Ham/fabricctl/internal/step"
)

// DefaultFrameInterval approximates 60 frames per second.
const DefaultFrameInterval = 16 * time.Millisecond

// ErrStepFailed is returned by Sequence when a stage is in the error state
// and the local sweep cannot continue past it.
var ErrStepFailed = errors.New("stage failed")

// Animator advances stage progress frame by frame.
type Animator struct {
	clock  clock.Clock
	frame  time.Duration
	logger *logging.Logger
	bus    *event.Bus
}

// Option configures an Animator.
type Option func(*Animator)

// WithClock sets the time source. Defaults to the real clock.
func WithClock(c clock.Clock) Option {
	return func(a *Animator) {
		a.clock = c
	}
}

// WithFrameInterval sets the wait between frames.
func WithFrameInterval(d time.Duration) Option {
	return func(a *Animator) {
		if d > 0 {
			a.frame = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *Animator) {
		a.logger = l
	}
}

// WithBus publishes step.started and step.completed events to b.
func WithBus(b *event.Bus) Option {
	return func(a *Animator) {
		a.bus = b
	}
}

// New creates an Animator.
func New(opts ...Option) *Animator {
	a := &Animator{
		clock:  clock.Real(),
		frame:  DefaultFrameInterval,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Animate raises the progress of the stage stepID toward target over
// duration. Each frame waits on the clock and then writes
// min(elapsed/duration*target, target). It returns nil once target is
// reached or the stage stops processing, and ctx.Err() if ctx ends first;
// no write happens after cancellation.
func (a *Animator) Animate(ctx context.Context, m *step.Model, stepID string, target float64, duration time.Duration) error {
	i, ok := m.IndexOf(stepID)
	if !ok {
		return errors.NewValidationError("unknown stage").WithField("stepID").WithValue(stepID)
	}
	return a.animate(ctx, m, i, target, duration)
}

func (a *Animator) animate(ctx context.Context, m *step.Model, i int, target float64, duration time.Duration) error {
	if target > 100 {
		target = 100
	}
	if duration <= 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.Advance(i, target)
		return nil
	}

	start := a.clock.Now()
	for {
		if err := clock.Sleep(ctx, a.clock, a.frame); err != nil {
			return err
		}

		elapsed := a.clock.Now().Sub(start)
		p := float64(elapsed) / float64(duration) * target
		if p > target {
			p = target
		}
		if !m.Advance(i, p) {
			return nil
		}
		if p >= target {
			return nil
		}
	}
}

// Sequence runs begin, animate and complete for every stage in order.
// durations is aligned with the model; a missing entry completes its stage
// immediately. Stages the backend already finished are skipped.
func (a *Animator) Sequence(ctx context.Context, m *step.Model, durations []time.Duration) error {
	for i := 0; i < m.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, _ := m.Step(i)
		log := a.logger.WithStep(s.ID)

		if !m.Begin(i) {
			if cur, _ := m.Step(i); cur.Status == step.StatusError {
				return ErrStepFailed
			}
			log.Debug("stage already finished remotely, skipping")
			a.publish(event.NewStepCompletedEvent(s.ID, i, true))
			continue
		}

		log.Debug("stage started")
		a.publish(event.NewStepStartedEvent(s.ID, i))

		var d time.Duration
		if i < len(durations) {
			d = durations[i]
		}
		if err := a.animate(ctx, m, i, 100, d); err != nil {
			return err
		}

		if !m.Complete(i) {
			return ErrStepFailed
		}
		log.Debug("stage completed")
		a.publish(event.NewStepCompletedEvent(s.ID, i, false))
	}
	return nil
}

func (a *Animator) publish(e event.Event) {
	if a.bus != nil {
		a.bus.Publish(e)
	}
}
