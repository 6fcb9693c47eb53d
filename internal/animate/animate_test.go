package animate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Iron-Ham/fabricctl/internal/clock"
	fabricerrors "github.com/Iron-Ham/fabricctl/internal/errors"
	"github.com/Iron-Ham/fabricctl/internal/event"
	"github.com/Iron-Ham/fabricctl/internal/step"
)

const frame = 10 * time.Millisecond

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testDefs() []step.Definition {
	return []step.Definition{
		{ID: "a", Title: "A"},
		{ID: "b", Title: "B"},
		{ID: "c", Title: "C"},
	}
}

// drive advances the fake clock one frame at a time until done yields.
// onFrame runs after every advance.
func drive(t *testing.T, f *clock.Fake, done <-chan error, onFrame func()) error {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		select {
		case err := <-done:
			return err
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("animation did not finish")
		}
		if f.Waiters() == 0 {
			time.Sleep(50 * time.Microsecond)
			continue
		}
		f.Advance(frame)
		if onFrame != nil {
			onFrame()
		}
	}
}

func newTestAnimator(t *testing.T, f *clock.Fake, opts ...Option) *Animator {
	t.Helper()
	return New(append([]Option{WithClock(f), WithFrameInterval(frame)}, opts...)...)
}

func TestAnimate_ReachesTargetMonotonically(t *testing.T) {
	f := clock.NewFake(epoch)
	a := newTestAnimator(t, f)
	m := step.NewModel(testDefs())
	m.Begin(0)

	done := make(chan error, 1)
	go func() {
		done <- a.Animate(context.Background(), m, "a", 100, 100*time.Millisecond)
	}()

	var last float64
	frames := 0
	err := drive(t, f, done, func() {
		frames++
		s, _ := m.Step(0)
		if s.Progress < last {
			t.Errorf("progress decreased from %v to %v", last, s.Progress)
		}
		last = s.Progress
	})
	if err != nil {
		t.Fatalf("Animate() error = %v", err)
	}

	s, _ := m.Step(0)
	if s.Progress != 100 {
		t.Errorf("final progress = %v, want 100", s.Progress)
	}
	if s.Status != step.StatusProcessing {
		t.Errorf("Animate must not complete the stage, status = %q", s.Status)
	}
	if frames != 10 {
		t.Errorf("frames = %d, want 10", frames)
	}
}

func TestAnimate_PartialTarget(t *testing.T) {
	f := clock.NewFake(epoch)
	a := newTestAnimator(t, f)
	m := step.NewModel(testDefs())
	m.Begin(0)

	done := make(chan error, 1)
	go func() {
		done <- a.Animate(context.Background(), m, "a", 40, 50*time.Millisecond)
	}()
	if err := drive(t, f, done, nil); err != nil {
		t.Fatalf("Animate() error = %v", err)
	}

	s, _ := m.Step(0)
	if s.Progress != 40 {
		t.Errorf("progress = %v, want 40", s.Progress)
	}
}

func TestAnimate_CancelStopsWrites(t *testing.T) {
	f := clock.NewFake(epoch)
	a := newTestAnimator(t, f)
	m := step.NewModel(testDefs())
	m.Begin(0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.Animate(ctx, m, "a", 100, time.Second)
	}()

	f.BlockUntil(1)
	f.Advance(frame)
	f.BlockUntil(1)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Animate() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Animate did not observe cancellation")
	}

	before, _ := m.Step(0)
	f.Advance(time.Second)
	after, _ := m.Step(0)
	if after.Progress != before.Progress {
		t.Errorf("progress changed after cancel: %v -> %v", before.Progress, after.Progress)
	}
}

func TestAnimate_StopsWhenRemoteCompletes(t *testing.T) {
	f := clock.NewFake(epoch)
	a := newTestAnimator(t, f)
	m := step.NewModel(testDefs())
	m.Begin(0)

	done := make(chan error, 1)
	go func() {
		done <- a.Animate(context.Background(), m, "a", 100, time.Hour)
	}()

	f.BlockUntil(1)
	m.ApplyRemote([]step.Update{{ID: "a", Status: "completed", Progress: 100}})

	if err := drive(t, f, done, nil); err != nil {
		t.Fatalf("Animate() error = %v", err)
	}
	s, _ := m.Step(0)
	if s.Status != step.StatusCompleted || s.Progress != 100 {
		t.Errorf("step = %+v, want remote completion preserved", s)
	}
}

func TestAnimate_ZeroDuration(t *testing.T) {
	a := New()
	m := step.NewModel(testDefs())
	m.Begin(1)

	if err := a.Animate(context.Background(), m, "b", 100, 0); err != nil {
		t.Fatalf("Animate() error = %v", err)
	}
	s, _ := m.Step(1)
	if s.Progress != 100 {
		t.Errorf("progress = %v, want 100", s.Progress)
	}
}

func TestAnimate_UnknownStage(t *testing.T) {
	a := New()
	m := step.NewModel(testDefs())

	err := a.Animate(context.Background(), m, "missing", 100, time.Second)
	if !fabricerrors.Is(err, fabricerrors.ErrInvalidInput) {
		t.Errorf("Animate() error = %v, want validation error", err)
	}
}

func TestSequence_CompletesAllStages(t *testing.T) {
	f := clock.NewFake(epoch)
	bus := event.NewBus(nil)
	var events []string
	bus.SubscribeAll(func(e event.Event) {
		switch ev := e.(type) {
		case event.StepStartedEvent:
			events = append(events, "start:"+ev.StepID)
		case event.StepCompletedEvent:
			events = append(events, "done:"+ev.StepID)
		}
	})
	a := newTestAnimator(t, f, WithBus(bus))
	m := step.NewModel(testDefs())

	done := make(chan error, 1)
	go func() {
		done <- a.Sequence(context.Background(), m, []time.Duration{
			30 * time.Millisecond, 20 * time.Millisecond, 10 * time.Millisecond,
		})
	}()
	if err := drive(t, f, done, func() {
		if n := countProcessing(m); n > 1 {
			t.Errorf("%d stages processing at once", n)
		}
	}); err != nil {
		t.Fatalf("Sequence() error = %v", err)
	}

	for i, s := range m.Steps() {
		if s.Status != step.StatusCompleted || s.Progress != 100 {
			t.Errorf("step %d = %+v, want completed at 100", i, s)
		}
	}
	if m.Overall() != 100 {
		t.Errorf("Overall() = %v, want 100", m.Overall())
	}

	want := []string{"start:a", "done:a", "start:b", "done:b", "start:c", "done:c"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, events[i], want[i])
		}
	}
}

func TestSequence_SkipsRemotelyCompletedStage(t *testing.T) {
	bus := event.NewBus(nil)
	var skipped []string
	bus.Subscribe(event.TypeStepCompleted, func(e event.Event) {
		if ev := e.(event.StepCompletedEvent); ev.Skipped {
			skipped = append(skipped, ev.StepID)
		}
	})
	a := New(WithBus(bus))
	m := step.NewModel(testDefs())
	m.ApplyRemote([]step.Update{{ID: "b", Status: "completed", Progress: 100}})

	if err := a.Sequence(context.Background(), m, nil); err != nil {
		t.Fatalf("Sequence() error = %v", err)
	}
	if len(skipped) != 1 || skipped[0] != "b" {
		t.Errorf("skipped = %v, want [b]", skipped)
	}
}

func TestSequence_StopsOnFailedStage(t *testing.T) {
	a := New()
	m := step.NewModel(testDefs())
	m.ApplyRemote([]step.Update{{ID: "b", Status: "failed", Error: "boom"}})

	err := a.Sequence(context.Background(), m, nil)
	if !errors.Is(err, ErrStepFailed) {
		t.Fatalf("Sequence() error = %v, want ErrStepFailed", err)
	}
	s, _ := m.Step(2)
	if s.Status != step.StatusPending {
		t.Errorf("stage after failure = %q, want pending", s.Status)
	}
}

func TestSequence_Canceled(t *testing.T) {
	a := New()
	m := step.NewModel(testDefs())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := a.Sequence(ctx, m, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Sequence() error = %v, want context.Canceled", err)
	}
	if m.Current() != -1 {
		t.Error("a canceled sequence must not begin any stage")
	}
}

func countProcessing(m *step.Model) int {
	n := 0
	for _, s := range m.Steps() {
		if s.Status == step.StatusProcessing {
			n++
		}
	}
	return n
}
