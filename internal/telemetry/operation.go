// Package telemetry records a fabric run as OpenTelemetry spans: a root span
// carrying the planned stages, a child span for the submission and one child
// span per stage.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Iron-Ham/fabricctl/internal/event"
)

const (
	// RunSpanName names the root span of a run.
	RunSpanName = "fabric.create"
	// SubmitStepID names the submission child span.
	SubmitStepID = "submit"
	// SubmitTitle is the plan title of the submission span.
	SubmitTitle = "Submitting documents"

	PlanEventName  = "fabric.plan"
	PlanVersion    = "1"
	PlanVersionKey = "fabric.plan.version"
	PlanJSONKey    = "fabric.plan.json"

	RunIDKey   = "fabric.run_id"
	JobIDKey   = "fabric.job_id"
	LocalKey   = "fabric.job_local"
	SkippedKey = "fabric.step_skipped"
)

// PlannedStep is one entry of the plan attached to the root span.
type PlannedStep struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Plan lists every stage a run will go through, in order.
type Plan struct {
	Steps []PlannedStep `json:"steps"`
}

// NoopTracer returns a tracer that records nothing.
func NoopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("fabricctl")
}

// Operation is the span tree of one run.
type Operation struct {
	ctx    context.Context
	tracer trace.Tracer
	span   trace.Span

	mu    sync.Mutex
	steps map[string]trace.Span
	ended bool
}

// Start opens the root span for a run and records plan on it.
func Start(ctx context.Context, tracer trace.Tracer, runID string, plan Plan) (*Operation, error) {
	if tracer == nil {
		return nil, fmt.Errorf("start run telemetry: tracer is required")
	}
	if err := validatePlan(plan); err != nil {
		return nil, fmt.Errorf("start run telemetry: %w", err)
	}

	planJSON, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("start run telemetry: marshal plan: %w", err)
	}

	spanCtx, span := tracer.Start(ctx, RunSpanName, trace.WithAttributes(
		attribute.String(RunIDKey, runID),
		attribute.String(PlanVersionKey, PlanVersion),
		attribute.String(PlanJSONKey, string(planJSON)),
	))
	span.AddEvent(PlanEventName, trace.WithAttributes(
		attribute.String(PlanVersionKey, PlanVersion),
		attribute.String(PlanJSONKey, string(planJSON)),
	))

	return &Operation{
		ctx:    spanCtx,
		tracer: tracer,
		span:   span,
		steps:  make(map[string]trace.Span),
	}, nil
}

// Context returns the context carrying the root span.
func (o *Operation) Context() context.Context {
	if o == nil {
		return context.Background()
	}
	return o.ctx
}

// Submit runs fn inside the submission span. fn returns the job id it
// obtained and whether that id was generated locally.
func (o *Operation) Submit(ctx context.Context, fn func(context.Context) (string, bool, error)) (string, bool, error) {
	if o == nil {
		return fn(ctx)
	}
	submitCtx, span := o.tracer.Start(ctx, SubmitStepID)
	defer span.End()

	jobID, local, err := fn(submitCtx)
	if err != nil {
		recordFailure(span, err.Error())
		return jobID, local, err
	}
	span.SetAttributes(attribute.String(JobIDKey, jobID), attribute.Bool(LocalKey, local))
	o.span.SetAttributes(attribute.String(JobIDKey, jobID))
	return jobID, local, nil
}

// StepStarted opens the span for stepID. A second call for the same id is
// ignored.
func (o *Operation) StepStarted(stepID string) {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ended {
		return
	}
	if _, open := o.steps[stepID]; open {
		return
	}
	_, span := o.tracer.Start(o.ctx, stepID)
	o.steps[stepID] = span
}

// StepCompleted ends the span for stepID. A stage that finished without ever
// being started locally gets a zero-length span marked skipped.
func (o *Operation) StepCompleted(stepID string, skipped bool) {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ended {
		return
	}
	span, open := o.steps[stepID]
	if !open {
		_, span = o.tracer.Start(o.ctx, stepID, trace.WithAttributes(attribute.Bool(SkippedKey, skipped)))
	}
	delete(o.steps, stepID)
	span.SetAttributes(attribute.Bool(SkippedKey, skipped))
	span.End()
}

// Attach feeds stage events from bus into the operation and returns a
// function that detaches it.
func (o *Operation) Attach(bus *event.Bus) func() {
	if o == nil || bus == nil {
		return func() {}
	}
	started := bus.Subscribe(event.TypeStepStarted, func(e event.Event) {
		if ev, ok := e.(event.StepStartedEvent); ok {
			o.StepStarted(ev.StepID)
		}
	})
	completed := bus.Subscribe(event.TypeStepCompleted, func(e event.Event) {
		if ev, ok := e.(event.StepCompletedEvent); ok {
			o.StepCompleted(ev.StepID, ev.Skipped)
		}
	})
	return func() {
		bus.Unsubscribe(started)
		bus.Unsubscribe(completed)
	}
}

// End closes any open stage spans and the root span. On error the open
// stages and the root are marked failed with err's text.
func (o *Operation) End(err error) {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ended {
		return
	}
	o.ended = true

	for id, span := range o.steps {
		if err != nil {
			recordFailure(span, err.Error())
		}
		span.End()
		delete(o.steps, id)
	}
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
	}
	o.span.End()
}

func recordFailure(span trace.Span, msg string) {
	span.SetStatus(codes.Error, strings.TrimSpace(msg))
}

func validatePlan(plan Plan) error {
	seen := make(map[string]struct{}, len(plan.Steps))
	for i, s := range plan.Steps {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			return fmt.Errorf("step %d has empty id", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate step id %q", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
