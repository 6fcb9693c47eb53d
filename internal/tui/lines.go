package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/Iron-Ham/fabricctl/internal/telemetry"
)

type lineStatus int

const (
	linePending lineStatus = iota
	lineRunning
	lineDone
	lineFailed
)

// LineOutput prints one line per stage transition of a run. It consumes the
// run's spans, so it needs no terminal and suits logs and pipes.
type LineOutput struct {
	provider *sdktrace.TracerProvider
	lines    *lineWriter
}

// NewLineOutput creates a LineOutput writing to w.
func NewLineOutput(w io.Writer) *LineOutput {
	lw := &lineWriter{
		w:        w,
		titles:   make(map[string]string),
		status:   make(map[string]lineStatus),
		messages: make(map[string]string),
	}
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(&lineSpanProcessor{lines: lw}))
	return &LineOutput{provider: provider, lines: lw}
}

// Tracer returns the tracer runs must record into.
func (o *LineOutput) Tracer() trace.Tracer {
	return o.provider.Tracer("fabricctl")
}

// Close flushes and shuts down the tracer provider.
func (o *LineOutput) Close() {
	_ = o.provider.Shutdown(context.Background())
}

type lineWriter struct {
	mu       sync.Mutex
	w        io.Writer
	titles   map[string]string
	status   map[string]lineStatus
	messages map[string]string
}

func (l *lineWriter) onPlan(plan telemetry.Plan) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range plan.Steps {
		if title := strings.TrimSpace(s.Title); title != "" {
			l.titles[s.ID] = title
		}
	}
}

func (l *lineWriter) report(stepID string, status lineStatus, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg = strings.TrimSpace(msg)
	prev, seen := l.status[stepID]
	if seen && prev == status && l.messages[stepID] == msg {
		return
	}
	l.status[stepID] = status
	l.messages[stepID] = msg

	title := l.titles[stepID]
	if title == "" {
		title = stepID
	}
	fmt.Fprintln(l.w, formatLine(status, title, msg))
}

func formatLine(status lineStatus, title, msg string) string {
	prefix := "[..]"
	switch status {
	case lineRunning:
		prefix = "[->]"
	case lineDone:
		prefix = "[ok]"
	case lineFailed:
		prefix = "[x]"
	}
	if msg != "" {
		return fmt.Sprintf("  %s %s (%s)", prefix, title, msg)
	}
	return fmt.Sprintf("  %s %s", prefix, title)
}

type lineSpanProcessor struct {
	lines *lineWriter
}

func (p *lineSpanProcessor) OnStart(_ context.Context, span sdktrace.ReadWriteSpan) {
	if !span.Parent().IsValid() {
		planJSON := attributeValue(span.Attributes(), telemetry.PlanJSONKey)
		if planJSON.AsString() == "" {
			return
		}
		var plan telemetry.Plan
		if err := json.Unmarshal([]byte(planJSON.AsString()), &plan); err != nil {
			return
		}
		p.lines.onPlan(plan)
		return
	}
	if attributeValue(span.Attributes(), telemetry.SkippedKey).AsBool() {
		return
	}
	p.lines.report(span.Name(), lineRunning, "")
}

func (p *lineSpanProcessor) OnEnd(span sdktrace.ReadOnlySpan) {
	if !span.Parent().IsValid() {
		return
	}
	status := span.Status()
	switch {
	case status.Code == codes.Error:
		p.lines.report(span.Name(), lineFailed, status.Description)
	case attributeValue(span.Attributes(), telemetry.SkippedKey).AsBool():
		p.lines.report(span.Name(), lineDone, "skipped")
	default:
		p.lines.report(span.Name(), lineDone, "")
	}
}

func (p *lineSpanProcessor) Shutdown(context.Context) error {
	return nil
}

func (p *lineSpanProcessor) ForceFlush(context.Context) error {
	return nil
}

func attributeValue(attrs []attribute.KeyValue, key string) attribute.Value {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value
		}
	}
	return attribute.Value{}
}
