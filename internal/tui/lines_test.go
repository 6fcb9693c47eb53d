package tui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Iron-Ham/fabricctl/internal/event"
	"github.com/Iron-Ham/fabricctl/internal/logging"
	"github.com/Iron-Ham/fabricctl/internal/step"
	"github.com/Iron-Ham/fabricctl/internal/telemetry"
)

func lineDefs() []step.Definition {
	return []step.Definition{
		{ID: "extract", Title: "Extracting Text Content"},
		{ID: "train", Title: "Training BERT Model"},
	}
}

func TestLineOutput_SuccessfulRun(t *testing.T) {
	var buf bytes.Buffer
	out := NewLineOutput(&buf)
	defer out.Close()

	op, err := telemetry.Start(context.Background(), out.Tracer(), "run-1", telemetry.PlanFor(lineDefs()))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, _, err := op.Submit(op.Context(), func(context.Context) (string, bool, error) {
		return "job-1", false, nil
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	op.StepStarted("extract")
	op.StepCompleted("extract", false)
	op.StepCompleted("train", true)
	op.End(nil)

	want := []string{
		"  [->] Submitting documents",
		"  [ok] Submitting documents",
		"  [->] Extracting Text Content",
		"  [ok] Extracting Text Content",
		"  [ok] Training BERT Model (skipped)",
	}
	got := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(got), len(want), buf.String())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLineOutput_FailedRun(t *testing.T) {
	var buf bytes.Buffer
	out := NewLineOutput(&buf)
	defer out.Close()

	op, err := telemetry.Start(context.Background(), out.Tracer(), "run-1", telemetry.PlanFor(lineDefs()))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	bus := event.NewBus(logging.NopLogger())
	detach := op.Attach(bus)
	defer detach()

	bus.Publish(event.NewStepStartedEvent("extract", 0))
	op.End(errors.New("Training diverged"))

	if !strings.Contains(buf.String(), "  [x] Extracting Text Content (Training diverged)") {
		t.Errorf("output lacks the failed stage:\n%s", buf.String())
	}
}

func TestFormatLine(t *testing.T) {
	tests := []struct {
		status lineStatus
		msg    string
		want   string
	}{
		{linePending, "", "  [..] Stage"},
		{lineRunning, "", "  [->] Stage"},
		{lineDone, "", "  [ok] Stage"},
		{lineFailed, "boom", "  [x] Stage (boom)"},
	}
	for _, tt := range tests {
		if got := formatLine(tt.status, "Stage", tt.msg); got != tt.want {
			t.Errorf("formatLine(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestLineWriter_SkipsRepeats(t *testing.T) {
	var buf bytes.Buffer
	lw := &lineWriter{
		w:        &buf,
		titles:   map[string]string{},
		status:   map[string]lineStatus{},
		messages: map[string]string{},
	}
	lw.report("extract", lineRunning, "")
	lw.report("extract", lineRunning, "")
	lw.report("extract", lineDone, "")

	if n := strings.Count(buf.String(), "\n"); n != 2 {
		t.Errorf("wrote %d lines, want 2:\n%s", n, buf.String())
	}
	if !strings.Contains(buf.String(), "[->] extract") {
		t.Errorf("untitled stage should fall back to its id:\n%s", buf.String())
	}
}
