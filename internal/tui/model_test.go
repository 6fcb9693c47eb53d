package tui

import (
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/fabricctl/internal/api"
	"github.com/Iron-Ham/fabricctl/internal/orchestrator"
	"github.com/Iron-Ham/fabricctl/internal/step"
)

type fakeSource struct {
	mu      sync.Mutex
	state   orchestrator.RunState
	stopped int
}

func (f *fakeSource) State() orchestrator.RunState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSource) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	if !f.state.Phase.IsTerminal() {
		f.state.Phase = orchestrator.PhaseStopped
	}
}

func (f *fakeSource) set(st orchestrator.RunState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = st
}

func runningState() orchestrator.RunState {
	return orchestrator.RunState{
		RunID:   "run-1",
		Phase:   orchestrator.PhaseRunning,
		Active:  true,
		Files:   []string{"/docs/handbook.pdf", "notes.txt"},
		Overall: 37.5,
		Steps: []step.Step{
			{ID: "extract", Title: "Extracting Text Content", Status: step.StatusCompleted, Progress: 100},
			{ID: "chunk", Title: "Creating Text Chunks", Description: "Splitting content", Status: step.StatusProcessing, Progress: 50},
			{ID: "train", Title: "Training BERT Model", Status: step.StatusPending},
		},
	}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestModel_TickRefreshesState(t *testing.T) {
	src := &fakeSource{state: runningState()}
	m := NewModel(src, 0)
	if m.refresh != DefaultRefreshInterval {
		t.Errorf("refresh = %v, want default", m.refresh)
	}

	next := runningState()
	next.Overall = 50
	src.set(next)

	updated, cmd := m.Update(tickMsg(time.Now()))
	m = updated.(Model)
	if m.State().Overall != 50 {
		t.Errorf("Overall = %v, want 50", m.State().Overall)
	}
	if cmd == nil || isQuit(cmd) {
		t.Error("running state should schedule another tick")
	}
}

func TestModel_QuitsOnTerminalPhase(t *testing.T) {
	src := &fakeSource{state: runningState()}
	m := NewModel(src, time.Millisecond)

	done := runningState()
	done.Phase = orchestrator.PhaseCompleted
	done.FabricID = "fabric_123"
	src.set(done)

	updated, cmd := m.Update(tickMsg(time.Now()))
	m = updated.(Model)
	if !isQuit(cmd) {
		t.Fatal("terminal phase did not quit")
	}
	if m.Interrupted() {
		t.Error("Interrupted() = true for a completed run")
	}
	if !strings.Contains(m.View(), "fabric_123") {
		t.Errorf("view does not show the fabric id:\n%s", m.View())
	}
}

func TestModel_QuitKeyStopsRun(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.KeyMsg
	}{
		{"q", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}},
		{"ctrl+c", tea.KeyMsg{Type: tea.KeyCtrlC}},
		{"esc", tea.KeyMsg{Type: tea.KeyEsc}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{state: runningState()}
			m := NewModel(src, time.Millisecond)

			updated, cmd := m.Update(tt.msg)
			m = updated.(Model)
			if !isQuit(cmd) {
				t.Fatal("quit key did not quit")
			}
			if src.stopped != 1 {
				t.Errorf("Stop called %d times, want 1", src.stopped)
			}
			if !m.Interrupted() {
				t.Error("Interrupted() = false")
			}
			if !strings.Contains(m.View(), "Cancelled") {
				t.Errorf("view does not report cancellation:\n%s", m.View())
			}
		})
	}
}

func TestModel_OtherKeysIgnored(t *testing.T) {
	src := &fakeSource{state: runningState()}
	m := NewModel(src, time.Millisecond)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	if cmd != nil {
		t.Error("unbound key produced a command")
	}
	if src.stopped != 0 {
		t.Error("unbound key stopped the run")
	}
}

func TestModel_WindowSizeBoundsBar(t *testing.T) {
	src := &fakeSource{state: runningState()}
	m := NewModel(src, time.Millisecond)

	tests := []struct {
		width int
		want  int
	}{
		{width: 200, want: maxBarWidth},
		{width: 50, want: 38},
		{width: 5, want: minBarWidth},
	}
	for _, tt := range tests {
		updated, _ := m.Update(tea.WindowSizeMsg{Width: tt.width, Height: 40})
		got := updated.(Model)
		if got.bar.Width != tt.want {
			t.Errorf("width %d: bar width = %d, want %d", tt.width, got.bar.Width, tt.want)
		}
	}
}

func TestView_Running(t *testing.T) {
	src := &fakeSource{state: runningState()}
	view := NewModel(src, time.Millisecond).View()

	for _, want := range []string{
		"Knowledge Fabric",
		"2 file(s): handbook.pdf, notes.txt",
		"37%",
		"Extracting Text Content",
		"Creating Text Chunks",
		"Splitting content",
		"Training BERT Model",
		"cancel",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestView_FailedAndDegraded(t *testing.T) {
	failed := runningState()
	failed.Phase = orchestrator.PhaseFailed
	failed.Message = "Training diverged"
	failed.Steps[1].Status = step.StatusError
	failed.Steps[1].Error = "chunker crashed"

	view := NewModel(&fakeSource{state: failed}, time.Millisecond).View()
	for _, want := range []string{"Training diverged", "chunker crashed"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	degraded := runningState()
	degraded.Job = api.JobHandle{ID: "local-1", Local: true}
	view = NewModel(&fakeSource{state: degraded}, time.Millisecond).View()
	if !strings.Contains(view, "no job id") {
		t.Errorf("view does not flag degraded mode:\n%s", view)
	}
}

func TestSummary(t *testing.T) {
	st := runningState()
	st.Phase = orchestrator.PhaseFailed
	st.Steps[1].Status = step.StatusError
	st.Steps[1].Error = "chunker crashed"

	out := Summary(st)
	for _, want := range []string{"Stage", "Status", "Extracting Text Content", "chunker crashed", "not reached", "100%"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
