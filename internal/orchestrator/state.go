package orchestrator

import (
	"time"

	"github.com/Iron-Ham/fabricctl/internal/api"
	"github.com/Iron-Ham/fabricctl/internal/step"
)

// Phase is the lifecycle phase of a run.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseRunning    Phase = "running"
	PhaseFinalizing Phase = "finalizing"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
	// PhaseStopped is entered when a run is torn down before its outcome.
	PhaseStopped Phase = "stopped"
)

// IsTerminal reports whether the run has ended.
func (p Phase) IsTerminal() bool {
	switch p {
	case PhaseCompleted, PhaseFailed, PhaseStopped:
		return true
	default:
		return false
	}
}

// RunState is a point-in-time view of a run for renderers.
type RunState struct {
	RunID  string
	Phase  Phase
	Active bool
	// Job is zero until the creation request succeeds.
	Job     api.JobHandle
	Files   []string
	Steps   []step.Step
	Overall float64
	// Revision changes whenever Steps or Overall change.
	Revision uint64
	FabricID string
	// Err keeps the typed error of a failed run; Message is what the error
	// callback received.
	Err       error
	Message   string
	StartedAt time.Time
}

// Current returns the stage being processed, if any.
func (s RunState) Current() (step.Step, bool) {
	for _, st := range s.Steps {
		if st.Status == step.StatusProcessing {
			return st, true
		}
	}
	return step.Step{}, false
}

// Degraded reports whether the run lost backend observability because the
// backend returned no job id.
func (s RunState) Degraded() bool {
	return s.Job.Local
}
