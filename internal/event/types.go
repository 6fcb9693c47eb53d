package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a "category.action" identifier, e.g. "run.started".
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeRunStarted    = "run.started"
	TypePhaseChanged  = "run.phase_changed"
	TypeRunCompleted  = "run.completed"
	TypeRunFailed     = "run.failed"
	TypeJobCreated    = "job.created"
	TypeJobPolled     = "job.polled"
	TypeStepStarted   = "step.started"
	TypeStepCompleted = "step.completed"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Run Lifecycle Events
// -----------------------------------------------------------------------------

// RunStartedEvent is emitted when Start accepts a new run.
type RunStartedEvent struct {
	baseEvent
	RunID string
	Files []string
}

// NewRunStartedEvent creates a RunStartedEvent.
func NewRunStartedEvent(runID string, files []string) RunStartedEvent {
	return RunStartedEvent{
		baseEvent: newBaseEvent(TypeRunStarted),
		RunID:     runID,
		Files:     files,
	}
}

// PhaseChangedEvent is emitted on every orchestrator phase transition.
type PhaseChangedEvent struct {
	baseEvent
	RunID string
	From  string
	To    string
}

// NewPhaseChangedEvent creates a PhaseChangedEvent.
func NewPhaseChangedEvent(runID, from, to string) PhaseChangedEvent {
	return PhaseChangedEvent{
		baseEvent: newBaseEvent(TypePhaseChanged),
		RunID:     runID,
		From:      from,
		To:        to,
	}
}

// RunCompletedEvent is emitted once a run finalizes successfully.
type RunCompletedEvent struct {
	baseEvent
	RunID    string
	FabricID string
}

// NewRunCompletedEvent creates a RunCompletedEvent.
func NewRunCompletedEvent(runID, fabricID string) RunCompletedEvent {
	return RunCompletedEvent{
		baseEvent: newBaseEvent(TypeRunCompleted),
		RunID:     runID,
		FabricID:  fabricID,
	}
}

// RunFailedEvent is emitted once a run finalizes with an error.
type RunFailedEvent struct {
	baseEvent
	RunID   string
	Message string
}

// NewRunFailedEvent creates a RunFailedEvent.
func NewRunFailedEvent(runID, message string) RunFailedEvent {
	return RunFailedEvent{
		baseEvent: newBaseEvent(TypeRunFailed),
		RunID:     runID,
		Message:   message,
	}
}

// -----------------------------------------------------------------------------
// Job Events
// -----------------------------------------------------------------------------

// JobCreatedEvent is emitted when the backend accepts the creation request.
// Local is true when the backend returned no id and one was generated.
type JobCreatedEvent struct {
	baseEvent
	RunID string
	JobID string
	Local bool
}

// NewJobCreatedEvent creates a JobCreatedEvent.
func NewJobCreatedEvent(runID, jobID string, local bool) JobCreatedEvent {
	return JobCreatedEvent{
		baseEvent: newBaseEvent(TypeJobCreated),
		RunID:     runID,
		JobID:     jobID,
		Local:     local,
	}
}

// JobPolledEvent is emitted after each successful progress fetch.
type JobPolledEvent struct {
	baseEvent
	JobID   string
	Status  string
	Overall float64
}

// NewJobPolledEvent creates a JobPolledEvent.
func NewJobPolledEvent(jobID, status string, overall float64) JobPolledEvent {
	return JobPolledEvent{
		baseEvent: newBaseEvent(TypeJobPolled),
		JobID:     jobID,
		Status:    status,
		Overall:   overall,
	}
}

// -----------------------------------------------------------------------------
// Step Events
// -----------------------------------------------------------------------------

// StepStartedEvent is emitted when the local sequence begins a stage.
type StepStartedEvent struct {
	baseEvent
	StepID string
	Index  int
}

// NewStepStartedEvent creates a StepStartedEvent.
func NewStepStartedEvent(stepID string, index int) StepStartedEvent {
	return StepStartedEvent{
		baseEvent: newBaseEvent(TypeStepStarted),
		StepID:    stepID,
		Index:     index,
	}
}

// StepCompletedEvent is emitted when the local sequence finishes a stage.
// Skipped is true when the backend had already completed it.
type StepCompletedEvent struct {
	baseEvent
	StepID  string
	Index   int
	Skipped bool
}

// NewStepCompletedEvent creates a StepCompletedEvent.
func NewStepCompletedEvent(stepID string, index int, skipped bool) StepCompletedEvent {
	return StepCompletedEvent{
		baseEvent: newBaseEvent(TypeStepCompleted),
		StepID:    stepID,
		Index:     index,
		Skipped:   skipped,
	}
}
