package step

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a single pipeline stage.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the stage will not change again on the local path.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// ParseStatus maps a status string reported by the backend to a Status.
// A few aliases used by pipeline backends are accepted. The second return
// value is false for anything unrecognised.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "queued", "waiting":
		return StatusPending, true
	case "processing", "running", "in_progress":
		return StatusProcessing, true
	case "completed", "complete", "done", "success":
		return StatusCompleted, true
	case "error", "failed", "failure":
		return StatusError, true
	default:
		return "", false
	}
}

// Definition describes one stage of the fabric pipeline and how long the
// local animation takes to sweep it.
type Definition struct {
	ID          string
	Title       string
	Description string
	Duration    time.Duration
}

// Step is the observable state of one stage.
type Step struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      Status  `json:"status"`
	Progress    float64 `json:"progress"`
	Error       string  `json:"error,omitempty"`
}

// Default stage ids, in pipeline order.
const (
	IDExtract = "extract"
	IDChunk   = "chunk"
	IDEmbed   = "embed"
	IDStore   = "store"
	IDTrain   = "train"
	IDReady   = "ready"
)

// DefaultDefinitions returns the six stages of knowledge fabric creation.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			ID:          IDExtract,
			Title:       "Extracting Text Content",
			Description: "Processing PDF documents and extracting text content",
			Duration:    1500 * time.Millisecond,
		},
		{
			ID:          IDChunk,
			Title:       "Creating Text Chunks",
			Description: "Splitting content into intelligent chunks for better understanding",
			Duration:    1200 * time.Millisecond,
		},
		{
			ID:          IDEmbed,
			Title:       "Generating Embeddings",
			Description: "Creating vector embeddings for semantic search",
			Duration:    2000 * time.Millisecond,
		},
		{
			ID:          IDStore,
			Title:       "Storing in Vector Database",
			Description: "Saving embeddings to the vector store",
			Duration:    1500 * time.Millisecond,
		},
		{
			ID:          IDTrain,
			Title:       "Training BERT Model",
			Description: "Fine-tuning the model on your knowledge",
			Duration:    8000 * time.Millisecond,
		},
		{
			ID:          IDReady,
			Title:       "Knowledge Fabric Ready",
			Description: "Your knowledge fabric is ready for agents",
			Duration:    1000 * time.Millisecond,
		},
	}
}

// WithDurations returns a copy of defs where every stage whose id appears in
// durations uses that duration instead. Non-positive overrides are ignored.
func WithDurations(defs []Definition, durations map[string]time.Duration) []Definition {
	out := make([]Definition, len(defs))
	copy(out, defs)
	for i := range out {
		if d, ok := durations[out[i].ID]; ok && d > 0 {
			out[i].Duration = d
		}
	}
	return out
}

// clampProgress bounds a progress value to [0, 100].
func clampProgress(p float64) float64 {
	if p != p { // NaN
		return 0
	}
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
