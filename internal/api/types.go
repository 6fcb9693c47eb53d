package api

import (
	"encoding/json"
	"time"
)

// Envelope is the response wrapper used by every knowledge endpoint.
// Detail carries the error text some backends put next to success:false.
type Envelope[T any] struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    *T              `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Detail  json.RawMessage `json:"detail,omitempty"`
}

// ServerMessage returns the envelope's error text: detail, then error,
// then message.
func (e Envelope[T]) ServerMessage() string {
	if d := detailText(e.Detail); d != "" {
		return d
	}
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// CreateJobRequest is the body of the fabric creation request.
type CreateJobRequest struct {
	Files      []string `json:"files"`
	SourceType string   `json:"source_type"`
	TrainModel bool     `json:"train_model"`
}

// CreateJobData is the payload of a successful creation response.
type CreateJobData struct {
	SourceID   string `json:"source_id,omitempty"`
	ProgressID string `json:"progress_id,omitempty"`
	FabricName string `json:"fabric_name,omitempty"`
	Status     string `json:"status,omitempty"`
}

// JobID returns the identifier to poll: the progress id when present,
// otherwise the source id.
func (d CreateJobData) JobID() string {
	if d.ProgressID != "" {
		return d.ProgressID
	}
	return d.SourceID
}

// StepSnapshot is one stage as reported by the backend. ID is optional;
// without it the entry is matched by position.
type StepSnapshot struct {
	ID       string  `json:"id,omitempty"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Error    string  `json:"error,omitempty"`
}

// ProgressSnapshot is the backend's view of a running job.
type ProgressSnapshot struct {
	OverallProgress float64        `json:"overall_progress"`
	Steps           []StepSnapshot `json:"steps"`
	Status          string         `json:"status"`
	CurrentStep     string         `json:"current_step,omitempty"`
	FabricID        string         `json:"fabric_id,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// HealthStatus is the body returned by the health endpoint.
type HealthStatus struct {
	Status string `json:"status"`
}

// JobHandle identifies a server-side fabric job for the lifetime of a run.
type JobHandle struct {
	ID        string
	SourceID  string
	Files     []string
	CreatedAt time.Time
	// Local is true when the backend returned no id and ID was generated
	// client-side. Such a job cannot be polled.
	Local bool
}

// IsZero reports whether no job has been created.
func (h JobHandle) IsZero() bool {
	return h.ID == ""
}
