package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

// -----------------------------------------------------------------------------
// Severity Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// SubmissionError Tests
// -----------------------------------------------------------------------------

func TestNewSubmissionError(t *testing.T) {
	err := NewSubmissionError(400, "No files provided")

	if err.StatusCode != 400 {
		t.Errorf("StatusCode = %d, want 400", err.StatusCode)
	}
	if err.Message() != "No files provided" {
		t.Errorf("Message() = %q", err.Message())
	}
	if err.Severity() != SeverityError {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityError)
	}
	if err.IsRetryable() {
		t.Error("IsRetryable() = true, want false")
	}
	if !err.IsUserFacing() {
		t.Error("IsUserFacing() = false, want true")
	}
}

func TestNewSubmissionError_DefaultMessage(t *testing.T) {
	for _, msg := range []string{"", "   "} {
		err := NewSubmissionError(500, msg)
		if err.Message() != DefaultSubmissionMessage {
			t.Errorf("Message() = %q, want %q", err.Message(), DefaultSubmissionMessage)
		}
	}
}

func TestSubmissionError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *SubmissionError
		want string
	}{
		{
			name: "with status",
			err:  NewSubmissionError(400, "bad request"),
			want: "submission error [status=400]: bad request",
		},
		{
			name: "transport failure",
			err:  NewSubmissionError(0, "").WithCause(fmt.Errorf("connection refused")),
			want: "submission error: Failed to create knowledge fabric: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubmissionError_Is(t *testing.T) {
	cause := context.DeadlineExceeded
	err := NewSubmissionError(0, "").WithCause(cause)

	if !Is(err, ErrSubmissionFailed) {
		t.Error("Is(ErrSubmissionFailed) = false")
	}
	if !Is(err, &SubmissionError{}) {
		t.Error("Is(*SubmissionError) = false")
	}
	if !Is(err, context.DeadlineExceeded) {
		t.Error("cause not matched")
	}
	if Is(err, ErrBackendFailed) {
		t.Error("Is(ErrBackendFailed) = true")
	}
}

// -----------------------------------------------------------------------------
// TerminalBackendError Tests
// -----------------------------------------------------------------------------

func TestTerminalBackendError(t *testing.T) {
	err := NewTerminalBackendError("job-1", "Training diverged").WithStep("train")

	want := "backend error [job=job-1, step=train]: Training diverged"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if err.Message() != "Training diverged" {
		t.Errorf("Message() = %q", err.Message())
	}
	if !Is(err, ErrBackendFailed) {
		t.Error("Is(ErrBackendFailed) = false")
	}
	if !IsUserFacing(err) {
		t.Error("IsUserFacing() = false")
	}
}

func TestTerminalBackendError_EmptyMessage(t *testing.T) {
	err := NewTerminalBackendError("job-1", "")
	if err.Message() == "" {
		t.Error("Message() is empty")
	}
}

// -----------------------------------------------------------------------------
// TimeoutError Tests
// -----------------------------------------------------------------------------

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("waiting for fabric job", 10*time.Minute)

	want := "timeout error: waiting for fabric job (timeout: 10m0s)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !Is(err, ErrTimeout) {
		t.Error("Is(ErrTimeout) = false")
	}
	if !err.IsRetryable() {
		t.Error("IsRetryable() = false, want true")
	}
	if err.WithRetryable(false).IsRetryable() {
		t.Error("WithRetryable(false) not applied")
	}
	if !strings.Contains(err.Message(), "10m0s") {
		t.Errorf("Message() = %q, want duration included", err.Message())
	}
}

// -----------------------------------------------------------------------------
// Internal Error Tests
// -----------------------------------------------------------------------------

func TestTransientPollError(t *testing.T) {
	err := NewTransientPollError("job-1", fmt.Errorf("EOF")).WithStatusCode(502)

	want := "poll error [job=job-1, status=502]: progress fetch failed: EOF"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable() = false")
	}
	if IsUserFacing(err) {
		t.Error("IsUserFacing() = true")
	}
	if !Is(err, ErrPollFailed) {
		t.Error("Is(ErrPollFailed) = false")
	}
	if IsTerminal(err) {
		t.Error("IsTerminal() = true for a transient poll error")
	}
}

func TestCleanupError(t *testing.T) {
	err := NewCleanupError("job-1", 3, fmt.Errorf("503"))

	want := "cleanup error [job=job-1, attempts=3]: failed to release progress state: 503"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if GetSeverity(err) != SeverityWarning {
		t.Errorf("GetSeverity() = %v, want warning", GetSeverity(err))
	}
	if !Is(err, ErrCleanupFailed) {
		t.Error("Is(ErrCleanupFailed) = false")
	}
}

// -----------------------------------------------------------------------------
// ValidationError Tests
// -----------------------------------------------------------------------------

func TestValidationError(t *testing.T) {
	err := NewValidationError("must be positive").WithField("poll.interval").WithValue(-1)

	want := "validation error [field=poll.interval, value=-1]: must be positive"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !Is(err, ErrInvalidInput) {
		t.Error("Is(ErrInvalidInput) = false")
	}
	if !Is(NewValidationError("x").WithCause(ErrNoFiles), ErrNoFiles) {
		t.Error("cause not matched")
	}
}

// -----------------------------------------------------------------------------
// Classification Tests
// -----------------------------------------------------------------------------

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"submission", NewSubmissionError(400, "x"), true},
		{"backend", NewTerminalBackendError("j", "x"), true},
		{"timeout", NewTimeoutError("x", time.Second), true},
		{"wrapped backend", Wrap(NewTerminalBackendError("j", "x"), "run failed"), true},
		{"cleanup", NewCleanupError("j", 1, nil), false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTerminal(tt.err); got != tt.want {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"submission detail", NewSubmissionError(400, "Unsupported file"), "Unsupported file"},
		{"wrapped submission", Wrap(NewSubmissionError(500, ""), "start"), DefaultSubmissionMessage},
		{"backend", NewTerminalBackendError("j", "Embedding failed"), "Embedding failed"},
		{"timeout", NewTimeoutError("waiting for knowledge fabric", 5*time.Second), "Timed out waiting for knowledge fabric after 5s"},
		{"validation", NewValidationError("at least one file is required"), "at least one file is required"},
		{"internal poll error", NewTransientPollError("j", errors.New("connection reset")), DefaultFailureMessage},
		{"plain", errors.New("runtime error: index out of range"), DefaultFailureMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetSeverity(t *testing.T) {
	if GetSeverity(nil) != SeverityDebug {
		t.Error("GetSeverity(nil) != debug")
	}
	if GetSeverity(errors.New("x")) != SeverityError {
		t.Error("GetSeverity(plain) != error")
	}
	if GetSeverity(Wrap(NewValidationError("x"), "ctx")) != SeverityWarning {
		t.Error("GetSeverity(wrapped validation) != warning")
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("IsRetryable(nil) = true")
	}
	if !IsRetryable(Wrap(ErrTimeout, "ctx")) {
		t.Error("IsRetryable(ErrTimeout) = false")
	}
	if IsRetryable(NewSubmissionError(400, "x")) {
		t.Error("IsRetryable(submission) = true")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("IsRetryable(plain) = true")
	}
	if !IsRetryable(&net.OpError{Op: "dial", Err: errors.New("connection refused")}) {
		t.Error("IsRetryable(network error) = false")
	}
	if !IsRetryable(Wrap(context.DeadlineExceeded, "delete")) {
		t.Error("IsRetryable(deadline) = false")
	}
	if !IsRetryable(retryableStatus(503)) {
		t.Error("IsRetryable(Retryable() true) = false")
	}
	if IsRetryable(retryableStatus(404)) {
		t.Error("IsRetryable(Retryable() false) = true")
	}
}

type retryableStatus int

func (s retryableStatus) Error() string   { return fmt.Sprintf("status %d", int(s)) }
func (s retryableStatus) Retryable() bool { return s >= 500 }

func TestWrap(t *testing.T) {
	if Wrap(nil, "x") != nil {
		t.Error("Wrap(nil) != nil")
	}

	err := Wrap(ErrNoFiles, "start run")
	if err.Error() != "start run: no files to process" {
		t.Errorf("Wrap() = %q", err.Error())
	}
	if !Is(err, ErrNoFiles) {
		t.Error("wrapped sentinel not matched")
	}
}
