// Package errors provides the error taxonomy for fabricctl. It defines sentinel
// errors, typed errors for each failure boundary of a fabric run, and
// classification helpers.
//
// # Error Types
//
// Run boundary errors:
//   - SubmissionError: the creation request failed or was rejected
//   - TerminalBackendError: the backend reported the job as failed
//   - TimeoutError: a request or the polling ceiling timed out
//
// Internal errors that never reach run callbacks:
//   - TransientPollError: one progress fetch failed; polling continues
//   - CleanupError: releasing server-side progress state failed
//
// Input errors:
//   - ValidationError: invalid input or configuration
//
// # Usage
//
//	err := errors.NewSubmissionError(http.StatusBadRequest, "No files provided")
//	if errors.Is(err, errors.ErrSubmissionFailed) { ... }
//
//	var subErr *errors.SubmissionError
//	if errors.As(err, &subErr) { ... }
//
//	msg := errors.UserMessage(err) // the text handed to OnError
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on retry
//   - UserFacing: errors safe to display to users (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// DefaultSubmissionMessage is reported when a rejected creation request
// carries no usable message.
const DefaultSubmissionMessage = "Failed to create knowledge fabric"

// DefaultFailureMessage replaces the text of errors that are not safe to
// show to users.
const DefaultFailureMessage = "Knowledge fabric creation failed unexpectedly"

// Severity represents the severity level of an error.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Run-related sentinel errors
var (
	// ErrRunActive is returned by Start while another run is in flight.
	ErrRunActive = New("a fabric run is already active")
	// ErrNoFiles is returned by Start when no file references were given.
	ErrNoFiles = New("no files to process")
	// ErrSubmissionFailed matches every SubmissionError.
	ErrSubmissionFailed = New("fabric creation request failed")
	// ErrBackendFailed matches every TerminalBackendError.
	ErrBackendFailed = New("backend reported job failure")
	// ErrPollFailed matches every TransientPollError.
	ErrPollFailed = New("progress fetch failed")
	// ErrCleanupFailed matches every CleanupError.
	ErrCleanupFailed = New("progress cleanup failed")
)

// General sentinel errors
var (
	ErrTimeout      = New("operation timed out")
	ErrCanceled     = New("operation canceled")
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// FabricError is the interface shared by every typed error in this package.
type FabricError interface {
	error
	Unwrap() error
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) Severity() Severity {
	return e.severity
}

func (e *baseError) IsRetryable() bool {
	return e.retryable
}

func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// prefixed formats "<kind> [k=v, ...]: message[: cause]".
func (e *baseError) prefixed(kind string, parts []string) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Run Boundary Errors
// -----------------------------------------------------------------------------

// SubmissionError represents a failed or rejected creation request.
// Message is the server's detail when one was provided.
//
// Example:
//
//	err := errors.NewSubmissionError(400, "No files provided")
//	fmt.Println(err) // "submission error [status=400]: No files provided"
type SubmissionError struct {
	baseError
	StatusCode int
}

// NewSubmissionError creates a new SubmissionError. An empty message falls
// back to DefaultSubmissionMessage.
func NewSubmissionError(statusCode int, message string) *SubmissionError {
	if strings.TrimSpace(message) == "" {
		message = DefaultSubmissionMessage
	}
	return &SubmissionError{
		baseError: baseError{
			message:    message,
			severity:   SeverityError,
			userFacing: true,
		},
		StatusCode: statusCode,
	}
}

// WithCause adds a cause to the error.
func (e *SubmissionError) WithCause(cause error) *SubmissionError {
	e.cause = cause
	return e
}

// Message returns the text suitable for end users.
func (e *SubmissionError) Message() string {
	return e.message
}

func (e *SubmissionError) Error() string {
	var parts []string
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	return e.prefixed("submission error", parts)
}

func (e *SubmissionError) Is(target error) bool {
	if _, ok := target.(*SubmissionError); ok {
		return true
	}
	if target == ErrSubmissionFailed {
		return true
	}
	return e.baseError.Is(target)
}

// TerminalBackendError represents a job the backend reported as failed.
//
// Example:
//
//	err := errors.NewTerminalBackendError("job-1", "Training diverged").WithStep("train")
type TerminalBackendError struct {
	baseError
	JobID  string
	StepID string
}

// NewTerminalBackendError creates a new TerminalBackendError.
func NewTerminalBackendError(jobID, message string) *TerminalBackendError {
	if strings.TrimSpace(message) == "" {
		message = "knowledge fabric creation failed"
	}
	return &TerminalBackendError{
		baseError: baseError{
			message:    message,
			severity:   SeverityError,
			userFacing: true,
		},
		JobID: jobID,
	}
}

// WithStep records the stage the backend reported the failure on.
func (e *TerminalBackendError) WithStep(stepID string) *TerminalBackendError {
	e.StepID = stepID
	return e
}

// Message returns the backend's error text.
func (e *TerminalBackendError) Message() string {
	return e.message
}

func (e *TerminalBackendError) Error() string {
	var parts []string
	if e.JobID != "" {
		parts = append(parts, fmt.Sprintf("job=%s", e.JobID))
	}
	if e.StepID != "" {
		parts = append(parts, fmt.Sprintf("step=%s", e.StepID))
	}
	return e.prefixed("backend error", parts)
}

func (e *TerminalBackendError) Is(target error) bool {
	if _, ok := target.(*TerminalBackendError); ok {
		return true
	}
	if target == ErrBackendFailed {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for fabric job", 10*time.Minute)
//	fmt.Println(err) // "timeout error: waiting for fabric job (timeout: 10m0s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// WithRetryable sets whether the error is retryable (default true for timeouts).
func (e *TimeoutError) WithRetryable(r bool) *TimeoutError {
	e.retryable = r
	return e
}

// Message returns the text suitable for end users.
func (e *TimeoutError) Message() string {
	return fmt.Sprintf("Timed out %s after %s", e.Operation, e.Duration)
}

func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if target == ErrTimeout {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Internal Errors
// -----------------------------------------------------------------------------

// TransientPollError represents a single failed progress fetch. The poller
// logs it and keeps polling.
type TransientPollError struct {
	baseError
	JobID      string
	StatusCode int
}

// NewTransientPollError creates a new TransientPollError.
func NewTransientPollError(jobID string, cause error) *TransientPollError {
	return &TransientPollError{
		baseError: baseError{
			message:   "progress fetch failed",
			cause:     cause,
			severity:  SeverityWarning,
			retryable: true,
		},
		JobID: jobID,
	}
}

// WithStatusCode records the HTTP status of a non-2xx response.
func (e *TransientPollError) WithStatusCode(code int) *TransientPollError {
	e.StatusCode = code
	return e
}

func (e *TransientPollError) Error() string {
	var parts []string
	if e.JobID != "" {
		parts = append(parts, fmt.Sprintf("job=%s", e.JobID))
	}
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	return e.prefixed("poll error", parts)
}

func (e *TransientPollError) Is(target error) bool {
	if _, ok := target.(*TransientPollError); ok {
		return true
	}
	if target == ErrPollFailed {
		return true
	}
	return e.baseError.Is(target)
}

// CleanupError represents a failed request to release server-side progress
// state. It is logged as a warning and never fails a run.
type CleanupError struct {
	baseError
	JobID    string
	Attempts int
}

// NewCleanupError creates a new CleanupError.
func NewCleanupError(jobID string, attempts int, cause error) *CleanupError {
	return &CleanupError{
		baseError: baseError{
			message:  "failed to release progress state",
			cause:    cause,
			severity: SeverityWarning,
		},
		JobID:    jobID,
		Attempts: attempts,
	}
}

func (e *CleanupError) Error() string {
	var parts []string
	if e.JobID != "" {
		parts = append(parts, fmt.Sprintf("job=%s", e.JobID))
	}
	if e.Attempts > 0 {
		parts = append(parts, fmt.Sprintf("attempts=%d", e.Attempts))
	}
	return e.prefixed("cleanup error", parts)
}

func (e *CleanupError) Is(target error) bool {
	if _, ok := target.(*CleanupError); ok {
		return true
	}
	if target == ErrCleanupFailed {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Input Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("must be positive").WithField("poll.interval")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Message returns the text suitable for end users.
func (e *ValidationError) Message() string {
	return e.message
}

func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return e.prefixed("validation error", parts)
}

func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidInput {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. Besides the typed errors of this package it
// honours a Retryable() bool method and treats network errors and deadlines
// as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var fabricErr FabricError
	if As(err, &fabricErr) {
		return fabricErr.IsRetryable()
	}

	var classified interface{ Retryable() bool }
	if As(err, &classified) {
		return classified.Retryable()
	}

	var netErr net.Error
	if As(err, &netErr) {
		return true
	}

	return Is(err, ErrTimeout) || Is(err, context.DeadlineExceeded)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var fabricErr FabricError
	if As(err, &fabricErr) {
		return fabricErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement FabricError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var fabricErr FabricError
	if As(err, &fabricErr) {
		return fabricErr.Severity()
	}

	return SeverityError
}

// IsTerminal returns true for errors that end a run: submission failures,
// backend failures and timeouts.
func IsTerminal(err error) bool {
	if err == nil {
		return false
	}
	return Is(err, ErrSubmissionFailed) || Is(err, ErrBackendFailed) || Is(err, ErrTimeout)
}

// UserMessage returns the single message a run reports to its error
// callback. User-facing errors contribute their bare message without the
// diagnostic prefix; anything else is replaced by DefaultFailureMessage.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if !IsUserFacing(err) {
		return DefaultFailureMessage
	}
	var m interface{ Message() string }
	if As(err, &m) {
		return m.Message()
	}
	return err.Error()
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
