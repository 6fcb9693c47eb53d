package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/Iron-Ham/fabricctl/internal/errors"
)

// CreateJob submits the fabric creation request. It is a single exchange
// with no retry, bounded by the request timeout. Any failure is returned as
// a *errors.SubmissionError or, when the bound expires, *errors.TimeoutError.
// The returned handle has an empty ID if the backend issued no identifier.
func (c *Client) CreateJob(ctx context.Context, req CreateJobRequest) (JobHandle, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return JobHandle{}, errors.NewSubmissionError(0, "").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.apipath("knowledge", "create-pdf-fabric"), bytes.NewReader(body),
	)
	if err != nil {
		return JobHandle{}, errors.NewSubmissionError(0, "").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpclient.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return JobHandle{}, errors.NewTimeoutError("creating knowledge fabric", c.requestTimeout).
				WithCause(err).
				WithRetryable(false)
		}
		return JobHandle{}, errors.NewSubmissionError(0, "").WithCause(err)
	}
	defer resp.Body.Close()

	if StatusCodeRangeOf(resp) != Status2xx {
		msg := readServerMessage(resp)
		c.logger.Warn("fabric creation rejected", "status", resp.StatusCode, "detail", msg)
		return JobHandle{}, errors.NewSubmissionError(resp.StatusCode, msg)
	}

	env, err := decodeEnvelope[CreateJobData](resp)
	if err != nil {
		return JobHandle{}, errors.NewSubmissionError(resp.StatusCode, "").WithCause(err)
	}
	if !env.Success {
		msg := env.ServerMessage()
		c.logger.Warn("fabric creation refused", "status", resp.StatusCode, "detail", msg)
		return JobHandle{}, errors.NewSubmissionError(resp.StatusCode, msg)
	}

	h := JobHandle{
		Files:     append([]string(nil), req.Files...),
		CreatedAt: c.clock.Now(),
	}
	if env.Data != nil {
		h.ID = env.Data.JobID()
		h.SourceID = env.Data.SourceID
	}
	return h, nil
}

// GetProgress fetches the progress snapshot of jobID. Any 2xx response
// with a data object is a snapshot, whatever its success flag says; the
// caller judges the snapshot's status and error. Every failure is a
// *errors.TransientPollError and the caller decides whether to keep polling.
func (c *Client) GetProgress(ctx context.Context, jobID string) (ProgressSnapshot, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apipath("knowledge", "progress", jobID), nil)
	if err != nil {
		return ProgressSnapshot{}, errors.NewTransientPollError(jobID, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return ProgressSnapshot{}, errors.NewTransientPollError(jobID, err)
	}
	defer resp.Body.Close()

	if StatusCodeRangeOf(resp) != Status2xx {
		msg := readServerMessage(resp)
		if msg == "" {
			msg = StatusCodeRangeOf(resp).String()
		}
		return ProgressSnapshot{}, errors.NewTransientPollError(jobID, errors.New(msg)).
			WithStatusCode(resp.StatusCode)
	}

	env, err := decodeEnvelope[ProgressSnapshot](resp)
	if err != nil {
		return ProgressSnapshot{}, errors.NewTransientPollError(jobID, err).WithStatusCode(resp.StatusCode)
	}
	if env.Data == nil {
		msg := env.ServerMessage()
		if msg == "" {
			msg = "response carried no progress data"
		}
		return ProgressSnapshot{}, errors.NewTransientPollError(jobID, errors.New(msg)).
			WithStatusCode(resp.StatusCode)
	}
	return *env.Data, nil
}

// DeleteProgress asks the backend to release the progress state of jobID.
// The response body is ignored; only transport errors and non-2xx statuses
// are reported. Transport failures are returned as they come from
// net/http and classify as retryable.
func (c *Client) DeleteProgress(ctx context.Context, jobID string) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.apipath("knowledge", "progress", jobID), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if StatusCodeRangeOf(resp) != Status2xx {
		msg := readServerMessage(resp)
		if msg == "" {
			msg = StatusCodeRangeOf(resp).String()
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}
	return nil
}

// Health checks the backend's health endpoint, which lives at the server
// root rather than under the API prefix.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.root+"/health", nil)
	if err != nil {
		return HealthStatus{}, err
	}

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return HealthStatus{}, err
	}
	defer resp.Body.Close()

	if StatusCodeRangeOf(resp) != Status2xx {
		return HealthStatus{}, &StatusError{StatusCode: resp.StatusCode, Message: readServerMessage(resp)}
	}

	var hs HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		return HealthStatus{}, errors.Wrap(err, "decode health response")
	}
	return hs, nil
}

// bound applies the request timeout to ctx.
func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

// StatusError is a non-2xx response from an endpoint whose body is
// otherwise ignored.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.StatusCode)
	}
	return e.Message
}

// Retryable reports whether repeating the request may succeed.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}
