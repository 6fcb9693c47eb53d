// Package api is the HTTP client for the knowledge fabric backend.
//
// It covers the three exchanges a fabric run needs (create the job, fetch a
// progress snapshot, release the snapshot) plus the health check. Failures
// are reported with the typed errors from internal/errors so callers can
// tell a rejected submission from a transient poll failure.
package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Iron-Ham/fabricctl/internal/clock"
	"github.com/Iron-Ham/fabricctl/internal/errors"
	"github.com/Iron-Ham/fabricctl/internal/logging"
)

// Defaults matching the reference backend.
const (
	DefaultBaseURL        = "http://localhost:8000"
	DefaultPrefix         = "/api/v1"
	DefaultRequestTimeout = 30 * time.Second
	DefaultSourceType     = "pdf"
)

// Backend is the set of exchanges the orchestrator and poller rely on.
// *Client implements it; tests substitute fakes.
type Backend interface {
	CreateJob(ctx context.Context, req CreateJobRequest) (JobHandle, error)
	GetProgress(ctx context.Context, jobID string) (ProgressSnapshot, error)
	DeleteProgress(ctx context.Context, jobID string) error
}

// Client talks to the fabric backend over HTTP+JSON.
type Client struct {
	httpclient     *http.Client
	root           string
	api            string
	requestTimeout time.Duration
	clock          clock.Clock
	logger         *logging.Logger
}

var _ Backend = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpclient = hc
		}
	}
}

// WithRequestTimeout bounds every request, so a stalled backend cannot
// hold a fetch or a cleanup attempt open. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.requestTimeout = d
	}
}

// WithClock sets the clock used to stamp job handles.
func WithClock(cl clock.Clock) Option {
	return func(c *Client) {
		c.clock = cl
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a Client for baseURL with the API prefix (for example
// "/api/v1") prepended to every path.
func NewClient(baseURL, prefix string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, errors.NewValidationError("invalid base URL").WithField("api.base_url").WithValue(baseURL).WithCause(err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.NewValidationError("base URL must be http or https").WithField("api.base_url").WithValue(baseURL)
	}
	if u.Host == "" {
		return nil, errors.NewValidationError("base URL has no host").WithField("api.base_url").WithValue(baseURL)
	}

	root := strings.TrimSuffix(u.String(), "/")
	api := root
	if p := strings.Trim(prefix, "/"); p != "" {
		api += "/" + p
	}

	c := &Client{
		httpclient:     &http.Client{},
		root:           root,
		api:            api,
		requestTimeout: DefaultRequestTimeout,
		clock:          clock.Real(),
		logger:         logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root every path is joined to.
func (c *Client) BaseURL() string {
	return c.api
}

// apipath joins path segments onto the API root. Segments are escaped.
func (c *Client) apipath(path ...string) string {
	parts := make([]string, 0, len(path)+1)
	parts = append(parts, c.api)
	for _, p := range path {
		parts = append(parts, url.PathEscape(strings.Trim(p, "/")))
	}
	return strings.Join(parts, "/")
}
