// Package devserver is an in-memory stand-in for the knowledge fabric
// backend. Jobs advance through the pipeline stages on the server clock, so
// the client can be exercised end to end without the real service.
package devserver

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/fabricctl/internal/api"
	"github.com/Iron-Ham/fabricctl/internal/clock"
	"github.com/Iron-Ham/fabricctl/internal/logging"
	"github.com/Iron-Ham/fabricctl/internal/step"
)

// DefaultStepInterval is how long a simulated job spends in each stage.
const DefaultStepInterval = 500 * time.Millisecond

// shutdownTimeout bounds graceful shutdown once Run's context ends.
const shutdownTimeout = 5 * time.Second

// Server serves the knowledge endpoints from an in-memory store.
type Server struct {
	echo     *echo.Echo
	store    *store
	pipeline pipeline
	clock    clock.Clock
	logger   *logging.Logger

	failStep     string
	omitJobID    bool
	rejectDetail string
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock simulated jobs advance on.
func WithClock(c clock.Clock) Option {
	return func(s *Server) {
		s.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithDefinitions replaces the simulated stages.
func WithDefinitions(defs []step.Definition) Option {
	return func(s *Server) {
		if len(defs) > 0 {
			s.pipeline.defs = defs
		}
	}
}

// WithStepInterval sets the time spent per stage.
func WithStepInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pipeline.interval = d
		}
	}
}

// WithFailStep makes every job fail when it reaches the stage id. An empty
// or unknown id disables failure.
func WithFailStep(id string) Option {
	return func(s *Server) {
		s.failStep = id
	}
}

// WithOmitJobID answers creation requests without any identifier.
func WithOmitJobID(enabled bool) Option {
	return func(s *Server) {
		s.omitJobID = enabled
	}
}

// WithRejectDetail rejects every creation request with a 400 carrying the
// detail message. Empty accepts requests.
func WithRejectDetail(detail string) Option {
	return func(s *Server) {
		s.rejectDetail = detail
	}
}

// New builds a Server whose knowledge routes live under prefix.
func New(prefix string, opts ...Option) *Server {
	s := &Server{
		store: newStore(),
		pipeline: pipeline{
			defs:     step.DefaultDefinitions(),
			interval: DefaultStepInterval,
			failAt:   -1,
		},
		clock:  clock.Real(),
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for i, d := range s.pipeline.defs {
		if d.ID == s.failStep {
			s.pipeline.failAt = i
		}
	}
	s.echo = s.build(prefix)
	return s
}

func (s *Server) build(prefix string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			begin := time.Now()
			err := next(c)
			s.logger.Debug("request served",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration", time.Since(begin),
				"error", err,
			)
			return err
		}
	})

	base := "/" + strings.Trim(prefix, "/")
	if base == "/" {
		base = ""
	}
	knowledge := e.Group(base + "/knowledge")
	knowledge.POST("/create-pdf-fabric", createHandler(s))
	knowledge.GET("/progress/:id", getProgressHandler(s))
	knowledge.DELETE("/progress/:id", deleteProgressHandler(s))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, api.HealthStatus{Status: "healthy"})
	})
	return e
}

// Handler exposes the routes, for mounting on httptest servers.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Jobs returns the number of jobs whose progress has not been cleared.
func (s *Server) Jobs() int {
	return s.store.len()
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.echo.Listener = ln
	s.logger.Info("dev server listening", "addr", ln.Addr().String())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.echo.Start(""); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// handleError renders every failure as {"detail": "..."}.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	detail := http.StatusText(code)
	var he *echo.HTTPError
	if stderrors.As(err, &he) {
		code = he.Code
		detail = fmt.Sprint(he.Message)
	}
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request().URL.Path, "error", err)
	}
	if err := c.JSON(code, map[string]string{"detail": detail}); err != nil {
		s.logger.Warn("write error response", "error", err)
	}
}

func createHandler(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req api.CreateJobRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
		}
		if s.rejectDetail != "" {
			return echo.NewHTTPError(http.StatusBadRequest, s.rejectDetail)
		}
		if len(req.Files) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "No files provided")
		}

		j := s.store.create(req.Files, s.clock.Now())
		s.logger.Info("fabric job created", "job_id", j.id, "files", len(j.files), "train_model", req.TrainModel)

		data := api.CreateJobData{
			FabricName: j.files[0],
			Status:     "processing",
		}
		if !s.omitJobID {
			data.SourceID = j.fabricID
			data.ProgressID = j.id
		}
		return c.JSON(http.StatusOK, api.Envelope[api.CreateJobData]{
			Success: true,
			Message: "Knowledge fabric creation started",
			Data:    &data,
		})
	}
}

func getProgressHandler(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		j, ok := s.store.get(c.Param("id"))
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, "Progress not found")
		}
		snap := s.pipeline.snapshot(j, s.clock.Now())
		return c.JSON(http.StatusOK, api.Envelope[api.ProgressSnapshot]{
			Success: true,
			Data:    &snap,
		})
	}
}

func deleteProgressHandler(s *Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.store.remove(c.Param("id")) {
			return echo.NewHTTPError(http.StatusNotFound, "Progress not found")
		}
		return c.JSON(http.StatusOK, api.Envelope[struct{}]{
			Success: true,
			Message: "Progress cleared",
		})
	}
}
