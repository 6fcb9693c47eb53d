package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/fabricctl/internal/step"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "poll.interval")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateAPI()...)
	errors = append(errors, c.validatePoll()...)
	errors = append(errors, c.validateRun()...)
	errors = append(errors, c.validateAnimation()...)
	errors = append(errors, c.validateFiles()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateTUI()...)
	errors = append(errors, c.validateDevServer()...)

	return errors
}

// validateAPI validates the APIConfig
func (c *Config) validateAPI() []ValidationError {
	var errors []ValidationError

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "api.base_url",
			Value:   c.API.BaseURL,
			Message: "must be an absolute http or https URL",
		})
	}

	if c.API.Prefix != "" && !strings.HasPrefix(c.API.Prefix, "/") {
		errors = append(errors, ValidationError{
			Field:   "api.prefix",
			Value:   c.API.Prefix,
			Message: "must start with /",
		})
	}

	if c.API.RequestTimeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "api.request_timeout",
			Value:   c.API.RequestTimeout,
			Message: "must be positive",
		})
	}

	if strings.TrimSpace(c.API.SourceType) == "" {
		errors = append(errors, ValidationError{
			Field:   "api.source_type",
			Value:   c.API.SourceType,
			Message: "must not be empty",
		})
	}

	return errors
}

// validatePoll validates the PollConfig
func (c *Config) validatePoll() []ValidationError {
	var errors []ValidationError

	// Anything faster hammers the backend without visible benefit
	const minInterval = 100 * time.Millisecond
	if c.Poll.Interval < minInterval {
		errors = append(errors, ValidationError{
			Field:   "poll.interval",
			Value:   c.Poll.Interval,
			Message: fmt.Sprintf("must be at least %s", minInterval),
		})
	}

	if c.Poll.MaxDuration < 0 {
		errors = append(errors, ValidationError{
			Field:   "poll.max_duration",
			Value:   c.Poll.MaxDuration,
			Message: "must be non-negative (0 disables the limit)",
		})
	} else if c.Poll.MaxDuration > 0 && c.Poll.MaxDuration < c.Poll.Interval {
		errors = append(errors, ValidationError{
			Field:   "poll.max_duration",
			Value:   c.Poll.MaxDuration,
			Message: "must be at least one poll interval",
		})
	}

	const maxCleanupRetries = 10
	if c.Poll.CleanupRetries < 0 || c.Poll.CleanupRetries > maxCleanupRetries {
		errors = append(errors, ValidationError{
			Field:   "poll.cleanup_retries",
			Value:   c.Poll.CleanupRetries,
			Message: fmt.Sprintf("must be between 0 and %d", maxCleanupRetries),
		})
	}

	if c.Poll.CleanupBackoff <= 0 {
		errors = append(errors, ValidationError{
			Field:   "poll.cleanup_backoff",
			Value:   c.Poll.CleanupBackoff,
			Message: "must be positive",
		})
	}

	return errors
}

// validateRun validates the RunConfig
func (c *Config) validateRun() []ValidationError {
	var errors []ValidationError

	if c.Run.GraceDelay < 0 {
		errors = append(errors, ValidationError{
			Field:   "run.grace_delay",
			Value:   c.Run.GraceDelay,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateAnimation validates the AnimationConfig
func (c *Config) validateAnimation() []ValidationError {
	var errors []ValidationError

	if c.Animation.FrameInterval <= 0 || c.Animation.FrameInterval > time.Second {
		errors = append(errors, ValidationError{
			Field:   "animation.frame_interval",
			Value:   c.Animation.FrameInterval,
			Message: "must be between 0 and 1s",
		})
	}

	known := make(map[string]bool)
	for _, d := range step.DefaultDefinitions() {
		known[d.ID] = true
	}
	ids := make([]string, 0, len(c.Animation.Durations))
	for id := range c.Animation.Durations {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		field := "animation.durations." + id
		if !known[id] {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   id,
				Message: "unknown stage id",
			})
			continue
		}
		if d := c.Animation.Durations[id]; d < 0 {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   d,
				Message: "must be non-negative",
			})
		}
	}

	return errors
}

// validateFiles validates the FilesConfig
func (c *Config) validateFiles() []ValidationError {
	var errors []ValidationError

	if len(c.Files.Patterns) == 0 {
		errors = append(errors, ValidationError{
			Field:   "files.patterns",
			Value:   c.Files.Patterns,
			Message: "at least one pattern is required",
		})
	}
	for i, p := range c.Files.Patterns {
		if _, err := glob.Compile(strings.ToLower(p)); err != nil || strings.TrimSpace(p) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("files.patterns[%d]", i),
				Value:   p,
				Message: "invalid glob pattern",
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

// validateTUI validates the TUIConfig
func (c *Config) validateTUI() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidTUIModes(), c.TUI.Mode) {
		errors = append(errors, ValidationError{
			Field:   "tui.mode",
			Value:   c.TUI.Mode,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidTUIModes(), ", ")),
		})
	}

	if c.TUI.RefreshInterval < 10*time.Millisecond {
		errors = append(errors, ValidationError{
			Field:   "tui.refresh_interval",
			Value:   c.TUI.RefreshInterval,
			Message: "must be at least 10ms",
		})
	}

	return errors
}

// validateDevServer validates the DevServerConfig
func (c *Config) validateDevServer() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.DevServer.Addr) == "" {
		errors = append(errors, ValidationError{
			Field:   "devserver.addr",
			Value:   c.DevServer.Addr,
			Message: "must not be empty",
		})
	}

	if c.DevServer.StepInterval <= 0 {
		errors = append(errors, ValidationError{
			Field:   "devserver.step_interval",
			Value:   c.DevServer.StepInterval,
			Message: "must be positive",
		})
	}

	if c.DevServer.FailStep != "" {
		if _, ok := step.NewModel(step.DefaultDefinitions()).IndexOf(c.DevServer.FailStep); !ok {
			errors = append(errors, ValidationError{
				Field:   "devserver.fail_step",
				Value:   c.DevServer.FailStep,
				Message: "unknown stage id",
			})
		}
	}

	return errors
}
