package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Default config should be valid, got errors: %v", errs)
	}
}

func hasFieldError(errs []ValidationError, field string) bool {
	for _, err := range errs {
		if err.Field == field {
			return true
		}
	}
	return false
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"relative base url", func(c *Config) { c.API.BaseURL = "localhost:8000" }, "api.base_url"},
		{"ftp base url", func(c *Config) { c.API.BaseURL = "ftp://host" }, "api.base_url"},
		{"prefix without slash", func(c *Config) { c.API.Prefix = "api/v1" }, "api.prefix"},
		{"zero request timeout", func(c *Config) { c.API.RequestTimeout = 0 }, "api.request_timeout"},
		{"empty source type", func(c *Config) { c.API.SourceType = " " }, "api.source_type"},
		{"poll interval too short", func(c *Config) { c.Poll.Interval = 10 * time.Millisecond }, "poll.interval"},
		{"negative max duration", func(c *Config) { c.Poll.MaxDuration = -time.Second }, "poll.max_duration"},
		{"max duration below interval", func(c *Config) { c.Poll.MaxDuration = 500 * time.Millisecond }, "poll.max_duration"},
		{"too many cleanup retries", func(c *Config) { c.Poll.CleanupRetries = 11 }, "poll.cleanup_retries"},
		{"negative cleanup retries", func(c *Config) { c.Poll.CleanupRetries = -1 }, "poll.cleanup_retries"},
		{"zero cleanup backoff", func(c *Config) { c.Poll.CleanupBackoff = 0 }, "poll.cleanup_backoff"},
		{"negative grace delay", func(c *Config) { c.Run.GraceDelay = -1 }, "run.grace_delay"},
		{"zero frame interval", func(c *Config) { c.Animation.FrameInterval = 0 }, "animation.frame_interval"},
		{"unknown stage duration", func(c *Config) { c.Animation.Durations["upload"] = time.Second }, "animation.durations.upload"},
		{"negative stage duration", func(c *Config) { c.Animation.Durations["train"] = -time.Second }, "animation.durations.train"},
		{"no file patterns", func(c *Config) { c.Files.Patterns = nil }, "files.patterns"},
		{"bad file pattern", func(c *Config) { c.Files.Patterns = []string{"[pdf"} }, "files.patterns[0]"},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"uppercase log level", func(c *Config) { c.Logging.Level = "INFO" }, "logging.level"},
		{"unknown tui mode", func(c *Config) { c.TUI.Mode = "sometimes" }, "tui.mode"},
		{"tui refresh too fast", func(c *Config) { c.TUI.RefreshInterval = time.Millisecond }, "tui.refresh_interval"},
		{"empty devserver addr", func(c *Config) { c.DevServer.Addr = "" }, "devserver.addr"},
		{"zero devserver step interval", func(c *Config) { c.DevServer.StepInterval = 0 }, "devserver.step_interval"},
		{"unknown devserver fail step", func(c *Config) { c.DevServer.FailStep = "upload" }, "devserver.fail_step"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			errs := cfg.Validate()
			if !hasFieldError(errs, tt.field) {
				t.Errorf("Validate() = %v, want error for %s", errs, tt.field)
			}
		})
	}
}

func TestConfig_Validate_AcceptsEdgeValues(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = ""
	cfg.Poll.MaxDuration = 0
	cfg.Poll.CleanupRetries = 0
	cfg.Run.GraceDelay = 0
	cfg.Animation.Durations["ready"] = 0
	cfg.API.Prefix = ""
	cfg.DevServer.FailStep = "train"

	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Validate() = %v, want no errors", errs)
	}
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := Default()
	cfg.API.RequestTimeout = 0
	cfg.Logging.Level = "loud"

	errs := cfg.Validate()
	if len(errs) < 2 {
		t.Errorf("Validate() returned %d errors, want at least 2", len(errs))
	}
}
