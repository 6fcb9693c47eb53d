package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/fabricctl/internal/step"
)

// EnvPrefix prefixes every environment variable that overrides a config key,
// e.g. FABRICCTL_API_BASE_URL for api.base_url.
const EnvPrefix = "FABRICCTL"

// Config represents the complete fabricctl configuration
type Config struct {
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Poll      PollConfig      `mapstructure:"poll" yaml:"poll"`
	Run       RunConfig       `mapstructure:"run" yaml:"run"`
	Animation AnimationConfig `mapstructure:"animation" yaml:"animation"`
	Files     FilesConfig     `mapstructure:"files" yaml:"files"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	TUI       TUIConfig       `mapstructure:"tui" yaml:"tui"`
	DevServer DevServerConfig `mapstructure:"devserver" yaml:"devserver"`
}

// APIConfig locates the fabric backend
type APIConfig struct {
	// BaseURL is the backend origin (default: http://localhost:8000)
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// Prefix is prepended to every API path (default: /api/v1)
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
	// RequestTimeout bounds each backend request (default: 30s)
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	// SourceType is sent as source_type with the creation request
	SourceType string `mapstructure:"source_type" yaml:"source_type"`
	// TrainModel asks the backend to run the training stage
	TrainModel bool `mapstructure:"train_model" yaml:"train_model"`
}

// PollConfig controls the progress poller
type PollConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	// MaxDuration ends a run with a timeout error when no terminal snapshot
	// arrives in time (0 = wait forever)
	MaxDuration time.Duration `mapstructure:"max_duration" yaml:"max_duration"`
	// CleanupOnError also releases progress state after a backend failure
	CleanupOnError bool          `mapstructure:"cleanup_on_error" yaml:"cleanup_on_error"`
	CleanupRetries int           `mapstructure:"cleanup_retries" yaml:"cleanup_retries"`
	CleanupBackoff time.Duration `mapstructure:"cleanup_backoff" yaml:"cleanup_backoff"`
}

// RunConfig controls run finalization
type RunConfig struct {
	// GraceDelay is the pause between reaching 100% and reporting completion
	GraceDelay time.Duration `mapstructure:"grace_delay" yaml:"grace_delay"`
	// WaitForBackend finalizes only on a terminal backend snapshot
	WaitForBackend bool `mapstructure:"wait_for_backend" yaml:"wait_for_backend"`
}

// AnimationConfig controls the local stage animation
type AnimationConfig struct {
	FrameInterval time.Duration `mapstructure:"frame_interval" yaml:"frame_interval"`
	// Durations overrides the animation length of a stage by id
	Durations map[string]time.Duration `mapstructure:"durations" yaml:"durations"`
}

// FilesConfig controls which file references a run accepts
type FilesConfig struct {
	// Patterns are case-insensitive globs matched against base names
	Patterns []string `mapstructure:"patterns" yaml:"patterns"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled turns on logging (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the minimum log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir receives fabricctl.log; empty logs to stderr when no TUI is shown
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// TUIConfig controls the terminal UI
type TUIConfig struct {
	// Mode is "auto" (TUI on a terminal), "always" or "never"
	Mode string `mapstructure:"mode" yaml:"mode"`
	// RefreshInterval is how often the view re-reads run state
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`
}

// DevServerConfig controls the development backend
type DevServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
	// StepInterval is how long the simulated pipeline spends per stage
	StepInterval time.Duration `mapstructure:"step_interval" yaml:"step_interval"`
	// FailStep makes jobs fail when they reach this stage id
	FailStep string `mapstructure:"fail_step" yaml:"fail_step"`
	// OmitJobID returns creation responses without an id
	OmitJobID bool `mapstructure:"omit_job_id" yaml:"omit_job_id"`
	// RejectDetail rejects creation requests with this detail message
	RejectDetail string `mapstructure:"reject_detail" yaml:"reject_detail"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	durations := make(map[string]time.Duration)
	for _, d := range step.DefaultDefinitions() {
		durations[d.ID] = d.Duration
	}
	return &Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8000",
			Prefix:         "/api/v1",
			RequestTimeout: 30 * time.Second,
			SourceType:     "pdf",
			TrainModel:     true,
		},
		Poll: PollConfig{
			Interval:       time.Second,
			MaxDuration:    0, // Wait until the backend reports a terminal state
			CleanupOnError: true,
			CleanupRetries: 3,
			CleanupBackoff: 250 * time.Millisecond,
		},
		Run: RunConfig{
			GraceDelay:     2 * time.Second,
			WaitForBackend: false,
		},
		Animation: AnimationConfig{
			FrameInterval: 16 * time.Millisecond, // ~60 frames per second
			Durations:     durations,
		},
		Files: FilesConfig{
			Patterns: []string{"*.pdf", "*.txt", "*.docx"},
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			Dir:     "",
		},
		TUI: TUIConfig{
			Mode:            "auto",
			RefreshInterval: 100 * time.Millisecond,
		},
		DevServer: DevServerConfig{
			Addr:         "127.0.0.1:8000",
			StepInterval: 500 * time.Millisecond,
		},
	}
}

// Definitions returns the default stages with the configured durations.
func (c *Config) Definitions() []step.Definition {
	return step.WithDurations(step.DefaultDefinitions(), c.Animation.Durations)
}

// SetDefaults registers default values with viper
func SetDefaults() {
	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	defaults := Default()

	// API defaults
	v.SetDefault("api.base_url", defaults.API.BaseURL)
	v.SetDefault("api.prefix", defaults.API.Prefix)
	v.SetDefault("api.request_timeout", defaults.API.RequestTimeout)
	v.SetDefault("api.source_type", defaults.API.SourceType)
	v.SetDefault("api.train_model", defaults.API.TrainModel)

	// Poll defaults
	v.SetDefault("poll.interval", defaults.Poll.Interval)
	v.SetDefault("poll.max_duration", defaults.Poll.MaxDuration)
	v.SetDefault("poll.cleanup_on_error", defaults.Poll.CleanupOnError)
	v.SetDefault("poll.cleanup_retries", defaults.Poll.CleanupRetries)
	v.SetDefault("poll.cleanup_backoff", defaults.Poll.CleanupBackoff)

	// Run defaults
	v.SetDefault("run.grace_delay", defaults.Run.GraceDelay)
	v.SetDefault("run.wait_for_backend", defaults.Run.WaitForBackend)

	// Animation defaults
	v.SetDefault("animation.frame_interval", defaults.Animation.FrameInterval)
	for id, d := range defaults.Animation.Durations {
		v.SetDefault("animation.durations."+id, d)
	}

	// Files defaults
	v.SetDefault("files.patterns", defaults.Files.Patterns)

	// Logging defaults
	v.SetDefault("logging.enabled", defaults.Logging.Enabled)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.dir", defaults.Logging.Dir)

	// TUI defaults
	v.SetDefault("tui.mode", defaults.TUI.Mode)
	v.SetDefault("tui.refresh_interval", defaults.TUI.RefreshInterval)

	// Dev server defaults
	v.SetDefault("devserver.addr", defaults.DevServer.Addr)
	v.SetDefault("devserver.step_interval", defaults.DevServer.StepInterval)
	v.SetDefault("devserver.fail_step", defaults.DevServer.FailStep)
	v.SetDefault("devserver.omit_job_id", defaults.DevServer.OmitJobID)
	v.SetDefault("devserver.reject_detail", defaults.DevServer.RejectDetail)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load against a specific viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an
// error unless required is true.
func LoadEnvFile(path string, required bool) error {
	err := godotenv.Load(path)
	if err != nil && !required && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// YAML renders cfg as a config file.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteDefault writes the default configuration to path, creating parent
// directories. It refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fs.ErrExist
	}
	data, err := Default().YAML()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fabricctl")
	}
	// Fall back to ~/.config/fabricctl
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fabricctl"
	}
	return filepath.Join(home, ".config", "fabricctl")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidTUIModes returns the accepted tui.mode values
func ValidTUIModes() []string {
	return []string{"auto", "always", "never"}
}
