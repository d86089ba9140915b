// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/osa030/zora/internal/app/keys"
	"github.com/osa030/zora/internal/app/playback"
)

// Config represents the player configuration.
type Config struct {
	API         APIConfig         `yaml:"api"`
	User        string            `yaml:"user"`
	Preferences PreferencesConfig `yaml:"preferences"`
	Output      OutputConfig      `yaml:"output"`
	Playback    PlaybackConfig    `yaml:"playback"`
	Events      EventsConfig      `yaml:"events"`
	Hooks       HooksConfig       `yaml:"hooks"`
	Log         LogConfig         `yaml:"log"`
}

// APIConfig represents the catalog backend configuration.
type APIConfig struct {
	BaseURL      string        `yaml:"base_url" default:"http://localhost:8000/api" validate:"required,url"`
	AccessToken  string        `yaml:"access_token"`
	RefreshToken string        `yaml:"refresh_token"`
	Timeout      time.Duration `yaml:"timeout" default:"10s" validate:"gt=0"`
}

// PreferencesConfig selects the preference store backend.
type PreferencesConfig struct {
	Type     string         `yaml:"type" default:"file" validate:"oneof=memory file sqlite"`
	Settings map[string]any `yaml:"settings"`
}

// OutputConfig selects the media output.
type OutputConfig struct {
	Type     string         `yaml:"type" default:"simulated" validate:"oneof=simulated beep mpd"`
	Settings map[string]any `yaml:"settings"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	SkipInterval      time.Duration `yaml:"skip_interval" default:"10s" validate:"gt=0"`
	VolumeStep        int           `yaml:"volume_step" default:"5" validate:"gte=1,lte=100"`
	PreviousThreshold time.Duration `yaml:"previous_threshold" default:"3s" validate:"gt=0"`
	SeekWindow        time.Duration `yaml:"seek_window" default:"100ms" validate:"gt=0"`
	SnapshotMinDelta  time.Duration `yaml:"snapshot_min_delta" default:"500ms" validate:"gt=0"`
	DefaultVolume     int           `yaml:"default_volume" default:"70" validate:"gte=1,lte=100"`
}

// EventsConfig represents the now-playing event stream configuration.
// An empty address disables the stream.
type EventsConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	File  string `yaml:"file"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("ZORA_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("ZORA_ACCESS_TOKEN"); v != "" {
		c.API.AccessToken = v
	}
	if v := os.Getenv("ZORA_REFRESH_TOKEN"); v != "" {
		c.API.RefreshToken = v
	}
	if v := os.Getenv("ZORA_USER"); v != "" {
		c.User = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	if c.API.AccessToken == "" && c.API.RefreshToken == "" {
		return errors.New("api.access_token or api.refresh_token is required")
	}
	return nil
}

// EngineConfig returns the playback engine settings.
func (c *Config) EngineConfig() playback.Config {
	cfg := playback.DefaultConfig()
	cfg.SkipInterval = c.Playback.SkipInterval
	cfg.RestartThreshold = c.Playback.PreviousThreshold
	cfg.SeekWindow = c.Playback.SeekWindow
	cfg.DefaultVolume = c.Playback.DefaultVolume
	cfg.ReportTimeout = c.API.Timeout
	return cfg
}

// KeysConfig returns the keyboard binder settings.
func (c *Config) KeysConfig() keys.Config {
	return keys.Config{
		SkipInterval: c.Playback.SkipInterval,
		VolumeStep:   c.Playback.VolumeStep,
	}
}
