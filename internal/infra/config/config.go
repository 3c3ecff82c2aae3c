// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/osa030/upnext/internal/domain/playlist"
	"github.com/osa030/upnext/internal/domain/track"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Admin    AdminConfig    `yaml:"admin"`
	Player   PlayerConfig   `yaml:"player"`
	Engine   EngineConfig   `yaml:"engine"`
	Playlist PlaylistConfig `yaml:"playlist"`

	// Filters gate play-next insertions, keyed by filter name
	Filters map[string]FilterConfig `yaml:"filters"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// AdminConfig represents control API access configuration.
type AdminConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// PlayerConfig represents playback behaviour.
type PlayerConfig struct {
	PreviousRestartSec int    `yaml:"previous_restart_sec" default:"5" validate:"gte=0,lte=600"`
	EventBuffer        int    `yaml:"event_buffer" default:"64" validate:"gte=1,lte=4096"`
	NotifyTimeoutMs    int    `yaml:"notify_timeout_ms" default:"500" validate:"gte=10,lte=10000"`
	Shuffle            bool   `yaml:"shuffle"`
	Repeat             string `yaml:"repeat" default:"off" validate:"oneof=off all one"`
	Logs               *bool  `yaml:"logs" default:"true"`
	AutoPlay           bool   `yaml:"auto_play"`
}

// EngineConfig selects and configures the media engine.
type EngineConfig struct {
	Type     string         `yaml:"type" default:"sim" validate:"required"`
	Settings map[string]any `yaml:"settings"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// PlaylistConfig is the main queue loaded at startup.
type PlaylistConfig struct {
	Name   string        `yaml:"name" default:"default"`
	Tracks []TrackConfig `yaml:"tracks" validate:"dive"`
}

// TrackConfig represents a single configured track.
type TrackConfig struct {
	URL    string `yaml:"url" validate:"required"`
	Name   string `yaml:"name"`
	Album  string `yaml:"album"`
	Artist string `yaml:"artist"`
	Image  string `yaml:"image"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

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
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
	if v := os.Getenv("UPNEXT_ENGINE"); v != "" {
		c.Engine.Type = v
	}
	if v := os.Getenv("UPNEXT_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// PreviousRestartThreshold returns how long a track must have played before
// Previous restarts it instead of stepping back.
func (p PlayerConfig) PreviousRestartThreshold() time.Duration {
	return time.Duration(p.PreviousRestartSec) * time.Second
}

// NotifyTimeout returns the per-subscriber send timeout.
func (p PlayerConfig) NotifyTimeout() time.Duration {
	return time.Duration(p.NotifyTimeoutMs) * time.Millisecond
}

// LogsEnabled reports whether coordinator tracing is on. Defaults to true.
func (p PlayerConfig) LogsEnabled() bool {
	return p.Logs == nil || *p.Logs
}

// BuildPlaylist converts the configured tracks into a playlist.
func (p PlaylistConfig) BuildPlaylist() playlist.Playlist {
	tracks := make([]track.Track, 0, len(p.Tracks))
	for _, tc := range p.Tracks {
		name := tc.Name
		if name == "" {
			name = tc.URL
		}
		tracks = append(tracks, track.New(tc.URL, name, tc.Album, tc.Artist, tc.Image))
	}
	return playlist.Playlist{Name: p.Name, Tracks: tracks}
}
