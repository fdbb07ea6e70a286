// Package config loads fingerspell settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/ayusman/fingerspell/internal/gesture"
	"github.com/ayusman/fingerspell/internal/pose"
	"github.com/ayusman/fingerspell/internal/session"
	"github.com/ayusman/fingerspell/internal/spell"
)

const (
	// DefaultBaseDir is the per-user data directory name.
	DefaultBaseDir = ".fingerspell"
	// DefaultConfigFile is the config filename inside DefaultBaseDir.
	DefaultConfigFile = "config.yaml"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Store       StoreConfig       `yaml:"store"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Session     SessionConfig     `yaml:"session"`
	Spell       SpellConfig       `yaml:"spell"`
	Camera      CameraConfig      `yaml:"camera"`
	Tray        TrayConfig        `yaml:"tray"`
	Plugins     PluginsConfig     `yaml:"plugins"`

	path string
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr"`

	// StaticDir serves a web UI. Empty searches the usual locations.
	StaticDir string `yaml:"static_dir,omitempty"`
}

// StoreConfig selects and locates dataset persistence.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	Dir     string `yaml:"dir"`
}

// RecognitionConfig tunes classification and stabilization.
type RecognitionConfig struct {
	Threshold        float64 `yaml:"threshold"`
	SampleIntervalMs int     `yaml:"sample_interval_ms"`
	WindowMs         int     `yaml:"window_ms"`
	RequiredRatio    float64 `yaml:"required_ratio"`
	MirrorLeft       bool    `yaml:"mirror_left"`
	FrameTTLMs       int     `yaml:"frame_ttl_ms"`
}

// SessionConfig holds defaults for new sessions.
type SessionConfig struct {
	Language string `yaml:"language"`
	Side     string `yaml:"side"`
}

// SpellConfig configures spellchecking.
type SpellConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BaseURL    string `yaml:"base_url"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	Dictionary string `yaml:"dictionary,omitempty"`
	CacheDir   string `yaml:"cache_dir,omitempty"`
}

// CameraConfig configures the local camera source.
type CameraConfig struct {
	Enabled bool `yaml:"enabled"`
	Device  int  `yaml:"device"`
	FPS     int  `yaml:"fps"`
	Mirror  bool `yaml:"mirror"`

	// LandmarkerScript and LandmarkerPython override the searched
	// MediaPipe service paths.
	LandmarkerScript string `yaml:"landmarker_script,omitempty"`
	LandmarkerPython string `yaml:"landmarker_python,omitempty"`
}

// TrayConfig configures the system tray.
type TrayConfig struct {
	Enabled bool `yaml:"enabled"`
}

// PluginsConfig selects output plugins that receive emitted symbols.
type PluginsConfig struct {
	Dir       string   `yaml:"dir"`
	Enabled   []string `yaml:"enabled,omitempty"`
	TimeoutMs int      `yaml:"timeout_ms"`

	// Settings holds per-plugin options forwarded as JSON.
	Settings map[string]map[string]any `yaml:"settings,omitempty"`
}

// Default returns the built-in configuration rooted at the user's home.
func Default() *Config {
	base := DefaultBaseDir
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, DefaultBaseDir)
	}

	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Store: StoreConfig{
			Backend: BackendSQLite,
			Path:    filepath.Join(base, "fingerspell.db"),
			Dir:     filepath.Join(base, "gesture"),
		},
		Recognition: RecognitionConfig{
			Threshold:        gesture.DefaultThreshold,
			SampleIntervalMs: int(gesture.DefaultSampleInterval / time.Millisecond),
			WindowMs:         int(gesture.DefaultWindow / time.Millisecond),
			RequiredRatio:    gesture.DefaultRequiredRatio,
			FrameTTLMs:       1000,
		},
		Session: SessionConfig{
			Language: "auslan",
			Side:     string(gesture.SideLeft),
		},
		Spell: SpellConfig{
			Enabled:   true,
			BaseURL:   spell.DefaultBaseURL,
			TimeoutMs: 5000,
		},
		Camera: CameraConfig{
			Device: 0,
			FPS:    15,
			Mirror: true,
		},
		Plugins: PluginsConfig{
			Dir:       filepath.Join(base, "plugins"),
			TimeoutMs: 2000,
		},
	}
}

// DefaultPath returns ~/.fingerspell/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DefaultBaseDir, DefaultConfigFile), nil
}

// Load reads the config at path over the defaults. An empty path means the
// default location; a missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Store.Path = expandHome(cfg.Store.Path)
	cfg.Store.Dir = expandHome(cfg.Store.Dir)
	cfg.Spell.Dictionary = expandHome(cfg.Spell.Dictionary)
	cfg.Spell.CacheDir = expandHome(cfg.Spell.CacheDir)
	cfg.Plugins.Dir = expandHome(cfg.Plugins.Dir)
	cfg.Camera.LandmarkerScript = expandHome(cfg.Camera.LandmarkerScript)
	cfg.Camera.LandmarkerPython = expandHome(cfg.Camera.LandmarkerPython)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to its path, creating the directory if needed.
func (c *Config) Save() error {
	if c.path == "" {
		return fmt.Errorf("%w: no path", ErrInvalid)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	r := c.Recognition
	switch {
	case r.Threshold < 0:
		return fmt.Errorf("%w: recognition.threshold must not be negative", ErrInvalid)
	case r.SampleIntervalMs <= 0:
		return fmt.Errorf("%w: recognition.sample_interval_ms must be positive", ErrInvalid)
	case r.WindowMs <= 0:
		return fmt.Errorf("%w: recognition.window_ms must be positive", ErrInvalid)
	case r.RequiredRatio <= 0 || r.RequiredRatio > 1:
		return fmt.Errorf("%w: recognition.required_ratio must be in (0, 1]", ErrInvalid)
	case r.FrameTTLMs < 0:
		return fmt.Errorf("%w: recognition.frame_ttl_ms must not be negative", ErrInvalid)
	}

	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for the sqlite backend", ErrInvalid)
		}
	case BackendFile:
		if c.Store.Dir == "" {
			return fmt.Errorf("%w: store.dir is required for the file backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown store.backend %q", ErrInvalid, c.Store.Backend)
	}

	if _, err := gesture.ParseSide(c.Session.Side); err != nil {
		return fmt.Errorf("%w: session.side: %v", ErrInvalid, err)
	}
	if strings.TrimSpace(c.Session.Language) == "" {
		return fmt.Errorf("%w: session.language is required", ErrInvalid)
	}
	if c.Spell.TimeoutMs < 0 {
		return fmt.Errorf("%w: spell.timeout_ms must not be negative", ErrInvalid)
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("%w: camera.fps must be positive", ErrInvalid)
	}
	if c.Plugins.TimeoutMs < 0 {
		return fmt.Errorf("%w: plugins.timeout_ms must not be negative", ErrInvalid)
	}
	if len(c.Plugins.Enabled) > 0 && c.Plugins.Dir == "" {
		return fmt.Errorf("%w: plugins.dir is required when plugins are enabled", ErrInvalid)
	}
	return nil
}

// SessionOptions converts the recognition and session sections into
// defaults for new sessions. Store and Checker are left for the caller.
func (c *Config) SessionOptions() session.Options {
	side, _ := gesture.ParseSide(c.Session.Side)
	opts := session.DefaultOptions()
	opts.Language = c.Session.Language
	opts.Side = side
	opts.Threshold = c.Recognition.Threshold
	opts.SampleInterval = c.SampleInterval()
	opts.Window = time.Duration(c.Recognition.WindowMs) * time.Millisecond
	opts.RequiredRatio = c.Recognition.RequiredRatio
	opts.Normalize = pose.Options{DisableMirror: !c.Recognition.MirrorLeft}
	opts.FrameTTL = time.Duration(c.Recognition.FrameTTLMs) * time.Millisecond
	opts.SpellTimeout = time.Duration(c.Spell.TimeoutMs) * time.Millisecond
	return opts
}

// SampleInterval returns the tick period.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.Recognition.SampleIntervalMs) * time.Millisecond
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
