package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"mazegate/mazeimg"
	"mazegate/tracker"
)

// Config holds all mazegate configuration.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Maze    MazeConfig     `yaml:"maze"`
	Tracker tracker.Config `yaml:"tracker"`
	Store   StoreConfig    `yaml:"store"`
	Logging LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the HTTP host.
type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       string `yaml:"port"`
	SessionTTL string `yaml:"session_ttl"`
}

// MazeConfig configures the puzzle and its bitmap.
type MazeConfig struct {
	// File is the JSON maze; it is generated from the options below when
	// missing.
	File                  string `yaml:"file"`
	mazeimg.Options       `yaml:",inline"`
	mazeimg.RenderOptions `yaml:",inline"`
}

// StoreConfig configures the run ledger.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:       "localhost",
			Port:       "8079",
			SessionTTL: "10m",
		},
		Maze: MazeConfig{
			File:          "data/maze.json",
			Options:       mazeimg.Options{Width: 31, Height: 31, Seed: 42},
			RenderOptions: mazeimg.DefaultRenderOptions(),
		},
		Tracker: tracker.DefaultConfig(),
		Store: StoreConfig{
			Path: "data/mazegate.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MAZEGATE_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("MAZEGATE_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("MAZEGATE_DB"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("MAZEGATE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid server.port %q: %w", c.Server.Port, err)
	}
	if _, err := c.SessionTTLDuration(); err != nil {
		return err
	}
	if c.Maze.Width < mazeimg.MinSize || c.Maze.Height < mazeimg.MinSize {
		return fmt.Errorf("maze size %dx%d below minimum %d", c.Maze.Width, c.Maze.Height, mazeimg.MinSize)
	}
	if c.Maze.CellSize <= 0 {
		return fmt.Errorf("maze.cell_size must be positive, got %d", c.Maze.CellSize)
	}
	if c.Tracker.Threshold < 1 || c.Tracker.Threshold > tracker.MaxThreshold {
		return fmt.Errorf("tracker.threshold must be in 1..%d, got %d", tracker.MaxThreshold, c.Tracker.Threshold)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}
	return nil
}

// SessionTTLDuration parses Server.SessionTTL.
func (c *Config) SessionTTLDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Server.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid server.session_ttl %q: %w", c.Server.SessionTTL, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("server.session_ttl must be positive, got %s", d)
	}
	return d, nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
