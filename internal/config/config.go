package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables that override the config file.
const (
	EnvEndpoint         = "CHATSYNC_ENDPOINT"
	EnvKey              = "CHATSYNC_KEY"
	EnvRealtimeEndpoint = "CHATSYNC_REALTIME_ENDPOINT"
	EnvLogLevel         = "CHATSYNC_LOG_LEVEL"
)

const defaultTimeout = 10 * time.Second

// Duration is a time.Duration that encodes as a Go duration string ("10s") in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Remote points at the authoritative store.
type Remote struct {
	Endpoint         string `toml:"endpoint"`
	Key              string `toml:"key"`
	RealtimeEndpoint string `toml:"realtime_endpoint,omitempty"`
}

// Timeouts bounds the sync layer's blocking calls.
type Timeouts struct {
	Session Duration `toml:"session"`
	Fetch   Duration `toml:"fetch"`
}

type Log struct {
	Level string `toml:"level"`
}

// Config represents the global ~/.chatsync/config.toml.
type Config struct {
	DefaultWorkspace string   `toml:"default_workspace"`
	Remote           Remote   `toml:"remote"`
	Timeouts         Timeouts `toml:"timeouts"`
	Log              Log      `toml:"log"`
}

// Default returns a config with every optional field filled.
func Default() *Config {
	return &Config{
		Timeouts: Timeouts{
			Session: Duration{defaultTimeout},
			Fetch:   Duration{defaultTimeout},
		},
		Log: Log{Level: "info"},
	}
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

// LoadOrDefault reads the config file if present, then applies environment overrides.
// A missing file is not an error.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup is os.LookupEnv outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&c.Remote.Endpoint, EnvEndpoint)
	set(&c.Remote.Key, EnvKey)
	set(&c.Remote.RealtimeEndpoint, EnvRealtimeEndpoint)
	set(&c.Log.Level, EnvLogLevel)
}

func (c *Config) fillDefaults() {
	if c.Timeouts.Session.Duration <= 0 {
		c.Timeouts.Session = Duration{defaultTimeout}
	}
	if c.Timeouts.Fetch.Duration <= 0 {
		c.Timeouts.Fetch = Duration{defaultTimeout}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
