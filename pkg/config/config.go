// Package config loads the service configuration for the API server.
// Values omitted from the file fall back to defaults, and command line
// flags override whatever the file says.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sheetshot/sheetshot/pkg/errors"
	"github.com/sheetshot/sheetshot/pkg/pipeline"
	"github.com/sheetshot/sheetshot/pkg/task"
)

// Store backend names accepted in [store].
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreMongo  = "mongo"
)

// Config is the root of the TOML file.
type Config struct {
	Server  Server  `toml:"server"`
	Convert Convert `toml:"convert"`
	Store   Store   `toml:"store"`
	Cache   Cache   `toml:"cache"`
}

// Server configures the HTTP listener and its directories.
type Server struct {
	Addr        string `toml:"addr"`
	UploadDir   string `toml:"upload_dir"`
	ArtifactDir string `toml:"artifact_dir"`
}

// Convert bounds the conversion pipeline.
type Convert struct {
	// MaxCaptures caps concurrent browser captures.
	MaxCaptures int `toml:"max_captures"`
	// Attempts bounds screenshot retries per sheet.
	Attempts int `toml:"attempts"`
	// AdmissionTimeout bounds the wait for a capture slot, e.g. "30s".
	// Zero waits indefinitely.
	AdmissionTimeout duration `toml:"admission_timeout"`
}

// Store selects and configures the task store backend.
type Store struct {
	Backend string `toml:"backend"`

	Redis struct {
		Addr     string   `toml:"addr"`
		Password string   `toml:"password"`
		DB       int      `toml:"db"`
		Prefix   string   `toml:"prefix"`
		TTL      duration `toml:"ttl"`
	} `toml:"redis"`

	Mongo struct {
		URI        string `toml:"uri"`
		Database   string `toml:"database"`
		Collection string `toml:"collection"`
	} `toml:"mongo"`
}

// Cache configures the artifact cache.
type Cache struct {
	// Dir holds cached artifacts; empty disables caching.
	Dir string `toml:"dir"`
}

// duration unmarshals TOML strings like "30s" via time.ParseDuration.
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

// Value returns the wrapped time.Duration.
func (d duration) Value() time.Duration { return time.Duration(d) }

// Default returns the configuration used when no file is given.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

// Load reads and validates a TOML configuration file.
func Load(path string) (Config, error) {
	var c Config

	data, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrap(errors.ErrCodeConfig, err, "failed to read config %s", path)
	}
	if err := toml.Unmarshal(data, &c); err != nil {
		return c, errors.Wrap(errors.ErrCodeConfig, err, "failed to parse config %s", path)
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.UploadDir == "" {
		c.Server.UploadDir = "uploads"
	}
	if c.Server.ArtifactDir == "" {
		c.Server.ArtifactDir = "outputs"
	}
	if c.Convert.MaxCaptures == 0 {
		c.Convert.MaxCaptures = pipeline.DefaultMaxCaptures
	}
	if c.Convert.Attempts == 0 {
		c.Convert.Attempts = pipeline.DefaultAttempts
	}
	if c.Store.Backend == "" {
		c.Store.Backend = StoreMemory
	}
	if c.Store.Redis.Addr == "" {
		c.Store.Redis.Addr = "localhost:6379"
	}
	if c.Store.Redis.Prefix == "" {
		c.Store.Redis.Prefix = task.DefaultRedisPrefix
	}
	if c.Store.Mongo.URI == "" {
		c.Store.Mongo.URI = "mongodb://localhost:27017"
	}
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory, StoreRedis, StoreMongo:
	default:
		return errors.New(errors.ErrCodeConfig, "unknown store backend %q (expected memory, redis, or mongo)", c.Store.Backend)
	}
	if c.Convert.MaxCaptures < 0 {
		return errors.New(errors.ErrCodeConfig, "max_captures cannot be negative, got %d", c.Convert.MaxCaptures)
	}
	if c.Convert.Attempts < 0 {
		return errors.New(errors.ErrCodeConfig, "attempts cannot be negative, got %d", c.Convert.Attempts)
	}
	if c.Convert.AdmissionTimeout < 0 {
		return errors.New(errors.ErrCodeConfig, "admission_timeout cannot be negative")
	}
	return nil
}
