// Package config loads the YAML configuration of the widget configuration
// service.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	EnvAuthKey  = "WIDGET_CONFIG_AUTH_KEY"
	EnvLogLevel = "WIDGET_CONFIG_LOG_LEVEL"

	minRefreshInterval = 5 * time.Second
)

// Config is the top-level configuration file.
type Config struct {
	LogLevel        string        `yaml:"log_level"`        // logrus level name
	RefreshInterval time.Duration `yaml:"refresh_interval"` // how often the controller reloads the store
	Server          Server        `yaml:"server"`
	Repository      Repository    `yaml:"repository"`
}

// Server configures the HTTP calling layer.
type Server struct {
	Addr    string `yaml:"addr"`     // listen address
	AuthKey string `yaml:"auth_key"` // X-API-KEY value, empty disables auth
}

// Repository selects and configures the storage backend.
type Repository struct {
	Type string `yaml:"type"` // memory, fs, http, gcs, s3, git, redis, badger or sqlite
	Name string `yaml:"name"` // name reported in status output

	Path   string `yaml:"path"`   // fs/badger directory, sqlite file, directory inside a git repository
	URL    string `yaml:"url"`    // http base URL or git remote
	APIKey string `yaml:"api_key"` // X-API-Key sent by the http backend
	Watch  bool   `yaml:"watch"`  // fs: reload when channel files change on disk

	Bucket string `yaml:"bucket"` // gcs/s3 bucket
	Prefix string `yaml:"prefix"` // object/key prefix for gcs, s3 and redis

	Region          string `yaml:"region"`            // s3 region
	Endpoint        string `yaml:"endpoint"`          // s3 compatible endpoint override
	AccessKeyID     string `yaml:"access_key_id"`     // s3 static credentials
	SecretAccessKey string `yaml:"secret_access_key"` // s3 static credentials

	Branch   string `yaml:"branch"`   // git branch
	Username string `yaml:"username"` // git basic auth
	Password string `yaml:"password"` // git basic auth
	Push     bool   `yaml:"push"`     // git: push commits to the remote

	Redis Redis `yaml:"redis"`
}

// Redis holds Redis connection settings.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Default returns the configuration used when no file is given: an
// in-memory store served on :8080.
func Default() Config {
	return Config{
		LogLevel:        "info",
		RefreshInterval: 30 * time.Second,
		Server:          Server{Addr: ":8080"},
		Repository:      Repository{Type: "memory", Name: "widget"},
	}
}

// Load reads the YAML file at path on top of Default, applies environment
// overrides and validates the result. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() {
	if key := os.Getenv(EnvAuthKey); key != "" {
		c.Server.AuthKey = key
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.LogLevel = level
	}
}

// Validate reports every problem found in the configuration.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.RefreshInterval != 0 && c.RefreshInterval < minRefreshInterval {
		logrus.Warnf("refresh interval too low, setting it to %s", minRefreshInterval)
		c.RefreshInterval = minRefreshInterval
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}

	r := c.Repository
	switch r.Type {
	case "memory":
	case "fs", "badger", "sqlite":
		if r.Path == "" {
			errs = append(errs, fmt.Errorf("repository.path is required for %s", r.Type))
		}
	case "http":
		if r.URL == "" {
			errs = append(errs, errors.New("repository.url is required for http"))
		}
	case "gcs", "s3":
		if r.Bucket == "" {
			errs = append(errs, fmt.Errorf("repository.bucket is required for %s", r.Type))
		}
	case "git":
		if r.URL == "" {
			errs = append(errs, errors.New("repository.url is required for git"))
		}
	case "redis":
		if r.Redis.Addr == "" {
			errs = append(errs, errors.New("repository.redis.addr is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown repository type %q", r.Type))
	}
	return errors.Join(errs...)
}

// ApplyLogLevel sets the global logrus level from the configuration.
func (c Config) ApplyLogLevel() {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logrus.WithError(err).Warn("invalid log level, keeping current level")
		return
	}
	logrus.SetLevel(level)
}
