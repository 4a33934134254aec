// Package config loads the settings shared by imgserver and imgctl.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "IMGSYNC_"

type Config struct {
	// Client side
	ServerAddr     string        `yaml:"server_addr" env:"SERVER_ADDR"`
	Secure         bool          `yaml:"secure" env:"SECURE"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	Username       string        `yaml:"username" env:"USERNAME"`

	// Server side
	ListenAddr     string `yaml:"listen_addr" env:"LISTEN_ADDR"`
	DatabaseURL    string `yaml:"database_url" env:"DATABASE_URL"` // empty keeps images in memory
	MaxUploadBytes int64  `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`

	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

func Default() Config {
	return Config{
		ServerAddr:     "127.0.0.1:8080",
		RequestTimeout: 60 * time.Second,
		ListenAddr:     ":8080",
		MaxUploadBytes: 10 << 20,
		LogLevel:       "info",
	}
}

// Load builds the configuration from defaults, the YAML file at path, a .env
// file in the working directory and IMGSYNC_* environment variables, each
// overriding the previous. Missing files are skipped.
func Load(path string) (Config, error) {
	return load(path, ".env")
}

func load(path, dotenv string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	// Variables already set in the environment win over .env.
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", dotenv, err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.ServerAddr == "" {
		errs = append(errs, errors.New("server_addr is empty"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("request_timeout must not be negative, got %s", c.RequestTimeout))
	}
	return errors.Join(errs...)
}
