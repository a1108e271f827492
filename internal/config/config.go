package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port" env:"PROBLOOM_PORT"`
	} `yaml:"server"`
	API struct {
		BaseURL string `yaml:"baseURL" env:"PROBLOOM_API_BASE_URL"`
		Timeout string `yaml:"timeout" env:"PROBLOOM_API_TIMEOUT"`
	} `yaml:"api"`
	Redis struct {
		Addr     string `yaml:"addr" env:"PROBLOOM_REDIS_ADDR"`
		Password string `yaml:"password" env:"PROBLOOM_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"PROBLOOM_REDIS_DB"`
		TTL      string `yaml:"ttl" env:"PROBLOOM_REDIS_TTL"`
		Channel  string `yaml:"channel" env:"PROBLOOM_REDIS_CHANNEL"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"PROBLOOM_POSTGRES_URL"`
	} `yaml:"postgres"`
	Store struct {
		HistoryLimit int `yaml:"historyLimit" env:"PROBLOOM_HISTORY_LIMIT"`
	} `yaml:"store"`
	User struct {
		ID   int    `yaml:"id" env:"PROBLOOM_USER_ID"`
		Name string `yaml:"name" env:"PROBLOOM_USER_NAME"`
	} `yaml:"user"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.API.Timeout = "10s"
	cfg.Store.HistoryLimit = 32
	cfg.User.ID = 1
	cfg.User.Name = "guest"
	return cfg
}

// Load reads YAML config from path and overlays PROBLOOM_* environment variables.
// A missing file is not an error; defaults and the environment still apply.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
