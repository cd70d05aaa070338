// Package config loads server configuration from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/handsomefox/movie-taste/internal/validation"
)

// PathEnvVar overrides the config file location.
const PathEnvVar = "CONFIG_PATH"

var DefaultPaths = []string{
	"config.yaml",
	"config.yml",
}

const (
	CatalogBackend = "backend"
	CatalogTMDB    = "tmdb"
)

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Backend BackendConfig `koanf:"backend"`
	Catalog CatalogConfig `koanf:"catalog"`
	TMDB    TMDBConfig    `koanf:"tmdb"`
	Log     LogConfig     `koanf:"log"`
}

type ServerConfig struct {
	Port        string   `koanf:"port" validate:"required,numeric"`
	DBPath      string   `koanf:"db_path" validate:"required"`
	CORSOrigins []string `koanf:"cors_origins"`
	// RateLimit is requests per minute per client IP; zero disables it.
	RateLimit   int    `koanf:"rate_limit" validate:"gte=0"`
	Environment string `koanf:"environment" validate:"oneof=local production"`
}

type BackendConfig struct {
	URL     string        `koanf:"url" validate:"required,http_url"`
	Token   string        `koanf:"token"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
	// RateInterval is the minimum spacing between outbound requests.
	RateInterval time.Duration `koanf:"rate_interval" validate:"gte=0"`
}

type CatalogConfig struct {
	Source string `koanf:"source" validate:"oneof=backend tmdb"`
}

type TMDBConfig struct {
	APIKey       string `koanf:"api_key"`
	APIReadToken string `koanf:"api_read_token"`
	ImageBase    string `koanf:"image_base" validate:"omitempty,http_url"`
	Language     string `koanf:"language"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			DBPath:      "data/movie-taste.db",
			CORSOrigins: []string{"http://localhost:5173"},
			RateLimit:   120,
			Environment: "local",
		},
		Backend: BackendConfig{
			URL:          "http://localhost:8000",
			Timeout:      60 * time.Second,
			RateInterval: 0,
		},
		Catalog: CatalogConfig{
			Source: CatalogBackend,
		},
		TMDB: TMDBConfig{
			ImageBase: "https://image.tmdb.org/t/p/w500",
			Language:  "en-US",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

var envMappings = map[string]string{
	"port":                  "server.port",
	"db_path":               "server.db_path",
	"cors_origins":          "server.cors_origins",
	"rate_limit":            "server.rate_limit",
	"env":                   "server.environment",
	"backend_url":           "backend.url",
	"backend_token":         "backend.token",
	"backend_timeout":       "backend.timeout",
	"backend_rate_interval": "backend.rate_interval",
	"catalog_source":        "catalog.source",
	"tmdb_api_key":          "tmdb.api_key",
	"tmdb_api_read_token":   "tmdb.api_read_token",
	"tmdb_image_base":       "tmdb.image_base",
	"tmdb_language":         "tmdb.language",
	"log_level":             "log.level",
}

// sliceKeys are accepted as comma-separated strings from the environment.
var sliceKeys = []string{
	"server.cors_origins",
}

// Load builds the configuration. Unknown environment variables are ignored.
func Load() (*Config, error) {
	return load(findConfigFile())
}

func load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := splitSlices(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func envKey(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

func splitSlices(k *koanf.Koanf) error {
	for _, path := range sliceKeys {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

// Validate checks field constraints and the credentials the selected
// catalog source needs.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}
	if c.Catalog.Source == CatalogTMDB && c.TMDB.APIKey == "" && c.TMDB.APIReadToken == "" {
		return fmt.Errorf("catalog source %q requires TMDB_API_KEY or TMDB_API_READ_TOKEN", CatalogTMDB)
	}
	return nil
}

func (c *Config) Addr() string { return ":" + c.Server.Port }
