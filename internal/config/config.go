package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	defaultDBPath         = "gamelens.db"
	defaultRAWGBaseURL    = "https://api.rawg.io/api"
	defaultRAWGTimeout    = 10 * time.Second
	defaultAssetsDir      = "wwwroot/images/games"
	defaultAssetURLPrefix = "/images/games"
	defaultServerAddr     = ":8080"
)

// ErrMissingAPIKey is returned by Validate when no RAWG API key is configured.
var ErrMissingAPIKey = errors.New("RAWG API key is not configured")

// Config holds application configuration.
type Config struct {
	DBPath   string        `yaml:"db_path" env:"GAMELENS_DB"`
	DBDriver string        `yaml:"db_driver" env:"GAMELENS_DB_DRIVER"`
	RAWG     RAWGConfig    `yaml:"rawg" envPrefix:"GAMELENS_RAWG_"`
	Assets   AssetsConfig  `yaml:"assets" envPrefix:"GAMELENS_ASSETS_"`
	Logging  LoggingConfig `yaml:"logging" envPrefix:"GAMELENS_LOG_"`
	Server   ServerConfig  `yaml:"server" envPrefix:"GAMELENS_SERVER_"`
}

// RAWGConfig configures the upstream game-metadata API.
type RAWGConfig struct {
	APIKey  string        `yaml:"api_key" env:"API_KEY"`
	BaseURL string        `yaml:"base_url" env:"BASE_URL"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// AssetsConfig configures where downloaded cover images go.
type AssetsConfig struct {
	Dir       string `yaml:"dir" env:"DIR"`
	URLPrefix string `yaml:"url_prefix" env:"URL_PREFIX"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Format string `yaml:"format" env:"FORMAT"` // "json" or "text"
	Level  string `yaml:"level" env:"LEVEL"`   // "debug", "info", "warn", "error"
}

// ServerConfig holds settings for the serve command.
type ServerConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		DBPath: defaultDBPath,
		RAWG: RAWGConfig{
			BaseURL: defaultRAWGBaseURL,
			Timeout: defaultRAWGTimeout,
		},
		Assets: AssetsConfig{
			Dir:       defaultAssetsDir,
			URLPrefix: defaultAssetURLPrefix,
		},
		Logging: LoggingConfig{
			Format: "text",
			Level:  "info",
		},
		Server: ServerConfig{
			Addr: defaultServerAddr,
		},
	}
}

// configPaths returns the list of paths to search for config file.
func configPaths() []string {
	paths := []string{
		".gamelens.yaml",
		".gamelens.yml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "gamelens", "config.yaml"),
			filepath.Join(home, ".config", "gamelens", "config.yml"),
			filepath.Join(home, ".gamelens.yaml"),
		)
	}

	return paths
}

// Load loads configuration from file or returns defaults, then applies
// environment overrides.
// Priority: env vars > env GAMELENS_CONFIG file > search paths > defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if envPath := os.Getenv("GAMELENS_CONFIG"); envPath != "" {
		if err := cfg.loadFromFile(envPath); err != nil {
			return nil, err
		}
		if err := cfg.applyEnvOverrides(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	for _, path := range configPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := cfg.loadFromFile(path); err != nil {
				return nil, err
			}
			break
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // Config path chosen by the operator
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides sets every field whose environment variable is present;
// unset variables leave the file or default value alone.
func (c *Config) applyEnvOverrides() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate reports configuration that must stop startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RAWG.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if c.RAWG.Timeout < 0 {
		return fmt.Errorf("rawg timeout must not be negative, got %s", c.RAWG.Timeout)
	}
	return nil
}

// GetDBPath returns the database path, applying defaults.
func (c *Config) GetDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return defaultDBPath
}

// GetRAWGBaseURL returns the upstream API root without a trailing slash.
func (c *Config) GetRAWGBaseURL() string {
	if c.RAWG.BaseURL != "" {
		return strings.TrimRight(c.RAWG.BaseURL, "/")
	}
	return defaultRAWGBaseURL
}

// GetRAWGTimeout returns the per-call upstream timeout.
func (c *Config) GetRAWGTimeout() time.Duration {
	if c.RAWG.Timeout > 0 {
		return c.RAWG.Timeout
	}
	return defaultRAWGTimeout
}

// GetAssetsDir returns the directory cover images are written to.
func (c *Config) GetAssetsDir() string {
	if c.Assets.Dir != "" {
		return c.Assets.Dir
	}
	return defaultAssetsDir
}

// GetAssetURLPrefix returns the path prefix stored images are served under.
func (c *Config) GetAssetURLPrefix() string {
	if c.Assets.URLPrefix != "" {
		return "/" + strings.Trim(c.Assets.URLPrefix, "/")
	}
	return defaultAssetURLPrefix
}

// GetServerAddr returns the listen address for the serve command.
func (c *Config) GetServerAddr() string {
	if c.Server.Addr != "" {
		return c.Server.Addr
	}
	return defaultServerAddr
}
