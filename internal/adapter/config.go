package adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Client  ClientConfig  `mapstructure:"client"`
	Cache   CacheConfig   `mapstructure:"cache"`
	UI      UIConfig      `mapstructure:"ui"`
	Viewer  ViewerConfig  `mapstructure:"viewer"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds Book Directory Service configuration
type ServerConfig struct {
	URL         string `mapstructure:"url"`          // API base, e.g. https://host/api/v1
	FileHost    string `mapstructure:"file_host"`    // Base URL images are resolved against
	ShareToken  string `mapstructure:"share_token"`  // shareable_link query value
	Placeholder string `mapstructure:"placeholder"` // Shown when a book has no image
}

// ClientConfig tunes the HTTP transport
type ClientConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"`       // Requests per second, 0 = unlimited
	Burst           int           `mapstructure:"burst"`
	BreakerFailures int           `mapstructure:"breaker_failures"` // Consecutive failures before opening, 0 = disabled
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`  // Open -> half-open delay
}

// CacheConfig holds snapshot cache configuration
type CacheConfig struct {
	Dir string `mapstructure:"dir"` // Empty = memory only
}

// UIConfig holds UI configuration
type UIConfig struct {
	Recommendations int    `mapstructure:"recommendations"`
	DefaultGenre    string `mapstructure:"default_genre"`
}

// ViewerConfig selects the program cover images are opened with
type ViewerConfig struct {
	Command string   `mapstructure:"command"` // Empty = system default
	Args    []string `mapstructure:"args"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL:         "https://library-system-api-o8rl.onrender.com/api/v1",
			FileHost:    "https://savefiles.org",
			ShareToken:  "636",
			Placeholder: "/images/placeholder-book.jpg",
		},
		Client: ClientConfig{
			Timeout:         30 * time.Second,
			RateLimit:       5,
			Burst:           3,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Cache: CacheConfig{
			Dir: "",
		},
		UI: UIConfig{
			Recommendations: 4,
			DefaultGenre:    "All",
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "shelf", "shelf.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "shelf", "shelf.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "shelf")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "shelf")
	}
}

// LoadConfig loads configuration from file, .env and environment
func LoadConfig() (*Config, error) {
	return loadConfig(viper.GetViper(), defaultConfigPath(), ".")
}

func loadConfig(v *viper.Viper, paths ...string) (*Config, error) {
	// A missing .env is fine; a malformed one is not
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	cfg := DefaultConfig()
	setDefaults(v, cfg)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// Environment variable overrides: SHELF_SERVER_URL, SHELF_CLIENT_TIMEOUT, ...
	v.SetEnvPrefix("SHELF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys absent from the file
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.url", cfg.Server.URL)
	v.SetDefault("server.file_host", cfg.Server.FileHost)
	v.SetDefault("server.share_token", cfg.Server.ShareToken)
	v.SetDefault("server.placeholder", cfg.Server.Placeholder)

	v.SetDefault("client.timeout", cfg.Client.Timeout)
	v.SetDefault("client.rate_limit", cfg.Client.RateLimit)
	v.SetDefault("client.burst", cfg.Client.Burst)
	v.SetDefault("client.breaker_failures", cfg.Client.BreakerFailures)
	v.SetDefault("client.breaker_timeout", cfg.Client.BreakerTimeout)

	v.SetDefault("cache.dir", cfg.Cache.Dir)

	v.SetDefault("ui.recommendations", cfg.UI.Recommendations)
	v.SetDefault("ui.default_genre", cfg.UI.DefaultGenre)

	v.SetDefault("viewer.command", cfg.Viewer.Command)
	v.SetDefault("viewer.args", cfg.Viewer.Args)

	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
}

// SaveConfig saves the current configuration to file
func SaveConfig(cfg *Config) error {
	return saveConfig(viper.GetViper(), cfg, defaultConfigPath())
}

func saveConfig(v *viper.Viper, cfg *Config, configPath string) error {
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set fields individually to ensure correct key names (snake_case)
	v.Set("server.url", cfg.Server.URL)
	v.Set("server.file_host", cfg.Server.FileHost)
	v.Set("server.share_token", cfg.Server.ShareToken)
	v.Set("server.placeholder", cfg.Server.Placeholder)

	v.Set("client.timeout", cfg.Client.Timeout.String())
	v.Set("client.rate_limit", cfg.Client.RateLimit)
	v.Set("client.burst", cfg.Client.Burst)
	v.Set("client.breaker_failures", cfg.Client.BreakerFailures)
	v.Set("client.breaker_timeout", cfg.Client.BreakerTimeout.String())

	v.Set("cache.dir", cfg.Cache.Dir)

	v.Set("ui.recommendations", cfg.UI.Recommendations)
	v.Set("ui.default_genre", cfg.UI.DefaultGenre)

	v.Set("viewer.command", cfg.Viewer.Command)
	v.Set("viewer.args", cfg.Viewer.Args)

	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the settings the client cannot run without
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.URL) == "" {
		return fmt.Errorf("server.url is required")
	}
	if c.Client.Timeout < 0 {
		return fmt.Errorf("client.timeout must not be negative")
	}
	if c.Client.RateLimit < 0 {
		return fmt.Errorf("client.rate_limit must not be negative")
	}
	return nil
}

// ConfigFile returns the path SaveConfig writes to
func ConfigFile() string {
	return filepath.Join(defaultConfigPath(), "config.yaml")
}
