package source

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/mmcdole/shelf/internal/adapter"
	"github.com/mmcdole/shelf/internal/adapter/source/directory"
	"github.com/mmcdole/shelf/internal/domain"
)

// SourceConfig contains the configuration needed to create a directory client
type SourceConfig struct {
	URL             string
	Timeout         time.Duration
	RateLimit       float64
	Burst           int
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// NewClient creates a directory client for the given URL.
func NewClient(cfg *SourceConfig, logger *slog.Logger) (domain.DirectoryRepository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("source config is nil")
	}

	if cfg.URL == "" {
		return nil, fmt.Errorf("server URL is required")
	}

	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL: %q", cfg.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server URL scheme: %s", u.Scheme)
	}

	failures := cfg.BreakerFailures
	if failures < 0 {
		failures = 0
	}

	return directory.NewClient(cfg.URL, directory.Options{
		Timeout:         cfg.Timeout,
		RateLimit:       cfg.RateLimit,
		Burst:           cfg.Burst,
		BreakerFailures: uint32(failures),
		BreakerTimeout:  cfg.BreakerTimeout,
	}, logger), nil
}

// NewClientFromConfig creates a directory client from the application config
func NewClientFromConfig(cfg *adapter.Config, logger *slog.Logger) (domain.DirectoryRepository, error) {
	return NewClient(&SourceConfig{
		URL:             cfg.Server.URL,
		Timeout:         cfg.Client.Timeout,
		RateLimit:       cfg.Client.RateLimit,
		Burst:           cfg.Client.Burst,
		BreakerFailures: cfg.Client.BreakerFailures,
		BreakerTimeout:  cfg.Client.BreakerTimeout,
	}, logger)
}
