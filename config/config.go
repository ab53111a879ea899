// Package config loads the archiver's YAML configuration: where the index and
// archive live, how sites are fetched, and the recipes of every source.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/pevans/newsarchive/ratelimit"
	"github.com/pevans/newsarchive/scraper"
	"github.com/pevans/newsarchive/store"
)

// Configuration validation errors.
var (
	ErrNoSources            = errors.New("at least one source is required")
	ErrDuplicateSource      = errors.New("source name is used twice")
	ErrInvalidSourceName    = errors.New("source name must be lowercase letters, digits, '-' or '_'")
	ErrHourLimitTooLow      = errors.New("hour_limit must be at least 60")
	ErrUnknownDriver        = errors.New("driver must be 'http' or 'browser'")
	ErrMissingListURL       = errors.New("list_url is required")
	ErrMissingListRecipe    = errors.New("list recipe is required")
	ErrMissingArticle       = errors.New("article recipe is required")
	ErrMissingIndexDSN      = errors.New("storage.index_dsn is required")
	ErrMissingArchiveDir    = errors.New("storage.archive_dir is required")
	ErrInvalidConcurrency   = errors.New("ingest.concurrency must be at least 1")
	ErrInvalidBatchSize     = errors.New("ingest.batch_size must be non-negative")
	ErrInvalidTimeout       = errors.New("transport.timeout must be positive")
	ErrInvalidLogLevel      = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidSourceTimeout = errors.New("ingest.source_timeout must be non-negative")
)

// Driver names a transport backend.
type Driver string

const (
	DriverHTTP    Driver = "http"
	DriverBrowser Driver = "browser"
)

// Config is the complete archiver configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Transport TransportConfig `yaml:"transport"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Logging   LoggingConfig   `yaml:"logging"`
	API       APIConfig       `yaml:"api"`
	Sources   []SourceConfig  `yaml:"sources"`
}

// StorageConfig locates the index database and the archive root.
type StorageConfig struct {
	IndexDSN   string `yaml:"index_dsn"`
	ArchiveDir string `yaml:"archive_dir"`
}

// TransportConfig holds defaults shared by every source's fetcher.
type TransportConfig struct {
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
	Browser   BrowserConfig `yaml:"browser"`
}

// BrowserConfig configures the headless browser backend.
type BrowserConfig struct {
	// RemoteURL is a DevTools websocket URL. Empty starts a local Chrome.
	RemoteURL    string        `yaml:"remote_url"`
	WaitSelector string        `yaml:"wait_selector"`
	PageTimeout  time.Duration `yaml:"page_timeout"`
}

// IngestConfig tunes the multi-source service.
type IngestConfig struct {
	Concurrency   int           `yaml:"concurrency"`
	SourceTimeout time.Duration `yaml:"source_timeout"`
	BatchSize     int           `yaml:"batch_size"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// APIConfig configures the read-only HTTP API.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// SourceConfig describes one news site.
type SourceConfig struct {
	Name      string `yaml:"name"`
	HourLimit int    `yaml:"hour_limit"`
	Driver    Driver `yaml:"driver"`
	// ListURL renders {{.Page}}; ArticleURL renders {{.ID}} and {{.Href}}.
	ListURL    string                 `yaml:"list_url"`
	ArticleURL string                 `yaml:"article_url"`
	Headers    map[string]string      `yaml:"headers"`
	List       *scraper.ListRecipe    `yaml:"list"`
	Article    *scraper.ArticleRecipe `yaml:"article"`
}

// Default returns the configuration used for anything the file leaves out.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			IndexDSN:   "~/.newsarchive/index.db",
			ArchiveDir: "~/.newsarchive/archive",
		},
		Transport: TransportConfig{
			Timeout: 30 * time.Second,
		},
		Ingest: IngestConfig{
			Concurrency:   4,
			SourceTimeout: 2 * time.Hour,
		},
		Logging: LoggingConfig{Level: "info"},
		API:     APIConfig{Addr: ":8080"},
	}
}

// Validate validates the whole configuration, sources included.
func (c *Config) Validate() error {
	if err := c.ValidateSettings(); err != nil {
		return err
	}

	if len(c.Sources) == 0 {
		return ErrNoSources
	}

	seen := make(map[string]bool)
	for i := range c.Sources {
		src := &c.Sources[i]
		if err := src.Validate(); err != nil {
			return fmt.Errorf("%w: sources[%d]", err, i)
		}
		if seen[src.Name] {
			return fmt.Errorf("%w: sources[%d] %s", ErrDuplicateSource, i, src.Name)
		}
		seen[src.Name] = true
	}

	return nil
}

// ValidateSettings validates everything but the sources. Commands that only
// read the index need no sources.
func (c *Config) ValidateSettings() error {
	if c.Storage.IndexDSN == "" {
		return ErrMissingIndexDSN
	}
	if c.Storage.ArchiveDir == "" {
		return ErrMissingArchiveDir
	}
	if c.Transport.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Ingest.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.Ingest.SourceTimeout < 0 {
		return ErrInvalidSourceTimeout
	}
	if c.Ingest.BatchSize < 0 {
		return ErrInvalidBatchSize
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}
	return nil
}

// Validate checks one source. An empty driver means http.
func (s *SourceConfig) Validate() error {
	if err := store.ValidateSourceName(s.Name); err != nil {
		return ErrInvalidSourceName
	}
	if s.HourLimit < ratelimit.MinHourlyLimit {
		return ErrHourLimitTooLow
	}
	switch s.Driver {
	case "", DriverHTTP, DriverBrowser:
	default:
		return ErrUnknownDriver
	}
	if s.ListURL == "" {
		return ErrMissingListURL
	}
	if s.List == nil {
		return ErrMissingListRecipe
	}
	if err := s.List.Validate(); err != nil {
		return fmt.Errorf("list: %w", err)
	}
	if s.Article == nil {
		return ErrMissingArticle
	}
	if err := s.Article.Validate(); err != nil {
		return fmt.Errorf("article: %w", err)
	}
	return nil
}

// Source returns the source named name.
func (c *Config) Source(name string) (*SourceConfig, bool) {
	for i := range c.Sources {
		if c.Sources[i].Name == name {
			return &c.Sources[i], true
		}
	}
	return nil, false
}

// SourceNames returns the configured source names in file order.
func (c *Config) SourceNames() []string {
	names := make([]string, 0, len(c.Sources))
	for _, src := range c.Sources {
		names = append(names, src.Name)
	}
	return names
}
