package config

import (
	"testing"

	"github.com/pevans/newsarchive/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSource(name string) SourceConfig {
	return SourceConfig{
		Name:      name,
		HourLimit: 600,
		ListURL:   "https://example.com/news?page={{.Page}}",
		List: &scraper.ListRecipe{
			Items:     "li.item",
			Href:      &scraper.FieldRecipe{Selector: "a", Attr: "href"},
			Published: &scraper.FieldRecipe{Selector: "time", Attr: "datetime", Steps: []scraper.Step{{Op: scraper.OpTime}}},
		},
		Article: &scraper.ArticleRecipe{
			Header: &scraper.FieldRecipe{Selector: "h1", Attr: scraper.AttrText},
			Body:   &scraper.FieldRecipe{Selector: "article", Attr: scraper.AttrText},
		},
	}
}

func validConfig() *Config {
	cfg := Default()
	cfg.Sources = []SourceConfig{validSource("example")}
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Settings(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"no index dsn", func(c *Config) { c.Storage.IndexDSN = "" }, ErrMissingIndexDSN},
		{"no archive dir", func(c *Config) { c.Storage.ArchiveDir = "" }, ErrMissingArchiveDir},
		{"zero timeout", func(c *Config) { c.Transport.Timeout = 0 }, ErrInvalidTimeout},
		{"zero concurrency", func(c *Config) { c.Ingest.Concurrency = 0 }, ErrInvalidConcurrency},
		{"negative source timeout", func(c *Config) { c.Ingest.SourceTimeout = -1 }, ErrInvalidSourceTimeout},
		{"negative batch size", func(c *Config) { c.Ingest.BatchSize = -1 }, ErrInvalidBatchSize},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, ErrInvalidLogLevel},
		{"no sources", func(c *Config) { c.Sources = nil }, ErrNoSources},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidate_Sources(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*SourceConfig)
		want   error
	}{
		{"bad name", func(s *SourceConfig) { s.Name = "Bad Name" }, ErrInvalidSourceName},
		{"hour limit below 60", func(s *SourceConfig) { s.HourLimit = 59 }, ErrHourLimitTooLow},
		{"unknown driver", func(s *SourceConfig) { s.Driver = "carrier-pigeon" }, ErrUnknownDriver},
		{"no list url", func(s *SourceConfig) { s.ListURL = "" }, ErrMissingListURL},
		{"no list recipe", func(s *SourceConfig) { s.List = nil }, ErrMissingListRecipe},
		{"no article recipe", func(s *SourceConfig) { s.Article = nil }, ErrMissingArticle},
		{"list without published", func(s *SourceConfig) { s.List.Published = nil }, scraper.ErrMissingField},
		{"article without body", func(s *SourceConfig) { s.Article.Body = nil }, scraper.ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Sources = append(cfg.Sources, validSource("second"))
			tt.modify(&cfg.Sources[1])

			err := cfg.Validate()
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "sources[1]")
		})
	}
}

func TestValidate_HourLimitOf60IsAllowed(t *testing.T) {
	cfg := validConfig()
	cfg.Sources[0].HourLimit = 60
	cfg.Sources[0].Driver = DriverBrowser
	assert.NoError(t, cfg.Validate())
}

func TestValidate_DuplicateSource(t *testing.T) {
	cfg := validConfig()
	cfg.Sources = append(cfg.Sources, validSource("example"))

	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrDuplicateSource)
}

func TestValidateSettings_IgnoresSources(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ValidateSettings())
	assert.ErrorIs(t, cfg.Validate(), ErrNoSources)
}

func TestSourceLookup(t *testing.T) {
	cfg := validConfig()
	cfg.Sources = append(cfg.Sources, validSource("other"))

	src, ok := cfg.Source("other")
	require.True(t, ok)
	assert.Equal(t, "other", src.Name)

	_, ok = cfg.Source("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"example", "other"}, cfg.SourceNames())
}
