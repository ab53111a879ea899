package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/pevans/newsarchive/config"
	"github.com/pevans/newsarchive/scraper"
)

// errConfigExists is returned when init would replace an existing file.
var errConfigExists = errors.New("config file already exists")

func handleInit(args []string) {
	// Parse flags for init command
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "", "Where to write the config file")
	force := fs.Bool("force", false, "Replace an existing config file")
	fs.Parse(args)

	path := *configPath
	if path == "" {
		path = os.Getenv(config.EnvConfig)
	}
	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if err := writeStarterConfig(path, *force); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", path)
}

// writeStarterConfig writes the default settings and one example source.
func writeStarterConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s (use --force to replace it)", errConfigExists, path)
		}
	}
	return starterConfig().Save(path)
}

func starterConfig() *config.Config {
	cfg := config.Default()
	cfg.Sources = []config.SourceConfig{{
		Name:      "example",
		HourLimit: 600,
		Driver:    config.DriverHTTP,
		ListURL:   "https://example.com/news?page={{.Page}}",
		List: &scraper.ListRecipe{
			Items: "article.teaser",
			Href:  &scraper.FieldRecipe{Selector: "a", Attr: "href"},
			Published: &scraper.FieldRecipe{
				Selector: "time",
				Attr:     "datetime",
				Steps:    []scraper.Step{{Op: scraper.OpTime}},
			},
		},
		Article: &scraper.ArticleRecipe{
			Header:   &scraper.FieldRecipe{Selector: "h1", Attr: scraper.AttrText},
			Body:     &scraper.FieldRecipe{Selector: "article", Attr: scraper.AttrText},
			Fallback: scraper.FallbackReadability,
		},
	}}
	return cfg
}
