package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/pevans/newsarchive/config"
	"github.com/pevans/newsarchive/ratelimit"
	"github.com/pevans/newsarchive/store"
)

// sourceRow is one line of the sources listing.
type sourceRow struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
	Driver     string `json:"driver,omitempty"`
	HourLimit  int    `json:"hour_limit,omitempty"`
	PerMinute  int    `json:"per_minute,omitempty"`
	ListURL    string `json:"list_url,omitempty"`
	Entries    int    `json:"entries"`
	Parsed     int    `json:"parsed"`
}

func handleSources(args []string) {
	// Parse flags for sources command
	fs := flag.NewFlagSet("sources", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	format := fs.String("format", "table", "Output format: table or json")
	fs.Parse(args)
	checkFormat(*format)

	cfg := loadConfig(*configPath, false)
	index := openIndex(cfg)
	defer index.Close()

	summaries, err := index.Sources()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list sources: %v\n", err)
		index.Close()
		os.Exit(1)
	}

	rows := mergeSources(cfg.Sources, summaries)

	if *format == "json" {
		printJSON(map[string]any{
			"sources": rows,
			"total":   len(rows),
		})
		return
	}

	if len(rows) == 0 {
		fmt.Println("No sources configured.")
		return
	}

	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		driver, limit, budget := "-", "-", "-"
		if r.Configured {
			driver = r.Driver
			limit = strconv.Itoa(r.HourLimit)
			budget = strconv.Itoa(r.PerMinute)
		}
		table = append(table, []string{
			r.Name,
			driver,
			limit,
			budget,
			strconv.Itoa(r.Entries),
			strconv.Itoa(r.Parsed),
			r.ListURL,
		})
	}
	printTable([]string{"NAME", "DRIVER", "PER HOUR", "PER MINUTE", "ENTRIES", "ARCHIVED", "LIST URL"}, table)
}

// mergeSources lists configured sources in file order, then sources that
// only exist in the index.
func mergeSources(configured []config.SourceConfig, summaries []store.SourceSummary) []sourceRow {
	counts := make(map[string]store.SourceSummary, len(summaries))
	for _, s := range summaries {
		counts[s.Name] = s
	}

	rows := make([]sourceRow, 0, len(configured)+len(summaries))
	seen := make(map[string]bool)
	for _, src := range configured {
		driver := string(src.Driver)
		if driver == "" {
			driver = string(config.DriverHTTP)
		}
		rows = append(rows, sourceRow{
			Name:       src.Name,
			Configured: true,
			Driver:     driver,
			HourLimit:  src.HourLimit,
			PerMinute:  ratelimit.MinuteBudget(src.HourLimit),
			ListURL:    src.ListURL,
			Entries:    counts[src.Name].Entries,
			Parsed:     counts[src.Name].Parsed,
		})
		seen[src.Name] = true
	}
	for _, s := range summaries {
		if seen[s.Name] {
			continue
		}
		rows = append(rows, sourceRow{Name: s.Name, Entries: s.Entries, Parsed: s.Parsed})
	}
	return rows
}
