package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pevans/newsarchive/store"
)

func handleEntries(args []string) {
	source, rest := splitSourceArg(args)

	// Parse flags for entries command
	fs := flag.NewFlagSet("entries", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	parsed := fs.Bool("parsed", false, "Show only archived entries")
	unparsed := fs.Bool("unparsed", false, "Show only entries not archived yet")
	limit := fs.Int("limit", 50, "Maximum number of entries to show (0 for all)")
	offset := fs.Int("offset", 0, "Number of entries to skip")
	format := fs.String("format", "table", "Output format: table or json")
	fs.Parse(rest)

	if source == "" && fs.NArg() > 0 {
		source = fs.Arg(0)
	}
	if source == "" {
		fmt.Fprintf(os.Stderr, "Error: source is required\n")
		fmt.Fprintf(os.Stderr, "Usage: newsarchive entries <source> [--parsed|--unparsed] [--limit N] [--format table|json]\n")
		os.Exit(1)
	}
	if *parsed && *unparsed {
		fmt.Fprintf(os.Stderr, "Error: --parsed and --unparsed are mutually exclusive\n")
		os.Exit(1)
	}
	checkFormat(*format)

	filter := store.EntryFilter{Limit: *limit, Offset: *offset}
	switch {
	case *parsed:
		filter.Parsed = parsed
	case *unparsed:
		no := false
		filter.Parsed = &no
	}

	cfg := loadConfig(*configPath, false)
	index := openIndex(cfg)
	defer index.Close()

	entries, err := index.ListEntries(source, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list entries: %v\n", err)
		index.Close()
		os.Exit(1)
	}

	if *format == "json" {
		total, err := index.CountEntries(source, filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to count entries: %v\n", err)
			index.Close()
			os.Exit(1)
		}
		printJSON(map[string]any{
			"source":  source,
			"entries": entries,
			"total":   total,
		})
		return
	}

	if len(entries) == 0 {
		fmt.Println("No entries to display.")
		return
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		state := "discovered"
		if e.Parsed {
			state = "archived"
		}
		path := e.ArchivePath
		if path == "" {
			path = "-"
		}
		rows = append(rows, []string{
			e.ID,
			formatOptionalTime(&e.PublishedAt),
			state,
			formatOptionalTime(e.ParsedAt),
			path,
		})
	}
	printTable([]string{"ID", "PUBLISHED", "STATE", "ARCHIVED AT", "PATH"}, rows)
}
