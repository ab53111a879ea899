package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pevans/newsarchive/store"
)

func handleRuns(args []string) {
	source, rest := splitSourceArg(args)

	// Parse flags for runs command
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	limit := fs.Int("limit", 20, "Maximum number of runs to show (0 for all)")
	format := fs.String("format", "table", "Output format: table or json")
	fs.Parse(rest)

	if source == "" && fs.NArg() > 0 {
		source = fs.Arg(0)
	}
	if source == "" {
		fmt.Fprintf(os.Stderr, "Error: source is required\n")
		fmt.Fprintf(os.Stderr, "Usage: newsarchive runs <source> [--limit N] [--format table|json]\n")
		os.Exit(1)
	}
	checkFormat(*format)

	cfg := loadConfig(*configPath, false)
	index := openIndex(cfg)
	defer index.Close()

	runs, err := index.ListRuns(source, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list runs: %v\n", err)
		index.Close()
		os.Exit(1)
	}

	if *format == "json" {
		printJSON(map[string]any{
			"source": source,
			"runs":   runs,
			"total":  len(runs),
		})
		return
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return
	}

	printTable(
		[]string{"RUN", "STARTED", "DURATION", "WINDOW", "DISC", "ARCH", "SKIP", "FAIL", "ERROR"},
		runRows(runs),
	)
}

func runRows(runs []store.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		errText := "-"
		if r.Error != nil {
			errText = *r.Error
		}
		rows = append(rows, []string{
			r.RunID.String()[:8],
			formatOptionalTime(&r.StartedAt),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String(),
			r.From.Format(time.DateOnly) + ".." + r.To.Format(time.DateOnly),
			strconv.Itoa(r.Discovered),
			strconv.Itoa(r.Archived),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Failed),
			errText,
		})
	}
	return rows
}
