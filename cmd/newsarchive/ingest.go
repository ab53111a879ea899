package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pevans/newsarchive/ingest"
	"github.com/pevans/newsarchive/logger"
)

func handleIngest(args []string) {
	// Parse flags for ingest command
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fromDT := fs.String("from-dt", "", "Newest publication time to archive (default: now)")
	toDT := fs.String("to-dt", "", "Oldest publication time to archive (default: Unix epoch)")
	discoverOnly := fs.Bool("discover-only", false, "Record new ids without fetching articles")
	stopOnKnown := fs.Bool("stop-on-known", false, "Stop each source at its first archived article")
	logLevel := fs.String("log-level", "", "Override the configured log level")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: newsarchive ingest [flags] [source...]")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	cfg := loadConfig(*configPath, true)
	log := logger.New(cfg.Logging.Level)
	if *logLevel != "" {
		log.SetLevel(*logLevel)
	}

	w, err := parseWindow(*fromDT, *toDT, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sites, err := ingest.NewSites(cfg, fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer sites.Close()

	index := openIndex(cfg)
	defer index.Close()
	archive := openArchive(cfg)

	orch := ingest.NewOrchestrator(index, archive, log)
	service := ingest.NewService(orch, ingest.ServiceConfig{
		Concurrency:   cfg.Ingest.Concurrency,
		SourceTimeout: cfg.Ingest.SourceTimeout,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Ingesting %d source(s) over %s\n\n", len(sites.Sources()), w)
	result := service.RunAll(ctx, sites.Sources(), w, ingest.Options{
		DiscoverOnly: *discoverOnly,
		StopOnKnown:  *stopOnKnown,
		BatchSize:    cfg.Ingest.BatchSize,
	})

	printIngestResult(result)

	if len(result.Failed()) > 0 {
		// Deferred cleanup does not run past os.Exit.
		sites.Close()
		index.Close()
		os.Exit(1)
	}
}

func printIngestResult(result *ingest.Result) {
	rows := make([][]string, 0, len(result.Reports))
	for _, rep := range result.Reports {
		status := "ok"
		if rep.Err != nil {
			status = "failed"
		}
		rows = append(rows, []string{
			rep.Source,
			strconv.Itoa(rep.Discovered),
			strconv.Itoa(rep.Archived),
			strconv.Itoa(rep.Skipped),
			strconv.Itoa(rep.Failed),
			status,
		})
	}
	printTable([]string{"SOURCE", "DISCOVERED", "ARCHIVED", "SKIPPED", "FAILED", "STATUS"}, rows)

	for _, rep := range result.Reports {
		if len(rep.Failures) == 0 && rep.Err == nil {
			continue
		}
		fmt.Println()
		if rep.Err != nil {
			if ingest.IsRangeExhausted(rep.Err) {
				fmt.Printf("%s: window is outside the listing's history\n", rep.Source)
			}
			fmt.Printf("%s: %v\n", rep.Source, rep.Err)
		}
		for _, f := range rep.Failures {
			fmt.Printf("  ✗ %s (%s): %v\n", f.ID, f.Href, f.Err)
		}
	}
}
