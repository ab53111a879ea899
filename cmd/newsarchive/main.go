package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Get subcommand
	subcommand := os.Args[1]
	args := os.Args[2:]

	switch subcommand {
	case "ingest":
		handleIngest(args)
	case "entries":
		handleEntries(args)
	case "runs":
		handleRuns(args)
	case "sources":
		handleSources(args)
	case "init":
		handleInit(args)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("newsarchive -- Archive news sites over a time window")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  newsarchive <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  ingest     Archive articles of one or more sources")
	fmt.Println("  entries    List archived and discovered entries of a source")
	fmt.Println("  runs       List past ingestion runs of a source")
	fmt.Println("  sources    List configured sources and their archive counts")
	fmt.Println("  init       Write a starter config file")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  NEWSARCHIVE_CONFIG       Path to config file (default: ~/.newsarchive/config.yaml)")
	fmt.Println("  NEWSARCHIVE_INDEX_DSN    Path to index database (default: ~/.newsarchive/index.db)")
	fmt.Println("  NEWSARCHIVE_ARCHIVE_DIR  Path to archive directory (default: ~/.newsarchive/archive)")
	fmt.Println("  NEWSARCHIVE_LOG_LEVEL    debug, info, warn or error (default: info)")
}
