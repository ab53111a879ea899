package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/markusmobius/go-dateparser"
	"github.com/pevans/newsarchive/archive"
	"github.com/pevans/newsarchive/config"
	"github.com/pevans/newsarchive/discovery"
	"github.com/pevans/newsarchive/store"
)

// loadConfig loads and validates the configuration or exits. Sources are
// only checked when withSources is set.
func loadConfig(path string, withSources bool) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if withSources {
		err = cfg.Validate()
	} else {
		err = cfg.ValidateSettings()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// openIndex opens the index database or exits.
func openIndex(cfg *config.Config) *store.Index {
	idx, err := store.NewIndex(cfg.Storage.IndexDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open index: %v\n", err)
		os.Exit(1)
	}
	return idx
}

// openArchive opens the archive directory or exits.
func openArchive(cfg *config.Config) *archive.Writer {
	w, err := archive.NewWriter(cfg.Storage.ArchiveDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open archive: %v\n", err)
		os.Exit(1)
	}
	return w
}

// splitSourceArg takes the leading source argument off args so flags may
// follow it, as in "entries example --limit 5".
func splitSourceArg(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}

// parseWindow turns the --from-dt and --to-dt values into a window. From
// defaults to now and To to the Unix epoch.
func parseWindow(from, to string, now time.Time) (discovery.Window, error) {
	w := discovery.Window{From: now.UTC(), To: time.Unix(0, 0).UTC()}

	if from != "" {
		t, err := parseTimeArg(from, now)
		if err != nil {
			return w, fmt.Errorf("invalid --from-dt: %w", err)
		}
		w.From = t
	}
	if to != "" {
		t, err := parseTimeArg(to, now)
		if err != nil {
			return w, fmt.Errorf("invalid --to-dt: %w", err)
		}
		w.To = t
	}

	if err := w.Validate(); err != nil {
		return w, err
	}
	return w, nil
}

// parseTimeArg accepts RFC 3339, a bare date, or anything the date parser
// understands, such as "3 days ago" or "last monday".
func parseTimeArg(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}

	cfg := &dateparser.Configuration{
		CurrentTime:         now,
		DefaultTimezone:     time.UTC,
		PreferredDateSource: dateparser.Past,
	}
	dt, err := dateparser.Parse(cfg, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse %q as a time", s)
	}
	return dt.Time.UTC(), nil
}

// formatOptionalTime formats t or returns "-".
func formatOptionalTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
