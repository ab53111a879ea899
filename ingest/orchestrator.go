// Package ingest drives one ingestion per source: locate the window in the
// listing, fetch every article not yet archived, pack it and record it in the
// source's store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/newsarchive/discovery"
	"github.com/pevans/newsarchive/logger"
	"github.com/pevans/newsarchive/store"
)

// Source is a news site that can be listed and fetched. *site.Site
// implements it.
type Source interface {
	Name() string
	ListPage(ctx context.Context, page int) ([]discovery.ShortArticle, error)
	FetchArticle(ctx context.Context, short discovery.ShortArticle) (*discovery.Article, error)
}

// Archiver packs a fetched article and returns where it went. *archive.Writer
// implements it.
type Archiver interface {
	Write(source string, runID uuid.UUID, a *discovery.Article) (string, error)
}

// Options tunes one ingestion.
type Options struct {
	// DiscoverOnly records new ids as unparsed without fetching articles.
	DiscoverOnly bool
	// StopOnKnown ends the run at the first id already archived.
	StopOnKnown bool
	// BatchSize saves staged writes every BatchSize archived articles. Zero
	// saves only when the run ends.
	BatchSize int
}

// Failure is an article that could not be fetched, extracted or packed.
type Failure struct {
	ID   string
	Href string
	Err  error
}

// Report summarizes one ingestion.
type Report struct {
	Source     string
	RunID      uuid.UUID
	Window     discovery.Window
	StartedAt  time.Time
	FinishedAt time.Time

	// Discovered counts in-window listing records seen.
	Discovered int
	// Archived counts articles fetched, packed and marked parsed.
	Archived int
	// Skipped counts records already archived by an earlier run.
	Skipped int
	// Failed counts per-article failures; see Failures.
	Failed   int
	Failures []Failure

	// Err is the error that aborted the run, if any.
	Err error
}

// Orchestrator runs ingestions against one index and one archive.
type Orchestrator struct {
	index   *store.Index
	archive Archiver
	log     *logger.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(index *store.Index, archive Archiver, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.Discard()
	}
	return &Orchestrator{
		index:   index,
		archive: archive,
		log:     log,
	}
}

// Ingest archives every article of src published inside w that is not
// archived yet. Per-article failures are logged, counted and left unparsed
// for the next run; a discovery failure aborts the run and is returned. The
// run is recorded in the index either way.
func (o *Orchestrator) Ingest(ctx context.Context, src Source, w discovery.Window, opts Options) (*Report, error) {
	run := store.NewRun(src.Name(), w.From, w.To)
	report := &Report{
		Source:    src.Name(),
		RunID:     run.RunID,
		Window:    w,
		StartedAt: run.StartedAt,
	}
	log := o.log.With("source", src.Name(), "run_id", run.RunID.String())
	log.Info("Ingestion starting", "window", w.String(), "discover_only", opts.DiscoverOnly)

	err := o.index.WithStore(src.Name(), func(s *store.Store) error {
		return o.ingest(ctx, src, s, w, opts, report, log)
	})

	report.FinishedAt = time.Now().UTC()
	report.Err = err

	run.FinishedAt = report.FinishedAt
	run.Discovered = report.Discovered
	run.Archived = report.Archived
	run.Skipped = report.Skipped
	run.Failed = report.Failed
	if err != nil {
		msg := err.Error()
		run.Error = &msg
	}
	if recErr := o.index.RecordRun(run); recErr != nil {
		log.Error("Failed to record run", "err", recErr)
	}

	if err != nil {
		log.Error("Ingestion failed", "err", err,
			"discovered", report.Discovered, "archived", report.Archived, "failed", report.Failed)
		return report, err
	}

	log.Info("Ingestion finished",
		"discovered", report.Discovered,
		"archived", report.Archived,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duration", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond).String(),
	)
	return report, nil
}

func (o *Orchestrator) ingest(
	ctx context.Context,
	src Source,
	s *store.Store,
	w discovery.Window,
	opts Options,
	report *Report,
	log *logger.Logger,
) error {
	it, boundary, err := discovery.Discover(ctx, src.ListPage, w)
	if err != nil {
		return fmt.Errorf("failed to locate window: %w", err)
	}
	log.Debug("Window located", "first_page", boundary.FirstPage, "last_page", boundary.LastPage)

	sinceSave := 0
	for it.Next(ctx) {
		rec := it.Record()
		report.Discovered++

		if s.IsParsed(rec.ID) {
			report.Skipped++
			if opts.StopOnKnown {
				log.Debug("Reached archived article, stopping", "id", rec.ID)
				break
			}
			continue
		}

		if opts.DiscoverOnly {
			if _, err := s.Insert(store.Entry{ID: rec.ID, PublishedAt: rec.PublishedAt}, true); err != nil {
				return err
			}
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		path, err := o.archiveOne(ctx, src, rec, report.RunID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			report.Failed++
			report.Failures = append(report.Failures, Failure{ID: rec.ID, Href: rec.Href, Err: err})
			log.Warn("Failed to archive article", "id", rec.ID, "href", rec.Href, "err", err)

			// Remember the id so a later run retries it.
			if _, err := s.Insert(store.Entry{ID: rec.ID, PublishedAt: rec.PublishedAt}, true); err != nil {
				return err
			}
			continue
		}

		if s.Has(rec.ID) {
			err = s.MarkParsed(rec.ID, path, true)
		} else {
			_, err = s.Insert(store.Entry{
				ID:          rec.ID,
				PublishedAt: rec.PublishedAt,
				Parsed:      true,
				ArchivePath: path,
			}, true)
		}
		if err != nil {
			return err
		}
		report.Archived++
		log.Debug("Archived article", "id", rec.ID, "path", path)

		sinceSave++
		if opts.BatchSize > 0 && sinceSave >= opts.BatchSize {
			if err := s.Save(); err != nil {
				return err
			}
			sinceSave = 0
		}
	}

	if err := it.Err(); err != nil {
		return fmt.Errorf("failed to page listing after page %d: %w", it.LastPage(), err)
	}
	return nil
}

func (o *Orchestrator) archiveOne(ctx context.Context, src Source, rec discovery.ShortArticle, runID uuid.UUID) (string, error) {
	article, err := src.FetchArticle(ctx, rec)
	if err != nil {
		return "", err
	}
	if article.ID == "" {
		article.ID = rec.ID
	}

	path, err := o.archive.Write(src.Name(), runID, article)
	if err != nil {
		return "", fmt.Errorf("failed to archive: %w", err)
	}
	return path, nil
}

// IsRangeExhausted reports whether err means the window lies outside the
// source's listing.
func IsRangeExhausted(err error) bool {
	var exhausted *discovery.RangeExhaustedError
	return errors.As(err, &exhausted)
}
