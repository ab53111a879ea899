package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pevans/newsarchive/discovery"
	"github.com/pevans/newsarchive/logger"
)

// ServiceConfig holds configuration for the multi-source service.
type ServiceConfig struct {
	// Maximum number of sources ingested in parallel
	Concurrency int
	// Wall-clock bound on one source's ingestion; zero means none
	SourceTimeout time.Duration
}

// DefaultServiceConfig returns the default service configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Concurrency:   4,
		SourceTimeout: 2 * time.Hour,
	}
}

// Service ingests several sources in parallel. Each source gets its own
// store scope and, through its site, its own rate governor.
type Service struct {
	orch      *Orchestrator
	config    ServiceConfig
	log       *logger.Logger
	semaphore chan struct{}
}

// NewService creates a service over orch.
func NewService(orch *Orchestrator, config ServiceConfig, log *logger.Logger) *Service {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		orch:      orch,
		config:    config,
		log:       log,
		semaphore: make(chan struct{}, config.Concurrency),
	}
}

// Result collects the reports of one RunAll, in the order sources were given.
type Result struct {
	Reports []*Report
}

// Failed returns the reports of runs that aborted.
func (r *Result) Failed() []*Report {
	var failed []*Report
	for _, rep := range r.Reports {
		if rep.Err != nil {
			failed = append(failed, rep)
		}
	}
	return failed
}

// Err joins the errors of every aborted run.
func (r *Result) Err() error {
	var errs []error
	for _, rep := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", rep.Source, rep.Err))
	}
	return errors.Join(errs...)
}

// RunAll ingests every source over the same window. One source failing does
// not stop the others. Sources not started before ctx is cancelled report
// ctx's error.
func (s *Service) RunAll(ctx context.Context, sources []Source, w discovery.Window, opts Options) *Result {
	result := &Result{Reports: make([]*Report, len(sources))}
	var wg sync.WaitGroup

	s.log.Info("Ingesting sources", "count", len(sources), "concurrency", s.config.Concurrency)

	for i, src := range sources {
		select {
		case <-ctx.Done():
			result.Reports[i] = &Report{Source: src.Name(), Window: w, Err: ctx.Err()}
			continue
		case s.semaphore <- struct{}{}: // Acquire semaphore
		}

		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			defer func() { <-s.semaphore }() // Release semaphore

			result.Reports[i] = s.runOne(ctx, src, w, opts)
		}(i, src)
	}

	wg.Wait()
	return result
}

func (s *Service) runOne(ctx context.Context, src Source, w discovery.Window, opts Options) *Report {
	if s.config.SourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.SourceTimeout)
		defer cancel()
	}

	report, err := s.orch.Ingest(ctx, src, w, opts)
	if report == nil {
		report = &Report{Source: src.Name(), Window: w, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		s.log.Warn("Source timed out", "source", src.Name(), "timeout", s.config.SourceTimeout.String())
	}
	return report
}
