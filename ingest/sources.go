package ingest

import (
	"errors"
	"fmt"

	"github.com/pevans/newsarchive/config"
	"github.com/pevans/newsarchive/fetch"
	"github.com/pevans/newsarchive/ratelimit"
	"github.com/pevans/newsarchive/site"
)

// ErrUnknownSource is returned when a requested source is not configured.
var ErrUnknownSource = errors.New("source is not configured")

// Sites holds the sites built from a configuration. Each site has its own
// governor, shared by its listing and article requests.
type Sites struct {
	sources  []Source
	browsers []*fetch.BrowserFetcher
}

// NewSites builds a site for each name, or for every configured source when
// names is empty.
func NewSites(cfg *config.Config, names []string) (*Sites, error) {
	if len(names) == 0 {
		names = cfg.SourceNames()
	}

	sites := &Sites{}
	for _, name := range names {
		srcCfg, ok := cfg.Source(name)
		if !ok {
			sites.Close()
			return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
		}

		s, err := sites.build(cfg.Transport, srcCfg)
		if err != nil {
			sites.Close()
			return nil, fmt.Errorf("failed to build source %s: %w", name, err)
		}
		sites.sources = append(sites.sources, s)
	}
	return sites, nil
}

func (s *Sites) build(transport config.TransportConfig, src *config.SourceConfig) (*site.Site, error) {
	governor, err := ratelimit.NewGovernor(src.HourLimit)
	if err != nil {
		return nil, err
	}

	var fetcher fetch.Fetcher
	switch src.Driver {
	case config.DriverBrowser:
		var opts []fetch.BrowserOption
		if transport.Browser.WaitSelector != "" {
			opts = append(opts, fetch.WithWaitSelector(transport.Browser.WaitSelector))
		}
		if transport.Browser.PageTimeout > 0 {
			opts = append(opts, fetch.WithPageTimeout(transport.Browser.PageTimeout))
		}
		browser := fetch.NewBrowserFetcher(governor, transport.Browser.RemoteURL, transport.UserAgent, opts...)
		s.browsers = append(s.browsers, browser)
		fetcher = browser
	default:
		opts := []fetch.HTTPOption{fetch.WithTimeout(transport.Timeout)}
		if transport.UserAgent != "" {
			opts = append(opts, fetch.WithHeader("User-Agent", transport.UserAgent))
		}
		for k, v := range src.Headers {
			opts = append(opts, fetch.WithHeader(k, v))
		}
		fetcher = fetch.NewHTTPFetcher(governor, opts...)
	}

	return site.New(site.Options{
		Name:       src.Name,
		ListURL:    src.ListURL,
		ArticleURL: src.ArticleURL,
		List:       src.List,
		Article:    src.Article,
	}, fetcher)
}

// Sources returns the built sites in the order they were named.
func (s *Sites) Sources() []Source {
	return s.sources
}

// Close shuts down any browsers the sites started.
func (s *Sites) Close() {
	for _, b := range s.browsers {
		b.Close()
	}
	s.browsers = nil
}
