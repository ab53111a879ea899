// Package fetch provides the transports that download listing pages and
// articles. Every request first takes a unit of budget from the source's rate
// governor, and every failure is reported as a *discovery.RequestError.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pevans/newsarchive/discovery"
)

// DefaultUserAgent is sent unless a source overrides it.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; rv:91.0) Gecko/20100101 Firefox/91.0"

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps how much of a response is read.
const maxBodySize = 32 << 20

// Limiter is satisfied by *ratelimit.Governor.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Fetcher downloads the document at a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches documents with net/http.
type HTTPFetcher struct {
	client  *http.Client
	limiter Limiter
	headers http.Header
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(f *HTTPFetcher) {
		f.client.Timeout = d
	}
}

// WithHeader sets a request header, replacing any default.
func WithHeader(key, value string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.headers.Set(key, value)
	}
}

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		f.client = c
	}
}

// NewHTTPFetcher creates a fetcher that takes from limiter before every
// request.
func NewHTTPFetcher(limiter Limiter, opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:  &http.Client{Timeout: DefaultTimeout},
		limiter: limiter,
		headers: http.Header{},
	}
	f.headers.Set("User-Agent", DefaultUserAgent)
	f.headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.8,*/*;q=0.7")

	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs a GET and returns the body of a 2xx response.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &discovery.RequestError{URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header = f.headers.Clone()

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &discovery.RequestError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &discovery.RequestError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &discovery.RequestError{URL: url, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	return body, nil
}
