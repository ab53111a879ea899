package fetch

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/pevans/newsarchive/discovery"
)

// BrowserFetcher renders pages in headless Chrome for listings that are built
// by scripts. It either launches a local browser or attaches to a remote one.
type BrowserFetcher struct {
	limiter      Limiter
	allocCtx     context.Context
	cancel       context.CancelFunc
	waitSelector string
	timeout      time.Duration
}

// BrowserOption configures a BrowserFetcher.
type BrowserOption func(*BrowserFetcher)

// WithWaitSelector waits for selector to be ready instead of body.
func WithWaitSelector(selector string) BrowserOption {
	return func(b *BrowserFetcher) {
		b.waitSelector = selector
	}
}

// WithPageTimeout bounds one page render.
func WithPageTimeout(d time.Duration) BrowserOption {
	return func(b *BrowserFetcher) {
		b.timeout = d
	}
}

// NewBrowserFetcher starts an allocator. When remoteURL is set it attaches to
// the DevTools endpoint there; otherwise it launches a local headless Chrome
// on first use.
func NewBrowserFetcher(limiter Limiter, remoteURL, userAgent string, opts ...BrowserOption) *BrowserFetcher {
	var (
		allocCtx context.Context
		cancel   context.CancelFunc
	)
	if remoteURL != "" {
		allocCtx, cancel = chromedp.NewRemoteAllocator(context.Background(), remoteURL)
	} else {
		if userAgent == "" {
			userAgent = DefaultUserAgent
		}
		execOpts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.UserAgent(userAgent))
		allocCtx, cancel = chromedp.NewExecAllocator(context.Background(), execOpts...)
	}

	b := &BrowserFetcher{
		limiter:      limiter,
		allocCtx:     allocCtx,
		cancel:       cancel,
		waitSelector: "body",
		timeout:      DefaultTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Fetch navigates a fresh tab to url and returns the rendered document.
// Browser navigation does not expose status codes, so only navigation and
// rendering failures are reported.
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := b.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(b.allocCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(b.waitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &discovery.RequestError{URL: url, Err: err}
	}
	return []byte(html), nil
}

// Close shuts the browser down.
func (b *BrowserFetcher) Close() {
	b.cancel()
}
