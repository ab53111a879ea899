package discovery

import (
	"context"
	"errors"
)

// initialHigh is the first guess at an upper page bound. It doubles while
// pages are still newer than the window.
const initialHigh = 1000

// Listing wraps a PageFunc with a cache of the pages fetched during one
// discovery call so the search and the iterator never request a page twice.
type Listing struct {
	fetch   PageFunc
	pages   map[int][]ShortArticle
	fetches int
}

// NewListing creates a listing over fetch.
func NewListing(fetch PageFunc) *Listing {
	return &Listing{
		fetch: fetch,
		pages: make(map[int][]ShortArticle),
	}
}

// Page returns page n, fetching it on first use. Failed fetches are not
// cached.
func (l *Listing) Page(ctx context.Context, n int) ([]ShortArticle, error) {
	if records, ok := l.pages[n]; ok {
		return records, nil
	}

	records, err := l.fetch(ctx, n)
	l.fetches++
	if err != nil {
		return nil, err
	}

	l.pages[n] = records
	return records, nil
}

// Fetches returns how many requests went to the underlying PageFunc.
func (l *Listing) Fetches() int {
	return l.fetches
}

// Boundary is the result of Locate.
type Boundary struct {
	// FirstPage is the page holding the newest in-window record.
	FirstPage int
	// LastPage is the highest page already read into Records. Paging
	// continues from LastPage+1.
	LastPage int
	// Records starts at the newest in-window record and runs to the end of
	// LastPage.
	Records []ShortArticle
}

// Locate finds the listing page where window w begins. The page count is
// unknown, so it grows an upper bound exponentially until it overshoots (an
// empty page or a page older than the window) and then bisects. A page that
// comes up twice means the window cannot be found and a *RangeExhaustedError
// is returned. Request errors while searching count as empty pages.
func Locate(ctx context.Context, listing *Listing, w Window) (*Boundary, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	low, high, mid := 0, initialHigh, 1
	grow := true
	visited := map[int]bool{mid: true}

	records, err := searchPage(ctx, listing, mid)
	if err != nil {
		return nil, err
	}
	idx := firstInWindow(w, records)

	for idx < 0 {
		switch {
		case len(records) == 0:
			// Past the end: this is an upper bound.
			high = mid
			grow = false
		case records[0].PublishedAt.After(w.From):
			low = mid
			if grow {
				high *= 2
			}
		default:
			high = mid
		}

		mid = (low + high) / 2
		if mid < 1 || visited[mid] {
			return nil, &RangeExhaustedError{Window: w, Page: max(mid, 1)}
		}
		visited[mid] = true

		records, err = searchPage(ctx, listing, mid)
		if err != nil {
			return nil, err
		}
		idx = firstInWindow(w, records)
	}

	lastPage := mid
	data := records

	// The window may start on an earlier page when the match opens the page.
	for idx == 0 && mid > 1 {
		mid--
		prev, err := searchPage(ctx, listing, mid)
		if err != nil {
			return nil, err
		}
		idx = firstInWindow(w, prev)
		data = append(append([]ShortArticle(nil), prev...), data...)
	}

	firstPage := mid
	if idx < 0 {
		firstPage = mid + 1
	}

	start := firstInWindow(w, data)
	return &Boundary{
		FirstPage: firstPage,
		LastPage:  lastPage,
		Records:   data[start:],
	}, nil
}

// searchPage fetches a page for the search, treating request errors as an
// empty page.
func searchPage(ctx context.Context, listing *Listing, n int) ([]ShortArticle, error) {
	records, err := listing.Page(ctx, n)
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			return nil, nil
		}
		return nil, err
	}
	return records, nil
}
