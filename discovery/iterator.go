package discovery

import (
	"context"
)

// WindowIterator yields the listing records inside a window, newest first,
// fetching further pages only when its buffer runs dry. It is forward-only
// and cannot be restarted.
//
//	it, _, err := discovery.Discover(ctx, fetch, window)
//	for it.Next(ctx) {
//		rec := it.Record()
//	}
//	if err := it.Err(); err != nil { ... }
type WindowIterator struct {
	listing  *Listing
	window   Window
	buf      []ShortArticle
	pos      int
	lastPage int
	current  ShortArticle
	done     bool
	err      error
}

// NewWindowIterator continues from a located boundary.
func NewWindowIterator(listing *Listing, w Window, b *Boundary) *WindowIterator {
	return &WindowIterator{
		listing:  listing,
		window:   w,
		buf:      append([]ShortArticle(nil), b.Records...),
		lastPage: b.LastPage,
	}
}

// Discover locates window w in the listing behind fetch and returns an
// iterator positioned at its newest record.
func Discover(ctx context.Context, fetch PageFunc, w Window) (*WindowIterator, *Boundary, error) {
	listing := NewListing(fetch)

	boundary, err := Locate(ctx, listing, w)
	if err != nil {
		return nil, nil, err
	}

	return NewWindowIterator(listing, w, boundary), boundary, nil
}

// Next advances to the next in-window record. It returns false once a record
// older than the window is reached, the listing runs out, or a fetch fails;
// Err distinguishes the last case.
func (it *WindowIterator) Next(ctx context.Context) bool {
	for !it.done {
		if it.pos >= len(it.buf) && !it.fill(ctx) {
			return false
		}

		rec := it.buf[it.pos]
		it.pos++

		if rec.PublishedAt.Before(it.window.To) {
			it.done = true
			return false
		}
		// Pinned or re-sorted entries newer than the window are skipped.
		if rec.PublishedAt.After(it.window.From) {
			continue
		}

		it.current = rec
		return true
	}
	return false
}

// fill appends the next page to the buffer.
func (it *WindowIterator) fill(ctx context.Context) bool {
	page := it.lastPage + 1
	records, err := it.listing.Page(ctx, page)
	if err != nil {
		it.err = err
		it.done = true
		return false
	}
	if len(records) == 0 {
		it.done = true
		return false
	}

	it.lastPage = page
	// Consumed records are dropped so long windows do not hold every page.
	it.buf = append(it.buf[:0], records...)
	it.pos = 0
	return true
}

// Record returns the record Next advanced to.
func (it *WindowIterator) Record() ShortArticle {
	return it.current
}

// Err returns the fetch error that stopped iteration, if any.
func (it *WindowIterator) Err() error {
	return it.err
}

// LastPage returns the highest listing page read so far.
func (it *WindowIterator) LastPage() int {
	return it.lastPage
}
