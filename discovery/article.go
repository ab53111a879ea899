// Package discovery locates the slice of a reverse-chronological, paginated
// listing that falls inside a time window and pages through it lazily.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWindow is returned when a window's From is older than its To.
var ErrInvalidWindow = errors.New("window start must not be older than window end")

// ShortArticle is one entry of a listing page. Listings are ordered newest
// first, so PublishedAt never increases with position.
type ShortArticle struct {
	ID          string    `json:"id"`
	Href        string    `json:"href"`
	PublishedAt time.Time `json:"published_at"`
}

// Article is a fully fetched and extracted article.
type Article struct {
	ID          string    `json:"id"`
	Href        string    `json:"href"`
	Header      string    `json:"header"`
	Body        string    `json:"body"`
	Keywords    []string  `json:"keywords"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`

	// Raw is the fetched document as received.
	Raw []byte `json:"-"`
}

// Window is an inclusive time range walked newest first: From is the newest
// instant and To the oldest.
type Window struct {
	From time.Time
	To   time.Time
}

// Validate checks that the window is ordered newest first.
func (w Window) Validate() error {
	if w.From.Before(w.To) {
		return fmt.Errorf("%w: %s", ErrInvalidWindow, w)
	}
	return nil
}

// Contains reports whether t falls inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.To) && !t.After(w.From)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s .. %s]", w.From.Format(time.RFC3339), w.To.Format(time.RFC3339))
}

// PageFunc fetches one listing page. Pages are 1-indexed and an empty result
// means the listing has no more pages.
type PageFunc func(ctx context.Context, page int) ([]ShortArticle, error)

// firstInWindow returns the index of the first record inside w, or -1.
func firstInWindow(w Window, records []ShortArticle) int {
	for i, r := range records {
		if w.Contains(r.PublishedAt) {
			return i
		}
	}
	return -1
}
