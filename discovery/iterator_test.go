package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, it *WindowIterator) []int {
	t.Helper()
	var out []int
	for it.Next(context.Background()) {
		out = append(out, publishedSecs([]ShortArticle{it.Record()})[0])
	}
	return out
}

func TestDiscover_StopsAtFirstRecordOlderThanWindow(t *testing.T) {
	l := newFakeListing([]int{100, 90}, []int{80, 70}, []int{60, 50})

	it, b, err := Discover(context.Background(), l.fetch, window(85, 65))
	require.NoError(t, err)
	assert.Equal(t, 2, b.FirstPage)

	assert.Equal(t, []int{80, 70}, collect(t, it))
	assert.NoError(t, it.Err())
	assert.Equal(t, 3, it.LastPage())
	assert.Equal(t, 1, l.requests[3])
}

func TestDiscover_PagesThroughLongWindow(t *testing.T) {
	l := newUniformListing(100, 5)

	it, _, err := Discover(context.Background(), l.fetch, window(55, 40))
	require.NoError(t, err)

	got := collect(t, it)
	require.Len(t, got, 16)
	assert.Equal(t, 55, got[0])
	assert.Equal(t, 40, got[len(got)-1])
	assert.NoError(t, it.Err())

	for page, n := range l.requests {
		assert.Equal(t, 1, n, "page %d requested more than once", page)
	}
	assert.Zero(t, l.requests[14], "pages past the window should not be fetched")
}

func TestDiscover_RunsToEndOfListing(t *testing.T) {
	l := newFakeListing([]int{100, 90}, []int{80, 70}, []int{60, 50})

	it, _, err := Discover(context.Background(), l.fetch, window(85, 0))
	require.NoError(t, err)

	assert.Equal(t, []int{80, 70, 60, 50}, collect(t, it))
	assert.NoError(t, it.Err())
	assert.False(t, it.Next(context.Background()), "iterator stays exhausted")
}

func TestDiscover_PropagatesLocateError(t *testing.T) {
	l := newFakeListing([]int{100, 90})

	it, b, err := Discover(context.Background(), l.fetch, window(500, 400))

	var exhausted *RangeExhaustedError
	assert.ErrorAs(t, err, &exhausted)
	assert.Nil(t, it)
	assert.Nil(t, b)
}

func TestWindowIterator_SkipsRecordsNewerThanWindow(t *testing.T) {
	l := newFakeListing([]int{90}, []int{200, 70, 60})
	listing := NewListing(l.fetch)
	b := &Boundary{
		FirstPage: 1,
		LastPage:  1,
		Records:   []ShortArticle{{ID: "a", PublishedAt: ts(80)}},
	}

	it := NewWindowIterator(listing, window(85, 65), b)

	assert.Equal(t, []int{80, 70}, collect(t, it))
	assert.NoError(t, it.Err())
}

func TestWindowIterator_StopsOnFetchError(t *testing.T) {
	l := newFakeListing([]int{100, 90}, []int{80, 70}, []int{60, 50})
	reqErr := &RequestError{URL: "http://example.com/?page=3", StatusCode: 503}
	l.fail[3] = reqErr

	it, _, err := Discover(context.Background(), l.fetch, window(85, 0))
	require.NoError(t, err)

	assert.Equal(t, []int{80, 70}, collect(t, it))

	var got *RequestError
	require.ErrorAs(t, it.Err(), &got)
	assert.Equal(t, 503, got.StatusCode)
}

func TestWindowIterator_RecordBeforeNextIsZero(t *testing.T) {
	it := NewWindowIterator(NewListing(newFakeListing().fetch), window(10, 0), &Boundary{})

	assert.Equal(t, ShortArticle{}, it.Record())
	assert.False(t, it.Next(context.Background()))
	assert.NoError(t, it.Err())
}
