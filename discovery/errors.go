package discovery

import (
	"fmt"
)

// RequestError is a transport failure: a network fault or a non-2xx status.
type RequestError struct {
	URL        string
	StatusCode int // zero for network faults
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("request %s failed with status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("request %s failed: %v", e.URL, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// ContentExtractionError means a required field was missing from a fetched
// document.
type ContentExtractionError struct {
	URL   string
	Field string
	Err   error
}

func (e *ContentExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to extract %q from %s: %v", e.Field, e.URL, e.Err)
	}
	return fmt.Sprintf("failed to extract %q from %s: field is empty", e.Field, e.URL)
}

func (e *ContentExtractionError) Unwrap() error {
	return e.Err
}

// RangeExhaustedError means the boundary search revisited a page without
// finding the window, so the window lies outside the listing's history.
type RangeExhaustedError struct {
	Window Window
	Page   int
}

func (e *RangeExhaustedError) Error() string {
	return fmt.Sprintf("window %s is out of the listing's range (search revisited page %d)", e.Window, e.Page)
}
