package store

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Store is the archive index of one source, held in memory for the length of
// an ingestion. Soft writes are staged and flushed together by Save. A Store
// is not safe for concurrent use.
type Store struct {
	idx    *Index
	source string
	table  string

	entries map[string]*Entry

	// staged writes, flushed and cleared together by Save
	pendingInserts   []string
	pendingParsedIDs []string

	closed bool
}

// Open loads source's entries into memory, creating its table on first use.
func (idx *Index) Open(source string) (*Store, error) {
	if err := ValidateSourceName(source); err != nil {
		return nil, err
	}
	if err := idx.createSourceTable(source); err != nil {
		return nil, fmt.Errorf("failed to create table for %s: %w", source, err)
	}

	s := &Store{
		idx:     idx,
		source:  source,
		table:   tableName(source),
		entries: make(map[string]*Entry),
	}

	rows, err := idx.db.Query(fmt.Sprintf(
		"SELECT id, published_at, parsed, parsed_at, archive_path FROM %s ORDER BY published_at",
		s.table,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to load entries for %s: %w", source, err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		s.entries[entry.ID] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load entries for %s: %w", source, err)
	}

	return s, nil
}

// WithStore opens source's store, runs fn and saves on every way out of fn,
// panics included. A save failure is joined to fn's error.
func (idx *Index) WithStore(source string, fn func(*Store) error) (err error) {
	s, err := idx.Open(source)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	return fn(s)
}

// Source returns the source name the store belongs to.
func (s *Store) Source() string {
	return s.source
}

// Has reports whether id has been seen, archived or not.
func (s *Store) Has(id string) bool {
	_, ok := s.entries[id]
	return ok
}

// IsParsed reports whether id has been archived.
func (s *Store) IsParsed(id string) bool {
	e, ok := s.entries[id]
	return ok && e.Parsed
}

// Get returns a copy of id's entry.
func (s *Store) Get(id string) (Entry, bool) {
	e, ok := s.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len returns the number of known entries.
func (s *Store) Len() int {
	return len(s.entries)
}

// Entries returns every known entry ordered by publication time.
func (s *Store) Entries() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b Entry) int {
		if c := a.PublishedAt.Compare(b.PublishedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Insert records entry unless its id is already known; the first write wins.
// A soft insert is staged until Save. It reports whether the entry was new.
func (s *Store) Insert(entry Entry, soft bool) (bool, error) {
	if s.closed {
		return false, ErrStoreClosed
	}
	if s.Has(entry.ID) {
		return false, nil
	}

	e := entry
	if e.Parsed && e.ParsedAt == nil {
		now := time.Now().UTC()
		e.ParsedAt = &now
	}

	if !soft {
		if err := s.insertRow(&e); err != nil {
			return false, err
		}
	} else {
		s.pendingInserts = append(s.pendingInserts, e.ID)
	}
	s.entries[e.ID] = &e
	return true, nil
}

// MarkParsed moves id from discovered to archived. Parsed state never goes
// back, so marking an archived entry again is a no-op. A soft mark is staged
// until Save.
func (s *Store) MarkParsed(id, archivePath string, soft bool) error {
	if s.closed {
		return ErrStoreClosed
	}
	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrEntryNotFound, s.source, id)
	}
	if e.Parsed {
		return nil
	}

	now := time.Now().UTC()
	updated := *e
	updated.Parsed = true
	updated.ParsedAt = &now
	updated.ArchivePath = archivePath

	switch {
	case slices.Contains(s.pendingInserts, id):
		// The staged insert carries the new state.
		if !soft {
			if err := s.insertRow(&updated); err != nil {
				return err
			}
			s.pendingInserts = slices.DeleteFunc(s.pendingInserts, func(p string) bool { return p == id })
		}
	case soft:
		s.pendingParsedIDs = append(s.pendingParsedIDs, id)
	default:
		if err := s.updateParsed(&updated); err != nil {
			return err
		}
	}

	*e = updated
	return nil
}

// Pending returns how many staged writes Save would flush.
func (s *Store) Pending() int {
	return len(s.pendingInserts) + len(s.pendingParsedIDs)
}

// Save flushes staged inserts and parsed marks in one transaction and clears
// them. On failure nothing is written and the staged writes are kept so Save
// can be retried.
func (s *Store) Save() error {
	if s.Pending() == 0 {
		return nil
	}

	tx, err := s.idx.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin save for %s: %w", s.source, err)
	}

	insert := fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (id, published_at, parsed, parsed_at, archive_path) VALUES (?, ?, ?, ?, ?)",
		s.table,
	)
	for _, id := range s.pendingInserts {
		e := s.entries[id]
		if _, err := tx.Exec(insert, insertArgs(e)...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to save entry %s/%s: %w", s.source, id, err)
		}
	}

	update := fmt.Sprintf(
		"UPDATE %s SET parsed = 1, parsed_at = ?, archive_path = ? WHERE id = ? AND parsed = 0",
		s.table,
	)
	for _, id := range s.pendingParsedIDs {
		e := s.entries[id]
		if _, err := tx.Exec(update, formatTime(e.ParsedAt), nullString(e.ArchivePath), id); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to save parsed mark %s/%s: %w", s.source, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit save for %s: %w", s.source, err)
	}

	s.pendingInserts = nil
	s.pendingParsedIDs = nil
	return nil
}

// Close saves staged writes. Later writes fail with ErrStoreClosed; closing
// twice is a no-op.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	if err := s.Save(); err != nil {
		return err
	}
	s.closed = true
	return nil
}

func (s *Store) insertRow(e *Entry) error {
	_, err := s.idx.db.Exec(fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (id, published_at, parsed, parsed_at, archive_path) VALUES (?, ?, ?, ?, ?)",
		s.table,
	), insertArgs(e)...)
	if err != nil {
		return fmt.Errorf("failed to insert entry %s/%s: %w", s.source, e.ID, err)
	}
	return nil
}

func (s *Store) updateParsed(e *Entry) error {
	_, err := s.idx.db.Exec(fmt.Sprintf(
		"UPDATE %s SET parsed = 1, parsed_at = ?, archive_path = ? WHERE id = ? AND parsed = 0",
		s.table,
	), formatTime(e.ParsedAt), nullString(e.ArchivePath), e.ID)
	if err != nil {
		return fmt.Errorf("failed to mark %s/%s parsed: %w", s.source, e.ID, err)
	}
	return nil
}

func insertArgs(e *Entry) []any {
	return []any{
		e.ID,
		formatTime(&e.PublishedAt),
		boolToInt(e.Parsed),
		formatTime(e.ParsedAt),
		nullString(e.ArchivePath),
	}
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
