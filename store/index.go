// Package store persists which articles of each source have been seen and
// archived. Every source gets its own table in one SQLite index database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Custom errors for index operations
var (
	ErrSourceNotFound    = errors.New("source not found")
	ErrEntryNotFound     = errors.New("entry not found")
	ErrInvalidSourceName = errors.New("source name must be lowercase letters, digits, '-' or '_'")
	ErrStoreClosed       = errors.New("store is closed")
)

// tablePrefix keeps source tables apart from the index's own tables.
const tablePrefix = "archive_"

var sourceNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// Entry is one archived (or merely discovered) article.
type Entry struct {
	ID          string     `json:"id"`
	PublishedAt time.Time  `json:"published_at"`
	Parsed      bool       `json:"parsed"`
	ParsedAt    *time.Time `json:"parsed_at,omitempty"`
	ArchivePath string     `json:"archive_path,omitempty"`
}

// EntryFilter represents filtering options for listing entries.
type EntryFilter struct {
	Parsed *bool // Filter by parsed state
	Limit  int   // Pagination limit
	Offset int   // Pagination offset
}

// SourceSummary counts the entries of one source.
type SourceSummary struct {
	Name    string `json:"name"`
	Entries int    `json:"entries"`
	Parsed  int    `json:"parsed"`
}

// Index is the SQLite database holding every source's table and the run log.
type Index struct {
	db *sql.DB
}

// NewIndex opens (creating if needed) the index database at dbPath.
func NewIndex(dbPath string) (*Index, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Sources run in parallel; SQLite takes one writer at a time.
	db.SetMaxOpenConns(1)

	idx := &Index{db: db}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return idx, nil
}

// initSchema creates the runs table if it doesn't exist. Source tables are
// created when a source is first opened.
func (idx *Index) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		window_from TEXT NOT NULL,
		window_to TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		discovered INTEGER NOT NULL DEFAULT 0,
		archived INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS runs_source_started ON runs (source, started_at);
	`

	_, err := idx.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// ValidateSourceName reports whether name can key a source table.
func ValidateSourceName(name string) error {
	if !sourceNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidSourceName, name)
	}
	return nil
}

func tableName(source string) string {
	return `"` + tablePrefix + source + `"`
}

func (idx *Index) createSourceTable(source string) error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		published_at TEXT NOT NULL,
		parsed INTEGER NOT NULL DEFAULT 0,
		parsed_at TEXT,
		archive_path TEXT
	);
	`, tableName(source))

	_, err := idx.db.Exec(schema)
	return err
}

// hasSource reports whether a table exists for source.
func (idx *Index) hasSource(source string) (bool, error) {
	var n int
	err := idx.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		tablePrefix+source,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query tables: %w", err)
	}
	return n > 0, nil
}

// Sources lists every source that has a table, with entry counts.
func (idx *Index) Sources() ([]SourceSummary, error) {
	rows, err := idx.db.Query(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE ? ORDER BY name",
		tablePrefix+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, strings.TrimPrefix(name, tablePrefix))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}

	summaries := make([]SourceSummary, 0, len(names))
	for _, name := range names {
		s := SourceSummary{Name: name}
		err := idx.db.QueryRow(
			fmt.Sprintf("SELECT COUNT(*), COALESCE(SUM(parsed), 0) FROM %s", tableName(name)),
		).Scan(&s.Entries, &s.Parsed)
		if err != nil {
			return nil, fmt.Errorf("failed to count entries for %s: %w", name, err)
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

// ListEntries lists a source's entries newest first.
func (idx *Index) ListEntries(source string, filter EntryFilter) ([]Entry, error) {
	if err := idx.requireSource(source); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT id, published_at, parsed, parsed_at, archive_path FROM %s",
		tableName(source),
	)

	var args []any
	if filter.Parsed != nil {
		query += " WHERE parsed = ?"
		args = append(args, boolToInt(*filter.Parsed))
	}

	query += " ORDER BY published_at DESC, id"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	} else if filter.Offset > 0 {
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := idx.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}

	return entries, nil
}

// CountEntries counts a source's entries matching the filter's parsed state.
// Limit and Offset are ignored.
func (idx *Index) CountEntries(source string, filter EntryFilter) (int, error) {
	if err := idx.requireSource(source); err != nil {
		return 0, err
	}

	query := "SELECT COUNT(*) FROM " + tableName(source)
	var args []any
	if filter.Parsed != nil {
		query += " WHERE parsed = ?"
		args = append(args, boolToInt(*filter.Parsed))
	}

	var n int
	if err := idx.db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

// GetEntry retrieves one entry of a source.
func (idx *Index) GetEntry(source, id string) (*Entry, error) {
	if err := idx.requireSource(source); err != nil {
		return nil, err
	}

	row := idx.db.QueryRow(
		fmt.Sprintf("SELECT id, published_at, parsed, parsed_at, archive_path FROM %s WHERE id = ?", tableName(source)),
		id,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (idx *Index) requireSource(source string) error {
	if err := ValidateSourceName(source); err != nil {
		return ErrSourceNotFound
	}
	ok, err := idx.hasSource(source)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSourceNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry parses one entry row.
func scanEntry(row rowScanner) (*Entry, error) {
	var id, publishedAt string
	var parsed int
	var parsedAt, archivePath sql.NullString

	if err := row.Scan(&id, &publishedAt, &parsed, &parsedAt, &archivePath); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}

	entry := &Entry{
		ID:          id,
		PublishedAt: parseTime(publishedAt),
		Parsed:      parsed != 0,
		ArchivePath: archivePath.String,
	}
	if parsedAt.Valid {
		t := parseTime(parsedAt.String)
		entry.ParsedAt = &t
	}
	return entry, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Helper functions for time formatting
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	// Try RFC3339Nano first, fall back to RFC3339 for compatibility
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.UTC()
}
