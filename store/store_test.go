package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: create a test index
func createTestIndex(t *testing.T) (*Index, string) {
	dbPath := filepath.Join(t.TempDir(), "index.db")
	idx, err := NewIndex(dbPath)
	require.NoError(t, err, "should create index")
	t.Cleanup(func() { idx.Close() })
	return idx, dbPath
}

func day(d int) time.Time {
	return time.Date(2024, 5, d, 12, 0, 0, 0, time.UTC)
}

// TestNewIndex_ExistingDatabase verifies entries survive reopening
func TestNewIndex_ExistingDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.db")

	idx1, err := NewIndex(dbPath)
	require.NoError(t, err)
	err = idx1.WithStore("example", func(s *Store) error {
		_, err := s.Insert(Entry{ID: "1", PublishedAt: day(1), Parsed: true}, false)
		return err
	})
	require.NoError(t, err)
	idx1.Close()

	idx2, err := NewIndex(dbPath)
	require.NoError(t, err)
	defer idx2.Close()

	s, err := idx2.Open("example")
	require.NoError(t, err)
	assert.True(t, s.IsParsed("1"))
	assert.Equal(t, day(1), s.Entries()[0].PublishedAt)
}

func TestOpen_RejectsBadSourceName(t *testing.T) {
	idx, _ := createTestIndex(t)

	for _, name := range []string{"", "Upper", "a b", `x";DROP TABLE runs;--`, "../etc"} {
		_, err := idx.Open(name)
		assert.ErrorIs(t, err, ErrInvalidSourceName, "name %q", name)
	}
}

// TestInsert_FirstWriteWins checks that an existing parsed entry is left as it
// is when the same id is inserted again.
func TestInsert_FirstWriteWins(t *testing.T) {
	idx, _ := createTestIndex(t)
	s, err := idx.Open("example")
	require.NoError(t, err)

	created, err := s.Insert(Entry{ID: "5", PublishedAt: day(5), Parsed: true}, false)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Insert(Entry{ID: "5", PublishedAt: day(9), Parsed: false}, false)
	require.NoError(t, err)
	assert.False(t, created)

	e, ok := s.Get("5")
	require.True(t, ok)
	assert.True(t, e.Parsed)
	assert.Equal(t, day(5), e.PublishedAt)

	stored, err := idx.GetEntry("example", "5")
	require.NoError(t, err)
	assert.True(t, stored.Parsed)
	assert.Equal(t, day(5), stored.PublishedAt)
}

func TestInsert_SoftIsDeferredUntilSave(t *testing.T) {
	idx, _ := createTestIndex(t)
	s, err := idx.Open("example")
	require.NoError(t, err)

	_, err = s.Insert(Entry{ID: "1", PublishedAt: day(1)}, true)
	require.NoError(t, err)
	assert.True(t, s.Has("1"), "in-memory index sees staged entries")
	assert.Equal(t, 1, s.Pending())

	_, err = idx.GetEntry("example", "1")
	assert.ErrorIs(t, err, ErrEntryNotFound)

	require.NoError(t, s.Save())
	assert.Zero(t, s.Pending())

	stored, err := idx.GetEntry("example", "1")
	require.NoError(t, err)
	assert.False(t, stored.Parsed)

	require.NoError(t, s.Save(), "save with nothing staged is a no-op")
}

func TestMarkParsed_Monotonic(t *testing.T) {
	idx, _ := createTestIndex(t)
	s, err := idx.Open("example")
	require.NoError(t, err)

	_, err = s.Insert(Entry{ID: "1", PublishedAt: day(1)}, false)
	require.NoError(t, err)
	assert.False(t, s.IsParsed("1"))

	require.NoError(t, s.MarkParsed("1", "example/example_1.zip", false))
	assert.True(t, s.IsParsed("1"))

	first, _ := s.Get("1")
	require.NotNil(t, first.ParsedAt)

	require.NoError(t, s.MarkParsed("1", "other.zip", false))
	again, _ := s.Get("1")
	assert.Equal(t, first.ParsedAt, again.ParsedAt)
	assert.Equal(t, "example/example_1.zip", again.ArchivePath)

	// Inserting an unparsed duplicate never resets the flag.
	_, err = s.Insert(Entry{ID: "1", PublishedAt: day(1)}, false)
	require.NoError(t, err)
	assert.True(t, s.IsParsed("1"))

	stored, err := idx.GetEntry("example", "1")
	require.NoError(t, err)
	assert.True(t, stored.Parsed)
	assert.Equal(t, "example/example_1.zip", stored.ArchivePath)
}

func TestMarkParsed_UnknownID(t *testing.T) {
	idx, _ := createTestIndex(t)
	s, err := idx.Open("example")
	require.NoError(t, err)

	assert.ErrorIs(t, s.MarkParsed("nope", "", false), ErrEntryNotFound)
}

func TestMarkParsed_SoftOnStagedInsert(t *testing.T) {
	idx, _ := createTestIndex(t)
	s, err := idx.Open("example")
	require.NoError(t, err)

	_, err = s.Insert(Entry{ID: "1", PublishedAt: day(1)}, true)
	require.NoError(t, err)
	require.NoError(t, s.MarkParsed("1", "a.zip", true))
	assert.Equal(t, 1, s.Pending(), "the staged insert carries the parsed state")

	require.NoError(t, s.Save())

	stored, err := idx.GetEntry("example", "1")
	require.NoError(t, err)
	assert.True(t, stored.Parsed)
	assert.Equal(t, "a.zip", stored.ArchivePath)
}

func TestMarkParsed_ImmediateOnStagedInsert(t *testing.T) {
	idx, _ := createTestIndex(t)
	s, err := idx.Open("example")
	require.NoError(t, err)

	_, err = s.Insert(Entry{ID: "1", PublishedAt: day(1)}, true)
	require.NoError(t, err)
	require.NoError(t, s.MarkParsed("1", "a.zip", false))
	assert.Zero(t, s.Pending())

	stored, err := idx.GetEntry("example", "1")
	require.NoError(t, err)
	assert.True(t, stored.Parsed)
}

func TestMarkParsed_SoftOnStoredEntry(t *testing.T) {
	idx, _ := createTestIndex(t)
	s, err := idx.Open("example")
	require.NoError(t, err)

	_, err = s.Insert(Entry{ID: "1", PublishedAt: day(1)}, false)
	require.NoError(t, err)
	require.NoError(t, s.MarkParsed("1", "a.zip", true))

	stored, err := idx.GetEntry("example", "1")
	require.NoError(t, err)
	assert.False(t, stored.Parsed, "soft mark waits for save")

	require.NoError(t, s.Save())
	stored, err = idx.GetEntry("example", "1")
	require.NoError(t, err)
	assert.True(t, stored.Parsed)
}

func TestWithStore_SavesOnError(t *testing.T) {
	idx, _ := createTestIndex(t)
	boom := errors.New("boom")

	err := idx.WithStore("example", func(s *Store) error {
		_, err := s.Insert(Entry{ID: "1", PublishedAt: day(1)}, true)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, err := idx.GetEntry("example", "1")
	require.NoError(t, err)
	assert.Equal(t, "1", stored.ID)
}

func TestWithStore_SavesOnPanic(t *testing.T) {
	idx, _ := createTestIndex(t)

	assert.Panics(t, func() {
		idx.WithStore("example", func(s *Store) error {
			s.Insert(Entry{ID: "1", PublishedAt: day(1)}, true)
			panic("crawler blew up")
		})
	})

	_, err := idx.GetEntry("example", "1")
	assert.NoError(t, err)
}

func TestWithStore_JoinsSaveError(t *testing.T) {
	idx, _ := createTestIndex(t)
	boom := errors.New("boom")

	err := idx.WithStore("example", func(s *Store) error {
		s.Insert(Entry{ID: "1", PublishedAt: day(1)}, true)
		// Drop the table so the deferred save fails.
		_, err := idx.db.Exec(`DROP TABLE "archive_example"`)
		require.NoError(t, err)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "failed to save entry example/1")
}

func TestSave_FailureKeepsStagedWrites(t *testing.T) {
	idx, _ := createTestIndex(t)
	s, err := idx.Open("example")
	require.NoError(t, err)

	_, err = s.Insert(Entry{ID: "1", PublishedAt: day(1)}, true)
	require.NoError(t, err)
	_, err = s.Insert(Entry{ID: "2", PublishedAt: day(2)}, true)
	require.NoError(t, err)

	_, err = idx.db.Exec(`DROP TABLE "archive_example"`)
	require.NoError(t, err)
	assert.Error(t, s.Save())
	assert.Equal(t, 2, s.Pending())

	require.NoError(t, idx.createSourceTable("example"))
	require.NoError(t, s.Save())
	assert.Zero(t, s.Pending())

	entries, err := idx.ListEntries("example", EntryFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestClose_RejectsLaterWrites(t *testing.T) {
	idx, _ := createTestIndex(t)
	s, err := idx.Open("example")
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Insert(Entry{ID: "1"}, false)
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, s.MarkParsed("1", "", false), ErrStoreClosed)
}

func TestEntries_OrderedByPublishTime(t *testing.T) {
	idx, _ := createTestIndex(t)
	s, err := idx.Open("example")
	require.NoError(t, err)

	for _, d := range []int{3, 1, 2} {
		_, err := s.Insert(Entry{ID: string(rune('a' + d)), PublishedAt: day(d)}, true)
		require.NoError(t, err)
	}

	entries := s.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, day(1), entries[0].PublishedAt)
	assert.Equal(t, day(3), entries[2].PublishedAt)
	assert.Equal(t, 3, s.Len())
}

func TestListEntries_Filters(t *testing.T) {
	idx, _ := createTestIndex(t)
	err := idx.WithStore("example", func(s *Store) error {
		for d := 1; d <= 5; d++ {
			if _, err := s.Insert(Entry{ID: string(rune('0' + d)), PublishedAt: day(d), Parsed: d%2 == 1}, true); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	all, err := idx.ListEntries("example", EntryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "5", all[0].ID, "newest first")

	parsed := true
	onlyParsed, err := idx.ListEntries("example", EntryFilter{Parsed: &parsed})
	require.NoError(t, err)
	assert.Len(t, onlyParsed, 3)

	unparsed := false
	onlyNew, err := idx.ListEntries("example", EntryFilter{Parsed: &unparsed})
	require.NoError(t, err)
	assert.Len(t, onlyNew, 2)

	page, err := idx.ListEntries("example", EntryFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "4", page[0].ID)

	tail, err := idx.ListEntries("example", EntryFilter{Offset: 4})
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "1", tail[0].ID)

	total, err := idx.CountEntries("example", EntryFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, total, "count ignores paging")

	total, err = idx.CountEntries("example", EntryFilter{Parsed: &unparsed})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	_, err = idx.CountEntries("missing", EntryFilter{})
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestListEntries_UnknownSource(t *testing.T) {
	idx, _ := createTestIndex(t)

	_, err := idx.ListEntries("missing", EntryFilter{})
	assert.ErrorIs(t, err, ErrSourceNotFound)

	_, err = idx.GetEntry("Not Valid", "1")
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestSources_Summaries(t *testing.T) {
	idx, _ := createTestIndex(t)

	require.NoError(t, idx.WithStore("beta", func(s *Store) error {
		s.Insert(Entry{ID: "1", PublishedAt: day(1), Parsed: true}, true)
		s.Insert(Entry{ID: "2", PublishedAt: day(2)}, true)
		return nil
	}))
	require.NoError(t, idx.WithStore("alpha", func(s *Store) error { return nil }))

	summaries, err := idx.Sources()
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, SourceSummary{Name: "alpha"}, summaries[0])
	assert.Equal(t, SourceSummary{Name: "beta", Entries: 2, Parsed: 1}, summaries[1])
}
