// Package archive packs fetched articles into one zip per article: the raw
// document plus a JSON metadata file, under a folder per source.
package archive

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/newsarchive/discovery"
)

// ErrNotFound is returned when no unit exists for an article.
var ErrNotFound = errors.New("archive unit not found")

// Metadata is the JSON document stored beside the raw content.
type Metadata struct {
	Source      string    `json:"source"`
	ID          string    `json:"id"`
	Href        string    `json:"href"`
	Header      string    `json:"header"`
	Body        string    `json:"body"`
	Keywords    []string  `json:"keywords"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
	RunID       uuid.UUID `json:"run_id"`
}

// Unit is one article read back from the archive.
type Unit struct {
	Metadata Metadata
	Raw      []byte
}

// ReadError describes a failure to read a single archive unit.
type ReadError struct {
	Filename string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}

// ListResult contains the results of listing a source's units, including
// any per-file errors that occurred during the operation.
type ListResult struct {
	Units  []Metadata
	Errors []ReadError
}

// Writer stores units under a root directory.
type Writer struct {
	dir string
}

// NewWriter creates the archive root if it doesn't exist.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Dir returns the archive root.
func (w *Writer) Dir() string {
	return w.dir
}

// baseName is the stem shared by the zip and its members.
func baseName(source, id string) string {
	return source + "_" + escapeID(id)
}

// escapeID maps an id onto a file name. Bytes outside [A-Za-z0-9.-] become
// "_XX" in upper hex; "_" is itself escaped, so distinct ids never share a
// name.
func escapeID(id string) string {
	var b strings.Builder
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9', c == '.', c == '-':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "_%02X", c)
		}
	}
	return b.String()
}

// RelPath returns the unit's path relative to the archive root.
func RelPath(source, id string) string {
	return filepath.Join(source, baseName(source, id)+".zip")
}

// Write packs an article and returns the unit's path relative to the root.
// The zip is written to a temporary file and renamed into place, so a unit
// is either complete or absent.
func (w *Writer) Write(source string, runID uuid.UUID, a *discovery.Article) (string, error) {
	dir := filepath.Join(w.dir, source)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create source directory: %w", err)
	}

	meta := Metadata{
		Source:      source,
		ID:          a.ID,
		Href:        a.Href,
		Header:      a.Header,
		Body:        a.Body,
		Keywords:    a.Keywords,
		PublishedAt: a.PublishedAt,
		FetchedAt:   a.FetchedAt,
		RunID:       runID,
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".unit-*")
	if err != nil {
		return "", fmt.Errorf("failed to create archive unit: %w", err)
	}
	defer os.Remove(tmp.Name())

	base := baseName(source, a.ID)
	if err := writeZip(tmp, base, a.Raw, metaJSON, a.FetchedAt); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write archive unit: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write archive unit: %w", err)
	}

	rel := RelPath(source, a.ID)
	if err := os.Rename(tmp.Name(), filepath.Join(w.dir, rel)); err != nil {
		return "", fmt.Errorf("failed to store archive unit: %w", err)
	}
	return rel, nil
}

func writeZip(out io.Writer, base string, raw, meta []byte, modified time.Time) error {
	zw := zip.NewWriter(out)

	files := []struct {
		name string
		data []byte
	}{
		{base + ".html", raw},
		{base + ".json", meta},
	}
	for _, f := range files {
		hdr := &zip.FileHeader{Name: f.name, Method: zip.Deflate, Modified: modified}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		if _, err := fw.Write(f.data); err != nil {
			return err
		}
	}
	return zw.Close()
}

// Open returns the path of a unit for streaming, or ErrNotFound.
func (w *Writer) Open(source, id string) (string, error) {
	path := filepath.Join(w.dir, RelPath(source, id))
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to stat archive unit: %w", err)
	}
	return path, nil
}

// Read unpacks one unit.
func (w *Writer) Read(source, id string) (*Unit, error) {
	path, err := w.Open(source, id)
	if err != nil {
		return nil, err
	}
	return readUnit(path)
}

func readUnit(path string) (*Unit, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive unit: %w", err)
	}
	defer zr.Close()

	unit := &Unit{}
	var haveMeta bool
	for _, f := range zr.File {
		data, err := readMember(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		switch {
		case strings.HasSuffix(f.Name, ".json"):
			if err := json.Unmarshal(data, &unit.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
			haveMeta = true
		case strings.HasSuffix(f.Name, ".html"):
			unit.Raw = data
		}
	}
	if !haveMeta {
		return nil, fmt.Errorf("archive unit has no metadata")
	}
	return unit, nil
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// List reads the metadata of every unit of a source. Unreadable units are
// collected in the result's Errors slice rather than failing the listing. A
// source with no folder yet lists as empty.
func (w *Writer) List(source string) (*ListResult, error) {
	dir := filepath.Join(w.dir, source)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &ListResult{}, nil
		}
		return nil, fmt.Errorf("failed to read source directory: %w", err)
	}

	result := &ListResult{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".zip" {
			continue
		}

		unit, err := readUnit(filepath.Join(dir, entry.Name()))
		if err != nil {
			result.Errors = append(result.Errors, ReadError{
				Filename: entry.Name(),
				Err:      err,
			})
			continue
		}
		result.Units = append(result.Units, unit.Metadata)
	}

	return result, nil
}
