// Package csvstore persists catalogs as CSV tables under a base directory.
package csvstore

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/quake-trends/internal/domain"
)

// File names under the base directory.
const (
	MainEventsFile       = "strongEQ_USGS.csv"
	MergedFile           = "strongEQ_precursors_USGS.csv"
	MagnitudeHistoryPlot = "plotEQMagHistory.png"
	FrequencyPlot        = "plotEQFrequency.png"
	ManifestFile         = "quaketrends-manifest.db"

	precursorPrefix = "strongEQ_prec_"
	precursorSuffix = "_USGS.csv"
)

// ErrEmptyTable is returned when a CSV stream has no header line.
var ErrEmptyTable = errors.New("csv table has no header")

// Store maps pipeline artifacts to files in one directory.
type Store struct {
	dir string
}

// New returns a Store rooted at dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the base directory.
func (s *Store) Dir() string { return s.dir }

// MainEventsPath is the main-events table.
func (s *Store) MainEventsPath() string { return s.path(MainEventsFile) }

// PrecursorPath is the per-event precursor table of main event i.
func (s *Store) PrecursorPath(i int) string {
	return s.path(precursorPrefix + strconv.Itoa(i) + precursorSuffix)
}

// MergedPath is the concatenation of all precursor tables.
func (s *Store) MergedPath() string { return s.path(MergedFile) }

func (s *Store) MagnitudeHistoryPlotPath() string { return s.path(MagnitudeHistoryPlot) }

func (s *Store) FrequencyPlotPath() string { return s.path(FrequencyPlot) }

func (s *Store) ManifestPath() string { return s.path(ManifestFile) }

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// Exists reports whether path is present. Errors other than not-exist are
// returned so a permission problem is not mistaken for a missing file.
func (s *Store) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
}

// Load reads and parses the table at path.
func (s *Store) Load(path string) (*domain.Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	c, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return c, nil
}

// Save writes c to path and returns the number of bytes written. The file is
// written to a temporary sibling first and renamed into place, so readers
// never observe a partial table.
func (s *Store) Save(path string, c *domain.Catalog) (int64, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, c); err != nil {
		return 0, fmt.Errorf("encode %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	n, err := tmp.Write(buf.Bytes())
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, fmt.Errorf("rename into %s: %w", path, err)
	}
	return int64(n), nil
}

// Decode parses a CSV stream whose first line is the header.
func Decode(r io.Reader) (*domain.Catalog, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyTable
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return domain.ParseCatalog(header, rows)
}

// Encode writes the header and the raw fields of every event.
func Encode(w io.Writer, c *domain.Catalog) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(c.Header); err != nil {
		return err
	}
	for i, ev := range c.Events {
		if len(ev.Fields) != len(c.Header) {
			return fmt.Errorf("row %d: %d fields for %d columns", i+1, len(ev.Fields), len(c.Header))
		}
		if err := writer.Write(ev.Fields); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
