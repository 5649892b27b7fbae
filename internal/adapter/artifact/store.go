// Package artifact persists published datasets: the tabular CSV, the
// circuit-ready .npy arrays and the run manifest.
package artifact

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
)

// ErrNotPublished is returned by Load when the directory holds no manifest.
var ErrNotPublished = errors.New("no published dataset")

// Store publishes artifacts into a single directory. Files are staged in a
// hidden sibling directory and renamed into place; the manifest is removed
// first and renamed last, so it only exists next to a matching set of arrays.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a store rooted at dir.
func NewStore(dir string, logger *slog.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// Dir is the publication directory.
func (s *Store) Dir() string { return s.dir }

// Publish writes the dataset, encoded arrays and manifest. A failure while
// staging leaves the previous publication untouched; a failure while renaming
// leaves the directory without a manifest.
func (s *Store) Publish(ds domain.Dataset, enc domain.EncodedDataset, m domain.Manifest) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	staging, err := os.MkdirTemp(s.dir, ".staging-*")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	writers := []struct {
		name  string
		write func(path string) error
	}{
		{domain.DatasetFile, func(p string) error { return writeDatasetCSV(p, ds) }},
		{domain.FeaturesFile, func(p string) error { return writeNpy(p, enc.Features) }},
		{domain.LabelsFile, func(p string) error { return writeNpy(p, enc.Labels) }},
		{domain.ManifestFile, func(p string) error { return writeJSON(p, m) }},
	}
	for _, w := range writers {
		if err := w.write(filepath.Join(staging, w.name)); err != nil {
			return err
		}
	}

	if err := os.Remove(filepath.Join(s.dir, domain.ManifestFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("retire previous manifest: %w", err)
	}
	for _, w := range writers {
		if err := os.Rename(filepath.Join(staging, w.name), filepath.Join(s.dir, w.name)); err != nil {
			return fmt.Errorf("publish %s: %w", w.name, err)
		}
	}

	s.logger.Info("artifacts published",
		"dir", s.dir,
		"run_id", m.RunID,
		"rows", m.Rows,
	)
	return nil
}

// Artifacts is a loaded publication.
type Artifacts struct {
	Manifest domain.Manifest
	Features *mat.Dense
	Labels   *mat.Dense
}

// Manifest reads the manifest of the current publication.
func (s *Store) Manifest() (domain.Manifest, error) {
	var m domain.Manifest
	raw, err := os.ReadFile(filepath.Join(s.dir, domain.ManifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return m, fmt.Errorf("%s: %w", s.dir, ErrNotPublished)
	}
	if err != nil {
		return m, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

// Load reads the manifest and both arrays.
func (s *Store) Load() (Artifacts, error) {
	var (
		a   Artifacts
		err error
	)
	if a.Manifest, err = s.Manifest(); err != nil {
		return a, err
	}
	if a.Features, err = readNpy(filepath.Join(s.dir, domain.FeaturesFile)); err != nil {
		return a, err
	}
	if a.Labels, err = readNpy(filepath.Join(s.dir, domain.LabelsFile)); err != nil {
		return a, err
	}
	return a, nil
}

// LoadDataset reads the tabular dataset back into rows.
func (s *Store) LoadDataset() ([]domain.FeatureRow, error) {
	f, err := os.Open(filepath.Join(s.dir, domain.DatasetFile))
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("dataset has no header")
	}

	rows := make([]domain.FeatureRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		row, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("dataset line %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func datasetHeader() []string {
	header := []string{"time"}
	header = append(header, domain.FeatureNames[:]...)
	return append(header, "target")
}

func writeDatasetCSV(path string, ds domain.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := encodeDataset(f, ds); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func encodeDataset(out io.Writer, ds domain.Dataset) error {
	w := csv.NewWriter(out)
	if err := w.Write(datasetHeader()); err != nil {
		return fmt.Errorf("header: %w", err)
	}
	rec := make([]string, 0, domain.NumFeatures+2)
	for i, r := range ds.Rows {
		rec = append(rec[:0], r.Time.UTC().Format(time.RFC3339))
		for _, v := range r.Features {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		rec = append(rec, strconv.Itoa(r.Label))
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	w.Flush()
	return w.Error()
}

func parseRecord(rec []string) (domain.FeatureRow, error) {
	var row domain.FeatureRow
	if len(rec) != domain.NumFeatures+2 {
		return row, fmt.Errorf("expected %d fields, got %d", domain.NumFeatures+2, len(rec))
	}
	ts, err := time.Parse(time.RFC3339, rec[0])
	if err != nil {
		return row, fmt.Errorf("parse time: %w", err)
	}
	row.Time = ts
	for i := range row.Features {
		if row.Features[i], err = strconv.ParseFloat(rec[i+1], 64); err != nil {
			return row, fmt.Errorf("parse %s: %w", domain.FeatureNames[i], err)
		}
	}
	if row.Label, err = strconv.Atoi(rec[len(rec)-1]); err != nil {
		return row, fmt.Errorf("parse target: %w", err)
	}
	return row, nil
}

func writeNpy(path string, m *mat.Dense) error {
	if m == nil {
		return fmt.Errorf("write %s: no data", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := npyio.Write(f, m); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func readNpy(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var m mat.Dense
	if err := npyio.Read(f, &m); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &m, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
