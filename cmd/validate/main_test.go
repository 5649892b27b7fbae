package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-anomaly-etl/internal/adapter/artifact"
	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
)

func publish(t *testing.T, edit func(*domain.Manifest)) string {
	t.Helper()
	base := time.Date(2020, time.January, 1, 12, 0, 0, 0, time.UTC)
	ds := domain.Dataset{Rows: []domain.FeatureRow{
		{Time: base, Features: [domain.NumFeatures]float64{298.1, 61.25, 91000, 1.5e7}},
		{Time: base.AddDate(0, 1, 0), Features: [domain.NumFeatures]float64{299.4, 70.5, 91200, 2.25e7}, Label: 1},
		{Time: base.AddDate(0, 2, 0), Features: [domain.NumFeatures]float64{300.2, 80.75, 90900, 1.8e7}},
	}}
	enc, err := domain.Encode(ds)
	require.NoError(t, err)
	report := domain.BuildReport{LocalTimesteps: 4, TeleTimesteps: 3, JoinedRows: 3, KeptRows: 3, PositiveRows: 1}
	m := domain.NewManifest("run-1", "local.nc", "tele.nc", ds, enc, report)
	if edit != nil {
		edit(&m)
	}

	dir := filepath.Join(t.TempDir(), "artifacts")
	store := artifact.NewStore(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, store.Publish(ds, enc, m))
	return dir
}

func TestRun_Passes(t *testing.T) {
	var out bytes.Buffer
	code := run(&out, publish(t, nil), nil)

	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "All validations passed.")
	assert.Contains(t, out.String(), "3 rows, 1 anomalies")
}

func TestRun_ReportMismatch(t *testing.T) {
	dir := publish(t, func(m *domain.Manifest) { m.Report.PositiveRows = 2 })

	var out bytes.Buffer
	code := run(&out, dir, nil)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "--- One-hot labels ---")
	assert.Contains(t, out.String(), "1 positive rows, report says 2")
}

func TestRun_TamperedFeatures(t *testing.T) {
	dir := publish(t, nil)
	// Swap the feature array for the labels so shapes no longer match.
	data, err := os.ReadFile(filepath.Join(dir, domain.LabelsFile))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, domain.FeaturesFile), data, 0o644))

	var out bytes.Buffer
	code := run(&out, dir, nil)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "X shape (3, 2)")
}

func TestRun_NothingPublished(t *testing.T) {
	var out bytes.Buffer
	code := run(&out, t.TempDir(), nil)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "FATAL: load artifacts")
}

type storedRuns map[string][]domain.FeatureRow

func (s storedRuns) LoadRun(_ context.Context, runID string) ([]domain.FeatureRow, error) {
	rows, ok := s[runID]
	if !ok {
		return nil, errors.New("run not stored")
	}
	return rows, nil
}

func TestRun_FeatureStoreParity(t *testing.T) {
	dir := publish(t, nil)
	rows, err := artifact.NewStore(dir, slog.New(slog.NewTextHandler(io.Discard, nil))).LoadDataset()
	require.NoError(t, err)

	var out bytes.Buffer
	assert.Equal(t, 0, run(&out, dir, storedRuns{"run-1": rows}), out.String())
	assert.Contains(t, out.String(), "Feature store parity")

	out.Reset()
	assert.Equal(t, 1, run(&out, dir, storedRuns{"run-1": rows[:2]}))
	assert.Contains(t, out.String(), "feature store has 2 rows for run run-1, dataset.csv has 3")

	out.Reset()
	assert.Equal(t, 1, run(&out, dir, storedRuns{}))
	assert.Contains(t, out.String(), "load run run-1")
}
