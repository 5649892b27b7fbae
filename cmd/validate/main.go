// Command validate checks the integrity of a published dataset: manifest
// consistency, the [0, π] range of every feature, one-hot labels and row
// alignment between dataset.csv and the encoded arrays.
//
// Usage:
//
//	go run ./cmd/validate -dir artifacts
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gonum.org/v1/gonum/mat"

	"github.com/couchcryptid/climate-anomaly-etl/internal/adapter/artifact"
	"github.com/couchcryptid/climate-anomaly-etl/internal/adapter/postgres"
	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
)

const tolerance = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// runLoader reads back the feature rows stored for a run.
type runLoader interface {
	LoadRun(ctx context.Context, runID string) ([]domain.FeatureRow, error)
}

func main() {
	dir := flag.String("dir", sharedcfg.EnvOrDefault("ARTIFACT_DIR", "artifacts"), "published artifact directory")
	dsn := flag.String("feature-store", os.Getenv("FEATURE_STORE_DSN"), "PostgreSQL DSN of the feature store to compare against (optional)")
	flag.Parse()

	if *dsn == "" {
		os.Exit(run(os.Stdout, *dir, nil))
	}
	store, err := postgres.Open(context.Background(), *dsn, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open feature store: %v\n", err)
		os.Exit(1)
	}
	code := run(os.Stdout, *dir, store)
	store.Close()
	os.Exit(code)
}

func run(w io.Writer, dir string, features runLoader) int {
	fmt.Fprintln(w, "=== Quantum-Ready Dataset Validation ===")
	fmt.Fprintln(w)

	store := artifact.NewStore(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	a, err := store.Load()
	if err != nil {
		fmt.Fprintf(w, "FATAL: load artifacts: %v\n", err)
		return 1
	}
	rows, err := store.LoadDataset()
	if err != nil {
		fmt.Fprintf(w, "FATAL: load dataset: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateManifest(dir, a.Manifest),
		validateFeatures(a.Features, a.Manifest),
		validateLabels(a.Labels, a.Manifest),
		validateAlignment(rows, a),
	}
	if features != nil {
		phases = append(phases, validateFeatureStore(features, a.Manifest.RunID, rows))
	}

	fmt.Fprintln(w)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run %s: %d rows, %d anomalies\n", a.Manifest.RunID, a.Manifest.Rows, a.Manifest.Report.PositiveRows)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

// ── Phases ──

func validateManifest(dir string, m domain.Manifest) *phase {
	p := &phase{name: "Manifest"}

	for _, f := range m.Files {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			p.errorf("listed file %s: %v", f, err)
		}
	}
	if !slices.Equal(m.FeatureNames, domain.FeatureNames[:]) {
		p.errorf("feature names %v, want %v", m.FeatureNames, domain.FeatureNames)
	}
	if m.FeatureColumns != domain.NumFeatures {
		p.errorf("feature columns %d, want %d", m.FeatureColumns, domain.NumFeatures)
	}
	if m.LabelColumns != domain.NumClasses {
		p.errorf("label columns %d, want %d", m.LabelColumns, domain.NumClasses)
	}
	r := m.Report
	if r.KeptRows != m.Rows {
		p.errorf("report kept %d rows, manifest says %d", r.KeptRows, m.Rows)
	}
	if r.JoinedRows != r.KeptRows+r.DroppedRows {
		p.errorf("joined %d != kept %d + dropped %d", r.JoinedRows, r.KeptRows, r.DroppedRows)
	}
	if r.JoinedRows > min(r.LocalTimesteps, r.TeleTimesteps) {
		p.errorf("joined %d rows from %d local and %d teleconnection timesteps", r.JoinedRows, r.LocalTimesteps, r.TeleTimesteps)
	}
	if m.Scaler == nil || len(m.Scaler.Min) != domain.NumFeatures || len(m.Scaler.Max) != domain.NumFeatures {
		p.errorf("scaler missing or not %d columns wide", domain.NumFeatures)
	}
	return p
}

func validateFeatures(x *mat.Dense, m domain.Manifest) *phase {
	p := &phase{name: "Feature ranges [0, π]"}

	rows, cols := x.Dims()
	if rows != m.Rows || cols != domain.NumFeatures {
		p.errorf("X shape (%d, %d), want (%d, %d)", rows, cols, m.Rows, domain.NumFeatures)
		return p
	}
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, x)
		lo, hi := slices.Min(col), slices.Max(col)
		if lo < -tolerance || hi > math.Pi+tolerance {
			p.errorf("%s spans [%g, %g]", domain.FeatureNames[j], lo, hi)
		}
		if math.Abs(lo) > tolerance || math.Abs(hi-math.Pi) > tolerance {
			p.errorf("%s does not reach both ends: [%g, %g]", domain.FeatureNames[j], lo, hi)
		}
	}
	return p
}

func validateLabels(y *mat.Dense, m domain.Manifest) *phase {
	p := &phase{name: "One-hot labels"}

	rows, cols := y.Dims()
	if rows != m.Rows || cols != domain.NumClasses {
		p.errorf("y shape (%d, %d), want (%d, %d)", rows, cols, m.Rows, domain.NumClasses)
		return p
	}
	var positives int
	for i := 0; i < rows; i++ {
		var sum float64
		for j := 0; j < cols; j++ {
			v := y.At(i, j)
			if v != 0 && v != 1 {
				p.errorf("row %d col %d = %g", i, j, v)
			}
			sum += v
		}
		if sum != 1 {
			p.errorf("row %d sums to %g", i, sum)
		}
		if y.At(i, 1) == 1 {
			positives++
		}
	}
	if positives != m.Report.PositiveRows {
		p.errorf("%d positive rows, report says %d", positives, m.Report.PositiveRows)
	}
	return p
}

func validateAlignment(rows []domain.FeatureRow, a artifact.Artifacts) *phase {
	p := &phase{name: "Row alignment (csv ↔ arrays)"}

	xRows, xCols := a.Features.Dims()
	yRows, yCols := a.Labels.Dims()
	if len(rows) != xRows || len(rows) != yRows {
		p.errorf("dataset.csv has %d rows, X %d, y %d", len(rows), xRows, yRows)
		return p
	}
	if xCols != domain.NumFeatures || yCols != domain.NumClasses {
		p.errorf("cannot align rows of X (%d cols) and y (%d cols)", xCols, yCols)
		return p
	}
	if a.Manifest.Scaler == nil {
		p.errorf("no scaler to re-encode with")
		return p
	}

	ds := domain.Dataset{Rows: rows}
	encoded := a.Manifest.Scaler.Transform(ds.FeatureMatrix())
	for i, r := range rows {
		if i > 0 && !r.Time.After(rows[i-1].Time) {
			p.errorf("row %d: time %s not after %s", i, r.Time, rows[i-1].Time)
		}
		for j := 0; j < domain.NumFeatures; j++ {
			if math.Abs(encoded.At(i, j)-a.Features.At(i, j)) > 1e-6 {
				p.errorf("row %d %s: csv encodes to %g, X has %g", i, domain.FeatureNames[j], encoded.At(i, j), a.Features.At(i, j))
			}
		}
		if r.Label < 0 || r.Label >= domain.NumClasses {
			p.errorf("row %d: csv label %d out of range", i, r.Label)
			continue
		}
		if a.Labels.At(i, r.Label) != 1 {
			p.errorf("row %d: csv label %d disagrees with one-hot %v", i, r.Label, mat.Row(nil, i, a.Labels))
		}
	}
	return p
}

func validateFeatureStore(features runLoader, runID string, rows []domain.FeatureRow) *phase {
	p := &phase{name: "Feature store parity"}

	stored, err := features.LoadRun(context.Background(), runID)
	if err != nil {
		p.errorf("load run %s: %v", runID, err)
		return p
	}
	if len(stored) != len(rows) {
		p.errorf("feature store has %d rows for run %s, dataset.csv has %d", len(stored), runID, len(rows))
		return p
	}
	for i := range rows {
		if !stored[i].Time.Equal(rows[i].Time) || stored[i].Features != rows[i].Features || stored[i].Label != rows[i].Label {
			p.errorf("row %d differs: stored %+v, csv %+v", i, stored[i], rows[i])
		}
	}
	return p
}
