package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
)

// GridReader decodes a gridded file into one series per variable.
type GridReader interface {
	ReadGrids(path string) ([]domain.RawGridSeries, error)
}

// Builder reads the two input files and builds the labeled dataset.
type Builder struct {
	reader GridReader
	rule   domain.LabelRule
	logger *slog.Logger
}

// NewBuilder creates a Builder that labels rows with rule.
func NewBuilder(reader GridReader, rule domain.LabelRule, logger *slog.Logger) *Builder {
	return &Builder{reader: reader, rule: rule, logger: logger}
}

// Build checks that both inputs exist before opening either, then reads and
// builds. A missing path yields a *domain.MissingInputError.
func (b *Builder) Build(localPath, telePath string) (domain.Dataset, domain.BuildReport, error) {
	for _, p := range []string{localPath, telePath} {
		_, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Dataset{}, domain.BuildReport{}, &domain.MissingInputError{Path: p}
		}
		if err != nil {
			return domain.Dataset{}, domain.BuildReport{}, fmt.Errorf("stat input: %w", err)
		}
	}

	local, err := b.reader.ReadGrids(localPath)
	if err != nil {
		return domain.Dataset{}, domain.BuildReport{}, fmt.Errorf("read local grids: %w", err)
	}
	tele, err := b.reader.ReadGrids(telePath)
	if err != nil {
		return domain.Dataset{}, domain.BuildReport{}, fmt.Errorf("read teleconnection grids: %w", err)
	}

	ds, report, err := domain.BuildDataset(local, tele, b.rule)
	if err != nil {
		return domain.Dataset{}, domain.BuildReport{}, err
	}

	if !report.HumidityDerived {
		b.logger.Warn("relative humidity not derived, every row will be dropped",
			"local", localPath, "required", []string{domain.VarTemperature, domain.VarDewPoint})
	}
	if report.DroppedRows > 0 {
		b.logger.Info("dropped rows with missing features",
			"dropped", report.DroppedRows,
			"joined", report.JoinedRows,
		)
	}
	b.logger.Info("dataset built",
		"local_timesteps", report.LocalTimesteps,
		"teleconnection_timesteps", report.TeleTimesteps,
		"joined", report.JoinedRows,
		"kept", report.KeptRows,
		"positives", report.PositiveRows,
		"threshold", ds.Threshold.Value,
	)
	return ds, report, nil
}
