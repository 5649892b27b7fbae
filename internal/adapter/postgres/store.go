// Package postgres keeps a queryable copy of every published dataset in a
// PostgreSQL feature table.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS climate_feature_rows (
	run_id            TEXT             NOT NULL,
	observed_at       TIMESTAMPTZ      NOT NULL,
	row_index         INTEGER          NOT NULL,
	sst               DOUBLE PRECISION NOT NULL,
	relative_humidity DOUBLE PRECISION NOT NULL,
	sp                DOUBLE PRECISION NOT NULL,
	ssrd              DOUBLE PRECISION NOT NULL,
	label             SMALLINT         NOT NULL,
	PRIMARY KEY (run_id, row_index)
)`

const insertRow = `
INSERT INTO climate_feature_rows
	(run_id, observed_at, row_index, sst, relative_humidity, sp, ssrd, label)
VALUES
	(:run_id, :observed_at, :row_index, :sst, :relative_humidity, :sp, :ssrd, :label)`

// insertBatchSize bounds one multi-row INSERT. Each row binds 8 parameters
// and PostgreSQL accepts at most 65535 per statement.
const insertBatchSize = 1000

// featureRecord is the row layout of climate_feature_rows.
type featureRecord struct {
	RunID            string    `db:"run_id"`
	ObservedAt       time.Time `db:"observed_at"`
	RowIndex         int       `db:"row_index"`
	SST              float64   `db:"sst"`
	RelativeHumidity float64   `db:"relative_humidity"`
	SP               float64   `db:"sp"`
	SSRD             float64   `db:"ssrd"`
	Label            int       `db:"label"`
}

// FeatureStore writes dataset rows per run.
// It implements pipeline.FeatureSink.
type FeatureStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Open connects to dsn, verifies the connection and creates the table if
// needed.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*FeatureStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open feature store: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping feature store: %w", err)
	}

	s := &FeatureStore{db: db, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *FeatureStore) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create feature table: %w", err)
	}
	return nil
}

// SaveRun replaces the rows stored for runID with the dataset rows, in one
// transaction.
func (s *FeatureStore) SaveRun(ctx context.Context, runID string, ds domain.Dataset) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM climate_feature_rows WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("clear run %s: %w", runID, err)
	}
	records := toRecords(runID, ds.Rows)
	for _, batch := range batches(records, insertBatchSize) {
		if _, err := tx.NamedExecContext(ctx, insertRow, batch); err != nil {
			return fmt.Errorf("insert run %s rows %d-%d: %w", runID, batch[0].RowIndex, batch[len(batch)-1].RowIndex, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", runID, err)
	}

	s.logger.Info("feature rows stored", "run_id", runID, "rows", len(records))
	return nil
}

// LoadRun returns the rows stored for runID in dataset order.
func (s *FeatureStore) LoadRun(ctx context.Context, runID string) ([]domain.FeatureRow, error) {
	var records []featureRecord
	err := s.db.SelectContext(ctx, &records, `
		SELECT run_id, observed_at, row_index, sst, relative_humidity, sp, ssrd, label
		FROM climate_feature_rows
		WHERE run_id = $1
		ORDER BY row_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return fromRecords(records), nil
}

// Close releases the connection pool.
func (s *FeatureStore) Close() error {
	return s.db.Close()
}

// batches splits records into consecutive slices of at most size rows.
func batches(records []featureRecord, size int) [][]featureRecord {
	var out [][]featureRecord
	for len(records) > size {
		out = append(out, records[:size:size])
		records = records[size:]
	}
	if len(records) > 0 {
		out = append(out, records)
	}
	return out
}

func toRecords(runID string, rows []domain.FeatureRow) []featureRecord {
	records := make([]featureRecord, len(rows))
	for i, r := range rows {
		records[i] = featureRecord{
			RunID:            runID,
			ObservedAt:       r.Time.UTC(),
			RowIndex:         i,
			SST:              r.Features[0],
			RelativeHumidity: r.Features[1],
			SP:               r.Features[2],
			SSRD:             r.Features[3],
			Label:            r.Label,
		}
	}
	return records
}

func fromRecords(records []featureRecord) []domain.FeatureRow {
	rows := make([]domain.FeatureRow, len(records))
	for i, rec := range records {
		rows[i] = domain.FeatureRow{
			Time:     rec.ObservedAt.UTC(),
			Features: [domain.NumFeatures]float64{rec.SST, rec.RelativeHumidity, rec.SP, rec.SSRD},
			Label:    rec.Label,
		}
	}
	return rows
}
