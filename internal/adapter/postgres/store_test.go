package postgres

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
)

func TestRecordsRoundTrip(t *testing.T) {
	sp := time.FixedZone("BRT", -3*60*60)
	rows := []domain.FeatureRow{
		{Time: time.Date(2020, 1, 1, 9, 0, 0, 0, sp), Features: [domain.NumFeatures]float64{298.1, 71.2, 91000, 1.5e7}, Label: 0},
		{Time: time.Date(2020, 2, 1, 12, 0, 0, 0, time.UTC), Features: [domain.NumFeatures]float64{299.0, 80.4, 90950, 2.1e7}, Label: 1},
	}

	records := toRecords("run-7", rows)

	assert.Equal(t, featureRecord{
		RunID:            "run-7",
		ObservedAt:       time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC),
		RowIndex:         0,
		SST:              298.1,
		RelativeHumidity: 71.2,
		SP:               91000,
		SSRD:             1.5e7,
		Label:            0,
	}, records[0])
	assert.Equal(t, 1, records[1].RowIndex)

	if diff := cmp.Diff(rows, fromRecords(records)); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestToRecords_Empty(t *testing.T) {
	assert.Empty(t, toRecords("run-0", nil))
}

func TestBatches(t *testing.T) {
	tests := []struct {
		rows int
		want []int
	}{
		{0, nil},
		{1, []int{1}},
		{insertBatchSize, []int{insertBatchSize}},
		{insertBatchSize + 1, []int{insertBatchSize, 1}},
		// A year of hourly rows.
		{8784, []int{1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 784}},
	}
	for _, tt := range tests {
		records := toRecords("run-1", make([]domain.FeatureRow, tt.rows))

		var sizes []int
		next := 0
		for _, b := range batches(records, insertBatchSize) {
			sizes = append(sizes, len(b))
			assert.Equal(t, next, b[0].RowIndex, "batches are consecutive")
			next += len(b)
		}
		assert.Equal(t, tt.want, sizes, "%d rows", tt.rows)
	}
}

func TestInsertBatchSize_FitsParameterLimit(t *testing.T) {
	const paramsPerRow = 8
	assert.LessOrEqual(t, insertBatchSize*paramsPerRow, 65535)
}
