package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var buildBase = time.Date(2020, time.January, 1, 12, 0, 0, 0, time.UTC)

func hourly(from, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = buildBase.Add(time.Duration(from+i) * time.Hour)
	}
	return out
}

// uniformGrid repeats each value over a two-cell grid.
func uniformGrid(name string, times []time.Time, values []float64) RawGridSeries {
	cells := make([][]float64, len(values))
	for i, v := range values {
		cells[i] = []float64{v, v}
	}
	return RawGridSeries{Variable: name, Times: times, Cells: cells}
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// buildFixture returns 11 local hours (h0..h10) and 11 teleconnection hours
// (h1..h11): the join keeps h1..h10. t2m is 300 K except h0 (outside the join)
// and h10 (the anomaly); ssrd is missing at h3.
func buildFixture() (local, tele []RawGridSeries) {
	localTimes := hourly(0, 11)
	t2m := constant(11, 300)
	t2m[0] = 250
	t2m[10] = 310
	ssrd := ramp(11, 1e6, 1e5)
	ssrd[3] = math.NaN()

	local = []RawGridSeries{
		uniformGrid("t2m", localTimes, t2m),
		uniformGrid("d2m", localTimes, constant(11, 295)),
		uniformGrid("sp", localTimes, ramp(11, 90000, 10)),
		uniformGrid("ssrd", localTimes, ssrd),
	}
	tele = []RawGridSeries{
		uniformGrid("sst", hourly(1, 11), ramp(11, 298, 0.1)),
	}
	return local, tele
}

func TestBuildDataset(t *testing.T) {
	local, tele := buildFixture()

	ds, report, err := BuildDataset(local, tele, DefaultLabelRule())
	require.NoError(t, err)

	assert.Equal(t, 11, report.LocalTimesteps)
	assert.Equal(t, 11, report.TeleTimesteps)
	assert.Equal(t, 10, report.JoinedRows)
	assert.Equal(t, 1, report.DroppedRows)
	assert.Equal(t, 9, report.KeptRows)
	assert.Equal(t, report.JoinedRows-report.DroppedRows, len(ds.Rows))
	assert.True(t, report.HumidityDerived)

	// Statistics cover all ten joined rows, including the one dropped for a
	// missing feature, and exclude h0 which did not survive the join.
	assert.InDelta(t, 301.0, ds.Threshold.Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(10), ds.Threshold.StdDev, 1e-9)

	assert.Equal(t, 1, report.PositiveRows)
	last := ds.Rows[len(ds.Rows)-1]
	assert.Equal(t, buildBase.Add(10*time.Hour), last.Time)
	assert.Equal(t, 1, last.Label)

	first := ds.Rows[0]
	assert.Equal(t, buildBase.Add(time.Hour), first.Time)
	assert.InDelta(t, 298.0, first.Features[0], 1e-9, "sst comes from the teleconnection file")
	assert.InDelta(t, RelativeHumidity(300, 295), first.Features[1], 1e-9)
	assert.Equal(t, 90010.0, first.Features[2])
	assert.Equal(t, 1.1e6, first.Features[3])

	for _, r := range ds.Rows {
		assert.NotEqual(t, buildBase.Add(3*time.Hour), r.Time, "row with missing ssrd must be dropped")
	}
}

func TestBuildDataset_WithoutDewPoint(t *testing.T) {
	local, tele := buildFixture()
	local = append(local[:1], local[2:]...) // drop d2m

	ds, report, err := BuildDataset(local, tele, DefaultLabelRule())
	require.NoError(t, err)

	assert.False(t, report.HumidityDerived)
	assert.Empty(t, ds.Rows)
	assert.Equal(t, report.JoinedRows, report.DroppedRows)
}

func TestBuildDataset_MissingVariables(t *testing.T) {
	local, tele := buildFixture()

	t.Run("no temperature", func(t *testing.T) {
		_, _, err := BuildDataset(local[1:], tele, DefaultLabelRule())
		require.ErrorIs(t, err, ErrMissingVariable)
		assert.Contains(t, err.Error(), "t2m")
	})

	t.Run("no sst", func(t *testing.T) {
		renamed := []RawGridSeries{tele[0]}
		renamed[0].Variable = "skt"
		_, _, err := BuildDataset(local, renamed, DefaultLabelRule())
		require.ErrorIs(t, err, ErrMissingVariable)
		assert.Contains(t, err.Error(), "sst")
	})
}

func TestBuildDataset_DoesNotMutateInputs(t *testing.T) {
	local, tele := buildFixture()
	before := local[0].Cells[10][0]

	_, _, err := BuildDataset(local, tele, DefaultLabelRule())
	require.NoError(t, err)

	assert.Equal(t, before, local[0].Cells[10][0])
	assert.Len(t, local, 4)
}
