package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t1 = time.Date(2020, time.January, 1, 12, 0, 0, 0, time.UTC)
	t2 = time.Date(2020, time.February, 1, 12, 0, 0, 0, time.UTC)
	t3 = time.Date(2020, time.March, 1, 12, 0, 0, 0, time.UTC)
	t4 = time.Date(2020, time.April, 1, 12, 0, 0, 0, time.UTC)
)

func TestReduce(t *testing.T) {
	t.Run("arithmetic mean per timestep", func(t *testing.T) {
		grids := []RawGridSeries{
			{
				Variable: "t2m",
				Times:    []time.Time{t1, t2},
				Cells: [][]float64{
					{290, 292, 294, 296},
					{300, 301, 302, 303},
				},
			},
			{
				Variable: "sp",
				Times:    []time.Time{t1, t2},
				Cells: [][]float64{
					{90000, 90010, 90020, 90030},
					{91000, 91000, 91000, 91000},
				},
			},
		}

		s, err := Reduce(grids)
		require.NoError(t, err)

		assert.Equal(t, []time.Time{t1, t2}, s.Times)
		assert.Equal(t, []float64{293, 301.5}, s.Column("t2m"))
		assert.Equal(t, []float64{90015, 91000}, s.Column("sp"))
	})

	t.Run("missing cells are skipped", func(t *testing.T) {
		nan := math.NaN()
		s, err := Reduce([]RawGridSeries{{
			Variable: "sst",
			Times:    []time.Time{t1, t2},
			Cells: [][]float64{
				{nan, 300, 302, nan},
				{nan, nan, nan, nan},
			},
		}})
		require.NoError(t, err)

		col := s.Column("sst")
		assert.Equal(t, 301.0, col[0])
		assert.True(t, math.IsNaN(col[1]), "all-missing timestep reduces to NaN")
	})

	t.Run("single cell grid", func(t *testing.T) {
		s, err := Reduce([]RawGridSeries{{
			Variable: "ssrd",
			Times:    []time.Time{t1},
			Cells:    [][]float64{{1.5e7}},
		}})
		require.NoError(t, err)
		assert.Equal(t, []float64{1.5e7}, s.Column("ssrd"))
	})

	t.Run("empty time axis", func(t *testing.T) {
		_, err := Reduce([]RawGridSeries{{Variable: "t2m"}})
		require.ErrorIs(t, err, ErrEmptyTimeAxis)
	})

	t.Run("no grids", func(t *testing.T) {
		_, err := Reduce(nil)
		require.ErrorIs(t, err, ErrEmptyTimeAxis)
	})

	t.Run("time axis mismatch", func(t *testing.T) {
		_, err := Reduce([]RawGridSeries{
			{Variable: "t2m", Times: []time.Time{t1, t2}, Cells: [][]float64{{1}, {2}}},
			{Variable: "d2m", Times: []time.Time{t1, t3}, Cells: [][]float64{{1}, {2}}},
		})
		require.ErrorIs(t, err, ErrTimeAxisMismatch)
	})

	t.Run("cell rows must match timesteps", func(t *testing.T) {
		_, err := Reduce([]RawGridSeries{
			{Variable: "t2m", Times: []time.Time{t1, t2}, Cells: [][]float64{{1}}},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "t2m")
	})
}

func TestReduce_DoesNotAliasInput(t *testing.T) {
	times := []time.Time{t1}
	s, err := Reduce([]RawGridSeries{{Variable: "sp", Times: times, Cells: [][]float64{{1, 3}}}})
	require.NoError(t, err)

	s.Times[0] = t4
	assert.Equal(t, t1, times[0])
}
