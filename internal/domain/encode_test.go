package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestFitMinMax_Transform(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{2, 4, 6, 8})

	s, err := FitMinMax(x, 0, math.Pi, nil)
	require.NoError(t, err)
	got := s.Transform(x)

	want := []float64{0, math.Pi / 3, 2 * math.Pi / 3, math.Pi}
	for i, w := range want {
		assert.InDelta(t, w, got.At(i, 0), 1e-12, "row %d", i)
	}
}

func TestMinMaxScaler_InverseRoundTrip(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{
		300.5, 101325,
		295.0, 99000,
		310.2, 100500,
	})

	s, err := FitMinMax(x, 0, math.Pi, nil)
	require.NoError(t, err)

	back := s.Inverse(s.Transform(x))
	assert.True(t, mat.EqualApprox(x, back, 1e-9))
}

func TestFitMinMax_DegenerateColumn(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
	})

	_, err := FitMinMax(x, 0, math.Pi, []string{"a", "b"})

	var degenerate *DegenerateColumnError
	require.ErrorAs(t, err, &degenerate)
	assert.Equal(t, "b", degenerate.Column)
	assert.Equal(t, 5.0, degenerate.Value)
}

func TestOneHot(t *testing.T) {
	y, err := OneHot([]int{0, 1, 1, 0}, NumClasses)
	require.NoError(t, err)

	rows, cols := y.Dims()
	require.Equal(t, 4, rows)
	require.Equal(t, NumClasses, cols)
	assert.Equal(t, []float64{1, 0}, mat.Row(nil, 0, y))
	assert.Equal(t, []float64{0, 1}, mat.Row(nil, 1, y))

	for i := 0; i < rows; i++ {
		assert.Equal(t, 1.0, mat.Sum(y.RowView(i)), "row %d must sum to 1", i)
	}
}

func TestOneHot_Errors(t *testing.T) {
	_, err := OneHot([]int{0, 2}, NumClasses)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")

	_, err = OneHot(nil, NumClasses)
	require.ErrorIs(t, err, ErrEmptyDataset)
}

func encodeFixture() Dataset {
	return Dataset{Rows: []FeatureRow{
		{Time: t1, Features: [NumFeatures]float64{298, 60, 91000, 1e6}, Label: 0},
		{Time: t2, Features: [NumFeatures]float64{299, 70, 91500, 2e6}, Label: 0},
		{Time: t3, Features: [NumFeatures]float64{300, 80, 92000, 3e6}, Label: 1},
	}}
}

func TestEncode(t *testing.T) {
	enc, err := Encode(encodeFixture())
	require.NoError(t, err)

	require.Equal(t, 3, enc.Rows())
	_, featCols := enc.Features.Dims()
	_, labelCols := enc.Labels.Dims()
	assert.Equal(t, NumFeatures, featCols)
	assert.Equal(t, NumClasses, labelCols)
	assert.Equal(t, []time.Time{t1, t2, t3}, enc.Times)

	assert.InDelta(t, 0.0, mat.Min(enc.Features), 1e-12)
	assert.InDelta(t, math.Pi, mat.Max(enc.Features), 1e-12)
	for j := 0; j < NumFeatures; j++ {
		assert.InDelta(t, math.Pi/2, enc.Features.At(1, j), 1e-12, "column %d midpoint", j)
	}
	assert.Equal(t, []float64{0, 1}, mat.Row(nil, 2, enc.Labels))
}

func TestEncode_ConstantFeature(t *testing.T) {
	ds := encodeFixture()
	for i := range ds.Rows {
		ds.Rows[i].Features[2] = 101325
	}

	_, err := Encode(ds)

	var degenerate *DegenerateColumnError
	require.ErrorAs(t, err, &degenerate)
	assert.Equal(t, VarSurfacePressure, degenerate.Column)
}

func TestEncode_EmptyDataset(t *testing.T) {
	_, err := Encode(Dataset{})
	require.ErrorIs(t, err, ErrEmptyDataset)
}
