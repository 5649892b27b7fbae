package domain

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// NumClasses is the one-hot width for the binary anomaly label.
const NumClasses = 2

// MinMaxScaler maps each column linearly from [Min[j], Max[j]] onto [Lo, Hi].
type MinMaxScaler struct {
	Min []float64 `json:"min"`
	Max []float64 `json:"max"`
	Lo  float64   `json:"lo"`
	Hi  float64   `json:"hi"`
}

// FitMinMax fits per-column bounds on x. A column with zero range cannot be
// rescaled and yields a *DegenerateColumnError; names label the columns in
// that error and may be nil.
func FitMinMax(x mat.Matrix, lo, hi float64, names []string) (*MinMaxScaler, error) {
	rows, cols := x.Dims()
	if rows == 0 {
		return nil, ErrEmptyDataset
	}

	s := &MinMaxScaler{
		Min: make([]float64, cols),
		Max: make([]float64, cols),
		Lo:  lo,
		Hi:  hi,
	}
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, x)
		s.Min[j] = floats.Min(col)
		s.Max[j] = floats.Max(col)
		if s.Min[j] == s.Max[j] {
			name := fmt.Sprintf("column %d", j)
			if j < len(names) {
				name = names[j]
			}
			return nil, &DegenerateColumnError{Column: name, Value: s.Min[j]}
		}
	}
	return s, nil
}

// Transform rescales x into [Lo, Hi] per column.
func (s *MinMaxScaler) Transform(x mat.Matrix) *mat.Dense {
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v-s.Min[j])/(s.Max[j]-s.Min[j])*(s.Hi-s.Lo) + s.Lo
	}, x)
	return out
}

// Inverse maps rescaled values back to the original units.
func (s *MinMaxScaler) Inverse(x mat.Matrix) *mat.Dense {
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v-s.Lo)/(s.Hi-s.Lo)*(s.Max[j]-s.Min[j]) + s.Min[j]
	}, x)
	return out
}

// OneHot expands integer labels into a rows x width indicator matrix.
func OneHot(labels []int, width int) (*mat.Dense, error) {
	if len(labels) == 0 {
		return nil, ErrEmptyDataset
	}
	out := mat.NewDense(len(labels), width, nil)
	for i, l := range labels {
		if l < 0 || l >= width {
			return nil, fmt.Errorf("label %d at row %d outside [0,%d)", l, i, width)
		}
		out.Set(i, l, 1)
	}
	return out, nil
}

// EncodedDataset is the circuit-ready form of a Dataset.
type EncodedDataset struct {
	Times    []time.Time
	Features *mat.Dense // rows x NumFeatures, each column in [0, π]
	Labels   *mat.Dense // rows x NumClasses, one-hot
	Scaler   *MinMaxScaler
}

// Rows returns the number of encoded examples.
func (e EncodedDataset) Rows() int {
	if e.Features == nil {
		return 0
	}
	r, _ := e.Features.Dims()
	return r
}

// FeatureMatrix lays the dataset out as a rows x NumFeatures matrix.
func (d Dataset) FeatureMatrix() *mat.Dense {
	if len(d.Rows) == 0 {
		return nil
	}
	data := make([]float64, 0, len(d.Rows)*NumFeatures)
	for _, r := range d.Rows {
		data = append(data, r.Features[:]...)
	}
	return mat.NewDense(len(d.Rows), NumFeatures, data)
}

// Encode rescales every feature column onto [0, π] and one-hot encodes the
// labels. The scaler is fit on the full feature matrix of this call only.
func Encode(ds Dataset) (EncodedDataset, error) {
	if len(ds.Rows) == 0 {
		return EncodedDataset{}, ErrEmptyDataset
	}

	x := ds.FeatureMatrix()
	scaler, err := FitMinMax(x, 0, math.Pi, FeatureNames[:])
	if err != nil {
		return EncodedDataset{}, fmt.Errorf("fit scaler: %w", err)
	}

	y, err := OneHot(ds.Labels(), NumClasses)
	if err != nil {
		return EncodedDataset{}, fmt.Errorf("encode labels: %w", err)
	}

	times := make([]time.Time, len(ds.Rows))
	for i, r := range ds.Rows {
		times[i] = r.Time
	}

	return EncodedDataset{
		Times:    times,
		Features: scaler.Transform(x),
		Labels:   y,
		Scaler:   scaler,
	}, nil
}
