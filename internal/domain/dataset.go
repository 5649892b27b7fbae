package domain

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ERA5 short names used by the builder.
const (
	VarTemperature      = "t2m"
	VarDewPoint         = "d2m"
	VarSurfacePressure  = "sp"
	VarSolarRadiation   = "ssrd"
	VarSeaSurfaceTemp   = "sst"
	VarRelativeHumidity = "relative_humidity"
)

// NumFeatures is the width of a feature vector, one per circuit qubit.
const NumFeatures = 4

// FeatureNames is the fixed feature order consumed by the encoder.
var FeatureNames = [NumFeatures]string{
	VarSeaSurfaceTemp,
	VarRelativeHumidity,
	VarSurfacePressure,
	VarSolarRadiation,
}

// FeatureRow is one training example.
type FeatureRow struct {
	Time     time.Time
	Features [NumFeatures]float64
	Label    int
}

// Dataset is the builder output, ordered as the joined series.
type Dataset struct {
	Rows      []FeatureRow
	Threshold Threshold
}

// Labels returns the label column.
func (d Dataset) Labels() []int {
	labels := make([]int, len(d.Rows))
	for i, r := range d.Rows {
		labels[i] = r.Label
	}
	return labels
}

// Positives counts rows labeled 1.
func (d Dataset) Positives() int {
	var n int
	for _, r := range d.Rows {
		n += r.Label
	}
	return n
}

// StdDevEstimator selects the standard deviation used for the label threshold.
type StdDevEstimator string

const (
	// SampleStdDev divides by n-1.
	SampleStdDev StdDevEstimator = "sample"
	// PopulationStdDev divides by n.
	PopulationStdDev StdDevEstimator = "population"
)

// ParseStdDevEstimator validates an estimator name.
func ParseStdDevEstimator(s string) (StdDevEstimator, error) {
	switch StdDevEstimator(s) {
	case SampleStdDev, PopulationStdDev:
		return StdDevEstimator(s), nil
	default:
		return "", fmt.Errorf("unknown stddev estimator %q", s)
	}
}

// LabelRule configures the anomaly label: a row is positive when Variable
// exceeds mean + Sigmas*stddev of that variable over the joined series.
type LabelRule struct {
	Variable  string
	Sigmas    float64
	Estimator StdDevEstimator
}

// DefaultLabelRule labels temperatures more than two standard deviations
// above the mean.
func DefaultLabelRule() LabelRule {
	return LabelRule{Variable: VarTemperature, Sigmas: 2, Estimator: SampleStdDev}
}

// Threshold is a fitted label threshold.
type Threshold struct {
	Variable string  `json:"variable"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"stddev"`
	Sigmas   float64 `json:"sigmas"`
	Value    float64 `json:"value"`
}

// FitThreshold computes mean and standard deviation of values once, skipping
// NaN entries.
func FitThreshold(values []float64, rule LabelRule) Threshold {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}

	mean := stat.Mean(present, nil)
	var variance float64
	if rule.Estimator == PopulationStdDev {
		variance = stat.PopVariance(present, nil)
	} else {
		variance = stat.Variance(present, nil)
	}
	std := math.Sqrt(variance)

	return Threshold{
		Variable: rule.Variable,
		Mean:     mean,
		StdDev:   std,
		Sigmas:   rule.Sigmas,
		Value:    mean + rule.Sigmas*std,
	}
}

// Label returns 1 when v is strictly above the threshold. NaN is never
// above it.
func (t Threshold) Label(v float64) int {
	if v > t.Value {
		return 1
	}
	return 0
}

// SelectFeatures extracts the fixed feature vector for every row of the
// joined series and attaches labels[i] to row i, keeping only rows where every
// feature is present. It returns the kept rows and the number dropped. A
// missing feature column drops every row.
func SelectFeatures(joined ReducedSeries, labels []int) ([]FeatureRow, int) {
	var cols [NumFeatures][]float64
	for i, name := range FeatureNames {
		cols[i] = joined.Column(name)
	}

	rows := make([]FeatureRow, 0, joined.Len())
	for i, ts := range joined.Times {
		row := FeatureRow{Time: ts}
		complete := true
		for f, col := range cols {
			if col == nil || math.IsNaN(col[i]) {
				complete = false
				break
			}
			row.Features[f] = col[i]
		}
		if !complete {
			continue
		}
		if i < len(labels) {
			row.Label = labels[i]
		}
		rows = append(rows, row)
	}
	return rows, joined.Len() - len(rows)
}
