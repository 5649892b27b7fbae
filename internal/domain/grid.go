package domain

import (
	"fmt"
	"math"
	"time"
)

// RawGridSeries is one variable's gridded values read from a single file.
// Cells[i] holds every spatial cell (flattened) at Times[i]; NaN marks a
// missing cell.
type RawGridSeries struct {
	Variable string
	Times    []time.Time
	Cells    [][]float64
}

// ReducedSeries holds one scalar per timestep for each variable.
type ReducedSeries struct {
	Times  []time.Time
	Values map[string][]float64
}

// Len returns the number of timesteps.
func (s ReducedSeries) Len() int { return len(s.Times) }

// Has reports whether the series carries the named variable.
func (s ReducedSeries) Has(name string) bool {
	_, ok := s.Values[name]
	return ok
}

// Column returns the values of the named variable, or nil if absent.
func (s ReducedSeries) Column(name string) []float64 {
	return s.Values[name]
}

// clone copies the column map so derived series never alias their source.
func (s ReducedSeries) clone() ReducedSeries {
	values := make(map[string][]float64, len(s.Values)+1)
	for k, v := range s.Values {
		values[k] = append([]float64(nil), v...)
	}
	return ReducedSeries{
		Times:  append([]time.Time(nil), s.Times...),
		Values: values,
	}
}

// Reduce collapses the spatial dimensions of every grid into one value per
// timestep using the unweighted arithmetic mean of all non-missing cells.
// No cos(latitude) weighting is applied, so the result is a plain grid
// average rather than an area-weighted one. All grids must come from the
// same file and share a time axis.
func Reduce(grids []RawGridSeries) (ReducedSeries, error) {
	if len(grids) == 0 {
		return ReducedSeries{}, fmt.Errorf("reduce: %w", ErrEmptyTimeAxis)
	}

	times := grids[0].Times
	out := ReducedSeries{
		Times:  append([]time.Time(nil), times...),
		Values: make(map[string][]float64, len(grids)),
	}

	for _, g := range grids {
		if len(g.Times) == 0 {
			return ReducedSeries{}, fmt.Errorf("reduce %s: %w", g.Variable, ErrEmptyTimeAxis)
		}
		if len(g.Cells) != len(g.Times) {
			return ReducedSeries{}, fmt.Errorf("reduce %s: %d timesteps but %d cell rows", g.Variable, len(g.Times), len(g.Cells))
		}
		if !sameTimes(times, g.Times) {
			return ReducedSeries{}, fmt.Errorf("reduce %s: %w", g.Variable, ErrTimeAxisMismatch)
		}

		values := make([]float64, len(g.Cells))
		for i, cells := range g.Cells {
			values[i] = nanMean(cells)
		}
		out.Values[g.Variable] = values
	}

	return out, nil
}

// nanMean averages the non-NaN values; an all-missing (or empty) slice
// yields NaN.
func nanMean(xs []float64) float64 {
	var sum float64
	var n int
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		sum += x
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

func sameTimes(a, b []time.Time) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
