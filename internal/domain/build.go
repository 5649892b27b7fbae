package domain

import "fmt"

// BuildReport carries the row counts of one build so callers can log and
// export them.
type BuildReport struct {
	LocalTimesteps  int  `json:"local_timesteps"`
	TeleTimesteps   int  `json:"teleconnection_timesteps"`
	JoinedRows      int  `json:"joined_rows"`
	DroppedRows     int  `json:"dropped_rows"`
	KeptRows        int  `json:"kept_rows"`
	PositiveRows    int  `json:"positive_rows"`
	HumidityDerived bool `json:"humidity_derived"`
}

// BuildDataset turns the local and teleconnection grids into a labeled
// dataset:
//
//  1. reduce each file to one value per timestep and variable
//  2. derive relative humidity from t2m and d2m when both exist
//  3. inner-join local and teleconnection sst on timestamp
//  4. fit the label threshold over the joined series
//  5. keep the four features, dropping incomplete rows
//
// The threshold is fit before incomplete rows are dropped, so its statistics
// cover every joined timestamp.
func BuildDataset(local, tele []RawGridSeries, rule LabelRule) (Dataset, BuildReport, error) {
	localSeries, err := Reduce(local)
	if err != nil {
		return Dataset{}, BuildReport{}, fmt.Errorf("local: %w", err)
	}
	teleSeries, err := Reduce(tele)
	if err != nil {
		return Dataset{}, BuildReport{}, fmt.Errorf("teleconnection: %w", err)
	}

	if !localSeries.Has(rule.Variable) {
		return Dataset{}, BuildReport{}, fmt.Errorf("local %s: %w", rule.Variable, ErrMissingVariable)
	}
	if !teleSeries.Has(VarSeaSurfaceTemp) {
		return Dataset{}, BuildReport{}, fmt.Errorf("teleconnection %s: %w", VarSeaSurfaceTemp, ErrMissingVariable)
	}

	localSeries = WithRelativeHumidity(localSeries)
	joined := InnerJoin(localSeries, teleSeries, VarSeaSurfaceTemp)

	target := joined.Column(rule.Variable)
	threshold := FitThreshold(target, rule)
	labels := make([]int, len(target))
	for i, v := range target {
		labels[i] = threshold.Label(v)
	}

	rows, dropped := SelectFeatures(joined, labels)
	ds := Dataset{Rows: rows, Threshold: threshold}

	report := BuildReport{
		LocalTimesteps:  localSeries.Len(),
		TeleTimesteps:   teleSeries.Len(),
		JoinedRows:      joined.Len(),
		DroppedRows:     dropped,
		KeptRows:        len(rows),
		PositiveRows:    ds.Positives(),
		HumidityDerived: localSeries.Has(VarRelativeHumidity),
	}
	return ds, report, nil
}
