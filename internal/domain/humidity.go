package domain

import "math"

const (
	// Magnus-Tetens coefficients (Alduchov & Eskridge).
	magnusA = 17.625
	magnusB = 243.04

	kelvinOffset = 273.15
)

// RelativeHumidity returns relative humidity in percent from 2 m air
// temperature and 2 m dew-point temperature, both in Kelvin.
func RelativeHumidity(tempK, dewPointK float64) float64 {
	t := tempK - kelvinOffset
	td := dewPointK - kelvinOffset
	return 100 * math.Exp(magnusA*td/(magnusB+td)) / math.Exp(magnusA*t/(magnusB+t))
}

// WithRelativeHumidity returns a copy of the series with a relative_humidity
// column derived from t2m and d2m. If either source column is absent the copy
// is returned unchanged; that is not an error.
func WithRelativeHumidity(s ReducedSeries) ReducedSeries {
	out := s.clone()
	t2m, d2m := s.Column(VarTemperature), s.Column(VarDewPoint)
	if t2m == nil || d2m == nil {
		return out
	}

	rh := make([]float64, len(t2m))
	for i := range t2m {
		rh[i] = RelativeHumidity(t2m[i], d2m[i])
	}
	out.Values[VarRelativeHumidity] = rh
	return out
}
