// Package domain turns ERA5 reanalysis grids into a labeled, circuit-ready
// training set for thermal-anomaly classification.
//
// # Data Source
//
// Inputs are NetCDF files downloaded from the Copernicus Climate Data Store
// (CDS), product "reanalysis-era5-single-levels". Two files are combined:
//
//	local file:          t2m, d2m, sp, ssrd over a small box around the study area
//	teleconnection file: sst over the South Atlantic, one timestep per month
//
// # ERA5 Conventions
//
// Variable short names and units:
//
//	t2m   2 m air temperature               K
//	d2m   2 m dew-point temperature         K
//	sp    surface pressure                  Pa
//	ssrd  surface solar radiation downwards J m-2 (accumulated)
//	sst   sea surface temperature           K (missing over land)
//
// Land cells of sst are stored as fill values and arrive here as NaN. Spatial
// reduction skips them, so the teleconnection value is the mean over ocean
// cells only.
//
// # Relative Humidity
//
// Derived with the Magnus-Tetens approximation (a = 17.625, b = 243.04 °C):
//
//	RH = 100 * exp(a*Td/(b+Td)) / exp(a*T/(b+T))   with T, Td in °C
//
// # Temporal Alignment
//
// The local file is sub-daily or daily while the teleconnection file is
// monthly. The join is exact on timestamps and never resamples, so only the
// timestamps both files share survive (the first of each month at 12:00 UTC
// for the default downloads). Resample upstream for a denser training set.
//
// # Label
//
// A row is an anomaly (label 1) when t2m is strictly greater than
// mean + 2 * stddev of t2m over the joined series. The stddev is the sample
// estimator (n-1 denominator) unless LABEL_STDDEV=population selects the n
// denominator. See [BuildDataset] and [DefaultLabelRule].
//
// # Encoding
//
// Features are min-max scaled to [0, π] per column, the rotation range of the
// feature-map gates, and labels become width-2 one-hot rows. See [Encode].
package domain
