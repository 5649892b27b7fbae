// Package netcdf decodes ERA5 NetCDF downloads into raw domain grids.
package netcdf

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
)

// Time coordinate names used by the CDS, newest first.
var timeNames = []string{"valid_time", "time"}

var errNonNumeric = errors.New("non-numeric values")

// Reader loads every gridded variable from a NetCDF3 or NetCDF4 file.
// It implements pipeline.GridReader.
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a NetCDF grid reader.
func NewReader(logger *slog.Logger) *Reader {
	return &Reader{logger: logger}
}

// ReadGrids returns one RawGridSeries per variable whose leading dimension is
// the time axis. Packed values are unpacked and fill values become NaN.
func (r *Reader) ReadGrids(path string) ([]domain.RawGridSeries, error) {
	group, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer group.Close()

	timeName, times, err := readTimeAxis(group)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var grids []domain.RawGridSeries
	for _, name := range group.ListVariables() {
		if name == timeName {
			continue
		}
		v, err := group.GetVariable(name)
		if err != nil {
			return nil, fmt.Errorf("read variable %s: %w", name, err)
		}
		if len(v.Dimensions) == 0 || v.Dimensions[0] != timeName {
			r.logger.Debug("skipping non-temporal variable", "file", path, "variable", name)
			continue
		}
		grid, err := decodeGrid(name, v, times)
		if errors.Is(err, errNonNumeric) {
			r.logger.Debug("skipping non-numeric variable", "file", path, "variable", name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		grids = append(grids, grid)
	}

	r.logger.Debug("netcdf file decoded",
		"file", path,
		"timesteps", len(times),
		"variables", len(grids),
	)
	return grids, nil
}

func readTimeAxis(group api.Group) (string, []time.Time, error) {
	vars := group.ListVariables()
	for _, name := range timeNames {
		if !slices.Contains(vars, name) {
			continue
		}
		v, err := group.GetVariable(name)
		if err != nil {
			return "", nil, fmt.Errorf("read time variable %s: %w", name, err)
		}
		times, err := decodeTimes(v)
		if err != nil {
			return "", nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return name, times, nil
	}
	return "", nil, fmt.Errorf("time coordinate: %w", domain.ErrMissingVariable)
}

// decodeGrid unpacks a time-leading variable into timesteps x cells.
func decodeGrid(name string, v *api.Variable, times []time.Time) (domain.RawGridSeries, error) {
	values, err := flatten(v.Values)
	if err != nil {
		return domain.RawGridSeries{}, fmt.Errorf("variable %s: %w", name, err)
	}
	if len(times) == 0 {
		return domain.RawGridSeries{}, fmt.Errorf("variable %s: %w", name, domain.ErrEmptyTimeAxis)
	}
	if len(values)%len(times) != 0 {
		return domain.RawGridSeries{}, fmt.Errorf("variable %s: %d values do not divide into %d timesteps",
			name, len(values), len(times))
	}

	scale, hasScale := attrFloat(v.Attributes, "scale_factor")
	offset, _ := attrFloat(v.Attributes, "add_offset")
	if !hasScale {
		scale = 1
	}
	fills := fillValues(v.Attributes)

	for i, raw := range values {
		if slices.Contains(fills, raw) {
			values[i] = math.NaN()
			continue
		}
		values[i] = raw*scale + offset
	}

	perStep := len(values) / len(times)
	cells := make([][]float64, len(times))
	for t := range cells {
		cells[t] = values[t*perStep : (t+1)*perStep : (t+1)*perStep]
	}
	return domain.RawGridSeries{
		Variable: name,
		Times:    slices.Clone(times),
		Cells:    cells,
	}, nil
}

func fillValues(attrs api.AttributeMap) []float64 {
	var fills []float64
	for _, key := range []string{"_FillValue", "missing_value"} {
		if f, ok := attrFloat(attrs, key); ok && !math.IsNaN(f) {
			fills = append(fills, f)
		}
	}
	return fills
}

// decodeTimes converts a CF time coordinate ("<unit> since <reference>") into
// UTC instants.
func decodeTimes(v *api.Variable) ([]time.Time, error) {
	units, ok := attrString(v.Attributes, "units")
	if !ok {
		return nil, errors.New("time coordinate has no units")
	}
	step, ref, err := parseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	offsets, err := flatten(v.Values)
	if err != nil {
		return nil, err
	}

	times := make([]time.Time, len(offsets))
	for i, o := range offsets {
		times[i] = ref.Add(time.Duration(math.Round(o * float64(step))))
	}
	return times, nil
}

var referenceLayouts = []string{
	"2006-01-02 15:04:05.0",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseTimeUnits(units string) (time.Duration, time.Time, error) {
	unit, refText, ok := strings.Cut(strings.TrimSpace(units), " since ")
	if !ok {
		return 0, time.Time{}, fmt.Errorf("unsupported time units %q", units)
	}

	var step time.Duration
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "seconds", "second", "s":
		step = time.Second
	case "minutes", "minute", "min":
		step = time.Minute
	case "hours", "hour", "h":
		step = time.Hour
	case "days", "day", "d":
		step = 24 * time.Hour
	default:
		return 0, time.Time{}, fmt.Errorf("unsupported time unit %q", unit)
	}

	refText = strings.TrimSpace(refText)
	for _, layout := range referenceLayouts {
		if ref, err := time.ParseInLocation(layout, refText, time.UTC); err == nil {
			return step, ref, nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("unsupported time reference %q", refText)
}

// flatten walks nested slices of any numeric element type in row-major order.
func flatten(values any) ([]float64, error) {
	if values == nil {
		return nil, errors.New("variable has no values")
	}
	var out []float64
	if err := appendValues(&out, reflect.ValueOf(values)); err != nil {
		return nil, err
	}
	return out, nil
}

func appendValues(out *[]float64, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := appendValues(out, v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Float32, reflect.Float64:
		*out = append(*out, v.Float())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		*out = append(*out, float64(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		*out = append(*out, float64(v.Uint()))
	default:
		return fmt.Errorf("%w: %s", errNonNumeric, v.Kind())
	}
	return nil
}

func attrFloat(attrs api.AttributeMap, key string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	raw, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	vals, err := flatten(raw)
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

func attrString(attrs api.AttributeMap, key string) (string, bool) {
	if attrs == nil {
		return "", false
	}
	raw, ok := attrs.Get(key)
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}
