package cds

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	names := make([]string, len(c.Requests))
	for i, r := range c.Requests {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"era5-local", "era5-sst-atlantic", "cmip6-ssp245", "cmip6-ssp585"}, names)

	local := c.Requests[0]
	assert.Equal(t, "era5_uberlandia_2020.nc", local.Target)
	assert.Equal(t, []any{-18, -49, -19, -48}, local.Inputs["area"])
	assert.Len(t, local.Inputs["day"], 31)

	sst := c.Requests[1]
	assert.Equal(t, "era5_sst_atlantic_2020.nc", sst.Target)
	assert.Equal(t, []any{"01"}, sst.Inputs["day"])
	assert.Equal(t, []any{"sea_surface_temperature"}, sst.Inputs["variable"])
}

func TestParseCatalog_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"empty", "requests: []", "no requests"},
		{"missing dataset", "requests:\n  - name: a\n    target: a.nc", "dataset is required"},
		{"missing target", "requests:\n  - name: a\n    dataset: d", "target is required"},
		{"nested target", "requests:\n  - name: a\n    dataset: d\n    target: ../a.nc", "bare file name"},
		{"duplicate", "requests:\n  - {name: a, dataset: d, target: a.nc}\n  - {name: a, dataset: d, target: b.nc}", "duplicate"},
		{"malformed", "requests: [", "parse catalog"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadCatalog_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requests.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
requests:
  - name: sst-only
    dataset: reanalysis-era5-single-levels
    target: sst.nc
    request:
      variable: [sea_surface_temperature]
`), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, c.Requests, 1)
	assert.Equal(t, "sst.nc", c.Requests[0].Target)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestCatalog_Select(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	sel, err := c.Select("era5-sst-atlantic", "era5-local")
	require.NoError(t, err)
	require.Len(t, sel.Requests, 2)
	assert.Equal(t, "era5-local", sel.Requests[0].Name, "catalog order is kept")

	all, err := c.Select()
	require.NoError(t, err)
	assert.Len(t, all.Requests, 4)

	_, err = c.Select("era5-local", "merra2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merra2")
}
