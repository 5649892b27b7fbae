package cds

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed requests.yaml
var defaultCatalog []byte

// Request is one dataset retrieval: the CDS dataset name, its request body
// and the file name the result is saved under.
type Request struct {
	Name    string         `yaml:"name"`
	Dataset string         `yaml:"dataset"`
	Target  string         `yaml:"target"`
	Inputs  map[string]any `yaml:"request"`
}

// Catalog is an ordered list of requests.
type Catalog struct {
	Requests []Request `yaml:"requests"`
}

// DefaultCatalog returns the built-in requests: ERA5 for the study area,
// ERA5 South-Atlantic SST, and two CMIP6 scenarios.
func DefaultCatalog() (Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a YAML catalog from path, or the default catalog when
// path is empty.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

func (c Catalog) validate() error {
	if len(c.Requests) == 0 {
		return errors.New("catalog has no requests")
	}
	seen := make(map[string]bool, len(c.Requests))
	for i, r := range c.Requests {
		switch {
		case r.Name == "":
			return fmt.Errorf("request %d: name is required", i)
		case r.Dataset == "":
			return fmt.Errorf("request %s: dataset is required", r.Name)
		case r.Target == "":
			return fmt.Errorf("request %s: target is required", r.Name)
		case filepath.Base(r.Target) != r.Target:
			return fmt.Errorf("request %s: target must be a bare file name, got %q", r.Name, r.Target)
		case seen[r.Name]:
			return fmt.Errorf("request %s: duplicate name", r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}

// Select keeps the named requests in catalog order. No names keeps all.
func (c Catalog) Select(names ...string) (Catalog, error) {
	if len(names) == 0 {
		return c, nil
	}
	var out Catalog
	for _, r := range c.Requests {
		if slices.Contains(names, r.Name) {
			out.Requests = append(out.Requests, r)
		}
	}
	for _, n := range names {
		if !slices.ContainsFunc(out.Requests, func(r Request) bool { return r.Name == n }) {
			return Catalog{}, fmt.Errorf("unknown request %q", n)
		}
	}
	return out, nil
}
