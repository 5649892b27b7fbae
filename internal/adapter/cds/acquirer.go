package cds

import (
	"context"
	"fmt"
)

// Acquirer downloads a fixed catalog into one directory on every call.
type Acquirer struct {
	Client  *Client
	Catalog Catalog
	Dir     string
}

// Acquire retrieves every catalog request. Files already present are kept.
func (a Acquirer) Acquire(ctx context.Context) error {
	paths, err := a.Client.RetrieveAll(ctx, a.Catalog, a.Dir)
	if err != nil {
		return fmt.Errorf("acquire %d/%d: %w", len(paths), len(a.Catalog.Requests), err)
	}
	return nil
}
