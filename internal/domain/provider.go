package domain

import (
	"context"
)

// SeriesProvider is the injected data-access contract. The engine never
// fetches, caches, or generates market data itself; the external data
// collaborator implements this interface.
type SeriesProvider interface {
	// FetchSeries retrieves the value series for an instrument.
	FetchSeries(ctx context.Context, id string) (ValueSeries, error)
}

// InstrumentProvider supplies static instrument metadata from the external
// registry collaborator.
type InstrumentProvider interface {
	// FetchInfo retrieves the metadata for an instrument.
	FetchInfo(ctx context.Context, id string) (*InstrumentInfo, error)
}
