package domain

import "context"

// ForecastFetcher retrieves the raw forecast document for the configured point.
// Implementations wrap transport and decoding failures with ErrFetch.
type ForecastFetcher interface {
	Fetch(ctx context.Context) (RawPayload, error)
}
