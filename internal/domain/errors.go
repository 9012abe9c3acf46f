package domain

import "errors"

// Errors returned by the provider and sink adapters. Adapters wrap the
// underlying cause so callers can classify with errors.Is.
var (
	// ErrFetch marks a failure to reach the provider or read its response.
	ErrFetch = errors.New("fetch forecast")

	// ErrWriteUnauthorized marks a sink rejection of the configured credentials.
	// Retrying does not help; an operator has to fix the configuration.
	ErrWriteUnauthorized = errors.New("sink write unauthorized")

	// ErrWriteTransport marks any other sink failure: connection, timeout,
	// or a non-auth error status.
	ErrWriteTransport = errors.New("sink write failed")
)
