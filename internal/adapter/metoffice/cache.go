package metoffice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stuartgraham/metoffice2influx/internal/domain"
)

// CachedFetcher wraps a ForecastFetcher with a single-document file cache.
// In live mode every fetched payload is persisted to path; in replay mode the
// inner fetcher is never called and the stored payload is returned instead.
type CachedFetcher struct {
	inner  domain.ForecastFetcher
	path   string
	live   bool
	logger *slog.Logger
}

// NewCachedFetcher creates a cache decorator around a fetcher. inner may be
// nil when live is false.
func NewCachedFetcher(inner domain.ForecastFetcher, path string, live bool, logger *slog.Logger) *CachedFetcher {
	return &CachedFetcher{
		inner:  inner,
		path:   path,
		live:   live,
		logger: logger,
	}
}

func (c *CachedFetcher) Fetch(ctx context.Context) (domain.RawPayload, error) {
	if !c.live {
		return c.load()
	}
	raw, err := c.inner.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if c.path != "" {
		// A cache write failure never fails the cycle.
		if err := c.store(raw); err != nil {
			c.logger.Warn("cache payload failed", "path", c.path, "error", err)
		}
	}
	return raw, nil
}

func (c *CachedFetcher) load() (domain.RawPayload, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read cache: %w", domain.ErrFetch, err)
	}
	raw, err := domain.DecodePayload(data)
	if err != nil {
		return nil, fmt.Errorf("%w: cache %s: %w", domain.ErrFetch, c.path, err)
	}
	c.logger.Debug("replayed cached payload", "path", c.path)
	return raw, nil
}

// store writes via a temp file and rename so readers never see a partial document.
func (c *CachedFetcher) store(raw domain.RawPayload) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".payload-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}
