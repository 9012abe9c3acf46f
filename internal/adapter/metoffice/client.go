package metoffice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stuartgraham/metoffice2influx/internal/domain"
)

// maxBodyBytes caps how much of a provider response is read.
const maxBodyBytes = 16 << 20

// Credentials are the DataHub application keys sent with every request.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Client implements domain.ForecastFetcher against the Met Office DataHub
// hourly point forecast API.
type Client struct {
	creds      Credentials
	latitude   string
	longitude  string
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates a DataHub client for one forecast point. After
// maxFailures consecutive transport failures the breaker opens and requests
// fail fast until the cool-down elapses.
func NewClient(baseURL string, creds Credentials, latitude, longitude string, timeout time.Duration, maxFailures int, logger *slog.Logger) *Client {
	return &Client{
		creds:     creds,
		latitude:  latitude,
		longitude: longitude,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		breaker: newBreaker(maxFailures, logger),
		logger:  logger,
	}
}

func newBreaker(maxFailures int, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "metoffice",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// Fetch requests the forecast and decodes the body as JSON whatever the HTTP
// status, since throttle notices arrive as JSON documents on non-2xx responses.
func (c *Client) Fetch(ctx context.Context) (domain.RawPayload, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return c.doRequest(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}
	if err != nil {
		return nil, err
	}
	raw, _ := result.(domain.RawPayload)
	return raw, nil
}

func (c *Client) requestURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse provider url: %w", err)
	}
	q := u.Query()
	q.Set("excludeParameterMetadata", "false")
	q.Set("includeLocationName", "true")
	q.Set("latitude", c.latitude)
	q.Set("longitude", c.longitude)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) doRequest(ctx context.Context) (domain.RawPayload, error) {
	fullURL, err := c.requestURL()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", domain.ErrFetch, err)
	}
	req.Header.Set("x-ibm-client-id", c.creds.ClientID)
	req.Header.Set("x-ibm-client-secret", c.creds.ClientSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: forecast request: %w", domain.ErrFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", domain.ErrFetch, err)
	}

	raw, err := domain.DecodePayload(body)
	if err != nil {
		return nil, fmt.Errorf("%w: status %d: %w", domain.ErrFetch, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("provider returned non-success status", "status", resp.StatusCode)
	}
	return raw, nil
}
