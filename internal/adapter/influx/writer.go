package influx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	influxhttp "github.com/influxdata/influxdb-client-go/v2/api/http"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stuartgraham/metoffice2influx/internal/domain"
)

// Settings locate and authenticate against an InfluxDB 1.x database through
// the 2.x compatibility write endpoint.
type Settings struct {
	URL             string
	Database        string
	RetentionPolicy string
	Username        string
	Password        string
	Timeout         time.Duration
}

// bucket is the 1.x compatibility "database/retention-policy" name.
func (s Settings) bucket() string {
	if s.RetentionPolicy == "" {
		return s.Database
	}
	return s.Database + "/" + s.RetentionPolicy
}

// token is the 1.x compatibility "username:password" credential.
func (s Settings) token() string {
	if s.Username == "" {
		return ""
	}
	return s.Username + ":" + s.Password
}

// Writer submits measurement batches to InfluxDB. Each Write is a single
// request; nothing is retried or buffered across calls.
type Writer struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	database string
	logger   *slog.Logger
}

// NewWriter creates an InfluxDB writer for the configured database.
func NewWriter(s Settings, logger *slog.Logger) *Writer {
	opts := influxdb2.DefaultOptions().
		SetPrecision(time.Nanosecond).
		SetHTTPRequestTimeout(uint(max(s.Timeout.Round(time.Second)/time.Second, 1)))
	client := influxdb2.NewClientWithOptions(s.URL, s.token(), opts)

	return &Writer{
		client:   client,
		writeAPI: client.WriteAPIBlocking("", s.bucket()),
		database: s.Database,
		logger:   logger,
	}
}

// Write submits the batch as one request and returns the number of points
// sent. A rejection of the credentials wraps domain.ErrWriteUnauthorized; every
// other failure wraps domain.ErrWriteTransport.
func (w *Writer) Write(ctx context.Context, batch domain.Batch) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	if err := w.writeAPI.WritePoint(ctx, toPoints(batch)...); err != nil {
		return 0, classify(err)
	}
	w.logger.Debug("batch written", "database", w.database, "points", len(batch))
	return len(batch), nil
}

// Ping reports whether the server answers its health endpoint.
func (w *Writer) Ping(ctx context.Context) error {
	ok, err := w.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping influxdb: %w", err)
	}
	if !ok {
		return errors.New("ping influxdb: server not ready")
	}
	return nil
}

// Close releases the underlying HTTP resources.
func (w *Writer) Close() {
	w.client.Close()
}

func classify(err error) error {
	var httpErr *influxhttp.Error
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: status %d: %w", domain.ErrWriteUnauthorized, httpErr.StatusCode, err)
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrWriteTransport, err)
}

func toPoints(batch domain.Batch) []*write.Point {
	points := make([]*write.Point, 0, len(batch))
	for _, p := range batch {
		points = append(points, toPoint(p))
	}
	return points
}

// toPoint converts a measurement point. A zero timestamp is left unset so the
// server stamps the point on arrival.
func toPoint(p domain.MeasurementPoint) *write.Point {
	return influxdb2.NewPoint(p.Name, p.Tags, p.Fields, p.Timestamp)
}

// LineProtocol renders the batch the way it is sent on the wire, one point
// per line with nanosecond timestamps.
func LineProtocol(batch domain.Batch) string {
	var sb strings.Builder
	for _, p := range batch {
		sb.WriteString(write.PointToLineProtocol(toPoint(p), time.Nanosecond))
	}
	return sb.String()
}
