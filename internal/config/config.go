package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DefaultProviderURL is the Met Office DataHub hourly point forecast endpoint.
const DefaultProviderURL = "https://api-metoffice.apiconnect.ibmcloud.com/metoffice/production/v0/forecasts/point/hourly"

// Config holds all service settings, populated from environment variables.
// The env tag names the variable each field is read from and is used in
// validation errors.
type Config struct {
	// Met Office DataHub provider.
	APIClientID     string        `env:"API_CLIENT" validate:"required_if=LiveConn true"`
	APIClientSecret string        `env:"API_SECRET" validate:"required_if=LiveConn true"`
	ProviderURL     string        `env:"METOFFICE_BASE_URL" validate:"required,url"`
	Latitude        string        `env:"LATITUDE" validate:"required,latitude"`
	Longitude       string        `env:"LONGITUDE" validate:"required,longitude"`
	FetchTimeout    time.Duration `env:"FETCH_TIMEOUT" validate:"gt=0"`
	BreakerFailures int           `env:"BREAKER_FAILURES" validate:"min=1"`

	// LiveConn false replays CacheFile instead of calling the provider.
	LiveConn  bool   `env:"LIVE_CONN"`
	CacheFile string `env:"CACHE_FILE" validate:"required_if=LiveConn false"`

	// InfluxDB sink.
	InfluxURL             string        `env:"INFLUX_URL" validate:"required,url"`
	InfluxDatabase        string        `env:"INFLUX_DATABASE" validate:"required"`
	InfluxRetentionPolicy string        `env:"INFLUX_RETENTION_POLICY"`
	InfluxUsername        string        `env:"INFLUX_USERNAME" validate:"required_with=InfluxPassword"`
	InfluxPassword        string        `env:"INFLUX_PASSWORD"`
	InfluxTimeout         time.Duration `env:"INFLUX_TIMEOUT" validate:"gt=0"`

	// Scheduling and process.
	RunMinutes      int           `env:"RUNMINS" validate:"min=1"`
	RunOnce         bool          `env:"RUN_ONCE"`
	LogLevel        string        `env:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	LogFormat       string        `env:"LOG_FORMAT" validate:"oneof=json text"`
	HTTPAddr        string        `env:"HTTP_ADDR"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`

	// Optional Kafka mirror of written points; disabled when no brokers are set.
	KafkaBrokers []string `env:"KAFKA_BROKERS"`
	KafkaTopic   string   `env:"KAFKA_TOPIC" validate:"required_with=KafkaBrokers"`
}

// MirrorEnabled reports whether written batches are also published to Kafka.
func (c *Config) MirrorEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// RunInterval is the continuous-mode polling interval.
func (c *Config) RunInterval() time.Duration {
	return time.Duration(c.RunMinutes) * time.Minute
}

// Load reads an optional .env file, then configuration from environment
// variables, applying defaults where unset.
func Load() (*Config, error) {
	if err := godotenv.Load(sharedcfg.EnvOrDefault("DOTENV_FILE", ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load dotenv: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	influxTimeout, err := parseDuration("INFLUX_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	runMinutes, err := parseInt("RUNMINS", 1)
	if err != nil {
		return nil, err
	}
	breakerFailures, err := parseInt("BREAKER_FAILURES", 5)
	if err != nil {
		return nil, err
	}
	liveConn, err := parseBool("LIVE_CONN", true)
	if err != nil {
		return nil, err
	}
	runOnce, err := parseBool("RUN_ONCE", false)
	if err != nil {
		return nil, err
	}
	verbose, err := parseBool("VERBOSE", false)
	if err != nil {
		return nil, err
	}
	influxURL, err := influxURL()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIClientID:     os.Getenv("API_CLIENT"),
		APIClientSecret: os.Getenv("API_SECRET"),
		ProviderURL:     sharedcfg.EnvOrDefault("METOFFICE_BASE_URL", DefaultProviderURL),
		Latitude:        strings.TrimSpace(os.Getenv("LATITUDE")),
		Longitude:       strings.TrimSpace(os.Getenv("LONGITUDE")),
		FetchTimeout:    fetchTimeout,
		BreakerFailures: breakerFailures,
		LiveConn:        liveConn,
		CacheFile:       os.Getenv("CACHE_FILE"),

		InfluxURL:             influxURL,
		InfluxDatabase:        os.Getenv("INFLUX_DATABASE"),
		InfluxRetentionPolicy: os.Getenv("INFLUX_RETENTION_POLICY"),
		InfluxUsername:        os.Getenv("INFLUX_USERNAME"),
		InfluxPassword:        os.Getenv("INFLUX_PASSWORD"),
		InfluxTimeout:         influxTimeout,

		RunMinutes:      runMinutes,
		RunOnce:         runOnce,
		LogLevel:        strings.ToLower(sharedcfg.EnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(sharedcfg.EnvOrDefault("LOG_FORMAT", "json")),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		ShutdownTimeout: shutdownTimeout,

		KafkaTopic: sharedcfg.EnvOrDefault("KAFKA_TOPIC", "met-weather-points"),
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints. Errors name the environment variable.
func (c *Config) Validate() error {
	err := newValidator().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q check", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("env"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}

// influxURL prefers INFLUX_URL and otherwise builds one from INFLUX_HOST and
// INFLUX_HOST_PORT.
func influxURL() (string, error) {
	if u := os.Getenv("INFLUX_URL"); u != "" {
		return u, nil
	}
	host := sharedcfg.EnvOrDefault("INFLUX_HOST", "localhost")
	port, err := strconv.Atoi(sharedcfg.EnvOrDefault("INFLUX_HOST_PORT", "8086"))
	if err != nil || port <= 0 || port > 65535 {
		return "", errors.New("invalid INFLUX_HOST_PORT")
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)), nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}
