// Command metoffice2influx polls the Met Office DataHub hourly point forecast
// and writes each hourly record to InfluxDB as a met_weather point.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	httpadapter "github.com/stuartgraham/metoffice2influx/internal/adapter/http"
	"github.com/stuartgraham/metoffice2influx/internal/adapter/influx"
	kafkaadapter "github.com/stuartgraham/metoffice2influx/internal/adapter/kafka"
	"github.com/stuartgraham/metoffice2influx/internal/adapter/metoffice"
	"github.com/stuartgraham/metoffice2influx/internal/config"
	"github.com/stuartgraham/metoffice2influx/internal/domain"
	"github.com/stuartgraham/metoffice2influx/internal/observability"
	"github.com/stuartgraham/metoffice2influx/internal/pipeline"
	"github.com/stuartgraham/metoffice2influx/internal/scheduler"
)

func main() {
	os.Exit(execute())
}

// flags override the matching environment settings when set.
type flags struct {
	once    bool
	verbose bool
}

func execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := scheduler.ExitOK
	cmd := rootCmd(func(cmd *cobra.Command, f flags) error {
		cfg, err := config.Load()
		if err != nil {
			code = scheduler.ExitConfig
			return err
		}
		applyFlags(cfg, cmd, f)
		code = run(cmd.Context(), cfg)
		return nil
	})

	if err := cmd.ExecuteContext(ctx); err != nil {
		slog.Error("metoffice2influx failed", "error", err)
		if code == scheduler.ExitOK {
			code = 1
		}
	}
	return code
}

func rootCmd(runE func(*cobra.Command, flags) error) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "metoffice2influx",
		Short: "Poll the Met Office DataHub hourly forecast into InfluxDB.",
		Long: `metoffice2influx fetches the hourly point forecast for LATITUDE/LONGITUDE
every RUNMINS minutes and writes each hourly record to INFLUX_DATABASE.

Configuration is read from the environment and an optional .env file.
Exit codes in --once mode: 0 written, throttled or invalid payload;
75 provider or database unreachable; 78 configuration or credentials error.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runE(cmd, f)
		},
	}
	cmd.Flags().BoolVar(&f.once, "once", false, "run a single cycle and exit (overrides RUN_ONCE)")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "log at debug level (overrides LOG_LEVEL)")
	return cmd
}

func applyFlags(cfg *config.Config, cmd *cobra.Command, f flags) {
	if cmd.Flags().Changed("once") {
		cfg.RunOnce = f.once
	}
	if f.verbose {
		cfg.LogLevel = "debug"
	}
}

func run(ctx context.Context, cfg *config.Config) int {
	logger := observability.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics := observability.NewMetrics()

	fetcher := newFetcher(cfg, logger)

	writer := influx.NewWriter(influx.Settings{
		URL:             cfg.InfluxURL,
		Database:        cfg.InfluxDatabase,
		RetentionPolicy: cfg.InfluxRetentionPolicy,
		Username:        cfg.InfluxUsername,
		Password:        cfg.InfluxPassword,
		Timeout:         cfg.InfluxTimeout,
	}, logger)
	defer writer.Close()

	pingCtx, cancelPing := context.WithTimeout(ctx, cfg.InfluxTimeout)
	if err := writer.Ping(pingCtx); err != nil {
		logger.Warn("influxdb not reachable at startup", "url", cfg.InfluxURL, "error", err)
	}
	cancelPing()

	var opts []pipeline.Option
	if cfg.MirrorEnabled() {
		publisher := kafkaadapter.NewPublisher(cfg, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		opts = append(opts, pipeline.WithMirror(publisher))
		logger.Info("kafka mirror enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	cycle := pipeline.New(fetcher, writer, logger, metrics, opts...)
	sched := scheduler.New(cycle, cfg.RunInterval(), logger, metrics)

	logger.Info("metoffice2influx starting",
		"latitude", cfg.Latitude,
		"longitude", cfg.Longitude,
		"database", cfg.InfluxDatabase,
		"live", cfg.LiveConn,
		"once", cfg.RunOnce,
	)

	if cfg.RunOnce {
		code := sched.RunOnce(ctx)
		logger.Info("single run complete", "exit_code", code)
		return code
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, cycle, prometheus.DefaultGatherer, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	runErr := sched.Run(ctx)
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	switch {
	case errors.Is(runErr, scheduler.ErrHalted):
		logger.Error("stopped on unrecoverable error", "error", runErr)
		return scheduler.ExitConfig
	case runErr != nil:
		logger.Error("scheduler error", "error", runErr)
		return 1
	}
	logger.Info("shutdown complete")
	return scheduler.ExitOK
}

// newFetcher builds the provider client, wrapped in the payload file cache
// when CACHE_FILE is set or live fetching is disabled.
func newFetcher(cfg *config.Config, logger *slog.Logger) domain.ForecastFetcher {
	if !cfg.LiveConn {
		logger.Info("live provider disabled, replaying cached payload", "path", cfg.CacheFile)
		return metoffice.NewCachedFetcher(nil, cfg.CacheFile, false, logger)
	}

	client := metoffice.NewClient(cfg.ProviderURL,
		metoffice.Credentials{ClientID: cfg.APIClientID, ClientSecret: cfg.APIClientSecret},
		cfg.Latitude, cfg.Longitude, cfg.FetchTimeout, cfg.BreakerFailures, logger)
	if cfg.CacheFile == "" {
		return client
	}
	return metoffice.NewCachedFetcher(client, cfg.CacheFile, true, logger)
}
