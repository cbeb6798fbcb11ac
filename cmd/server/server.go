// Package server implements the serve command: full pipeline wiring and
// the HTTP API lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/capmatch/marketdata/internal/api"
	"github.com/capmatch/marketdata/internal/boundary"
	"github.com/capmatch/marketdata/internal/census"
	"github.com/capmatch/marketdata/internal/conf"
	"github.com/capmatch/marketdata/internal/datastore"
	"github.com/capmatch/marketdata/internal/errors"
	"github.com/capmatch/marketdata/internal/geocoder"
	"github.com/capmatch/marketdata/internal/httpclient"
	"github.com/capmatch/marketdata/internal/httpserver"
	"github.com/capmatch/marketdata/internal/logging"
	"github.com/capmatch/marketdata/internal/market"
	"github.com/capmatch/marketdata/internal/observability"
	"github.com/capmatch/marketdata/internal/walkability"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the market data HTTP API",
		Long:  "Serve the address-to-market-data pipeline over HTTP with a persistent cache.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Host, "host", viper.GetString("webserver.host"), "Listen address")
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Listen port")
	cmd.Flags().StringVar(&settings.Census.APIKey, "census-key", viper.GetString("census.apikey"), "api.census.gov API key")
	cmd.Flags().StringVar(&settings.Walkability.APIKey, "walkscore-key", viper.GetString("walkability.apikey"), "Walk Score API key")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

// run wires every pipeline stage explicitly and serves until the
// process receives an interrupt.
func run(settings *conf.Settings) error {
	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	logging.Init(level)
	logger := logging.ForService("server")

	// request log goes to a rotated file so stdout stays structured
	httpLogger := logging.ForService("httpserver")
	if settings.Main.Log.Enabled {
		fileLogger, closeLog, err := logging.NewFileLogger(settings.Main.Log.Path, "httpserver", level)
		if err != nil {
			logger.Warn("file logging unavailable, using stdout", "path", settings.Main.Log.Path, "error", err)
		} else {
			defer closeLog() //nolint:errcheck
			httpLogger = fileLogger
		}
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	store := datastore.New(settings, logging.ForService("datastore"))
	if store == nil {
		return errors.Newf("no cache store backend enabled").
			Category(errors.CategoryConfiguration).
			Component("server").
			Build()
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open cache store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close cache store", "error", err)
		}
	}()

	pipeline := settings.Pipeline

	geoHTTP := httpclient.New(httpclient.Config{
		Component:    "geocoder",
		Timeout:      settings.Geocoder.Timeout,
		MaxRetries:   pipeline.MaxRetries,
		RetryWaitMin: pipeline.RetryWaitMin,
		RetryWaitMax: pipeline.RetryWaitMax,
	}, logging.ForService("geocoder"))

	censusHTTP := httpclient.New(httpclient.Config{
		Component:    "census",
		Timeout:      settings.Census.Timeout,
		MaxRetries:   pipeline.MaxRetries,
		RetryWaitMin: pipeline.RetryWaitMin,
		RetryWaitMax: pipeline.RetryWaitMax,
		RateLimit:    settings.Census.RateLimit,
		RateBurst:    settings.Census.RateBurst,
	}, logging.ForService("census"))

	boundaryHTTP := httpclient.New(httpclient.Config{
		Component:    "boundary",
		Timeout:      settings.Census.Timeout,
		MaxRetries:   pipeline.MaxRetries,
		RetryWaitMin: pipeline.RetryWaitMin,
		RetryWaitMax: pipeline.RetryWaitMax,
	}, logging.ForService("boundary"))

	geo := geocoder.New(settings.Geocoder, geoHTTP, logging.ForService("geocoder"))
	censusClient := census.New(settings.Census, censusHTTP, logging.ForService("census"))
	boundaryClient := boundary.New(settings.Census.TigerWebURL, boundaryHTTP, logging.ForService("boundary"))

	var scores market.ScoresFetcher
	if settings.Walkability.Enabled {
		walkHTTP := httpclient.New(httpclient.Config{
			Component:    "walkability",
			Timeout:      settings.Walkability.Timeout,
			MaxRetries:   pipeline.MaxRetries,
			RetryWaitMin: pipeline.RetryWaitMin,
			RetryWaitMax: pipeline.RetryWaitMax,
		}, logging.ForService("walkability"))
		scores = walkability.New(settings.Walkability, walkHTTP, logging.ForService("walkability"))
	} else {
		logger.Info("walkability client disabled")
	}

	aggregator := market.NewAggregator(
		censusClient, censusClient, censusClient,
		boundaryClient, scores,
		pipeline, settings.Census.ACSYear,
		metrics, logging.ForService("aggregator"))

	service := market.NewService(geo, aggregator, store, pipeline,
		settings.Walkability.Enabled, metrics, logging.ForService("market"))

	srv := httpserver.New(settings, httpLogger)
	api.New(srv.Echo, service, settings, metrics, logging.ForService("api"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting market data service",
		"version", settings.Version,
		"acs_year", settings.Census.ACSYear,
		"walkability", settings.Walkability.Enabled)

	return srv.Start(ctx)
}
