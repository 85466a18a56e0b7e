package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/climate-point-etl/internal/adapter/earthengine"
	httpadapter "github.com/couchcryptid/climate-point-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/climate-point-etl/internal/adapter/kafka"
	"github.com/couchcryptid/climate-point-etl/internal/adapter/nominatim"
	"github.com/couchcryptid/climate-point-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/climate-point-etl/internal/config"
	"github.com/couchcryptid/climate-point-etl/internal/domain"
	"github.com/couchcryptid/climate-point-etl/internal/observability"
	"github.com/couchcryptid/climate-point-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var extractor domain.Extractor = earthengine.NewClient(earthengine.Options{
		BaseURL:           cfg.EEBaseURL,
		Project:           cfg.EEProject,
		Collection:        cfg.EECollection,
		Scale:             cfg.EEScale,
		Timeout:           cfg.EETimeout,
		RequestsPerSecond: cfg.EERequestsPerSecond,
		AccessToken:       cfg.EEAccessToken,
	}, metrics, logger)

	// Observation cache (disabled when CACHE_PATH is empty).
	if cfg.CachePath != "" {
		store, err := sqlite.Open(ctx, cfg.CachePath, logger)
		if err != nil {
			logger.Error("failed to open observation cache", "path", cfg.CachePath, "error", err)
			os.Exit(1)
		}
		defer store.Close()
		if _, _, err := store.Expire(ctx, cfg.CacheMaxAge, time.Now()); err != nil {
			logger.Warn("observation cache maintenance failed", "error", err)
		}
		extractor = sqlite.NewCachedExtractor(extractor, store, cfg.EECollection, metrics, logger)
		logger.Info("observation cache enabled", "path", cfg.CachePath)
	}

	// Geocoder (feature-flagged via NOMINATIM_ENABLED).
	var geocoder domain.Geocoder
	if cfg.NominatimEnabled {
		client := nominatim.NewClient(cfg.NominatimBaseURL, cfg.NominatimUserAgent, cfg.NominatimTimeout, metrics, logger)
		cached, err := nominatim.NewCachedGeocoder(client, cfg.NominatimCacheSize, metrics)
		if err != nil {
			logger.Error("failed to create geocoder cache", "error", err)
			os.Exit(1)
		}
		geocoder = cached
		metrics.GeocodeEnabled.Set(1)
		logger.Info("nominatim geocoding enabled", "cache_size", cfg.NominatimCacheSize, "timeout", cfg.NominatimTimeout)
	} else {
		logger.Info("nominatim geocoding disabled")
	}

	// Row publisher (disabled when KAFKA_BROKERS is empty).
	var loader pipeline.TableLoader
	var writer *kafkaadapter.Writer
	if len(cfg.KafkaBrokers) > 0 {
		writer = kafkaadapter.NewWriter(cfg, metrics, logger)
		loader = writer
		logger.Info("row publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	}

	p := pipeline.New(extractor, loader, logger, metrics, pipeline.Options{
		MaxUnits:             cfg.MaxUnits,
		MaxConcurrency:       cfg.MaxConcurrency,
		RetryMaxAttempts:     cfg.RetryMaxAttempts,
		RetryInitialInterval: cfg.RetryInitialInterval,
		RetryMaxInterval:     cfg.RetryMaxInterval,
		RequireAll:           cfg.RequireAll,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, pipeline.NewPlaceResolver(geocoder, logger), cfg.EECollection, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
