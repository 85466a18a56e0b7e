package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/climate-point-etl/internal/adapter/earthengine"
	"github.com/couchcryptid/climate-point-etl/internal/adapter/fake"
	"github.com/couchcryptid/climate-point-etl/internal/adapter/nominatim"
	"github.com/couchcryptid/climate-point-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/climate-point-etl/internal/config"
	"github.com/couchcryptid/climate-point-etl/internal/domain"
	"github.com/couchcryptid/climate-point-etl/internal/observability"
	"github.com/couchcryptid/climate-point-etl/internal/pipeline"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	metrics   *observability.Metrics
	fixture   string
	synthetic bool
	verbose   bool
}

func (g *globalOptions) offline() bool { return g.fixture != "" || g.synthetic }

func newRootCmd(metrics *observability.Metrics) *cobra.Command {
	g := &globalOptions{metrics: metrics}

	root := newExtractCmd(g)
	root.PersistentFlags().StringVar(&g.fixture, "fixture", "", "serve observations from a JSON fixture instead of Earth Engine")
	root.PersistentFlags().BoolVar(&g.synthetic, "synthetic", false, "serve deterministic synthetic observations instead of Earth Engine")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log at debug level")
	root.MarkFlagsMutuallyExclusive("fixture", "synthetic")

	root.AddCommand(newProbeCmd(g), newCatalogCmd())
	return root
}

// selectionFlags are the location and selection flags shared by the
// extraction and probe commands.
type selectionFlags struct {
	lat, lon  float64
	place     string
	decades   []string
	variables []string
	models    []string
	scenarios []string
}

func (f *selectionFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.Float64Var(&f.lat, "lat", 0, "latitude in degrees (with --lon)")
	fs.Float64Var(&f.lon, "lon", 0, "longitude in degrees (with --lat)")
	fs.StringVar(&f.place, "place", "", "place name to geocode when no point is given")
	fs.StringSliceVar(&f.decades, "decades", nil, "decade labels, e.g. 1990s,2050s")
	fs.StringSliceVar(&f.scenarios, "scenarios", nil, "scenarios, e.g. historical or ssp245,ssp585")
	fs.StringSliceVar(&f.variables, "variables", ids(domain.DefaultVariables), "variables to extract")
	fs.StringSliceVar(&f.models, "models", ids(domain.DefaultModels), "models to extract")
	cmd.MarkFlagsRequiredTogether("lat", "lon")
	_ = cmd.MarkFlagRequired("decades")
	_ = cmd.MarkFlagRequired("scenarios")
}

func (f *selectionFlags) locationRequest(cmd *cobra.Command) (domain.LocationRequest, error) {
	req := domain.LocationRequest{Query: f.place}
	if cmd.Flags().Changed("lat") {
		req.Point = &domain.Point{Lat: f.lat, Lon: f.lon}
	}
	if req.Point == nil && req.Query == "" {
		return req, errors.New("a location is required: pass --lat/--lon or --place")
	}
	return req, nil
}

func (f *selectionFlags) selection(point domain.Point) domain.Selection {
	return domain.Selection{
		Point:     point,
		Decades:   convert[domain.Decade](f.decades),
		Variables: convert[domain.VariableID](f.variables),
		Models:    convert[domain.ModelID](f.models),
		Scenarios: convert[domain.ScenarioID](f.scenarios),
	}
}

// runtime holds the wired pipeline for one command invocation.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *pipeline.Pipeline
	resolver *pipeline.PlaceResolver
	closers  []func() error
}

func (rt *runtime) Close() {
	for _, c := range rt.closers {
		if err := c(); err != nil {
			rt.logger.Warn("close failed", "error", err)
		}
	}
}

// newRuntime wires the pipeline the same way the server does. Offline runs
// skip the Earth Engine configuration and the observation cache. The
// geocoder is built when NOMINATIM_ENABLED is set or a place was given.
func newRuntime(ctx context.Context, cmd *cobra.Command, g *globalOptions, wantGeocoder bool) (*runtime, error) {
	load := config.Load
	if g.offline() {
		load = config.LoadLocal
	}
	cfg, err := load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if g.verbose {
		cfg.LogLevel = "debug"
	}
	logger := observability.NewLoggerTo(cmd.ErrOrStderr(), cfg)
	rt := &runtime{cfg: cfg, logger: logger}

	var extractor domain.Extractor
	switch {
	case g.fixture != "":
		fx, err := fake.LoadFixtureFile(g.fixture)
		if err != nil {
			return nil, fmt.Errorf("load fixture: %w", err)
		}
		extractor = fx
		logger.Debug("serving fixture observations", "path", g.fixture)
	case g.synthetic:
		extractor = fake.NewSynthetic()
		logger.Debug("serving synthetic observations")
	default:
		extractor = earthengine.NewClient(earthengine.Options{
			BaseURL:           cfg.EEBaseURL,
			Project:           cfg.EEProject,
			Collection:        cfg.EECollection,
			Scale:             cfg.EEScale,
			Timeout:           cfg.EETimeout,
			RequestsPerSecond: cfg.EERequestsPerSecond,
			AccessToken:       cfg.EEAccessToken,
		}, g.metrics, logger)

		if cfg.CachePath != "" {
			store, err := sqlite.Open(ctx, cfg.CachePath, logger)
			if err != nil {
				return nil, fmt.Errorf("open observation cache: %w", err)
			}
			rt.closers = append(rt.closers, store.Close)
			if _, _, err := store.Expire(ctx, cfg.CacheMaxAge, time.Now()); err != nil {
				logger.Warn("observation cache maintenance failed", "error", err)
			}
			extractor = sqlite.NewCachedExtractor(extractor, store, cfg.EECollection, g.metrics, logger)
			logger.Debug("observation cache enabled", "path", cfg.CachePath)
		}
	}

	var geocoder domain.Geocoder
	if cfg.NominatimEnabled || wantGeocoder {
		client := nominatim.NewClient(cfg.NominatimBaseURL, cfg.NominatimUserAgent, cfg.NominatimTimeout, g.metrics, logger)
		cached, err := nominatim.NewCachedGeocoder(client, cfg.NominatimCacheSize, g.metrics)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("create geocoder cache: %w", err)
		}
		geocoder = cached
	}

	rt.pipeline = pipeline.New(extractor, nil, logger, g.metrics, pipeline.Options{
		MaxUnits:             cfg.MaxUnits,
		MaxConcurrency:       cfg.MaxConcurrency,
		RetryMaxAttempts:     cfg.RetryMaxAttempts,
		RetryInitialInterval: cfg.RetryInitialInterval,
		RetryMaxInterval:     cfg.RetryMaxInterval,
		RequireAll:           cfg.RequireAll,
	})
	rt.resolver = pipeline.NewPlaceResolver(geocoder, logger)
	return rt, nil
}

func convert[T ~string](in []string) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = T(v)
	}
	return out
}

func ids[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}
