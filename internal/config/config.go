package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Earth Engine extraction.
	EEProject           string
	EEBaseURL           string
	EECollection        string
	EEAccessToken       string
	EEScale             float64
	EETimeout           time.Duration
	EERequestsPerSecond float64

	// Planning and run behaviour.
	MaxUnits             int
	MaxConcurrency       int
	RetryMaxAttempts     int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RequireAll           bool

	// Nominatim place lookup.
	NominatimEnabled   bool
	NominatimBaseURL   string
	NominatimUserAgent string
	NominatimTimeout   time.Duration
	NominatimCacheSize int

	// CachePath is the sqlite observation cache file. Empty disables caching.
	CachePath string
	// CacheMaxAge prunes older cache entries at startup. Zero keeps them.
	CacheMaxAge time.Duration

	// KafkaBrokers is empty when row publishing is disabled.
	KafkaBrokers   []string
	KafkaSinkTopic string
}

// Load reads configuration from a .env file (if present) and environment
// variables, applying defaults where unset. Variables already set in the
// environment win over the file.
func Load() (*Config, error) { return load(true) }

// LoadLocal is Load without the Earth Engine requirements, for offline runs
// that read observations from a fixture.
func LoadLocal() (*Config, error) { return load(false) }

func load(remote bool) (*Config, error) {
	if err := godotenv.Load(sharedcfg.EnvOrDefault("ENV_FILE", ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	p := &parser{}
	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		EEProject:           os.Getenv("EE_PROJECT"),
		EEBaseURL:           sharedcfg.EnvOrDefault("EE_BASE_URL", "https://earthengine.googleapis.com"),
		EECollection:        sharedcfg.EnvOrDefault("EE_COLLECTION", "NASA/GDDP-CMIP6"),
		EEAccessToken:       os.Getenv("EE_ACCESS_TOKEN"),
		EEScale:             p.floatVar("EE_SCALE", 25000),
		EETimeout:           p.durationVar("EE_TIMEOUT", 2*time.Minute),
		EERequestsPerSecond: p.floatVar("EE_REQUESTS_PER_SECOND", 2),

		MaxUnits:             p.intVar("MAX_UNITS", 200),
		MaxConcurrency:       p.intVar("MAX_CONCURRENCY", 4),
		RetryMaxAttempts:     p.intVar("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialInterval: p.durationVar("RETRY_INITIAL_INTERVAL", time.Second),
		RetryMaxInterval:     p.durationVar("RETRY_MAX_INTERVAL", 30*time.Second),
		RequireAll:           p.boolVar("REQUIRE_ALL", false),

		NominatimEnabled:   p.boolVar("NOMINATIM_ENABLED", false),
		NominatimBaseURL:   sharedcfg.EnvOrDefault("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent: sharedcfg.EnvOrDefault("NOMINATIM_USER_AGENT", "climate-point-etl/1.0"),
		NominatimTimeout:   p.durationVar("NOMINATIM_TIMEOUT", 5*time.Second),
		NominatimCacheSize: p.intVar("NOMINATIM_CACHE_SIZE", 1000),

		CachePath:   os.Getenv("CACHE_PATH"),
		CacheMaxAge: p.durationVar("CACHE_MAX_AGE", 0),

		KafkaBrokers:   parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "climate-point-rows"),
	}
	if p.err != nil {
		return nil, p.err
	}

	if remote && cfg.EEProject == "" {
		return nil, errors.New("EE_PROJECT is required")
	}
	if cfg.EEScale <= 0 {
		return nil, errors.New("EE_SCALE must be positive")
	}
	if cfg.EERequestsPerSecond <= 0 {
		return nil, errors.New("EE_REQUESTS_PER_SECOND must be positive")
	}
	if cfg.MaxUnits < 0 {
		return nil, errors.New("MAX_UNITS must not be negative")
	}
	if cfg.MaxConcurrency < 1 {
		return nil, errors.New("MAX_CONCURRENCY must be at least 1")
	}
	if cfg.RetryMaxAttempts < 1 {
		return nil, errors.New("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.RetryMaxInterval < cfg.RetryInitialInterval {
		return nil, errors.New("RETRY_MAX_INTERVAL must not be shorter than RETRY_INITIAL_INTERVAL")
	}
	if cfg.NominatimCacheSize < 1 {
		return nil, errors.New("NOMINATIM_CACHE_SIZE must be at least 1")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	return sharedcfg.ParseBrokers(s)
}

// parser reads typed variables and keeps the first error, naming the variable.
type parser struct {
	err error
}

func (p *parser) fail(key, value string) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %q", key, value)
	}
}

func (p *parser) intVar(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		p.fail(key, s)
		return def
	}
	return n
}

func (p *parser) floatVar(key string, def float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(key, s)
		return def
	}
	return f
}

func (p *parser) durationVar(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		p.fail(key, s)
		return def
	}
	return d
}

func (p *parser) boolVar(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		p.fail(key, s)
		return def
	}
	return b
}
