// Package earthengine implements domain.Extractor against the Earth Engine
// REST API by evaluating getRegion expressions with value:compute.
package earthengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/climate-point-etl/internal/domain"
	"github.com/couchcryptid/climate-point-etl/internal/observability"
)

// Options configures a Client.
type Options struct {
	BaseURL           string
	Project           string
	Collection        string
	Scale             float64
	Timeout           time.Duration
	RequestsPerSecond float64
	// AccessToken is sent as a bearer token when HTTPClient is nil.
	AccessToken string
	// HTTPClient is an already-authorized client. It takes precedence over
	// AccessToken.
	HTTPClient *http.Client
	// BreakerTimeout is how long the breaker stays open before probing again.
	BreakerTimeout time.Duration
	// BreakerFailures is the number of consecutive transient failures that
	// opens the breaker.
	BreakerFailures uint32
}

// Client implements domain.Extractor and domain.Counter.
type Client struct {
	endpoint   string
	collection string
	scale      float64
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an Earth Engine client.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: &bearerTransport{token: opts.AccessToken, base: http.DefaultTransport}}
	}

	c := &Client{
		endpoint:   fmt.Sprintf("%s/v1/projects/%s/value:compute", strings.TrimRight(opts.BaseURL, "/"), opts.Project),
		collection: opts.Collection,
		scale:      opts.Scale,
		timeout:    opts.Timeout,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		metrics:    metrics,
		logger:     logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "earthengine",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailures
		},
		// Only transient failures count against the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || !domain.IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// Extract implements domain.Extractor.
func (c *Client) Extract(ctx context.Context, point domain.Point, unit domain.QueryUnit) ([]domain.RawObservation, error) {
	var table [][]any
	if err := c.compute(ctx, "extract", regionRequest(c.collection, c.scale, point, unit), &table); err != nil {
		return nil, fmt.Errorf("extract %s: %w", unit, err)
	}
	obs, err := parseRegion(table, unit)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", unit, err)
	}
	c.logger.Debug("unit extracted",
		"model", unit.Model, "scenario", unit.Scenario, "decade", unit.Decade, "observations", len(obs))
	return obs, nil
}

// Count implements domain.Counter. It reports how many days of the unit's
// range have an image covering point.
func (c *Client) Count(ctx context.Context, point domain.Point, unit domain.QueryUnit) (int, error) {
	var n int
	if err := c.compute(ctx, "count", sizeRequest(c.collection, point, unit), &n); err != nil {
		return 0, fmt.Errorf("count %s: %w", unit, err)
	}
	return n, nil
}

// CheckReadiness fails while the circuit breaker is open.
func (c *Client) CheckReadiness(_ context.Context) error {
	if c.breaker.State() == gobreaker.StateOpen {
		return fmt.Errorf("earth engine circuit breaker open: %w", domain.ErrUnavailable)
	}
	return nil
}

// compute evaluates one expression and decodes its "result" into out.
func (c *Client) compute(ctx context.Context, method string, body computeRequest, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	start := time.Now()
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.post(ctx, body, out)
	})
	c.metrics.RemoteDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	c.metrics.RemoteRequests.WithLabelValues(method, outcome(err)).Inc()
	return err
}

func (c *Client) post(ctx context.Context, body computeRequest, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode expression: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransportError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp.StatusCode, data)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// classifyStatus maps a non-200 answer onto the domain failure classes.
func classifyStatus(code int, body []byte) error {
	var e apiError
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
		msg = e.Error.Message
	}
	lower := strings.ToLower(msg)

	var class error
	switch {
	case strings.Contains(lower, "computation timed out"):
		class = domain.ErrTimeout
	case code == http.StatusTooManyRequests,
		e.Error.Status == "RESOURCE_EXHAUSTED",
		strings.Contains(lower, "memory limit"),
		strings.Contains(lower, "too many concurrent"):
		class = domain.ErrQuotaExceeded
	case code >= 500:
		class = domain.ErrUnavailable
	default:
		class = domain.ErrBadRequest
	}
	return fmt.Errorf("%w: status %d: %s", class, code, msg)
}

func classifyTransportError(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrQuotaExceeded):
		return "quota"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrBadRequest):
		return "bad_request"
	default:
		return "error"
	}
}

// bearerTransport adds a static bearer token to every request.
type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token == "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(r)
}
