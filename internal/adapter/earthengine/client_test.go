package earthengine

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-point-etl/internal/domain"
	"github.com/couchcryptid/climate-point-etl/internal/observability"
)

const (
	testProject       = "climate-test"
	testToken         = "ya29.test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

var testPoint = domain.Point{Lat: 51.5074, Lon: -0.1278}

func testUnit() domain.QueryUnit {
	return domain.QueryUnit{
		Model:     "ACCESS-CM2",
		Scenario:  domain.SSP245,
		Decade:    "2020s",
		Years:     domain.YearRange{Start: 2020, End: 2029},
		Variables: []domain.VariableID{domain.Tas, domain.Pr},
	}
}

func testClient(baseURL string, opts ...func(*Options)) *Client {
	o := Options{
		BaseURL:     baseURL,
		Project:     testProject,
		Collection:  "NASA/GDDP-CMIP6",
		Scale:       25000,
		Timeout:     5 * time.Second,
		AccessToken: testToken,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return NewClient(o, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body string) {
	t.Helper()
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(status)
	_, err := w.Write([]byte(body))
	require.NoError(t, err)
}

// 2021-03-04T00:00:00Z and 2021-03-05T00:00:00Z in epoch milliseconds.
const regionBody = `{"result": [
	["id", "longitude", "latitude", "time", "hurs", "pr", "tas"],
	["20210304", -0.125, 51.625, 1614816000000, 80.1, 0.0003472, 300.0],
	["20210305", -0.125, 51.625, 1614902400000, 79.0, null, 281.5]
]}`

func TestClient_Extract_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/projects/"+testProject+"/value:compute", r.URL.Path)
		assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
		assert.Equal(t, contentTypeJSON, r.Header.Get(headerContentType))

		var req computeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		root := req.Expression.Values[req.Expression.Result]
		require.NotNil(t, root.FunctionInvocation)
		assert.Equal(t, "ImageCollection.getRegion", root.FunctionInvocation.FunctionName)
		assert.InDelta(t, 25000.0, root.FunctionInvocation.Arguments["scale"].ConstantValue, 0)

		writeJSON(t, w, http.StatusOK, regionBody)
	}))
	defer srv.Close()

	obs, err := testClient(srv.URL).Extract(context.Background(), testPoint, testUnit())
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.Equal(t, domain.Date{Year: 2021, Month: 3, Day: 4}, obs[0].Date())
	assert.Equal(t, domain.ModelID("ACCESS-CM2"), obs[0].Model)
	assert.Equal(t, domain.SSP245, obs[0].Scenario)
	assert.InDelta(t, 300.0, obs[0].Values[domain.Tas], 0)
	assert.InDelta(t, 0.0003472, obs[0].Values[domain.Pr], 0)
	assert.NotContains(t, obs[0].Values, domain.Hurs, "unrequested bands are ignored")

	assert.Equal(t, domain.Date{Year: 2021, Month: 3, Day: 5}, obs[1].Date())
	assert.NotContains(t, obs[1].Values, domain.Pr, "null cells are omitted")
}

func TestClient_Extract_EmptyRegion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, `{"result": [["id", "longitude", "latitude", "time", "tas"]]}`)
	}))
	defer srv.Close()

	obs, err := testClient(srv.URL).Extract(context.Background(), testPoint, testUnit())
	require.NoError(t, err)
	assert.NotNil(t, obs)
	assert.Empty(t, obs)
}

func TestClient_Extract_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"code":429,"message":"Too Many Requests","status":"RESOURCE_EXHAUSTED"}}`, domain.ErrQuotaExceeded},
		{"memory limit", http.StatusBadRequest, `{"error":{"code":400,"message":"User memory limit exceeded.","status":"INVALID_ARGUMENT"}}`, domain.ErrQuotaExceeded},
		{"concurrency", http.StatusBadRequest, `{"error":{"code":400,"message":"Too many concurrent aggregations.","status":"INVALID_ARGUMENT"}}`, domain.ErrQuotaExceeded},
		{"computation timeout", http.StatusBadRequest, `{"error":{"code":400,"message":"Computation timed out.","status":"INVALID_ARGUMENT"}}`, domain.ErrTimeout},
		{"server error", http.StatusServiceUnavailable, `{"error":{"code":503,"message":"The service is currently unavailable.","status":"UNAVAILABLE"}}`, domain.ErrUnavailable},
		{"bad request", http.StatusBadRequest, `{"error":{"code":400,"message":"ImageCollection.load: Collection asset 'X' not found.","status":"INVALID_ARGUMENT"}}`, domain.ErrBadRequest},
		{"forbidden plain text", http.StatusForbidden, `Forbidden`, domain.ErrBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(t, w, tt.status, tt.body)
			}))
			defer srv.Close()

			_, err := testClient(srv.URL).Extract(context.Background(), testPoint, testUnit())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "ACCESS-CM2/ssp245/2020-2029")
		})
	}
}

func TestClient_Extract_ClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := testClient(srv.URL, func(o *Options) { o.Timeout = 20 * time.Millisecond })
	_, err := c.Extract(context.Background(), testPoint, testUnit())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.True(t, domain.IsTransient(err))
}

func TestClient_Extract_CallerCancellationNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, regionBody)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(srv.URL).Extract(ctx, testPoint, testUnit())
	require.Error(t, err)
	assert.False(t, domain.IsTransient(err))
}

func TestClient_Extract_MalformedResult(t *testing.T) {
	tests := map[string]string{
		"not json":       `{oops`,
		"no time column": `{"result": [["id", "tas"], ["a", 1]]}`,
		"ragged row":     `{"result": [["id", "time", "tas"], ["a", 1614816000000]]}`,
		"string time":    `{"result": [["id", "time", "tas"], ["a", "yesterday", 1]]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(t, w, http.StatusOK, body)
			}))
			defer srv.Close()

			_, err := testClient(srv.URL).Extract(context.Background(), testPoint, testUnit())
			require.Error(t, err)
			assert.False(t, domain.IsTransient(err))
		})
	}
}

func TestClient_Count(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req computeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		root := req.Expression.Values["0"].FunctionInvocation
		assert.Equal(t, "Collection.size", root.FunctionName)
		assert.Equal(t, "Filter.intersects",
			root.Arguments["collection"].FunctionInvocation.Arguments["filter"].FunctionInvocation.FunctionName)
		writeJSON(t, w, http.StatusOK, `{"result": 3653}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	n, err := c.Count(context.Background(), testPoint, testUnit())
	require.NoError(t, err)
	assert.Equal(t, 3653, n)
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.RemoteRequests.WithLabelValues("count", "success")), 0)
}

func TestClient_CircuitBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		writeJSON(t, w, http.StatusInternalServerError, `{"error":{"code":500,"message":"internal"}}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL, func(o *Options) {
		o.BreakerFailures = 2
		o.BreakerTimeout = time.Hour
	})
	require.NoError(t, c.CheckReadiness(context.Background()))

	for range 2 {
		_, err := c.Extract(context.Background(), testPoint, testUnit())
		require.ErrorIs(t, err, domain.ErrUnavailable)
	}
	assert.Error(t, c.CheckReadiness(context.Background()))

	_, err := c.Extract(context.Background(), testPoint, testUnit())
	require.ErrorIs(t, err, domain.ErrUnavailable, "open breaker is reported as unavailable")
	assert.Equal(t, int32(2), hits.Load(), "open breaker short-circuits the request")
}

func TestClient_BadRequestsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusBadRequest, `{"error":{"code":400,"message":"bad model"}}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL, func(o *Options) { o.BreakerFailures = 1 })
	for range 3 {
		_, err := c.Extract(context.Background(), testPoint, testUnit())
		require.ErrorIs(t, err, domain.ErrBadRequest)
	}
	assert.NoError(t, c.CheckReadiness(context.Background()))
}

func TestClient_AuthorizedHTTPClientTakesPrecedence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(t, w, http.StatusOK, `{"result": 1}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL, func(o *Options) { o.HTTPClient = srv.Client() })
	_, err := c.Count(context.Background(), testPoint, testUnit())
	require.NoError(t, err)
}

func TestClient_TrailingSlashBaseURL(t *testing.T) {
	c := testClient("https://earthengine.googleapis.com/")
	assert.Equal(t, "https://earthengine.googleapis.com/v1/projects/climate-test/value:compute", c.endpoint)
}
