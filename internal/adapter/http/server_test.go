package http_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/climate-point-etl/internal/adapter/http"
	"github.com/couchcryptid/climate-point-etl/internal/adapter/fake"
	"github.com/couchcryptid/climate-point-etl/internal/domain"
	"github.com/couchcryptid/climate-point-etl/internal/observability"
	"github.com/couchcryptid/climate-point-etl/internal/pipeline"
)

type readyExtractor struct {
	*fake.Extractor
	err error
}

func (r readyExtractor) CheckReadiness(context.Context) error { return r.err }

type stubGeocoder struct {
	place domain.Place
	err   error
}

func (s stubGeocoder) Search(context.Context, string) (domain.Place, error) { return s.place, s.err }

func (s stubGeocoder) Reverse(context.Context, float64, float64) (domain.Place, error) {
	return s.place, s.err
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func scriptedExtractor() *fake.Extractor {
	e := fake.New()
	e.Script("ACCESS-CM2", domain.SSP245, "2020s", fake.Response{Observations: []domain.RawObservation{
		{Model: "ACCESS-CM2", Scenario: domain.SSP245, Year: 2021, Month: 6, Day: 1,
			Values: map[domain.VariableID]float64{domain.Tas: 300}},
		{Model: "ACCESS-CM2", Scenario: domain.SSP245, Year: 2021, Month: 6, Day: 2,
			Values: map[domain.VariableID]float64{domain.Tas: 301.5}},
	}})
	return e
}

func newTestServer(e domain.Extractor, geo domain.Geocoder, readyErr error) *httpadapter.Server {
	logger := discardLogger()
	opts := pipeline.Options{
		MaxUnits:             20,
		MaxConcurrency:       2,
		RetryMaxAttempts:     1,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     time.Millisecond,
	}
	var ex domain.Extractor = e
	if fe, ok := e.(*fake.Extractor); ok {
		ex = readyExtractor{Extractor: fe, err: readyErr}
	}
	p := pipeline.New(ex, nil, logger, observability.NewMetricsForTesting(), opts)
	return httpadapter.NewServer(":0", p, pipeline.NewPlaceResolver(geo, logger), "NASA/GDDP-CMIP6", logger)
}

func post(t *testing.T, srv http.Handler, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

const nycBody = `{"lat": 40.7128, "lon": -74.006, "decades": ["2020s"], "variables": ["tas"], "models": ["ACCESS-CM2"], "scenarios": ["ssp245"]`

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(fake.New(), nil, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name     string
		readyErr error
		want     int
	}{
		{"ready", nil, http.StatusOK},
		{"breaker open", fmt.Errorf("circuit breaker open: %w", domain.ErrUnavailable), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(fake.New(), nil, tt.readyErr)
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(fake.New(), nil, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestExtraction_JSON(t *testing.T) {
	srv := newTestServer(scriptedExtractor(), nil, nil)
	rec := post(t, srv, "/v1/extractions", nycBody+`}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "complete", rec.Header().Get("X-Extraction-Status"))

	var body struct {
		Status   string          `json:"status"`
		Units    int             `json:"units"`
		Location domain.Location `json:"location"`
		Table    struct {
			Variables []string `json:"variables"`
			Rows      []struct {
				Date   string             `json:"date"`
				Model  string             `json:"model"`
				Values map[string]float64 `json:"values"`
			} `json:"rows"`
		} `json:"table"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "complete", body.Status)
	assert.Equal(t, 1, body.Units)
	assert.Equal(t, domain.SourceOriginal, body.Location.Source)
	require.Len(t, body.Table.Rows, 2)
	assert.Equal(t, "2021-06-01", body.Table.Rows[0].Date)
	assert.InDelta(t, 26.85, body.Table.Rows[0].Values["tas"], 1e-9)
}

func TestExtraction_CSV(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		header []string
	}{
		{"format field", nycBody + `, "format": "csv"}`, nil},
		{"accept header", nycBody + `}`, []string{"Accept", "text/csv"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(scriptedExtractor(), nil, nil)
			rec := post(t, srv, "/v1/extractions", tt.body, tt.header...)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Header().Get("Content-Disposition"), "40.7128_-74.0060.csv")
			assert.Contains(t, rec.Body.String(), "# Location: 40.7128°N, -74.0060°E")

			r := csv.NewReader(strings.NewReader(rec.Body.String()))
			r.Comment = '#'
			records, err := r.ReadAll()
			require.NoError(t, err)
			assert.Equal(t, [][]string{
				{"date", "model", "scenario", "tas"},
				{"2021-06-01", "ACCESS-CM2", "ssp245", "26.85"},
				{"2021-06-02", "ACCESS-CM2", "ssp245", "28.35"},
			}, records)
		})
	}
}

func TestExtraction_CSVLongWithoutMetadata(t *testing.T) {
	srv := newTestServer(scriptedExtractor(), nil, nil)
	rec := post(t, srv, "/v1/extractions", nycBody+`, "format": "csv", "layout": "long", "metadata": false, "precision": 1}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "date,variable,model,scenario,value\n"+
		"2021-06-01,tas,ACCESS-CM2,ssp245,26.9\n"+
		"2021-06-02,tas,ACCESS-CM2,ssp245,28.4\n", rec.Body.String())
}

func TestExtraction_PlaceSearch(t *testing.T) {
	geo := stubGeocoder{place: domain.Place{Lat: 40.7128, Lon: -74.006, DisplayName: "New York, United States"}}
	srv := newTestServer(scriptedExtractor(), geo, nil)

	body := `{"place": "New York", "decades": ["2020s"], "variables": ["tas"], "models": ["ACCESS-CM2"], "scenarios": ["ssp245"], "format": "csv"}`
	rec := post(t, srv, "/v1/extractions", body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "New_York.csv")
	assert.Contains(t, rec.Body.String(), "# Place: New York, United States")
}

func TestExtraction_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"lat":`, http.StatusBadRequest},
		{"unknown field", nycBody + `, "colour": "red"}`, http.StatusBadRequest},
		{"no location", `{"decades": ["2020s"], "scenarios": ["ssp245"]}`, http.StatusBadRequest},
		{"lat without lon", `{"lat": 10, "decades": ["2020s"], "scenarios": ["ssp245"]}`, http.StatusBadRequest},
		{"lat out of range", `{"lat": 91, "lon": 0, "decades": ["2020s"], "scenarios": ["ssp245"]}`, http.StatusBadRequest},
		{"bad format", nycBody + `, "format": "xml"}`, http.StatusBadRequest},
		{"mixed families", `{"lat": 0, "lon": 0, "decades": ["1990s", "2030s"], "scenarios": ["historical", "ssp245"]}`, http.StatusBadRequest},
		{"place search disabled", `{"place": "Oslo", "decades": ["2020s"], "scenarios": ["ssp245"]}`, http.StatusBadRequest},
		{"plan too large", `{"lat": 0, "lon": 0, "decades": ["2020s", "2030s", "2040s"], "models": ["A", "B", "C", "D"], "scenarios": ["ssp126", "ssp245"]}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := fake.New()
			srv := newTestServer(e, nil, nil)
			rec := post(t, srv, "/v1/extractions", tt.body)

			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Zero(t, e.TotalCalls(), "no remote work for rejected requests")
		})
	}
}

func TestExtraction_AllUnitsFailed(t *testing.T) {
	e := fake.New()
	e.Script("ACCESS-CM2", domain.SSP245, "2020s", fake.Response{Err: fmt.Errorf("%w: bad band", domain.ErrBadRequest)})
	srv := newTestServer(e, nil, nil)

	rec := post(t, srv, "/v1/extractions", nycBody+`}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "failed", rec.Header().Get("X-Extraction-Status"))

	var body struct {
		Failures []struct {
			Attempts int    `json:"attempts"`
			Error    string `json:"error"`
		} `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Failures, 1)
	assert.Equal(t, 1, body.Failures[0].Attempts)
	assert.Contains(t, body.Failures[0].Error, "bad band")
}

func TestProbe(t *testing.T) {
	srv := newTestServer(scriptedExtractor(), nil, nil)
	rec := post(t, srv, "/v1/probe", nycBody+`}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Count int              `json:"count"`
		Unit  domain.QueryUnit `json:"unit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, domain.ModelID("ACCESS-CM2"), body.Unit.Model)
}

func TestProbe_TransientFailure(t *testing.T) {
	e := fake.New()
	e.Script("ACCESS-CM2", domain.SSP245, "2020s", fake.Response{Err: errors.Join(domain.ErrQuotaExceeded, errors.New("429"))})
	srv := newTestServer(e, nil, nil)

	rec := post(t, srv, "/v1/probe", nycBody+`}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
}
