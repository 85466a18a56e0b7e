package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock geocoder ---

type mockGeocoder struct {
	searchResult  Place
	searchErr     error
	reverseResult Place
	reverseErr    error
	searchCalls   int
	reverseCalls  int
}

func (m *mockGeocoder) Search(_ context.Context, _ string) (Place, error) {
	m.searchCalls++
	return m.searchResult, m.searchErr
}

func (m *mockGeocoder) Reverse(_ context.Context, _, _ float64) (Place, error) {
	m.reverseCalls++
	return m.reverseResult, m.reverseErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestResolveLocation_PointWithoutGeocoder(t *testing.T) {
	p := Point{Lat: 51.5, Lon: -0.12}

	loc, err := ResolveLocation(context.Background(), LocationRequest{Point: &p}, nil, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, p, loc.Point)
	assert.Empty(t, loc.Name)
	assert.Equal(t, SourceOriginal, loc.Source)
}

func TestResolveLocation_Forward(t *testing.T) {
	geo := &mockGeocoder{searchResult: Place{Lat: 48.8566, Lon: 2.3522, DisplayName: "Paris, Île-de-France, France"}}

	loc, err := ResolveLocation(context.Background(), LocationRequest{Query: "Paris"}, geo, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, Point{Lat: 48.8566, Lon: 2.3522}, loc.Point)
	assert.Equal(t, "Paris, Île-de-France, France", loc.Name)
	assert.Equal(t, SourceForward, loc.Source)
	assert.Equal(t, 1, geo.searchCalls)
	assert.Zero(t, geo.reverseCalls)
}

func TestResolveLocation_ForwardFailures(t *testing.T) {
	t.Run("no query", func(t *testing.T) {
		_, err := ResolveLocation(context.Background(), LocationRequest{}, &mockGeocoder{}, discardLogger())
		assert.ErrorIs(t, err, ErrInvalidSelection)
	})

	t.Run("disabled", func(t *testing.T) {
		_, err := ResolveLocation(context.Background(), LocationRequest{Query: "Oslo"}, nil, discardLogger())
		assert.ErrorIs(t, err, ErrInvalidSelection)
		assert.Contains(t, err.Error(), "disabled")
	})

	t.Run("no match", func(t *testing.T) {
		_, err := ResolveLocation(context.Background(), LocationRequest{Query: "Atlantis"}, &mockGeocoder{}, discardLogger())
		assert.ErrorIs(t, err, ErrInvalidSelection)
		assert.Contains(t, err.Error(), "Atlantis")
	})

	t.Run("provider error", func(t *testing.T) {
		geo := &mockGeocoder{searchErr: errors.New("connection refused")}
		_, err := ResolveLocation(context.Background(), LocationRequest{Query: "Oslo"}, geo, discardLogger())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidSelection)
	})
}

func TestResolveLocation_Reverse(t *testing.T) {
	p := Point{Lat: 35.68, Lon: 139.69}
	geo := &mockGeocoder{reverseResult: Place{Lat: 35.68, Lon: 139.69, DisplayName: "Shinjuku, Tokyo, Japan"}}

	loc, err := ResolveLocation(context.Background(), LocationRequest{Point: &p, Query: "ignored"}, geo, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, p, loc.Point, "an explicit point is never replaced")
	assert.Equal(t, "Shinjuku, Tokyo, Japan", loc.Name)
	assert.Equal(t, SourceReverse, loc.Source)
	assert.Zero(t, geo.searchCalls)
}

func TestResolveLocation_ReverseDegradesGracefully(t *testing.T) {
	p := Point{Lat: -33.87, Lon: 151.21}

	loc, err := ResolveLocation(context.Background(), LocationRequest{Point: &p}, &mockGeocoder{reverseErr: errors.New("503")}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, SourceFailed, loc.Source)
	assert.Equal(t, p, loc.Point)

	loc, err = ResolveLocation(context.Background(), LocationRequest{Point: &p}, &mockGeocoder{}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, SourceOriginal, loc.Source, "empty reverse result keeps the original source")
}

func TestResolveLocation_InvalidPointSkipsLookup(t *testing.T) {
	p := Point{Lat: 120}
	geo := &mockGeocoder{}

	loc, err := ResolveLocation(context.Background(), LocationRequest{Point: &p}, geo, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, SourceOriginal, loc.Source)
	assert.Zero(t, geo.reverseCalls)
}
