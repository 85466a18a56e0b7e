package sqlite

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/couchcryptid/climate-point-etl/internal/domain"
)

// Points closer than this many decimal places share a cache entry. Four
// places is about 11 m, far below the 25 km grid.
const coordPrecision = 4

// Key identifies a cached unit extraction.
type Key struct {
	Collection string
	Model      domain.ModelID
	Scenario   domain.ScenarioID
	Years      domain.YearRange
	Lat        float64
	Lon        float64
	Variables  []domain.VariableID
}

// KeyFor builds the cache key for a unit extracted at point.
func KeyFor(collection string, point domain.Point, unit domain.QueryUnit) Key {
	vars := slices.Clone(unit.Variables)
	slices.Sort(vars)
	return Key{
		Collection: collection,
		Model:      unit.Model,
		Scenario:   unit.Scenario,
		Years:      unit.Years,
		Lat:        round(point.Lat),
		Lon:        round(point.Lon),
		Variables:  slices.Compact(vars),
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s|%s|%.4f,%.4f|%s",
		k.Collection, k.Model, k.Scenario, k.Years, k.Lat, k.Lon, k.variableList())
}

// Hash is the primary key stored in the database.
func (k Key) Hash() string {
	sum := sha256.Sum256([]byte(k.String()))
	return hex.EncodeToString(sum[:])
}

func (k Key) variableList() string {
	parts := make([]string, len(k.Variables))
	for i, v := range k.Variables {
		parts[i] = string(v)
	}
	return strings.Join(parts, ",")
}

func round(v float64) float64 {
	scale := math.Pow10(coordPrecision)
	return math.Round(v*scale) / scale
}
