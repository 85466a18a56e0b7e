package fake

import (
	"hash/fnv"
	"math"
	"time"

	"github.com/couchcryptid/climate-point-etl/internal/domain"
)

// Synthesize fabricates one observation per day of years in source units.
// Values follow a seasonal cycle with a small per-model offset and, for SSP
// scenarios, a warming trend, so fixtures look plausible in previews.
func Synthesize(model domain.ModelID, scenario domain.ScenarioID, years domain.YearRange, variables []domain.VariableID) []domain.RawObservation {
	offset := modelOffset(model)
	trend := warming[scenario]

	start := time.Date(years.Start, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(years.End+1, time.January, 1, 0, 0, 0, 0, time.UTC)

	out := make([]domain.RawObservation, 0, years.Len()*366)
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		season := math.Sin(2 * math.Pi * float64(d.YearDay()-105) / 365.25)
		warm := trend * float64(max(0, d.Year()-domain.SSPFirstYear))

		values := make(map[domain.VariableID]float64, len(variables))
		for _, v := range variables {
			values[v] = synthValue(v, season, offset, warm)
		}
		out = append(out, domain.RawObservation{
			Model:    model,
			Scenario: scenario,
			Year:     d.Year(),
			Month:    int(d.Month()),
			Day:      d.Day(),
			Values:   values,
		})
	}
	return out
}

// Degrees per year after 2014.
var warming = map[domain.ScenarioID]float64{
	domain.SSP126: 0.01,
	domain.SSP245: 0.025,
	domain.SSP370: 0.04,
	domain.SSP585: 0.055,
}

func modelOffset(m domain.ModelID) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(m))
	return float64(h.Sum32()%100)/50 - 1
}

func synthValue(v domain.VariableID, season, offset, warm float64) float64 {
	switch v {
	case domain.Tas:
		return 283.15 + 9*season + offset + warm
	case domain.Tasmax:
		return 288.15 + 10*season + offset + warm
	case domain.Tasmin:
		return 278.15 + 8*season + offset + warm
	case domain.Pr:
		return (2.2 - season + offset/4) / 86400
	case domain.Hurs:
		return 75 - 10*season
	case domain.Huss:
		return 0.007 + 0.003*season
	case domain.Rsds:
		return 150 + 120*season
	case domain.Rlds:
		return 310 + 30*season
	case domain.SfcWind:
		return 4.5 - season
	default:
		return 0
	}
}
