package domain

const (
	kelvinOffset  = 273.15
	secondsPerDay = 86400
)

// ConvertValue converts a raw band value from source to display units.
// Temperatures go from Kelvin to Celsius, precipitation flux from
// kg m-2 s-1 to mm/day; every other band passes through.
func ConvertValue(v VariableID, raw float64) float64 {
	switch v {
	case Tas, Tasmax, Tasmin:
		return raw - kelvinOffset
	case Pr:
		return raw * secondsPerDay
	default:
		return raw
	}
}

// NormalizeObservation converts the requested variables of an observation.
// Variables missing from the observation are omitted from the row; values
// for variables that were not requested are dropped.
func NormalizeObservation(obs RawObservation, variables []VariableID) NormalizedRow {
	values := make(map[VariableID]float64, len(variables))
	for _, v := range variables {
		raw, ok := obs.Values[v]
		if !ok {
			continue
		}
		values[v] = ConvertValue(v, raw)
	}
	return NormalizedRow{
		Date:     obs.Date(),
		Model:    obs.Model,
		Scenario: obs.Scenario,
		Values:   values,
	}
}
