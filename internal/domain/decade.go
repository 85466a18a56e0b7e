package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Family groups scenarios that share a valid year span.
type Family string

const (
	FamilyHistorical Family = "historical"
	FamilySSP        Family = "ssp"
)

// Dataset coverage per family, inclusive.
const (
	HistoricalFirstYear = 1950
	HistoricalLastYear  = 2014
	SSPFirstYear        = 2015
	SSPLastYear         = 2100
)

// YearRange is an inclusive span of calendar years.
type YearRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of years in the range.
func (r YearRange) Len() int { return r.End - r.Start + 1 }

// Contains reports whether year falls inside the range.
func (r YearRange) Contains(year int) bool { return year >= r.Start && year <= r.End }

func (r YearRange) String() string { return fmt.Sprintf("%d-%d", r.Start, r.End) }

// Decade is a label such as "1990s".
type Decade string

// ResolvedDecade is a decade label bound to its clipped year range.
type ResolvedDecade struct {
	Label  Decade    `json:"label"`
	Range  YearRange `json:"range"`
	Family Family    `json:"family"`
}

type decadeEntry struct {
	rng    YearRange
	family Family
}

// decades is the lookup table from label to clipped range. Decades whose
// first year is on or before the historical cutoff are historical.
var decades = buildDecades()

func buildDecades() map[Decade]decadeEntry {
	out := make(map[Decade]decadeEntry)
	for y := HistoricalFirstYear; y < SSPLastYear; y += 10 {
		label := Decade(strconv.Itoa(y) + "s")
		if y <= HistoricalLastYear {
			out[label] = decadeEntry{
				rng:    YearRange{Start: y, End: min(y+9, HistoricalLastYear)},
				family: FamilyHistorical,
			}
			continue
		}
		out[label] = decadeEntry{
			rng:    YearRange{Start: max(y, SSPFirstYear), End: min(y+9, SSPLastYear)},
			family: FamilySSP,
		}
	}
	return out
}

// AllDecades returns every valid decade label in ascending order.
func AllDecades() []Decade {
	out := make([]Decade, 0, len(decades))
	for y := HistoricalFirstYear; y < SSPLastYear; y += 10 {
		out = append(out, Decade(strconv.Itoa(y)+"s"))
	}
	return out
}

// ResolveDecade maps a label to its year range and family. Labels are
// accepted with or without surrounding whitespace, e.g. " 2020s".
func ResolveDecade(label Decade) (ResolvedDecade, bool) {
	label = Decade(strings.TrimSpace(string(label)))
	e, ok := decades[label]
	if !ok {
		return ResolvedDecade{}, false
	}
	return ResolvedDecade{Label: label, Range: e.rng, Family: e.family}, true
}

// Compatible reports whether a scenario may be paired with a decade.
func Compatible(d ResolvedDecade, s ScenarioID) bool {
	info, ok := LookupScenario(s)
	if !ok {
		return false
	}
	return info.Family == d.Family
}
