package domain

import (
	"fmt"
	"time"
)

// Date is a calendar day without time zone.
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// DateOf returns the UTC calendar day of t.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// Compare orders dates chronologically.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return d.Year - o.Year
	case d.Month != o.Month:
		return d.Month - o.Month
	default:
		return d.Day - o.Day
	}
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string { return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day) }

// MarshalText encodes the date as YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText parses a YYYY-MM-DD date.
func (d *Date) UnmarshalText(b []byte) error {
	t, err := time.Parse(time.DateOnly, string(b))
	if err != nil {
		return fmt.Errorf("parse date: %w", err)
	}
	*d = DateOf(t)
	return nil
}

// RawObservation is one day of band values as returned by the remote
// service, in source units.
type RawObservation struct {
	Model    ModelID                `json:"model"`
	Scenario ScenarioID             `json:"scenario"`
	Year     int                    `json:"year"`
	Month    int                    `json:"month"`
	Day      int                    `json:"day"`
	Values   map[VariableID]float64 `json:"values"`
}

// Date returns the observation's calendar day.
func (o RawObservation) Date() Date { return Date{Year: o.Year, Month: o.Month, Day: o.Day} }

// NormalizedRow is one day of display-unit values for a model and scenario.
type NormalizedRow struct {
	Date     Date                   `json:"date"`
	Model    ModelID                `json:"model"`
	Scenario ScenarioID             `json:"scenario"`
	Values   map[VariableID]float64 `json:"values"`
}

// RowKey identifies a row in the result table.
type RowKey struct {
	Date     Date
	Model    ModelID
	Scenario ScenarioID
}

// Key returns the row's merge key.
func (r NormalizedRow) Key() RowKey {
	return RowKey{Date: r.Date, Model: r.Model, Scenario: r.Scenario}
}
