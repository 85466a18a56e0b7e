// Package domain models point extraction from the NASA NEX-GDDP-CMIP6
// daily climate projection collection.
//
// # Data Source
//
// NEX-GDDP-CMIP6 is a bias-corrected, statistically downscaled (0.25°, ~25 km)
// daily dataset derived from CMIP6 global climate models. In Earth Engine it is
// published as the image collection "NASA/GDDP-CMIP6": one image per model,
// scenario and day, with every variable stored as a band. Each image carries
// "model" and "scenario" properties and a "system:time_start" timestamp.
//
// # Scenario Families
//
// The collection splits time at a hard boundary:
//
//	historical  1950-01-01 .. 2014-12-31
//	ssp*        2015-01-01 .. 2100-12-31
//
// A decade belongs to exactly one family, decided by its first year. The
// 2010s are historical and clip to 2010–2014; the 2020s onward are SSP. A
// selection that pairs a decade with a scenario from the other family is
// rejected, never clipped, so no [QueryUnit] straddles the boundary.
//
// # Units
//
// Source bands use CF conventions. Display values are converted per band:
//
//	tas, tasmax, tasmin   K           -> °C       value - 273.15
//	pr                    kg m-2 s-1  -> mm/day   value * 86400
//	hurs                  %           (unchanged)
//	huss                  1           (unchanged)
//	rsds, rlds            W m-2       (unchanged)
//	sfcWind               m s-1       (unchanged)
//
// One kg of water spread over one square metre is one millimetre deep, so the
// precipitation flux becomes a daily depth after multiplying by the number of
// seconds in a day.
//
// # Result Identity
//
// Rows are keyed by (date, model, scenario). Units are partitioned by disjoint
// (model, scenario, decade) tuples, so a repeated key only arises from a
// repeated delivery. [Merger] keeps the first row seen for a key and the
// pipeline folds unit outcomes in plan order, which makes the final
// [ResultTable] independent of request completion order and of retries.
package domain
