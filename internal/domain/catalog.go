package domain

// VariableID names one band of the collection.
type VariableID string

// ModelID names one CMIP6 model.
type ModelID string

// ScenarioID names the historical run or one SSP pathway.
type ScenarioID string

const (
	Tas     VariableID = "tas"
	Tasmax  VariableID = "tasmax"
	Tasmin  VariableID = "tasmin"
	Pr      VariableID = "pr"
	Hurs    VariableID = "hurs"
	Huss    VariableID = "huss"
	Rsds    VariableID = "rsds"
	Rlds    VariableID = "rlds"
	SfcWind VariableID = "sfcWind"
)

const (
	Historical ScenarioID = "historical"
	SSP126     ScenarioID = "ssp126"
	SSP245     ScenarioID = "ssp245"
	SSP370     ScenarioID = "ssp370"
	SSP585     ScenarioID = "ssp585"
)

// EnsembleModel labels rows that average across the selected models.
const EnsembleModel ModelID = "ENSEMBLE-MEAN"

// VariableInfo describes a band and its display unit.
type VariableInfo struct {
	ID          VariableID
	Name        string
	SourceUnit  string
	DisplayUnit string
}

// Variables lists every band in collection order.
var Variables = []VariableInfo{
	{ID: Tas, Name: "Temperature (Mean)", SourceUnit: "K", DisplayUnit: "°C"},
	{ID: Tasmax, Name: "Temperature (Max)", SourceUnit: "K", DisplayUnit: "°C"},
	{ID: Tasmin, Name: "Temperature (Min)", SourceUnit: "K", DisplayUnit: "°C"},
	{ID: Pr, Name: "Precipitation", SourceUnit: "kg m-2 s-1", DisplayUnit: "mm/day"},
	{ID: Hurs, Name: "Relative Humidity", SourceUnit: "%", DisplayUnit: "%"},
	{ID: Huss, Name: "Specific Humidity", SourceUnit: "1", DisplayUnit: "1"},
	{ID: Rsds, Name: "Solar Radiation (Shortwave)", SourceUnit: "W m-2", DisplayUnit: "W m-2"},
	{ID: Rlds, Name: "Thermal Radiation (Longwave)", SourceUnit: "W m-2", DisplayUnit: "W m-2"},
	{ID: SfcWind, Name: "Wind Speed", SourceUnit: "m s-1", DisplayUnit: "m s-1"},
}

// LookupVariable returns the catalog entry for id.
func LookupVariable(id VariableID) (VariableInfo, bool) {
	for _, v := range Variables {
		if v.ID == id {
			return v, true
		}
	}
	return VariableInfo{}, false
}

// ScenarioInfo describes a scenario and the family it belongs to.
type ScenarioInfo struct {
	ID          ScenarioID
	Family      Family
	Description string
}

// Scenarios lists the scenarios published in the collection.
var Scenarios = []ScenarioInfo{
	{ID: Historical, Family: FamilyHistorical, Description: "Historical (1950-2014)"},
	{ID: SSP126, Family: FamilySSP, Description: "SSP1-2.6 - Low emissions (Sustainability)"},
	{ID: SSP245, Family: FamilySSP, Description: "SSP2-4.5 - Medium emissions (Current policies)"},
	{ID: SSP370, Family: FamilySSP, Description: "SSP3-7.0 - High emissions (Regional rivalry)"},
	{ID: SSP585, Family: FamilySSP, Description: "SSP5-8.5 - Very high emissions"},
}

// LookupScenario returns the catalog entry for id.
func LookupScenario(id ScenarioID) (ScenarioInfo, bool) {
	for _, s := range Scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return ScenarioInfo{}, false
}

// ModelInfo describes a model's origin.
type ModelInfo struct {
	ID     ModelID
	Origin string
}

// Models lists the models distributed with NEX-GDDP-CMIP6. The list is
// informational: selections may name any model the collection carries.
var Models = []ModelInfo{
	{ID: "ACCESS-CM2", Origin: "Australia (CSIRO-ARCCSS)"},
	{ID: "ACCESS-ESM1-5", Origin: "Australia (CSIRO, Southern Hemisphere)"},
	{ID: "BCC-CSM2-MR", Origin: "China (BCC)"},
	{ID: "CESM2", Origin: "USA (NCAR)"},
	{ID: "CESM2-WACCM", Origin: "USA (NCAR)"},
	{ID: "CMCC-CM2-SR5", Origin: "Italy (CMCC)"},
	{ID: "CMCC-ESM2", Origin: "Italy (CMCC)"},
	{ID: "CNRM-CM6-1", Origin: "France (CNRM)"},
	{ID: "CNRM-ESM2-1", Origin: "France (CNRM)"},
	{ID: "CanESM5", Origin: "Canada (CCCma)"},
	{ID: "EC-Earth3", Origin: "Europe (EC-Earth consortium)"},
	{ID: "EC-Earth3-Veg-LR", Origin: "Europe (EC-Earth consortium)"},
	{ID: "FGOALS-g3", Origin: "China (CAS)"},
	{ID: "GFDL-CM4", Origin: "USA (NOAA-GFDL)"},
	{ID: "GFDL-ESM4", Origin: "USA (NOAA-GFDL)"},
	{ID: "GISS-E2-1-G", Origin: "USA (NASA-GISS)"},
	{ID: "HadGEM3-GC31-LL", Origin: "UK (Met Office)"},
	{ID: "HadGEM3-GC31-MM", Origin: "UK (Met Office)"},
	{ID: "IITM-ESM", Origin: "India (CCCR-IITM)"},
	{ID: "INM-CM4-8", Origin: "Russia (INM)"},
	{ID: "INM-CM5-0", Origin: "Russia (INM)"},
	{ID: "IPSL-CM6A-LR", Origin: "France (IPSL)"},
	{ID: "KACE-1-0-G", Origin: "South Korea (NIMS-KMA)"},
	{ID: "KIOST-ESM", Origin: "South Korea (KIOST)"},
	{ID: "MIROC-ES2L", Origin: "Japan (MIROC)"},
	{ID: "MIROC6", Origin: "Japan (MIROC)"},
	{ID: "MPI-ESM1-2-HR", Origin: "Germany (MPI-M)"},
	{ID: "MPI-ESM1-2-LR", Origin: "Germany (MPI-M)"},
	{ID: "MRI-ESM2-0", Origin: "Japan (MRI, Asia-Pacific)"},
	{ID: "NESM3", Origin: "China (NUIST)"},
	{ID: "NorESM2-LM", Origin: "Norway (NCC)"},
	{ID: "NorESM2-MM", Origin: "Norway (NCC)"},
	{ID: "TaiESM1", Origin: "Taiwan (AS-RCEC)"},
	{ID: "UKESM1-0-LL", Origin: "UK (Met Office, Earth system)"},
}

// DefaultModels is a small, regionally diverse subset used when a caller
// does not choose models explicitly.
var DefaultModels = []ModelID{
	"ACCESS-ESM1-5",
	"CNRM-CM6-1",
	"EC-Earth3",
	"MPI-ESM1-2-LR",
	"MRI-ESM2-0",
}

// DefaultVariables are the bands selected when a caller chooses none.
var DefaultVariables = []VariableID{Tasmax, Tasmin, Pr}

// LookupModel returns the catalog entry for id.
func LookupModel(id ModelID) (ModelInfo, bool) {
	for _, m := range Models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}
