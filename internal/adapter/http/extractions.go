package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/couchcryptid/climate-point-etl/internal/adapter/csvexport"
	"github.com/couchcryptid/climate-point-etl/internal/domain"
	"github.com/couchcryptid/climate-point-etl/internal/pipeline"
)

var validate = validator.New()

const maxBodyBytes = 1 << 20

// extractionRequest is the JSON body of POST /v1/extractions and /v1/probe.
// Shape is checked here; domain rules such as decade and scenario
// compatibility are checked by the pipeline.
type extractionRequest struct {
	Lat          *float64 `json:"lat" validate:"required_with=Lon,omitempty,gte=-90,lte=90"`
	Lon          *float64 `json:"lon" validate:"required_with=Lat,omitempty,gte=-180,lte=180"`
	Place        string   `json:"place" validate:"required_without=Lat,max=200"`
	Decades      []string `json:"decades" validate:"required,max=20,dive,required"`
	Variables    []string `json:"variables" validate:"max=20,dive,required"`
	Models       []string `json:"models" validate:"max=50,dive,required"`
	Scenarios    []string `json:"scenarios" validate:"required,max=10,dive,required"`
	Ensemble     bool     `json:"ensemble"`
	EnsembleOnly bool     `json:"ensemble_only"`
	Format       string   `json:"format" validate:"omitempty,oneof=csv json"`
	Layout       string   `json:"layout" validate:"omitempty,oneof=wide long"`
	Precision    *int     `json:"precision" validate:"omitempty,min=0,max=10"`
	// Metadata adds the "#" comment header to CSV output. Defaults to true.
	Metadata *bool `json:"metadata"`
}

func (r extractionRequest) locationRequest() domain.LocationRequest {
	req := domain.LocationRequest{Query: strings.TrimSpace(r.Place)}
	if r.Lat != nil && r.Lon != nil {
		req.Point = &domain.Point{Lat: *r.Lat, Lon: *r.Lon}
	}
	return req
}

func (r extractionRequest) selection(point domain.Point) domain.Selection {
	sel := domain.Selection{
		Point:     point,
		Variables: domain.DefaultVariables,
		Models:    domain.DefaultModels,
	}
	for _, d := range r.Decades {
		sel.Decades = append(sel.Decades, domain.Decade(d))
	}
	for _, s := range r.Scenarios {
		sel.Scenarios = append(sel.Scenarios, domain.ScenarioID(s))
	}
	if len(r.Variables) > 0 {
		sel.Variables = nil
		for _, v := range r.Variables {
			sel.Variables = append(sel.Variables, domain.VariableID(v))
		}
	}
	if len(r.Models) > 0 {
		sel.Models = nil
		for _, m := range r.Models {
			sel.Models = append(sel.Models, domain.ModelID(m))
		}
	}
	return sel
}

type failureResponse struct {
	Unit      domain.QueryUnit `json:"unit"`
	Attempts  int              `json:"attempts"`
	Transient bool             `json:"transient"`
	Error     string           `json:"error"`
}

type extractionResponse struct {
	Status     pipeline.Status     `json:"status"`
	Location   domain.Location     `json:"location"`
	Units      int                 `json:"units"`
	Duplicates int                 `json:"duplicates"`
	Failures   []failureResponse   `json:"failures,omitempty"`
	EmptyUnits []domain.QueryUnit  `json:"empty_units,omitempty"`
	Table      *domain.ResultTable `json:"table"`
}

type probeResponse struct {
	Location  domain.Location  `json:"location"`
	Unit      domain.QueryUnit `json:"unit"`
	Count     int              `json:"count"`
	ElapsedMS int64            `json:"elapsed_ms"`
}

func (s *Server) handleExtraction(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	loc, err := s.resolver.Resolve(r.Context(), req.locationRequest())
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.runner.Run(r.Context(), req.selection(loc.Point), domain.AssembleOptions{
		Ensemble:     req.Ensemble || req.EnsembleOnly,
		EnsembleOnly: req.EnsembleOnly,
	})
	if err != nil && res == nil {
		s.writeError(w, err)
		return
	}
	if err != nil {
		// Publishing failed but the table is complete; the caller still gets it.
		s.logger.Warn("extraction served without publishing", "error", err)
	}

	w.Header().Set("X-Extraction-Status", string(res.Status()))
	if res.Status() == pipeline.StatusFailed {
		writeJSON(w, http.StatusBadGateway, newExtractionResponse(loc, res))
		return
	}

	if !wantsCSV(r, req.Format) {
		writeJSON(w, http.StatusOK, newExtractionResponse(loc, res))
		return
	}

	opts := csvexport.Options{Precision: csvexport.DefaultPrecision}
	opts.Layout, _ = csvexport.ParseLayout(req.Layout)
	if req.Precision != nil {
		opts.Precision = *req.Precision
	}
	if req.Metadata == nil || *req.Metadata {
		opts.Metadata = &csvexport.Metadata{Location: loc, Collection: s.collection}
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", csvexport.FileName(csvexport.Prefix(loc), "")))
	w.WriteHeader(http.StatusOK)
	if err := csvexport.Write(w, res.Table, opts); err != nil {
		s.logger.Warn("csv response write failed", "error", err)
	}
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	loc, err := s.resolver.Resolve(r.Context(), req.locationRequest())
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.runner.Probe(r.Context(), req.selection(loc.Point))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, probeResponse{
		Location:  loc,
		Unit:      res.Unit,
		Count:     res.Count,
		ElapsedMS: res.Elapsed.Milliseconds(),
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (extractionRequest, bool) {
	var req extractionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return req, false
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request", Problems: validationProblems(err)})
		return req, false
	}
	return req, true
}

// writeError maps pipeline errors onto status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var selErr *domain.SelectionError
	switch {
	case errors.As(err, &selErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: domain.ErrInvalidSelection.Error(), Problems: selErr.Problems})
	case errors.Is(err, domain.ErrInvalidSelection):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrPlanTooLarge):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrIncompleteResult), errors.Is(err, domain.ErrBadRequest):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	case domain.IsTransient(err):
		w.Header().Set("Retry-After", "30")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func newExtractionResponse(loc domain.Location, res *pipeline.Result) extractionResponse {
	out := extractionResponse{
		Status:     res.Status(),
		Location:   loc,
		Units:      len(res.Units),
		Duplicates: res.Duplicates,
		EmptyUnits: res.EmptyUnits,
		Table:      res.Table,
	}
	for _, f := range res.Failures {
		out.Failures = append(out.Failures, failureResponse{
			Unit:      f.Unit,
			Attempts:  f.Attempts,
			Transient: f.Transient,
			Error:     f.Err.Error(),
		})
	}
	return out
}

func wantsCSV(r *http.Request, format string) bool {
	switch format {
	case "csv":
		return true
	case "json":
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/csv")
}

func validationProblems(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return out
}
