// Command genfixture writes a synthetic observation fixture that the fake
// extractor can serve offline. It plans the selection with the real domain
// planner so the fixture covers exactly the units a run would request.
//
// Usage:
//
//	go run ./cmd/genfixture \
//	  -decades 2020s,2030s -scenarios ssp245,ssp585 \
//	  -models ACCESS-CM2,MIROC6 -variables tasmax,tasmin,pr \
//	  -drop-every 97 -out testdata/fixture.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/climate-point-etl/internal/adapter/fake"
	"github.com/couchcryptid/climate-point-etl/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the JSON fixture")
	decades := flag.String("decades", "2020s", "comma-separated decade labels")
	scenarios := flag.String("scenarios", "ssp245", "comma-separated scenarios")
	models := flag.String("models", strings.Join(ids(domain.DefaultModels), ","), "comma-separated models")
	variables := flag.String("variables", strings.Join(ids(domain.DefaultVariables), ","), "comma-separated variables")
	dropEvery := flag.Int("drop-every", 0, "omit the last variable on every Nth day (0 keeps all)")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	sel, err := domain.NormalizeSelection(domain.Selection{
		Decades:   split[domain.Decade](*decades),
		Scenarios: split[domain.ScenarioID](*scenarios),
		Models:    split[domain.ModelID](*models),
		Variables: split[domain.VariableID](*variables),
	})
	if err != nil {
		return err
	}
	units, err := domain.Plan(sel, 0)
	if err != nil {
		return err
	}

	var fixture []domain.RawObservation //nolint:prealloc // size depends on the plan
	dropped := 0
	for _, u := range units {
		obs := fake.Synthesize(u.Model, u.Scenario, u.Years, u.Variables)
		dropped += thin(obs, u.Variables, *dropEvery)
		fixture = append(fixture, obs...)
		log.Printf("%s: %d observations", u, len(obs))
	}

	if err := writeJSON(*out, fixture); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote %d observations for %d units to %s (%d values dropped)", len(fixture), len(units), *out, dropped)
	return nil
}

// thin removes the last variable from every nth observation so fixtures
// exercise the missing-value path.
func thin(obs []domain.RawObservation, variables []domain.VariableID, n int) int {
	if n <= 0 || len(variables) == 0 {
		return 0
	}
	last := variables[len(variables)-1]
	dropped := 0
	for i := n - 1; i < len(obs); i += n {
		delete(obs[i].Values, last)
		dropped++
	}
	return dropped
}

func split[T ~string](s string) []T {
	var out []T
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, T(part))
		}
	}
	return out
}

func ids[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
