package earthengine

import (
	"fmt"

	"github.com/couchcryptid/climate-point-etl/internal/domain"
)

// value is one node of an Earth Engine expression graph in its REST JSON
// encoding. Exactly one field is set.
type value struct {
	ConstantValue      any         `json:"constantValue,omitempty"`
	FunctionInvocation *invocation `json:"functionInvocationValue,omitempty"`
	ArrayValue         *arrayValue `json:"arrayValue,omitempty"`
}

type invocation struct {
	FunctionName string           `json:"functionName"`
	Arguments    map[string]value `json:"arguments"`
}

type arrayValue struct {
	Values []value `json:"values"`
}

// expression is the top-level graph sent to value:compute.
type expression struct {
	Result string           `json:"result"`
	Values map[string]value `json:"values"`
}

type computeRequest struct {
	Expression expression `json:"expression"`
}

func constant(v any) value { return value{ConstantValue: v} }

func call(name string, args map[string]value) value {
	return value{FunctionInvocation: &invocation{FunctionName: name, Arguments: args}}
}

func newComputeRequest(root value) computeRequest {
	return computeRequest{Expression: expression{Result: "0", Values: map[string]value{"0": root}}}
}

// filteredCollection selects one model, one scenario and the unit's years.
// The date range end is exclusive, so it is 1 January of the year after the
// unit ends.
func filteredCollection(collection string, unit domain.QueryUnit) value {
	start := fmt.Sprintf("%04d-01-01", unit.Years.Start)
	end := fmt.Sprintf("%04d-01-01", unit.Years.End+1)

	filter := call("Filter.and", map[string]value{
		"filters": {ArrayValue: &arrayValue{Values: []value{
			call("Filter.equals", map[string]value{
				"leftField":  constant("model"),
				"rightValue": constant(string(unit.Model)),
			}),
			call("Filter.equals", map[string]value{
				"leftField":  constant("scenario"),
				"rightValue": constant(string(unit.Scenario)),
			}),
			call("Filter.dateRangeContains", map[string]value{
				"leftValue": call("DateRange", map[string]value{
					"start": call("Date", map[string]value{"value": constant(start)}),
					"end":   call("Date", map[string]value{"value": constant(end)}),
				}),
				"rightField": constant("system:time_start"),
			}),
		}}},
	})

	return call("Collection.filter", map[string]value{
		"collection": call("ImageCollection.load", map[string]value{"id": constant(collection)}),
		"filter":     filter,
	})
}

func pointGeometry(p domain.Point) value {
	return call("GeometryConstructors.Point", map[string]value{
		"coordinates": constant([]float64{p.Lon, p.Lat}),
	})
}

// regionRequest asks for every band of every matching image at the point.
func regionRequest(collection string, scale float64, p domain.Point, unit domain.QueryUnit) computeRequest {
	return newComputeRequest(call("ImageCollection.getRegion", map[string]value{
		"collection": filteredCollection(collection, unit),
		"geometry":   pointGeometry(p),
		"scale":      constant(scale),
	}))
}

// sizeRequest counts the matching daily images whose footprint covers the
// point, without sampling them.
func sizeRequest(collection string, p domain.Point, unit domain.QueryUnit) computeRequest {
	bounded := call("Collection.filter", map[string]value{
		"collection": filteredCollection(collection, unit),
		"filter": call("Filter.intersects", map[string]value{
			"leftField":  constant(".all"),
			"rightValue": pointGeometry(p),
		}),
	})
	return newComputeRequest(call("Collection.size", map[string]value{
		"collection": bounded,
	}))
}
