// Package solution defines the result of a design/flow MIP solve — the
// set of timed services actually operated and each commodity's
// resulting path — and the extractor that reads them back out of a
// solved optimizer.Solver.
//
// Grounded on solution.py (TimedService/CommodityPath/Solution) and
// snd_model.py's getSolution, with its documented holding-arc test
// inverted back to the correct form (capacity == nil selects a holding
// arc, never "capacity is not None") and its path-reconstruction walk
// replaced with the spec's start-time-aware greedy selection so a
// commodity that waits at a node between two services still matches
// correctly.
package solution

import (
	"fmt"
	"strings"

	"github.com/hakkape/ddd-snd/internal/instance"
)

// TimedService is one scheduled use of a travel arc: a number of
// vehicles dispatched from start_node at start_time, arriving at
// end_node at end_time, carrying a set of commodities.
type TimedService struct {
	StartNode, EndNode instance.NodeID
	StartTime, EndTime int64
	TravelTime         int64
	FlatArc            int // index into the owning Instance.Arcs
	NumVehicles        int
	Cost               float64 // NumVehicles * fixed_cost
	Capacity           float64 // NumVehicles * per-vehicle capacity
	Commodities        []int   // commodity IDs transported on this service
}

// ArcString renders the service's endpoints the way the original
// prints them, for logs and debugging.
func (s *TimedService) ArcString() string {
	return fmt.Sprintf("((%d, %d),(%d, %d))", s.StartNode, s.StartTime, s.EndNode, s.EndTime)
}

// CommodityPath is one commodity's ordered sequence of services.
type CommodityPath struct {
	Duration int64
	FlowCost float64
	Services []*TimedService
}

// Solution is the full result of a design/flow MIP solve.
type Solution struct {
	Services       []*TimedService
	CommodityPaths []*CommodityPath // indexed the same as instance.Instance.Commodities
	TotalFlowCost  float64
	TotalFixedCost float64
	TotalCost      float64
}

// String renders a human-readable summary, in the spirit of the
// original's Solution.print.
func (s *Solution) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "solution with cost %g = %g flow cost + %g fixed cost\n",
		s.TotalCost, s.TotalFlowCost, s.TotalFixedCost)
	b.WriteString("services:\n")
	for _, svc := range s.Services {
		fmt.Fprintf(&b, "  %dx %s, travel time %d, cost %g, capacity %g\n",
			svc.NumVehicles, svc.ArcString(), svc.TravelTime, svc.Cost, svc.Capacity)
	}
	b.WriteString("commodity paths:\n")
	for k, path := range s.CommodityPaths {
		parts := make([]string, len(path.Services))
		for i, svc := range path.Services {
			parts[i] = svc.ArcString()
		}
		fmt.Fprintf(&b, "  commodity %d: flow cost %g, duration %d, path: %s\n",
			k, path.FlowCost, path.Duration, strings.Join(parts, ", "))
	}
	return b.String()
}
