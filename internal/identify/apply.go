package identify

import (
	"github.com/hakkape/ddd-snd/internal/instance"
	"github.com/hakkape/ddd-snd/internal/optimizer"
	"github.com/hakkape/ddd-snd/internal/solution"
)

// Insertion is a candidate time point to add to the TEG at Node.
type Insertion struct {
	Node instance.NodeID
	Time int64
}

// ApplySolution is called when the identification model solves with
// objective 0: the relaxed solution is implementable as-is. It updates
// every service's start/end time from its commodities' dispatch
// variables, replacing the relaxed timing with the real one.
//
// Grounded on update_timed_services: any commodity on a service gives
// the same dispatch time (constraint 10 enforces this for shared
// services), so the first is enough.
func ApplySolution(sol *solution.Solution, inst *instance.Instance, solver optimizer.Solver, vars *Variables) {
	idToIndex := make(map[int]int, len(inst.Commodities))
	for k, com := range inst.Commodities {
		idToIndex[com.ID] = k
	}

	for _, svc := range sol.Services {
		if len(svc.Commodities) == 0 {
			continue
		}
		k := idToIndex[svc.Commodities[0]]
		i, ok := vars.positions[k][svc]
		if !ok {
			continue
		}
		start := int64(solver.Value(vars.Dispatch[k][i]))
		svc.StartTime = start
		svc.EndTime = start + svc.TravelTime
	}
}

// FindInsertions reads the solved shorten variables and returns the
// deduplicated set of (node, time) points to insert into the TEG: for
// every sigma[k][i] = 1, the service that was shortened must be split
// at its real arrival time.
//
// Grounded on find_nodes_to_insert.
func FindInsertions(sol *solution.Solution, inst *instance.Instance, solver optimizer.Solver, vars *Variables) []Insertion {
	seen := make(map[Insertion]struct{})
	var out []Insertion

	for k := range inst.Commodities {
		path := sol.CommodityPaths[k]
		for i, svc := range path.Services {
			if i >= len(vars.Shorten[k]) {
				continue
			}
			if solver.Value(vars.Shorten[k][i]) <= 0.5 {
				continue
			}
			ins := Insertion{Node: svc.EndNode, Time: svc.StartTime + svc.TravelTime}
			if _, dup := seen[ins]; dup {
				continue
			}
			seen[ins] = struct{}{}
			out = append(out, ins)
		}
	}
	return out
}
