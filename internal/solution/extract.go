package solution

import (
	"math"

	"github.com/hakkape/ddd-snd/internal/design"
	"github.com/hakkape/ddd-snd/internal/instance"
	"github.com/hakkape/ddd-snd/internal/optimizer"
	"github.com/hakkape/ddd-snd/internal/teg"
	"github.com/hakkape/ddd-snd/pkg/apperror"
)

// Extract reads a solved design/flow model (solver.Status() must be
// optimizer.Optimal) back into a Solution: one TimedService per
// travel-arc edge with a rounded design value > 0, and each
// commodity's path reconstructed by greedily walking its assigned
// services from source to sink.
func Extract(g *teg.Graph, vars *design.Variables, solver optimizer.Solver, inst *instance.Instance) (*Solution, error) {
	if solver.Status() != optimizer.Optimal {
		return nil, apperror.New(apperror.CodeSolverNonOptimal, "design model did not solve to optimality").
			WithDetails("status", solver.Status().String())
	}

	numCom := len(inst.Commodities)
	paths := make([]*CommodityPath, numCom)
	for k := range paths {
		paths[k] = &CommodityPath{}
	}

	var services []*TimedService
	var totalFlowCost, totalFixedCost float64

	var extractErr error
	g.Edges(func(e teg.Edge) {
		if extractErr != nil || e.IsHolding() {
			return
		}
		yref, ok := vars.Y[e.ID]
		if !ok {
			return
		}
		vehicles := math.Round(solver.Value(yref))
		if vehicles == 0 {
			return
		}

		arc := inst.Arcs[e.FlatArc]
		from, to := g.Node(e.From), g.Node(e.To)

		svc := &TimedService{
			StartNode:   from.FlatNode,
			EndNode:     to.FlatNode,
			StartTime:   from.Time,
			EndTime:     to.Time,
			TravelTime:  arc.TravelTime,
			FlatArc:     e.FlatArc,
			NumVehicles: int(vehicles),
			Cost:        vehicles * arc.FixedCost,
			Capacity:    vehicles * (*arc.Capacity),
		}
		totalFixedCost += svc.Cost

		row := vars.X[e.ID]
		for k, com := range inst.Commodities {
			if solver.Value(row[k]) <= 0.5 {
				continue
			}
			svc.Commodities = append(svc.Commodities, com.ID)
			flowCost := com.Quantity * arc.FlowCost
			paths[k].FlowCost += flowCost
			paths[k].Duration += arc.TravelTime
			totalFlowCost += flowCost
			paths[k].Services = append(paths[k].Services, svc)
		}
		services = append(services, svc)
	})
	if extractErr != nil {
		return nil, extractErr
	}

	for k, com := range inst.Commodities {
		ordered, err := reconstructPath(paths[k].Services, com)
		if err != nil {
			return nil, err
		}
		paths[k].Services = ordered
	}

	return &Solution{
		Services:       services,
		CommodityPaths: paths,
		TotalFlowCost:  totalFlowCost,
		TotalFixedCost: totalFixedCost,
		TotalCost:      totalFlowCost + totalFixedCost,
	}, nil
}

// reconstructPath greedily orders a commodity's assigned services: at
// each step, pick the earliest service starting at the current node
// no earlier than the current time, then advance
// (node, time) <- (end_node, end_time). An unmatched step means x and
// y disagree on the commodity's connectivity — a fatal inconsistency.
func reconstructPath(services []*TimedService, com instance.Commodity) ([]*TimedService, error) {
	remaining := append([]*TimedService(nil), services...)
	ordered := make([]*TimedService, 0, len(remaining))

	currentNode := com.Source
	currentTime := com.Release
	for len(remaining) > 0 {
		best := -1
		for i, s := range remaining {
			if s.StartNode != currentNode || s.StartTime < currentTime {
				continue
			}
			if best == -1 || s.StartTime < remaining[best].StartTime {
				best = i
			}
		}
		if best == -1 {
			return nil, apperror.New(apperror.CodePathReconstructionStuck,
				"no service continues commodity path").
				WithDetails("commodity", com.ID).
				WithDetails("node", currentNode).
				WithDetails("time", currentTime)
		}

		svc := remaining[best]
		ordered = append(ordered, svc)
		currentNode, currentTime = svc.EndNode, svc.EndTime
		remaining = append(remaining[:best], remaining[best+1:]...)
	}

	if currentNode != com.Sink {
		return nil, apperror.New(apperror.CodePathReconstructionStuck,
			"reconstructed path does not terminate at the commodity's sink").
			WithDetails("commodity", com.ID)
	}
	return ordered, nil
}
