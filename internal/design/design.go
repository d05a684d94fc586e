// Package design builds the design/flow MIP for a single time-expanded
// graph (§4.3 of the specification): one integer design variable per
// travel arc copy, one binary flow variable per (arc, commodity) pair
// including holding arcs, flow conservation at every timed node, and a
// capacity coupling constraint linking flow to the number of dispatched
// vehicles.
//
// Grounded on snd_model.py's add_design_variables,
// add_flow_variables, add_flow_conservation_constraints and
// add_capacity_constraints; translated onto the optimizer.Solver
// interface instead of a concrete solver binding.
package design

import (
	"sort"

	"github.com/hakkape/ddd-snd/internal/instance"
	"github.com/hakkape/ddd-snd/internal/optimizer"
	"github.com/hakkape/ddd-snd/internal/teg"
	"github.com/hakkape/ddd-snd/pkg/apperror"
)

// Variables indexes the variables this package registers on a Solver,
// so a caller can read back values after Optimize without re-deriving
// the keying scheme.
type Variables struct {
	// Y maps a travel-arc edge ID to its design variable. Holding arcs
	// have no entry: a commodity may always wait at no vehicle cost.
	Y map[int]optimizer.VarRef

	// X maps an edge ID to its flow variables, indexed by the
	// commodity's position in the instance's Commodities slice.
	// Every edge (travel and holding) has an entry for every commodity.
	X map[int][]optimizer.VarRef
}

// Build registers the design/flow model's variables and constraints on
// solver and returns the variable index for reading back the solution.
func Build(g *teg.Graph, solver optimizer.Solver) (*Variables, error) {
	flat := g.Flat()
	numCommodities := len(flat.Commodities)

	vars := &Variables{
		Y: make(map[int]optimizer.VarRef),
		X: make(map[int][]optimizer.VarRef),
	}

	g.Edges(func(e teg.Edge) {
		if !e.IsHolding() {
			arc := flat.Arcs[e.FlatArc]
			vars.Y[e.ID] = solver.AddVariable(optimizer.Integer, 0, optimizer.Inf, arc.FixedCost)
		}
		row := make([]optimizer.VarRef, numCommodities)
		for k, com := range flat.Commodities {
			flowCost := 0.0
			if !e.IsHolding() {
				flowCost = flat.Arcs[e.FlatArc].FlowCost * com.Quantity
			}
			row[k] = solver.AddVariable(optimizer.Binary, 0, 1, flowCost)
		}
		vars.X[e.ID] = row
	})

	if err := addFlowConservation(g, solver, vars); err != nil {
		return nil, err
	}
	addCapacityConstraints(g, solver, vars)

	return vars, nil
}

// addFlowConservation adds, for every commodity and every timed node,
// a balance constraint: +1 at the commodity's source node (the
// earliest timed node at its origin no earlier than its release),
// -1 at its sink node (the earliest timed node at its destination no
// earlier than its deadline), 0 elsewhere.
func addFlowConservation(g *teg.Graph, solver optimizer.Solver, vars *Variables) error {
	flat := g.Flat()
	for k, com := range flat.Commodities {
		sourceIdx, err := earliestAtOrAfter(g, com.Source, com.Release)
		if err != nil {
			return apperror.Wrap(err, apperror.CodeNoPath, "no timed node at or after release for commodity source").
				WithDetails("commodity", com.ID)
		}
		sinkIdx, err := earliestAtOrAfter(g, com.Sink, com.Deadline)
		if err != nil {
			return apperror.Wrap(err, apperror.CodeNoPath, "no timed node at or after deadline for commodity sink").
				WithDetails("commodity", com.ID)
		}

		for v := 0; v < g.NodeCount(); v++ {
			rhs := 0.0
			switch v {
			case sourceIdx:
				rhs = 1
			case sinkIdx:
				rhs = -1
			}

			out := g.OutEdges(v)
			in := g.InEdges(v)
			if len(out) == 0 && len(in) == 0 {
				continue
			}

			terms := make([]optimizer.Term, 0, len(out)+len(in))
			for _, eid := range out {
				terms = append(terms, optimizer.Term{Var: vars.X[eid][k], Coeff: 1})
			}
			for _, eid := range in {
				terms = append(terms, optimizer.Term{Var: vars.X[eid][k], Coeff: -1})
			}
			solver.AddConstraint(terms, optimizer.Equal, rhs)
		}
	}
	return nil
}

// addCapacityConstraints couples flow to vehicle dispatch on every
// travel arc: total quantity routed across it cannot exceed the
// per-vehicle capacity times the number of vehicles dispatched.
// Holding arcs carry no vehicles and are never capacity-constrained.
func addCapacityConstraints(g *teg.Graph, solver optimizer.Solver, vars *Variables) {
	flat := g.Flat()
	g.Edges(func(e teg.Edge) {
		if e.IsHolding() {
			return
		}
		arc := flat.Arcs[e.FlatArc]
		row := vars.X[e.ID]
		terms := make([]optimizer.Term, 0, len(row)+1)
		for k, com := range flat.Commodities {
			terms = append(terms, optimizer.Term{Var: row[k], Coeff: com.Quantity})
		}
		terms = append(terms, optimizer.Term{Var: vars.Y[e.ID], Coeff: -*arc.Capacity})
		solver.AddConstraint(terms, optimizer.LessEqual, 0)
	})
}

// earliestAtOrAfter returns the expanded node index for flat node v
// holding the smallest time point that is >= target.
func earliestAtOrAfter(g *teg.Graph, v instance.NodeID, target int64) (int, error) {
	times := g.Times(v)
	nodes := g.ExpandedNodes(v)
	idx := sort.Search(len(times), func(i int) bool { return times[i] >= target })
	if idx == len(times) {
		return -1, apperror.New(apperror.CodeNoPath, "no timed node at or after target time").
			WithDetails("node", v).WithDetails("target", target)
	}
	return nodes[idx], nil
}
