// Package identify builds the identification MIP (§4.4): given a
// relaxed design/flow solution, it determines which services cannot be
// shifted in continuous time to honor every commodity's release,
// deadline, and real travel time while keeping commodities that share
// a service dispatched together (consolidation).
//
// Grounded on discretization_discovery.py, but keyed by
// (commodity, position-in-path) rather than (commodity, node) — the
// spec's resolution of the original's two divergent versions, since
// node-keying breaks when a commodity visits the same flat node twice.
// Two further corrections versus the original: add_shorten_variables'
// missing return is not reproduced (there is nothing to forget to
// return here), and constraint (6) is linearized correctly as
// `theta >= tau - (tau-lb)*sigma` instead of calling a float as a
// function.
package identify

import (
	"github.com/hakkape/ddd-snd/internal/instance"
	"github.com/hakkape/ddd-snd/internal/optimizer"
	"github.com/hakkape/ddd-snd/internal/solution"
	"github.com/hakkape/ddd-snd/pkg/apperror"
)

// Variables indexes the identification model's variables by
// (commodity index, position along that commodity's service path).
// Position i corresponds to solution.CommodityPath.Services[i]; the
// final sink node carries no variables (there is nothing to dispatch
// to beyond it).
type Variables struct {
	Dispatch [][]optimizer.VarRef // gamma[k][i]
	Duration [][]optimizer.VarRef // theta[k][i]
	Shorten  [][]optimizer.VarRef // sigma[k][i]

	positions []map[*solution.TimedService]int // positions[k][service] = i
}

// Build registers the identification model's variables and constraints
// on solver for the given relaxed solution.
func Build(sol *solution.Solution, inst *instance.Instance, solver optimizer.Solver) (*Variables, error) {
	numCom := len(inst.Commodities)
	vars := &Variables{
		Dispatch:  make([][]optimizer.VarRef, numCom),
		Duration:  make([][]optimizer.VarRef, numCom),
		Shorten:   make([][]optimizer.VarRef, numCom),
		positions: make([]map[*solution.TimedService]int, numCom),
	}

	for k, com := range inst.Commodities {
		path := sol.CommodityPaths[k]
		m := len(path.Services)
		vars.positions[k] = make(map[*solution.TimedService]int, m)

		dispatch := make([]optimizer.VarRef, m)
		duration := make([]optimizer.VarRef, m)
		shorten := make([]optimizer.VarRef, m)

		for i, svc := range path.Services {
			vars.positions[k][svc] = i
			relaxedTravelTime := float64(svc.EndTime - svc.StartTime)

			dispatch[i] = solver.AddVariable(optimizer.Continuous, 0, optimizer.Inf, 0)
			duration[i] = solver.AddVariable(optimizer.Continuous, relaxedTravelTime, optimizer.Inf, 0)
			shorten[i] = solver.AddVariable(optimizer.Binary, 0, 1, 1)
		}

		vars.Dispatch[k] = dispatch
		vars.Duration[k] = duration
		vars.Shorten[k] = shorten

		if err := addLinkingConstraints(solver, inst.Arcs, path, dispatch, duration, shorten); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeAlgorithmError, "failed to link identification variables").
				WithDetails("commodity", com.ID)
		}
		addTimeConsistencyConstraints(solver, dispatch, duration)
		addTimeWindowConstraints(solver, com, dispatch, duration)
	}

	addDispatchLinkingConstraints(solver, sol, inst, vars)
	return vars, nil
}

// addLinkingConstraints is constraint (6): theta[i] >= tau[i] -
// (tau[i]-lb[i])*sigma[i], i.e. theta[i] + (tau[i]-lb[i])*sigma[i] >=
// tau[i]. tau is the real flat travel time of the arc the service
// copies; lb is its current (possibly relaxed) duration.
func addLinkingConstraints(
	solver optimizer.Solver,
	arcs []instance.Arc,
	path *solution.CommodityPath,
	dispatch, duration, shorten []optimizer.VarRef,
) error {
	for i, svc := range path.Services {
		if svc.FlatArc < 0 || svc.FlatArc >= len(arcs) {
			return apperror.New(apperror.CodeInternal, "service references an unknown flat arc").
				WithDetails("flat_arc", svc.FlatArc)
		}
		realTravelTime := float64(arcs[svc.FlatArc].TravelTime)
		relaxedTravelTime := float64(svc.EndTime - svc.StartTime)
		slack := realTravelTime - relaxedTravelTime

		solver.AddConstraint([]optimizer.Term{
			{Var: duration[i], Coeff: 1},
			{Var: shorten[i], Coeff: slack},
		}, optimizer.GreaterEqual, realTravelTime)
	}
	return nil
}

// addTimeConsistencyConstraints is constraint (7).
func addTimeConsistencyConstraints(solver optimizer.Solver, dispatch, duration []optimizer.VarRef) {
	for i := 0; i+1 < len(dispatch); i++ {
		solver.AddConstraint([]optimizer.Term{
			{Var: dispatch[i], Coeff: 1},
			{Var: duration[i], Coeff: 1},
			{Var: dispatch[i+1], Coeff: -1},
		}, optimizer.LessEqual, 0)
	}
}

// addTimeWindowConstraints is constraints (8) and (9). A commodity
// whose source equals its sink has no services and no variables; there
// is nothing to constrain.
func addTimeWindowConstraints(solver optimizer.Solver, com instance.Commodity, dispatch, duration []optimizer.VarRef) {
	if len(dispatch) == 0 {
		return
	}
	solver.AddConstraint([]optimizer.Term{{Var: dispatch[0], Coeff: 1}}, optimizer.GreaterEqual, float64(com.Release))

	last := len(dispatch) - 1
	solver.AddConstraint([]optimizer.Term{
		{Var: dispatch[last], Coeff: 1},
		{Var: duration[last], Coeff: 1},
	}, optimizer.LessEqual, float64(com.Deadline))
}

// addDispatchLinkingConstraints is constraint (10): every pair of
// commodities sharing a service must dispatch from it at the same
// time.
func addDispatchLinkingConstraints(solver optimizer.Solver, sol *solution.Solution, inst *instance.Instance, vars *Variables) {
	idToIndex := make(map[int]int, len(inst.Commodities))
	for k, com := range inst.Commodities {
		idToIndex[com.ID] = k
	}

	for _, svc := range sol.Services {
		if len(svc.Commodities) < 2 {
			continue
		}
		for a := 0; a < len(svc.Commodities); a++ {
			for b := a + 1; b < len(svc.Commodities); b++ {
				ka, kb := idToIndex[svc.Commodities[a]], idToIndex[svc.Commodities[b]]
				ia, okA := vars.positions[ka][svc]
				ib, okB := vars.positions[kb][svc]
				if !okA || !okB {
					continue
				}
				solver.AddConstraint([]optimizer.Term{
					{Var: vars.Dispatch[ka][ia], Coeff: 1},
					{Var: vars.Dispatch[kb][ib], Coeff: -1},
				}, optimizer.Equal, 0)
			}
		}
	}
}
