package optimizer

import (
	"math"
	"time"
)

// bbResult is the outcome of a branch-and-bound search.
type bbResult struct {
	status    Status
	objective float64
	values    []float64
}

// branchAndBound explores the search tree rooted at the model's own
// variable bounds, solving the LP relaxation at each node with
// solveLP and branching on the first fractional integer or binary
// variable found. It keeps the best integer-feasible solution seen
// and prunes any node whose relaxation bound cannot beat it.
//
// MaxNodes and Deadline, when set on the model, bound the search; a
// search that exhausts either budget before finding a feasible
// solution reports Infeasible, matching how the caller (the DDD
// driver) treats "could not confirm feasible in time".
func branchAndBound(m *Model) (bbResult, error) {
	n := len(m.vars)
	lb := make([]float64, n)
	ub := make([]float64, n)
	for i, v := range m.vars {
		lb[i] = v.lb
		ub[i] = v.ub
	}

	best := bbResult{status: Infeasible}
	bestObj := math.Inf(1)
	nodesExplored := 0

	var explore func(curLB, curUB []float64)
	explore = func(curLB, curUB []float64) {
		if m.MaxNodes > 0 && nodesExplored >= m.MaxNodes {
			return
		}
		if !m.Deadline.IsZero() && time.Now().After(m.Deadline) {
			return
		}
		nodesExplored++

		values, obj, status := solveLP(m.vars, m.constraints, curLB, curUB)
		if status != Optimal {
			return
		}
		if obj >= bestObj-1e-7 {
			return
		}

		branchVar := -1
		for j, v := range m.vars {
			if v.vtype == Continuous {
				continue
			}
			frac := values[j] - math.Floor(values[j])
			if frac > 1e-6 && frac < 1-1e-6 {
				branchVar = j
				break
			}
		}

		if branchVar == -1 {
			bestObj = obj
			best = bbResult{status: Optimal, objective: obj, values: append([]float64(nil), values...)}
			return
		}

		floorVal := math.Floor(values[branchVar])

		downUB := append([]float64(nil), curUB...)
		downUB[branchVar] = floorVal
		explore(curLB, downUB)

		upLB := append([]float64(nil), curLB...)
		upLB[branchVar] = floorVal + 1
		if upLB[branchVar] <= curUB[branchVar] {
			explore(upLB, curUB)
		}
	}

	explore(lb, ub)

	if best.status != Optimal {
		return bbResult{status: Infeasible}, nil
	}
	return best, nil
}
