// Package ddd implements the outer Dynamic Discretization Discovery
// fixed-point loop (§4.5, §4.6): solve the design/flow model over the
// current time-expanded graph, check whether the relaxed solution is
// implementable via the identification model, and if not, refine the
// graph at every point the identification model flags before solving
// again.
//
// Grounded on the top-level driver sketched in §4.5 of the
// specification; there is no single corresponding original_source
// file since the original interleaves this loop with notebook/script
// code rather than a reusable driver.
package ddd

import (
	"sort"
	"strconv"
	"time"

	"github.com/hakkape/ddd-snd/internal/design"
	"github.com/hakkape/ddd-snd/internal/identify"
	"github.com/hakkape/ddd-snd/internal/instance"
	"github.com/hakkape/ddd-snd/internal/optimizer"
	"github.com/hakkape/ddd-snd/internal/solution"
	"github.com/hakkape/ddd-snd/internal/teg"
	"github.com/hakkape/ddd-snd/pkg/apperror"
)

// identifyZeroTolerance treats an identification objective below this
// threshold as exactly zero (floating-point solves rarely land on an
// exact 0).
const identifyZeroTolerance = 1e-6

// Status is the outcome of a Run call.
type Status int

const (
	StatusSolved Status = iota
	StatusInfeasible
	StatusDeadlineExceeded
	StatusIterationLimit
)

// String renders a Status for logs.
func (s Status) String() string {
	switch s {
	case StatusSolved:
		return "solved"
	case StatusInfeasible:
		return "infeasible"
	case StatusDeadlineExceeded:
		return "deadline_exceeded"
	case StatusIterationLimit:
		return "iteration_limit"
	default:
		return "unknown"
	}
}

// Config bounds the search. A zero Deadline or non-positive
// MaxIterations disables the corresponding bound.
type Config struct {
	MaxIterations int
	Deadline      time.Time
}

// Result is the outcome of Run. Solution is set only when
// Status == StatusSolved. LowerBound carries the last design model's
// objective value, also on a deadline or iteration-limit outcome, per
// §5's requirement to return the last lower bound alongside "no
// solution"; on StatusInfeasible it is left at 0.
type Result struct {
	Status     Status
	Solution   *solution.Solution
	LowerBound float64
	Iterations int
}

// IterationStats describes one completed iteration of Run: the
// design/identification solves it ran and the refinement it is about
// to apply, before any refinement happens. Carries enough detail for a
// caller to both log progress and feed real Prometheus series.
type IterationStats struct {
	Iteration int

	DesignObjective float64
	DesignStatus    string
	DesignDuration  time.Duration

	IdentifyObjective float64
	IdentifyStatus    string
	IdentifyDuration  time.Duration

	Insertions       int
	InsertionsByNode map[string]int
}

// IterationObserver, when non-nil, is called after every iteration of
// Run that gets through the identification solve, before any
// refinement; an iteration whose design model is infeasible, or that
// fails with an error, is not reported. Useful for progress logging and metrics;
// Run does not depend on it for correctness.
type IterationObserver func(stats IterationStats)

// Run executes the DDD fixed point loop (§4.5) starting from the
// relaxed initial discretization (§4.5's "Initial relaxed
// discretization") and returns once a solution is confirmed
// implementable, the design model reports infeasible, the deadline
// passes, or the iteration budget is exhausted.
func Run(inst *instance.Instance, cfg Config, observe IterationObserver) (*Result, error) {
	g, err := teg.New(inst, teg.RelaxedInitialDiscretization(inst.NumNodes, inst.Commodities), true)
	if err != nil {
		return nil, err
	}

	var lastLowerBound float64
	for iter := 0; cfg.MaxIterations <= 0 || iter < cfg.MaxIterations; iter++ {
		if deadlinePassed(cfg.Deadline) {
			return &Result{Status: StatusDeadlineExceeded, LowerBound: lastLowerBound, Iterations: iter}, nil
		}

		designSolver := optimizer.NewModel("design")
		applyDeadline(designSolver, cfg.Deadline)
		dvars, err := design.Build(g, designSolver)
		if err != nil {
			return nil, err
		}
		designStart := time.Now()
		if err := designSolver.Optimize(); err != nil {
			return nil, err
		}
		designDuration := time.Since(designStart)

		switch designSolver.Status() {
		case optimizer.Infeasible:
			return &Result{Status: StatusInfeasible, Iterations: iter + 1}, nil
		case optimizer.Optimal:
			lastLowerBound = designSolver.ObjectiveValue()
		default:
			return nil, apperror.New(apperror.CodeSolverNonOptimal, "design model returned non-optimal status").
				WithDetails("status", designSolver.Status().String()).WithDetails("iteration", iter)
		}

		sol, err := solution.Extract(g, dvars, designSolver, inst)
		if err != nil {
			return nil, err
		}

		idSolver := optimizer.NewModel("identify")
		applyDeadline(idSolver, cfg.Deadline)
		ivars, err := identify.Build(sol, inst, idSolver)
		if err != nil {
			return nil, err
		}
		identifyStart := time.Now()
		if err := idSolver.Optimize(); err != nil {
			return nil, err
		}
		identifyDuration := time.Since(identifyStart)
		if idSolver.Status() != optimizer.Optimal {
			return nil, apperror.New(apperror.CodeSolverNonOptimal, "identification model returned non-optimal status").
				WithDetails("status", idSolver.Status().String()).WithDetails("iteration", iter)
		}

		identifyObjective := idSolver.ObjectiveValue()
		implementable := identifyObjective <= identifyZeroTolerance

		var insertions []identify.Insertion
		if !implementable {
			insertions = identify.FindInsertions(sol, inst, idSolver, ivars)
		}
		if observe != nil {
			insertionsByNode := make(map[string]int, len(insertions))
			for _, ins := range insertions {
				insertionsByNode[strconv.Itoa(int(ins.Node))]++
			}
			observe(IterationStats{
				Iteration:         iter,
				DesignObjective:   designSolver.ObjectiveValue(),
				DesignStatus:      designSolver.Status().String(),
				DesignDuration:    designDuration,
				IdentifyObjective: identifyObjective,
				IdentifyStatus:    idSolver.Status().String(),
				IdentifyDuration:  identifyDuration,
				Insertions:        len(insertions),
				InsertionsByNode:  insertionsByNode,
			})
		}

		if implementable {
			identify.ApplySolution(sol, inst, idSolver, ivars)
			return &Result{Status: StatusSolved, Solution: sol, LowerBound: designSolver.ObjectiveValue(), Iterations: iter + 1}, nil
		}

		if len(insertions) == 0 {
			return nil, apperror.New(apperror.CodeAlgorithmError,
				"identification objective positive but no split points were identified").
				WithDetails("iteration", iter).WithDetails("objective", identifyObjective)
		}
		for _, ins := range insertions {
			if timePointExists(g, ins.Node, ins.Time) {
				continue
			}
			if err := g.Refine(ins.Node, ins.Time); err != nil {
				return nil, apperror.Wrap(err, apperror.CodeRefinementPrecondition, "failed to refine time-expanded graph").
					WithDetails("node", ins.Node).WithDetails("time", ins.Time)
			}
		}
	}

	return &Result{Status: StatusIterationLimit, LowerBound: lastLowerBound, Iterations: cfg.MaxIterations}, nil
}

func deadlinePassed(deadline time.Time) bool {
	return !deadline.IsZero() && time.Now().After(deadline)
}

func applyDeadline(m *optimizer.Model, deadline time.Time) {
	if !deadline.IsZero() {
		m.Deadline = deadline
	}
}

func timePointExists(g *teg.Graph, node instance.NodeID, t int64) bool {
	times := g.Times(node)
	idx := sort.Search(len(times), func(i int) bool { return times[i] >= t })
	return idx < len(times) && times[idx] == t
}
