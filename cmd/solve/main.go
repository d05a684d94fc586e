// Command solve runs the C-SND Dynamic Discretization Discovery engine
// against a single instance file.
//
// # Usage
//
//	solve <instance_number> <delta_t> [-f]
//
// instance_number selects "instance_<n>.txt" under the configured
// engine.instance_dir; delta_t is the discretization step, in the same
// time unit as the instance file. With -f, the engine skips DDD
// entirely and solves the design/flow model once over a regular
// (non-relaxed) discretization spanning every commodity's deadline —
// useful as a baseline or when the instance is known to be small enough
// that refinement would not pay for itself.
//
// # Configuration
//
// Configuration is loaded the same way as every other ddd-snd binary
// (see pkg/config): defaults, then config.yaml / config/config.yaml /
// /etc/ddd-snd/config.yaml if present, then DDD_-prefixed environment
// variables, highest priority last. Of particular interest here:
//
//	DDD_ENGINE_INSTANCE_DIR      - directory holding instance_<n>.txt files
//	DDD_ENGINE_MAX_ITERATIONS    - DDD iteration budget
//	DDD_ENGINE_SOLVER_TIMEOUT    - per-MIP-solve deadline
//	DDD_ENGINE_TOTAL_TIMEOUT     - whole-run deadline
//	DDD_METRICS_ENABLED          - serve /metrics on metrics.port
//
// # Exit codes
//
//	0 - a solution was found (or the full model solved, with -f)
//	1 - the instance is infeasible at the requested delta_t
//	2 - configuration or instance file could not be loaded
//	3 - the solver could not reach a definite verdict (timeout, iteration limit, internal error)
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hakkape/ddd-snd/internal/ddd"
	"github.com/hakkape/ddd-snd/internal/design"
	"github.com/hakkape/ddd-snd/internal/instance"
	"github.com/hakkape/ddd-snd/internal/optimizer"
	"github.com/hakkape/ddd-snd/internal/preflight"
	"github.com/hakkape/ddd-snd/internal/solution"
	"github.com/hakkape/ddd-snd/internal/teg"
	"github.com/hakkape/ddd-snd/pkg/config"
	"github.com/hakkape/ddd-snd/pkg/logger"
	"github.com/hakkape/ddd-snd/pkg/metrics"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("solve", flag.ContinueOnError)
	full := fs.Bool("f", false, "solve the full regular-discretization model instead of running DDD")
	// flag stops at the first positional argument, so parse again after
	// each one to also accept -f after <instance_number> <delta_t>.
	var positional []string
	for rest := args; ; {
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		rest = fs.Args()[1:]
	}
	if len(positional) != 2 {
		fmt.Fprintln(os.Stderr, "usage: solve <instance_number> <delta_t> [-f]")
		return 2
	}

	instanceNumber, err := strconv.Atoi(positional[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid instance_number %q: %v\n", positional[0], err)
		return 2
	}
	deltaT, err := strconv.ParseFloat(positional[1], 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid delta_t %q: %v\n", positional[1], err)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 2
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	runID := uuid.NewString()
	log := logger.WithRequestID(runID)

	m := metrics.InitMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
	m.SetServiceInfo(cfg.App.Version, cfg.App.Environment)
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartMetricsServer(cfg.Metrics.Port); err != nil {
				log.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	path := fmt.Sprintf("%s/instance_%d.txt", cfg.Engine.InstanceDir, instanceNumber)
	inst, err := instance.Parse(path, deltaT)
	if err != nil {
		log.Error("failed to parse instance", "path", path, "error", err)
		return 2
	}
	log.Info("loaded instance",
		"path", path, "delta_t", deltaT,
		"nodes", inst.NumNodes, "arcs", len(inst.Arcs), "commodities", len(inst.Commodities),
	)

	if cfg.Engine.FeasibilityPreflight {
		result := preflight.Check(inst)
		if !result.IsValid() {
			for _, msg := range result.ErrorMessages() {
				log.Error("feasibility preflight failed", "reason", msg)
			}
			m.RecordFeasibilityCheck("infeasible")
			return 1
		}
		m.RecordFeasibilityCheck("feasible")
	}

	if *full {
		return runFull(inst, cfg, m, log)
	}
	return runDDD(inst, cfg, m, log)
}

// runFull solves the design/flow model once over a regular
// discretization spanning every commodity's deadline, bypassing the
// identification/refinement loop entirely.
func runFull(inst *instance.Instance, cfg *config.Config, m *metrics.Metrics, log *slog.Logger) int {
	var lastTime int64
	for _, com := range inst.Commodities {
		if com.Deadline > lastTime {
			lastTime = com.Deadline
		}
	}

	g, err := teg.New(inst, teg.RegularDiscretization(inst.NumNodes, lastTime, 1), false)
	if err != nil {
		log.Error("failed to build time-expanded graph", "error", err)
		return 2
	}
	m.RecordExpandedGraphSize(g.NodeCount(), g.EdgeCount())

	solver := optimizer.NewModel("design")
	if cfg.Engine.SolverTimeout > 0 {
		solver.Deadline = time.Now().Add(cfg.Engine.SolverTimeout)
	}
	vars, err := design.Build(g, solver)
	if err != nil {
		log.Error("failed to build design model", "error", err)
		return 3
	}

	start := time.Now()
	if err := solver.Optimize(); err != nil {
		log.Error("design solve failed", "error", err)
		return 3
	}
	m.RecordDesignSolve(solver.Status().String(), time.Since(start), solver.ObjectiveValue())

	switch solver.Status() {
	case optimizer.Infeasible:
		log.Info("instance is infeasible at this delta_t")
		return 1
	case optimizer.Optimal:
	default:
		log.Error("design model returned non-optimal status", "status", solver.Status().String())
		return 3
	}

	sol, err := solution.Extract(g, vars, solver, inst)
	if err != nil {
		log.Error("failed to extract solution", "error", err)
		return 3
	}
	fmt.Print(sol.String())
	return 0
}

// runDDD runs the full DDD fixed-point loop (internal/ddd) starting
// from the relaxed initial discretization.
func runDDD(inst *instance.Instance, cfg *config.Config, m *metrics.Metrics, log *slog.Logger) int {
	dddCfg := ddd.Config{MaxIterations: cfg.Engine.MaxIterations}
	if cfg.Engine.TotalTimeout > 0 {
		dddCfg.Deadline = time.Now().Add(cfg.Engine.TotalTimeout)
	}

	result, err := ddd.Run(inst, dddCfg, func(stats ddd.IterationStats) {
		m.RecordDesignSolve(stats.DesignStatus, stats.DesignDuration, stats.DesignObjective)
		m.RecordIdentifySolve(stats.IdentifyStatus, stats.IdentifyDuration, stats.IdentifyObjective)
		m.RecordIteration(stats.DesignDuration+stats.IdentifyDuration, stats.InsertionsByNode)
		log.Info("ddd iteration",
			"iteration", stats.Iteration, "design_objective", stats.DesignObjective,
			"identify_objective", stats.IdentifyObjective, "insertions", stats.Insertions,
		)
	})
	if err != nil {
		log.Error("ddd run failed", "error", err)
		return 3
	}

	m.SolverStatusTotal.WithLabelValues("ddd", result.Status.String()).Inc()

	switch result.Status {
	case ddd.StatusSolved:
		log.Info("ddd converged", "iterations", result.Iterations, "cost", result.Solution.TotalCost)
		fmt.Print(result.Solution.String())
		return 0
	case ddd.StatusInfeasible:
		log.Info("instance is infeasible at this delta_t", "iterations", result.Iterations)
		return 1
	default:
		log.Error("ddd did not reach a definite verdict",
			"status", result.Status.String(), "iterations", result.Iterations, "lower_bound", result.LowerBound,
		)
		return 3
	}
}
