package ddd

import (
	"testing"

	"github.com/hakkape/ddd-snd/internal/instance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tinyInstance() *instance.Instance {
	cap1, cap2 := 2.0, 2.0
	arcs := []instance.Arc{
		{From: 0, To: 1, TravelTime: 1, FlowCost: 1, FixedCost: 1, Capacity: &cap1},
		{From: 1, To: 2, TravelTime: 1, FlowCost: 1, FixedCost: 1, Capacity: &cap1},
		{From: 0, To: 2, TravelTime: 1, FlowCost: 2, FixedCost: 2, Capacity: &cap2},
	}
	commodities := []instance.Commodity{
		{ID: 0, Source: 0, Sink: 2, Quantity: 1, Release: 0, Deadline: 3},
		{ID: 1, Source: 1, Sink: 2, Quantity: 1, Release: 1, Deadline: 2},
		{ID: 2, Source: 0, Sink: 1, Quantity: 1, Release: 1, Deadline: 2},
	}
	nodes := []instance.Node{{Name: "1"}, {Name: "2"}, {Name: "3"}}
	return instance.NewInstance(nodes, arcs, commodities)
}

// TestRun_TinyInstance_ConvergesToSpecCost matches §8's worked
// scenario: C-SND on the tiny instance converges to total_cost = 7
// with exactly three services, one of which carries >= 2 commodities.
func TestRun_TinyInstance_ConvergesToSpecCost(t *testing.T) {
	inst := tinyInstance()

	var iterations []struct{ design, identify float64 }
	result, err := Run(inst, Config{MaxIterations: 50}, func(stats IterationStats) {
		iterations = append(iterations, struct{ design, identify float64 }{stats.DesignObjective, stats.IdentifyObjective})
	})
	require.NoError(t, err)
	require.Equal(t, StatusSolved, result.Status)
	require.NotNil(t, result.Solution)

	assert.InDelta(t, 7, result.Solution.TotalCost, 1e-6)
	assert.Len(t, result.Solution.Services, 3)

	multi := 0
	for _, svc := range result.Solution.Services {
		if len(svc.Commodities) >= 2 {
			multi++
		}
		assert.Equal(t, svc.TravelTime, svc.EndTime-svc.StartTime,
			"a solved solution must realize real, not relaxed, travel times")
	}
	assert.Equal(t, 1, multi)

	// lower bounds must be monotonically non-decreasing across iterations (§4.6).
	for i := 1; i < len(iterations); i++ {
		assert.GreaterOrEqual(t, iterations[i].design, iterations[i-1].design-1e-6)
	}
}

// TestRun_InfeasibleAtTightDeadline mirrors §8's "SND @ delta_t=2:
// infeasible" scenario: with travel times measured in units of 2, the
// three commodities' tight windows cannot all be met.
func TestRun_InfeasibleAtTightDeadline(t *testing.T) {
	cap1, cap2 := 2.0, 2.0
	arcs := []instance.Arc{
		{From: 0, To: 1, TravelTime: 1, FlowCost: 1, FixedCost: 1, Capacity: &cap1},
		{From: 1, To: 2, TravelTime: 1, FlowCost: 1, FixedCost: 1, Capacity: &cap1},
		{From: 0, To: 2, TravelTime: 1, FlowCost: 2, FixedCost: 2, Capacity: &cap2},
	}
	commodities := []instance.Commodity{
		{ID: 0, Source: 0, Sink: 2, Quantity: 1, Release: 0, Deadline: 2}, // one unit wider than floor(3/2) = 1
		{ID: 1, Source: 1, Sink: 2, Quantity: 1, Release: 1, Deadline: 1},
		{ID: 2, Source: 0, Sink: 1, Quantity: 1, Release: 1, Deadline: 1},
	}
	nodes := []instance.Node{{Name: "1"}, {Name: "2"}, {Name: "3"}}
	inst := instance.NewInstance(nodes, arcs, commodities)

	result, err := Run(inst, Config{MaxIterations: 50}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusInfeasible, result.Status)
	assert.Nil(t, result.Solution)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "solved", StatusSolved.String())
	assert.Equal(t, "infeasible", StatusInfeasible.String())
	assert.Equal(t, "deadline_exceeded", StatusDeadlineExceeded.String())
	assert.Equal(t, "iteration_limit", StatusIterationLimit.String())
}
