package teg

import (
	"testing"

	"github.com/hakkape/ddd-snd/internal/instance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tinyInstance builds the §8 concrete scenario: 3 nodes, arcs 0->1,
// 1->2, 0->2 each travel_time=1 (diagonal has flow=2/fixed=2 instead of
// 1/1), three commodities.
func tinyInstance(t *testing.T) *instance.Instance {
	t.Helper()
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

func findEdge(g *Graph, fromFlat instance.NodeID, fromTime int64, toFlat instance.NodeID, toTime int64) (int, bool) {
	found := -1
	ok := false
	g.Edges(func(e Edge) {
		if ok {
			return
		}
		from, to := g.Node(e.From), g.Node(e.To)
		if from.FlatNode == fromFlat && from.Time == fromTime && to.FlatNode == toFlat && to.Time == toTime {
			found, ok = e.ID, true
		}
	})
	return found, ok
}

func TestRelaxedInitialDiscretization_TinyInstance(t *testing.T) {
	inst := tinyInstance(t)
	disc := RelaxedInitialDiscretization(inst.NumNodes, inst.Commodities)
	assert.Equal(t, []int64{0, 1}, disc[0])
	assert.Equal(t, []int64{0, 1, 2}, disc[1])
	assert.Equal(t, []int64{0, 2, 3}, disc[2])
}

func TestNew_RegularDiscretization_NonRelaxed(t *testing.T) {
	inst := tinyInstance(t)
	disc := RegularDiscretization(inst.NumNodes, 3, 1)
	g, err := New(inst, disc, false)
	require.NoError(t, err)

	assert.Equal(t, 12, g.NodeCount())
	holding, travel := 0, 0
	g.Edges(func(e Edge) {
		if e.IsHolding() {
			holding++
		} else {
			travel++
		}
	})
	assert.Equal(t, 9, holding)
	assert.Equal(t, 9, travel)
	assert.Equal(t, 18, g.EdgeCount())
}

func TestNew_RelaxedInitialDiscretization_ExactArcSet(t *testing.T) {
	inst := tinyInstance(t)
	disc := RelaxedInitialDiscretization(inst.NumNodes, inst.Commodities)
	g, err := New(inst, disc, true)
	require.NoError(t, err)

	assert.Equal(t, 8, g.NodeCount())
	assert.Equal(t, 12, g.EdgeCount())

	holding := 0
	g.Edges(func(e Edge) {
		if e.IsHolding() {
			holding++
		}
	})
	assert.Equal(t, 5, holding)

	expectedTravel := [][4]int64{
		{0, 0, 1, 1},
		{0, 1, 1, 2},
		{1, 0, 2, 0},
		{1, 1, 2, 2},
		{1, 2, 2, 3},
		{0, 0, 2, 0},
		{0, 1, 2, 2},
	}
	for _, e := range expectedTravel {
		_, ok := findEdge(g, instance.NodeID(e[0]), e[1], instance.NodeID(e[2]), e[3])
		assert.Truef(t, ok, "expected travel arc (%d,%d)->(%d,%d)", e[0], e[1], e[2], e[3])
	}
}

func TestRefine_RelaxedMode_NodeTwoAtOne(t *testing.T) {
	inst := tinyInstance(t)
	disc := RelaxedInitialDiscretization(inst.NumNodes, inst.Commodities)
	g, err := New(inst, disc, true)
	require.NoError(t, err)

	nodesBefore := g.NodeCount()
	edgesBefore := g.EdgeCount()

	require.NoError(t, g.Refine(2, 1))

	assert.Equal(t, nodesBefore+1, g.NodeCount())
	assert.Equal(t, []int64{0, 1, 2, 3}, g.Times(2))

	// old (2,0)->(2,2) holding arc is split into (2,0)->(2,1)->(2,2)
	_, holdingGone := findEdge(g, 2, 0, 2, 2)
	assert.False(t, holdingGone)
	_, h1 := findEdge(g, 2, 0, 2, 1)
	assert.True(t, h1)
	_, h2 := findEdge(g, 2, 1, 2, 2)
	assert.True(t, h2)

	// ingoing travel arcs that arrive at time 1 are redirected off (2,0) onto the new node
	_, oldFromZero := findEdge(g, 0, 0, 2, 0)
	assert.False(t, oldFromZero)
	_, newFromZero := findEdge(g, 0, 0, 2, 1)
	assert.True(t, newFromZero)

	_, oldFromOne := findEdge(g, 1, 0, 2, 0)
	assert.False(t, oldFromOne)
	_, newFromOne := findEdge(g, 1, 0, 2, 1)
	assert.True(t, newFromOne)

	// net edge count: +1 from holding split (add 2, remove 1); redirects are remove+add (net 0 each)
	assert.Equal(t, edgesBefore+1, g.EdgeCount())
}

func TestRefine_RejectsDuplicateTimePoint(t *testing.T) {
	inst := tinyInstance(t)
	disc := RelaxedInitialDiscretization(inst.NumNodes, inst.Commodities)
	g, err := New(inst, disc, true)
	require.NoError(t, err)

	err = g.Refine(2, 0)
	require.Error(t, err)
}

func TestRefine_RejectsPointBelowMinimum(t *testing.T) {
	inst := tinyInstance(t)
	disc := RelaxedInitialDiscretization(inst.NumNodes, inst.Commodities)
	g, err := New(inst, disc, true)
	require.NoError(t, err)

	err = g.Refine(2, -1)
	require.Error(t, err)
}

func TestRefine_NonRelaxedMode_Shorten(t *testing.T) {
	// node0: {0,3}, node1: {0,3}, arc 0->1 travel_time=2.
	// construction rounds up: from (0,0) arrival=2 rounds up to (1,3).
	// inserting time point 2 at node1 should shorten that arc to (0,0)->(1,2).
	cap1 := 5.0
	arcs := []instance.Arc{{From: 0, To: 1, TravelTime: 2, FlowCost: 1, FixedCost: 1, Capacity: &cap1}}
	inst := instance.NewInstance([]instance.Node{{Name: "1"}, {Name: "2"}}, arcs, nil)
	disc := [][]int64{{0, 3}, {0, 3}}
	g, err := New(inst, disc, false)
	require.NoError(t, err)

	_, before := findEdge(g, 0, 0, 1, 3)
	require.True(t, before)

	require.NoError(t, g.Refine(1, 2))

	_, gone := findEdge(g, 0, 0, 1, 3)
	assert.False(t, gone)
	_, shortened := findEdge(g, 0, 0, 1, 2)
	assert.True(t, shortened)
}
