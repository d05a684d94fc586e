// Package instance models the flat, time-independent network that a
// Capacitated Service Network Design (C-SND) problem is defined over:
// a directed loop-free graph of physical nodes and arcs plus a list of
// commodities with release/deadline time windows.
//
// An Instance is immutable after Parse returns. Downstream packages
// (internal/teg, internal/design, internal/identify) only read it.
package instance

import "math"

// NodeID indexes a node in the flat graph. Nodes are 0-based internally;
// instance files use 1-based node numbers.
type NodeID int

// Node carries only an external display name; all structural data lives
// on arcs and commodities.
type Node struct {
	Name string
}

// Arc is a directed physical connection between two nodes.
//
// Capacity is a pointer so a nil value can represent "no vehicle
// capacity", the convention used for holding arcs once they appear in
// the time-expanded graph. Flat-graph arcs parsed from an instance file
// always carry a non-nil Capacity.
type Arc struct {
	From, To  NodeID
	TravelTime int64 // integer multiple of delta_t
	FlowCost   float64
	FixedCost  float64
	Capacity   *float64
}

// IsHoldingArc reports whether a is a holding arc: zero times/costs and
// an undefined capacity. Flat-graph arcs are never holding arcs; this is
// only meaningful once arcs have been copied into a time-expanded graph.
func (a Arc) IsHoldingArc() bool {
	return a.Capacity == nil
}

// Commodity is a unit of demand that must travel from Source to Sink
// within [Release, Deadline], both already converted to integer
// multiples of delta_t.
type Commodity struct {
	ID       int
	Source   NodeID
	Sink     NodeID
	Quantity float64
	Release  int64
	Deadline int64
}

// Instance is the flat graph plus its commodities. It never changes
// after Parse constructs it.
type Instance struct {
	NumNodes    int
	Nodes       []Node
	Arcs        []Arc
	Commodities []Commodity

	// outAdj/inAdj index arcs by endpoint for the feasibility preflight
	// and for the initial discretization builder; they are derived, not
	// part of the file format.
	outAdj [][]int
	inAdj  [][]int
}

// NewInstance builds the derived adjacency indices. Callers that
// construct an Instance directly (e.g. in tests) should call this
// instead of relying on Parse.
func NewInstance(nodes []Node, arcs []Arc, commodities []Commodity) *Instance {
	inst := &Instance{
		NumNodes:    len(nodes),
		Nodes:       nodes,
		Arcs:        arcs,
		Commodities: commodities,
	}
	inst.buildAdjacency()
	return inst
}

func (inst *Instance) buildAdjacency() {
	inst.outAdj = make([][]int, inst.NumNodes)
	inst.inAdj = make([][]int, inst.NumNodes)
	for idx, arc := range inst.Arcs {
		inst.outAdj[arc.From] = append(inst.outAdj[arc.From], idx)
		inst.inAdj[arc.To] = append(inst.inAdj[arc.To], idx)
	}
}

// OutArcs returns the indices (into Arcs) of arcs leaving node v.
func (inst *Instance) OutArcs(v NodeID) []int {
	return inst.outAdj[v]
}

// InArcs returns the indices (into Arcs) of arcs entering node v.
func (inst *Instance) InArcs(v NodeID) []int {
	return inst.inAdj[v]
}

// CeilDiv converts a continuous time value to an integer multiple of
// delta_t, rounding up. Used for release times and travel times, which
// must never be under-estimated.
func CeilDiv(value, deltaT float64) int64 {
	return int64(math.Ceil(value / deltaT))
}

// FloorDiv converts a continuous time value to an integer multiple of
// delta_t, rounding down. Used for deadlines, which must never be
// over-estimated.
func FloorDiv(value, deltaT float64) int64 {
	return int64(math.Floor(value / deltaT))
}
