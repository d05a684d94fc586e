// Package teg implements the time-expanded graph (TEG): the product of
// a flat physical network with a per-node discrete set of time points,
// plus the incremental refinement operator that the Dynamic
// Discretization Discovery loop uses to tighten that set one point at
// a time.
//
// A Graph is built once by New and then mutated only through Refine.
// Both operations keep the per-node time lists and the flat<->expanded
// index mappings consistent; callers never edit nodes or edges
// directly.
package teg

import (
	"sort"

	"github.com/hakkape/ddd-snd/internal/instance"
	"github.com/hakkape/ddd-snd/pkg/apperror"
)

// holdingArc marks an Edge as a holding arc rather than a copy of a
// flat arc. Holding arcs have no backing instance.Arc.
const holdingArc = -1

// TimedNode is a node of the time-expanded graph: a physical node
// paired with one of its discretization time points.
type TimedNode struct {
	FlatNode instance.NodeID
	Time     int64
}

// Edge is a directed arc of the time-expanded graph. FlatArc indexes
// into the owning Graph's flat instance.Instance.Arcs, or equals
// holdingArc for a holding arc.
type Edge struct {
	ID       int
	From, To int // indices into Graph.nodes
	FlatArc  int
}

// IsHolding reports whether e is a holding arc.
func (e Edge) IsHolding() bool {
	return e.FlatArc == holdingArc
}

// Graph is the time-expanded graph. It owns a plain directed
// multigraph (nodes and edges addressed by stable integer index) plus
// the bookkeeping §3 and §4 of the specification require: the sorted
// per-node time list, and the two flat-to-expanded mappings.
//
// This is a composition over a graph container, not an inheritance
// relationship: Graph embeds no public graph type and exposes only the
// TEG-specific operations.
type Graph struct {
	flat    *instance.Instance
	relaxed bool

	// nodeToTimes[v] is the sorted, duplicate-free list of time points
	// at flat node v.
	nodeToTimes [][]int64

	// flatToExpandedNodes[v] holds the indices (into nodes) of the
	// timed nodes for flat node v, in the same order as nodeToTimes[v].
	flatToExpandedNodes [][]int

	// flatToExpandedArcs[a] holds the edge IDs that are copies of flat
	// arc a, in no particular order (the original only needs set
	// membership here).
	flatToExpandedArcs [][]int

	nodes []TimedNode
	edges map[int]*Edge
	out   map[int][]int
	in    map[int][]int

	nextEdgeID int
}

// Relaxed reports the graph's rounding mode.
func (g *Graph) Relaxed() bool { return g.relaxed }

// Flat returns the underlying flat instance.
func (g *Graph) Flat() *instance.Instance { return g.flat }

// NodeCount returns the number of timed nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges (holding + travel).
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Node returns the TimedNode at expanded index idx.
func (g *Graph) Node(idx int) TimedNode { return g.nodes[idx] }

// Times returns the sorted time points at flat node v.
func (g *Graph) Times(v instance.NodeID) []int64 { return g.nodeToTimes[v] }

// ExpandedNodes returns the expanded node indices for flat node v, in
// the same order as Times(v).
func (g *Graph) ExpandedNodes(v instance.NodeID) []int { return g.flatToExpandedNodes[v] }

// ExpandedArcs returns the edge IDs that are copies of flat arc a.
func (g *Graph) ExpandedArcs(flatArc int) []int { return g.flatToExpandedArcs[flatArc] }

// OutEdges returns the edge IDs leaving expanded node idx.
func (g *Graph) OutEdges(idx int) []int { return g.out[idx] }

// InEdges returns the edge IDs entering expanded node idx.
func (g *Graph) InEdges(idx int) []int { return g.in[idx] }

// Edge returns the edge with the given ID and whether it still exists
// (edges are removed during refinement and their IDs are never
// reused).
func (g *Graph) Edge(id int) (Edge, bool) {
	e, ok := g.edges[id]
	if !ok {
		return Edge{}, false
	}
	return *e, true
}

// Edges calls fn for every live edge. Iteration order is by ascending
// edge ID, which is also insertion order.
func (g *Graph) Edges(fn func(Edge)) {
	ids := make([]int, 0, len(g.edges))
	for id := range g.edges {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		fn(*g.edges[id])
	}
}

// New builds a time-expanded graph from flat and an initial per-node
// discretization (§4.1). nodeToTimes[v] must be strictly increasing;
// New copies it so the caller's slice is not aliased.
func New(flat *instance.Instance, nodeToTimes [][]int64, relaxed bool) (*Graph, error) {
	if flat == nil {
		return nil, apperror.ErrNilGraph
	}
	if len(nodeToTimes) != flat.NumNodes {
		return nil, apperror.New(apperror.CodeMalformedInstance,
			"nodeToTimes must have one entry per flat node").
			WithDetails("expected", flat.NumNodes).WithDetails("got", len(nodeToTimes))
	}
	for v, times := range nodeToTimes {
		for i := 1; i < len(times); i++ {
			if times[i] <= times[i-1] {
				return nil, apperror.New(apperror.CodeMalformedInstance,
					"initial discretization must be strictly increasing per node").
					WithDetails("node", v).WithDetails("index", i)
			}
		}
	}

	g := &Graph{
		flat:                flat,
		relaxed:             relaxed,
		nodeToTimes:         cloneTimes(nodeToTimes),
		flatToExpandedNodes: make([][]int, flat.NumNodes),
		flatToExpandedArcs:  make([][]int, len(flat.Arcs)),
		edges:               make(map[int]*Edge),
		out:                 make(map[int][]int),
		in:                  make(map[int][]int),
	}

	g.addTimedNodes()
	g.addHoldingArcs()
	g.addTravelArcs()
	return g, nil
}

func cloneTimes(src [][]int64) [][]int64 {
	out := make([][]int64, len(src))
	for i, row := range src {
		out[i] = append([]int64(nil), row...)
	}
	return out
}

func (g *Graph) addNode(tn TimedNode) int {
	idx := len(g.nodes)
	g.nodes = append(g.nodes, tn)
	return idx
}

func (g *Graph) addEdge(from, to, flatArc int) int {
	id := g.nextEdgeID
	g.nextEdgeID++
	e := &Edge{ID: id, From: from, To: to, FlatArc: flatArc}
	g.edges[id] = e
	g.out[from] = append(g.out[from], id)
	g.in[to] = append(g.in[to], id)
	return id
}

func (g *Graph) removeEdge(id int) {
	e, ok := g.edges[id]
	if !ok {
		return
	}
	delete(g.edges, id)
	g.out[e.From] = removeValue(g.out[e.From], id)
	g.in[e.To] = removeValue(g.in[e.To], id)
}

func removeValue(s []int, v int) []int {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

// step 1 of §4.1: add a timed node for every (v, t).
func (g *Graph) addTimedNodes() {
	for v := 0; v < g.flat.NumNodes; v++ {
		for _, t := range g.nodeToTimes[v] {
			idx := g.addNode(TimedNode{FlatNode: instance.NodeID(v), Time: t})
			g.flatToExpandedNodes[v] = append(g.flatToExpandedNodes[v], idx)
		}
	}
}

// step 2 of §4.1: one holding arc between every consecutive pair of
// timed nodes at the same flat node.
func (g *Graph) addHoldingArcs() {
	for v := 0; v < g.flat.NumNodes; v++ {
		expanded := g.flatToExpandedNodes[v]
		for i := 0; i+1 < len(expanded); i++ {
			g.addEdge(expanded[i], expanded[i+1], holdingArc)
		}
	}
}

// step 3 of §4.1: for each flat arc, a monotone sweep over the sorted
// source and target time lists. The target pointer only ever advances,
// giving O(|T(u)| + |T(w)|) work per flat arc.
func (g *Graph) addTravelArcs() {
	for flatArcIdx := range g.flat.Arcs {
		arc := g.flat.Arcs[flatArcIdx]
		travelTime := arc.TravelTime
		startNodes := g.flatToExpandedNodes[arc.From]
		endNodes := g.flatToExpandedNodes[arc.To]
		if len(endNodes) == 0 {
			continue
		}

		endIdx := 0
		for _, startNode := range startNodes {
			startTime := g.nodes[startNode].Time
			for endIdx+1 < len(endNodes) && g.nodes[endNodes[endIdx+1]].Time <= startTime+travelTime {
				endIdx++
			}

			offset := 0
			if !g.relaxed {
				if g.nodes[endNodes[endIdx]].Time != startTime+travelTime {
					offset = 1
					if endIdx+offset >= len(endNodes) {
						continue
					}
				}
			}

			endNode := endNodes[endIdx+offset]
			edgeID := g.addEdge(startNode, endNode, flatArcIdx)
			g.flatToExpandedArcs[flatArcIdx] = append(g.flatToExpandedArcs[flatArcIdx], edgeID)
		}
	}
}
