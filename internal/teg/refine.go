package teg

import (
	"sort"

	"github.com/hakkape/ddd-snd/internal/instance"
	"github.com/hakkape/ddd-snd/pkg/apperror"
)

// Refine inserts a new time point t at flat node v (§4.2). Precondition:
// t is not already in Times(v), and a smaller time point exists at v
// (every node's time list always contains at least {0}, so this only
// fails if v is invalid or t <= the minimum point). Violating the
// precondition is a driver bug, not a recoverable condition, so Refine
// returns an error rather than panicking: CodeTimePointAlreadyPresent
// for a duplicate point, CodeRefinementPrecondition otherwise.
func (g *Graph) Refine(v instance.NodeID, t int64) error {
	if int(v) < 0 || int(v) >= g.flat.NumNodes {
		return apperror.New(apperror.CodeRefinementPrecondition, "unknown flat node").
			WithDetails("node", v)
	}

	times := g.nodeToTimes[v]
	k := sort.Search(len(times), func(i int) bool { return times[i] >= t })
	if k < len(times) && times[k] == t {
		return apperror.New(apperror.CodeTimePointAlreadyPresent, "time point already present").
			WithDetails("node", v).WithDetails("time", t)
	}
	if k == 0 {
		return apperror.New(apperror.CodeRefinementPrecondition, "no smaller time point exists at node").
			WithDetails("node", v).WithDetails("time", t)
	}

	expanded := g.flatToExpandedNodes[v]
	prevNode := expanded[k-1]
	hasNext := k < len(times)
	nextNode := -1
	if hasNext {
		nextNode = expanded[k]
	}

	// Insert t into the time list and the expanded-node mapping at the
	// same index, keeping them in lockstep.
	g.nodeToTimes[v] = insertInt64(times, k, t)
	newNode := g.addNode(TimedNode{FlatNode: v, Time: t})
	g.flatToExpandedNodes[v] = insertInt(expanded, k, newNode)

	g.refineHoldingArc(newNode, prevNode, nextNode, hasNext)
	g.addTravelArcsFromNewNode(newNode)

	if g.relaxed {
		g.lengthenTravelArcsRelaxed(newNode, prevNode, t)
	} else if hasNext {
		g.shortenTravelArcsUnrelaxed(newNode, nextNode, t)
	}

	return nil
}

func insertInt64(s []int64, k int, v int64) []int64 {
	out := make([]int64, 0, len(s)+1)
	out = append(out, s[:k]...)
	out = append(out, v)
	out = append(out, s[k:]...)
	return out
}

func insertInt(s []int, k int, v int) []int {
	out := make([]int, 0, len(s)+1)
	out = append(out, s[:k]...)
	out = append(out, v)
	out = append(out, s[k:]...)
	return out
}

// step 2 of §4.2: always add a holding arc from prev to the new node;
// if a next node exists, replace the old prev->next holding arc with
// one from the new node to next.
func (g *Graph) refineHoldingArc(newNode, prevNode, nextNode int, hasNext bool) {
	g.addEdge(prevNode, newNode, holdingArc)
	if hasNext {
		if id, ok := g.singleEdgeBetween(prevNode, nextNode); ok {
			g.removeEdge(id)
		}
		g.addEdge(newNode, nextNode, holdingArc)
	}
}

// singleEdgeBetween returns the (assumed unique) edge from -> to.
func (g *Graph) singleEdgeBetween(from, to int) (int, bool) {
	for _, id := range g.out[from] {
		if e := g.edges[id]; e != nil && e.To == to {
			return id, true
		}
	}
	return 0, false
}

// step 3 of §4.2: add outgoing travel arcs from the newly inserted
// node, mirroring the construction-time arc placement logic for a
// single source node.
func (g *Graph) addTravelArcsFromNewNode(newNode int) {
	flatNode := g.nodes[newNode].FlatNode
	newTime := g.nodes[newNode].Time

	for _, flatArcIdx := range g.flat.OutArcs(flatNode) {
		arc := g.flat.Arcs[flatArcIdx]
		arrival := newTime + arc.TravelTime
		wTimes := g.nodeToTimes[arc.To]
		kw := sort.Search(len(wTimes), func(i int) bool { return wTimes[i] >= arrival })
		noLarger := kw == len(wTimes)
		expandedW := g.flatToExpandedNodes[arc.To]

		var target int
		if g.relaxed {
			if noLarger {
				target = expandedW[len(expandedW)-1]
			} else {
				target = expandedW[kw]
				if g.nodes[target].Time != arrival {
					target = expandedW[kw-1]
				}
			}
		} else {
			if noLarger {
				continue
			}
			target = expandedW[kw]
		}

		edgeID := g.addEdge(newNode, target, flatArcIdx)
		g.flatToExpandedArcs[flatArcIdx] = append(g.flatToExpandedArcs[flatArcIdx], edgeID)
	}
}

// step 4, relaxed mode ("lengthen"): every incoming travel arc of prev
// that arrives no earlier than the new time point is redirected to the
// new node, since the new point is a less-relaxed (later, still <=
// arrival) target than prev was.
func (g *Graph) lengthenTravelArcsRelaxed(newNode, prevNode int, t int64) {
	for _, edgeID := range snapshot(g.in[prevNode]) {
		e := g.edges[edgeID]
		if e == nil || g.isHoldingEdge(*e) {
			continue
		}
		arrival := g.nodes[e.From].Time + g.flat.Arcs[e.FlatArc].TravelTime
		if arrival >= t {
			g.redirectEdge(edgeID, *e, newNode)
		}
	}
}

// step 4, non-relaxed mode ("shorten"): every incoming travel arc of
// next that previously had to round its arrival up to next, but whose
// real arrival now falls in [t, next.Time), is redirected to the new
// node, which exactly honors (or more tightly upper-bounds) it.
func (g *Graph) shortenTravelArcsUnrelaxed(newNode, nextNode int, t int64) {
	nextTime := g.nodes[nextNode].Time
	for _, edgeID := range snapshot(g.in[nextNode]) {
		e := g.edges[edgeID]
		if e == nil || g.isHoldingEdge(*e) {
			continue
		}
		arrival := g.nodes[e.From].Time + g.flat.Arcs[e.FlatArc].TravelTime
		if arrival >= t && arrival < nextTime {
			g.redirectEdge(edgeID, *e, newNode)
		}
	}
}

func (g *Graph) isHoldingEdge(e Edge) bool {
	return g.nodes[e.From].FlatNode == g.nodes[e.To].FlatNode
}

func (g *Graph) redirectEdge(oldID int, e Edge, newTo int) {
	g.removeEdge(oldID)
	newID := g.addEdge(e.From, newTo, e.FlatArc)
	g.flatToExpandedArcs[e.FlatArc] = replaceValue(g.flatToExpandedArcs[e.FlatArc], oldID, newID)
}

func replaceValue(s []int, old, new int) []int {
	for i, v := range s {
		if v == old {
			return append(append(s[:i:i], s[i+1:]...), new)
		}
	}
	return append(s, new)
}

func snapshot(s []int) []int {
	return append([]int(nil), s...)
}
