// Package preflight checks, before a time-expanded graph is built at
// all, whether each commodity's time window is even reachable on the
// flat graph — a necessary (not sufficient) feasibility condition that
// catches malformed instances cheaply instead of burning a DDD
// iteration on them.
//
// Grounded on pkg/domain's BFS reachability check, generalized from an
// unweighted visited-set walk to a weighted earliest-arrival search
// since flat arcs carry travel_time rather than unit distance. The
// residual-capacity/max-flow machinery the rest of pkg/domain and
// internal/flow existed for has no equivalent here: this is a pure
// reachability-in-time question, not a flow problem, so only the
// traversal shape survives the port.
package preflight

import (
	"container/heap"

	"github.com/hakkape/ddd-snd/internal/instance"
	"github.com/hakkape/ddd-snd/pkg/apperror"
)

// Check runs an earliest-arrival search from each commodity's source,
// ignoring capacity, and flags any commodity whose sink cannot be
// reached by its deadline if dispatched at its release time. This is a
// relaxation of the true feasibility question (it ignores capacity and
// the requirement that, in the real schedule, a service must wait for
// a discretization point) so it only ever reports problems that are
// certainly infeasible; passing Check does not guarantee the design
// model will find a feasible solution.
func Check(inst *instance.Instance) *apperror.ValidationErrors {
	result := apperror.NewValidationErrors()

	for _, com := range inst.Commodities {
		if com.Source == com.Sink {
			continue
		}
		arrival, reached := earliestArrival(inst, com.Source, com.Release)
		if !reached[com.Sink] {
			result.AddErrorWithField(apperror.CodeUnreachableDelivery,
				"commodity sink is not reachable from its source on the flat graph",
				"commodity")
			continue
		}
		if arrival[com.Sink] > com.Deadline {
			result.AddErrorWithField(apperror.CodeNoPath,
				"commodity cannot reach its sink before its deadline even with unlimited capacity",
				"commodity")
		}
	}

	return result
}

// earliestArrival runs Dijkstra's algorithm over travel times starting
// at time release from source; all weights are non-negative so the
// standard correctness argument applies. reached[v] is true only for
// nodes popped off the heap, i.e. actually settled.
func earliestArrival(inst *instance.Instance, source instance.NodeID, release int64) (arrival map[instance.NodeID]int64, reached map[instance.NodeID]bool) {
	arrival = make(map[instance.NodeID]int64, inst.NumNodes)
	reached = make(map[instance.NodeID]bool, inst.NumNodes)

	pq := &arrivalHeap{{node: source, time: release}}
	arrival[source] = release

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(arrivalEntry)
		if reached[cur.node] {
			continue
		}
		reached[cur.node] = true

		for _, arcIdx := range inst.OutArcs(cur.node) {
			arc := inst.Arcs[arcIdx]
			candidate := cur.time + arc.TravelTime
			if best, ok := arrival[arc.To]; !ok || candidate < best {
				arrival[arc.To] = candidate
				heap.Push(pq, arrivalEntry{node: arc.To, time: candidate})
			}
		}
	}

	return arrival, reached
}

type arrivalEntry struct {
	node instance.NodeID
	time int64
}

type arrivalHeap []arrivalEntry

func (h arrivalHeap) Len() int            { return len(h) }
func (h arrivalHeap) Less(i, j int) bool  { return h[i].time < h[j].time }
func (h arrivalHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *arrivalHeap) Push(x interface{}) { *h = append(*h, x.(arrivalEntry)) }
func (h *arrivalHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
