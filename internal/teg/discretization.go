package teg

import (
	"sort"

	"github.com/hakkape/ddd-snd/internal/instance"
)

// RegularDiscretization builds a uniform per-node time grid
// {0, step, 2*step, ...} up to and including lastTime, used by the
// full (non-DDD) uniform-discretization MIP.
func RegularDiscretization(numNodes int, lastTime, step int64) [][]int64 {
	n := int(lastTime/step) + 1
	grid := make([]int64, n)
	for i := range grid {
		grid[i] = int64(i) * step
	}
	out := make([][]int64, numNodes)
	for v := range out {
		out[v] = append([]int64(nil), grid...)
	}
	return out
}

// RelaxedInitialDiscretization builds the starting per-node time set
// for the DDD loop (§4.5): every node starts with {0}, plus each
// commodity's release time at its source and deadline at its sink.
func RelaxedInitialDiscretization(numNodes int, commodities []instance.Commodity) [][]int64 {
	sets := make([]map[int64]struct{}, numNodes)
	for v := range sets {
		sets[v] = map[int64]struct{}{0: {}}
	}
	for _, com := range commodities {
		sets[com.Source][com.Release] = struct{}{}
		sets[com.Sink][com.Deadline] = struct{}{}
	}

	out := make([][]int64, numNodes)
	for v, set := range sets {
		times := make([]int64, 0, len(set))
		for t := range set {
			times = append(times, t)
		}
		sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
		out[v] = times
	}
	return out
}
