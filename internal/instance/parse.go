package instance

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hakkape/ddd-snd/pkg/apperror"
)

// Parse reads an instance file in the "modified DOW" format:
//
//	line 1:              header comment (ignored)
//	line 2:              n_nodes n_arcs n_commodities
//	lines 3..2+n_arcs:   i j flow_cost capacity fixed_cost travel_time
//	lines 3+n_arcs..:    source sink quantity release deadline
//
// Node numbers in the file are 1-based; Parse converts them to 0-based
// NodeIDs. All time-valued fields are divided by deltaT and rounded to
// integers: travel_time and release round up (CeilDiv), deadline rounds
// down (FloorDiv), matching the rounding direction each quantity is used
// as a bound in.
func Parse(path string, deltaT float64) (*Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeIO, "failed to open instance file").WithField(path)
	}
	defer f.Close()

	return ParseReader(f, deltaT)
}

// ParseReader parses an instance from an already-open reader, so tests
// can exercise the format without touching the filesystem.
func ParseReader(r io.Reader, deltaT float64) (*Instance, error) {
	if deltaT <= 0 {
		return nil, apperror.New(apperror.CodeInvalidDiscretStep, "delta_t must be positive").
			WithDetails("delta_t", deltaT)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	nextLine := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		lineNo++
		return scanner.Text(), true
	}

	// line 1: header comment, ignored
	if _, ok := nextLine(); !ok {
		return nil, malformed(lineNo, "missing header line")
	}

	countsLine, ok := nextLine()
	if !ok {
		return nil, malformed(lineNo, "missing node/arc/commodity counts line")
	}
	nNodes, nArcs, nCommodities, err := parseCounts(countsLine)
	if err != nil {
		return nil, malformed(lineNo, err.Error())
	}

	nodes := make([]Node, nNodes)
	for i := range nodes {
		nodes[i] = Node{Name: strconv.Itoa(i + 1)}
	}

	arcs := make([]Arc, 0, nArcs)
	for a := 0; a < nArcs; a++ {
		line, ok := nextLine()
		if !ok {
			return nil, malformed(lineNo, fmt.Sprintf("expected %d arc lines, found %d", nArcs, a))
		}
		arc, err := parseArcLine(line, nNodes, deltaT)
		if err != nil {
			return nil, malformed(lineNo, err.Error())
		}
		arcs = append(arcs, arc)
	}

	commodities := make([]Commodity, 0, nCommodities)
	for c := 0; c < nCommodities; c++ {
		line, ok := nextLine()
		if !ok {
			return nil, malformed(lineNo, fmt.Sprintf("expected %d commodity lines, found %d", nCommodities, c))
		}
		com, err := parseCommodityLine(line, nNodes, len(commodities), deltaT)
		if err != nil {
			return nil, malformed(lineNo, err.Error())
		}
		commodities = append(commodities, com)
	}

	if err := scanner.Err(); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeIO, "failed reading instance file")
	}

	return NewInstance(nodes, arcs, commodities), nil
}

func malformed(lineNo int, msg string) error {
	return apperror.New(apperror.CodeMalformedInstance, fmt.Sprintf("line %d: %s", lineNo, msg))
}

func parseCounts(line string) (nNodes, nArcs, nCommodities int, err error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return 0, 0, 0, fmt.Errorf("expected 3 integers (n_nodes n_arcs n_commodities), got %q", line)
	}
	nNodes, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid n_nodes: %w", err)
	}
	nArcs, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid n_arcs: %w", err)
	}
	nCommodities, err = strconv.Atoi(fields[2])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid n_commodities: %w", err)
	}
	return nNodes, nArcs, nCommodities, nil
}

func parseArcLine(line string, nNodes int, deltaT float64) (Arc, error) {
	fields := strings.Fields(line)
	if len(fields) < 6 {
		return Arc{}, fmt.Errorf("expected 6 fields (i j flow_cost capacity fixed_cost travel_time), got %q", line)
	}

	i, err := strconv.Atoi(fields[0])
	if err != nil {
		return Arc{}, fmt.Errorf("invalid node i: %w", err)
	}
	j, err := strconv.Atoi(fields[1])
	if err != nil {
		return Arc{}, fmt.Errorf("invalid node j: %w", err)
	}
	flowCost, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return Arc{}, fmt.Errorf("invalid flow_cost: %w", err)
	}
	capacity, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return Arc{}, fmt.Errorf("invalid capacity: %w", err)
	}
	fixedCost, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return Arc{}, fmt.Errorf("invalid fixed_cost: %w", err)
	}
	travelTime, err := strconv.ParseFloat(fields[5], 64)
	if err != nil {
		return Arc{}, fmt.Errorf("invalid travel_time: %w", err)
	}

	from, to := NodeID(i-1), NodeID(j-1)
	if from < 0 || int(from) >= nNodes || to < 0 || int(to) >= nNodes {
		return Arc{}, fmt.Errorf("arc (%d,%d) references node outside [1,%d]", i, j, nNodes)
	}
	if from == to {
		return Arc{}, fmt.Errorf("self-loop at node %d", i)
	}

	cap := capacity
	return Arc{
		From:       from,
		To:         to,
		TravelTime: CeilDiv(travelTime, deltaT),
		FlowCost:   flowCost,
		FixedCost:  fixedCost,
		Capacity:   &cap,
	}, nil
}

func parseCommodityLine(line string, nNodes, id int, deltaT float64) (Commodity, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return Commodity{}, fmt.Errorf("expected 5 fields (source sink quantity release deadline), got %q", line)
	}

	source, err := strconv.Atoi(fields[0])
	if err != nil {
		return Commodity{}, fmt.Errorf("invalid source: %w", err)
	}
	sink, err := strconv.Atoi(fields[1])
	if err != nil {
		return Commodity{}, fmt.Errorf("invalid sink: %w", err)
	}
	quantity, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return Commodity{}, fmt.Errorf("invalid quantity: %w", err)
	}
	release, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return Commodity{}, fmt.Errorf("invalid release: %w", err)
	}
	deadline, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return Commodity{}, fmt.Errorf("invalid deadline: %w", err)
	}

	src, snk := NodeID(source-1), NodeID(sink-1)
	if src < 0 || int(src) >= nNodes {
		return Commodity{}, fmt.Errorf("source node %d out of range [1,%d]", source, nNodes)
	}
	if snk < 0 || int(snk) >= nNodes {
		return Commodity{}, fmt.Errorf("sink node %d out of range [1,%d]", sink, nNodes)
	}
	if src == snk {
		return Commodity{}, fmt.Errorf("commodity source and sink are both node %d", source)
	}

	rel := CeilDiv(release, deltaT)
	dl := FloorDiv(deadline, deltaT)
	if rel > dl {
		return Commodity{}, fmt.Errorf("commodity release %d exceeds deadline %d after discretization", rel, dl)
	}

	return Commodity{
		ID:       id,
		Source:   src,
		Sink:     snk,
		Quantity: quantity,
		Release:  rel,
		Deadline: dl,
	}, nil
}
