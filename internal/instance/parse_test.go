package instance

import (
	"strings"
	"testing"

	"github.com/hakkape/ddd-snd/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tinyInstanceText is the §8 concrete scenario: 3 nodes, arcs 0->1,
// 1->2, 0->2 (travel_time=1, flow=1, fixed=1, cap=2 except the
// diagonal which has flow=2, fixed=2), three commodities.
const tinyInstanceText = `tiny instance from spec section 8
3 3 3
1 2 1 2 1 1
2 3 1 2 1 1
1 3 2 2 2 1
1 3 1 0 3
2 3 1 1 2
1 2 1 1 2
`

func TestParseReader_TinyInstance(t *testing.T) {
	inst, err := ParseReader(strings.NewReader(tinyInstanceText), 1.0)
	require.NoError(t, err)

	assert.Equal(t, 3, inst.NumNodes)
	require.Len(t, inst.Arcs, 3)
	require.Len(t, inst.Commodities, 3)

	assert.Equal(t, NodeID(0), inst.Arcs[0].From)
	assert.Equal(t, NodeID(1), inst.Arcs[0].To)
	assert.Equal(t, int64(1), inst.Arcs[0].TravelTime)
	require.NotNil(t, inst.Arcs[0].Capacity)
	assert.Equal(t, 2.0, *inst.Arcs[0].Capacity)

	diag := inst.Arcs[2]
	assert.Equal(t, NodeID(0), diag.From)
	assert.Equal(t, NodeID(2), diag.To)
	assert.Equal(t, 2.0, diag.FlowCost)
	assert.Equal(t, 2.0, diag.FixedCost)

	k0 := inst.Commodities[0]
	assert.Equal(t, NodeID(0), k0.Source)
	assert.Equal(t, NodeID(2), k0.Sink)
	assert.Equal(t, int64(0), k0.Release)
	assert.Equal(t, int64(3), k0.Deadline)

	assert.ElementsMatch(t, []int{0, 2}, inst.OutArcs(0))
	assert.ElementsMatch(t, []int{0}, inst.InArcs(1))
}

func TestParseReader_DeltaTRounding(t *testing.T) {
	// travel_time=3, delta_t=2 -> ceil(3/2) = 2
	// release=3 -> ceil(3/2) = 2; deadline=5 -> floor(5/2) = 2
	text := `header
2 1 1
1 2 1 1 1 3
1 2 1 3 5
`
	inst, err := ParseReader(strings.NewReader(text), 2.0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), inst.Arcs[0].TravelTime)
	assert.Equal(t, int64(2), inst.Commodities[0].Release)
	assert.Equal(t, int64(2), inst.Commodities[0].Deadline)
}

func TestParseReader_RejectsNonPositiveDeltaT(t *testing.T) {
	_, err := ParseReader(strings.NewReader(tinyInstanceText), 0)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeInvalidDiscretStep, apperror.Code(err))
}

func TestParseReader_MalformedCountsLine(t *testing.T) {
	text := "header\nnot-a-number 1 1\n"
	_, err := ParseReader(strings.NewReader(text), 1.0)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeMalformedInstance, apperror.Code(err))
}

func TestParseReader_TruncatedArcSection(t *testing.T) {
	text := "header\n2 2 0\n1 2 1 1 1 1\n"
	_, err := ParseReader(strings.NewReader(text), 1.0)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeMalformedInstance, apperror.Code(err))
}

func TestParseReader_ArcOutOfRangeNode(t *testing.T) {
	text := "header\n2 1 0\n1 5 1 1 1 1\n"
	_, err := ParseReader(strings.NewReader(text), 1.0)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeMalformedInstance, apperror.Code(err))
}

func TestParseReader_SelfLoopArc(t *testing.T) {
	text := "header\n2 1 0\n1 1 1 1 1 1\n"
	_, err := ParseReader(strings.NewReader(text), 1.0)
	require.Error(t, err)
}

func TestParseReader_CommodityReleaseAfterDeadline(t *testing.T) {
	text := "header\n2 1 1\n1 2 1 1 1 1\n1 2 1 5 1\n"
	_, err := ParseReader(strings.NewReader(text), 1.0)
	require.Error(t, err)
}

func TestParse_MissingFile(t *testing.T) {
	_, err := Parse("/nonexistent/path/to/instance.txt", 1.0)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeIO, apperror.Code(err))
}

func TestCeilFloorDiv(t *testing.T) {
	assert.Equal(t, int64(2), CeilDiv(3, 2))
	assert.Equal(t, int64(2), FloorDiv(5, 2))
	assert.Equal(t, int64(0), CeilDiv(0, 2))
}
