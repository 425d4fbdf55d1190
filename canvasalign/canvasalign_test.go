package canvasalign_test

import (
	"testing"

	tassert "github.com/stretchr/testify/assert"
	"oss.terrastruct.com/util-go/assert"
	"oss.terrastruct.com/util-go/go2"

	"oss.terrastruct.com/d2canvas/canvasalign"
	"oss.terrastruct.com/d2canvas/canvasgraph"
	"oss.terrastruct.com/d2canvas/lib/geo"
)

func box(x, y float64) geo.Box {
	return geo.NewBox(geo.NewPoint(x, y), 160, 64)
}

func TestCompute(t *testing.T) {
	t.Parallel()

	t.Run("left_edge", func(t *testing.T) {
		t.Parallel()

		r := canvasalign.Compute(box(104, 300), []geo.Box{box(100, 0)}, false, canvasalign.DefaultOpts)
		tassert.NotNil(t, r.Snapped)
		tassert.Equal(t, go2.Pointer(100.), r.Snapped.X)
		tassert.Nil(t, r.Snapped.Y)
		tassert.Contains(t, r.Guides, canvasalign.Guide{
			Axis:     canvasalign.AxisVertical,
			Position: 100,
			Start:    -20,
			End:      384,
		})
		for _, g := range r.Guides {
			assert.Equal(t, canvasalign.AxisVertical, g.Axis)
		}
		assert.Equal(t, geo.NewPoint(100, 300), r.Apply(geo.NewPoint(104, 300)))
	})

	t.Run("threshold_is_inclusive", func(t *testing.T) {
		t.Parallel()

		opts := canvasalign.DefaultOpts
		opts.Threshold = 4
		r := canvasalign.Compute(box(104, 300), []geo.Box{box(100, 0)}, false, opts)
		tassert.NotNil(t, r.Snapped)
		assert.Equal(t, 100., *r.Snapped.X)

		opts.Threshold = 3
		r = canvasalign.Compute(box(104, 300), []geo.Box{box(100, 0)}, false, opts)
		tassert.Nil(t, r.Snapped)
		tassert.Empty(t, r.Guides)
	})

	t.Run("first_match_wins", func(t *testing.T) {
		t.Parallel()

		// The first box matches on its right edge 3px away, the second on its left
		// edge 1px away. The first one found decides.
		others := []geo.Box{box(-57, 500), box(101, 900)}
		r := canvasalign.Compute(box(100, 0), others, false, canvasalign.DefaultOpts)
		tassert.NotNil(t, r.Snapped)
		assert.Equal(t, 103., *r.Snapped.X)
	})

	t.Run("center_and_both_axes", func(t *testing.T) {
		t.Parallel()

		other := geo.NewBox(geo.NewPoint(0, 0), 100, 100)
		r := canvasalign.Compute(geo.NewBox(geo.NewPoint(22, 20), 60, 60), []geo.Box{other}, false, canvasalign.DefaultOpts)
		tassert.NotNil(t, r.Snapped)
		assert.Equal(t, 20., *r.Snapped.X)
		assert.Equal(t, 20., *r.Snapped.Y)
		tassert.Contains(t, r.Guides, canvasalign.Guide{Axis: canvasalign.AxisVertical, Position: 50, Start: -20, End: 120})
		tassert.Contains(t, r.Guides, canvasalign.Guide{Axis: canvasalign.AxisHorizontal, Position: 50, Start: -20, End: 120})
	})

	t.Run("grid_snap", func(t *testing.T) {
		t.Parallel()

		r := canvasalign.Compute(box(107, 23), []geo.Box{box(100, 0)}, true, canvasalign.DefaultOpts)
		tassert.Empty(t, r.Guides)
		assert.Equal(t, geo.NewPoint(105, 15), r.Apply(geo.NewPoint(107, 23)))
	})

	t.Run("no_others", func(t *testing.T) {
		t.Parallel()

		r := canvasalign.Compute(box(1, 1), nil, false, canvasalign.DefaultOpts)
		tassert.Nil(t, r.Snapped)
		tassert.Empty(t, r.Guides)
	})
}

func TestMergeGuides(t *testing.T) {
	t.Parallel()

	got := canvasalign.MergeGuides([]canvasalign.Guide{
		{Axis: canvasalign.AxisHorizontal, Position: 10, Start: 0, End: 10},
		{Axis: canvasalign.AxisVertical, Position: 50.5, Start: 30, End: 90},
		{Axis: canvasalign.AxisVertical, Position: 50, Start: -10, End: 40},
		{Axis: canvasalign.AxisVertical, Position: 80, Start: 0, End: 1},
		{Axis: canvasalign.AxisHorizontal, Position: 10.8, Start: 5, End: 30},
	}, 1)
	assert.Equal(t, []canvasalign.Guide{
		{Axis: canvasalign.AxisVertical, Position: 50, Start: -10, End: 90},
		{Axis: canvasalign.AxisVertical, Position: 80, Start: 0, End: 1},
		{Axis: canvasalign.AxisHorizontal, Position: 10, Start: 0, End: 30},
	}, got)
}

func TestComputeForNode(t *testing.T) {
	t.Parallel()

	g := canvasgraph.NewGraph()
	zone := canvasgraph.NewGroupNode("zone", canvasgraph.Rel(0, 0), 400, 400, canvasgraph.GroupData{ZoneID: "vpc"})
	child := canvasgraph.NewServiceNode("child", canvasgraph.Rel(40, 40), canvasgraph.ServiceData{ServiceID: "ec2"})
	child.ParentID = "zone"
	other := canvasgraph.NewServiceNode("other", canvasgraph.Rel(600, 40), canvasgraph.ServiceData{ServiceID: "s3"})
	g.Nodes = append(g.Nodes, zone, child, other)

	// Dragging the zone ignores its own child even though they share the left edge.
	r, err := canvasalign.ComputeForNode(g, "zone", canvasgraph.Abs(40, 1000), false, canvasalign.DefaultOpts)
	assert.Success(t, err)
	tassert.Nil(t, r.Snapped)

	r, err = canvasalign.ComputeForNode(g, "other", canvasgraph.Abs(600, 42), false, canvasalign.DefaultOpts)
	assert.Success(t, err)
	tassert.NotNil(t, r.Snapped)
	assert.Equal(t, 40., *r.Snapped.Y)

	_, err = canvasalign.ComputeForNode(g, "ghost", canvasgraph.Abs(0, 0), false, canvasalign.DefaultOpts)
	assert.ErrorString(t, err, `invalid node "ghost": not found`)
}
