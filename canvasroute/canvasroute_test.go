package canvasroute_test

import (
	"fmt"
	"testing"

	tassert "github.com/stretchr/testify/assert"
	"oss.terrastruct.com/util-go/assert"
	"oss.terrastruct.com/util-go/go2"

	"oss.terrastruct.com/d2canvas/canvasgraph"
	"oss.terrastruct.com/d2canvas/canvasroute"
	"oss.terrastruct.com/d2canvas/lib/geo"
)

var sides = []canvasgraph.Side{
	canvasgraph.SideTop,
	canvasgraph.SideBottom,
	canvasgraph.SideLeft,
	canvasgraph.SideRight,
}

func endpoint(x, y float64, side canvasgraph.Side) canvasroute.Endpoint {
	box := geo.NewBox(geo.NewPoint(x, y), 160, 64)
	h := canvasgraph.Handle{Side: side, Index: -1}
	return canvasroute.Endpoint{Point: h.Point(box), Side: side, Box: box}
}

func rightToLeft(tx, ty float64) canvasroute.Input {
	return canvasroute.Input{
		Source: endpoint(0, 0, canvasgraph.SideRight),
		Target: endpoint(tx, ty, canvasgraph.SideLeft),
	}
}

func TestLaneOffset(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0., canvasroute.LaneOffset(0, 1, 20))
	assert.Equal(t, 0., canvasroute.LaneOffset(0, 0, 20))
	assert.Equal(t, -20., canvasroute.LaneOffset(0, 3, 20))
	assert.Equal(t, 0., canvasroute.LaneOffset(1, 3, 20))
	assert.Equal(t, 20., canvasroute.LaneOffset(2, 3, 20))
	assert.Equal(t, -10., canvasroute.LaneOffset(0, 2, 20))
}

func TestSmartOrthogonalLanes(t *testing.T) {
	t.Parallel()

	seen := map[string]struct{}{}
	var offsets []float64
	for lane := 0; lane < 3; lane++ {
		in := rightToLeft(400, 200)
		in.Lane = lane
		in.TotalLanes = 3
		p := canvasroute.SmartOrthogonal(in, canvasroute.DefaultOpts)
		seen[p.Data] = struct{}{}
		offsets = append(offsets, p.LabelAnchor.X-280)
	}
	assert.Equal(t, []float64{-20, 0, 20}, offsets)
	assert.Equal(t, 3, len(seen))

	p := canvasroute.SmartOrthogonal(rightToLeft(400, 200), canvasroute.DefaultOpts)
	assert.String(t, "M 160 32 L 280 32 L 280 232 L 400 232", p.Data)
	assert.Equal(t, geo.NewPoint(280, 132), p.LabelAnchor)
}

// Parallel edges never share a path, even when the target sits close to the source and
// the bundle has no room for an L.
func TestSmartOrthogonalLanesDistinct(t *testing.T) {
	t.Parallel()

	var paths []string
	for lane := 0; lane < 3; lane++ {
		in := canvasroute.Input{
			Source:     endpoint(0, 0, canvasgraph.SideRight),
			Target:     endpoint(300, 52, canvasgraph.SideTop),
			Lane:       lane,
			TotalLanes: 3,
		}
		paths = append(paths, canvasroute.SmartOrthogonal(in, canvasroute.DefaultOpts).Data)
	}
	assert.Equal(t, []string{
		"M 160 32 L 380 32 L 380 52",
		"M 160 32 L 200 32 L 200 12 L 380 12 L 380 52",
		"M 160 32 L 220 32 L 220 -8 L 380 -8 L 380 52",
	}, paths)

	targets := []geo.Point{
		{X: 300, Y: 52}, {X: 300, Y: 57}, {X: 300, Y: 62}, {X: 180, Y: 20}, {X: 170, Y: 70},
		{X: 0, Y: 80}, {X: -170, Y: 10}, {X: 200, Y: -70}, {X: 60, Y: 20},
	}
	for _, ss := range sides {
		for _, ts := range sides {
			for _, tp := range targets {
				ss, ts, tp := ss, ts, tp
				t.Run(fmt.Sprintf("%s_%s_%v", ss, ts, tp.ToString()), func(t *testing.T) {
					t.Parallel()

					for n := 2; n <= 5; n++ {
						seen := map[string]int{}
						for lane := 0; lane < n; lane++ {
							in := canvasroute.Input{
								Source:     endpoint(0, 0, ss),
								Target:     endpoint(tp.X, tp.Y, ts),
								Lane:       lane,
								TotalLanes: n,
							}
							p := canvasroute.SmartOrthogonal(in, canvasroute.DefaultOpts)
							if prev, ok := seen[p.Data]; ok {
								t.Fatalf("%d lanes: lanes %d and %d share %q", n, prev, lane, p.Data)
							}
							seen[p.Data] = lane
						}
					}
				})
			}
		}
	}
}

func TestSmartOrthogonalCollinearStep(t *testing.T) {
	t.Parallel()

	p := canvasroute.SmartOrthogonal(rightToLeft(400, 0), canvasroute.DefaultOpts)
	assert.String(t, "M 160 32 L 220 32 L 220 57 L 340 57 L 340 32 L 400 32", p.Data)
	assert.Equal(t, geo.NewPoint(280, 57), p.LabelAnchor)

	// Parallel collinear edges step further out, on both sides.
	var steps []float64
	for lane := 0; lane < 3; lane++ {
		in := rightToLeft(400, 0)
		in.Lane = lane
		in.TotalLanes = 3
		steps = append(steps, canvasroute.SmartOrthogonal(in, canvasroute.DefaultOpts).LabelAnchor.Y-32)
	}
	assert.Equal(t, []float64{-45, 25, 45}, steps)
}

func TestSmartOrthogonalCases(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		in     canvasroute.Input
		exp    string
		anchor geo.Point
	}{
		{
			name: "left_to_right",
			in: canvasroute.Input{
				Source: endpoint(400, 0, canvasgraph.SideLeft),
				Target: endpoint(0, 200, canvasgraph.SideRight),
			},
			exp:    "M 400 32 L 280 32 L 280 232 L 160 232",
			anchor: geo.NewPoint(280, 132),
		},
		{
			name: "bottom_to_top",
			in: canvasroute.Input{
				Source: endpoint(0, 0, canvasgraph.SideBottom),
				Target: endpoint(300, 300, canvasgraph.SideTop),
			},
			exp:    "M 80 64 L 80 182 L 380 182 L 380 300",
			anchor: geo.NewPoint(230, 182),
		},
		{
			name: "right_to_top",
			in: canvasroute.Input{
				Source: endpoint(0, 0, canvasgraph.SideRight),
				Target: endpoint(300, 200, canvasgraph.SideTop),
			},
			exp:    "M 160 32 L 380 32 L 380 200",
			anchor: geo.NewPoint(270, 32),
		},
		{
			name: "right_to_right",
			in: canvasroute.Input{
				Source: endpoint(0, 0, canvasgraph.SideRight),
				Target: endpoint(300, 200, canvasgraph.SideRight),
			},
			exp:    "M 160 32 L 480 32 L 480 232 L 460 232",
			anchor: geo.NewPoint(480, 132),
		},
		{
			name: "right_to_left_backward",
			in: canvasroute.Input{
				Source: endpoint(400, 0, canvasgraph.SideRight),
				Target: endpoint(0, 200, canvasgraph.SideLeft),
			},
			exp:    "M 560 32 L 580 32 L 580 132 L -20 132 L -20 232 L 0 232",
			anchor: geo.NewPoint(280, 132),
		},
		{
			name: "unknown_sides",
			in: canvasroute.Input{
				Source: canvasroute.Endpoint{Point: geo.NewPoint(0, 0)},
				Target: canvasroute.Endpoint{Point: geo.NewPoint(100, 40)},
			},
			exp:    "M 0 0 L 50 0 L 50 40 L 100 40",
			anchor: geo.NewPoint(50, 20),
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p := canvasroute.SmartOrthogonal(tc.in, canvasroute.DefaultOpts)
			assert.String(t, tc.exp, p.Data)
			assert.Equal(t, tc.anchor, p.LabelAnchor)
		})
	}
}

// Every side pair yields an axis-aligned route between the two handles that is never a
// single straight segment.
func TestOrthogonalRouteAllSidePairs(t *testing.T) {
	t.Parallel()

	targets := []geo.Point{{X: 400, Y: 200}, {X: -300, Y: -250}, {X: 400, Y: 0}, {X: 0, Y: 300}, {X: 60, Y: 20}}
	for _, ss := range sides {
		for _, ts := range sides {
			for _, tp := range targets {
				ss, ts, tp := ss, ts, tp
				t.Run(fmt.Sprintf("%s_%s_%v", ss, ts, tp.ToString()), func(t *testing.T) {
					t.Parallel()

					for lane := 0; lane < 2; lane++ {
						in := canvasroute.Input{
							Source:     endpoint(0, 0, ss),
							Target:     endpoint(tp.X, tp.Y, ts),
							Lane:       lane,
							TotalLanes: 2,
						}
						r := canvasroute.OrthogonalRoute(in, canvasroute.DefaultOpts)
						tassert.GreaterOrEqual(t, len(r), 3)
						tassert.True(t, r[0].ApproxEquals(in.Source.Point))
						tassert.True(t, r[len(r)-1].ApproxEquals(in.Target.Point))
						for _, s := range r.Segments() {
							tassert.True(t, s.IsHorizontal() || s.IsVertical(), "segment %v is not axis aligned", s.ToString())
						}
					}
				})
			}
		}
	}
}

func TestPCB(t *testing.T) {
	t.Parallel()

	p := canvasroute.PCB(rightToLeft(400, 200), canvasroute.DefaultOpts)
	assert.String(t, "M 160 32 L 270 32 L 280 42 L 280 222 L 290 232 L 400 232", p.Data)
	assert.Equal(t, geo.NewPoint(280, 132), p.LabelAnchor)

	assert.Equal(t, geo.Route{{X: 0, Y: 0}, {X: 0, Y: 2}, {X: 2, Y: 4}, {X: 4, Y: 4}},
		canvasroute.Chamfer(geo.Route{{X: 0, Y: 0}, {X: 0, Y: 4}, {X: 4, Y: 4}}, 10))
}

func TestSmoothstep(t *testing.T) {
	t.Parallel()

	p := canvasroute.Smoothstep(rightToLeft(400, 200), canvasroute.DefaultOpts)
	assert.String(t, "M 160 32 L 272 32 Q 280 32 280 40 L 280 224 Q 280 232 288 232 L 400 232", p.Data)
	assert.Equal(t, geo.NewPoint(280, 132), p.LabelAnchor)
}

func TestStraight(t *testing.T) {
	t.Parallel()

	p := canvasroute.Straight(rightToLeft(400, 200), canvasroute.DefaultOpts)
	assert.String(t, "M 160 32 L 400 232", p.Data)
	assert.Equal(t, geo.NewPoint(280, 132), p.LabelAnchor)

	in := rightToLeft(400, 200)
	in.LabelT = go2.Pointer(0.25)
	p = canvasroute.Straight(in, canvasroute.DefaultOpts)
	assert.Equal(t, geo.NewPoint(220, 82), p.LabelAnchor)
}

func TestBezier(t *testing.T) {
	t.Parallel()

	p := canvasroute.Bezier(rightToLeft(400, 200), canvasroute.DefaultOpts)
	assert.String(t, "M 160 32 C 280 32 280 232 400 232", p.Data)
	tassert.True(t, p.LabelAnchor.ApproxEquals(geo.NewPoint(280, 132)))
	tassert.Nil(t, p.Chrome)

	// Unknown types fall back to bezier.
	q := canvasroute.Render("spline", rightToLeft(400, 200), canvasroute.DefaultOpts)
	assert.String(t, p.Data, q.Data)
}

func TestEditableBezier(t *testing.T) {
	t.Parallel()

	in := rightToLeft(400, 200)
	p := canvasroute.EditableBezier(in, canvasroute.DefaultOpts)
	tassert.Nil(t, p.Chrome)

	in.Selected = true
	p = canvasroute.EditableBezier(in, canvasroute.DefaultOpts)
	tassert.NotNil(t, p.Chrome)
	assert.Equal(t, []geo.Point{{X: 280, Y: 32}, {X: 280, Y: 232}}, p.Chrome.Handles)
	tassert.Nil(t, p.Chrome.Reset)

	off := canvasroute.ControlPointOffset(in, canvasgraph.RoleSource, geo.NewPoint(210, 132))
	assert.Equal(t, geo.NewPoint(50, 100), off)
	in.ControlPoints = &canvasgraph.ControlPoints{Source: &off}
	p = canvasroute.EditableBezier(in, canvasroute.DefaultOpts)
	assert.String(t, "M 160 32 C 210 132 280 232 400 232", p.Data)
	assert.Equal(t, []geo.Point{{X: 210, Y: 132}, {X: 280, Y: 232}}, p.Chrome.Handles)
	tassert.NotNil(t, p.Chrome.Reset)

	// Overrides are relative, so they follow the endpoint.
	moved := in
	moved.Source = endpoint(10, 10, canvasgraph.SideRight)
	p = canvasroute.EditableBezier(moved, canvasroute.DefaultOpts)
	assert.Equal(t, geo.NewPoint(220, 142), p.Chrome.Handles[0])
}

func TestClosestT(t *testing.T) {
	t.Parallel()

	in := rightToLeft(400, 200)
	curve := canvasroute.Bezier(in, canvasroute.DefaultOpts)
	tassert.InDelta(t, 0.5, curve.ClosestT(curve.LabelAnchor, 0), 0.001)
	tassert.True(t, curve.PointAt(0).ApproxEquals(in.Source.Point))

	poly := canvasroute.SmartOrthogonal(in, canvasroute.DefaultOpts)
	tassert.InDelta(t, 1, poly.ClosestT(geo.NewPoint(500, 232), 0), geo.PRECISION)
	tassert.InDelta(t, 0.5, poly.ClosestT(poly.LabelAnchor, 0), geo.PRECISION)
}

func TestRenderEdge(t *testing.T) {
	t.Parallel()

	g := canvasgraph.NewGraph()
	g.Nodes = append(g.Nodes,
		canvasgraph.NewServiceNode("a", canvasgraph.Rel(0, 0), canvasgraph.ServiceData{ServiceID: "ec2"}),
		canvasgraph.NewServiceNode("b", canvasgraph.Rel(400, 200), canvasgraph.ServiceData{ServiceID: "rds"}),
	)
	e := &canvasgraph.Edge{ID: "e", Source: "a", Target: "b", SourceHandle: "right", TargetHandle: "left", Type: canvasgraph.EdgePCB}
	g.Edges = append(g.Edges, e)

	p, err := canvasroute.RenderEdge(g, e, false, canvasroute.DefaultOpts)
	assert.Success(t, err)
	assert.String(t, "M 160 32 L 270 32 L 280 42 L 280 222 L 290 232 L 400 232", p.Data)

	e.Target = "ghost"
	_, err = canvasroute.RenderEdge(g, e, false, canvasroute.DefaultOpts)
	assert.ErrorString(t, err, `node "ghost" not found`)
}
