// Package canvasroute computes the path string and label anchor of an edge for each edge
// type. Renderers are pure functions of the endpoint geometry and the edge's routing data.
package canvasroute

import (
	"math"

	"oss.terrastruct.com/d2canvas/canvasgraph"
	"oss.terrastruct.com/d2canvas/lib/geo"
)

type Opts struct {
	LaneSpacing        float64 `toml:"lane_spacing"`
	CollinearTolerance float64 `toml:"collinear_tolerance"`
	MinStep            float64 `toml:"min_step"`
	Standoff           float64 `toml:"standoff"`
	Chamfer            float64 `toml:"chamfer"`
	CornerRadius       float64 `toml:"corner_radius"`
	Curvature          float64 `toml:"curvature"`
	LabelT             float64 `toml:"label_t"`
	Samples            int     `toml:"samples"`
}

var DefaultOpts = Opts{
	LaneSpacing:        20,
	CollinearTolerance: 10,
	MinStep:            25,
	Standoff:           20,
	Chamfer:            10,
	CornerRadius:       8,
	Curvature:          0.5,
	LabelT:             0.5,
	Samples:            geo.DEFAULT_CLOSEST_SAMPLES,
}

// Endpoint is an absolute attachment point and the side of the node it leaves from.
type Endpoint struct {
	Point geo.Point
	Side  canvasgraph.Side
	// Box is the node the endpoint is on. The zero Box means unknown.
	Box geo.Box
}

type Input struct {
	Source Endpoint
	Target Endpoint

	Lane       int
	TotalLanes int

	ControlPoints *canvasgraph.ControlPoints
	LabelT        *float64
	Selected      bool
}

// Chrome is the interactive decoration of a selected edge.
type Chrome struct {
	// Handles are the absolute positions of the draggable control points.
	Handles []geo.Point `json:"handles,omitempty"`
	// Reset is where the reset action is anchored, nil when there is nothing to reset.
	Reset *geo.Point `json:"reset,omitempty"`
}

type Path struct {
	Data        string    `json:"data"`
	LabelAnchor geo.Point `json:"labelAnchor"`
	// Route is the polyline of piecewise linear edges.
	Route geo.Route `json:"route,omitempty"`
	// Curve holds the four points of cubic edges.
	Curve  []geo.Point `json:"curve,omitempty"`
	Chrome *Chrome     `json:"chrome,omitempty"`
}

// ClosestT returns the parameter of the point of the path closest to p, normalized to
// [0, 1]. It is the hit test of label dragging.
func (p Path) ClosestT(q geo.Point, samples int) float64 {
	if len(p.Curve) == 4 {
		t, _ := geo.ClosestPointOnBezier(q, p.Curve[0], p.Curve[1], p.Curve[2], p.Curve[3], samples)
		return t
	}
	_, t := p.Route.ClosestPoint(q)
	return t
}

// PointAt returns the point at t along the path.
func (p Path) PointAt(t float64) geo.Point {
	if len(p.Curve) == 4 {
		return geo.PointOnCubicBezier(geo.Clamp(t, 0, 1), p.Curve[0], p.Curve[1], p.Curve[2], p.Curve[3])
	}
	return p.Route.PointAt(t)
}

type Renderer interface {
	Render(Input, Opts) Path
}

type RenderFunc func(Input, Opts) Path

func (f RenderFunc) Render(in Input, opts Opts) Path {
	return f(in, opts)
}

var renderers = map[canvasgraph.EdgeType]Renderer{
	canvasgraph.EdgeBezier:          RenderFunc(Bezier),
	canvasgraph.EdgeEditableBezier:  RenderFunc(EditableBezier),
	canvasgraph.EdgeSmartOrthogonal: RenderFunc(SmartOrthogonal),
	canvasgraph.EdgePCB:             RenderFunc(PCB),
	canvasgraph.EdgeStraight:        RenderFunc(Straight),
	canvasgraph.EdgeSmoothstep:      RenderFunc(Smoothstep),
}

// Lookup returns the renderer of t. Unknown types render as bezier.
func Lookup(t canvasgraph.EdgeType) Renderer {
	if r, ok := renderers[t]; ok {
		return r
	}
	return renderers[canvasgraph.EdgeBezier]
}

func Render(t canvasgraph.EdgeType, in Input, opts Opts) Path {
	return Lookup(t).Render(in, opts)
}

// InputFor resolves the absolute endpoint geometry of e in g.
func InputFor(g *canvasgraph.Graph, e *canvasgraph.Edge) (Input, error) {
	srcBox, err := g.AbsoluteBox(e.Source)
	if err != nil {
		return Input{}, err
	}
	dstBox, err := g.AbsoluteBox(e.Target)
	if err != nil {
		return Input{}, err
	}
	sh := e.SourceHandleInfo()
	th := e.TargetHandleInfo()
	return Input{
		Source:        Endpoint{Point: sh.Point(srcBox), Side: sh.Side, Box: srcBox},
		Target:        Endpoint{Point: th.Point(dstBox), Side: th.Side, Box: dstBox},
		Lane:          e.Routing.Lane,
		TotalLanes:    e.Routing.TotalLanes,
		ControlPoints: e.Routing.ControlPoints,
		LabelT:        e.Routing.LabelT,
	}, nil
}

// RenderEdge renders e of g with the renderer of its type.
func RenderEdge(g *canvasgraph.Graph, e *canvasgraph.Edge, selected bool, opts Opts) (Path, error) {
	in, err := InputFor(g, e)
	if err != nil {
		return Path{}, err
	}
	in.Selected = selected
	return Render(e.Type, in, opts), nil
}

// LaneOffset centres totalLanes lanes around zero, spacing apart.
func LaneOffset(lane, totalLanes int, spacing float64) float64 {
	if totalLanes < 1 {
		totalLanes = 1
	}
	return (float64(lane) - float64(totalLanes-1)/2) * spacing
}

// laneRank is the offset of lane from the first lane, never negative.
func laneRank(lane, totalLanes int, spacing float64) float64 {
	return math.Max(0, LaneOffset(lane, totalLanes, spacing)-LaneOffset(0, totalLanes, spacing))
}

func labelT(in Input, opts Opts) float64 {
	if in.LabelT != nil {
		return geo.Clamp(*in.LabelT, 0, 1)
	}
	return opts.LabelT
}
