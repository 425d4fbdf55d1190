package canvasroute

import (
	"math"

	"oss.terrastruct.com/d2canvas/canvasgraph"
	"oss.terrastruct.com/d2canvas/lib/geo"
	"oss.terrastruct.com/d2canvas/lib/svg"
)

// controlDistance projects from an endpoint along the axis of its side by curvature times
// the endpoint delta on that axis.
func controlDistance(side canvasgraph.Side, delta geo.Point, curvature float64) float64 {
	if side.IsHorizontal() {
		return math.Abs(delta.X) * curvature
	}
	return math.Abs(delta.Y) * curvature
}

// DefaultControlPoints are the control points of the curve between in's endpoints
// before any user override.
func DefaultControlPoints(in Input, curvature float64) (geo.Point, geo.Point) {
	s, t := in.Source, in.Target
	delta := t.Point.Sub(s.Point)

	sd := s.Side.Direction()
	td := t.Side.Direction()
	ds := controlDistance(s.Side, delta, curvature)
	dt := controlDistance(t.Side, delta, curvature)
	return s.Point.Add(sd.X*ds, sd.Y*ds), t.Point.Add(td.X*dt, td.Y*dt)
}

// ControlPoints applies the stored overrides of in, relative to their endpoints, over the
// defaults.
func ControlPoints(in Input, curvature float64) (geo.Point, geo.Point) {
	cp1, cp2 := DefaultControlPoints(in, curvature)
	if in.ControlPoints == nil {
		return cp1, cp2
	}
	if o := in.ControlPoints.Source; o != nil {
		cp1 = in.Source.Point.Add(o.X, o.Y)
	}
	if o := in.ControlPoints.Target; o != nil {
		cp2 = in.Target.Point.Add(o.X, o.Y)
	}
	return cp1, cp2
}

// ControlPointOffset is the override to store when the control point of role is dragged to
// the absolute point p.
func ControlPointOffset(in Input, role canvasgraph.Role, p geo.Point) geo.Point {
	if role == canvasgraph.RoleTarget {
		return p.Sub(in.Target.Point)
	}
	return p.Sub(in.Source.Point)
}

func cubicPath(in Input, cp1, cp2 geo.Point, opts Opts) Path {
	pc := svg.NewAbsolutePathContext()
	pc.StartAt(in.Source.Point)
	pc.CurveTo(cp1, cp2, in.Target.Point)

	curve := []geo.Point{in.Source.Point, cp1, cp2, in.Target.Point}
	return Path{
		Data:        pc.PathData(),
		LabelAnchor: geo.PointOnCubicBezier(labelT(in, opts), curve[0], curve[1], curve[2], curve[3]),
		Curve:       curve,
	}
}

// Bezier is the default curve. Overrides and selection are ignored.
func Bezier(in Input, opts Opts) Path {
	cp1, cp2 := DefaultControlPoints(in, opts.Curvature)
	return cubicPath(in, cp1, cp2, opts)
}

// EditableBezier is the default curve with the user's control point overrides. Selected
// edges expose both control points and, when overridden, a reset anchor.
func EditableBezier(in Input, opts Opts) Path {
	cp1, cp2 := ControlPoints(in, opts.Curvature)
	p := cubicPath(in, cp1, cp2, opts)
	if in.Selected {
		p.Chrome = &Chrome{Handles: []geo.Point{cp1, cp2}}
		if !in.ControlPoints.IsEmpty() {
			reset := p.LabelAnchor.Add(0, -24)
			p.Chrome.Reset = &reset
		}
	}
	return p
}
