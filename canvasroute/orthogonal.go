package canvasroute

import (
	"math"

	"oss.terrastruct.com/d2canvas/canvasgraph"
	"oss.terrastruct.com/d2canvas/lib/geo"
	"oss.terrastruct.com/d2canvas/lib/svg"
)

// frame maps a side pair onto a canonical one where the source always leaves to the
// right. The cases then only need to handle a target entered from the left (aligned),
// the top (perpendicular) or the right (U-turn).
type frame struct {
	transpose bool
	flipX     bool
	flipY     bool
}

func (f frame) to(p geo.Point) geo.Point {
	if f.transpose {
		p = p.Transpose()
	}
	if f.flipX {
		p.X = -p.X
	}
	if f.flipY {
		p.Y = -p.Y
	}
	return p
}

func (f frame) from(p geo.Point) geo.Point {
	if f.flipY {
		p.Y = -p.Y
	}
	if f.flipX {
		p.X = -p.X
	}
	if f.transpose {
		p = p.Transpose()
	}
	return p
}

func (f frame) side(s canvasgraph.Side) canvasgraph.Side {
	if f.transpose {
		switch s {
		case canvasgraph.SideTop:
			s = canvasgraph.SideLeft
		case canvasgraph.SideLeft:
			s = canvasgraph.SideTop
		case canvasgraph.SideBottom:
			s = canvasgraph.SideRight
		case canvasgraph.SideRight:
			s = canvasgraph.SideBottom
		}
	}
	if f.flipX {
		switch s {
		case canvasgraph.SideLeft:
			s = canvasgraph.SideRight
		case canvasgraph.SideRight:
			s = canvasgraph.SideLeft
		}
	}
	if f.flipY {
		switch s {
		case canvasgraph.SideTop:
			s = canvasgraph.SideBottom
		case canvasgraph.SideBottom:
			s = canvasgraph.SideTop
		}
	}
	return s
}

func (f frame) box(b geo.Box) geo.Box {
	if b.Width == 0 && b.Height == 0 {
		return b
	}
	p1 := f.to(b.TopLeft)
	p2 := f.to(geo.NewPoint(b.Right(), b.Bottom()))
	tl := geo.NewPoint(math.Min(p1.X, p2.X), math.Min(p1.Y, p2.Y))
	return geo.NewBox(tl, math.Abs(p2.X-p1.X), math.Abs(p2.Y-p1.Y))
}

func canonicalFrame(ss, ts canvasgraph.Side) frame {
	var f frame
	f.transpose = !ss.IsHorizontal()
	f.flipX = f.side(ss) == canvasgraph.SideLeft
	f.flipY = f.side(ts) == canvasgraph.SideBottom
	return f
}

// collinearStep is the perpendicular detour of nearly collinear endpoints. It is at least
// minStep and grows with the lane offset so parallel edges stay apart.
func collinearStep(off, minStep float64) float64 {
	if off < 0 {
		return off - minStep
	}
	return off + minStep
}

// bottomOf is the lowest y of the endpoint's node, or of the endpoint when unknown.
func bottomOf(e Endpoint) float64 {
	if e.Box.Width == 0 && e.Box.Height == 0 {
		return e.Point.Y
	}
	return e.Box.Bottom()
}

type orthogonalCase struct {
	s, t   Endpoint
	off    float64
	rank   float64
	opts   Opts
	coline bool
	// maxOff and maxRank are the offset and rank of the outermost lane of the bundle.
	maxOff  float64
	maxRank float64
}

// aligned routes a source leaving right to a target entered from the left.
func (c orthogonalCase) aligned() geo.Route {
	s, t := c.s.Point, c.t.Point
	d := c.opts.Standoff
	if t.X-s.X >= 2*d {
		if c.coline {
			step := collinearStep(c.off, c.opts.MinStep)
			x1 := s.X + (t.X-s.X)/4
			x2 := t.X - (t.X-s.X)/4
			return geo.Route{s, {X: x1, Y: s.Y}, {X: x1, Y: s.Y + step}, {X: x2, Y: s.Y + step}, {X: x2, Y: t.Y}, t}
		}
		mx := (s.X+t.X)/2 + c.off
		return geo.Route{s, {X: mx, Y: s.Y}, {X: mx, Y: t.Y}, t}
	}

	// Target is behind the source: leave, cross over between them, come back.
	my := (s.Y+t.Y)/2 + c.off
	if c.coline {
		my = math.Max(bottomOf(c.s), bottomOf(c.t)) + d + c.rank
	}
	return geo.Route{
		s,
		{X: s.X + d, Y: s.Y},
		{X: s.X + d, Y: my},
		{X: t.X - d, Y: my},
		{X: t.X - d, Y: t.Y},
		t,
	}
}

// perpendicular routes a source leaving right to a target entered from the top.
func (c orthogonalCase) perpendicular() geo.Route {
	s, t := c.s.Point, c.t.Point
	d := c.opts.Standoff
	// An L through the corner (t.X, s.Y) when every lane of the bundle fits before the
	// target. Lanes move both runs. Otherwise the whole bundle detours so lanes never merge.
	if s.X+d+c.maxRank <= t.X && s.Y+c.maxOff <= t.Y-d {
		x := s.X + d + c.rank
		y := s.Y + c.off
		return geo.Route{s, {X: x, Y: s.Y}, {X: x, Y: y}, {X: t.X, Y: y}, t}
	}

	y := t.Y - d - c.rank
	x := s.X + d + c.rank
	return geo.Route{s, {X: x, Y: s.Y}, {X: x, Y: y}, {X: t.X, Y: y}, t}
}

// uturn routes a source leaving right to a target entered from the right.
func (c orthogonalCase) uturn() geo.Route {
	s, t := c.s.Point, c.t.Point
	d := c.opts.Standoff
	if c.coline {
		y := math.Max(bottomOf(c.s), bottomOf(c.t)) + d + c.rank
		x1 := s.X + d + c.rank
		x2 := t.X + d + c.rank
		return geo.Route{s, {X: x1, Y: s.Y}, {X: x1, Y: y}, {X: x2, Y: y}, {X: x2, Y: t.Y}, t}
	}
	x := math.Max(s.X, t.X) + d + c.rank
	return geo.Route{s, {X: x, Y: s.Y}, {X: x, Y: t.Y}, t}
}

// zigzag splits the dominant axis of the endpoints. It serves endpoints without a known
// side.
func zigzag(s, t geo.Point, off float64) geo.Route {
	if math.Abs(t.X-s.X) >= math.Abs(t.Y-s.Y) {
		mx := (s.X+t.X)/2 + off
		return geo.Route{s, {X: mx, Y: s.Y}, {X: mx, Y: t.Y}, t}
	}
	my := (s.Y+t.Y)/2 + off
	return geo.Route{s, {X: s.X, Y: my}, {X: t.X, Y: my}, t}
}

// OrthogonalRoute is the Manhattan polyline from source to target, chosen by the side
// pair and offset by the lane.
func OrthogonalRoute(in Input, opts Opts) geo.Route {
	off := LaneOffset(in.Lane, in.TotalLanes, opts.LaneSpacing)
	if !in.Source.Side.Valid() || !in.Target.Side.Valid() {
		return zigzag(in.Source.Point, in.Target.Point, off).Simplify()
	}

	last := max(in.TotalLanes, 1) - 1
	f := canonicalFrame(in.Source.Side, in.Target.Side)
	c := orthogonalCase{
		s: Endpoint{
			Point: f.to(in.Source.Point),
			Side:  f.side(in.Source.Side),
			Box:   f.box(in.Source.Box),
		},
		t: Endpoint{
			Point: f.to(in.Target.Point),
			Side:  f.side(in.Target.Side),
			Box:   f.box(in.Target.Box),
		},
		off:     off,
		rank:    laneRank(in.Lane, in.TotalLanes, opts.LaneSpacing),
		opts:    opts,
		maxOff:  LaneOffset(last, in.TotalLanes, opts.LaneSpacing),
		maxRank: laneRank(last, in.TotalLanes, opts.LaneSpacing),
	}
	c.coline = math.Abs(c.s.Point.Y-c.t.Point.Y) < opts.CollinearTolerance

	var r geo.Route
	switch c.t.Side {
	case canvasgraph.SideLeft:
		r = c.aligned()
	case canvasgraph.SideTop:
		r = c.perpendicular()
	case canvasgraph.SideRight:
		r = c.uturn()
	default:
		r = zigzag(c.s.Point, c.t.Point, off)
	}

	out := make(geo.Route, 0, len(r))
	for _, p := range r {
		out = append(out, f.from(p))
	}
	return out.Simplify()
}

// middleAnchor is the midpoint of the middle segment of r.
func middleAnchor(r geo.Route) geo.Point {
	switch len(r) {
	case 0:
		return geo.Point{}
	case 1:
		return r[0]
	}
	i := (len(r) - 2) / 2
	return r[i].Interpolate(r[i+1], 0.5)
}

func polylineLabel(in Input, r geo.Route) geo.Point {
	if in.LabelT != nil {
		return r.PointAt(*in.LabelT)
	}
	return middleAnchor(r)
}

// SmartOrthogonal is the lane-aware Manhattan route.
func SmartOrthogonal(in Input, opts Opts) Path {
	r := OrthogonalRoute(in, opts)
	return Path{
		Data:        svg.PolylinePath(r),
		LabelAnchor: polylineLabel(in, r),
		Route:       r,
	}
}
