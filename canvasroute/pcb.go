package canvasroute

import (
	"math"

	"oss.terrastruct.com/d2canvas/lib/geo"
	"oss.terrastruct.com/d2canvas/lib/svg"
)

type corner struct {
	at, in, out geo.Point
	cut         bool
}

// corners cuts each interior turn of r by up to size along both adjacent segments, never
// more than half of either.
func corners(r geo.Route, size float64) []corner {
	var cs []corner
	for i := 1; i < len(r)-1; i++ {
		prev, c, next := r[i-1], r[i], r[i+1]
		cut := math.Min(size, math.Min(c.DistanceTo(prev)/2, c.DistanceTo(next)/2))
		if cut <= 0 {
			cs = append(cs, corner{at: c, in: c, out: c})
			continue
		}
		cs = append(cs, corner{
			at:  c,
			in:  c.Interpolate(prev, cut/c.DistanceTo(prev)),
			out: c.Interpolate(next, cut/c.DistanceTo(next)),
			cut: true,
		})
	}
	return cs
}

// Chamfer replaces every turn of r with a 45° cut of up to size.
func Chamfer(r geo.Route, size float64) geo.Route {
	if len(r) < 3 {
		return r
	}
	out := geo.Route{r[0]}
	for _, c := range corners(r, size) {
		if !c.cut {
			out = append(out, c.at)
			continue
		}
		out = append(out, c.in, c.out)
	}
	return append(out, r[len(r)-1])
}

// PCB is the orthogonal route with chamfered corners.
func PCB(in Input, opts Opts) Path {
	base := OrthogonalRoute(in, opts)
	r := Chamfer(base, opts.Chamfer)
	anchor := middleAnchor(base)
	if in.LabelT != nil {
		anchor = r.PointAt(*in.LabelT)
	}
	return Path{
		Data:        svg.PolylinePath(r),
		LabelAnchor: anchor,
		Route:       r,
	}
}

// Smoothstep is the orthogonal route with corners rounded by quadratic curves.
func Smoothstep(in Input, opts Opts) Path {
	r := OrthogonalRoute(in, opts)
	if len(r) == 0 {
		return Path{}
	}
	pc := svg.NewAbsolutePathContext()
	pc.StartAt(r[0])
	for _, c := range corners(r, opts.CornerRadius) {
		if !c.cut {
			pc.LineTo(c.at)
			continue
		}
		pc.LineTo(c.in)
		pc.Q(false, c.at.X, c.at.Y, c.out.X, c.out.Y)
	}
	if len(r) > 1 {
		pc.LineTo(r[len(r)-1])
	}
	return Path{
		Data:        pc.PathData(),
		LabelAnchor: polylineLabel(in, r),
		Route:       r,
	}
}
