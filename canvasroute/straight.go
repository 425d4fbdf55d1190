package canvasroute

import (
	"oss.terrastruct.com/d2canvas/lib/geo"
	"oss.terrastruct.com/d2canvas/lib/svg"
)

func Straight(in Input, opts Opts) Path {
	r := geo.Route{in.Source.Point, in.Target.Point}
	return Path{
		Data:        svg.PolylinePath(r),
		LabelAnchor: r.PointAt(labelT(in, opts)),
		Route:       r,
	}
}
