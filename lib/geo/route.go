package geo

import (
	"math"
)

// Route is a polyline. Parameters along a Route are normalized to its total length.
type Route []Point

func (route Route) Length() float64 {
	l := 0.
	for i := 0; i < len(route)-1; i++ {
		l += EuclideanDistance(
			route[i].X, route[i].Y,
			route[i+1].X, route[i+1].Y,
		)
	}
	return l
}

// return the point at _distance_ along the route, and the index of the segment it's on
func (route Route) GetPointAtDistance(distance float64) (Point, int) {
	if len(route) == 0 {
		return Point{}, -1
	}
	remaining := distance
	for i := 0; i < len(route)-1; i++ {
		curr, next := route[i], route[i+1]
		length := EuclideanDistance(curr.X, curr.Y, next.X, next.Y)

		if remaining <= length {
			if length == 0 {
				return curr, i
			}
			return curr.Interpolate(next, remaining/length), i
		}
		remaining -= length
	}

	return route[len(route)-1], len(route) - 2
}

// PointAt returns the point at t (0..1) of the total length. Routes of zero length return
// their first point.
func (route Route) PointAt(t float64) Point {
	if len(route) == 0 {
		return Point{}
	}
	total := route.Length()
	if total == 0 {
		return route[0]
	}
	p, _ := route.GetPointAtDistance(Clamp(t, 0, 1) * total)
	return p
}

// ClosestPoint returns the point of the route closest to p, and its t normalized to the
// route length.
func (route Route) ClosestPoint(p Point) (Point, float64) {
	if len(route) == 0 {
		return Point{}, 0
	}
	total := route.Length()
	if len(route) == 1 || total == 0 {
		return route[0], 0
	}

	best := route[0]
	bestDist := math.Inf(1)
	bestAlong := 0.
	walked := 0.
	for i := 0; i < len(route)-1; i++ {
		a, b := route[i], route[i+1]
		segLen := a.DistanceTo(b)
		q, t := ClosestPointOnSegment(p, a, b)
		if d := p.distanceSq(q); d < bestDist {
			bestDist = d
			best = q
			bestAlong = walked + t*segLen
		}
		walked += segLen
	}
	return best, bestAlong / total
}

// Segments returns the consecutive segments of the route.
func (route Route) Segments() []Segment {
	if len(route) < 2 {
		return nil
	}
	segs := make([]Segment, 0, len(route)-1)
	for i := 0; i < len(route)-1; i++ {
		segs = append(segs, NewSegment(route[i], route[i+1]))
	}
	return segs
}

// Simplify drops repeated points and interior points lying on an axis-aligned run
// between their neighbours, so orthogonal routes keep only real turns. Reversals are kept.
func (route Route) Simplify() Route {
	if len(route) < 2 {
		return route
	}
	out := Route{route[0]}
	for i := 1; i < len(route); i++ {
		if route[i].ApproxEquals(out[len(out)-1]) {
			continue
		}
		out = append(out, route[i])
	}
	if len(out) < 3 {
		return out
	}
	pruned := Route{out[0]}
	for i := 1; i < len(out)-1; i++ {
		prev, curr, next := pruned[len(pruned)-1], out[i], out[i+1]
		sameX := PrecisionCompare(prev.X, curr.X, PRECISION) == 0 && PrecisionCompare(curr.X, next.X, PRECISION) == 0
		sameY := PrecisionCompare(prev.Y, curr.Y, PRECISION) == 0 && PrecisionCompare(curr.Y, next.Y, PRECISION) == 0
		if (sameX && between(curr.Y, prev.Y, next.Y)) || (sameY && between(curr.X, prev.X, next.X)) {
			continue
		}
		pruned = append(pruned, curr)
	}
	return append(pruned, out[len(out)-1])
}

func between(v, a, b float64) bool {
	return math.Min(a, b)-PRECISION <= v && v <= math.Max(a, b)+PRECISION
}

func (route Route) GetBoundingBox() (tl, br Point) {
	minX := math.Inf(1)
	minY := math.Inf(1)
	maxX := math.Inf(-1)
	maxY := math.Inf(-1)

	for _, p := range route {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return NewPoint(minX, minY), NewPoint(maxX, maxY)
}
