package geo

import (
	"fmt"
)

type Segment struct {
	Start Point
	End   Point
}

func NewSegment(from, to Point) Segment {
	return Segment{from, to}
}

func (s Segment) ToString() string {
	return fmt.Sprintf("%v -> %v", s.Start.ToString(), s.End.ToString())
}

func (segment Segment) Length() float64 {
	return EuclideanDistance(segment.Start.X, segment.Start.Y, segment.End.X, segment.End.Y)
}

func (segment Segment) IsHorizontal() bool {
	return segment.Start.Y == segment.End.Y
}

func (segment Segment) IsVertical() bool {
	return segment.Start.X == segment.End.X
}

func (segment Segment) Midpoint() Point {
	return segment.Start.Interpolate(segment.End, 0.5)
}

// ClosestPointOnSegment projects p onto ab. t is the clamped parameter in [0, 1] with
// a at t=0. A degenerate segment (a == b) returns a with t=0.
func ClosestPointOnSegment(p, a, b Point) (Point, float64) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return a, 0
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = Clamp(t, 0, 1)
	return NewPoint(a.X+t*dx, a.Y+t*dy), t
}
