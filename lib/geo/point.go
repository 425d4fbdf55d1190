package geo

import (
	"fmt"
	"math"
)

// Point is an immutable 2D coordinate. Every operation returns a new Point.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func NewPoint(x, y float64) Point {
	return Point{X: x, Y: y}
}

func (p1 Point) Equals(p2 Point) bool {
	return (p1.X == p2.X) && (p1.Y == p2.Y)
}

// ApproxEquals compares with PRECISION tolerance on both axes.
func (p1 Point) ApproxEquals(p2 Point) bool {
	return PrecisionCompare(p1.X, p2.X, PRECISION) == 0 && PrecisionCompare(p1.Y, p2.Y, PRECISION) == 0
}

func (p Point) Add(dx, dy float64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

func (p Point) DistanceTo(o Point) float64 {
	return EuclideanDistance(p.X, p.Y, o.X, o.Y)
}

// squared distance, for comparisons on hot paths
func (p Point) distanceSq(o Point) float64 {
	dx := p.X - o.X
	dy := p.Y - o.Y
	return dx*dx + dy*dy
}

// DistanceToSegment is the distance from p to the closest point of ab.
func (p Point) DistanceToSegment(a, b Point) float64 {
	closest, _ := ClosestPointOnSegment(p, a, b)
	return p.DistanceTo(closest)
}

func (p Point) ToString() string {
	return fmt.Sprintf("(%v, %v)", p.X, p.Y)
}

// Transpose swaps the axes, letting vertical cases reuse horizontal code.
func (p Point) Transpose() Point {
	return Point{X: p.Y, Y: p.X}
}

// point t% of the way between a and b
func (a Point) Interpolate(b Point, t float64) Point {
	return NewPoint(
		a.X*(1.0-t)+b.X*t,
		a.Y*(1.0-t)+b.Y*t,
	)
}

// Round rounds both coordinates to 3 decimals so path strings stay stable across machines.
func (p Point) Round() Point {
	return Point{X: roundDecimals(p.X), Y: roundDecimals(p.Y)}
}

func roundDecimals(v float64) float64 {
	return math.Round(v*1000) / 1000
}
