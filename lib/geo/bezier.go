package geo

import (
	"math"
)

// How precise should comparisons be, avoid being too precise due to floating point issues
const PRECISION = 0.0001

const (
	// DEFAULT_CLOSEST_SAMPLES is the uniform sample count of the coarse phase of
	// ClosestPoint.
	DEFAULT_CLOSEST_SAMPLES = 50
	// CLOSEST_REFINE_ROUNDS is the number of bracket-narrowing rounds after sampling.
	CLOSEST_REFINE_ROUNDS = 10
)

type bezierControlPoint struct {
	Point, Control Point
}

type bezierCurveImpl []bezierControlPoint

// newBezierCurveImpl precomputes the binomial weighted control points.
// Implementation based on Robert D. Miller's algorithm from Graphics Gems 5
func newBezierCurveImpl(cp ...Point) bezierCurveImpl {
	if len(cp) == 0 {
		return nil
	}
	c := make(bezierCurveImpl, len(cp))
	for i, p := range cp {
		c[i].Point = p
	}

	var w float64
	for i, p := range c {
		switch i {
		case 0:
			w = 1
		case 1:
			w = float64(len(c)) - 1
		default:
			w *= float64(len(c)-i) / float64(i)
		}
		c[i].Control.X = p.Point.X * w
		c[i].Control.Y = p.Point.Y * w
	}

	return c
}

// pointAt returns the point at t along the curve. t is not clamped: values outside [0, 1]
// extrapolate the polynomial.
func (c bezierCurveImpl) pointAt(t float64) Point {
	n := len(c)
	if n == 0 {
		return Point{}
	}
	if n == 1 {
		return c[0].Point
	}

	// terms[i] = Control[i] * t^i
	var terms [4]Point
	var buf []Point
	if n <= len(terms) {
		buf = terms[:n]
	} else {
		buf = make([]Point, n)
	}
	u := 1.
	for i := range c {
		buf[i] = NewPoint(c[i].Control.X*u, c[i].Control.Y*u)
		u *= t
	}

	t1 := 1 - t
	tt := t1
	p := buf[n-1]
	for i := n - 2; i >= 0; i-- {
		p.X += buf[i].X * tt
		p.Y += buf[i].Y * tt
		tt *= t1
	}
	return p
}

type BezierCurve struct {
	curve  bezierCurveImpl
	points []Point
}

func NewBezierCurve(points []Point) *BezierCurve {
	return &BezierCurve{
		curve:  newBezierCurveImpl(points...),
		points: append([]Point(nil), points...),
	}
}

func NewCubicBezier(p0, p1, p2, p3 Point) *BezierCurve {
	return NewBezierCurve([]Point{p0, p1, p2, p3})
}

func (bc BezierCurve) At(t float64) Point {
	return bc.curve.pointAt(t)
}

// ClosestPoint finds the parameter t whose curve point is closest to p.
//
// The search samples the curve uniformly (samples+1 evaluations), then narrows the
// bracket around the best sample for CLOSEST_REFINE_ROUNDS ternary rounds. It is cheap
// enough to run on every pointer move. samples <= 0 uses DEFAULT_CLOSEST_SAMPLES.
func (bc BezierCurve) ClosestPoint(p Point, samples int) (float64, Point) {
	if len(bc.points) == 0 {
		return 0, Point{}
	}
	if samples <= 0 {
		samples = DEFAULT_CLOSEST_SAMPLES
	}

	bestT := 0.
	bestDist := math.Inf(1)
	for i := 0; i <= samples; i++ {
		t := float64(i) / float64(samples)
		if d := p.distanceSq(bc.At(t)); d < bestDist {
			bestDist = d
			bestT = t
		}
	}

	step := 1 / float64(samples)
	low := math.Max(0, bestT-step)
	high := math.Min(1, bestT+step)
	for i := 0; i < CLOSEST_REFINE_ROUNDS; i++ {
		third := (high - low) / 3
		m1 := low + third
		m2 := high - third
		if p.distanceSq(bc.At(m1)) < p.distanceSq(bc.At(m2)) {
			high = m2
		} else {
			low = m1
		}
	}

	t := (low + high) / 2
	// Refinement can only help, but keep the sample if the bracket drifted off a plateau.
	if p.distanceSq(bc.At(t)) > bestDist {
		t = bestT
	}
	return t, bc.At(t)
}

// Length approximates the arc length with a fixed polyline of segments.
func (bc BezierCurve) Length(segments int) float64 {
	if segments <= 0 {
		segments = DEFAULT_CLOSEST_SAMPLES
	}
	l := 0.
	prev := bc.At(0)
	for i := 1; i <= segments; i++ {
		next := bc.At(float64(i) / float64(segments))
		l += prev.DistanceTo(next)
		prev = next
	}
	return l
}

// PointOnCubicBezier evaluates the cubic p0..p3 at t without clamping.
func PointOnCubicBezier(t float64, p0, p1, p2, p3 Point) Point {
	mt := 1 - t
	a := mt * mt * mt
	b := 3 * mt * mt * t
	c := 3 * mt * t * t
	d := t * t * t
	return NewPoint(
		a*p0.X+b*p1.X+c*p2.X+d*p3.X,
		a*p0.Y+b*p1.Y+c*p2.Y+d*p3.Y,
	)
}

// ClosestPointOnBezier is ClosestPoint on the cubic p0..p3.
func ClosestPointOnBezier(p, p0, p1, p2, p3 Point, samples int) (float64, Point) {
	return NewCubicBezier(p0, p1, p2, p3).ClosestPoint(p, samples)
}
