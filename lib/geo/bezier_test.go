package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointOnCubicBezierEndpoints(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name           string
		p0, p1, p2, p3 Point
	}{
		{"s_curve", NewPoint(0, 0), NewPoint(50, 0), NewPoint(50, 100), NewPoint(100, 100)},
		{"loop", NewPoint(10, 10), NewPoint(200, -50), NewPoint(-100, -50), NewPoint(90, 10)},
		{"degenerate", NewPoint(3, 3), NewPoint(3, 3), NewPoint(3, 3), NewPoint(3, 3)},
		{"fractional", NewPoint(0.1, 0.7), NewPoint(13.3, 2.9), NewPoint(7.7, 19.1), NewPoint(101.3, 55.5)},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.p0, PointOnCubicBezier(0, tc.p0, tc.p1, tc.p2, tc.p3))
			assert.Equal(t, tc.p3, PointOnCubicBezier(1, tc.p0, tc.p1, tc.p2, tc.p3))

			bc := NewCubicBezier(tc.p0, tc.p1, tc.p2, tc.p3)
			assert.True(t, bc.At(0).ApproxEquals(tc.p0))
			assert.True(t, bc.At(1).ApproxEquals(tc.p3))
			for i := 0; i <= 20; i++ {
				u := float64(i) / 20
				assert.True(t, bc.At(u).ApproxEquals(PointOnCubicBezier(u, tc.p0, tc.p1, tc.p2, tc.p3)))
			}
		})
	}
}

func TestPointOnCubicBezierExtrapolates(t *testing.T) {
	// A straight cubic with evenly spaced control points is linear in t.
	p := PointOnCubicBezier(2, NewPoint(0, 0), NewPoint(1, 0), NewPoint(2, 0), NewPoint(3, 0))
	assert.InDelta(t, 6, p.X, PRECISION)
}

func bruteForceClosest(p, p0, p1, p2, p3 Point) (float64, Point) {
	const steps = 100000
	bestT := 0.
	best := p0
	bestDist := math.Inf(1)
	for i := 0; i <= steps; i++ {
		u := float64(i) / steps
		q := PointOnCubicBezier(u, p0, p1, p2, p3)
		if d := p.DistanceTo(q); d < bestDist {
			bestDist = d
			bestT = u
			best = q
		}
	}
	return bestT, best
}

func TestClosestPointOnBezier(t *testing.T) {
	t.Parallel()

	p0 := NewPoint(0, 0)
	p1 := NewPoint(0, 120)
	p2 := NewPoint(200, 120)
	p3 := NewPoint(200, 240)

	queries := []Point{
		NewPoint(100, 120),
		NewPoint(-30, 10),
		NewPoint(250, 250),
		NewPoint(40, 90),
		NewPoint(160, 150),
		NewPoint(100, 0),
	}

	for _, q := range queries {
		q := q
		t.Run(q.ToString(), func(t *testing.T) {
			t.Parallel()

			expT, expP := bruteForceClosest(q, p0, p1, p2, p3)
			gotT, gotP := ClosestPointOnBezier(q, p0, p1, p2, p3, 0)
			assert.InDelta(t, expT, gotT, 0.001)
			assert.InDelta(t, q.DistanceTo(expP), q.DistanceTo(gotP), 0.01)
			assert.GreaterOrEqual(t, gotT, 0.)
			assert.LessOrEqual(t, gotT, 1.)
		})
	}
}

func TestClosestPointOnBezierImprovesWithSamples(t *testing.T) {
	p0 := NewPoint(0, 0)
	p1 := NewPoint(300, 0)
	p2 := NewPoint(-200, 200)
	p3 := NewPoint(100, 200)
	q := NewPoint(60, 90)

	_, exp := bruteForceClosest(q, p0, p1, p2, p3)
	bc := NewCubicBezier(p0, p1, p2, p3)
	_, coarse := bc.ClosestPoint(q, 4)
	_, fine := bc.ClosestPoint(q, 200)
	assert.LessOrEqual(t, fine.DistanceTo(exp), coarse.DistanceTo(exp)+PRECISION)
}

func TestClosestPointOnDegenerateBezier(t *testing.T) {
	p := NewPoint(7, 7)
	gotT, gotP := ClosestPointOnBezier(NewPoint(100, 100), p, p, p, p, 50)
	assert.True(t, gotP.ApproxEquals(p))
	assert.GreaterOrEqual(t, gotT, 0.)
	assert.LessOrEqual(t, gotT, 1.)
}

func TestBezierLength(t *testing.T) {
	bc := NewCubicBezier(NewPoint(0, 0), NewPoint(10, 0), NewPoint(20, 0), NewPoint(30, 0))
	assert.InDelta(t, 30, bc.Length(0), PRECISION)
}
