package geo

import (
	"testing"
)

func TestPointDistanceToSegment(t *testing.T) {
	p1 := Point{0, 0}
	p2 := Point{100, 0}

	testCases := []struct {
		p   Point
		exp float64
	}{
		{Point{50, 70}, 70},
		{Point{-30, 40}, 50},
		{Point{100, 0}, 0},
	}
	for _, tc := range testCases {
		d := tc.p.DistanceToSegment(p1, p2)
		if PrecisionCompare(d, tc.exp, PRECISION) != 0 {
			t.Fatalf("%v: expected %v and got %v", tc.p.ToString(), tc.exp, d)
		}
	}
}

func TestPointImmutable(t *testing.T) {
	p := NewPoint(1, 2)
	q := p.Add(3, 4)
	if !p.Equals(NewPoint(1, 2)) {
		t.Fatalf("Add mutated receiver: %v", p)
	}
	if !q.Equals(NewPoint(4, 6)) {
		t.Fatalf("expected (4, 6), got %v", q)
	}
	if !p.Transpose().Equals(NewPoint(2, 1)) {
		t.Fatalf("expected (2, 1), got %v", p.Transpose())
	}
	if !q.Sub(p).Equals(NewPoint(3, 4)) {
		t.Fatalf("expected (3, 4), got %v", q.Sub(p))
	}
}

func TestPointRound(t *testing.T) {
	p := NewPoint(1.23456, -0.0004).Round()
	if !p.Equals(NewPoint(1.235, 0)) {
		t.Fatalf("expected (1.235, 0), got %v", p)
	}
}
