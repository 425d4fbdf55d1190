package svg

import (
	"fmt"
	"math"
	"strings"

	"oss.terrastruct.com/d2canvas/lib/geo"
)

// SvgPathContext accumulates path commands. Coordinates are rounded so the same route
// always renders to the same string.
type SvgPathContext struct {
	Commands []string
	Start    geo.Point
	Current  geo.Point
	TopLeft  geo.Point
	ScaleX   float64
	ScaleY   float64
}

func chopPrecision(f float64) float64 {
	f = math.Round(f*1000) / 1000
	if f == 0 {
		// -0 prints as "-0"
		return 0
	}
	return f
}

func NewSVGPathContext(tl geo.Point, sx, sy float64) *SvgPathContext {
	return &SvgPathContext{TopLeft: tl, ScaleX: sx, ScaleY: sy}
}

// NewAbsolutePathContext is a context whose coordinates are canvas coordinates.
func NewAbsolutePathContext() *SvgPathContext {
	return NewSVGPathContext(geo.Point{}, 1, 1)
}

func (c *SvgPathContext) Relative(base geo.Point, dx, dy float64) geo.Point {
	return geo.NewPoint(chopPrecision(base.X+c.ScaleX*dx), chopPrecision(base.Y+c.ScaleY*dy))
}

func (c *SvgPathContext) Absolute(x, y float64) geo.Point {
	return c.Relative(c.TopLeft, x, y)
}

func (c *SvgPathContext) StartAt(p geo.Point) {
	p = c.Absolute(p.X, p.Y)
	c.Start = p
	c.Commands = append(c.Commands, fmt.Sprintf("M %v %v", p.X, p.Y))
	c.Current = p
}

func (c *SvgPathContext) Z() {
	c.Commands = append(c.Commands, "Z")
	c.Current = c.Start
}

func (c *SvgPathContext) point(isLowerCase bool, x, y float64) geo.Point {
	if isLowerCase {
		return c.Relative(c.Current, x, y)
	}
	return c.Absolute(x, y)
}

func (c *SvgPathContext) L(isLowerCase bool, x, y float64) {
	endPoint := c.point(isLowerCase, x, y)
	c.Commands = append(c.Commands, fmt.Sprintf("L %v %v", endPoint.X, endPoint.Y))
	c.Current = endPoint
}

// LineTo is L with an absolute point.
func (c *SvgPathContext) LineTo(p geo.Point) {
	c.L(false, p.X, p.Y)
}

func (c *SvgPathContext) C(isLowerCase bool, x1, y1, x2, y2, x3, y3 float64) {
	points := []geo.Point{
		c.point(isLowerCase, x1, y1),
		c.point(isLowerCase, x2, y2),
		c.point(isLowerCase, x3, y3),
	}
	c.Commands = append(c.Commands, fmt.Sprintf(
		"C %v %v %v %v %v %v",
		points[0].X, points[0].Y,
		points[1].X, points[1].Y,
		points[2].X, points[2].Y,
	))
	c.Current = points[2]
}

// CurveTo is C with absolute points.
func (c *SvgPathContext) CurveTo(cp1, cp2, end geo.Point) {
	c.C(false, cp1.X, cp1.Y, cp2.X, cp2.Y, end.X, end.Y)
}

// Q is a quadratic curve, used for rounded corners.
func (c *SvgPathContext) Q(isLowerCase bool, x1, y1, x2, y2 float64) {
	cp := c.point(isLowerCase, x1, y1)
	endPoint := c.point(isLowerCase, x2, y2)
	c.Commands = append(c.Commands, fmt.Sprintf("Q %v %v %v %v", cp.X, cp.Y, endPoint.X, endPoint.Y))
	c.Current = endPoint
}

func (c *SvgPathContext) H(isLowerCase bool, x float64) {
	var endPoint geo.Point
	if isLowerCase {
		endPoint = c.Relative(c.Current, x, 0)
	} else {
		endPoint = c.Absolute(x, 0)
		endPoint.Y = c.Current.Y
	}
	c.Commands = append(c.Commands, fmt.Sprintf("H %v", endPoint.X))
	c.Current = endPoint
}

func (c *SvgPathContext) V(isLowerCase bool, y float64) {
	var endPoint geo.Point
	if isLowerCase {
		endPoint = c.Relative(c.Current, 0, y)
	} else {
		endPoint = c.Absolute(0, y)
		endPoint.X = c.Current.X
	}
	c.Commands = append(c.Commands, fmt.Sprintf("V %v", endPoint.Y))
	c.Current = endPoint
}

func (c *SvgPathContext) PathData() string {
	return strings.Join(c.Commands, " ")
}

// PolylinePath renders points as M followed by L commands.
func PolylinePath(points []geo.Point) string {
	if len(points) == 0 {
		return ""
	}
	pc := NewAbsolutePathContext()
	pc.StartAt(points[0])
	for _, p := range points[1:] {
		pc.LineTo(p)
	}
	return pc.PathData()
}
