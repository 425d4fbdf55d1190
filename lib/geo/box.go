package geo

import "fmt"

type Box struct {
	TopLeft Point
	Width   float64
	Height  float64
}

func NewBox(tl Point, width, height float64) Box {
	return Box{
		TopLeft: tl,
		Width:   width,
		Height:  height,
	}
}

func (b Box) Left() float64    { return b.TopLeft.X }
func (b Box) Right() float64   { return b.TopLeft.X + b.Width }
func (b Box) Top() float64     { return b.TopLeft.Y }
func (b Box) Bottom() float64  { return b.TopLeft.Y + b.Height }
func (b Box) CenterX() float64 { return b.TopLeft.X + b.Width/2 }
func (b Box) CenterY() float64 { return b.TopLeft.Y + b.Height/2 }

func (b Box) Center() Point {
	return NewPoint(b.CenterX(), b.CenterY())
}

func (b Box) Contains(p Point) bool {
	return p.X >= b.Left() && p.X <= b.Right() && p.Y >= b.Top() && p.Y <= b.Bottom()
}

// Union returns the smallest box containing both boxes.
func (b Box) Union(o Box) Box {
	l := min(b.Left(), o.Left())
	t := min(b.Top(), o.Top())
	r := max(b.Right(), o.Right())
	btm := max(b.Bottom(), o.Bottom())
	return NewBox(NewPoint(l, t), r-l, btm-t)
}

func (b Box) ToString() string {
	return fmt.Sprintf("{TopLeft: %s, Width: %.0f, Height: %.0f}", b.TopLeft.ToString(), b.Width, b.Height)
}
