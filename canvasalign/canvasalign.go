// Package canvasalign computes alignment guides and snapped positions for a node being
// dragged across the canvas.
package canvasalign

import (
	"math"
	"sort"

	"oss.terrastruct.com/util-go/go2"

	"oss.terrastruct.com/d2canvas/canvasgraph"
	"oss.terrastruct.com/d2canvas/lib/geo"
)

type Axis string

const (
	// AxisVertical guides are vertical lines at an x coordinate.
	AxisVertical Axis = "vertical"
	// AxisHorizontal guides are horizontal lines at a y coordinate.
	AxisHorizontal Axis = "horizontal"
)

type Guide struct {
	Axis     Axis    `json:"axis"`
	Position float64 `json:"position"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
}

type Opts struct {
	Threshold      float64 `toml:"threshold"`
	GuidePadding   float64 `toml:"guide_padding"`
	MergeTolerance float64 `toml:"merge_tolerance"`
	GridSize       float64 `toml:"grid_size"`
}

var DefaultOpts = Opts{
	Threshold:      5,
	GuidePadding:   20,
	MergeTolerance: 1,
	GridSize:       15,
}

// Snapped holds the corrected coordinate of each axis that matched, nil otherwise.
type Snapped struct {
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
}

type Result struct {
	Guides []Guide `json:"guides"`
	// Snapped is nil when neither axis matched.
	Snapped *Snapped `json:"snapped,omitempty"`
}

// Apply overrides p with the snapped coordinates.
func (r Result) Apply(p geo.Point) geo.Point {
	if r.Snapped == nil {
		return p
	}
	if r.Snapped.X != nil {
		p.X = *r.Snapped.X
	}
	if r.Snapped.Y != nil {
		p.Y = *r.Snapped.Y
	}
	return p
}

// SnapToGrid moves p to the top-left corner of the grid cell containing it.
func SnapToGrid(p geo.Point, grid float64) geo.Point {
	if grid <= 0 {
		return p
	}
	return geo.NewPoint(math.Floor(p.X/grid)*grid, math.Floor(p.Y/grid)*grid)
}

func xLines(b geo.Box) [3]float64 { return [3]float64{b.Left(), b.CenterX(), b.Right()} }
func yLines(b geo.Box) [3]float64 { return [3]float64{b.Top(), b.CenterY(), b.Bottom()} }

// Compute returns the guides of dragged against others and its snapped position.
//
// Every reference line of dragged (left, center, right on x; top, center, bottom on y) is
// compared with every line of each other box on the same axis. A pair within Threshold
// yields a guide at the other box's line. The first pair found on an axis decides the
// snapped coordinate of that axis, later pairs only add guides.
//
// With shift, alignment is skipped and the position snaps to the grid instead.
func Compute(dragged geo.Box, others []geo.Box, shift bool, opts Opts) Result {
	if shift {
		p := SnapToGrid(dragged.TopLeft, opts.GridSize)
		return Result{
			Snapped: &Snapped{X: go2.Pointer(p.X), Y: go2.Pointer(p.Y)},
		}
	}

	var guides []Guide
	var snapX, snapY *float64
	for _, o := range others {
		for _, d := range xLines(dragged) {
			for _, line := range xLines(o) {
				if math.Abs(d-line) > opts.Threshold {
					continue
				}
				guides = append(guides, Guide{
					Axis:     AxisVertical,
					Position: line,
					Start:    math.Min(dragged.Top(), o.Top()) - opts.GuidePadding,
					End:      math.Max(dragged.Bottom(), o.Bottom()) + opts.GuidePadding,
				})
				if snapX == nil {
					snapX = go2.Pointer(dragged.Left() + line - d)
				}
			}
		}
		for _, d := range yLines(dragged) {
			for _, line := range yLines(o) {
				if math.Abs(d-line) > opts.Threshold {
					continue
				}
				guides = append(guides, Guide{
					Axis:     AxisHorizontal,
					Position: line,
					Start:    math.Min(dragged.Left(), o.Left()) - opts.GuidePadding,
					End:      math.Max(dragged.Right(), o.Right()) + opts.GuidePadding,
				})
				if snapY == nil {
					snapY = go2.Pointer(dragged.Top() + line - d)
				}
			}
		}
	}

	r := Result{Guides: MergeGuides(guides, opts.MergeTolerance)}
	if snapX != nil || snapY != nil {
		r.Snapped = &Snapped{X: snapX, Y: snapY}
	}
	return r
}

// MergeGuides merges guides of the same axis whose positions are within tolerance of
// each other. The merged guide spans the union of their extents. Output is ordered by
// axis (vertical first) then position.
func MergeGuides(guides []Guide, tolerance float64) []Guide {
	if len(guides) == 0 {
		return nil
	}
	sorted := append([]Guide(nil), guides...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Axis != sorted[j].Axis {
			return sorted[i].Axis == AxisVertical
		}
		return sorted[i].Position < sorted[j].Position
	})

	merged := []Guide{sorted[0]}
	for _, g := range sorted[1:] {
		last := &merged[len(merged)-1]
		if g.Axis == last.Axis && math.Abs(g.Position-last.Position) <= tolerance {
			last.Start = math.Min(last.Start, g.Start)
			last.End = math.Max(last.End, g.End)
			continue
		}
		merged = append(merged, g)
	}
	return merged
}

// ComputeForNode aligns node id of g as if its top-left corner were at proposed. The node
// itself and its descendants are not alignment targets.
func ComputeForNode(g *canvasgraph.Graph, id string, proposed canvasgraph.AbsolutePoint, shift bool, opts Opts) (Result, error) {
	n := g.Node(id)
	if n == nil {
		return Result{}, &canvasgraph.ValidationError{NodeID: id, Reason: "not found"}
	}
	w, h := n.Size()
	dragged := geo.NewBox(proposed.Point(), w, h)

	others := make([]geo.Box, 0, len(g.Nodes))
	for _, o := range g.Nodes {
		if o.ID == id || g.IsAncestor(id, o.ID) {
			continue
		}
		b, err := g.AbsoluteBox(o.ID)
		if err != nil {
			return Result{}, err
		}
		others = append(others, b)
	}
	return Compute(dragged, others, shift, opts), nil
}
