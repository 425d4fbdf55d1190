package canvasgraph

import (
	"fmt"

	"oss.terrastruct.com/d2canvas/lib/geo"
)

// RelativePoint is a position in the frame of a node's parent group, or of the canvas for
// root nodes.
type RelativePoint geo.Point

// AbsolutePoint is a position in the canvas frame.
type AbsolutePoint geo.Point

func Rel(x, y float64) RelativePoint {
	return RelativePoint{X: x, Y: y}
}

func Abs(x, y float64) AbsolutePoint {
	return AbsolutePoint{X: x, Y: y}
}

func (p RelativePoint) Point() geo.Point { return geo.Point(p) }
func (p AbsolutePoint) Point() geo.Point { return geo.Point(p) }

// AbsolutePosition walks the parent chain of id, summing relative positions.
func (g *Graph) AbsolutePosition(id string) (AbsolutePoint, error) {
	n := g.Node(id)
	if n == nil {
		return AbsolutePoint{}, fmt.Errorf("node %q not found", id)
	}
	p := n.Position.Point()
	seen := map[string]struct{}{n.ID: {}}
	for n.ParentID != "" {
		parent := g.Node(n.ParentID)
		if parent == nil {
			return AbsolutePoint{}, &ValidationError{NodeID: n.ID, Reason: fmt.Sprintf("parent %q not found", n.ParentID)}
		}
		if _, ok := seen[parent.ID]; ok {
			return AbsolutePoint{}, &ValidationError{NodeID: id, Reason: "parent cycle"}
		}
		seen[parent.ID] = struct{}{}
		p = p.Add(parent.Position.X, parent.Position.Y)
		n = parent
	}
	return AbsolutePoint(p), nil
}

// ToRelative converts an absolute position into the frame of parentID. The empty parent
// is the canvas.
func (g *Graph) ToRelative(p AbsolutePoint, parentID string) (RelativePoint, error) {
	if parentID == "" {
		return RelativePoint(p), nil
	}
	origin, err := g.AbsolutePosition(parentID)
	if err != nil {
		return RelativePoint{}, err
	}
	return RelativePoint(p.Point().Sub(origin.Point())), nil
}

// AbsoluteBox is the bounding box of id in the canvas frame.
func (g *Graph) AbsoluteBox(id string) (geo.Box, error) {
	p, err := g.AbsolutePosition(id)
	if err != nil {
		return geo.Box{}, err
	}
	w, h := g.Node(id).Size()
	return geo.NewBox(p.Point(), w, h), nil
}
