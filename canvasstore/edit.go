// Package canvasstore owns the canonical diagram graph. The package-level functions are
// pure edits: each one copies the graph, applies one mutation and validates the result,
// returning the new graph or an error with the input untouched. Store sequences them and
// publishes snapshots.
package canvasstore

import (
	"fmt"

	"github.com/google/uuid"
	"oss.terrastruct.com/util-go/go2"
	"oss.terrastruct.com/util-go/xdefer"

	"oss.terrastruct.com/d2canvas/canvasgraph"
	"oss.terrastruct.com/d2canvas/lib/geo"
)

// NewID returns a fresh node or edge id.
func NewID() string {
	return uuid.NewString()
}

func commit(g *canvasgraph.Graph) (*canvasgraph.Graph, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// AddNode appends n. An empty id is replaced with a fresh one.
func AddNode(g *canvasgraph.Graph, n *canvasgraph.Node) (_ *canvasgraph.Graph, id string, err error) {
	defer xdefer.Errorf(&err, "failed to add node %#v", n.ID)

	g = g.Copy()
	n = n.Copy()
	if n.ID == "" {
		n.ID = NewID()
	}
	g.Nodes = append(g.Nodes, n)
	g, err = commit(g)
	if err != nil {
		return nil, "", err
	}
	return g, n.ID, nil
}

// DeleteNode removes id and every edge referencing it. Children of a deleted group move
// to the canvas root, keeping their absolute position.
func DeleteNode(g *canvasgraph.Graph, id string) (_ *canvasgraph.Graph, err error) {
	defer xdefer.Errorf(&err, "failed to delete node %#v", id)

	if g.Node(id) == nil {
		return nil, fmt.Errorf("node %q not found", id)
	}

	orig := g
	g = g.Copy()
	nodes := g.Nodes[:0]
	for _, n := range g.Nodes {
		if n.ID == id {
			continue
		}
		if n.ParentID == id {
			abs, err := orig.AbsolutePosition(n.ID)
			if err != nil {
				return nil, err
			}
			n.Position = canvasgraph.RelativePoint(abs)
			n.ParentID = ""
		}
		nodes = append(nodes, n)
	}
	g.Nodes = nodes

	edges := g.Edges[:0]
	for _, e := range g.Edges {
		if e.Source == id || e.Target == id {
			continue
		}
		edges = append(edges, e)
	}
	g.Edges = edges
	return commit(g)
}

func AddEdge(g *canvasgraph.Graph, e *canvasgraph.Edge) (_ *canvasgraph.Graph, id string, err error) {
	defer xdefer.Errorf(&err, "failed to add edge %#v", e.ID)

	g = g.Copy()
	e = e.Copy()
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.Type == "" {
		e.Type = canvasgraph.EdgeSmartOrthogonal
	}
	g.Edges = append(g.Edges, e)
	g, err = commit(g)
	if err != nil {
		return nil, "", err
	}
	return g, e.ID, nil
}

func DeleteEdge(g *canvasgraph.Graph, id string) (_ *canvasgraph.Graph, err error) {
	defer xdefer.Errorf(&err, "failed to delete edge %#v", id)

	i := g.EdgeIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("edge %q not found", id)
	}
	g = g.Copy()
	g.Edges = append(g.Edges[:i], g.Edges[i+1:]...)
	return g, nil
}

// UpdateEdge applies fn to a copy of edge id. fn may not change the id.
func UpdateEdge(g *canvasgraph.Graph, id string, fn func(*canvasgraph.Edge)) (_ *canvasgraph.Graph, err error) {
	defer xdefer.Errorf(&err, "failed to update edge %#v", id)

	if g.Edge(id) == nil {
		return nil, fmt.Errorf("edge %q not found", id)
	}
	g = g.Copy()
	e := g.Edge(id)
	fn(e)
	if e.ID != id {
		return nil, fmt.Errorf("cannot change edge id to %q", e.ID)
	}
	return commit(g)
}

// Connection describes an edge drawn by a connect gesture.
type Connection struct {
	Source       string
	SourceHandle string
	Target       string
	TargetHandle string
	Type         canvasgraph.EdgeType
}

// Connect creates an animated edge with a fresh id. Unset handles default to the side
// for the role.
func Connect(g *canvasgraph.Graph, c Connection) (_ *canvasgraph.Graph, id string, err error) {
	defer xdefer.Errorf(&err, "failed to connect %#v to %#v", c.Source, c.Target)

	if c.SourceHandle == "" {
		c.SourceHandle = canvasgraph.FormatHandle(canvasgraph.RoleSource.DefaultSide(), canvasgraph.RoleSource, canvasgraph.CENTER_SLOT)
	}
	if c.TargetHandle == "" {
		c.TargetHandle = canvasgraph.FormatHandle(canvasgraph.RoleTarget.DefaultSide(), canvasgraph.RoleTarget, canvasgraph.CENTER_SLOT)
	}
	return AddEdge(g, &canvasgraph.Edge{
		Source:       c.Source,
		Target:       c.Target,
		SourceHandle: c.SourceHandle,
		TargetHandle: c.TargetHandle,
		Type:         c.Type,
		Animated:     true,
	})
}

// Change is a partial node update. Nil fields are left as they are.
type Change struct {
	NodeID   string
	Position *canvasgraph.RelativePoint
	Width    *float64
	Height   *float64
}

func ApplyChange(g *canvasgraph.Graph, c Change) (_ *canvasgraph.Graph, err error) {
	defer xdefer.Errorf(&err, "failed to change node %#v", c.NodeID)

	if g.Node(c.NodeID) == nil {
		return nil, fmt.Errorf("node %q not found", c.NodeID)
	}
	if c.Width != nil && *c.Width <= 0 {
		return nil, fmt.Errorf("width must be positive, got %v", *c.Width)
	}
	if c.Height != nil && *c.Height <= 0 {
		return nil, fmt.Errorf("height must be positive, got %v", *c.Height)
	}
	g = g.Copy()
	n := g.Node(c.NodeID)
	if c.Position != nil {
		n.Position = *c.Position
	}
	if c.Width != nil {
		n.Width = *c.Width
	}
	if c.Height != nil {
		n.Height = *c.Height
	}
	return commit(g)
}

// MoveNode places id at the canvas position p, converting it into the node's frame.
func MoveNode(g *canvasgraph.Graph, id string, p canvasgraph.AbsolutePoint) (*canvasgraph.Graph, error) {
	n := g.Node(id)
	if n == nil {
		return nil, fmt.Errorf("failed to move node %#v: node %q not found", id, id)
	}
	rel, err := g.ToRelative(p, n.ParentID)
	if err != nil {
		return nil, fmt.Errorf("failed to move node %#v: %w", id, err)
	}
	return ApplyChange(g, Change{NodeID: id, Position: &rel})
}

// SetParent moves id into group parentID, or to the canvas when parentID is empty. The
// node keeps its absolute position.
func SetParent(g *canvasgraph.Graph, id, parentID string) (_ *canvasgraph.Graph, err error) {
	defer xdefer.Errorf(&err, "failed to set parent of %#v to %#v", id, parentID)

	if g.Node(id) == nil {
		return nil, fmt.Errorf("node %q not found", id)
	}
	if parentID != "" {
		parent := g.Node(parentID)
		if parent == nil {
			return nil, fmt.Errorf("group %q not found", parentID)
		}
		if !parent.IsGroup() {
			return nil, fmt.Errorf("%q is not a group", parentID)
		}
		if parentID == id || g.IsAncestor(id, parentID) {
			return nil, fmt.Errorf("%q is inside %q", parentID, id)
		}
	}

	abs, err := g.AbsolutePosition(id)
	if err != nil {
		return nil, err
	}
	rel, err := g.ToRelative(abs, parentID)
	if err != nil {
		return nil, err
	}
	g = g.Copy()
	n := g.Node(id)
	n.ParentID = parentID
	n.Position = rel
	return commit(g)
}

// Group adds group and moves members into it. A group added with no size is fitted
// around its members with padding.
func Group(g *canvasgraph.Graph, group *canvasgraph.Node, members []string, padding float64) (_ *canvasgraph.Graph, id string, err error) {
	defer xdefer.Errorf(&err, "failed to group %v", members)

	if !group.IsGroup() {
		return nil, "", fmt.Errorf("node %q is not a group", group.ID)
	}
	group = group.Copy()
	if group.Width <= 0 || group.Height <= 0 {
		var bb *geo.Box
		for _, m := range members {
			b, err := g.AbsoluteBox(m)
			if err != nil {
				return nil, "", err
			}
			if bb != nil {
				b = bb.Union(b)
			}
			bb = &b
		}
		if bb != nil {
			rel, err := g.ToRelative(canvasgraph.Abs(bb.TopLeft.X-padding, bb.TopLeft.Y-padding), group.ParentID)
			if err != nil {
				return nil, "", err
			}
			group.Position = rel
			group.Width = bb.Width + 2*padding
			group.Height = bb.Height + 2*padding
		}
	}

	g, id, err = AddNode(g, group)
	if err != nil {
		return nil, "", err
	}
	for _, m := range members {
		g, err = SetParent(g, m, id)
		if err != nil {
			return nil, "", err
		}
	}
	return g, id, nil
}

// Ungroup removes group id, releasing its children onto the canvas root.
func Ungroup(g *canvasgraph.Graph, id string) (*canvasgraph.Graph, error) {
	n := g.Node(id)
	if n == nil || !n.IsGroup() {
		return nil, fmt.Errorf("failed to ungroup %#v: group %q not found", id, id)
	}
	return DeleteNode(g, id)
}

func SetNodeLabel(g *canvasgraph.Graph, id, label string) (_ *canvasgraph.Graph, err error) {
	defer xdefer.Errorf(&err, "failed to set label of node %#v", id)

	if g.Node(id) == nil {
		return nil, fmt.Errorf("node %q not found", id)
	}
	g = g.Copy()
	n := g.Node(id)
	switch d := n.Data.(type) {
	case canvasgraph.GroupData:
		d.Label = label
		n.Data = d
	case canvasgraph.ServiceData:
		d.Label = label
		n.Data = d
	case nil:
		n.Data = canvasgraph.ServiceData{Label: label}
	default:
		return nil, fmt.Errorf("unexpected payload %T", d)
	}
	return g, nil
}

func SetEdgeLabel(g *canvasgraph.Graph, id, label string) (*canvasgraph.Graph, error) {
	return UpdateEdge(g, id, func(e *canvasgraph.Edge) {
		e.Label = label
	})
}

func SetEdgeType(g *canvasgraph.Graph, id string, t canvasgraph.EdgeType) (*canvasgraph.Graph, error) {
	for _, known := range canvasgraph.EdgeTypes {
		if known == t {
			return UpdateEdge(g, id, func(e *canvasgraph.Edge) {
				e.Type = t
			})
		}
	}
	return nil, fmt.Errorf("failed to update edge %#v: unknown edge type %q", id, t)
}

// SetControlPoint stores the control point override of one end of edge id, relative to
// that endpoint. A nil offset clears it.
func SetControlPoint(g *canvasgraph.Graph, id string, role canvasgraph.Role, offset *geo.Point) (*canvasgraph.Graph, error) {
	return UpdateEdge(g, id, func(e *canvasgraph.Edge) {
		cp := e.Routing.ControlPoints
		if cp == nil {
			cp = &canvasgraph.ControlPoints{}
		}
		var p *geo.Point
		if offset != nil {
			p = go2.Pointer(*offset)
		}
		if role == canvasgraph.RoleSource {
			cp.Source = p
		} else {
			cp.Target = p
		}
		if cp.IsEmpty() {
			cp = nil
		}
		e.Routing.ControlPoints = cp
	})
}

// ResetControlPoints drops both overrides of edge id, reverting to the default curve.
func ResetControlPoints(g *canvasgraph.Graph, id string) (*canvasgraph.Graph, error) {
	return UpdateEdge(g, id, func(e *canvasgraph.Edge) {
		e.Routing.ControlPoints = nil
	})
}

// SetLabelT moves the label of edge id to parameter t, clamped to [0, 1].
func SetLabelT(g *canvasgraph.Graph, id string, t float64) (*canvasgraph.Graph, error) {
	t = go2.Max(0, go2.Min(1, t))
	return UpdateEdge(g, id, func(e *canvasgraph.Edge) {
		e.Routing.LabelT = go2.Pointer(t)
	})
}

// ApplyLayout takes node positions and edge lanes from laidOut for the nodes and edges
// that still exist in g. Anything created or deleted since laidOut was computed is left
// alone.
func ApplyLayout(g, laidOut *canvasgraph.Graph) (_ *canvasgraph.Graph, err error) {
	defer xdefer.Errorf(&err, "failed to apply layout")

	g = g.Copy()
	for _, n := range laidOut.Nodes {
		if target := g.Node(n.ID); target != nil && target.ParentID == n.ParentID {
			target.Position = n.Position
		}
	}
	for _, e := range laidOut.Edges {
		if target := g.Edge(e.ID); target != nil {
			target.Routing.Lane = e.Routing.Lane
			target.Routing.TotalLanes = e.Routing.TotalLanes
		}
	}
	return commit(g)
}

// Replace validates and returns a copy of next, for loading a template or an import.
func Replace(next *canvasgraph.Graph) (_ *canvasgraph.Graph, err error) {
	defer xdefer.Errorf(&err, "failed to replace graph")
	return commit(next.Copy())
}
