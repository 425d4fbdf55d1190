// Package canvasgraph is the diagram model shared by the alignment, routing, layout and
// store packages: nodes with a tagged payload, edges between node handles, and the
// relative/absolute coordinate frames of grouped nodes.
package canvasgraph

import (
	"context"
	"fmt"

	"oss.terrastruct.com/d2canvas/lib/geo"
)

const DEFAULT_NODE_WIDTH = 160.
const DEFAULT_NODE_HEIGHT = 64.

type Graph struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

func NewGraph() *Graph {
	return &Graph{}
}

type LayoutGraph func(context.Context, *Graph) error

type NodeKind string

const (
	KindService NodeKind = "service"
	KindGroup   NodeKind = "group"
)

// Payload is the kind-specific data of a node. It is either ServiceData or GroupData.
type Payload interface {
	Kind() NodeKind
	DisplayLabel() string
	copyPayload() Payload
}

type ServiceData struct {
	ServiceID string `json:"serviceId"`
	Label     string `json:"label"`
	Category  string `json:"category,omitempty"`
}

func (ServiceData) Kind() NodeKind { return KindService }

func (d ServiceData) DisplayLabel() string {
	if d.Label != "" {
		return d.Label
	}
	return d.ServiceID
}

func (d ServiceData) copyPayload() Payload { return d }

type GroupData struct {
	ZoneID string `json:"zoneId"`
	Label  string `json:"label"`
}

func (GroupData) Kind() NodeKind { return KindGroup }

func (d GroupData) DisplayLabel() string {
	if d.Label != "" {
		return d.Label
	}
	return d.ZoneID
}

func (d GroupData) copyPayload() Payload { return d }

type Node struct {
	ID string `json:"id"`
	// Position is relative to the parent group, or the canvas when ParentID is empty.
	Position RelativePoint `json:"position"`
	Width    float64       `json:"width"`
	Height   float64       `json:"height"`
	ParentID string        `json:"parentId,omitempty"`
	Data     Payload       `json:"data"`
}

func NewServiceNode(id string, pos RelativePoint, data ServiceData) *Node {
	return &Node{
		ID:       id,
		Position: pos,
		Width:    DEFAULT_NODE_WIDTH,
		Height:   DEFAULT_NODE_HEIGHT,
		Data:     data,
	}
}

func NewGroupNode(id string, pos RelativePoint, width, height float64, data GroupData) *Node {
	return &Node{
		ID:       id,
		Position: pos,
		Width:    width,
		Height:   height,
		Data:     data,
	}
}

func (n *Node) Kind() NodeKind {
	if n.Data == nil {
		return KindService
	}
	return n.Data.Kind()
}

func (n *Node) IsGroup() bool {
	return n.Kind() == KindGroup
}

func (n *Node) Label() string {
	if n.Data == nil {
		return n.ID
	}
	if l := n.Data.DisplayLabel(); l != "" {
		return l
	}
	return n.ID
}

// Size returns the node dimensions, with defaults for unset ones.
func (n *Node) Size() (float64, float64) {
	w, h := n.Width, n.Height
	if w <= 0 {
		w = DEFAULT_NODE_WIDTH
	}
	if h <= 0 {
		h = DEFAULT_NODE_HEIGHT
	}
	return w, h
}

type EdgeType string

const (
	EdgeBezier          EdgeType = "bezier"
	EdgeEditableBezier  EdgeType = "editableBezier"
	EdgeSmartOrthogonal EdgeType = "smartOrthogonal"
	EdgePCB             EdgeType = "pcb"
	EdgeStraight        EdgeType = "straight"
	EdgeSmoothstep      EdgeType = "smoothstep"
)

var EdgeTypes = []EdgeType{
	EdgeBezier,
	EdgeEditableBezier,
	EdgeSmartOrthogonal,
	EdgePCB,
	EdgeStraight,
	EdgeSmoothstep,
}

// UsesLanes reports whether the renderer of t separates parallel edges by lane.
func (t EdgeType) UsesLanes() bool {
	switch t {
	case EdgeSmartOrthogonal, EdgePCB, EdgeSmoothstep:
		return true
	}
	return false
}

type Edge struct {
	ID           string      `json:"id"`
	Source       string      `json:"source"`
	Target       string      `json:"target"`
	SourceHandle string      `json:"sourceHandle,omitempty"`
	TargetHandle string      `json:"targetHandle,omitempty"`
	Type         EdgeType    `json:"type"`
	Label        string      `json:"label,omitempty"`
	Animated     bool        `json:"animated"`
	Routing      RoutingData `json:"routing"`
}

// RoutingData is the renderer-specific state of an edge.
type RoutingData struct {
	// ControlPoints are user overrides of the editable bezier, relative to their endpoint.
	ControlPoints *ControlPoints `json:"controlPoints,omitempty"`
	Lane          int            `json:"lane"`
	TotalLanes    int            `json:"totalLanes"`
	// LabelT is the label position along the edge in [0, 1]. nil means the renderer default.
	LabelT *float64 `json:"labelT,omitempty"`
}

type ControlPoints struct {
	Source *geo.Point `json:"source,omitempty"`
	Target *geo.Point `json:"target,omitempty"`
}

func (cp *ControlPoints) IsEmpty() bool {
	return cp == nil || (cp.Source == nil && cp.Target == nil)
}

func (e *Edge) SourceHandleInfo() Handle {
	return ParseHandle(e.SourceHandle, RoleSource)
}

func (e *Edge) TargetHandleInfo() Handle {
	return ParseHandle(e.TargetHandle, RoleTarget)
}

func (g *Graph) Node(id string) *Node {
	if i := g.NodeIndex(id); i >= 0 {
		return g.Nodes[i]
	}
	return nil
}

func (g *Graph) Edge(id string) *Edge {
	if i := g.EdgeIndex(id); i >= 0 {
		return g.Edges[i]
	}
	return nil
}

func (g *Graph) NodeIndex(id string) int {
	for i, n := range g.Nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func (g *Graph) EdgeIndex(id string) int {
	for i, e := range g.Edges {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Children returns the direct children of id in graph order.
func (g *Graph) Children(id string) []*Node {
	var children []*Node
	for _, n := range g.Nodes {
		if n.ParentID == id && n.ID != id {
			children = append(children, n)
		}
	}
	return children
}

// RootNodes returns the nodes without a parent.
func (g *Graph) RootNodes() []*Node {
	return g.Children("")
}

// EdgesOf returns every edge with id as an endpoint.
func (g *Graph) EdgesOf(id string) []*Edge {
	var edges []*Edge
	for _, e := range g.Edges {
		if e.Source == id || e.Target == id {
			edges = append(edges, e)
		}
	}
	return edges
}

// RootAncestor returns the root-level node that contains id, id itself when it has no
// parent.
func (g *Graph) RootAncestor(id string) (*Node, error) {
	n := g.Node(id)
	if n == nil {
		return nil, fmt.Errorf("node %q not found", id)
	}
	seen := map[string]struct{}{}
	for n.ParentID != "" {
		if _, ok := seen[n.ID]; ok {
			return nil, &ValidationError{NodeID: id, Reason: "parent cycle"}
		}
		seen[n.ID] = struct{}{}
		p := g.Node(n.ParentID)
		if p == nil {
			return nil, &ValidationError{NodeID: n.ID, Reason: fmt.Sprintf("parent %q not found", n.ParentID)}
		}
		n = p
	}
	return n, nil
}

// IsAncestor reports whether ancestor contains id, directly or transitively.
func (g *Graph) IsAncestor(ancestor, id string) bool {
	n := g.Node(id)
	for i := 0; n != nil && n.ParentID != "" && i <= len(g.Nodes); i++ {
		if n.ParentID == ancestor {
			return true
		}
		n = g.Node(n.ParentID)
	}
	return false
}
