package canvasgraph

import "oss.terrastruct.com/util-go/go2"

func (cp *ControlPoints) Copy() *ControlPoints {
	if cp == nil {
		return nil
	}
	tmp := &ControlPoints{}
	if cp.Source != nil {
		tmp.Source = go2.Pointer(*cp.Source)
	}
	if cp.Target != nil {
		tmp.Target = go2.Pointer(*cp.Target)
	}
	return tmp
}

func (rd RoutingData) Copy() RoutingData {
	tmp := rd
	tmp.ControlPoints = rd.ControlPoints.Copy()
	if rd.LabelT != nil {
		tmp.LabelT = go2.Pointer(*rd.LabelT)
	}
	return tmp
}

func (n *Node) Copy() *Node {
	tmp := *n
	if n.Data != nil {
		tmp.Data = n.Data.copyPayload()
	}
	return &tmp
}

func (e *Edge) Copy() *Edge {
	tmp := *e
	tmp.Routing = e.Routing.Copy()
	return &tmp
}

// Copy is a deep copy. Mutating the copy never affects g.
func (g *Graph) Copy() *Graph {
	tmp := &Graph{
		Nodes: make([]*Node, 0, len(g.Nodes)),
		Edges: make([]*Edge, 0, len(g.Edges)),
	}
	for _, n := range g.Nodes {
		tmp.Nodes = append(tmp.Nodes, n.Copy())
	}
	for _, e := range g.Edges {
		tmp.Edges = append(tmp.Edges, e.Copy())
	}
	return tmp
}
