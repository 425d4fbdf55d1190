package canvascatalog

import (
	"fmt"

	"oss.terrastruct.com/util-go/go2"
	"oss.terrastruct.com/util-go/xdefer"

	"oss.terrastruct.com/d2canvas/canvasgraph"
)

const DEFAULT_ZONE_WIDTH = 480.
const DEFAULT_ZONE_HEIGHT = 320.

// checkTemplate checks the structure of t: refs are unique and every parent and edge
// endpoint names a ref. Service and zone ids are resolved on instantiation.
func (c *Catalog) checkTemplate(t Template) error {
	refs := make(map[string]TemplateNode, len(t.Nodes))
	for _, n := range t.Nodes {
		if n.Ref == "" {
			return fmt.Errorf("template %q: node with empty ref", t.ID)
		}
		if _, ok := refs[n.Ref]; ok {
			return fmt.Errorf("template %q: duplicate ref %q", t.ID, n.Ref)
		}
		if (n.Service == "") == (n.Zone == "") {
			return fmt.Errorf("template %q: node %q must set exactly one of service and zone", t.ID, n.Ref)
		}
		refs[n.Ref] = n
	}
	for _, n := range t.Nodes {
		if n.Parent == "" {
			continue
		}
		p, ok := refs[n.Parent]
		if !ok {
			return fmt.Errorf("template %q: node %q has unknown parent %q", t.ID, n.Ref, n.Parent)
		}
		if p.Zone == "" {
			return fmt.Errorf("template %q: parent %q of %q is not a zone", t.ID, n.Parent, n.Ref)
		}
	}
	for _, e := range t.Edges {
		if _, ok := refs[e.From]; !ok {
			return fmt.Errorf("template %q: edge from unknown ref %q", t.ID, e.From)
		}
		if _, ok := refs[e.To]; !ok {
			return fmt.Errorf("template %q: edge to unknown ref %q", t.ID, e.To)
		}
	}
	return nil
}

// Instantiate builds a new graph from template id. newID supplies fresh node and edge ids.
// A template referencing a service or zone missing from the catalog fails with no graph.
func (c *Catalog) Instantiate(id string, newID func() string) (_ *canvasgraph.Graph, err error) {
	defer xdefer.Errorf(&err, "failed to instantiate template %#v", id)

	t, ok := c.Template(id)
	if !ok {
		return nil, fmt.Errorf("template %q not found", id)
	}
	if err := c.checkTemplate(t); err != nil {
		return nil, err
	}

	g := canvasgraph.NewGraph()
	ids := make(map[string]string, len(t.Nodes))
	for _, tn := range t.Nodes {
		ids[tn.Ref] = newID()
	}
	for _, tn := range t.Nodes {
		pos := canvasgraph.Rel(tn.Position.X, tn.Position.Y)
		var n *canvasgraph.Node
		if tn.Service != "" {
			s, ok := c.Service(tn.Service)
			if !ok {
				return nil, &UnknownServiceError{TemplateID: t.ID, ServiceID: tn.Service}
			}
			label := tn.Label
			if label == "" {
				label = s.Name
			}
			n = canvasgraph.NewServiceNode(ids[tn.Ref], pos, canvasgraph.ServiceData{
				ServiceID: s.ID,
				Label:     label,
				Category:  s.Category,
			})
		} else {
			z, ok := c.Zone(tn.Zone)
			if !ok {
				return nil, fmt.Errorf("template %q references unknown zone %q", t.ID, tn.Zone)
			}
			label := tn.Label
			if label == "" {
				label = z.Name
			}
			n = canvasgraph.NewGroupNode(ids[tn.Ref], pos, DEFAULT_ZONE_WIDTH, DEFAULT_ZONE_HEIGHT, canvasgraph.GroupData{
				ZoneID: z.ID,
				Label:  label,
			})
		}
		if tn.Size != nil {
			n.Width, n.Height = tn.Size.Width, tn.Size.Height
		}
		if tn.Parent != "" {
			n.ParentID = ids[tn.Parent]
		}
		g.Nodes = append(g.Nodes, n)
	}

	for _, te := range t.Edges {
		et := canvasgraph.EdgeSmartOrthogonal
		if te.Type != "" {
			et = canvasgraph.EdgeType(te.Type)
		}
		g.Edges = append(g.Edges, &canvasgraph.Edge{
			ID:           newID(),
			Source:       ids[te.From],
			Target:       ids[te.To],
			SourceHandle: templateHandle(te.SourceSide, canvasgraph.RoleSource),
			TargetHandle: templateHandle(te.TargetSide, canvasgraph.RoleTarget),
			Type:         et,
			Label:        te.Label,
			Animated:     te.Animated,
		})
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func templateHandle(side string, role canvasgraph.Role) string {
	s := canvasgraph.Side(side)
	if !s.Valid() {
		s = role.DefaultSide()
	}
	return canvasgraph.FormatHandle(s, role, canvasgraph.CENTER_SLOT)
}

// Warning is a catalog-derived remark about a graph. It is recomputed from scratch for
// every graph and never stored in it.
type Warning struct {
	NodeID  string `json:"nodeId,omitempty"`
	EdgeID  string `json:"edgeId,omitempty"`
	Message string `json:"message"`
}

// Warnings lists services missing from the catalog and connections between services
// either side marks incompatible.
func (c *Catalog) Warnings(g *canvasgraph.Graph) []Warning {
	var warnings []Warning
	for _, n := range g.Nodes {
		d, ok := n.Data.(canvasgraph.ServiceData)
		if !ok {
			continue
		}
		if _, ok := c.Service(d.ServiceID); !ok {
			warnings = append(warnings, Warning{
				NodeID:  n.ID,
				Message: (&UnknownServiceError{ServiceID: d.ServiceID}).Error(),
			})
		}
	}
	for _, e := range g.Edges {
		src, ok1 := c.serviceOf(g, e.Source)
		dst, ok2 := c.serviceOf(g, e.Target)
		if !ok1 || !ok2 {
			continue
		}
		if go2.Contains(src.Incompatible, dst.ID) || go2.Contains(dst.Incompatible, src.ID) {
			warnings = append(warnings, Warning{
				EdgeID:  e.ID,
				Message: fmt.Sprintf("%s is not compatible with %s", src.Name, dst.Name),
			})
		}
	}
	return warnings
}

func (c *Catalog) serviceOf(g *canvasgraph.Graph, nodeID string) (Service, bool) {
	n := g.Node(nodeID)
	if n == nil {
		return Service{}, false
	}
	d, ok := n.Data.(canvasgraph.ServiceData)
	if !ok {
		return Service{}, false
	}
	return c.Service(d.ServiceID)
}
