// Package canvasexchange reads and writes the JSON document diagrams are exchanged in.
// Import tolerates older handle encodings and rewrites them to the current one.
package canvasexchange

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"oss.terrastruct.com/util-go/xdefer"

	"oss.terrastruct.com/d2canvas/canvasgraph"
	"oss.terrastruct.com/d2canvas/lib/geo"
)

const CURRENT_VERSION = "2.0"

// Document is the exchange format. Nodes and edges follow the shape editors and
// collaborators read: a type tag, a position and an opaque data object.
type Document struct {
	Version    string                 `json:"version"`
	ExportDate time.Time              `json:"exportDate"`
	Nodes      []Node                 `json:"nodes"`
	Edges      []Edge                 `json:"edges"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Node struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Position Position        `json:"position"`
	Width    float64         `json:"width,omitempty"`
	Height   float64         `json:"height,omitempty"`
	ParentID string          `json:"parentId,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

type Edge struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	Target       string    `json:"target"`
	SourceHandle string    `json:"sourceHandle,omitempty"`
	TargetHandle string    `json:"targetHandle,omitempty"`
	Animated     bool      `json:"animated"`
	Label        string    `json:"label,omitempty"`
	Type         string    `json:"type,omitempty"`
	Data         *EdgeData `json:"data,omitempty"`
}

type EdgeData struct {
	ControlPoints *ControlPoints `json:"controlPoints,omitempty"`
	Lane          int            `json:"lane,omitempty"`
	TotalLanes    int            `json:"totalLanes,omitempty"`
	LabelT        *float64       `json:"labelT,omitempty"`
}

type ControlPoints struct {
	Source *Position `json:"source,omitempty"`
	Target *Position `json:"target,omitempty"`
}

// ParseError is a document that could not be imported. Nothing is imported when it is
// returned.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "failed to parse diagram: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// HandleChange records one handle rewritten by migration.
type HandleChange struct {
	EdgeID string `json:"edgeId"`
	Field  string `json:"field"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// Report describes what an import changed.
type Report struct {
	Version  string                 `json:"version"`
	Handles  []HandleChange         `json:"handles,omitempty"`
	Unknown  []string               `json:"unknownHandles,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func (r *Report) Migrated() bool {
	return len(r.Handles) > 0
}

type ExportOpts struct {
	// Now supplies the export date. Defaults to time.Now.
	Now      func() time.Time
	Metadata map[string]interface{}
}

func toPosition(p geo.Point) Position {
	return Position{X: p.X, Y: p.Y}
}

func (p *Position) point() *geo.Point {
	if p == nil {
		return nil
	}
	return &geo.Point{X: p.X, Y: p.Y}
}

// Encode converts g into a document.
func Encode(g *canvasgraph.Graph, opts ExportOpts) (*Document, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	doc := &Document{
		Version:    CURRENT_VERSION,
		ExportDate: now().UTC(),
		Nodes:      make([]Node, 0, len(g.Nodes)),
		Edges:      make([]Edge, 0, len(g.Edges)),
		Metadata:   opts.Metadata,
	}
	for _, n := range g.Nodes {
		var data json.RawMessage
		if n.Data != nil {
			b, err := json.Marshal(n.Data)
			if err != nil {
				return nil, fmt.Errorf("node %q: %w", n.ID, err)
			}
			data = b
		}
		doc.Nodes = append(doc.Nodes, Node{
			ID:       n.ID,
			Type:     string(n.Kind()),
			Position: toPosition(n.Position.Point()),
			Width:    n.Width,
			Height:   n.Height,
			ParentID: n.ParentID,
			Data:     data,
		})
	}
	for _, e := range g.Edges {
		doc.Edges = append(doc.Edges, Edge{
			ID:           e.ID,
			Source:       e.Source,
			Target:       e.Target,
			SourceHandle: e.SourceHandle,
			TargetHandle: e.TargetHandle,
			Animated:     e.Animated,
			Label:        e.Label,
			Type:         string(e.Type),
			Data:         encodeRouting(e.Routing),
		})
	}
	return doc, nil
}

func encodeRouting(rd canvasgraph.RoutingData) *EdgeData {
	d := &EdgeData{
		Lane:       rd.Lane,
		TotalLanes: rd.TotalLanes,
		LabelT:     rd.LabelT,
	}
	if cp := rd.ControlPoints; cp != nil && !cp.IsEmpty() {
		d.ControlPoints = &ControlPoints{}
		if cp.Source != nil {
			p := toPosition(*cp.Source)
			d.ControlPoints.Source = &p
		}
		if cp.Target != nil {
			p := toPosition(*cp.Target)
			d.ControlPoints.Target = &p
		}
	}
	if d.ControlPoints == nil && d.Lane == 0 && d.TotalLanes == 0 && d.LabelT == nil {
		return nil
	}
	return d
}

// Export writes g as an indented document.
func Export(g *canvasgraph.Graph, opts ExportOpts) (_ []byte, err error) {
	defer xdefer.Errorf(&err, "failed to export diagram")

	doc, err := Encode(g, opts)
	if err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Parse decodes a document without interpreting it.
func Parse(b []byte) (*Document, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, &ParseError{Err: errors.New("empty document")}
	}
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&doc); err != nil {
		return nil, &ParseError{Err: err}
	}
	if err := checkVersion(doc.Version); err != nil {
		return nil, &ParseError{Err: err}
	}
	return &doc, nil
}

// checkVersion accepts documents of any version up to the current major one. Documents
// without a version predate versioning.
func checkVersion(v string) error {
	if v == "" {
		return nil
	}
	major := strings.SplitN(v, ".", 2)[0]
	current := strings.SplitN(CURRENT_VERSION, ".", 2)[0]
	if len(major) > len(current) || (len(major) == len(current) && major > current) {
		return fmt.Errorf("unsupported version %q, newest supported is %q", v, CURRENT_VERSION)
	}
	return nil
}

// Decode converts doc into a validated graph, migrating legacy handles.
func Decode(doc *Document) (*canvasgraph.Graph, *Report, error) {
	report := &Report{Version: doc.Version, Metadata: doc.Metadata}
	g := canvasgraph.NewGraph()
	for _, n := range doc.Nodes {
		payload, err := canvasgraph.DecodePayload(canvasgraph.NodeKind(n.Type), n.Data)
		if err != nil {
			return nil, nil, &ParseError{Err: fmt.Errorf("node %q: %w", n.ID, err)}
		}
		node := &canvasgraph.Node{
			ID:       n.ID,
			Position: canvasgraph.Rel(n.Position.X, n.Position.Y),
			Width:    n.Width,
			Height:   n.Height,
			ParentID: n.ParentID,
			Data:     payload,
		}
		if node.Width <= 0 || node.Height <= 0 {
			node.Width, node.Height = node.Size()
		}
		g.Nodes = append(g.Nodes, node)
	}
	for _, e := range doc.Edges {
		edge := &canvasgraph.Edge{
			ID:           e.ID,
			Source:       e.Source,
			Target:       e.Target,
			SourceHandle: migrateHandle(report, e.ID, "sourceHandle", e.SourceHandle, canvasgraph.RoleSource),
			TargetHandle: migrateHandle(report, e.ID, "targetHandle", e.TargetHandle, canvasgraph.RoleTarget),
			Animated:     e.Animated,
			Label:        e.Label,
			Type:         decodeEdgeType(e.Type),
		}
		if d := e.Data; d != nil {
			edge.Routing = canvasgraph.RoutingData{
				Lane:       d.Lane,
				TotalLanes: d.TotalLanes,
				LabelT:     d.LabelT,
			}
			if d.ControlPoints != nil {
				cp := &canvasgraph.ControlPoints{
					Source: d.ControlPoints.Source.point(),
					Target: d.ControlPoints.Target.point(),
				}
				if !cp.IsEmpty() {
					edge.Routing.ControlPoints = cp
				}
			}
		}
		g.Edges = append(g.Edges, edge)
	}
	if err := g.Validate(); err != nil {
		return nil, nil, &ParseError{Err: err}
	}
	return g, report, nil
}

// decodeEdgeType maps the generic edge type of editors to bezier. Other types are kept
// verbatim and render as bezier when unknown.
func decodeEdgeType(t string) canvasgraph.EdgeType {
	switch t {
	case "", "default":
		return canvasgraph.EdgeBezier
	}
	return canvasgraph.EdgeType(t)
}

func migrateHandle(report *Report, edgeID, field, raw string, role canvasgraph.Role) string {
	if raw == "" {
		return ""
	}
	h := canvasgraph.ParseHandle(raw, role)
	if h.Form == canvasgraph.HandleUnknown {
		report.Unknown = append(report.Unknown, raw)
		return raw
	}
	migrated := h.Migrated()
	if migrated != raw {
		report.Handles = append(report.Handles, HandleChange{
			EdgeID: edgeID,
			Field:  field,
			From:   raw,
			To:     migrated,
		})
	}
	return migrated
}

// Import parses and decodes b. On error nothing is returned, so callers can leave their
// graph as it was.
func Import(b []byte) (*canvasgraph.Graph, *Report, error) {
	doc, err := Parse(b)
	if err != nil {
		return nil, nil, err
	}
	return Decode(doc)
}
