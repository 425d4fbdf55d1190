// Package canvassvg renders a static SVG preview of a graph: zones, services, routed
// edges with their labels and, optionally, the alignment guides of a drag in progress.
package canvassvg

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"oss.terrastruct.com/util-go/xdefer"

	"oss.terrastruct.com/d2canvas/canvasalign"
	"oss.terrastruct.com/d2canvas/canvascatalog"
	"oss.terrastruct.com/d2canvas/canvasgraph"
	"oss.terrastruct.com/d2canvas/canvasroute"
	"oss.terrastruct.com/d2canvas/lib/color"
	"oss.terrastruct.com/d2canvas/lib/geo"
	"oss.terrastruct.com/d2canvas/lib/svg"
)

const (
	DEFAULT_PADDING = 40

	FONT_SIZE       = 14
	ZONE_FONT_SIZE  = 13
	LABEL_FONT_SIZE = 12
	// CHAR_WIDTH estimates the advance of a character at LABEL_FONT_SIZE.
	CHAR_WIDTH     = 7.
	LABEL_PADDING  = 4.
	HANDLE_RADIUS  = 5.
	STRIPE_WIDTH   = 6.
	GUIDE_COLOR    = "#FF3B8D"
	EDGE_COLOR     = "#545B64"
	SELECTED_COLOR = "#0972D3"
)

//go:embed style.css
var baseStylesheet string

type RenderOpts struct {
	Pad *int
	// Route configures the edge renderers. Zero means canvasroute.DefaultOpts.
	Route *canvasroute.Opts
	// Catalog supplies category colours. Services without one are drawn neutral.
	Catalog *canvascatalog.Catalog
	Guides  []canvasalign.Guide
	// Selected is the id of a node or edge drawn with selection chrome.
	Selected string
	NoXMLTag bool
}

type renderer struct {
	g      *canvasgraph.Graph
	opts   *RenderOpts
	route  canvasroute.Opts
	boxes  map[string]geo.Box
	paths  map[string]canvasroute.Path
	colors map[string]string
}

// Render draws g. It fails when g is inconsistent or a category colour does not parse.
func Render(g *canvasgraph.Graph, opts *RenderOpts) (_ []byte, err error) {
	defer xdefer.Errorf(&err, "failed to render diagram")

	if opts == nil {
		opts = &RenderOpts{}
	}
	r := &renderer{
		g:      g,
		opts:   opts,
		route:  canvasroute.DefaultOpts,
		boxes:  make(map[string]geo.Box, len(g.Nodes)),
		paths:  make(map[string]canvasroute.Path, len(g.Edges)),
		colors: make(map[string]string),
	}
	if opts.Route != nil {
		r.route = *opts.Route
	}
	if err := r.resolve(); err != nil {
		return nil, err
	}

	pad := DEFAULT_PADDING
	if opts.Pad != nil {
		pad = *opts.Pad
	}
	left, top, width, height := r.dimensions(pad)

	buf := &bytes.Buffer{}
	if !opts.NoXMLTag {
		buf.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	}
	fmt.Fprintf(buf, `<svg xmlns="http://www.w3.org/2000/svg" version="1.1" class="canvas" viewBox="%d %d %d %d" width="%d" height="%d">`+"\n",
		left, top, width, height, width, height)
	fmt.Fprintf(buf, "<style>%s</style>\n", baseStylesheet)
	writeDefs(buf)

	for _, n := range r.zones() {
		if err := r.drawZone(buf, n); err != nil {
			return nil, err
		}
	}
	for _, e := range g.Edges {
		r.drawEdge(buf, e)
	}
	for _, n := range g.Nodes {
		if n.IsGroup() {
			continue
		}
		if err := r.drawService(buf, n); err != nil {
			return nil, err
		}
	}
	for _, e := range g.Edges {
		r.drawEdgeLabel(buf, e)
	}
	for _, guide := range opts.Guides {
		drawGuide(buf, guide)
	}
	buf.WriteString("</svg>\n")
	return buf.Bytes(), nil
}

func (r *renderer) resolve() error {
	for _, n := range r.g.Nodes {
		b, err := r.g.AbsoluteBox(n.ID)
		if err != nil {
			return err
		}
		r.boxes[n.ID] = b
	}
	for _, e := range r.g.Edges {
		p, err := canvasroute.RenderEdge(r.g, e, e.ID == r.opts.Selected, r.route)
		if err != nil {
			return fmt.Errorf("edge %q: %w", e.ID, err)
		}
		r.paths[e.ID] = p
	}
	if r.opts.Catalog != nil {
		for _, cat := range r.opts.Catalog.Categories {
			if cat.Color == "" {
				continue
			}
			c, err := color.Normalize(cat.Color)
			if err != nil {
				return fmt.Errorf("category %q: %w", cat.ID, err)
			}
			r.colors[cat.ID] = c
		}
	}
	return nil
}

// dimensions is the padded bounding box of every node, route and label.
func (r *renderer) dimensions(pad int) (left, top, width, height int) {
	var bb *geo.Box
	add := func(b geo.Box) {
		if bb == nil {
			bb = &b
			return
		}
		u := bb.Union(b)
		bb = &u
	}
	for _, n := range r.g.Nodes {
		add(r.boxes[n.ID])
	}
	for _, e := range r.g.Edges {
		p := r.paths[e.ID]
		// Control points bound a cubic curve.
		for _, pts := range []geo.Route{p.Route, p.Curve} {
			if len(pts) == 0 {
				continue
			}
			tl, br := pts.GetBoundingBox()
			add(geo.NewBox(tl, br.X-tl.X, br.Y-tl.Y))
		}
		if e.Label != "" {
			add(labelBox(e.Label, p.LabelAnchor))
		}
	}
	if bb == nil {
		return -pad, -pad, pad * 2, pad * 2
	}
	left = int(math.Floor(bb.Left())) - pad
	top = int(math.Floor(bb.Top())) - pad
	width = int(math.Ceil(bb.Right())) + pad - left
	height = int(math.Ceil(bb.Bottom())) + pad - top
	return left, top, width, height
}

func labelBox(label string, anchor geo.Point) geo.Box {
	lines := strings.Split(label, "\n")
	longest := 0
	for _, l := range lines {
		if len(l) > longest {
			longest = len(l)
		}
	}
	w := float64(longest)*CHAR_WIDTH + LABEL_PADDING*2
	h := float64(len(lines))*(LABEL_FONT_SIZE+2) + LABEL_PADDING*2
	return geo.NewBox(geo.NewPoint(anchor.X-w/2, anchor.Y-h/2), w, h)
}

// zones returns the group nodes, outermost first so nested zones paint above their parent.
func (r *renderer) zones() []*canvasgraph.Node {
	var zones []*canvasgraph.Node
	depth := make(map[string]int)
	for _, n := range r.g.Nodes {
		if !n.IsGroup() {
			continue
		}
		d := 0
		for p := r.g.Node(n.ParentID); p != nil && d <= len(r.g.Nodes); p = r.g.Node(p.ParentID) {
			d++
		}
		depth[n.ID] = d
		zones = append(zones, n)
	}
	sort.SliceStable(zones, func(i, j int) bool {
		return depth[zones[i].ID] < depth[zones[j].ID]
	})
	return zones
}

func (r *renderer) categoryOf(n *canvasgraph.Node) string {
	d, ok := n.Data.(canvasgraph.ServiceData)
	if !ok {
		return ""
	}
	if d.Category != "" {
		return d.Category
	}
	if r.opts.Catalog != nil {
		if s, ok := r.opts.Catalog.Service(d.ServiceID); ok {
			return s.Category
		}
	}
	return ""
}

func (r *renderer) strokeOf(n *canvasgraph.Node) string {
	if c, ok := r.colors[r.categoryOf(n)]; ok {
		return c
	}
	return color.Neutral
}

func (r *renderer) drawZone(w io.Writer, n *canvasgraph.Node) error {
	b := r.boxes[n.ID]
	fill, err := color.Tint(color.Neutral, .92)
	if err != nil {
		return err
	}
	class := "zone"
	if n.ID == r.opts.Selected {
		class += " selected"
	}
	fmt.Fprintf(w, `<g class="%s" data-id="%s">`, class, svg.EscapeText(n.ID))
	fmt.Fprintf(w, `<rect x="%v" y="%v" width="%v" height="%v" rx="4" fill="%s" stroke="%s" />`,
		b.Left(), b.Top(), b.Width, b.Height, fill, color.Neutral)
	fmt.Fprintf(w, `<text class="zone-label" x="%v" y="%v" font-size="%d">%s</text>`,
		b.Left()+8, b.Top()+ZONE_FONT_SIZE+6, ZONE_FONT_SIZE, svg.RenderText(n.Label(), b.Left()+8, ZONE_FONT_SIZE+2))
	fmt.Fprint(w, "</g>\n")
	return nil
}

func (r *renderer) drawService(w io.Writer, n *canvasgraph.Node) error {
	b := r.boxes[n.ID]
	accent := r.strokeOf(n)
	fill, err := color.Tint(accent, .85)
	if err != nil {
		return err
	}
	stroke, err := color.Darken(accent)
	if err != nil {
		return err
	}
	text, err := color.TextOn(fill)
	if err != nil {
		return err
	}
	class := "service"
	if n.ID == r.opts.Selected {
		class += " selected"
		stroke = SELECTED_COLOR
	}
	fmt.Fprintf(w, `<g class="%s" data-id="%s">`, class, svg.EscapeText(n.ID))
	fmt.Fprintf(w, `<rect x="%v" y="%v" width="%v" height="%v" rx="6" fill="%s" stroke="%s" />`,
		b.Left(), b.Top(), b.Width, b.Height, fill, stroke)
	fmt.Fprintf(w, `<rect x="%v" y="%v" width="%v" height="%v" fill="%s" />`,
		b.Left(), b.Top(), STRIPE_WIDTH, b.Height, accent)
	c := b.Center()
	fmt.Fprintf(w, `<text class="service-label" x="%v" y="%v" font-size="%d" fill="%s" text-anchor="middle" dominant-baseline="middle">%s</text>`,
		c.X, c.Y, FONT_SIZE, text, svg.RenderText(n.Label(), c.X, FONT_SIZE+2))
	fmt.Fprint(w, "</g>\n")
	return nil
}

func (r *renderer) drawEdge(w io.Writer, e *canvasgraph.Edge) {
	p := r.paths[e.ID]
	class := "edge"
	if e.Animated {
		class += " animated"
	}
	stroke := EDGE_COLOR
	if e.ID == r.opts.Selected {
		class += " selected"
		stroke = SELECTED_COLOR
	}
	fmt.Fprintf(w, `<g class="%s" data-id="%s">`, class, svg.EscapeText(e.ID))
	fmt.Fprintf(w, `<path d="%s" fill="none" stroke="%s" stroke-width="2" marker-end="url(#arrow)" />`, p.Data, stroke)
	if p.Chrome != nil {
		for _, h := range p.Chrome.Handles {
			fmt.Fprintf(w, `<circle class="handle" cx="%v" cy="%v" r="%v" />`, h.X, h.Y, HANDLE_RADIUS)
		}
		if p.Chrome.Reset != nil {
			fmt.Fprintf(w, `<circle class="reset" cx="%v" cy="%v" r="%v" />`, p.Chrome.Reset.X, p.Chrome.Reset.Y, HANDLE_RADIUS+2)
		}
	}
	fmt.Fprint(w, "</g>\n")
}

func (r *renderer) drawEdgeLabel(w io.Writer, e *canvasgraph.Edge) {
	if e.Label == "" {
		return
	}
	p := r.paths[e.ID]
	b := labelBox(e.Label, p.LabelAnchor)
	fmt.Fprintf(w, `<g class="edge-label" data-id="%s">`, svg.EscapeText(e.ID))
	fmt.Fprintf(w, `<rect x="%v" y="%v" width="%v" height="%v" rx="3" fill="#FFFFFF" />`, b.Left(), b.Top(), b.Width, b.Height)
	fmt.Fprintf(w, `<text x="%v" y="%v" font-size="%d" text-anchor="middle" dominant-baseline="middle">%s</text>`,
		p.LabelAnchor.X, p.LabelAnchor.Y, LABEL_FONT_SIZE, svg.RenderText(e.Label, p.LabelAnchor.X, LABEL_FONT_SIZE+2))
	fmt.Fprint(w, "</g>\n")
}

func drawGuide(w io.Writer, g canvasalign.Guide) {
	x1, y1, x2, y2 := g.Position, g.Start, g.Position, g.End
	if g.Axis == canvasalign.AxisHorizontal {
		x1, y1, x2, y2 = g.Start, g.Position, g.End, g.Position
	}
	fmt.Fprintf(w, `<line class="guide" x1="%v" y1="%v" x2="%v" y2="%v" stroke="%s" />`+"\n", x1, y1, x2, y2, GUIDE_COLOR)
}

func writeDefs(w io.Writer) {
	fmt.Fprintf(w, `<defs><marker id="arrow" viewBox="0 0 10 10" refX="9" refY="5" markerWidth="8" markerHeight="8" orient="auto-start-reverse"><path d="M 0 0 L 10 5 L 0 10 z" fill="%s" /></marker></defs>`+"\n", EDGE_COLOR)
}
