// Package canvasdot lays out nodes with the Graphviz dot engine.
package canvasdot

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"oss.terrastruct.com/util-go/xdefer"

	"oss.terrastruct.com/d2canvas/canvasgraph"
)

// Graphviz works in points and inches.
const POINTS_PER_INCH = 72.

type ConfigurableOpts struct {
	NodeSep float64 `json:"nodesep"`
	RankSep float64 `json:"ranksep"`
	RankDir string  `json:"rankdir"`
}

var DefaultOpts = ConfigurableOpts{
	NodeSep: 60,
	RankSep: 100,
	RankDir: "TB",
}

func DefaultLayout(ctx context.Context, g *canvasgraph.Graph) (err error) {
	return Layout(ctx, g, nil)
}

func Layout(ctx context.Context, g *canvasgraph.Graph, opts *ConfigurableOpts) (err error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	defer xdefer.Errorf(&err, "failed to dot layout")

	if len(g.Nodes) == 0 {
		return nil
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	in, err := graphviz.ParseBytes([]byte(ToDOT(g, *opts)))
	if err != nil {
		return fmt.Errorf("parse DOT: %w", err)
	}
	defer in.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, in, graphviz.XDOT, &buf); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	centers, err := readCenters(buf.Bytes())
	if err != nil {
		return err
	}
	return applyCenters(g, centers)
}

func nodeName(i int) string {
	return "n" + strconv.Itoa(i)
}

func inches(px float64) string {
	return strconv.FormatFloat(px/POINTS_PER_INCH, 'f', 4, 64)
}

// ToDOT writes g as a DOT digraph of fixed size boxes named by index.
func ToDOT(g *canvasgraph.Graph, opts ConfigurableOpts) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", opts.RankDir)
	fmt.Fprintf(&buf, "  nodesep=%s;\n", inches(opts.NodeSep))
	fmt.Fprintf(&buf, "  ranksep=%s;\n", inches(opts.RankSep))
	buf.WriteString("  node [shape=box, fixedsize=true, label=\"\"];\n")
	buf.WriteString("\n")

	idx := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		idx[n.ID] = i
		w, h := n.Size()
		fmt.Fprintf(&buf, "  %s [width=%s, height=%s];\n", nodeName(i), inches(w), inches(h))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges {
		u, ok1 := idx[e.Source]
		v, ok2 := idx[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		fmt.Fprintf(&buf, "  %s -> %s;\n", nodeName(u), nodeName(v))
	}
	buf.WriteString("}\n")
	return buf.String()
}

type center struct {
	x, y float64
}

// readCenters reads the node centres of a laid out graph, in points, y down.
func readCenters(xdot []byte) (map[string]center, error) {
	out, err := graphviz.ParseBytes(xdot)
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	defer out.Close()

	bb, err := parseFloats(out.GetStr("bb"), 4)
	if err != nil {
		return nil, fmt.Errorf("bounding box: %w", err)
	}
	height := bb[3]

	centers := make(map[string]center)
	n, err := out.FirstNode()
	for ; err == nil && n != nil; n, err = out.NextNode(n) {
		name, err := n.Name()
		if err != nil {
			return nil, err
		}
		pos, err := parseFloats(n.GetStr("pos"), 2)
		if err != nil {
			return nil, fmt.Errorf("position of %s: %w", name, err)
		}
		centers[name] = center{x: pos[0], y: height - pos[1]}
	}
	if err != nil {
		return nil, err
	}
	return centers, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(strings.TrimSuffix(s, "!"), ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d numbers, got %q", n, s)
	}
	fs := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		fs[i] = f
	}
	return fs, nil
}

func applyCenters(g *canvasgraph.Graph, centers map[string]center) error {
	minX, minY := math.Inf(1), math.Inf(1)
	tls := make([]center, len(g.Nodes))
	for i, n := range g.Nodes {
		c, ok := centers[nodeName(i)]
		if !ok {
			return fmt.Errorf("graphviz did not place %q", n.ID)
		}
		w, h := n.Size()
		tls[i] = center{x: c.x - w/2, y: c.y - h/2}
		minX = math.Min(minX, tls[i].x)
		minY = math.Min(minY, tls[i].y)
	}
	for i, n := range g.Nodes {
		n.Position = canvasgraph.Rel(math.Round(tls[i].x-minX), math.Round(tls[i].y-minY))
	}
	return nil
}
