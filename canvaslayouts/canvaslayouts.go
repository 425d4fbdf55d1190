// Package canvaslayouts runs automatic layout over a diagram and assigns lanes to
// parallel edges. Both are pure transforms: the input graph is never mutated.
package canvaslayouts

import (
	"context"
	"fmt"
	"strings"

	"oss.terrastruct.com/util-go/xdefer"

	"oss.terrastruct.com/d2canvas/canvasgraph"
	"oss.terrastruct.com/d2canvas/canvaslayouts/canvasdot"
	"oss.terrastruct.com/d2canvas/canvaslayouts/canvaslayered"
)

type Direction string

const (
	DirectionTB Direction = "TB"
	DirectionLR Direction = "LR"
	DirectionBT Direction = "BT"
	DirectionRL Direction = "RL"
)

// ParseDirection accepts the rank direction or its flow name (down, right, up, left).
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "tb", "down":
		return DirectionTB, nil
	case "lr", "right":
		return DirectionLR, nil
	case "bt", "up":
		return DirectionBT, nil
	case "rl", "left":
		return DirectionRL, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

type Algorithm string

const (
	AlgorithmLayered Algorithm = "layered"
	AlgorithmDot     Algorithm = "dot"
)

var Algorithms = []Algorithm{AlgorithmLayered, AlgorithmDot}

type Opts struct {
	Direction    Direction `toml:"direction"`
	NodeSpacing  float64   `toml:"node_spacing"`
	LayerSpacing float64   `toml:"layer_spacing"`
	Algorithm    Algorithm `toml:"algorithm"`
}

var DefaultOpts = Opts{
	Direction:    DirectionTB,
	NodeSpacing:  60,
	LayerSpacing: 100,
	Algorithm:    AlgorithmLayered,
}

func (opts Opts) Validate() error {
	if _, err := ParseDirection(string(opts.Direction)); err != nil {
		return err
	}
	if opts.NodeSpacing <= 0 {
		return fmt.Errorf("node spacing must be positive, got %v", opts.NodeSpacing)
	}
	if opts.LayerSpacing <= 0 {
		return fmt.Errorf("layer spacing must be positive, got %v", opts.LayerSpacing)
	}
	for _, a := range Algorithms {
		if a == opts.Algorithm {
			return nil
		}
	}
	return fmt.Errorf("unknown layout algorithm %q", opts.Algorithm)
}

// CoreLayout returns the layout engine configured by opts.
func CoreLayout(opts Opts) (canvasgraph.LayoutGraph, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	dir, _ := ParseDirection(string(opts.Direction))
	switch opts.Algorithm {
	case AlgorithmDot:
		return func(ctx context.Context, g *canvasgraph.Graph) error {
			return canvasdot.Layout(ctx, g, &canvasdot.ConfigurableOpts{
				NodeSep: opts.NodeSpacing,
				RankSep: opts.LayerSpacing,
				RankDir: string(dir),
			})
		}, nil
	default:
		return func(ctx context.Context, g *canvasgraph.Graph) error {
			return canvaslayered.Layout(ctx, g, &canvaslayered.ConfigurableOpts{
				NodeSep: opts.NodeSpacing,
				RankSep: opts.LayerSpacing,
				RankDir: string(dir),
			})
		}, nil
	}
}

// ExtractRoot returns a graph of copies of the root-level nodes of g. Edges touching
// nested nodes are lifted to their root-level ancestors; edges inside one root are
// dropped.
func ExtractRoot(g *canvasgraph.Graph) (*canvasgraph.Graph, error) {
	root := canvasgraph.NewGraph()
	for _, n := range g.RootNodes() {
		root.Nodes = append(root.Nodes, n.Copy())
	}
	for _, e := range g.Edges {
		src, err := g.RootAncestor(e.Source)
		if err != nil {
			return nil, err
		}
		dst, err := g.RootAncestor(e.Target)
		if err != nil {
			return nil, err
		}
		if src.ID == dst.ID {
			continue
		}
		root.Edges = append(root.Edges, &canvasgraph.Edge{
			ID:     e.ID,
			Source: src.ID,
			Target: dst.ID,
			Type:   e.Type,
		})
	}
	return root, nil
}

// InjectPositions copies the positions of the nodes of laidOut into g.
func InjectPositions(g, laidOut *canvasgraph.Graph) {
	for _, n := range laidOut.Nodes {
		if target := g.Node(n.ID); target != nil {
			target.Position = n.Position
		}
	}
}

// ApplyAutoLayout returns a copy of g with its root-level nodes placed by the configured
// algorithm. Nested nodes keep their positions relative to their group. On error g is
// returned untouched with the error.
func ApplyAutoLayout(ctx context.Context, g *canvasgraph.Graph, opts Opts) (_ *canvasgraph.Graph, err error) {
	defer xdefer.Errorf(&err, "failed to auto layout")

	out := g.Copy()
	if len(out.Nodes) == 0 {
		return out, nil
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	layout, err := CoreLayout(opts)
	if err != nil {
		return nil, err
	}
	root, err := ExtractRoot(out)
	if err != nil {
		return nil, err
	}
	if err := layout(ctx, root); err != nil {
		return nil, err
	}
	InjectPositions(out, root)
	return out, nil
}

type pairKey struct {
	a, b string
}

func unorderedPair(a, b string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{a, b}
}

// OptimizeEdges returns a copy of g where edges sharing an unordered node pair get lanes
// 0..N-1 in graph order, and TotalLanes N. Single edges get lane 0 of 1, which has no
// offset. The routers' collinear step is what keeps a single edge between aligned handles
// from collapsing to a straight line.
func OptimizeEdges(g *canvasgraph.Graph) *canvasgraph.Graph {
	out := g.Copy()
	groups := make(map[pairKey][]*canvasgraph.Edge)
	for _, e := range out.Edges {
		k := unorderedPair(e.Source, e.Target)
		groups[k] = append(groups[k], e)
	}
	for _, edges := range groups {
		for i, e := range edges {
			e.Routing.Lane = i
			e.Routing.TotalLanes = len(edges)
		}
	}
	return out
}
