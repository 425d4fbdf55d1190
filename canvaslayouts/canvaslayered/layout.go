// Package canvaslayered places nodes in layers along the flow direction: cycles are broken
// by reversing DFS back edges, layers are longest paths from the sources, and the order
// within each layer is improved by barycenter sweeps.
package canvaslayered

import (
	"context"
	"fmt"
	"math"
	"sort"

	"cdr.dev/slog"

	"oss.terrastruct.com/util-go/xdefer"

	"oss.terrastruct.com/d2canvas/canvasgraph"
	"oss.terrastruct.com/d2canvas/lib/log"
)

// SWEEPS is the number of alternating down/up barycenter passes.
const SWEEPS = 8

type ConfigurableOpts struct {
	NodeSep float64 `json:"nodesep"`
	RankSep float64 `json:"ranksep"`
	// graph direction: TB (top to bottom) | BT | LR | RL
	RankDir string `json:"rankdir"`
}

var DefaultOpts = ConfigurableOpts{
	NodeSep: 60,
	RankSep: 100,
	RankDir: "TB",
}

func DefaultLayout(ctx context.Context, g *canvasgraph.Graph) (err error) {
	return Layout(ctx, g, nil)
}

// Layout positions every node of g. Parents are ignored: callers pass a graph of
// siblings.
func Layout(ctx context.Context, g *canvasgraph.Graph, opts *ConfigurableOpts) (err error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	defer xdefer.Errorf(&err, "failed to layered layout")

	switch opts.RankDir {
	case "TB", "BT", "LR", "RL":
	default:
		return fmt.Errorf("unknown rankdir %q", opts.RankDir)
	}
	if len(g.Nodes) == 0 {
		return nil
	}

	lg := newLayeredGraph(g)
	reversed := lg.breakCycles()
	if err := ctx.Err(); err != nil {
		return err
	}
	lg.assignLayers()
	order := lg.order(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	log.Debug(ctx, "layered layout",
		slog.F("nodes", len(g.Nodes)),
		slog.F("layers", len(order)),
		slog.F("reversed", reversed),
	)

	lg.place(g, order, opts)
	return nil
}

type layeredGraph struct {
	n     int
	succ  [][]int
	pred  [][]int
	layer []int
	edges map[[2]int]struct{}
}

func newLayeredGraph(g *canvasgraph.Graph) *layeredGraph {
	lg := &layeredGraph{
		n:     len(g.Nodes),
		succ:  make([][]int, len(g.Nodes)),
		pred:  make([][]int, len(g.Nodes)),
		layer: make([]int, len(g.Nodes)),
		edges: make(map[[2]int]struct{}),
	}
	idx := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		idx[n.ID] = i
	}
	for _, e := range g.Edges {
		u, ok1 := idx[e.Source]
		v, ok2 := idx[e.Target]
		if !ok1 || !ok2 || u == v {
			continue
		}
		lg.addEdge(u, v)
	}
	return lg
}

func (lg *layeredGraph) addEdge(u, v int) {
	if _, ok := lg.edges[[2]int{u, v}]; ok {
		return
	}
	lg.edges[[2]int{u, v}] = struct{}{}
	lg.succ[u] = append(lg.succ[u], v)
	lg.pred[v] = append(lg.pred[v], u)
}

func (lg *layeredGraph) removeEdge(u, v int) {
	delete(lg.edges, [2]int{u, v})
	lg.succ[u] = without(lg.succ[u], v)
	lg.pred[v] = without(lg.pred[v], u)
}

func without(s []int, v int) []int {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// breakCycles reverses the back edges of a DFS started from the sources first. It returns
// the number of reversed edges.
func (lg *layeredGraph) breakCycles() int {
	const (
		white = iota
		gray
		black
	)

	color := make([]int, lg.n)
	var backEdges [][2]int

	var dfs func(u int)
	dfs = func(u int) {
		color[u] = gray
		for _, v := range lg.succ[u] {
			switch color[v] {
			case white:
				dfs(v)
			case gray:
				backEdges = append(backEdges, [2]int{u, v})
			}
		}
		color[u] = black
	}

	for u := 0; u < lg.n; u++ {
		if len(lg.pred[u]) == 0 && color[u] == white {
			dfs(u)
		}
	}
	for u := 0; u < lg.n; u++ {
		if color[u] == white {
			dfs(u)
		}
	}

	for _, e := range backEdges {
		lg.removeEdge(e[0], e[1])
		lg.addEdge(e[1], e[0])
	}
	return len(backEdges)
}

// assignLayers puts every node one layer below its deepest predecessor.
func (lg *layeredGraph) assignLayers() {
	inDegree := make([]int, lg.n)
	queue := make([]int, 0, lg.n)
	for u := 0; u < lg.n; u++ {
		inDegree[u] = len(lg.pred[u])
		if inDegree[u] == 0 {
			queue = append(queue, u)
		}
	}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range lg.succ[u] {
			if l := lg.layer[u] + 1; l > lg.layer[v] {
				lg.layer[v] = l
			}
			inDegree[v]--
			if inDegree[v] == 0 {
				queue = append(queue, v)
			}
		}
	}
}

func (lg *layeredGraph) initialOrder() [][]int {
	maxLayer := 0
	for _, l := range lg.layer {
		maxLayer = max(maxLayer, l)
	}
	order := make([][]int, maxLayer+1)
	for u := 0; u < lg.n; u++ {
		order[lg.layer[u]] = append(order[lg.layer[u]], u)
	}
	return order
}

// order runs barycenter sweeps and keeps the ordering with the fewest crossings.
func (lg *layeredGraph) order(ctx context.Context) [][]int {
	cur := lg.initialOrder()
	best := copyOrder(cur)
	bestCrossings := lg.crossings(best)

	for i := 0; i < SWEEPS && bestCrossings > 0; i++ {
		if ctx.Err() != nil {
			break
		}
		if i%2 == 0 {
			for l := 1; l < len(cur); l++ {
				lg.sortByBarycenter(cur[l], cur[l-1], lg.pred)
			}
		} else {
			for l := len(cur) - 2; l >= 0; l-- {
				lg.sortByBarycenter(cur[l], cur[l+1], lg.succ)
			}
		}
		if c := lg.crossings(cur); c < bestCrossings {
			best = copyOrder(cur)
			bestCrossings = c
		}
	}
	return best
}

func copyOrder(order [][]int) [][]int {
	out := make([][]int, len(order))
	for i, l := range order {
		out[i] = append([]int(nil), l...)
	}
	return out
}

// sortByBarycenter reorders layer by the mean position of each node's neighbours in fixed.
// Nodes without neighbours there keep their position.
func (lg *layeredGraph) sortByBarycenter(layer, fixed []int, adj [][]int) {
	pos := make(map[int]int, len(fixed))
	for i, u := range fixed {
		pos[u] = i
	}
	bary := make(map[int]float64, len(layer))
	for i, u := range layer {
		sum, count := 0., 0
		for _, v := range adj[u] {
			if p, ok := pos[v]; ok {
				sum += float64(p)
				count++
			}
		}
		if count == 0 {
			bary[u] = float64(i)
			continue
		}
		bary[u] = sum / float64(count)
	}
	sort.SliceStable(layer, func(i, j int) bool {
		return bary[layer[i]] < bary[layer[j]]
	})
}

// crossings counts crossings between consecutive layers as inversions of the lower
// positions of edges sorted by upper position, with a Fenwick tree.
func (lg *layeredGraph) crossings(order [][]int) int {
	total := 0
	for l := 0; l+1 < len(order); l++ {
		upper := make(map[int]int, len(order[l]))
		for i, u := range order[l] {
			upper[u] = i
		}
		lower := make(map[int]int, len(order[l+1]))
		for i, v := range order[l+1] {
			lower[v] = i
		}
		var pairs [][2]int
		for _, u := range order[l] {
			for _, v := range lg.succ[u] {
				if p, ok := lower[v]; ok {
					pairs = append(pairs, [2]int{upper[u], p})
				}
			}
		}
		sort.Slice(pairs, func(i, j int) bool {
			if pairs[i][0] != pairs[j][0] {
				return pairs[i][0] < pairs[j][0]
			}
			return pairs[i][1] < pairs[j][1]
		})

		ft := make([]int, len(order[l+1])+1)
		seen := 0
		for _, p := range pairs {
			// edges seen so far ending strictly right of p cross it
			le := 0
			for i := p[1] + 1; i > 0; i -= i & -i {
				le += ft[i]
			}
			total += seen - le
			for i := p[1] + 1; i < len(ft); i += i & -i {
				ft[i]++
			}
			seen++
		}
	}
	return total
}

// place assigns coordinates: layers advance along the flow axis by their thickest node
// plus RankSep, nodes within a layer are centred on the flow axis, NodeSep apart.
func (lg *layeredGraph) place(g *canvasgraph.Graph, order [][]int, opts *ConfigurableOpts) {
	horizontal := opts.RankDir == "LR" || opts.RankDir == "RL"
	size := func(u int) (cross, main float64) {
		w, h := g.Nodes[u].Size()
		if horizontal {
			return h, w
		}
		return w, h
	}

	type slot struct{ cross, main, mainSize float64 }
	slots := make([]slot, lg.n)
	mainPos := 0.
	for _, layer := range order {
		thickest := 0.
		total := 0.
		for i, u := range layer {
			c, m := size(u)
			thickest = math.Max(thickest, m)
			total += c
			if i > 0 {
				total += opts.NodeSep
			}
		}
		cross := -total / 2
		for _, u := range layer {
			c, m := size(u)
			slots[u] = slot{cross: cross, main: mainPos + (thickest-m)/2, mainSize: m}
			cross += c + opts.NodeSep
		}
		mainPos += thickest + opts.RankSep
	}

	xs := make([]float64, lg.n)
	ys := make([]float64, lg.n)
	for u, s := range slots {
		main := s.main
		if opts.RankDir == "BT" || opts.RankDir == "RL" {
			main = -(s.main + s.mainSize)
		}
		if horizontal {
			xs[u], ys[u] = main, s.cross
		} else {
			xs[u], ys[u] = s.cross, main
		}
	}

	minX, minY := math.Inf(1), math.Inf(1)
	for u := range xs {
		minX = math.Min(minX, xs[u])
		minY = math.Min(minY, ys[u])
	}
	for u, n := range g.Nodes {
		n.Position = canvasgraph.Rel(xs[u]-minX, ys[u]-minY)
	}
}
