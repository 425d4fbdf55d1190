// Package canvasgesture implements pointer drags over the canvas as an explicit state
// machine: Idle → Dragging → Committed or Canceled. A drag previews its effect while the
// pointer moves and writes to the store once, on End. Every exit clears the alignment
// guides.
package canvasgesture

import (
	"context"
	"errors"
	"fmt"

	"cdr.dev/slog"

	"oss.terrastruct.com/d2canvas/canvasalign"
	"oss.terrastruct.com/d2canvas/canvasgraph"
	"oss.terrastruct.com/d2canvas/canvasroute"
	"oss.terrastruct.com/d2canvas/canvasstore"
	"oss.terrastruct.com/d2canvas/lib/geo"
	"oss.terrastruct.com/d2canvas/lib/log"
)

type State int

const (
	StateIdle State = iota
	StateDragging
	StateCommitted
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDragging:
		return "dragging"
	case StateCommitted:
		return "committed"
	case StateCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

type Kind int

const (
	KindNone Kind = iota
	KindNode
	KindControlPoint
	KindLabel
)

func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindControlPoint:
		return "control point"
	case KindLabel:
		return "label"
	default:
		return "none"
	}
}

var ErrDragging = errors.New("a drag is already in progress")

// Preview is the in-progress effect of a drag, for rendering between pointer moves.
type Preview struct {
	// Position is the snapped top-left of a dragged node.
	Position canvasgraph.AbsolutePoint
	Guides   []canvasalign.Guide
	// Offset is the control point override relative to its endpoint.
	Offset geo.Point
	// LabelT is the label parameter of a dragged label.
	LabelT float64
}

type Opts struct {
	Align canvasalign.Opts
	Route canvasroute.Opts
}

// Gesture tracks at most one drag at a time. It holds ids, never graph snapshots: each
// pointer event re-reads the latest committed graph from the store.
type Gesture struct {
	store *canvasstore.Store
	opts  Opts

	state State
	kind  Kind

	nodeID string
	edgeID string
	role   canvasgraph.Role

	// grab is the pointer position relative to the dragged node's top-left.
	grab    geo.Point
	moved   bool
	preview Preview
}

func New(store *canvasstore.Store, opts Opts) *Gesture {
	return &Gesture{
		store: store,
		opts:  opts,
	}
}

func (g *Gesture) State() State {
	return g.state
}

func (g *Gesture) Kind() Kind {
	return g.kind
}

// Preview returns the current preview. Guides are empty outside of a node drag.
func (g *Gesture) Preview() Preview {
	return g.preview
}

func (g *Gesture) begin(ctx context.Context, kind Kind) error {
	if g.state == StateDragging {
		return ErrDragging
	}
	g.state = StateDragging
	g.kind = kind
	g.moved = false
	g.preview = Preview{}
	log.Debug(ctx, "drag started", slog.F("kind", kind.String()))
	return nil
}

// BeginNode starts dragging node id, grabbed at the canvas point pointer.
func (g *Gesture) BeginNode(ctx context.Context, id string, pointer geo.Point) error {
	graph := g.store.Graph()
	abs, err := graph.AbsolutePosition(id)
	if err != nil {
		return fmt.Errorf("failed to begin drag: %w", err)
	}
	if err := g.begin(ctx, KindNode); err != nil {
		return err
	}
	g.nodeID = id
	g.grab = pointer.Sub(abs.Point())
	g.preview.Position = abs
	return nil
}

// BeginControlPoint starts dragging the control point of the role end of edge id.
func (g *Gesture) BeginControlPoint(ctx context.Context, id string, role canvasgraph.Role) error {
	in, err := g.edgeInput(id)
	if err != nil {
		return fmt.Errorf("failed to begin drag: %w", err)
	}
	if err := g.begin(ctx, KindControlPoint); err != nil {
		return err
	}
	g.edgeID = id
	g.role = role
	cp1, cp2 := canvasroute.ControlPoints(in, g.opts.Route.Curvature)
	if role == canvasgraph.RoleTarget {
		g.preview.Offset = canvasroute.ControlPointOffset(in, role, cp2)
	} else {
		g.preview.Offset = canvasroute.ControlPointOffset(in, role, cp1)
	}
	return nil
}

// BeginLabel starts dragging the label of edge id.
func (g *Gesture) BeginLabel(ctx context.Context, id string) error {
	e := g.store.Graph().Edge(id)
	if e == nil {
		return fmt.Errorf("failed to begin drag: edge %q not found", id)
	}
	if err := g.begin(ctx, KindLabel); err != nil {
		return err
	}
	g.edgeID = id
	g.preview.LabelT = g.opts.Route.LabelT
	if e.Routing.LabelT != nil {
		g.preview.LabelT = *e.Routing.LabelT
	}
	return nil
}

func (g *Gesture) edgeInput(id string) (canvasroute.Input, error) {
	graph := g.store.Graph()
	e := graph.Edge(id)
	if e == nil {
		return canvasroute.Input{}, fmt.Errorf("edge %q not found", id)
	}
	return canvasroute.InputFor(graph, e)
}

// Move updates the preview for the pointer at the canvas point pointer. shift selects
// grid snapping over alignment for node drags. Moving while idle is a no-op.
func (g *Gesture) Move(ctx context.Context, pointer geo.Point, shift bool) (Preview, error) {
	if g.state != StateDragging {
		return g.preview, nil
	}
	switch g.kind {
	case KindNode:
		proposed := canvasgraph.AbsolutePoint(pointer.Sub(g.grab))
		res, err := canvasalign.ComputeForNode(g.store.Graph(), g.nodeID, proposed, shift, g.opts.Align)
		if err != nil {
			g.cancel(ctx, err)
			return g.preview, err
		}
		g.preview.Position = canvasgraph.AbsolutePoint(res.Apply(proposed.Point()))
		g.preview.Guides = res.Guides
	case KindControlPoint:
		in, err := g.edgeInput(g.edgeID)
		if err != nil {
			g.cancel(ctx, err)
			return g.preview, err
		}
		g.preview.Offset = canvasroute.ControlPointOffset(in, g.role, pointer)
	case KindLabel:
		graph := g.store.Graph()
		e := graph.Edge(g.edgeID)
		if e == nil {
			err := fmt.Errorf("edge %q not found", g.edgeID)
			g.cancel(ctx, err)
			return g.preview, err
		}
		p, err := canvasroute.RenderEdge(graph, e, false, g.opts.Route)
		if err != nil {
			g.cancel(ctx, err)
			return g.preview, err
		}
		g.preview.LabelT = p.ClosestT(pointer, g.opts.Route.Samples)
	}
	g.moved = true
	return g.preview, nil
}

// End commits the drag to the store. A pointer-up with no drag in progress is a no-op. A
// drag whose target disappeared is canceled and the store is left as it was.
func (g *Gesture) End(ctx context.Context) error {
	if g.state != StateDragging {
		g.preview.Guides = nil
		return nil
	}
	if !g.moved {
		g.finish(ctx, StateCommitted)
		return nil
	}

	var err error
	switch g.kind {
	case KindNode:
		err = g.store.MoveNode(ctx, g.nodeID, g.preview.Position)
	case KindControlPoint:
		offset := g.preview.Offset
		err = g.store.SetControlPoint(ctx, g.edgeID, g.role, &offset)
	case KindLabel:
		err = g.store.SetLabelT(ctx, g.edgeID, g.preview.LabelT)
	}
	if err != nil {
		g.cancel(ctx, err)
		return err
	}
	g.finish(ctx, StateCommitted)
	return nil
}

// Cancel abandons the drag without touching the store, for blur, escape or teardown.
func (g *Gesture) Cancel(ctx context.Context) {
	if g.state != StateDragging {
		g.preview.Guides = nil
		return
	}
	g.finish(ctx, StateCanceled)
}

func (g *Gesture) cancel(ctx context.Context, err error) {
	log.Warn(ctx, "drag canceled", slog.F("kind", g.kind.String()), slog.Error(err))
	g.finish(ctx, StateCanceled)
}

func (g *Gesture) finish(ctx context.Context, state State) {
	log.Debug(ctx, "drag finished", slog.F("kind", g.kind.String()), slog.F("state", state.String()))
	g.state = state
	g.preview.Guides = nil
	g.nodeID = ""
	g.edgeID = ""
	g.grab = geo.Point{}
}
