package canvasstore

import (
	"context"
	"fmt"
	"sync"

	"cdr.dev/slog"

	"oss.terrastruct.com/d2canvas/canvasgraph"
	"oss.terrastruct.com/d2canvas/lib/geo"
	"oss.terrastruct.com/d2canvas/lib/log"
)

type EventType string

const (
	EventNodeAdded   EventType = "node_added"
	EventNodeDeleted EventType = "node_deleted"
	EventNodeChanged EventType = "node_changed"
	EventEdgeAdded   EventType = "edge_added"
	EventEdgeDeleted EventType = "edge_deleted"
	EventEdgeChanged EventType = "edge_changed"
	EventParentSet   EventType = "parent_set"
	EventLayout      EventType = "layout_applied"
	EventReplaced    EventType = "replaced"
	EventSelection   EventType = "selection_changed"
)

// Selection is transient UI state. At most one of its fields is set.
type Selection struct {
	NodeID string
	EdgeID string
}

func (s Selection) IsEmpty() bool {
	return s.NodeID == "" && s.EdgeID == ""
}

// Snapshot is an immutable view of the store. Graph must not be mutated; every command
// builds a new one.
type Snapshot struct {
	Version   uint64
	Graph     *canvasgraph.Graph
	Selection Selection
}

type Event struct {
	Type     EventType
	Snapshot Snapshot
}

type Subscriber func(Event)

// Store is the single owner of the diagram graph. All mutations go through its commands
// and each one publishes a complete new snapshot.
type Store struct {
	mu     sync.Mutex
	snap   Snapshot
	subs   map[int]Subscriber
	nextID int

	// notifyMu serializes notification so subscribers observe snapshots in order.
	notifyMu sync.Mutex
}

func New(g *canvasgraph.Graph) (*Store, error) {
	if g == nil {
		g = canvasgraph.NewGraph()
	}
	g, err := Replace(g)
	if err != nil {
		return nil, err
	}
	return &Store{
		snap: Snapshot{Graph: g},
		subs: make(map[int]Subscriber),
	}, nil
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Graph returns the current committed graph. It must be treated as read-only.
func (s *Store) Graph() *canvasgraph.Graph {
	return s.Snapshot().Graph
}

// Subscribe registers fn for every published snapshot. The returned func unsubscribes.
func (s *Store) Subscribe(fn Subscriber) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// update applies edit to the current graph and publishes the result. A failing edit
// leaves the store as it was.
func (s *Store) update(ctx context.Context, typ EventType, edit func(*canvasgraph.Graph) (*canvasgraph.Graph, error)) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	g, err := edit(s.snap.Graph)
	if err != nil {
		s.mu.Unlock()
		log.Warn(ctx, "store command rejected", slog.F("command", typ), slog.Error(err))
		return err
	}
	s.snap = Snapshot{
		Version:   s.snap.Version + 1,
		Graph:     g,
		Selection: pruneSelection(g, s.snap.Selection),
	}
	ev := Event{Type: typ, Snapshot: s.snap}
	subs := s.subscribers()
	s.mu.Unlock()

	log.Debug(ctx, "store updated", slog.F("command", typ), slog.F("version", ev.Snapshot.Version))
	for _, fn := range subs {
		fn(ev)
	}
	return nil
}

func (s *Store) subscribers() []Subscriber {
	subs := make([]Subscriber, 0, len(s.subs))
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	return subs
}

func pruneSelection(g *canvasgraph.Graph, sel Selection) Selection {
	if sel.NodeID != "" && g.Node(sel.NodeID) == nil {
		return Selection{}
	}
	if sel.EdgeID != "" && g.Edge(sel.EdgeID) == nil {
		return Selection{}
	}
	return sel
}

func (s *Store) AddNode(ctx context.Context, n *canvasgraph.Node) (id string, err error) {
	err = s.update(ctx, EventNodeAdded, func(g *canvasgraph.Graph) (*canvasgraph.Graph, error) {
		g, id, err = AddNode(g, n)
		return g, err
	})
	return id, err
}

func (s *Store) DeleteNode(ctx context.Context, id string) error {
	return s.update(ctx, EventNodeDeleted, func(g *canvasgraph.Graph) (*canvasgraph.Graph, error) {
		return DeleteNode(g, id)
	})
}

func (s *Store) AddEdge(ctx context.Context, e *canvasgraph.Edge) (id string, err error) {
	err = s.update(ctx, EventEdgeAdded, func(g *canvasgraph.Graph) (*canvasgraph.Graph, error) {
		g, id, err = AddEdge(g, e)
		return g, err
	})
	return id, err
}

func (s *Store) DeleteEdge(ctx context.Context, id string) error {
	return s.update(ctx, EventEdgeDeleted, func(g *canvasgraph.Graph) (*canvasgraph.Graph, error) {
		return DeleteEdge(g, id)
	})
}

func (s *Store) UpdateEdge(ctx context.Context, id string, fn func(*canvasgraph.Edge)) error {
	return s.update(ctx, EventEdgeChanged, func(g *canvasgraph.Graph) (*canvasgraph.Graph, error) {
		return UpdateEdge(g, id, fn)
	})
}

func (s *Store) Connect(ctx context.Context, c Connection) (id string, err error) {
	err = s.update(ctx, EventEdgeAdded, func(g *canvasgraph.Graph) (*canvasgraph.Graph, error) {
		g, id, err = Connect(g, c)
		return g, err
	})
	return id, err
}

func (s *Store) ApplyChange(ctx context.Context, c Change) error {
	return s.update(ctx, EventNodeChanged, func(g *canvasgraph.Graph) (*canvasgraph.Graph, error) {
		return ApplyChange(g, c)
	})
}

func (s *Store) MoveNode(ctx context.Context, id string, p canvasgraph.AbsolutePoint) error {
	return s.update(ctx, EventNodeChanged, func(g *canvasgraph.Graph) (*canvasgraph.Graph, error) {
		return MoveNode(g, id, p)
	})
}

func (s *Store) SetParent(ctx context.Context, id, parentID string) error {
	return s.update(ctx, EventParentSet, func(g *canvasgraph.Graph) (*canvasgraph.Graph, error) {
		return SetParent(g, id, parentID)
	})
}

func (s *Store) Group(ctx context.Context, group *canvasgraph.Node, members []string, padding float64) (id string, err error) {
	err = s.update(ctx, EventParentSet, func(g *canvasgraph.Graph) (*canvasgraph.Graph, error) {
		g, id, err = Group(g, group, members, padding)
		return g, err
	})
	return id, err
}

func (s *Store) Ungroup(ctx context.Context, id string) error {
	return s.update(ctx, EventNodeDeleted, func(g *canvasgraph.Graph) (*canvasgraph.Graph, error) {
		return Ungroup(g, id)
	})
}

func (s *Store) SetNodeLabel(ctx context.Context, id, label string) error {
	return s.update(ctx, EventNodeChanged, func(g *canvasgraph.Graph) (*canvasgraph.Graph, error) {
		return SetNodeLabel(g, id, label)
	})
}

func (s *Store) SetEdgeLabel(ctx context.Context, id, label string) error {
	return s.update(ctx, EventEdgeChanged, func(g *canvasgraph.Graph) (*canvasgraph.Graph, error) {
		return SetEdgeLabel(g, id, label)
	})
}

func (s *Store) SetEdgeType(ctx context.Context, id string, t canvasgraph.EdgeType) error {
	return s.update(ctx, EventEdgeChanged, func(g *canvasgraph.Graph) (*canvasgraph.Graph, error) {
		return SetEdgeType(g, id, t)
	})
}

func (s *Store) SetControlPoint(ctx context.Context, id string, role canvasgraph.Role, offset *geo.Point) error {
	return s.update(ctx, EventEdgeChanged, func(g *canvasgraph.Graph) (*canvasgraph.Graph, error) {
		return SetControlPoint(g, id, role, offset)
	})
}

func (s *Store) ResetControlPoints(ctx context.Context, id string) error {
	return s.update(ctx, EventEdgeChanged, func(g *canvasgraph.Graph) (*canvasgraph.Graph, error) {
		return ResetControlPoints(g, id)
	})
}

func (s *Store) SetLabelT(ctx context.Context, id string, t float64) error {
	return s.update(ctx, EventEdgeChanged, func(g *canvasgraph.Graph) (*canvasgraph.Graph, error) {
		return SetLabelT(g, id, t)
	})
}

// ApplyLayout commits a layout result. It is the commit callback for a layout Runner.
func (s *Store) ApplyLayout(ctx context.Context, laidOut *canvasgraph.Graph) error {
	return s.update(ctx, EventLayout, func(g *canvasgraph.Graph) (*canvasgraph.Graph, error) {
		return ApplyLayout(g, laidOut)
	})
}

func (s *Store) Replace(ctx context.Context, next *canvasgraph.Graph) error {
	return s.update(ctx, EventReplaced, func(*canvasgraph.Graph) (*canvasgraph.Graph, error) {
		return Replace(next)
	})
}

// Select makes node id the selection. The empty id clears it.
func (s *Store) Select(ctx context.Context, id string) error {
	return s.selectWith(ctx, Selection{NodeID: id})
}

func (s *Store) SelectEdge(ctx context.Context, id string) error {
	return s.selectWith(ctx, Selection{EdgeID: id})
}

func (s *Store) selectWith(ctx context.Context, sel Selection) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if sel.NodeID != "" && s.snap.Graph.Node(sel.NodeID) == nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to select: node %q not found", sel.NodeID)
	}
	if sel.EdgeID != "" && s.snap.Graph.Edge(sel.EdgeID) == nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to select: edge %q not found", sel.EdgeID)
	}
	if s.snap.Selection == sel {
		s.mu.Unlock()
		return nil
	}
	s.snap.Version++
	s.snap.Selection = sel
	ev := Event{Type: EventSelection, Snapshot: s.snap}
	subs := s.subscribers()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
	return nil
}
