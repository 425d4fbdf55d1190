package canvasgraph

import (
	"errors"
	"fmt"
)

// ValidationError is a structural defect of a graph.
type ValidationError struct {
	NodeID string
	EdgeID string
	Reason string
}

func (e *ValidationError) Error() string {
	switch {
	case e.EdgeID != "":
		return fmt.Sprintf("invalid edge %q: %s", e.EdgeID, e.Reason)
	case e.NodeID != "":
		return fmt.Sprintf("invalid node %q: %s", e.NodeID, e.Reason)
	default:
		return "invalid graph: " + e.Reason
	}
}

// Validate checks the graph invariants: ids are unique and non-empty, edges reference
// existing nodes, parents exist and are groups, and the parent relation is a forest.
// All defects are returned joined.
func (g *Graph) Validate() error {
	var errs []error

	nodes := make(map[string]*Node, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			errs = append(errs, &ValidationError{Reason: "node with empty id"})
			continue
		}
		if _, ok := nodes[n.ID]; ok {
			errs = append(errs, &ValidationError{NodeID: n.ID, Reason: "duplicate id"})
			continue
		}
		nodes[n.ID] = n
	}

	for _, n := range g.Nodes {
		if n.ParentID == "" {
			continue
		}
		p, ok := nodes[n.ParentID]
		if !ok {
			errs = append(errs, &ValidationError{NodeID: n.ID, Reason: fmt.Sprintf("parent %q not found", n.ParentID)})
			continue
		}
		if !p.IsGroup() {
			errs = append(errs, &ValidationError{NodeID: n.ID, Reason: fmt.Sprintf("parent %q is not a group", n.ParentID)})
		}
	}

	for _, n := range g.Nodes {
		if hasParentCycle(nodes, n) {
			errs = append(errs, &ValidationError{NodeID: n.ID, Reason: "parent cycle"})
		}
	}

	edges := make(map[string]struct{}, len(g.Edges))
	for _, e := range g.Edges {
		if e.ID == "" {
			errs = append(errs, &ValidationError{Reason: "edge with empty id"})
			continue
		}
		if _, ok := edges[e.ID]; ok {
			errs = append(errs, &ValidationError{EdgeID: e.ID, Reason: "duplicate id"})
			continue
		}
		edges[e.ID] = struct{}{}
		if _, ok := nodes[e.Source]; !ok {
			errs = append(errs, &ValidationError{EdgeID: e.ID, Reason: fmt.Sprintf("source %q not found", e.Source)})
		}
		if _, ok := nodes[e.Target]; !ok {
			errs = append(errs, &ValidationError{EdgeID: e.ID, Reason: fmt.Sprintf("target %q not found", e.Target)})
		}
	}

	return errors.Join(errs...)
}

func hasParentCycle(nodes map[string]*Node, n *Node) bool {
	seen := map[string]struct{}{}
	for n != nil && n.ParentID != "" {
		if _, ok := seen[n.ID]; ok {
			return true
		}
		seen[n.ID] = struct{}{}
		n = nodes[n.ParentID]
	}
	return false
}
