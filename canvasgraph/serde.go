package canvasgraph

import (
	"encoding/json"
	"fmt"
)

type serializedNode struct {
	ID       string          `json:"id"`
	Kind     NodeKind        `json:"kind"`
	Position RelativePoint   `json:"position"`
	Width    float64         `json:"width"`
	Height   float64         `json:"height"`
	ParentID string          `json:"parentId,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

func (n *Node) MarshalJSON() ([]byte, error) {
	sn := serializedNode{
		ID:       n.ID,
		Kind:     n.Kind(),
		Position: n.Position,
		Width:    n.Width,
		Height:   n.Height,
		ParentID: n.ParentID,
	}
	if n.Data != nil {
		b, err := json.Marshal(n.Data)
		if err != nil {
			return nil, err
		}
		sn.Data = b
	}
	return json.Marshal(sn)
}

func (n *Node) UnmarshalJSON(b []byte) error {
	var sn serializedNode
	if err := json.Unmarshal(b, &sn); err != nil {
		return err
	}
	payload, err := DecodePayload(sn.Kind, sn.Data)
	if err != nil {
		return fmt.Errorf("node %q: %w", sn.ID, err)
	}
	*n = Node{
		ID:       sn.ID,
		Position: sn.Position,
		Width:    sn.Width,
		Height:   sn.Height,
		ParentID: sn.ParentID,
		Data:     payload,
	}
	return nil
}

// DecodePayload decodes the payload of a node of the given kind. An empty kind is a
// service.
func DecodePayload(kind NodeKind, data json.RawMessage) (Payload, error) {
	switch kind {
	case KindService, "":
		var d ServiceData
		if len(data) > 0 {
			if err := json.Unmarshal(data, &d); err != nil {
				return nil, err
			}
		}
		return d, nil
	case KindGroup:
		var d GroupData
		if len(data) > 0 {
			if err := json.Unmarshal(data, &d); err != nil {
				return nil, err
			}
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown node kind %q", kind)
	}
}
