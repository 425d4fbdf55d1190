package canvasgraph

import (
	"fmt"
	"strconv"
	"strings"

	"oss.terrastruct.com/d2canvas/lib/geo"
)

type Side string

const (
	SideTop    Side = "top"
	SideBottom Side = "bottom"
	SideLeft   Side = "left"
	SideRight  Side = "right"
)

func (s Side) Valid() bool {
	switch s {
	case SideTop, SideBottom, SideLeft, SideRight:
		return true
	}
	return false
}

func (s Side) IsHorizontal() bool {
	return s == SideLeft || s == SideRight
}

// Direction is the outward unit direction of the side.
func (s Side) Direction() geo.Point {
	switch s {
	case SideTop:
		return geo.NewPoint(0, -1)
	case SideBottom:
		return geo.NewPoint(0, 1)
	case SideLeft:
		return geo.NewPoint(-1, 0)
	default:
		return geo.NewPoint(1, 0)
	}
}

type Role string

const (
	RoleSource Role = "s"
	RoleTarget Role = "t"
)

// DefaultSide is where an edge attaches when its handle is missing or unrecognized.
func (r Role) DefaultSide() Side {
	if r == RoleTarget {
		return SideTop
	}
	return SideBottom
}

// HANDLE_SLOTS is the number of handle slots along each node side.
const HANDLE_SLOTS = 10

// legacy 3-slot sides map onto these slots of the 10-slot side
var legacySlots = [3]int{1, 4, 8}

const CENTER_SLOT = 4

type HandleForm int

const (
	// HandleUnknown is an empty or unrecognized handle id.
	HandleUnknown HandleForm = iota
	// HandleBare is a side name without index: "bottom".
	HandleBare
	// HandleLegacy is a 3-slot index: "right-2".
	HandleLegacy
	// HandleIndexed is the current form: "right-s-8".
	HandleIndexed
)

type Handle struct {
	Raw  string
	Form HandleForm
	Side Side
	Role Role
	// Index is the slot, -1 for the side centre.
	Index int
}

func FormatHandle(side Side, role Role, index int) string {
	return fmt.Sprintf("%s-%s-%d", side, role, index)
}

// ParseHandle decodes a handle id. role is the end of the edge the handle is used for and
// applies when the id does not carry its own.
func ParseHandle(raw string, role Role) Handle {
	h := Handle{
		Raw:   raw,
		Form:  HandleUnknown,
		Side:  role.DefaultSide(),
		Role:  role,
		Index: -1,
	}

	parts := strings.Split(raw, "-")
	side := Side(parts[0])
	if !side.Valid() {
		return h
	}

	switch len(parts) {
	case 1:
		h.Form = HandleBare
		h.Side = side
	case 2:
		i, err := strconv.Atoi(parts[1])
		if err != nil || i < 0 || i >= len(legacySlots) {
			return h
		}
		h.Form = HandleLegacy
		h.Side = side
		h.Index = legacySlots[i]
	case 3:
		r := Role(parts[1])
		if r != RoleSource && r != RoleTarget {
			return h
		}
		i, err := strconv.Atoi(parts[2])
		if err != nil || i < 0 || i >= HANDLE_SLOTS {
			return h
		}
		h.Form = HandleIndexed
		h.Side = side
		h.Role = r
		h.Index = i
	}
	return h
}

// Migrated returns the current-form id of the handle. Bare sides take the centre slot,
// legacy indices their 10-slot equivalent, anything else is returned unchanged.
func (h Handle) Migrated() string {
	switch h.Form {
	case HandleBare:
		return FormatHandle(h.Side, h.Role, CENTER_SLOT)
	case HandleLegacy:
		return FormatHandle(h.Side, h.Role, h.Index)
	default:
		return h.Raw
	}
}

// Fraction is the position of the handle along its side, from the top or left corner.
func (h Handle) Fraction() float64 {
	if h.Index < 0 {
		return 0.5
	}
	return (float64(h.Index) + 0.5) / HANDLE_SLOTS
}

// Point is the absolute attachment point of the handle on box.
func (h Handle) Point(box geo.Box) geo.Point {
	f := h.Fraction()
	switch h.Side {
	case SideTop:
		return geo.NewPoint(box.Left()+box.Width*f, box.Top())
	case SideBottom:
		return geo.NewPoint(box.Left()+box.Width*f, box.Bottom())
	case SideLeft:
		return geo.NewPoint(box.Left(), box.Top()+box.Height*f)
	default:
		return geo.NewPoint(box.Right(), box.Top()+box.Height*f)
	}
}
