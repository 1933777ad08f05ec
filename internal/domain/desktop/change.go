package desktop

import (
	"slices"

	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

// Change summarises the visible effect of one operation. Observers apply it
// as a single update.
type Change struct {
	Shown         []protocol.SurfaceID `json:"shown,omitempty"`
	Hidden        []protocol.SurfaceID `json:"hidden,omitempty"`
	Moved         []protocol.SurfaceID `json:"moved,omitempty"`
	FocusFrom     protocol.SurfaceID   `json:"focus_from"`
	FocusTo       protocol.SurfaceID   `json:"focus_to"`
	WorkspaceFrom int                  `json:"workspace_from"`
	WorkspaceTo   int                  `json:"workspace_to"`
	Restacked     bool                 `json:"restacked,omitempty"`
}

// FocusChanged reports whether focus moved
func (c Change) FocusChanged() bool {
	return c.FocusFrom != c.FocusTo
}

// WorkspaceChanged reports whether the active workspace changed
func (c Change) WorkspaceChanged() bool {
	return c.WorkspaceFrom != c.WorkspaceTo
}

// Empty reports whether nothing visible changed
func (c Change) Empty() bool {
	return len(c.Shown) == 0 && len(c.Hidden) == 0 && len(c.Moved) == 0 &&
		!c.FocusChanged() && !c.WorkspaceChanged() && !c.Restacked
}

// mark is the observable state before an operation
type mark struct {
	visible map[protocol.SurfaceID]Rect
	zorder  []protocol.SurfaceID
	focused protocol.SurfaceID
	active  int
}

func (c *Core) mark() mark {
	m := mark{
		visible: make(map[protocol.SurfaceID]Rect),
		focused: c.focused,
		active:  c.active,
	}
	for _, id := range c.visibleIDs() {
		m.visible[id] = c.surfaces[id].Geometry
		m.zorder = append(m.zorder, id)
	}
	return m
}

// since diffs the current state against m
func (c *Core) since(m mark) Change {
	ch := Change{
		FocusFrom:     m.focused,
		FocusTo:       c.focused,
		WorkspaceFrom: m.active,
		WorkspaceTo:   c.active,
	}

	now := c.visibleIDs()
	for _, id := range now {
		prev, was := m.visible[id]
		switch {
		case !was:
			ch.Shown = append(ch.Shown, id)
		case prev != c.surfaces[id].Geometry:
			ch.Moved = append(ch.Moved, id)
		}
	}
	for _, id := range m.zorder {
		if !slices.Contains(now, id) {
			ch.Hidden = append(ch.Hidden, id)
		}
	}

	if len(ch.Shown) == 0 && len(ch.Hidden) == 0 && !slices.Equal(now, m.zorder) {
		ch.Restacked = true
	}
	return ch
}
