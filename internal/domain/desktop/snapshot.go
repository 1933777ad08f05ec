package desktop

import (
	"slices"

	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

// Workspace describes one workspace in a snapshot
type Workspace struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
	Surfaces int    `json:"surfaces"`
}

// Snapshot is a deep copy of the core. It shares nothing with the core and
// may be handed to other goroutines.
type Snapshot struct {
	Surfaces   []Surface            `json:"surfaces"`
	ZOrder     []protocol.SurfaceID `json:"z_order"`
	FocusOrder []protocol.SurfaceID `json:"focus_order"`
	Focused    protocol.SurfaceID   `json:"focused"`
	Workspaces []Workspace          `json:"workspaces"`
	Active     int                  `json:"active"`
	Output     Rect                 `json:"output"`
}

// Snapshot copies the current state. Surfaces are ordered by id.
func (c *Core) Snapshot() Snapshot {
	snap := Snapshot{
		Surfaces:   make([]Surface, 0, len(c.surfaces)),
		ZOrder:     slices.Clone(c.zstack),
		FocusOrder: slices.Clone(c.ring),
		Focused:    c.focused,
		Workspaces: make([]Workspace, len(c.workspaces)),
		Active:     c.active,
		Output:     c.output,
	}

	for i, name := range c.workspaces {
		snap.Workspaces[i] = Workspace{Index: i, Name: name, Active: i == c.active}
	}
	for _, s := range c.surfaces {
		snap.Surfaces = append(snap.Surfaces, *s)
		if s.Workspace != Unassigned {
			snap.Workspaces[s.Workspace].Surfaces++
		}
	}
	slices.SortFunc(snap.Surfaces, func(a, b Surface) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return snap
}

// Visible returns the displayed surfaces of the snapshot, bottom to top
func (s Snapshot) Visible() []Surface {
	byID := make(map[protocol.SurfaceID]Surface, len(s.Surfaces))
	for _, sf := range s.Surfaces {
		byID[sf.ID] = sf
	}
	var out []Surface
	for _, id := range s.ZOrder {
		if sf := byID[id]; sf.Mapped() && sf.Workspace == s.Active {
			out = append(out, sf)
		}
	}
	return out
}
