package desktop

import (
	"fmt"

	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

// State is a surface's lifecycle state. Destroyed surfaces leave the arena
// and have no state.
type State uint8

const (
	StateCreated State = iota
	StateMapped
	StateUnmapped
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateMapped:
		return "mapped"
	case StateUnmapped:
		return "unmapped"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateCreated, StateMapped, StateUnmapped} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown surface state %q", text)
}

// Rect is a position and size in output coordinates
type Rect struct {
	X      int32  `json:"x"`
	Y      int32  `json:"y"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// Valid reports whether the rect has a non-empty area
func (r Rect) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// Contains reports whether the point lies inside the rect
func (r Rect) Contains(x, y int32) bool {
	return int64(x) >= int64(r.X) && int64(x) < int64(r.X)+int64(r.Width) &&
		int64(y) >= int64(r.Y) && int64(y) < int64(r.Y)+int64(r.Height)
}

// String renders WxH+X+Y
func (r Rect) String() string {
	return fmt.Sprintf("%dx%d%+d%+d", r.Width, r.Height, r.X, r.Y)
}

// FromConfig converts a surface config to a rect
func FromConfig(c protocol.SurfaceConfig) Rect {
	return Rect{X: c.X, Y: c.Y, Width: c.Width, Height: c.Height}
}

// Unassigned marks a surface that has never been placed on a workspace
const Unassigned = -1

// Surface is one client window
type Surface struct {
	ID         protocol.SurfaceID `json:"id"`
	Owner      protocol.PID       `json:"owner"`
	Title      string             `json:"title,omitempty"`
	Geometry   Rect               `json:"geometry"`
	State      State              `json:"state"`
	Fullscreen bool               `json:"fullscreen"`
	Workspace  int                `json:"workspace"`

	// stashed is the windowed geometry while fullscreen
	stashed Rect
}

// Mapped reports whether the surface is in the mapped state
func (s *Surface) Mapped() bool {
	return s.State == StateMapped
}
