package desktop

import (
	"errors"
	"fmt"
	"slices"

	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

var (
	ErrSurfaceNotFound     = errors.New("surface not found")
	ErrSurfaceExists       = errors.New("surface already exists")
	ErrNotMapped           = errors.New("surface is not mapped")
	ErrAlreadyMapped       = errors.New("surface is already mapped")
	ErrWorkspaceOutOfRange = errors.New("workspace out of range")
	ErrInvalidGeometry     = errors.New("geometry must have a non-empty area")
)

// Core is the surface and workspace state machine. It is not safe for
// concurrent use; one goroutine owns it and hands out snapshots.
type Core struct {
	surfaces map[protocol.SurfaceID]*Surface
	// zstack is bottom to top
	zstack []protocol.SurfaceID
	// ring holds mapped surfaces, least recently focused first
	ring    []protocol.SurfaceID
	focused protocol.SurfaceID

	workspaces []string
	active     int
	output     Rect
}

// New creates a core with the named workspaces and output geometry.
// Workspace 0 starts active.
func New(workspaces []string, output Rect) (*Core, error) {
	if len(workspaces) == 0 {
		return nil, fmt.Errorf("%w: at least one workspace is required", ErrWorkspaceOutOfRange)
	}
	if !output.Valid() {
		return nil, fmt.Errorf("output: %w", ErrInvalidGeometry)
	}
	return &Core{
		surfaces:   make(map[protocol.SurfaceID]*Surface),
		workspaces: slices.Clone(workspaces),
		output:     output,
	}, nil
}

// Create adds an invisible surface
func (c *Core) Create(id protocol.SurfaceID, owner protocol.PID, title string, geometry Rect) (Change, error) {
	if _, ok := c.surfaces[id]; ok {
		return Change{}, fmt.Errorf("surface %d: %w", id, ErrSurfaceExists)
	}
	if !geometry.Valid() {
		return Change{}, fmt.Errorf("surface %d: %w", id, ErrInvalidGeometry)
	}

	m := c.mark()
	c.surfaces[id] = &Surface{
		ID:        id,
		Owner:     owner,
		Title:     title,
		Geometry:  geometry,
		State:     StateCreated,
		Workspace: Unassigned,
	}
	c.zstack = append(c.zstack, id)
	return c.since(m), nil
}

// Map makes a surface eligible for display. A surface that was never
// placed goes to the active workspace.
func (c *Core) Map(id protocol.SurfaceID) (Change, error) {
	s, err := c.get(id)
	if err != nil {
		return Change{}, err
	}
	if s.Mapped() {
		return Change{}, fmt.Errorf("surface %d: %w", id, ErrAlreadyMapped)
	}

	m := c.mark()
	s.State = StateMapped
	if s.Workspace == Unassigned {
		s.Workspace = c.active
	}
	c.ring = slices.Insert(c.ring, 0, id)
	c.raise(id)
	return c.since(m), nil
}

// MapAndFocus maps a surface and focuses it as one change
func (c *Core) MapAndFocus(id protocol.SurfaceID) (Change, error) {
	m := c.mark()
	if _, err := c.Map(id); err != nil {
		return Change{}, err
	}
	if _, err := c.Focus(id); err != nil {
		return Change{}, err
	}
	return c.since(m), nil
}

// Unmap hides a surface. Its record and workspace placement remain.
func (c *Core) Unmap(id protocol.SurfaceID) (Change, error) {
	s, err := c.get(id)
	if err != nil {
		return Change{}, err
	}
	if !s.Mapped() {
		return Change{}, fmt.Errorf("surface %d: %w", id, ErrNotMapped)
	}

	m := c.mark()
	c.leaveFullscreen(s)
	s.State = StateUnmapped
	c.ring = remove(c.ring, id)
	if c.focused == id {
		c.focused = c.fallback(s.Workspace)
	}
	return c.since(m), nil
}

// Destroy removes a surface entirely
func (c *Core) Destroy(id protocol.SurfaceID) (Change, error) {
	s, err := c.get(id)
	if err != nil {
		return Change{}, err
	}

	m := c.mark()
	c.destroy(s)
	return c.since(m), nil
}

func (c *Core) destroy(s *Surface) {
	delete(c.surfaces, s.ID)
	c.zstack = remove(c.zstack, s.ID)
	c.ring = remove(c.ring, s.ID)
	if c.focused == s.ID {
		c.focused = c.fallback(s.Workspace)
	}
}

// RemoveClient destroys every surface owned by pid and returns their ids
func (c *Core) RemoveClient(pid protocol.PID) ([]protocol.SurfaceID, Change) {
	m := c.mark()
	var removed []protocol.SurfaceID
	for _, id := range slices.Clone(c.zstack) {
		if s := c.surfaces[id]; s.Owner == pid {
			c.destroy(s)
			removed = append(removed, id)
		}
	}
	return removed, c.since(m)
}

// Focus gives a mapped surface focus, makes it the most recently focused
// and raises it. Focusing a surface on another workspace activates that
// workspace.
func (c *Core) Focus(id protocol.SurfaceID) (Change, error) {
	s, err := c.get(id)
	if err != nil {
		return Change{}, err
	}
	if !s.Mapped() {
		return Change{}, fmt.Errorf("surface %d: %w", id, ErrNotMapped)
	}

	m := c.mark()
	c.active = s.Workspace
	c.ring = append(remove(c.ring, id), id)
	c.focused = id
	c.raise(id)
	return c.since(m), nil
}

// CycleForward moves focus to the next mapped surface on the active
// workspace in focus order. The order itself is not changed.
func (c *Core) CycleForward() Change {
	return c.cycle(1)
}

// CycleBackward is the inverse of CycleForward
func (c *Core) CycleBackward() Change {
	return c.cycle(-1)
}

func (c *Core) cycle(step int) Change {
	m := c.mark()
	order := c.cycleOrder()
	if len(order) == 0 {
		return c.since(m)
	}

	i := slices.Index(order, c.focused)
	switch {
	case i < 0 && step > 0:
		i = 0
	case i < 0:
		i = len(order) - 1
	default:
		i = (i + step + len(order)) % len(order)
	}
	c.focused = order[i]
	c.raise(c.focused)
	return c.since(m)
}

// cycleOrder is the focus ring restricted to the active workspace
func (c *Core) cycleOrder() []protocol.SurfaceID {
	order := make([]protocol.SurfaceID, 0, len(c.ring))
	for _, id := range c.ring {
		if c.surfaces[id].Workspace == c.active {
			order = append(order, id)
		}
	}
	return order
}

// SetFullscreen toggles fullscreen on a mapped surface. Entering forces the
// output geometry; leaving restores the geometry it had before.
func (c *Core) SetFullscreen(id protocol.SurfaceID, on bool) (Change, error) {
	s, err := c.get(id)
	if err != nil {
		return Change{}, err
	}
	if !s.Mapped() {
		return Change{}, fmt.Errorf("surface %d: %w", id, ErrNotMapped)
	}

	m := c.mark()
	switch {
	case on && !s.Fullscreen:
		s.stashed = s.Geometry
		s.Geometry = c.output
		s.Fullscreen = true
		c.raise(id)
	case !on:
		c.leaveFullscreen(s)
	}
	return c.since(m), nil
}

func (c *Core) leaveFullscreen(s *Surface) {
	if !s.Fullscreen {
		return
	}
	s.Geometry = s.stashed
	s.stashed = Rect{}
	s.Fullscreen = false
}

// SetGeometry moves or resizes a surface. While fullscreen the new
// geometry takes effect when fullscreen ends.
func (c *Core) SetGeometry(id protocol.SurfaceID, geometry Rect) (Change, error) {
	s, err := c.get(id)
	if err != nil {
		return Change{}, err
	}
	if !geometry.Valid() {
		return Change{}, fmt.Errorf("surface %d: %w", id, ErrInvalidGeometry)
	}

	m := c.mark()
	if s.Fullscreen {
		s.stashed = geometry
	} else {
		s.Geometry = geometry
	}
	return c.since(m), nil
}

// SwitchWorkspace activates workspace index. Every visibility change
// happens in this one call; focus moves to the most recently focused
// surface there, or to none.
func (c *Core) SwitchWorkspace(index int) (Change, error) {
	if index < 0 || index >= len(c.workspaces) {
		return Change{}, fmt.Errorf("workspace %d of %d: %w", index, len(c.workspaces), ErrWorkspaceOutOfRange)
	}

	m := c.mark()
	if index != c.active {
		c.active = index
		c.focused = c.fallback(index)
	}
	return c.since(m), nil
}

// NextWorkspace activates the following workspace, wrapping at the end
func (c *Core) NextWorkspace() Change {
	ch, _ := c.SwitchWorkspace((c.active + 1) % len(c.workspaces))
	return ch
}

// PreviousWorkspace activates the preceding workspace, wrapping at the start
func (c *Core) PreviousWorkspace() Change {
	ch, _ := c.SwitchWorkspace((c.active - 1 + len(c.workspaces)) % len(c.workspaces))
	return ch
}

// MoveToWorkspace reassigns a surface. If it was focused and leaves the
// active workspace, focus falls back within the active workspace.
func (c *Core) MoveToWorkspace(id protocol.SurfaceID, index int) (Change, error) {
	s, err := c.get(id)
	if err != nil {
		return Change{}, err
	}
	if index < 0 || index >= len(c.workspaces) {
		return Change{}, fmt.Errorf("workspace %d of %d: %w", index, len(c.workspaces), ErrWorkspaceOutOfRange)
	}

	m := c.mark()
	s.Workspace = index
	if c.focused == id && index != c.active {
		c.focused = c.fallback(c.active)
	}
	return c.since(m), nil
}

// SetOutput changes the output geometry. Fullscreen surfaces follow it.
func (c *Core) SetOutput(output Rect) (Change, error) {
	if !output.Valid() {
		return Change{}, fmt.Errorf("output: %w", ErrInvalidGeometry)
	}

	m := c.mark()
	c.output = output
	for _, s := range c.surfaces {
		if s.Fullscreen {
			s.Geometry = output
		}
	}
	return c.since(m), nil
}

// Surface returns a copy of one surface
func (c *Core) Surface(id protocol.SurfaceID) (Surface, bool) {
	s, ok := c.surfaces[id]
	if !ok {
		return Surface{}, false
	}
	return *s, true
}

// Focused returns the focused surface id
func (c *Core) Focused() (protocol.SurfaceID, bool) {
	return c.focused, c.focused != 0
}

// Active returns the active workspace index
func (c *Core) Active() int {
	return c.active
}

// Output returns the output geometry
func (c *Core) Output() Rect {
	return c.output
}

// Len returns the number of surfaces in any state
func (c *Core) Len() int {
	return len(c.surfaces)
}

// Visible returns the displayed surfaces, bottom to top
func (c *Core) Visible() []Surface {
	ids := c.visibleIDs()
	out := make([]Surface, len(ids))
	for i, id := range ids {
		out[i] = *c.surfaces[id]
	}
	return out
}

// SurfaceAt returns the topmost visible surface under the point
func (c *Core) SurfaceAt(x, y int32) (protocol.SurfaceID, bool) {
	ids := c.visibleIDs()
	for i := len(ids) - 1; i >= 0; i-- {
		if c.surfaces[ids[i]].Geometry.Contains(x, y) {
			return ids[i], true
		}
	}
	return 0, false
}

func (c *Core) visibleIDs() []protocol.SurfaceID {
	var ids []protocol.SurfaceID
	for _, id := range c.zstack {
		if s := c.surfaces[id]; s.Mapped() && s.Workspace == c.active {
			ids = append(ids, id)
		}
	}
	return ids
}

// Counts returns the number of surfaces in each state
func (c *Core) Counts() map[string]int {
	counts := map[string]int{
		StateCreated.String():  0,
		StateMapped.String():   0,
		StateUnmapped.String(): 0,
	}
	for _, s := range c.surfaces {
		counts[s.State.String()]++
	}
	return counts
}

// fallback picks the most recently focused mapped surface on workspace
func (c *Core) fallback(workspace int) protocol.SurfaceID {
	for i := len(c.ring) - 1; i >= 0; i-- {
		if s := c.surfaces[c.ring[i]]; s.Workspace == workspace {
			return s.ID
		}
	}
	return 0
}

func (c *Core) raise(id protocol.SurfaceID) {
	c.zstack = append(remove(c.zstack, id), id)
}

func (c *Core) get(id protocol.SurfaceID) (*Surface, error) {
	s, ok := c.surfaces[id]
	if !ok {
		return nil, fmt.Errorf("surface %d: %w", id, ErrSurfaceNotFound)
	}
	return s, nil
}

func remove(ids []protocol.SurfaceID, id protocol.SurfaceID) []protocol.SurfaceID {
	return slices.DeleteFunc(ids, func(v protocol.SurfaceID) bool { return v == id })
}
