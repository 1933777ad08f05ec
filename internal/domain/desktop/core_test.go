package desktop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

var output = Rect{Width: 1920, Height: 1080}

func newCore(t *testing.T, workspaces ...string) *Core {
	t.Helper()
	if len(workspaces) == 0 {
		workspaces = []string{"1", "2", "3"}
	}
	c, err := New(workspaces, output)
	require.NoError(t, err)
	return c
}

// window creates and maps a surface
func window(t *testing.T, c *Core, id protocol.SurfaceID) {
	t.Helper()
	_, err := c.Create(id, 100, "", Rect{X: 10, Y: 20, Width: 800, Height: 600})
	require.NoError(t, err)
	_, err = c.Map(id)
	require.NoError(t, err)
}

func focused(c *Core) protocol.SurfaceID {
	id, _ := c.Focused()
	return id
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, output)
	assert.ErrorIs(t, err, ErrWorkspaceOutOfRange)
	_, err = New([]string{"1"}, Rect{})
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestLifecycle(t *testing.T) {
	c := newCore(t)

	ch, err := c.Create(1, 100, "editor", Rect{Width: 800, Height: 600})
	require.NoError(t, err)
	assert.True(t, ch.Empty(), "created surfaces are invisible")
	assert.Empty(t, c.Visible())

	_, err = c.Create(1, 100, "", Rect{Width: 1, Height: 1})
	assert.ErrorIs(t, err, ErrSurfaceExists)
	_, err = c.Create(2, 100, "", Rect{})
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	_, err = c.Unmap(1)
	assert.ErrorIs(t, err, ErrNotMapped)

	ch, err = c.Map(1)
	require.NoError(t, err)
	assert.Equal(t, []protocol.SurfaceID{1}, ch.Shown)
	s, _ := c.Surface(1)
	assert.Equal(t, StateMapped, s.State)
	assert.Equal(t, 0, s.Workspace)

	_, err = c.Map(1)
	assert.ErrorIs(t, err, ErrAlreadyMapped)

	ch, err = c.Unmap(1)
	require.NoError(t, err)
	assert.Equal(t, []protocol.SurfaceID{1}, ch.Hidden)
	s, _ = c.Surface(1)
	assert.Equal(t, StateUnmapped, s.State)
	assert.Equal(t, 0, s.Workspace, "placement survives unmap")

	_, err = c.Destroy(1)
	require.NoError(t, err)
	_, ok := c.Surface(1)
	assert.False(t, ok)
	assert.Zero(t, c.Len())

	_, err = c.Destroy(1)
	assert.ErrorIs(t, err, ErrSurfaceNotFound)
}

func TestFocusCycleScenario(t *testing.T) {
	c := newCore(t)
	for id := protocol.SurfaceID(1); id <= 3; id++ {
		window(t, c, id)
	}
	for id := protocol.SurfaceID(1); id <= 3; id++ {
		_, err := c.Focus(id)
		require.NoError(t, err)
	}
	require.Equal(t, protocol.SurfaceID(3), focused(c))

	c.CycleForward()
	assert.Equal(t, protocol.SurfaceID(1), focused(c))
	c.CycleForward()
	assert.Equal(t, protocol.SurfaceID(2), focused(c))
	c.CycleBackward()
	assert.Equal(t, protocol.SurfaceID(1), focused(c))

	assert.Equal(t, []protocol.SurfaceID{1, 2, 3}, c.Snapshot().FocusOrder, "cycling does not reorder")
}

func TestFocusCycleIdempotence(t *testing.T) {
	for n := 1; n <= 6; n++ {
		c := newCore(t)
		for id := 1; id <= n; id++ {
			window(t, c, protocol.SurfaceID(id))
		}
		start := protocol.SurfaceID(1 + n/2)
		_, err := c.Focus(start)
		require.NoError(t, err)

		for i := 0; i < n; i++ {
			c.CycleForward()
		}
		for i := 0; i < n; i++ {
			c.CycleBackward()
		}
		assert.Equal(t, start, focused(c), "n=%d", n)
	}
}

func TestCycleWithoutFocus(t *testing.T) {
	c := newCore(t)
	assert.True(t, c.CycleForward().Empty())

	window(t, c, 1)
	window(t, c, 2)

	ch := c.CycleForward()
	assert.Equal(t, protocol.SurfaceID(2), focused(c), "newly mapped surfaces sit at the old end")
	assert.Equal(t, protocol.SurfaceID(0), ch.FocusFrom)
	assert.Equal(t, protocol.SurfaceID(2), ch.FocusTo)

	c2 := newCore(t)
	window(t, c2, 1)
	window(t, c2, 2)
	c2.CycleBackward()
	assert.Equal(t, protocol.SurfaceID(1), focused(c2))
}

func TestCycleStaysOnActiveWorkspace(t *testing.T) {
	c := newCore(t)
	window(t, c, 1)
	window(t, c, 2)
	window(t, c, 3)
	_, err := c.MoveToWorkspace(2, 1)
	require.NoError(t, err)
	_, err = c.Focus(1)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		c.CycleForward()
		assert.NotEqual(t, protocol.SurfaceID(2), focused(c))
	}
	assert.Equal(t, 0, c.Active())
}

func TestFocusRaises(t *testing.T) {
	c := newCore(t)
	window(t, c, 1)
	window(t, c, 2)

	ch, err := c.Focus(1)
	require.NoError(t, err)
	assert.True(t, ch.Restacked)
	visible := c.Visible()
	assert.Equal(t, protocol.SurfaceID(1), visible[len(visible)-1].ID)

	_, err = c.Create(3, 100, "", Rect{Width: 1, Height: 1})
	require.NoError(t, err)
	_, err = c.Focus(3)
	assert.ErrorIs(t, err, ErrNotMapped)
	_, err = c.Focus(9)
	assert.ErrorIs(t, err, ErrSurfaceNotFound)
}

func TestFocusFallback(t *testing.T) {
	c := newCore(t)
	window(t, c, 1)
	window(t, c, 2)
	window(t, c, 3)
	window(t, c, 4)
	_, err := c.MoveToWorkspace(4, 1)
	require.NoError(t, err)

	for _, id := range []protocol.SurfaceID{4, 1, 3, 2} {
		_, err := c.Focus(id)
		require.NoError(t, err)
	}

	ch, err := c.Destroy(2)
	require.NoError(t, err)
	assert.Equal(t, protocol.SurfaceID(3), focused(c))
	assert.Equal(t, protocol.SurfaceID(2), ch.FocusFrom)
	assert.Equal(t, protocol.SurfaceID(3), ch.FocusTo)

	_, err = c.Unmap(3)
	require.NoError(t, err)
	assert.Equal(t, protocol.SurfaceID(1), focused(c))

	_, err = c.Destroy(1)
	require.NoError(t, err)
	_, ok := c.Focused()
	assert.False(t, ok, "surface 4 lives on another workspace")
}

func TestFullscreenScenario(t *testing.T) {
	c := newCore(t)
	original := Rect{X: 10, Y: 20, Width: 800, Height: 600}
	_, err := c.Create(1, 100, "", original)
	require.NoError(t, err)

	_, err = c.SetFullscreen(1, true)
	assert.ErrorIs(t, err, ErrNotMapped)

	_, err = c.Map(1)
	require.NoError(t, err)

	ch, err := c.SetFullscreen(1, true)
	require.NoError(t, err)
	s, _ := c.Surface(1)
	assert.Equal(t, output, s.Geometry)
	assert.True(t, s.Fullscreen)
	assert.Equal(t, []protocol.SurfaceID{1}, ch.Moved)

	ch, err = c.SetFullscreen(1, true)
	require.NoError(t, err)
	assert.True(t, ch.Empty())

	_, err = c.SetFullscreen(1, false)
	require.NoError(t, err)
	s, _ = c.Surface(1)
	assert.Equal(t, original, s.Geometry)
	assert.False(t, s.Fullscreen)
}

func TestFullscreenRoundTrip(t *testing.T) {
	geometries := []Rect{
		{Width: 1, Height: 1},
		{X: -50, Y: -50, Width: 300, Height: 200},
		{X: 1900, Y: 1000, Width: 4000, Height: 3000},
		output,
	}
	for _, g := range geometries {
		t.Run(g.String(), func(t *testing.T) {
			c := newCore(t)
			_, err := c.Create(1, 100, "", g)
			require.NoError(t, err)
			_, err = c.Map(1)
			require.NoError(t, err)

			_, err = c.SetFullscreen(1, true)
			require.NoError(t, err)
			_, err = c.SetOutput(Rect{Width: 1280, Height: 720})
			require.NoError(t, err)
			_, err = c.SetFullscreen(1, false)
			require.NoError(t, err)

			s, _ := c.Surface(1)
			assert.Equal(t, g, s.Geometry)
		})
	}
}

func TestGeometryWhileFullscreen(t *testing.T) {
	c := newCore(t)
	window(t, c, 1)
	_, err := c.SetFullscreen(1, true)
	require.NoError(t, err)

	moved := Rect{X: 5, Y: 5, Width: 640, Height: 480}
	ch, err := c.SetGeometry(1, moved)
	require.NoError(t, err)
	assert.Empty(t, ch.Moved)

	_, err = c.SetGeometry(1, Rect{Width: 0, Height: 5})
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	_, err = c.Unmap(1)
	require.NoError(t, err)
	s, _ := c.Surface(1)
	assert.False(t, s.Fullscreen, "unmap leaves fullscreen")
	assert.Equal(t, moved, s.Geometry)
}

func TestSetOutputFollowsFullscreen(t *testing.T) {
	c := newCore(t)
	window(t, c, 1)
	window(t, c, 2)
	_, err := c.SetFullscreen(2, true)
	require.NoError(t, err)

	next := Rect{Width: 2560, Height: 1440}
	ch, err := c.SetOutput(next)
	require.NoError(t, err)
	assert.Equal(t, []protocol.SurfaceID{2}, ch.Moved)
	assert.Equal(t, next, c.Output())

	s, _ := c.Surface(2)
	assert.Equal(t, next, s.Geometry)
	s, _ = c.Surface(1)
	assert.Equal(t, uint32(800), s.Geometry.Width)

	_, err = c.SetOutput(Rect{})
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestWorkspaceSwitchIsAtomic(t *testing.T) {
	c := newCore(t)
	window(t, c, 1)
	window(t, c, 2)
	_, err := c.SwitchWorkspace(1)
	require.NoError(t, err)
	window(t, c, 3)
	_, err = c.Focus(3)
	require.NoError(t, err)
	_, err = c.SwitchWorkspace(0)
	require.NoError(t, err)
	_, err = c.Focus(1)
	require.NoError(t, err)

	ch, err := c.SwitchWorkspace(1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []protocol.SurfaceID{1, 2}, ch.Hidden)
	assert.Equal(t, []protocol.SurfaceID{3}, ch.Shown)
	assert.Equal(t, 0, ch.WorkspaceFrom)
	assert.Equal(t, 1, ch.WorkspaceTo)
	assert.Equal(t, protocol.SurfaceID(3), focused(c), "focus returns to the last surface used there")

	for _, s := range c.Visible() {
		assert.Equal(t, 1, s.Workspace)
	}

	ch, err = c.SwitchWorkspace(1)
	require.NoError(t, err)
	assert.True(t, ch.Empty())

	_, err = c.SwitchWorkspace(3)
	assert.ErrorIs(t, err, ErrWorkspaceOutOfRange)
	_, err = c.SwitchWorkspace(-1)
	assert.ErrorIs(t, err, ErrWorkspaceOutOfRange)
}

func TestWorkspaceWrap(t *testing.T) {
	c := newCore(t, "a", "b", "c")

	c.PreviousWorkspace()
	assert.Equal(t, 2, c.Active())
	c.NextWorkspace()
	assert.Equal(t, 0, c.Active())
	c.NextWorkspace()
	assert.Equal(t, 1, c.Active())

	single := newCore(t, "only")
	assert.True(t, single.NextWorkspace().Empty())
}

func TestFocusActivatesWorkspace(t *testing.T) {
	c := newCore(t)
	window(t, c, 1)
	_, err := c.MoveToWorkspace(1, 2)
	require.NoError(t, err)
	assert.Empty(t, c.Visible())

	ch, err := c.Focus(1)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Active())
	assert.True(t, ch.WorkspaceChanged())
	assert.Equal(t, []protocol.SurfaceID{1}, ch.Shown)
}

func TestMoveFocusedSurface(t *testing.T) {
	c := newCore(t)
	window(t, c, 1)
	window(t, c, 2)
	_, err := c.Focus(1)
	require.NoError(t, err)
	_, err = c.Focus(2)
	require.NoError(t, err)

	ch, err := c.MoveToWorkspace(2, 1)
	require.NoError(t, err)
	assert.Equal(t, []protocol.SurfaceID{2}, ch.Hidden)
	assert.Equal(t, protocol.SurfaceID(1), focused(c))

	_, err = c.MoveToWorkspace(2, 7)
	assert.ErrorIs(t, err, ErrWorkspaceOutOfRange)
}

func TestUnplacedSurfaceMapsToActiveWorkspace(t *testing.T) {
	c := newCore(t)
	_, err := c.SwitchWorkspace(2)
	require.NoError(t, err)
	_, err = c.Create(1, 100, "", Rect{Width: 1, Height: 1})
	require.NoError(t, err)

	s, _ := c.Surface(1)
	assert.Equal(t, Unassigned, s.Workspace)

	_, err = c.Map(1)
	require.NoError(t, err)
	s, _ = c.Surface(1)
	assert.Equal(t, 2, s.Workspace)
}

func TestRemoveClient(t *testing.T) {
	c := newCore(t)
	_, err := c.Create(1, 100, "", Rect{Width: 1, Height: 1})
	require.NoError(t, err)
	_, err = c.Create(2, 200, "", Rect{Width: 1, Height: 1})
	require.NoError(t, err)
	_, err = c.Create(3, 100, "", Rect{Width: 1, Height: 1})
	require.NoError(t, err)
	_, err = c.Map(3)
	require.NoError(t, err)
	_, err = c.Focus(3)
	require.NoError(t, err)

	removed, ch := c.RemoveClient(100)
	assert.ElementsMatch(t, []protocol.SurfaceID{1, 3}, removed)
	assert.Equal(t, []protocol.SurfaceID{3}, ch.Hidden)
	assert.True(t, ch.FocusChanged())
	assert.Equal(t, 1, c.Len())

	removed, ch = c.RemoveClient(999)
	assert.Empty(t, removed)
	assert.True(t, ch.Empty())
}

func TestSnapshotIsDetached(t *testing.T) {
	c := newCore(t, "main", "web")
	window(t, c, 2)
	window(t, c, 1)
	_, err := c.Focus(2)
	require.NoError(t, err)

	snap := c.Snapshot()
	require.Len(t, snap.Surfaces, 2)
	assert.Equal(t, protocol.SurfaceID(1), snap.Surfaces[0].ID)
	assert.Equal(t, protocol.SurfaceID(2), snap.Focused)
	assert.Equal(t, []Workspace{
		{Index: 0, Name: "main", Active: true, Surfaces: 2},
		{Index: 1, Name: "web"},
	}, snap.Workspaces)
	assert.Len(t, snap.Visible(), 2)

	_, err = c.Destroy(2)
	require.NoError(t, err)
	assert.Len(t, snap.Surfaces, 2)
	assert.Equal(t, []protocol.SurfaceID{1, 2}, snap.ZOrder)

	assert.Equal(t, map[string]int{"created": 0, "mapped": 1, "unmapped": 0}, c.Counts())
}

func TestSurfaceAt(t *testing.T) {
	c := newCore(t)
	_, err := c.Create(1, 100, "", Rect{X: 0, Y: 0, Width: 500, Height: 500})
	require.NoError(t, err)
	_, err = c.Create(2, 100, "", Rect{X: 250, Y: 250, Width: 500, Height: 500})
	require.NoError(t, err)
	_, err = c.Map(1)
	require.NoError(t, err)
	_, err = c.Map(2)
	require.NoError(t, err)

	tests := []struct {
		x, y int32
		want protocol.SurfaceID
		ok   bool
	}{
		{10, 10, 1, true},
		{300, 300, 2, true},
		{749, 749, 2, true},
		{750, 750, 0, false},
		{-1, 0, 0, false},
	}
	for _, tt := range tests {
		got, ok := c.SurfaceAt(tt.x, tt.y)
		assert.Equal(t, tt.ok, ok, "(%d,%d)", tt.x, tt.y)
		assert.Equal(t, tt.want, got, "(%d,%d)", tt.x, tt.y)
	}

	_, err = c.Focus(1)
	require.NoError(t, err)
	got, _ := c.SurfaceAt(300, 300)
	assert.Equal(t, protocol.SurfaceID(1), got, "raised surface wins")
}

func TestMapAndFocus(t *testing.T) {
	c := newCore(t)
	window(t, c, 1)
	_, err := c.Focus(1)
	require.NoError(t, err)
	_, err = c.Create(2, 100, "", Rect{Width: 10, Height: 10})
	require.NoError(t, err)

	ch, err := c.MapAndFocus(2)
	require.NoError(t, err)
	assert.Equal(t, []protocol.SurfaceID{2}, ch.Shown)
	assert.Equal(t, protocol.SurfaceID(1), ch.FocusFrom)
	assert.Equal(t, protocol.SurfaceID(2), ch.FocusTo)
	assert.Equal(t, protocol.SurfaceID(2), focused(c))

	_, err = c.MapAndFocus(2)
	assert.ErrorIs(t, err, ErrAlreadyMapped)
}

func TestStateText(t *testing.T) {
	for _, st := range []State{StateCreated, StateMapped, StateUnmapped} {
		text, err := st.MarshalText()
		require.NoError(t, err)

		var back State
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, st, back)
	}

	var s State
	assert.Error(t, s.UnmarshalText([]byte("destroyed")))
}
