package compositor

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/gui/internal/domain/desktop"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/gui/internal/input"
)

// Actions a key binding can name. workspace_<n> switches to workspace n,
// counted from one.
const (
	ActionCycleForward      = "cycle_forward"
	ActionCycleBackward     = "cycle_backward"
	ActionNextWorkspace     = "next_workspace"
	ActionPreviousWorkspace = "previous_workspace"
	ActionToggleFullscreen  = "toggle_fullscreen"
	actionWorkspacePrefix   = "workspace_"
)

// handleInput applies one decoded event. Events from a device the broker
// has not granted are dropped.
func (c *Compositor) handleInput(ev input.DeviceEvent) {
	if _, ok := c.granted[ev.Device]; !ok {
		c.metrics.InputDropped.WithLabelValues(strconv.FormatUint(uint64(ev.Device), 10)).Inc()
		return
	}
	if ev.Event.Type == input.EvSyn {
		return
	}
	c.metrics.InputEvents.WithLabelValues(ev.Event.Kind()).Inc()

	switch ev.Event.Type {
	case input.EvKey:
		if action, ok := c.matcher.Feed(ev.Event); ok {
			c.runAction(action)
		}
	case input.EvRel:
		switch ev.Event.Code {
		case input.RelX:
			c.movePointer(c.pointerX+ev.Event.Value, c.pointerY)
		case input.RelY:
			c.movePointer(c.pointerX, c.pointerY+ev.Event.Value)
		}
	case input.EvAbs:
		switch ev.Event.Code {
		case input.AbsX:
			c.movePointer(ev.Event.Value, c.pointerY)
		case input.AbsY:
			c.movePointer(c.pointerX, ev.Event.Value)
		}
	}
}

func (c *Compositor) runAction(action string) {
	var (
		ch  desktop.Change
		err error
	)
	switch action {
	case ActionCycleForward:
		ch = c.core.CycleForward()
	case ActionCycleBackward:
		ch = c.core.CycleBackward()
	case ActionNextWorkspace:
		ch = c.core.NextWorkspace()
	case ActionPreviousWorkspace:
		ch = c.core.PreviousWorkspace()
	case ActionToggleFullscreen:
		id, ok := c.core.Focused()
		if !ok {
			return
		}
		s, _ := c.core.Surface(id)
		ch, err = c.core.SetFullscreen(id, !s.Fullscreen)
	default:
		n, ok := strings.CutPrefix(action, actionWorkspacePrefix)
		index, convErr := strconv.Atoi(n)
		if !ok || convErr != nil {
			c.log.Debug("unknown action", zap.String("action", action))
			return
		}
		ch, err = c.core.SwitchWorkspace(index - 1)
	}
	if err != nil {
		c.log.Debug("action failed", zap.String("action", action), zap.Error(err))
		return
	}
	c.apply(ch)
}

// movePointer clamps the pointer to the output. With focus-follows-mouse
// the surface under the pointer takes focus.
func (c *Compositor) movePointer(x, y int32) {
	out := c.core.Output()
	c.pointerX = clamp(x, out.X, out.X+int32(out.Width)-1)
	c.pointerY = clamp(y, out.Y, out.Y+int32(out.Height)-1)
	if !c.followMouse {
		return
	}

	under, ok := c.core.SurfaceAt(c.pointerX, c.pointerY)
	if !ok {
		return
	}
	if focused, _ := c.core.Focused(); focused == under {
		return
	}
	ch, err := c.core.Focus(under)
	if err != nil {
		return
	}
	c.apply(ch)
}

func clamp(v, lo, hi int32) int32 {
	return max(lo, min(v, hi))
}

// handleDevice re-requests the capability for a device that came back.
// A lost device loses its grant and drops held modifiers so no chord fires
// on return.
func (c *Compositor) handleDevice(ctx context.Context, st input.DeviceStatus) {
	switch st.Kind {
	case input.DeviceLost:
		delete(c.granted, st.Device)
		c.matcher.Reset()
	case input.DeviceAdded:
		c.log.Info("input device returned", logging.Device(st.Device))
		c.grantInput(ctx, st.Device)
	}
}
