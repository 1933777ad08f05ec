package compositor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/gui/internal/domain/desktop"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

// CreateSurface creates a surface for a client. A client without a GPU
// grant is given the default client grant first. The surface starts
// unmapped.
func (c *Compositor) CreateSurface(ctx context.Context, owner protocol.PID, title string, geometry desktop.Rect) (protocol.SurfaceID, error) {
	var surface protocol.SurfaceID
	err := c.do(ctx, func(ctx context.Context) error {
		if !geometry.Valid() {
			return fmt.Errorf("create surface: %w", desktop.ErrInvalidGeometry)
		}
		if err := c.ensureGPU(ctx, owner); err != nil {
			return err
		}

		id, err := c.broker.CreateSurface(ctx, owner, protocol.SurfaceConfig{
			X: geometry.X, Y: geometry.Y, Width: geometry.Width, Height: geometry.Height,
		})
		if c.check(err) != nil {
			return fmt.Errorf("create surface: %w", err)
		}

		ch, err := c.core.Create(id, owner, title, geometry)
		if err != nil {
			c.release(ctx, owner, id)
			return err
		}
		c.apply(ch)
		surface = id
		c.log.Debug("surface created",
			logging.Surface(id),
			zap.Uint32("owner", uint32(owner)),
			zap.String("geometry", geometry.String()))
		return nil
	})
	return surface, err
}

func (c *Compositor) ensureGPU(ctx context.Context, owner protocol.PID) error {
	held, err := c.broker.HasCapability(ctx, owner, protocol.GPURendering{})
	if c.check(err) != nil {
		return fmt.Errorf("check gpu grant: %w", err)
	}
	if held {
		return nil
	}
	if _, err := c.broker.RequestGPU(ctx, owner, c.clientGPU); c.check(err) != nil {
		return fmt.Errorf("request client gpu: %w", err)
	}
	return nil
}

// release gives a surface id back to the broker
func (c *Compositor) release(ctx context.Context, owner protocol.PID, id protocol.SurfaceID) {
	if err := c.check(c.broker.DestroySurface(ctx, owner, id)); err != nil {
		c.log.Warn("surface release failed", logging.Surface(id), zap.Error(err))
	}
}

// MapSurface makes a surface visible, focusing it when focus is set
func (c *Compositor) MapSurface(ctx context.Context, id protocol.SurfaceID, focus bool) error {
	return c.mutate(ctx, func() (desktop.Change, error) {
		if focus {
			return c.core.MapAndFocus(id)
		}
		return c.core.Map(id)
	})
}

// UnmapSurface hides a surface
func (c *Compositor) UnmapSurface(ctx context.Context, id protocol.SurfaceID) error {
	return c.mutate(ctx, func() (desktop.Change, error) { return c.core.Unmap(id) })
}

// FocusSurface focuses a mapped surface
func (c *Compositor) FocusSurface(ctx context.Context, id protocol.SurfaceID) error {
	return c.mutate(ctx, func() (desktop.Change, error) { return c.core.Focus(id) })
}

// CycleFocus moves focus through the active workspace
func (c *Compositor) CycleFocus(ctx context.Context, forward bool) error {
	return c.mutate(ctx, func() (desktop.Change, error) {
		if forward {
			return c.core.CycleForward(), nil
		}
		return c.core.CycleBackward(), nil
	})
}

// SetFullscreen enters or leaves fullscreen
func (c *Compositor) SetFullscreen(ctx context.Context, id protocol.SurfaceID, on bool) error {
	return c.mutate(ctx, func() (desktop.Change, error) { return c.core.SetFullscreen(id, on) })
}

// SetGeometry moves or resizes a surface
func (c *Compositor) SetGeometry(ctx context.Context, id protocol.SurfaceID, geometry desktop.Rect) error {
	return c.mutate(ctx, func() (desktop.Change, error) { return c.core.SetGeometry(id, geometry) })
}

// SwitchWorkspace activates a workspace by index
func (c *Compositor) SwitchWorkspace(ctx context.Context, index int) error {
	return c.mutate(ctx, func() (desktop.Change, error) { return c.core.SwitchWorkspace(index) })
}

// MoveToWorkspace places a surface on another workspace
func (c *Compositor) MoveToWorkspace(ctx context.Context, id protocol.SurfaceID, index int) error {
	return c.mutate(ctx, func() (desktop.Change, error) { return c.core.MoveToWorkspace(id, index) })
}

// DestroySurface removes a surface and releases it at the broker
func (c *Compositor) DestroySurface(ctx context.Context, id protocol.SurfaceID) error {
	return c.do(ctx, func(ctx context.Context) error {
		s, ok := c.core.Surface(id)
		if !ok {
			return fmt.Errorf("surface %d: %w", id, desktop.ErrSurfaceNotFound)
		}
		ch, err := c.core.Destroy(id)
		if err != nil {
			return err
		}
		c.apply(ch)
		if err := c.check(c.broker.DestroySurface(ctx, s.Owner, id)); err != nil {
			return fmt.Errorf("destroy surface: %w", err)
		}
		return nil
	})
}

func (c *Compositor) mutate(ctx context.Context, op func() (desktop.Change, error)) error {
	return c.do(ctx, func(context.Context) error {
		ch, err := op()
		if err != nil {
			return err
		}
		c.apply(ch)
		return nil
	})
}
