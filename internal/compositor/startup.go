package compositor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/gui/internal/client"
	"github.com/GriffinCanCode/AgentOS/gui/internal/domain/desktop"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

// start registers with the broker and acquires the compositor's resources
func (c *Compositor) start(ctx context.Context) error {
	if err := c.broker.RegisterCompositor(ctx, c.pid); err != nil {
		return fmt.Errorf("register compositor: %w", err)
	}

	gpu, err := c.requestGPU(ctx)
	if err != nil {
		c.shutdown()
		return fmt.Errorf("request gpu: %w", err)
	}
	c.gpu = gpu

	for _, device := range c.devices {
		c.grantInput(ctx, device)
	}

	mobile, err := c.broker.QueryDeviceType(ctx)
	if c.check(err) != nil && c.fatal == nil {
		c.log.Warn("device type query failed, assuming desktop", zap.Error(err))
	}
	if c.fatal != nil {
		c.shutdown()
		return c.fatal
	}
	c.mobile.Store(mobile)

	c.log.Info("compositor registered",
		logging.PID(c.pid),
		zap.Uint32("gpu_memory_mb", gpu.MemoryMB),
		zap.Uint32("max_surfaces", gpu.MaxSurfaces),
		zap.Bool("mobile", mobile))
	// first frame
	c.metrics.SetSurfaces(c.core.Counts())
	c.publish(desktop.Change{}, c.Snapshot())
	return nil
}

// requestGPU asks for the configured grant, halving the memory after each
// limit denial until the minimum is reached
func (c *Compositor) requestGPU(ctx context.Context) (protocol.GPURendering, error) {
	limits := c.gpuLimits
	for {
		gpu, err := c.broker.RequestGPU(ctx, c.pid, limits)
		if err == nil {
			return gpu, nil
		}
		if !client.IsDenied(err, protocol.ReasonResourceLimitExceeded) || limits.MemoryMB/2 < c.minGPU {
			return protocol.GPURendering{}, err
		}
		limits.MemoryMB /= 2
		c.log.Warn("gpu request over limit, retrying with less memory",
			zap.Uint32("memory_mb", limits.MemoryMB))
	}
}

// grantInput requests a configured device. Only granted devices drive the
// desktop. Failures are logged; the device is requested again when it
// reappears.
func (c *Compositor) grantInput(ctx context.Context, device protocol.DeviceID) {
	grant, err := c.broker.RequestInputDevice(ctx, c.pid, device, c.exclusiveInput)
	if c.check(err) != nil {
		delete(c.granted, device)
		c.log.Warn("input device not granted",
			logging.Device(device),
			zap.Error(err))
		return
	}
	c.granted[device] = grant
}

// shutdown releases the compositor registration. The broker revokes every
// capability derived from it.
func (c *Compositor) shutdown() {
	clear(c.granted)
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if err := c.broker.UnregisterCompositor(ctx, c.pid); err != nil {
		c.log.Warn("unregister compositor failed", zap.Error(err))
		return
	}
	c.log.Info("compositor unregistered")
}
