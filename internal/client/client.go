package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
	"github.com/GriffinCanCode/AgentOS/gui/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/gui/internal/transport"
)

// DefaultTimeout bounds a call when Options.Timeout is zero
const DefaultTimeout = 2 * time.Second

// Options configures a Client
type Options struct {
	Timeout time.Duration
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// Client is the typed broker API. Each method sends one request and blocks
// for its response.
type Client struct {
	transport transport.Transport
	timeout   time.Duration
	log       *logging.Logger
	metrics   *monitoring.Metrics
}

// New creates a client over t
func New(t transport.Transport, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewMetrics(prometheus.NewRegistry())
	}
	return &Client{
		transport: t,
		timeout:   opts.Timeout,
		log:       opts.Logger.Named("client"),
		metrics:   opts.Metrics,
	}
}

// Close closes the underlying transport
func (c *Client) Close() error {
	return c.transport.Close()
}

// RequestGPU asks for a GPU budget for pid. Zero limits take the broker
// defaults.
func (c *Client) RequestGPU(ctx context.Context, pid protocol.PID, limits protocol.GPULimits) (protocol.GPURendering, error) {
	resp, err := c.call(ctx, protocol.RequestGPU{PID: pid, Limits: limits})
	if err != nil {
		return protocol.GPURendering{}, err
	}
	g, ok := resp.(protocol.Granted).Capability.(protocol.GPURendering)
	if !ok {
		return protocol.GPURendering{}, fmt.Errorf("%w: granted %s", ErrProtocol, resp.(protocol.Granted).Capability)
	}
	return g, nil
}

// RequestInputDevice asks for access to device on behalf of pid
func (c *Client) RequestInputDevice(ctx context.Context, pid protocol.PID, device protocol.DeviceID, exclusive bool) (protocol.InputDevice, error) {
	resp, err := c.call(ctx, protocol.RequestInputDevice{PID: pid, Device: device, Exclusive: exclusive})
	if err != nil {
		return protocol.InputDevice{}, err
	}
	in, ok := resp.(protocol.Granted).Capability.(protocol.InputDevice)
	if !ok {
		return protocol.InputDevice{}, fmt.Errorf("%w: granted %s", ErrProtocol, resp.(protocol.Granted).Capability)
	}
	return in, nil
}

// CreateSurface allocates a surface owned by pid
func (c *Client) CreateSurface(ctx context.Context, pid protocol.PID, cfg protocol.SurfaceConfig) (protocol.SurfaceID, error) {
	resp, err := c.call(ctx, protocol.CreateSurface{PID: pid, Config: cfg})
	if err != nil {
		return 0, err
	}
	surface := resp.(protocol.Success).Surface
	if surface == 0 {
		return 0, fmt.Errorf("%w: no surface id", ErrProtocol)
	}
	return surface, nil
}

// DestroySurface releases a surface. It succeeds even if the surface was
// already gone.
func (c *Client) DestroySurface(ctx context.Context, pid protocol.PID, surface protocol.SurfaceID) error {
	_, err := c.call(ctx, protocol.DestroySurface{PID: pid, Surface: surface})
	return err
}

// SetDisplayMode changes a connector's mode
func (c *Client) SetDisplayMode(ctx context.Context, connector protocol.ConnectorID, mode protocol.DisplayMode) error {
	_, err := c.call(ctx, protocol.SetDisplayMode{Connector: connector, Mode: mode})
	return err
}

// QueryDeviceType reports whether the machine is a mobile form factor
func (c *Client) QueryDeviceType(ctx context.Context) (bool, error) {
	resp, err := c.call(ctx, protocol.QueryDeviceType{})
	if err != nil {
		return false, err
	}
	return resp.(protocol.DeviceType).IsMobile, nil
}

// RegisterCompositor claims the compositor role for pid
func (c *Client) RegisterCompositor(ctx context.Context, pid protocol.PID) error {
	_, err := c.call(ctx, protocol.RegisterCompositor{PID: pid})
	return err
}

// UnregisterCompositor gives the role up and revokes everything derived
// from it
func (c *Client) UnregisterCompositor(ctx context.Context, pid protocol.PID) error {
	_, err := c.call(ctx, protocol.UnregisterCompositor{PID: pid})
	return err
}

// HasCapability asks whether pid holds a capability matching want
func (c *Client) HasCapability(ctx context.Context, pid protocol.PID, want protocol.Capability) (bool, error) {
	resp, err := c.call(ctx, protocol.HasCapability{PID: pid, Capability: want})
	if err != nil {
		return false, err
	}
	return resp.(protocol.CapabilityStatus).Held, nil
}

// call runs one round trip and converts every non-success outcome into an
// error. A nil error guarantees resp is a success variant for req.
func (c *Client) call(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	op := req.Kind()
	timer := monitoring.NewTimer(c.metrics, string(op))
	requestID := id.NewRequestID().String()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	frame, err := c.transport.RoundTrip(callCtx, protocol.RequestFrame{RequestID: requestID, Request: req})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			timer.Stop("timeout")
			c.log.Error("broker did not answer",
				zap.String("op", string(op)),
				logging.RequestID(requestID),
				zap.Duration("timeout", c.timeout))
			return nil, fmt.Errorf("%w: %s after %s", ErrBrokerUnresponsive, op, c.timeout)
		}
		timer.Stop("transport_error")
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp := frame.Response
	if frame.RequestID != requestID || !protocol.Allowed(req, resp) {
		timer.Stop("protocol_error")
		kind := "none"
		if resp != nil {
			kind = string(resp.Kind())
		}
		return nil, fmt.Errorf("%w: %s answered with %s", ErrProtocol, op, kind)
	}

	switch r := resp.(type) {
	case protocol.Denied:
		timer.Stop("denied")
		return nil, &DeniedError{Op: op, Reason: r.Reason, Code: r.Code}
	case protocol.Error:
		timer.Stop("error")
		return nil, &DriverError{Op: op, Message: r.Message}
	}
	timer.Stop("ok")
	return resp, nil
}
