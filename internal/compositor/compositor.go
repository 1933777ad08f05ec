package compositor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/AgentOS/gui/internal/client"
	"github.com/GriffinCanCode/AgentOS/gui/internal/domain/desktop"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/gui/internal/input"
	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
	"github.com/GriffinCanCode/AgentOS/gui/internal/render"
)

// ErrNotRunning is returned by operations on a compositor whose loop has
// ended or never started
var ErrNotRunning = errors.New("compositor not running")

// Broker is the part of the broker the compositor calls.
// *client.Client satisfies it.
type Broker interface {
	RegisterCompositor(ctx context.Context, pid protocol.PID) error
	UnregisterCompositor(ctx context.Context, pid protocol.PID) error
	RequestGPU(ctx context.Context, pid protocol.PID, limits protocol.GPULimits) (protocol.GPURendering, error)
	RequestInputDevice(ctx context.Context, pid protocol.PID, device protocol.DeviceID, exclusive bool) (protocol.InputDevice, error)
	CreateSurface(ctx context.Context, pid protocol.PID, cfg protocol.SurfaceConfig) (protocol.SurfaceID, error)
	DestroySurface(ctx context.Context, pid protocol.PID, surface protocol.SurfaceID) error
	QueryDeviceType(ctx context.Context) (bool, error)
	HasCapability(ctx context.Context, pid protocol.PID, want protocol.Capability) (bool, error)
}

// Observer is told about every visible change, after the snapshot that
// reflects it has been published. It runs on the main goroutine and must
// not block.
type Observer interface {
	Observe(change desktop.Change, snap desktop.Snapshot)
}

// Options configures a Compositor
type Options struct {
	PID    protocol.PID
	Broker Broker

	Workspaces []string
	Output     desktop.Rect

	// GPU is the compositor's own grant. Denials for exceeding a limit are
	// retried at half the memory down to MinGPUMemoryMB.
	GPU            protocol.GPULimits
	MinGPUMemoryMB uint32
	// ClientGPU is requested on behalf of clients that hold no GPU grant
	// when they create their first surface
	ClientGPU protocol.GPULimits

	InputDevices   []protocol.DeviceID
	ExclusiveInput bool
	Open           input.Opener
	// InputRetry is how often a lost device is reopened
	InputRetry time.Duration
	Bindings   map[string]string

	FocusFollowsMouse bool

	Submitter render.Submitter
	Observer  Observer
	Logger    *logging.Logger
	Metrics   *monitoring.Metrics
}

type command struct {
	fn    func(ctx context.Context) error
	reply chan error
}

// Compositor runs the desktop on a single main goroutine. Shell commands,
// input, frame completions and client exits all arrive on channels and are
// applied one at a time to the Core.
type Compositor struct {
	pid      protocol.PID
	broker   Broker
	core     *desktop.Core
	matcher  *input.Matcher
	mailbox  *render.Mailbox
	renderer *render.Worker
	pacing   *render.Pacing
	inputs   *input.Worker
	observer Observer
	log      *logging.Logger
	metrics  *monitoring.Metrics

	gpuLimits      protocol.GPULimits
	minGPU         uint32
	clientGPU      protocol.GPULimits
	devices        []protocol.DeviceID
	exclusiveInput bool
	followMouse    bool

	// main goroutine only
	gpu      protocol.GPURendering
	granted  map[protocol.DeviceID]protocol.InputDevice
	seq      uint64
	lastDone uint64
	pointerX int32
	pointerY int32
	fatal    error

	snap   atomic.Pointer[desktop.Snapshot]
	mobile atomic.Bool

	commands chan command
	exits    chan protocol.PID
	ready    chan struct{}
	done     chan struct{}
}

// New builds a compositor. Nothing talks to the broker until Run.
func New(opts Options) (*Compositor, error) {
	if opts.Broker == nil {
		return nil, errors.New("compositor: broker is required")
	}
	core, err := desktop.New(opts.Workspaces, opts.Output)
	if err != nil {
		return nil, err
	}
	matcher, err := input.NewMatcher(opts.Bindings)
	if err != nil {
		return nil, err
	}
	if opts.Submitter == nil {
		opts.Submitter = &render.NullSubmitter{}
	}
	if opts.Open == nil {
		opts.Open = input.EvdevOpener("/dev/input")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewMetrics(prometheus.NewRegistry())
	}
	if opts.MinGPUMemoryMB == 0 {
		opts.MinGPUMemoryMB = 64
	}
	log := opts.Logger.Named("compositor")

	mailbox := render.NewMailbox()
	c := &Compositor{
		pid:      opts.PID,
		broker:   opts.Broker,
		core:     core,
		matcher:  matcher,
		mailbox:  mailbox,
		renderer: render.NewWorker(mailbox, opts.Submitter, opts.Logger),
		pacing:   render.NewPacing(120),
		inputs: input.NewWorker(input.WorkerOptions{
			Devices: opts.InputDevices,
			Open:    opts.Open,
			Retry:   opts.InputRetry,
			Logger:  opts.Logger,
		}),
		observer:       opts.Observer,
		log:            log,
		metrics:        opts.Metrics,
		gpuLimits:      opts.GPU,
		minGPU:         opts.MinGPUMemoryMB,
		clientGPU:      opts.ClientGPU,
		devices:        opts.InputDevices,
		exclusiveInput: opts.ExclusiveInput,
		followMouse:    opts.FocusFollowsMouse,
		granted:        make(map[protocol.DeviceID]protocol.InputDevice),
		commands:       make(chan command),
		exits:          make(chan protocol.PID, 64),
		ready:          make(chan struct{}),
		done:           make(chan struct{}),
	}
	out := core.Output()
	c.pointerX, c.pointerY = out.X+int32(out.Width/2), out.Y+int32(out.Height/2)
	snap := core.Snapshot()
	c.snap.Store(&snap)
	return c, nil
}

// Run registers with the broker and runs the main loop with the render and
// input workers until ctx is cancelled or the broker stops answering. The
// compositor unregisters before Run returns.
func (c *Compositor) Run(ctx context.Context) error {
	defer close(c.done)

	if err := c.start(ctx); err != nil {
		return err
	}
	defer c.shutdown()
	close(c.ready)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.renderer.Run(gctx) })
	g.Go(func() error { return c.inputs.Run(gctx) })
	g.Go(func() error { return c.loop(gctx) })
	return g.Wait()
}

// Ready is closed once startup succeeded and commands are being served
func (c *Compositor) Ready() <-chan struct{} {
	return c.ready
}

// Snapshot returns the most recently published desktop state
func (c *Compositor) Snapshot() desktop.Snapshot {
	return *c.snap.Load()
}

// Mobile reports the device type learned from the broker at startup
func (c *Compositor) Mobile() bool {
	return c.mobile.Load()
}

// FrameStats summarises recent frame presentation
func (c *Compositor) FrameStats() render.PacingStats {
	return c.pacing.Stats()
}

// GPU returns the compositor's own GPU grant
func (c *Compositor) GPU() (protocol.GPURendering, error) {
	var g protocol.GPURendering
	err := c.do(context.Background(), func(context.Context) error {
		g = c.gpu
		return nil
	})
	return g, err
}

// NotifyExit tells the compositor a client process is gone. Its surfaces
// are dropped on the main goroutine.
func (c *Compositor) NotifyExit(pid protocol.PID) {
	select {
	case c.exits <- pid:
	case <-c.done:
	}
}

func (c *Compositor) loop(ctx context.Context) error {
	c.log.Info("compositor loop started", logging.PID(c.pid))
	for {
		select {
		case <-ctx.Done():
			c.log.Info("compositor loop stopped")
			return nil
		case cmd := <-c.commands:
			cmd.reply <- cmd.fn(ctx)
		case ev := <-c.inputs.Events():
			c.handleInput(ev)
		case st := <-c.inputs.Status():
			c.handleDevice(ctx, st)
		case fd := <-c.renderer.Done():
			c.handleFrame(fd)
		case pid := <-c.exits:
			c.handleExit(pid)
		}
		if c.fatal != nil {
			return c.fatal
		}
	}
}

// do runs fn on the main goroutine and waits for its result
func (c *Compositor) do(ctx context.Context, fn func(ctx context.Context) error) error {
	cmd := command{fn: fn, reply: make(chan error, 1)}
	select {
	case c.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrNotRunning
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-c.done:
		return ErrNotRunning
	}
}

// check records a broker failure that ends the compositor
func (c *Compositor) check(err error) error {
	if errors.Is(err, client.ErrBrokerUnresponsive) && c.fatal == nil {
		c.log.Error("broker unresponsive, stopping", zap.Error(err))
		c.fatal = fmt.Errorf("compositor: %w", err)
	}
	return err
}

// apply stores the new snapshot. Changes that altered something visible
// are also published to the renderer and the observer.
func (c *Compositor) apply(ch desktop.Change) {
	snap := c.core.Snapshot()
	c.snap.Store(&snap)
	c.metrics.SetSurfaces(c.core.Counts())
	if ch.Empty() {
		return
	}
	c.publish(ch, snap)
}

func (c *Compositor) publish(ch desktop.Change, snap desktop.Snapshot) {
	c.seq++
	if c.mailbox.Put(render.NewFrame(c.seq, snap)) {
		c.log.Debug("pending frame replaced", zap.Uint64("seq", c.seq))
	}
	if c.observer != nil {
		c.observer.Observe(ch, snap)
	}
}

// handleFrame drops completions older than one already seen
func (c *Compositor) handleFrame(fd render.FrameDone) {
	if fd.Seq <= c.lastDone {
		c.metrics.StaleFrames.Inc()
		c.log.Debug("stale frame completion", zap.Uint64("seq", fd.Seq), zap.Uint64("last", c.lastDone))
		return
	}
	c.lastDone = fd.Seq
	if fd.Err == nil {
		c.metrics.Frames.Inc()
		c.pacing.Record(fd.Presented)
	}
}

func (c *Compositor) handleExit(pid protocol.PID) {
	removed, ch := c.core.RemoveClient(pid)
	if len(removed) == 0 {
		return
	}
	c.log.Info("client exited", logging.PID(pid), zap.Int("surfaces", len(removed)))
	c.apply(ch)
}

// callTimeout bounds shutdown calls made after ctx is gone
const callTimeout = 2 * time.Second
