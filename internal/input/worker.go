package input

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

// DeviceEvent is an event tagged with the device it came from
type DeviceEvent struct {
	Device protocol.DeviceID
	Event  Event
}

// StatusKind says whether a device came or went
type StatusKind uint8

const (
	DeviceAdded StatusKind = iota + 1
	DeviceLost
)

func (k StatusKind) String() string {
	switch k {
	case DeviceAdded:
		return "added"
	case DeviceLost:
		return "lost"
	default:
		return "unknown"
	}
}

// DeviceStatus reports a device appearing or disappearing. The worker
// never requests capabilities itself; the receiver decides what to do.
type DeviceStatus struct {
	Device protocol.DeviceID
	Kind   StatusKind
	Err    error
}

// Worker reads every configured device on its own goroutine and forwards
// events in per-device order
type Worker struct {
	devices []protocol.DeviceID
	open    Opener
	retry   time.Duration
	log     *logging.Logger

	events chan DeviceEvent
	status chan DeviceStatus
}

// WorkerOptions configures a Worker
type WorkerOptions struct {
	Devices []protocol.DeviceID
	Open    Opener
	// Retry is how often a lost device is reopened
	Retry  time.Duration
	Buffer int
	Logger *logging.Logger
}

// NewWorker creates an input worker
func NewWorker(opts WorkerOptions) *Worker {
	if opts.Retry <= 0 {
		opts.Retry = time.Second
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Worker{
		devices: opts.Devices,
		open:    opts.Open,
		retry:   opts.Retry,
		log:     opts.Logger.Named("input"),
		events:  make(chan DeviceEvent, opts.Buffer),
		status:  make(chan DeviceStatus, len(opts.Devices)*2+1),
	}
}

// Events is the decoded event stream
func (w *Worker) Events() <-chan DeviceEvent {
	return w.events
}

// Status reports devices being lost and found again
func (w *Worker) Status() <-chan DeviceStatus {
	return w.status
}

// Run reads until ctx is cancelled
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, device := range w.devices {
		g.Go(func() error {
			w.device(ctx, device)
			return nil
		})
	}
	return g.Wait()
}

// device owns one device for the life of the worker. The first open is
// silent; later ones are reported as DeviceAdded.
func (w *Worker) device(ctx context.Context, device protocol.DeviceID) {
	reopened := false
	for {
		src, err := w.open(device)
		if err == nil {
			if reopened {
				w.report(ctx, DeviceStatus{Device: device, Kind: DeviceAdded})
			}
			err = w.pump(ctx, src)
			if ctx.Err() != nil {
				return
			}
			w.log.Warn("input device lost", logging.Device(device), zap.Error(err))
			w.report(ctx, DeviceStatus{Device: device, Kind: DeviceLost, Err: err})
		} else if !reopened {
			w.log.Warn("input device unavailable", logging.Device(device), zap.Error(err))
			w.report(ctx, DeviceStatus{Device: device, Kind: DeviceLost, Err: err})
		}
		reopened = true

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.retry):
		}
	}
}

// pump forwards events from src until it fails or ctx ends
func (w *Worker) pump(ctx context.Context, src Source) error {
	stop := context.AfterFunc(ctx, func() { src.Close() })
	defer func() {
		if stop() {
			src.Close()
		}
	}()

	for {
		ev, err := src.Next()
		if err != nil {
			if errors.Is(err, os.ErrClosed) || errors.Is(err, io.EOF) {
				return io.EOF
			}
			return err
		}
		select {
		case w.events <- DeviceEvent{Device: src.Device(), Event: ev}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Worker) report(ctx context.Context, st DeviceStatus) {
	select {
	case w.status <- st:
	case <-ctx.Done():
	}
}
