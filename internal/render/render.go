package render

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/gui/internal/domain/desktop"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
	"github.com/GriffinCanCode/AgentOS/gui/internal/shared/id"
)

// Layer is the part of a surface the renderer needs
type Layer struct {
	Surface  protocol.SurfaceID
	Geometry desktop.Rect
	Focused  bool
}

// Frame is one composited picture, bottom layer first
type Frame struct {
	Seq    uint64
	ID     id.FrameID
	Output desktop.Rect
	Layers []Layer
}

// NewFrame builds a frame from a snapshot
func NewFrame(seq uint64, snap desktop.Snapshot) Frame {
	visible := snap.Visible()
	f := Frame{
		Seq:    seq,
		ID:     id.NewFrameID(),
		Output: snap.Output,
		Layers: make([]Layer, len(visible)),
	}
	for i, s := range visible {
		f.Layers[i] = Layer{Surface: s.ID, Geometry: s.Geometry, Focused: s.ID == snap.Focused}
	}
	return f
}

// FrameDone reports a finished frame. Err is set when submission failed.
type FrameDone struct {
	Seq       uint64
	Presented time.Time
	Err       error
}

// Submitter puts a frame on screen
type Submitter interface {
	Submit(ctx context.Context, f Frame) error
}

// NullSubmitter accepts every frame and draws nothing
type NullSubmitter struct {
	mu     sync.Mutex
	frames uint64
	last   Frame
}

// Submit records the frame
func (n *NullSubmitter) Submit(_ context.Context, f Frame) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.frames++
	n.last = f
	return nil
}

// Frames returns how many frames were submitted and the last one
func (n *NullSubmitter) Frames() (uint64, Frame) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.frames, n.last
}

// Mailbox holds at most one pending frame. Put never blocks.
type Mailbox struct {
	ch chan Frame
}

// NewMailbox creates an empty mailbox
func NewMailbox() *Mailbox {
	return &Mailbox{ch: make(chan Frame, 1)}
}

// Put replaces any pending frame with f. It must have a single caller.
func (m *Mailbox) Put(f Frame) (replaced bool) {
	select {
	case <-m.ch:
		replaced = true
	default:
	}
	m.ch <- f
	return replaced
}

// C is the receive side
func (m *Mailbox) C() <-chan Frame {
	return m.ch
}

// Worker drains a mailbox into a submitter
type Worker struct {
	mailbox   *Mailbox
	submitter Submitter
	done      chan FrameDone
	now       func() time.Time
	log       *logging.Logger
}

// NewWorker creates a render worker
func NewWorker(mailbox *Mailbox, submitter Submitter, log *logging.Logger) *Worker {
	if log == nil {
		log = logging.NewNop()
	}
	return &Worker{
		mailbox:   mailbox,
		submitter: submitter,
		done:      make(chan FrameDone, 4),
		now:       time.Now,
		log:       log.Named("render"),
	}
}

// Done delivers frame completions
func (w *Worker) Done() <-chan FrameDone {
	return w.done
}

// Run renders until ctx is cancelled
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-w.mailbox.C():
			err := w.submitter.Submit(ctx, f)
			if err != nil && ctx.Err() == nil {
				w.log.Warn("frame submission failed",
					zap.Uint64("seq", f.Seq),
					zap.String("frame_id", f.ID.String()),
					zap.Error(err))
			}
			select {
			case w.done <- FrameDone{Seq: f.Seq, Presented: w.now(), Err: err}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
