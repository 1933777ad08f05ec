package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

// GRPC is the client side of the broker socket
type GRPC struct {
	conn   *grpc.ClientConn
	caller protocol.PID

	mu     sync.Mutex
	closed bool
}

// Dial connects to the broker socket at path. Every frame sent is stamped
// with caller, which the server checks against the kernel's view of this
// process. Extra options, such as interceptors, are appended.
func Dial(path string, caller protocol.PID, extra ...grpc.DialOption) (*GRPC, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             10 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.WithDefaultCallOptions(
			grpc.ForceCodec(frameCodec{}),
			grpc.MaxCallRecvMsgSize(maxFrameSize),
			grpc.MaxCallSendMsgSize(maxFrameSize),
		),
	}
	opts = append(opts, extra...)

	conn, err := grpc.NewClient("unix:"+path, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial broker: %w", err)
	}
	return &GRPC{conn: conn, caller: caller}, nil
}

// Caller returns the pid frames are sent as
func (g *GRPC) Caller() protocol.PID {
	return g.caller
}

// RoundTrip sends frame and waits for the broker's answer
func (g *GRPC) RoundTrip(ctx context.Context, frame protocol.RequestFrame) (protocol.ResponseFrame, error) {
	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	if closed {
		return protocol.ResponseFrame{}, ErrClosed
	}

	frame.Caller = g.caller
	payload, err := protocol.MarshalRequest(frame)
	if err != nil {
		return protocol.ResponseFrame{}, err
	}

	out := new(rawFrame)
	if err := g.conn.Invoke(ctx, callMethod, &rawFrame{b: payload}, out); err != nil {
		return protocol.ResponseFrame{}, fromStatus(err)
	}

	resp, err := protocol.UnmarshalResponse(out.b)
	if err != nil {
		return protocol.ResponseFrame{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Close releases the connection
func (g *GRPC) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	return g.conn.Close()
}

// fromStatus maps server refusals back onto transport errors
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	msg := st.Message()
	switch st.Code() {
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrPeerMismatch, msg)
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", protocol.ErrMalformed, msg)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", context.DeadlineExceeded, msg)
	case codes.Canceled:
		return fmt.Errorf("%w: %s", context.Canceled, msg)
	case codes.Unavailable, codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrUnavailable, msg)
	default:
		return errors.New(msg)
	}
}
