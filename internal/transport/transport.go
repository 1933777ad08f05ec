package transport

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/AgentOS/gui/internal/broker"
	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

var (
	ErrClosed       = errors.New("transport closed")
	ErrUnavailable  = errors.New("broker unavailable")
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrPeerMismatch = errors.New("frame caller does not match peer")
)

// Transport moves one request frame to the broker and returns its answer.
// RoundTrip blocks until the response arrives or ctx is done.
type Transport interface {
	RoundTrip(ctx context.Context, frame protocol.RequestFrame) (protocol.ResponseFrame, error)
	Close() error
}

// Broker is the receiving end of a transport
type Broker interface {
	Submit(ctx context.Context, call broker.Call) (protocol.Response, error)
}

// submitError maps broker loop errors onto transport errors
func submitError(err error) error {
	if errors.Is(err, broker.ErrStopped) {
		return errors.Join(ErrUnavailable, err)
	}
	return err
}
