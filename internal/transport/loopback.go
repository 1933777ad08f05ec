package transport

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/GriffinCanCode/AgentOS/gui/internal/broker"
	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

// Loopback delivers frames to an in-process broker as a fixed caller.
// Frames still go through the wire encoding so both transports accept and
// reject the same inputs.
type Loopback struct {
	broker Broker
	caller protocol.PID
	closed atomic.Bool
}

// NewLoopback creates a loopback transport for caller
func NewLoopback(b Broker, caller protocol.PID) *Loopback {
	return &Loopback{broker: b, caller: caller}
}

// RoundTrip submits frame to the broker and waits for the answer
func (l *Loopback) RoundTrip(ctx context.Context, frame protocol.RequestFrame) (protocol.ResponseFrame, error) {
	if l.closed.Load() {
		return protocol.ResponseFrame{}, ErrClosed
	}

	frame.Caller = l.caller
	payload, err := protocol.MarshalRequest(frame)
	if err != nil {
		return protocol.ResponseFrame{}, err
	}
	decoded, err := protocol.UnmarshalRequest(payload)
	if err != nil {
		return protocol.ResponseFrame{}, err
	}

	resp, err := l.broker.Submit(ctx, broker.Call{
		RequestID: decoded.RequestID,
		Caller:    l.caller,
		Request:   decoded.Request,
	})
	if err != nil {
		return protocol.ResponseFrame{}, submitError(err)
	}

	out, err := protocol.MarshalResponse(protocol.ResponseFrame{RequestID: decoded.RequestID, Response: resp})
	if err != nil {
		return protocol.ResponseFrame{}, fmt.Errorf("encode response: %w", err)
	}
	return protocol.UnmarshalResponse(out)
}

// Close makes further round trips fail with ErrClosed
func (l *Loopback) Close() error {
	l.closed.Store(true)
	return nil
}
