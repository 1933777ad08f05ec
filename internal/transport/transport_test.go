package transport

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GriffinCanCode/AgentOS/gui/internal/broker"
	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

type stubBroker struct {
	mu    sync.Mutex
	calls []broker.Call
	resp  protocol.Response
	err   error
}

func (s *stubBroker) Submit(_ context.Context, call broker.Call) (protocol.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	return s.resp, s.err
}

func TestFrameCodec(t *testing.T) {
	var c frameCodec
	assert.Equal(t, codecName, c.Name())

	b, err := c.Marshal(&rawFrame{b: []byte{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, b)

	var out rawFrame
	require.NoError(t, c.Unmarshal(b, &out))
	b[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, out.b, "unmarshal copies")

	_, err = c.Marshal("nope")
	assert.Error(t, err)
	assert.Error(t, c.Unmarshal(nil, new(int)))
}

func TestLoopbackStampsCaller(t *testing.T) {
	stub := &stubBroker{resp: protocol.DeviceType{IsMobile: true}}
	lb := NewLoopback(stub, 42)

	resp, err := lb.RoundTrip(context.Background(), protocol.RequestFrame{
		RequestID: "req_1",
		Caller:    7,
		Request:   protocol.QueryDeviceType{},
	})
	require.NoError(t, err)
	assert.Equal(t, "req_1", resp.RequestID)
	assert.Equal(t, protocol.DeviceType{IsMobile: true}, resp.Response)

	require.Len(t, stub.calls, 1)
	assert.Equal(t, protocol.PID(42), stub.calls[0].Caller)
	assert.Equal(t, protocol.QueryDeviceType{}, stub.calls[0].Request)
}

func TestLoopbackErrors(t *testing.T) {
	stub := &stubBroker{err: broker.ErrStopped}
	lb := NewLoopback(stub, 1)

	_, err := lb.RoundTrip(context.Background(), protocol.RequestFrame{Request: protocol.QueryDeviceType{}})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, broker.ErrStopped)

	_, err = lb.RoundTrip(context.Background(), protocol.RequestFrame{})
	assert.ErrorIs(t, err, protocol.ErrMissingBody)

	require.NoError(t, lb.Close())
	_, err = lb.RoundTrip(context.Background(), protocol.RequestFrame{Request: protocol.QueryDeviceType{}})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLoopbackRealBroker(t *testing.T) {
	b := broker.New(broker.NewState(broker.Limits{
		MaxTotalGPUMemoryMB:   1024,
		MaxProcessGPUMemoryMB: 1024,
		DefaultGPUMemoryMB:    128,
		DefaultMaxSurfaces:    4,
	}, broker.DeviceInfo{}), broker.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Serve(ctx) }()

	comp := NewLoopback(b, 100)
	other := NewLoopback(b, 200)

	resp, err := comp.RoundTrip(ctx, protocol.RequestFrame{Request: protocol.RegisterCompositor{PID: 100}})
	require.NoError(t, err)
	assert.Equal(t, protocol.Success{}, resp.Response)

	resp, err = other.RoundTrip(ctx, protocol.RequestFrame{Request: protocol.RegisterCompositor{PID: 100}})
	require.NoError(t, err)
	assert.Equal(t, protocol.Deny(protocol.ReasonUnauthorized), resp.Response)
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		code codes.Code
		want error
	}{
		{codes.ResourceExhausted, ErrRateLimited},
		{codes.PermissionDenied, ErrPeerMismatch},
		{codes.InvalidArgument, protocol.ErrMalformed},
		{codes.DeadlineExceeded, context.DeadlineExceeded},
		{codes.Canceled, context.Canceled},
		{codes.Unavailable, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.ErrorIs(t, fromStatus(status.Error(tt.code, "x")), tt.want)
		})
	}

	plain := errors.New("plain")
	assert.Equal(t, plain, fromStatus(plain))
}
