package transport

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	serviceName = "gui.Broker"
	callMethod  = "/" + serviceName + "/Call"
	codecName   = "gui-frame"
)

// rawFrame is an already-encoded protocol frame
type rawFrame struct {
	b []byte
}

// frameCodec passes frames through gRPC untouched. Encoding happens in the
// protocol package so both ends agree on one wire format.
type frameCodec struct{}

var _ encoding.Codec = frameCodec{}

func (frameCodec) Marshal(v any) ([]byte, error) {
	f, ok := v.(*rawFrame)
	if !ok {
		return nil, fmt.Errorf("%s codec: cannot marshal %T", codecName, v)
	}
	return f.b, nil
}

func (frameCodec) Unmarshal(data []byte, v any) error {
	f, ok := v.(*rawFrame)
	if !ok {
		return fmt.Errorf("%s codec: cannot unmarshal into %T", codecName, v)
	}
	f.b = append(f.b[:0], data...)
	return nil
}

func (frameCodec) Name() string { return codecName }

// callHandler is the server half of the hand-registered service
type callHandler interface {
	call(ctx context.Context, in *rawFrame) (*rawFrame, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*callHandler)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Call",
			Handler:    handleCall,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gui/broker",
}

func handleCall(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(rawFrame)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(callHandler).call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: callMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(callHandler).call(ctx, req.(*rawFrame))
	}
	return interceptor(ctx, in, info, handler)
}
