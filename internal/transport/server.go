package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/GriffinCanCode/AgentOS/gui/internal/broker"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

// maxFrameSize bounds a single encoded frame
const maxFrameSize = 64 << 10

// ServerOptions configures a Server. Zero values get safe defaults.
type ServerOptions struct {
	Limiter *Limiter
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
	// Tracer traces each call when set
	Tracer *tracing.Tracer
}

// Server exposes a broker on a Unix socket
type Server struct {
	broker  Broker
	limiter *Limiter
	log     *logging.Logger
	metrics *monitoring.Metrics
	grpc    *grpc.Server
}

// NewServer creates a server that forwards verified frames to b
func NewServer(b Broker, opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewMetrics(prometheus.NewRegistry())
	}

	s := &Server{
		broker:  b,
		limiter: opts.Limiter,
		log:     opts.Logger.Named("transport"),
		metrics: opts.Metrics,
	}
	serverOpts := []grpc.ServerOption{
		grpc.Creds(PeerCredentials()),
		grpc.ForceServerCodec(frameCodec{}),
		grpc.MaxRecvMsgSize(maxFrameSize),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             10 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	if opts.Tracer != nil {
		serverOpts = append(serverOpts, grpc.UnaryInterceptor(tracing.GRPCUnaryInterceptor(opts.Tracer)))
	}
	s.grpc = grpc.NewServer(serverOpts...)
	s.grpc.RegisterService(&serviceDesc, s)
	return s
}

// Listen opens a Unix socket at path, replacing a stale socket file left
// by a previous run
func Listen(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	lis, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	// Every local process may connect; identity is checked per frame.
	if err := os.Chmod(path, 0o666); err != nil {
		lis.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}
	return lis, nil
}

// Serve accepts connections on lis until ctx is cancelled, then drains
// in-flight calls
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpc.Serve(lis)
	}()

	s.log.Info("broker transport listening", zap.String("addr", lis.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log.Info("broker transport stopping")
		s.grpc.GracefulStop()
		return <-errCh
	}
}

// Stop closes all connections immediately
func (s *Server) Stop() {
	s.grpc.Stop()
}

func (s *Server) call(ctx context.Context, in *rawFrame) (*rawFrame, error) {
	p, ok := peer.FromContext(ctx)
	if !ok {
		return nil, s.refuse("no_peer", codes.Unauthenticated, "no peer information")
	}
	info, ok := p.AuthInfo.(PeerInfo)
	if !ok {
		return nil, s.refuse("no_peer", codes.Unauthenticated, "peer credentials unavailable")
	}

	// pid 0 is the in-process kernel identity. A socket peer reported as
	// pid 0 lives outside the broker's pid namespace.
	if info.PID == protocol.KernelPID {
		return nil, s.refuse("kernel_pid", codes.PermissionDenied, "socket peers may not act as pid 0")
	}

	frame, err := protocol.UnmarshalRequest(in.b)
	if err != nil {
		return nil, s.refuse("malformed", codes.InvalidArgument, err.Error(), logging.PID(info.PID))
	}
	if frame.Caller != info.PID {
		return nil, s.refuse("peer_mismatch", codes.PermissionDenied,
			fmt.Sprintf("frame caller %d is not peer %d", frame.Caller, info.PID),
			logging.PID(info.PID),
			zap.Uint32("claimed", uint32(frame.Caller)))
	}
	if !s.limiter.Allow(info.PID) {
		return nil, s.refuse("rate_limited", codes.ResourceExhausted, ErrRateLimited.Error(), logging.PID(info.PID))
	}

	resp, err := s.broker.Submit(ctx, broker.Call{
		RequestID: frame.RequestID,
		Caller:    info.PID,
		Request:   frame.Request,
	})
	if err != nil {
		if errors.Is(err, broker.ErrStopped) {
			return nil, status.Error(codes.Unavailable, err.Error())
		}
		return nil, status.FromContextError(err).Err()
	}

	out, err := protocol.MarshalResponse(protocol.ResponseFrame{RequestID: frame.RequestID, Response: resp})
	if err != nil {
		s.log.Error("encode response", logging.RequestID(frame.RequestID), zap.Error(err))
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &rawFrame{b: out}, nil
}

func (s *Server) refuse(reason string, code codes.Code, msg string, fields ...zap.Field) error {
	s.metrics.IncTransportRefusal(reason)
	s.log.Warn("frame refused", append(fields, zap.String("reason", reason), zap.String("detail", msg))...)
	return status.Error(code, msg)
}
