package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/logging"
)

const shutdownTimeout = 5 * time.Second

// Server runs the status API until its context ends
type Server struct {
	srv *http.Server
	log *logging.Logger
}

// NewServer creates a server for handler on addr
func NewServer(addr string, handler http.Handler, log *logging.Logger) *Server {
	if log == nil {
		log = logging.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log.Named("status"),
	}
}

// OnShutdown registers fn to run when shutdown starts. Hijacked
// connections such as the event stream are closed this way.
func (s *Server) OnShutdown(fn func()) {
	s.srv.RegisterOnShutdown(fn)
}

// Serve listens on the configured address
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("status listen %s: %w", s.srv.Addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln and shuts down gracefully when ctx ends
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("status API listening", zap.String("addr", ln.Addr().String()))
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status shutdown: %w", err)
	}
	s.log.Info("status API stopped")
	return nil
}
