package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	status "github.com/GriffinCanCode/AgentOS/gui/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/gui/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/gui/internal/api/ws"
	"github.com/GriffinCanCode/AgentOS/gui/internal/broker"
	"github.com/GriffinCanCode/AgentOS/gui/internal/client"
	"github.com/GriffinCanCode/AgentOS/gui/internal/compositor"
	"github.com/GriffinCanCode/AgentOS/gui/internal/domain/desktop"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/gui/internal/input"
	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
	"github.com/GriffinCanCode/AgentOS/gui/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "compositor: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(reg)

	cc := cfg.Compositor
	layout, err := config.LoadLayout(cc.LayoutFile, cc.Workspaces)
	if err != nil {
		return err
	}
	output := desktop.Rect{Width: cc.OutputWidth, Height: cc.OutputHeight}
	if layout.Output != nil {
		output.Width, output.Height = layout.Output.Width, layout.Output.Height
	}

	devices, err := input.ResolveDevices(cc.InputDir, cc.InputDevices)
	if err != nil {
		return err
	}

	pid := protocol.PID(os.Getpid())
	var (
		tracer   *tracing.Tracer
		dialOpts []grpc.DialOption
	)
	if cfg.Logging.Trace {
		tracer = tracing.New("compositor", log)
		dialOpts = append(dialOpts, grpc.WithUnaryInterceptor(tracing.GRPCClientInterceptor(tracer)))
	}
	conn, err := transport.Dial(cfg.Broker.Socket, pid, dialOpts...)
	if err != nil {
		return err
	}
	cl := client.New(conn, client.Options{Timeout: cc.IPCTimeout, Logger: log, Metrics: metrics})
	defer cl.Close()

	var comp *compositor.Compositor
	hub := ws.NewHub(ws.Options{
		Snapshot:     func() desktop.Snapshot { return comp.Snapshot() },
		AllowOrigins: cfg.Status.CORSOrigins,
		Logger:       log,
		Metrics:      metrics,
	})
	comp, err = compositor.New(compositor.Options{
		PID:               pid,
		Broker:            cl,
		Workspaces:        layout.Workspaces,
		Output:            output,
		GPU:               protocol.GPULimits{MemoryMB: cc.GPUMemoryMB, MaxSurfaces: cc.MaxSurfaces},
		ClientGPU:         protocol.GPULimits{MemoryMB: cfg.Limits.DefaultGPUMemoryMB, MaxSurfaces: cfg.Limits.DefaultMaxSurfaces},
		InputDevices:      devices,
		ExclusiveInput:    cc.ExclusiveInput,
		Open:              input.EvdevOpener(cc.InputDir),
		Bindings:          layout.Bindings,
		FocusFollowsMouse: cc.FocusFollowsMouse,
		Observer:          hub,
		Logger:            log,
		Metrics:           metrics,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return comp.Run(ctx) })

	lister, err := broker.NewProcfsLister(cfg.Broker.ProcRoot)
	if err != nil {
		log.Warn("client exit polling disabled", zap.Error(err))
	} else {
		g.Go(func() error {
			select {
			case <-comp.Ready():
			case <-ctx.Done():
				return nil
			}
			return comp.Reap(ctx, lister, cfg.Broker.ReconcileInterval)
		})
	}

	if cfg.Status.Enabled {
		gin.SetMode(gin.ReleaseMode)
		router := status.NewRouter(status.Options{
			Desktop:  comp,
			Gatherer: reg,
			Metrics:  metrics,
			Tracer:   tracer,
			Events:   hub.Handler,
			CORS: middleware.CORSConfig{
				AllowOrigins: cfg.Status.CORSOrigins,
				MaxAge:       middleware.DefaultCORSConfig().MaxAge,
			},
			RateLimit: middleware.RateLimitConfig{
				RequestsPerSecond: cfg.Status.RateRPS,
				Burst:             cfg.Status.RateBurst,
			},
		})
		srv := status.NewServer(cfg.Status.Addr, router, log)
		srv.OnShutdown(hub.Close)
		g.Go(func() error { return srv.Serve(ctx) })
	}

	log.Info("compositor starting",
		zap.String("socket", cfg.Broker.Socket),
		zap.Strings("workspaces", layout.Workspaces),
		zap.String("output", output.String()),
		zap.Int("input_devices", len(devices)))
	return g.Wait()
}
