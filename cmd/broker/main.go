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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	status "github.com/GriffinCanCode/AgentOS/gui/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/gui/internal/audit"
	"github.com/GriffinCanCode/AgentOS/gui/internal/broker"
	"github.com/GriffinCanCode/AgentOS/gui/internal/hardware"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
	"github.com/GriffinCanCode/AgentOS/gui/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "broker: %v\n", err)
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

	info := probe(cfg.Broker)
	log.Info("hardware probed",
		zap.Bool("mobile", info.Mobile),
		zap.Bool("touch", info.Touch),
		zap.Bool("battery", info.Battery),
		zap.Int("inputs", len(info.Inputs)),
		zap.Int("connectors", len(info.Connectors)),
	)

	inputs := make([]protocol.DeviceID, len(info.Inputs))
	for i, d := range info.Inputs {
		inputs[i] = d.ID
	}
	state := broker.NewState(broker.Limits{
		MaxTotalGPUMemoryMB:   cfg.Limits.MaxTotalGPUMemoryMB,
		MaxProcessGPUMemoryMB: cfg.Limits.MaxProcessGPUMemoryMB,
		DefaultGPUMemoryMB:    cfg.Limits.DefaultGPUMemoryMB,
		DefaultMaxSurfaces:    cfg.Limits.DefaultMaxSurfaces,
	}, broker.DeviceInfo{
		Mobile:         info.Mobile,
		Inputs:         inputs,
		InventoryKnown: len(inputs) > 0,
	})

	var sink audit.Sink = audit.Discard
	if cfg.Broker.AuditLog != "" {
		f, err := audit.OpenFile(cfg.Broker.AuditLog)
		if err != nil {
			return err
		}
		defer f.Close()
		sink = f
	}

	b := broker.New(state, broker.Options{
		Display: hardware.NewSysfsDisplay(cfg.Broker.SysRoot),
		Breaker: resilience.Settings{
			Threshold: cfg.Broker.DriverFailureThreshold,
			Cooldown:  cfg.Broker.DriverCooldown,
		},
		Audit:   sink,
		Logger:  log,
		Metrics: metrics,
	})

	lister, err := broker.NewProcfsLister(cfg.Broker.ProcRoot)
	if err != nil {
		return err
	}
	reconciler := broker.NewReconciler(b, lister, cfg.Broker.ReconcileInterval, log)

	var tracer *tracing.Tracer
	if cfg.Logging.Trace {
		tracer = tracing.New("broker", log)
	}
	srv := transport.NewServer(b, transport.ServerOptions{
		Limiter: transport.NewLimiter(cfg.Broker.RateRPS, cfg.Broker.RateBurst),
		Logger:  log,
		Metrics: metrics,
		Tracer:  tracer,
	})
	lis, err := transport.Listen(cfg.Broker.Socket)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Serve(ctx) })
	g.Go(func() error { return reconciler.Run(ctx) })
	g.Go(func() error { return srv.Serve(ctx, lis) })
	if cfg.Broker.MetricsAddr != "" {
		g.Go(func() error { return metricsServer(cfg.Broker.MetricsAddr, reg, log).Serve(ctx) })
	}

	log.Info("broker started", zap.String("socket", cfg.Broker.Socket))
	err = g.Wait()
	log.Info("broker stopped")
	return err
}

func probe(cfg config.BrokerConfig) hardware.Info {
	opts := hardware.Options{ProcRoot: cfg.ProcRoot, SysRoot: cfg.SysRoot}
	// Validate has already rejected malformed overrides
	if mobile, set, _ := cfg.Mobile(); set {
		opts.MobileOverride = &mobile
	}
	return hardware.Probe(opts)
}

func metricsServer(addr string, reg *prometheus.Registry, log *logging.Logger) *status.Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	return status.NewServer(addr, r, log)
}
