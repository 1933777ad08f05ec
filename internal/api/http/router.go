package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GriffinCanCode/AgentOS/gui/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/tracing"
)

// Options configures the status router
type Options struct {
	Desktop  Desktop
	Gatherer prometheus.Gatherer
	Metrics  *monitoring.Metrics
	Tracer   *tracing.Tracer
	// Events serves /events when set
	Events gin.HandlerFunc

	CORS      middleware.CORSConfig
	RateLimit middleware.RateLimitConfig
}

// NewRouter builds the gin engine for the status API
func NewRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if opts.Tracer != nil {
		r.Use(tracing.HTTPMiddleware(opts.Tracer))
	}
	if opts.Metrics != nil {
		r.Use(monitoring.Middleware(opts.Metrics))
	}
	if h := middleware.CORS(opts.CORS); h != nil {
		r.Use(h)
	}
	if opts.RateLimit.RequestsPerSecond > 0 {
		r.Use(middleware.RateLimit(opts.RateLimit))
	}

	h := NewHandlers(opts.Desktop)
	r.GET("/healthz", h.Health)
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/surfaces", h.Surfaces)
	r.GET("/workspaces", h.Workspaces)
	r.GET("/focus", h.Focus)
	r.GET("/device", h.Device)
	r.GET("/frames", h.Frames)
	if opts.Events != nil {
		r.GET("/events", opts.Events)
	}
	return r
}
