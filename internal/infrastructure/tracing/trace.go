package tracing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/gui/internal/shared/id"
)

// TraceID identifies a whole operation
type TraceID string

// SpanID identifies one step of it
type SpanID string

// Propagation keys
const (
	HeaderTraceID = "X-Trace-ID"
	HeaderSpanID  = "X-Span-ID"

	metadataTraceID = "x-trace-id"
	metadataSpanID  = "x-span-id"
)

// Span is a single timed operation
type Span struct {
	TraceID  TraceID
	SpanID   SpanID
	ParentID SpanID
	Name     string
	Start    time.Time
	Duration time.Duration
	Tags     map[string]string
	Err      error

	tracer *Tracer
}

// Tracer creates spans and logs them when they finish
type Tracer struct {
	service string
	log     *logging.Logger
	now     func() time.Time
}

// New creates a tracer for service
func New(service string, log *logging.Logger) *Tracer {
	if log == nil {
		log = logging.NewNop()
	}
	return &Tracer{service: service, log: log.Named("trace"), now: time.Now}
}

// StartSpan starts a span under whatever span ctx carries. The returned
// context carries the new span.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	trace, parent := FromContext(ctx)
	if trace == "" {
		trace = TraceID(id.NewTraceID())
	}
	s := &Span{
		TraceID:  trace,
		SpanID:   SpanID(id.NewSpanID()),
		ParentID: parent,
		Name:     name,
		Start:    t.now(),
		Tags:     make(map[string]string),
		tracer:   t,
	}
	return s, WithTrace(ctx, s.TraceID, s.SpanID)
}

// SetTag adds a tag to the span
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// SetError marks the span failed
func (s *Span) SetError(err error) {
	s.Err = err
}

// Finish records the duration and logs the span
func (s *Span) Finish() {
	s.Duration = s.tracer.now().Sub(s.Start)

	fields := []zap.Field{
		zap.String("service", s.tracer.service),
		zap.String("trace_id", string(s.TraceID)),
		zap.String("span_id", string(s.SpanID)),
		zap.String("operation", s.Name),
		zap.Duration("duration", s.Duration),
	}
	if s.ParentID != "" {
		fields = append(fields, zap.String("parent_id", string(s.ParentID)))
	}
	for k, v := range s.Tags {
		fields = append(fields, zap.String(k, v))
	}

	if s.Err != nil {
		s.tracer.log.Warn("span failed", append(fields, zap.Error(s.Err))...)
		return
	}
	s.tracer.log.Debug("span finished", fields...)
}

type contextKey int

const (
	traceKey contextKey = iota
	spanKey
)

// WithTrace returns a context carrying trace and span
func WithTrace(ctx context.Context, trace TraceID, span SpanID) context.Context {
	if trace != "" {
		ctx = context.WithValue(ctx, traceKey, trace)
	}
	if span != "" {
		ctx = context.WithValue(ctx, spanKey, span)
	}
	return ctx
}

// FromContext returns the trace and span ctx carries, if any
func FromContext(ctx context.Context) (TraceID, SpanID) {
	trace, _ := ctx.Value(traceKey).(TraceID)
	span, _ := ctx.Value(spanKey).(SpanID)
	return trace, span
}
