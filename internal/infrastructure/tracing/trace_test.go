package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/logging"
)

func newTracer(t *testing.T) (*Tracer, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return New("test", &logging.Logger{Logger: zap.New(core)}), logs
}

func fields(e observer.LoggedEntry) map[string]any {
	return e.ContextMap()
}

func TestStartSpan(t *testing.T) {
	tracer, _ := newTracer(t)

	root, ctx := tracer.StartSpan(context.Background(), "root")
	assert.NotEmpty(t, root.TraceID)
	assert.NotEmpty(t, root.SpanID)
	assert.Empty(t, root.ParentID)

	child, ctx := tracer.StartSpan(ctx, "child")
	assert.Equal(t, root.TraceID, child.TraceID)
	assert.Equal(t, root.SpanID, child.ParentID)
	assert.NotEqual(t, root.SpanID, child.SpanID)

	trace, span := FromContext(ctx)
	assert.Equal(t, child.TraceID, trace)
	assert.Equal(t, child.SpanID, span)
}

func TestFinishLogs(t *testing.T) {
	tracer, logs := newTracer(t)
	start := time.Unix(100, 0)
	tracer.now = func() time.Time { return start }

	span, _ := tracer.StartSpan(context.Background(), "op")
	span.SetTag("surface", "3")
	tracer.now = func() time.Time { return start.Add(5 * time.Millisecond) }
	span.Finish()

	require.Equal(t, 1, logs.Len())
	e := logs.All()[0]
	assert.Equal(t, zapcore.DebugLevel, e.Level)
	assert.Equal(t, "span finished", e.Message)
	f := fields(e)
	assert.Equal(t, "op", f["operation"])
	assert.Equal(t, "3", f["surface"])
	assert.Equal(t, "test", f["service"])
	assert.Equal(t, 5*time.Millisecond, span.Duration)
}

func TestFinishFailed(t *testing.T) {
	tracer, logs := newTracer(t)

	span, _ := tracer.StartSpan(context.Background(), "op")
	span.SetError(errors.New("boom"))
	span.Finish()

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
	assert.Equal(t, "boom", fields(logs.All()[0])["error"])
}

func TestNewWithoutLogger(t *testing.T) {
	tracer := New("x", nil)
	span, _ := tracer.StartSpan(context.Background(), "op")
	assert.NotPanics(t, span.Finish)
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name      string
		trace     string
		wantTrace bool
	}{
		{name: "new trace"},
		{name: "continues trace", trace: "trc_given", wantTrace: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, logs := newTracer(t)
			r := gin.New()
			r.Use(HTTPMiddleware(tracer))
			var seen TraceID
			r.GET("/focus", func(c *gin.Context) {
				seen, _ = FromContext(c.Request.Context())
				c.Status(http.StatusTeapot)
			})

			req := httptest.NewRequest(http.MethodGet, "/focus", nil)
			if tt.trace != "" {
				req.Header.Set(HeaderTraceID, tt.trace)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(HeaderTraceID)
			assert.NotEmpty(t, got)
			assert.Equal(t, string(seen), got)
			if tt.wantTrace {
				assert.Equal(t, tt.trace, got)
			}

			require.Equal(t, 1, logs.Len())
			f := fields(logs.All()[0])
			assert.Equal(t, "GET /focus", f["operation"])
			assert.Equal(t, "418", f["http.status"])
		})
	}
}

func TestGRPCUnaryInterceptor(t *testing.T) {
	tracer, logs := newTracer(t)
	intercept := GRPCUnaryInterceptor(tracer)
	info := &grpc.UnaryServerInfo{FullMethod: "/gui.Broker/Call"}

	ctx := metadata.NewIncomingContext(context.Background(),
		metadata.Pairs(metadataTraceID, "trc_client", metadataSpanID, "spn_client"))

	var trace TraceID
	_, err := intercept(ctx, nil, info, func(ctx context.Context, _ any) (any, error) {
		trace, _ = FromContext(ctx)
		return nil, status.Error(codes.PermissionDenied, "no")
	})
	require.Error(t, err)
	assert.Equal(t, TraceID("trc_client"), trace)

	require.Equal(t, 1, logs.Len())
	f := fields(logs.All()[0])
	assert.Equal(t, "spn_client", f["parent_id"])
	assert.Equal(t, "PermissionDenied", f["rpc.code"])
}

func TestGRPCClientInterceptor(t *testing.T) {
	tracer, logs := newTracer(t)
	intercept := GRPCClientInterceptor(tracer)

	var md metadata.MD
	err := intercept(context.Background(), "/gui.Broker/Call", nil, nil, nil,
		func(ctx context.Context, _ string, _, _ any, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
			md, _ = metadata.FromOutgoingContext(ctx)
			return nil
		})
	require.NoError(t, err)

	require.Len(t, md.Get(metadataTraceID), 1)
	require.Len(t, md.Get(metadataSpanID), 1)
	require.Equal(t, 1, logs.Len())
	f := fields(logs.All()[0])
	assert.Equal(t, md.Get(metadataTraceID)[0], f["trace_id"])
	assert.Equal(t, "client", f["span.kind"])
}
