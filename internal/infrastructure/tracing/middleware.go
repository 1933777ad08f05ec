package tracing

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// HTTPMiddleware traces each request and echoes the ids in the response
// headers
func HTTPMiddleware(t *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithTrace(c.Request.Context(),
			TraceID(c.GetHeader(HeaderTraceID)),
			SpanID(c.GetHeader(HeaderSpanID)))

		name := c.FullPath()
		if name == "" {
			name = "unmatched"
		}
		span, ctx := t.StartSpan(ctx, c.Request.Method+" "+name)
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderTraceID, string(span.TraceID))
		c.Header(HeaderSpanID, string(span.SpanID))

		c.Next()

		span.SetTag("http.status", strconv.Itoa(c.Writer.Status()))
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}
		span.Finish()
	}
}

// GRPCUnaryInterceptor traces each call, continuing the caller's trace
// when the metadata carries one
func GRPCUnaryInterceptor(t *Tracer) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			ctx = WithTrace(ctx, TraceID(first(md, metadataTraceID)), SpanID(first(md, metadataSpanID)))
		}

		span, ctx := t.StartSpan(ctx, info.FullMethod)
		span.SetTag("rpc.system", "grpc")
		resp, err := handler(ctx, req)
		if err != nil {
			span.SetTag("rpc.code", status.Code(err).String())
			span.SetError(err)
		}
		span.Finish()
		return resp, err
	}
}

// GRPCClientInterceptor starts a client span per call and sends its ids
// in the outgoing metadata
func GRPCClientInterceptor(t *Tracer) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		span, ctx := t.StartSpan(ctx, method)
		span.SetTag("span.kind", "client")
		ctx = metadata.AppendToOutgoingContext(ctx,
			metadataTraceID, string(span.TraceID),
			metadataSpanID, string(span.SpanID))

		err := invoker(ctx, method, req, reply, cc, opts...)
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
		return err
	}
}

func first(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}
