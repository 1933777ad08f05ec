/*
Package tracing follows one operation from the shell, through the status
API or the compositor, across the broker socket and into the broker.

A trace is a tree of spans. Trace and parent span ids travel in the
X-Trace-ID and X-Span-ID HTTP headers and in the matching gRPC metadata.
Finished spans are written to the structured log, at debug level unless
they failed.

Usage:

	tracer := tracing.New("compositor", logger)

	router.Use(tracing.HTTPMiddleware(tracer))

	server := grpc.NewServer(grpc.UnaryInterceptor(tracing.GRPCUnaryInterceptor(tracer)))

	conn, err := transport.Dial(socket, pid,
		grpc.WithUnaryInterceptor(tracing.GRPCClientInterceptor(tracer)))

	span, ctx := tracer.StartSpan(ctx, "startup")
	defer span.Finish()
*/
package tracing
