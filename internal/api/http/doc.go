// Package http serves the compositor's read-only status API.
//
// Endpoints:
//   - GET /healthz: liveness
//   - GET /metrics: Prometheus exposition
//   - GET /surfaces: every surface, ordered by id
//   - GET /workspaces: workspaces with their surface counts
//   - GET /focus: the focused surface, if any
//   - GET /device: whether the platform is mobile
//   - GET /frames: frame pacing over the recent window
//   - GET /events: WebSocket event stream, when configured
//
// Example Usage:
//
//	router := http.NewRouter(http.Options{
//		Desktop:  comp,
//		Gatherer: registry,
//		Metrics:  metrics,
//		Events:   hub.Handler,
//	})
//	srv := http.NewServer(cfg.Status.Addr, router, logger)
//	go srv.Serve(ctx)
package http
