// Package transport carries broker frames between processes.
//
// Frames are the protowire encoding from the protocol package. Between
// processes they travel as the single unary method /gui.Broker/Call of a
// gRPC server listening on a Unix socket. The server learns each caller's
// pid from SO_PEERCRED during the handshake and refuses frames that claim
// to be someone else.
//
// Transports:
//   - Loopback: in-process, straight into a broker for a fixed caller
//   - GRPC: client side of the Unix socket server
//
// Refusals (rate limit, peer mismatch, undecodable frame) are transport
// errors and never appear as broker responses.
//
// Example Usage:
//
//	srv := transport.NewServer(b, transport.ServerOptions{
//		Limiter: transport.NewLimiter(200, 400),
//		Logger:  log,
//	})
//	lis, err := transport.Listen("/run/gui/broker.sock")
//	go srv.Serve(ctx, lis)
//
//	t, err := transport.Dial("/run/gui/broker.sock", protocol.PID(os.Getpid()))
//	resp, err := t.RoundTrip(ctx, protocol.RequestFrame{Request: protocol.QueryDeviceType{}})
package transport
