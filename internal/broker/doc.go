/*
Package broker implements the kernel-resident capability broker.

The broker owns the capability table and processes one request at a time on
a single goroutine. Every request variant has exactly one handler and every
handler answers with a response variant allowed for that request.

# Identity

Each Call carries the pid of the process that sent it, taken from the
transport. Caller 0 is the kernel itself and is trusted to name any pid.
Other callers act on themselves; the registered compositor may also act on
its clients. GPU and input grants require the requester to be the
compositor.

# Process death

NotifyExit queues a purge for a dead pid. A dead compositor cascades: every
GPU, input, display-control and surface-management right and every surface
is revoked. The Reconciler backs up missed notifications by sweeping the
table against the live process list.

Example Usage:

	state := broker.NewState(limits, broker.DeviceInfo{Mobile: info.Mobile})
	b := broker.New(state, broker.Options{Display: display, Audit: sink, Logger: log})
	go b.Serve(ctx)

	resp, err := b.Submit(ctx, broker.Call{
		RequestID: id.NewRequestID().String(),
		Caller:    412,
		Request:   protocol.RegisterCompositor{PID: 412},
	})
*/
package broker
