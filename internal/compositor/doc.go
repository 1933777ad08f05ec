/*
Package compositor runs the desktop: it owns the desktop Core and the broker
client on one main goroutine and connects them to the render and input
workers.

# Goroutines

	           shell commands        client exits
	                 |                    |
	                 v                    v
	input worker --events--> [ main goroutine ] --frames--> render worker
	             <--status--        |   ^        <--done---
	                                v   |
	                               broker

Only the main goroutine touches the Core. Every operation stores a new
immutable snapshot, read lock-free by Snapshot and the status API. Changes
that alter something visible also post a frame to the renderer's
latest-wins mailbox and reach the Observer.

# Startup and shutdown

Run registers the compositor, requests its GPU grant (halving the memory on
limit denials), requests the configured input devices and learns the
device type. On return it unregisters, which makes the broker revoke every
capability derived from the compositor.

Example Usage:

	comp, err := compositor.New(compositor.Options{
		PID:        protocol.PID(os.Getpid()),
		Broker:     client.New(conn, client.Options{}),
		Workspaces: layout.Workspaces,
		Output:     desktop.Rect{Width: 1920, Height: 1080},
		GPU:        protocol.GPULimits{MemoryMB: 1024, MaxSurfaces: 64},
		Bindings:   layout.Bindings,
	})
	if err != nil {
		return err
	}
	go comp.Run(ctx)
	<-comp.Ready()

	id, err := comp.CreateSurface(ctx, clientPID, "terminal", desktop.Rect{Width: 800, Height: 600})
	err = comp.MapSurface(ctx, id, true)
*/
package compositor
