// Package ws streams desktop changes to status clients over WebSocket.
//
// The Hub is a compositor observer. Each visible change is fanned out to
// every connected client without blocking the compositor; a client whose
// queue is full misses the message.
//
// Message Types (Server → Client):
//   - hello: sent on connect with the subscriber id and current snapshot
//   - focus: focus moved
//   - workspace: the active workspace changed
//   - visibility: surfaces were shown, hidden, moved or restacked
//   - pong: reply to a client ping
//
// Message Types (Client → Server):
//   - ping: keep-alive ping
//
// Example Usage:
//
//	hub := ws.NewHub(ws.Options{Snapshot: comp.Snapshot, Metrics: metrics})
//	comp, _ := compositor.New(compositor.Options{Observer: hub})
//	router.GET("/events", hub.Handler)
package ws
