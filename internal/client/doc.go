// Package client is the typed IPC API the compositor uses to talk to the
// capability broker.
package client
