// Command broker runs the capability broker.
//
// It probes the hardware once, then serves capability requests on a Unix
// socket until SIGINT or SIGTERM. A reconciler sweeps the capability table
// against /proc so rights held by dead processes are reclaimed even when
// no exit notification arrives.
//
// Configuration comes from the environment (see internal/infrastructure/config):
//
//	BROKER_SOCKET=/run/gui/broker.sock
//	BROKER_AUDIT_LOG=/var/log/gui/audit.cbor
//	BROKER_METRICS_ADDR=127.0.0.1:8791
//	MAX_TOTAL_GPU_MEMORY=8192
package main
