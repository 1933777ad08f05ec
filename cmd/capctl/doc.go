// Command capctl inspects the capability broker and the compositor.
//
// Broker queries go over the broker socket as the calling process:
//
//	capctl has 412 input_device:3:exclusive
//	capctl device-type
//
// Audit trails written by the broker are decoded offline, compressed or
// not:
//
//	capctl -o json audit /var/log/gui/audit.cbor.zst
//
// The compositor's read-only status API is queried over HTTP:
//
//	capctl --addr http://127.0.0.1:8790 status workspaces
package main
