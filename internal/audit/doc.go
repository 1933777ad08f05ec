// Package audit records every broker decision and every cascade.
//
// The on-disk trail is a CBOR sequence (RFC 8742): records are appended one
// after another with no framing, so a crash mid-write loses at most the
// last record and the file can be read back with a streaming decoder.
// Encoding uses Core Deterministic Encoding, so the same decision always
// produces the same bytes.
package audit
