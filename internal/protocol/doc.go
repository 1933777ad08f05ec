// Package protocol defines the request/response surface between userspace
// processes and the capability broker.
//
// The surface is a pair of closed sum types:
//   - Request: nine variants, one per broker operation
//   - Response: six variants, see Allowed for which ones a request may produce
//
// Capabilities are a third sum type carried inside requests and responses.
// All three are sealed interfaces; only the types declared in this package
// implement them, so a type switch over any of them is exhaustive.
//
// Wire Format:
//
// Frames are encoded in protobuf wire format using protowire directly, with no
// generated code. Every variant occupies its own length-delimited field so the
// frame stays a tagged union on the wire:
//
//	frame, err := protocol.MarshalRequest(protocol.RequestFrame{
//		RequestID: "req_01J...",
//		Caller:    42,
//		Request:   protocol.RegisterCompositor{PID: 42},
//	})
//
// Unknown fields are skipped so newer peers can add fields; a frame without a
// body, or with two bodies, is rejected.
package protocol
