package client

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
	"github.com/GriffinCanCode/AgentOS/gui/internal/transport"
)

var (
	// ErrBrokerUnresponsive means no answer arrived within the call
	// timeout. Callers treat it as fatal and do not retry.
	ErrBrokerUnresponsive = errors.New("broker unresponsive")
	// ErrProtocol means the broker answered with a response that is not
	// legal for the request sent
	ErrProtocol = errors.New("protocol violation")

	ErrRateLimited  = transport.ErrRateLimited
	ErrPeerMismatch = transport.ErrPeerMismatch
	ErrUnavailable  = transport.ErrUnavailable
)

// DeniedError is a policy refusal from the broker
type DeniedError struct {
	Op     protocol.RequestKind
	Reason protocol.Reason
	Code   uint32
}

func (e *DeniedError) Error() string {
	d := protocol.Denied{Reason: e.Reason, Code: e.Code}
	return fmt.Sprintf("%s denied: %s", e.Op, d.String())
}

// Retryable is false: the same request gets the same answer until state
// changes
func (e *DeniedError) Retryable() bool { return false }

// DriverError is an operational failure reported by the broker
type DriverError struct {
	Op      protocol.RequestKind
	Message string
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
}

// Retryable is true: driver faults may be transient
func (e *DriverError) Retryable() bool { return true }

// IsDenied reports whether err is a denial with the given reason
func IsDenied(err error, reason protocol.Reason) bool {
	var d *DeniedError
	return errors.As(err, &d) && d.Reason == reason
}
