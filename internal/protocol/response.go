package protocol

import "fmt"

// Reason is the typed explanation of a denial
type Reason uint8

const (
	ReasonUnauthorized Reason = iota + 1
	ReasonResourceLimitExceeded
	ReasonDeviceNotFound
	ReasonInvalidConfig
	ReasonAlreadyHeld
	ReasonOther
)

// String returns the reason name
func (r Reason) String() string {
	switch r {
	case ReasonUnauthorized:
		return "unauthorized"
	case ReasonResourceLimitExceeded:
		return "resource_limit_exceeded"
	case ReasonDeviceNotFound:
		return "device_not_found"
	case ReasonInvalidConfig:
		return "invalid_config"
	case ReasonAlreadyHeld:
		return "already_held"
	case ReasonOther:
		return "other"
	default:
		return "unknown"
	}
}

// ResponseKind names a Response variant
type ResponseKind string

const (
	KindSuccess          ResponseKind = "success"
	KindGranted          ResponseKind = "granted"
	KindDenied           ResponseKind = "denied"
	KindError            ResponseKind = "error"
	KindDeviceType       ResponseKind = "device_type"
	KindCapabilityStatus ResponseKind = "capability_status"
)

// Response is the broker's answer to one Request
type Response interface {
	Kind() ResponseKind
	isResponse()
}

// Success reports a completed operation. Surface is set only in answer to
// CreateSurface.
type Success struct {
	Surface SurfaceID
}

// Granted carries the capability recorded for the subject
type Granted struct {
	Capability Capability
}

// Denied reports a policy refusal. Code is meaningful only for ReasonOther.
type Denied struct {
	Reason Reason
	Code   uint32
}

// Error reports an operational fault, distinct from a policy denial
type Error struct {
	Message string
}

// DeviceType answers QueryDeviceType
type DeviceType struct {
	IsMobile bool
}

// CapabilityStatus answers HasCapability
type CapabilityStatus struct {
	Held bool
}

func (Success) Kind() ResponseKind          { return KindSuccess }
func (Granted) Kind() ResponseKind          { return KindGranted }
func (Denied) Kind() ResponseKind           { return KindDenied }
func (Error) Kind() ResponseKind            { return KindError }
func (DeviceType) Kind() ResponseKind       { return KindDeviceType }
func (CapabilityStatus) Kind() ResponseKind { return KindCapabilityStatus }

func (Success) isResponse()          {}
func (Granted) isResponse()          {}
func (Denied) isResponse()           {}
func (Error) isResponse()            {}
func (DeviceType) isResponse()       {}
func (CapabilityStatus) isResponse() {}

// Deny builds a Denied response
func Deny(reason Reason) Denied {
	return Denied{Reason: reason}
}

// Other builds a Denied response with ReasonOther and a code
func Other(code uint32) Denied {
	return Denied{Reason: ReasonOther, Code: code}
}

// String renders the denial for error messages
func (d Denied) String() string {
	if d.Reason == ReasonOther {
		return fmt.Sprintf("other(%d)", d.Code)
	}
	return d.Reason.String()
}

// Allowed reports whether resp is a legal answer to req. Every request
// variant maps to a fixed subset of response variants.
func Allowed(req Request, resp Response) bool {
	if req == nil || resp == nil {
		return false
	}
	k := resp.Kind()
	switch req.(type) {
	case RequestGPU, RequestInputDevice:
		return k == KindGranted || k == KindDenied
	case CreateSurface:
		return k == KindSuccess || k == KindDenied
	case DestroySurface:
		return k == KindSuccess
	case SetDisplayMode:
		return k == KindSuccess || k == KindDenied || k == KindError
	case QueryDeviceType:
		return k == KindDeviceType
	case RegisterCompositor, UnregisterCompositor:
		return k == KindSuccess || k == KindDenied
	case HasCapability:
		return k == KindCapabilityStatus
	default:
		return false
	}
}
