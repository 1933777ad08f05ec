package protocol

// RequestKind names a Request variant in logs, metrics and audit records
type RequestKind string

const (
	KindRequestGPU           RequestKind = "request_gpu"
	KindRequestInputDevice   RequestKind = "request_input_device"
	KindCreateSurface        RequestKind = "create_surface"
	KindDestroySurface       RequestKind = "destroy_surface"
	KindSetDisplayMode       RequestKind = "set_display_mode"
	KindQueryDeviceType      RequestKind = "query_device_type"
	KindRegisterCompositor   RequestKind = "register_compositor"
	KindUnregisterCompositor RequestKind = "unregister_compositor"
	KindHasCapability        RequestKind = "has_capability"
)

// Request is one broker operation
type Request interface {
	Kind() RequestKind
	isRequest()
}

// RequestGPU asks for a GPU rendering budget for PID
type RequestGPU struct {
	PID    PID
	Limits GPULimits
}

// RequestInputDevice asks for access to an input device for PID
type RequestInputDevice struct {
	PID       PID
	Device    DeviceID
	Exclusive bool
}

// CreateSurface allocates a surface owned by PID
type CreateSurface struct {
	PID    PID
	Config SurfaceConfig
}

// DestroySurface releases a surface owned by PID
type DestroySurface struct {
	PID     PID
	Surface SurfaceID
}

// SetDisplayMode changes the mode of a connector
type SetDisplayMode struct {
	Connector ConnectorID
	Mode      DisplayMode
}

// QueryDeviceType asks whether the machine is a mobile form factor
type QueryDeviceType struct{}

// RegisterCompositor claims the compositor role for PID
type RegisterCompositor struct {
	PID PID
}

// UnregisterCompositor releases the compositor role held by PID
type UnregisterCompositor struct {
	PID PID
}

// HasCapability asks whether PID holds a capability
type HasCapability struct {
	PID        PID
	Capability Capability
}

func (RequestGPU) Kind() RequestKind           { return KindRequestGPU }
func (RequestInputDevice) Kind() RequestKind   { return KindRequestInputDevice }
func (CreateSurface) Kind() RequestKind        { return KindCreateSurface }
func (DestroySurface) Kind() RequestKind       { return KindDestroySurface }
func (SetDisplayMode) Kind() RequestKind       { return KindSetDisplayMode }
func (QueryDeviceType) Kind() RequestKind      { return KindQueryDeviceType }
func (RegisterCompositor) Kind() RequestKind   { return KindRegisterCompositor }
func (UnregisterCompositor) Kind() RequestKind { return KindUnregisterCompositor }
func (HasCapability) Kind() RequestKind        { return KindHasCapability }

func (RequestGPU) isRequest()           {}
func (RequestInputDevice) isRequest()   {}
func (CreateSurface) isRequest()        {}
func (DestroySurface) isRequest()       {}
func (SetDisplayMode) isRequest()       {}
func (QueryDeviceType) isRequest()      {}
func (RegisterCompositor) isRequest()   {}
func (UnregisterCompositor) isRequest() {}
func (HasCapability) isRequest()        {}

// Subject returns the process a request acts on. Requests that do not
// name a process return false.
func Subject(req Request) (PID, bool) {
	switch r := req.(type) {
	case RequestGPU:
		return r.PID, true
	case RequestInputDevice:
		return r.PID, true
	case CreateSurface:
		return r.PID, true
	case DestroySurface:
		return r.PID, true
	case RegisterCompositor:
		return r.PID, true
	case UnregisterCompositor:
		return r.PID, true
	case HasCapability:
		return r.PID, true
	default:
		return 0, false
	}
}
