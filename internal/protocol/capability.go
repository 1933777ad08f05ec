package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// CapabilityKind discriminates Capability variants
type CapabilityKind uint8

const (
	KindGPURendering CapabilityKind = iota + 1
	KindInputDevice
	KindDisplayControl
	KindSurfaceManagement
	KindCompositor
)

// String returns the kind name used in logs and metrics
func (k CapabilityKind) String() string {
	switch k {
	case KindGPURendering:
		return "gpu_rendering"
	case KindInputDevice:
		return "input_device"
	case KindDisplayControl:
		return "display_control"
	case KindSurfaceManagement:
		return "surface_management"
	case KindCompositor:
		return "compositor"
	default:
		return "unknown"
	}
}

// ParseCapabilityKind maps a kind name back to its CapabilityKind
func ParseCapabilityKind(name string) (CapabilityKind, bool) {
	for k := KindGPURendering; k <= KindCompositor; k++ {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}

// ParseCapability parses a capability query written as
// kind[:arg[:arg]], for example "compositor", "input_device:3:exclusive"
// or "display_control:1". GPU queries match any grant, so their budget is
// optional: "gpu_rendering:512:4".
func ParseCapability(s string) (Capability, error) {
	parts := strings.Split(s, ":")
	kind, ok := ParseCapabilityKind(parts[0])
	if !ok {
		return nil, fmt.Errorf("unknown capability kind %q", parts[0])
	}
	args := parts[1:]

	num := func(i int) (uint32, error) {
		n, err := strconv.ParseUint(args[i], 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%s: bad argument %q", kind, args[i])
		}
		return uint32(n), nil
	}
	arity := func(lo, hi int) error {
		if len(args) < lo || len(args) > hi {
			return fmt.Errorf("%s takes %d to %d arguments, got %d", kind, lo, hi, len(args))
		}
		return nil
	}

	switch kind {
	case KindGPURendering:
		if err := arity(0, 2); err != nil {
			return nil, err
		}
		var g GPURendering
		var err error
		if len(args) > 0 {
			if g.MemoryMB, err = num(0); err != nil {
				return nil, err
			}
		}
		if len(args) > 1 {
			if g.MaxSurfaces, err = num(1); err != nil {
				return nil, err
			}
		}
		return g, nil
	case KindInputDevice:
		if err := arity(1, 2); err != nil {
			return nil, err
		}
		dev, err := num(0)
		if err != nil {
			return nil, err
		}
		in := InputDevice{Device: DeviceID(dev)}
		if len(args) == 2 {
			if args[1] != "exclusive" {
				return nil, fmt.Errorf("%s: expected \"exclusive\", got %q", kind, args[1])
			}
			in.Exclusive = true
		}
		return in, nil
	case KindDisplayControl:
		if err := arity(1, 1); err != nil {
			return nil, err
		}
		conn, err := num(0)
		if err != nil {
			return nil, err
		}
		return DisplayControl{Connector: ConnectorID(conn)}, nil
	case KindSurfaceManagement:
		if err := arity(0, 0); err != nil {
			return nil, err
		}
		return SurfaceManagement{}, nil
	default:
		if err := arity(0, 0); err != nil {
			return nil, err
		}
		return Compositor{}, nil
	}
}

// Capability is a kernel-issued right. Values are immutable once granted.
type Capability interface {
	Kind() CapabilityKind
	String() string
	isCapability()
}

// GPURendering grants a GPU memory budget and a surface quota
type GPURendering struct {
	MemoryMB    uint32
	MaxSurfaces uint32
}

// InputDevice grants access to one input device
type InputDevice struct {
	Device    DeviceID
	Exclusive bool
}

// DisplayControl grants mode-setting rights on one connector
type DisplayControl struct {
	Connector ConnectorID
}

// SurfaceManagement grants the right to manage other clients' surfaces
type SurfaceManagement struct{}

// Compositor is the singleton "I am the compositor" right
type Compositor struct{}

func (GPURendering) Kind() CapabilityKind      { return KindGPURendering }
func (InputDevice) Kind() CapabilityKind       { return KindInputDevice }
func (DisplayControl) Kind() CapabilityKind    { return KindDisplayControl }
func (SurfaceManagement) Kind() CapabilityKind { return KindSurfaceManagement }
func (Compositor) Kind() CapabilityKind        { return KindCompositor }

func (c GPURendering) String() string {
	return fmt.Sprintf("gpu_rendering(memory=%dMB, surfaces=%d)", c.MemoryMB, c.MaxSurfaces)
}

func (c InputDevice) String() string {
	if c.Exclusive {
		return fmt.Sprintf("input_device(%d, exclusive)", c.Device)
	}
	return fmt.Sprintf("input_device(%d)", c.Device)
}

func (c DisplayControl) String() string {
	return fmt.Sprintf("display_control(%d)", c.Connector)
}

func (SurfaceManagement) String() string { return "surface_management" }
func (Compositor) String() string        { return "compositor" }

func (GPURendering) isCapability()      {}
func (InputDevice) isCapability()       {}
func (DisplayControl) isCapability()    {}
func (SurfaceManagement) isCapability() {}
func (Compositor) isCapability()        {}
