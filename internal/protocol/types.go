package protocol

import "fmt"

// PID identifies a process as seen by the kernel
type PID uint32

// KernelPID is the caller identity of in-kernel requests. It is never
// assigned to a userspace process.
const KernelPID PID = 0

// DeviceID is an opaque input device handle
type DeviceID uint32

// ConnectorID is an opaque display connector handle
type ConnectorID uint32

// SurfaceID is an opaque surface handle allocated by the broker. Zero is
// never allocated.
type SurfaceID uint64

// GPULimits describes a GPU rendering budget request
type GPULimits struct {
	MemoryMB    uint32
	MaxSurfaces uint32
}

// DisplayMode describes a display mode for a connector
type DisplayMode struct {
	Width       uint32
	Height      uint32
	RefreshRate uint32
}

// String returns the mode in WxH@R form
func (m DisplayMode) String() string {
	return fmt.Sprintf("%dx%d@%d", m.Width, m.Height, m.RefreshRate)
}

// Valid reports whether every dimension is non-zero
func (m DisplayMode) Valid() bool {
	return m.Width > 0 && m.Height > 0 && m.RefreshRate > 0
}

// SurfaceConfig is the initial placement of a new surface
type SurfaceConfig struct {
	X      int32
	Y      int32
	Width  uint32
	Height uint32
}

// Valid reports whether the surface has a non-empty area
func (c SurfaceConfig) Valid() bool {
	return c.Width > 0 && c.Height > 0
}
