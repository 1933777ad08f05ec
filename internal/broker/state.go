package broker

import (
	"github.com/GriffinCanCode/AgentOS/gui/internal/captable"
	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

// Limits are the process-wide resource constants, fixed at startup
type Limits struct {
	MaxTotalGPUMemoryMB   uint32
	MaxProcessGPUMemoryMB uint32
	DefaultGPUMemoryMB    uint32
	DefaultMaxSurfaces    uint32
}

// DeviceInfo is the static hardware picture the broker answers from
type DeviceInfo struct {
	Mobile bool
	// Inputs lists the input devices present. When InventoryKnown is false
	// every device id is accepted.
	Inputs         []protocol.DeviceID
	InventoryKnown bool
}

func (d DeviceInfo) hasInput(id protocol.DeviceID) bool {
	if !d.InventoryKnown {
		return true
	}
	for _, in := range d.Inputs {
		if in == id {
			return true
		}
	}
	return false
}

// State is everything the broker knows. It is created once at boot and
// lives for the life of the system; the broker goroutine is its only user.
type State struct {
	table       *captable.Table
	limits      Limits
	device      DeviceInfo
	nextSurface protocol.SurfaceID
}

// NewState creates fresh broker state
func NewState(limits Limits, device DeviceInfo) *State {
	return &State{
		table: captable.New(captable.Limits{
			MaxTotalGPUMemoryMB:   limits.MaxTotalGPUMemoryMB,
			MaxProcessGPUMemoryMB: limits.MaxProcessGPUMemoryMB,
		}),
		limits:      limits,
		device:      device,
		nextSurface: 1,
	}
}

// Table returns the capability table
func (s *State) Table() *captable.Table {
	return s.table
}

// Limits returns the configured limits
func (s *State) Limits() Limits {
	return s.limits
}

// Device returns the static device information
func (s *State) Device() DeviceInfo {
	return s.device
}

func (s *State) allocSurface() protocol.SurfaceID {
	id := s.nextSurface
	s.nextSurface++
	return id
}
