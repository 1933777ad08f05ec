package input

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

// Source is a stream of events from one device
type Source interface {
	Device() protocol.DeviceID
	Next() (Event, error)
	Close() error
}

// Opener opens the source for a device
type Opener func(protocol.DeviceID) (Source, error)

// EvdevSource reads /dev/input/event<N>
type EvdevSource struct {
	device protocol.DeviceID
	f      *os.File
}

// OpenEvdev opens the event node for device under dir, normally /dev/input
func OpenEvdev(dir string, device protocol.DeviceID) (*EvdevSource, error) {
	path := filepath.Join(dir, fmt.Sprintf("event%d", device))
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input device %d: %w", device, err)
	}
	return &EvdevSource{device: device, f: f}, nil
}

// EvdevOpener returns an Opener for event nodes under dir
func EvdevOpener(dir string) Opener {
	return func(device protocol.DeviceID) (Source, error) {
		return OpenEvdev(dir, device)
	}
}

// Device returns the device id
func (s *EvdevSource) Device() protocol.DeviceID {
	return s.device
}

// Next blocks for the next event
func (s *EvdevSource) Next() (Event, error) {
	return Read(s.f)
}

// Close releases the device node and unblocks Next
func (s *EvdevSource) Close() error {
	return s.f.Close()
}
