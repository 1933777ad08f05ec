package hardware

import (
	"errors"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

var (
	ErrConnectorNotFound = errors.New("connector not found")
	ErrDisconnected      = errors.New("connector is disconnected")
	ErrModeUnsupported   = errors.New("mode not supported by connector")
)

// SysfsDisplay validates mode changes against the connector list in sysfs
// and remembers the active mode per connector. The connector list is
// re-read on every call so hotplug is seen.
type SysfsDisplay struct {
	sysRoot string

	mu     sync.Mutex
	active map[protocol.ConnectorID]protocol.DisplayMode
}

// NewSysfsDisplay creates a display driver reading <sysRoot>/class/drm
func NewSysfsDisplay(sysRoot string) *SysfsDisplay {
	return &SysfsDisplay{
		sysRoot: sysRoot,
		active:  make(map[protocol.ConnectorID]protocol.DisplayMode),
	}
}

// SetMode applies mode to connector
func (d *SysfsDisplay) SetMode(connector protocol.ConnectorID, mode protocol.DisplayMode) error {
	connectors, err := ReadConnectors(d.sysRoot)
	if err != nil {
		return fmt.Errorf("read drm connectors: %w", err)
	}

	for _, c := range connectors {
		if c.ID != connector {
			continue
		}
		if !c.Connected {
			return fmt.Errorf("%s: %w", c.Name, ErrDisconnected)
		}
		for _, m := range c.Modes {
			if m.Width == mode.Width && m.Height == mode.Height {
				d.mu.Lock()
				d.active[connector] = mode
				d.mu.Unlock()
				return nil
			}
		}
		return fmt.Errorf("%s %s: %w", c.Name, mode, ErrModeUnsupported)
	}
	return fmt.Errorf("connector %d: %w", connector, ErrConnectorNotFound)
}

// Active returns the last mode applied to connector
func (d *SysfsDisplay) Active(connector protocol.ConnectorID) (protocol.DisplayMode, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.active[connector]
	return m, ok
}
