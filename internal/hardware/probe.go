package hardware

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/procfs/sysfs"

	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

// SmallScreenPx is the dimension below which a screen counts as mobile
const SmallScreenPx = 768

// Options selects the filesystem roots and an optional mobile override
type Options struct {
	ProcRoot       string
	SysRoot        string
	MobileOverride *bool
}

// Info is the result of one probe
type Info struct {
	Touch      bool
	Battery    bool
	Screen     *Size
	Inputs     []InputDevice
	Connectors []Connector
	Mobile     bool
}

// SmallScreen reports whether the primary screen is below SmallScreenPx in
// either dimension
func (i Info) SmallScreen() bool {
	return i.Screen != nil && (i.Screen.Width < SmallScreenPx || i.Screen.Height < SmallScreenPx)
}

// HasInput reports whether the inventory lists device id
func (i Info) HasInput(id protocol.DeviceID) bool {
	for _, d := range i.Inputs {
		if d.ID == id {
			return true
		}
	}
	return false
}

// Probe inspects the machine. It never fails: unreadable sources leave
// their fields zero, so a headless VM probes as a desktop with no inputs.
func Probe(opts Options) Info {
	if opts.ProcRoot == "" {
		opts.ProcRoot = "/proc"
	}
	if opts.SysRoot == "" {
		opts.SysRoot = "/sys"
	}

	var info Info

	if f, err := os.Open(filepath.Join(opts.ProcRoot, "bus", "input", "devices")); err == nil {
		info.Inputs, _ = ParseInputDevices(f)
		f.Close()
	}
	for _, d := range info.Inputs {
		if d.Touch {
			info.Touch = true
			break
		}
	}

	info.Battery = hasBattery(opts.SysRoot)

	info.Connectors, _ = ReadConnectors(opts.SysRoot)
	for _, c := range info.Connectors {
		if !c.Connected {
			continue
		}
		if s, ok := c.Preferred(); ok {
			info.Screen = &s
			break
		}
	}

	if opts.MobileOverride != nil {
		info.Mobile = *opts.MobileOverride
	} else {
		info.Mobile = info.SmallScreen() || (info.Touch && info.Battery)
	}
	return info
}

func hasBattery(sysRoot string) bool {
	fs, err := sysfs.NewFS(sysRoot)
	if err != nil {
		return false
	}
	supplies, err := fs.PowerSupplyClass()
	if err != nil {
		return false
	}
	for _, ps := range supplies {
		if strings.EqualFold(ps.Type, "Battery") {
			return true
		}
	}
	return false
}
