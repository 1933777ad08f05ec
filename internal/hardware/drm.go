package hardware

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

// Size is a screen size in pixels
type Size struct {
	Width  uint32
	Height uint32
}

// Connector is one DRM connector such as card0-eDP-1
type Connector struct {
	ID        protocol.ConnectorID
	Name      string
	Connected bool
	Modes     []Size
}

// Preferred returns the first listed mode, which the kernel reports as the
// preferred one
func (c Connector) Preferred() (Size, bool) {
	if len(c.Modes) == 0 {
		return Size{}, false
	}
	return c.Modes[0], true
}

// ReadConnectors lists the connectors under <sysRoot>/class/drm. IDs come
// from connector_id when the kernel exposes it, otherwise from the sorted
// position starting at 1.
func ReadConnectors(sysRoot string) ([]Connector, error) {
	base := filepath.Join(sysRoot, "class", "drm")
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if isConnectorName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]Connector, 0, len(names))
	for i, name := range names {
		dir := filepath.Join(base, name)
		c := Connector{
			ID:        protocol.ConnectorID(i + 1),
			Name:      name,
			Connected: readString(filepath.Join(dir, "status")) == "connected",
			Modes:     readModes(filepath.Join(dir, "modes")),
		}
		if id, err := strconv.ParseUint(readString(filepath.Join(dir, "connector_id")), 10, 32); err == nil {
			c.ID = protocol.ConnectorID(id)
		}
		out = append(out, c)
	}
	return out, nil
}

// isConnectorName accepts card<N>-<connector> names, not cards or render nodes
func isConnectorName(name string) bool {
	card, rest, ok := strings.Cut(name, "-")
	if !ok || rest == "" || !strings.HasPrefix(card, "card") || len(card) == 4 {
		return false
	}
	_, err := strconv.Atoi(card[4:])
	return err == nil
}

func readModes(path string) []Size {
	var modes []Size
	for _, line := range strings.Split(readString(path), "\n") {
		if s, ok := parseMode(strings.TrimSpace(line)); ok {
			modes = append(modes, s)
		}
	}
	return modes
}

// parseMode accepts WxH with an optional trailing letter such as 1920x1080i
func parseMode(s string) (Size, bool) {
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return Size{}, false
	}
	h = strings.TrimRight(h, "abcdefghijklmnopqrstuvwxyz")
	width, err := strconv.ParseUint(w, 10, 32)
	if err != nil {
		return Size{}, false
	}
	height, err := strconv.ParseUint(h, 10, 32)
	if err != nil {
		return Size{}, false
	}
	return Size{Width: uint32(width), Height: uint32(height)}, true
}

func readString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}
