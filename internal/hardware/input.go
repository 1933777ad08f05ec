package hardware

import (
	"bufio"
	"io"
	"math/bits"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

const (
	inputPropDirect = 0x01
	absMTPositionX  = 0x35
)

// InputDevice is one entry of the kernel input device list. ID is the
// number of its evdev node, so /dev/input/event5 has ID 5.
type InputDevice struct {
	ID       protocol.DeviceID
	Name     string
	Handlers []string
	Touch    bool
}

// Node returns the evdev path of the device
func (d InputDevice) Node() string {
	return "/dev/input/event" + strconv.FormatUint(uint64(d.ID), 10)
}

// ParseInputDevices parses the blank-line separated blocks of
// /proc/bus/input/devices. Devices without an evdev handler are skipped.
func ParseInputDevices(r io.Reader) ([]InputDevice, error) {
	var (
		out     []InputDevice
		cur     InputDevice
		props   []uint64
		abs     []uint64
		hasNode bool
	)

	flush := func() {
		if hasNode {
			cur.Touch = isTouch(cur.Name, props, abs)
			out = append(out, cur)
		}
		cur, props, abs, hasNode = InputDevice{}, nil, nil, false
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			flush()
			continue
		}
		if len(line) < 3 || line[1] != ':' {
			continue
		}
		value := strings.TrimSpace(line[2:])

		switch line[0] {
		case 'N':
			cur.Name = strings.Trim(strings.TrimPrefix(value, "Name="), `"`)
		case 'H':
			cur.Handlers = strings.Fields(strings.TrimPrefix(value, "Handlers="))
			for _, h := range cur.Handlers {
				if n, ok := strings.CutPrefix(h, "event"); ok {
					if id, err := strconv.ParseUint(n, 10, 32); err == nil {
						cur.ID = protocol.DeviceID(id)
						hasNode = true
					}
				}
			}
		case 'B':
			key, bitmap, ok := strings.Cut(value, "=")
			if !ok {
				continue
			}
			switch key {
			case "PROP":
				props = parseBitmap(bitmap)
			case "ABS":
				abs = parseBitmap(bitmap)
			}
		}
	}
	flush()

	return out, scanner.Err()
}

// parseBitmap decodes a kernel bitmap printed as space separated hex
// words, most significant word first
func parseBitmap(s string) []uint64 {
	fields := strings.Fields(s)
	words := make([]uint64, len(fields))
	for i, f := range fields {
		w, err := strconv.ParseUint(f, 16, 64)
		if err != nil {
			return nil
		}
		words[len(fields)-1-i] = w
	}
	return words
}

func testBit(words []uint64, bit uint) bool {
	i := bit / bits.UintSize
	if int(i) >= len(words) {
		return false
	}
	return words[i]&(1<<(bit%bits.UintSize)) != 0
}

func isTouch(name string, props, abs []uint64) bool {
	if testBit(props, inputPropDirect) && testBit(abs, absMTPositionX) {
		return true
	}
	return strings.Contains(strings.ToLower(name), "touchscreen")
}
