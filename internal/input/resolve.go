package input

import (
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

// ResolveDevices turns device entries into device ids. An entry is a
// number, an absolute path or glob, or a glob relative to dir such as
// "event*" or "by-id/*-event-kbd". Symlinks are followed to their event
// node; matches that are not event nodes are skipped. The result is sorted
// and unique.
func ResolveDevices(dir string, entries []string) ([]protocol.DeviceID, error) {
	var out []protocol.DeviceID
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if n, err := strconv.ParseUint(entry, 10, 32); err == nil {
			out = append(out, protocol.DeviceID(n))
			continue
		}

		pattern := entry
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(dir, entry)
		}
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("input device pattern %q: %w", entry, err)
		}
		for _, m := range matches {
			if id, ok := eventNode(m); ok {
				out = append(out, id)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// eventNode returns N for a path that resolves to event<N>
func eventNode(path string) (protocol.DeviceID, bool) {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return 0, false
	}
	n, ok := strings.CutPrefix(filepath.Base(target), "event")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(n, 10, 32)
	if err != nil {
		return 0, false
	}
	return protocol.DeviceID(id), true
}
