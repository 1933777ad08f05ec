package input

import (
	"fmt"
	"sort"
	"strings"
)

// Modifiers is a set of held modifier keys
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModCtrl
	ModAlt
	ModSuper
)

// String renders the set in binding syntax
func (m Modifiers) String() string {
	var parts []string
	for _, mod := range []struct {
		bit  Modifiers
		name string
	}{{ModSuper, "super"}, {ModCtrl, "ctrl"}, {ModAlt, "alt"}, {ModShift, "shift"}} {
		if m&mod.bit != 0 {
			parts = append(parts, mod.name)
		}
	}
	return strings.Join(parts, "+")
}

var modifierNames = map[string]Modifiers{
	"shift": ModShift,
	"ctrl":  ModCtrl,
	"alt":   ModAlt,
	"super": ModSuper,
	"mod4":  ModSuper,
	"mod1":  ModAlt,
}

// modifierKeys maps evdev key codes to the modifier they hold
var modifierKeys = map[uint16]Modifiers{
	42:  ModShift, // KEY_LEFTSHIFT
	54:  ModShift, // KEY_RIGHTSHIFT
	29:  ModCtrl,  // KEY_LEFTCTRL
	97:  ModCtrl,  // KEY_RIGHTCTRL
	56:  ModAlt,   // KEY_LEFTALT
	100: ModAlt,   // KEY_RIGHTALT
	125: ModSuper, // KEY_LEFTMETA
	126: ModSuper, // KEY_RIGHTMETA
}

// keyCodes maps binding key names to evdev key codes
var keyCodes = map[string]uint16{
	"escape": 1, "tab": 15, "enter": 28, "space": 57, "backspace": 14,
	"up": 103, "left": 105, "right": 106, "down": 108,
	"home": 102, "end": 107, "pageup": 104, "pagedown": 109,
	"1": 2, "2": 3, "3": 4, "4": 5, "5": 6, "6": 7, "7": 8, "8": 9, "9": 10, "0": 11,
	"q": 16, "w": 17, "e": 18, "r": 19, "t": 20, "y": 21, "u": 22, "i": 23, "o": 24, "p": 25,
	"a": 30, "s": 31, "d": 32, "f": 33, "g": 34, "h": 35, "j": 36, "k": 37, "l": 38,
	"z": 44, "x": 45, "c": 46, "v": 47, "b": 48, "n": 49, "m": 50,
	"f1": 59, "f2": 60, "f3": 61, "f4": 62, "f5": 63, "f6": 64,
	"f7": 65, "f8": 66, "f9": 67, "f10": 68, "f11": 87, "f12": 88,
}

// Binding is a key pressed with an exact modifier set
type Binding struct {
	Mods Modifiers
	Key  uint16
}

// ParseBinding parses "super+shift+tab" style bindings. Names are case
// insensitive; "-" is accepted as a separator too.
func ParseBinding(s string) (Binding, error) {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return r == '+' || r == '-' })
	if len(fields) == 0 {
		return Binding{}, fmt.Errorf("empty key binding")
	}

	var b Binding
	for i, f := range fields {
		if mod, ok := modifierNames[f]; ok && i < len(fields)-1 {
			b.Mods |= mod
			continue
		}
		if i != len(fields)-1 {
			return Binding{}, fmt.Errorf("key binding %q: %q is not a modifier", s, f)
		}
		code, ok := keyCodes[f]
		if !ok {
			return Binding{}, fmt.Errorf("key binding %q: unknown key %q", s, f)
		}
		b.Key = code
	}
	return b, nil
}

// Matcher turns key events into bound actions. It tracks held modifiers
// across all devices fed to it.
type Matcher struct {
	bindings map[Binding]string
	held     map[uint16]bool
}

// NewMatcher builds a matcher from action to binding strings
func NewMatcher(bindings map[string]string) (*Matcher, error) {
	m := &Matcher{
		bindings: make(map[Binding]string, len(bindings)),
		held:     make(map[uint16]bool),
	}

	actions := make([]string, 0, len(bindings))
	for action := range bindings {
		actions = append(actions, action)
	}
	sort.Strings(actions)

	for _, action := range actions {
		b, err := ParseBinding(bindings[action])
		if err != nil {
			return nil, fmt.Errorf("action %s: %w", action, err)
		}
		if prev, dup := m.bindings[b]; dup {
			return nil, fmt.Errorf("actions %s and %s share binding %q", prev, action, bindings[action])
		}
		m.bindings[b] = action
	}
	return m, nil
}

// Mods returns the modifiers currently held
func (m *Matcher) Mods() Modifiers {
	var mods Modifiers
	for code, down := range m.held {
		if down {
			mods |= modifierKeys[code]
		}
	}
	return mods
}

// Feed consumes one event and returns the action it triggers, if any.
// Only the initial press triggers; autorepeat does not.
func (m *Matcher) Feed(e Event) (string, bool) {
	if e.Type != EvKey {
		return "", false
	}
	if _, ok := modifierKeys[e.Code]; ok {
		m.held[e.Code] = e.Value != KeyReleased
		return "", false
	}
	if e.Value != KeyPressed {
		return "", false
	}
	action, ok := m.bindings[Binding{Mods: m.Mods(), Key: e.Code}]
	return action, ok
}

// Reset forgets held modifiers, for when a device is lost mid-chord
func (m *Matcher) Reset() {
	clear(m.held)
}
