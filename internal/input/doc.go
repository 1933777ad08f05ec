// Package input reads evdev devices on the compositor's input goroutine.
//
// Each device is pumped on its own goroutine and decoded events are
// forwarded to the main goroutine in device order. Devices that appear or
// vanish are reported as DeviceStatus values; the worker never touches the
// desktop or asks the broker for anything. The Matcher turns decoded key
// events into named key bindings.
package input
