// Package hardware answers static questions about the machine: is it a
// mobile form factor, which input devices exist, which display connectors
// exist and what modes they accept.
//
// Everything is read from procfs and sysfs roots given by the caller, so
// tests point the probe at a synthetic tree.
package hardware
