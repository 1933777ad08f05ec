// Command compositor runs the desktop compositor against a running broker.
//
// It registers as the compositor, claims its GPU grant and input devices,
// and serves the read-only status API until SIGINT or SIGTERM. Layout and
// key bindings come from COMPOSITOR_LAYOUT_FILE (YAML, or TOML for .toml
// files); input devices are given as ids or globs under
// COMPOSITOR_INPUT_DIR:
//
//	COMPOSITOR_INPUT_DEVICES=by-id/*-event-kbd,by-id/*-event-mouse
//	COMPOSITOR_LAYOUT_FILE=/etc/gui/layout.yaml
//	STATUS_ADDR=127.0.0.1:8790
package main
