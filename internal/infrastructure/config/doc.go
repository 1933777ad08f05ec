// Package config provides 12-factor configuration for the GUI stack.
//
// All settings come from environment variables with safe defaults:
//   - Limits: GPU memory ceilings and grant defaults (broker)
//   - Broker: socket path, rate limiting, reconcile and driver breaker settings
//   - Compositor: workspaces, output geometry, IPC timeout, input devices
//   - Status: read-only status API address
//   - Logging: level and development mode
//
// The compositor's workspace names and key bindings come from an optional
// YAML layout file (COMPOSITOR_LAYOUT_FILE).
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	layout, err := config.LoadLayout(cfg.Compositor.LayoutFile, cfg.Compositor.Workspaces)
package config
