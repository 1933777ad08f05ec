package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Layout is the compositor's desktop layout file.
//
//	workspaces: [main, web, chat, media]
//	output: {width: 2560, height: 1440}
//	bindings:
//	  cycle_forward: super+tab
//	  cycle_backward: super+shift+tab
//	  next_workspace: super+right
//
// Files ending in .toml are read as TOML with the same keys.
type Layout struct {
	Workspaces []string          `yaml:"workspaces" toml:"workspaces"`
	Output     *Output           `yaml:"output,omitempty" toml:"output,omitempty"`
	Bindings   map[string]string `yaml:"bindings" toml:"bindings"`
}

// Output is an output geometry override.
type Output struct {
	Width  uint32 `yaml:"width" toml:"width"`
	Height uint32 `yaml:"height" toml:"height"`
}

// DefaultBindings are the key bindings used when the layout file names none.
func DefaultBindings() map[string]string {
	return map[string]string{
		"cycle_forward":      "super+tab",
		"cycle_backward":     "super+shift+tab",
		"next_workspace":     "super+right",
		"previous_workspace": "super+left",
		"toggle_fullscreen":  "super+f",
	}
}

// DefaultLayout returns the built-in layout for n workspaces.
func DefaultLayout(n int) *Layout {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%d", i+1)
	}
	return &Layout{Workspaces: names, Bindings: DefaultBindings()}
}

// LoadLayout reads a layout file. An empty path or a missing file yields
// the built-in layout; fewer names than workspaces are padded with numbers.
func LoadLayout(path string, workspaces int) (*Layout, error) {
	def := DefaultLayout(workspaces)
	if path == "" {
		return def, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return def, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}

	var layout Layout
	if filepath.Ext(path) == ".toml" {
		err = toml.Unmarshal(data, &layout)
	} else {
		err = yaml.Unmarshal(data, &layout)
	}
	if err != nil {
		return nil, fmt.Errorf("parse layout %s: %w", path, err)
	}

	if len(layout.Workspaces) > workspaces {
		return nil, fmt.Errorf("layout names %d workspaces, only %d configured", len(layout.Workspaces), workspaces)
	}
	for i := len(layout.Workspaces); i < workspaces; i++ {
		layout.Workspaces = append(layout.Workspaces, def.Workspaces[i])
	}
	if layout.Output != nil && (layout.Output.Width == 0 || layout.Output.Height == 0) {
		return nil, errors.New("layout output geometry must be positive")
	}
	if len(layout.Bindings) == 0 {
		layout.Bindings = def.Bindings
	}
	return &layout, nil
}
