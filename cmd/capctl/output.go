package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
)

// print writes v in the selected format. table renders through fn; a nil
// fn falls back to yaml.
func (a *app) print(v any, table func(w *tabwriter.Writer)) error {
	format := a.output
	if format == "" {
		format = "table"
	}
	if format == "table" && table == nil {
		format = "yaml"
	}

	switch format {
	case "table":
		w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
		table(w)
		return w.Flush()
	case "json":
		data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err = fmt.Fprintln(a.stdout, string(data))
		return err
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		_, err = a.stdout.Write(data)
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
