package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Output formats accepted by --output.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

type formatter struct {
	w      io.Writer
	format string
}

func validFormat(f string) bool {
	return f == formatText || f == formatJSON || f == formatYAML
}

func (f *formatter) structured() bool { return f.format != formatText }

// render writes v as JSON or YAML.
func (f *formatter) render(v any) error {
	switch f.format {
	case formatJSON:
		enc := json.NewEncoder(f.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(f.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("render: format %q is not structured", f.format)
	}
}

func (f *formatter) println(a ...any) { fmt.Fprintln(f.w, a...) }

func (f *formatter) printf(format string, a ...any) { fmt.Fprintf(f.w, format, a...) }

// check prints one doctor row.
func (f *formatter) check(label string, ok bool, detail string) {
	mark, status := "✓", "ok"
	if !ok {
		mark, status = "✗", "missing"
	}
	fmt.Fprintf(f.w, "  %s %-30s %-7s  %s\n", mark, label, status, detail)
}
