// Package output handles formatting output in different formats.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Tones returned by values implementing Toned.
const (
	ToneSuccess = "success"
	ToneWarning = "warning"
	ToneError   = "error"
)

// Toned values choose the color of their text rendering.
type Toned interface {
	Tone() string
}

// Writer handles output in the specified format.
type Writer struct {
	format Format
	w      io.Writer
	styles map[string]lipgloss.Style
}

// NewWriter creates a new output writer. Text colors are only emitted when
// w is a terminal.
func NewWriter(w io.Writer, format Format) *Writer {
	r := lipgloss.NewRenderer(w)
	return &Writer{
		format: format,
		w:      w,
		styles: map[string]lipgloss.Style{
			ToneSuccess: r.NewStyle().Foreground(lipgloss.Color("2")),
			ToneWarning: r.NewStyle().Foreground(lipgloss.Color("3")),
			ToneError:   r.NewStyle().Foreground(lipgloss.Color("1")),
		},
	}
}

// Write outputs the given value in the configured format.
func (w *Writer) Write(v interface{}) error {
	switch w.format {
	case FormatJSON:
		enc := json.NewEncoder(w.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := fmt.Fprintln(w.w, w.text(v))
		return err
	}
}

func (w *Writer) text(v interface{}) string {
	var s string
	if str, ok := v.(fmt.Stringer); ok {
		s = str.String()
	} else {
		s = fmt.Sprintf("%+v", v)
	}

	if t, ok := v.(Toned); ok {
		if style, ok := w.styles[t.Tone()]; ok {
			return style.Render(s)
		}
	}
	return s
}

// ParseFormat parses a format string into a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format: %s", s)
	}
}
