// Package render formats command results for the jac CLI.
//
// Format selection:
//   - If stdout is a TTY, default to table
//   - Otherwise default to json
//   - --format always overrides the default
//
// --no-color disables styling. Styling only ever applies to table output
// and to notices; json and yaml stay machine-readable.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string. An empty string yields "" so the
// caller can pick a default.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	case "yaml":
		return FormatYAML, nil
	case "":
		return "", nil
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer writes command results in one format.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
	style   *lipgloss.Renderer
}

// NewRenderer creates a renderer from the --format and --no-color flags.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}
	if format == "" {
		if IsTTY(os.Stdout) {
			format = FormatTable
		} else {
			format = FormatJSON
		}
	}
	return NewRendererWithWriter(format, c.Bool("no-color"), c.App.Writer), nil
}

// NewRendererWithWriter creates a renderer with a custom writer.
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	if out == nil {
		out = os.Stdout
	}
	return &Renderer{
		format:  format,
		noColor: noColor,
		out:     out,
		style:   lipgloss.NewRenderer(out),
	}
}

// Format returns the selected format.
func (r *Renderer) Format() Format {
	return r.format
}

// Render outputs data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable:
		return r.renderTable(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// Styled returns text in the style of state, or text unchanged when
// color is off.
func (r *Renderer) Styled(state, text string) string {
	if r.noColor {
		return text
	}
	return stateStyle(r.style, state).Render(text)
}

// Notice writes a one-line human message to w. Notices are for
// mutating commands that have no structured result.
func (r *Renderer) Notice(w io.Writer, state, msg string) {
	_, _ = fmt.Fprintln(w, r.Styled(state, msg))
}

func (r *Renderer) renderTable(data any) error {
	var buf bytes.Buffer
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Slice {
		if v.Len() == 0 {
			_, err := fmt.Fprintln(r.out, "(no results)")
			return err
		}
		writeSliceTable(&buf, v)
		return r.emit(buf.String(), true)
	}
	writeStructTable(&buf, v)
	return r.emit(buf.String(), false)
}

// emit writes a rendered table, styling its header line. Styling happens
// after alignment so escape codes never skew column widths.
func (r *Renderer) emit(table string, header bool) error {
	if header && !r.noColor {
		first, rest, _ := strings.Cut(table, "\n")
		table = headerStyle(r.style).Render(first) + "\n" + rest
	}
	_, err := io.WriteString(r.out, table)
	return err
}

func writeSliceTable(buf *bytes.Buffer, v reflect.Value) {
	w := tabwriter.NewWriter(buf, 0, 0, 2, ' ', 0)
	headers := headersOf(v.Index(0))
	_, _ = fmt.Fprintln(w, strings.ToUpper(strings.Join(headers, "\t")))
	for i := range v.Len() {
		_, _ = fmt.Fprintln(w, strings.Join(rowOf(v.Index(i), headers), "\t"))
	}
	_ = w.Flush()
}

func writeStructTable(buf *bytes.Buffer, v reflect.Value) {
	w := tabwriter.NewWriter(buf, 0, 0, 2, ' ', 0)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := range v.NumField() {
			if !t.Field(i).IsExported() {
				continue
			}
			_, _ = fmt.Fprintf(w, "%s:\t%s\n", fieldName(t.Field(i)), formatValue(v.Field(i)))
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			_, _ = fmt.Fprintf(w, "%v:\t%s\n", iter.Key().Interface(), formatValue(iter.Value()))
		}
	default:
		if v.IsValid() {
			_, _ = fmt.Fprintf(w, "%v\n", v.Interface())
		}
	}
	_ = w.Flush()
}

func headersOf(v reflect.Value) []string {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return []string{"value"}
	}
	var headers []string
	t := v.Type()
	for i := range t.NumField() {
		if t.Field(i).IsExported() {
			headers = append(headers, fieldName(t.Field(i)))
		}
	}
	return headers
}

func rowOf(v reflect.Value, headers []string) []string {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return []string{formatValue(v)}
	}
	values := make([]string, 0, len(headers))
	t := v.Type()
	for i := range v.NumField() {
		if t.Field(i).IsExported() {
			values = append(values, formatValue(v.Field(i)))
		}
	}
	return values
}

// fieldName prefers the json tag name.
func fieldName(f reflect.StructField) string {
	if tag := f.Tag.Get("json"); tag != "" {
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return strings.ToLower(f.Name)
}

func formatValue(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return fmt.Sprintf("%d bytes", v.Len())
		}
		if v.Len() == 0 {
			return "[]"
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		return "{...}"
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// IsTTY reports whether f is a terminal.
func IsTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
