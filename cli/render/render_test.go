package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cubicap/Jaculus-tools-sub000/types"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{"json lowercase", "json", FormatJSON, false},
		{"json uppercase", "JSON", FormatJSON, false},
		{"table", "table", FormatTable, false},
		{"yaml", "yaml", FormatYAML, false},
		{"empty", "", "", false},
		{"invalid", "xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFormat_InvalidErrorMessage(t *testing.T) {
	_, err := ParseFormat("xml")
	if err == nil || !strings.Contains(err.Error(), "json, table, or yaml") {
		t.Errorf("error should mention valid formats, got: %v", err)
	}
}

func TestRenderer_Formats(t *testing.T) {
	entry := types.DirEntry{Name: "index.js", Size: 120}

	tests := []struct {
		format Format
		want   []string
	}{
		{FormatJSON, []string{`"name": "index.js"`, `"is_dir": false`, `"size": 120`}},
		{FormatYAML, []string{"name: index.js", "is_dir: false", "size: 120"}},
		{FormatTable, []string{"name:", "index.js", "size:", "120"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewRendererWithWriter(tt.format, true, &buf).Render(entry); err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output missing %q:\n%s", w, buf.String())
				}
			}
		})
	}
}

func TestRenderer_Table_Slice(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	data := []types.DirEntry{
		{Name: "lib", IsDir: true},
		{Name: "main.js", Size: 2048},
	}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if fields := strings.Fields(lines[0]); strings.Join(fields, " ") != "NAME IS_DIR SIZE" {
		t.Errorf("header = %q", lines[0])
	}
	if fields := strings.Fields(lines[2]); strings.Join(fields, " ") != "main.js false 2048" {
		t.Errorf("row = %q", lines[2])
	}
	if strings.Index(lines[1], "true") != strings.Index(lines[0], "IS_DIR") {
		t.Errorf("columns not aligned:\n%s", buf.String())
	}
}

func TestRenderer_Table_EmptySlice(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRendererWithWriter(FormatTable, false, &buf).Render([]types.Resource{}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "(no results)") {
		t.Errorf("got %q", buf.String())
	}
}

func TestRenderer_Table_ByteSlice(t *testing.T) {
	var buf bytes.Buffer
	data := struct {
		Data []byte `json:"data"`
	}{Data: []byte("abc")}
	if err := NewRendererWithWriter(FormatTable, true, &buf).Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "3 bytes") {
		t.Errorf("got %q", buf.String())
	}
}

func TestRenderer_NoColor(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	if got := r.Styled(StateError, "failed"); got != "failed" {
		t.Errorf("Styled with --no-color = %q", got)
	}
	r.Notice(&buf, StateOK, "done")
	if buf.String() != "done\n" {
		t.Errorf("Notice = %q", buf.String())
	}
}

func TestRenderer_NoColor_DoesNotAffectJSON(t *testing.T) {
	var bufColor, bufNoColor bytes.Buffer
	data := types.Status{Running: true, Text: "main.js"}

	if err := NewRendererWithWriter(FormatJSON, false, &bufColor).Render(data); err != nil {
		t.Fatal(err)
	}
	if err := NewRendererWithWriter(FormatJSON, true, &bufNoColor).Render(data); err != nil {
		t.Fatal(err)
	}
	if bufColor.String() != bufNoColor.String() {
		t.Errorf("--no-color changed JSON output")
	}
}
