package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/simwire/simwire/internal/errors"
)

func TestErrorStyle(t *testing.T) {
	tests := []struct {
		name                      string
		jsonLogs, quiet, terminal bool
		want                      errors.Style
	}{
		{"terminal", false, false, true, errors.StyleTerminal},
		{"quiet", false, true, true, errors.StyleLine},
		{"piped", false, false, false, errors.StyleLine},
		{"json logs", true, false, true, errors.StyleJSON},
		{"json logs wins over quiet", true, true, false, errors.StyleJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorStyle(tt.jsonLogs, tt.quiet, tt.terminal); got != tt.want {
				t.Errorf("errorStyle() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJSONLogsStartupError(t *testing.T) {
	t.Cleanup(func() { errorOutput.jsonLogs = false })

	dir := t.TempDir()
	path := filepath.Join(dir, "simwire.yaml")
	content := "log:\n  format: json\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cmd := terrainCmd()
	cmd.SetArgs([]string{"import", "--config", path, filepath.Join(dir, "missing.r32")})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.Execute()
	if err == nil {
		t.Fatal("Execute() error = nil, want missing heightmap")
	}

	style := errorStyle(errorOutput.jsonLogs, false, true)
	if style != errors.StyleJSON {
		t.Fatalf("errorStyle() = %v, want json", style)
	}
	var buf bytes.Buffer
	errors.Write(&buf, err, style)

	var got map[string]any
	if jerr := json.Unmarshal(buf.Bytes(), &got); jerr != nil {
		t.Fatalf("output is not JSON: %q", buf.String())
	}
	if got["code"] != errors.CodeHeightmapRead || got["level"] != "ERROR" {
		t.Errorf("output = %v", got)
	}
}

func TestQuietStartupError(t *testing.T) {
	var buf bytes.Buffer
	err := errors.New(errors.CodeHeightmapRead).Wrap(os.ErrNotExist)
	errors.Write(&buf, err, errorStyle(false, true, true))

	out := buf.String()
	if strings.Count(out, "\n") != 1 || strings.Contains(out, "\033[") {
		t.Errorf("quiet output = %q, want one plain line", out)
	}
	if !strings.HasPrefix(out, errors.CodeHeightmapRead+": ") {
		t.Errorf("quiet output = %q", out)
	}
}
