package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "config error",
			code:    CodeConfigInvalid,
			wantMsg: "Invalid configuration value",
			wantCat: CategoryConfig,
		},
		{
			name:    "registry error",
			code:    CodeDuplicateMessageID,
			wantMsg: "Duplicate message id",
			wantCat: CategoryRegistry,
		},
		{
			name:    "startup error",
			code:    CodeUDPBind,
			wantMsg: "Cannot bind UDP socket",
			wantCat: CategoryStartup,
		},
		{
			name:    "unknown error code",
			code:    "E999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryCLI, "file %q not found", "land.r32")
	if err.Message != `file "land.r32" not found` {
		t.Errorf("Message = %q, want %q", err.Message, `file "land.r32" not found`)
	}
	if err.Category != CategoryCLI {
		t.Errorf("Category = %q, want %q", err.Category, CategoryCLI)
	}
}

func TestSimwireError_Error(t *testing.T) {
	err := New(CodeDuplicateMessageID)
	if got, want := err.Error(), "E200: Duplicate message id"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	wrapped := New(CodeUDPBind).Wrap(fs.ErrPermission)
	if got, want := wrapped.Error(), "E300: Cannot bind UDP socket: permission denied"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	plain := &SimwireError{Message: "test error"}
	if plain.Error() != "test error" {
		t.Errorf("Error() = %q, want %q", plain.Error(), "test error")
	}
}

func TestSimwireError_WithLocation(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "simwire.yaml")
	content := `udp:
  address: 0.0.0.0:9000
circuit:
  resend_timeout: 2s
  max_resends: 0
  idle_timeout: 60s
`
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	err := New(CodeConfigInvalid).WithLocation(tmpFile, 5, 0)

	if err.Location == nil {
		t.Fatal("Location is nil")
	}
	if err.Location.Line != 5 {
		t.Errorf("Location.Line = %d, want 5", err.Location.Line)
	}
	if len(err.Context) != 4 {
		t.Errorf("len(Context) = %d, want 4", len(err.Context))
	}
	if !strings.Contains(strings.Join(err.Context, "\n"), "max_resends: 0") {
		t.Errorf("Context = %q, want the offending line", err.Context)
	}
}

func TestSimwireError_Wrap(t *testing.T) {
	inner := stderrors.New("boom")
	err := New(CodeStoreOpen).Wrap(inner)
	if !stderrors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, CodeStoreOpen) != nil {
		t.Error("FromError(nil) should return nil")
	}

	se := New(CodeUDPBind)
	if FromError(se, CodeStoreOpen) != se {
		t.Error("FromError should return an existing SimwireError unchanged")
	}

	got := FromError(fs.ErrNotExist, CodeConfigNotFound)
	if got.Code != CodeConfigNotFound || !stderrors.Is(got, fs.ErrNotExist) {
		t.Errorf("FromError() = %v, want E100 wrapping ErrNotExist", got)
	}
}

func TestLocation_String(t *testing.T) {
	tests := []struct {
		loc  *Location
		want string
	}{
		{nil, ""},
		{&Location{File: "simwire.yaml", Line: 3}, "simwire.yaml:3"},
		{&Location{File: "simwire.yaml", Line: 3, Column: 7}, "simwire.yaml:3:7"},
	}
	for _, tt := range tests {
		if got := tt.loc.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestPretty(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "simwire.yaml")
	content := "circuit:\n  max_resends: 0\n"
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	err := New(CodeConfigInvalid).
		WithLocation(tmpFile, 2, 3).
		WithSuggestion("circuit.max_resends must be at least 1")

	plain := err.Pretty(false)
	for _, want := range []string{"ERROR E101: Invalid configuration value", tmpFile + ":2:3", "max_resends: 0", "  ^", "Hint:", "Learn more:"} {
		if !strings.Contains(plain, want) {
			t.Errorf("Pretty(false) missing %q:\n%s", want, plain)
		}
	}
	if strings.Contains(plain, "\033[") {
		t.Errorf("Pretty(false) contains ANSI codes:\n%s", plain)
	}
	if colored := err.Pretty(true); !strings.Contains(colored, ansiRed) {
		t.Errorf("Pretty(true) has no color:\n%s", colored)
	}
}

func TestLine(t *testing.T) {
	tests := []struct {
		name string
		err  *SimwireError
		want string
	}{
		{
			name: "location and code",
			err:  New(CodeConfigParse).WithLocation("simwire.yaml", 10, 5),
			want: "simwire.yaml:10:5: E102: Configuration file could not be parsed",
		},
		{
			name: "wrapped cause",
			err:  New(CodeUDPBind).Wrap(stderrors.New("address already in use")),
			want: "E300: Cannot bind UDP socket: address already in use",
		},
		{
			name: "no code",
			err:  Newf(CategoryCLI, "bad layer %q", "lava"),
			want: `bad layer "lava"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Line(); got != tt.want {
				t.Errorf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMarshalJSON(t *testing.T) {
	err := New(CodeUnknownStore).
		WithLocation("simwire.yaml", 7, 0).
		Wrap(stderrors.New("store \"nfs\""))

	data, jerr := json.Marshal(err)
	if jerr != nil {
		t.Fatalf("json.Marshal() error = %v", jerr)
	}
	var got map[string]any
	if jerr := json.Unmarshal(data, &got); jerr != nil {
		t.Fatalf("json.Unmarshal(%s) error = %v", data, jerr)
	}
	want := map[string]any{
		"level":    "ERROR",
		"code":     "E103",
		"category": "config",
		"msg":      "Unknown terrain store",
		"cause":    `store "nfs"`,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
	loc, _ := got["location"].(map[string]any)
	if loc["file"] != "simwire.yaml" || loc["line"] != float64(7) {
		t.Errorf("location = %v", got["location"])
	}
	if _, ok := loc["column"]; ok {
		t.Errorf("location has column 0: %v", loc)
	}
}

func TestWrite(t *testing.T) {
	coded := fmt.Errorf("serve: %w", New(CodeStoreOpen))
	plain := stderrors.New("boom")

	tests := []struct {
		name  string
		err   error
		style Style
		want  string
	}{
		{"json finds wrapped code", coded, StyleJSON, `"code":"E302"`},
		{"json plain error", plain, StyleJSON, `{"level":"ERROR","msg":"boom"}`},
		{"line finds wrapped code", coded, StyleLine, "E302: Cannot open terrain store"},
		{"line plain error", plain, StyleLine, "boom\n"},
		{"terminal", plain, StyleTerminal, "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Write(&buf, tt.err, tt.style)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("Write(%v) = %q, want it to contain %q", tt.style, buf.String(), tt.want)
			}
		})
	}
}

func TestCodesRegistered(t *testing.T) {
	codes := []string{
		CodeConfigNotFound, CodeConfigInvalid, CodeConfigParse, CodeUnknownStore,
		CodeDuplicateMessageID, CodeInvalidMessageID, CodeDuplicateName,
		CodeUDPBind, CodeHTTPListen, CodeStoreOpen,
		CodeHeightmapSize, CodeHeightmapRead,
	}
	for _, code := range codes {
		tmpl, ok := GetTemplate(code)
		if !ok {
			t.Errorf("code %s not registered", code)
			continue
		}
		if !strings.HasSuffix(tmpl.DocURL, code) {
			t.Errorf("code %s DocURL = %q", code, tmpl.DocURL)
		}
	}
	if len(GetAllCodes()) != len(codes) {
		t.Errorf("GetAllCodes() = %d codes, want %d", len(GetAllCodes()), len(codes))
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("short text", 100)
	if len(got) != 1 || got[0] != "short text" {
		t.Errorf("wrapText short text: got %v", got)
	}

	got = wrapText("this is a longer text that should be wrapped", 20)
	if len(got) != 3 {
		t.Errorf("wrapText long text: expected 3 lines, got %d: %v", len(got), got)
	}

	if got = wrapText("", 10); len(got) != 0 {
		t.Errorf("wrapText empty: expected empty, got %v", got)
	}
}
