package main

import (
	"bytes"
	"encoding/binary"
	stderrors "errors"
	"math"
	"strings"
	"testing"

	"github.com/simwire/simwire/internal/errors"
	"github.com/simwire/simwire/pkg/message"
	"github.com/simwire/simwire/pkg/terrain"
)

// heightmap builds a side x side grid where sample (x, y) = base + x/4 + y/8.
func heightmap(side int, base float32) []byte {
	raw := make([]byte, side*side*4)
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			v := base + float32(x)/4 + float32(y)/8
			binary.LittleEndian.PutUint32(raw[(y*side+x)*4:], math.Float32bits(v))
		}
	}
	return raw
}

func errorCode(err error) string {
	var se *errors.SimwireError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

func TestParseHeightmap(t *testing.T) {
	patches, err := parseHeightmap(heightmap(32, 20))
	if err != nil {
		t.Fatalf("parseHeightmap() error = %v", err)
	}
	if len(patches) != 4 {
		t.Fatalf("got %d patches, want 4", len(patches))
	}

	// Row-major: the second patch is (1, 0).
	p := patches[1]
	if p.X != 1 || p.Y != 0 {
		t.Fatalf("patches[1] at (%d,%d), want (1,0)", p.X, p.Y)
	}
	// Heights[row][col] is sample (16+col, row).
	if got, want := p.Heights[2][3], 20+19.0/4+2.0/8; got != want {
		t.Errorf("Heights[2][3] = %v, want %v", got, want)
	}
}

func TestParseHeightmapSize(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"ragged", 1025},
		{"not square", 16 * 32 * 4},
		{"side not a multiple of 16", 20 * 20 * 4},
		{"too many patches", 33 * 16 * 33 * 16 * 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseHeightmap(make([]byte, tt.size))
			if code := errorCode(err); code != errors.CodeHeightmapSize {
				t.Errorf("parseHeightmap() error = %v, want %s", err, errors.CodeHeightmapSize)
			}
		})
	}
}

func TestFormatHeightmap(t *testing.T) {
	raw := heightmap(48, 5)
	patches, err := parseHeightmap(raw)
	if err != nil {
		t.Fatal(err)
	}
	// Order must not matter.
	patches[0], patches[8] = patches[8], patches[0]

	out, err := formatHeightmap(patches)
	if err != nil {
		t.Fatalf("formatHeightmap() error = %v", err)
	}
	if !bytes.Equal(out, raw) {
		t.Error("formatHeightmap() did not reproduce the input")
	}

	if _, err := formatHeightmap(patches[:3]); errorCode(err) != errors.CodeHeightmapSize {
		t.Errorf("formatHeightmap(3 patches) error = %v", err)
	}
	bad := []terrain.Patch{{X: 1, Y: 0}}
	if _, err := formatHeightmap(bad); errorCode(err) != errors.CodeHeightmapSize {
		t.Errorf("formatHeightmap(outside grid) error = %v", err)
	}
}

func TestEncodeDecodeStreams(t *testing.T) {
	patches, err := parseHeightmap(heightmap(256, 20))
	if err != nil {
		t.Fatal(err)
	}

	data, streams, err := encodeStreams(terrain.LayerWater, patches)
	if err != nil {
		t.Fatalf("encodeStreams() error = %v", err)
	}
	if streams < 2 {
		t.Errorf("%d streams for 256 patches, want several", streams)
	}

	layer, got, err := decodeStreams(data)
	if err != nil {
		t.Fatalf("decodeStreams() error = %v", err)
	}
	if layer != terrain.LayerWater {
		t.Errorf("layer = %v, want water", layer)
	}
	if len(got) != len(patches) {
		t.Fatalf("decoded %d patches, want %d", len(got), len(patches))
	}
	for i := range got {
		if got[i].X != patches[i].X || got[i].Y != patches[i].Y {
			t.Fatalf("patch %d at (%d,%d), want (%d,%d)", i, got[i].X, got[i].Y, patches[i].X, patches[i].Y)
		}
		bound, err := terrain.ErrorBound(&patches[i])
		if err != nil {
			t.Fatal(err)
		}
		for row := 0; row < terrain.PatchSize; row++ {
			for col := 0; col < terrain.PatchSize; col++ {
				if d := math.Abs(got[i].Heights[row][col] - patches[i].Heights[row][col]); d > bound+1e-6 {
					t.Fatalf("patch %d [%d][%d] off by %v, bound %v", i, row, col, d, bound)
				}
			}
		}
	}

	if _, _, err := decodeStreams(data[:len(data)-3]); errorCode(err) != errors.CodeHeightmapRead {
		t.Errorf("decodeStreams(truncated) error = %v", err)
	}
}

func TestSelectMessages(t *testing.T) {
	reg := message.Default()

	all, err := selectMessages(reg, "", nil)
	if err != nil || len(all) != reg.Len() {
		t.Fatalf("selectMessages() = %d, %v; want %d", len(all), err, reg.Len())
	}

	named, err := selectMessages(reg, "", []string{"LayerData", "PacketAck"})
	if err != nil || len(named) != 2 || named[0].Name != "LayerData" {
		t.Errorf("selectMessages(names) = %v, %v", named, err)
	}
	if _, err := selectMessages(reg, "", []string{"NoSuchMessage"}); err == nil {
		t.Error("selectMessages(unknown name) error = nil")
	}

	fixed, err := selectMessages(reg, "FIXED", nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range fixed {
		if d.ID.Frequency().String() != "Fixed" {
			t.Errorf("%s is %v", d.Name, d.ID.Frequency())
		}
	}
	if _, err := selectMessages(reg, "often", nil); err == nil {
		t.Error("selectMessages(bad frequency) error = nil")
	}
}

func TestWriteMessages(t *testing.T) {
	d, ok := message.Default().ByName("LogoutReply")
	if !ok {
		t.Fatal("LogoutReply not registered")
	}
	var buf bytes.Buffer
	writeMessages(&buf, []*message.Descriptor{d})

	out := buf.String()
	if !strings.Contains(out, "LogoutReply") || !strings.Contains(out, "RZ--") {
		t.Errorf("writeMessages() = %q", out)
	}
	if !strings.Contains(out, "1 message types") {
		t.Errorf("writeMessages() missing count: %q", out)
	}
}
