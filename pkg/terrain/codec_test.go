package terrain

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/simwire/simwire/pkg/bitpack"
)

func roundTrip(t *testing.T, patch Patch) Patch {
	t.Helper()
	data, err := Compress(LayerLand, []Patch{patch})
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	layer, patches, err := Decompress(data)
	if err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if layer != LayerLand {
		t.Errorf("layer = %v, want %v", layer, LayerLand)
	}
	if len(patches) != 1 {
		t.Fatalf("Decompress() returned %d patches, want 1", len(patches))
	}
	return patches[0]
}

// roundoff absorbs floating point rounding in the transforms.
const roundoff = 1e-6

// checkBound fails t when got strays from src by more than ErrorBound.
func checkBound(t *testing.T, src, got *Patch) float64 {
	t.Helper()
	bound, err := ErrorBound(src)
	if err != nil {
		t.Fatalf("ErrorBound() error = %v", err)
	}
	if e := maxError(src, got); e > bound+roundoff {
		t.Errorf("max error = %v, want <= %v", e, bound)
	}
	return bound
}

func maxError(a, b *Patch) float64 {
	var worst float64
	for y := 0; y < PatchSize; y++ {
		for x := 0; x < PatchSize; x++ {
			worst = math.Max(worst, math.Abs(a.Heights[y][x]-b.Heights[y][x]))
		}
	}
	return worst
}

func TestCopyMatrixIsPermutation(t *testing.T) {
	var seen [patchArea]bool
	for n, pos := range copyMatrix16 {
		if pos < 0 || pos >= patchArea || seen[pos] {
			t.Fatalf("copyMatrix16[%d] = %d duplicates or out of range", n, pos)
		}
		seen[pos] = true
	}
	if copyMatrix16[0] != 0 || copyMatrix16[1] != 1 || copyMatrix16[PatchSize] != 2 {
		t.Errorf("low frequencies not first: %v %v %v", copyMatrix16[0], copyMatrix16[1], copyMatrix16[PatchSize])
	}
	if copyMatrix16[patchArea-1] != patchArea-1 {
		t.Errorf("copyMatrix16[255] = %d, want 255", copyMatrix16[patchArea-1])
	}
}

func TestConstantPatch(t *testing.T) {
	src := NewPatch(3, 7, 21.5)
	got := roundTrip(t, src)

	if got.X != 3 || got.Y != 7 {
		t.Errorf("patch id = (%d,%d), want (3,7)", got.X, got.Y)
	}
	if e := maxError(&src, &got); e > 1e-6 {
		t.Errorf("max error = %v, want ~0", e)
	}
}

func TestScenarioEdgesAndInterior(t *testing.T) {
	src := NewPatch(0, 0, 26)
	for y := 0; y < PatchSize; y++ {
		src.Heights[y][0] = 10
		src.Heights[y][PatchSize-1] = 42
	}

	header, _, err := quantizePatch(&src)
	if err != nil {
		t.Fatalf("quantizePatch() error = %v", err)
	}
	if header.Range != 33 {
		t.Errorf("Range = %d, want 33", header.Range)
	}
	if header.DCOffset != 10 {
		t.Errorf("DCOffset = %v, want 10", header.DCOffset)
	}
	if header.Prequant() != Prequant {
		t.Errorf("Prequant() = %d, want %d", header.Prequant(), Prequant)
	}

	got := roundTrip(t, src)
	bound := checkBound(t, &src, &got)
	if bound > float64(header.Range)/100 {
		t.Errorf("ErrorBound() = %v, want under 1%% of range %d", bound, header.Range)
	}
	for y := 0; y < PatchSize; y++ {
		for x := 1; x < PatchSize-1; x++ {
			if d := math.Abs(got.Heights[y][x] - 26); d > bound+roundoff {
				t.Fatalf("Heights[%d][%d] = %v, want 26 +/- %v", y, x, got.Heights[y][x], bound)
			}
		}
	}
}

func TestSmoothPatches(t *testing.T) {
	tests := []struct {
		name   string
		height func(x, y int) float64
	}{
		{"slope", func(x, y int) float64 { return 20 + float64(x)*0.5 + float64(y)*0.25 }},
		{"wave", func(x, y int) float64 {
			return 30 + 5*math.Sin(float64(x)/3)*math.Cos(float64(y)/4)
		}},
		{"below sea level", func(x, y int) float64 { return -12 + float64(x+y)/8 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := Patch{X: 31, Y: 31}
			for y := 0; y < PatchSize; y++ {
				for x := 0; x < PatchSize; x++ {
					src.Heights[y][x] = tt.height(x, y)
				}
			}
			header, _, err := quantizePatch(&src)
			if err != nil {
				t.Fatalf("quantizePatch() error = %v", err)
			}

			got := roundTrip(t, src)
			// Smooth terrain keeps its energy in the low, finely quantized
			// frequencies.
			if bound := checkBound(t, &src, &got); bound > float64(header.Range)/16 {
				t.Errorf("ErrorBound() = %v, want under 1/16 of range %d", bound, header.Range)
			}
		})
	}
}

func TestRandomPatchesBoundedError(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		low := rng.Float64()*150 - 50
		spread := rng.Float64() * 200

		src := Patch{X: i, Y: 31 - i}
		for y := 0; y < PatchSize; y++ {
			for x := 0; x < PatchSize; x++ {
				src.Heights[y][x] = low + rng.Float64()*spread
			}
		}
		got := roundTrip(t, src)
		checkBound(t, &src, &got)
	}
}

func TestSpikeErrorWithinBound(t *testing.T) {
	src := NewPatch(0, 0, 50)
	src.Heights[4][4] = 60

	header, _, err := quantizePatch(&src)
	if err != nil {
		t.Fatalf("quantizePatch() error = %v", err)
	}
	got := roundTrip(t, src)
	checkBound(t, &src, &got)

	// A lone spike spreads into coarsely quantized frequencies, so the
	// error is far above the fixed-point resolution of the range.
	resolution := float64(header.Range) / float64(int(1)<<Prequant)
	if e := maxError(&src, &got); e < 10*resolution {
		t.Errorf("max error = %v, want well above resolution %v", e, resolution)
	}
}

func TestErrorBound(t *testing.T) {
	flat := NewPatch(0, 0, 33.25)
	bound, err := ErrorBound(&flat)
	if err != nil {
		t.Fatalf("ErrorBound() error = %v", err)
	}
	if bound > roundoff {
		t.Errorf("ErrorBound(flat) = %v, want 0", bound)
	}

	bad := NewPatch(0, 0, 1)
	bad.Heights[2][2] = math.NaN()
	if _, err := ErrorBound(&bad); !errors.Is(err, ErrInvalidPatch) {
		t.Errorf("ErrorBound(NaN) error = %v, want ErrInvalidPatch", err)
	}
}

func TestMultiplePatches(t *testing.T) {
	src := []Patch{NewPatch(0, 0, 1), NewPatch(1, 0, 50), NewPatch(0, 1, -3.5)}
	src[1].Heights[4][4] = 60

	data, err := Compress(LayerWater, src)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	layer, got, err := Decompress(data)
	if err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if layer != LayerWater {
		t.Errorf("layer = %v, want water", layer)
	}
	if len(got) != len(src) {
		t.Fatalf("got %d patches, want %d", len(got), len(src))
	}
	for i := range src {
		if got[i].X != src[i].X || got[i].Y != src[i].Y {
			t.Errorf("patch %d id = (%d,%d), want (%d,%d)", i, got[i].X, got[i].Y, src[i].X, src[i].Y)
		}
		checkBound(t, &src[i], &got[i])
	}
}

func TestDecodePatchHeader(t *testing.T) {
	patch := NewPatch(3, 7, 20)
	patch.Heights[0][0] = 22.5

	data, err := Compress(LayerLand, []Patch{patch})
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	u := bitpack.NewUnpacker(data)
	if _, err := u.UnpackBits(32); err != nil {
		t.Fatalf("group header: %v", err)
	}

	h, end, err := DecodePatchHeader(u)
	if err != nil || end {
		t.Fatalf("DecodePatchHeader() = %+v, %v, %v", h, end, err)
	}
	if h.X != 3 || h.Y != 7 {
		t.Errorf("patch id = (%d,%d), want (3,7)", h.X, h.Y)
	}
	if h.DCOffset != 20 {
		t.Errorf("DCOffset = %v, want 20", h.DCOffset)
	}
	if h.Range != 4 {
		t.Errorf("Range = %d, want 4", h.Range)
	}
	if h.Prequant() != Prequant {
		t.Errorf("Prequant() = %d, want %d", h.Prequant(), Prequant)
	}
	if w := h.WordBits(); w < 2 || w > 17 {
		t.Errorf("WordBits() = %d, want within [2,17]", w)
	}

	// A stream holding only the terminator reports end.
	empty, _ := Compress(LayerLand, nil)
	u = bitpack.NewUnpacker(empty)
	u.UnpackBits(32)
	if _, end, err := DecodePatchHeader(u); err != nil || !end {
		t.Errorf("DecodePatchHeader() on empty stream = %v, %v, want end", end, err)
	}
}

func TestEmptyStream(t *testing.T) {
	data, err := Compress(LayerWind, nil)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if len(data) != 5 {
		t.Errorf("len(data) = %d, want 5", len(data))
	}
	layer, patches, err := Decompress(data)
	if err != nil || layer != LayerWind || len(patches) != 0 {
		t.Errorf("Decompress() = %v, %d patches, %v", layer, len(patches), err)
	}
}

func TestCompressRejects(t *testing.T) {
	tests := []struct {
		name  string
		patch Patch
	}{
		{"x out of range", NewPatch(32, 0, 1)},
		{"negative y", NewPatch(0, -1, 1)},
		{"nan", func() Patch { p := NewPatch(0, 0, 1); p.Heights[2][2] = math.NaN(); return p }()},
		{"range too wide", func() Patch { p := NewPatch(0, 0, 0); p.Heights[0][0] = 1e6; return p }()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compress(LayerLand, []Patch{tt.patch}); !errors.Is(err, ErrInvalidPatch) {
				t.Errorf("Compress() error = %v, want ErrInvalidPatch", err)
			}
		})
	}
}

// stream builds a hand-made patch stream for malformed input tests.
func stream(patchSize uint32, quant uint32, rng uint32, coefficients func(p *bitpack.Packer)) []byte {
	p := bitpack.NewPacker(64)
	_ = p.PackBits(16, 16)
	_ = p.PackBits(patchSize, 8)
	_ = p.PackBits(uint32(LayerLand), 8)
	_ = p.PackBits(quant, 8)
	p.PackFloat(0)
	_ = p.PackBits(rng, 16)
	_ = p.PackBits(0, 10)
	if coefficients != nil {
		coefficients(p)
	}
	_ = p.PackBits(EndOfPatches, 8)
	return p.Bytes()
}

func TestDecompressRejects(t *testing.T) {
	eob := func(p *bitpack.Packer) { _ = p.PackBits(zeroEOB, 2) }

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrMalformedStream},
		{"group header only", []byte{0x10, 0x00, 0x10}, ErrMalformedStream},
		{"patch size 17", stream(17, 0x88, 10, eob), ErrCodecRange},
		{"patch size 32", stream(32, 0x88, 10, eob), ErrCodecRange},
		{"zero range", stream(16, 0x88, 0, eob), ErrCodecRange},
		{"truncated coefficients", stream(16, 0x8F, 10, func(p *bitpack.Packer) {
			_ = p.PackBits(positiveValue, 3)
		}), ErrMalformedStream},
		{"missing terminator", []byte{0x10, 0x00, 0x10, 0x4C}, ErrMalformedStream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, patches, err := Decompress(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decompress() error = %v, want %v", err, tt.want)
			}
			if patches != nil {
				t.Errorf("Decompress() returned %d patches alongside error", len(patches))
			}
		})
	}
}

func TestSaturatedCoefficientsDecode(t *testing.T) {
	// 256 maximal positive coefficients with no end-of-block.
	data := stream(16, 0x8F, 1, func(p *bitpack.Packer) {
		for i := 0; i < patchArea; i++ {
			_ = p.PackBits(positiveValue, 3)
			_ = p.PackBits(1<<17-1, 17)
		}
	})
	_, patches, err := Decompress(data)
	if err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if len(patches) != 1 {
		t.Errorf("got %d patches, want 1", len(patches))
	}
}

func TestCompressBatches(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var patches []Patch
	for i := 0; i < 12; i++ {
		p := Patch{X: i, Y: 0}
		for y := 0; y < PatchSize; y++ {
			for x := 0; x < PatchSize; x++ {
				p.Heights[y][x] = rng.Float64() * 40
			}
		}
		patches = append(patches, p)
	}

	const limit = 1000
	batches, err := CompressBatches(LayerLand, patches, limit)
	if err != nil {
		t.Fatalf("CompressBatches() error = %v", err)
	}
	if len(batches) < 2 {
		t.Fatalf("got %d batches, want a split", len(batches))
	}

	var total int
	for i, b := range batches {
		if len(b) > limit {
			t.Errorf("batch %d is %d bytes, limit %d", i, len(b), limit)
		}
		_, got, err := Decompress(b)
		if err != nil {
			t.Fatalf("batch %d: Decompress() error = %v", i, err)
		}
		for _, p := range got {
			if p.X != total {
				t.Errorf("batch %d: patch x = %d, want %d", i, p.X, total)
			}
			total++
		}
	}
	if total != len(patches) {
		t.Errorf("decoded %d patches, want %d", total, len(patches))
	}
}

func TestLayerTypeNames(t *testing.T) {
	for _, l := range []LayerType{LayerLand, LayerWater, LayerWind, LayerCloud} {
		got, err := ParseLayerType(l.String())
		if err != nil || got != l {
			t.Errorf("ParseLayerType(%q) = %v, %v", l.String(), got, err)
		}
	}
	if _, err := ParseLayerType("lava"); err == nil {
		t.Error("ParseLayerType(lava) succeeded")
	}
}

func BenchmarkCompress(b *testing.B) {
	patch := NewPatch(0, 0, 20)
	for y := 0; y < PatchSize; y++ {
		for x := 0; x < PatchSize; x++ {
			patch.Heights[y][x] += math.Sin(float64(x)) * math.Cos(float64(y))
		}
	}
	patches := []Patch{patch}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Compress(LayerLand, patches); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecompress(b *testing.B) {
	patch := NewPatch(0, 0, 20)
	patch.Heights[8][8] = 30
	data, err := Compress(LayerLand, []Patch{patch})
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, _, err := Decompress(data); err != nil {
			b.Fatal(err)
		}
	}
}

func FuzzDecompress(f *testing.F) {
	seed, _ := Compress(LayerLand, []Patch{NewPatch(1, 2, 5)})
	f.Add(seed)
	f.Add([]byte{0x10, 0x00, 0x10, 0x4C, EndOfPatches})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		_, patches, err := Decompress(data)
		if err != nil && patches != nil {
			t.Fatalf("patches returned with error %v", err)
		}
		if len(patches) > MaxPatchesPerStream {
			t.Fatalf("decoded %d patches", len(patches))
		}
	})
}
