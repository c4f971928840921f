package terrain

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/simwire/simwire/pkg/bitpack"
)

// LayerType identifies the height field a LayerData stream carries.
type LayerType uint8

const (
	LayerLand  LayerType = 0x4C
	LayerWater LayerType = 0x57
	LayerWind  LayerType = 0x37
	LayerCloud LayerType = 0x38
)

// String returns the layer name.
func (t LayerType) String() string {
	switch t {
	case LayerLand:
		return "land"
	case LayerWater:
		return "water"
	case LayerWind:
		return "wind"
	case LayerCloud:
		return "cloud"
	default:
		return fmt.Sprintf("layer(0x%02x)", uint8(t))
	}
}

// ParseLayerType converts a layer name back to its LayerType.
func ParseLayerType(s string) (LayerType, error) {
	for _, t := range []LayerType{LayerLand, LayerWater, LayerWind, LayerCloud} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("terrain: unknown layer %q", s)
}

const (
	// EndOfPatches terminates a patch stream in place of a header.
	EndOfPatches = 97

	// MaxPatchCoord bounds patch coordinates; ids pack x and y into 5 bits each.
	MaxPatchCoord = 32

	// MaxPatchesPerStream is the number of distinct patch ids.
	MaxPatchesPerStream = MaxPatchCoord * MaxPatchCoord

	minWordBits = 2
	maxWordBits = 17

	zeroCode      = 0x0
	zeroEOB       = 0x2
	positiveValue = 0x6
	negativeValue = 0x7
)

var (
	// ErrCodecRange is returned when a stream declares a word width,
	// precision, range or patch size the codec cannot represent.
	ErrCodecRange = errors.New("terrain: codec range violation")

	// ErrMalformedStream is returned for truncated patch streams.
	ErrMalformedStream = errors.New("terrain: malformed patch stream")

	// ErrInvalidPatch is returned when a patch cannot be compressed.
	ErrInvalidPatch = errors.New("terrain: invalid patch")
)

// Patch is a 16x16 block of heights. Heights is indexed [y][x].
type Patch struct {
	X, Y    int
	Heights [PatchSize][PatchSize]float64
}

// NewPatch returns a patch at (x, y) filled with height.
func NewPatch(x, y int, height float64) Patch {
	p := Patch{X: x, Y: y}
	for row := range p.Heights {
		for col := range p.Heights[row] {
			p.Heights[row][col] = height
		}
	}
	return p
}

// Header is the per-patch header of a compressed stream.
type Header struct {
	QuantWBits uint8
	DCOffset   float32
	Range      uint16
	X, Y       int
}

// WordBits returns the magnitude width of each nonzero coefficient.
func (h Header) WordBits() int { return int(h.QuantWBits&0x0F) + 2 }

// Prequant returns the fixed-point precision the patch was normalized to.
func (h Header) Prequant() int { return int(h.QuantWBits>>4) + 2 }

func (h Header) validate() error {
	if w := h.WordBits(); w < minWordBits || w > maxWordBits {
		return fmt.Errorf("%w: word bits %d", ErrCodecRange, w)
	}
	if p := h.Prequant(); p < minWordBits || p > maxWordBits {
		return fmt.Errorf("%w: prequant %d", ErrCodecRange, p)
	}
	if h.Range == 0 {
		return fmt.Errorf("%w: zero range", ErrCodecRange)
	}
	return nil
}

// Compress encodes patches as a single LayerData stream.
func Compress(layer LayerType, patches []Patch) ([]byte, error) {
	if len(patches) > MaxPatchesPerStream {
		return nil, fmt.Errorf("%w: %d patches in one stream", ErrInvalidPatch, len(patches))
	}
	p := bitpack.NewPacker(4 + len(patches)*64)
	writeGroupHeader(p, layer)
	for i := range patches {
		if err := CompressPatch(p, &patches[i]); err != nil {
			return nil, err
		}
	}
	_ = p.PackBits(EndOfPatches, 8)
	return p.Bytes(), nil
}

// CompressBatches splits patches into as few streams as possible whose
// encoded size stays within maxBytes. A patch that alone exceeds maxBytes
// is sent in a stream of its own.
func CompressBatches(layer LayerType, patches []Patch, maxBytes int) ([][]byte, error) {
	const overheadBits = 16 + 8 + 8 + 8
	budget := maxBytes * 8

	var (
		out   [][]byte
		start int
		used  = overheadBits
	)
	for i := range patches {
		scratch := bitpack.NewPacker(128)
		if err := CompressPatch(scratch, &patches[i]); err != nil {
			return nil, err
		}
		size := scratch.BitLen()
		if i > start && used+size > budget {
			data, err := Compress(layer, patches[start:i])
			if err != nil {
				return nil, err
			}
			out = append(out, data)
			start, used = i, overheadBits
		}
		used += size
	}
	if start < len(patches) {
		data, err := Compress(layer, patches[start:])
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

func writeGroupHeader(p *bitpack.Packer, layer LayerType) {
	_ = p.PackBits(PatchSize, 16) // stride
	_ = p.PackBits(PatchSize, 8)
	_ = p.PackBits(uint32(layer), 8)
}

// CompressPatch appends one compressed patch to p.
func CompressPatch(p *bitpack.Packer, patch *Patch) error {
	if patch.X < 0 || patch.X >= MaxPatchCoord || patch.Y < 0 || patch.Y >= MaxPatchCoord {
		return fmt.Errorf("%w: patch (%d,%d) outside id space", ErrInvalidPatch, patch.X, patch.Y)
	}

	header, coef, err := quantizePatch(patch)
	if err != nil {
		return err
	}

	_ = p.PackBits(uint32(header.QuantWBits), 8)
	p.PackFloat(header.DCOffset)
	_ = p.PackBits(uint32(header.Range), 16)
	_ = p.PackBits(uint32(header.X)<<5|uint32(header.Y), 10)

	encodeCoefficients(p, &coef, header.WordBits())
	return nil
}

// normalize maps the patch into the fixed-point range and returns the
// samples with the DC offset and range the header will carry.
func normalize(patch *Patch) ([patchArea]float64, float32, float64, error) {
	var block [patchArea]float64

	zmin, zmax := math.Inf(1), math.Inf(-1)
	for _, row := range patch.Heights {
		for _, h := range row {
			if math.IsNaN(h) || math.IsInf(h, 0) {
				return block, 0, 0, fmt.Errorf("%w: non-finite height", ErrInvalidPatch)
			}
			zmin = math.Min(zmin, h)
			zmax = math.Max(zmax, h)
		}
	}

	rng := math.Ceil(zmax-zmin) + 1
	if rng > math.MaxUint16 {
		return block, 0, 0, fmt.Errorf("%w: height range %.0f", ErrInvalidPatch, rng)
	}
	dc := float32(zmin)

	premult := float64(int(1)<<Prequant) / rng
	sub := float64(int(1)<<(Prequant-1)) + float64(dc)*premult
	for y, row := range patch.Heights {
		for x, h := range row {
			block[y*PatchSize+x] = h*premult - sub
		}
	}
	return block, dc, rng, nil
}

// forwardDCT returns the unquantized coefficients of a normalized block.
func forwardDCT(block *[patchArea]float64) [patchArea]float64 {
	var rows, freq [patchArea]float64
	for line := 0; line < PatchSize; line++ {
		dctLine16(block, &rows, line)
	}
	for column := 0; column < PatchSize; column++ {
		dctColumn16(&rows, &freq, column)
	}
	return freq
}

// quantizePatch runs the forward transform and derives the patch header.
// Coefficients are returned in zig-zag order.
func quantizePatch(patch *Patch) (Header, [patchArea]int32, error) {
	var coef [patchArea]int32

	block, dc, rng, err := normalize(patch)
	if err != nil {
		return Header{}, coef, err
	}
	freq := forwardDCT(&block)
	for i, f := range freq {
		coef[copyMatrix16[i]] = int32(f * quantizeTable16[i])
	}

	var maxMag uint32
	for _, c := range coef {
		maxMag = max(maxMag, magnitude(c))
	}
	wbits := min(max(bits.Len32(maxMag), minWordBits), maxWordBits)

	header := Header{
		QuantWBits: uint8(wbits-2) | uint8(Prequant-2)<<4,
		DCOffset:   dc,
		Range:      uint16(rng),
		X:          patch.X,
		Y:          patch.Y,
	}
	return header, coef, nil
}

// ErrorBound returns the largest height error, in meters, that compressing
// and decompressing patch can introduce, up to floating point rounding.
//
// Each coefficient loses less than its quantization step to truncation, and
// never more than its own magnitude. The bound sums those losses through the
// inverse transform with every basis weight taken at its absolute value.
func ErrorBound(patch *Patch) (float64, error) {
	block, _, rng, err := normalize(patch)
	if err != nil {
		return 0, err
	}
	freq := forwardDCT(&block)

	var lost [patchArea]float64
	for i, f := range freq {
		kept := float64(int32(f*quantizeTable16[i])) * dequantizeTable16[i]
		lost[i] = math.Abs(f - kept)
	}

	// Separable: first across horizontal frequencies, then vertical ones.
	var partial [patchArea]float64
	for v := 0; v < PatchSize; v++ {
		for x := 0; x < PatchSize; x++ {
			var total float64
			for u := 0; u < PatchSize; u++ {
				total += lost[v*PatchSize+u] * math.Abs(basis16(u, x))
			}
			partial[v*PatchSize+x] = total
		}
	}
	var worst float64
	for y := 0; y < PatchSize; y++ {
		for x := 0; x < PatchSize; x++ {
			var total float64
			for v := 0; v < PatchSize; v++ {
				total += partial[v*PatchSize+x] * math.Abs(basis16(v, y))
			}
			worst = math.Max(worst, total)
		}
	}
	return worst * oosob * rng / float64(int(1)<<Prequant), nil
}

func magnitude(c int32) uint32 {
	if c < 0 {
		return uint32(-int64(c))
	}
	return uint32(c)
}

func encodeCoefficients(p *bitpack.Packer, coef *[patchArea]int32, wbits int) {
	last := -1
	for i := patchArea - 1; i >= 0; i-- {
		if coef[i] != 0 {
			last = i
			break
		}
	}

	limit := uint32(1)<<uint(wbits) - 1
	for i, c := range coef {
		switch {
		case i > last:
			_ = p.PackBits(zeroEOB, 2)
			return
		case c == 0:
			_ = p.PackBits(zeroCode, 1)
		case c < 0:
			_ = p.PackBits(negativeValue, 3)
			_ = p.PackBits(min(magnitude(c), limit), wbits)
		default:
			_ = p.PackBits(positiveValue, 3)
			_ = p.PackBits(min(magnitude(c), limit), wbits)
		}
	}
}

// Decompress decodes a LayerData stream. Either every patch in the stream
// decodes or an error is returned and no patches are.
func Decompress(data []byte) (LayerType, []Patch, error) {
	u := bitpack.NewUnpacker(data)

	if _, err := u.UnpackBits(16); err != nil {
		return 0, nil, fmt.Errorf("%w: group header: %v", ErrMalformedStream, err)
	}
	size, err := u.UnpackBits(8)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: group header: %v", ErrMalformedStream, err)
	}
	layer, err := u.UnpackBits(8)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: group header: %v", ErrMalformedStream, err)
	}
	if size != PatchSize {
		return 0, nil, fmt.Errorf("%w: patch size %d", ErrCodecRange, size)
	}

	var patches []Patch
	for {
		header, end, err := DecodePatchHeader(u)
		if err != nil {
			return 0, nil, err
		}
		if end {
			break
		}
		if len(patches) == MaxPatchesPerStream {
			return 0, nil, fmt.Errorf("%w: more than %d patches", ErrCodecRange, MaxPatchesPerStream)
		}
		patch, err := decodePatch(u, header)
		if err != nil {
			return 0, nil, err
		}
		patches = append(patches, patch)
	}
	return LayerType(layer), patches, nil
}

// DecodePatchHeader reads one patch header from u. It reports end == true
// when the stream terminator is read instead.
func DecodePatchHeader(u *bitpack.Unpacker) (Header, bool, error) {
	quant, err := u.UnpackBits(8)
	if err != nil {
		return Header{}, false, fmt.Errorf("%w: missing terminator", ErrMalformedStream)
	}
	if quant == EndOfPatches {
		return Header{}, true, nil
	}
	dc, err := u.UnpackFloat()
	if err != nil {
		return Header{}, false, fmt.Errorf("%w: patch header: %v", ErrMalformedStream, err)
	}
	rng, err := u.UnpackBits(16)
	if err != nil {
		return Header{}, false, fmt.Errorf("%w: patch header: %v", ErrMalformedStream, err)
	}
	ids, err := u.UnpackBits(10)
	if err != nil {
		return Header{}, false, fmt.Errorf("%w: patch header: %v", ErrMalformedStream, err)
	}

	h := Header{
		QuantWBits: uint8(quant),
		DCOffset:   dc,
		Range:      uint16(rng),
		X:          int(ids >> 5),
		Y:          int(ids & 0x1F),
	}
	if err := h.validate(); err != nil {
		return Header{}, false, err
	}
	return h, false, nil
}

func decodePatch(u *bitpack.Unpacker, h Header) (Patch, error) {
	var coef [patchArea]float64
	wbits := h.WordBits()

	for i := 0; i < patchArea; i++ {
		code, err := u.UnpackBits(1)
		if err != nil {
			return Patch{}, fmt.Errorf("%w: coefficient %d: %v", ErrMalformedStream, i, err)
		}
		if code == 0 {
			continue
		}
		if code, err = u.UnpackBits(1); err != nil {
			return Patch{}, fmt.Errorf("%w: coefficient %d: %v", ErrMalformedStream, i, err)
		}
		if code == 0 {
			break // end of block, remaining coefficients are zero
		}
		negative, err := u.UnpackBits(1)
		if err != nil {
			return Patch{}, fmt.Errorf("%w: coefficient %d: %v", ErrMalformedStream, i, err)
		}
		mag, err := u.UnpackBits(wbits)
		if err != nil {
			return Patch{}, fmt.Errorf("%w: coefficient %d: %v", ErrMalformedStream, i, err)
		}
		coef[i] = float64(mag)
		if negative != 0 {
			coef[i] = -coef[i]
		}
	}

	var block, cols [patchArea]float64
	for n := 0; n < patchArea; n++ {
		block[n] = coef[copyMatrix16[n]] * dequantizeTable16[n]
	}
	for column := 0; column < PatchSize; column++ {
		idctColumn16(&block, &cols, column)
	}
	for line := 0; line < PatchSize; line++ {
		idctLine16(&cols, &block, line)
	}

	prequant := h.Prequant()
	mult := float64(h.Range) / float64(int(1)<<prequant)
	addval := mult*float64(int(1)<<(prequant-1)) + float64(h.DCOffset)

	patch := Patch{X: h.X, Y: h.Y}
	for y := 0; y < PatchSize; y++ {
		for x := 0; x < PatchSize; x++ {
			patch.Heights[y][x] = block[y*PatchSize+x]*mult + addval
		}
	}
	return patch, nil
}
