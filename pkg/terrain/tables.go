package terrain

import "math"

const (
	// PatchSize is the edge length of a patch in samples.
	PatchSize = 16

	patchArea = PatchSize * PatchSize

	// Prequant is the fixed-point precision samples are normalized to.
	Prequant = 10

	ooSqrt2 = 0.7071067811865475244008443621

	// oosob is the 2/N scale of the 16-point transform.
	oosob = 2.0 / PatchSize
)

var (
	cosineTable16     [patchArea]float64
	copyMatrix16      [patchArea]int
	quantizeTable16   [patchArea]float64
	dequantizeTable16 [patchArea]float64
)

func init() {
	buildCosineTable()
	buildCopyMatrix()
	buildQuantizeTables()
}

func buildCosineTable() {
	for u := 0; u < PatchSize; u++ {
		for n := 0; n < PatchSize; n++ {
			cosineTable16[u*PatchSize+n] = math.Cos(float64(2*n+1) * float64(u) * math.Pi / (2 * PatchSize))
		}
	}
}

// buildCopyMatrix fills the zig-zag order: copyMatrix16[row*16+col] is the
// position of that frequency in the coefficient stream, lowest first.
func buildCopyMatrix() {
	diag := false
	right := true
	i, j := 0, 0
	count := 0
	for i < PatchSize && j < PatchSize {
		copyMatrix16[j*PatchSize+i] = count
		count++
		if !diag {
			if right {
				if i < PatchSize-1 {
					i++
				} else {
					j++
				}
				right = false
			} else {
				if j < PatchSize-1 {
					j++
				} else {
					i++
				}
				right = true
			}
			diag = true
		} else {
			if right {
				i++
				j--
				if i == PatchSize-1 || j == 0 {
					diag = false
				}
			} else {
				i--
				j++
				if j == PatchSize-1 || i == 0 {
					diag = false
				}
			}
		}
	}
}

func buildQuantizeTables() {
	for j := 0; j < PatchSize; j++ {
		for i := 0; i < PatchSize; i++ {
			step := 1.0 + 2.0*float64(i+j)
			quantizeTable16[j*PatchSize+i] = 1.0 / step
			dequantizeTable16[j*PatchSize+i] = step
		}
	}
}

// dctLine16 transforms one row in place into out.
func dctLine16(in, out *[patchArea]float64, line int) {
	base := line * PatchSize
	var total float64
	for n := 0; n < PatchSize; n++ {
		total += in[base+n]
	}
	out[base] = ooSqrt2 * total

	for u := 1; u < PatchSize; u++ {
		total = 0
		for n := 0; n < PatchSize; n++ {
			total += in[base+n] * cosineTable16[u*PatchSize+n]
		}
		out[base+u] = total
	}
}

// dctColumn16 transforms one column of row-transformed samples into
// unquantized coefficients, indexed [v*16+u] with v the vertical frequency.
func dctColumn16(in, out *[patchArea]float64, column int) {
	var total float64
	for n := 0; n < PatchSize; n++ {
		total += in[PatchSize*n+column]
	}
	out[column] = ooSqrt2 * total * oosob

	for u := 1; u < PatchSize; u++ {
		total = 0
		for n := 0; n < PatchSize; n++ {
			total += in[PatchSize*n+column] * cosineTable16[u*PatchSize+n]
		}
		out[PatchSize*u+column] = total * oosob
	}
}

// basis16 is the weight of frequency u at sample n in the inverse transform.
func basis16(u, n int) float64 {
	if u == 0 {
		return ooSqrt2
	}
	return cosineTable16[u*PatchSize+n]
}

func idctColumn16(in, out *[patchArea]float64, column int) {
	for n := 0; n < PatchSize; n++ {
		total := ooSqrt2 * in[column]
		for u := 1; u < PatchSize; u++ {
			total += in[u*PatchSize+column] * cosineTable16[u*PatchSize+n]
		}
		out[PatchSize*n+column] = total
	}
}

func idctLine16(in, out *[patchArea]float64, line int) {
	base := line * PatchSize
	for n := 0; n < PatchSize; n++ {
		total := ooSqrt2 * in[base]
		for u := 1; u < PatchSize; u++ {
			total += in[base+u] * cosineTable16[u*PatchSize+n]
		}
		out[base+n] = total * oosob
	}
}
