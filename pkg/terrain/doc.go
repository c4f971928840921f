// Package terrain implements the patch codec used by LayerData messages.
//
// A patch is a 16x16 block of height samples. Compression normalizes the
// samples into a fixed-point range, applies a separable 2D DCT, quantizes
// the coefficients with a frequency-weighted table and entropy codes them
// into a bit stream with three codes: a single zero, end-of-block and a
// signed magnitude of the patch's word width.
//
// The codec is lossy. Coefficient (u, v) is divided by its step 1+2(u+v)
// and truncated toward zero, so it loses less than one step and never more
// than its own magnitude. One normalized unit is range/1024 meters, and
// the inverse transform carries each loss to every sample scaled by the
// basis weights. ErrorBound sums those worst cases for a given patch.
//
// In practice smooth terrain decodes within about a twentieth of its
// range, usually much closer. A lone spike or noisy patch pushes energy
// into the coarse high frequencies and can be off by a quarter of its
// range. The fixed-point resolution of range/1024 is only reached when
// every coefficient is an exact multiple of its step.
//
// Stream layout:
//
//	group header   stride:16  patch_size:8  layer_type:8
//	per patch      quant_word_bits:8  dc_offset:f32  range:16  patch_ids:10
//	               coefficient codes...
//	terminator     97:8
package terrain
