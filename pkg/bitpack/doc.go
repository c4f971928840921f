// Package bitpack packs values of arbitrary bit width into a byte stream.
//
// Values are split into 8-bit chunks starting at the least significant
// byte; each chunk is written most-significant-bit first, and the final
// chunk carries only the remaining bits. A 10-bit value therefore occupies
// its low byte followed by its top two bits. Floats are packed as their
// 32-bit IEEE 754 pattern in the same order.
//
// The terrain codec is the only user; message bodies are byte aligned.
package bitpack
