package protocol

// ZeroEncode collapses each run of zero bytes in src into a 0x00 marker
// followed by the run length. Runs longer than 255 are split.
func ZeroEncode(src []byte) []byte {
	dst := make([]byte, 0, len(src))
	for i := 0; i < len(src); {
		if src[i] != 0 {
			dst = append(dst, src[i])
			i++
			continue
		}
		run := 0
		for i < len(src) && src[i] == 0 && run < 255 {
			run++
			i++
		}
		dst = append(dst, 0, byte(run))
	}
	return dst
}

// ZeroDecode expands a zero-coded body. limit bounds the expanded size so a
// hostile body of repeated run markers cannot force a large allocation.
func ZeroDecode(src []byte, limit int) ([]byte, error) {
	dst := make([]byte, 0, min(len(src)*2, limit))
	for i := 0; i < len(src); i++ {
		if src[i] != 0 {
			if len(dst) >= limit {
				return nil, ErrZeroCodeOverflow
			}
			dst = append(dst, src[i])
			continue
		}
		i++
		if i >= len(src) || src[i] == 0 {
			return nil, ErrMalformedPacket
		}
		run := int(src[i])
		if len(dst)+run > limit {
			return nil, ErrZeroCodeOverflow
		}
		for ; run > 0; run-- {
			dst = append(dst, 0)
		}
	}
	return dst, nil
}

// zeroCodedSize reports the size ZeroEncode would produce without encoding.
func zeroCodedSize(src []byte) int {
	n := 0
	for i := 0; i < len(src); {
		if src[i] != 0 {
			n++
			i++
			continue
		}
		run := 0
		for i < len(src) && src[i] == 0 && run < 255 {
			run++
			i++
		}
		n += 2
	}
	return n
}

// ZeroCodingHelps reports whether zero-coding body makes it smaller.
func ZeroCodingHelps(body []byte) bool {
	return zeroCodedSize(body) < len(body)
}
