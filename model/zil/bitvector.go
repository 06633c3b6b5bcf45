package zil

import "encoding/binary"

// AppendBitVector appends the length-prefixed packed encoding of a bitmap to
// dst: a 2-byte big-endian bit count followed by the bits packed MSB-first.
// This encoding is part of the co-signature message preimage, so it must be
// byte-identical on every node.
func AppendBitVector(dst []byte, bits []bool) []byte {
	var count [2]byte
	binary.BigEndian.PutUint16(count[:], uint16(len(bits)))
	dst = append(dst, count[:]...)

	packed := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			packed[i/8] |= 0x80 >> uint(i%8)
		}
	}
	return append(dst, packed...)
}

// CountSetBits returns the number of true entries in the bitmap.
func CountSetBits(bits []bool) int {
	count := 0
	for _, b := range bits {
		if b {
			count++
		}
	}
	return count
}
