// Package indextable encodes and decodes the QVD index table: one
// fixed-width, bit-packed record per row holding each column's dictionary
// position.
//
// A record is read as a little-endian integer of RecordByteSize bytes. A
// column occupies bits [BitOffset, BitOffset+BitWidth) of that integer, so
// the first column sits at the least significant bits. Adding the column's
// Bias to the extracted value yields the dictionary position; a negative
// position is null.
package indextable

// FieldGeometry places one column inside a record.
type FieldGeometry struct {
	Name      string
	BitOffset int
	BitWidth  int
	Bias      int
}

// extract reads width bits starting at bit off of the little-endian record.
func extract(rec []byte, off, width int) uint64 {
	var v uint64
	for i := 0; i < width; {
		bit := off + i
		shift := bit & 7
		n := min(8-shift, width-i)
		mask := byte(0xFF >> (8 - n))
		v |= uint64((rec[bit>>3]>>shift)&mask) << i
		i += n
	}
	return v
}

// deposit writes the low width bits of v starting at bit off of rec. The
// target bits must be zero.
func deposit(rec []byte, off, width int, v uint64) {
	for i := 0; i < width; {
		bit := off + i
		shift := bit & 7
		n := min(8-shift, width-i)
		mask := byte(0xFF >> (8 - n))
		rec[bit>>3] |= (byte(v>>i) & mask) << shift
		i += n
	}
}
