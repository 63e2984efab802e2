// Copyright 2021 by the minilora authors, see LICENSE file

// Package varint packs arrays of signed integers into a compact
// variable-length byte form suited to the small payload budget of a LoRa
// uplink. Values are sign-folded so small magnitudes of either sign stay
// short, then emitted in 7-bit groups with the top bit marking the last byte
// of each value.
package varint

// Encode packs an array of signed ints into varint bytes.
func Encode(vals []int) []byte {
	buf := []byte{}
	for _, v := range vals {
		u := uint64(v) << 1
		if v < 0 {
			u = ^u
		}
		if u == 0 {
			buf = append(buf, 0x80)
			continue
		}
		var tmp [10]byte
		i := len(tmp)
		for ; u != 0; u >>= 7 {
			i--
			tmp[i] = byte(u & 0x7F)
		}
		tmp[len(tmp)-1] |= 0x80
		buf = append(buf, tmp[i:]...)
	}
	return buf
}

// Decode unpacks varint bytes into an array of signed ints. Trailing bytes of
// an incomplete value are ignored.
func Decode(buf []byte) []int {
	vals := []int{}
	acc := 0
	for _, b := range buf {
		acc = acc<<7 | int(b&0x7F)
		if b&0x80 == 0 {
			continue
		}
		if acc&1 == 0 {
			vals = append(vals, int(uint64(acc)>>1))
		} else {
			vals = append(vals, int(^(uint64(acc) >> 1)))
		}
		acc = 0
	}
	return vals
}
