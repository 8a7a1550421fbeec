package streebog

import "encoding/binary"

// word512 is the internal 512-bit state unit: the chaining value h,
// the bit-length counter N, the running checksum Sigma, the message
// block buffer, and every intermediate produced by the compression
// function all share this representation.
type word512 [64]byte

func (w *word512) xor(a, b *word512) {
	for i := range w {
		w[i] = a[i] ^ b[i]
	}
}

// lps applies the substitution (pi), transposition (tau) and linear
// (a) stages in one pass, using the precalculated ax8 tables so the
// three stages never need to be materialized separately.
func lps(out, in *word512) {
	for col := 0; col < 8; col++ {
		var word uint64
		for row := 0; row < 8; row++ {
			word ^= ax8[row][in[row*8+col]]
		}
		binary.LittleEndian.PutUint64(out[col*8:col*8+8], word)
	}
}

// xlps computes lps(a xor b) into out, the combined step the
// compression function and key schedule both lean on.
func xlps(out, a, b *word512) {
	var tmp word512
	tmp.xor(a, b)
	lps(out, &tmp)
}

// e is the 12-round, 13-subkey block transform at the heart of g_N:
// E(k, m) with k = lps(h xor n).
func e(k *word512, m *word512) word512 {
	key := *k
	var state, tmp word512
	xlps(&state, &key, m)

	xlps(&tmp, &key, &c[0])
	key = tmp

	for i := 1; i < 12; i++ {
		xlps(&tmp, &key, &state)
		state = tmp
		xlps(&tmp, &key, &c[i])
		key = tmp
	}

	var out word512
	out.xor(&key, &state)
	return out
}

// g is the compression function g_N(h, n, m) = E(lps(h xor n), m) xor h xor m.
func g(h *word512, n *word512, m *word512) word512 {
	var hn word512
	hn.xor(h, n)
	var key word512
	lps(&key, &hn)

	out := e(&key, m)
	out.xor(&out, h)
	out.xor(&out, m)
	return out
}

// add512 performs 512-bit addition modulo 2^512 of two little-endian
// byte arrays interpreted as a single big integer, used to update N
// and Sigma.
func add512(dst, a, b *word512) {
	var carry uint16
	for i := 0; i < 64; i++ {
		sum := uint16(a[i]) + uint16(b[i]) + carry
		dst[i] = byte(sum)
		carry = sum >> 8
	}
}

// addBits adds a little bit-count (expressed as a uint64) to a
// 512-bit accumulator, used to update N by 512 per full block or by
// the exact remaining bit count during finalization.
func addBits(dst, acc *word512, bits uint64) {
	var delta word512
	binary.LittleEndian.PutUint64(delta[:8], bits)
	add512(dst, acc, &delta)
}
