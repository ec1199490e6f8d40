package fec

import "fmt"

// ReedSolomon is a narrow-sense, systematic Reed-Solomon code over
// GF(2^8) with primitive polynomial 0x11D. N is the codeword length,
// K the message length; both in symbols (bytes). The P25 air interface
// uses three shapes of this code:
//
//	RS(36,20,17) — HDU link control
//	RS(24,12,13) — LDU1 link control
//	RS(24,16,9)  — LDU2 link control
//
// Decode reports ok=false when the codeword carries more symbol errors
// than the code can correct; callers must not treat that as fatal — it
// means the caller zeroes the LC and continues (spec §4.1, §7).
type ReedSolomon struct {
	N, K int
	gen  []byte // generator polynomial, highest-degree coefficient first
}

// NewReedSolomon constructs the code for the given (n,k) shape. 2t =
// n-k parity symbols are produced by a narrow-sense generator with
// roots at alpha^0..alpha^(2t-1).
func NewReedSolomon(n, k int) *ReedSolomon {
	if n <= k || n > 255 {
		panic(fmt.Sprintf("fec: invalid Reed-Solomon shape (%d,%d)", n, k))
	}
	twoT := n - k
	gen := []byte{1}
	for i := 0; i < twoT; i++ {
		root := gfPow(2, i) // alpha^i, alpha = 2 in this representation
		gen = gfPolyMul(gen, []byte{1, root})
	}
	return &ReedSolomon{N: n, K: k, gen: gen}
}

// Encode takes a K-byte message and returns an N-byte systematic
// codeword: the K message bytes followed by N-K parity bytes.
func (rs *ReedSolomon) Encode(msg []byte) ([]byte, error) {
	if len(msg) != rs.K {
		return nil, fmt.Errorf("fec: reed-solomon encode expects %d bytes, got %d", rs.K, len(msg))
	}
	parityLen := rs.N - rs.K
	// remainder = (msg * x^parityLen) mod gen
	remainder := make([]byte, parityLen)
	scratch := make([]byte, len(msg)+parityLen)
	copy(scratch, msg)
	for i := 0; i < len(msg); i++ {
		coef := scratch[i]
		if coef == 0 {
			continue
		}
		for j, gc := range rs.gen {
			scratch[i+j] ^= gfMul(gc, coef)
		}
	}
	copy(remainder, scratch[len(msg):])
	out := make([]byte, rs.N)
	copy(out, msg)
	copy(out[rs.K:], remainder)
	return out, nil
}

// syndromes computes S_0..S_{2t-1} for a received codeword, treated
// highest-degree-first (codeword[i] is the coefficient of x^(n-1-i)).
func (rs *ReedSolomon) syndromes(codeword []byte) []byte {
	twoT := rs.N - rs.K
	synd := make([]byte, twoT)
	for j := 0; j < twoT; j++ {
		root := gfPow(2, j)
		// Horner evaluation of codeword(x) at alpha^j, codeword[0] is
		// the coefficient of the highest degree term.
		y := byte(0)
		for _, c := range codeword {
			y = gfMul(y, root) ^ c
		}
		synd[j] = y
	}
	return synd
}

func syndromesAllZero(s []byte) bool {
	for _, v := range s {
		if v != 0 {
			return false
		}
	}
	return true
}

// berlekampMassey computes the error-locator polynomial for the given
// syndromes. Returns the locator (highest-degree first) and the number
// of errors it implies.
func berlekampMassey(synd []byte) []byte {
	c := make([]byte, len(synd)+1)
	b := make([]byte, len(synd)+1)
	c[0], b[0] = 1, 1
	l := 0
	m := 1
	bb := byte(1)

	for n := 0; n < len(synd); n++ {
		delta := synd[n]
		for i := 1; i <= l; i++ {
			delta ^= gfMul(c[i], synd[n-i])
		}
		if delta == 0 {
			m++
		} else if 2*l <= n {
			t := make([]byte, len(c))
			copy(t, c)
			coef := gfDiv(delta, bb)
			for i := 0; i < len(b); i++ {
				if i+m < len(c) {
					c[i+m] ^= gfMul(coef, b[i])
				}
			}
			l = n + 1 - l
			copy(b, t)
			bb = delta
			m = 1
		} else {
			coef := gfDiv(delta, bb)
			for i := 0; i < len(b); i++ {
				if i+m < len(c) {
					c[i+m] ^= gfMul(coef, b[i])
				}
			}
			m++
		}
	}
	loc := make([]byte, l+1)
	for i := 0; i <= l; i++ {
		loc[i] = c[l-i]
	}
	return loc
}

// Decode attempts to correct a copy of a received N-byte codeword and
// returns the corrected K-byte message; codeword itself is not modified. ok is false when the codeword
// has more errors than the code can correct — the caller must not
// trust the returned bytes in that case.
func (rs *ReedSolomon) Decode(codeword []byte) (msg []byte, ok bool) {
	if len(codeword) != rs.N {
		return nil, false
	}
	word := make([]byte, rs.N)
	copy(word, codeword)

	synd := rs.syndromes(word)
	if syndromesAllZero(synd) {
		return word[:rs.K], true
	}

	locator := berlekampMassey(synd)
	numErrors := len(locator) - 1
	maxErrors := (rs.N - rs.K) / 2
	if numErrors == 0 || numErrors > maxErrors {
		return nil, false
	}

	// Chien search: find roots of the locator, i.e. positions i such
	// that locator(alpha^-i) == 0. Position i in the codeword
	// corresponds to exponent (N-1-i).
	errPos := make([]int, 0, numErrors)
	for i := 0; i < rs.N; i++ {
		x := gfInv(gfPow(2, rs.N-1-i))
		if gfPolyEval(locator, x) == 0 {
			errPos = append(errPos, i)
		}
	}
	if len(errPos) != numErrors {
		return nil, false
	}

	// Error evaluator polynomial: omega(x) = [S(x)*locator(x)] mod x^(2t)
	twoT := rs.N - rs.K
	sPoly := make([]byte, twoT) // lowest degree first for convolution below
	for i, s := range synd {
		sPoly[i] = s
	}
	locLow := make([]byte, len(locator))
	for i, c := range locator {
		locLow[len(locator)-1-i] = c
	}
	conv := make([]byte, twoT)
	for i := 0; i < twoT; i++ {
		var acc byte
		for j := 0; j <= i; j++ {
			if j < len(sPoly) && (i-j) < len(locLow) {
				acc ^= gfMul(sPoly[j], locLow[i-j])
			}
		}
		conv[i] = acc
	}

	// locator derivative (formal derivative over GF(2): drop even-power terms)
	derivLow := make([]byte, len(locLow))
	for i := 1; i < len(locLow); i += 2 {
		derivLow[i-1] = locLow[i]
	}

	for _, pos := range errPos {
		x := gfPow(2, rs.N-1-pos)
		xInv := gfInv(x)

		// omega(xInv) using low-degree-first conv
		var omega byte
		xp := byte(1)
		for _, c := range conv {
			omega ^= gfMul(c, xp)
			xp = gfMul(xp, xInv)
		}
		var denom byte
		xp = byte(1)
		for _, c := range derivLow {
			denom ^= gfMul(c, xp)
			xp = gfMul(xp, xInv)
		}
		if denom == 0 {
			return nil, false
		}
		magnitude := gfMul(omega, gfInv(denom))
		magnitude = gfMul(magnitude, x) // Forney factor X_k: the generator's first root is alpha^0
		word[pos] ^= magnitude
	}

	synd2 := rs.syndromes(word)
	if !syndromesAllZero(synd2) {
		return nil, false
	}
	return word[:rs.K], true
}
