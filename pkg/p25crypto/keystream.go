// Package p25crypto manages the per-call keystream state for the three
// P25 TEK algorithms (AES-256-OFB, ARC4/"ADP", DES-OFB) and the message
// indicator (MI) chaining that advances across superframe boundaries.
//
// A Keystream XORs only the 88 valid bits of each IMBE codeword (11
// bytes exactly — nothing past the codeword boundary is touched).
package p25crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rc4"
	"fmt"

	"golang.org/x/crypto/des"

	"github.com/dbehnke/p25bridge/pkg/lc"
)

// ADPDiscardBytes is the minimum number of leading RC4 keystream bytes
// discarded before use, per the ADP profile.
const ADPDiscardBytes = 267

// ivPrefix pads a 9-byte MI out to a 16-byte AES IV.
var ivPrefix = [7]byte{0x4E, 0x41, 0x43, 0x42, 0x49, 0x44, 0x01}

// superframeIMBEBytes is the keystream needed for one LDU1+LDU2
// superframe: 18 IMBE codewords of 11 bytes each.
const superframeIMBEBytes = 18 * 11

// Keystream holds one call's encryption state: the TEK, the current
// MI, and the generated keystream for the active superframe.
type Keystream struct {
	Algorithm lc.Algorithm
	TEK       []byte
	MI        [lc.MILen]byte

	hasValidMI        bool
	hasValidKeystream bool
	stream            []byte
	pos               int
}

// NewKeystream constructs an empty keystream for the given algorithm
// and TEK. Use Load to seed it from an MI observed on the wire.
func NewKeystream(algo lc.Algorithm, tek []byte) *Keystream {
	return &Keystream{Algorithm: algo, TEK: tek}
}

// HasValidMI reports whether a usable MI has been loaded.
func (k *Keystream) HasValidMI() bool { return k.hasValidMI }

// HasValidKeystream reports whether keystream bytes are ready to XOR.
func (k *Keystream) HasValidKeystream() bool { return k.hasValidKeystream }

// Load seeds the keystream from an MI observed on the wire (HDU or
// LDU2) and generates a full superframe's worth of keystream bytes.
// UNENCRYPT loads a zero, invalid keystream and always returns no
// error: callers must check HasValidKeystream before XORing.
func (k *Keystream) Load(mi [lc.MILen]byte) error {
	k.MI = mi
	k.hasValidMI = true
	if k.Algorithm == lc.AlgUnencrypted {
		k.hasValidKeystream = false
		k.stream = nil
		k.pos = 0
		return nil
	}
	stream, err := k.generate(mi)
	if err != nil {
		return err
	}
	k.stream = stream
	k.pos = 0
	k.hasValidKeystream = true
	return nil
}

func (k *Keystream) generate(mi [lc.MILen]byte) ([]byte, error) {
	switch k.Algorithm {
	case lc.AlgAES256:
		return k.generateAES(mi)
	case lc.AlgARC4:
		return k.generateARC4(mi)
	case lc.AlgDES:
		return k.generateDES(mi)
	default:
		return nil, fmt.Errorf("p25crypto: unsupported algorithm 0x%02X", k.Algorithm)
	}
}

func (k *Keystream) generateAES(mi [lc.MILen]byte) ([]byte, error) {
	if len(k.TEK) != 32 {
		return nil, fmt.Errorf("p25crypto: AES-256 requires a 32-byte TEK, got %d", len(k.TEK))
	}
	block, err := aes.NewCipher(k.TEK)
	if err != nil {
		return nil, fmt.Errorf("p25crypto: aes.NewCipher: %w", err)
	}
	var iv [16]byte
	copy(iv[:7], ivPrefix[:])
	copy(iv[7:], mi[:])
	stream := cipher.NewOFB(block, iv[:])
	out := make([]byte, superframeIMBEBytes)
	stream.XORKeyStream(out, out)
	return out, nil
}

func (k *Keystream) generateARC4(mi [lc.MILen]byte) ([]byte, error) {
	key := make([]byte, 0, len(k.TEK)+lc.MILen)
	key = append(key, k.TEK...)
	key = append(key, mi[:]...)
	cipher, err := rc4.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("p25crypto: rc4.NewCipher: %w", err)
	}
	discard := make([]byte, ADPDiscardBytes)
	cipher.XORKeyStream(discard, discard)
	out := make([]byte, superframeIMBEBytes)
	cipher.XORKeyStream(out, out)
	return out, nil
}

func (k *Keystream) generateDES(mi [lc.MILen]byte) ([]byte, error) {
	if len(k.TEK) < 8 {
		return nil, fmt.Errorf("p25crypto: DES requires at least an 8-byte TEK, got %d", len(k.TEK))
	}
	block, err := des.NewCipher(k.TEK[:8])
	if err != nil {
		return nil, fmt.Errorf("p25crypto: des.NewCipher: %w", err)
	}
	iv := mi[1:9]
	stream := cipher.NewOFB(block, iv)
	out := make([]byte, superframeIMBEBytes)
	stream.XORKeyStream(out, out)
	return out, nil
}

// XORCodeword XORs the next 11-byte IMBE codeword's worth of keystream
// into buf in place. Calling this more than 18 times since the last
// Load is a programmer error (a superframe holds exactly 18 voice
// codewords) and XORs zero bytes once the stream is exhausted so a
// stray extra call degrades to a no-op rather than panicking.
func (k *Keystream) XORCodeword(buf []byte) {
	if !k.hasValidKeystream || len(buf) != 11 {
		return
	}
	if k.pos+11 > len(k.stream) {
		return
	}
	for i := 0; i < 11; i++ {
		buf[i] ^= k.stream[k.pos+i]
	}
	k.pos += 11
}

// Clear invalidates the keystream and MI, as required when a call's
// algorithm or key changes mid-stream to something unsupported.
func (k *Keystream) Clear() {
	k.hasValidMI = false
	k.hasValidKeystream = false
	k.stream = nil
	k.pos = 0
	k.MI = [lc.MILen]byte{}
}
