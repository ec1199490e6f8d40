// Package dfsi packs and unpacks P25 DFSI (Digital Fixed Station
// Interface) voice frames: the nine IMBE codewords of an LDU1 or LDU2
// superframe, each carried as a tagged, fixed-length frame alongside
// Hamming-protected LC or MI nibbles and low-speed data.
package dfsi

import "fmt"

// RawIMBELen is the length, in bytes, of one IMBE codeword cell inside
// a superframe buffer.
const RawIMBELen = 11

// SuperframeLen is the size of one LDU1 or LDU2 superframe buffer.
const SuperframeLen = 225

// VoiceOffsets are the fixed byte offsets of the nine IMBE codewords
// within a superframe buffer.
var VoiceOffsets = [9]int{10, 26, 55, 80, 105, 130, 155, 180, 204}

// DFSI frame-type tags, one per voice position, LDU1 then LDU2.
const (
	TagLDU1Voice1 = 0x62
	TagLDU1Voice9 = 0x6A
	TagLDU2Voice10 = 0x6B
	TagLDU2Voice18 = 0x73
)

// frameLengths are the fixed wire length, in bytes, of each of the 9
// voice positions within one LDU (22,14,17,17,17,17,17,17,16).
var frameLengths = [9]int{22, 14, 17, 17, 17, 17, 17, 17, 16}

// NullIMBE is the well-known silence pattern used to pad a superframe
// that ends mid-call while clear.
var NullIMBE = [RawIMBELen]byte{0x00, 0x01, 0x43, 0x08, 0x70, 0x20, 0x8A, 0x48, 0x20, 0x00, 0x00}

// EncryptedNullIMBE is the silence pattern used to pad a superframe
// when the call is encrypted; it is inserted as-is, not passed through
// the keystream.
var EncryptedNullIMBE = [RawIMBELen]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// Superframe is a 225-byte LDU1 or LDU2 buffer holding nine IMBE
// codewords at the fixed VoiceOffsets.
type Superframe [SuperframeLen]byte

// IMBE returns the n-th (0-8) codeword cell as a slice into the
// underlying buffer; mutations through it affect the superframe.
func (s *Superframe) IMBE(n int) []byte {
	off := VoiceOffsets[n]
	return s[off : off+RawIMBELen]
}

// Reset zeroes the buffer; the call engine resets its superframe
// buffers when an RX or TX call starts.
func (s *Superframe) Reset() {
	*s = Superframe{}
}

// VoiceFrame is one of the 9 packed DFSI voice positions within an
// LDU1 or LDU2 transmission.
type VoiceFrame struct {
	Tag      byte
	IMBE     [RawIMBELen]byte
	Nibbles  []byte // Hamming-protected LC (LDU1 pos 3-8) or MI (LDU2 pos 12-17) nibbles
	LSD      [2]byte
	HasLSD   bool
}

// PackLDU1Voice serialises voice position n (0-8) of an LDU1
// superframe to its fixed-length DFSI wire representation.
func PackLDU1Voice(n int, imbe [RawIMBELen]byte, nibbles []byte, lsd [2]byte) ([]byte, error) {
	return packVoice(n, byte(TagLDU1Voice1+n), imbe, nibbles, lsd, n == 8)
}

// PackLDU2Voice serialises voice position n (0-8, i.e. voice 10-18)
// of an LDU2 superframe to its fixed-length DFSI wire representation.
func PackLDU2Voice(n int, imbe [RawIMBELen]byte, nibbles []byte, lsd [2]byte) ([]byte, error) {
	return packVoice(n, byte(TagLDU2Voice10+n), imbe, nibbles, lsd, n == 8)
}

func packVoice(n int, tag byte, imbe [RawIMBELen]byte, nibbles []byte, lsd [2]byte, withLSD bool) ([]byte, error) {
	if n < 0 || n > 8 {
		return nil, fmt.Errorf("dfsi: voice position out of range: %d", n)
	}
	length := frameLengths[n]
	out := make([]byte, length)
	out[0] = tag
	copy(out[1:1+RawIMBELen], imbe[:])
	pos := 1 + RawIMBELen
	if withLSD {
		out[pos] = lsd[0]
		out[pos+1] = lsd[1]
		pos += 2
	}
	copy(out[pos:], nibbles)
	return out, nil
}

// UnpackVoice parses a fixed-length DFSI voice frame for position n
// (0-8) and returns the IMBE codeword, the trailing nibble bytes, and
// any LSD carried by this position (only position 8 carries LSD).
func UnpackVoice(n int, buf []byte) (imbe [RawIMBELen]byte, nibbles []byte, lsd [2]byte, err error) {
	if n < 0 || n > 8 {
		return imbe, nil, lsd, fmt.Errorf("dfsi: voice position out of range: %d", n)
	}
	want := frameLengths[n]
	if len(buf) != want {
		return imbe, nil, lsd, fmt.Errorf("dfsi: voice position %d expects %d bytes, got %d", n, want, len(buf))
	}
	copy(imbe[:], buf[1:1+RawIMBELen])
	pos := 1 + RawIMBELen
	if n == 8 {
		lsd[0] = buf[pos]
		lsd[1] = buf[pos+1]
		pos += 2
	}
	nibbles = buf[pos:]
	return imbe, nibbles, lsd, nil
}

// ExpectedTags returns the nine frame-type tags expected for an LDU1
// or LDU2 payload, used to validate incoming DFSI markers before
// decoding (spec step 11/12: "verify the nine DFSI frame-type bytes").
func ExpectedTags(isLDU2 bool) [9]byte {
	var tags [9]byte
	base := byte(TagLDU1Voice1)
	if isLDU2 {
		base = TagLDU2Voice10
	}
	for i := range tags {
		tags[i] = base + byte(i)
	}
	return tags
}

// FrameLengths exposes the fixed per-position byte lengths so callers
// can walk a concatenated DFSI payload without re-deriving offsets.
func FrameLengths() [9]int {
	return frameLengths
}
