package dfsi

import "testing"

func TestPackUnpackVoiceRoundTrip(t *testing.T) {
	var imbe [RawIMBELen]byte
	for i := range imbe {
		imbe[i] = byte(i + 1)
	}
	lsd := [2]byte{0xAA, 0xBB}
	for n := 0; n < 9; n++ {
		var nibbleLen int
		switch {
		case n == 8:
			nibbleLen = frameLengths[n] - 1 - RawIMBELen - 2
		default:
			nibbleLen = frameLengths[n] - 1 - RawIMBELen
		}
		nibbles := make([]byte, nibbleLen)
		for i := range nibbles {
			nibbles[i] = byte(0xF0 + i)
		}
		buf, err := PackLDU1Voice(n, imbe, nibbles, lsd)
		if err != nil {
			t.Fatalf("pack position %d: %v", n, err)
		}
		if len(buf) != frameLengths[n] {
			t.Fatalf("position %d: wrong length %d want %d", n, len(buf), frameLengths[n])
		}
		gotIMBE, gotNibbles, gotLSD, err := UnpackVoice(n, buf)
		if err != nil {
			t.Fatalf("unpack position %d: %v", n, err)
		}
		if gotIMBE != imbe {
			t.Fatalf("position %d: IMBE mismatch", n)
		}
		if len(gotNibbles) != len(nibbles) {
			t.Fatalf("position %d: nibble length mismatch got %d want %d", n, len(gotNibbles), len(nibbles))
		}
		if n == 8 && gotLSD != lsd {
			t.Fatalf("position 8: LSD mismatch: got %v want %v", gotLSD, lsd)
		}
	}
}

func TestSuperframeIMBEOffsets(t *testing.T) {
	var sf Superframe
	for n := 0; n < 9; n++ {
		cell := sf.IMBE(n)
		for i := range cell {
			cell[i] = byte(n)
		}
	}
	for n := 0; n < 9; n++ {
		off := VoiceOffsets[n]
		for i := 0; i < RawIMBELen; i++ {
			if sf[off+i] != byte(n) {
				t.Fatalf("offset %d: got %d want %d", off+i, sf[off+i], n)
			}
		}
	}
}

func TestExpectedTags(t *testing.T) {
	tags1 := ExpectedTags(false)
	if tags1[0] != TagLDU1Voice1 || tags1[8] != TagLDU1Voice9 {
		t.Fatalf("LDU1 tags wrong: %v", tags1)
	}
	tags2 := ExpectedTags(true)
	if tags2[0] != TagLDU2Voice10 || tags2[8] != TagLDU2Voice18 {
		t.Fatalf("LDU2 tags wrong: %v", tags2)
	}
}
