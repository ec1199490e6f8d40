package vocoder

import "testing"

func TestNullCodecRoundTrip(t *testing.T) {
	var c NullCodec

	var imbe [IMBEBytes]byte
	pcm, err := c.Decode(imbe)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i, s := range pcm {
		if s != 0 {
			t.Fatalf("sample %d: expected silence, got %d", i, s)
		}
	}

	out, err := c.Encode(pcm)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for i, b := range out {
		if b != 0 {
			t.Fatalf("byte %d: expected zero codeword, got %d", i, b)
		}
	}
}
