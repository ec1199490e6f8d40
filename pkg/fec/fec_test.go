package fec

import "testing"

func TestGolayRoundTrip(t *testing.T) {
	for data := 0; data < 64; data++ {
		cw := GolayEncode(byte(data))
		got, ok := GolayDecode(cw)
		if !ok {
			t.Fatalf("data %d: decode reported uncorrectable on a clean codeword", data)
		}
		if got != byte(data) {
			t.Fatalf("data %d: round trip mismatch, got %d", data, got)
		}
	}
}

func TestGolayCorrectsSingleBitError(t *testing.T) {
	for data := 0; data < 64; data++ {
		cw := GolayEncode(byte(data))
		for bit := 0; bit < 18; bit++ {
			flipped := cw ^ (1 << uint(bit))
			got, ok := GolayDecode(flipped)
			if !ok {
				t.Fatalf("data %d bit %d: single-bit error reported uncorrectable", data, bit)
			}
			if got != byte(data) {
				t.Fatalf("data %d bit %d: corrected to %d, want %d", data, bit, got, data)
			}
		}
	}
}

func TestHammingRoundTrip(t *testing.T) {
	for data := 0; data < 64; data++ {
		cw := HammingEncode(byte(data))
		got, ok := HammingDecode(cw)
		if !ok {
			t.Fatalf("data %d: decode reported uncorrectable on a clean codeword", data)
		}
		if got != byte(data) {
			t.Fatalf("data %d: round trip mismatch, got %d", data, got)
		}
	}
}

func TestHammingCorrectsSingleBitError(t *testing.T) {
	for data := 0; data < 64; data++ {
		cw := HammingEncode(byte(data))
		for bit := 0; bit < 10; bit++ {
			flipped := cw ^ (1 << uint(bit))
			got, ok := HammingDecode(flipped)
			if !ok {
				t.Fatalf("data %d bit %d: single-bit error reported uncorrectable", data, bit)
			}
			if got != byte(data) {
				t.Fatalf("data %d bit %d: corrected to %d, want %d", data, bit, got, data)
			}
		}
	}
}

func testReedSolomonRoundTrip(t *testing.T, rs *ReedSolomon) {
	t.Helper()
	msg := make([]byte, rs.K)
	for i := range msg {
		msg[i] = byte(i*37 + 11)
	}
	cw, err := rs.Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, ok := rs.Decode(cw)
	if !ok {
		t.Fatalf("decode reported uncorrectable on a clean codeword")
	}
	for i := range msg {
		if got[i] != msg[i] {
			t.Fatalf("round trip mismatch at byte %d: got %d want %d", i, got[i], msg[i])
		}
	}
}

func testReedSolomonCorrectsMaxErrors(t *testing.T, rs *ReedSolomon) {
	t.Helper()
	msg := make([]byte, rs.K)
	for i := range msg {
		msg[i] = byte(i*53 + 7)
	}
	cw, err := rs.Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	maxErrors := (rs.N - rs.K) / 2
	corrupted := make([]byte, len(cw))
	copy(corrupted, cw)
	for i := 0; i < maxErrors; i++ {
		corrupted[i] ^= 0xFF
	}
	got, ok := rs.Decode(corrupted)
	if !ok {
		t.Fatalf("decode reported uncorrectable with exactly %d symbol errors (the code's limit)", maxErrors)
	}
	for i := range msg {
		if got[i] != msg[i] {
			t.Fatalf("correction mismatch at byte %d: got %d want %d", i, got[i], msg[i])
		}
	}
}

func TestReedSolomonHDU(t *testing.T) {
	testReedSolomonRoundTrip(t, RSHDU)
	testReedSolomonCorrectsMaxErrors(t, RSHDU)
}

func TestReedSolomonLDU1(t *testing.T) {
	testReedSolomonRoundTrip(t, RSLDU1)
	testReedSolomonCorrectsMaxErrors(t, RSLDU1)
}

func TestReedSolomonLDU2(t *testing.T) {
	testReedSolomonRoundTrip(t, RSLDU2)
	testReedSolomonCorrectsMaxErrors(t, RSLDU2)
}

func TestReedSolomonDetectsUncorrectable(t *testing.T) {
	rs := RSLDU1
	msg := make([]byte, rs.K)
	cw, err := rs.Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	maxErrors := (rs.N - rs.K) / 2
	for i := 0; i <= maxErrors+2 && i < len(cw); i++ {
		cw[i] ^= 0xFF
	}
	if _, ok := rs.Decode(cw); ok {
		t.Fatalf("decode reported ok with more errors than the code can correct")
	}
}
