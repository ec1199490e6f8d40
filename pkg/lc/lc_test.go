package lc

import "testing"

func TestGroupLCRoundTrip(t *testing.T) {
	in := &LC{
		LCO:       OpcodeGroup,
		MFID:      0x00,
		SrcID:     0x102030,
		DstID:     0xABCD,
		Priority:  3,
		Emergency: true,
		Encrypted: true,
		Group:     true,
	}
	buf := in.EncodeLDU1()
	out, err := DecodeLDU1(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.LCO != OpcodeGroup || out.SrcID != in.SrcID || out.DstID != in.DstID {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if !out.Emergency || !out.Encrypted {
		t.Fatalf("flags lost in round trip: %+v", out)
	}
	if out.Priority != 3 {
		t.Fatalf("priority mismatch: got %d want 3", out.Priority)
	}
}

func TestPriorityZeroRemappedToFour(t *testing.T) {
	in := &LC{LCO: OpcodeGroup, MFID: 0x00, SrcID: 1, DstID: 2, Priority: 0}
	buf := in.EncodeLDU1()
	out, err := DecodeLDU1(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Priority != 4 {
		t.Fatalf("priority 0 not remapped: got %d", out.Priority)
	}
}

func TestNonStandardMFIDPassesThroughOpaquely(t *testing.T) {
	// The 9-byte LDU1 record reserves 2 bytes for LCO/MFID, leaving 7
	// bytes (56 bits) for the opaque remainder.
	in := &LC{MFID: 0x55, RSValue: 0x01020304050607, NonStandardMFID: true}
	buf := in.EncodeLDU1()
	out, err := DecodeLDU1(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.LCO != OpcodeGroup {
		t.Fatalf("non-standard MFID did not collapse to GROUP: got LCO 0x%02X", out.LCO)
	}
	if out.RSValue != in.RSValue {
		t.Fatalf("RSValue not preserved verbatim: got 0x%014X want 0x%014X", out.RSValue, in.RSValue)
	}
	if out.MFID != in.MFID {
		t.Fatalf("MFID not preserved: got 0x%02X", out.MFID)
	}
}

func TestHDURoundTrip(t *testing.T) {
	in := &LC{MFID: 0x00, AlgID: AlgAES256, KeyID: 0x1234, DstID: 0xBEEF}
	copy(in.MI[:], []byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	buf := in.EncodeHDU()
	out, err := DecodeHDU(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.MI != in.MI || out.AlgID != in.AlgID || out.KeyID != in.KeyID || out.DstID != in.DstID {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestLDU2UnencryptedForcesZeroMIAndKey(t *testing.T) {
	in := &LC{AlgID: AlgUnencrypted, KeyID: 0x9999}
	copy(in.MI[:], []byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	buf := in.EncodeLDU2()
	out, err := DecodeLDU2(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.KeyID != 0 {
		t.Fatalf("key ID not forced to zero: got 0x%04X", out.KeyID)
	}
	var zero [MILen]byte
	if out.MI != zero {
		t.Fatalf("MI not forced to zero: %v", out.MI)
	}
}

func TestLDU2EncryptedPreservesMIAndKey(t *testing.T) {
	in := &LC{AlgID: AlgAES256, KeyID: 0x4242}
	copy(in.MI[:], []byte{9, 8, 7, 6, 5, 4, 3, 2, 1})
	buf := in.EncodeLDU2()
	out, err := DecodeLDU2(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.MI != in.MI || out.KeyID != in.KeyID {
		t.Fatalf("encrypted LDU2 lost MI/key: %+v", out)
	}
}
