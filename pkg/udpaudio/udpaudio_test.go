package udpaudio

import "testing"

func TestRTPHeaderRoundTrip(t *testing.T) {
	h := RTPHeader{PayloadType: RTPPayloadTypeG711, Sequence: 42, Timestamp: 8000, SSRC: 0xDEADBEEF}
	buf := h.Encode()
	got, err := ParseRTPHeader(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, h)
	}
}

func TestUSRPHeaderRoundTrip(t *testing.T) {
	h := USRPHeader{Sequence: 7, PTT: true}
	buf := h.Encode()
	if len(buf) != USRPHeaderLen {
		t.Fatalf("wrong length: %d", len(buf))
	}
	got, err := ParseUSRPHeader(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, h)
	}
}

func TestUSRPEOTHasNoPTT(t *testing.T) {
	h := USRPHeader{Sequence: 1, PTT: false}
	buf := h.Encode()
	got, err := ParseUSRPHeader(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.PTT {
		t.Fatalf("EOT header must not carry PTT")
	}
}

func TestRawRoundTripWithMetadata(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	buf := EncodeRaw(pcm, 10, 500, true)
	gotPCM, dst, src, err := DecodeRaw(buf, true)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(gotPCM) != string(pcm) || dst != 10 || src != 500 {
		t.Fatalf("round trip mismatch: pcm=%v dst=%d src=%d", gotPCM, dst, src)
	}
}

func TestSequenceStateMonotoneAndWraps(t *testing.T) {
	var s SequenceState
	s.Seq = RTPEndOfCallSeq - 1
	first, _ := s.Next()
	if first != RTPEndOfCallSeq-1 {
		t.Fatalf("first call should return starting seq unchanged, got %d", first)
	}
	second, _ := s.Next()
	if second != 0 {
		t.Fatalf("expected wrap to 0 past RTPEndOfCallSeq, got %d", second)
	}
}

func TestSequenceStateTimestampAdvances(t *testing.T) {
	var s SequenceState
	_, ts0 := s.Next()
	_, ts1 := s.Next()
	if ts1-ts0 != RTPTimestampStep {
		t.Fatalf("timestamp did not advance by %d: got delta %d", RTPTimestampStep, ts1-ts0)
	}
}

func TestCheckOrderInOrderLostOutOfOrder(t *testing.T) {
	if r := CheckOrder(0, false, 5); r != RXInOrder {
		t.Fatalf("first packet should be in order, got %v", r)
	}
	if r := CheckOrder(10, true, 11); r != RXInOrder {
		t.Fatalf("expected in order, got %v", r)
	}
	if r := CheckOrder(10, true, 13); r != RXLost {
		t.Fatalf("expected lost, got %v", r)
	}
	if r := CheckOrder(10, true, 9); r != RXOutOfOrder {
		t.Fatalf("expected out of order, got %v", r)
	}
}

func TestCheckOrderAcrossWrap(t *testing.T) {
	// last=65534, seq=0 (wrapped past RTPEndOfCallSeq-adjacent range):
	// delta = int16(0 - 65534) = 2, which is a two-packet gap, not a
	// false out-of-order classification.
	if r := CheckOrder(65534, true, 0); r != RXLost {
		t.Fatalf("expected lost across wrap, got %v", r)
	}
	if r := CheckOrder(65535-1, true, 65535); r != RXInOrder {
		t.Fatalf("expected in order approaching wrap, got %v", r)
	}
}

func TestSendQueueFIFO(t *testing.T) {
	var q SendQueue
	q.Push(Request{DstID: 1})
	q.Push(Request{DstID: 2})
	r1, ok := q.Pop()
	if !ok || r1.DstID != 1 {
		t.Fatalf("expected first request first")
	}
	r2, ok := q.Pop()
	if !ok || r2.DstID != 2 {
		t.Fatalf("expected second request second")
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("expected empty queue")
	}
}
