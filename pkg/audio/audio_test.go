package audio

import "testing"

func TestRingPushPopOrder(t *testing.T) {
	var r Ring
	var frame1, frame2 [SamplesPerFrame]int16
	for i := range frame1 {
		frame1[i] = int16(i)
		frame2[i] = int16(i + 1000)
	}
	r.Push(frame1)
	r.Push(frame2)

	got1, ok := r.Pop()
	if !ok || got1 != frame1 {
		t.Fatalf("first pop mismatch")
	}
	got2, ok := r.Pop()
	if !ok || got2 != frame2 {
		t.Fatalf("second pop mismatch")
	}
	if _, ok := r.Pop(); ok {
		t.Fatalf("expected empty ring")
	}
}

func TestApplyGainClips(t *testing.T) {
	samples := []int16{30000, -30000, 100}
	ApplyGain(samples, 2.0)
	if samples[0] != 32767 {
		t.Fatalf("expected positive clip, got %d", samples[0])
	}
	if samples[1] != -32768 {
		t.Fatalf("expected negative clip, got %d", samples[1])
	}
	if samples[2] != 200 {
		t.Fatalf("expected unclipped scale, got %d", samples[2])
	}
}

func TestULawRoundTripApproximate(t *testing.T) {
	for _, sample := range []int16{0, 100, -100, 5000, -5000, 30000, -30000} {
		mu := ULawEncode(sample)
		back := ULawDecode(mu)
		diff := int(sample) - int(back)
		if diff < 0 {
			diff = -diff
		}
		// mu-law is lossy; tolerate the companding error.
		if diff > 1000 {
			t.Fatalf("sample %d: round trip too lossy, got %d (diff %d)", sample, back, diff)
		}
	}
}
