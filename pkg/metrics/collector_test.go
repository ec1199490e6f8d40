package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestCollector() *Collector {
	return NewCollector(prometheus.NewRegistry())
}

func TestCollector_CallLifecycle(t *testing.T) {
	c := newTestCollector()

	c.CallStarted()
	if got := testutil.ToFloat64(c.activeCalls); got != 1 {
		t.Errorf("expected 1 active call, got %v", got)
	}
	if got := testutil.ToFloat64(c.callsStarted); got != 1 {
		t.Errorf("expected 1 call started, got %v", got)
	}

	c.CallEnded(1.5)
	if got := testutil.ToFloat64(c.activeCalls); got != 0 {
		t.Errorf("expected 0 active calls after end, got %v", got)
	}
	if got := testutil.ToFloat64(c.callsEnded); got != 1 {
		t.Errorf("expected 1 call ended, got %v", got)
	}
}

func TestCollector_CallIgnored(t *testing.T) {
	c := newTestCollector()
	c.CallIgnored()
	if got := testutil.ToFloat64(c.callsIgnored); got != 1 {
		t.Errorf("expected 1 ignored call, got %v", got)
	}
}

func TestCollector_FrameDropReasons(t *testing.T) {
	c := newTestCollector()
	c.FrameDropped("dst-mismatch")
	c.FrameDropped("dst-mismatch")
	c.FrameDropped("src-zero")

	if got := testutil.ToFloat64(c.framesDropped.WithLabelValues("dst-mismatch")); got != 2 {
		t.Errorf("expected 2 dst-mismatch drops, got %v", got)
	}
	if got := testutil.ToFloat64(c.framesDropped.WithLabelValues("src-zero")); got != 1 {
		t.Errorf("expected 1 src-zero drop, got %v", got)
	}
}

func TestCollector_FrameAndByteCounters(t *testing.T) {
	c := newTestCollector()
	c.FrameReceived(128)
	c.FrameSent(64)

	if got := testutil.ToFloat64(c.framesReceived); got != 1 {
		t.Errorf("expected 1 frame received, got %v", got)
	}
	if got := testutil.ToFloat64(c.bytesReceived); got != 128 {
		t.Errorf("expected 128 bytes received, got %v", got)
	}
	if got := testutil.ToFloat64(c.bytesSent); got != 64 {
		t.Errorf("expected 64 bytes sent, got %v", got)
	}
}

func TestCollector_ReedSolomonUncorrectable(t *testing.T) {
	c := newTestCollector()
	c.ReedSolomonUncorrectable()
	c.ReedSolomonUncorrectable()
	if got := testutil.ToFloat64(c.rsUncorrectable); got != 2 {
		t.Errorf("expected 2 uncorrectable codewords, got %v", got)
	}
}
