// Package metrics exposes P25 call-engine counters and gauges via the
// Prometheus client library.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the Prometheus instruments for one bridge instance.
// Every call into it is cheap and lock-free (the client library's
// counters/gauges are already safe for concurrent use), so it can be
// called directly from the hot RX/TX paths.
type Collector struct {
	callsStarted   prometheus.Counter
	callsEnded     prometheus.Counter
	callsIgnored   prometheus.Counter
	callDuration   prometheus.Histogram
	framesDropped  *prometheus.CounterVec
	framesReceived prometheus.Counter
	framesSent     prometheus.Counter
	bytesReceived  prometheus.Counter
	bytesSent      prometheus.Counter
	activeCalls    prometheus.Gauge
	rsUncorrectable prometheus.Counter
}

// NewCollector registers the bridge's metrics against reg. Pass
// prometheus.DefaultRegisterer for normal use, or a fresh
// prometheus.NewRegistry() in tests to avoid cross-test collisions.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		callsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "p25bridge_calls_started_total",
			Help: "Total number of P25 calls that reached active (clear or encrypted) state.",
		}),
		callsEnded: factory.NewCounter(prometheus.CounterOpts{
			Name: "p25bridge_calls_ended_total",
			Help: "Total number of P25 RX calls that ended (TDU received or timeout).",
		}),
		callsIgnored: factory.NewCounter(prometheus.CounterOpts{
			Name: "p25bridge_calls_ignored_total",
			Help: "Total number of P25 calls ignored due to algorithm/key mismatch.",
		}),
		callDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "p25bridge_call_duration_seconds",
			Help:    "Distribution of completed call durations.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		framesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "p25bridge_frames_dropped_total",
			Help: "Total number of inbound network frames dropped, by reason.",
		}, []string{"reason"}),
		framesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "p25bridge_frames_received_total",
			Help: "Total number of network frames received.",
		}),
		framesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "p25bridge_frames_sent_total",
			Help: "Total number of network frames sent.",
		}),
		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "p25bridge_bytes_received_total",
			Help: "Total bytes received on the network socket.",
		}),
		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "p25bridge_bytes_sent_total",
			Help: "Total bytes sent on the network socket.",
		}),
		activeCalls: factory.NewGauge(prometheus.GaugeOpts{
			Name: "p25bridge_active_calls",
			Help: "Number of RX calls currently active.",
		}),
		rsUncorrectable: factory.NewCounter(prometheus.CounterOpts{
			Name: "p25bridge_rs_uncorrectable_total",
			Help: "Total number of Reed-Solomon codewords that could not be corrected.",
		}),
	}
}

func (c *Collector) CallStarted()            { c.callsStarted.Inc(); c.activeCalls.Inc() }
func (c *Collector) CallEnded(durationSec float64) {
	c.callsEnded.Inc()
	c.callDuration.Observe(durationSec)
	c.activeCalls.Dec()
}
func (c *Collector) CallIgnored()              { c.callsIgnored.Inc() }
func (c *Collector) FrameDropped(reason string) { c.framesDropped.WithLabelValues(reason).Inc() }
func (c *Collector) FrameReceived(n int)        { c.framesReceived.Inc(); c.bytesReceived.Add(float64(n)) }
func (c *Collector) FrameSent(n int)            { c.framesSent.Inc(); c.bytesSent.Add(float64(n)) }
func (c *Collector) ReedSolomonUncorrectable()  { c.rsUncorrectable.Inc() }
