package eventbus

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewPublisher(t *testing.T) {
	config := Config{Enabled: true, Broker: "tcp://localhost:1883", TopicPrefix: "p25/test", ClientID: "test-client", QoS: 1}
	pub := New(config, nil)
	if pub == nil {
		t.Fatal("expected non-nil publisher")
	}
	if pub.config.Broker != config.Broker {
		t.Errorf("expected broker %s, got %s", config.Broker, pub.config.Broker)
	}
}

func TestStartWhenDisabled(t *testing.T) {
	pub := New(Config{Enabled: false}, nil)
	if err := pub.Start(); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	pub := New(Config{Enabled: false}, nil)
	pub.Stop() // must not panic
}

func TestPublishWhenDisabled(t *testing.T) {
	pub := New(Config{Enabled: false, TopicPrefix: "p25/test"}, nil)
	if err := pub.PublishCallStart(CallStartEvent{SrcID: 500, DstID: 10, Timestamp: time.Now()}); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
	if err := pub.PublishCallEnd(CallEndEvent{SrcID: 500, DstID: 10, DurationSec: 3.2, Timestamp: time.Now()}); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
	if err := pub.PublishCallIgnored(CallIgnoredEvent{SrcID: 500, DstID: 10, Reason: "algo mismatch", Timestamp: time.Now()}); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestFormatTopic(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		suffix   string
		expected string
	}{
		{"simple", "p25/bridge", "calls/start", "p25/bridge/calls/start"},
		{"trailing slash", "p25/bridge/", "calls/start", "p25/bridge/calls/start"},
		{"empty prefix", "", "calls/start", "calls/start"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := New(Config{TopicPrefix: tt.prefix}, nil)
			if got := pub.formatTopic(tt.suffix); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestEventSerialization(t *testing.T) {
	events := []any{
		CallStartEvent{SrcID: 500, DstID: 10, Encrypted: true, Timestamp: time.Now()},
		CallEndEvent{SrcID: 500, DstID: 10, DurationSec: 4.5, Timestamp: time.Now()},
		CallIgnoredEvent{SrcID: 500, DstID: 10, Reason: "algo mismatch", Timestamp: time.Now()},
	}
	for _, e := range events {
		if _, err := json.Marshal(e); err != nil {
			t.Errorf("failed to marshal %T: %v", e, err)
		}
	}
}
