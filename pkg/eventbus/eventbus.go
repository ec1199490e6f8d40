// Package eventbus publishes call lifecycle events to an MQTT broker,
// grounded on the teacher's mqtt.Publisher shape but wired to a real
// client instead of the teacher's connection stub.
package eventbus

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dbehnke/p25bridge/pkg/logger"
)

// Config holds the publisher's broker connection and topic settings.
type Config struct {
	Enabled     bool
	Broker      string
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
	QoS         byte
	Retained    bool
}

// CallStartEvent is published when a call moves to active-clear or
// active-encrypted.
type CallStartEvent struct {
	SrcID     uint32    `json:"src_id"`
	DstID     uint32    `json:"dst_id"`
	Encrypted bool      `json:"encrypted"`
	Timestamp time.Time `json:"timestamp"`
}

// CallEndEvent is published when a call ends normally.
type CallEndEvent struct {
	SrcID       uint32    `json:"src_id"`
	DstID       uint32    `json:"dst_id"`
	DurationSec float64   `json:"duration_sec"`
	Timestamp   time.Time `json:"timestamp"`
}

// CallIgnoredEvent is published when a call is dropped for an
// algorithm/key mismatch (spec §7 "Parameter conflict").
type CallIgnoredEvent struct {
	SrcID     uint32    `json:"src_id"`
	DstID     uint32    `json:"dst_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher publishes call lifecycle events to an MQTT broker.
type Publisher struct {
	config Config
	log    *logger.Logger
	client mqtt.Client
}

// New creates a publisher bound to config but does not connect yet.
func New(config Config, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	return &Publisher{config: config, log: log.WithComponent("eventbus")}
}

// Start connects to the broker. A no-op when disabled.
func (p *Publisher) Start() error {
	if !p.config.Enabled {
		p.log.Info("event bus disabled")
		return nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(p.config.Broker).
		SetClientID(p.config.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(5 * time.Second)
	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}

	p.client = mqtt.NewClient(opts)
	token := p.client.Connect()
	if token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return fmt.Errorf("eventbus: connect to %s: %w", p.config.Broker, token.Error())
	}
	p.log.Info("connected to event bus broker", logger.String("broker", p.config.Broker))
	return nil
}

// Stop disconnects from the broker.
func (p *Publisher) Stop() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

// PublishCallStart publishes a call-start event under "calls/start".
func (p *Publisher) PublishCallStart(e CallStartEvent) error {
	return p.publish("calls/start", e)
}

// PublishCallEnd publishes a call-end event under "calls/end".
func (p *Publisher) PublishCallEnd(e CallEndEvent) error {
	return p.publish("calls/end", e)
}

// PublishCallIgnored publishes a call-ignored event under "calls/ignored".
func (p *Publisher) PublishCallIgnored(e CallIgnoredEvent) error {
	return p.publish("calls/ignored", e)
}

func (p *Publisher) publish(suffix string, event any) error {
	if !p.config.Enabled || p.client == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("eventbus: marshal event: %w", err)
	}
	topic := p.formatTopic(suffix)
	token := p.client.Publish(topic, p.config.QoS, p.config.Retained, payload)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		return fmt.Errorf("eventbus: publish %s: %w", topic, token.Error())
	}
	return nil
}

func (p *Publisher) formatTopic(suffix string) string {
	prefix := strings.TrimSuffix(p.config.TopicPrefix, "/")
	if prefix == "" {
		return suffix
	}
	return fmt.Sprintf("%s/%s", prefix, suffix)
}
