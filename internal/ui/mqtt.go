package ui

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/boxrec/boxrec/internal/events"
	"github.com/boxrec/boxrec/internal/logger"
	"github.com/boxrec/boxrec/internal/mqtt"
)

// DefaultPublishTimeout bounds one status publish.
const DefaultPublishTimeout = 5 * time.Second

// MQTTPublisher mirrors status events to <topic>/status as JSON.
type MQTTPublisher struct {
	client  mqtt.Client
	topic   string
	timeout time.Duration
	log     logger.Logger
}

// NewMQTTPublisher publishes through client under baseTopic.
func NewMQTTPublisher(client mqtt.Client, baseTopic string, log logger.Logger) *MQTTPublisher {
	if log == nil {
		log = logger.Global().Module("mqtt")
	}
	base := strings.TrimRight(baseTopic, "/")
	if base == "" {
		base = "boxrec"
	}
	return &MQTTPublisher{
		client:  client,
		topic:   base + "/status",
		timeout: DefaultPublishTimeout,
		log:     log,
	}
}

// Topic returns the status topic.
func (p *MQTTPublisher) Topic() string { return p.topic }

// Name implements events.EventConsumer.
func (p *MQTTPublisher) Name() string { return "mqtt" }

// ProcessEvent implements events.EventConsumer.
func (p *MQTTPublisher) ProcessEvent(event events.StatusEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.client.Publish(ctx, p.topic, payload)
}

// StatusChanged implements Adapter. Publish failures are logged.
func (p *MQTTPublisher) StatusChanged(event events.StatusEvent) {
	if err := p.ProcessEvent(event); err != nil {
		p.log.Warn("status publish failed",
			logger.String("topic", p.topic),
			logger.String("status", event.Status.String()),
			logger.Error(err))
	}
}
