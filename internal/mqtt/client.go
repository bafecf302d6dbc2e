package mqtt

import (
	"context"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
	"github.com/boxrec/boxrec/internal/observability/metrics"
)

const componentMQTT = "mqtt"

// client implements the Client interface on top of paho.
type client struct {
	config         Config
	internalClient paho.Client
	mu             sync.Mutex
	metrics        *metrics.MQTTMetrics
	log            logger.Logger
}

// NewClient creates a new MQTT client. m may be nil.
func NewClient(cfg Config, m *metrics.MQTTMetrics, log logger.Logger) (Client, error) {
	if cfg.Broker == "" {
		return nil, errors.Newf("mqtt broker not configured").
			Component(componentMQTT).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if _, err := url.Parse(cfg.Broker); err != nil {
		return nil, errors.New(err).
			Component(componentMQTT).
			Category(errors.CategoryConfiguration).
			Context("broker", cfg.Broker).
			Build()
	}
	cfg.applyDefaults()
	if log == nil {
		log = logger.Global().Module(componentMQTT)
	}
	return &client{config: cfg, metrics: m, log: log}, nil
}

// Connect resolves the broker host and then connects. Lost connections
// are re-established by paho in the background.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return c.connectError(err, "parse_broker")
	}
	if host := u.Hostname(); host != "" && net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return c.connectError(err, "resolve_broker")
		}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(c.config.ReconnectDelay)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.internalClient = paho.NewClient(opts)

	token := c.internalClient.Connect()
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		c.internalClient.Disconnect(0)
		return c.connectError(errors.NewStd("connection timeout"), "connect")
	}
	if err := token.Error(); err != nil {
		return c.connectError(err, "connect")
	}

	c.metrics.UpdateConnectionStatus(true)
	return nil
}

func (c *client) connectError(err error, op string) error {
	c.metrics.IncrementErrors()
	return errors.New(err).
		Component(componentMQTT).
		Category(errors.CategoryMQTTConnect).
		Context("operation", op).
		Context("broker", c.config.Broker).
		Build()
}

// Publish sends payload to topic on the MQTT broker.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isConnected() {
		return c.publishError(errors.NewStd("not connected to MQTT broker"), topic)
	}

	timer := c.metrics.StartPublishTimer()
	defer timer.ObserveDuration()

	token := c.internalClient.Publish(topic, c.config.QoS, c.config.Retain, payload)
	timeout := c.config.PublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if !token.WaitTimeout(timeout) {
		return c.publishError(errors.NewStd("publish timeout"), topic)
	}
	if err := token.Error(); err != nil {
		return c.publishError(err, topic)
	}

	c.metrics.IncrementMessagesDelivered()
	c.metrics.ObserveMessageSize(len(payload))
	c.log.Debug("published", logger.String("topic", topic), logger.Int("bytes", len(payload)))
	return nil
}

func (c *client) publishError(err error, topic string) error {
	c.metrics.IncrementErrors()
	return errors.New(err).
		Component(componentMQTT).
		Category(errors.CategoryMQTTPublish).
		Context("topic", topic).
		Build()
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected()
}

func (c *client) isConnected() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internalClient != nil {
		c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
		c.metrics.UpdateConnectionStatus(false)
	}
}

func (c *client) onConnect(paho.Client) {
	c.log.Info("connected to MQTT broker", logger.String("broker", c.config.Broker))
	c.metrics.UpdateConnectionStatus(true)
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	c.log.Warn("connection to MQTT broker lost", logger.String("broker", c.config.Broker), logger.Error(err))
	c.metrics.UpdateConnectionStatus(false)
	c.metrics.IncrementErrors()
}

func (c *client) onReconnecting(paho.Client, *paho.ClientOptions) {
	c.metrics.IncrementReconnectAttempts()
	c.log.Debug("reconnecting to MQTT broker", logger.String("broker", c.config.Broker))
}
