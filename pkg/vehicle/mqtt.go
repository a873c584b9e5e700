package vehicle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// DefaultTopic mirrors the velocity topic of a ROS base controller
const DefaultTopic = "cmd_vel"

// MQTTConfig selects the broker and topic for steering messages
type MQTTConfig struct {
	Broker   string `yaml:"broker"` // host:port
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`

	// ConnectTimeout bounds how long Connect waits for the first session
	// before leaving the client retrying in the background
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`
}

// MQTTDispatcher publishes steering messages as JSON
type MQTTDispatcher struct {
	cfg    MQTTConfig
	Client mqtt.Client
	log    *slog.Logger

	mu        sync.RWMutex
	published uint64
	errors    uint64
	connected bool
}

// NewMQTTDispatcher creates a dispatcher; call Connect before Dispatch
func NewMQTTDispatcher(cfg MQTTConfig, log *slog.Logger) *MQTTDispatcher {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &MQTTDispatcher{cfg: cfg, log: log}
}

// Connect starts the client with automatic reconnect. A broker that is not
// reachable within ConnectTimeout is not an error: the client keeps
// retrying and Dispatch fails until the session is up.
func (d *MQTTDispatcher) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", d.cfg.Broker))
	opts.SetClientID(d.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		d.setConnected(true)
		d.log.Info("mqtt connection established",
			"broker", d.cfg.Broker,
			"client_id", d.cfg.ClientID)
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		d.setConnected(false)
		d.log.Warn("mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", d.cfg.Broker)
	}

	d.Client = mqtt.NewClient(opts)

	d.log.Info("connecting to mqtt broker", "broker", d.cfg.Broker)

	token := d.Client.Connect()
	select {
	case <-token.Done():
	case <-time.After(d.cfg.ConnectTimeout):
		d.log.Warn("mqtt broker not reachable yet, retrying in background",
			"broker", d.cfg.Broker,
			"timeout", d.cfg.ConnectTimeout)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	d.setConnected(true)
	return nil
}

// Dispatch publishes one message
func (d *MQTTDispatcher) Dispatch(_ context.Context, msg Message) error {
	if !d.isConnected() {
		d.countError()
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		d.countError()
		return fmt.Errorf("failed to marshal steering message: %w", err)
	}

	token := d.Client.Publish(d.cfg.Topic, d.cfg.QoS, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		d.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		d.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	d.mu.Lock()
	d.published++
	d.mu.Unlock()

	d.log.Debug("steering published", "topic", d.cfg.Topic, "seq", msg.Seq, "size", len(payload))
	return nil
}

// Close disconnects from the broker and stops any pending connect retries
func (d *MQTTDispatcher) Close() error {
	if d.Client != nil {
		d.Client.Disconnect(250)
		d.log.Info("mqtt disconnected")
	}
	d.setConnected(false)
	return nil
}

// MQTTStats contains dispatcher statistics
type MQTTStats struct {
	Connected bool
	Published uint64
	Errors    uint64
}

// Stats returns dispatcher statistics
func (d *MQTTDispatcher) Stats() MQTTStats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return MQTTStats{Connected: d.connected, Published: d.published, Errors: d.errors}
}

func (d *MQTTDispatcher) setConnected(v bool) {
	d.mu.Lock()
	d.connected = v
	d.mu.Unlock()
}

func (d *MQTTDispatcher) isConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

func (d *MQTTDispatcher) countError() {
	d.mu.Lock()
	d.errors++
	d.mu.Unlock()
}
