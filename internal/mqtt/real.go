package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// bufferCapacity bounds telemetry retained across a broker outage.
const bufferCapacity = 256

// Client publishes telemetry to a real broker and dispatches inbound
// commands. Reconnects are handled by paho; telemetry published while
// disconnected is buffered and replayed on reconnect.
type Client struct {
	clientName string
	logger     *slog.Logger
	onCommand  func(Command)
	client     paho.Client

	mu  sync.Mutex
	buf *ringBuffer
}

// NewClient connects to the broker and subscribes to the command filter.
// onCommand is invoked from the paho callback goroutine for every
// well-formed inbound command.
func NewClient(broker, clientName string, onCommand func(Command), logger *slog.Logger) (*Client, error) {
	c := &Client{
		clientName: clientName,
		logger:     logger.With("component", "mqtt"),
		onCommand:  onCommand,
		buf:        newRingBuffer(bufferCapacity),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientName).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			c.logger.Warn("mqtt connection lost", "error", err)
		})

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connect to %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, err)
	}

	return c, nil
}

// onConnect runs on every (re)connect: restore the command subscription and
// replay telemetry buffered during the outage.
func (c *Client) onConnect(client paho.Client) {
	c.logger.Info("mqtt connected")

	filter := CommandFilter(c.clientName)
	if token := client.Subscribe(filter, 0, c.onMessage); token.Wait() && token.Error() != nil {
		c.logger.Error("mqtt subscribe failed", "filter", filter, "error", token.Error())
	}

	c.mu.Lock()
	msgs, dropped := c.buf.drainAll()
	c.mu.Unlock()

	if dropped {
		c.logger.Warn("mqtt buffer overflowed while disconnected, oldest telemetry dropped")
	}
	for _, m := range msgs {
		client.Publish(m.topic, 0, false, m.payload)
	}
	if len(msgs) > 0 {
		c.logger.Info("replayed buffered telemetry", "count", len(msgs))
	}
}

func (c *Client) onMessage(_ paho.Client, msg paho.Message) {
	cmd, err := ParseCommand(c.clientName, msg.Topic(), string(msg.Payload()))
	if err != nil {
		c.logger.Warn("ignoring malformed command", "topic", msg.Topic(), "error", err)
		return
	}
	c.onCommand(cmd)
}

// Publish sends one telemetry value, buffering it if disconnected.
func (c *Client) Publish(subtopic string, value any) error {
	topic := TelemetryTopic(c.clientName, subtopic)
	payload := FormatValue(value)

	if !c.client.IsConnected() {
		c.mu.Lock()
		c.buf.push(bufferedMsg{topic: topic, payload: payload})
		c.mu.Unlock()
		return nil
	}

	// QoS 0 (at-most-once), not retained; telemetry is periodic anyway.
	token := c.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Close disconnects from the broker.
func (c *Client) Close() error {
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
