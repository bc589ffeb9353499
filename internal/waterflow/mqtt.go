package waterflow

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// MQTTMeter receives flow readings published by an external pulse counter
// (one float payload per minute, liters per minute).
type MQTTMeter struct {
	base

	broker   string
	clientID string
	topic    string
	logger   *slog.Logger
	client   paho.Client
}

// NewMQTTMeter creates a meter subscribed to the given topic once started.
func NewMQTTMeter(broker, clientID, topic string, leakDetect bool, logger *slog.Logger) *MQTTMeter {
	return &MQTTMeter{
		base:     newBase(leakDetect),
		broker:   broker,
		clientID: clientID,
		topic:    topic,
		logger:   logger.With("component", "waterflow", "topic", topic),
	}
}

// Start connects to the broker and subscribes. Safe to call more than once.
func (m *MQTTMeter) Start() error {
	if m.Started() {
		return nil
	}

	opts := paho.NewClientOptions().
		AddBroker(m.broker).
		SetClientID(m.clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(c paho.Client) {
			// (Re)subscribe on every connect so reconnects keep the feed alive.
			if token := c.Subscribe(m.topic, 0, m.onMessage); token.Wait() && token.Error() != nil {
				m.logger.Error("waterflow subscribe failed", "error", token.Error())
			}
		})

	m.client = paho.NewClient(opts)
	token := m.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("waterflow: connect to %s: timeout", m.broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("waterflow: connect to %s: %w", m.broker, err)
	}

	m.setStarted()
	m.logger.Info("waterflow meter started", "broker", m.broker)
	return nil
}

func (m *MQTTMeter) onMessage(_ paho.Client, msg paho.Message) {
	payload := strings.TrimSpace(string(msg.Payload()))
	v, err := strconv.ParseFloat(payload, 64)
	if err != nil {
		m.logger.Warn("waterflow: unparseable payload", "payload", payload, "error", err)
		return
	}
	m.setLPM(v)
}
