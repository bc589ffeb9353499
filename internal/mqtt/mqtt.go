// Package mqtt implements the controller's MQTT contract with abstraction
// for testing: telemetry out on {client}/raspi/..., commands in on
// {client}/{action}/{valve}/command.
package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// Publisher publishes telemetry key/value pairs.
type Publisher interface {
	// Publish sends one value under {client}/raspi/{subtopic}.
	// Returns error if publishing fails (must not crash the caller).
	Publish(subtopic string, value any) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Action is an inbound command verb.
type Action string

const (
	// ActionQueue enqueues an ad-hoc job; payload is duration in minutes (float).
	ActionQueue Action = "queue"
	// ActionEnabled toggles a valve; payload is 0 or 1.
	ActionEnabled Action = "enabled"
	// ActionForceOpen opens a valve immediately, bypassing the queue.
	ActionForceOpen Action = "forceopen"
	// ActionForceClose closes a valve immediately.
	ActionForceClose Action = "forceclose"
)

// Command is one parsed inbound message.
type Command struct {
	Action  Action
	Valve   string
	Payload string
}

// commandSuffix terminates every inbound command topic.
const commandSuffix = "command"

// TelemetryTopic builds the outbound topic for a subtopic.
func TelemetryTopic(clientName, subtopic string) string {
	return clientName + "/raspi/" + subtopic
}

// CommandFilter is the subscription filter for inbound commands.
func CommandFilter(clientName string) string {
	return clientName + "/+/+/" + commandSuffix
}

// ParseCommand parses an inbound topic and payload. Malformed messages
// return an error; the caller logs and ignores them, never fatally.
func ParseCommand(clientName, topic, payload string) (Command, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != clientName || parts[3] != commandSuffix {
		return Command{}, fmt.Errorf("malformed command topic %q", topic)
	}

	action := Action(parts[1])
	switch action {
	case ActionQueue, ActionEnabled, ActionForceOpen, ActionForceClose:
	default:
		return Command{}, fmt.Errorf("unknown command action %q in topic %q", parts[1], topic)
	}

	if parts[2] == "" {
		return Command{}, fmt.Errorf("missing valve name in topic %q", topic)
	}

	return Command{Action: action, Valve: parts[2], Payload: strings.TrimSpace(payload)}, nil
}

// FormatValue renders a telemetry value as a payload.
func FormatValue(v any) []byte {
	switch x := v.(type) {
	case string:
		return []byte(x)
	case float64:
		return []byte(strconv.FormatFloat(x, 'f', 2, 64))
	case float32:
		return []byte(strconv.FormatFloat(float64(x), 'f', 2, 32))
	case bool:
		if x {
			return []byte("1")
		}
		return []byte("0")
	default:
		return []byte(fmt.Sprint(v))
	}
}
