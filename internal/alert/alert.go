// Package alert raises operational anomaly alerts with de-duplication and
// rate limiting. Anomalies are not software errors: they route to notifier
// channels and never abort a running cycle.
package alert

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Kind identifies an alert condition.
type Kind string

const (
	Leak              Kind = "leak"
	MalfunctionNoFlow Kind = "malfunction_no_flow"
	IrregularFlow     Kind = "irregular_flow"
	SensorError       Kind = "sensor_error"
	SystemExit        Kind = "system_exit"
)

// Severity classifies how loud a kind is.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Severity returns the fixed severity for the kind.
func (k Kind) Severity() Severity {
	switch k {
	case Leak, SystemExit:
		return SeverityCritical
	default:
		return SeverityWarning
	}
}

// Alert is a single alert occurrence.
type Alert struct {
	ID        uuid.UUID
	Kind      Kind
	ValveName string // empty for system-wide alerts
	Time      time.Time
	Message   string
	Data      map[string]any // context: flow rates, baselines, deviations
}

// Notifier delivers fired alerts to a channel (log, MQTT, ...).
type Notifier interface {
	Notify(a Alert)
}

// LogNotifier writes alerts to the process log.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs the alert at a level matching its severity.
func (n LogNotifier) Notify(a Alert) {
	args := []any{"kind", string(a.Kind), "severity", string(a.Kind.Severity())}
	if a.ValveName != "" {
		args = append(args, "valve", a.ValveName)
	}
	if len(a.Data) > 0 {
		args = append(args, "data", a.Data)
	}
	if a.Kind.Severity() == SeverityCritical {
		n.Logger.Error("ALERT "+a.Message, args...)
	} else {
		n.Logger.Warn("ALERT "+a.Message, args...)
	}
}

// PublishFunc publishes one key/value telemetry pair. It decouples the MQTT
// notifier from the transport package.
type PublishFunc func(subtopic string, value any) error

// MQTTNotifier publishes alerts on the telemetry topic tree.
type MQTTNotifier struct {
	Publish PublishFunc
	Logger  *slog.Logger
}

// Notify publishes the alert message under alert/{kind}. Publish failures
// are transient transport errors: logged, never propagated.
func (n MQTTNotifier) Notify(a Alert) {
	topic := "alert/" + string(a.Kind)
	if a.ValveName != "" {
		topic += "/" + a.ValveName
	}
	if err := n.Publish(topic, a.Message); err != nil {
		n.Logger.Warn("alert publish failed", "kind", string(a.Kind), "error", err)
	}
}
