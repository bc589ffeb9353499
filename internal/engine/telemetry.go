package engine

import (
	"fmt"
	"time"

	"github.com/adi-miller/irrigate/internal/mqtt"
)

// maybePublishTelemetry publishes telemetry when the cadence interval has
// elapsed. The cadence tightens while any valve is open, and the tighter
// cadence covers only the valves being handled; the full set still goes
// out on the idle interval.
func (e *Engine) maybePublishTelemetry(now time.Time) {
	if !e.cfg.TelemetryEnabled || e.pub == nil {
		return
	}

	active := e.anyOpen()
	interval := e.cfg.IdleTelemetry
	if active {
		interval = e.cfg.ActiveTelemetry
	}
	if !e.lastTelemetry.IsZero() && now.Sub(e.lastTelemetry) < interval {
		return
	}
	e.lastTelemetry = now

	e.publishSnapshot(now, active)
}

// PublishTelemetry publishes one full telemetry snapshot immediately.
func (e *Engine) PublishTelemetry(now time.Time) {
	e.publishSnapshot(now, false)
}

func (e *Engine) publishSnapshot(now time.Time, handledOnly bool) {
	e.publish("svc/status", "online")
	e.publish("svc/uptime", int(now.Sub(e.startedAt).Seconds()))
	e.publish("svc/queue_len", e.queue.Len())
	if cs, ok := e.pub.(mqtt.ConnectionStatus); ok {
		e.publish("svc/mqtt_connected", cs.IsConnected())
	}

	for _, v := range e.valves {
		snap := v.TelemetrySnapshot()
		if handledOnly && !snap.Handled {
			continue
		}
		prefix := snap.Name + "/"
		e.publish(prefix+"status", snap.Status)
		e.publish(prefix+"seconds_daily", snap.SecondsDaily)
		e.publish(prefix+"liters_daily", snap.LitersDaily)
		e.publish(prefix+"seconds_remain", snap.SecondsRemain)
		e.publish(prefix+"seconds_last", snap.SecondsLast)
		e.publish(prefix+"liters_last", snap.LitersLast)
		if snap.Baseline != nil {
			e.publish(prefix+"baseline_lpm", snap.Baseline.LPM)
			if snap.Baseline.Trend != nil {
				e.publish(prefix+"baseline_trend_pct", *snap.Baseline.Trend)
			}
		}

		if v.Sensor != nil && v.Sensor.Started() {
			if factor, err := v.Sensor.Factor(); err == nil {
				e.publish(prefix+"sensor_factor", factor)
			}
			if readings, err := v.Sensor.Telemetry(); err == nil {
				for key, val := range readings {
					e.publish(prefix+"sensor_"+key, val)
				}
			}
		}
	}

	if e.meter != nil && e.meter.Started() {
		e.publish("waterflow/lpm", e.meter.LastLPM())
	}
}

// PublishOffline announces shutdown on the status topic.
func (e *Engine) PublishOffline() {
	if e.pub == nil {
		return
	}
	e.publish("svc/status", "offline")
}

func (e *Engine) publish(subtopic string, value any) {
	if e.pub == nil {
		return
	}
	if err := e.pub.Publish(subtopic, value); err != nil {
		e.logger.Warn(fmt.Sprintf("publish %s failed", subtopic), "err", err)
	}
}
