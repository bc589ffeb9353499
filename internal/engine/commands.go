package engine

import (
	"math"
	"strconv"

	"github.com/adi-miller/irrigate/internal/mqtt"
)

// HandleCommand executes one inbound MQTT command. Invalid payloads and
// unknown valves are logged and dropped; a remote sender must never be able
// to crash the controller.
func (e *Engine) HandleCommand(cmd mqtt.Command) {
	logger := e.logger.With("action", string(cmd.Action), "valve", cmd.Valve)

	v, ok := e.byName[cmd.Valve]
	if !ok {
		logger.Warn("command for unknown valve ignored")
		return
	}

	switch cmd.Action {
	case mqtt.ActionQueue:
		minutes, err := strconv.ParseFloat(cmd.Payload, 64)
		if err != nil || minutes <= 0 {
			logger.Warn("queue command needs a positive duration in minutes", "payload", cmd.Payload)
			return
		}
		seconds := int(math.Round(minutes * 60))
		logger.Info("queueing manual cycle", "seconds", seconds)
		if !e.queue.Enqueue(&Job{Valve: v, DurationSec: seconds, Source: "mqtt"}) {
			logger.Error("queue full, dropping manual cycle")
		}

	case mqtt.ActionEnabled:
		switch cmd.Payload {
		case "1":
			v.SetEnabled(true)
			logger.Info("valve enabled")
		case "0":
			v.SetEnabled(false)
			logger.Info("valve disabled")
			// A cycle in flight notices the flag and closes itself; a
			// force-opened valve has no cycle, so close it here.
			if v.IsOpen() && !v.Handled() {
				if err := v.Close(); err != nil {
					logger.Error("failed to close disabled valve", "err", err)
				}
			}
		default:
			logger.Warn("enabled command needs payload 0 or 1", "payload", cmd.Payload)
		}

	case mqtt.ActionForceOpen:
		if v.Handled() {
			logger.Warn("forceopen ignored, cycle in progress")
			return
		}
		if !v.Enabled() {
			logger.Warn("forceopen ignored, valve disabled")
			return
		}
		if err := v.Open(); err != nil {
			logger.Error("forceopen failed", "err", err)
			return
		}
		logger.Info("valve force-opened")

	case mqtt.ActionForceClose:
		// Works for both force-opened valves and running cycles: the cycle
		// loop observes the closed actuator and ends as a manual stop.
		if err := v.Close(); err != nil {
			logger.Error("forceclose failed", "err", err)
			return
		}
		logger.Info("valve force-closed")
	}
}
