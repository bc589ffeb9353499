package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/adi-miller/irrigate/internal/alert"
)

// timerLoop is the 1 Hz heartbeat: schedule evaluation and leak detection
// gate on the calendar minute, the day rolls over on the local date, and
// telemetry publishes on its cadence. A panic here is fatal to the whole
// engine; the loop raises SYSTEM_EXIT and cancels so main can exit.
func (e *Engine) timerLoop() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("timer loop panicked, shutting down", "panic", r)
			e.alerts.Alert(alert.SystemExit,
				fmt.Sprintf("timer loop panic: %v", r), "", nil)
			e.cancel()
		}
	}()

	for {
		if !e.pause(e.ctx, e.cfg.PollInterval) {
			return
		}
		e.onTick(e.now())
	}
}

// onTick runs one heartbeat. Split out so tests can drive it with crafted
// times instead of waiting on the ticker.
func (e *Engine) onTick(now time.Time) {
	local := now.In(e.site.TZ)

	if date := local.Format("2006-01-02"); date != e.currentDate {
		e.currentDate = date
		e.rollover(local)
	}

	if minute := local.Truncate(time.Minute); !minute.Equal(e.lastEvalMinute) {
		e.lastEvalMinute = minute
		e.evaluateSchedules(local)
		e.checkLeak(local)
	}

	e.maybePublishTelemetry(local)
}

// evaluateSchedules enqueues a job for every schedule whose trigger minute
// is now. Runs at most once per calendar minute.
func (e *Engine) evaluateSchedules(now time.Time) {
	for _, v := range e.valves {
		if !v.Enabled() {
			continue
		}
		for _, s := range v.Schedules {
			if !e.site.ShouldRun(s, now) {
				continue
			}

			dur := s.DurationSec
			if s.UVAdjust && v.Sensor != nil {
				factor, err := v.Sensor.Factor()
				if err != nil {
					e.alerts.Alert(alert.SensorError,
						fmt.Sprintf("sensor factor unavailable for valve %s, running unadjusted: %v", v.Name, err),
						v.Name, nil)
				} else {
					e.alerts.Clear(alert.SensorError, v.Name)
					dur = int(math.Round(float64(dur) * factor))
				}
			}

			e.logger.Info("schedule triggered", "valve", v.Name, "schedule", s.Name, "seconds", dur)
			if !e.queue.Enqueue(&Job{Valve: v, DurationSec: dur, Schedule: s, Source: "schedule"}) {
				e.logger.Error("queue full, dropping scheduled job", "valve", v.Name, "schedule", s.Name)
			}
		}
	}
}

// checkLeak feeds the leak monitor once per minute, when a meter with leak
// detection is configured.
func (e *Engine) checkLeak(now time.Time) {
	if e.meter == nil || !e.meter.LeakDetection() {
		return
	}
	e.leakMon.Check(now, e.anyOpen(), e.meter.LastLPM())
}

// rollover flushes yesterday's totals to history, zeroes the daily
// counters, and refreshes baselines. Runs on the first tick of each local
// day.
func (e *Engine) rollover(now time.Time) {
	yesterday := now.AddDate(0, 0, -1).Format("2006-01-02")
	e.logger.Info("daily rollover", "date", yesterday)

	for _, v := range e.valves {
		seconds, liters := v.ResetDaily()
		if e.store == nil {
			continue
		}
		if err := e.store.AppendDaily(v.Name, yesterday, seconds, liters); err != nil {
			e.logger.Error("failed to record daily totals", "valve", v.Name, "err", err)
		}
	}

	e.loadBaselines(now)
}
