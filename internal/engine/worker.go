package engine

import (
	"fmt"
	"log/slog"

	"github.com/adi-miller/irrigate/internal/alert"
)

// worker drains the queue. Each worker owns at most one valve at a time;
// MaxConcurrentValves is enforced purely by the pool size.
func (e *Engine) worker(id int) {
	defer e.wg.Done()

	logger := e.logger.With("worker", id)
	for {
		select {
		case <-e.ctx.Done():
			return
		default:
		}

		job, ok := e.queue.Dequeue(e.ctx, e.cfg.DequeueTimeout)
		if !ok {
			continue
		}

		v := job.Valve
		if !v.Enabled() {
			logger.Info("skipping job for disabled valve", "valve", v.Name)
			continue
		}

		if !v.TryAcquire() {
			// Another worker is mid-cycle on this valve. Park the job and
			// retry after the grace period so back-to-back schedules run
			// sequentially instead of being lost.
			logger.Warn("valve busy, delaying job", "valve", v.Name, "seconds", job.DurationSec)
			if !e.pause(e.ctx, e.cfg.RequeueDelay) {
				return
			}
			if !e.queue.Enqueue(job) {
				logger.Error("queue full, dropping delayed job", "valve", v.Name)
			}
			continue
		}

		e.runCycle(logger, job)
	}
}

// runCycle executes one irrigation cycle: open the valve, poll once per
// second accumulating open time and flow, honor sensor suspension and
// manual intervention, then close and settle the books. The cycle ends
// either when the requested open time is delivered or when the same
// number of seconds has elapsed on the wall clock, whichever comes
// first; suspension burns the deadline without extending it.
func (e *Engine) runCycle(logger *slog.Logger, job *Job) {
	v := job.Valve
	total := job.DurationSec

	defer v.Release()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("cycle panicked, forcing valve closed", "valve", v.Name, "panic", r)
			if err := v.Close(); err != nil {
				logger.Error("failed to close valve after panic", "valve", v.Name, "err", err)
			}
			v.BindFlow(nil)
		}
	}()

	// A fresh cycle re-arms the malfunction check.
	v.SetMalfunction(false)
	e.alerts.Clear(alert.MalfunctionNoFlow, v.Name)

	if e.meter != nil {
		v.BindFlow(e.meter)
	}

	logger.Info("cycle starting", "valve", v.Name, "seconds", total, "source", job.Source)

	var (
		openSeconds int
		elapsed     int // polls since cycle start, open or not
		cycleLiters float64
		wantOpen    bool
		manualStop  bool
		pollsSince  int // polls since the last flow sample, while open
	)

	// openSeconds never exceeds elapsed, so a cycle that is suspended
	// forever still ends once the deadline has passed.
	for openSeconds < total && elapsed < total {
		select {
		case <-e.ctx.Done():
			goto drain
		default:
		}

		if !v.Enabled() {
			logger.Info("valve disabled mid-cycle", "valve", v.Name)
			break
		}

		suspend := false
		if v.Sensor != nil && v.Sensor.Started() {
			d, err := v.Sensor.ShouldDisable()
			if err != nil {
				e.alerts.Alert(alert.SensorError,
					fmt.Sprintf("sensor read failed for valve %s: %v", v.Name, err),
					v.Name, nil)
			} else {
				e.alerts.Clear(alert.SensorError, v.Name)
				suspend = d
			}
		}

		if suspend {
			if wantOpen {
				logger.Info("sensor suspending cycle", "valve", v.Name, "open_seconds", openSeconds)
				if err := v.Close(); err != nil {
					logger.Error("failed to close valve for suspension", "valve", v.Name, "err", err)
				}
				wantOpen = false
			}
		} else if !wantOpen {
			if err := v.Open(); err != nil {
				logger.Error("failed to open valve, aborting cycle", "valve", v.Name, "err", err)
				goto drain
			}
			wantOpen = true
		} else if !v.IsOpen() {
			// Closed underneath us (forceclose). End the cycle quietly and
			// skip the irregular flow check: the short run says nothing
			// about the line.
			logger.Info("valve closed externally, ending cycle", "valve", v.Name, "open_seconds", openSeconds)
			manualStop = true
			break
		}

		if !e.pause(e.ctx, e.cfg.PollInterval) {
			goto drain
		}

		elapsed++
		if wantOpen {
			openSeconds++
			v.AddOpenSeconds(1)
			pollsSince++
		}
		v.SetCycleTelemetry(total-openSeconds, total, cycleLiters)

		if e.meter != nil && wantOpen && pollsSince >= e.cfg.FlowSamplePolls {
			lpm := e.meter.LastLPM()
			liters := lpm * float64(pollsSince) / 60.0
			cycleLiters += liters
			v.AddLiters(liters)
			pollsSince = 0

			if openSeconds >= e.cfg.FlowSamplePolls && cycleLiters <= 0 {
				v.SetMalfunction(true)
				e.alerts.Alert(alert.MalfunctionNoFlow,
					fmt.Sprintf("valve %s open %ds with no measured flow", v.Name, openSeconds),
					v.Name,
					map[string]any{"open_seconds": openSeconds})
			}
		}
	}

drain:
	if v.IsOpen() || wantOpen {
		if err := v.Close(); err != nil {
			logger.Error("failed to close valve at cycle end", "valve", v.Name, "err", err)
		}
	}

	// Account for a final partial flow window.
	if e.meter != nil && pollsSince > 0 {
		liters := e.meter.LastLPM() * float64(pollsSince) / 60.0
		cycleLiters += liters
		v.AddLiters(liters)
	}

	v.SetCycleTelemetry(0, total, cycleLiters)
	v.BindFlow(nil)

	if !manualStop && e.meter != nil {
		alert.CheckIrregularFlow(e.alerts, v.Name, openSeconds, cycleLiters,
			v.Baseline(), e.thresholdFor(v.Name))
	}

	logger.Info("cycle finished", "valve", v.Name, "open_seconds", openSeconds, "liters", cycleLiters)
}
