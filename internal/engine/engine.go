// Package engine ties the controller together: a bounded worker pool
// draining the job queue, and a 1 Hz timer loop that evaluates schedules,
// runs leak detection, rolls the day over, and publishes telemetry.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/adi-miller/irrigate/internal/alert"
	"github.com/adi-miller/irrigate/internal/history"
	"github.com/adi-miller/irrigate/internal/mqtt"
	"github.com/adi-miller/irrigate/internal/schedule"
	"github.com/adi-miller/irrigate/internal/valve"
	"github.com/adi-miller/irrigate/internal/waterflow"
)

// Config is the engine's runtime policy. Durations are shrunk in tests;
// production uses Defaults.
type Config struct {
	// Workers is the maximum number of concurrently open valves.
	Workers int

	// PollInterval is the cycle loop's step. One poll counts as one second
	// of open time.
	PollInterval time.Duration

	// DequeueTimeout is how long an idle worker blocks before re-checking
	// for shutdown.
	DequeueTimeout time.Duration

	// RequeueDelay is how long a worker sleeps after losing a valve to
	// another worker before putting the job back.
	RequeueDelay time.Duration

	// FlowSamplePolls is how many open-polls elapse between flow meter
	// samples (and malfunction checks). 60 polls = one minute.
	FlowSamplePolls int

	// TelemetryEnabled gates all telemetry publishing.
	TelemetryEnabled bool

	// IdleTelemetry and ActiveTelemetry set the publish cadence when no
	// valve is open vs. when at least one is.
	IdleTelemetry   time.Duration
	ActiveTelemetry time.Duration

	// IrregularFlowThreshold is the default std-dev multiplier; per-valve
	// overrides win.
	IrregularFlowThreshold float64
	ValveThresholds        map[string]float64
}

// Defaults returns the production configuration.
func Defaults() Config {
	return Config{
		Workers:                2,
		PollInterval:           time.Second,
		DequeueTimeout:         5 * time.Second,
		RequeueDelay:           61 * time.Second,
		FlowSamplePolls:        60,
		TelemetryEnabled:       true,
		IdleTelemetry:          15 * time.Minute,
		ActiveTelemetry:        time.Minute,
		IrregularFlowThreshold: 2.0,
	}
}

// Engine runs the controller. Construct with New, then Start; Stop blocks
// until every cycle has drained and every valve is closed.
type Engine struct {
	cfg    Config
	logger *slog.Logger
	site   schedule.Site

	valves []*valve.Valve
	byName map[string]*valve.Valve

	queue   *Queue
	pub     mqtt.Publisher // nil when MQTT is disabled
	alerts  *alert.Manager
	leakMon *alert.LeakMonitor
	meter   waterflow.Meter // nil when no flow meter is configured
	store   *history.Store  // nil when history is disabled

	now   func() time.Time
	pause func(ctx context.Context, d time.Duration) bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startedAt time.Time

	// timer loop state, touched only by the timer goroutine
	lastEvalMinute time.Time
	currentDate    string
	lastTelemetry  time.Time
}

// New wires an engine from its collaborators. pub, meter, and store may be
// nil to disable the corresponding feature.
func New(cfg Config, logger *slog.Logger, site schedule.Site, valves []*valve.Valve,
	alerts *alert.Manager, pub mqtt.Publisher, meter waterflow.Meter, store *history.Store) *Engine {

	byName := make(map[string]*valve.Valve, len(valves))
	for _, v := range valves {
		byName[v.Name] = v
	}

	return &Engine{
		cfg:     cfg,
		logger:  logger.With("component", "engine"),
		site:    site,
		valves:  valves,
		byName:  byName,
		queue:   NewQueue(queueCapacity),
		pub:     pub,
		alerts:  alerts,
		leakMon: alert.NewLeakMonitor(alerts),
		meter:   meter,
		store:   store,
		now:     time.Now,
		pause:   sleepCtx,
	}
}

// SetClock overrides the engine's time source for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// LeakMonitor exposes the monitor so tests can shrink its debounce.
func (e *Engine) LeakMonitor() *alert.LeakMonitor {
	return e.leakMon
}

// Queue exposes the job queue for the command handler and tests.
func (e *Engine) Queue() *Queue {
	return e.queue
}

// Done closes when the engine stops running, whether through Stop or
// because the timer loop died. Only valid after Start.
func (e *Engine) Done() <-chan struct{} {
	return e.ctx.Done()
}

// Start launches the worker pool and the timer loop.
func (e *Engine) Start(ctx context.Context) {
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.startedAt = e.now()
	e.currentDate = e.startedAt.In(e.site.TZ).Format("2006-01-02")

	e.loadBaselines(e.startedAt)

	for i := 0; i < e.cfg.Workers; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}

	e.wg.Add(1)
	go e.timerLoop()

	e.logger.Info("engine started", "workers", e.cfg.Workers, "valves", len(e.valves))
}

// Stop shuts the engine down and force-closes anything left open.
func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()

	for _, v := range e.valves {
		if v.IsOpen() {
			if err := v.Close(); err != nil {
				e.logger.Error("failed to close valve on shutdown", "valve", v.Name, "err", err)
			} else {
				e.logger.Info("closed valve on shutdown", "valve", v.Name)
			}
		}
	}
	e.logger.Info("engine stopped")
}

// loadBaselines installs historical baselines on every valve. Missing or
// shallow history leaves the baseline nil, which disables the irregular
// flow check for that valve.
func (e *Engine) loadBaselines(now time.Time) {
	if e.store == nil {
		return
	}

	names := make([]string, len(e.valves))
	for i, v := range e.valves {
		names[i] = v.Name
	}

	baselines, err := e.store.LoadBaselines(names, now)
	if err != nil {
		e.logger.Error("failed to load baselines", "err", err)
		return
	}
	for _, v := range e.valves {
		v.SetBaseline(baselines[v.Name])
	}
}

func (e *Engine) thresholdFor(valveName string) float64 {
	if t, ok := e.cfg.ValveThresholds[valveName]; ok {
		return t
	}
	return e.cfg.IrregularFlowThreshold
}

func (e *Engine) anyOpen() bool {
	for _, v := range e.valves {
		if v.IsOpen() {
			return true
		}
	}
	return false
}

// sleepCtx sleeps for d unless the context ends first. Reports whether the
// full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
