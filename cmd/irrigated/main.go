// Command irrigated runs the irrigation controller: schedule evaluation,
// a bounded valve worker pool, sensor adjustment, leak and malfunction
// alerts, and MQTT telemetry/commands.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adi-miller/irrigate/internal/alert"
	"github.com/adi-miller/irrigate/internal/config"
	"github.com/adi-miller/irrigate/internal/engine"
	"github.com/adi-miller/irrigate/internal/gpio"
	"github.com/adi-miller/irrigate/internal/history"
	"github.com/adi-miller/irrigate/internal/logging"
	"github.com/adi-miller/irrigate/internal/mqtt"
	"github.com/adi-miller/irrigate/internal/schedule"
	"github.com/adi-miller/irrigate/internal/sensor"
	"github.com/adi-miller/irrigate/internal/valve"
	"github.com/adi-miller/irrigate/internal/waterflow"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	validate := flag.Bool("validate", false, "Validate the configuration and exit")
	noWatch := flag.Bool("no-watch", false, "Disable config file hot reload")
	flag.Parse()

	if *validate {
		if _, err := config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println("config OK")
		return
	}

	if err := run(*configPath, *debug, !*noWatch); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, debug, watch bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, logFile := logging.Init(cfg.LogFile, debug)
	if logFile != nil {
		defer logFile.Close()
	}

	site := cfg.Site()
	uvTable := cfg.UVTable()

	// Sensors, keyed by name for valve wiring.
	sensors := make(map[string]sensor.Sensor, len(cfg.Sensors))
	for _, sc := range cfg.Sensors {
		switch sc.Type {
		case "openweathermap":
			sensors[sc.Name] = sensor.NewOpenWeatherMap(sc.Name, sc.APIKey, sc.Latitude, sc.Longitude, uvTable, logger)
		case "test":
			sensors[sc.Name] = sensor.NewFakeSensor()
		}
		sensors[sc.Name].Start()
	}

	// Valves and their actuators.
	valves := make([]*valve.Valve, 0, len(cfg.Valves))
	for _, vc := range cfg.Valves {
		var act gpio.Actuator
		switch vc.Type {
		case "gpio":
			a, err := gpio.NewRealActuator(gpio.DefaultChip, vc.Pin)
			if err != nil {
				return fmt.Errorf("valve %s: init gpio pin %d: %w", vc.Name, vc.Pin, err)
			}
			defer a.Release()
			act = a
		case "test":
			act = gpio.NewFakeActuator()
		}

		v := valve.New(vc.Name, act, vc.Enabled)
		if vc.Sensor != "" {
			v.Sensor = sensors[vc.Sensor]
		}
		for _, sc := range vc.Schedules {
			v.Schedules = append(v.Schedules, config.BuildSchedule(vc.Name, sc))
		}
		valves = append(valves, v)
	}

	// Water-flow meter.
	var meter waterflow.Meter
	if wf := cfg.Waterflow; wf != nil && wf.Enabled {
		switch wf.Type {
		case "mqtt":
			meter = waterflow.NewMQTTMeter(wf.Hostname, wf.ClientName, wf.Topic, wf.LeakDetection, logger)
		case "test":
			meter = waterflow.NewFakeMeter(wf.LeakDetection)
		}
		if err := meter.Start(); err != nil {
			return fmt.Errorf("start waterflow meter: %w", err)
		}
	}

	// History store.
	var store *history.Store
	if cfg.DatabasePath != "" {
		store, err = history.Open(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer store.Close()
	}

	// MQTT client. The command handler closes over the engine pointer,
	// assigned below; commands arriving before Start are dropped by the
	// nil check.
	var eng *engine.Engine
	var pub mqtt.Publisher
	if cfg.MQTT.Enabled {
		client, err := mqtt.NewClient(cfg.MQTT.Hostname, cfg.MQTT.ClientName, func(cmd mqtt.Command) {
			if eng != nil {
				eng.HandleCommand(cmd)
			}
		}, logger)
		if err != nil {
			return fmt.Errorf("connect mqtt: %w", err)
		}
		defer client.Close()
		pub = client
	}

	// Alerts.
	exclusions := make([]*schedule.Schedule, 0, len(cfg.Alerts.LeakDetectionExclusions))
	for i, sc := range cfg.Alerts.LeakDetectionExclusions {
		exclusions = append(exclusions, config.BuildSchedule(fmt.Sprintf("exclusion-%d", i), sc))
	}
	notifiers := []alert.Notifier{alert.LogNotifier{Logger: logger}}
	if pub != nil {
		notifiers = append(notifiers, alert.MQTTNotifier{Publish: pub.Publish, Logger: logger})
	}
	alerts := alert.NewManager(alert.Config{
		Enabled:    cfg.AlertEnabledMap(),
		LeakRepeat: time.Duration(cfg.Alerts.LeakRepeatMinutes) * time.Minute,
		Exclusions: exclusions,
		Site:       site,
	}, logger, notifiers...)

	// Engine.
	engCfg := engine.Defaults()
	engCfg.Workers = cfg.MaxConcurrentValves
	engCfg.TelemetryEnabled = cfg.Telemetry.Enabled
	if cfg.Telemetry.IdleIntervalMin > 0 {
		engCfg.IdleTelemetry = time.Duration(cfg.Telemetry.IdleIntervalMin) * time.Minute
	}
	if cfg.Telemetry.ActiveIntervalMin > 0 {
		engCfg.ActiveTelemetry = time.Duration(cfg.Telemetry.ActiveIntervalMin) * time.Minute
	}
	if cfg.Alerts.IrregularFlowThreshold > 0 {
		engCfg.IrregularFlowThreshold = cfg.Alerts.IrregularFlowThreshold
	}
	engCfg.ValveThresholds = make(map[string]float64)
	for _, vc := range cfg.Valves {
		if vc.IrregularFlowThreshold != nil {
			engCfg.ValveThresholds[vc.Name] = *vc.IrregularFlowThreshold
		}
	}

	eng = engine.New(engCfg, logger, site, valves, alerts, pub, meter, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng.Start(ctx)
	defer eng.Stop()

	if pub != nil {
		eng.PublishTelemetry(time.Now())
	}

	// Config hot reload applies the runtime-editable surface: valve
	// enabled flags. Structural changes (pins, schedules, sensors) need a
	// restart.
	if watch {
		byName := make(map[string]*valve.Valve, len(valves))
		for _, v := range valves {
			byName[v.Name] = v
		}
		err := config.Watch(ctx, configPath, logger, func(next *config.Config) {
			for _, vc := range next.Valves {
				if v, ok := byName[vc.Name]; ok && v.Enabled() != vc.Enabled {
					logger.Info("config reload toggling valve", "valve", vc.Name, "enabled", vc.Enabled)
					v.SetEnabled(vc.Enabled)
				}
			}
		})
		if err != nil {
			logger.Warn("config watch unavailable", "err", err)
		}
	}

	logger.Info("irrigated running",
		"valves", len(valves),
		"workers", engCfg.Workers,
		"mqtt", cfg.MQTT.Enabled,
		"waterflow", meter != nil)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		alerts.Alert(alert.SystemExit, fmt.Sprintf("controller exiting on signal %s", sig), "", nil)
		eng.PublishOffline()
		return nil
	case <-eng.Done():
		// The timer loop recovered from a fatal error and cancelled the
		// engine context. Exit non-zero so the service manager restarts us.
		eng.PublishOffline()
		return errors.New("engine stopped unexpectedly")
	}
}
