package sensor

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/adi-miller/irrigate/internal/schedule"
)

const owmBaseURL = "https://api.openweathermap.org/data/3.0"

// updateInterval is how often the forecast is refreshed. The daily UV index
// and recent precipitation change slowly; 2h keeps well inside API quotas.
const owmUpdateInterval = 2 * time.Hour

// precipDisableThresholdMM suspends irrigation when more rain than this fell
// over the previous three days.
const precipDisableThresholdMM = 1.0

// OpenWeatherMap reads the daily UV index and recent precipitation from the
// OpenWeatherMap One Call API. Readings are refreshed by a background updater
// so the Sensor methods return cached state immediately.
type OpenWeatherMap struct {
	Name string

	apiKey string
	lat    float64
	lon    float64
	table  schedule.UVTable
	client *http.Client
	logger *slog.Logger

	mu           sync.Mutex
	started      bool
	haveData     bool
	uv           float64
	recentPrecip float64
}

// NewOpenWeatherMap creates the sensor. Start must be called before readings
// are available.
func NewOpenWeatherMap(name, apiKey string, lat, lon float64, table schedule.UVTable, logger *slog.Logger) *OpenWeatherMap {
	return &OpenWeatherMap{
		Name:   name,
		apiKey: apiKey,
		lat:    lat,
		lon:    lon,
		table:  table,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger.With("component", "sensor", "sensor", name),
	}
}

// Start launches the background updater. Safe to call more than once.
func (s *OpenWeatherMap) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Info("sensor starting")
	go s.updater()
}

// Started reports whether Start was called.
func (s *OpenWeatherMap) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *OpenWeatherMap) updater() {
	for {
		if err := s.update(); err != nil {
			s.logger.Error("sensor update failed", "error", err)
		}
		time.Sleep(owmUpdateInterval)
	}
}

func (s *OpenWeatherMap) update() error {
	now := time.Now()

	var forecast struct {
		Daily []struct {
			UVI float64 `json:"uvi"`
		} `json:"daily"`
	}
	url := fmt.Sprintf("%s/onecall?exclude=current,minutely,hourly&units=metric&lat=%f&lon=%f&appid=%s",
		owmBaseURL, s.lat, s.lon, s.apiKey)
	if err := s.get(url, &forecast); err != nil {
		return fmt.Errorf("forecast: %w", err)
	}
	if len(forecast.Daily) == 0 {
		return errors.New("forecast: empty daily block")
	}

	precip := 0.0
	for i := 1; i <= 3; i++ {
		day := now.AddDate(0, 0, -i)
		var summary struct {
			Precipitation struct {
				Total float64 `json:"total"`
			} `json:"precipitation"`
		}
		url := fmt.Sprintf("%s/onecall/day_summary?date=%s&lat=%f&lon=%f&appid=%s",
			owmBaseURL, day.Format("2006-01-02"), s.lat, s.lon, s.apiKey)
		if err := s.get(url, &summary); err != nil {
			return fmt.Errorf("day summary %s: %w", day.Format("2006-01-02"), err)
		}
		precip += summary.Precipitation.Total
	}

	s.mu.Lock()
	s.uv = forecast.Daily[0].UVI
	s.recentPrecip = precip
	s.haveData = true
	s.mu.Unlock()

	s.logger.Info("sensor updated", "uv", forecast.Daily[0].UVI, "recent_precip_mm", precip)
	return nil
}

// get performs an HTTP GET with up to three attempts and linear backoff.
func (s *OpenWeatherMap) get(url string, out any) error {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		resp, err := s.client.Get(url)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(2*attempt) * time.Second)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("unexpected status %s", resp.Status)
			time.Sleep(time.Duration(2*attempt) * time.Second)
			continue
		}
		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return lastErr
}

// ShouldDisable suspends irrigation when it rained recently.
func (s *OpenWeatherMap) ShouldDisable() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.haveData {
		return false, errors.New("openweathermap: no data yet")
	}
	return s.recentPrecip > precipDisableThresholdMM, nil
}

// UV returns the cached daily UV index.
func (s *OpenWeatherMap) UV() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.haveData {
		return 0, errors.New("openweathermap: no data yet")
	}
	return s.uv, nil
}

// Factor returns the duration multiplier for the current UV index.
func (s *OpenWeatherMap) Factor() (float64, error) {
	uv, err := s.UV()
	if err != nil {
		return 1, err
	}
	return s.table.Factor(uv), nil
}

// Telemetry returns the cached readings.
func (s *OpenWeatherMap) Telemetry() (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.haveData {
		return nil, errors.New("openweathermap: no data yet")
	}
	return map[string]any{
		"uv":            s.uv,
		"recent_precip": s.recentPrecip,
	}, nil
}
