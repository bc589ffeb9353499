package alert

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adi-miller/irrigate/internal/schedule"
)

// stateKey de-duplicates alerts per (kind, valve).
type stateKey struct {
	kind  Kind
	valve string
}

// Config carries the manager's per-deployment policy.
type Config struct {
	// Enabled gates each kind; kinds absent from the map are disabled.
	Enabled map[Kind]bool

	// LeakRepeat is how often a still-present leak re-fires.
	LeakRepeat time.Duration

	// Exclusions are schedule windows during which leak detection is
	// suppressed (planned manual watering).
	Exclusions []*schedule.Schedule

	// Site evaluates exclusion windows.
	Site schedule.Site
}

// Manager fires alerts through the configured notifiers, suppressing
// duplicates. LEAK re-fires every LeakRepeat; every other kind fires once
// and stays suppressed until Clear is called by the condition's resolution
// path. State entries are monotonically newer once updated.
type Manager struct {
	cfg       Config
	notifiers []Notifier
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	state map[stateKey]time.Time
}

// NewManager creates a Manager delivering to the given notifiers.
func NewManager(cfg Config, logger *slog.Logger, notifiers ...Notifier) *Manager {
	return &Manager{
		cfg:       cfg,
		notifiers: notifiers,
		logger:    logger.With("component", "alert"),
		now:       time.Now,
		state:     make(map[stateKey]time.Time),
	}
}

// SetClock overrides the manager's time source for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Alert fires an alert if the kind is enabled and not suppressed.
// It reports whether the alert was actually delivered.
func (m *Manager) Alert(kind Kind, message, valveName string, data map[string]any) bool {
	if !m.cfg.Enabled[kind] {
		return false
	}

	now := m.now()
	key := stateKey{kind, valveName}

	m.mu.Lock()
	last, seen := m.state[key]
	if seen {
		if kind != Leak || now.Sub(last) < m.cfg.LeakRepeat {
			m.mu.Unlock()
			return false
		}
	}
	m.state[key] = now
	m.mu.Unlock()

	a := Alert{
		ID:        uuid.New(),
		Kind:      kind,
		ValveName: valveName,
		Time:      now,
		Message:   message,
		Data:      data,
	}
	for _, n := range m.notifiers {
		n.Notify(a)
	}
	return true
}

// Clear removes suppression state for (kind, valve), re-arming the alert.
// Called when the underlying condition resolves.
func (m *Manager) Clear(kind Kind, valveName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state, stateKey{kind, valveName})
}

// InExclusionWindow reports whether now falls inside any configured leak
// detection exclusion window.
func (m *Manager) InExclusionWindow(now time.Time) bool {
	for _, s := range m.cfg.Exclusions {
		if m.cfg.Site.InWindow(s, now) {
			return true
		}
	}
	return false
}
