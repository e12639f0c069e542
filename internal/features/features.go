package features

import (
	"sort"
	"sync"

	"customer-analytics-api/internal/config"
)

// Predefined feature flag names
const (
	// XLSXExport serves GET /api/customers/export.xlsx
	XLSXExport = "xlsx_export"
	// WriteAPI serves the customer and retention write endpoints
	WriteAPI = "write_api"
	// EventLog logs every write event
	EventLog = "event_log"
)

// FeatureFlag represents a feature flag configuration.
type FeatureFlag struct {
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
}

// Manager manages feature flags.
type Manager struct {
	mu    sync.RWMutex
	flags map[string]*FeatureFlag
}

// NewManager creates an empty feature flag manager.
func NewManager() *Manager {
	return &Manager{flags: make(map[string]*FeatureFlag)}
}

// FromConfig registers the predefined flags with their configured state.
func FromConfig(cfg config.FeaturesConfig) *Manager {
	m := NewManager()
	m.Register(XLSXExport, cfg.XLSXExport, "XLSX download of filtered customers")
	m.Register(WriteAPI, cfg.WriteAPI, "customer and retention write endpoints")
	m.Register(EventLog, cfg.EventLog, "log customer and retention write events")
	return m
}

// Register registers a new feature flag.
func (m *Manager) Register(name string, enabled bool, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flags[name] = &FeatureFlag{
		Name:        name,
		Enabled:     enabled,
		Description: description,
	}
}

// IsEnabled reports whether a flag is enabled. Unknown flags are disabled.
func (m *Manager) IsEnabled(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	flag, exists := m.flags[name]
	return exists && flag.Enabled
}

// Enable enables a feature flag.
func (m *Manager) Enable(name string) {
	m.set(name, true)
}

// Disable disables a feature flag.
func (m *Manager) Disable(name string) {
	m.set(name, false)
}

func (m *Manager) set(name string, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if flag, exists := m.flags[name]; exists {
		flag.Enabled = enabled
	}
}

// All returns a copy of every flag, ordered by name.
func (m *Manager) All() []FeatureFlag {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]FeatureFlag, 0, len(m.flags))
	for _, f := range m.flags {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
