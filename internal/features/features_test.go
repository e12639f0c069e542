package features

import (
	"testing"

	"customer-analytics-api/internal/config"
)

func TestFromConfig(t *testing.T) {
	m := FromConfig(config.FeaturesConfig{XLSXExport: true, WriteAPI: false, EventLog: true})

	if !m.IsEnabled(XLSXExport) {
		t.Errorf("Expected xlsx_export enabled")
	}
	if m.IsEnabled(WriteAPI) {
		t.Errorf("Expected write_api disabled")
	}
	if m.IsEnabled("unknown") {
		t.Errorf("Expected unknown flag disabled")
	}

	all := m.All()
	if len(all) != 3 || all[0].Name != EventLog {
		t.Errorf("Unexpected flags %+v", all)
	}
}

func TestEnableDisable(t *testing.T) {
	m := NewManager()
	m.Register("x", false, "")

	m.Enable("x")
	if !m.IsEnabled("x") {
		t.Errorf("Expected x enabled")
	}
	m.Disable("x")
	if m.IsEnabled("x") {
		t.Errorf("Expected x disabled")
	}

	m.Enable("missing")
	if m.IsEnabled("missing") {
		t.Errorf("Expected enabling an unregistered flag to be a no-op")
	}
}
