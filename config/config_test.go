package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validRow() []string {
	return []string{"Ligado", "volatility", "0,25", "1000000", "3600", "5", "7", "4", "12,5", "Desligado", "24"}
}

func TestParseRowSuccess(t *testing.T) {
	s, err := ParseRow(validRow())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := Snapshot{
		Enabled:               true,
		StrategyTag:           "volatility",
		CapitalFraction:       0.25,
		MinVolume:             1_000_000,
		IntervalSeconds:       3600,
		MaxCandidates:         5,
		VolatilityWindowHours: 24,
		MaxOpenPositions:      4,
		ProfitTargetPercent:   12.5,
		TestMode:              false,
	}
	if s != want {
		t.Fatalf("unexpected snapshot:\n got %+v\nwant %+v", s, want)
	}
}

func TestParseRowFailsLoudlyOnMissingFields(t *testing.T) {
	row := validRow()[:9] // test mode and window hours missing
	_, err := ParseRow(row)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if !strings.Contains(err.Error(), "test_mode") || !strings.Contains(err.Error(), "volatility_window_hours") {
		t.Fatalf("expected both missing fields to be reported, got %v", err)
	}
}

func TestParseRowRejectsGarbage(t *testing.T) {
	row := validRow()
	row[2] = "a lot"
	if _, err := ParseRow(row); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for a non-numeric fraction, got %v", err)
	}
}

func TestParseRowRejectsFractionalCounts(t *testing.T) {
	row := validRow()
	row[7] = "1,5" // max open positions
	_, err := ParseRow(row)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for 1.5 positions, got %v", err)
	}
	if !strings.Contains(err.Error(), "max_open_positions") {
		t.Fatalf("expected the field to be named, got %v", err)
	}
}

func TestSnapshotValidateFailsOnBadFraction(t *testing.T) {
	s, _ := ParseRow(validRow())
	s.CapitalFraction = 1.5
	if err := s.Validate(); err == nil {
		t.Fatal("expected validation error for capital fraction above 1")
	}
}

func TestParseSwitch(t *testing.T) {
	for _, v := range []string{"Ligado", "ON", " true "} {
		if !ParseSwitch(v) {
			t.Fatalf("expected %q to be on", v)
		}
	}
	for _, v := range []string{"Desligado", "off", ""} {
		if ParseSwitch(v) {
			t.Fatalf("expected %q to be off", v)
		}
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voltrail.yml")
	body := `
engine:
  quote_asset: BUSD
  exit_policy: both
trailing:
  trailing_percent: 20
store:
  kind: file
  file_path: ./runtime.yml
exchange:
  timeout: 3s
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.QuoteAsset != "BUSD" || cfg.Engine.ExitPolicy != ExitBoth {
		t.Fatalf("engine overrides not applied: %+v", cfg.Engine)
	}
	if cfg.Trailing.TrailingPercent != 20 || cfg.Trailing.ActivationPercent != 30 {
		t.Fatalf("trailing settings not merged with defaults: %+v", cfg.Trailing)
	}
	if cfg.Exchange.Timeout != 3*time.Second {
		t.Fatalf("expected 3s timeout, got %v", cfg.Exchange.Timeout)
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := Default()
	cfg.Store.Kind = "file"
	cfg.Engine.ExitPolicy = "random"
	cfg.Trailing.TrailingPercent = 0
	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	for _, frag := range []string{"exit_policy", "trailing_percent", "file_path"} {
		if !strings.Contains(err.Error(), frag) {
			t.Fatalf("expected %q in %v", frag, err)
		}
	}
}
