package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/multierr"
)

// Snapshot is the operator-tunable configuration, re-read at the start of
// every cycle. Nothing carries over from the previous read.
type Snapshot struct {
	Enabled               bool    `yaml:"enabled"`
	StrategyTag           string  `yaml:"strategy"`
	CapitalFraction       float64 `yaml:"capital_fraction"`
	MinVolume             float64 `yaml:"min_volume"`
	IntervalSeconds       int     `yaml:"interval_seconds"`
	MaxCandidates         int     `yaml:"max_candidates"`
	VolatilityWindowHours int     `yaml:"volatility_window_hours"`
	MaxOpenPositions      int     `yaml:"max_open_positions"`
	ProfitTargetPercent   float64 `yaml:"profit_target_percent"`
	TestMode              bool    `yaml:"test_mode"`
}

// Column layout of the configuration row.
const (
	colEnabled = iota
	colStrategy
	colCapitalFraction
	colMinVolume
	colInterval
	colMaxCandidates
	colVolatilityDays // read by the old daily variant, ignored
	colMaxPositions
	colProfitTarget
	colTestMode
	colWindowHours
)

// ParseRow turns a raw spreadsheet row into a validated Snapshot. Missing or
// malformed cells are errors; nothing is defaulted.
func ParseRow(row []string) (Snapshot, error) {
	var (
		s    Snapshot
		errs error
	)
	cell := func(i int, name string) (string, bool) {
		if i >= len(row) || strings.TrimSpace(row[i]) == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s: missing", name))
			return "", false
		}
		return strings.TrimSpace(row[i]), true
	}
	num := func(i int, name string) float64 {
		v, ok := cell(i, name)
		if !ok {
			return 0
		}
		f, err := ParseDecimal(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
		}
		return f
	}
	integer := func(i int, name string) int {
		f := num(i, name)
		if f != math.Trunc(f) {
			errs = multierr.Append(errs, fmt.Errorf("%s: %v is not a whole number", name, f))
		}
		return int(f)
	}

	if v, ok := cell(colEnabled, "enabled"); ok {
		s.Enabled = ParseSwitch(v)
	}
	if v, ok := cell(colStrategy, "strategy"); ok {
		s.StrategyTag = v
	}
	s.CapitalFraction = num(colCapitalFraction, "capital_fraction")
	s.MinVolume = num(colMinVolume, "min_volume")
	s.IntervalSeconds = integer(colInterval, "interval_seconds")
	s.MaxCandidates = integer(colMaxCandidates, "max_candidates")
	s.MaxOpenPositions = integer(colMaxPositions, "max_open_positions")
	s.ProfitTargetPercent = num(colProfitTarget, "profit_target_percent")
	if v, ok := cell(colTestMode, "test_mode"); ok {
		s.TestMode = ParseSwitch(v)
	}
	s.VolatilityWindowHours = integer(colWindowHours, "volatility_window_hours")

	if errs != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidConfig, errs)
	}
	return s, s.Validate()
}

// Validate checks that every field is usable for a cycle.
func (s Snapshot) Validate() error {
	var errs error
	if s.CapitalFraction <= 0 || s.CapitalFraction > 1 {
		errs = multierr.Append(errs, fmt.Errorf("capital_fraction (%f) must be >0 and <=1", s.CapitalFraction))
	}
	if s.MinVolume < 0 {
		errs = multierr.Append(errs, fmt.Errorf("min_volume cannot be negative"))
	}
	if s.IntervalSeconds <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("interval_seconds must be positive"))
	}
	if s.MaxCandidates <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("max_candidates must be positive"))
	}
	if s.VolatilityWindowHours < 2 {
		errs = multierr.Append(errs, fmt.Errorf("volatility_window_hours must be at least 2"))
	}
	if s.MaxOpenPositions < 0 {
		errs = multierr.Append(errs, fmt.Errorf("max_open_positions cannot be negative"))
	}
	if s.ProfitTargetPercent <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("profit_target_percent (%f) must be positive", s.ProfitTargetPercent))
	}
	if errs != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, errs)
	}
	return nil
}

// ParseDecimal accepts both "0,25" and "0.25".
func ParseDecimal(v string) (float64, error) {
	v = strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
	v = strings.TrimSuffix(v, "%")
	return strconv.ParseFloat(v, 64)
}

// ParseSwitch maps the on/off cell values the sheet uses to a bool.
func ParseSwitch(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "ligado", "on", "true", "yes", "1", "sim":
		return true
	}
	return false
}
