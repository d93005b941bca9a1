package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Average price variants for the position monitor.
const (
	AvgFilled         = "filled"
	AvgFilledOrMarket = "filled_or_market"
)

// Volatility estimators for the screener.
const (
	EstimatorSample     = "sample"
	EstimatorPopulation = "population"
)

// Exit policies for cycles in which both the profit target and the trailing
// stop fire for the same symbol.
const (
	ExitFirstTrigger = "first_trigger"
	ExitBoth         = "both"
)

// Settings holds the static, process-lifetime parameters. Everything the
// operator tunes while the bot runs lives in Snapshot instead.
type Settings struct {
	Exchange ExchangeSettings `yaml:"exchange"`
	Engine   EngineSettings   `yaml:"engine"`
	Trailing TrailingSettings `yaml:"trailing"`
	Filter   FilterSettings   `yaml:"filter"`
	Store    StoreSettings    `yaml:"store"`
	Notify   NotifySettings   `yaml:"notify"`
	Logging  LoggingSettings  `yaml:"logging"`
	Metrics  MetricsSettings  `yaml:"metrics"`
}

type ExchangeSettings struct {
	APIKeyEnv         string        `yaml:"api_key_env"`
	APISecretEnv      string        `yaml:"api_secret_env"`
	Testnet           bool          `yaml:"testnet"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond int           `yaml:"requests_per_second"`
	BurstSize         int           `yaml:"burst_size"`
	OrderPageSize     int           `yaml:"order_page_size"`
}

type EngineSettings struct {
	QuoteAsset      string        `yaml:"quote_asset"`
	IgnoreAssets    []string      `yaml:"ignore_assets"`
	CandleInterval  string        `yaml:"candle_interval"`
	DisabledBackoff time.Duration `yaml:"disabled_backoff"`
	HeldThreshold   float64       `yaml:"held_threshold"`
	ScreenWorkers   int           `yaml:"screen_workers"`
	AvgPriceVariant string        `yaml:"avg_price_variant"`
	ExitPolicy      string        `yaml:"exit_policy"`
	Estimator       string        `yaml:"volatility_estimator"`
}

// TrailingSettings are percentages, e.g. 30 means 30 %.
type TrailingSettings struct {
	ActivationPercent float64 `yaml:"activation_percent"`
	TrailingPercent   float64 `yaml:"trailing_percent"`
	MinStopPercent    float64 `yaml:"min_stop_percent"`
}

type FilterSettings struct {
	Enforce        bool    `yaml:"enforce"`
	SMAWindowHours int     `yaml:"sma_window_hours"`
	RSIPeriod      int     `yaml:"rsi_period"`
	RSIMax         float64 `yaml:"rsi_max"`
	Bollinger      bool    `yaml:"bollinger"`
	BollingerHours int     `yaml:"bollinger_hours"`
	HMAConfirm     bool    `yaml:"hma_confirm"`
	HMAWindowHours int     `yaml:"hma_window_hours"`
}

type StoreSettings struct {
	Kind            string        `yaml:"kind"` // sheets | file
	SpreadsheetID   string        `yaml:"spreadsheet_id"`
	CredentialsFile string        `yaml:"credentials_file"`
	ConfigRange     string        `yaml:"config_range"`
	StatusRange     string        `yaml:"status_range"`
	BlacklistRange  string        `yaml:"blacklist_range"`
	LogRange        string        `yaml:"log_range"`
	FilePath        string        `yaml:"file_path"`
	AppendRetries   int           `yaml:"append_retries"`
	AppendBackoff   time.Duration `yaml:"append_backoff"`
}

type NotifySettings struct {
	Enabled     bool   `yaml:"enabled"`
	SMTPHost    string `yaml:"smtp_host"`
	SMTPPort    int    `yaml:"smtp_port"`
	From        string `yaml:"from"`
	To          string `yaml:"to"`
	UsernameEnv string `yaml:"username_env"`
	PasswordEnv string `yaml:"password_env"`
}

type LoggingSettings struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type MetricsSettings struct {
	Addr string `yaml:"addr"`
}

// Default returns the settings the observed bot ran with.
func Default() Settings {
	return Settings{
		Exchange: ExchangeSettings{
			APIKeyEnv:         "BINANCE_API_KEY",
			APISecretEnv:      "BINANCE_API_SECRET",
			Timeout:           10 * time.Second,
			RequestsPerSecond: 10,
			BurstSize:         5,
			OrderPageSize:     100,
		},
		Engine: EngineSettings{
			QuoteAsset:      "USDT",
			IgnoreAssets:    []string{"BRL"},
			CandleInterval:  "1h",
			DisabledBackoff: 60 * time.Second,
			HeldThreshold:   0.1,
			ScreenWorkers:   16,
			AvgPriceVariant: AvgFilled,
			ExitPolicy:      ExitFirstTrigger,
			Estimator:       EstimatorSample,
		},
		Trailing: TrailingSettings{
			ActivationPercent: 30,
			TrailingPercent:   30,
			MinStopPercent:    7,
		},
		Filter: FilterSettings{
			SMAWindowHours: 20,
			RSIPeriod:      14,
			RSIMax:         70,
			BollingerHours: 24,
			HMAWindowHours: 48,
		},
		Store: StoreSettings{
			Kind:           "sheets",
			ConfigRange:    "Página1!B2:L2",
			StatusRange:    "Página1!M2",
			BlacklistRange: "Página1!N2:N",
			LogRange:       "Página2!A:A",
			AppendRetries:  3,
			AppendBackoff:  2 * time.Second,
		},
		Notify: NotifySettings{
			SMTPHost:    "smtp.gmail.com",
			SMTPPort:    587,
			UsernameEnv: "SMTP_USERNAME",
			PasswordEnv: "SMTP_PASSWORD",
		},
		Logging: LoggingSettings{Level: "info", MaxSizeMB: 100, MaxAgeDays: 7},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (Settings, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("cannot parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports every out-of-range field at once.
func (s *Settings) Validate() error {
	var errs error
	add := func(format string, args ...interface{}) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}

	if s.Engine.QuoteAsset == "" {
		add("engine.quote_asset must be set")
	}
	if s.Engine.CandleInterval == "" {
		add("engine.candle_interval must be set")
	}
	if s.Engine.DisabledBackoff <= 0 {
		add("engine.disabled_backoff must be positive")
	}
	if s.Engine.HeldThreshold < 0 {
		add("engine.held_threshold cannot be negative")
	}
	if s.Engine.ScreenWorkers <= 0 {
		add("engine.screen_workers must be positive")
	}
	switch s.Engine.AvgPriceVariant {
	case AvgFilled, AvgFilledOrMarket:
	default:
		add("engine.avg_price_variant %q unknown", s.Engine.AvgPriceVariant)
	}
	switch s.Engine.ExitPolicy {
	case ExitFirstTrigger, ExitBoth:
	default:
		add("engine.exit_policy %q unknown", s.Engine.ExitPolicy)
	}
	switch s.Engine.Estimator {
	case EstimatorSample, EstimatorPopulation:
	default:
		add("engine.volatility_estimator %q unknown", s.Engine.Estimator)
	}
	if s.Trailing.ActivationPercent <= 0 {
		add("trailing.activation_percent (%f) must be positive", s.Trailing.ActivationPercent)
	}
	if s.Trailing.TrailingPercent <= 0 || s.Trailing.TrailingPercent >= 100 {
		add("trailing.trailing_percent (%f) must be between 0 and 100", s.Trailing.TrailingPercent)
	}
	if s.Trailing.MinStopPercent < 0 {
		add("trailing.min_stop_percent cannot be negative")
	}
	if s.Filter.SMAWindowHours < 2 {
		add("filter.sma_window_hours must be at least 2")
	}
	if s.Filter.RSIPeriod <= 0 {
		add("filter.rsi_period must be positive")
	}
	if s.Filter.RSIMax <= 0 || s.Filter.RSIMax > 100 {
		add("filter.rsi_max (%f) must be in (0, 100]", s.Filter.RSIMax)
	}
	if s.Exchange.Timeout <= 0 {
		add("exchange.timeout must be positive")
	}
	if s.Exchange.OrderPageSize <= 0 || s.Exchange.OrderPageSize > 1000 {
		add("exchange.order_page_size must be in [1, 1000]")
	}
	switch s.Store.Kind {
	case "sheets":
		if s.Store.SpreadsheetID == "" {
			add("store.spreadsheet_id must be set for the sheets store")
		}
	case "file":
		if s.Store.FilePath == "" {
			add("store.file_path must be set for the file store")
		}
	default:
		add("store.kind %q unknown", s.Store.Kind)
	}
	if s.Store.AppendRetries <= 0 {
		add("store.append_retries must be positive")
	}
	if s.Notify.Enabled && (s.Notify.From == "" || s.Notify.To == "" || s.Notify.SMTPHost == "") {
		add("notify.from, notify.to and notify.smtp_host are required when notify is enabled")
	}

	if errs != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, errs)
	}
	return nil
}
