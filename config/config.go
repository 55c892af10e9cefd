// Package config holds the service configuration: built-in defaults, an
// optional TOML or YAML file, a .env file and QA_* environment overrides,
// applied in that order.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"trading-analytics/internal/analytics"
	"trading-analytics/internal/backtest"
	"trading-analytics/internal/model"
	"trading-analytics/internal/risk"
	"trading-analytics/internal/strategy"
)

// Config holds all application configuration.
type Config struct {
	App       App       `toml:"app" yaml:"app"`
	Storage   Storage   `toml:"storage" yaml:"storage"`
	Gateway   Gateway   `toml:"gateway" yaml:"gateway"`
	Backtest  Backtest  `toml:"backtest" yaml:"backtest"`
	Risk      Risk      `toml:"risk" yaml:"risk"`
	Analytics Analytics `toml:"analytics" yaml:"analytics"`
	Notify    Notify    `toml:"notify" yaml:"notify"`
}

// App is process-wide settings.
type App struct {
	Service  string `toml:"service" yaml:"service"`
	LogLevel string `toml:"log_level" yaml:"log_level"`
}

// Storage locates the SQLite journal and the optional Redis cache.
type Storage struct {
	SQLitePath    string        `toml:"sqlite_path" yaml:"sqlite_path"`
	JournalPath   string        `toml:"journal_path" yaml:"journal_path"` // paper fills
	RedisAddr     string        `toml:"redis_addr" yaml:"redis_addr"`     // empty disables the cache
	RedisPassword string        `toml:"redis_password" yaml:"redis_password"`
	RedisDB       int           `toml:"redis_db" yaml:"redis_db"`
	ResultTTL     time.Duration `toml:"result_ttl" yaml:"result_ttl"`
	BreakerFails  int           `toml:"breaker_failures" yaml:"breaker_failures"`
	BreakerReset  time.Duration `toml:"breaker_reset" yaml:"breaker_reset"`
}

// Gateway configures the HTTP/WebSocket service.
type Gateway struct {
	ListenAddr  string `toml:"listen_addr" yaml:"listen_addr"`
	MetricsAddr string `toml:"metrics_addr" yaml:"metrics_addr"`
	// TOTPSecret enables the X-TOTP-Code guard on state-changing endpoints.
	TOTPSecret  string   `toml:"totp_secret" yaml:"totp_secret"`
	CORSOrigins []string `toml:"cors_origins" yaml:"cors_origins"`
}

// Backtest holds the defaults applied to backtest requests.
type Backtest struct {
	InitialCapital float64               `toml:"initial_capital" yaml:"initial_capital"`
	Sizing         backtest.SizingPolicy `toml:"sizing" yaml:"sizing"`
	SlippageBps    float64               `toml:"slippage_bps" yaml:"slippage_bps"`
	CommissionBps  float64               `toml:"commission_bps" yaml:"commission_bps"`
	AllowShort     bool                  `toml:"allow_short" yaml:"allow_short"`
	Pyramiding     bool                  `toml:"pyramiding" yaml:"pyramiding"`
	Parallelism    int                   `toml:"parallelism" yaml:"parallelism"`
	DrawdownAlert  float64               `toml:"drawdown_alert" yaml:"drawdown_alert"`
}

// Risk holds the validator limits and the paper account's opening cash.
type Risk struct {
	Limits      model.RiskLimits `toml:"limits" yaml:"limits"`
	PaperCash   float64          `toml:"paper_cash" yaml:"paper_cash"`
	DailyResetH int              `toml:"daily_reset_hour" yaml:"daily_reset_hour"` // IST hour the daily P&L resets
}

// Analytics holds annualization and score settings.
type Analytics struct {
	PeriodsPerYear float64                   `toml:"periods_per_year" yaml:"periods_per_year"`
	RiskFreeRate   float64                   `toml:"risk_free_rate" yaml:"risk_free_rate"` // annual
	Thresholds     analytics.ScoreThresholds `toml:"thresholds" yaml:"thresholds"`
	Holidays       []string                  `toml:"holidays" yaml:"holidays"` // extra YYYY-MM-DD exchange holidays
}

// Notify configures alert delivery.
type Notify struct {
	WebhookURL string        `toml:"webhook_url" yaml:"webhook_url"`
	Timeout    time.Duration `toml:"timeout" yaml:"timeout"`
}

// Defaults returns a Config that runs locally without any file.
func Defaults() Config {
	return Config{
		App: App{Service: "analyticsd", LogLevel: "info"},
		Storage: Storage{
			SQLitePath:   "data/analytics.db",
			JournalPath:  "data/paper_fills.db",
			ResultTTL:    24 * time.Hour,
			BreakerFails: 5,
			BreakerReset: 10 * time.Second,
		},
		Gateway: Gateway{ListenAddr: ":8080", MetricsAddr: ":9090"},
		Backtest: Backtest{
			InitialCapital: 100000,
			Sizing:         backtest.DefaultSizing(),
			Parallelism:    4,
		},
		Risk: Risk{
			Limits:      risk.DefaultRiskLimits(),
			PaperCash:   1000000,
			DailyResetH: 9,
		},
		Analytics: Analytics{
			PeriodsPerYear: analytics.DefaultPeriodsPerYear,
			RiskFreeRate:   0,
			Thresholds:     analytics.DefaultScoreThresholds(),
		},
		Notify: Notify{Timeout: 10 * time.Second},
	}
}

// RedisEnabled reports whether a Redis address is configured.
func (c *Config) RedisEnabled() bool { return c.Storage.RedisAddr != "" }

// BacktestConfig applies the configured defaults to a strategy config.
func (c *Config) BacktestConfig(s strategy.Config) backtest.Config {
	cfg := backtest.DefaultConfig(s)
	cfg.InitialCapital = c.Backtest.InitialCapital
	cfg.Sizing = c.Backtest.Sizing
	cfg.SlippageBps = c.Backtest.SlippageBps
	cfg.CommissionBps = c.Backtest.CommissionBps
	cfg.AllowShort = c.Backtest.AllowShort
	cfg.Pyramiding = c.Backtest.Pyramiding
	cfg.PeriodsPerYear = c.Analytics.PeriodsPerYear
	cfg.RiskFreeRate = c.Analytics.RiskFreeRate
	cfg.DrawdownAlert = c.Backtest.DrawdownAlert
	return cfg
}

// Validate reports every invalid field, joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(field, reason string) {
		errs = append(errs, &model.ConfigurationError{Field: field, Reason: reason})
	}

	if c.App.Service == "" {
		add("app.service", "required")
	}
	switch strings.ToLower(c.App.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("app.log_level", fmt.Sprintf("unknown level %q", c.App.LogLevel))
	}
	if c.Storage.SQLitePath == "" {
		add("storage.sqlite_path", "required")
	}
	if c.Storage.RedisDB < 0 {
		add("storage.redis_db", "must be non-negative")
	}
	if c.Storage.BreakerFails < 1 {
		add("storage.breaker_failures", "must be at least 1")
	}
	if c.Gateway.ListenAddr == "" {
		add("gateway.listen_addr", "required")
	}
	if !(c.Backtest.InitialCapital > 0) {
		add("backtest.initial_capital", "must be positive")
	}
	if err := c.Backtest.Sizing.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Backtest.SlippageBps < 0 {
		add("backtest.slippage_bps", "must be non-negative")
	}
	if c.Backtest.CommissionBps < 0 {
		add("backtest.commission_bps", "must be non-negative")
	}
	if c.Backtest.Parallelism < 1 {
		add("backtest.parallelism", "must be at least 1")
	}
	if c.Backtest.DrawdownAlert < 0 || c.Backtest.DrawdownAlert > 1 {
		add("backtest.drawdown_alert", "must be a fraction in [0, 1]")
	}
	if err := c.Risk.Limits.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Risk.PaperCash < 0 {
		add("risk.paper_cash", "must be non-negative")
	}
	if c.Risk.DailyResetH < 0 || c.Risk.DailyResetH > 23 {
		add("risk.daily_reset_hour", "must be in [0, 23]")
	}
	if c.Analytics.PeriodsPerYear < 0 {
		add("analytics.periods_per_year", "must be non-negative")
	}
	for _, d := range c.Analytics.Holidays {
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			add("analytics.holidays", fmt.Sprintf("bad date %q", d))
		}
	}
	return errors.Join(errs...)
}
