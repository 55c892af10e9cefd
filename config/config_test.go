package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-analytics/internal/backtest"
	"trading-analytics/internal/model"
	"trading-analytics/internal/strategy"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.RedisEnabled())
	assert.Equal(t, 100000.0, cfg.Risk.Limits.MaxPositionSize)
	assert.Equal(t, backtest.SizingFixedFraction, cfg.Backtest.Sizing.Mode)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Gateway.ListenAddr)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "analytics.toml", `
[app]
service = "bt-worker"
log_level = "debug"

[storage]
sqlite_path = "/tmp/a.db"
redis_addr = "localhost:6379"
result_ttl = "2h"

[backtest]
initial_capital = 250000.0
commission_bps = 3.0
parallelism = 8

[backtest.sizing]
mode = "fixed_notional"
value = 50000.0

[risk.limits]
max_position_size = 75000.0
max_daily_loss = 2000.0
max_portfolio_concentration_pct = 20.0
max_leverage = 1.5

[analytics]
periods_per_year = 252.0
risk_free_rate = 0.065
holidays = ["2026-12-30"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bt-worker", cfg.App.Service)
	assert.Equal(t, "/tmp/a.db", cfg.Storage.SQLitePath)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, 2*time.Hour, cfg.Storage.ResultTTL)
	assert.Equal(t, 250000.0, cfg.Backtest.InitialCapital)
	assert.Equal(t, backtest.SizingPolicy{Mode: backtest.SizingFixedNotional, Value: 50000}, cfg.Backtest.Sizing)
	assert.Equal(t, model.RiskLimits{
		MaxPositionSize:              75000,
		MaxDailyLoss:                 2000,
		MaxPortfolioConcentrationPct: 20,
		MaxLeverage:                  1.5,
	}, cfg.Risk.Limits)
	assert.InDelta(t, 0.065, cfg.Analytics.RiskFreeRate, 1e-12)
	assert.Equal(t, []string{"2026-12-30"}, cfg.Analytics.Holidays)
	// untouched sections keep their defaults
	assert.Equal(t, 5, cfg.Storage.BreakerFails)
	assert.Equal(t, ":9090", cfg.Gateway.MetricsAddr)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "analytics.yaml", `
app:
  service: yaml-svc
gateway:
  listen_addr: ":9000"
  cors_origins: ["http://localhost:3000"]
backtest:
  allow_short: true
  drawdown_alert: 0.2
notify:
  webhook_url: http://hooks.local/x
  timeout: 3s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "yaml-svc", cfg.App.Service)
	assert.Equal(t, ":9000", cfg.Gateway.ListenAddr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Gateway.CORSOrigins)
	assert.True(t, cfg.Backtest.AllowShort)
	assert.InDelta(t, 0.2, cfg.Backtest.DrawdownAlert, 1e-12)
	assert.Equal(t, "http://hooks.local/x", cfg.Notify.WebhookURL)
	assert.Equal(t, 3*time.Second, cfg.Notify.Timeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "analytics.toml", `
[gateway]
listen_addr = ":7000"
`)
	t.Setenv("QA_LISTEN_ADDR", ":7777")
	t.Setenv("QA_REDIS_ADDR", "redis:6379")
	t.Setenv("QA_MAX_LEVERAGE", "2.5")
	t.Setenv("QA_ALLOW_SHORT", "true")
	t.Setenv("QA_CORS_ORIGINS", "a.example, b.example,")
	t.Setenv("QA_PARALLELISM", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.Gateway.ListenAddr)
	assert.Equal(t, "redis:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, 2.5, cfg.Risk.Limits.MaxLeverage)
	assert.True(t, cfg.Backtest.AllowShort)
	assert.Equal(t, []string{"a.example", "b.example"}, cfg.Gateway.CORSOrigins)
	assert.Equal(t, 4, cfg.Backtest.Parallelism, "unparsable override is ignored")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	bad := writeFile(t, "bad.yml", "app: [unclosed")
	_, err = Load(bad)
	assert.Error(t, err)

	invalid := writeFile(t, "invalid.toml", `
[backtest]
initial_capital = -1.0
`)
	_, err = Load(invalid)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestValidate_ReportsEveryField(t *testing.T) {
	cfg := Defaults()
	cfg.App.LogLevel = "loud"
	cfg.Backtest.Parallelism = 0
	cfg.Backtest.Sizing = backtest.SizingPolicy{Mode: backtest.SizingFixedFraction, Value: 2}
	cfg.Risk.Limits.MaxDailyLoss = -5
	cfg.Analytics.Holidays = []string{"30/12/2026"}

	err := cfg.Validate()
	require.Error(t, err)

	fields := map[string]bool{}
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var ce *model.ConfigurationError
		require.True(t, errors.As(e, &ce), "%v", e)
		fields[ce.Field] = true
	}
	for _, f := range []string{"app.log_level", "backtest.parallelism", "sizing.value", "max_daily_loss", "analytics.holidays"} {
		assert.True(t, fields[f], "missing %s in %v", f, err)
	}
}

func TestBacktestConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Backtest.CommissionBps = 2
	cfg.Analytics.RiskFreeRate = 0.05

	bc := cfg.BacktestConfig(strategy.Config{Kind: strategy.KindSMACrossover})
	assert.Equal(t, strategy.KindSMACrossover, bc.Strategy.Kind)
	assert.Equal(t, 2.0, bc.CommissionBps)
	assert.Equal(t, 0.05, bc.RiskFreeRate)
	assert.Equal(t, 1.0, bc.LotSize)
	require.NoError(t, bc.Validate())
}
