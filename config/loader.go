package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load merges the file at path (TOML, or YAML for .yaml/.yml) over the
// defaults, loads .env if present, applies QA_* overrides and validates.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return nil
}

// applyEnvOverrides overwrites fields whose QA_* variable is set, so
// secrets can be injected at deploy time without touching the file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.App.Service, "QA_SERVICE")
	setStr(&cfg.App.LogLevel, "QA_LOG_LEVEL")

	setStr(&cfg.Storage.SQLitePath, "QA_SQLITE_PATH")
	setStr(&cfg.Storage.JournalPath, "QA_JOURNAL_PATH")
	setStr(&cfg.Storage.RedisAddr, "QA_REDIS_ADDR")
	setStr(&cfg.Storage.RedisPassword, "QA_REDIS_PASSWORD")
	setInt(&cfg.Storage.RedisDB, "QA_REDIS_DB")
	setDuration(&cfg.Storage.ResultTTL, "QA_RESULT_TTL")

	setStr(&cfg.Gateway.ListenAddr, "QA_LISTEN_ADDR")
	setStr(&cfg.Gateway.MetricsAddr, "QA_METRICS_ADDR")
	setStr(&cfg.Gateway.TOTPSecret, "QA_TOTP_SECRET")
	setStringSlice(&cfg.Gateway.CORSOrigins, "QA_CORS_ORIGINS")

	setFloat64(&cfg.Backtest.InitialCapital, "QA_INITIAL_CAPITAL")
	setFloat64(&cfg.Backtest.SlippageBps, "QA_SLIPPAGE_BPS")
	setFloat64(&cfg.Backtest.CommissionBps, "QA_COMMISSION_BPS")
	setInt(&cfg.Backtest.Parallelism, "QA_PARALLELISM")
	setBool(&cfg.Backtest.AllowShort, "QA_ALLOW_SHORT")

	setFloat64(&cfg.Risk.Limits.MaxPositionSize, "QA_MAX_POSITION_SIZE")
	setFloat64(&cfg.Risk.Limits.MaxDailyLoss, "QA_MAX_DAILY_LOSS")
	setFloat64(&cfg.Risk.Limits.MaxPortfolioConcentrationPct, "QA_MAX_CONCENTRATION_PCT")
	setFloat64(&cfg.Risk.Limits.MaxLeverage, "QA_MAX_LEVERAGE")

	setFloat64(&cfg.Analytics.PeriodsPerYear, "QA_PERIODS_PER_YEAR")
	setFloat64(&cfg.Analytics.RiskFreeRate, "QA_RISK_FREE_RATE")
	setStringSlice(&cfg.Analytics.Holidays, "QA_HOLIDAYS")

	setStr(&cfg.Notify.WebhookURL, "QA_WEBHOOK_URL")
}

// Each helper only mutates the target when the variable is set and parses.

func getEnv(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func setStr(dst *string, key string) {
	if v, ok := getEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := getEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v, ok := getEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := getEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := getEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	v, ok := getEnv(key)
	if !ok {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}
