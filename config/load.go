package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"futures-risk-go/contract"
	"futures-risk-go/infrastructure/logger"
	riskmon "futures-risk-go/internal/risk"
	"futures-risk-go/risk"
)

// 账户模式
const (
	ModeSim  = "sim"
	ModeLive = "live"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env       string                `yaml:"env"`
	Account   AccountConfig         `yaml:"account"`
	Risk      RiskConfig            `yaml:"risk"`
	Audit     risk.AuditConfig      `yaml:"audit"`
	Monitor   riskmon.MonitorConfig `yaml:"monitor"`
	Scheduler SchedulerConfig       `yaml:"scheduler"`
	Alert     AlertConfig           `yaml:"alert"`
	Log       logger.Config         `yaml:"log"`
	Metrics   MetricsConfig         `yaml:"metrics"`
	Contracts []contract.Spec       `yaml:"contracts"` // 覆盖或补充内置合约表
}

// AccountConfig 回测账本参数；live 模式下只用 StrictSymbols。
type AccountConfig struct {
	Mode              string  `yaml:"mode"`
	InitialCapital    float64 `yaml:"initial_capital"`
	CommissionRate    float64 `yaml:"commission_rate"`
	Slippage          float64 `yaml:"slippage"`
	EquitySampleEvery int     `yaml:"equity_sample_every"`
	StrictSymbols     bool    `yaml:"strict_symbols"` // 拒绝合约表中不存在的品种
}

// RiskConfig 指向命名风控配置文档
type RiskConfig struct {
	ConfigFile string `yaml:"config_file"`
	Profile    string `yaml:"profile"`
	HotReload  bool   `yaml:"hot_reload"`
}

type SchedulerConfig struct {
	Tick                 time.Duration `yaml:"tick"`
	DailyResetInterval   time.Duration `yaml:"daily_reset_interval"`
	OrderCleanupInterval time.Duration `yaml:"order_cleanup_interval"`
	OrderMaxAge          time.Duration `yaml:"order_max_age"`
	AuditStatsInterval   time.Duration `yaml:"audit_stats_interval"`
}

type AlertConfig struct {
	ThrottleInterval time.Duration `yaml:"throttle_interval"`
}

type MetricsConfig struct {
	Listen    string `yaml:"listen"` // 为空时不启动 /metrics
	Namespace string `yaml:"namespace"`
}

// Default 返回内置默认配置，Load 在其基础上覆盖。
func Default() AppConfig {
	return AppConfig{
		Env: "dev",
		Account: AccountConfig{
			Mode:              ModeSim,
			InitialCapital:    1_000_000,
			CommissionRate:    0.0001,
			EquitySampleEvery: 1,
		},
		Risk: RiskConfig{
			ConfigFile: "configs/risk.yaml",
			Profile:    risk.DefaultConfigName,
			HotReload:  true,
		},
		Audit: risk.AuditConfig{
			File:       "logs/risk_audit.jsonl",
			MaxRecords: risk.DefaultAuditMaxRecords,
			QueueSize:  risk.DefaultAuditQueueSize,
		},
		Monitor: riskmon.DefaultMonitorConfig(),
		Scheduler: SchedulerConfig{
			Tick:                 time.Second,
			DailyResetInterval:   24 * time.Hour,
			OrderCleanupInterval: time.Hour,
			OrderMaxAge:          24 * time.Hour,
			AuditStatsInterval:   10 * time.Minute,
		},
		Alert:   AlertConfig{ThrottleInterval: 5 * time.Minute},
		Log:     logger.DefaultConfig(),
		Metrics: MetricsConfig{Namespace: "frg"},
	}
}

// Load reads YAML config from path and applies validation.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then applies FRG_* environment overrides.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return cfg, err
		}
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

// ApplyEnv 用环境变量覆盖配置，lookup 通常为 os.LookupEnv
func ApplyEnv(cfg *AppConfig, lookup func(string) (string, bool)) error {
	var errs error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("FRG_ENV", &cfg.Env)
	str("FRG_ACCOUNT_MODE", &cfg.Account.Mode)
	float("FRG_INITIAL_CAPITAL", &cfg.Account.InitialCapital)
	float("FRG_COMMISSION_RATE", &cfg.Account.CommissionRate)
	str("FRG_RISK_CONFIG_FILE", &cfg.Risk.ConfigFile)
	str("FRG_RISK_PROFILE", &cfg.Risk.Profile)
	boolean("FRG_RISK_HOT_RELOAD", &cfg.Risk.HotReload)
	str("FRG_AUDIT_FILE", &cfg.Audit.File)
	str("FRG_LOG_LEVEL", &cfg.Log.Level)
	str("FRG_METRICS_LISTEN", &cfg.Metrics.Listen)
	return errs
}
