package config

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

// Validate 汇总所有字段错误后一次返回。
func Validate(cfg AppConfig) error {
	var errs error
	add := func(err error) { errs = multierr.Append(errs, err) }

	if cfg.Env == "" {
		add(errors.New("env is required"))
	}

	a := cfg.Account
	switch a.Mode {
	case ModeSim:
		if a.InitialCapital <= 0 {
			add(errors.New("account.initial_capital must be > 0"))
		}
	case ModeLive:
	default:
		add(fmt.Errorf("account.mode must be %q or %q, got %q", ModeSim, ModeLive, a.Mode))
	}
	if a.CommissionRate < 0 {
		add(errors.New("account.commission_rate must be >= 0"))
	}
	if a.Slippage < 0 || a.Slippage >= 1 {
		add(errors.New("account.slippage must be in [0, 1)"))
	}
	if a.EquitySampleEvery < 1 {
		add(errors.New("account.equity_sample_every must be >= 1"))
	}

	if cfg.Risk.ConfigFile == "" {
		add(errors.New("risk.config_file is required"))
	}
	if cfg.Risk.Profile == "" {
		add(errors.New("risk.profile is required"))
	}

	if cfg.Audit.MaxRecords < 0 || cfg.Audit.QueueSize < 0 {
		add(errors.New("audit.max_records/queue_size must be >= 0"))
	}

	m := cfg.Monitor
	if m.Interval < 0 {
		add(errors.New("monitor.interval must be >= 0"))
	}
	if m.PositionRatioWarning > 0 && m.PositionRatioCritical > 0 && m.PositionRatioWarning > m.PositionRatioCritical {
		add(errors.New("monitor.position_ratio_warning must not exceed position_ratio_critical"))
	}
	if m.DailyLossWarning > 0 && m.DailyLossCritical > 0 && m.DailyLossWarning > m.DailyLossCritical {
		add(errors.New("monitor.daily_loss_warning must not exceed daily_loss_critical"))
	}

	s := cfg.Scheduler
	if s.Tick < 0 || s.DailyResetInterval < 0 || s.OrderCleanupInterval < 0 || s.AuditStatsInterval < 0 || s.OrderMaxAge < 0 {
		add(errors.New("scheduler intervals must be >= 0"))
	}

	if cfg.Log.Level != "" {
		if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
			add(fmt.Errorf("log.level: %w", err))
		}
	}

	for i, c := range cfg.Contracts {
		if c.Product == "" {
			add(fmt.Errorf("contracts[%d].product is required", i))
		}
		if c.Multiplier <= 0 {
			add(fmt.Errorf("contracts[%d] (%s) multiplier must be > 0", i, c.Product))
		}
	}
	return errs
}
