package sim

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"futures-risk-go/contract"
	"futures-risk-go/infrastructure/logger"
	"futures-risk-go/internal/engine"
	"futures-risk-go/order"
	"futures-risk-go/portfolio"
	"futures-risk-go/risk"
)

// RunnerConfig 描述 Runner 的可选参数。
type RunnerConfig struct {
	Symbol            string
	InitialCapital    float64
	CommissionRate    float64
	Slippage          float64
	EquitySampleEvery int

	Risk      risk.Config
	Audit     risk.AuditConfig
	Contracts *contract.Registry
	Metrics   engine.Metrics
	Logger    *zap.Logger
}

// BuildRunner 基于配置组装 Runner（内存账本，时钟跟随 K 线）。
func BuildRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Symbol == "" {
		return nil, errors.New("symbol is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Contracts == nil {
		cfg.Contracts = contract.Default()
	}
	clock := &BarClock{}

	ledger, err := portfolio.New(portfolio.Config{
		InitialCapital: cfg.InitialCapital,
		CommissionRate: cfg.CommissionRate,
		Slippage:       cfg.Slippage,
		Contracts:      cfg.Contracts,
		Clock:          clock.Now,
		Logger:         cfg.Logger.Named("portfolio"),
	})
	if err != nil {
		return nil, fmt.Errorf("build portfolio: %w", err)
	}
	audit, err := risk.NewAuditLog(cfg.Audit, cfg.Logger.Named("audit"))
	if err != nil {
		return nil, fmt.Errorf("build audit log: %w", err)
	}
	if err := cfg.Risk.Validate(); err != nil {
		return nil, fmt.Errorf("risk config: %w", err)
	}
	rm := risk.NewManager(cfg.Risk, risk.Options{
		Contracts: cfg.Contracts,
		Audit:     audit,
		Clock:     clock,
		Logger:    cfg.Logger.Named("risk"),
	})
	eng, err := engine.New(engine.Config{EquitySampleEvery: cfg.EquitySampleEvery}, engine.Components{
		Portfolio: ledger,
		Risk:      rm,
		Orders:    order.NewManager(cfg.Logger.Named("orders")),
		Contracts: cfg.Contracts,
		Metrics:   cfg.Metrics,
		Logger:    logger.Wrap(cfg.Logger.Named("engine")),
		Clock:     clock.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	return &Runner{
		Symbol: cfg.Symbol,
		Engine: eng,
		Ledger: ledger,
		Risk:   rm,
		Clock:  clock,
		Logger: cfg.Logger,
	}, nil
}
