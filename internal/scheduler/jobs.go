package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"futures-risk-go/risk"
)

// DailyResetter 日统计重置
type DailyResetter interface {
	ResetDaily()
}

// OrderCleaner 清理终态订单
type OrderCleaner interface {
	Cleanup(maxAge time.Duration, now time.Time) int
}

// AuditSource 审计统计来源
type AuditSource interface {
	Stats() risk.AuditStats
	Dropped() int64
	WriteErrors() int64
}

// DailyResetJob 依次重置所有日统计
func DailyResetJob(targets ...DailyResetter) Func {
	return func(context.Context) error {
		for _, t := range targets {
			t.ResetDaily()
		}
		return nil
	}
}

// OrderCleanupJob 删除超过 maxAge 的终态订单
func OrderCleanupJob(c OrderCleaner, maxAge time.Duration, logger *zap.Logger) Func {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(context.Context) error {
		if n := c.Cleanup(maxAge, time.Now()); n > 0 {
			logger.Info("terminal orders cleaned", zap.Int("removed", n))
		}
		return nil
	}
}

// AuditStatsJob 输出一行审计统计
func AuditStatsJob(a AuditSource, logger *zap.Logger) Func {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(context.Context) error {
		st := a.Stats()
		logger.Info("risk audit stats",
			zap.Int("total", st.Total),
			zap.Int("passed", st.Passed),
			zap.Int("blocked", st.Blocked),
			zap.Int("warning", st.Warning),
			zap.Float64("pass_rate", st.PassRate),
			zap.Int64("dropped", a.Dropped()),
			zap.Int64("write_errors", a.WriteErrors()))
		return nil
	}
}
