package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEquityTrackerDayStartAndDrawdown(t *testing.T) {
	day := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	tr := NewEquityTracker()

	s := tr.Update(1_000_000, day)
	assert.Equal(t, 1_000_000.0, s.DayStart)
	assert.Zero(t, s.DailyPnL)

	tr.Update(1_050_000, day.Add(time.Hour))
	s = tr.Update(966_000, day.Add(2*time.Hour))
	assert.InDelta(t, -34_000.0, s.DailyPnL, 1e-9)
	assert.InDelta(t, -0.034, s.DailyPnLRatio, 1e-12)
	assert.Equal(t, 1_050_000.0, s.Peak)
	assert.InDelta(t, 0.08, s.Drawdown, 1e-12)

	// 次日第一笔作为新基准，最大回撤保留
	s = tr.Update(1_000_000, day.Add(24*time.Hour))
	assert.Equal(t, 1_000_000.0, s.DayStart)
	assert.Zero(t, s.DailyPnL)
	assert.InDelta(t, 0.08, s.MaxDrawdown, 1e-12)
	assert.Equal(t, "2024-06-04", s.Day)
}

func TestEquityTrackerResetDaily(t *testing.T) {
	day := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	tr := NewEquityTracker()
	tr.Update(100, day)
	tr.Update(90, day.Add(time.Minute))

	tr.ResetDaily(day.Add(2 * time.Minute))
	s := tr.Stats()
	assert.Equal(t, 90.0, s.DayStart)
	assert.Zero(t, s.DailyPnL)
}
