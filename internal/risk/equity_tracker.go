package risk

import (
	"sync"
	"time"
)

// EquityStats 权益跟踪结果
type EquityStats struct {
	Equity        float64
	DayStart      float64
	DailyPnL      float64
	DailyPnLRatio float64 // 相对日初权益
	Peak          float64
	Drawdown      float64 // 当前回撤
	MaxDrawdown   float64
	Day           string
	LastUpdate    time.Time
}

// EquityTracker 跟踪日初权益、权益峰值与回撤。
// 每个自然日第一次 Update 的权益作为当日基准。
type EquityTracker struct {
	mu sync.Mutex

	day         string
	dayStart    float64
	equity      float64
	peak        float64
	maxDrawdown float64
	lastUpdate  time.Time
}

func NewEquityTracker() *EquityTracker {
	return &EquityTracker{}
}

// Update 记录一次权益采样并返回最新统计。
func (t *EquityTracker) Update(equity float64, at time.Time) EquityStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	if day := at.Format("2006-01-02"); day != t.day {
		t.day = day
		t.dayStart = equity
	}
	t.equity = equity
	t.lastUpdate = at
	if equity > t.peak {
		t.peak = equity
	}
	if dd := t.drawdown(); dd > t.maxDrawdown {
		t.maxDrawdown = dd
	}
	return t.stats()
}

// ResetDaily 以当前权益作为新的日初基准
func (t *EquityTracker) ResetDaily(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.day = at.Format("2006-01-02")
	t.dayStart = t.equity
}

func (t *EquityTracker) Stats() EquityStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats()
}

func (t *EquityTracker) drawdown() float64 {
	if t.peak <= 0 {
		return 0
	}
	return (t.peak - t.equity) / t.peak
}

func (t *EquityTracker) stats() EquityStats {
	s := EquityStats{
		Equity:      t.equity,
		DayStart:    t.dayStart,
		DailyPnL:    t.equity - t.dayStart,
		Peak:        t.peak,
		Drawdown:    t.drawdown(),
		MaxDrawdown: t.maxDrawdown,
		Day:         t.day,
		LastUpdate:  t.lastUpdate,
	}
	if t.dayStart > 0 {
		s.DailyPnLRatio = s.DailyPnL / t.dayStart
	}
	return s
}
