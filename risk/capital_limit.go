package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"futures-risk-go/portfolio"
)

const (
	dayLayout = "2006-01-02"
	// 日亏损达到绝对上限的该比例时给出警告
	dailyLossWarnFraction = 0.8
	dailyStatsRetention   = 7 * 24 * time.Hour
)

// CapitalLimit 单笔金额、可用资金比例与单日亏损限制。
type CapitalLimit struct {
	mu sync.Mutex

	maxOrderAmount    *float64
	maxDailyLoss      *float64
	maxDailyLossRatio *float64
	minAvailableRatio *float64

	dayStartEquity map[string]float64
	dayPnL         map[string]float64
	clock          Clock
}

func NewCapitalLimit(maxOrderAmount, maxDailyLoss, maxDailyLossRatio, minAvailableRatio *float64, clock Clock) *CapitalLimit {
	if clock == nil {
		clock = NowUTC
	}
	return &CapitalLimit{
		maxOrderAmount:    maxOrderAmount,
		maxDailyLoss:      maxDailyLoss,
		maxDailyLossRatio: maxDailyLossRatio,
		minAvailableRatio: minAvailableRatio,
		dayStartEquity:    make(map[string]float64),
		dayPnL:            make(map[string]float64),
		clock:             clock,
	}
}

func (c *CapitalLimit) SetLimits(maxOrderAmount, maxDailyLoss, maxDailyLossRatio, minAvailableRatio *float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxOrderAmount = maxOrderAmount
	c.maxDailyLoss = maxDailyLoss
	c.maxDailyLossRatio = maxDailyLossRatio
	c.minAvailableRatio = minAvailableRatio
}

func (c *CapitalLimit) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled()
}

func (c *CapitalLimit) enabled() bool {
	return c.maxOrderAmount != nil || c.maxDailyLoss != nil || c.maxDailyLossRatio != nil || c.minAvailableRatio != nil
}

// CheckOrder 检查单笔订单金额与可用资金比例。
func (c *CapitalLimit) CheckOrder(amount float64, snap portfolio.AccountSnapshot) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxOrderAmount != nil && amount > *c.maxOrderAmount {
		return Block(RuleCapitalLimit, "order amount exceeded",
			fmt.Sprintf("order amount %.2f exceeds limit %.2f", amount, *c.maxOrderAmount))
	}
	if c.minAvailableRatio != nil {
		ratio := 0.0
		if snap.TotalEquity > 0 {
			ratio = snap.Available / snap.TotalEquity
		}
		if ratio < *c.minAvailableRatio {
			return Block(RuleCapitalLimit, "available capital ratio too low",
				fmt.Sprintf("available ratio %.2f%% below limit %.2f%%", ratio*100, *c.minAvailableRatio*100))
		}
	}
	return Safe("capital limit passed")
}

// CheckDailyLoss 以当天第一次检查时的权益为基准计算当日盈亏。
func (c *CapitalLimit) CheckDailyLoss(snap portfolio.AccountSnapshot) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	today := c.clock.Now().Format(dayLayout)
	start, ok := c.dayStartEquity[today]
	if !ok {
		start = snap.TotalEquity
		c.dayStartEquity[today] = start
	}
	pnl := snap.TotalEquity - start
	c.dayPnL[today] = pnl

	if c.maxDailyLoss != nil && pnl < -*c.maxDailyLoss {
		return Block(RuleDailyLoss, "daily loss exceeded",
			fmt.Sprintf("daily loss %.2f exceeds limit %.2f", -pnl, *c.maxDailyLoss))
	}
	if c.maxDailyLossRatio != nil && start > 0 && pnl < 0 {
		ratio := math.Abs(pnl) / start
		if ratio > *c.maxDailyLossRatio {
			return Block(RuleDailyLoss, "daily loss ratio exceeded",
				fmt.Sprintf("daily loss ratio %.2f%% exceeds limit %.2f%%", ratio*100, *c.maxDailyLossRatio*100))
		}
	}
	if pnl < 0 && c.maxDailyLoss != nil && -pnl > *c.maxDailyLoss*dailyLossWarnFraction {
		return Warning(RuleDailyLoss, "daily loss approaching limit",
			fmt.Sprintf("daily loss %.2f approaching limit %.2f", -pnl, *c.maxDailyLoss))
	}
	return Safe("daily loss passed")
}

// DailyPnL 今日盈亏，当天尚未检查过时为 0。
func (c *CapitalLimit) DailyPnL() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dayPnL[c.clock.Now().Format(dayLayout)]
}

// ResetDaily 清理 7 天以前的日统计。
func (c *CapitalLimit) ResetDaily() {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.clock.Now().Add(-dailyStatsRetention).Format(dayLayout)
	for day := range c.dayStartEquity {
		if day < cutoff {
			delete(c.dayStartEquity, day)
			delete(c.dayPnL, day)
		}
	}
}

// trackedDays 返回保留的日统计条数。
func (c *CapitalLimit) trackedDays() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dayStartEquity)
}
