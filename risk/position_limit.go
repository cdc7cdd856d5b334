package risk

import (
	"fmt"
	"sync"

	"futures-risk-go/portfolio"
)

// PositionLimit 单品种手数、持仓品种数与单品种价值占比限制。
type PositionLimit struct {
	mu sync.RWMutex

	maxPerSymbol      *int
	maxTotalPositions *int
	maxValueRatio     *float64
}

func NewPositionLimit(maxPerSymbol, maxTotalPositions *int, maxPositionValueRatio *float64) *PositionLimit {
	return &PositionLimit{
		maxPerSymbol:      maxPerSymbol,
		maxTotalPositions: maxTotalPositions,
		maxValueRatio:     maxPositionValueRatio,
	}
}

func (p *PositionLimit) SetLimits(maxPerSymbol, maxTotalPositions *int, maxPositionValueRatio *float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxPerSymbol = maxPerSymbol
	p.maxTotalPositions = maxTotalPositions
	p.maxValueRatio = maxPositionValueRatio
}

func (p *PositionLimit) Enabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.maxPerSymbol != nil || p.maxTotalPositions != nil || p.maxValueRatio != nil
}

// ResultingVolume 开仓后的同品种持仓：同向累加，反向或空仓只算新开部分。
func ResultingVolume(snap portfolio.AccountSnapshot, symbol string, dir portfolio.Direction, volume int) int {
	if pos, ok := snap.Position(symbol); ok && pos.Direction == dir {
		return pos.Volume + volume
	}
	return volume
}

// Check 检查一次开仓。price 用于估算持仓价值。
func (p *PositionLimit) Check(symbol string, volume int, dir portfolio.Direction, snap portfolio.AccountSnapshot, price, multiplier float64) Result {
	p.mu.RLock()
	defer p.mu.RUnlock()

	total := ResultingVolume(snap, symbol, dir, volume)
	if p.maxPerSymbol != nil && total > *p.maxPerSymbol {
		current := 0
		if pos, ok := snap.Position(symbol); ok {
			current = pos.Volume
		}
		return Block(RulePositionLimit, "symbol position exceeded: "+symbol,
			fmt.Sprintf("current %d lots, adding %d, total %d exceeds limit %d", current, volume, total, *p.maxPerSymbol))
	}

	if p.maxTotalPositions != nil {
		if _, held := snap.Position(symbol); !held && len(snap.Positions) >= *p.maxTotalPositions {
			return Block(RulePositionLimit, "total positions exceeded",
				fmt.Sprintf("holding %d symbols, limit %d", len(snap.Positions), *p.maxTotalPositions))
		}
	}

	if p.maxValueRatio != nil && snap.TotalEquity > 0 {
		value := price * float64(total) * multiplier
		ratio := value / snap.TotalEquity
		if ratio > *p.maxValueRatio {
			return Block(RulePositionLimit, "position value ratio exceeded: "+symbol,
				fmt.Sprintf("position value %.2f is %.2f%% of equity, limit %.2f%%", value, ratio*100, *p.maxValueRatio*100))
		}
	}
	return Safe("position limit passed: " + symbol)
}
