package risk

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// FrequencyWindow 频率限制的滑动窗口长度。
const FrequencyWindow = time.Minute

// OrderLimit 下单频率（全局与单品种）及价格偏离限制，窗口状态由自身的锁保护。
type OrderLimit struct {
	mu sync.Mutex

	maxPerMinute          *int
	maxPerSymbolPerMinute *int
	maxPriceDeviation     *float64

	global   []time.Time
	bySymbol map[string][]time.Time
	clock    Clock
}

func NewOrderLimit(maxPerMinute, maxPerSymbolPerMinute *int, maxPriceDeviation *float64, clock Clock) *OrderLimit {
	if clock == nil {
		clock = NowUTC
	}
	return &OrderLimit{
		maxPerMinute:          maxPerMinute,
		maxPerSymbolPerMinute: maxPerSymbolPerMinute,
		maxPriceDeviation:     maxPriceDeviation,
		bySymbol:              make(map[string][]time.Time),
		clock:                 clock,
	}
}

// SetLimits 替换阈值，保留已有窗口。
func (l *OrderLimit) SetLimits(maxPerMinute, maxPerSymbolPerMinute *int, maxPriceDeviation *float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxPerMinute = maxPerMinute
	l.maxPerSymbolPerMinute = maxPerSymbolPerMinute
	l.maxPriceDeviation = maxPriceDeviation
}

func (l *OrderLimit) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxPerMinute != nil || l.maxPerSymbolPerMinute != nil || l.maxPriceDeviation != nil
}

// Check 先清理过期时间戳再判断；通过才记录本次时间。refPrice <= 0 时跳过价格偏离检查。
func (l *OrderLimit) Check(symbol string, price, refPrice float64) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxPerMinute == nil && l.maxPerSymbolPerMinute == nil && l.maxPriceDeviation == nil {
		return Safe("order limit disabled")
	}

	now := l.clock.Now()
	cutoff := now.Add(-FrequencyWindow)
	l.global = prune(l.global, cutoff)
	symbolTimes := prune(l.bySymbol[symbol], cutoff)
	if len(symbolTimes) == 0 {
		delete(l.bySymbol, symbol)
	} else {
		l.bySymbol[symbol] = symbolTimes
	}

	if l.maxPerMinute != nil && len(l.global) >= *l.maxPerMinute {
		return Block(RuleOrderLimit, "order frequency exceeded",
			fmt.Sprintf("%d orders in the last minute, limit %d", len(l.global), *l.maxPerMinute))
	}
	if l.maxPerSymbolPerMinute != nil && len(symbolTimes) >= *l.maxPerSymbolPerMinute {
		return Block(RuleOrderLimit, "symbol order frequency exceeded: "+symbol,
			fmt.Sprintf("%d orders on %s in the last minute, limit %d", len(symbolTimes), symbol, *l.maxPerSymbolPerMinute))
	}
	if l.maxPriceDeviation != nil && refPrice > 0 && price > 0 {
		deviation := math.Abs(price-refPrice) / refPrice
		if deviation > *l.maxPriceDeviation {
			return Block(RuleOrderLimit, "price deviation too large: "+symbol,
				fmt.Sprintf("order price %.4f, reference %.4f, deviation %.2f%% exceeds %.2f%%",
					price, refPrice, deviation*100, *l.maxPriceDeviation*100))
		}
	}

	l.global = append(l.global, now)
	l.bySymbol[symbol] = append(symbolTimes, now)
	return Safe("order limit passed: " + symbol)
}

// Counts 当前窗口内的全局与单品种下单数（不做清理）。
func (l *OrderLimit) Counts(symbol string) (global, perSymbol int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.clock.Now().Add(-FrequencyWindow)
	return countAfter(l.global, cutoff), countAfter(l.bySymbol[symbol], cutoff)
}

// prune 丢弃早于 cutoff 的时间戳，队列按时间有序。
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && ts[i].Before(cutoff) {
		i++
	}
	return ts[i:]
}

func countAfter(ts []time.Time, cutoff time.Time) int {
	return len(prune(ts, cutoff))
}
