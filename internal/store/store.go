package store

import (
	"sort"
	"sync"
	"time"

	"futures-risk-go/portfolio"
)

// EventSink 接收结构化事件，通常是 logger.Sink()
type EventSink func(string, map[string]interface{})

// AccountInfo 实盘资金信息
type AccountInfo struct {
	Balance    float64
	Available  float64
	Margin     float64
	UpdateTime time.Time
}

// LivePosition 柜台推送的持仓
type LivePosition struct {
	Symbol     string
	Direction  portfolio.Direction
	Volume     int
	AvgPrice   float64
	MarkPrice  float64
	Multiplier float64 // 0 表示由合约表解析
	OpenTime   time.Time
	UpdateTime int64 // 交易所毫秒时间戳，0 表示不做去重
}

// Store 维护实盘账户的资金、持仓与最新价。
// 由网关回调写入，风控侧通过 account.Adapter 只读访问。
type Store struct {
	mu        sync.RWMutex
	account   AccountInfo
	positions map[string]LivePosition
	prices    map[string]float64
	now       func() time.Time

	sink EventSink
}

func New(sink EventSink) *Store {
	return &Store{
		positions: make(map[string]LivePosition),
		prices:    make(map[string]float64),
		now:       time.Now,
		sink:      sink,
	}
}

// HandleAccountUpdate 资金事件处理
func (s *Store) HandleAccountUpdate(balance, available, margin float64) {
	s.mu.Lock()
	s.account = AccountInfo{
		Balance:    balance,
		Available:  available,
		Margin:     margin,
		UpdateTime: s.now(),
	}
	s.mu.Unlock()
	s.logEvent("account_update", map[string]interface{}{
		"balance":   balance,
		"available": available,
		"margin":    margin,
	})
}

// HandlePositionUpdate 仓位事件处理，手数为 0 时移除。
// 时间戳早于已有记录的推送被忽略。
func (s *Store) HandlePositionUpdate(p LivePosition) {
	if p.Symbol == "" {
		return
	}
	s.mu.Lock()
	prev, ok := s.positions[p.Symbol]
	if ok && p.UpdateTime > 0 && prev.UpdateTime >= p.UpdateTime {
		s.mu.Unlock()
		return
	}
	if p.Volume <= 0 {
		delete(s.positions, p.Symbol)
	} else {
		s.positions[p.Symbol] = s.markLocked(p)
	}
	s.mu.Unlock()

	s.logEvent("position_update", map[string]interface{}{
		"symbol":      p.Symbol,
		"direction":   string(p.Direction),
		"volume":      p.Volume,
		"avg_price":   p.AvgPrice,
		"update_time": p.UpdateTime,
	})
}

// ReplacePositions 用查询结果覆盖本地持仓（断线重连场景）
func (s *Store) ReplacePositions(positions []LivePosition) {
	s.mu.Lock()
	s.positions = make(map[string]LivePosition, len(positions))
	for _, p := range positions {
		if p.Symbol == "" || p.Volume <= 0 {
			continue
		}
		s.positions[p.Symbol] = s.markLocked(p)
	}
	count := len(s.positions)
	s.mu.Unlock()

	s.logEvent("position_snapshot", map[string]interface{}{
		"position_count": count,
	})
}

// UpdatePrice 记录最新价并刷新对应持仓的标记价
func (s *Store) UpdatePrice(symbol string, price float64) {
	if price <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
	if p, ok := s.positions[symbol]; ok {
		p.MarkPrice = price
		s.positions[symbol] = p
	}
}

// markLocked 没有标记价时依次用最新价、开仓均价
func (s *Store) markLocked(p LivePosition) LivePosition {
	if p.MarkPrice > 0 {
		return p
	}
	if last, ok := s.prices[p.Symbol]; ok {
		p.MarkPrice = last
	} else {
		p.MarkPrice = p.AvgPrice
	}
	return p
}

func (s *Store) LastPrice(symbol string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[symbol]
	return p, ok
}

func (s *Store) AccountInfo() AccountInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

// Positions 按合约代码排序返回
func (s *Store) Positions() []LivePosition {
	s.mu.RLock()
	out := make([]LivePosition, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (s *Store) logEvent(event string, fields map[string]interface{}) {
	if s == nil || s.sink == nil {
		return
	}
	s.sink(event, fields)
}
