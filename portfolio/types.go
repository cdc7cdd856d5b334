package portfolio

import (
	"errors"
	"time"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoPosition        = errors.New("no matching position")
	ErrInvalidVolume     = errors.New("invalid volume")
	ErrInvalidPrice      = errors.New("invalid price")
)

// Direction 持仓方向；空仓即无记录。
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

func (d Direction) Opposite() Direction {
	if d == Short {
		return Long
	}
	return Short
}

// Position 单个合约的持仓。
type Position struct {
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	Volume     int       `json:"volume"`
	AvgPrice   float64   `json:"avg_price"`
	MarkPrice  float64   `json:"mark_price"`
	Multiplier float64   `json:"multiplier"`
	OpenTime   time.Time `json:"open_time"`
}

// CostBasis 开仓占用资金 entry × volume × multiplier。
func (p Position) CostBasis() float64 {
	return p.AvgPrice * float64(p.Volume) * p.Multiplier
}

// MarketValue 按最新价计算的持仓市值。
func (p Position) MarketValue() float64 {
	return p.MarkPrice * float64(p.Volume) * p.Multiplier
}

func (p Position) UnrealizedPnL() float64 {
	return (p.MarkPrice - p.AvgPrice) * float64(p.Volume) * p.Multiplier * p.Direction.Sign()
}

// Trade 成交记录，只追加不修改。Volume 为负表示平仓。
type Trade struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Direction   Direction `json:"direction"`
	Volume      int       `json:"volume"`
	Price       float64   `json:"price"`
	Multiplier  float64   `json:"multiplier"`
	Commission  float64   `json:"commission"`
	RealizedPnL float64   `json:"realized_pnl"`
	Time        time.Time `json:"time"`
}

func (t Trade) IsClose() bool { return t.Volume < 0 }

// EquityPoint 权益曲线采样点。
type EquityPoint struct {
	Value float64   `json:"value"`
	Time  time.Time `json:"time"`
}

// Fill 一次开平仓调用的结果。
type Fill struct {
	Trades    []Trade
	Requested int
	Volume    int // 实际成交手数（含对冲平仓部分）
	Clamped   bool
}

// Commission 本次调用的总手续费。
func (f Fill) Commission() float64 {
	var c float64
	for _, t := range f.Trades {
		c += t.Commission
	}
	return c
}

// RealizedPnL 本次调用的已实现盈亏（未扣手续费）。
func (f Fill) RealizedPnL() float64 {
	var r float64
	for _, t := range f.Trades {
		r += t.RealizedPnL
	}
	return r
}

// AvgPrice 本次调用的成交均价。
func (f Fill) AvgPrice() float64 {
	var notional float64
	var vol int
	for _, t := range f.Trades {
		v := t.Volume
		if v < 0 {
			v = -v
		}
		notional += t.Price * float64(v)
		vol += v
	}
	if vol == 0 {
		return 0
	}
	return notional / float64(vol)
}

// AccountSnapshot 风控使用的账户快照，模拟账户与实盘账户共用。
type AccountSnapshot struct {
	Cash        float64    `json:"cash"`
	Available   float64    `json:"available"`
	MarginUsed  float64    `json:"margin_used"`
	TotalEquity float64    `json:"total_equity"`
	Positions   []Position `json:"positions"`
	Time        time.Time  `json:"time"`
}

func (s AccountSnapshot) Position(symbol string) (Position, bool) {
	for _, p := range s.Positions {
		if p.Symbol == symbol {
			return p, true
		}
	}
	return Position{}, false
}

// PositionValue 全部持仓市值之和。
func (s AccountSnapshot) PositionValue() float64 {
	var v float64
	for _, p := range s.Positions {
		v += p.MarketValue()
	}
	return v
}

func (s AccountSnapshot) UnrealizedPnL() float64 {
	var v float64
	for _, p := range s.Positions {
		v += p.UnrealizedPnL()
	}
	return v
}

// State 账本完整状态，供绩效分析使用。
type State struct {
	InitialCapital float64
	Cash           float64
	TotalEquity    float64
	Positions      []Position
	Trades         []Trade
	EquityCurve    []EquityPoint
}
