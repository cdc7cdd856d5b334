package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"futures-risk-go/internal/engine"
	"futures-risk-go/portfolio"
	"futures-risk-go/posttrade"
	"futures-risk-go/risk"
)

// Trader 策略可用的下单接口。
type Trader interface {
	Submit(ctx context.Context, req engine.Request) (string, error)
	Cancel(id string) bool
	Position(symbol string) (portfolio.Position, bool)
	Cash() float64
}

// Strategy 每根 K 线回调一次。被风控拒绝的委托应自行消化，返回错误会中止回测。
type Strategy interface {
	Name() string
	OnBar(ctx context.Context, bar Bar, tr Trader) error
}

// Result 一次回测的结果。
type Result struct {
	Strategy string          `json:"strategy"`
	Symbol   string          `json:"symbol"`
	Bars     int             `json:"bars"`
	Orders   int64           `json:"orders"`
	Rejects  int64           `json:"rejects"`
	Fills    int64           `json:"fills"`
	Stats    posttrade.Stats `json:"stats"`
	Audit    risk.AuditStats `json:"audit"`
	Start    time.Time       `json:"start"`
	End      time.Time       `json:"end"`
}

// Runner 将 K 线 -> 策略 -> 引擎串起来，时间以行情为准。
type Runner struct {
	Symbol string
	Engine *engine.TradingEngine
	Ledger *portfolio.Portfolio
	Risk   *risk.Manager
	Clock  *BarClock
	Logger *zap.Logger
}

// Run 依次回放 K 线。行情价先于策略回调写入引擎，回调后做一次时间采样；
// 最后一根 K 线未被采样时补记一个权益点。
func (r *Runner) Run(ctx context.Context, bars []Bar, strat Strategy) (Result, error) {
	if r.Engine == nil || r.Ledger == nil || r.Clock == nil {
		return Result{}, errors.New("runner not initialized")
	}
	if strat == nil {
		return Result{}, errors.New("nil strategy")
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tr := trader{engine: r.Engine, ledger: r.Ledger}

	sampled := false
	for i, b := range bars {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		r.Clock.Set(b.Time)
		r.Engine.UpdatePrice(r.Symbol, b.Close, b.Time)
		if err := strat.OnBar(ctx, b, tr); err != nil {
			return Result{}, fmt.Errorf("%s bar %d (%s): %w", strat.Name(), i, b.Time.Format(time.RFC3339), err)
		}
		sampled = r.Engine.UpdateTimeSample(b.Time)
	}
	if !sampled && len(bars) > 0 {
		r.Ledger.RecordEquity(bars[len(bars)-1].Time)
	}

	st := r.Engine.GetStatistics()
	res := Result{
		Strategy: strat.Name(),
		Symbol:   r.Symbol,
		Bars:     len(bars),
		Orders:   st.TotalOrders,
		Rejects:  st.TotalRejects,
		Fills:    st.TotalFills,
		Stats:    posttrade.Analyze(r.Ledger.State(), posttrade.Options{Days: TradingDays(bars)}),
	}
	if r.Risk != nil && r.Risk.Audit() != nil {
		res.Audit = r.Risk.Audit().Stats()
	}
	if len(bars) > 0 {
		res.Start = bars[0].Time
		res.End = bars[len(bars)-1].Time
	}
	logger.Info("backtest finished",
		zap.String("strategy", res.Strategy),
		zap.String("symbol", res.Symbol),
		zap.Int("bars", res.Bars),
		zap.Int64("orders", res.Orders),
		zap.Int64("rejects", res.Rejects),
		zap.Float64("total_return", res.Stats.TotalReturn),
		zap.Float64("max_drawdown", res.Stats.MaxDrawdown))
	return res, nil
}

type trader struct {
	engine *engine.TradingEngine
	ledger *portfolio.Portfolio
}

func (t trader) Submit(ctx context.Context, req engine.Request) (string, error) {
	return t.engine.Submit(ctx, req)
}

func (t trader) Cancel(id string) bool { return t.engine.Cancel(id) }

func (t trader) Position(symbol string) (portfolio.Position, bool) { return t.ledger.Position(symbol) }

func (t trader) Cash() float64 { return t.ledger.Cash() }

// BarClock 回测时钟，由 Runner 按 K 线时间推进。
type BarClock struct {
	mu sync.RWMutex
	t  time.Time
}

func (c *BarClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *BarClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t
}

// Close 关闭审计文件。
func (r *Runner) Close() error {
	if r.Risk == nil || r.Risk.Audit() == nil {
		return nil
	}
	return r.Risk.Audit().Close()
}
