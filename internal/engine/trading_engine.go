package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"futures-risk-go/contract"
	"futures-risk-go/infrastructure/logger"
	"futures-risk-go/order"
	"futures-risk-go/portfolio"
	"futures-risk-go/risk"
)

// EngineState 引擎状态
type EngineState int

const (
	// StateRunning 接受委托
	StateRunning EngineState = iota
	// StatePaused 暂停，拒绝新委托，行情照常处理
	StatePaused
	// StateStopped 已停止
	StateStopped
)

// String 返回状态名称
func (s EngineState) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// RejectKind 拒单类别
type RejectKind string

const (
	RejectValidation          RejectKind = "validation"
	RejectRiskBlocked         RejectKind = "risk_blocked"
	RejectInsufficientCapital RejectKind = "insufficient_capital"
	RejectNoPosition          RejectKind = "no_position"
	RejectHalted              RejectKind = "halted"
)

// RejectError 委托被拒绝。OrderID 在订单已登记后才有值。
type RejectError struct {
	Kind    RejectKind
	OrderID string
	Rule    string
	Reason  string
	Err     error
}

func (e *RejectError) Error() string {
	msg := fmt.Sprintf("order rejected (%s)", e.Kind)
	if e.Rule != "" {
		msg += " by " + e.Rule
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *RejectError) Unwrap() error { return e.Err }

// AsReject 取出拒单错误。
func AsReject(err error) (*RejectError, bool) {
	var rej *RejectError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// Request 委托请求。Time 为零时取引擎时钟，回测传入行情时间。
type Request struct {
	Symbol    string
	Direction order.Direction
	Type      order.Type
	Price     float64
	Volume    int
	Time      time.Time
}

// Metrics 引擎上报的指标
type Metrics interface {
	RecordOrderSubmitted(symbol string)
	RecordOrderRejected(kind string)
	RecordOrderCanceled()
	RecordFill(symbol string, volume int)
	UpdateAccount(cash, equity float64)
}

// Config 引擎配置
type Config struct {
	EquitySampleEvery int  // 每 N 次时间采样记录一次权益
	StrictSymbols     bool // 拒绝合约表中不存在的合约
}

// Components 引擎依赖组件
type Components struct {
	Portfolio *portfolio.Portfolio
	Risk      *risk.Manager
	Orders    *order.Manager
	Contracts *contract.Registry
	Metrics   Metrics
	Logger    *logger.Logger
	Clock     func() time.Time
}

// Statistics 引擎统计信息
type Statistics struct {
	StartTime     time.Time
	TotalOrders   int64
	TotalRejects  int64
	TotalFills    int64
	TotalCancels  int64
	TotalSamples  int64
	LastOrderTime time.Time
	LastFillTime  time.Time
}

// TradingEngine 委托入口：校验、风控、账本成交与订单登记。
// 风控检查与成交在同一次账本加锁内完成。
type TradingEngine struct {
	config Config

	ledger    *portfolio.Portfolio
	risk      *risk.Manager
	orders    *order.Manager
	contracts *contract.Registry
	metrics   Metrics
	logger    *logger.Logger
	clock     func() time.Time

	state EngineState
	mu    sync.RWMutex

	// execMu 串行化账本成交之后的订单状态推进，避免挂单被重复成交
	execMu sync.Mutex

	pricesMu sync.RWMutex
	prices   map[string]float64

	stats   Statistics
	statsMu sync.Mutex
}

// New 创建交易引擎
func New(cfg Config, components Components) (*TradingEngine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := validateComponents(components); err != nil {
		return nil, fmt.Errorf("invalid components: %w", err)
	}

	if cfg.EquitySampleEvery <= 0 {
		cfg.EquitySampleEvery = 1
	}
	if components.Orders == nil {
		components.Orders = order.NewManager(nil)
	}
	if components.Contracts == nil {
		components.Contracts = contract.Default()
	}
	if components.Logger == nil {
		components.Logger = logger.Wrap(zap.NewNop())
	}
	if components.Clock == nil {
		components.Clock = time.Now
	}

	e := &TradingEngine{
		config:    cfg,
		ledger:    components.Portfolio,
		risk:      components.Risk,
		orders:    components.Orders,
		contracts: components.Contracts,
		metrics:   components.Metrics,
		logger:    components.Logger,
		clock:     components.Clock,
		state:     StateRunning,
		prices:    make(map[string]float64),
	}
	e.stats.StartTime = e.clock()
	e.setupOrderCallbacks()
	return e, nil
}

// Submit 提交委托，返回订单号；被拒绝时返回 *RejectError。
func (e *TradingEngine) Submit(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if state := e.GetState(); state != StateRunning {
		return "", e.rejected(req.Symbol, &RejectError{Kind: RejectHalted, Reason: "engine is " + state.String()})
	}
	at := req.Time
	if at.IsZero() {
		at = e.clock()
	}
	if e.config.StrictSymbols && !e.contracts.Known(req.Symbol) {
		return "", e.rejected(req.Symbol, &RejectError{Kind: RejectValidation, Reason: "unknown symbol " + req.Symbol})
	}
	last := e.LastPrice(req.Symbol)
	if req.Type == order.TypeMarket && req.Price <= 0 && last <= 0 {
		return "", e.rejected(req.Symbol, &RejectError{Kind: RejectValidation, Reason: "no reference price for market order on " + req.Symbol})
	}

	o, err := order.New(req.Symbol, req.Direction, req.Type, req.Price, req.Volume, at)
	if err != nil {
		return "", e.rejected(req.Symbol, &RejectError{Kind: RejectValidation, Reason: err.Error(), Err: err})
	}
	if err := order.ConstraintsFor(e.contracts, o.Symbol()).Validate(o.Type(), o.Price(), o.Volume()); err != nil {
		return "", e.rejected(req.Symbol, &RejectError{Kind: RejectValidation, Reason: err.Error(), Err: err})
	}
	if err := e.orders.Add(o); err != nil {
		return "", e.rejected(req.Symbol, &RejectError{Kind: RejectValidation, Reason: err.Error(), Err: err})
	}
	if e.metrics != nil {
		e.metrics.RecordOrderSubmitted(o.Symbol())
	}
	e.statsMu.Lock()
	e.stats.TotalOrders++
	e.stats.LastOrderTime = at
	e.statsMu.Unlock()

	var (
		decision  risk.Result
		blocked   bool
		ledgerErr error
		snap      portfolio.AccountSnapshot
		fill      portfolio.Fill
		filled    bool
	)
	_ = e.ledger.Do(func(tx *portfolio.Tx) error {
		snap = tx.Snapshot()
		decision = e.risk.Check(o, snap, last)
		if !decision.Passed {
			blocked = true
			return decision.Err()
		}
		price, ok := fillPrice(o.Type(), o.Direction(), o.Price(), last)
		if !ok {
			return nil
		}
		f, err := apply(tx, o.Direction(), o.Symbol(), price, o.Volume(), at)
		if err != nil {
			ledgerErr = err
			return err
		}
		fill, filled = f, true
		return nil
	})

	if blocked {
		e.orders.Reject(o.ID(), decision.Reason, at)
		return "", e.rejected(o.Symbol(), &RejectError{
			Kind:    RejectRiskBlocked,
			OrderID: o.ID(),
			Rule:    decision.Rule,
			Reason:  decision.Reason,
			Err:     decision.Err(),
		})
	}
	if ledgerErr != nil {
		e.risk.RecordLedgerFailure(o, ledgerErr.Error(), snap)
		e.orders.Reject(o.ID(), ledgerErr.Error(), at)
		return "", e.rejected(o.Symbol(), &RejectError{
			Kind:    ledgerKind(ledgerErr),
			OrderID: o.ID(),
			Reason:  ledgerErr.Error(),
			Err:     ledgerErr,
		})
	}

	e.execMu.Lock()
	if _, err := e.orders.MarkSubmitted(o.ID(), at); err != nil {
		e.logger.LogError(err, map[string]interface{}{"order_id": o.ID(), "op": "mark_submitted"})
	}
	if filled {
		e.settle(o.ID(), o.Symbol(), fill, at)
	}
	e.execMu.Unlock()

	if !filled {
		e.logger.Debug("limit order resting",
			zap.String("order_id", o.ID()),
			zap.String("symbol", o.Symbol()),
			zap.Float64("price", o.Price()),
			zap.Float64("last", last))
	}
	e.updateAccount()
	return o.ID(), nil
}

// Cancel 撤单；订单不存在或已终结时返回 false。
func (e *TradingEngine) Cancel(id string) bool {
	e.execMu.Lock()
	ok := e.orders.Cancel(id, e.clock())
	e.execMu.Unlock()
	if ok {
		e.recordCancel()
	}
	return ok
}

// CancelAll 撤销合约（为空则全部）的挂单。
func (e *TradingEngine) CancelAll(symbol string) int {
	e.execMu.Lock()
	n := e.orders.CancelAll(symbol, e.clock())
	e.execMu.Unlock()
	for i := 0; i < n; i++ {
		e.recordCancel()
	}
	return n
}

// UpdatePrice 更新最新价：持仓按市价重估，变为可成交的限价挂单以挂单价成交。
// 返回本次成交的挂单数量。
func (e *TradingEngine) UpdatePrice(symbol string, price float64, at time.Time) int {
	if symbol == "" || price <= 0 {
		return 0
	}
	if at.IsZero() {
		at = e.clock()
	}
	e.pricesMu.Lock()
	e.prices[symbol] = price
	e.pricesMu.Unlock()

	filled := 0
	e.execMu.Lock()
	for _, o := range e.orders.Active(symbol) {
		if o.Type() != order.TypeLimit || !marketable(o.Direction(), o.Price(), price) {
			continue
		}
		if e.fillResting(o, at) {
			filled++
		}
	}
	e.execMu.Unlock()

	e.ledger.UpdatePrice(symbol, price)
	e.updateAccount()
	return filled
}

// UpdateTimeSample 时间推进一次；每 EquitySampleEvery 次记录一个权益点。
func (e *TradingEngine) UpdateTimeSample(at time.Time) bool {
	e.statsMu.Lock()
	e.stats.TotalSamples++
	n := e.stats.TotalSamples
	e.statsMu.Unlock()
	if n%int64(e.config.EquitySampleEvery) != 0 {
		return false
	}
	if at.IsZero() {
		at = e.clock()
	}
	pt := e.ledger.RecordEquity(at)
	e.logger.Debug("equity sampled", zap.Float64("equity", pt.Value), zap.Time("at", pt.Time))
	return true
}

// LastPrice 最近一次行情价，未知时为 0。
func (e *TradingEngine) LastPrice(symbol string) float64 {
	e.pricesMu.RLock()
	defer e.pricesMu.RUnlock()
	return e.prices[symbol]
}

// Pause 暂停接受委托
func (e *TradingEngine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRunning {
		return fmt.Errorf("cannot pause engine in state %s", e.state)
	}
	e.state = StatePaused
	e.logger.Info("engine paused")
	return nil
}

// Resume 恢复接受委托
func (e *TradingEngine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePaused {
		return fmt.Errorf("cannot resume engine in state %s", e.state)
	}
	e.state = StateRunning
	e.logger.Info("engine resumed")
	return nil
}

// Stop 停止引擎并撤销全部挂单
func (e *TradingEngine) Stop() error {
	e.mu.Lock()
	if e.state == StateStopped {
		e.mu.Unlock()
		return nil
	}
	e.state = StateStopped
	e.mu.Unlock()

	n := e.CancelAll("")
	e.logger.Info("engine stopped", zap.Int("canceled_orders", n))
	return nil
}

// Name 组件名
func (e *TradingEngine) Name() string { return "trading_engine" }

// GetState 获取引擎状态
func (e *TradingEngine) GetState() EngineState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// GetStatistics 获取统计信息
func (e *TradingEngine) GetStatistics() Statistics {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

func (e *TradingEngine) Portfolio() *portfolio.Portfolio { return e.ledger }

func (e *TradingEngine) Orders() *order.Manager { return e.orders }

func (e *TradingEngine) Risk() *risk.Manager { return e.risk }

// fillResting 以挂单价成交剩余手数。成交前按当时账户复核资金与持仓，
// 风控拦截或账本拒绝时撤单。调用方持有 execMu。
func (e *TradingEngine) fillResting(o order.Order, at time.Time) bool {
	var (
		snap     portfolio.AccountSnapshot
		fill     portfolio.Fill
		decision risk.Result
		blocked  bool
	)
	err := e.ledger.Do(func(tx *portfolio.Tx) error {
		snap = tx.Snapshot()
		decision = e.risk.CheckFill(&o, o.Remaining(), o.Price(), snap)
		if !decision.Passed {
			blocked = true
			return decision.Err()
		}
		f, err := apply(tx, o.Direction(), o.Symbol(), o.Price(), o.Remaining(), at)
		fill = f
		return err
	})
	if err != nil {
		if !blocked {
			e.risk.RecordLedgerFailure(&o, err.Error(), snap)
		}
		if e.orders.Cancel(o.ID(), at) {
			e.recordCancel()
		}
		fields := []zap.Field{
			zap.String("order_id", o.ID()),
			zap.String("symbol", o.Symbol()),
			zap.Error(err),
		}
		if blocked {
			e.logger.Warn("resting order blocked by risk at fill", append(fields, zap.String("rule", decision.Rule))...)
		} else {
			e.logger.Warn("resting order dropped by ledger", fields...)
		}
		return false
	}
	e.settle(o.ID(), o.Symbol(), fill, at)
	return true
}

// settle 把账本成交写回订单；平仓被截断时剩余部分撤销。调用方持有 execMu。
func (e *TradingEngine) settle(id, symbol string, fill portfolio.Fill, at time.Time) {
	if fill.Volume > 0 {
		price := fill.AvgPrice()
		if _, err := e.orders.ApplyFill(id, fill.Volume, price, at); err != nil {
			e.logger.LogError(err, map[string]interface{}{"order_id": id, "symbol": symbol, "op": "apply_fill"})
			return
		}
	}
	if fill.Clamped && e.orders.Cancel(id, at) {
		e.recordCancel()
		e.logger.Info("close clamped to held volume",
			zap.String("order_id", id),
			zap.String("symbol", symbol),
			zap.Int("requested", fill.Requested),
			zap.Int("filled", fill.Volume))
	}
}

func (e *TradingEngine) rejected(symbol string, rej *RejectError) error {
	e.statsMu.Lock()
	e.stats.TotalRejects++
	e.statsMu.Unlock()
	if e.metrics != nil {
		e.metrics.RecordOrderRejected(string(rej.Kind))
	}
	e.logger.Warn("order rejected",
		zap.String("order_id", rej.OrderID),
		zap.String("symbol", symbol),
		zap.String("kind", string(rej.Kind)),
		zap.String("rule", rej.Rule),
		zap.String("reason", rej.Reason))
	return rej
}

func (e *TradingEngine) recordCancel() {
	e.statsMu.Lock()
	e.stats.TotalCancels++
	e.statsMu.Unlock()
	if e.metrics != nil {
		e.metrics.RecordOrderCanceled()
	}
}

func (e *TradingEngine) updateAccount() {
	if e.metrics == nil {
		return
	}
	e.metrics.UpdateAccount(e.ledger.Cash(), e.ledger.TotalEquity())
}

// setupOrderCallbacks 订单状态与成交写结构化日志
func (e *TradingEngine) setupOrderCallbacks() {
	e.orders.OnStatusChange(func(o order.Order) {
		fields := map[string]interface{}{
			"direction":     string(o.Direction()),
			"volume":        o.Volume(),
			"filled_volume": o.FilledVolume(),
		}
		if o.RejectReason() != "" {
			fields["reason"] = o.RejectReason()
		}
		e.logger.LogOrder(o.ID(), o.Symbol(), string(o.Status()), fields)
	})
	e.orders.OnFill(func(o order.Order, volume int, price float64) {
		e.statsMu.Lock()
		e.stats.TotalFills++
		e.stats.LastFillTime = o.UpdateTime()
		e.statsMu.Unlock()
		if e.metrics != nil {
			e.metrics.RecordFill(o.Symbol(), volume)
		}
		e.logger.LogTrade(map[string]interface{}{
			"order_id":  o.ID(),
			"symbol":    o.Symbol(),
			"direction": string(o.Direction()),
			"volume":    volume,
			"price":     price,
		})
	})
}

// apply 委托方向映射到账本操作：BUY 开多，SELL 平多，SHORT 开空，COVER 平空。
func apply(tx *portfolio.Tx, dir order.Direction, symbol string, price float64, volume int, at time.Time) (portfolio.Fill, error) {
	switch dir {
	case order.DirectionBuy:
		return tx.OpenLong(symbol, price, volume, at)
	case order.DirectionSell:
		return tx.CloseLong(symbol, price, volume, at)
	case order.DirectionShort:
		return tx.OpenShort(symbol, price, volume, at)
	case order.DirectionCover:
		return tx.CloseShort(symbol, price, volume, at)
	default:
		return portfolio.Fill{}, fmt.Errorf("%w: %q", order.ErrInvalidDirection, dir)
	}
}

// fillPrice 判断委托能否立即成交。市价单按最新价成交；
// 限价单在无行情时按委托价成交，有行情且可成交时按委托价成交。
func fillPrice(typ order.Type, dir order.Direction, price, last float64) (float64, bool) {
	if typ == order.TypeMarket {
		if last > 0 {
			return last, true
		}
		return price, price > 0
	}
	if last <= 0 || marketable(dir, price, last) {
		return price, true
	}
	return 0, false
}

// marketable 买方向在最新价不高于限价时可成交，卖方向在不低于限价时可成交。
func marketable(dir order.Direction, limit, last float64) bool {
	if isBuy(dir) {
		return last <= limit
	}
	return last >= limit
}

func isBuy(dir order.Direction) bool {
	return dir == order.DirectionBuy || dir == order.DirectionCover
}

func ledgerKind(err error) RejectKind {
	switch {
	case errors.Is(err, portfolio.ErrInsufficientFunds):
		return RejectInsufficientCapital
	case errors.Is(err, portfolio.ErrNoPosition):
		return RejectNoPosition
	default:
		return RejectValidation
	}
}

// validateConfig 验证配置
func validateConfig(cfg Config) error {
	if cfg.EquitySampleEvery < 0 {
		return errors.New("equity_sample_every must be >= 0")
	}
	return nil
}

// validateComponents 验证组件
func validateComponents(comp Components) error {
	if comp.Portfolio == nil {
		return errors.New("portfolio is required")
	}
	if comp.Risk == nil {
		return errors.New("risk manager is required")
	}
	return nil
}
