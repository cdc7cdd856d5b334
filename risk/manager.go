package risk

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"futures-risk-go/contract"
	"futures-risk-go/order"
	"futures-risk-go/portfolio"
)

// MetricsRecorder 记录风控决策计数。
type MetricsRecorder interface {
	RecordRiskDecision(category, rule, outcome string)
}

// Options 管理器依赖，均可为空。
type Options struct {
	Contracts *contract.Registry
	Audit     *AuditLog
	Notifier  *Notifier
	Metrics   MetricsRecorder
	Clock     Clock
	Logger    *zap.Logger
	// Decisions 接收每次决策的结构化事件，通常是 logger.LogRisk
	Decisions DecisionSink
}

// DecisionSink 风控决策事件回调。
type DecisionSink func(category, rule, outcome string, fields map[string]interface{})

// Manager 按 频率 -> 资金 -> 持仓 的顺序检查订单，遇到第一个拦截即返回。
// 每次决策在返回前写入审计。
type Manager struct {
	mu      sync.RWMutex
	cfg     Config
	enabled bool

	orders    *OrderLimit
	capital   *CapitalLimit
	positions *PositionLimit

	contracts *contract.Registry
	audit     *AuditLog
	notifier  *Notifier
	metrics   MetricsRecorder
	clock     Clock
	logger    *zap.Logger
	decisions DecisionSink
}

func NewManager(cfg Config, opts Options) *Manager {
	if opts.Contracts == nil {
		opts.Contracts = contract.Default()
	}
	if opts.Clock == nil {
		opts.Clock = NowUTC
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	cfg = cfg.Clone()
	m := &Manager{
		cfg:     cfg,
		enabled: cfg.Enabled(),
		orders: NewOrderLimit(cfg.MaxOrdersPerMinute, cfg.MaxOrdersPerSymbolPerMinute,
			cfg.MaxPriceDeviationRatio, opts.Clock),
		capital: NewCapitalLimit(cfg.MaxOrderAmount, cfg.MaxDailyLoss, cfg.MaxDailyLossRatio,
			cfg.MinAvailableRatio, opts.Clock),
		positions: NewPositionLimit(cfg.MaxPositionPerSymbol, cfg.MaxTotalPositions, cfg.MaxPositionValueRatio),
		contracts: opts.Contracts,
		audit:     opts.Audit,
		notifier:  opts.Notifier,
		metrics:   opts.Metrics,
		clock:     opts.Clock,
		logger:    opts.Logger,
		decisions: opts.Decisions,
	}
	m.logger.Info("risk manager initialised",
		zap.Bool("enabled", m.enabled),
		zap.Bool("order_limit", m.orders.Enabled()),
		zap.Bool("capital_limit", m.capital.Enabled()),
		zap.Bool("position_limit", m.positions.Enabled()))
	return m
}

// ApplyConfig 热更新阈值，频率窗口与日统计保留。
func (m *Manager) ApplyConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("apply risk config: %w", err)
	}
	cfg = cfg.Clone()
	m.orders.SetLimits(cfg.MaxOrdersPerMinute, cfg.MaxOrdersPerSymbolPerMinute, cfg.MaxPriceDeviationRatio)
	m.capital.SetLimits(cfg.MaxOrderAmount, cfg.MaxDailyLoss, cfg.MaxDailyLossRatio, cfg.MinAvailableRatio)
	m.positions.SetLimits(cfg.MaxPositionPerSymbol, cfg.MaxTotalPositions, cfg.MaxPositionValueRatio)

	m.mu.Lock()
	m.cfg = cfg
	m.enabled = cfg.Enabled()
	m.mu.Unlock()
	m.logger.Info("risk config applied", zap.Bool("enabled", cfg.Enabled()))
	return nil
}

func (m *Manager) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Clone()
}

func (m *Manager) Enable(on bool) {
	m.mu.Lock()
	m.enabled = on
	m.mu.Unlock()
	m.logger.Info("risk control toggled", zap.Bool("enabled", on))
}

func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

func (m *Manager) Audit() *AuditLog { return m.audit }

// Check 综合检查一笔订单。refPrice 为当前行情价，<= 0 时以委托价代替。
func (m *Manager) Check(o *order.Order, snap portfolio.AccountSnapshot, refPrice float64) Result {
	res := m.evaluate(o, snap, refPrice)
	m.record(CategoryOrder, o.ID(), o.Symbol(), res, map[string]any{
		"direction":  string(o.Direction()),
		"price":      o.Price(),
		"volume":     o.Volume(),
		"order_type": string(o.Type()),
	}, snap)
	return res
}

func (m *Manager) evaluate(o *order.Order, snap portfolio.AccountSnapshot, refPrice float64) Result {
	if !m.Enabled() {
		return Safe("risk control disabled")
	}
	if res := m.orders.Check(o.Symbol(), o.Price(), refPrice); !res.Passed {
		return res
	}
	return m.exposure(o, o.Volume(), o.Price(), refPrice, snap)
}

// exposure 资金与持仓两段检查，volume 为本次要进入账本的手数。
func (m *Manager) exposure(o *order.Order, volume int, price, refPrice float64, snap portfolio.AccountSnapshot) Result {
	symbol := o.Symbol()
	if price <= 0 {
		price = refPrice
	}
	if refPrice <= 0 {
		refPrice = price
	}
	mult := m.contracts.Multiplier(symbol)
	amount := price * float64(volume) * mult

	var warning *Result
	if m.capital.Enabled() {
		if res := m.capital.CheckOrder(amount, snap); !res.Passed {
			return res
		}
		res := m.capital.CheckDailyLoss(snap)
		if !res.Passed {
			return res
		}
		if res.Level == LevelWarning {
			warning = &res
		}
	}

	dir := positionDirection(o.Direction())
	if o.Direction().IsClose() {
		if pos, ok := snap.Position(symbol); !ok || pos.Direction != dir {
			return Block(RuleNoPosition, "no position to close: "+symbol,
				fmt.Sprintf("%s order requires a %s position on %s", o.Direction(), dir, symbol))
		}
	} else if m.positions.Enabled() {
		if res := m.positions.Check(symbol, volume, dir, snap, refPrice, mult); !res.Passed {
			return res
		}
	}

	if warning != nil {
		return *warning
	}
	return Safe("order risk passed: " + symbol)
}

// CheckFill 挂单成交前按当时的账户状态复核资金与持仓。
// 频率窗口在委托时已计入，这里不再占用。
func (m *Manager) CheckFill(o *order.Order, volume int, price float64, snap portfolio.AccountSnapshot) Result {
	res := Safe("risk control disabled")
	if m.Enabled() {
		res = m.exposure(o, volume, price, price, snap)
	}
	m.record(CategoryOrder, o.ID(), o.Symbol(), res, map[string]any{
		"direction":  string(o.Direction()),
		"price":      price,
		"volume":     volume,
		"order_type": string(o.Type()),
		"stage":      "fill",
	}, snap)
	return res
}

// CheckPosition 单独检查一次开仓。
func (m *Manager) CheckPosition(symbol string, volume int, dir portfolio.Direction, snap portfolio.AccountSnapshot, price float64) Result {
	res := Safe("risk control disabled")
	if m.Enabled() {
		res = m.positions.Check(symbol, volume, dir, snap, price, m.contracts.Multiplier(symbol))
	}
	m.record(CategoryPosition, "", symbol, res, map[string]any{"volume": volume, "direction": string(dir)}, snap)
	return res
}

// CheckCapital 单独检查订单金额与当日亏损。
func (m *Manager) CheckCapital(amount float64, snap portfolio.AccountSnapshot) Result {
	res := Safe("capital risk passed")
	if !m.Enabled() {
		res = Safe("risk control disabled")
	} else if m.capital.Enabled() {
		res = m.capital.CheckOrder(amount, snap)
		if res.Passed {
			res = m.capital.CheckDailyLoss(snap)
		}
	}
	m.record(CategoryCapital, "", "", res, map[string]any{"order_amount": amount}, snap)
	return res
}

// Metrics 账户风险指标。
type Metrics struct {
	TotalEquity        float64  `json:"total_equity"`
	Cash               float64  `json:"cash"`
	Available          float64  `json:"available_capital"`
	MarginUsed         float64  `json:"margin_used"`
	PositionCount      int      `json:"total_positions"`
	Symbols            []string `json:"position_symbols"`
	TotalPositionValue float64  `json:"total_position_value"`
	PositionRatio      float64  `json:"position_ratio"`
	DailyPnL           float64  `json:"daily_pnl"`
}

func (mt Metrics) Map() map[string]any {
	return map[string]any{
		"total_equity":         mt.TotalEquity,
		"cash":                 mt.Cash,
		"available_capital":    mt.Available,
		"margin_used":          mt.MarginUsed,
		"total_positions":      mt.PositionCount,
		"position_symbols":     mt.Symbols,
		"total_position_value": mt.TotalPositionValue,
		"position_ratio":       mt.PositionRatio,
		"daily_pnl":            mt.DailyPnL,
	}
}

func (m *Manager) Metrics(snap portfolio.AccountSnapshot) Metrics {
	mt := ComputeMetrics(snap)
	mt.DailyPnL = m.capital.DailyPnL()
	return mt
}

// ComputeMetrics 从快照计算与风控状态无关的指标。
func ComputeMetrics(snap portfolio.AccountSnapshot) Metrics {
	mt := Metrics{
		TotalEquity:        snap.TotalEquity,
		Cash:               snap.Cash,
		Available:          snap.Available,
		MarginUsed:         snap.MarginUsed,
		PositionCount:      len(snap.Positions),
		Symbols:            make([]string, 0, len(snap.Positions)),
		TotalPositionValue: snap.PositionValue(),
	}
	for _, p := range snap.Positions {
		mt.Symbols = append(mt.Symbols, p.Symbol)
	}
	if snap.TotalEquity > 0 {
		mt.PositionRatio = mt.TotalPositionValue / snap.TotalEquity
	}
	return mt
}

// DailyPnL 当日盈亏（以当天首次检查时的权益为基准）。
func (m *Manager) DailyPnL() float64 { return m.capital.DailyPnL() }

// ResetDaily 清理过期的日统计。
func (m *Manager) ResetDaily() {
	m.capital.ResetDaily()
	m.logger.Info("risk daily stats reset")
}

// RecordLedgerFailure 风控通过但账本执行失败时补记审计。
func (m *Manager) RecordLedgerFailure(o *order.Order, reason string, snap portfolio.AccountSnapshot) {
	res := Block(RuleCapitalLimit, "ledger rejected order: "+o.Symbol(), reason)
	m.record(CategoryCapital, o.ID(), o.Symbol(), res, map[string]any{
		"direction": string(o.Direction()),
		"price":     o.Price(),
		"volume":    o.Volume(),
	}, snap)
}

func (m *Manager) record(cat Category, orderID, symbol string, res Result, details map[string]any, snap portfolio.AccountSnapshot) {
	if m.metrics != nil {
		m.metrics.RecordRiskDecision(string(cat), res.Rule, string(res.Outcome()))
	}
	switch res.Outcome() {
	case OutcomeBlocked:
		if m.notifier != nil {
			m.notifier.NotifyBlocked(symbol, res)
		} else {
			m.logger.Warn("risk blocked", zap.String("symbol", symbol), zap.String("rule", res.Rule), zap.String("reason", res.Reason))
		}
	case OutcomeWarning:
		if m.notifier != nil {
			m.notifier.NotifyWarning(symbol, res)
		}
	default:
		m.logger.Debug("risk passed", zap.String("category", string(cat)), zap.String("symbol", symbol))
	}
	if m.decisions != nil {
		fields := make(map[string]interface{}, len(details)+4)
		for k, v := range details {
			fields[k] = v
		}
		fields["order_id"] = orderID
		fields["symbol"] = symbol
		fields["level"] = string(res.Level)
		if res.Reason != "" {
			fields["reason"] = res.Reason
		}
		m.decisions(string(cat), res.Rule, string(res.Outcome()), fields)
	}
	if m.audit == nil {
		return
	}
	m.audit.Append(AuditRecord{
		Timestamp:      m.clock.Now(),
		OrderID:        orderID,
		Symbol:         symbol,
		Category:       cat,
		Outcome:        res.Outcome(),
		Level:          res.Level,
		Rule:           res.Rule,
		Message:        res.Message,
		Reason:         res.Reason,
		OrderDetails:   details,
		AccountMetrics: m.Metrics(snap).Map(),
	})
}

// positionDirection 买入开仓与卖出平仓对应多头，卖空与买入平仓对应空头。
func positionDirection(d order.Direction) portfolio.Direction {
	if d.IsLongSide() {
		return portfolio.Long
	}
	return portfolio.Short
}
