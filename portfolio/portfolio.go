package portfolio

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"futures-risk-go/contract"
	"futures-risk-go/internal/id"
)

const fundsEpsilon = 1e-6

// Config 账本参数。
type Config struct {
	InitialCapital float64
	CommissionRate float64
	Slippage       float64 // 滑点比例，买入加、卖出减
	Contracts      *contract.Registry
	StartTime      time.Time
	Clock          func() time.Time
	Logger         *zap.Logger
}

// Portfolio 模拟账户账本：现金、持仓、成交与权益曲线。
// 所有修改都在同一把锁内完成。
type Portfolio struct {
	mu sync.Mutex

	initialCapital float64
	cash           float64
	positions      map[string]*Position
	trades         []Trade
	equity         []EquityPoint

	commissionRate float64
	slippage       float64
	contracts      *contract.Registry
	clock          func() time.Time
	logger         *zap.Logger
}

func New(cfg Config) (*Portfolio, error) {
	if cfg.InitialCapital <= 0 {
		return nil, fmt.Errorf("initial capital must be positive, got %v", cfg.InitialCapital)
	}
	if cfg.CommissionRate < 0 || cfg.Slippage < 0 || cfg.Slippage >= 1 {
		return nil, fmt.Errorf("invalid commission rate %v or slippage %v", cfg.CommissionRate, cfg.Slippage)
	}
	if cfg.Contracts == nil {
		cfg.Contracts = contract.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	start := cfg.StartTime
	if start.IsZero() {
		start = cfg.Clock()
	}
	return &Portfolio{
		initialCapital: cfg.InitialCapital,
		cash:           cfg.InitialCapital,
		positions:      make(map[string]*Position),
		equity:         []EquityPoint{{Value: cfg.InitialCapital, Time: start}},
		commissionRate: cfg.CommissionRate,
		slippage:       cfg.Slippage,
		contracts:      cfg.Contracts,
		clock:          cfg.Clock,
		logger:         cfg.Logger,
	}, nil
}

// Do 在账本锁内执行 fn，用于"检查后扣减"这类需要原子性的序列。
// fn 内不得再调用 Portfolio 的公开方法。
func (p *Portfolio) Do(fn func(tx *Tx) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn(&Tx{p: p})
}

func (p *Portfolio) OpenLong(symbol string, price float64, volume int, at time.Time) (Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open(symbol, Long, price, volume, at)
}

func (p *Portfolio) OpenShort(symbol string, price float64, volume int, at time.Time) (Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open(symbol, Short, price, volume, at)
}

func (p *Portfolio) CloseLong(symbol string, price float64, volume int, at time.Time) (Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.close(symbol, Long, price, volume, at)
}

func (p *Portfolio) CloseShort(symbol string, price float64, volume int, at time.Time) (Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.close(symbol, Short, price, volume, at)
}

// UpdatePrice 盯市，不影响现金。
func (p *Portfolio) UpdatePrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markPrice(symbol, price)
}

// RecordEquity 追加一个权益采样点。
func (p *Portfolio) RecordEquity(at time.Time) EquityPoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	pt := EquityPoint{Value: p.totalEquity(), Time: at}
	p.equity = append(p.equity, pt)
	return pt
}

// TotalEquity 账户权益 = 现金 + Σ(持仓成本 + 浮动盈亏)，即现金加持仓市值。
// 开仓时成本从现金划入持仓，平仓时释放的成本连同已实现盈亏回到现金，
// 因此成交本身不改变权益，只有价格变动和手续费会改变。
func (p *Portfolio) TotalEquity() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalEquity()
}

func (p *Portfolio) Cash() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash
}

func (p *Portfolio) InitialCapital() float64 {
	return p.initialCapital
}

func (p *Portfolio) Position(symbol string) (Position, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

func (p *Portfolio) Positions() []Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionList()
}

func (p *Portfolio) Trades() []Trade {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Trade(nil), p.trades...)
}

func (p *Portfolio) EquityCurve() []EquityPoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]EquityPoint(nil), p.equity...)
}

// Snapshot 实现账户快照接口，与实盘适配器一致。
func (p *Portfolio) Snapshot() (AccountSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot(), nil
}

// State 返回账本完整副本。
func (p *Portfolio) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{
		InitialCapital: p.initialCapital,
		Cash:           p.cash,
		TotalEquity:    p.totalEquity(),
		Positions:      p.positionList(),
		Trades:         append([]Trade(nil), p.trades...),
		EquityCurve:    append([]EquityPoint(nil), p.equity...),
	}
}

// Tx 持锁期间的账本视图，只在 Do 回调内有效。
type Tx struct {
	p *Portfolio
}

func (tx *Tx) Snapshot() AccountSnapshot { return tx.p.snapshot() }
func (tx *Tx) Cash() float64             { return tx.p.cash }
func (tx *Tx) TotalEquity() float64      { return tx.p.totalEquity() }
func (tx *Tx) Multiplier(symbol string) float64 {
	return tx.p.contracts.Multiplier(symbol)
}

func (tx *Tx) Position(symbol string) (Position, bool) {
	pos, ok := tx.p.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

func (tx *Tx) OpenLong(symbol string, price float64, volume int, at time.Time) (Fill, error) {
	return tx.p.open(symbol, Long, price, volume, at)
}

func (tx *Tx) OpenShort(symbol string, price float64, volume int, at time.Time) (Fill, error) {
	return tx.p.open(symbol, Short, price, volume, at)
}

func (tx *Tx) CloseLong(symbol string, price float64, volume int, at time.Time) (Fill, error) {
	return tx.p.close(symbol, Long, price, volume, at)
}

func (tx *Tx) CloseShort(symbol string, price float64, volume int, at time.Time) (Fill, error) {
	return tx.p.close(symbol, Short, price, volume, at)
}

func (tx *Tx) UpdatePrice(symbol string, price float64) { tx.p.markPrice(symbol, price) }

// closePlan 平仓的计算结果，先算后改。
type closePlan struct {
	trade     Trade
	cashDelta float64
}

func (p *Portfolio) planClose(pos *Position, price float64, volume int, at time.Time) closePlan {
	// 平多是卖出，平空是买入
	exec := p.execPrice(price, pos.Direction == Short)
	notional := exec * float64(volume) * pos.Multiplier
	commission := notional * p.commissionRate
	realized := (exec - pos.AvgPrice) * float64(volume) * pos.Multiplier * pos.Direction.Sign()
	released := pos.AvgPrice * float64(volume) * pos.Multiplier
	return closePlan{
		trade: Trade{
			ID:          id.NewAt(at),
			Symbol:      pos.Symbol,
			Direction:   pos.Direction,
			Volume:      -volume,
			Price:       exec,
			Multiplier:  pos.Multiplier,
			Commission:  commission,
			RealizedPnL: realized,
			Time:        at,
		},
		cashDelta: released - commission + realized,
	}
}

func (p *Portfolio) applyClose(pos *Position, plan closePlan, markPrice float64) {
	p.cash += plan.cashDelta
	pos.Volume += plan.trade.Volume
	pos.MarkPrice = markPrice
	if pos.Volume <= 0 {
		delete(p.positions, pos.Symbol)
	}
	p.trades = append(p.trades, plan.trade)
	p.logger.Debug("position closed",
		zap.String("symbol", pos.Symbol),
		zap.String("direction", string(pos.Direction)),
		zap.Int("volume", -plan.trade.Volume),
		zap.Float64("price", plan.trade.Price),
		zap.Float64("realized_pnl", plan.trade.RealizedPnL),
		zap.Float64("cash", p.cash),
	)
}

func (p *Portfolio) open(symbol string, dir Direction, price float64, volume int, at time.Time) (Fill, error) {
	if volume <= 0 {
		return Fill{}, fmt.Errorf("%w: %d", ErrInvalidVolume, volume)
	}
	if price <= 0 {
		return Fill{}, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}
	fill := Fill{Requested: volume}

	existing, has := p.positions[symbol]
	netVolume := 0
	var plan closePlan
	cashAfter := p.cash
	if has && existing.Direction != dir {
		netVolume = min(volume, existing.Volume)
		plan = p.planClose(existing, price, netVolume, at)
		cashAfter += plan.cashDelta
	}

	residual := volume - netVolume
	var openTrade Trade
	var cost float64
	if residual > 0 {
		mult := p.contracts.Multiplier(symbol)
		exec := p.execPrice(price, dir == Long)
		notional := exec * float64(residual) * mult
		commission := notional * p.commissionRate
		cost = notional + commission
		if cost > cashAfter+fundsEpsilon {
			return Fill{}, fmt.Errorf("%w: need %.2f, available %.2f", ErrInsufficientFunds, cost, cashAfter)
		}
		openTrade = Trade{
			ID:         id.NewAt(at),
			Symbol:     symbol,
			Direction:  dir,
			Volume:     residual,
			Price:      exec,
			Multiplier: mult,
			Commission: commission,
			Time:       at,
		}
	}

	if netVolume > 0 {
		p.applyClose(existing, plan, price)
		fill.Trades = append(fill.Trades, plan.trade)
		fill.Volume += netVolume
	}
	if residual > 0 {
		p.cash -= cost
		pos, ok := p.positions[symbol]
		if ok {
			total := pos.Volume + residual
			pos.AvgPrice = (pos.AvgPrice*float64(pos.Volume) + openTrade.Price*float64(residual)) / float64(total)
			pos.Volume = total
			pos.MarkPrice = price
		} else {
			p.positions[symbol] = &Position{
				Symbol:     symbol,
				Direction:  dir,
				Volume:     residual,
				AvgPrice:   openTrade.Price,
				MarkPrice:  price,
				Multiplier: openTrade.Multiplier,
				OpenTime:   at,
			}
		}
		p.trades = append(p.trades, openTrade)
		fill.Trades = append(fill.Trades, openTrade)
		fill.Volume += residual
		p.logger.Debug("position opened",
			zap.String("symbol", symbol),
			zap.String("direction", string(dir)),
			zap.Int("volume", residual),
			zap.Float64("price", openTrade.Price),
			zap.Float64("commission", openTrade.Commission),
			zap.Float64("cash", p.cash),
		)
	}
	return fill, nil
}

func (p *Portfolio) close(symbol string, dir Direction, price float64, volume int, at time.Time) (Fill, error) {
	if volume <= 0 {
		return Fill{}, fmt.Errorf("%w: %d", ErrInvalidVolume, volume)
	}
	if price <= 0 {
		return Fill{}, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}
	pos, ok := p.positions[symbol]
	if !ok || pos.Direction != dir {
		return Fill{}, fmt.Errorf("%w: %s %s", ErrNoPosition, dir, symbol)
	}
	fill := Fill{Requested: volume, Volume: volume}
	if volume > pos.Volume {
		fill.Volume = pos.Volume
		fill.Clamped = true
	}
	plan := p.planClose(pos, price, fill.Volume, at)
	p.applyClose(pos, plan, price)
	fill.Trades = []Trade{plan.trade}
	return fill, nil
}

func (p *Portfolio) markPrice(symbol string, price float64) {
	if price <= 0 {
		return
	}
	if pos, ok := p.positions[symbol]; ok {
		pos.MarkPrice = price
	}
}

func (p *Portfolio) execPrice(price float64, buy bool) float64 {
	if buy {
		return price * (1 + p.slippage)
	}
	return price * (1 - p.slippage)
}

// totalEquity 现金 + 持仓占用成本 + 浮动盈亏。
func (p *Portfolio) totalEquity() float64 {
	equity := p.cash
	for _, pos := range p.positions {
		equity += pos.CostBasis() + pos.UnrealizedPnL()
	}
	return equity
}

func (p *Portfolio) positionList() []Position {
	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (p *Portfolio) snapshot() AccountSnapshot {
	var margin float64
	for _, pos := range p.positions {
		margin += pos.CostBasis()
	}
	return AccountSnapshot{
		Cash:        p.cash,
		Available:   p.cash,
		MarginUsed:  margin,
		TotalEquity: p.totalEquity(),
		Positions:   p.positionList(),
		Time:        p.clock(),
	}
}
