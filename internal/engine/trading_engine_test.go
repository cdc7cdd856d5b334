package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-risk-go/internal/engine"
	"futures-risk-go/order"
	"futures-risk-go/portfolio"
	"futures-risk-go/risk"
)

var t0 = time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// recordingMetrics 记录引擎上报的指标
type recordingMetrics struct {
	mu        sync.Mutex
	submitted int
	rejected  map[string]int
	canceled  int
	filled    int
	equity    float64
}

func (m *recordingMetrics) RecordOrderSubmitted(string) {
	m.mu.Lock()
	m.submitted++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordOrderRejected(kind string) {
	m.mu.Lock()
	if m.rejected == nil {
		m.rejected = make(map[string]int)
	}
	m.rejected[kind]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordOrderCanceled() {
	m.mu.Lock()
	m.canceled++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordFill(_ string, volume int) {
	m.mu.Lock()
	m.filled += volume
	m.mu.Unlock()
}

func (m *recordingMetrics) UpdateAccount(_, equity float64) {
	m.mu.Lock()
	m.equity = equity
	m.mu.Unlock()
}

type fixture struct {
	engine  *engine.TradingEngine
	ledger  *portfolio.Portfolio
	audit   *risk.AuditLog
	metrics *recordingMetrics
	clock   *testClock
}

func newFixture(t *testing.T, riskCfg risk.Config, cfg engine.Config) *fixture {
	t.Helper()
	clock := &testClock{t: t0}
	ledger, err := portfolio.New(portfolio.Config{
		InitialCapital: 1_000_000,
		CommissionRate: 0.0001,
		StartTime:      t0,
		Clock:          clock.Now,
	})
	require.NoError(t, err)
	audit, err := risk.NewAuditLog(risk.AuditConfig{}, nil)
	require.NoError(t, err)
	metrics := &recordingMetrics{}
	e, err := engine.New(cfg, engine.Components{
		Portfolio: ledger,
		Risk:      risk.NewManager(riskCfg, risk.Options{Audit: audit, Clock: clock}),
		Metrics:   metrics,
		Clock:     clock.Now,
	})
	require.NoError(t, err)
	return &fixture{engine: e, ledger: ledger, audit: audit, metrics: metrics, clock: clock}
}

func limit(symbol string, dir order.Direction, price float64, volume int) engine.Request {
	return engine.Request{Symbol: symbol, Direction: dir, Type: order.TypeLimit, Price: price, Volume: volume}
}

func requireReject(t *testing.T, err error, kind engine.RejectKind) *engine.RejectError {
	t.Helper()
	rej, ok := engine.AsReject(err)
	require.True(t, ok, "expected reject error, got %v", err)
	assert.Equal(t, kind, rej.Kind)
	return rej
}

func TestNewValidatesComponents(t *testing.T) {
	_, err := engine.New(engine.Config{}, engine.Components{})
	assert.Error(t, err)

	ledger, err := portfolio.New(portfolio.Config{InitialCapital: 1})
	require.NoError(t, err)
	_, err = engine.New(engine.Config{}, engine.Components{Portfolio: ledger})
	assert.Error(t, err, "risk manager is required")

	_, err = engine.New(engine.Config{EquitySampleEvery: -1}, engine.Components{})
	assert.Error(t, err)
}

func TestSubmitCapitalCeilingLeavesLedgerUnchanged(t *testing.T) {
	f := newFixture(t, risk.Config{MaxOrderAmount: risk.Float(50000)}, engine.Config{})
	before := f.ledger.State()

	id, err := f.engine.Submit(context.Background(), limit("rb2501", order.DirectionBuy, 3500, 20))
	assert.Empty(t, id)
	rej := requireReject(t, err, engine.RejectRiskBlocked)
	assert.Equal(t, risk.RuleCapitalLimit, rej.Rule)
	assert.True(t, errors.Is(err, risk.ErrBlocked))
	assert.Equal(t, before, f.ledger.State())

	o, ok := f.engine.Orders().Get(rej.OrderID)
	require.True(t, ok)
	assert.Equal(t, order.StatusRejected, o.Status())
	assert.Equal(t, rej.Reason, o.RejectReason())

	recs := f.audit.Recent(0)
	require.Len(t, recs, 1)
	assert.Equal(t, risk.OutcomeBlocked, recs[0].Outcome)
	assert.Equal(t, 1, f.metrics.rejected["risk_blocked"])
}

func TestSubmitFrequencyLimit(t *testing.T) {
	f := newFixture(t, risk.Config{MaxOrdersPerMinute: risk.Int(2)}, engine.Config{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.engine.Submit(ctx, limit("rb2501", order.DirectionBuy, 3500, 1))
		require.NoError(t, err)
	}
	_, err := f.engine.Submit(ctx, limit("rb2501", order.DirectionBuy, 3500, 1))
	rej := requireReject(t, err, engine.RejectRiskBlocked)
	assert.Equal(t, risk.RuleOrderLimit, rej.Rule)

	f.clock.Advance(61 * time.Second)
	_, err = f.engine.Submit(ctx, limit("rb2501", order.DirectionBuy, 3500, 1))
	assert.NoError(t, err)

	pos, ok := f.ledger.Position("rb2501")
	require.True(t, ok)
	assert.Equal(t, 3, pos.Volume)
}

func TestSubmitCloseWithoutPosition(t *testing.T) {
	f := newFixture(t, risk.Config{}, engine.Config{})
	_, err := f.engine.Submit(context.Background(), limit("rb2501", order.DirectionSell, 3500, 1))
	rej := requireReject(t, err, engine.RejectRiskBlocked)
	assert.Equal(t, risk.RuleNoPosition, rej.Rule)

	// 风控关闭时由账本拒绝
	f = newFixture(t, risk.Config{EnableRiskControl: risk.Bool(false)}, engine.Config{})
	_, err = f.engine.Submit(context.Background(), limit("rb2501", order.DirectionCover, 3500, 1))
	requireReject(t, err, engine.RejectNoPosition)
	assert.True(t, errors.Is(err, portfolio.ErrNoPosition))

	recs := f.audit.Recent(0)
	require.Len(t, recs, 2, "passed decision plus ledger failure")
	assert.Equal(t, risk.OutcomeBlocked, recs[1].Outcome)
	assert.Equal(t, risk.CategoryCapital, recs[1].Category)
}

func TestSubmitInsufficientCapital(t *testing.T) {
	f := newFixture(t, risk.Config{}, engine.Config{})
	_, err := f.engine.Submit(context.Background(), limit("rb2501", order.DirectionBuy, 3500, 30))
	requireReject(t, err, engine.RejectInsufficientCapital)
	assert.InDelta(t, 1_000_000.0, f.ledger.Cash(), 1e-9)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t, risk.Config{}, engine.Config{StrictSymbols: true})
	ctx := context.Background()

	tests := []struct {
		name string
		req  engine.Request
	}{
		{"零手数", limit("rb2501", order.DirectionBuy, 3500, 0)},
		{"限价为零", limit("rb2501", order.DirectionBuy, 0, 1)},
		{"非法方向", limit("rb2501", "HOLD", 3500, 1)},
		{"未知合约", limit("zz9999", order.DirectionBuy, 3500, 1)},
		{"价格不在最小变动价位", limit("rb2501", order.DirectionBuy, 3500.3, 1)},
		{"市价单无参考价", engine.Request{Symbol: "rb2501", Direction: order.DirectionBuy, Type: order.TypeMarket, Volume: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := f.engine.Submit(ctx, tt.req)
			assert.Empty(t, id)
			requireReject(t, err, engine.RejectValidation)
		})
	}
	assert.Zero(t, f.audit.Len(), "validation failures never reach risk")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := f.engine.Submit(cancelled, limit("rb2501", order.DirectionBuy, 3500, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLimitOrderRestsUntilMarketable(t *testing.T) {
	f := newFixture(t, risk.Config{}, engine.Config{})
	f.engine.UpdatePrice("rb2501", 3600, t0)

	id, err := f.engine.Submit(context.Background(), limit("rb2501", order.DirectionBuy, 3500, 2))
	require.NoError(t, err)
	o, _ := f.engine.Orders().Get(id)
	assert.Equal(t, order.StatusSubmitted, o.Status())
	_, held := f.ledger.Position("rb2501")
	assert.False(t, held)

	assert.Zero(t, f.engine.UpdatePrice("rb2501", 3550, t0.Add(time.Minute)))
	assert.Equal(t, 1, f.engine.UpdatePrice("rb2501", 3490, t0.Add(2*time.Minute)))

	o, _ = f.engine.Orders().Get(id)
	assert.Equal(t, order.StatusFilled, o.Status())
	assert.InDelta(t, 3500.0, o.AvgFillPrice(), 1e-9)
	pos, ok := f.ledger.Position("rb2501")
	require.True(t, ok)
	assert.Equal(t, 2, pos.Volume)
	assert.InDelta(t, 3490.0, pos.MarkPrice, 1e-9)

	assert.Zero(t, f.engine.UpdatePrice("rb2501", 3400, t0.Add(3*time.Minute)), "filled orders never fill twice")
	assert.Equal(t, 2, f.metrics.filled)
}

func TestSellLimitRestsAboveMarket(t *testing.T) {
	f := newFixture(t, risk.Config{}, engine.Config{})
	ctx := context.Background()
	f.engine.UpdatePrice("rb2501", 3500, t0)
	_, err := f.engine.Submit(ctx, limit("rb2501", order.DirectionBuy, 3500, 1))
	require.NoError(t, err)

	id, err := f.engine.Submit(ctx, limit("rb2501", order.DirectionSell, 3600, 1))
	require.NoError(t, err)
	assert.Zero(t, f.engine.UpdatePrice("rb2501", 3550, t0))
	assert.Equal(t, 1, f.engine.UpdatePrice("rb2501", 3610, t0))

	o, _ := f.engine.Orders().Get(id)
	assert.Equal(t, order.StatusFilled, o.Status())
	_, held := f.ledger.Position("rb2501")
	assert.False(t, held)
	assert.Greater(t, f.ledger.Cash(), 1_000_000.0)
}

func TestRestingOrderDroppedWhenLedgerRejects(t *testing.T) {
	f := newFixture(t, risk.Config{}, engine.Config{})
	ctx := context.Background()
	f.engine.UpdatePrice("rb2501", 3500, t0)
	_, err := f.engine.Submit(ctx, limit("rb2501", order.DirectionBuy, 3500, 1))
	require.NoError(t, err)

	// 挂两笔平仓单，第一笔成交后第二笔已无持仓
	first, err := f.engine.Submit(ctx, limit("rb2501", order.DirectionSell, 3600, 1))
	require.NoError(t, err)
	second, err := f.engine.Submit(ctx, limit("rb2501", order.DirectionSell, 3600, 1))
	require.NoError(t, err)

	assert.Equal(t, 1, f.engine.UpdatePrice("rb2501", 3600, t0))
	o1, _ := f.engine.Orders().Get(first)
	o2, _ := f.engine.Orders().Get(second)
	assert.Equal(t, order.StatusFilled, o1.Status())
	assert.Equal(t, order.StatusCancelled, o2.Status())
	assert.NotEmpty(t, f.audit.BySymbol("rb2501"))
}

func TestRestingOrdersRecheckedAgainstPositionCeiling(t *testing.T) {
	f := newFixture(t, risk.Config{MaxPositionPerSymbol: risk.Int(5)}, engine.Config{})
	ctx := context.Background()
	f.engine.UpdatePrice("rb2501", 3500, t0)

	// 每笔单独看都不超限，挂单期间互相看不到
	ids := make([]string, 3)
	for i := range ids {
		id, err := f.engine.Submit(ctx, limit("rb2501", order.DirectionBuy, 3400, 5))
		require.NoError(t, err)
		ids[i] = id
	}

	assert.Equal(t, 1, f.engine.UpdatePrice("rb2501", 3400, t0))
	pos, ok := f.ledger.Position("rb2501")
	require.True(t, ok)
	assert.Equal(t, 5, pos.Volume)

	statuses := map[order.Status]int{}
	for _, id := range ids {
		o, _ := f.engine.Orders().Get(id)
		statuses[o.Status()]++
	}
	assert.Equal(t, 1, statuses[order.StatusFilled])
	assert.Equal(t, 2, statuses[order.StatusCancelled])

	blocked := f.audit.ByOutcome(risk.OutcomeBlocked)
	require.Len(t, blocked, 2)
	for _, rec := range blocked {
		assert.Equal(t, risk.RulePositionLimit, rec.Rule)
		assert.Equal(t, "fill", rec.OrderDetails["stage"])
	}
	assert.Len(t, f.ledger.Trades(), 1)
}

func TestRestingOrderRecheckedAgainstCapitalCeiling(t *testing.T) {
	f := newFixture(t, risk.Config{MinAvailableRatio: risk.Float(0.7)}, engine.Config{})
	ctx := context.Background()
	f.engine.UpdatePrice("rb2501", 3500, t0)

	first, err := f.engine.Submit(ctx, limit("rb2501", order.DirectionBuy, 3400, 5))
	require.NoError(t, err)
	second, err := f.engine.Submit(ctx, limit("rb2501", order.DirectionBuy, 3400, 5))
	require.NoError(t, err)
	// 立即成交，可用资金约 82%
	_, err = f.engine.Submit(ctx, limit("rb2501", order.DirectionBuy, 3500, 5))
	require.NoError(t, err)

	// 第一笔成交后可用资金约 65%，第二笔资金足够但低于比例下限
	assert.Equal(t, 1, f.engine.UpdatePrice("rb2501", 3400, t0))
	o1, _ := f.engine.Orders().Get(first)
	o2, _ := f.engine.Orders().Get(second)
	assert.Equal(t, order.StatusFilled, o1.Status())
	assert.Equal(t, order.StatusCancelled, o2.Status())
	assert.Greater(t, f.ledger.Cash(), 5*3400*10.0)

	pos, ok := f.ledger.Position("rb2501")
	require.True(t, ok)
	assert.Equal(t, 10, pos.Volume)

	blocked := f.audit.ByOutcome(risk.OutcomeBlocked)
	require.Len(t, blocked, 1)
	assert.Equal(t, risk.RuleCapitalLimit, blocked[0].Rule)
	assert.Equal(t, second, blocked[0].OrderID)
}

func TestClampedCloseBecomesPartialThenCancelled(t *testing.T) {
	f := newFixture(t, risk.Config{}, engine.Config{})
	ctx := context.Background()
	f.engine.UpdatePrice("rb2501", 3500, t0)
	_, err := f.engine.Submit(ctx, limit("rb2501", order.DirectionBuy, 3500, 2))
	require.NoError(t, err)

	id, err := f.engine.Submit(ctx, limit("rb2501", order.DirectionSell, 3500, 5))
	require.NoError(t, err)
	o, _ := f.engine.Orders().Get(id)
	assert.Equal(t, order.StatusCancelled, o.Status())
	assert.Equal(t, 2, o.FilledVolume())
	_, held := f.ledger.Position("rb2501")
	assert.False(t, held)
	assert.Equal(t, 1, f.metrics.canceled)
}

func TestMarketOrderFillsAtLastPrice(t *testing.T) {
	f := newFixture(t, risk.Config{}, engine.Config{})
	f.engine.UpdatePrice("rb2501", 3520, t0)

	id, err := f.engine.Submit(context.Background(), engine.Request{
		Symbol: "rb2501", Direction: order.DirectionShort, Type: order.TypeMarket, Volume: 3,
	})
	require.NoError(t, err)
	o, _ := f.engine.Orders().Get(id)
	assert.Equal(t, order.StatusFilled, o.Status())
	assert.InDelta(t, 3520.0, o.AvgFillPrice(), 1e-9)

	pos, ok := f.ledger.Position("rb2501")
	require.True(t, ok)
	assert.Equal(t, portfolio.Short, pos.Direction)
	assert.Equal(t, 3, pos.Volume)

	// 无行情时按委托价成交
	id, err = f.engine.Submit(context.Background(), engine.Request{
		Symbol: "cu2412", Direction: order.DirectionBuy, Type: order.TypeMarket, Price: 70000, Volume: 1,
	})
	require.NoError(t, err)
	o, _ = f.engine.Orders().Get(id)
	assert.InDelta(t, 70000.0, o.AvgFillPrice(), 1e-9)
}

func TestCancelRestingOrder(t *testing.T) {
	f := newFixture(t, risk.Config{}, engine.Config{})
	f.engine.UpdatePrice("rb2501", 3600, t0)
	id, err := f.engine.Submit(context.Background(), limit("rb2501", order.DirectionBuy, 3500, 1))
	require.NoError(t, err)

	assert.True(t, f.engine.Cancel(id))
	assert.False(t, f.engine.Cancel(id), "already cancelled")
	assert.False(t, f.engine.Cancel("missing"))
	assert.Zero(t, f.engine.UpdatePrice("rb2501", 3400, t0))
	assert.Equal(t, int64(1), f.engine.GetStatistics().TotalCancels)
}

func TestUpdateTimeSampleRecordsEveryNth(t *testing.T) {
	f := newFixture(t, risk.Config{}, engine.Config{EquitySampleEvery: 3})
	recorded := 0
	for i := 1; i <= 7; i++ {
		if f.engine.UpdateTimeSample(t0.Add(time.Duration(i) * time.Minute)) {
			recorded++
		}
	}
	assert.Equal(t, 2, recorded)
	curve := f.ledger.EquityCurve()
	require.Len(t, curve, 3, "initial point plus two samples")
	assert.Equal(t, t0.Add(3*time.Minute), curve[1].Time)
	assert.Equal(t, t0.Add(6*time.Minute), curve[2].Time)
}

func TestPauseRejectsSubmissions(t *testing.T) {
	f := newFixture(t, risk.Config{}, engine.Config{})
	ctx := context.Background()
	f.engine.UpdatePrice("rb2501", 3600, t0)
	_, err := f.engine.Submit(ctx, limit("rb2501", order.DirectionBuy, 3500, 1))
	require.NoError(t, err)

	require.NoError(t, f.engine.Pause())
	assert.Equal(t, engine.StatePaused, f.engine.GetState())
	_, err = f.engine.Submit(ctx, limit("rb2501", order.DirectionBuy, 3500, 1))
	requireReject(t, err, engine.RejectHalted)
	assert.Error(t, f.engine.Pause())

	require.NoError(t, f.engine.Resume())
	require.NoError(t, f.engine.Stop())
	assert.Equal(t, "STOPPED", f.engine.GetState().String())
	assert.Empty(t, f.engine.Orders().Active(""), "stop cancels resting orders")
	assert.Error(t, f.engine.Resume())
}

func TestConcurrentSubmitNeverOverspends(t *testing.T) {
	f := newFixture(t, risk.Config{}, engine.Config{})
	f.engine.UpdatePrice("rb2501", 3500, t0)

	const n = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		kinds    = make(map[engine.RejectKind]int)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Submit(context.Background(), limit("rb2501", order.DirectionBuy, 3500, 10))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
				return
			}
			if rej, ok := engine.AsReject(err); ok {
				kinds[rej.Kind]++
			}
		}()
	}
	wg.Wait()

	// 每笔 350,000 + 手续费，100 万只够两笔
	assert.Equal(t, 2, accepted)
	assert.Equal(t, n-2, kinds[engine.RejectInsufficientCapital])
	assert.GreaterOrEqual(t, f.ledger.Cash(), 0.0)
	pos, ok := f.ledger.Position("rb2501")
	require.True(t, ok)
	assert.Equal(t, 20, pos.Volume)

	st := f.engine.GetStatistics()
	assert.Equal(t, int64(n), st.TotalOrders)
	assert.Equal(t, int64(n-2), st.TotalRejects)
	assert.Equal(t, int64(2), st.TotalFills)
}
