package posttrade

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-risk-go/portfolio"
)

var t0 = time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC)

func curve(values ...float64) []portfolio.EquityPoint {
	out := make([]portfolio.EquityPoint, len(values))
	for i, v := range values {
		out[i] = portfolio.EquityPoint{Value: v, Time: t0.AddDate(0, 0, i)}
	}
	return out
}

func TestTotalAndAnnualReturn(t *testing.T) {
	assert.InDelta(t, 0.1, TotalReturn(1000, 1100), 1e-12)
	assert.Zero(t, TotalReturn(0, 1100))

	// 一整年 252 天，年化等于总收益
	assert.InDelta(t, 0.1, AnnualReturn(0.1, 252), 1e-12)
	assert.InDelta(t, 0.21, AnnualReturn(0.1, 126), 1e-12)
	assert.Zero(t, AnnualReturn(0.1, 0))
	assert.Equal(t, -1.0, AnnualReturn(-1.5, 10))
}

func TestMaxDrawdown(t *testing.T) {
	assert.InDelta(t, 0.25, MaxDrawdown(curve(100, 120, 90, 130, 117)), 1e-12)
	assert.Zero(t, MaxDrawdown(curve(100, 110, 120)))
	assert.Zero(t, MaxDrawdown(nil))
}

func TestSharpeRatio(t *testing.T) {
	assert.Zero(t, SharpeRatio(curve(100), 0))
	assert.Zero(t, SharpeRatio(curve(100, 100, 100), 0), "zero volatility")

	got := SharpeRatio(curve(100, 101, 103.02), 0)
	want := (0.015 * 252) / (0.005 * math.Sqrt(252))
	assert.InDelta(t, want, got, 1e-6)

	withRf := SharpeRatio(curve(100, 101, 103.02), 0.03)
	assert.Less(t, withRf, got)
}

func trade(symbol string, dir portfolio.Direction, vol int, price float64) portfolio.Trade {
	return portfolio.Trade{Symbol: symbol, Direction: dir, Volume: vol, Price: price, Multiplier: 10}
}

func TestRoundTripsFIFO(t *testing.T) {
	trades := []portfolio.Trade{
		trade("rb2501", portfolio.Long, 2, 100),
		trade("rb2501", portfolio.Long, 3, 110),
		trade("rb2501", portfolio.Short, 1, 120),
		trade("rb2501", portfolio.Long, -4, 120),
		trade("rb2501", portfolio.Short, -1, 125),
		trade("rb2501", portfolio.Long, -1, 105),
		// 没有对应开仓的平仓不计入
		trade("cu2412", portfolio.Short, -1, 100),
	}
	trips := RoundTrips(trades)
	require.Len(t, trips, 3)

	assert.Equal(t, 4, trips[0].Volume)
	assert.InDelta(t, (2*20.0+2*10.0)*10, trips[0].PnL, 1e-9)
	assert.InDelta(t, -50.0, trips[1].PnL, 1e-9)
	assert.Equal(t, portfolio.Short, trips[1].Direction)
	assert.InDelta(t, -50.0, trips[2].PnL, 1e-9)

	assert.InDelta(t, 1.0/3, WinRate(trips), 1e-12)
	assert.InDelta(t, 600.0/100.0, ProfitFactor(trips), 1e-12)
}

func TestProfitFactorEdges(t *testing.T) {
	assert.True(t, math.IsInf(ProfitFactor([]RoundTrip{{PnL: 10}}), 1))
	assert.Zero(t, ProfitFactor(nil))
	assert.Zero(t, ProfitFactor([]RoundTrip{{PnL: 0}}))
	assert.Zero(t, WinRate(nil))
}

func TestAnalyzePortfolio(t *testing.T) {
	p, err := portfolio.New(portfolio.Config{
		InitialCapital: 1_000_000,
		CommissionRate: 0.0001,
		StartTime:      t0,
	})
	require.NoError(t, err)

	_, err = p.OpenLong("rb2501", 3500, 10, t0)
	require.NoError(t, err)
	p.RecordEquity(t0.Add(time.Hour))
	_, err = p.CloseLong("rb2501", 3550, 10, t0.Add(2*time.Hour))
	require.NoError(t, err)
	p.RecordEquity(t0.Add(3 * time.Hour))

	stats := Analyze(p.State(), Options{Days: 1})
	assert.InDelta(t, 1_004_929.5, stats.FinalEquity, 1e-6)
	assert.InDelta(t, 0.0049295, stats.TotalReturn, 1e-9)
	assert.Equal(t, 2, stats.TotalTrades)
	assert.Equal(t, 1, stats.RoundTrips)
	assert.Equal(t, 1.0, stats.WinRate)
	assert.True(t, math.IsInf(stats.ProfitFactor, 1))
	assert.Zero(t, stats.OpenPositions)
	assert.Greater(t, stats.AnnualReturn, stats.TotalReturn)
	assert.InDelta(t, 35.0/1_000_000, stats.MaxDrawdown, 1e-9)
}
