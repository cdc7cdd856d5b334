package posttrade

import (
	"math"

	"futures-risk-go/portfolio"
)

// TradingPeriodsPerYear is the annualisation factor for daily returns.
const TradingPeriodsPerYear = 252

// DefaultRiskFreeRate is the annual risk-free rate used by Analyze when none is given.
const DefaultRiskFreeRate = 0.03

// Stats contains the performance figures of one ledger. Ratios are fractions (0.05 == 5%).
type Stats struct {
	InitialCapital float64 `json:"initial_capital"`
	FinalEquity    float64 `json:"final_equity"`
	TotalReturn    float64 `json:"total_return"`
	AnnualReturn   float64 `json:"annual_return"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	WinRate        float64 `json:"win_rate"`
	ProfitFactor   float64 `json:"profit_factor"`
	RoundTrips     int     `json:"round_trips"`
	TotalTrades    int     `json:"total_trades"`
	OpenPositions  int     `json:"open_positions"`
}

// Options tunes Analyze.
type Options struct {
	// Days is the number of trading days covered; 0 skips the annual return.
	Days         int
	RiskFreeRate *float64
}

// Analyze computes every figure from a ledger state.
func Analyze(st portfolio.State, opts Options) Stats {
	rf := DefaultRiskFreeRate
	if opts.RiskFreeRate != nil {
		rf = *opts.RiskFreeRate
	}
	trips := RoundTrips(st.Trades)
	total := TotalReturn(st.InitialCapital, st.TotalEquity)

	return Stats{
		InitialCapital: st.InitialCapital,
		FinalEquity:    st.TotalEquity,
		TotalReturn:    total,
		AnnualReturn:   AnnualReturn(total, opts.Days),
		MaxDrawdown:    MaxDrawdown(st.EquityCurve),
		SharpeRatio:    SharpeRatio(st.EquityCurve, rf),
		WinRate:        WinRate(trips),
		ProfitFactor:   ProfitFactor(trips),
		RoundTrips:     len(trips),
		TotalTrades:    len(st.Trades),
		OpenPositions:  len(st.Positions),
	}
}

// TotalReturn is (final - initial) / initial.
func TotalReturn(initial, final float64) float64 {
	if initial == 0 {
		return 0
	}
	return (final - initial) / initial
}

// AnnualReturn compounds totalReturn over days trading days.
func AnnualReturn(totalReturn float64, days int) float64 {
	if days <= 0 {
		return 0
	}
	years := float64(days) / TradingPeriodsPerYear
	base := 1 + totalReturn
	if base <= 0 {
		return -1
	}
	return math.Pow(base, 1/years) - 1
}

// MaxDrawdown returns the largest peak-to-trough decline as a positive fraction.
func MaxDrawdown(curve []portfolio.EquityPoint) float64 {
	var peak, worst float64
	for i, pt := range curve {
		if i == 0 || pt.Value > peak {
			peak = pt.Value
		}
		if peak <= 0 {
			continue
		}
		if dd := (pt.Value - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return -worst
}

// Returns is the simple return series between consecutive samples.
func Returns(curve []portfolio.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Value
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, curve[i].Value/prev-1)
	}
	return out
}

// SharpeRatio annualises mean and population stdev of the sample returns.
// It is 0 with fewer than two samples or zero volatility.
func SharpeRatio(curve []portfolio.EquityPoint, riskFree float64) float64 {
	rets := Returns(curve)
	if len(rets) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rets {
		sum += r
	}
	mean := sum / float64(len(rets))
	var sq float64
	for _, r := range rets {
		sq += (r - mean) * (r - mean)
	}
	std := math.Sqrt(sq / float64(len(rets)))
	if std == 0 {
		return 0
	}
	return (mean*TradingPeriodsPerYear - riskFree) / (std * math.Sqrt(TradingPeriodsPerYear))
}

// RoundTrip is one closing trade matched against its opening trades.
type RoundTrip struct {
	Symbol    string
	Direction portfolio.Direction
	Volume    int
	PnL       float64
}

type openLot struct {
	price  float64
	volume int
}

// RoundTrips pairs closing trades with the oldest unmatched opening trades of
// the same (symbol, direction), consuming volume first in first out.
func RoundTrips(trades []portfolio.Trade) []RoundTrip {
	type key struct {
		symbol string
		dir    portfolio.Direction
	}
	queues := make(map[key][]openLot)
	var out []RoundTrip

	for _, tr := range trades {
		k := key{tr.Symbol, tr.Direction}
		if !tr.IsClose() {
			queues[k] = append(queues[k], openLot{price: tr.Price, volume: tr.Volume})
			continue
		}
		mult := tr.Multiplier
		if mult == 0 {
			mult = 1
		}
		remaining := -tr.Volume
		matched := 0
		var pnl float64
		q := queues[k]
		for remaining > 0 && len(q) > 0 {
			lot := &q[0]
			n := min(remaining, lot.volume)
			pnl += (tr.Price - lot.price) * float64(n) * mult * tr.Direction.Sign()
			lot.volume -= n
			remaining -= n
			matched += n
			if lot.volume == 0 {
				q = q[1:]
			}
		}
		queues[k] = q
		if matched > 0 {
			out = append(out, RoundTrip{Symbol: tr.Symbol, Direction: tr.Direction, Volume: matched, PnL: pnl})
		}
	}
	return out
}

// WinRate is the fraction of round trips with positive PnL.
func WinRate(trips []RoundTrip) float64 {
	if len(trips) == 0 {
		return 0
	}
	wins := 0
	for _, rt := range trips {
		if rt.PnL > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(trips))
}

// ProfitFactor is gross profit over gross loss; +Inf with wins and no losses, 0 with neither.
func ProfitFactor(trips []RoundTrip) float64 {
	var profit, loss float64
	for _, rt := range trips {
		if rt.PnL > 0 {
			profit += rt.PnL
		} else {
			loss += -rt.PnL
		}
	}
	if loss == 0 {
		if profit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return profit / loss
}
