package sim

import (
	"context"
	"fmt"

	"futures-risk-go/internal/engine"
	"futures-risk-go/order"
	"futures-risk-go/portfolio"
)

// MACross 均线交叉：快线上穿慢线做多，下穿做空，反手前先平仓。
// 以市价单在收盘价成交。
type MACross struct {
	symbol string
	fast   int
	slow   int
	volume int

	closes   []float64
	prevDiff float64
	primed   bool
	rejects  int
}

func NewMACross(symbol string, fast, slow, volume int) (*MACross, error) {
	if fast <= 0 || slow <= fast {
		return nil, fmt.Errorf("need 0 < fast < slow, got %d/%d", fast, slow)
	}
	if volume <= 0 {
		return nil, fmt.Errorf("volume must be > 0, got %d", volume)
	}
	return &MACross{symbol: symbol, fast: fast, slow: slow, volume: volume}, nil
}

func (s *MACross) Name() string { return fmt.Sprintf("ma_cross_%d_%d", s.fast, s.slow) }

// Rejects 被拒绝的委托数。
func (s *MACross) Rejects() int { return s.rejects }

func (s *MACross) OnBar(ctx context.Context, bar Bar, tr Trader) error {
	s.closes = append(s.closes, bar.Close)
	if len(s.closes) > s.slow {
		s.closes = s.closes[1:]
	}
	if len(s.closes) < s.slow {
		return nil
	}
	diff := mean(s.closes[s.slow-s.fast:]) - mean(s.closes)
	prev, primed := s.prevDiff, s.primed
	s.prevDiff, s.primed = diff, true
	if !primed {
		return nil
	}

	switch {
	case prev <= 0 && diff > 0:
		return s.flip(ctx, tr, portfolio.Short, order.DirectionCover, order.DirectionBuy)
	case prev >= 0 && diff < 0:
		return s.flip(ctx, tr, portfolio.Long, order.DirectionSell, order.DirectionShort)
	}
	return nil
}

// flip 平掉反向持仓后按目标方向开仓，已持有目标方向时不加仓。
func (s *MACross) flip(ctx context.Context, tr Trader, against portfolio.Direction, closeDir, openDir order.Direction) error {
	if pos, ok := tr.Position(s.symbol); ok {
		if pos.Direction != against {
			return nil
		}
		if err := s.submit(ctx, tr, closeDir, pos.Volume); err != nil {
			return err
		}
	}
	return s.submit(ctx, tr, openDir, s.volume)
}

func (s *MACross) submit(ctx context.Context, tr Trader, dir order.Direction, volume int) error {
	_, err := tr.Submit(ctx, engine.Request{
		Symbol:    s.symbol,
		Direction: dir,
		Type:      order.TypeMarket,
		Volume:    volume,
	})
	if _, ok := engine.AsReject(err); ok {
		s.rejects++
		return nil
	}
	return err
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
