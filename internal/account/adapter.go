// Package account 把实盘账户转换成风控使用的账户快照。
package account

import (
	"errors"
	"time"

	"futures-risk-go/contract"
	"futures-risk-go/internal/store"
	"futures-risk-go/portfolio"
)

// ErrNoAccount 尚未收到任何资金推送
var ErrNoAccount = errors.New("account: no account data yet")

// LiveAccount 实盘账户数据源，store.Store 实现该接口
type LiveAccount interface {
	AccountInfo() store.AccountInfo
	Positions() []store.LivePosition
}

// Adapter 实现 Snapshot，与回测账本对风控呈现同一视图。
type Adapter struct {
	live      LiveAccount
	contracts *contract.Registry
	now       func() time.Time
}

func NewAdapter(live LiveAccount, contracts *contract.Registry) *Adapter {
	if contracts == nil {
		contracts = contract.Default()
	}
	return &Adapter{live: live, contracts: contracts, now: time.Now}
}

// Snapshot 总权益 = 资金余额 + 持仓浮动盈亏
func (a *Adapter) Snapshot() (portfolio.AccountSnapshot, error) {
	info := a.live.AccountInfo()
	if info.UpdateTime.IsZero() {
		return portfolio.AccountSnapshot{}, ErrNoAccount
	}

	live := a.live.Positions()
	snap := portfolio.AccountSnapshot{
		Cash:       info.Balance,
		Available:  info.Available,
		MarginUsed: info.Margin,
		Positions:  make([]portfolio.Position, 0, len(live)),
		Time:       a.now(),
	}
	equity := info.Balance
	for _, lp := range live {
		mult := lp.Multiplier
		if mult <= 0 {
			mult = a.contracts.Multiplier(lp.Symbol)
		}
		p := portfolio.Position{
			Symbol:     lp.Symbol,
			Direction:  lp.Direction,
			Volume:     lp.Volume,
			AvgPrice:   lp.AvgPrice,
			MarkPrice:  lp.MarkPrice,
			Multiplier: mult,
			OpenTime:   lp.OpenTime,
		}
		equity += p.UnrealizedPnL()
		snap.Positions = append(snap.Positions, p)
	}
	snap.TotalEquity = equity
	return snap, nil
}
