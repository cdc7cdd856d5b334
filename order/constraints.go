package order

import (
	"fmt"
	"math"

	"futures-risk-go/contract"
)

// SymbolConstraints 单个合约的委托约束。
type SymbolConstraints struct {
	Symbol    string
	PriceTick float64 // 0 不检查价格
	MinVolume int
	MaxVolume int
}

// ConstraintsFor 从合约表取最小变动价位；合约表中没有的品种不检查价格。
func ConstraintsFor(reg *contract.Registry, symbol string) SymbolConstraints {
	if reg == nil {
		reg = contract.Default()
	}
	c := SymbolConstraints{Symbol: symbol}
	if reg.Known(symbol) {
		c.PriceTick = reg.PriceTick(symbol)
	}
	return c
}

// Validate 校验手数范围；限价单另外要求价格为正且落在价位上。
func (c SymbolConstraints) Validate(typ Type, price float64, volume int) error {
	if volume <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidVolume, volume)
	}
	if c.MinVolume > 0 && volume < c.MinVolume {
		return fmt.Errorf("%s volume %d below minimum %d", c.Symbol, volume, c.MinVolume)
	}
	if c.MaxVolume > 0 && volume > c.MaxVolume {
		return fmt.Errorf("%s volume %d above maximum %d", c.Symbol, volume, c.MaxVolume)
	}
	if typ != TypeLimit {
		return nil
	}
	if price <= 0 {
		return fmt.Errorf("%s limit price must be positive, got %g", c.Symbol, price)
	}
	if c.PriceTick > 0 && !onTick(price, c.PriceTick) {
		return fmt.Errorf("%s price %g is not a multiple of tick %g", c.Symbol, price, c.PriceTick)
	}
	return nil
}

func onTick(price, tick float64) bool {
	steps := price / tick
	return math.Abs(steps-math.Round(steps)) <= 1e-8
}
