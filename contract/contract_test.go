package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		symbol     string
		exchange   string
		multiplier float64
		tick       float64
	}{
		{"rb2501", "SHFE", 10, 1},
		{"RB2501", "SHFE", 10, 1},
		{"cu2412", "SHFE", 5, 10},
		{"au2506", "SHFE", 1000, 0.05},
		{"IF2503", "CFFEX", 300, 0.2},
		{"i2505", "DCE", 100, 0.5},
		{"sc2507", "INE", 1000, 0.1},
		{"TA505", "CZCE", 5, 2},
		{"T2503", "CFFEX", 10000, 0.005},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			s, ok := r.Lookup(tt.symbol)
			require.True(t, ok)
			assert.Equal(t, tt.exchange, s.Exchange)
			assert.Equal(t, tt.multiplier, r.Multiplier(tt.symbol))
			assert.Equal(t, tt.tick, r.PriceTick(tt.symbol))
		})
	}
}

func TestUnknownSymbolDefaults(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Known("zz2501"))
	assert.Equal(t, DefaultMultiplier, r.Multiplier("zz2501"))
	assert.Equal(t, DefaultPriceTick, r.PriceTick("zz2501"))
	assert.False(t, r.Known("2501"))
}

func TestRegisterOverride(t *testing.T) {
	r := NewRegistry()
	r.Register(Spec{Product: "rb", Exchange: "SHFE", Multiplier: 20, PriceTick: 2})
	assert.Equal(t, 20.0, r.Multiplier("rb2501"))
	assert.Equal(t, 2.0, r.PriceTick("rb2501"))

	// 默认表不受影响
	assert.Equal(t, 10.0, Multiplier("rb2501"))
}

func TestProductCode(t *testing.T) {
	assert.Equal(t, "rb", ProductCode("rb2501"))
	assert.Equal(t, "IF", ProductCode(" IF2503 "))
	assert.Equal(t, "", ProductCode("2501"))
}
