package order

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"futures-risk-go/contract"
)

func TestSymbolConstraintsValidate(t *testing.T) {
	c := SymbolConstraints{Symbol: "ec2412", PriceTick: 0.1, MinVolume: 1, MaxVolume: 10}
	tests := []struct {
		name    string
		typ     Type
		price   float64
		volume  int
		wantErr bool
	}{
		{"对齐价位", TypeLimit, 2450.3, 2, false},
		{"未对齐价位", TypeLimit, 2450.35, 2, true},
		{"限价为零", TypeLimit, 0, 2, true},
		{"手数为零", TypeLimit, 2450, 0, true},
		{"超过最大手数", TypeLimit, 2450, 11, true},
		{"市价单不查价格", TypeMarket, 2450.35, 1, false},
		{"市价单无价格", TypeMarket, 0, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Validate(tt.typ, tt.price, tt.volume)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	assert.True(t, errors.Is(c.Validate(TypeLimit, 2450, -1), ErrInvalidVolume))
}

func TestConstraintsFor(t *testing.T) {
	reg := contract.NewRegistry()
	au := ConstraintsFor(reg, "au2506")
	assert.Equal(t, 0.05, au.PriceTick)
	assert.NoError(t, au.Validate(TypeLimit, 560.05, 1))
	assert.Error(t, au.Validate(TypeLimit, 560.03, 1))

	unknown := ConstraintsFor(reg, "zz9999")
	assert.Zero(t, unknown.PriceTick)
	assert.NoError(t, unknown.Validate(TypeLimit, 101.37, 1))
}
