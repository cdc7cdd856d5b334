package risk

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk.yaml")
	m := NewConfigManager(path, nil)

	custom := Config{
		MaxOrdersPerMinute:     Int(2),
		MaxOrderAmount:         Float(50000),
		MaxPositionValueRatio:  Float(0.25),
		MaxDailyLossRatio:      Float(0.03),
		MaxPriceDeviationRatio: Float(0.015),
		EnableRiskControl:      Bool(false),
	}
	require.NoError(t, m.Set("tight", custom))

	reloaded := NewConfigManager(path, nil)
	got, ok := reloaded.Lookup("tight")
	require.True(t, ok)
	assert.Equal(t, custom, got)
	assert.Nil(t, got.MaxPositionPerSymbol, "absent thresholds stay absent")
	assert.Equal(t, DefaultConfig(), reloaded.Get(DefaultConfigName))
	assert.Equal(t, []string{"default", "tight"}, reloaded.List())
}

func TestConfigMissingFileFallsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "risk.yaml")
	m := NewConfigManager(path, nil)
	assert.Equal(t, DefaultConfig(), m.Get(""))
	assert.Equal(t, DefaultConfig(), m.Get("unknown"))

	_, err := os.Stat(path)
	assert.NoError(t, err, "default document is written")
}

func TestConfigMalformedFileFallsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default: [not, a, map"), 0o644))
	m := NewConfigManager(path, nil)
	assert.Equal(t, DefaultConfig(), m.Get(""))

	require.NoError(t, os.WriteFile(path, []byte("default:\n  max_orders_per_minute: -1\n"), 0o644))
	assert.Error(t, m.Load())
	assert.Equal(t, DefaultConfig(), m.Get(""), "failed reload keeps current configs")
}

func TestConfigInvalidProfileLeavesFileIntact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk.yaml")
	doc := `default:
  max_orders_per_minute: 10
night:
  max_orders_per_minute: 3
aggressive:
  max_order_amount: -1
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	m := NewConfigManager(path, nil)
	assert.Equal(t, DefaultConfig(), m.Get(""), "falls back to the built-in default")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, doc, string(raw), "document on disk is not replaced")

	err = m.Set("weekend", Config{MaxOrdersPerMinute: Int(1)})
	assert.ErrorIs(t, err, ErrConfigUnreadable)
	_, err = m.Delete("night")
	assert.ErrorIs(t, err, ErrConfigUnreadable)
	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, doc, string(raw))

	// 修好文件后恢复读写
	fixed := strings.Replace(doc, "max_order_amount: -1", "max_order_amount: 100000", 1)
	require.NoError(t, os.WriteFile(path, []byte(fixed), 0o644))
	require.NoError(t, m.Load())
	assert.Equal(t, []string{"aggressive", "default", "night"}, m.List())
	require.NoError(t, m.Set("weekend", Config{MaxOrdersPerMinute: Int(1)}))
	assert.Equal(t, 3, *NewConfigManager(path, nil).Get("night").MaxOrdersPerMinute)
}

func TestConfigDocumentWithoutDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("night:\n  max_orders_per_minute: 3\n"), 0o644))
	m := NewConfigManager(path, nil)
	assert.Equal(t, 3, *m.Get("night").MaxOrdersPerMinute)
	assert.Equal(t, DefaultConfig(), m.Get(""))
}

func TestConfigUpdateDeleteSetDefault(t *testing.T) {
	m := NewConfigManager(filepath.Join(t.TempDir(), "risk.yaml"), nil)

	require.NoError(t, m.Update("night", func(c *Config) { c.MaxOrdersPerMinute = Int(3) }))
	night := m.Get("night")
	assert.Equal(t, 3, *night.MaxOrdersPerMinute)
	assert.Equal(t, 5, *night.MaxTotalPositions, "update starts from default")

	require.NoError(t, m.SetDefault("night"))
	assert.Equal(t, 3, *m.Get("").MaxOrdersPerMinute)
	assert.True(t, errors.Is(m.SetDefault("missing"), ErrConfigMissing))

	ok, err := m.Delete(DefaultConfigName)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrDeleteDefault))

	ok, err = m.Delete("night")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = m.Delete("night")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, Config{}.Validate())

	err := Config{
		MaxOrdersPerMinute: Int(0),
		MinAvailableRatio:  Float(1.5),
		MaxOrderAmount:     Float(-1),
	}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_orders_per_minute")
	assert.Contains(t, err.Error(), "min_available_ratio")
	assert.Contains(t, err.Error(), "max_order_amount")

	m := NewConfigManager("", nil)
	assert.Error(t, m.Set("bad", Config{MaxTotalPositions: Int(-2)}))
	assert.Error(t, m.Set("", Config{}))
}

func TestConfigCloneIsDeep(t *testing.T) {
	c := DefaultConfig()
	d := c.Clone()
	*d.MaxOrdersPerMinute = 99
	assert.Equal(t, 10, *c.MaxOrdersPerMinute)
	assert.True(t, c.Enabled())
	assert.True(t, Config{}.Enabled())
}
