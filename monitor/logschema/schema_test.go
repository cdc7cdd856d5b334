package logschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	require.NoError(t, Validate("fill", map[string]interface{}{
		"order_id":  "01HZX",
		"symbol":    "rb2501",
		"direction": "BUY",
		"volume":    10,
		"price":     3500.0,
	}))

	err := Validate("fill", map[string]interface{}{"symbol": "rb2501"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order_id")
	assert.Contains(t, err.Error(), "price")

	assert.NoError(t, Validate("unregistered", nil))
}

func TestKnownEvents(t *testing.T) {
	names := Known()
	assert.Contains(t, names, "risk_decision")
	assert.Contains(t, names, "monitor_alert")
	assert.IsIncreasing(t, names)
}
