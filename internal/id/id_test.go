package id

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsSortableAndUnique(t *testing.T) {
	seen := make(map[string]struct{})
	prev := ""
	for i := 0; i < 1000; i++ {
		v := New()
		_, dup := seen[v]
		require.False(t, dup, "duplicate id %s", v)
		seen[v] = struct{}{}
		assert.Greater(t, v, prev)
		prev = v
	}
}

func TestNewAtEncodesTime(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	v, err := ulid.Parse(NewAt(at))
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(at), v.Time())
}
