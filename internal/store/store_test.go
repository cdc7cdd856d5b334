package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-risk-go/portfolio"
)

func TestHandlePositionUpdateDeduplicatesByTimestamp(t *testing.T) {
	st := New(nil)

	st.HandlePositionUpdate(LivePosition{Symbol: "rb2501", Direction: portfolio.Long, Volume: 10, AvgPrice: 3500, UpdateTime: 1_000})
	st.HandlePositionUpdate(LivePosition{Symbol: "rb2501", Direction: portfolio.Long, Volume: 4, AvgPrice: 3500, UpdateTime: 900})

	ps := st.Positions()
	require.Len(t, ps, 1)
	assert.Equal(t, 10, ps[0].Volume, "older update ignored")
	assert.Equal(t, 3500.0, ps[0].MarkPrice, "mark falls back to avg price")

	st.HandlePositionUpdate(LivePosition{Symbol: "rb2501", Direction: portfolio.Long, Volume: 0, UpdateTime: 1_100})
	assert.Empty(t, st.Positions(), "zero volume removes")
}

func TestUpdatePriceMarksPositions(t *testing.T) {
	st := New(nil)
	st.UpdatePrice("cu2412", 70_000)
	st.HandlePositionUpdate(LivePosition{Symbol: "cu2412", Direction: portfolio.Short, Volume: 2, AvgPrice: 71_000})
	st.HandlePositionUpdate(LivePosition{Symbol: "rb2501", Direction: portfolio.Long, Volume: 1, AvgPrice: 3500})

	ps := st.Positions()
	require.Len(t, ps, 2)
	assert.Equal(t, "cu2412", ps[0].Symbol)
	assert.Equal(t, 70_000.0, ps[0].MarkPrice, "mark from last price")

	st.UpdatePrice("rb2501", 3600)
	st.UpdatePrice("rb2501", -1)
	assert.Equal(t, 3600.0, st.Positions()[1].MarkPrice)
	last, ok := st.LastPrice("rb2501")
	assert.True(t, ok)
	assert.Equal(t, 3600.0, last)
}

func TestReplacePositionsAndEvents(t *testing.T) {
	var mu sync.Mutex
	var events []string
	st := New(func(event string, _ map[string]interface{}) {
		mu.Lock()
		events = append(events, event)
		mu.Unlock()
	})

	st.HandlePositionUpdate(LivePosition{Symbol: "hc2501", Direction: portfolio.Long, Volume: 1, AvgPrice: 3400})
	st.ReplacePositions([]LivePosition{
		{Symbol: "rb2501", Direction: portfolio.Long, Volume: 3, AvgPrice: 3500},
		{Symbol: "cu2412", Direction: portfolio.Short, Volume: 0, AvgPrice: 70_000},
	})
	st.HandleAccountUpdate(1_000_000, 800_000, 150_000)

	ps := st.Positions()
	require.Len(t, ps, 1)
	assert.Equal(t, "rb2501", ps[0].Symbol)

	info := st.AccountInfo()
	assert.Equal(t, 800_000.0, info.Available)
	assert.False(t, info.UpdateTime.IsZero())
	assert.Equal(t, []string{"position_update", "position_snapshot", "account_update"}, events)
}

func TestConcurrentUpdates(t *testing.T) {
	st := New(nil)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				st.HandlePositionUpdate(LivePosition{Symbol: "rb2501", Direction: portfolio.Long, Volume: i%5 + 1, AvgPrice: 3500})
				st.UpdatePrice("rb2501", 3500+float64(i))
				st.HandleAccountUpdate(1_000_000, 900_000, float64(w))
				_ = st.Positions()
			}
		}(w)
	}
	wg.Wait()
	assert.Len(t, st.Positions(), 1)
}
