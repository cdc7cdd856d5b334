package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSendAlert(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, time.Minute)

	require.NoError(t, mgr.SendAlert(Alert{
		Level:   LevelInfo,
		Message: "test message",
		Fields:  map[string]interface{}{"key": "value"},
	}))
	require.Equal(t, 1, mock.Count())
	got := mock.Alerts()[0]
	assert.Equal(t, LevelInfo, got.Level)
	assert.Equal(t, "value", got.Fields["key"])
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, []string{"mock"}, mgr.Channels())
}

func TestSendLevels(t *testing.T) {
	tests := []struct {
		name  string
		send  func(*Manager) error
		level string
	}{
		{"warning", func(m *Manager) error { return m.SendWarning("w", nil) }, LevelWarning},
		{"error", func(m *Manager) error { return m.SendError("e", nil) }, LevelError},
		{"critical", func(m *Manager) error { return m.SendCritical("c", nil) }, LevelCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockChannel("mock")
			require.NoError(t, tt.send(NewManager([]Channel{mock}, time.Minute)))
			assert.Equal(t, tt.level, mock.Alerts()[0].Level)
		})
	}
}

func TestSendByType(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, 0)

	mgr.Send("RiskBlocked", "blocked rb2501")
	mgr.Send("RiskWarning", "warn rb2501")
	mgr.Send("Other", "x")

	alerts := mock.Alerts()
	require.Len(t, alerts, 3)
	assert.Equal(t, LevelError, alerts[0].Level)
	assert.Equal(t, "RiskBlocked", alerts[0].Type)
	assert.Equal(t, LevelWarning, alerts[1].Level)
	assert.Equal(t, LevelInfo, alerts[2].Level)
}

func TestThrottling(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, time.Hour)

	for i := 0; i < 3; i++ {
		require.NoError(t, mgr.SendWarning("same", nil))
	}
	require.NoError(t, mgr.SendWarning("other", nil))
	assert.Equal(t, 2, mock.Count())

	mgr.ResetThrottle()
	require.NoError(t, mgr.SendWarning("same", nil))
	assert.Equal(t, 3, mock.Count())
}

func TestThrottlerWindow(t *testing.T) {
	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	th := NewThrottler(time.Minute)
	th.now = func() time.Time { return now }

	assert.True(t, th.Allow("k"))
	assert.False(t, th.Allow("k"))
	now = now.Add(time.Minute)
	assert.True(t, th.Allow("k"))

	th.Reset("k")
	assert.True(t, th.Allow("k"))
}

func TestChannelFailures(t *testing.T) {
	bad := NewMockChannel("bad")
	bad.SetShouldError(true)
	assert.Error(t, NewManager([]Channel{bad}, 0).SendError("x", nil))

	good := NewMockChannel("good")
	mgr := NewManager([]Channel{bad, good}, 0)
	assert.NoError(t, mgr.SendError("x", nil), "one healthy channel is enough")
	assert.Equal(t, 1, good.Count())
}

func TestAddRemoveChannel(t *testing.T) {
	mgr := NewManager(nil, 0)
	mgr.AddChannel(NewMockChannel("a"))
	mgr.AddChannel(NewMockChannel("b"))
	mgr.RemoveChannel("a")
	assert.Equal(t, []string{"b"}, mgr.Channels())
}

func TestLogChannel(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ch := NewLogChannel("log", zap.New(core))

	require.NoError(t, ch.Send(Alert{Level: LevelCritical, Type: "PositionRatio", Message: "ratio high",
		Fields: map[string]interface{}{"ratio": 0.95}}))
	require.NoError(t, ch.Send(Alert{Level: LevelWarning, Message: "warn"}))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.ErrorLevel, entries[0].Level)
	assert.Equal(t, 0.95, entries[0].ContextMap()["ratio"])
	assert.Equal(t, "PositionRatio", entries[0].ContextMap()["type"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
}
