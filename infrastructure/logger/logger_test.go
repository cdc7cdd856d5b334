package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestFileOutputs(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Level:      "debug",
		Outputs:    []string{"file"},
		OutputFile: filepath.Join(dir, "logs", "app.log"),
		ErrorFile:  filepath.Join(dir, "logs", "error.log"),
	}
	l, err := New(cfg)
	require.NoError(t, err)

	l.Info("hello")
	l.LogError(errors.New("disk full"), map[string]interface{}{"component": "audit"})
	require.NoError(t, l.Close())

	app, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(app), "\n"))

	errs, err := os.ReadFile(cfg.ErrorFile)
	require.NoError(t, err)
	assert.Contains(t, string(errs), "disk full")
	assert.NotContains(t, string(errs), "hello")
}

func TestDomainHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Wrap(zap.New(core))

	l.LogOrder("01HZX", "rb2501", "FILLED", map[string]interface{}{"volume": 10})
	l.LogRisk("order_risk", "capital_limit", "blocked", nil)
	l.LogRisk("order_risk", "", "passed", nil)
	l.LogTrade(map[string]interface{}{"symbol": "rb2501"})

	entries := logs.All()
	require.Len(t, entries, 4)

	order := entries[0].ContextMap()
	assert.Equal(t, "order_update", entries[0].Message)
	assert.Equal(t, "FILLED", order["status"])
	assert.NotContains(t, order, "schema_error")

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[2].Level)

	assert.Contains(t, entries[3].ContextMap()["schema_error"], "order_id")
}

func TestSinkAndWithFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := Wrap(zap.New(core)).WithFields(map[string]interface{}{"component": "store"})

	l.Sink()("account_update", map[string]interface{}{"balance": 1.0, "available": 1.0, "margin": 0.0})
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "store", entries[0].ContextMap()["component"])
	assert.Equal(t, "account_update", entries[0].ContextMap()["event"])
}
