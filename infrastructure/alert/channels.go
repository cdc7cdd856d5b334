package alert

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// LogChannel 把告警写入 zap 日志
type LogChannel struct {
	logger *zap.Logger
	name   string
}

func NewLogChannel(name string, logger *zap.Logger) *LogChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogChannel{logger: logger.Named("alert"), name: name}
}

func (c *LogChannel) Send(alert Alert) error {
	fields := make([]zap.Field, 0, len(alert.Fields)+3)
	fields = append(fields,
		zap.String("level", alert.Level),
		zap.String("type", alert.Type),
		zap.Time("ts", alert.Timestamp))
	for k, v := range alert.Fields {
		fields = append(fields, zap.Any(k, v))
	}

	switch alert.Level {
	case LevelCritical, LevelError:
		c.logger.Error(alert.Message, fields...)
	case LevelWarning:
		c.logger.Warn(alert.Message, fields...)
	default:
		c.logger.Info(alert.Message, fields...)
	}
	return nil
}

func (c *LogChannel) Name() string { return c.name }

// MockChannel 记录收到的告警（用于测试）
type MockChannel struct {
	name      string
	mu        sync.Mutex
	alerts    []Alert
	shouldErr bool
}

func NewMockChannel(name string) *MockChannel {
	return &MockChannel{name: name}
}

func (c *MockChannel) Send(alert Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shouldErr {
		return fmt.Errorf("mock error")
	}
	c.alerts = append(c.alerts, alert)
	return nil
}

func (c *MockChannel) Name() string { return c.name }

func (c *MockChannel) Alerts() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Alert(nil), c.alerts...)
}

func (c *MockChannel) SetShouldError(shouldErr bool) {
	c.mu.Lock()
	c.shouldErr = shouldErr
	c.mu.Unlock()
}

func (c *MockChannel) Clear() {
	c.mu.Lock()
	c.alerts = nil
	c.mu.Unlock()
}

func (c *MockChannel) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alerts)
}
