package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"futures-risk-go/infrastructure/alert"
	"futures-risk-go/portfolio"
	rules "futures-risk-go/risk"
)

// Account 提供账户快照，实盘适配器与回测账本都实现该接口。
type Account interface {
	Snapshot() (portfolio.AccountSnapshot, error)
}

// AlertSender 告警出口，alert.Manager 实现该接口。
type AlertSender interface {
	SendAlert(a alert.Alert) error
}

// Gauges 监控指标出口
type Gauges interface {
	UpdateAccount(cash, equity float64)
	UpdateRiskRatios(positionRatio, dailyPnLRatio, drawdown float64)
	RecordMonitorAlert(level string)
}

// 告警类型
const (
	KindPositionRatio = "position_ratio"
	KindDailyLoss     = "daily_loss"
)

// MonitorConfig 监控配置
type MonitorConfig struct {
	Interval              time.Duration `yaml:"interval"`
	PositionRatioWarning  float64       `yaml:"position_ratio_warning"`
	PositionRatioCritical float64       `yaml:"position_ratio_critical"`
	DailyLossWarning      float64       `yaml:"daily_loss_warning"`
	DailyLossCritical     float64       `yaml:"daily_loss_critical"`
	MaxAlerts             int           `yaml:"max_alerts"`
	MaxHistory            int           `yaml:"max_history"`
}

func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:              60 * time.Second,
		PositionRatioWarning:  0.7,
		PositionRatioCritical: 0.9,
		DailyLossWarning:      0.05,
		DailyLossCritical:     0.08,
		MaxAlerts:             100,
		MaxHistory:            1000,
	}
}

// withDefaults 零值字段取默认值
func (c MonitorConfig) withDefaults() MonitorConfig {
	d := DefaultMonitorConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.PositionRatioWarning <= 0 {
		c.PositionRatioWarning = d.PositionRatioWarning
	}
	if c.PositionRatioCritical <= 0 {
		c.PositionRatioCritical = d.PositionRatioCritical
	}
	if c.DailyLossWarning <= 0 {
		c.DailyLossWarning = d.DailyLossWarning
	}
	if c.DailyLossCritical <= 0 {
		c.DailyLossCritical = d.DailyLossCritical
	}
	if c.MaxAlerts <= 0 {
		c.MaxAlerts = d.MaxAlerts
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = d.MaxHistory
	}
	return c
}

// Alert 监控告警
type Alert struct {
	Time      time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Kind      string    `json:"type"`
	Message   string    `json:"message"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
}

// Sample 一次检查得到的风险指标
type Sample struct {
	Time time.Time
	rules.Metrics
	DailyPnLRatio float64
	PeakEquity    float64
	Drawdown      float64
}

// MonitorOptions 依赖项，均可为空
type MonitorOptions struct {
	Alerts AlertSender
	Gauges Gauges
	Clock  rules.Clock
	Logger *zap.Logger
}

// Monitor 后台定时检查账户风险
type Monitor struct {
	cfg     MonitorConfig
	account Account
	tracker *EquityTracker
	alerts  AlertSender
	gauges  Gauges
	clock   rules.Clock
	logger  *zap.Logger

	mu      sync.RWMutex
	fired   []Alert
	history []Sample

	// iterMu 保证同一时刻只有一次检查
	iterMu sync.Mutex

	runMu    sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewMonitor(cfg MonitorConfig, account Account, opts MonitorOptions) *Monitor {
	if opts.Clock == nil {
		opts.Clock = rules.NowUTC
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Monitor{
		cfg:     cfg.withDefaults(),
		account: account,
		tracker: NewEquityTracker(),
		alerts:  opts.Alerts,
		gauges:  opts.Gauges,
		clock:   opts.Clock,
		logger:  opts.Logger.Named("risk_monitor"),
	}
}

func (m *Monitor) Name() string { return "risk_monitor" }

func (m *Monitor) Config() MonitorConfig { return m.cfg }

// Tracker 返回权益跟踪器，供日切任务使用
func (m *Monitor) Tracker() *EquityTracker { return m.tracker }

// Start 启动监控循环，重复调用无副作用
func (m *Monitor) Start(ctx context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.running {
		return nil
	}
	m.running = true
	m.stopChan = make(chan struct{})
	m.doneChan = make(chan struct{})
	go m.monitorLoop(ctx, m.stopChan, m.doneChan)

	m.logger.Info("risk monitor started", zap.Duration("interval", m.cfg.Interval))
	return nil
}

// Stop 停止监控并等待进行中的检查结束
func (m *Monitor) Stop() error {
	m.runMu.Lock()
	if !m.running {
		m.runMu.Unlock()
		return nil
	}
	m.running = false
	stop, done := m.stopChan, m.doneChan
	m.runMu.Unlock()

	close(stop)
	<-done
	m.logger.Info("risk monitor stopped")
	return nil
}

func (m *Monitor) Running() bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.running
}

func (m *Monitor) monitorLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.safeCheck()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			m.safeCheck()
		}
	}
}

func (m *Monitor) safeCheck() {
	if _, err := m.CheckNow(); err != nil {
		m.logger.Error("risk monitor check failed", zap.Error(err))
	}
}

// CheckNow 同步执行一次检查，返回本次指标
func (m *Monitor) CheckNow() (s Sample, err error) {
	m.iterMu.Lock()
	defer m.iterMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("risk monitor panic: %v", r)
		}
	}()

	snap, err := m.account.Snapshot()
	if err != nil {
		return Sample{}, fmt.Errorf("account snapshot: %w", err)
	}
	now := m.clock.Now()
	eq := m.tracker.Update(snap.TotalEquity, now)

	s = Sample{
		Time:          now,
		Metrics:       rules.ComputeMetrics(snap),
		DailyPnLRatio: eq.DailyPnLRatio,
		PeakEquity:    eq.Peak,
		Drawdown:      eq.Drawdown,
	}
	s.DailyPnL = eq.DailyPnL

	m.mu.Lock()
	m.history = appendCapped(m.history, s, m.cfg.MaxHistory)
	m.mu.Unlock()

	if m.gauges != nil {
		m.gauges.UpdateAccount(snap.Cash, snap.TotalEquity)
		m.gauges.UpdateRiskRatios(s.PositionRatio, s.DailyPnLRatio, s.Drawdown)
	}
	for _, a := range m.evaluate(s) {
		m.fire(a)
	}
	return s, nil
}

func (m *Monitor) evaluate(s Sample) []Alert {
	var out []Alert
	if a, ok := grade(s.Time, KindPositionRatio, s.PositionRatio,
		m.cfg.PositionRatioWarning, m.cfg.PositionRatioCritical); ok {
		a.Message = fmt.Sprintf("position ratio %.2f%% (threshold %.2f%%)", a.Value*100, a.Threshold*100)
		out = append(out, a)
	}
	if s.DailyPnLRatio < 0 {
		if a, ok := grade(s.Time, KindDailyLoss, -s.DailyPnLRatio,
			m.cfg.DailyLossWarning, m.cfg.DailyLossCritical); ok {
			a.Message = fmt.Sprintf("daily loss %.2f%% (pnl %.2f, threshold %.2f%%)",
				a.Value*100, s.DailyPnL, a.Threshold*100)
			out = append(out, a)
		}
	}
	return out
}

func grade(at time.Time, kind string, value, warn, critical float64) (Alert, bool) {
	switch {
	case value >= critical:
		return Alert{Time: at, Level: alert.LevelCritical, Kind: kind, Value: value, Threshold: critical}, true
	case value >= warn:
		return Alert{Time: at, Level: alert.LevelWarning, Kind: kind, Value: value, Threshold: warn}, true
	}
	return Alert{}, false
}

func (m *Monitor) fire(a Alert) {
	m.mu.Lock()
	m.fired = appendCapped(m.fired, a, m.cfg.MaxAlerts)
	m.mu.Unlock()

	fields := []zap.Field{
		zap.String("type", a.Kind),
		zap.Float64("value", a.Value),
		zap.Float64("threshold", a.Threshold),
	}
	if a.Level == alert.LevelCritical {
		m.logger.Error(a.Message, fields...)
	} else {
		m.logger.Warn(a.Message, fields...)
	}
	if m.gauges != nil {
		m.gauges.RecordMonitorAlert(a.Level)
	}
	if m.alerts != nil {
		err := m.alerts.SendAlert(alert.Alert{
			Level:     a.Level,
			Type:      a.Kind,
			Message:   a.Message,
			Timestamp: a.Time,
			Fields:    map[string]interface{}{"value": a.Value, "threshold": a.Threshold},
		})
		if err != nil {
			m.logger.Warn("alert delivery failed", zap.Error(err))
		}
	}
}

// RecentAlerts 最近 n 条告警，n <= 0 返回全部
func (m *Monitor) RecentAlerts(n int) []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return tail(m.fired, n)
}

func (m *Monitor) AlertsByLevel(level string) []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Alert
	for _, a := range m.fired {
		if a.Level == level {
			out = append(out, a)
		}
	}
	return out
}

// RecentMetrics 最近 n 次检查的指标
func (m *Monitor) RecentMetrics(n int) []Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return tail(m.history, n)
}

func appendCapped[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if len(s) > limit {
		s = append(s[:0:0], s[len(s)-limit:]...)
	}
	return s
}

func tail[T any](s []T, n int) []T {
	if n <= 0 || n > len(s) {
		n = len(s)
	}
	return append([]T(nil), s[len(s)-n:]...)
}
