package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics Prometheus 指标集合，使用独立 registry。
type Metrics struct {
	registry *prometheus.Registry

	// 订单
	ordersSubmitted *prometheus.CounterVec
	ordersRejected  *prometheus.CounterVec
	ordersCanceled  prometheus.Counter
	fills           *prometheus.CounterVec
	filledVolume    *prometheus.CounterVec

	// 风控
	riskDecisions    *prometheus.CounterVec
	monitorAlerts    *prometheus.CounterVec
	auditDropped     prometheus.Counter
	auditWriteErrors prometheus.Counter

	// 账户
	cash          prometheus.Gauge
	equity        prometheus.Gauge
	positionRatio prometheus.Gauge
	dailyPnLRatio prometheus.Gauge
	drawdown      prometheus.Gauge
}

// Config 指标命名
type Config struct {
	Namespace string
	Subsystem string
}

func DefaultConfig() Config {
	return Config{
		Namespace: "frg",
		Subsystem: "risk",
	}
}

func New(cfg Config) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, Name: name, Help: help,
		})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, Name: name, Help: help,
		}, labels)
	}
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, Name: name, Help: help,
		})
	}

	return &Metrics{
		registry: reg,

		ordersSubmitted: counterVec("orders_submitted_total", "提交订单总数", "symbol"),
		ordersRejected:  counterVec("orders_rejected_total", "拒绝订单总数", "kind"),
		ordersCanceled:  counter("orders_canceled_total", "撤单总数"),
		fills:           counterVec("fills_total", "成交笔数", "symbol"),
		filledVolume:    counterVec("filled_volume_total", "累计成交手数", "symbol"),

		riskDecisions:    counterVec("decisions_total", "风控决策次数", "category", "rule", "outcome"),
		monitorAlerts:    counterVec("monitor_alerts_total", "监控告警次数", "level"),
		auditDropped:     counter("audit_dropped_total", "审计文件队列丢弃数"),
		auditWriteErrors: counter("audit_write_errors_total", "审计文件写入失败数"),

		cash:          gauge("cash", "账户现金"),
		equity:        gauge("equity", "账户总权益"),
		positionRatio: gauge("position_ratio", "持仓市值/总权益"),
		dailyPnLRatio: gauge("daily_pnl_ratio", "当日盈亏/日初权益"),
		drawdown:      gauge("drawdown", "相对权益峰值的回撤"),
	}
}

func (m *Metrics) RecordOrderSubmitted(symbol string) {
	m.ordersSubmitted.WithLabelValues(symbol).Inc()
}

func (m *Metrics) RecordOrderRejected(kind string) {
	m.ordersRejected.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordOrderCanceled() {
	m.ordersCanceled.Inc()
}

func (m *Metrics) RecordFill(symbol string, volume int) {
	m.fills.WithLabelValues(symbol).Inc()
	m.filledVolume.WithLabelValues(symbol).Add(float64(volume))
}

// RecordRiskDecision 规则为空时记为 none。
func (m *Metrics) RecordRiskDecision(category, rule, outcome string) {
	if rule == "" {
		rule = "none"
	}
	m.riskDecisions.WithLabelValues(category, rule, outcome).Inc()
}

func (m *Metrics) RecordMonitorAlert(level string) {
	m.monitorAlerts.WithLabelValues(level).Inc()
}

func (m *Metrics) IncAuditDropped() { m.auditDropped.Inc() }

func (m *Metrics) IncAuditWriteError() { m.auditWriteErrors.Inc() }

func (m *Metrics) UpdateAccount(cash, equity float64) {
	m.cash.Set(cash)
	m.equity.Set(equity)
}

func (m *Metrics) UpdateRiskRatios(positionRatio, dailyPnLRatio, drawdown float64) {
	m.positionRatio.Set(positionRatio)
	m.dailyPnLRatio.Set(dailyPnLRatio)
	m.drawdown.Set(drawdown)
}

// Handler 返回 /metrics 的 HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
