package risk

import "go.uber.org/zap"

// AlertClient 抽象告警发送。
type AlertClient interface {
	Send(typ, msg string)
}

// Notifier 把拦截和警告转发到日志与告警通道。
type Notifier struct {
	alert  AlertClient
	logger *zap.Logger
}

func NewNotifier(alert AlertClient, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{alert: alert, logger: logger}
}

func (n *Notifier) NotifyBlocked(symbol string, res Result) {
	msg := "RiskBlocked symbol=" + symbol + " rule=" + res.Rule + " reason=" + res.Reason
	n.logger.Warn("risk blocked",
		zap.String("symbol", symbol),
		zap.String("rule", res.Rule),
		zap.String("reason", res.Reason))
	if n.alert != nil {
		n.alert.Send("RiskBlocked", msg)
	}
}

func (n *Notifier) NotifyWarning(symbol string, res Result) {
	msg := "RiskWarning symbol=" + symbol + " rule=" + res.Rule + " reason=" + res.Reason
	n.logger.Warn("risk warning",
		zap.String("symbol", symbol),
		zap.String("rule", res.Rule),
		zap.String("reason", res.Reason))
	if n.alert != nil {
		n.alert.Send("RiskWarning", msg)
	}
}
