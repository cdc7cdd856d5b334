package risk

import "fmt"

// Level 风险级别。
type Level string

const (
	LevelSafe    Level = "SAFE"
	LevelWarning Level = "WARNING"
	LevelBlock   Level = "BLOCK"
)

// 规则名称，写入审计与指标。
const (
	RuleOrderLimit    = "order_limit"
	RuleCapitalLimit  = "capital_limit"
	RuleDailyLoss     = "daily_loss"
	RulePositionLimit = "position_limit"
	RuleNoPosition    = "no_position"
)

// Result 单次风控检查结果。
type Result struct {
	Passed  bool   `json:"passed"`
	Level   Level  `json:"level"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

func Safe(msg string) Result {
	return Result{Passed: true, Level: LevelSafe, Message: msg}
}

func Warning(rule, msg, reason string) Result {
	return Result{Passed: true, Level: LevelWarning, Rule: rule, Message: msg, Reason: reason}
}

func Block(rule, msg, reason string) Result {
	return Result{Passed: false, Level: LevelBlock, Rule: rule, Message: msg, Reason: reason}
}

// Err 被拦截时返回包装了 ErrBlocked 的错误，否则为 nil。
func (r Result) Err() error {
	if r.Passed {
		return nil
	}
	return fmt.Errorf("%w: %s: %s", ErrBlocked, r.Rule, r.Reason)
}

// Outcome 审计结果分类。
func (r Result) Outcome() Outcome {
	switch {
	case !r.Passed:
		return OutcomeBlocked
	case r.Level == LevelWarning:
		return OutcomeWarning
	default:
		return OutcomePassed
	}
}
