package order

import (
	"fmt"
)

// StateTransition 状态转换
type StateTransition struct {
	From Status
	To   Status
}

// StateMachine 订单状态机，构造后只读
type StateMachine struct {
	transitions map[StateTransition]bool
}

var defaultMachine = NewStateMachine()

// NewStateMachine 创建新的状态机
func NewStateMachine() *StateMachine {
	sm := &StateMachine{
		transitions: make(map[StateTransition]bool),
	}
	sm.initializeTransitions()
	return sm
}

// initializeTransitions 初始化所有合法的状态转换
func (sm *StateMachine) initializeTransitions() {
	legalTransitions := []StateTransition{
		// 从SUBMITTING可以转到
		{StatusSubmitting, StatusSubmitted},
		{StatusSubmitting, StatusRejected},

		// 从SUBMITTED可以转到
		{StatusSubmitted, StatusPartial},
		{StatusSubmitted, StatusFilled},
		{StatusSubmitted, StatusCancelled},
		{StatusSubmitted, StatusRejected},

		// 从PARTIAL可以转到
		{StatusPartial, StatusPartial}, // 多次部分成交
		{StatusPartial, StatusFilled},
		{StatusPartial, StatusCancelled},

		// 终态不能转换（FILLED, CANCELLED, REJECTED）
	}

	for _, t := range legalTransitions {
		sm.transitions[t] = true
	}
}

// ValidateTransition 验证状态转换是否合法
func (sm *StateMachine) ValidateTransition(from, to Status) error {
	if sm.transitions[StateTransition{From: from, To: to}] {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// AllowedTransitions 返回当前状态所有合法的目标状态
func (sm *StateMachine) AllowedTransitions(current Status) []Status {
	allowed := make([]Status, 0)
	for transition := range sm.transitions {
		if transition.From == current {
			allowed = append(allowed, transition.To)
		}
	}
	return allowed
}

// IsFinalState 判断是否是终态
func (sm *StateMachine) IsFinalState(status Status) bool {
	switch status {
	case StatusFilled, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

// IsActiveState 判断是否是活跃状态（可能产生成交）
func (sm *StateMachine) IsActiveState(status Status) bool {
	switch status {
	case StatusSubmitted, StatusPartial:
		return true
	default:
		return false
	}
}

// CanCancel 判断当前状态下是否可以撤单
func (sm *StateMachine) CanCancel(status Status) bool {
	return sm.IsActiveState(status)
}

// GetStateDescription 获取状态描述
func (sm *StateMachine) GetStateDescription(status Status) string {
	descriptions := map[Status]string{
		StatusSubmitting: "订单提交中",
		StatusSubmitted:  "订单已报",
		StatusPartial:    "订单部分成交",
		StatusFilled:     "订单完全成交",
		StatusCancelled:  "订单已撤销",
		StatusRejected:   "订单被拒绝",
	}

	if desc, ok := descriptions[status]; ok {
		return desc
	}
	return "未知状态"
}
