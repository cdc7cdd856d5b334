package order

import (
	"errors"
	"fmt"
	"time"

	"futures-risk-go/internal/id"
)

// Status represents order lifecycle.
type Status string

const (
	StatusSubmitting Status = "SUBMITTING"
	StatusSubmitted  Status = "SUBMITTED"
	StatusPartial    Status = "PARTIAL"
	StatusFilled     Status = "FILLED"
	StatusCancelled  Status = "CANCELLED"
	StatusRejected   Status = "REJECTED"
)

// Direction 开平方向。
type Direction string

const (
	DirectionBuy   Direction = "BUY"   // 买入开仓
	DirectionSell  Direction = "SELL"  // 卖出平仓
	DirectionShort Direction = "SHORT" // 卖出开仓
	DirectionCover Direction = "COVER" // 买入平仓
)

// Valid 是否为已知方向。
func (d Direction) Valid() bool {
	switch d {
	case DirectionBuy, DirectionSell, DirectionShort, DirectionCover:
		return true
	}
	return false
}

// IsClose 平仓方向。
func (d Direction) IsClose() bool {
	return d == DirectionSell || d == DirectionCover
}

// IsLongSide 作用于多头持仓（BUY 开多，SELL 平多）。
func (d Direction) IsLongSide() bool {
	return d == DirectionBuy || d == DirectionSell
}

// Type 订单类型。
type Type string

const (
	TypeLimit  Type = "LIMIT"
	TypeMarket Type = "MARKET"
)

var (
	ErrInvalidVolume     = errors.New("volume must be > 0")
	ErrInvalidPrice      = errors.New("price must be > 0")
	ErrInvalidDirection  = errors.New("invalid direction")
	ErrInvalidType       = errors.New("invalid order type")
	ErrOverfill          = errors.New("fill exceeds remaining volume")
	ErrInvalidTransition = errors.New("illegal state transition")
	ErrAlreadyFilled     = errors.New("order has fills")
)

// Order 订单。字段只能通过方法修改，非并发安全，由 Manager 持有。
type Order struct {
	id        string
	symbol    string
	direction Direction
	orderType Type
	price     float64
	volume    int

	status       Status
	filledVolume int
	avgFillPrice float64

	submitTime   time.Time
	updateTime   time.Time
	cancelTime   time.Time
	rejectReason string
}

// New 创建 SUBMITTING 状态的订单。市价单价格可为 0。
func New(symbol string, dir Direction, typ Type, price float64, volume int, at time.Time) (*Order, error) {
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}
	if !dir.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDirection, dir)
	}
	if typ == "" {
		typ = TypeLimit
	}
	if typ != TypeLimit && typ != TypeMarket {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}
	if volume <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidVolume, volume)
	}
	if price < 0 || (typ == TypeLimit && price == 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidPrice, price)
	}
	return &Order{
		id:         id.NewAt(at),
		symbol:     symbol,
		direction:  dir,
		orderType:  typ,
		price:      price,
		volume:     volume,
		status:     StatusSubmitting,
		submitTime: at,
		updateTime: at,
	}, nil
}

func (o *Order) ID() string            { return o.id }
func (o *Order) Symbol() string        { return o.symbol }
func (o *Order) Direction() Direction  { return o.direction }
func (o *Order) Type() Type            { return o.orderType }
func (o *Order) Price() float64        { return o.price }
func (o *Order) Volume() int           { return o.volume }
func (o *Order) Status() Status        { return o.status }
func (o *Order) FilledVolume() int     { return o.filledVolume }
func (o *Order) AvgFillPrice() float64 { return o.avgFillPrice }
func (o *Order) SubmitTime() time.Time { return o.submitTime }
func (o *Order) UpdateTime() time.Time { return o.updateTime }
func (o *Order) CancelTime() time.Time { return o.cancelTime }
func (o *Order) RejectReason() string  { return o.rejectReason }
func (o *Order) Remaining() int        { return o.volume - o.filledVolume }
func (o *Order) IsActive() bool        { return defaultMachine.IsActiveState(o.status) }
func (o *Order) IsTerminal() bool      { return defaultMachine.IsFinalState(o.status) }

// MarkSubmitted SUBMITTING -> SUBMITTED。
func (o *Order) MarkSubmitted(at time.Time) error {
	if err := o.transition(StatusSubmitted); err != nil {
		return err
	}
	o.updateTime = at
	return nil
}

// ApplyFill 唯一的成交入口：重算成交均价，累加成交量并推进状态。
func (o *Order) ApplyFill(volume int, price float64, at time.Time) error {
	if volume <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidVolume, volume)
	}
	if price <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidPrice, price)
	}
	if volume > o.Remaining() {
		return fmt.Errorf("%w: fill %d, remaining %d", ErrOverfill, volume, o.Remaining())
	}
	next := StatusPartial
	if o.filledVolume+volume == o.volume {
		next = StatusFilled
	}
	if err := o.transition(next); err != nil {
		return err
	}
	total := o.filledVolume + volume
	o.avgFillPrice = (o.avgFillPrice*float64(o.filledVolume) + price*float64(volume)) / float64(total)
	o.filledVolume = total
	o.updateTime = at
	return nil
}

// Cancel 只有 SUBMITTED / PARTIAL 可撤，其余状态返回 false 且不改动。
func (o *Order) Cancel(at time.Time) bool {
	if !defaultMachine.CanCancel(o.status) {
		return false
	}
	o.status = StatusCancelled
	o.cancelTime = at
	o.updateTime = at
	return true
}

// Reject 仅在无成交时有效，终态。
func (o *Order) Reject(reason string, at time.Time) error {
	if o.filledVolume > 0 {
		return ErrAlreadyFilled
	}
	if err := o.transition(StatusRejected); err != nil {
		return err
	}
	o.rejectReason = reason
	o.updateTime = at
	return nil
}

func (o *Order) transition(to Status) error {
	if err := defaultMachine.ValidateTransition(o.status, to); err != nil {
		return err
	}
	o.status = to
	return nil
}
