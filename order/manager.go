package order

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrUnknownOrder   = errors.New("unknown order")
	ErrDuplicateOrder = errors.New("duplicate order id")
)

// StatusHandler 订单状态变化回调，收到的是副本。
type StatusHandler func(o Order)

// FillHandler 成交回调。
type FillHandler func(o Order, volume int, price float64)

// Stats 订单统计。
type Stats struct {
	Total        int
	ByStatus     map[Status]int
	Active       int
	TotalVolume  int
	FilledVolume int
	FillRate     float64 // 成交量 / 委托量
}

// Manager 维护订单登记簿：按 ID 与合约索引，串行化所有状态修改。
type Manager struct {
	mu       sync.RWMutex
	orders   map[string]*Order
	bySymbol map[string]map[string]struct{}

	onStatus []StatusHandler
	onFill   []FillHandler
	logger   *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		orders:   make(map[string]*Order),
		bySymbol: make(map[string]map[string]struct{}),
		logger:   logger,
	}
}

// OnStatusChange 注册状态回调。
func (m *Manager) OnStatusChange(h StatusHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStatus = append(m.onStatus, h)
}

// OnFill 注册成交回调。
func (m *Manager) OnFill(h FillHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFill = append(m.onFill, h)
}

// Add 登记新订单。
func (m *Manager) Add(o *Order) error {
	if o == nil {
		return errors.New("nil order")
	}
	m.mu.Lock()
	if _, ok := m.orders[o.id]; ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, o.id)
	}
	m.orders[o.id] = o
	idx, ok := m.bySymbol[o.symbol]
	if !ok {
		idx = make(map[string]struct{})
		m.bySymbol[o.symbol] = idx
	}
	idx[o.id] = struct{}{}
	snap := *o
	handlers := m.onStatus
	m.mu.Unlock()

	m.notifyStatus(handlers, snap)
	return nil
}

// Get 返回订单副本。
func (m *Manager) Get(id string) (Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// MarkSubmitted 报单被接受。
func (m *Manager) MarkSubmitted(id string, at time.Time) (Order, error) {
	return m.mutate(id, func(o *Order) error { return o.MarkSubmitted(at) })
}

// Reject 拒单。
func (m *Manager) Reject(id, reason string, at time.Time) (Order, error) {
	return m.mutate(id, func(o *Order) error { return o.Reject(reason, at) })
}

// ApplyFill 记录一笔成交并触发回调。
func (m *Manager) ApplyFill(id string, volume int, price float64, at time.Time) (Order, error) {
	o, err := m.mutate(id, func(o *Order) error { return o.ApplyFill(volume, price, at) })
	if err != nil {
		return o, err
	}
	m.mu.RLock()
	handlers := m.onFill
	m.mu.RUnlock()
	for _, h := range handlers {
		m.safeCall(func() { h(o, volume, price) })
	}
	return o, nil
}

// Cancel 撤单；订单不存在或不在活跃状态时返回 false。
func (m *Manager) Cancel(id string, at time.Time) bool {
	m.mu.Lock()
	o, ok := m.orders[id]
	if !ok || !o.Cancel(at) {
		m.mu.Unlock()
		return false
	}
	snap := *o
	handlers := m.onStatus
	m.mu.Unlock()

	m.notifyStatus(handlers, snap)
	return true
}

// CancelAll 撤销指定合约（为空则全部）的活跃订单，返回撤单数量。
func (m *Manager) CancelAll(symbol string, at time.Time) int {
	var ids []string
	for _, o := range m.Active(symbol) {
		ids = append(ids, o.id)
	}
	n := 0
	for _, id := range ids {
		if m.Cancel(id, at) {
			n++
		}
	}
	return n
}

// List 按合约与状态过滤，空值表示不过滤；按提交时间排序。
func (m *Manager) List(symbol string, status Status) []Order {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Order, 0)
	collect := func(o *Order) {
		if status != "" && o.status != status {
			return
		}
		out = append(out, *o)
	}
	if symbol != "" {
		for id := range m.bySymbol[symbol] {
			collect(m.orders[id])
		}
	} else {
		for _, o := range m.orders {
			collect(o)
		}
	}
	sortBySubmit(out)
	return out
}

// Active 活跃订单（SUBMITTED / PARTIAL）。
func (m *Manager) Active(symbol string) []Order {
	all := m.List(symbol, "")
	out := all[:0]
	for _, o := range all {
		if o.IsActive() {
			out = append(out, o)
		}
	}
	return out
}

// Stats 汇总订单统计。
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Stats{ByStatus: make(map[Status]int)}
	for _, o := range m.orders {
		st.Total++
		st.ByStatus[o.status]++
		if o.IsActive() {
			st.Active++
		}
		st.TotalVolume += o.volume
		st.FilledVolume += o.filledVolume
	}
	if st.TotalVolume > 0 {
		st.FillRate = float64(st.FilledVolume) / float64(st.TotalVolume)
	}
	return st
}

// Cleanup 清理更新时间早于 now-maxAge 的终态订单，返回清理数量。
func (m *Manager) Cleanup(maxAge time.Duration, now time.Time) int {
	cutoff := now.Add(-maxAge)
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, o := range m.orders {
		if !o.IsTerminal() || !o.updateTime.Before(cutoff) {
			continue
		}
		delete(m.orders, id)
		if idx, ok := m.bySymbol[o.symbol]; ok {
			delete(idx, id)
			if len(idx) == 0 {
				delete(m.bySymbol, o.symbol)
			}
		}
		removed++
	}
	return removed
}

func (m *Manager) mutate(id string, fn func(o *Order) error) (Order, error) {
	m.mu.Lock()
	o, ok := m.orders[id]
	if !ok {
		m.mu.Unlock()
		return Order{}, fmt.Errorf("%w: %s", ErrUnknownOrder, id)
	}
	before := o.status
	if err := fn(o); err != nil {
		snap := *o
		m.mu.Unlock()
		return snap, err
	}
	snap := *o
	handlers := m.onStatus
	m.mu.Unlock()

	if snap.status != before || snap.status == StatusPartial {
		m.notifyStatus(handlers, snap)
	}
	return snap, nil
}

func (m *Manager) notifyStatus(handlers []StatusHandler, o Order) {
	m.logger.Debug("order status",
		zap.String("order_id", o.id),
		zap.String("symbol", o.symbol),
		zap.String("status", string(o.status)),
		zap.String("desc", defaultMachine.GetStateDescription(o.status)),
	)
	for _, h := range handlers {
		m.safeCall(func() { h(o) })
	}
}

// safeCall 回调 panic 只记录日志，不影响订单状态。
func (m *Manager) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("order callback panic", zap.Any("panic", r))
		}
	}()
	fn()
}

func sortBySubmit(orders []Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].submitTime.Equal(orders[j].submitTime) {
			return orders[i].id < orders[j].id
		}
		return orders[i].submitTime.Before(orders[j].submitTime)
	})
}
