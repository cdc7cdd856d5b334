package container

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"futures-risk-go/infrastructure/logger"
)

// Lifecycle 生命周期接口
type Lifecycle interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// HealthChecker 可选的健康检查
type HealthChecker interface {
	Health() error
}

// LifecycleManager 生命周期管理器
type LifecycleManager struct {
	components []Lifecycle
	started    int
	mu         sync.Mutex
	logger     *logger.Logger
}

// NewLifecycleManager 创建新的生命周期管理器
func NewLifecycleManager(log *logger.Logger) *LifecycleManager {
	if log == nil {
		log = logger.Wrap(zap.NewNop())
	}
	return &LifecycleManager{
		components: make([]Lifecycle, 0),
		logger:     log,
	}
}

// Register 注册组件，按注册顺序启动
func (m *LifecycleManager) Register(component Lifecycle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component)
}

// Components 已注册组件名
func (m *LifecycleManager) Components() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.components))
	for i, c := range m.components {
		names[i] = c.Name()
	}
	return names
}

// StartAll 按顺序启动所有组件，失败时逆序停止已启动的组件
func (m *LifecycleManager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, component := range m.components {
		if err := component.Start(ctx); err != nil {
			rollback := m.stopLocked(i)
			return multierr.Append(fmt.Errorf("start %s failed: %w", component.Name(), err), rollback)
		}
		m.logger.Info("component started", zap.String("component", component.Name()))
	}
	m.started = len(m.components)
	return nil
}

// StopAll 逆序停止所有已启动的组件，汇总全部错误
func (m *LifecycleManager) StopAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.stopLocked(m.started)
	m.started = 0
	return err
}

func (m *LifecycleManager) stopLocked(n int) error {
	var err error
	for i := n - 1; i >= 0; i-- {
		c := m.components[i]
		if stopErr := c.Stop(); stopErr != nil {
			err = multierr.Append(err, fmt.Errorf("stop %s: %w", c.Name(), stopErr))
			continue
		}
		m.logger.Info("component stopped", zap.String("component", c.Name()))
	}
	return err
}

// CheckHealth 检查所有组件健康状态
func (m *LifecycleManager) CheckHealth() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	for _, component := range m.components {
		hc, ok := component.(HealthChecker)
		if !ok {
			continue
		}
		if e := hc.Health(); e != nil {
			err = multierr.Append(err, fmt.Errorf("%s unhealthy: %w", component.Name(), e))
		}
	}
	return err
}

// funcComponent 用函数拼装的组件
type funcComponent struct {
	name   string
	start  func(ctx context.Context) error
	stop   func() error
	health func() error
}

func (f *funcComponent) Name() string { return f.name }

func (f *funcComponent) Start(ctx context.Context) error {
	if f.start == nil {
		return nil
	}
	return f.start(ctx)
}

func (f *funcComponent) Stop() error {
	if f.stop == nil {
		return nil
	}
	return f.stop()
}

func (f *funcComponent) Health() error {
	if f.health == nil {
		return nil
	}
	return f.health()
}

// httpServerComponent HTTP服务器组件
type httpServerComponent struct {
	name    string
	handler http.Handler
	addr    string
	logger  *logger.Logger
	server  *http.Server
	bound   string
	started bool
	mu      sync.Mutex
}

func (h *httpServerComponent) Name() string { return h.name }

func (h *httpServerComponent) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return nil
	}
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("%s listen %s: %w", h.name, h.addr, err)
	}
	srv := &http.Server{
		Handler:           h.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	h.server = srv
	h.bound = ln.Addr().String()

	go func() {
		h.logger.Info("http server listening", zap.String("component", h.name), zap.String("addr", h.bound))
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.logger.LogError(err, map[string]interface{}{
				"component": h.name,
				"action":    "serve",
			})
		}
	}()

	h.started = true
	return nil
}

func (h *httpServerComponent) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started || h.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", h.name, err)
	}
	h.started = false
	return nil
}

func (h *httpServerComponent) Health() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return fmt.Errorf("%s not started", h.name)
	}
	return nil
}

// Addr 实际监听地址
func (h *httpServerComponent) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bound
}
