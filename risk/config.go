package risk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultConfigName 默认配置名，不可删除。
const DefaultConfigName = "default"

// Config 一组风控阈值；nil 表示该维度不限制。
type Config struct {
	MaxPositionPerSymbol  *int     `yaml:"max_position_per_symbol,omitempty" json:"max_position_per_symbol,omitempty"`
	MaxTotalPositions     *int     `yaml:"max_total_positions,omitempty" json:"max_total_positions,omitempty"`
	MaxPositionValueRatio *float64 `yaml:"max_position_value_ratio,omitempty" json:"max_position_value_ratio,omitempty"`

	MaxOrderAmount    *float64 `yaml:"max_order_amount,omitempty" json:"max_order_amount,omitempty"`
	MaxDailyLoss      *float64 `yaml:"max_daily_loss,omitempty" json:"max_daily_loss,omitempty"`
	MaxDailyLossRatio *float64 `yaml:"max_daily_loss_ratio,omitempty" json:"max_daily_loss_ratio,omitempty"`
	MinAvailableRatio *float64 `yaml:"min_available_ratio,omitempty" json:"min_available_ratio,omitempty"`

	MaxOrdersPerMinute          *int     `yaml:"max_orders_per_minute,omitempty" json:"max_orders_per_minute,omitempty"`
	MaxOrdersPerSymbolPerMinute *int     `yaml:"max_orders_per_symbol_per_minute,omitempty" json:"max_orders_per_symbol_per_minute,omitempty"`
	MaxPriceDeviationRatio      *float64 `yaml:"max_price_deviation_ratio,omitempty" json:"max_price_deviation_ratio,omitempty"`

	// EnableRiskControl 缺省为启用。
	EnableRiskControl *bool `yaml:"enable_risk_control,omitempty" json:"enable_risk_control,omitempty"`
}

// Int / Float / Bool 便于构造可选阈值。
func Int(v int) *int           { return &v }
func Float(v float64) *float64 { return &v }
func Bool(v bool) *bool        { return &v }

// DefaultConfig 内置默认配置。
func DefaultConfig() Config {
	return Config{
		MaxPositionPerSymbol:        Int(10),
		MaxTotalPositions:           Int(5),
		MaxPositionValueRatio:       Float(0.3),
		MaxOrderAmount:              Float(100000),
		MaxDailyLoss:                Float(50000),
		MaxDailyLossRatio:           Float(0.1),
		MinAvailableRatio:           Float(0.2),
		MaxOrdersPerMinute:          Int(10),
		MaxOrdersPerSymbolPerMinute: Int(5),
		MaxPriceDeviationRatio:      Float(0.05),
		EnableRiskControl:           Bool(true),
	}
}

func (c Config) Enabled() bool {
	return c.EnableRiskControl == nil || *c.EnableRiskControl
}

// Clone 深拷贝，避免共享指针。
func (c Config) Clone() Config {
	out := Config{
		MaxPositionPerSymbol:        cloneInt(c.MaxPositionPerSymbol),
		MaxTotalPositions:           cloneInt(c.MaxTotalPositions),
		MaxPositionValueRatio:       cloneFloat(c.MaxPositionValueRatio),
		MaxOrderAmount:              cloneFloat(c.MaxOrderAmount),
		MaxDailyLoss:                cloneFloat(c.MaxDailyLoss),
		MaxDailyLossRatio:           cloneFloat(c.MaxDailyLossRatio),
		MinAvailableRatio:           cloneFloat(c.MinAvailableRatio),
		MaxOrdersPerMinute:          cloneInt(c.MaxOrdersPerMinute),
		MaxOrdersPerSymbolPerMinute: cloneInt(c.MaxOrdersPerSymbolPerMinute),
		MaxPriceDeviationRatio:      cloneFloat(c.MaxPriceDeviationRatio),
	}
	if c.EnableRiskControl != nil {
		out.EnableRiskControl = Bool(*c.EnableRiskControl)
	}
	return out
}

// Validate 汇总所有非法阈值。
func (c Config) Validate() error {
	var err error
	positiveInt := func(name string, v *int) {
		if v != nil && *v <= 0 {
			err = multierr.Append(err, fmt.Errorf("%s must be > 0, got %d", name, *v))
		}
	}
	positive := func(name string, v *float64) {
		if v != nil && *v <= 0 {
			err = multierr.Append(err, fmt.Errorf("%s must be > 0, got %v", name, *v))
		}
	}
	ratio := func(name string, v *float64) {
		if v != nil && (*v < 0 || *v > 1) {
			err = multierr.Append(err, fmt.Errorf("%s must be within [0,1], got %v", name, *v))
		}
	}
	positiveInt("max_position_per_symbol", c.MaxPositionPerSymbol)
	positiveInt("max_total_positions", c.MaxTotalPositions)
	positive("max_position_value_ratio", c.MaxPositionValueRatio)
	positive("max_order_amount", c.MaxOrderAmount)
	positive("max_daily_loss", c.MaxDailyLoss)
	ratio("max_daily_loss_ratio", c.MaxDailyLossRatio)
	ratio("min_available_ratio", c.MinAvailableRatio)
	positiveInt("max_orders_per_minute", c.MaxOrdersPerMinute)
	positiveInt("max_orders_per_symbol_per_minute", c.MaxOrdersPerSymbolPerMinute)
	positive("max_price_deviation_ratio", c.MaxPriceDeviationRatio)
	return err
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	return Int(*v)
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return Float(*v)
}

// ConfigManager 管理命名风控配置文档（YAML，按名称索引）。
type ConfigManager struct {
	mu      sync.RWMutex
	path    string
	configs map[string]Config
	logger  *zap.Logger
	// 最近一次读取失败（文件存在但不可用）；非空时拒绝写回，避免覆盖用户文档
	loadErr error
}

// NewConfigManager 读取配置文档；文件不存在或解析失败时退回内置默认配置，不返回错误。
// 只有文件不存在时才写出默认文档，解析或校验失败的文件保持原样。
func NewConfigManager(path string, logger *zap.Logger) *ConfigManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &ConfigManager{path: path, configs: make(map[string]Config), logger: logger}
	if err := m.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("risk config file not found, using default", zap.String("path", path))
		} else {
			logger.Error("load risk config failed, using default", zap.String("path", path), zap.Error(err))
		}
		m.mu.Lock()
		m.configs = map[string]Config{DefaultConfigName: DefaultConfig()}
		m.mu.Unlock()
		if path != "" && errors.Is(err, os.ErrNotExist) {
			if err := m.Save(); err != nil {
				logger.Error("save default risk config failed", zap.Error(err))
			}
		}
	}
	return m
}

// Load 从文件重新加载全部配置；失败时保留现有配置。
func (m *ConfigManager) Load() error {
	err := m.load()
	m.mu.Lock()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		m.loadErr = err
	} else if err == nil {
		m.loadErr = nil
	}
	m.mu.Unlock()
	return err
}

func (m *ConfigManager) load() error {
	if m.path == "" {
		return fmt.Errorf("risk config path: %w", os.ErrNotExist)
	}
	raw, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("read risk config: %w", err)
	}
	doc := make(map[string]Config)
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse risk config: %w", err)
	}
	var verr error
	for name, cfg := range doc {
		if err := cfg.Validate(); err != nil {
			verr = multierr.Append(verr, fmt.Errorf("config %q: %w", name, err))
		}
	}
	if verr != nil {
		return verr
	}
	if _, ok := doc[DefaultConfigName]; !ok {
		doc[DefaultConfigName] = DefaultConfig()
	}

	m.mu.Lock()
	m.configs = doc
	m.mu.Unlock()
	m.logger.Info("risk configs loaded", zap.String("path", m.path), zap.Int("count", len(doc)))
	return nil
}

// Save 写回文件（先写临时文件再改名）。
func (m *ConfigManager) Save() error {
	if err := m.writable(); err != nil {
		return err
	}
	m.mu.RLock()
	raw, err := yaml.Marshal(m.configs)
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode risk config: %w", err)
	}
	if m.path == "" {
		return nil
	}
	if dir := filepath.Dir(m.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create risk config dir: %w", err)
		}
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write risk config: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace risk config: %w", err)
	}
	return nil
}

func (m *ConfigManager) Path() string { return m.path }

// writable 文档读取失败后拒绝写回，修复文件并重新 Load 后恢复。
func (m *ConfigManager) writable() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.loadErr != nil {
		return fmt.Errorf("%w: %v", ErrConfigUnreadable, m.loadErr)
	}
	return nil
}

// Get 按名称取配置；为空或不存在时返回默认配置。
func (m *ConfigManager) Get(name string) Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if name == "" {
		name = DefaultConfigName
	}
	cfg, ok := m.configs[name]
	if !ok {
		m.logger.Warn("risk config not found, using default", zap.String("name", name))
		cfg, ok = m.configs[DefaultConfigName]
		if !ok {
			return DefaultConfig()
		}
	}
	return cfg.Clone()
}

// Lookup 精确查找，不回退。
func (m *ConfigManager) Lookup(name string) (Config, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[name]
	if !ok {
		return Config{}, false
	}
	return cfg.Clone(), true
}

// Set 新增或覆盖配置并保存。
func (m *ConfigManager) Set(name string, cfg Config) error {
	if name == "" {
		return errors.New("risk config name is required")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config %q: %w", name, err)
	}
	if err := m.writable(); err != nil {
		return err
	}
	m.mu.Lock()
	m.configs[name] = cfg.Clone()
	m.mu.Unlock()
	m.logger.Info("risk config updated", zap.String("name", name))
	return m.Save()
}

// Update 在现有配置（不存在则从默认配置）基础上修改。
func (m *ConfigManager) Update(name string, fn func(*Config)) error {
	cfg := m.Get(name)
	fn(&cfg)
	return m.Set(name, cfg)
}

// SetDefault 把指定配置复制为默认配置。
func (m *ConfigManager) SetDefault(name string) error {
	cfg, ok := m.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrConfigMissing, name)
	}
	return m.Set(DefaultConfigName, cfg)
}

// Delete 删除配置；默认配置不可删除，不存在时返回 false。
func (m *ConfigManager) Delete(name string) (bool, error) {
	if name == DefaultConfigName {
		return false, ErrDeleteDefault
	}
	if err := m.writable(); err != nil {
		return false, err
	}
	m.mu.Lock()
	if _, ok := m.configs[name]; !ok {
		m.mu.Unlock()
		return false, nil
	}
	delete(m.configs, name)
	m.mu.Unlock()
	m.logger.Info("risk config deleted", zap.String("name", name))
	return true, m.Save()
}

// List 按名称排序。
func (m *ConfigManager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.configs))
	for name := range m.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
