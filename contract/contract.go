package contract

import (
	"strings"
	"sync"
	"unicode"
)

// Spec 描述一个期货品种的静态参数。
type Spec struct {
	Product    string  `yaml:"product"`
	Exchange   string  `yaml:"exchange"`
	Name       string  `yaml:"name"`
	Multiplier float64 `yaml:"multiplier"` // 合约乘数
	PriceTick  float64 `yaml:"priceTick"`  // 最小变动价位
}

const (
	DefaultMultiplier = 1.0
	DefaultPriceTick  = 1.0
)

// Registry 品种代码 -> 合约参数。
type Registry struct {
	mu    sync.RWMutex
	specs map[string]Spec
}

// NewRegistry 以内置品种表初始化。
func NewRegistry() *Registry {
	r := &Registry{specs: make(map[string]Spec, len(builtin))}
	for _, s := range builtin {
		r.specs[s.Product] = s
	}
	return r
}

// Register 新增或覆盖一个品种。
func (r *Registry) Register(s Spec) {
	if s.Product == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[s.Product] = s
}

// Lookup 按合约代码查询，rb2501 -> rb。先查小写，再查原样。
func (r *Registry) Lookup(symbol string) (Spec, bool) {
	product := ProductCode(symbol)
	if product == "" {
		return Spec{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.specs[strings.ToLower(product)]; ok {
		return s, true
	}
	s, ok := r.specs[product]
	return s, ok
}

// Known 合约是否在表内。
func (r *Registry) Known(symbol string) bool {
	_, ok := r.Lookup(symbol)
	return ok
}

// Multiplier 未知品种返回 1。
func (r *Registry) Multiplier(symbol string) float64 {
	if s, ok := r.Lookup(symbol); ok && s.Multiplier > 0 {
		return s.Multiplier
	}
	return DefaultMultiplier
}

// PriceTick 未知品种返回 1.0。
func (r *Registry) PriceTick(symbol string) float64 {
	if s, ok := r.Lookup(symbol); ok && s.PriceTick > 0 {
		return s.PriceTick
	}
	return DefaultPriceTick
}

// Products 返回所有品种代码。
func (r *Registry) Products() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.specs))
	for p := range r.specs {
		out = append(out, p)
	}
	return out
}

// ProductCode 去掉合约代码中的数字部分。
func ProductCode(symbol string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(symbol) {
		if unicode.IsDigit(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var defaultRegistry = NewRegistry()

// Default 进程级只读默认表。
func Default() *Registry { return defaultRegistry }

// Multiplier 使用默认表。
func Multiplier(symbol string) float64 { return defaultRegistry.Multiplier(symbol) }

// PriceTick 使用默认表。
func PriceTick(symbol string) float64 { return defaultRegistry.PriceTick(symbol) }
