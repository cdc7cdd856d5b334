package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"futures-risk-go/risk"
)

// RiskDocument 命名风控配置文档，risk.ConfigManager 实现该接口
type RiskDocument interface {
	Path() string
	Load() error
	Get(name string) risk.Config
}

// RiskApplier 接收新阈值，risk.Manager 实现该接口
type RiskApplier interface {
	ApplyConfig(cfg risk.Config) error
}

// WatcherOptions 热更新参数
type WatcherOptions struct {
	Cooldown time.Duration // 两次重载的最小间隔，避免一次保存触发多次
	Logger   *zap.Logger
}

// Watcher 监听风控配置文档，变化后重新加载并把当前 profile 应用到管理器。
// 监听所在目录，以覆盖 临时文件+rename 的保存方式。
type Watcher struct {
	doc     RiskDocument
	target  RiskApplier
	profile string
	opts    WatcherOptions
	logger  *zap.Logger

	mu         sync.Mutex
	lastReload time.Time
	reloads    int

	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	doneChan chan struct{}
	started  bool
}

func NewWatcher(doc RiskDocument, profile string, target RiskApplier, opts WatcherOptions) *Watcher {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Watcher{
		doc:     doc,
		target:  target,
		profile: profile,
		opts:    opts,
		logger:  opts.Logger.Named("config_watcher"),
	}
}

func (w *Watcher) Name() string { return "risk_config_watcher" }

// Start 开始监听，重复调用无副作用
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	dir := filepath.Dir(w.doc.Path())
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.watcher = fw
	w.stopChan = make(chan struct{})
	w.doneChan = make(chan struct{})
	w.started = true
	go w.watch(ctx, fw, w.stopChan, w.doneChan)

	w.logger.Info("watching risk config", zap.String("path", w.doc.Path()), zap.String("profile", w.profile))
	return nil
}

// Stop 停止监听并关闭 fsnotify
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = false
	fw, stop, done := w.watcher, w.stopChan, w.doneChan
	w.mu.Unlock()

	close(stop)
	<-done
	return fw.Close()
}

func (w *Watcher) watch(ctx context.Context, fw *fsnotify.Watcher, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	target := filepath.Clean(w.doc.Path())

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if err := w.reload(false); err != nil {
					w.logger.Warn("risk config reload failed", zap.Error(err))
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// Reload 立即重新加载并应用，忽略冷却时间
func (w *Watcher) Reload() error {
	return w.reload(true)
}

func (w *Watcher) reload(force bool) error {
	w.mu.Lock()
	if !force && w.opts.Cooldown > 0 && time.Since(w.lastReload) < w.opts.Cooldown {
		w.mu.Unlock()
		return nil
	}
	w.lastReload = time.Now()
	w.mu.Unlock()

	if err := w.doc.Load(); err != nil {
		return fmt.Errorf("load %s: %w", w.doc.Path(), err)
	}
	if err := w.target.ApplyConfig(w.doc.Get(w.profile)); err != nil {
		return err
	}

	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()
	w.logger.Info("risk config reloaded", zap.String("profile", w.profile))
	return nil
}

// Reloads 成功重载的次数
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}
