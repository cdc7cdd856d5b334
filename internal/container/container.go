package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"futures-risk-go/config"
	"futures-risk-go/contract"
	"futures-risk-go/infrastructure/alert"
	"futures-risk-go/infrastructure/logger"
	"futures-risk-go/infrastructure/monitor"
	"futures-risk-go/internal/account"
	"futures-risk-go/internal/engine"
	riskmon "futures-risk-go/internal/risk"
	"futures-risk-go/internal/scheduler"
	"futures-risk-go/internal/store"
	"futures-risk-go/order"
	"futures-risk-go/portfolio"
	"futures-risk-go/risk"
)

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	// 配置
	cfg *config.AppConfig

	// 基础设施
	logger  *logger.Logger
	metrics *monitor.Metrics
	alerts  *alert.Manager

	// 账户
	contracts *contract.Registry
	ledger    *portfolio.Portfolio // sim 模式
	store     *store.Store         // live 模式
	account   riskmon.Account

	// 风控
	riskConfigs *risk.ConfigManager
	audit       *risk.AuditLog
	riskMgr     *risk.Manager

	// 核心服务
	orders    *order.Manager
	engine    *engine.TradingEngine
	monitor   *riskmon.Monitor
	scheduler *scheduler.Scheduler
	watcher   *config.Watcher
	metricsUp *httpServerComponent

	// 生命周期管理
	lifecycle *LifecycleManager
	built     bool
}

// New 读取配置文件（叠加环境变量）创建 Container
func New(configPath string) (*Container, error) {
	cfg, err := config.LoadWithEnvOverrides(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return NewFromConfig(cfg)
}

// NewFromConfig 使用已加载的配置创建 Container
func NewFromConfig(cfg config.AppConfig) (*Container, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Container{cfg: &cfg}, nil
}

// Build 构建所有组件
func (c *Container) Build() error {
	if c.built {
		return errors.New("container already built")
	}
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}
	c.lifecycle = NewLifecycleManager(c.logger)

	if err := c.buildAccount(); err != nil {
		return fmt.Errorf("build account failed: %w", err)
	}
	if err := c.buildRisk(); err != nil {
		return fmt.Errorf("build risk failed: %w", err)
	}
	if err := c.buildCoreServices(); err != nil {
		return fmt.Errorf("build core services failed: %w", err)
	}

	c.registerLifecycleComponents()
	c.built = true
	c.logger.Info("container built successfully",
		zap.String("env", c.cfg.Env),
		zap.String("mode", c.cfg.Account.Mode),
		zap.Strings("components", c.lifecycle.Components()))
	return nil
}

func (c *Container) buildInfrastructure() error {
	var err error
	c.logger, err = logger.New(c.cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger failed: %w", err)
	}

	metricsCfg := monitor.DefaultConfig()
	if c.cfg.Metrics.Namespace != "" {
		metricsCfg.Namespace = c.cfg.Metrics.Namespace
	}
	c.metrics = monitor.New(metricsCfg)

	c.alerts = alert.NewManager([]alert.Channel{
		alert.NewLogChannel("log", c.logger.Logger),
	}, c.cfg.Alert.ThrottleInterval)

	c.logger.Info("infrastructure built")
	return nil
}

func (c *Container) buildAccount() error {
	c.contracts = contract.NewRegistry()
	for _, spec := range c.cfg.Contracts {
		c.contracts.Register(spec)
	}

	switch c.cfg.Account.Mode {
	case config.ModeLive:
		// 实盘账户由外部推送账户与持仓更新
		c.store = store.New(c.logger.Sink())
		c.account = account.NewAdapter(c.store, c.contracts)
	default:
		ledger, err := portfolio.New(portfolio.Config{
			InitialCapital: c.cfg.Account.InitialCapital,
			CommissionRate: c.cfg.Account.CommissionRate,
			Slippage:       c.cfg.Account.Slippage,
			Contracts:      c.contracts,
			Logger:         c.logger.Named("portfolio"),
		})
		if err != nil {
			return err
		}
		c.ledger = ledger
		c.account = ledger
	}
	c.logger.Info("account built", zap.String("mode", c.cfg.Account.Mode))
	return nil
}

func (c *Container) buildRisk() error {
	c.riskConfigs = risk.NewConfigManager(c.cfg.Risk.ConfigFile, c.logger.Named("risk_config"))
	active := c.riskConfigs.Get(c.cfg.Risk.Profile)

	var err error
	c.audit, err = risk.NewAuditLog(c.cfg.Audit, c.logger.Named("audit"))
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	c.audit.SetMetrics(c.metrics)

	c.riskMgr = risk.NewManager(active, risk.Options{
		Contracts: c.contracts,
		Audit:     c.audit,
		Notifier:  risk.NewNotifier(c.alerts, c.logger.Named("risk")),
		Metrics:   c.metrics,
		Logger:    c.logger.Named("risk"),
		Decisions: c.logger.LogRisk,
	})
	c.logger.Info("risk built",
		zap.String("profile", c.cfg.Risk.Profile),
		zap.String("config_file", c.riskConfigs.Path()))
	return nil
}

func (c *Container) buildCoreServices() error {
	c.orders = order.NewManager(c.logger.Named("orders"))

	if c.ledger != nil {
		eng, err := engine.New(engine.Config{
			EquitySampleEvery: c.cfg.Account.EquitySampleEvery,
			StrictSymbols:     c.cfg.Account.StrictSymbols,
		}, engine.Components{
			Portfolio: c.ledger,
			Risk:      c.riskMgr,
			Orders:    c.orders,
			Contracts: c.contracts,
			Metrics:   c.metrics,
			Logger:    c.logger.WithFields(map[string]interface{}{"component": "engine"}),
		})
		if err != nil {
			return err
		}
		c.engine = eng
	}

	c.monitor = riskmon.NewMonitor(c.cfg.Monitor, c.account, riskmon.MonitorOptions{
		Alerts: c.alerts,
		Gauges: c.metrics,
		Logger: c.logger.Named("risk_monitor"),
	})

	c.scheduler = scheduler.New(scheduler.Options{
		Tick:   c.cfg.Scheduler.Tick,
		Logger: c.logger.Named("scheduler"),
	})
	if err := c.scheduleJobs(); err != nil {
		return err
	}

	if c.cfg.Risk.HotReload && c.cfg.Risk.ConfigFile != "" {
		c.watcher = config.NewWatcher(c.riskConfigs, c.cfg.Risk.Profile, c.riskMgr, config.WatcherOptions{
			Cooldown: time.Second,
			Logger:   c.logger.Named("risk_config_watcher"),
		})
	}

	c.logger.Info("core services built")
	return nil
}

// scheduleJobs 注册周期任务，间隔为 0 的任务不注册
func (c *Container) scheduleJobs() error {
	sc := c.cfg.Scheduler
	tracker := c.monitor.Tracker()
	jobs := []struct {
		name     string
		interval time.Duration
		fn       scheduler.Func
	}{
		{"daily_reset", sc.DailyResetInterval, scheduler.DailyResetJob(c.riskMgr, trackerReset{tracker})},
		{"order_cleanup", sc.OrderCleanupInterval, scheduler.OrderCleanupJob(c.orders, sc.OrderMaxAge, c.logger.Named("scheduler"))},
		{"audit_stats", sc.AuditStatsInterval, scheduler.AuditStatsJob(c.audit, c.logger.Named("scheduler"))},
	}
	var err error
	for _, j := range jobs {
		if j.interval <= 0 {
			continue
		}
		if _, e := c.scheduler.AddPeriodic(j.name, j.interval, j.fn); e != nil {
			err = multierr.Append(err, fmt.Errorf("schedule %s: %w", j.name, e))
		}
	}
	return err
}

func (c *Container) registerLifecycleComponents() {
	if c.cfg.Metrics.Listen != "" {
		c.metricsUp = &httpServerComponent{
			name:    "metrics_server",
			handler: c.metrics.Handler(),
			addr:    c.cfg.Metrics.Listen,
			logger:  c.logger,
		}
		c.lifecycle.Register(c.metricsUp)
	}
	// 审计先注册，晚于引擎与监控停止
	c.lifecycle.Register(&funcComponent{
		name: "risk_audit",
		stop: c.audit.Close,
	})
	if c.watcher != nil {
		c.lifecycle.Register(c.watcher)
	}
	c.lifecycle.Register(&funcComponent{
		name:  c.monitor.Name(),
		start: c.monitor.Start,
		stop:  c.monitor.Stop,
		health: func() error {
			if !c.monitor.Running() {
				return errors.New("monitor loop not running")
			}
			return nil
		},
	})
	c.lifecycle.Register(c.scheduler)
	if c.engine != nil {
		c.lifecycle.Register(&funcComponent{
			name: c.engine.Name(),
			stop: c.engine.Stop,
			health: func() error {
				if st := c.engine.GetState(); st != engine.StateRunning {
					return fmt.Errorf("engine %s", st)
				}
				return nil
			},
		})
	}
}

// Start 按注册顺序启动组件
func (c *Container) Start(ctx context.Context) error {
	if !c.built {
		return errors.New("container not built")
	}
	c.logger.Info("starting container...")
	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}
	c.logger.Info("container started")
	return nil
}

// Stop 逆序停止组件并关闭日志
func (c *Container) Stop() error {
	if !c.built {
		return nil
	}
	c.logger.Info("stopping container...")
	err := c.lifecycle.StopAll()
	// 未启动时审计写入协程也已运行
	err = multierr.Append(err, c.audit.Close())
	if err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
	}
	c.logger.Info("container stopped")
	return multierr.Append(err, c.logger.Close())
}

func (c *Container) HealthCheck() error {
	if !c.built {
		return errors.New("container not built")
	}
	return c.lifecycle.CheckHealth()
}

func (c *Container) Config() config.AppConfig { return *c.cfg }

func (c *Container) Logger() *logger.Logger { return c.logger }

func (c *Container) Metrics() *monitor.Metrics { return c.metrics }

func (c *Container) Alerts() *alert.Manager { return c.alerts }

func (c *Container) Contracts() *contract.Registry { return c.contracts }

// Engine sim 模式下的交易引擎，live 模式为 nil
func (c *Container) Engine() *engine.TradingEngine { return c.engine }

// Portfolio sim 模式下的账本，live 模式为 nil
func (c *Container) Portfolio() *portfolio.Portfolio { return c.ledger }

// Store live 模式下的实盘账户缓存，sim 模式为 nil
func (c *Container) Store() *store.Store { return c.store }

func (c *Container) RiskManager() *risk.Manager { return c.riskMgr }

func (c *Container) RiskConfigs() *risk.ConfigManager { return c.riskConfigs }

func (c *Container) Audit() *risk.AuditLog { return c.audit }

func (c *Container) Monitor() *riskmon.Monitor { return c.monitor }

func (c *Container) Scheduler() *scheduler.Scheduler { return c.scheduler }

// MetricsAddr /metrics 实际监听地址，未启用时为空
func (c *Container) MetricsAddr() string {
	if c.metricsUp == nil {
		return ""
	}
	return c.metricsUp.Addr()
}

// trackerReset 把权益跟踪器的日切接到 DailyResetJob
type trackerReset struct {
	tracker *riskmon.EquityTracker
}

func (t trackerReset) ResetDaily() { t.tracker.ResetDaily(time.Now()) }
