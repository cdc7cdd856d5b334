package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"futures-risk-go/internal/container"
)

// riskd 常驻进程：风控监控、定时任务、配置热更新与 /metrics。
// 用法：
//
//	riskd -config configs/config.yaml -env .env
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径，为空时使用内置默认值")
	envFile := flag.String("env", ".env", ".env 文件路径，不存在时忽略")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("加载 %s 失败: %v", *envFile, err)
	}

	c, err := container.New(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if err := c.Build(); err != nil {
		log.Fatalf("初始化失败: %v", err)
	}
	logger := c.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Start(ctx); err != nil {
		logger.LogError(err, map[string]interface{}{"action": "start"})
		_ = c.Stop()
		os.Exit(1)
	}
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Warn("sd_notify ready failed", zap.Error(err))
	} else if ok {
		logger.Info("notified systemd ready")
	}
	go watchdog(ctx, logger.Logger)

	logger.Info("riskd running",
		zap.String("mode", c.Config().Account.Mode),
		zap.String("metrics", c.MetricsAddr()))
	<-ctx.Done()

	logger.Info("shutting down")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err := c.Stop(); err != nil {
		log.Printf("停止时出错: %v", err)
		os.Exit(1)
	}
}

// watchdog 启用了 WatchdogSec 时按一半间隔上报存活
func watchdog(ctx context.Context, logger *zap.Logger) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				logger.Warn("sd_notify watchdog failed", zap.Error(err))
			}
		}
	}
}
