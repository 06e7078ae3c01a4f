package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/pthivierge/web-service-reader-for-pi-system/internal/server"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/config"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/logger"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/scheduler"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/signal"
)

// runService 常驻模式：初始化引擎后按计划采集，直到收到退出信号
func runService(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	printBanner()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	// HTTP 先于引擎启动，初始化期间 /ready 返回 503
	var httpServer *server.Server
	if cfg.Server.Enable {
		httpServer = server.New(cfg.Server, a.registry, a.engine)
		if err := httpServer.Start(); err != nil {
			return fmt.Errorf("start HTTP server failed: %w", err)
		}
	}

	// 初始化失败不重试，数据通路停止，进程以非零码退出
	if err := a.engine.Initialize(ctx); err != nil {
		if httpServer != nil {
			_ = httpServer.Shutdown(context.Background())
		}
		return err
	}

	stageCtx, stopStage := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = a.stage.Run(stageCtx)
	}()

	sched := scheduler.New(a.engine, scheduler.Options{
		RunSchedule:     cfg.Engine.RunSchedule,
		RefreshSchedule: cfg.Engine.RefreshSchedule,
		RunOnStart:      cfg.Engine.RunOnStart,
	})
	if err := sched.Start(); err != nil {
		stopStage()
		wg.Wait()
		return err
	}

	return signal.WaitForShutdown(ctx, logger.Named("main"), 0, func(sctx context.Context) error {
		// 关闭顺序：调度器 → 写回 → HTTP
		var errs []error
		if err := sched.Stop(sctx); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}
		stopStage()
		wg.Wait()
		if httpServer != nil {
			if err := httpServer.Shutdown(sctx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown HTTP server failed: %w", err))
			}
		}
		logger.Info("all services shutdown", zap.Object("last_cycle", a.engine.LastCycle()))
		return errors.Join(errs...)
	})
}
