// Package signal 监听退出信号并执行优雅关闭
package signal

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// DefaultShutdownTimeout bounds the shutdown function.
const DefaultShutdownTimeout = 15 * time.Second

// WaitForShutdown blocks until SIGINT/SIGTERM arrives or ctx ends, then
// runs shutdownFunc with a context limited to timeout.
func WaitForShutdown(ctx context.Context, log *zap.Logger, timeout time.Duration, shutdownFunc func(context.Context) error) error {
	if shutdownFunc == nil {
		return errors.New("shutdownFunc is nil")
	}
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("service running, waiting for SIGINT/SIGTERM...")
	<-sigCtx.Done()
	if ctx.Err() != nil {
		log.Info("shutdown requested", zap.Error(context.Cause(ctx)))
	} else {
		log.Info("received shutdown signal")
	}

	// 关闭使用独立的超时上下文，避免继承已取消的 ctx
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := shutdownFunc(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	log.Info("graceful shutdown completed successfully")
	return nil
}
