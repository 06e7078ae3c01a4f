package agent

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	catalogdb "github.com/pthivierge/web-service-reader-for-pi-system/pkg/catalog/sqlite"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/collector"
	_ "github.com/pthivierge/web-service-reader-for-pi-system/pkg/collector/github"
	_ "github.com/pthivierge/web-service-reader-for-pi-system/pkg/collector/system"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/config"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/engine"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/logger"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/metrics"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/output"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/util"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/writer"
)

// app 进程内的全部组件，按依赖顺序构建
type app struct {
	cfg      *config.Config
	registry *prometheus.Registry
	catalog  *catalogdb.Client
	out      *output.Channel
	engine   *engine.Engine
	sink     writer.Sink
	stage    *writer.Stage
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	// 1. 日志
	if err := logger.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("日志初始化失败: %w", err)
	}
	logger.SetDefaultComponent("main")
	logger.Info("log initialization successful",
		zap.String("path", cfg.Log.Path), zap.String("level", cfg.Log.Level), zap.String("format", cfg.Log.Format))

	// 2. 指标
	registry := prometheus.NewRegistry()
	factory := metrics.NewMetricFactory(metrics.NewPromRegistry(registry, true))
	engineMetrics := factory.NewEngineMetrics()
	writerMetrics := factory.NewWriterMetrics()

	// 3. 采集器
	settings := collector.Settings{
		ServerName:   cfg.Collector.ServerName,
		DatabaseName: cfg.Collector.DatabaseName,
		TemplateName: cfg.Collector.TemplateName,
		Options:      cfg.Collector.Options,
	}
	coll, err := collector.New(cfg.Collector.Kind, settings)
	if err != nil {
		return nil, err
	}

	// 4. 输出通道 + 写回
	out := output.New(writerMetrics.SetQueueLength)
	var sink writer.Sink
	if cfg.Writer.Enable {
		s, err := writer.OpenSQLiteSink(ctx, cfg.Writer.DSN)
		if err != nil {
			return nil, err
		}
		sink = s
	} else {
		sink = writer.NewLogSink(logger.Named("values"))
	}

	a := &app{
		cfg:      cfg,
		registry: registry,
		catalog:  catalogdb.NewClient(),
		out:      out,
		sink:     sink,
		stage:    writer.NewStage(out, sink, writer.Options{Metrics: writerMetrics}),
	}
	a.engine = engine.New(a.catalog, coll, out, engine.Options{
		Concurrency: cfg.Engine.Concurrency,
		Metrics:     engineMetrics,
	})

	logger.Info("components ready",
		zap.String("collector", coll.Name()),
		zap.String("catalog", cfg.Collector.ServerName),
		zap.String("database", cfg.Collector.DatabaseName),
		zap.String("template", cfg.Collector.TemplateName),
		zap.Bool("writer", cfg.Writer.Enable))
	return a, nil
}

func (a *app) close() error {
	a.out.Close()
	err := errors.Join(a.sink.Close(), a.catalog.Close())
	if serr := logger.Sync(); serr != nil {
		fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", serr)
	}
	return err
}

func printBanner() {
	util.PrintBanner(os.Stdout, "web-service-reader", "blue")
}
