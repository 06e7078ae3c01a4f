// Package engine drives collection cycles: it loads the asset set from the
// catalog, fans Fetch calls out under a fixed concurrency bound and hands
// every successful batch to the output channel.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/asset"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/catalog"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/collector"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/logger"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/metrics"
)

// DefaultConcurrency is the number of fetches allowed in flight at once.
const DefaultConcurrency = 10

// Engine states.
const (
	StateUninitialized = "uninitialized"
	StateReady         = "ready"
	StateCycling       = "cycling"
	StateFailed        = "failed"
)

const (
	eventInitialize = "initialize"
	eventFail       = "fail"
	eventStartCycle = "start_cycle"
	eventEndCycle   = "end_cycle"
)

// Publisher receives whole batches. *output.Channel implements it.
type Publisher interface {
	Publish(collector.Batch) error
}

// Options 引擎可选参数，零值可用
type Options struct {
	// Concurrency bounds in-flight fetches; <= 0 means DefaultConcurrency.
	Concurrency int
	Logger      *zap.Logger
	Metrics     *metrics.EngineMetrics
}

// Engine owns the asset queue of one collector.
type Engine struct {
	client    catalog.Client
	collector collector.Collector
	out       Publisher
	log       *zap.Logger
	metrics   *metrics.EngineMetrics
	limit     int64

	sm    *fsm.FSM
	queue AssetQueue

	initMu    sync.Mutex
	refreshMu sync.Mutex
	// serial 串行化非并发安全采集器的 Fetch 调用
	serial sync.Mutex

	mu            sync.RWMutex
	settings      *collector.Settings // frozen by Initialize
	lastCycle     CycleReport
	lastConfigErr error
}

// New builds an engine in the uninitialized state.
func New(client catalog.Client, c collector.Collector, out Publisher, opts Options) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	log := opts.Logger
	if log == nil {
		log = logger.Named("engine")
	}
	log = log.With(zap.String("collector", c.Name()))

	e := &Engine{
		client:    client,
		collector: c,
		out:       out,
		log:       log,
		metrics:   opts.Metrics,
		limit:     int64(opts.Concurrency),
	}
	e.sm = fsm.NewFSM(
		StateUninitialized,
		fsm.Events{
			{Name: eventInitialize, Src: []string{StateUninitialized}, Dst: StateReady},
			{Name: eventFail, Src: []string{StateUninitialized}, Dst: StateFailed},
			{Name: eventStartCycle, Src: []string{StateReady}, Dst: StateCycling},
			{Name: eventEndCycle, Src: []string{StateCycling}, Dst: StateReady},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, ev *fsm.Event) {
				e.log.Debug("engine state changed", zap.String("from", ev.Src), zap.String("to", ev.Dst))
			},
		},
	)
	return e
}

// Initialize freezes the collector settings and performs the first
// configuration load. A failed load leaves the engine permanently failed;
// an empty asset set is a valid ready state.
func (e *Engine) Initialize(ctx context.Context) error {
	e.initMu.Lock()
	defer e.initMu.Unlock()

	switch e.sm.Current() {
	case StateUninitialized:
	case StateFailed:
		return fmt.Errorf("%w: %w", ErrInitializationFailed, e.LastConfigError())
	default:
		return ErrAlreadyInitialized
	}

	s := e.collector.GetSettings().Clone()
	e.mu.Lock()
	e.settings = &s
	e.mu.Unlock()

	if !e.GetConfiguration(ctx) {
		_ = e.transition(eventFail)
		e.log.Error("engine initialization failed, data path halted", zap.Error(e.LastConfigError()))
		return fmt.Errorf("%w: %w", ErrInitializationFailed, e.LastConfigError())
	}
	if err := e.transition(eventInitialize); err != nil {
		return err
	}

	if n := e.queue.Len(); n == 0 {
		e.log.Warn("no assets found for template", zap.String("template", s.TemplateName))
	} else {
		e.log.Info("engine initialized", zap.Int("assets", n), zap.Int64("concurrency", e.limit))
	}
	return nil
}

// GetConfiguration connects to the catalog, checks the template and loads
// every matching asset into the queue. Failures are logged and recorded in
// LastConfigError; the queue is only replaced on success.
func (e *Engine) GetConfiguration(ctx context.Context) bool {
	assets, err := e.load(ctx)

	e.mu.Lock()
	e.lastConfigErr = err
	e.mu.Unlock()

	if err != nil {
		e.log.Error("failed to load configuration from catalog", zap.Error(err))
		return false
	}
	e.queue.Replace(assets)
	e.metrics.SetAssets(len(assets))
	return true
}

func (e *Engine) load(ctx context.Context) (assets []*asset.Descriptor, err error) {
	defer func() {
		if r := recover(); r != nil {
			assets, err = nil, fmt.Errorf("catalog client panic: %v", r)
		}
	}()

	s := e.Settings()
	cat, err := e.client.Connect(ctx, s.ServerName, s.DatabaseName)
	if err != nil {
		return nil, fmt.Errorf("connect %s/%s: %w", s.ServerName, s.DatabaseName, err)
	}
	defer func() {
		if cerr := cat.Close(); cerr != nil {
			e.log.Warn("close catalog", zap.Error(cerr))
		}
	}()

	ok, err := cat.HasTemplate(ctx, s.TemplateName)
	if err != nil {
		return nil, fmt.Errorf("look up template %q: %w", s.TemplateName, err)
	}
	if !ok {
		return nil, catalog.TemplateNotFound(s.TemplateName)
	}

	assets, err = cat.EnumerateByTemplate(ctx, s.TemplateName)
	if err != nil {
		return nil, fmt.Errorf("enumerate template %q: %w", s.TemplateName, err)
	}
	if err := checkSnapshot(assets); err != nil {
		return nil, err
	}
	return assets, nil
}

// RefreshConfiguration reloads the asset set and swaps it in. A cycle that
// is already running keeps its snapshot. On failure the previous asset set
// stays in place and the error is returned.
func (e *Engine) RefreshConfiguration(ctx context.Context) error {
	if st := e.sm.Current(); st != StateReady && st != StateCycling {
		return fmt.Errorf("%w: state %s", ErrNotReady, st)
	}

	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	before := e.queue.Len()
	if !e.GetConfiguration(ctx) {
		e.metrics.ObserveRefresh(metrics.ResultFailed)
		return fmt.Errorf("refresh configuration: %w", e.LastConfigError())
	}
	e.metrics.ObserveRefresh(metrics.ResultOK)
	e.log.Info("configuration refreshed", zap.Int("before", before), zap.Int("after", e.queue.Len()))
	return nil
}

// RunOnce performs one collection cycle over the current snapshot. Per-asset
// failures are logged and counted but never returned. Only one cycle runs at
// a time; a concurrent call gets ErrCycleInProgress.
func (e *Engine) RunOnce(ctx context.Context) error {
	if err := e.transition(eventStartCycle); err != nil {
		var invalid fsm.InvalidEventError
		if errors.As(err, &invalid) && invalid.State == StateCycling {
			return ErrCycleInProgress
		}
		return fmt.Errorf("%w: state %s", ErrNotReady, e.sm.Current())
	}
	defer func() { _ = e.transition(eventEndCycle) }()

	report := CycleReport{ID: uuid.NewString(), Started: time.Now()}
	log := e.log.With(zap.String("cycle", report.ID))

	err := e.runCycle(ctx, log, &report)
	report.Duration = time.Since(report.Started)
	report.Err = err

	e.mu.Lock()
	e.lastCycle = report
	e.mu.Unlock()

	switch {
	case err != nil:
		e.metrics.ObserveCycle(metrics.ResultFailed, report.Duration)
		log.Error("collection cycle failed", zap.Object("report", report), zap.Error(err))
	case report.Assets == 0:
		e.metrics.ObserveCycle(metrics.ResultEmpty, report.Duration)
	default:
		e.metrics.ObserveCycle(metrics.ResultOK, report.Duration)
		log.Info("collection cycle finished", zap.Object("report", report))
	}
	return err
}

func (e *Engine) runCycle(ctx context.Context, log *zap.Logger, report *CycleReport) error {
	snapshot := e.queue.Snapshot()
	report.Assets = len(snapshot)
	if len(snapshot) == 0 {
		log.Info("asset queue is empty, nothing to collect")
		return nil
	}
	if err := checkSnapshot(snapshot); err != nil {
		return err
	}

	var (
		succeeded, failed, skipped, values atomic.Int64
		publishErr                         error
		publishOnce                        sync.Once
		wg                                 sync.WaitGroup
	)
	sem := semaphore.NewWeighted(e.limit)

	var (
		dispatchErr error
		dispatched  int
	)
	for _, a := range snapshot {
		// 取消时不再派发新的资产，已在执行的等待其完成
		if err := sem.Acquire(ctx, 1); err != nil {
			dispatchErr = fmt.Errorf("cycle interrupted: %w", err)
			break
		}
		dispatched++
		wg.Add(1)
		go func(a *asset.Descriptor) {
			defer wg.Done()
			defer sem.Release(1)

			start := time.Now()
			e.metrics.FetchStarted()
			batch, err := e.fetch(ctx, a)
			e.metrics.FetchDone()
			took := time.Since(start)

			fields := []zap.Field{
				zap.String("asset_id", a.ID()),
				zap.String("asset", a.Path()),
				zap.Duration("took", took),
			}
			switch {
			case collector.IsNotConfigured(err):
				skipped.Add(1)
				e.metrics.ObserveFetch(e.collector.Name(), metrics.ResultNotConfigured, took)
				log.Info("asset skipped", append(fields, zap.String("reason", err.Error()))...)
				return
			case err != nil:
				failed.Add(1)
				e.metrics.ObserveFetch(e.collector.Name(), metrics.ResultFailed, took)
				log.Warn("fetch failed", append(fields, zap.Error(err))...)
				return
			}

			e.stamp(&batch, a)
			if err := e.out.Publish(batch); err != nil {
				failed.Add(1)
				e.metrics.ObserveFetch(e.collector.Name(), metrics.ResultFailed, took)
				publishOnce.Do(func() { publishErr = fmt.Errorf("publish batch: %w", err) })
				return
			}
			succeeded.Add(1)
			values.Add(int64(batch.Len()))
			e.metrics.ObserveFetch(e.collector.Name(), metrics.ResultOK, took)
			log.Debug("fetch succeeded", append(fields, zap.Int("values", batch.Len()))...)
		}(a)
	}
	wg.Wait()

	report.Succeeded = int(succeeded.Load())
	report.Failed = int(failed.Load())
	report.Skipped = int(skipped.Load())
	report.Values = int(values.Load())
	report.NotDispatched = len(snapshot) - dispatched

	if dispatchErr != nil {
		return dispatchErr
	}
	return publishErr
}

// fetch calls the collector for one asset, turning a panic into an error.
func (e *Engine) fetch(ctx context.Context, a *asset.Descriptor) (batch collector.Batch, err error) {
	if !e.collector.ConcurrencySafe() {
		e.serial.Lock()
		defer e.serial.Unlock()
	}
	defer func() {
		if r := recover(); r != nil {
			batch = collector.Batch{}
			err = collector.NewError(e.collector.Name(), a.ID(), "fetch", fmt.Errorf("panic: %v", r))
		}
	}()
	return e.collector.Fetch(ctx, a)
}

// stamp fills the batch identity when the collector left it blank.
func (e *Engine) stamp(b *collector.Batch, a *asset.Descriptor) {
	if b.AssetID == "" {
		b.AssetID = a.ID()
	}
	if b.AssetPath == "" {
		b.AssetPath = a.Path()
	}
	if b.Collector == "" {
		b.Collector = e.collector.Name()
	}
}

func (e *Engine) transition(event string) error {
	return e.sm.Event(context.Background(), event)
}

func checkSnapshot(assets []*asset.Descriptor) error {
	for i, a := range assets {
		if a == nil {
			return fmt.Errorf("%w: nil descriptor at index %d", ErrQueueCorrupted, i)
		}
	}
	return nil
}

// State returns the current engine state.
func (e *Engine) State() string { return e.sm.Current() }

// Ready reports whether the engine can run cycles.
func (e *Engine) Ready() bool {
	st := e.sm.Current()
	return st == StateReady || st == StateCycling
}

// Assets returns the size of the current snapshot.
func (e *Engine) Assets() int { return e.queue.Len() }

// Snapshot returns the current asset set.
func (e *Engine) Snapshot() []*asset.Descriptor { return e.queue.Snapshot() }

func (e *Engine) LastCycle() CycleReport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastCycle
}

func (e *Engine) LastConfigError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastConfigErr
}

// Settings returns the frozen settings after Initialize, the collector's
// live settings before.
func (e *Engine) Settings() collector.Settings {
	e.mu.RLock()
	s := e.settings
	e.mu.RUnlock()
	if s != nil {
		return s.Clone()
	}
	return e.collector.GetSettings()
}
