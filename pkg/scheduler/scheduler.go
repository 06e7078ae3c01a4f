// Package scheduler triggers collection cycles and configuration refreshes
// on two independent cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/logger"
)

// Runner is the engine surface the scheduler drives.
type Runner interface {
	RunOnce(ctx context.Context) error
	RefreshConfiguration(ctx context.Context) error
}

type Options struct {
	RunSchedule     string
	RefreshSchedule string
	// RunOnStart triggers one cycle right after Start.
	RunOnStart bool
	Logger     *zap.Logger
}

// Scheduler owns a cron instance with two jobs. Each job skips a trigger
// while its previous run is still executing; the two jobs may overlap.
type Scheduler struct {
	opts   Options
	runner Runner
	log    *zap.Logger
	cron   *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	runJob     cron.Job
	refreshJob cron.Job
}

func New(r Runner, opts Options) *Scheduler {
	log := opts.Logger
	if log == nil {
		log = logger.Named("scheduler")
	}
	s := &Scheduler{opts: opts, runner: r, log: log}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	cl := cronLogger{l: log.Sugar()}
	// Recover 必须在 SkipIfStillRunning 内层，否则 panic 后令牌不归还
	chain := func() cron.Chain { return cron.NewChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)) }
	s.runJob = chain().Then(cron.FuncJob(s.run))
	s.refreshJob = chain().Then(cron.FuncJob(s.refresh))
	s.cron = cron.New(cron.WithLogger(cl))
	return s
}

// Start registers both jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddJob(s.opts.RunSchedule, s.runJob); err != nil {
		return fmt.Errorf("run schedule %q: %w", s.opts.RunSchedule, err)
	}
	if _, err := s.cron.AddJob(s.opts.RefreshSchedule, s.refreshJob); err != nil {
		return fmt.Errorf("refresh schedule %q: %w", s.opts.RefreshSchedule, err)
	}
	s.cron.Start()
	s.log.Info("scheduler started",
		zap.String("run_schedule", s.opts.RunSchedule),
		zap.String("refresh_schedule", s.opts.RefreshSchedule),
		zap.Bool("run_on_start", s.opts.RunOnStart))

	if s.opts.RunOnStart {
		s.TriggerRun()
	}
	return nil
}

// TriggerRun starts a cycle outside the schedule, subject to the same
// skip-if-running rule.
func (s *Scheduler) TriggerRun() { s.trigger(s.runJob) }

func (s *Scheduler) TriggerRefresh() { s.trigger(s.refreshJob) }

func (s *Scheduler) trigger(j cron.Job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		j.Run()
	}()
}

// Stop prevents further triggers and waits for running jobs. When ctx ends
// first, the jobs' context is cancelled and Stop still waits for them.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn("jobs still running at shutdown deadline, cancelling")
		s.cancel()
		<-done
		return ctx.Err()
	}
}

func (s *Scheduler) run() {
	if err := s.runner.RunOnce(s.ctx); err != nil {
		s.log.Error("scheduled collection cycle failed", zap.Error(err))
	}
}

func (s *Scheduler) refresh() {
	if err := s.runner.RefreshConfiguration(s.ctx); err != nil {
		s.log.Error("scheduled configuration refresh failed, keeping previous assets", zap.Error(err))
	}
}

// cronLogger adapts zap to cron.Logger. cron's own chatter goes to debug.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
