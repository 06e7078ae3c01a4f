// Package writer is the write-back stage: the single consumer of the output
// channel. It hands every batch to a Sink at its own pace.
package writer

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/collector"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/logger"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/metrics"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/output"
)

// Sink persists batches. Write is only called from the stage goroutine.
type Sink interface {
	Write(ctx context.Context, b collector.Batch) error
	Close() error
}

type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.WriterMetrics
}

// Stage drains one output channel into one sink.
type Stage struct {
	in      *output.Channel
	sink    Sink
	log     *zap.Logger
	metrics *metrics.WriterMetrics
}

func NewStage(in *output.Channel, sink Sink, opts Options) *Stage {
	log := opts.Logger
	if log == nil {
		log = logger.Named("writer")
	}
	return &Stage{in: in, sink: sink, log: log, metrics: opts.Metrics}
}

// Run consumes batches until ctx is cancelled or the channel is closed and
// empty. On cancellation whatever is still queued is written before
// returning.
func (s *Stage) Run(ctx context.Context) error {
	s.log.Info("write-back stage started")
	for {
		b, err := s.in.Receive(ctx)
		switch {
		case errors.Is(err, output.ErrClosed):
			s.log.Info("output channel closed, write-back stage stopped")
			return nil
		case err != nil:
			n := s.Drain(context.Background())
			s.log.Info("write-back stage stopped", zap.Int("drained", n))
			return nil
		}
		s.write(ctx, b)
	}
}

// Drain writes every batch queued right now and returns how many it took.
func (s *Stage) Drain(ctx context.Context) int {
	n := 0
	for {
		b, ok := s.in.TryReceive()
		if !ok {
			return n
		}
		s.write(ctx, b)
		n++
	}
}

func (s *Stage) write(ctx context.Context, b collector.Batch) {
	if b.IsEmpty() {
		s.metrics.ObserveBatch(metrics.ResultEmpty, 0)
		return
	}
	if err := s.sink.Write(ctx, b); err != nil {
		// 尽力而为，不重试，下个周期会产生新值
		s.metrics.ObserveBatch(metrics.ResultFailed, b.Len())
		s.log.Error("failed to write batch",
			zap.String("asset_id", b.AssetID),
			zap.String("asset", b.AssetPath),
			zap.Int("values", b.Len()),
			zap.Error(err))
		return
	}
	s.metrics.ObserveBatch(metrics.ResultOK, b.Len())
}
