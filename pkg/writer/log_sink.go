package writer

import (
	"context"

	"go.uber.org/zap"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/asset"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/collector"
)

// LogSink writes every value as one log entry. Used when no database is
// configured.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink { return &LogSink{log: log} }

func (l *LogSink) Write(_ context.Context, b collector.Batch) error {
	for _, v := range b.Values {
		text := ""
		if av, err := asset.FromAny(v.Value); err == nil {
			text = av.Text()
		}
		l.log.Info("value",
			zap.String("asset", b.AssetPath),
			zap.String("element_id", v.Ref.ElementID),
			zap.String("attribute", v.Ref.Attribute),
			zap.String("value", text),
			zap.Time("timestamp", v.Timestamp))
	}
	return nil
}

func (l *LogSink) Close() error { return nil }
