package metrics

import "github.com/prometheus/client_golang/prometheus"

// WriterMetrics instruments the output channel and the write-back stage.
// A nil *WriterMetrics is valid and records nothing.
type WriterMetrics struct {
	queueLength prometheus.Gauge
	batches     *prometheus.CounterVec
	values      *prometheus.CounterVec
}

func (m *MetricFactory) NewWriterMetrics() *WriterMetrics {
	return &WriterMetrics{
		queueLength: m.gauge("output_queue_length", "Batches waiting in the output channel"),
		batches:     m.counterVec("writer_batches_total", "Batches handled by the write-back stage", "result"),
		values:      m.counterVec("writer_values_total", "Values handled by the write-back stage", "result"),
	}
}

// SetQueueLength is shaped to be passed to output.New.
func (w *WriterMetrics) SetQueueLength(n int) {
	if w != nil {
		w.queueLength.Set(float64(n))
	}
}

func (w *WriterMetrics) ObserveBatch(result string, values int) {
	if w == nil {
		return
	}
	w.batches.WithLabelValues(result).Inc()
	w.values.WithLabelValues(result).Add(float64(values))
}
