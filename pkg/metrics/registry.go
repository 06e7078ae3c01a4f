package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric this service exports.
const Namespace = "wsr"

// Registers 接口隔离了 Prometheus 的默认实现，便于单测替换
type Registers interface {
	prometheus.Registerer
	Gatherer() prometheus.Gatherer
}

// promRegistry Prometheus 实现，内部包裹了官方的 *prometheus.Registry
type promRegistry struct {
	*prometheus.Registry
}

// NewPromRegistry wraps registry. With enableProcess the process collector
// is registered as well; Go runtime metrics are left out.
func NewPromRegistry(registry *prometheus.Registry, enableProcess bool) Registers {
	if enableProcess {
		registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	}
	return &promRegistry{Registry: registry}
}

func (p *promRegistry) Gatherer() prometheus.Gatherer { return p.Registry }

// MetricFactory 指标工厂，用于统一创建并注册指标
type MetricFactory struct {
	reg Registers
}

func NewMetricFactory(reg Registers) *MetricFactory {
	return &MetricFactory{reg: reg}
}

func (m *MetricFactory) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: Namespace, Name: name, Help: help}, labels)
	m.reg.MustRegister(c)
	return c
}

func (m *MetricFactory) gauge(name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: Namespace, Name: name, Help: help})
	m.reg.MustRegister(g)
	return g
}
