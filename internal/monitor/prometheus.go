package monitor

import (
	"fmt"
	"net/http"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricKind int

const (
	counterKind metricKind = iota
	gaugeKind
)

type registeredMetric struct {
	kind    metricKind
	counter *prometheus.CounterVec
	gauge   *prometheus.GaugeVec
	labels  []string
}

// PrometheusRecorder exports the mesh metric set through a dedicated
// Prometheus registry. Counter metrics add the reported value, gauge metrics
// set it. Reports for names outside the registered set are dropped.
type PrometheusRecorder struct {
	logger   hclog.Logger
	registry *prometheus.Registry
	metrics  map[string]*registeredMetric
}

func NewPrometheusRecorder(logger hclog.Logger) *PrometheusRecorder {
	recorder := &PrometheusRecorder{
		logger:   logger,
		registry: prometheus.NewRegistry(),
		metrics:  map[string]*registeredMetric{},
	}

	recorder.registerCounter("mesh_routes_calculated_total", "Total route lookups that found a path.", nil)
	recorder.registerCounter("mesh_routes_failed_total", "Total route lookups that found no path.", nil)
	recorder.registerCounter("mesh_best_node_selections_total", "Total task placement lookups.", nil)
	recorder.registerCounter("mesh_topology_updates_total", "Completed topology sync cycles.", nil)
	recorder.registerCounter("mesh_metrics_updates_total", "Completed metrics collection cycles.", nil)
	recorder.registerCounter("scaling_decisions_total", "Executed scaling decisions.", []string{"action", "status"})
	recorder.registerCounter("scaling_suppressed_total", "Scaling proposals suppressed by cooldown.", []string{"action"})
	recorder.registerGauge("mesh_nodes", "Nodes currently tracked in the topology.", nil)
	recorder.registerGauge("mesh_edges", "Directed edges currently tracked in the topology.", nil)
	recorder.registerGauge("load_request_share", "Per node share of recorded requests in percent.", []string{"node"})

	return recorder
}

func (recorder *PrometheusRecorder) registerCounter(name string, help string, labels []string) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	recorder.registry.MustRegister(counter)
	recorder.metrics[name] = &registeredMetric{kind: counterKind, counter: counter, labels: labels}
}

func (recorder *PrometheusRecorder) registerGauge(name string, help string, labels []string) {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
	recorder.registry.MustRegister(gauge)
	recorder.metrics[name] = &registeredMetric{kind: gaugeKind, gauge: gauge, labels: labels}
}

func (recorder *PrometheusRecorder) RecordMetric(name string, value float64, labels map[string]string) {
	metric, found := recorder.metrics[name]
	if !found {
		recorder.logger.Debug(fmt.Sprintf("Dropping report for unregistered metric %s", name))
		return
	}

	values := make([]string, len(metric.labels))
	for i, label := range metric.labels {
		values[i] = labels[label]
	}

	switch metric.kind {
	case counterKind:
		metric.counter.WithLabelValues(values...).Add(value)
	case gaugeKind:
		metric.gauge.WithLabelValues(values...).Set(value)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (recorder *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(recorder.registry, promhttp.HandlerOpts{})
}
