package monitor

// IMetricsRecorder receives operational counters and gauges from the mesh
// components. Implementations decide the export format.
type IMetricsRecorder interface {
	RecordMetric(name string, value float64, labels map[string]string)
}

// NopRecorder drops every measurement.
type NopRecorder struct{}

func NewNopRecorder() *NopRecorder {
	return &NopRecorder{}
}

func (recorder *NopRecorder) RecordMetric(name string, value float64, labels map[string]string) {
}
