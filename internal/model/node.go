package model

import (
	"math"
	"time"
)

// Node is a participant compute host tracked by the mesh.
type Node struct {
	Id           string
	Hostname     string
	Capabilities map[string]string // capability name -> value
	Metrics      NodeMetrics
}

// NodeMetrics is the health/performance bundle for a node. Usage fields are
// fractions (0.0-1.0), latency and response time are milliseconds, bandwidth
// is Mbps.
type NodeMetrics struct {
	Latency       float64
	CpuUsage      float64
	MemoryUsage   float64
	GpuUsage      float64
	BandwidthUp   float64
	BandwidthDown float64
	PacketLoss    float64
	Uptime        float64
	ResponseTime  float64
	ErrorRate     float64
	Reliability   float64
	LastUpdated   time.Time
}

// NewNodeMetrics returns a metrics bundle for a node that has just joined:
// fully up, fully reliable, nothing measured yet.
func NewNodeMetrics() NodeMetrics {
	return NodeMetrics{
		Uptime:      1.0,
		Reliability: 1.0,
		LastUpdated: time.Now(),
	}
}

// QualityScore is the composite 0-1 health score, higher is better. Latency
// normalizes against 100ms, response time against 50ms, uptime contributes as
// downtime.
func (m NodeMetrics) QualityScore() float64 {
	latencyScore := math.Min(m.Latency/100.0, 1.0)
	responseScore := math.Min(m.ResponseTime/50.0, 1.0)

	weighted := latencyScore*0.20 +
		m.CpuUsage*0.15 +
		m.MemoryUsage*0.15 +
		m.GpuUsage*0.10 +
		m.PacketLoss*0.15 +
		(1.0-m.Uptime)*0.10 +
		responseScore*0.10 +
		m.ErrorRate*0.05

	weighted = math.Min(math.Max(weighted, 0.0), 1.0)

	return 1.0 - weighted
}

// IsHealthy reports whether every health cutoff holds. A single violation
// makes the node unhealthy.
func (m NodeMetrics) IsHealthy(maxLatency float64, minQuality float64) bool {
	return m.Latency <= maxLatency &&
		m.CpuUsage < 0.9 &&
		m.MemoryUsage < 0.9 &&
		m.PacketLoss < 0.05 &&
		m.Uptime > 0.95 &&
		m.ErrorRate < 0.01 &&
		m.QualityScore() >= minQuality
}

// MetricsUpdate carries a partial metrics refresh; nil fields keep the prior
// value.
type MetricsUpdate struct {
	Latency       *float64
	CpuUsage      *float64
	MemoryUsage   *float64
	GpuUsage      *float64
	BandwidthUp   *float64
	BandwidthDown *float64
	PacketLoss    *float64
	Uptime        *float64
	ResponseTime  *float64
	ErrorRate     *float64
	Reliability   *float64
}

// Apply merges the set fields into the metrics bundle.
func (u MetricsUpdate) Apply(m *NodeMetrics) {
	if u.Latency != nil {
		m.Latency = *u.Latency
	}
	if u.CpuUsage != nil {
		m.CpuUsage = *u.CpuUsage
	}
	if u.MemoryUsage != nil {
		m.MemoryUsage = *u.MemoryUsage
	}
	if u.GpuUsage != nil {
		m.GpuUsage = *u.GpuUsage
	}
	if u.BandwidthUp != nil {
		m.BandwidthUp = *u.BandwidthUp
	}
	if u.BandwidthDown != nil {
		m.BandwidthDown = *u.BandwidthDown
	}
	if u.PacketLoss != nil {
		m.PacketLoss = *u.PacketLoss
	}
	if u.Uptime != nil {
		m.Uptime = *u.Uptime
	}
	if u.ResponseTime != nil {
		m.ResponseTime = *u.ResponseTime
	}
	if u.ErrorRate != nil {
		m.ErrorRate = *u.ErrorRate
	}
	if u.Reliability != nil {
		m.Reliability = *u.Reliability
	}
}

// ToMap flattens the set fields into the wire form used by mesh_metrics
// messages.
func (u MetricsUpdate) ToMap() map[string]float64 {
	fields := make(map[string]float64)
	put := func(key string, value *float64) {
		if value != nil {
			fields[key] = *value
		}
	}
	put("latency", u.Latency)
	put("cpu_usage", u.CpuUsage)
	put("memory_usage", u.MemoryUsage)
	put("gpu_usage", u.GpuUsage)
	put("bandwidth_up", u.BandwidthUp)
	put("bandwidth_down", u.BandwidthDown)
	put("packet_loss", u.PacketLoss)
	put("uptime", u.Uptime)
	put("response_time", u.ResponseTime)
	put("error_rate", u.ErrorRate)
	put("reliability", u.Reliability)
	return fields
}

// MetricsUpdateFromMap parses the wire form back into an update; unknown keys
// are ignored.
func MetricsUpdateFromMap(fields map[string]float64) MetricsUpdate {
	update := MetricsUpdate{}
	for key, value := range fields {
		v := value
		switch key {
		case "latency":
			update.Latency = &v
		case "cpu_usage":
			update.CpuUsage = &v
		case "memory_usage":
			update.MemoryUsage = &v
		case "gpu_usage":
			update.GpuUsage = &v
		case "bandwidth_up":
			update.BandwidthUp = &v
		case "bandwidth_down":
			update.BandwidthDown = &v
		case "packet_loss":
			update.PacketLoss = &v
		case "uptime":
			update.Uptime = &v
		case "response_time":
			update.ResponseTime = &v
		case "error_rate":
			update.ErrorRate = &v
		case "reliability":
			update.Reliability = &v
		}
	}
	return update
}
