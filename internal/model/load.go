package model

import "time"

// NodeLoad is the current workload snapshot of a node as seen by the load
// balancer. CpuUsage and MemoryUsage are percentages (0-100), independent of
// the fraction-based health metrics on NodeMetrics.
type NodeLoad struct {
	CpuUsage          float64   `json:"cpu_usage"`
	MemoryUsage       float64   `json:"memory_usage"`
	RequestCount      int64     `json:"request_count"`
	ResponseTime      float64   `json:"response_time"`
	ErrorRate         float64   `json:"error_rate"`
	Throughput        float64   `json:"throughput"`
	ActiveConnections int       `json:"active_connections"`
	QueueSize         int       `json:"queue_size"`
	LastUpdated       time.Time `json:"last_updated"`
}

// LoadUpdate carries a partial load refresh; nil fields keep the prior value.
type LoadUpdate struct {
	CpuUsage          *float64
	MemoryUsage       *float64
	RequestCount      *int64
	ResponseTime      *float64
	ErrorRate         *float64
	Throughput        *float64
	ActiveConnections *int
	QueueSize         *int
}

// Apply merges the set fields into the snapshot.
func (u LoadUpdate) Apply(l *NodeLoad) {
	if u.CpuUsage != nil {
		l.CpuUsage = *u.CpuUsage
	}
	if u.MemoryUsage != nil {
		l.MemoryUsage = *u.MemoryUsage
	}
	if u.RequestCount != nil {
		l.RequestCount = *u.RequestCount
	}
	if u.ResponseTime != nil {
		l.ResponseTime = *u.ResponseTime
	}
	if u.ErrorRate != nil {
		l.ErrorRate = *u.ErrorRate
	}
	if u.Throughput != nil {
		l.Throughput = *u.Throughput
	}
	if u.ActiveConnections != nil {
		l.ActiveConnections = *u.ActiveConnections
	}
	if u.QueueSize != nil {
		l.QueueSize = *u.QueueSize
	}
}

// LoadUpdateFromMap parses a flat field map into an update; unknown keys are
// ignored.
func LoadUpdateFromMap(fields map[string]float64) LoadUpdate {
	update := LoadUpdate{}
	for key, value := range fields {
		v := value
		switch key {
		case "cpu_usage":
			update.CpuUsage = &v
		case "memory_usage":
			update.MemoryUsage = &v
		case "request_count":
			count := int64(v)
			update.RequestCount = &count
		case "response_time":
			update.ResponseTime = &v
		case "error_rate":
			update.ErrorRate = &v
		case "throughput":
			update.Throughput = &v
		case "active_connections":
			connections := int(v)
			update.ActiveConnections = &connections
		case "queue_size":
			size := int(v)
			update.QueueSize = &size
		}
	}
	return update
}
