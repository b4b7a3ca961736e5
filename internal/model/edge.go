package model

import (
	"math"
	"time"
)

// Edge is a measured directed connection between two nodes.
type Edge struct {
	FromNode    string
	ToNode      string
	Latency     float64 // ms
	Bandwidth   float64 // Mbps
	Reliability float64 // 0.0-1.0
	LastUpdated time.Time
}

// Weight derives the routing cost of the edge; lower is better. Latency
// dominates, low bandwidth and unreliability add penalty.
func (e Edge) Weight() float64 {
	return e.Latency/100.0 + 1.0/math.Max(e.Bandwidth, 1.0) + (1.0 - e.Reliability)
}

// LinkMetrics is a single pairwise connectivity measurement.
type LinkMetrics struct {
	Latency     float64
	Bandwidth   float64
	Reliability float64
}
