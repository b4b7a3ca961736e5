package model

import (
	"math"
	"testing"
)

func TestQualityScoreStaysInRange(t *testing.T) {
	cases := []struct {
		name    string
		metrics NodeMetrics
	}{
		{"fresh node", NewNodeMetrics()},
		{"saturated", NodeMetrics{Latency: 1000, CpuUsage: 1, MemoryUsage: 1, GpuUsage: 1, PacketLoss: 1, Uptime: 0, ResponseTime: 1000, ErrorRate: 1}},
		{"over range latency", NodeMetrics{Latency: 1e9, Uptime: 1}},
		{"over range response time", NodeMetrics{ResponseTime: 1e9, Uptime: 1}},
		{"mixed", NodeMetrics{Latency: 30, CpuUsage: 0.4, MemoryUsage: 0.6, GpuUsage: 0.2, PacketLoss: 0.01, Uptime: 0.97, ResponseTime: 12, ErrorRate: 0.002}},
	}

	for _, testCase := range cases {
		got := testCase.metrics.QualityScore()
		if got < 0.0 || got > 1.0 {
			t.Errorf("%s: QualityScore() = %v, want within [0, 1]", testCase.name, got)
		}
	}
}

func TestQualityScoreKnownValues(t *testing.T) {
	perfect := NewNodeMetrics()
	if got := perfect.QualityScore(); got != 1.0 {
		t.Errorf("QualityScore(fresh node) = %v, want 1.0", got)
	}

	// latency 50ms contributes 0.5 * 0.20, everything else ideal
	halfLatency := NewNodeMetrics()
	halfLatency.Latency = 50
	if got := halfLatency.QualityScore(); math.Abs(got-0.9) > 1e-9 {
		t.Errorf("QualityScore(latency 50) = %v, want 0.9", got)
	}

	saturated := NodeMetrics{Latency: 1000, CpuUsage: 1, MemoryUsage: 1, GpuUsage: 1, PacketLoss: 1, Uptime: 0, ResponseTime: 1000, ErrorRate: 1}
	if got := saturated.QualityScore(); got > 1e-9 {
		t.Errorf("QualityScore(saturated) = %v, want 0", got)
	}
}

func TestIsHealthySingleViolation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*NodeMetrics)
		want   bool
	}{
		{"all ideal", func(m *NodeMetrics) {}, true},
		{"latency over max", func(m *NodeMetrics) { m.Latency = 60 }, false},
		{"cpu at 0.95", func(m *NodeMetrics) { m.CpuUsage = 0.95 }, false},
		{"memory at 0.92", func(m *NodeMetrics) { m.MemoryUsage = 0.92 }, false},
		{"packet loss at 0.06", func(m *NodeMetrics) { m.PacketLoss = 0.06 }, false},
		{"uptime at 0.9", func(m *NodeMetrics) { m.Uptime = 0.9 }, false},
		{"error rate at 0.02", func(m *NodeMetrics) { m.ErrorRate = 0.02 }, false},
	}

	for _, testCase := range cases {
		metrics := NewNodeMetrics()
		testCase.mutate(&metrics)

		if got := metrics.IsHealthy(50.0, 0.7); got != testCase.want {
			t.Errorf("%s: IsHealthy() = %v, want %v", testCase.name, got, testCase.want)
		}
	}
}

func TestIsHealthyQualityCutoff(t *testing.T) {
	// every hard cutoff passes, but the composite score lands below 0.7
	metrics := NewNodeMetrics()
	metrics.Latency = 45
	metrics.ResponseTime = 50
	metrics.CpuUsage = 0.5
	metrics.MemoryUsage = 0.5
	metrics.GpuUsage = 0.9
	metrics.PacketLoss = 0.04
	metrics.Uptime = 0.96
	metrics.ErrorRate = 0.009

	if quality := metrics.QualityScore(); quality >= 0.7 {
		t.Fatalf("QualityScore() = %v, expected below 0.7 for this bundle", quality)
	}
	if metrics.IsHealthy(50.0, 0.7) {
		t.Error("IsHealthy() = true for a node below the quality cutoff")
	}
}
