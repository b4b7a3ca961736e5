package probe

import (
	"context"
	"testing"
)

func TestNodeMetricsStayInRange(t *testing.T) {
	source := NewSeededSimulatedSource(1)

	for i := 0; i < 100; i++ {
		update, err := source.NodeMetrics(context.Background(), "n1")
		if err != nil {
			t.Fatal(err)
		}

		checks := []struct {
			name  string
			value *float64
			low   float64
			high  float64
		}{
			{"latency", update.Latency, 5.0, 50.0},
			{"cpu_usage", update.CpuUsage, 0.1, 0.8},
			{"memory_usage", update.MemoryUsage, 0.2, 0.7},
			{"gpu_usage", update.GpuUsage, 0.0, 0.9},
			{"bandwidth_up", update.BandwidthUp, 10.0, 500.0},
			{"bandwidth_down", update.BandwidthDown, 10.0, 500.0},
			{"packet_loss", update.PacketLoss, 0.0, 0.02},
			{"uptime", update.Uptime, 0.95, 1.0},
			{"response_time", update.ResponseTime, 1.0, 20.0},
			{"error_rate", update.ErrorRate, 0.0, 0.005},
		}
		for _, check := range checks {
			if check.value == nil {
				t.Fatalf("%s not set", check.name)
			}
			if *check.value < check.low || *check.value > check.high {
				t.Errorf("%s = %v, want within [%v, %v]", check.name, *check.value, check.low, check.high)
			}
		}
	}
}

func TestLinkMetricsStayInRange(t *testing.T) {
	source := NewSeededSimulatedSource(2)

	for i := 0; i < 100; i++ {
		link, err := source.LinkMetrics(context.Background(), "a", "b")
		if err != nil {
			t.Fatal(err)
		}

		if link.Latency < 1.0 || link.Latency > 12.0 {
			t.Errorf("latency = %v, want within [1, 12]", link.Latency)
		}
		if link.Bandwidth < 1.0 || link.Bandwidth > 110.0 {
			t.Errorf("bandwidth = %v, want within [1, 110]", link.Bandwidth)
		}
		if link.Reliability < 0.9 || link.Reliability > 1.0 {
			t.Errorf("reliability = %v, want within [0.9, 1]", link.Reliability)
		}
	}
}

func TestSeededSourceIsDeterministic(t *testing.T) {
	first := NewSeededSimulatedSource(42)
	second := NewSeededSimulatedSource(42)

	firstUpdate, err := first.NodeMetrics(context.Background(), "n1")
	if err != nil {
		t.Fatal(err)
	}
	secondUpdate, err := second.NodeMetrics(context.Background(), "n1")
	if err != nil {
		t.Fatal(err)
	}

	if *firstUpdate.Latency != *secondUpdate.Latency {
		t.Errorf("same seed produced different latencies: %v and %v", *firstUpdate.Latency, *secondUpdate.Latency)
	}
}
