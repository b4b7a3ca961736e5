package probe

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/cubic461/Noodle-Core-sub003/internal/model"
)

// IMetricsSource supplies health measurements for nodes and links. Real
// sources perform network I/O, so both calls take a context.
type IMetricsSource interface {
	NodeMetrics(ctx context.Context, nodeId string) (model.MetricsUpdate, error)
	LinkMetrics(ctx context.Context, fromNode string, toNode string) (model.LinkMetrics, error)
}

// SimulatedSource draws measurements with bounded jitter: node metrics
// uniform within fixed ranges, link metrics around the 10ms/100Mbps/0.99
// baselines. Production sources must keep the same units.
type SimulatedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulatedSource() *SimulatedSource {
	return NewSeededSimulatedSource(time.Now().UnixNano())
}

// NewSeededSimulatedSource fixes the random sequence for reproducible runs.
func NewSeededSimulatedSource(seed int64) *SimulatedSource {
	return &SimulatedSource{rng: rand.New(rand.NewSource(seed))}
}

func (source *SimulatedSource) uniform(low float64, high float64) float64 {
	return low + source.rng.Float64()*(high-low)
}

func f64ptr(v float64) *float64 {
	return &v
}

func (source *SimulatedSource) NodeMetrics(ctx context.Context, nodeId string) (model.MetricsUpdate, error) {
	source.mu.Lock()
	defer source.mu.Unlock()

	return model.MetricsUpdate{
		Latency:       f64ptr(source.uniform(5.0, 50.0)),
		CpuUsage:      f64ptr(source.uniform(0.1, 0.8)),
		MemoryUsage:   f64ptr(source.uniform(0.2, 0.7)),
		GpuUsage:      f64ptr(source.uniform(0.0, 0.9)),
		BandwidthUp:   f64ptr(source.uniform(10.0, 500.0)),
		BandwidthDown: f64ptr(source.uniform(10.0, 500.0)),
		PacketLoss:    f64ptr(source.uniform(0.0, 0.02)),
		Uptime:        f64ptr(source.uniform(0.95, 1.0)),
		ResponseTime:  f64ptr(source.uniform(1.0, 20.0)),
		ErrorRate:     f64ptr(source.uniform(0.0, 0.005)),
	}, nil
}

func (source *SimulatedSource) LinkMetrics(ctx context.Context, fromNode string, toNode string) (model.LinkMetrics, error) {
	source.mu.Lock()
	defer source.mu.Unlock()

	latency := 10.0 + source.uniform(-2.0, 2.0)
	if latency < 1.0 {
		latency = 1.0
	}

	bandwidth := 100.0 + source.uniform(-10.0, 10.0)
	if bandwidth < 1.0 {
		bandwidth = 1.0
	}

	reliability := 0.99 + source.uniform(-0.01, 0.01)
	if reliability > 1.0 {
		reliability = 1.0
	}
	if reliability < 0.9 {
		reliability = 0.9
	}

	return model.LinkMetrics{
		Latency:     latency,
		Bandwidth:   bandwidth,
		Reliability: reliability,
	}, nil
}
