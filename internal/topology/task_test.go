package topology

import (
	"testing"

	"github.com/cubic461/Noodle-Core-sub003/internal/common"
	"github.com/cubic461/Noodle-Core-sub003/internal/model"
)

func addNodeWithGpu(g *Graph, nodeId string, gpuUsage float64, capabilities map[string]string) {
	metrics := model.NewNodeMetrics()
	metrics.GpuUsage = gpuUsage
	g.AddNode(&model.Node{
		Id:           nodeId,
		Capabilities: capabilities,
		Metrics:      metrics,
	})
}

func TestBestNodeForTaskPrefersIdleGpu(t *testing.T) {
	g := newTestGraph()
	addNodeWithGpu(g, "busy", 0.9, nil)
	addNodeWithGpu(g, "idle", 0.1, nil)

	got, found := g.BestNodeForTask(common.TASK_TYPE_AI_INFERENCE, nil, nil)
	if !found {
		t.Fatal("BestNodeForTask found no node")
	}
	if got != "idle" {
		t.Errorf("BestNodeForTask = %q, want idle", got)
	}
}

func TestBestNodeForTaskFiltersCapabilities(t *testing.T) {
	g := newTestGraph()
	addNodeWithGpu(g, "plain", 0.1, nil)
	addNodeWithGpu(g, "cuda", 0.5, map[string]string{"gpu": "cuda"})

	got, found := g.BestNodeForTask(common.TASK_TYPE_AI_INFERENCE, []string{"gpu"}, nil)
	if !found {
		t.Fatal("BestNodeForTask found no node")
	}
	if got != "cuda" {
		t.Errorf("BestNodeForTask = %q, want cuda", got)
	}
}

func TestBestNodeForTaskHonorsExcludes(t *testing.T) {
	g := newTestGraph()
	addNodeWithGpu(g, "first", 0.1, nil)
	addNodeWithGpu(g, "second", 0.5, nil)

	got, found := g.BestNodeForTask(common.TASK_TYPE_AI_INFERENCE, nil, []string{"first"})
	if !found {
		t.Fatal("BestNodeForTask found no node")
	}
	if got != "second" {
		t.Errorf("BestNodeForTask = %q, want second", got)
	}
}

func TestBestNodeForTaskSkipsUnhealthy(t *testing.T) {
	g := newTestGraph()
	addNodeWithGpu(g, "healthy", 0.5, nil)

	overloaded := model.NewNodeMetrics()
	overloaded.GpuUsage = 0.0
	overloaded.CpuUsage = 0.95
	g.AddNode(&model.Node{Id: "overloaded", Metrics: overloaded})

	got, found := g.BestNodeForTask(common.TASK_TYPE_AI_INFERENCE, nil, nil)
	if !found {
		t.Fatal("BestNodeForTask found no node")
	}
	if got != "healthy" {
		t.Errorf("BestNodeForTask = %q, want healthy", got)
	}
}

func TestBestNodeForTaskNoCandidates(t *testing.T) {
	g := newTestGraph()
	addNodeWithGpu(g, "only", 0.1, nil)

	if _, found := g.BestNodeForTask(common.TASK_TYPE_AI_INFERENCE, nil, []string{"only"}); found {
		t.Error("BestNodeForTask reported a node with every candidate excluded")
	}
}

func TestTaskScoreStorageFavorsBandwidth(t *testing.T) {
	g := newTestGraph()

	slow := model.NewNodeMetrics()
	slow.BandwidthDown = 10.0
	g.AddNode(&model.Node{Id: "slow", Metrics: slow})

	fast := model.NewNodeMetrics()
	fast.BandwidthDown = 900.0
	g.AddNode(&model.Node{Id: "fast", Metrics: fast})

	got, found := g.BestNodeForTask(common.TASK_TYPE_STORAGE, nil, nil)
	if !found {
		t.Fatal("BestNodeForTask found no node")
	}
	if got != "fast" {
		t.Errorf("BestNodeForTask = %q, want fast", got)
	}
}

func TestTaskScoreDataProcessingFavorsIdleCpu(t *testing.T) {
	g := newTestGraph()

	loaded := model.NewNodeMetrics()
	loaded.CpuUsage = 0.8
	loaded.MemoryUsage = 0.8
	g.AddNode(&model.Node{Id: "loaded", Metrics: loaded})

	idle := model.NewNodeMetrics()
	idle.CpuUsage = 0.1
	idle.MemoryUsage = 0.1
	g.AddNode(&model.Node{Id: "idle", Metrics: idle})

	got, found := g.BestNodeForTask(common.TASK_TYPE_DATA_PROCESSING, nil, nil)
	if !found {
		t.Fatal("BestNodeForTask found no node")
	}
	if got != "idle" {
		t.Errorf("BestNodeForTask = %q, want idle", got)
	}
}
