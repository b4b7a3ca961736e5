package topology

import (
	"fmt"

	"github.com/cubic461/Noodle-Core-sub003/internal/common"
	"github.com/cubic461/Noodle-Core-sub003/internal/model"
)

// taskScore rates a healthy candidate for a task type; higher is better.
// Unknown task types fall back to the plain quality score.
func taskScore(taskType string, metrics model.NodeMetrics) float64 {
	quality := metrics.QualityScore()

	switch taskType {
	case common.TASK_TYPE_AI_INFERENCE:
		return 0.7*quality + 0.3*(1.0-metrics.GpuUsage)
	case common.TASK_TYPE_DATA_PROCESSING:
		return 0.6*quality + 0.2*(1.0-metrics.CpuUsage) + 0.2*(1.0-metrics.MemoryUsage)
	case common.TASK_TYPE_STORAGE:
		// bandwidth term is deliberately uncapped, storage favors big pipes
		return 0.5*quality + 0.3*(metrics.BandwidthDown/1000.0) + 0.2*metrics.Reliability
	default:
		return quality
	}
}

// BestNodeForTask returns the healthy node with the highest task score,
// skipping excluded nodes and nodes missing a required capability. Returns
// false when no candidate survives the filters.
func (g *Graph) BestNodeForTask(taskType string, requiredCapabilities []string, excludeNodes []string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	excluded := make(map[string]bool, len(excludeNodes))
	for _, nodeId := range excludeNodes {
		excluded[nodeId] = true
	}

	bestNodeId := ""
	bestScore := -1.0

	for nodeId, node := range g.nodes {
		if excluded[nodeId] {
			continue
		}
		if !hasCapabilities(node, requiredCapabilities) {
			continue
		}
		if !node.Metrics.IsHealthy(g.policy.MaxLatency, g.policy.MinQuality) {
			continue
		}

		score := taskScore(taskType, node.Metrics)
		if score > bestScore {
			bestScore = score
			bestNodeId = nodeId
		}
	}

	if bestNodeId == "" {
		g.logger.Debug(fmt.Sprintf("No suitable node for task type %s", taskType))
		return "", false
	}

	return bestNodeId, true
}

func hasCapabilities(node *model.Node, required []string) bool {
	for _, capability := range required {
		if _, found := node.Capabilities[capability]; !found {
			return false
		}
	}
	return true
}
