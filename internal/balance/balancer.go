package balance

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/cubic461/Noodle-Core-sub003/internal/common"
	"github.com/cubic461/Noodle-Core-sub003/internal/model"
	"github.com/hashicorp/go-hclog"
)

// RequestRecord is one entry of the bounded selection history. Success and
// ResponseTime start at their defaults and are filled in later by
// RecordResult when the caller reports the outcome.
type RequestRecord struct {
	Timestamp    time.Time         `json:"timestamp"`
	SelectedNode string            `json:"selected_node"`
	Strategy     string            `json:"strategy"`
	Context      map[string]string `json:"request_context,omitempty"`
	Success      bool              `json:"success"`
	ResponseTime float64           `json:"response_time"`
}

// Stats summarizes recent selection activity. The success and response time
// figures cover the most recent thousand recorded selections.
type Stats struct {
	TotalRequests       int64   `json:"total_requests"`
	SuccessfulRequests  int     `json:"successful_requests"`
	FailedRequests      int     `json:"failed_requests"`
	AverageResponseTime float64 `json:"average_response_time"`
	Strategy            string  `json:"current_strategy"`
	TrackedNodes        int     `json:"tracked_nodes"`
}

// DistributionEntry is one node's slice of the current load distribution.
type DistributionEntry struct {
	model.NodeLoad
	RequestPercentage float64 `json:"request_percentage"`
}

// Balancer distributes work across nodes using a runtime switchable strategy.
// All state is guarded by one mutex; strategies run under it.
type Balancer struct {
	mu             sync.Mutex
	logger         hclog.Logger
	strategies     map[string]IBalancingStrategy
	strategyName   string
	nodeLoads      map[string]*model.NodeLoad
	weights        map[string]int
	requestHistory []RequestRecord
	totalRequests  int64
	rng            *rand.Rand
}

func NewBalancer(logger hclog.Logger) *Balancer {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	strategies := map[string]IBalancingStrategy{
		common.STRATEGY_ROUND_ROBIN:          &roundRobinStrategy{},
		common.STRATEGY_LEAST_CONNECTIONS:    &leastConnectionsStrategy{},
		common.STRATEGY_LEAST_RESPONSE_TIME:  &leastResponseTimeStrategy{},
		common.STRATEGY_RESOURCE_BASED:       &resourceBasedStrategy{},
		common.STRATEGY_WEIGHTED_ROUND_ROBIN: &weightedRoundRobinStrategy{rng: rng},
	}

	return &Balancer{
		logger:       logger,
		strategies:   strategies,
		strategyName: common.STRATEGY_RESOURCE_BASED,
		nodeLoads:    map[string]*model.NodeLoad{},
		weights:      map[string]int{},
		rng:          rng,
	}
}

// SelectNode picks a node for one unit of work out of availableNodes. Nodes
// without a recorded load snapshot are invisible to the strategies; if none
// of the available nodes has one, a uniform random pick is returned without
// touching the request history.
func (balancer *Balancer) SelectNode(availableNodes []string, requestContext map[string]string) (string, bool) {
	balancer.mu.Lock()
	defer balancer.mu.Unlock()

	if len(availableNodes) == 0 {
		return "", false
	}

	candidates := make([]Candidate, 0, len(availableNodes))
	for _, nodeId := range availableNodes {
		load, found := balancer.nodeLoads[nodeId]
		if found {
			candidates = append(candidates, Candidate{
				Id:     nodeId,
				Load:   *load,
				Weight: balancer.weights[nodeId],
			})
		}
	}
	if len(candidates) == 0 {
		return availableNodes[balancer.rng.Intn(len(availableNodes))], true
	}

	strategy := balancer.strategies[balancer.strategyName]
	selected := strategy.Select(candidates)

	balancer.requestHistory = common.AppendBounded(balancer.requestHistory, RequestRecord{
		Timestamp:    time.Now(),
		SelectedNode: selected,
		Strategy:     balancer.strategyName,
		Context:      requestContext,
		Success:      true,
	}, common.REQUEST_HISTORY_SIZE)
	balancer.totalRequests++

	return selected, true
}

// UpdateNodeLoad merges a partial load refresh into the node's snapshot,
// creating the snapshot on first report.
func (balancer *Balancer) UpdateNodeLoad(nodeId string, update model.LoadUpdate) {
	balancer.mu.Lock()
	defer balancer.mu.Unlock()

	load, found := balancer.nodeLoads[nodeId]
	if !found {
		load = &model.NodeLoad{}
		balancer.nodeLoads[nodeId] = load
	}
	update.Apply(load)
	load.LastUpdated = time.Now()
}

// RemoveNode drops the node's load snapshot and weight, typically on
// membership departure.
func (balancer *Balancer) RemoveNode(nodeId string) {
	balancer.mu.Lock()
	defer balancer.mu.Unlock()

	delete(balancer.nodeLoads, nodeId)
	delete(balancer.weights, nodeId)
}

// SetNodeWeight sets the weight used by weighted strategies, clamped to >= 0.
func (balancer *Balancer) SetNodeWeight(nodeId string, weight int) {
	balancer.mu.Lock()
	defer balancer.mu.Unlock()

	if weight < 0 {
		weight = 0
	}
	balancer.weights[nodeId] = weight
}

func (balancer *Balancer) RemoveNodeWeight(nodeId string) {
	balancer.mu.Lock()
	defer balancer.mu.Unlock()

	delete(balancer.weights, nodeId)
}

func (balancer *Balancer) NodeWeight(nodeId string) int {
	balancer.mu.Lock()
	defer balancer.mu.Unlock()

	return balancer.weights[nodeId]
}

// SetStrategy switches the active strategy by name.
func (balancer *Balancer) SetStrategy(name string) error {
	balancer.mu.Lock()
	defer balancer.mu.Unlock()

	_, found := balancer.strategies[name]
	if !found {
		return fmt.Errorf("unknown balancing strategy: %s", name)
	}
	if name != balancer.strategyName {
		balancer.logger.Info(fmt.Sprintf("Load balancing strategy changed to %s", name))
		balancer.strategyName = name
	}

	return nil
}

func (balancer *Balancer) Strategy() string {
	balancer.mu.Lock()
	defer balancer.mu.Unlock()

	return balancer.strategyName
}

// NodeLoads returns a copy of every tracked load snapshot.
func (balancer *Balancer) NodeLoads() map[string]model.NodeLoad {
	balancer.mu.Lock()
	defer balancer.mu.Unlock()

	loads := make(map[string]model.NodeLoad, len(balancer.nodeLoads))
	for nodeId, load := range balancer.nodeLoads {
		loads[nodeId] = *load
	}

	return loads
}

// LoadDistribution reports per-node load together with each node's share of
// the total recorded request count.
func (balancer *Balancer) LoadDistribution() map[string]DistributionEntry {
	balancer.mu.Lock()
	defer balancer.mu.Unlock()

	var totalRequests int64
	for _, load := range balancer.nodeLoads {
		totalRequests += load.RequestCount
	}

	distribution := make(map[string]DistributionEntry, len(balancer.nodeLoads))
	for nodeId, load := range balancer.nodeLoads {
		entry := DistributionEntry{NodeLoad: *load}
		if totalRequests > 0 {
			entry.RequestPercentage = float64(load.RequestCount) / float64(totalRequests) * 100.0
		}
		distribution[nodeId] = entry
	}

	return distribution
}

// RecordResult reports the outcome of work dispatched to a node, annotating
// the newest history record for that node. Returns false when no record for
// the node exists.
func (balancer *Balancer) RecordResult(nodeId string, success bool, responseTime float64) bool {
	balancer.mu.Lock()
	defer balancer.mu.Unlock()

	for i := len(balancer.requestHistory) - 1; i >= 0; i-- {
		if balancer.requestHistory[i].SelectedNode == nodeId {
			balancer.requestHistory[i].Success = success
			balancer.requestHistory[i].ResponseTime = responseTime
			return true
		}
	}

	return false
}

// Stats computes summary statistics over the recent request history.
func (balancer *Balancer) Stats() Stats {
	balancer.mu.Lock()
	defer balancer.mu.Unlock()

	recent := balancer.requestHistory
	if len(recent) > 1000 {
		recent = recent[len(recent)-1000:]
	}

	successful := 0
	responseTimes := make([]float64, 0, len(recent))
	for _, record := range recent {
		if record.Success {
			successful++
		}
		responseTimes = append(responseTimes, record.ResponseTime)
	}

	return Stats{
		TotalRequests:       balancer.totalRequests,
		SuccessfulRequests:  successful,
		FailedRequests:      len(recent) - successful,
		AverageResponseTime: common.CalculateAverageFloat64(responseTimes),
		Strategy:            balancer.strategyName,
		TrackedNodes:        len(balancer.nodeLoads),
	}
}
