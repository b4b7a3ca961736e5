package balance

import (
	"math/rand"

	"github.com/cubic461/Noodle-Core-sub003/internal/common"
	"github.com/cubic461/Noodle-Core-sub003/internal/model"
)

// Candidate is one selectable node together with the runtime state the
// strategies score on. Weight is only meaningful for weighted strategies.
type Candidate struct {
	Id     string
	Load   model.NodeLoad
	Weight int
}

// IBalancingStrategy picks one node out of a non-empty candidate list. The
// balancer serializes calls, so implementations may keep internal state.
type IBalancingStrategy interface {
	Name() string
	Select(candidates []Candidate) string
}

type roundRobinStrategy struct {
	index int
}

func (strategy *roundRobinStrategy) Name() string {
	return common.STRATEGY_ROUND_ROBIN
}

func (strategy *roundRobinStrategy) Select(candidates []Candidate) string {
	selected := candidates[strategy.index%len(candidates)]
	strategy.index++
	return selected.Id
}

type leastConnectionsStrategy struct{}

func (strategy *leastConnectionsStrategy) Name() string {
	return common.STRATEGY_LEAST_CONNECTIONS
}

func (strategy *leastConnectionsStrategy) Select(candidates []Candidate) string {
	best := candidates[0]
	for _, candidate := range candidates[1:] {
		if candidate.Load.ActiveConnections < best.Load.ActiveConnections {
			best = candidate
		}
	}
	return best.Id
}

type leastResponseTimeStrategy struct{}

func (strategy *leastResponseTimeStrategy) Name() string {
	return common.STRATEGY_LEAST_RESPONSE_TIME
}

func (strategy *leastResponseTimeStrategy) Select(candidates []Candidate) string {
	best := candidates[0]
	for _, candidate := range candidates[1:] {
		if candidate.Load.ResponseTime < best.Load.ResponseTime {
			best = candidate
		}
	}
	return best.Id
}

type resourceBasedStrategy struct{}

func (strategy *resourceBasedStrategy) Name() string {
	return common.STRATEGY_RESOURCE_BASED
}

// resourceScore blends utilization into one figure, lower is better. Cpu and
// memory are percentages; the response time term saturates at one second.
func resourceScore(load model.NodeLoad) float64 {
	responseTerm := load.ResponseTime / 1000.0
	if responseTerm > 1.0 {
		responseTerm = 1.0
	}
	return 0.3*(load.CpuUsage/100.0) +
		0.3*(load.MemoryUsage/100.0) +
		0.2*(float64(load.ActiveConnections)/100.0) +
		0.2*responseTerm
}

func (strategy *resourceBasedStrategy) Select(candidates []Candidate) string {
	best := candidates[0]
	bestScore := resourceScore(best.Load)
	for _, candidate := range candidates[1:] {
		if score := resourceScore(candidate.Load); score < bestScore {
			best = candidate
			bestScore = score
		}
	}
	return best.Id
}

type weightedRoundRobinStrategy struct {
	rng *rand.Rand
}

func (strategy *weightedRoundRobinStrategy) Name() string {
	return common.STRATEGY_WEIGHTED_ROUND_ROBIN
}

func (strategy *weightedRoundRobinStrategy) Select(candidates []Candidate) string {
	totalWeight := 0
	for _, candidate := range candidates {
		totalWeight += candidate.Weight
	}
	if totalWeight == 0 {
		return candidates[strategy.rng.Intn(len(candidates))].Id
	}

	r := strategy.rng.Float64() * float64(totalWeight)
	cumulative := 0.0
	for _, candidate := range candidates {
		cumulative += float64(candidate.Weight)
		if r <= cumulative {
			return candidate.Id
		}
	}
	return candidates[len(candidates)-1].Id
}
