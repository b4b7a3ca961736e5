package topology

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cubic461/Noodle-Core-sub003/internal/model"
	"github.com/hashicorp/go-hclog"
)

// HealthPolicy holds the configurable health cutoffs; the remaining cutoffs
// are fixed in model.NodeMetrics.IsHealthy.
type HealthPolicy struct {
	MaxLatency float64
	MinQuality float64
}

// Graph is the live mesh topology: nodes with health metrics and directed
// weighted edges. Safe for concurrent use from the orchestrator loops and API
// callers.
type Graph struct {
	mu        sync.RWMutex
	nodes     map[string]*model.Node
	edges     map[string]map[string]*model.Edge // from -> to -> edge
	adjacency map[string]map[string]bool
	policy    HealthPolicy
	logger    hclog.Logger
}

func NewGraph(policy HealthPolicy, logger hclog.Logger) *Graph {
	return &Graph{
		nodes:     make(map[string]*model.Node),
		edges:     make(map[string]map[string]*model.Edge),
		adjacency: make(map[string]map[string]bool),
		policy:    policy,
		logger:    logger,
	}
}

// AddNode inserts or replaces a node. Zero reliability and a zero timestamp
// are treated as unset and defaulted.
func (g *Graph) AddNode(node *model.Node) {
	g.mu.Lock()
	defer g.mu.Unlock()

	copied := *node
	if copied.Metrics.Reliability == 0 {
		copied.Metrics.Reliability = 1.0
	}
	if copied.Metrics.LastUpdated.IsZero() {
		copied.Metrics.LastUpdated = time.Now()
	}

	g.nodes[copied.Id] = &copied
	if g.adjacency[copied.Id] == nil {
		g.adjacency[copied.Id] = make(map[string]bool)
	}

	g.logger.Debug(fmt.Sprintf("Added node %s to topology", copied.Id))
}

// RemoveNode deletes a node and every edge touching it, in both directions.
func (g *Graph) RemoveNode(nodeId string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, found := g.nodes[nodeId]; !found {
		return false
	}

	delete(g.nodes, nodeId)
	delete(g.edges, nodeId)
	for _, targets := range g.edges {
		delete(targets, nodeId)
	}

	delete(g.adjacency, nodeId)
	for _, neighbors := range g.adjacency {
		delete(neighbors, nodeId)
	}

	g.logger.Debug(fmt.Sprintf("Removed node %s from topology", nodeId))

	return true
}

// AddEdge inserts or updates a directed edge and records both endpoints as
// adjacent. Returns false when either endpoint is unknown.
func (g *Graph) AddEdge(fromNodeId string, toNodeId string, latency float64, bandwidth float64, reliability float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, found := g.nodes[fromNodeId]; !found {
		g.logger.Warn(fmt.Sprintf("Cannot add edge, unknown node %s", fromNodeId))
		return false
	}
	if _, found := g.nodes[toNodeId]; !found {
		g.logger.Warn(fmt.Sprintf("Cannot add edge, unknown node %s", toNodeId))
		return false
	}

	if g.edges[fromNodeId] == nil {
		g.edges[fromNodeId] = make(map[string]*model.Edge)
	}
	g.edges[fromNodeId][toNodeId] = &model.Edge{
		FromNode:    fromNodeId,
		ToNode:      toNodeId,
		Latency:     latency,
		Bandwidth:   bandwidth,
		Reliability: reliability,
		LastUpdated: time.Now(),
	}

	g.adjacency[fromNodeId][toNodeId] = true
	g.adjacency[toNodeId][fromNodeId] = true

	return true
}

// UpdateNodeMetrics merges the supplied fields into the node's metrics and
// refreshes its timestamp. Returns false for an unknown node.
func (g *Graph) UpdateNodeMetrics(nodeId string, update model.MetricsUpdate) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, found := g.nodes[nodeId]
	if !found {
		g.logger.Debug(fmt.Sprintf("Metrics update for unknown node %s", nodeId))
		return false
	}

	update.Apply(&node.Metrics)
	node.Metrics.LastUpdated = time.Now()

	return true
}

// Node returns a copy of the node record.
func (g *Graph) Node(nodeId string) (model.Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, found := g.nodes[nodeId]
	if !found {
		return model.Node{}, false
	}
	return *node, true
}

// Neighbors returns the adjacent node ids, sorted.
func (g *Graph) Neighbors(nodeId string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	neighbors := []string{}
	for neighbor := range g.adjacency[nodeId] {
		neighbors = append(neighbors, neighbor)
	}
	sort.Strings(neighbors)

	return neighbors
}

// NodeIds returns all node ids, sorted.
func (g *Graph) NodeIds() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.nodes)
}

func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.edgeCountLocked()
}

func (g *Graph) edgeCountLocked() int {
	count := 0
	for _, targets := range g.edges {
		count += len(targets)
	}
	return count
}

// IsHealthy applies the graph's health policy to a node. Unknown nodes are
// unhealthy.
func (g *Graph) IsHealthy(nodeId string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, found := g.nodes[nodeId]
	if !found {
		return false
	}
	return node.Metrics.IsHealthy(g.policy.MaxLatency, g.policy.MinQuality)
}

// NodeSnapshot is a read-only view of a node with its derived scores.
type NodeSnapshot struct {
	Id           string            `json:"node_id"`
	Hostname     string            `json:"hostname"`
	Capabilities map[string]string `json:"capabilities"`
	Latency      float64           `json:"latency"`
	CpuUsage     float64           `json:"cpu_usage"`
	MemoryUsage  float64           `json:"memory_usage"`
	GpuUsage     float64           `json:"gpu_usage"`
	PacketLoss   float64           `json:"packet_loss"`
	Uptime       float64           `json:"uptime"`
	ResponseTime float64           `json:"response_time"`
	ErrorRate    float64           `json:"error_rate"`
	QualityScore float64           `json:"quality_score"`
	Healthy      bool              `json:"is_healthy"`
	LastUpdated  time.Time         `json:"last_updated"`
}

// EdgeSnapshot is a read-only view of an edge with its derived weight.
type EdgeSnapshot struct {
	FromNode    string  `json:"from_node"`
	ToNode      string  `json:"to_node"`
	Latency     float64 `json:"latency"`
	Bandwidth   float64 `json:"bandwidth"`
	Reliability float64 `json:"reliability"`
	Weight      float64 `json:"weight"`
}

// Snapshot is a fully-consistent copy of the topology.
type Snapshot struct {
	Nodes     map[string]NodeSnapshot `json:"nodes"`
	Edges     []EdgeSnapshot          `json:"edges"`
	NodeCount int                     `json:"node_count"`
	EdgeCount int                     `json:"edge_count"`
}

// Snapshot captures the topology under a single read lock so callers never
// observe a partially-updated view.
func (g *Graph) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snapshot := Snapshot{
		Nodes:     make(map[string]NodeSnapshot, len(g.nodes)),
		Edges:     []EdgeSnapshot{},
		NodeCount: len(g.nodes),
		EdgeCount: g.edgeCountLocked(),
	}

	for id, node := range g.nodes {
		capabilities := make(map[string]string, len(node.Capabilities))
		for name, value := range node.Capabilities {
			capabilities[name] = value
		}
		snapshot.Nodes[id] = NodeSnapshot{
			Id:           id,
			Hostname:     node.Hostname,
			Capabilities: capabilities,
			Latency:      node.Metrics.Latency,
			CpuUsage:     node.Metrics.CpuUsage,
			MemoryUsage:  node.Metrics.MemoryUsage,
			GpuUsage:     node.Metrics.GpuUsage,
			PacketLoss:   node.Metrics.PacketLoss,
			Uptime:       node.Metrics.Uptime,
			ResponseTime: node.Metrics.ResponseTime,
			ErrorRate:    node.Metrics.ErrorRate,
			QualityScore: node.Metrics.QualityScore(),
			Healthy:      node.Metrics.IsHealthy(g.policy.MaxLatency, g.policy.MinQuality),
			LastUpdated:  node.Metrics.LastUpdated,
		}
	}

	for _, targets := range g.edges {
		for _, edge := range targets {
			snapshot.Edges = append(snapshot.Edges, EdgeSnapshot{
				FromNode:    edge.FromNode,
				ToNode:      edge.ToNode,
				Latency:     edge.Latency,
				Bandwidth:   edge.Bandwidth,
				Reliability: edge.Reliability,
				Weight:      edge.Weight(),
			})
		}
	}
	sort.Slice(snapshot.Edges, func(i, j int) bool {
		if snapshot.Edges[i].FromNode != snapshot.Edges[j].FromNode {
			return snapshot.Edges[i].FromNode < snapshot.Edges[j].FromNode
		}
		return snapshot.Edges[i].ToNode < snapshot.Edges[j].ToNode
	})

	return snapshot
}
